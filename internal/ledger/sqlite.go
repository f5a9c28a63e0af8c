package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/indianamx/buenfinbot/internal/campaign"
)

// pendingWhere matches rows still awaiting manual review.
const pendingWhere = `(LOWER(prize) LIKE 'pendiente%' OR LOWER(prize) LIKE 'revisión manual%' OR LOWER(prize) LIKE 'revision manual%')`

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Append(ctx context.Context, sub *Submission) error {
	var createdAt string
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO submissions (phone, name, store, tax_name, occupation, occasion, referral, seller, amount, prize, detail, photo_ref)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id, created_at
	`, sub.Phone, sub.Name, sub.Store, sub.TaxName, sub.Occupation, sub.Occasion,
		sub.Referral, sub.Seller, sub.Amount, sub.Prize, sub.Detail, sub.PhotoRef,
	).Scan(&sub.ID, &createdAt)
	if err != nil {
		return fmt.Errorf("appending submission: %w", err)
	}
	sub.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return nil
}

func (s *SQLiteStore) All(ctx context.Context) ([]Submission, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, phone, name, store, tax_name, occupation, occasion, referral, seller, amount, prize, detail, photo_ref, created_at
		FROM submissions
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("listing submissions: %w", err)
	}
	defer rows.Close()
	return scanSubmissions(rows)
}

func (s *SQLiteStore) AssignedCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT prize, COUNT(*)
		FROM submissions
		WHERE TRIM(prize) != ''
		GROUP BY prize
	`)
	if err != nil {
		return nil, fmt.Errorf("counting assigned prizes: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var prize string
		var n int
		if err := rows.Scan(&prize, &n); err != nil {
			return nil, err
		}
		if campaign.IsRealPrize(prize) {
			counts[prize] += n
		}
	}
	return counts, rows.Err()
}

func (s *SQLiteStore) Pending(ctx context.Context) ([]Submission, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, phone, name, store, tax_name, occupation, occasion, referral, seller, amount, prize, detail, photo_ref, created_at
		FROM submissions
		WHERE `+pendingWhere+`
		ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("listing pending submissions: %w", err)
	}
	defer rows.Close()
	return scanSubmissions(rows)
}

func (s *SQLiteStore) AssignPrize(ctx context.Context, phone, prize string, amount float64) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE submissions SET prize = ?, amount = ?
		WHERE id = (
			SELECT id FROM submissions
			WHERE phone = ? AND `+pendingWhere+`
			ORDER BY created_at
			LIMIT 1
		)
	`, prize, amount, phone)
	if err != nil {
		return fmt.Errorf("assigning prize: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) StoreCounts(ctx context.Context, limit int) ([]StoreCount, error) {
	if limit <= 0 {
		// SQLite reads LIMIT 0 as zero rows; negative means no cap.
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT store, COUNT(*) AS n
		FROM submissions
		WHERE TRIM(store) != ''
		GROUP BY store
		ORDER BY n DESC, store
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("counting stores: %w", err)
	}
	defer rows.Close()

	var counts []StoreCount
	for rows.Next() {
		var sc StoreCount
		if err := rows.Scan(&sc.Store, &sc.Count); err != nil {
			return nil, err
		}
		counts = append(counts, sc)
	}
	return counts, rows.Err()
}

func (s *SQLiteStore) TotalAmount(ctx context.Context) (float64, error) {
	var total sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `SELECT SUM(amount) FROM submissions`).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("summing amounts: %w", err)
	}
	return total.Float64, nil
}

func scanSubmissions(rows *sql.Rows) ([]Submission, error) {
	var subs []Submission
	for rows.Next() {
		var sub Submission
		var amount sql.NullFloat64
		var createdAt string
		err := rows.Scan(&sub.ID, &sub.Phone, &sub.Name, &sub.Store, &sub.TaxName,
			&sub.Occupation, &sub.Occasion, &sub.Referral, &sub.Seller,
			&amount, &sub.Prize, &sub.Detail, &sub.PhotoRef, &createdAt)
		if err != nil {
			return nil, err
		}
		if amount.Valid {
			sub.Amount = &amount.Float64
		}
		sub.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return subs, nil
}

var _ Store = (*SQLiteStore)(nil)
