package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	syncLockKey   = "premio_sync:lock"
	syncLastTsKey = "premio_sync:last_ts"
	syncLockTTL   = 30 * time.Second
)

// AssignedCounter reports how many units of each prize the ledger has
// confirmed as assigned. Sentinel outcomes must already be excluded.
type AssignedCounter interface {
	AssignedCounts(ctx context.Context) (map[string]int, error)
}

// Reconciler periodically rewrites the cached available counts from
// ledger truth: available = max(0, capacity - assigned).
type Reconciler struct {
	store    *Store
	rdb      *redis.Client
	ledger   AssignedCounter
	capacity map[string]int
	maxAge   time.Duration
	logger   *slog.Logger
}

func NewReconciler(store *Store, rdb *redis.Client, ledger AssignedCounter, capacity map[string]int, maxAge time.Duration, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		store:    store,
		rdb:      rdb,
		ledger:   ledger,
		capacity: capacity,
		maxAge:   maxAge,
		logger:   logger,
	}
}

// Change records one cache correction made by a sync pass.
type Change struct {
	Prize string `json:"prize"`
	Old   int    `json:"old"`
	New   int    `json:"new"`
}

// Report describes the outcome of one Sync call. When Ran is false,
// Skipped says why ("fresh" or "locked").
type Report struct {
	Ran      bool      `json:"ran"`
	Skipped  string    `json:"skipped,omitempty"`
	LastSync time.Time `json:"lastSync,omitzero"`
	Changes  []Change  `json:"changes,omitempty"`
}

// Sync reconciles the cached stock against the ledger. Without force it
// is a no-op while the last successful sync is younger than the staleness
// window. At most one sync runs system-wide at a time: a caller that loses
// the lock reports skipped rather than waiting. A ledger read failure
// leaves the cache untouched and is returned for the caller to log.
func (r *Reconciler) Sync(ctx context.Context, force bool) (Report, error) {
	last, err := r.lastSync(ctx)
	if err != nil {
		return Report{}, err
	}

	if !force && time.Since(last) < r.maxAge {
		return Report{Skipped: "fresh", LastSync: last}, nil
	}

	ok, err := r.rdb.SetNX(ctx, syncLockKey, "1", syncLockTTL).Result()
	if err != nil {
		return Report{}, fmt.Errorf("acquiring sync lock: %w", err)
	}
	if !ok {
		return Report{Skipped: "locked", LastSync: last}, nil
	}
	defer r.rdb.Del(context.WithoutCancel(ctx), syncLockKey)

	assigned, err := r.ledger.AssignedCounts(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("reading assigned counts: %w", err)
	}

	report := Report{Ran: true}
	for _, prize := range r.prizeNames(assigned) {
		available := r.capacity[prize] - assigned[prize]
		if available < 0 {
			available = 0
		}
		current, err := r.store.Peek(ctx, prize)
		if err != nil {
			return Report{}, err
		}
		if current == available {
			continue
		}
		if err := r.store.Seed(ctx, prize, available); err != nil {
			return Report{}, err
		}
		report.Changes = append(report.Changes, Change{Prize: prize, Old: current, New: available})
	}

	now := time.Now()
	if err := r.rdb.Set(ctx, syncLastTsKey, now.Unix(), 0).Err(); err != nil {
		return Report{}, fmt.Errorf("recording sync timestamp: %w", err)
	}
	report.LastSync = now

	r.logger.Info("inventory reconciled", "changes", len(report.Changes))
	return report, nil
}

// LastSync returns the timestamp of the last successful reconciliation,
// or the zero time when none has run.
func (r *Reconciler) LastSync(ctx context.Context) (time.Time, error) {
	return r.lastSync(ctx)
}

func (r *Reconciler) lastSync(ctx context.Context) (time.Time, error) {
	ts, err := r.rdb.Get(ctx, syncLastTsKey).Int64()
	if err == redis.Nil {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("reading sync timestamp: %w", err)
	}
	return time.Unix(ts, 0), nil
}

// prizeNames is the union of configured and ledger-seen prizes, sorted
// for deterministic change reports.
func (r *Reconciler) prizeNames(assigned map[string]int) []string {
	seen := make(map[string]struct{}, len(r.capacity)+len(assigned))
	for name := range r.capacity {
		seen[name] = struct{}{}
	}
	for name := range assigned {
		seen[name] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
