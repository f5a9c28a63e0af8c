package server

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/indianamx/buenfinbot/internal/attribution"
	"github.com/indianamx/buenfinbot/internal/campaign"
	"github.com/indianamx/buenfinbot/internal/database"
	"github.com/indianamx/buenfinbot/internal/inventory"
	"github.com/indianamx/buenfinbot/internal/ledger"
	"github.com/indianamx/buenfinbot/internal/migrations"
	"github.com/indianamx/buenfinbot/internal/whatsapp"
)

type fakeNotify struct {
	sent []string
}

func (f *fakeNotify) SendText(_ context.Context, to, body string) error {
	f.sent = append(f.sent, to+": "+body)
	return nil
}

type apiFixture struct {
	router   *chi.Mux
	ledger   ledger.Store
	stock    *inventory.Store
	notifier *fakeNotify
	redis    *miniredis.Miniredis
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, ":memory:")
	if err != nil {
		t.Fatalf("opening db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := migrations.Run(db); err != nil {
		t.Fatalf("running migrations: %v", err)
	}

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	capacity := map[string]int{"Pelacables": 5, "Amazon $500": 2}
	tiers := []campaign.Tier{
		{Min: 6000, Max: 9999, Prize: "Pelacables"},
		{Min: 10000, Max: 19999, Prize: "Amazon $500"},
	}

	store := ledger.NewSQLiteStore(db)
	stock := inventory.NewStore(rdb)
	reconciler := inventory.NewReconciler(stock, rdb, store, capacity, time.Hour, slog.Default())
	broker := NewBroker()
	notifier := &fakeNotify{}

	f := &apiFixture{
		ledger:   NewEventLedger(store, broker),
		stock:    stock,
		notifier: notifier,
		redis:    mr,
	}

	r := chi.NewRouter()
	addRoutes(r, Deps{
		Logger:      slog.Default(),
		DB:          db,
		Redis:       rdb,
		Handler:     &channelHandler{ch: make(chan whatsapp.Incoming, 16)},
		Ledger:      f.ledger,
		Stock:       stock,
		Reconciler:  reconciler,
		Notifier:    notifier,
		Broker:      broker,
		Sellers:     attribution.NewRegistry(map[string]string{"V042": "Juana"}),
		Tiers:       tiers,
		Capacity:    capacity,
		VerifyToken: "sekret",
		BotPhone:    "5217206266927",
	})
	f.router = r
	return f
}

func (f *apiFixture) appendPending(t *testing.T, phone, store string, amount float64) {
	t.Helper()
	sub := ledger.Submission{
		Phone:  phone,
		Name:   "María",
		Store:  store,
		Seller: campaign.SellerUnknown,
		Prize:  campaign.OutcomePendingReview,
	}
	if amount > 0 {
		sub.Amount = &amount
	}
	if err := f.ledger.Append(context.Background(), &sub); err != nil {
		t.Fatalf("appending submission: %v", err)
	}
}

func (f *apiFixture) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		rd = bytes.NewReader(data)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, rd)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestInventoryReport(t *testing.T) {
	f := newAPIFixture(t)

	// Forced sync seeds the cache from capacity minus assignments.
	rec := f.do(t, http.MethodGet, "/api/inventory?sync=1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var resp InventoryResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if !resp.Sync.Ran {
		t.Error("forced sync did not run")
	}
	if len(resp.Prizes) != 2 {
		t.Fatalf("prizes = %d, want 2", len(resp.Prizes))
	}
	// Sorted by prize name: Amazon $500, then Pelacables.
	if resp.Prizes[0].Prize != "Amazon $500" || resp.Prizes[0].Available != 2 {
		t.Errorf("first item = %+v", resp.Prizes[0])
	}
	if resp.Prizes[1].Prize != "Pelacables" || resp.Prizes[1].Capacity != 5 {
		t.Errorf("second item = %+v", resp.Prizes[1])
	}

	// A confirmed assignment shows up after the next forced sync.
	amount := 7500.0
	sub := ledger.Submission{Phone: "521", Store: "Centro", Prize: "Pelacables", Amount: &amount}
	if err := f.ledger.Append(context.Background(), &sub); err != nil {
		t.Fatalf("appending: %v", err)
	}

	rec = f.do(t, http.MethodGet, "/api/inventory?sync=1", nil)
	resp = InventoryResponse{}
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Prizes[1].Assigned != 1 || resp.Prizes[1].Available != 4 {
		t.Errorf("after assignment: %+v", resp.Prizes[1])
	}
}

func TestPendingAndAssign(t *testing.T) {
	f := newAPIFixture(t)
	ctx := context.Background()

	f.appendPending(t, "5215511111111", "Centro", 0)
	f.stock.Seed(ctx, "Pelacables", 3)

	rec := f.do(t, http.MethodGet, "/api/tickets/pending", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("pending status = %d", rec.Code)
	}
	var pending []ledger.Submission
	json.NewDecoder(rec.Body).Decode(&pending)
	if len(pending) != 1 || pending[0].Phone != "5215511111111" {
		t.Fatalf("pending = %+v", pending)
	}

	rec = f.do(t, http.MethodPost, "/api/tickets/assign",
		AssignRequest{Phone: "5215511111111", Amount: 7500})
	if rec.Code != http.StatusOK {
		t.Fatalf("assign status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp AssignResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Prize != "Pelacables" {
		t.Errorf("prize = %q, want Pelacables", resp.Prize)
	}

	if n, _ := f.stock.Peek(ctx, "Pelacables"); n != 2 {
		t.Errorf("stock = %d, want 2", n)
	}
	if len(f.notifier.sent) != 1 || !strings.Contains(f.notifier.sent[0], "Pelacables") {
		t.Errorf("notifications = %v", f.notifier.sent)
	}

	rec = f.do(t, http.MethodGet, "/api/tickets/pending", nil)
	pending = nil
	json.NewDecoder(rec.Body).Decode(&pending)
	if len(pending) != 0 {
		t.Errorf("pending after assign = %+v", pending)
	}
}

func TestAssignInsufficientAmount(t *testing.T) {
	f := newAPIFixture(t)
	f.appendPending(t, "5215511111111", "Centro", 0)

	rec := f.do(t, http.MethodPost, "/api/tickets/assign",
		AssignRequest{Phone: "5215511111111", Amount: 500})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp AssignResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Prize != campaign.OutcomeInsufficient {
		t.Errorf("prize = %q, want %q", resp.Prize, campaign.OutcomeInsufficient)
	}
	if len(f.notifier.sent) != 0 {
		t.Errorf("sentinel outcome was notified: %v", f.notifier.sent)
	}
}

func TestAssignNoStock(t *testing.T) {
	f := newAPIFixture(t)
	f.appendPending(t, "5215511111111", "Centro", 0)

	rec := f.do(t, http.MethodPost, "/api/tickets/assign",
		AssignRequest{Phone: "5215511111111", Amount: 7500})
	var resp AssignResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Prize != campaign.OutcomeNoPrize {
		t.Errorf("prize = %q, want %q", resp.Prize, campaign.OutcomeNoPrize)
	}
}

func TestAssignNoPendingTicketReturnsStock(t *testing.T) {
	f := newAPIFixture(t)
	ctx := context.Background()
	f.stock.Seed(ctx, "Pelacables", 3)

	rec := f.do(t, http.MethodPost, "/api/tickets/assign",
		AssignRequest{Phone: "5215599999999", Amount: 7500})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}

	// The unit claimed before the ledger lookup went back.
	if n, _ := f.stock.Peek(ctx, "Pelacables"); n != 3 {
		t.Errorf("stock = %d, want 3", n)
	}
}

func TestAssignBadRequest(t *testing.T) {
	f := newAPIFixture(t)

	for _, req := range []AssignRequest{
		{Phone: "", Amount: 7500},
		{Phone: "521", Amount: 0},
		{Phone: "521", Amount: -5},
	} {
		rec := f.do(t, http.MethodPost, "/api/tickets/assign", req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("req %+v: status = %d, want 400", req, rec.Code)
		}
	}
}

func TestStoreStats(t *testing.T) {
	f := newAPIFixture(t)

	f.appendPending(t, "521", "Centro", 0)
	f.appendPending(t, "522", "Centro", 0)
	f.appendPending(t, "523", "Norte", 0)

	rec := f.do(t, http.MethodGet, "/api/stats/stores?limit=1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var counts []ledger.StoreCount
	json.NewDecoder(rec.Body).Decode(&counts)
	if len(counts) != 1 || counts[0].Store != "Centro" || counts[0].Count != 2 {
		t.Errorf("counts = %+v", counts)
	}

	rec = f.do(t, http.MethodGet, "/api/stats/stores?limit=-1", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("negative limit: status = %d, want 400", rec.Code)
	}
}

func TestTotalStats(t *testing.T) {
	f := newAPIFixture(t)

	f.appendPending(t, "521", "Centro", 7500)
	f.appendPending(t, "522", "Norte", 12000)
	f.appendPending(t, "523", "Norte", 0) // unreadable receipt, no amount

	rec := f.do(t, http.MethodGet, "/api/stats/total", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp TotalResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Total != 19500 {
		t.Errorf("total = %v, want 19500", resp.Total)
	}
	if resp.Count != 3 {
		t.Errorf("count = %d, want 3", resp.Count)
	}
}

func TestQRRedirect(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/qr?vendedor=V042", nil)
	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
	loc := rec.Header().Get("Location")
	if !strings.Contains(loc, "wa.me/5217206266927") {
		t.Errorf("location = %q, want wa.me deep link", loc)
	}
	if !strings.Contains(loc, "Codigo+V042") && !strings.Contains(loc, "Codigo%20V042") {
		t.Errorf("location = %q, want seller code in prefilled text", loc)
	}

	got, err := f.redis.Get("vendedor:V042:scans")
	if err != nil || got != "1" {
		t.Errorf("scan count = %q (%v), want 1", got, err)
	}
	if ttl := f.redis.TTL("vendedor:V042:scans"); ttl <= 0 || ttl > scanTTL {
		t.Errorf("scan ttl = %v", ttl)
	}
}

func TestQRWithoutCode(t *testing.T) {
	f := newAPIFixture(t)

	for _, target := range []string{"/qr", "/qr?vendedor=XYZ"} {
		rec := f.do(t, http.MethodGet, target, nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", target, rec.Code)
		}
	}
}
