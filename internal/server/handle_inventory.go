package server

import (
	"log/slog"
	"net/http"
	"sort"

	"github.com/indianamx/buenfinbot/internal/inventory"
	"github.com/indianamx/buenfinbot/internal/ledger"
)

// InventoryItem is one prize row in the inventory report.
type InventoryItem struct {
	Prize     string `json:"premio"`
	Capacity  int    `json:"capacidad"`
	Assigned  int    `json:"asignados"`
	Available int    `json:"disponibles"`
}

// InventoryResponse is the full inventory report plus the sync outcome
// that preceded it.
type InventoryResponse struct {
	Sync   inventory.Report `json:"sync"`
	Prizes []InventoryItem  `json:"premios"`
}

// handleInventory reports per-prize capacity, confirmed assignments, and
// cached availability. With autoSync the cache is reconciled first when
// stale; ?sync=1 forces a pass regardless of freshness.
func handleInventory(logger *slog.Logger, ldg ledger.Store, stock *inventory.Store, rec *inventory.Reconciler, capacity map[string]int, autoSync bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		force := r.URL.Query().Get("sync") == "1"

		var report inventory.Report
		if autoSync || force {
			var err error
			report, err = rec.Sync(ctx, force)
			if err != nil {
				// The cached numbers are still worth reporting.
				logger.Error("inventory sync failed", "error", err)
			}
		} else if last, err := rec.LastSync(ctx); err == nil {
			report.LastSync = last
		}

		assigned, err := ldg.AssignedCounts(ctx)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		available, err := stock.All(ctx)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		names := make(map[string]struct{}, len(capacity))
		for p := range capacity {
			names[p] = struct{}{}
		}
		for p := range assigned {
			names[p] = struct{}{}
		}
		for p := range available {
			names[p] = struct{}{}
		}

		items := make([]InventoryItem, 0, len(names))
		for p := range names {
			items = append(items, InventoryItem{
				Prize:     p,
				Capacity:  capacity[p],
				Assigned:  assigned[p],
				Available: available[p],
			})
		}
		sort.Slice(items, func(i, j int) bool { return items[i].Prize < items[j].Prize })

		writeJSON(w, http.StatusOK, InventoryResponse{Sync: report, Prizes: items})
	}
}
