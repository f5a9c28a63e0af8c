package server

import (
	"net/http"
	"strconv"

	"github.com/indianamx/buenfinbot/internal/ledger"
)

const defaultStoreLimit = 10

// TotalResponse is the campaign-wide purchase total.
type TotalResponse struct {
	Total float64 `json:"total"`
	Count int     `json:"registros"`
}

// handleStoreStats ranks participating stores by submission count.
// ?limit caps the list; 0 means no cap.
func handleStoreStats(ldg ledger.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultStoreLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
				return
			}
			limit = n
		}

		counts, err := ldg.StoreCounts(r.Context(), limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if counts == nil {
			counts = []ledger.StoreCount{}
		}
		writeJSON(w, http.StatusOK, counts)
	}
}

func handleTotalStats(ldg ledger.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		total, err := ldg.TotalAmount(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		subs, err := ldg.All(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, TotalResponse{Total: total, Count: len(subs)})
	}
}
