package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/indianamx/buenfinbot/internal/campaign"
	"github.com/indianamx/buenfinbot/internal/inventory"
	"github.com/indianamx/buenfinbot/internal/ledger"
)

// handlePendingTickets lists submissions awaiting manual review, oldest
// first, so operators work the queue in arrival order.
func handlePendingTickets(ldg ledger.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subs, err := ldg.Pending(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if subs == nil {
			subs = []ledger.Submission{}
		}
		writeJSON(w, http.StatusOK, subs)
	}
}

type AssignRequest struct {
	Phone  string  `json:"telefono"`
	Amount float64 `json:"monto"`
}

type AssignResponse struct {
	Phone  string  `json:"telefono"`
	Prize  string  `json:"premio"`
	Amount float64 `json:"monto"`
}

// handleAssignPrize closes a manually reviewed ticket with a confirmed
// amount. The amount is mapped through the tier table and a unit of
// stock is claimed before the ledger row is updated; a winner is
// congratulated on WhatsApp, best effort.
func handleAssignPrize(logger *slog.Logger, ldg ledger.Store, stock *inventory.Store, tiers []campaign.Tier, notifier Notifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AssignRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		req.Phone = strings.TrimSpace(req.Phone)
		if req.Phone == "" || req.Amount <= 0 {
			writeError(w, http.StatusBadRequest, "telefono and a positive monto are required")
			return
		}

		ctx := r.Context()

		outcome := campaign.OutcomeInsufficient
		if prize, ok := campaign.Resolve(tiers, req.Amount); ok {
			taken, err := stock.Take(ctx, prize)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "internal error")
				return
			}
			if taken {
				outcome = prize
			} else {
				outcome = campaign.OutcomeNoPrize
			}
		}

		err := ldg.AssignPrize(ctx, req.Phone, outcome, req.Amount)
		if err != nil {
			// The claimed unit goes back so the next ticket can win it.
			if campaign.IsRealPrize(outcome) {
				if rerr := stock.Return(ctx, outcome); rerr != nil {
					logger.Error("returning unassigned stock", "prize", outcome, "error", rerr)
				}
			}
			if errors.Is(err, ledger.ErrNotFound) {
				writeError(w, http.StatusNotFound, "no pending ticket for that phone")
				return
			}
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		if campaign.IsRealPrize(outcome) {
			msg := "🎉 ¡Felicidades! Tu ticket fue validado y has ganado *" + outcome + "* en el Buen Fin Indiana ⚡"
			if err := notifier.SendText(ctx, req.Phone, msg); err != nil {
				logger.Error("sending prize notification", "phone", req.Phone, "error", err)
			}
		}

		logger.Info("prize assigned", "phone", req.Phone, "prize", outcome, "amount", req.Amount)
		writeJSON(w, http.StatusOK, AssignResponse{Phone: req.Phone, Prize: outcome, Amount: req.Amount})
	}
}
