package server

import (
	"github.com/go-chi/chi/v5"
	"github.com/swaggest/swgui/v5emb"
)

func addRoutes(r chi.Router, d Deps) {
	broker := d.Broker
	if broker == nil {
		broker = NewBroker()
	}
	ldg := d.Ledger

	r.Get("/openapi.json", handleOpenAPI())
	r.Mount("/docs", v5emb.New("Buen Fin Indiana API", "/openapi.json", "/docs"))
	r.Get("/healthz", handleHealth(d.Logger, d.DB, d.Redis))

	r.Get("/webhook", handleWebhookVerify(d.Logger, d.VerifyToken))
	r.Post("/webhook", handleWebhook(d.Logger, d.Handler))
	r.Get("/qr", handleQR(d.Logger, d.Redis, d.Sellers, d.BotPhone))

	r.Route("/api", func(r chi.Router) {
		r.Get("/inventory", handleInventory(d.Logger, ldg, d.Stock, d.Reconciler, d.Capacity, d.AutoSync))
		r.Get("/tickets/pending", handlePendingTickets(ldg))
		r.Post("/tickets/assign", handleAssignPrize(d.Logger, ldg, d.Stock, d.Tiers, d.Notifier))
		r.Get("/stats/stores", handleStoreStats(ldg))
		r.Get("/stats/total", handleTotalStats(ldg))
		r.Get("/events", handleEvents(broker))
	})
}
