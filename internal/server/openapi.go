package server

import (
	"encoding/json"
	"net/http"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"

	"github.com/indianamx/buenfinbot/internal/ledger"
)

// ErrorResponse is returned for all error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "Buen Fin Indiana API"
	r.Spec.Info.Version = "0.1.0"
	r.Spec.Info.WithDescription("Backend API for the Buen Fin Indiana WhatsApp campaign.")

	// GET /healthz
	getHealthz, _ := r.NewOperationContext(http.MethodGet, "/healthz")
	getHealthz.SetSummary("Health check")
	getHealthz.SetDescription("Returns the health status of backend dependencies.")
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
	_ = r.AddOperation(getHealthz)

	// GET /webhook
	getWebhook, _ := r.NewOperationContext(http.MethodGet, "/webhook")
	getWebhook.SetSummary("Webhook verification")
	getWebhook.SetDescription("Meta subscription handshake. Echoes hub.challenge when hub.verify_token matches.")
	getWebhook.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK),
		openapi.WithContentType("text/plain"))
	getWebhook.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusForbidden))
	_ = r.AddOperation(getWebhook)

	// POST /webhook
	postWebhook, _ := r.NewOperationContext(http.MethodPost, "/webhook")
	postWebhook.SetSummary("Inbound WhatsApp events")
	postWebhook.SetDescription("Accepts WhatsApp Cloud API notifications. Always acks 200; processing is asynchronous.")
	postWebhook.AddRespStructure(map[string]string{}, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(postWebhook)

	// GET /qr
	getQR, _ := r.NewOperationContext(http.MethodGet, "/qr")
	getQR.SetSummary("QR deep link")
	getQR.SetDescription("Counts the seller scan (?vendedor=V042) and redirects into a pre-filled WhatsApp chat.")
	getQR.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusFound))
	getQR.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	_ = r.AddOperation(getQR)

	// GET /api/inventory
	getInventory, _ := r.NewOperationContext(http.MethodGet, "/api/inventory")
	getInventory.SetSummary("Prize inventory report")
	getInventory.SetDescription("Per-prize capacity, confirmed assignments, and cached availability. ?sync=1 forces reconciliation.")
	getInventory.AddRespStructure(InventoryResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getInventory.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusInternalServerError))
	_ = r.AddOperation(getInventory)

	// GET /api/tickets/pending
	getPending, _ := r.NewOperationContext(http.MethodGet, "/api/tickets/pending")
	getPending.SetSummary("Pending tickets")
	getPending.SetDescription("Submissions awaiting manual review, oldest first.")
	getPending.AddRespStructure([]ledger.Submission{}, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(getPending)

	// POST /api/tickets/assign
	postAssign, _ := r.NewOperationContext(http.MethodPost, "/api/tickets/assign")
	postAssign.SetSummary("Assign a prize")
	postAssign.SetDescription("Closes the oldest pending ticket for a phone with a confirmed amount. The outcome is the tier prize, or a sentinel when the amount is below every tier or stock is exhausted.")
	postAssign.AddReqStructure(AssignRequest{})
	postAssign.AddRespStructure(AssignResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postAssign.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	postAssign.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(postAssign)

	// GET /api/stats/stores
	getStores, _ := r.NewOperationContext(http.MethodGet, "/api/stats/stores")
	getStores.SetSummary("Store ranking")
	getStores.SetDescription("Participating stores ranked by submission count. ?limit caps the list.")
	getStores.AddRespStructure([]ledger.StoreCount{}, openapi.WithHTTPStatus(http.StatusOK))
	getStores.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	_ = r.AddOperation(getStores)

	// GET /api/stats/total
	getTotal, _ := r.NewOperationContext(http.MethodGet, "/api/stats/total")
	getTotal.SetSummary("Campaign totals")
	getTotal.SetDescription("Sum of extracted purchase amounts and the submission count.")
	getTotal.AddRespStructure(TotalResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(getTotal)

	// GET /api/events
	getEvents, _ := r.NewOperationContext(http.MethodGet, "/api/events")
	getEvents.SetSummary("SSE event stream")
	getEvents.SetDescription("Server-Sent Events stream of submissions and prize assignments.")
	getEvents.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK),
		openapi.WithContentType("text/event-stream"))
	_ = r.AddOperation(getEvents)

	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()
	data, _ := json.MarshalIndent(spec, "", "  ")

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
