package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/indianamx/buenfinbot/internal/whatsapp"
)

const maxWebhookBody = 1 << 20

// handleWebhookVerify answers Meta's subscription handshake: echo the
// challenge when the verify token matches, 403 otherwise.
func handleWebhookVerify(logger *slog.Logger, verifyToken string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("hub.mode") == "subscribe" && q.Get("hub.verify_token") == verifyToken {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(q.Get("hub.challenge")))
			return
		}
		logger.Warn("webhook verification rejected", "mode", q.Get("hub.mode"))
		writeError(w, http.StatusForbidden, "verification failed")
	}
}

// handleWebhook accepts inbound WhatsApp events. The response is always
// 200 so Meta never retries: processing happens after the ack, and the
// engine reports its own failures to the participant. The handler's
// context outlives the request since extraction can take most of a minute.
func handleWebhook(logger *slog.Logger, handler MessageHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		r.Body.Close()
		if err != nil {
			writeError(w, http.StatusBadRequest, "unreadable body")
			return
		}

		events, err := whatsapp.ParseWebhook(body)
		if err != nil {
			logger.Warn("unparseable webhook payload", "error", err)
			writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
			return
		}

		ctx := context.WithoutCancel(r.Context())
		for _, in := range events {
			go handler.HandleMessage(ctx, in)
		}

		writeJSON(w, http.StatusOK, map[string]string{"status": "received"})
	}
}
