package server

import (
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/indianamx/buenfinbot/internal/attribution"
)

const scanTTL = 24 * time.Hour

// handleQR is the target of the printed QR codes. It counts the scan
// against the seller's daily tally and redirects into a WhatsApp chat
// pre-filled with the start keyword and the seller code, so attribution
// survives into the conversation.
func handleQR(logger *slog.Logger, rdb *redis.Client, sellers *attribution.Registry, botPhone string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := attribution.ParseCode(r.URL.Query().Get("vendedor"))
		if code == "" {
			writeError(w, http.StatusBadRequest, "vendedor query parameter required")
			return
		}

		seller, known := sellers.Lookup(code)
		key := "vendedor:" + code + ":scans"

		pipe := rdb.TxPipeline()
		pipe.Incr(r.Context(), key)
		pipe.Expire(r.Context(), key, scanTTL)
		if _, err := pipe.Exec(r.Context()); err != nil {
			// A lost scan count never blocks the participant.
			logger.Error("counting qr scan", "code", code, "error", err)
		}
		logger.Info("qr scan", "code", code, "seller", seller, "known", known)

		text := "Hola, quiero participar. Codigo " + code
		target := "https://wa.me/" + botPhone + "?text=" + url.QueryEscape(text)
		http.Redirect(w, r, target, http.StatusFound)
	}
}
