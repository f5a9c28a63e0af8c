// Package server exposes the campaign over HTTP: the WhatsApp webhook,
// the QR deep-link redirect, and the reporting API.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/indianamx/buenfinbot/internal/attribution"
	"github.com/indianamx/buenfinbot/internal/campaign"
	"github.com/indianamx/buenfinbot/internal/inventory"
	"github.com/indianamx/buenfinbot/internal/ledger"
	"github.com/indianamx/buenfinbot/internal/whatsapp"
)

// MessageHandler consumes one inbound WhatsApp event. The webhook acks
// before processing, so implementations own their error reporting.
type MessageHandler interface {
	HandleMessage(ctx context.Context, in whatsapp.Incoming)
}

// Notifier sends outbound texts to participants.
type Notifier interface {
	SendText(ctx context.Context, to, body string) error
}

// Deps carries everything the HTTP surface needs.
type Deps struct {
	Logger     *slog.Logger
	DB         *sql.DB
	Redis      *redis.Client
	Handler    MessageHandler
	Ledger     ledger.Store
	Stock      *inventory.Store
	Reconciler *inventory.Reconciler
	Notifier   Notifier
	Broker     *Broker
	Sellers    *attribution.Registry
	Tiers      []campaign.Tier
	Capacity   map[string]int

	VerifyToken string
	BotPhone    string
	AutoSync    bool
}

type Server struct {
	srv    *http.Server
	logger *slog.Logger
}

func New(addr string, d Deps) *Server {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(newStructuredLogger(d.Logger))
	r.Use(middleware.Recoverer)

	addRoutes(r, d)

	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		logger: d.Logger,
	}
}

func (s *Server) Run(_ context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.srv.Addr, err)
	}

	err = s.srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

func newStructuredLogger(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				logger.Info("http request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration_ms", time.Since(start).Milliseconds(),
					"request_id", middleware.GetReqID(r.Context()),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
