// ABOUTME: Gateway wires the registry, presence, typing, and conversation service onto HTTP
// ABOUTME: Owns the route table and the server lifecycle

package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/jashwant-jaladi/pixelpals-chat/internal/auth"
	"github.com/jashwant-jaladi/pixelpals-chat/internal/conversation"
	"github.com/jashwant-jaladi/pixelpals-chat/internal/presence"
	"github.com/jashwant-jaladi/pixelpals-chat/internal/registry"
	"github.com/jashwant-jaladi/pixelpals-chat/internal/typing"
)

// shutdownTimeout bounds the graceful drain on shutdown.
const shutdownTimeout = 10 * time.Second

// Gateway exposes the conversation subsystem over HTTP: a JSON API for the
// request-style surface and a websocket endpoint for the live event channel.
type Gateway struct {
	addr     string
	service  *conversation.Service
	registry *registry.Registry
	presence *presence.Broadcaster
	typing   *typing.Coordinator
	verifier auth.TokenVerifier
	logger   *slog.Logger
}

// New creates a Gateway. Pass nil logger for default.
func New(
	addr string,
	service *conversation.Service,
	reg *registry.Registry,
	pres *presence.Broadcaster,
	typ *typing.Coordinator,
	verifier auth.TokenVerifier,
	logger *slog.Logger,
) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		addr:     addr,
		service:  service,
		registry: reg,
		presence: pres,
		typing:   typ,
		verifier: verifier,
		logger:   logger.With("component", "gateway"),
	}
}

// Routes builds the HTTP route table. Everything except the health check
// requires a verified identity.
func (g *Gateway) Routes() http.Handler {
	authed := auth.HTTPMiddleware(g.verifier)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", g.handleHealthz)

	mux.Handle("POST /api/messages", authed(http.HandlerFunc(g.handleSendMessage)))
	mux.Handle("GET /api/conversations", authed(http.HandlerFunc(g.handleListConversations)))
	mux.Handle("GET /api/conversations/{id}/messages", authed(http.HandlerFunc(g.handleListMessages)))
	mux.Handle("POST /api/messages/{id}/seen", authed(http.HandlerFunc(g.handleMarkMessageSeen)))
	mux.Handle("POST /api/conversations/{id}/seen", authed(http.HandlerFunc(g.handleMarkConversationSeen)))
	mux.Handle("GET /api/presence", authed(http.HandlerFunc(g.handlePresence)))
	mux.Handle("GET /ws", authed(http.HandlerFunc(g.handleWebSocket)))

	return mux
}

// Run serves HTTP until ctx is cancelled, then drains gracefully.
func (g *Gateway) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:    g.addr,
		Handler: g.Routes(),
	}

	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("HTTP server listening", "addr", g.addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	g.logger.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
