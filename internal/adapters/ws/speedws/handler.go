// Package speedws pushes rate samples to websocket clients.
package speedws

import (
	"context"
	"net/http"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"trafficstats/internal/core/traffic"
	"trafficstats/internal/domain"
	"trafficstats/internal/logger"
)

type Subscriber interface {
	Subscribe(fn func(domain.RateSample)) traffic.SubscriptionHandle
	Unsubscribe(h traffic.SubscriptionHandle) bool
}

type Handler struct {
	ctx      context.Context
	stream   Subscriber
	upgrader websocket.Upgrader
	log      logger.Logger

	secret string
}

// NewHandler accepts every client when secret is empty; otherwise a JWT
// signed with secret is required.
func NewHandler(ctx context.Context, stream Subscriber, log logger.Logger, secret string, allowedOrigins []string) *Handler {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}

			allowed := slices.Contains(allowedOrigins, origin)
			if !allowed {
				log.Warn("ws auth: origin rejected", "origin", origin)
			}

			return allowed
		},
	}

	return &Handler{
		ctx:      ctx,
		stream:   stream,
		upgrader: upgrader,
		log:      log,
		secret:   secret,
	}
}

func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	clientID, ok := h.authenticate(r)
	if !ok {
		h.log.Warn("ws auth: invalid credentials", "remote_addr", r.RemoteAddr)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("ws auth: upgrade failed", "error", err)
		return
	}

	c := NewClient(h.ctx, h.stream, conn, h.log, clientID)

	go c.writePump()
	go c.readPump()

	h.log.Info("ws: client connected", "id", clientID, "remote_addr", conn.RemoteAddr())
}

func (h *Handler) authenticate(r *http.Request) (string, bool) {
	if h.secret == "" {
		return uuid.NewString(), true
	}

	token, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !found || token == "" {
		cookie, err := r.Cookie("access_token")
		if err != nil {
			return "", false
		}
		token = cookie.Value
	}

	claims, err := domain.ValidateToken(token, h.secret)
	if err != nil {
		return "", false
	}

	if sub, err := claims.GetSubject(); err == nil && sub != "" {
		return sub, true
	}

	return uuid.NewString(), true
}
