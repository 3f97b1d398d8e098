// Package handlers holds the HTTP endpoints served next to the gRPC API.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/oggyb/campus-match/internal/app"
	svcErr "github.com/oggyb/campus-match/internal/errors"
	"github.com/oggyb/campus-match/internal/identity"
)

type Handlers struct {
	appCtx   *app.AppContext
	upgrader websocket.Upgrader
}

func NewHandlers(appCtx *app.AppContext) *Handlers {
	return &Handlers{
		appCtx: appCtx,
		// CORS is enforced by the router; browsers connect from the app origin.
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}
}

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := svcErr.HTTPStatus(err)
	if code >= http.StatusInternalServerError {
		h.appCtx.Logger.Error("request failed", "path", r.URL.Path, "err", err)
	}
	body := errorBody{Error: svcErr.PublicMessage(err)}
	var e *svcErr.Error
	if errors.As(err, &e) {
		body.Field = e.Field
		if e.Kind == svcErr.KindBanned {
			w.Header().Set("X-Account-Status", "banned")
		}
	}
	writeJSON(w, code, body)
}

// Health reports whether the database and Redis answer.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]string{"db": "ok", "redis": "ok"}
	healthy := true

	if sqlDB, err := h.appCtx.DB.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
		checks["db"] = "unavailable"
		healthy = false
	}
	if h.appCtx.RedisCache != nil {
		if err := h.appCtx.RedisCache.Ping(ctx); err != nil {
			checks["redis"] = "unavailable"
			healthy = false
		}
	} else {
		checks["redis"] = "disabled"
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, checks)
}

// Authenticate requires a session on the wrapped routes. The token comes from
// the Authorization header or, for WebSocket upgrades, the access_token query.
func (h *Handlers) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := identity.BearerToken(r.Header.Get("Authorization"))
		if token == "" {
			token = r.URL.Query().Get("access_token")
		}

		ctx, err := h.appCtx.Authenticate(r.Context(), token, clientIP(r))
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// clientIP trusts RemoteAddr, which chi's RealIP middleware has already rewritten.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
