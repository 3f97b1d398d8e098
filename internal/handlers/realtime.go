package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	svcErr "github.com/oggyb/campus-match/internal/errors"
	"github.com/oggyb/campus-match/internal/events"
	"github.com/oggyb/campus-match/internal/identity"
	"github.com/oggyb/campus-match/internal/metrics"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var realtimeTables = map[string]bool{
	"":                        true,
	events.TableProfiles:      true,
	events.TableMatches:       true,
	events.TableMessages:      true,
	events.TableNotifications: true,
	events.TableReports:       true,
}

// Realtime upgrades to a WebSocket and streams row-change events.
//
// Behavior:
//   - ?table= narrows the feed to one table, ?match_id= to one conversation.
//   - Users only receive events they participate in; admins receive everything.
//   - Delivery is best effort. Clients dedupe by id and refetch on reconnect.
func (h *Handlers) Realtime(w http.ResponseWriter, r *http.Request) {
	caller, err := identity.Require(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	q := r.URL.Query()
	filter := events.Filter{Table: q.Get("table"), MatchID: q.Get("match_id")}
	if !realtimeTables[filter.Table] {
		h.writeError(w, r, svcErr.Validation("table", "unknown table"))
		return
	}
	if !caller.IsAdmin() {
		filter.UserID = caller.UserID
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	feed, stop, err := h.appCtx.Bus.Subscribe(ctx, filter)
	if err != nil {
		h.writeError(w, r, svcErr.Persistence("subscribe", err))
		return
	}
	defer stop()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.appCtx.Logger.Warn("websocket upgrade failed", "user", caller.UserID, "err", err)
		return
	}
	defer conn.Close()

	metrics.RealtimeSubscribers.Inc()
	defer metrics.RealtimeSubscribers.Dec()
	h.appCtx.Logger.Debug("realtime subscribed", "user", caller.UserID, "table", filter.Table, "match", filter.MatchID)

	// read pump: only pongs and close frames are expected
	go func() {
		defer cancel()
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-feed:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "feed closed"),
					time.Now().Add(writeWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(e); err != nil {
				h.appCtx.Logger.Debug("realtime write failed", "user", caller.UserID, "err", err)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
