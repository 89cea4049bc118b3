package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-manager/internal/dashboard"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = (streamPongWait * 9) / 10
)

// DashboardHandler serves the dashboard snapshot and its live stream.
type DashboardHandler struct {
	aggregator *dashboard.Aggregator
	upgrader   websocket.Upgrader
}

// NewDashboardHandler creates a dashboard handler. allowedOrigins limits
// which browser origins may open the stream; empty allows any.
func NewDashboardHandler(aggregator *dashboard.Aggregator, allowedOrigins []string) *DashboardHandler {
	return &DashboardHandler{
		aggregator: aggregator,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

type refreshResponse struct {
	dashboard.Snapshot
	FailedSources []string `json:"failedSources,omitempty"`
}

// Get returns the latest snapshot without touching the store.
func (h *DashboardHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.aggregator.Hub().Current())
}

// Refresh recomputes every counter now. Counters whose source failed keep
// their previous value and are reported in failedSources.
func (h *DashboardHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	err := h.aggregator.Refresh(r.Context())

	var rerr *dashboard.RefreshError
	switch {
	case err == nil:
	case errors.As(err, &rerr):
		writeJSON(w, http.StatusOK, refreshResponse{
			Snapshot:      h.aggregator.Hub().Current(),
			FailedSources: rerr.Sources(),
		})
		return
	default:
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, refreshResponse{Snapshot: h.aggregator.Hub().Current()})
}

// Stream upgrades to a websocket and pushes every hub event as JSON until
// the client goes away.
func (h *DashboardHandler) Stream(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("Dashboard stream upgrade failed")
		return
	}
	defer conn.Close()

	events, cancel := h.aggregator.Hub().Subscribe()
	defer cancel()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(streamPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(streamPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteJSON(ev); err != nil {
				log.WithError(err).Debug("Dashboard stream write failed")
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}
