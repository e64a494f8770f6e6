package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/quake-report/internal/present"
	"github.com/couchcryptid/quake-report/internal/screen"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPingPeriod = 30 * time.Second
)

// ListScreen is the displayed list the server reads from and refreshes.
type ListScreen interface {
	sharedobs.ReadinessChecker
	Snapshot() (screen.Snapshot, bool)
	Subscribe() (<-chan screen.Snapshot, func())
	Refresh()
}

// Server exposes the earthquake list plus health, readiness, and metrics endpoints.
type Server struct {
	httpServer *http.Server
	screen     ListScreen
	upgrader   websocket.Upgrader
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics and the list routes.
func NewServer(addr string, list ListScreen, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		screen: list,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(list))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /api/earthquakes", s.handleList)
	mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	mux.HandleFunc("GET /ws/earthquakes", s.handleStream)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

// listResponse is the wire form of a snapshot.
type listResponse struct {
	LoadID       string        `json:"load_id,omitempty"`
	FetchedAt    *time.Time    `json:"fetched_at,omitempty"`
	Outcome      string        `json:"outcome,omitempty"`
	Count        int           `json:"count"`
	EmptyMessage string        `json:"empty_message,omitempty"`
	Rows         []present.Row `json:"rows"`
}

func newListResponse(snap screen.Snapshot) listResponse {
	resp := listResponse{
		LoadID:  snap.LoadID,
		Outcome: string(snap.Outcome),
		Count:   len(snap.Rows),
		Rows:    snap.Rows,
	}
	if !snap.FetchedAt.IsZero() {
		fetchedAt := snap.FetchedAt.UTC()
		resp.FetchedAt = &fetchedAt
	}
	if resp.Rows == nil {
		resp.Rows = []present.Row{}
	}
	if snap.Empty() {
		resp.EmptyMessage = present.EmptyMessage
	}
	return resp
}

func (s *Server) handleList(w http.ResponseWriter, _ *http.Request) {
	snap, _ := s.screen.Snapshot()
	writeJSON(w, http.StatusOK, newListResponse(snap))
}

func (s *Server) handleRefresh(w http.ResponseWriter, _ *http.Request) {
	s.screen.Refresh()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "refreshing"})
}

// handleStream sends the current snapshot, then every replacement, until the
// client disconnects or the screen closes.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	updates, unsubscribe := s.screen.Subscribe()
	defer unsubscribe()

	// Before the first load Subscribe has nothing to replay.
	if snap, ready := s.screen.Snapshot(); !ready {
		if err := writeSnapshot(conn, snap); err != nil {
			return
		}
	}

	// Reads only detect the client going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-gone:
			return
		case snap, ok := <-updates:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(wsWriteWait))
				return
			}
			if err := writeSnapshot(conn, snap); err != nil {
				s.logger.Debug("websocket write failed", "error", err)
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}

func writeSnapshot(conn *websocket.Conn, snap screen.Snapshot) error {
	if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
		return err
	}
	return conn.WriteJSON(newListResponse(snap))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
