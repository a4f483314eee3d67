package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/oboroge0/AITuberFlow-sub001/pkg/domain"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origins are enforced by the CORS middleware.
	CheckOrigin: func(r *http.Request) bool { return true },
	Error: func(w http.ResponseWriter, r *http.Request, status int, reason error) {
		http.Error(w, reason.Error(), status)
	},
}

// StreamRun handles the GET /runs/{runID}/ws request. It sends a snapshot
// first, then every event of the run as JSON, and closes after
// execution.stopped.
func (s *Server) StreamRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	snap, err := s.Engine.Snapshot(runID)
	if err != nil {
		s.fail(w, r, err, http.StatusInternalServerError)
		return
	}

	events, cancel := s.Streams.Subscribe(runID)
	defer cancel()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "run_id", runID, "error", err)
		return
	}
	defer conn.Close()
	s.logger.Info("stream client connected", "run_id", runID)

	ctx, stop := context.WithCancel(r.Context())
	defer stop()

	// The read loop only processes control frames and notices disconnects.
	go func() {
		defer stop()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	runDone := make(chan struct{})
	go func() {
		if err := s.Engine.Wait(ctx, runID); err == nil {
			close(runDone)
		}
	}()

	if err := s.write(conn, map[string]any{"type": "snapshot", "run": snap}); err != nil {
		return
	}
	if snap.State == domain.RunStopped {
		s.closeStream(conn, "run stopped")
		return
	}

	ping := time.NewTicker(s.pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("stream client disconnected", "run_id", runID)
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := s.write(conn, ev); err != nil {
				return
			}
			if ev.Type == domain.EventExecutionStopped {
				s.closeStream(conn, "run stopped")
				return
			}
		case <-runDone:
			// The stopped event may have been dropped for a slow client.
			s.flush(conn, events)
			s.closeStream(conn, "run stopped")
			return
		}
	}
}

func (s *Server) flush(conn *websocket.Conn, events <-chan domain.Event) {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := s.write(conn, ev); err != nil {
				return
			}
		case <-time.After(100 * time.Millisecond):
			return
		}
	}
}

func (s *Server) write(conn *websocket.Conn, v any) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

func (s *Server) closeStream(conn *websocket.Conn, reason string) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}
