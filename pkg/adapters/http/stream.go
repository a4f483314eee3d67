package http

import (
	"context"
	"log/slog"
	"sync"

	"github.com/oboroge0/AITuberFlow-sub001/pkg/domain"
)

// StreamManager fans observer events out to connected stream clients, keyed
// by run ID. It is registered as a service-wide observer.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan domain.Event]struct{} // RunID -> Set of Channels
	buffer      int
	logger      *slog.Logger
}

// NewStreamManager creates a manager whose per-client buffers hold buffer events.
func NewStreamManager(buffer int, logger *slog.Logger) *StreamManager {
	if buffer <= 0 {
		buffer = 64
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &StreamManager{
		subscribers: make(map[string]map[chan domain.Event]struct{}),
		buffer:      buffer,
		logger:      logger,
	}
}

// Subscribe returns a channel receiving the events of runID and a cancel func
// that closes it.
func (sm *StreamManager) Subscribe(runID string) (<-chan domain.Event, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan domain.Event, sm.buffer)
	if _, ok := sm.subscribers[runID]; !ok {
		sm.subscribers[runID] = make(map[chan domain.Event]struct{})
	}
	sm.subscribers[runID][ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			sm.mu.Lock()
			defer sm.mu.Unlock()
			if subs, ok := sm.subscribers[runID]; ok {
				delete(subs, ch)
				close(ch)
				if len(subs) == 0 {
					delete(sm.subscribers, runID)
				}
			}
		})
	}
}

// Subscribers returns the number of clients following runID.
func (sm *StreamManager) Subscribers(runID string) int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers[runID])
}

// OnEvent broadcasts ev to every client of its run.
func (sm *StreamManager) OnEvent(_ context.Context, ev domain.Event) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers[ev.RunID] {
		select {
		case ch <- ev:
		default:
			// Drop message if channel is full (slow client)
			sm.logger.Warn("stream client buffer full, dropping event", "run_id", ev.RunID, "type", ev.Type)
		}
	}
}
