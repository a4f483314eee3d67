package observability

import (
	"context"
	"log/slog"

	"github.com/oboroge0/AITuberFlow-sub001/pkg/domain"
)

// Log writes every event to a structured logger.
type Log struct {
	logger *slog.Logger
}

// NewLog returns a sink writing to l.
func NewLog(l *slog.Logger) *Log {
	if l == nil {
		l = slog.New(slog.DiscardHandler)
	}
	return &Log{logger: l}
}

func (s *Log) OnEvent(ctx context.Context, ev domain.Event) {
	attrs := []slog.Attr{
		slog.String("event", string(ev.Type)),
		slog.String("run_id", ev.RunID),
		slog.String("graph_id", ev.GraphID),
	}
	if ev.NodeID != "" {
		attrs = append(attrs, slog.String("node_id", ev.NodeID), slog.String("node_type", ev.NodeType))
	}

	level := slog.LevelInfo
	msg := ev.Message
	switch ev.Type {
	case domain.EventLog:
		level = slogLevel(ev.Level)
	case domain.EventNodeStatus:
		attrs = append(attrs, slog.String("status", string(ev.Status)), slog.Int("cycle", ev.Cycle))
		if ev.Duration > 0 {
			attrs = append(attrs, slog.Float64("duration_ms", ev.Duration))
		}
		if ev.Status == domain.StatusFailed {
			level = slog.LevelWarn
			attrs = append(attrs, slog.String("error", ev.Message))
		} else {
			level = slog.LevelDebug
		}
		msg = "node " + string(ev.Status)
	case domain.EventExecutionStarted:
		msg = "execution started"
	case domain.EventExecutionStopped:
		attrs = append(attrs, slog.String("reason", ev.Reason))
		msg = "execution stopped"
	case domain.EventArtifact:
		attrs = append(attrs, slog.String("artifact", ev.Artifact))
		level = slog.LevelDebug
		msg = "artifact"
	}
	s.logger.LogAttrs(ctx, level, msg, attrs...)
}

func slogLevel(l domain.Level) slog.Level {
	switch l {
	case domain.LevelDebug:
		return slog.LevelDebug
	case domain.LevelWarn:
		return slog.LevelWarn
	case domain.LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
