package ports

import (
	"context"

	"github.com/oboroge0/AITuberFlow-sub001/pkg/domain"
)

// GraphSource loads workflow graphs. Load returns domain.ErrGraphNotFound for
// unknown IDs.
type GraphSource interface {
	Load(ctx context.Context, id string) (domain.Graph, error)
	List(ctx context.Context) ([]string, error)
}

// GraphStore is a GraphSource that can also persist graphs.
type GraphStore interface {
	GraphSource
	Save(ctx context.Context, g domain.Graph) error
	Delete(ctx context.Context, id string) error
}

// Watchable is implemented by graph sources that can notify about changes.
// Each value received is the ID of a changed graph document.
type Watchable interface {
	Watch(ctx context.Context) (<-chan string, error)
}
