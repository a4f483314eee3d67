// Package loam reads workflow graphs from a Loam document repository: one
// markdown document per graph, with the graph in its frontmatter and a
// human description as its body.
package loam

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/aretw0/loam"
	"github.com/oboroge0/AITuberFlow-sub001/pkg/domain"
	"github.com/oboroge0/AITuberFlow-sub001/pkg/ports"
)

var (
	_ ports.GraphSource = (*Loader)(nil)
	_ ports.Watchable   = (*Loader)(nil)
)

// Loader adapts a Loam repository to ports.GraphSource.
type Loader struct {
	Repo *loam.TypedRepository[GraphMetadata]
}

// New creates a new Loam adapter.
func New(repo *loam.TypedRepository[GraphMetadata]) *Loader {
	return &Loader{
		Repo: repo,
	}
}

// Open initialises a read-only, strict repository at path.
func Open(path string) (*Loader, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	// Strict mode returns json.Number for every numeric value, whatever the
	// document format; normalize() turns them back into Go numbers.
	repo, err := loam.Init(absPath,
		loam.WithStrict(true),
		loam.WithReadOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loam: %w", err)
	}
	return New(loam.NewTypedRepository[GraphMetadata](repo)), nil
}

// Load resolves a graph document by file name without extension, or by the
// id declared in its frontmatter.
func (l *Loader) Load(ctx context.Context, id string) (domain.Graph, error) {
	g, _, err := l.load(ctx, id)
	return g, err
}

// Describe returns the markdown body of a graph document.
func (l *Loader) Describe(ctx context.Context, id string) (string, error) {
	_, content, err := l.load(ctx, id)
	return content, err
}

func (l *Loader) load(ctx context.Context, id string) (domain.Graph, string, error) {
	doc, err := l.Repo.Get(ctx, id)
	if err != nil {
		alt, ok := l.byGraphID(ctx, id)
		if !ok {
			return domain.Graph{}, "", fmt.Errorf("loam get failed for %s: %w: %w", id, domain.ErrGraphNotFound, err)
		}
		doc = alt
	}
	g, err := toGraph(doc.ID, doc.Data)
	if err != nil {
		return domain.Graph{}, "", err
	}
	return g, strings.TrimSpace(doc.Content), nil
}

// byGraphID finds the document whose frontmatter declares id.
func (l *Loader) byGraphID(ctx context.Context, id string) (*loam.DocumentModel[GraphMetadata], bool) {
	docs, err := l.Repo.List(ctx)
	if err != nil {
		return nil, false
	}
	for _, d := range docs {
		fileID := trimExtension(d.ID)
		if fileID == id {
			continue
		}
		full, err := l.Repo.Get(ctx, fileID)
		if err == nil && full.Data.ID == id {
			return full, true
		}
	}
	return nil, false
}

func toGraph(docID string, meta GraphMetadata) (domain.Graph, error) {
	g := domain.Graph{
		ID:   meta.ID,
		Name: meta.Name,
		Character: domain.Character{
			Name:        meta.Character.Name,
			Prompt:      meta.Character.Prompt,
			Personality: normalizeMap(meta.Character.Personality),
		},
	}
	if g.ID == "" {
		g.ID = trimExtension(docID)
	}
	for _, n := range meta.Nodes {
		n.Config = normalizeMap(n.Config)
		g.Nodes = append(g.Nodes, n)
	}
	for i, c := range meta.Connections {
		from, err := domain.ParseEndpoint(c.From)
		if err != nil {
			return domain.Graph{}, fmt.Errorf("graph %s: connection %d: %w", g.ID, i, err)
		}
		to, err := domain.ParseEndpoint(c.To)
		if err != nil {
			return domain.Graph{}, fmt.Errorf("graph %s: connection %d: %w", g.ID, i, err)
		}
		g.Connections = append(g.Connections, domain.Connection{From: from, To: to})
	}
	return g, nil
}

// List returns the IDs of every graph document. Two documents resolving to
// the same graph ID are an error.
func (l *Loader) List(ctx context.Context) ([]string, error) {
	docs, err := l.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list graph documents: %w", err)
	}

	paths := make(map[string]string, len(docs))
	for _, doc := range docs {
		fileID := trimExtension(doc.ID)
		// Listed documents carry no frontmatter, so the id is read from
		// the full document the same way Load does.
		full, err := l.Repo.Get(ctx, fileID)
		if err != nil {
			return nil, fmt.Errorf("read graph document %s: %w", doc.ID, err)
		}
		graphID := fileID
		if full.Data.ID != "" {
			graphID = full.Data.ID
		}
		if other, dup := paths[graphID]; dup {
			return nil, fmt.Errorf("graph %q is defined by both %s and %s", graphID, other, doc.ID)
		}
		paths[graphID] = doc.ID
	}

	ids := make([]string, 0, len(paths))
	for id := range paths {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// trimExtension turns a document path into a graph ID.
func trimExtension(id string) string {
	return filepath.ToSlash(strings.TrimSuffix(id, filepath.Ext(id)))
}

// WatchSettle is how long Watch waits for a burst of file events to end
// before reporting the changed graphs.
var WatchSettle = 150 * time.Millisecond

// Watch implements ports.Watchable. It reports the ID of each changed graph
// document once per burst of writes, until ctx is done.
func (l *Loader) Watch(ctx context.Context) (<-chan string, error) {
	events, err := l.Repo.Watch(ctx, "**/*.{md,json,yaml,yml}")
	if err != nil {
		return nil, fmt.Errorf("watch graph documents: %w", err)
	}

	out := make(chan string, 1)
	go func() {
		defer close(out)
		var pending []string
		settle := time.NewTimer(WatchSettle)
		settle.Stop()
		defer settle.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-events:
				if !ok {
					return
				}
				if id := trimExtension(evt.ID); !slices.Contains(pending, id) {
					pending = append(pending, id)
				}
				settle.Reset(WatchSettle)
			case <-settle.C:
				for _, id := range pending {
					select {
					case out <- id:
					case <-ctx.Done():
						return
					}
				}
				pending = pending[:0]
			}
		}
	}()
	return out, nil
}
