package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/oboroge0/AITuberFlow-sub001/pkg/domain"
)

var extensions = map[string]Format{
	".yaml": YAML,
	".yml":  YAML,
	".json": JSON,
}

// Store implements ports.GraphStore over a directory of graph files.
// The file name (without extension) is the graph ID.
type Store struct {
	BasePath string
}

// New creates a new Store with the given base path.
// If basePath is empty, it defaults to "graphs".
func New(basePath string) *Store {
	if basePath == "" {
		basePath = "graphs"
	}
	return &Store{BasePath: basePath}
}

// LoadFile reads a single graph file. A missing id defaults to the file name.
func LoadFile(path string) (domain.Graph, error) {
	format, ok := extensions[strings.ToLower(filepath.Ext(path))]
	if !ok {
		format = YAML
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Graph{}, fmt.Errorf("failed to read graph file: %w", err)
	}
	g, err := Decode(data, format)
	if err != nil {
		return domain.Graph{}, fmt.Errorf("%s: %w", path, err)
	}
	if g.ID == "" {
		base := filepath.Base(path)
		g.ID = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return g, nil
}

func (s *Store) find(id string) (string, bool) {
	for ext := range extensions {
		p := filepath.Join(s.BasePath, id+ext)
		if _, err := os.Stat(p); err == nil {
			return p, true
		}
	}
	return "", false
}

func validID(id string) error {
	if id == "" {
		return fmt.Errorf("graph id cannot be empty")
	}
	if strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return fmt.Errorf("graph id %q is not a valid file name", id)
	}
	return nil
}

// Load reads the graph with the given ID.
func (s *Store) Load(_ context.Context, id string) (domain.Graph, error) {
	if err := validID(id); err != nil {
		return domain.Graph{}, err
	}
	path, ok := s.find(id)
	if !ok {
		return domain.Graph{}, fmt.Errorf("graph %q: %w", id, domain.ErrGraphNotFound)
	}
	g, err := LoadFile(path)
	if err != nil {
		return domain.Graph{}, err
	}
	g.ID = id
	return g, nil
}

// Save writes the graph as YAML atomically: temp file, fsync, rename.
func (s *Store) Save(_ context.Context, g domain.Graph) error {
	if err := validID(g.ID); err != nil {
		return err
	}
	if err := os.MkdirAll(s.BasePath, 0o755); err != nil {
		return fmt.Errorf("failed to ensure graph directory: %w", err)
	}
	data, err := Encode(g, YAML)
	if err != nil {
		return fmt.Errorf("failed to encode graph: %w", err)
	}

	// Same directory so the rename stays on one filesystem.
	tmpFile, err := os.CreateTemp(s.BasePath, "tmp-"+g.ID+"-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath) // no-op once renamed
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// Drop other encodings of the same graph so Load is unambiguous.
	for ext := range extensions {
		if ext == ".yaml" {
			continue
		}
		_ = os.Remove(filepath.Join(s.BasePath, g.ID+ext))
	}
	dest := filepath.Join(s.BasePath, g.ID+".yaml")
	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Delete removes every file of the graph.
func (s *Store) Delete(_ context.Context, id string) error {
	if err := validID(id); err != nil {
		return err
	}
	for ext := range extensions {
		err := os.Remove(filepath.Join(s.BasePath, id+ext))
		if err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete graph file: %w", err)
		}
	}
	return nil
}

// List returns the IDs of every graph file, sorted.
func (s *Store) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.BasePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list graphs: %w", err)
	}

	seen := make(map[string]bool)
	ids := []string{}
	for _, entry := range entries {
		name := entry.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if entry.IsDir() || strings.HasPrefix(name, "tmp-") {
			continue
		}
		if _, ok := extensions[ext]; !ok {
			continue
		}
		id := name[:len(name)-len(ext)]
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}
