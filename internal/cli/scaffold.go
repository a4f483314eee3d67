package cli

import (
	"context"
	"embed"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aretw0/loam"
	"github.com/aretw0/loam/pkg/core"
	"github.com/oboroge0/AITuberFlow-sub001/pkg/adapters/file"
)

//go:embed templates/*.yaml
var templates embed.FS

var descriptions = map[string]string{
	"hello":     "Logs a greeting once when the run starts.",
	"heartbeat": "Logs a debug line every five seconds so you can tell the stream is alive.",
	"chat-echo": "Shows every chat message as a subtitle, prefixed with the viewer name.",
	"ai-tuber":  "Answers chat through an OpenAI-compatible model, shows the reply as a subtitle and makes the avatar smile.\n\nSet `OPENAI_API_KEY` (or `llm.base_url` for a local server) before running.",
}

// Scaffold writes the example graphs into dir, as YAML files for the file
// backend or as markdown documents for the loam backend. Existing graphs are
// left alone unless force is set.
func Scaffold(ctx context.Context, dir, backend string, force bool, w io.Writer) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	entries, err := templates.ReadDir("templates")
	if err != nil {
		return err
	}

	var save func(id string, data []byte) (string, error)
	switch backend {
	case "file", "":
		save = func(id string, data []byte) (string, error) {
			target := filepath.Join(dir, id+".yaml")
			return target, os.WriteFile(target, data, 0o644)
		}
	case "loam":
		absPath, err := filepath.Abs(dir)
		if err != nil {
			return fmt.Errorf("invalid path: %w", err)
		}
		repo, err := loam.Init(absPath, loam.WithVersioning(false), loam.WithForceTemp(false))
		if err != nil {
			return fmt.Errorf("failed to initialize loam: %w", err)
		}
		save = func(id string, data []byte) (string, error) {
			doc := core.Document{
				ID:      id + ".md",
				Content: fmt.Sprintf("---\n%s---\n%s\n", data, descriptions[id]),
			}
			return filepath.Join(dir, doc.ID), repo.Save(ctx, doc)
		}
	default:
		return fmt.Errorf("scaffold supports the file and loam backends, not %q", backend)
	}

	for _, e := range entries {
		data, err := templates.ReadFile(path.Join("templates", e.Name()))
		if err != nil {
			return err
		}
		// Decoding catches a broken template before anything is written.
		if _, err := file.Decode(data, file.YAML); err != nil {
			return fmt.Errorf("template %s: %w", e.Name(), err)
		}
		id := strings.TrimSuffix(e.Name(), ".yaml")
		if !force && graphExists(dir, id) {
			fmt.Fprintf(w, "  skip   %s (exists)\n", id)
			continue
		}
		target, err := save(id, data)
		if err != nil {
			return fmt.Errorf("write %s: %w", id, err)
		}
		fmt.Fprintf(w, "  create %s\n", target)
	}
	return nil
}

func graphExists(dir, id string) bool {
	for _, ext := range []string{".yaml", ".yml", ".json", ".md"} {
		if _, err := os.Stat(filepath.Join(dir, id+ext)); err == nil {
			return true
		}
	}
	return false
}
