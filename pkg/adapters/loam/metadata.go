package loam

import (
	"encoding/json"

	"github.com/oboroge0/AITuberFlow-sub001/pkg/domain"
)

// GraphMetadata is the frontmatter (or YAML/JSON body) of a graph document.
// The markdown content below the frontmatter is the graph's description.
type GraphMetadata struct {
	ID          string               `json:"id" mapstructure:"id"`
	Name        string               `json:"name" mapstructure:"name"`
	Character   domain.Character     `json:"character" mapstructure:"character"`
	Nodes       []domain.NodeDef     `json:"nodes" mapstructure:"nodes"`
	Connections []ConnectionMetadata `json:"connections" mapstructure:"connections"`
}

// ConnectionMetadata uses the "node.port" notation for both ends.
type ConnectionMetadata struct {
	From string `json:"from" mapstructure:"from"`
	To   string `json:"to" mapstructure:"to"`
}

// normalize turns json.Number values produced by strict mode into int64 or
// float64 so node configs see plain Go numbers.
func normalize(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = normalize(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalize(item)
		}
		return out
	default:
		return v
	}
}

func normalizeMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	return normalize(m).(map[string]any)
}
