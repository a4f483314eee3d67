package nodes

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/oboroge0/AITuberFlow-sub001/pkg/ports"
)

// base keeps the runtime handed to Setup. Nodes without resources embed it.
type base struct {
	rt ports.Runtime
}

func (b *base) Setup(_ context.Context, rt ports.Runtime) error {
	b.rt = rt
	return nil
}

func (b *base) Teardown(context.Context) error { return nil }

// stringify renders a port value as text: strings verbatim, records as JSON.
func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case fmt.Stringer:
		return val.String()
	case map[string]any, []any:
		raw, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(raw)
	default:
		return fmt.Sprint(val)
	}
}
