package registry

import (
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"github.com/oboroge0/AITuberFlow-sub001/pkg/domain"
)

// CoerceFunc converts a value produced on one port type into another.
type CoerceFunc func(v any) (any, error)

type coercionKey struct {
	src, dst domain.PortType
}

// PortTypes decides which port types may be connected and converts values
// along declared coercions while routing.
type PortTypes struct {
	mu        sync.RWMutex
	known     map[domain.PortType]bool
	coercions map[coercionKey]CoerceFunc
}

// NewPortTypes returns the built-in types with the default coercions
// number→string, boolean→string and record→string (JSON).
func NewPortTypes() *PortTypes {
	pt := &PortTypes{
		known: map[domain.PortType]bool{
			domain.PortString:  true,
			domain.PortNumber:  true,
			domain.PortBoolean: true,
			domain.PortRecord:  true,
			domain.PortAny:     true,
		},
		coercions: make(map[coercionKey]CoerceFunc),
	}
	pt.RegisterCoercion(domain.PortNumber, domain.PortString, numberToString)
	pt.RegisterCoercion(domain.PortBoolean, domain.PortString, func(v any) (any, error) {
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("expected boolean, got %T", v)
		}
		return strconv.FormatBool(b), nil
	})
	pt.RegisterCoercion(domain.PortRecord, domain.PortString, func(v any) (any, error) {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return string(raw), nil
	})
	return pt
}

// Known reports whether t is a registered port type.
func (p *PortTypes) Known(t domain.PortType) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.known[t]
}

// Define adds a custom port type name, e.g. "audio".
func (p *PortTypes) Define(t domain.PortType) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.known[t] = true
}

// RegisterCoercion declares that src values may feed dst ports through fn.
func (p *PortTypes) RegisterCoercion(src, dst domain.PortType, fn CoerceFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.known[src] = true
	p.known[dst] = true
	p.coercions[coercionKey{src, dst}] = fn
}

// IsCompatible reports whether an output of type src may feed an input of type dst.
func (p *PortTypes) IsCompatible(src, dst domain.PortType) bool {
	if src == dst || src == domain.PortAny || dst == domain.PortAny {
		return true
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.coercions[coercionKey{src, dst}]
	return ok
}

// Coerce converts v for delivery on a dst port. Identical types and any pass
// values through untouched.
func (p *PortTypes) Coerce(src, dst domain.PortType, v any) (any, error) {
	if src == dst || src == domain.PortAny || dst == domain.PortAny {
		return v, nil
	}
	p.mu.RLock()
	fn, ok := p.coercions[coercionKey{src, dst}]
	p.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no coercion from %s to %s", src, dst)
	}
	return fn(v)
}

func numberToString(v any) (any, error) {
	switch n := v.(type) {
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(n), 'f', -1, 32), nil
	case int:
		return strconv.Itoa(n), nil
	case int64:
		return strconv.FormatInt(n, 10), nil
	case int32:
		return strconv.FormatInt(int64(n), 10), nil
	case uint64:
		return strconv.FormatUint(n, 10), nil
	case json.Number:
		return n.String(), nil
	default:
		return nil, fmt.Errorf("expected number, got %T", v)
	}
}
