package schema

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypes(t *testing.T) {
	tests := []struct {
		name    string
		typ     Type
		value   any
		wantErr bool
	}{
		{"string ok", String(), "hi", false},
		{"string bad", String(), 1, true},
		{"int ok", Int(), 3, false},
		{"int from json", Int(), float64(3), false},
		{"int fractional", Int(), 3.5, true},
		{"float accepts int", Float(), 2, false},
		{"float bad", Float(), "2", true},
		{"bool ok", Bool(), false, false},
		{"record ok", Record(), map[string]any{"a": 1}, false},
		{"record typed map", Record(), map[string]string{"a": "b"}, false},
		{"record bad", Record(), []any{1}, true},
		{"record nil", Record(), nil, true},
		{"any nil", Any(), nil, false},
		{"slice ok", Slice(String()), []any{"a", "b"}, false},
		{"slice bad elem", Slice(String()), []any{"a", 2}, true},
		{"range ok", Range(Float(), 0, 10), 10, false},
		{"range low", Range(Float(), 1, 10), 0.5, true},
		{"one of ok", OneOf(String(), "info", "error"), "info", false},
		{"one of bad", OneOf(String(), "info", "error"), "trace", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.typ.Validate(tt.value)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateReportsEveryKeyInOrder(t *testing.T) {
	s := Schema{
		"text":     String(),
		"interval": Range(Float(), 0.01, 60),
		"level":    Optional(OneOf(String(), "info", "error")),
	}

	err := Validate(s, map[string]any{"interval": 120.0, "level": "loud"})
	require.Error(t, err)

	errs := ValidationErrors(err)
	require.Len(t, errs, 3)
	keys := []string{}
	for _, e := range errs {
		var ve *ValidationError
		require.True(t, errors.As(e, &ve))
		keys = append(keys, ve.Key)
	}
	assert.Equal(t, []string{"interval", "level", "text"}, keys)
}

func TestValidateOptionalMayBeAbsent(t *testing.T) {
	s := Schema{"prefix": Optional(String())}
	assert.NoError(t, Validate(s, nil))
	assert.Error(t, Validate(s, map[string]any{"prefix": 1}))
}

func TestDecodeKeepsDefaults(t *testing.T) {
	type settings struct {
		Text     string        `mapstructure:"text"`
		Interval time.Duration `mapstructure:"interval"`
		Repeat   int           `mapstructure:"repeat"`
	}
	out := settings{Text: "default", Repeat: 1}
	require.NoError(t, Decode(map[string]any{"interval": "250ms", "repeat": float64(3)}, &out))

	assert.Equal(t, "default", out.Text)
	assert.Equal(t, 250*time.Millisecond, out.Interval)
	assert.Equal(t, 3, out.Repeat)
}

func TestParseTypeMapAndJSON(t *testing.T) {
	s, err := ParseTypeMap(map[string]string{"topic": "string?", "tags": "[string]", "n": "number"})
	require.NoError(t, err)
	assert.True(t, IsOptional(s["topic"]))
	assert.NoError(t, Validate(s, map[string]any{"tags": []any{"x"}, "n": 1}))

	raw, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{"topic":"string?","tags":"[string]","n":"float"}`, string(raw))

	_, err = ParseType("complex")
	assert.Error(t, err)
}
