// Package file stores workflow graphs as YAML or JSON documents on disk.
//
// A graph file looks like:
//
//	id: hello
//	name: Hello world
//	character:
//	  name: Ai
//	  prompt: You are a cheerful streamer.
//	nodes:
//	  - id: timer
//	    type: timer
//	    config: {interval: 1}
//	  - id: greeting
//	    type: text
//	    config: {text: hi}
//	connections:
//	  - from: timer.tick
//	    to: greeting.trigger
//
// Endpoints use "node.port" notation; the expanded {node, port} form is
// accepted too.
package file

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/mitchellh/mapstructure"
	"github.com/oboroge0/AITuberFlow-sub001/pkg/domain"
	"gopkg.in/yaml.v3"
)

// Format selects the document encoding.
type Format string

const (
	YAML Format = "yaml"
	JSON Format = "json"
)

type connectionDoc struct {
	From domain.Endpoint `mapstructure:"from"`
	To   domain.Endpoint `mapstructure:"to"`
}

type graphDoc struct {
	ID          string           `mapstructure:"id"`
	Name        string           `mapstructure:"name"`
	Character   domain.Character `mapstructure:"character"`
	Nodes       []domain.NodeDef `mapstructure:"nodes"`
	Connections []connectionDoc  `mapstructure:"connections"`
}

// Decode parses a graph document.
func Decode(data []byte, format Format) (domain.Graph, error) {
	var raw map[string]any
	switch format {
	case JSON:
		if err := json.Unmarshal(data, &raw); err != nil {
			return domain.Graph{}, fmt.Errorf("failed to parse graph JSON: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return domain.Graph{}, fmt.Errorf("failed to parse graph YAML: %w", err)
		}
	}
	if raw == nil {
		return domain.Graph{}, fmt.Errorf("empty graph document")
	}

	var doc graphDoc
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:  endpointHook,
		ErrorUnused: true,
		Result:      &doc,
	})
	if err != nil {
		return domain.Graph{}, err
	}
	if err := dec.Decode(raw); err != nil {
		return domain.Graph{}, fmt.Errorf("invalid graph document: %w", err)
	}

	g := domain.Graph{
		ID:        doc.ID,
		Name:      doc.Name,
		Nodes:     doc.Nodes,
		Character: doc.Character,
	}
	for _, c := range doc.Connections {
		g.Connections = append(g.Connections, domain.Connection{From: c.From, To: c.To})
	}
	return g, nil
}

var endpointType = reflect.TypeOf(domain.Endpoint{})

func endpointHook(from, to reflect.Type, data any) (any, error) {
	if to != endpointType || from.Kind() != reflect.String {
		return data, nil
	}
	return domain.ParseEndpoint(data.(string))
}

type connectionOut struct {
	From string `yaml:"from" json:"from"`
	To   string `yaml:"to" json:"to"`
}

type graphOut struct {
	ID          string            `yaml:"id" json:"id"`
	Name        string            `yaml:"name,omitempty" json:"name,omitempty"`
	Character   *domain.Character `yaml:"character,omitempty" json:"character,omitempty"`
	Nodes       []domain.NodeDef  `yaml:"nodes" json:"nodes"`
	Connections []connectionOut   `yaml:"connections,omitempty" json:"connections,omitempty"`
}

// Encode renders g in the compact "node.port" notation.
func Encode(g domain.Graph, format Format) ([]byte, error) {
	out := graphOut{ID: g.ID, Name: g.Name, Nodes: g.Nodes}
	if g.Character.Name != "" || g.Character.Prompt != "" || len(g.Character.Personality) > 0 {
		ch := g.Character
		out.Character = &ch
	}
	for _, c := range g.Connections {
		out.Connections = append(out.Connections, connectionOut{From: c.From.String(), To: c.To.String()})
	}
	if format == JSON {
		return json.MarshalIndent(out, "", "  ")
	}
	return yaml.Marshal(out)
}
