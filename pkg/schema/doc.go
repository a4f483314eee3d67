// Package schema validates node settings maps before a node is configured.
//
// A Schema maps setting keys to a Type. Keys are required unless wrapped in
// Optional; constraints such as Range and OneOf compose around any Type:
//
//	s := schema.Schema{
//	    "interval": schema.Range(schema.Float(), 0.01, 3600),
//	    "level":    schema.Optional(schema.OneOf(schema.String(), "debug", "info", "warning", "error")),
//	    "tags":     schema.Optional(schema.Slice(schema.String())),
//	}
//	if err := schema.Validate(s, settings); err != nil {
//	    // *AggregateError listing every failing key
//	}
//
// Once validated, Decode copies the map into a typed settings struct using
// mapstructure tags, converting duration strings along the way.
package schema
