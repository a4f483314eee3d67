/*
Package dsl provides a Go DSL for building workflow graphs in code.

It is an alternative to YAML or JSON graph files for generated graphs, unit
tests and embedding, with IDE completion on node settings.

Example usage:

	b := dsl.New("heartbeat").Character("Ai", "You are a cheerful streamer.")

	b.Add("clock").Type("timer").Set("interval", 5).
		Pipe("tick", "fmt.input")

	b.Add("fmt").Type("template").Set("template", "still streaming (tick {{.input}})").
		Pipe("text", "out.message")

	b.Add("out").Type("log_output")

	g, err := b.Build()
	// ... pass g to Service.Start, or b.Store() to WithGraphSource
*/
package dsl
