/*
Package observability provides observer sinks for workflow runs.

Every sink implements ports.Observer and can be attached to a single run or to
the whole service. Log mirrors events into slog, Metrics keeps Prometheus
counters and histograms, Channel exposes events as a Go channel, Recorder keeps
them in memory, and Fanout and Filter compose other sinks.
*/
package observability
