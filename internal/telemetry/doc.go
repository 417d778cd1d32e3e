// Package telemetry records what an index run did: Prometheus metrics in
// textfile exposition format for node_exporter, and an optional SQLite
// history of past runs.
package telemetry
