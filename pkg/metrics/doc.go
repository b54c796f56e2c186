// Package metrics defines Prometheus metrics for gameshake, covering API
// requests and retries, authentication operations, and fetched pages and
// records. The CLI can export them as a node-exporter textfile.
package metrics
