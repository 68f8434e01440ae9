// Package prometheus bridges engine metrics to a Prometheus registry. The
// exporter is pull-based: each scrape takes one lock-free snapshot.
package prometheus
