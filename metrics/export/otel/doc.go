// Package otel bridges engine metrics to an OpenTelemetry meter using
// observable instruments, so values are only read at collection time.
package otel
