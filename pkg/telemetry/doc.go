// Package telemetry provides structured logging, Prometheus metrics,
// and OpenTelemetry tracing for StackReset. Logging wraps zerolog with
// component child loggers and context propagation; metrics cover reset
// and per-phase counters and durations; tracing emits one span per
// reset with child spans per phase.
//
// Every collector is safe to leave unconfigured: a nil *Metrics and a
// nil *Tracer are valid no-ops, so library code can record telemetry
// unconditionally.
package telemetry
