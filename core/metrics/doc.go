// Package metrics defines the sinks that record finished mix jobs and
// inventory levels for observability. Sinks like PromSink and InfluxSink
// live in infra/metrics and can be combined with NewMultiSink. The factory
// helpers return a MultiSink automatically when several sinks are configured.
package metrics
