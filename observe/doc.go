// Package observe instruments library operations with OpenTelemetry.
//
// Every external call made by the library (a secret lookup, a webhook post,
// a spreadsheet read) is an Operation. Middleware runs an operation inside a
// span, records its duration and outcome as metrics and writes a debug
// record through the shared logger.
//
// Telemetry is off unless an Observer is built with tracing or metrics
// enabled; NewNoop returns an Observer that records nothing. Secret values
// and key names are never attached to spans or metrics.
package observe
