// Package telemetry initializes the OpenTelemetry SDK: OTLP gRPC trace and
// metric exporters behind a single Init call. When telemetry is disabled the
// global providers stay noop and Shutdown does nothing.
// This package is internal and should not be imported by external projects.
package telemetry
