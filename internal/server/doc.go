// Package server manages the HTTP server lifecycle: non-blocking start,
// graceful shutdown within a configurable timeout, SIGINT/SIGTERM handling,
// and asynchronous error propagation via Errors().
// This package is internal and should not be imported by external projects.
package server
