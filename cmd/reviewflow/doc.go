// Command reviewflow runs the checkpoint review service: the HTTP API, the
// Prometheus metrics server, and the database migration CLI.
package main
