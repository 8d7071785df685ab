// Package api defines the wire types of the reviewflow HTTP API: request
// bodies accepted by the handlers and the response payloads they return.
// All field names are snake_case on the wire.
package api
