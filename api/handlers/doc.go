// Package handlers implements the reviewflow HTTP endpoints over the review
// engine: workflow lifecycle, checkpoint decisions, the pending queue, the
// websocket event feed, and health probes. Every response uses the shared
// envelope from common.go.
package handlers
