package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reviewflow/reviewflow/review"
)

func dialEvents(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/events/ws"
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func TestEventFeedDeliversPublishedEvents(t *testing.T) {
	mux, _, bus := newTestAPI(t)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	conn := dialEvents(t, srv)

	// Give the handler a moment to register its subscription.
	time.Sleep(50 * time.Millisecond)

	want := review.Event{
		Type:       review.EventWorkflowCreated,
		WorkflowID: "wf-events-1",
		Timestamp:  time.Now().UTC(),
	}
	bus.Publish(want)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var got review.Event
	require.NoError(t, wsjson.Read(ctx, conn, &got))
	assert.Equal(t, review.EventWorkflowCreated, got.Type)
	assert.Equal(t, "wf-events-1", got.WorkflowID)
}

func TestEventFeedCarriesEngineEvents(t *testing.T) {
	mux, _, _ := newTestAPI(t)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	conn := dialEvents(t, srv)
	time.Sleep(50 * time.Millisecond)

	id := createWorkflow(t, mux)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var got review.Event
	require.NoError(t, wsjson.Read(ctx, conn, &got))
	assert.Equal(t, review.EventWorkflowCreated, got.Type)
	assert.Equal(t, id, got.WorkflowID)
}

func TestEventFeedRejectsNonWebsocket(t *testing.T) {
	mux, _, _ := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events/ws", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	// A plain GET without the upgrade handshake is refused.
	assert.NotEqual(t, http.StatusOK, rec.Code)
}
