package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/reviewflow/reviewflow/api"
	"github.com/reviewflow/reviewflow/review"
	"github.com/reviewflow/reviewflow/store"
)

// envelope mirrors the response wrapper for decoding in tests.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *ErrorInfo      `json:"error"`
}

// newTestAPI builds the full route table over a memory store.
func newTestAPI(t *testing.T) (*http.ServeMux, *review.Engine, *review.SimpleEventBus) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	bus := review.NewEventBus(logger)
	t.Cleanup(bus.Stop)

	st := store.NewMemoryStore(logger)
	t.Cleanup(func() { _ = st.Close() })

	engine := review.NewEngine(st, review.DefaultRegistry(), logger, review.WithEventBus(bus))

	mux := http.NewServeMux()
	NewWorkflowHandler(engine, logger).Register(mux)
	NewCheckpointHandler(engine, logger).Register(mux)
	NewReviewHandler(engine, nil, logger).Register(mux)
	NewEventsHandler(bus, nil, logger).Register(mux)
	NewHealthHandler(logger).Register(mux, api.VersionResponse{Version: "test"})
	return mux, engine, bus
}

// doJSON performs one request against the mux and decodes the envelope.
func doJSON(t *testing.T, mux *http.ServeMux, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env),
		"response body: %s", rec.Body.String())
	return rec, env
}

// createWorkflow posts a fresh workflow and returns its id.
func createWorkflow(t *testing.T, mux *http.ServeMux) string {
	t.Helper()
	rec, env := doJSON(t, mux, http.MethodPost, "/api/v1/workflows", map[string]any{
		"protocol_id": "prot-1",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var wf review.Workflow
	require.NoError(t, json.Unmarshal(env.Data, &wf))
	require.NotEmpty(t, wf.ID)
	return wf.ID
}

// initCheckpoints initializes a workflow's checkpoints.
func initCheckpoints(t *testing.T, mux *http.ServeMux, id string) {
	t.Helper()
	rec, _ := doJSON(t, mux, http.MethodPost, "/api/v1/workflows/"+id+"/checkpoints/init", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}
