package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/reviewflow/reviewflow/types"
)

// Response is the uniform envelope returned by every API endpoint.
type Response struct {
	Success   bool       `json:"success"`
	Data      any        `json:"data,omitempty"`
	Error     *ErrorInfo `json:"error,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
	RequestID string     `json:"request_id,omitempty"`
}

// ErrorInfo is the error payload inside the envelope.
type ErrorInfo struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// WriteJSON writes an envelope with the given status and data.
func WriteJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	resp := Response{
		Success:   status < 400,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
	if id, ok := types.RequestID(r.Context()); ok {
		resp.RequestID = id
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// WriteSuccess writes a 200 envelope with the given data.
func WriteSuccess(w http.ResponseWriter, r *http.Request, data any) {
	WriteJSON(w, r, http.StatusOK, data)
}

// WriteCreated writes a 201 envelope with the given data.
func WriteCreated(w http.ResponseWriter, r *http.Request, data any) {
	WriteJSON(w, r, http.StatusCreated, data)
}

// WriteError maps a domain error onto the envelope. The HTTP status is
// derived from the error code in exactly one place.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	code := types.GetErrorCode(err)
	if code == "" {
		code = types.ErrInternalError
	}

	var domainErr *types.Error
	message := err.Error()
	if errors.As(err, &domainErr) {
		message = domainErr.Message
	}

	resp := Response{
		Success: false,
		Error: &ErrorInfo{
			Code:    string(code),
			Message: message,
		},
		Timestamp: time.Now().UTC(),
	}
	if id, ok := types.RequestID(r.Context()); ok {
		resp.RequestID = id
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatusFor(code))
	_ = json.NewEncoder(w).Encode(resp)
}

// WriteErrorMessage writes an error envelope with an explicit code and
// message, without a source error value.
func WriteErrorMessage(w http.ResponseWriter, r *http.Request, code types.ErrorCode, message string) {
	WriteError(w, r, types.NewError(code, message))
}

// httpStatusFor maps an error code to its HTTP status.
func httpStatusFor(code types.ErrorCode) int {
	switch code {
	case types.ErrNotFound:
		return http.StatusNotFound
	case types.ErrInvalidCheckpointType, types.ErrInvalidRequest:
		return http.StatusBadRequest
	case types.ErrValidation:
		return http.StatusUnprocessableEntity
	case types.ErrInvalidTransition, types.ErrConflict:
		return http.StatusConflict
	case types.ErrUnauthorized:
		return http.StatusUnauthorized
	case types.ErrRateLimited:
		return http.StatusTooManyRequests
	case types.ErrServiceUnavailable:
		return http.StatusServiceUnavailable
	case types.ErrStorage, types.ErrInternalError:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// maxRequestBody bounds request bodies at 1 MB; review payloads are small.
const maxRequestBody = 1 << 20

// DecodeJSONBody decodes a JSON request body into dst. Unknown fields,
// trailing data, and non-JSON bodies are rejected as INVALID_REQUEST.
func DecodeJSONBody(r *http.Request, dst any) error {
	if r.Body == nil {
		return types.NewError(types.ErrInvalidRequest, "request body is required")
	}

	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return types.NewError(types.ErrInvalidRequest, "request body is required")
		}
		return types.NewErrorf(types.ErrInvalidRequest, "invalid request body: %v", err).WithCause(err)
	}
	if dec.More() {
		return types.NewError(types.ErrInvalidRequest, "request body must contain a single JSON object")
	}
	return nil
}

// ValidateContentType rejects bodies that are not declared as JSON.
func ValidateContentType(r *http.Request) error {
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return nil
	}
	if !strings.HasPrefix(ct, "application/json") {
		return types.NewErrorf(types.ErrInvalidRequest,
			"unsupported content type %q, expected application/json", ct)
	}
	return nil
}

// ResponseWriter wraps http.ResponseWriter to capture the status code for
// logging and metrics middleware.
type ResponseWriter struct {
	http.ResponseWriter
	StatusCode int
	Written    bool
}

// NewResponseWriter wraps w with a 200 default status.
func NewResponseWriter(w http.ResponseWriter) *ResponseWriter {
	return &ResponseWriter{ResponseWriter: w, StatusCode: http.StatusOK}
}

// WriteHeader records the first status code written.
func (rw *ResponseWriter) WriteHeader(code int) {
	if !rw.Written {
		rw.StatusCode = code
		rw.Written = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

// Write marks the response as written with the pending status.
func (rw *ResponseWriter) Write(b []byte) (int, error) {
	if !rw.Written {
		rw.WriteHeader(rw.StatusCode)
	}
	return rw.ResponseWriter.Write(b)
}

// Flush implements http.Flusher for streaming responses.
func (rw *ResponseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// pathValue reads a mux path parameter and fails as INVALID_REQUEST when it
// is empty.
func pathValue(r *http.Request, name string) (string, error) {
	v := r.PathValue(name)
	if v == "" {
		return "", types.NewErrorf(types.ErrInvalidRequest, "missing path parameter %q", name)
	}
	return v, nil
}
