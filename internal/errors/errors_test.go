package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noveum/gatebench/internal/server/middleware"
)

func TestHTTPStatusFromCode(t *testing.T) {
	require.Equal(t, http.StatusTooManyRequests, HTTPStatusFromCode(CodeRateLimited))
	require.Equal(t, http.StatusUnauthorized, HTTPStatusFromCode(CodeUnauthorized))
	require.Equal(t, http.StatusBadRequest, HTTPStatusFromCode(CodeInvalidInput))
	require.Equal(t, http.StatusInternalServerError, HTTPStatusFromCode(CodeConfigInvalid))
	require.Equal(t, http.StatusInternalServerError, HTTPStatusFromCode("SOMETHING_ELSE"))
}

func TestWrapConfigInvalid(t *testing.T) {
	envelope := WrapConfigInvalid(context.Background(), stderrors.New("api key missing"), "invalid configuration")
	require.Equal(t, CodeConfigInvalid, envelope.Code)
	require.NotEmpty(t, envelope.CorrelationID)
	require.Equal(t, "api key missing", envelope.Context["wrapped_error"])
}

func TestEnsureEnvelope(t *testing.T) {
	original := NewRateLimitedError("slow down")
	require.Same(t, original, EnsureEnvelope(original))

	wrapped := EnsureEnvelope(stderrors.New("boom"))
	require.Equal(t, CodeInternal, wrapped.Code)
	require.Equal(t, "boom", wrapped.Context["wrapped_error"])
}

func TestRespondWithEnvelopeUsesRequestID(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", nil)
	req = req.WithContext(context.WithValue(req.Context(), middleware.RequestIDContextKey, "req-123"))
	rec := httptest.NewRecorder()

	RespondWithEnvelope(rec, req, NewRateLimitedError("Rate limit reached. Please try again in 1.5s."))

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body HTTPErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, CodeRateLimited, body.Error.Code)
	require.Equal(t, "Rate limit reached. Please try again in 1.5s.", body.Error.Message)
	require.Equal(t, "req-123", body.Error.RequestID)
}
