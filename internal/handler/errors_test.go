package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/modboard/internal/model"
)

func TestMapAPIErrorToHTTPStatus(t *testing.T) {
	tests := []struct {
		err  *model.APIError
		want int
	}{
		{model.NewUnauthorizedError(), http.StatusUnauthorized},
		{model.NewForbiddenError(), http.StatusForbidden},
		{model.NewCSRFError(), http.StatusForbidden},
		{model.NewInvalidRequestError(), http.StatusBadRequest},
		{model.NewValidationError("title", "required"), http.StatusBadRequest},
		{model.NewUpstreamRejectedError(), http.StatusBadRequest},
		{model.NewPostNotFoundError("x"), http.StatusNotFound},
		{model.NewUpstreamConflictError(), http.StatusConflict},
		{model.NewUpstreamUnprocessableError(), http.StatusUnprocessableEntity},
		{model.NewRateLimitedError(), http.StatusTooManyRequests},
		{model.NewUpstreamFailedError(), http.StatusBadGateway},
		{model.NewUpstreamTimeoutError(), http.StatusGatewayTimeout},
		{model.NewCredentialFailedError(), http.StatusInternalServerError},
		{model.NewInternalError(), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Code, func(t *testing.T) {
			if got := mapAPIErrorToHTTPStatus(tt.err); got != tt.want {
				t.Errorf("mapAPIErrorToHTTPStatus(%s) = %d, want %d", tt.err.Code, got, tt.want)
			}
		})
	}
}

func TestHandleServiceError_NonAPIErrorIsInternal(t *testing.T) {
	w := httptest.NewRecorder()
	handleServiceError(w, errors.New("dial tcp: connection refused"))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	var body map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if body["code"] != model.ErrCodeInternal {
		t.Errorf("code = %v, want %s", body["code"], model.ErrCodeInternal)
	}
	if msg, _ := body["message"].(string); msg == "" || msg == "dial tcp: connection refused" {
		t.Errorf("message should be generic, got %q", msg)
	}
}
