package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	apperrors "escaperoom/pkg/errors"
)

func TestWriteError_StatusMapping(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedCode   string
	}{
		{"conflict", apperrors.Conflict("Slot is not available"), http.StatusConflict, apperrors.CodeConflict},
		{"gone", apperrors.Gone("Hold is no longer valid"), http.StatusGone, apperrors.CodeGone},
		{"not found", apperrors.NotFoundWithID("Hold", "h-1"), http.StatusNotFound, apperrors.CodeNotFound},
		{"unavailable", apperrors.Unavailable("storage", errors.New("locked")), http.StatusServiceUnavailable, apperrors.CodeUnavailable},
		{"code without status", &apperrors.AppError{Code: apperrors.CodeGone, Message: "x"}, http.StatusGone, apperrors.CodeGone},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, apperrors.CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			if err := WriteError(w, tt.err); err != nil {
				t.Fatalf("WriteError returned error: %v", err)
			}

			if w.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d", tt.expectedStatus, w.Code)
			}

			var resp ErrorResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.Code != tt.expectedCode {
				t.Errorf("expected code %s, got %s", tt.expectedCode, resp.Code)
			}
		})
	}
}

func TestWriteError_HidesInternalMessage(t *testing.T) {
	w := httptest.NewRecorder()
	_ = WriteError(w, errors.New("dial tcp 10.0.0.3:27017: connection refused"))

	if strings.Contains(w.Body.String(), "10.0.0.3") {
		t.Errorf("internal error details leaked: %s", w.Body.String())
	}
}

func TestWriteCreated_Envelope(t *testing.T) {
	w := httptest.NewRecorder()
	if err := WriteCreated(w, map[string]string{"hold_id": "h-1"}); err != nil {
		t.Fatalf("WriteCreated returned error: %v", err)
	}

	if w.Code != http.StatusCreated {
		t.Errorf("expected status 201, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json, got %s", ct)
	}

	var resp struct {
		Data map[string]string `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Data["hold_id"] != "h-1" {
		t.Errorf("expected hold_id h-1 in data envelope, got %v", resp.Data)
	}
}

func TestDecodeJSON(t *testing.T) {
	type body struct {
		SlotID string `json:"slot_id"`
	}

	tests := []struct {
		name    string
		payload string
		wantErr bool
	}{
		{"valid", `{"slot_id":"s-1"}`, false},
		{"empty", ``, true},
		{"malformed", `{"slot_id":`, true},
		{"unknown field", `{"slot_id":"s-1","extra":1}`, true},
		{"trailing object", `{"slot_id":"s-1"}{"slot_id":"s-2"}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/holds", strings.NewReader(tt.payload))
			var b body
			err := DecodeJSON(req, &b)
			if (err != nil) != tt.wantErr {
				t.Fatalf("DecodeJSON() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !apperrors.IsAppError(err) {
				t.Errorf("expected AppError, got %T", err)
			}
		})
	}
}
