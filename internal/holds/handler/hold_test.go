package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"escaperoom/internal/holds/service"
	apperrors "escaperoom/pkg/errors"
	httputil "escaperoom/pkg/http"
	"escaperoom/pkg/logger"
	"escaperoom/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type mockHoldService struct {
	createHoldFunc func(ctx context.Context, req *model.CreateHoldRequest) (*model.Hold, error)
	confirmFunc    func(ctx context.Context, holdID string, req *model.HoldActionRequest) (*model.Hold, error)
	releaseFunc    func(ctx context.Context, holdID string, req *model.HoldActionRequest) error
	getByIDFunc    func(ctx context.Context, holdID string) (*model.Hold, error)
}

func (m *mockHoldService) CreateHold(ctx context.Context, req *model.CreateHoldRequest) (*model.Hold, error) {
	if m.createHoldFunc != nil {
		return m.createHoldFunc(ctx, req)
	}
	return nil, errors.New("not implemented")
}

func (m *mockHoldService) Confirm(ctx context.Context, holdID string, req *model.HoldActionRequest) (*model.Hold, error) {
	if m.confirmFunc != nil {
		return m.confirmFunc(ctx, holdID, req)
	}
	return nil, errors.New("not implemented")
}

func (m *mockHoldService) Release(ctx context.Context, holdID string, req *model.HoldActionRequest) error {
	if m.releaseFunc != nil {
		return m.releaseFunc(ctx, holdID, req)
	}
	return errors.New("not implemented")
}

func (m *mockHoldService) GetByID(ctx context.Context, holdID string) (*model.Hold, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, holdID)
	}
	return nil, errors.New("not implemented")
}

func (m *mockHoldService) Reconcile(context.Context) ([]service.Anomaly, error) {
	return nil, nil
}

func (m *mockHoldService) SweepExpired(context.Context) (int64, error) {
	return 0, nil
}

var expiresAt = time.Date(2026, 5, 1, 12, 5, 0, 0, time.UTC)

func newTestRouter(svc service.HoldService) *httprouter.Router {
	router := httprouter.New()
	NewHoldHandler(svc, logger.Discard()).RegisterRoutes(router)
	return router
}

func serve(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeData(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var envelope struct {
		Data map[string]any `json:"data"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&envelope); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return envelope.Data
}

func TestCreate_ReturnsHold(t *testing.T) {
	var got *model.CreateHoldRequest
	router := newTestRouter(&mockHoldService{
		createHoldFunc: func(_ context.Context, req *model.CreateHoldRequest) (*model.Hold, error) {
			got = req
			return &model.Hold{ID: "h-1", SlotID: req.SlotID, HolderID: req.UserID, Status: model.HoldActive, ExpiresAt: expiresAt}, nil
		},
	})

	rr := serve(router, http.MethodPost, "/holds", `{"slot_id":"s-1","user_id":"alice"}`)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if got == nil || got.SlotID != "s-1" || got.UserID != "alice" {
		t.Fatalf("service received %+v", got)
	}

	data := decodeData(t, rr)
	if data["hold_id"] != "h-1" || data["status"] != "HOLD" {
		t.Errorf("unexpected body: %v", data)
	}
	if data["expires_at"] != "2026-05-01T12:05:00Z" {
		t.Errorf("expected expires_at 2026-05-01T12:05:00Z, got %v", data["expires_at"])
	}
}

func TestCreate_ErrorStatuses(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		err      error
		wantCode int
	}{
		{"conflict", `{"slot_id":"s-1","user_id":"bob"}`, apperrors.Conflict("Slot is not available"), http.StatusConflict},
		{"validation", `{"slot_id":"","user_id":"bob"}`, apperrors.Validation("Hold request validation failed", nil), http.StatusUnprocessableEntity},
		{"storage down", `{"slot_id":"s-1","user_id":"bob"}`, apperrors.Unavailable("Hold storage", errors.New("down")), http.StatusServiceUnavailable},
		{"malformed body", `{"slot_id":`, nil, http.StatusBadRequest},
		{"unknown field", `{"slot_id":"s-1","user_id":"bob","extra":1}`, nil, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(&mockHoldService{
				createHoldFunc: func(context.Context, *model.CreateHoldRequest) (*model.Hold, error) {
					return nil, tt.err
				},
			})

			rr := serve(router, http.MethodPost, "/holds", tt.body)
			if rr.Code != tt.wantCode {
				t.Errorf("expected %d, got %d: %s", tt.wantCode, rr.Code, rr.Body.String())
			}

			var resp httputil.ErrorResponse
			if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode error body: %v", err)
			}
			if resp.Error == "" {
				t.Error("expected an error message")
			}
		})
	}
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		name     string
		result   *model.Hold
		err      error
		wantCode int
	}{
		{"confirmed", &model.Hold{ID: "h-1", SlotID: "s-1", Status: model.HoldConfirmed}, nil, http.StatusOK},
		{"expired", nil, apperrors.Gone("Hold is expired"), http.StatusGone},
		{"slot booked", nil, apperrors.Conflict("Slot is already booked"), http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotID string
			router := newTestRouter(&mockHoldService{
				confirmFunc: func(_ context.Context, holdID string, _ *model.HoldActionRequest) (*model.Hold, error) {
					gotID = holdID
					return tt.result, tt.err
				},
			})

			rr := serve(router, http.MethodPost, "/holds/h-1/confirm", `{"user_id":"alice"}`)
			if rr.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d: %s", tt.wantCode, rr.Code, rr.Body.String())
			}
			if gotID != "h-1" {
				t.Errorf("expected hold id h-1, got %q", gotID)
			}
			if tt.result != nil {
				data := decodeData(t, rr)
				if data["slot_id"] != "s-1" || data["status"] != "CONFIRMED" {
					t.Errorf("unexpected body: %v", data)
				}
			}
		})
	}
}

func TestRelease(t *testing.T) {
	router := newTestRouter(&mockHoldService{
		releaseFunc: func(_ context.Context, holdID string, req *model.HoldActionRequest) error {
			if req.UserID != "alice" {
				return apperrors.NotFound("Active hold")
			}
			return nil
		},
	})

	rr := serve(router, http.MethodPost, "/holds/h-1/release", `{"user_id":"alice"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	data := decodeData(t, rr)
	if data["hold_id"] != "h-1" || data["status"] != "RELEASED" {
		t.Errorf("unexpected body: %v", data)
	}

	rr = serve(router, http.MethodPost, "/holds/h-1/release", `{"user_id":"bob"}`)
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404 for a non-owner, got %d", rr.Code)
	}
}

func TestGetByID(t *testing.T) {
	router := newTestRouter(&mockHoldService{
		getByIDFunc: func(_ context.Context, holdID string) (*model.Hold, error) {
			if holdID != "h-1" {
				return nil, apperrors.NotFoundWithID("Hold", holdID)
			}
			return &model.Hold{ID: "h-1", SlotID: "s-1", HolderID: "alice", Status: model.HoldExpired, ExpiresAt: expiresAt}, nil
		},
	})

	rr := serve(router, http.MethodGet, "/holds/h-1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if data := decodeData(t, rr); data["status"] != "EXPIRED" {
		t.Errorf("expected EXPIRED, got %v", data["status"])
	}

	rr = serve(router, http.MethodGet, "/holds/h-2", "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rr.Code)
	}
}
