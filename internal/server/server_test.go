package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"escaperoom/internal/storage"
	"escaperoom/pkg/clock"
	"escaperoom/pkg/config"
	"escaperoom/pkg/logger"
	"escaperoom/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

type harness struct {
	handler http.Handler
	clock   *clock.Manual
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := &config.Config{
		Port:            "0",
		StorageBackend:  config.BackendMemory,
		HoldTTL:         5 * time.Minute,
		RateLimitRPS:    1000,
		RateLimitBurst:  1000,
		RequestTimeout:  5 * time.Second,
		IdempotencyTTL:  time.Hour,
		MaxRequestSize:  4096,
		ReadTimeout:     time.Second,
		WriteTimeout:    time.Second,
		IdleTimeout:     time.Second,
		ShutdownTimeout: time.Second,
		Log:             logger.Discard(),
	}

	backend := storage.NewMemory()
	for i, id := range []string{"s-1", "s-2"} {
		begin := t0.Add(time.Duration(i+1) * time.Hour)
		require.NoError(t, backend.Slots.Create(t.Context(), &model.Slot{
			ID: id, RoomID: "r-101", StartTime: begin, EndTime: begin.Add(time.Hour),
		}))
	}

	clk := clock.NewManual(t0)
	return &harness{handler: New(cfg, backend, nil, clk).Handler(), clock: clk}
}

func (h *harness) do(t *testing.T, method, path, body string, headers ...string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rr := httptest.NewRecorder()
	h.handler.ServeHTTP(rr, req)

	var decoded map[string]any
	_ = json.Unmarshal(rr.Body.Bytes(), &decoded)
	return rr, decoded
}

func data(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	d, ok := body["data"].(map[string]any)
	require.Truef(t, ok, "no data envelope in %v", body)
	return d
}

func TestServer_HoldConfirmFlow(t *testing.T) {
	h := newHarness(t)

	rr, body := h.do(t, http.MethodPost, "/holds", `{"slot_id":"s-1","user_id":"alice"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	created := data(t, body)
	holdID, _ := created["hold_id"].(string)
	require.NotEmpty(t, holdID)
	assert.Equal(t, "HOLD", created["status"])
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))

	rr, _ = h.do(t, http.MethodPost, "/holds", `{"slot_id":"s-1","user_id":"bob"}`)
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr, body = h.do(t, http.MethodGet, "/slots?room_id=r-101&user_id=bob", "")
	require.Equal(t, http.StatusOK, rr.Code)
	list, _ := body["data"].([]any)
	require.Len(t, list, 2)
	assert.Equal(t, "HELD_BY_OTHER", list[0].(map[string]any)["status"])
	assert.Equal(t, "AVAILABLE", list[1].(map[string]any)["status"])

	rr, body = h.do(t, http.MethodPost, "/holds/"+holdID+"/confirm", `{"user_id":"alice"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "s-1", data(t, body)["slot_id"])
	assert.Equal(t, "CONFIRMED", data(t, body)["status"])

	rr, body = h.do(t, http.MethodGet, "/slots?room_id=r-101&user_id=alice", "")
	require.Equal(t, http.StatusOK, rr.Code)
	list, _ = body["data"].([]any)
	assert.Equal(t, "BOOKED_BY_ME", list[0].(map[string]any)["status"])

	rr, _ = h.do(t, http.MethodPost, "/holds", `{"slot_id":"s-1","user_id":"bob"}`)
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestServer_ExpiryAndRelease(t *testing.T) {
	h := newHarness(t)

	_, body := h.do(t, http.MethodPost, "/holds", `{"slot_id":"s-1","user_id":"alice"}`)
	holdID := data(t, body)["hold_id"].(string)

	h.clock.Advance(6 * time.Minute)

	rr, _ := h.do(t, http.MethodPost, "/holds/"+holdID+"/confirm", `{"user_id":"alice"}`)
	assert.Equal(t, http.StatusGone, rr.Code)

	rr, body = h.do(t, http.MethodGet, "/holds/"+holdID, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "EXPIRED", data(t, body)["status"])

	rr, body = h.do(t, http.MethodPost, "/holds", `{"slot_id":"s-1","user_id":"bob"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	bobHold := data(t, body)["hold_id"].(string)

	rr, body = h.do(t, http.MethodPost, "/holds/"+bobHold+"/release", `{"user_id":"bob"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "RELEASED", data(t, body)["status"])

	rr, _ = h.do(t, http.MethodPost, "/holds/"+bobHold+"/release", `{"user_id":"bob"}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestServer_IdempotentCreate(t *testing.T) {
	h := newHarness(t)

	first, body := h.do(t, http.MethodPost, "/holds", `{"slot_id":"s-2","user_id":"alice"}`, "Idempotency-Key", "key-1")
	require.Equal(t, http.StatusCreated, first.Code)
	firstID := data(t, body)["hold_id"]

	second, body := h.do(t, http.MethodPost, "/holds", `{"slot_id":"s-2","user_id":"alice"}`, "Idempotency-Key", "key-1")
	require.Equal(t, http.StatusCreated, second.Code, "a retried create must replay, not conflict")
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, firstID, data(t, body)["hold_id"])

	// bob reusing alice's key on the same slot must reach the engine and lose.
	other, _ := h.do(t, http.MethodPost, "/holds", `{"slot_id":"s-2","user_id":"bob"}`, "Idempotency-Key", "key-1")
	assert.Equal(t, http.StatusConflict, other.Code)
	assert.Empty(t, other.Header().Get("Idempotent-Replayed"))

	fresh, body := h.do(t, http.MethodPost, "/holds", `{"slot_id":"s-1","user_id":"bob"}`, "Idempotency-Key", "key-1")
	require.Equal(t, http.StatusCreated, fresh.Code)
	assert.NotEqual(t, firstID, data(t, body)["hold_id"])
}

func TestServer_EdgeMiddleware(t *testing.T) {
	h := newHarness(t)

	rr, body := h.do(t, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "escape-room-api", body["service"])

	rr, _ = h.do(t, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	req := httptest.NewRequest(http.MethodPost, "/holds", strings.NewReader(`slot_id=s-1`))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	big := `{"slot_id":"s-1","user_id":"` + strings.Repeat("a", 8192) + `"}`
	rr, _ = h.do(t, http.MethodPost, "/holds", big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}
