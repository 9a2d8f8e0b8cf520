package idempotency

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cafe-delivery/storefront/internal/platform/auth"
	"github.com/cafe-delivery/storefront/internal/platform/requestctx"
	"github.com/cafe-delivery/storefront/internal/platform/storage"
)

var fixedTime = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

func newSubmitRequest(ctx context.Context, key, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/checkout/submit", bytes.NewBufferString(body)).WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	return req
}

func visitorContext(id string) context.Context {
	return requestctx.WithVisitor(context.Background(), id)
}

func TestMiddleware_MissingHeader(t *testing.T) {
	handlerCalled := false
	handler := Middleware(NewMemoryStore())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		handlerCalled = true
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, newSubmitRequest(visitorContext("v1"), "", `{}`))

	if handlerCalled {
		t.Fatal("handler should not be invoked when header is missing")
	}
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	assertErrorResponse(t, rr.Body.Bytes(), "idempotency_key_required")
}

func TestMiddleware_OptionalKeyPassesThrough(t *testing.T) {
	calls := 0
	handler := Middleware(NewMemoryStore(), WithOptionalKey())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusAccepted)
	}))

	for i := 0; i < 2; i++ {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, newSubmitRequest(visitorContext("v1"), "", `{}`))
		if rr.Code != http.StatusAccepted {
			t.Fatalf("unexpected status %d", rr.Code)
		}
	}
	if calls != 2 {
		t.Fatalf("expected handler to run for every unkeyed request, got %d", calls)
	}
}

func TestMiddleware_ReplaysStoredResponse(t *testing.T) {
	calls := 0
	handler := Middleware(NewMemoryStore(), WithClock(func() time.Time { return fixedTime }))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"order_id":42}`))
	}))

	ctx := visitorContext("v1")
	rr1 := httptest.NewRecorder()
	handler.ServeHTTP(rr1, newSubmitRequest(ctx, "submit-1", `{"payment_method":"cash"}`))
	rr2 := httptest.NewRecorder()
	handler.ServeHTTP(rr2, newSubmitRequest(ctx, "submit-1", `{"payment_method":"cash"}`))

	if calls != 1 {
		t.Fatalf("expected handler once, got %d", calls)
	}
	if rr2.Code != http.StatusCreated {
		t.Fatalf("expected replayed 201, got %d", rr2.Code)
	}
	if rr2.Header().Get(replayHeaderName) != "true" {
		t.Fatal("expected replay header")
	}
	if rr2.Body.String() != rr1.Body.String() {
		t.Fatalf("expected body %s, got %s", rr1.Body.String(), rr2.Body.String())
	}
}

func TestMiddleware_KeysAreScopedPerVisitor(t *testing.T) {
	calls := 0
	handler := Middleware(NewMemoryStore())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), newSubmitRequest(visitorContext("v1"), "shared", `{}`))
	handler.ServeHTTP(httptest.NewRecorder(), newSubmitRequest(visitorContext("v2"), "shared", `{}`))

	userCtx := auth.WithIdentity(visitorContext("v3"), &auth.Identity{UserID: "7"})
	handler.ServeHTTP(httptest.NewRecorder(), newSubmitRequest(userCtx, "shared", `{}`))

	if calls != 3 {
		t.Fatalf("expected one execution per requester, got %d", calls)
	}
}

func TestMiddleware_ConflictingFingerprintReturnsConflict(t *testing.T) {
	handler := Middleware(NewMemoryStore())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	ctx := visitorContext("v1")
	handler.ServeHTTP(httptest.NewRecorder(), newSubmitRequest(ctx, "same-key", `{"a":1}`))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, newSubmitRequest(ctx, "same-key", `{"a":2}`))
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected conflict, got %d", rr.Code)
	}
	assertErrorResponse(t, rr.Body.Bytes(), "idempotency_key_conflict")
}

func TestMiddleware_ServerErrorsAreNotCached(t *testing.T) {
	calls := 0
	handler := Middleware(NewMemoryStore())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))

	ctx := visitorContext("v1")
	rr1 := httptest.NewRecorder()
	handler.ServeHTTP(rr1, newSubmitRequest(ctx, "retry", `{}`))
	rr2 := httptest.NewRecorder()
	handler.ServeHTTP(rr2, newSubmitRequest(ctx, "retry", `{}`))

	if rr1.Code != http.StatusBadGateway || rr2.Code != http.StatusCreated {
		t.Fatalf("unexpected statuses %d then %d", rr1.Code, rr2.Code)
	}
	if calls != 2 {
		t.Fatalf("expected retry to reach handler, got %d calls", calls)
	}
}

func TestMiddleware_SkipsSafeMethods(t *testing.T) {
	calls := 0
	handler := Middleware(NewMemoryStore())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/checkout", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if calls != 1 {
		t.Fatalf("expected GET to bypass middleware")
	}
}

func TestKVStore_PendingAndExpiry(t *testing.T) {
	store := NewKVStore(storage.NewMemoryStore())
	ctx := context.Background()

	res, err := store.Reserve(ctx, "k", "fp", fixedTime, time.Minute)
	if err != nil || res.State != ReservationStateNew {
		t.Fatalf("expected new reservation, got %+v, %v", res, err)
	}
	res, err = store.Reserve(ctx, "k", "fp", fixedTime.Add(time.Second), time.Minute)
	if err != nil || res.State != ReservationStatePending {
		t.Fatalf("expected pending reservation, got %+v, %v", res, err)
	}
	if _, err := store.Reserve(ctx, "k", "other", fixedTime.Add(time.Second), time.Minute); !errors.Is(err, ErrFingerprintMismatch) {
		t.Fatalf("expected fingerprint mismatch, got %v", err)
	}
	res, err = store.Reserve(ctx, "k", "other", fixedTime.Add(2*time.Minute), time.Minute)
	if err != nil || res.State != ReservationStateNew {
		t.Fatalf("expected expired record to be replaced, got %+v, %v", res, err)
	}
}

func assertErrorResponse(t *testing.T, body []byte, code string) {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if payload["error"] != code {
		t.Fatalf("expected error code %s, got %v", code, payload["error"])
	}
}
