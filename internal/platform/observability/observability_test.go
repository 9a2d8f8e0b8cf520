package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cafe-delivery/storefront/internal/platform/requestctx"
)

func TestEventLoggerPrefersRequestLogger(t *testing.T) {
	fallbackCore, fallbackLogs := observer.New(zapcore.InfoLevel)
	requestCore, requestLogs := observer.New(zapcore.InfoLevel)

	logEvent := EventLogger(zap.New(fallbackCore), "cart")

	logEvent(context.Background(), "cart.saved", map[string]any{"lines": 2})
	if fallbackLogs.Len() != 1 {
		t.Fatalf("expected fallback logger to receive event, got %d", fallbackLogs.Len())
	}

	ctx := requestctx.WithLogger(context.Background(), zap.New(requestCore))
	logEvent(ctx, "cart.cleared", nil)
	if requestLogs.Len() != 1 {
		t.Fatalf("expected request logger to receive event, got %d", requestLogs.Len())
	}
	entry := requestLogs.All()[0]
	if entry.Message != "cart.cleared" {
		t.Fatalf("unexpected message %q", entry.Message)
	}
	if entry.ContextMap()["component"] != "cart" {
		t.Fatalf("expected component field, got %v", entry.ContextMap())
	}
}

func TestParseCloudTraceContext(t *testing.T) {
	info, spanCtx, ok := parseCloudTraceContext("105445aa7843bc8bf206b12000100000/1;o=1")
	if !ok {
		t.Fatalf("expected header to parse")
	}
	if info.TraceID != "105445aa7843bc8bf206b12000100000" {
		t.Fatalf("unexpected trace id %s", info.TraceID)
	}
	if !info.Sampled || !spanCtx.IsSampled() {
		t.Fatalf("expected sampled span context")
	}
	if !spanCtx.IsRemote() {
		t.Fatalf("expected remote span context")
	}

	if _, _, ok := parseCloudTraceContext("garbage"); ok {
		t.Fatalf("expected malformed header to be rejected")
	}
}

func TestRecoveryMiddlewareWritesEnvelope(t *testing.T) {
	handler := RecoveryMiddleware(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/cart", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected json content type, got %s", ct)
	}
}
