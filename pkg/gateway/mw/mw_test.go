package mw

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/serenova-ai/serenova/pkg/core"
	"github.com/serenova-ai/serenova/pkg/gateway/auth"
)

type staticVerifier map[string]string

func (v staticVerifier) Verify(ctx context.Context, idToken string) (*auth.Principal, error) {
	userID, ok := v[idToken]
	if !ok {
		return nil, core.NewAuthenticationError("invalid token")
	}
	return &auth.Principal{UserID: userID}, nil
}

func TestRequestIDGeneratedAndEchoed(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = RequestIDFrom(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if seen == "" || !strings.HasPrefix(seen, "req_") {
		t.Fatalf("request id = %q", seen)
	}
	if rec.Header().Get("X-Request-ID") != seen {
		t.Fatalf("header = %q, ctx = %q", rec.Header().Get("X-Request-ID"), seen)
	}
}

func TestRequestIDPreservesClientValue(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = RequestIDFrom(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req_client")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if seen != "req_client" {
		t.Fatalf("request id = %q, want req_client", seen)
	}
}

func TestAuthMissingBearerIs401(t *testing.T) {
	h := Auth(staticVerifier{"tok": "user-1"}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler reached without credentials")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/chats", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
	var envelope struct {
		Error *core.Error `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if envelope.Error == nil || envelope.Error.Type != core.ErrAuthentication {
		t.Fatalf("error = %+v", envelope.Error)
	}
}

func TestAuthInvalidTokenIs401(t *testing.T) {
	h := Auth(staticVerifier{"tok": "user-1"}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler reached with bad token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/chats", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestAuthValidTokenSetsPrincipal(t *testing.T) {
	var principal *auth.Principal
	h := Auth(staticVerifier{"tok": "user-1"}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, _ = auth.PrincipalFrom(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/chats", nil)
	req.Header.Set("Authorization", "Bearer tok")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if principal == nil || principal.UserID != "user-1" {
		t.Fatalf("principal = %+v", principal)
	}
}

func TestRecoverTurnsPanicInto500(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	h := Recover(logger, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestAccessLogIncludesStatusAndPath(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	h := AccessLog(logger, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/chats", nil))

	out := buf.String()
	if !strings.Contains(out, "status=418") || !strings.Contains(out, "path=/api/chats") {
		t.Fatalf("log line = %q", out)
	}
}

func TestParseBearer(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, ok := auth.ParseBearer(req); ok {
		t.Fatal("expected no token")
	}
	req.Header.Set("Authorization", "Basic abc")
	if _, ok := auth.ParseBearer(req); ok {
		t.Fatal("expected non-bearer scheme to be rejected")
	}
	req.Header.Set("Authorization", "Bearer  tok  ")
	token, ok := auth.ParseBearer(req)
	if !ok || token != "tok" {
		t.Fatalf("token = %q ok=%v", token, ok)
	}
}

type requestObservation struct {
	method, route, status string
}

type fakeRequestRecorder struct {
	calls []requestObservation
}

func (f *fakeRequestRecorder) RecordRequest(method, route, status string, duration time.Duration) {
	f.calls = append(f.calls, requestObservation{method: method, route: route, status: status})
}

func TestMetricsObservesCompletedRequests(t *testing.T) {
	rec := &fakeRequestRecorder{}
	handler := Metrics(rec, func(r *http.Request) string { return "GET /api/chats/{id}" },
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}))

	req := httptest.NewRequest(http.MethodGet, "/api/chats/abc123", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if len(rec.calls) != 1 {
		t.Fatalf("recorded %d observations, want 1", len(rec.calls))
	}
	got := rec.calls[0]
	if got.method != http.MethodGet || got.route != "GET /api/chats/{id}" || got.status != "418" {
		t.Fatalf("observation = %+v", got)
	}
}

func TestMetricsNilRecorderPassesThrough(t *testing.T) {
	handler := Metrics(nil, func(r *http.Request) string { return "" },
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("status=%d", rr.Code)
	}
}
