package shield

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/merceaemil/taxonomy-navigator/kit"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
}

func chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

func TestSecurityHeaders(t *testing.T) {
	h := SecurityHeaders(DefaultHeaders())(okHandler())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	want := map[string]string{
		"X-Content-Type-Options":  "nosniff",
		"X-Frame-Options":         "DENY",
		"Referrer-Policy":         "no-referrer",
		"Content-Security-Policy": "default-src 'none'; frame-ancestors 'none'",
	}
	for k, v := range want {
		if got := rec.Header().Get(k); got != v {
			t.Errorf("%s = %q, want %q", k, got, v)
		}
	}
}

func TestSecurityHeaders_SkipsEmpty(t *testing.T) {
	h := SecurityHeaders(HeaderConfig{XFrameOptions: "SAMEORIGIN"})(okHandler())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Header().Get("Content-Security-Policy") != "" {
		t.Error("empty CSP should not be sent")
	}
	if rec.Header().Get("X-Frame-Options") != "SAMEORIGIN" {
		t.Error("X-Frame-Options not set")
	}
}

func TestHeadToGet(t *testing.T) {
	var method string
	h := HeadToGet(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodHead, "/", nil))
	if method != http.MethodGet {
		t.Errorf("method = %s, want GET", method)
	}
}

func TestMaxBody(t *testing.T) {
	var readErr error
	h := MaxBody(8)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, readErr = io.ReadAll(r.Body)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", strings.NewReader("short")))
	if readErr != nil {
		t.Fatalf("small body: %v", readErr)
	}

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", strings.NewReader("much longer than eight bytes")))
	if readErr == nil {
		t.Fatal("expected an error reading past the limit")
	}
}

func TestTraceID(t *testing.T) {
	var ctxTrace string
	var hasLogger bool
	h := TraceID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxTrace = kit.GetTraceID(r.Context())
		hasLogger = GetLogger(r.Context()) != slog.Default()
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/latest", nil))

	hdr := rec.Header().Get("X-Trace-ID")
	if len(hdr) != 8 {
		t.Errorf("X-Trace-ID = %q, want 8 hex chars", hdr)
	}
	if ctxTrace != hdr {
		t.Errorf("context trace %q != header %q", ctxTrace, hdr)
	}
	if !hasLogger {
		t.Error("no per-request logger")
	}
}

func TestTraceID_KeepsProxyID(t *testing.T) {
	var ctxTrace string
	h := TraceID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxTrace = kit.GetTraceID(r.Context())
	}))

	tests := []struct {
		inbound string
		keep    bool
	}{
		{"edge-4f2a9c", true},
		{"", false},
		{"bad id\n", false},
		{strings.Repeat("a", 65), false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.inbound != "" {
			req.Header.Set(TraceHeader, tt.inbound)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		got := rec.Header().Get(TraceHeader)
		if (got == tt.inbound) != tt.keep {
			t.Errorf("inbound %q: got %q, keep=%v", tt.inbound, got, tt.keep)
		}
		if got == "" || ctxTrace != got {
			t.Errorf("inbound %q: header %q, context %q", tt.inbound, got, ctxTrace)
		}
	}
}

func TestDefaultAPIStack(t *testing.T) {
	h := chain(okHandler(), DefaultAPIStack()...)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
	if rec.Header().Get("X-Trace-ID") == "" || rec.Header().Get("X-Frame-Options") == "" {
		t.Errorf("stack headers missing: %v", rec.Header())
	}
}
