package logging

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
)

func TestCompactHandlerFormat(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewCompactHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	log.With("component", "store").WithGroup("edge").Info("edge inserted", "id", "e1", "weight", 0.5)

	out := buf.String()
	if !strings.HasPrefix(out, "[INFO]  ") {
		t.Errorf("Expected INFO prefix, got %q", out)
	}
	for _, want := range []string{"edge inserted |", "component=store", "edge.id=e1", "edge.weight=0.5"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in %q", want, out)
		}
	}
}

func TestCompactHandlerLevels(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewCompactHandler(&buf, &slog.HandlerOptions{Level: LevelTrace}))

	log.Log(context.Background(), LevelTrace, "walking")
	log.Debug("detail")
	log.Warn("careful", "msg", "two words")

	out := buf.String()
	if !strings.Contains(out, "[TRACE]") || !strings.Contains(out, "[DEBUG]") || !strings.Contains(out, "[WARN]") {
		t.Errorf("Expected trace, debug and warn lines, got %q", out)
	}
	if !strings.Contains(out, `msg="two words"`) {
		t.Errorf("Expected quoted value, got %q", out)
	}
}

func TestCompactHandlerFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewCompactHandler(&buf, nil))

	log.Debug("hidden")

	if buf.Len() != 0 {
		t.Errorf("Debug should be filtered at default level, got %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := []struct {
		name    string
		count   int
		want    slog.Level
		wantErr bool
	}{
		{"", 0, slog.LevelInfo, false},
		{"", 1, slog.LevelDebug, false},
		{"", 3, LevelTrace, false},
		{"WARN", 0, slog.LevelWarn, false},
		{"error", 2, slog.LevelError, false},
		{"loud", 0, slog.LevelInfo, true},
	}

	for _, c := range cases {
		got, err := ParseLevel(c.name, c.count)
		if (err != nil) != c.wantErr {
			t.Errorf("ParseLevel(%q, %d) error = %v", c.name, c.count, err)
		}
		if got != c.want {
			t.Errorf("ParseLevel(%q, %d) = %v, want %v", c.name, c.count, got, c.want)
		}
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	var buf bytes.Buffer
	Configure(&buf, slog.LevelInfo, false)
	defer Configure(&bytes.Buffer{}, slog.LevelInfo, false)

	var seen string
	handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/edges", nil)
	req.Header.Set("X-Request-ID", "fixed-request-id")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if seen != "fixed-request-id" {
		t.Errorf("Expected request id in context, got %q", seen)
	}
	if rec.Header().Get("X-Request-ID") != "fixed-request-id" {
		t.Error("Expected request id echoed in response header")
	}
	if !strings.Contains(buf.String(), "request rejected") || !strings.Contains(buf.String(), "status=418") {
		t.Errorf("Expected rejected request logged, got %q", buf.String())
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	Configure(&bytes.Buffer{}, slog.LevelInfo, false)

	handler := RecoveryMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500, got %d", rec.Code)
	}
}

func TestTraceContextCarriesRequestID(t *testing.T) {
	var buf bytes.Buffer
	Configure(&buf, LevelTrace, false)
	t.Cleanup(func() { Configure(os.Stdout, slog.LevelInfo, false) })

	TraceContext(WithRequestID(context.Background(), "req-7"), "validating", "id", "e1")

	out := buf.String()
	if !strings.Contains(out, "[TRACE]") || !strings.Contains(out, "requestID=req-7") {
		t.Errorf("Expected trace line with request id, got %q", out)
	}
}
