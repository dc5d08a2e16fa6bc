package httpapi

import (
	"bytes"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"":      LevelOff,
		"off":   LevelOff,
		"none":  LevelOff,
		"error": LevelError,
		"info":  LevelInfo,
		"DEBUG": LevelDebug,
		"1":     LevelDebug,
		"true":  LevelDebug,
		"weird": LevelInfo,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestRequestLogLevelOverrides(t *testing.T) {
	r := httptest.NewRequest("GET", "/x?log=debug", nil)
	if got := requestLogLevel(r); got != LevelDebug {
		t.Fatalf("query override failed: %v", got)
	}

	r = httptest.NewRequest("GET", "/x?log=1", nil)
	if got := requestLogLevel(r); got != LevelDebug {
		t.Fatalf("numeric query override failed: %v", got)
	}

	r = httptest.NewRequest("GET", "/x", nil)
	r.Header.Set("X-Log-Level", "error")
	if got := requestLogLevel(r); got != LevelError {
		t.Fatalf("header override failed: %v", got)
	}

	r = httptest.NewRequest("GET", "/x", nil)
	if got := requestLogLevel(r); got != LevelOff {
		t.Fatalf("no override should be off: %v", got)
	}
}

func TestEffectiveLogLevelTakesMax(t *testing.T) {
	old := configuredLevel()
	defer SetLogLevel(old)

	SetLogLevel(LevelError)
	r := httptest.NewRequest("GET", "/x?log=debug", nil)
	if got := effectiveLogLevel(r); got != LevelDebug {
		t.Fatalf("request should raise level: %v", got)
	}

	r = httptest.NewRequest("GET", "/x?log=off", nil)
	if got := effectiveLogLevel(r); got != LevelError {
		t.Fatalf("request must not lower level: %v", got)
	}
}

func TestLoggingLineWriterEchoesCompleteLines(t *testing.T) {
	var out, logs bytes.Buffer
	lw := newLoggingLineWriter(&out, zerolog.New(&logs))

	if _, err := lw.Write([]byte(`{"token":"a"}` + "\n" + `{"tok`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := strings.Count(logs.String(), "generate chunk"); got != 1 {
		t.Fatalf("expected 1 echoed line, got %d: %s", got, logs.String())
	}

	if _, err := lw.Write([]byte(`en":"b"}` + "\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := strings.Count(logs.String(), "generate chunk"); got != 2 {
		t.Fatalf("expected 2 echoed lines, got %d", got)
	}

	want := `{"token":"a"}` + "\n" + `{"token":"b"}` + "\n"
	if out.String() != want {
		t.Fatalf("passthrough mismatch:\n got %q\nwant %q", out.String(), want)
	}
}
