package httpapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"inferd/internal/backend"
	"inferd/internal/llm"
	"inferd/internal/manager"
	"inferd/pkg/types"
)

type teapotError struct{}

func (teapotError) Error() string   { return "short and stout" }
func (teapotError) StatusCode() int { return http.StatusTeapot }

func TestGenerateErrorStatusMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"model not found", manager.ErrModelNotFound("nope.gguf"), http.StatusNotFound},
		{"manager busy", manager.ErrTooBusy("m.gguf", "queue full"), http.StatusTooManyRequests},
		{"engine busy", llm.ErrBusy("/models/m.gguf"), http.StatusTooManyRequests},
		{"manager unavailable", manager.ErrUnavailable("no engine registered"), http.StatusServiceUnavailable},
		{"no engine for family", backend.ErrNoEngine("legacy"), http.StatusServiceUnavailable},
		{"encoding", llm.ErrEncoding("tokenize failed"), http.StatusBadRequest},
		{"released", llm.ErrReleased("/models/m.gguf"), http.StatusConflict},
		{"self-describing", teapotError{}, http.StatusTeapot},
		{"unknown", io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := NewMux(&mockService{genErr: tc.err})
			w := postGenerate(t, r, `{"prompt":"hi"}`)
			if w.Code != tc.want {
				t.Fatalf("status=%d want %d", w.Code, tc.want)
			}
			var e types.ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &e); err != nil {
				t.Fatalf("error body: %v", err)
			}
			if e.Code != tc.want {
				t.Fatalf("body code=%d want %d", e.Code, tc.want)
			}
			if e.Error == "" {
				t.Fatalf("empty error message")
			}
		})
	}
}

func TestGenerateWrappedErrorStillMaps(t *testing.T) {
	wrapped := fmt.Errorf("generate: %w", manager.ErrTooBusy("m.gguf", "draining"))
	r := NewMux(&mockService{genErr: wrapped})
	w := postGenerate(t, r, `{"prompt":"hi"}`)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestGenerateMidStreamErrorKeepsBody(t *testing.T) {
	svc := &mockService{genFn: func(_ context.Context, _ types.GenerateRequest, w io.Writer, flush func()) error {
		_ = json.NewEncoder(w).Encode(types.TokenLine{Token: "partial"})
		flush()
		return io.ErrUnexpectedEOF
	}}
	r := NewMux(svc)
	w := postGenerate(t, r, `{"prompt":"hi","stream":true}`)

	// Body already started, so no error object may be appended and the
	// 200 status line stands.
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var line types.TokenLine
	if err := json.Unmarshal(w.Body.Bytes(), &line); err != nil {
		t.Fatalf("body should be the single token line: %v (%q)", err, w.Body.String())
	}
	if line.Token != "partial" {
		t.Fatalf("token=%q", line.Token)
	}
}

func TestGenerateClientGoneIsSilent(t *testing.T) {
	svc := &mockService{genFn: func(ctx context.Context, _ types.GenerateRequest, _ io.Writer, _ func()) error {
		<-ctx.Done()
		return context.Canceled
	}}
	r := NewMux(svc)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/generate", strings.NewReader(`{"prompt":"hi"}`))
	req = req.WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Body.Len() != 0 {
		t.Fatalf("expected empty body for a vanished client, got %q", w.Body.String())
	}
}
