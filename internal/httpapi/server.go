package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"inferd/pkg/types"
)

// Service is the surface the HTTP layer needs from the model manager.
type Service interface {
	ListModels() []types.Model
	Status() types.StatusResponse
	Generate(ctx context.Context, req types.GenerateRequest, w io.Writer, flush func()) error
	Ready() bool
}

// NewMux builds the router: generation plus the read-only surface
// (models, status, health, metrics, optional swagger UI).
func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	if opts := corsOptions(); opts != nil {
		r.Use(cors.Handler(*opts))
	}
	r.Use(middleware.Compress(5))
	r.Use(noSniff)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		if !svc.Ready() {
			writeJSONError(w, "loading", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/models", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(types.ModelsResponse{Models: svc.ListModels()})
		})
		r.Get("/status", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(svc.Status())
		})
		r.Post("/generate", handleGenerate(svc))
	})

	MountSwagger(r)
	return r
}

func noSniff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		next.ServeHTTP(w, r)
	})
}

// handleGenerate decodes the request, picks the response framing
// (NDJSON for streams, one JSON object otherwise) and hands the
// writer to the service. The service owns the payload; this layer
// owns framing, limits and error mapping.
//
//	@Summary		Generate a completion
//	@Description	Generates text for a prompt, streaming NDJSON token lines when stream=true.
//	@Accept			json
//	@Produce		json
//	@Param			request	body		types.GenerateRequest	true	"generation request"
//	@Success		200		{object}	types.GenerateResponse
//	@Failure		400		{object}	types.ErrorResponse
//	@Failure		404		{object}	types.ErrorResponse
//	@Failure		429		{object}	types.ErrorResponse
//	@Failure		503		{object}	types.ErrorResponse
//	@Router			/v1/generate [post]
func handleGenerate(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "application/json") {
			writeJSONError(w, "unsupported media type, use application/json", http.StatusUnsupportedMediaType)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes())
		var req types.GenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			var tooBig *http.MaxBytesError
			if errors.As(err, &tooBig) {
				writeJSONError(w, "request body too large", http.StatusBadRequest)
				return
			}
			writeJSONError(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(req.Prompt) == "" {
			writeJSONError(w, "prompt is required", http.StatusBadRequest)
			return
		}

		ctx, cancel := joinContexts(r.Context(), serverBaseCtx())
		defer cancel()
		if d := generateTimeout(); d > 0 {
			ctx, cancel = context.WithTimeout(ctx, d)
			defer cancel()
		}

		level := effectiveLogLevel(r)
		start := time.Now()
		if level >= LevelInfo {
			lg := zlog()
			lg.Info().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("model", req.Model).
				Bool("stream", req.Stream).
				Int("prompt_chars", len(req.Prompt)).
				Msg("generate begin")
		}

		if req.Stream {
			w.Header().Set("Content-Type", "application/x-ndjson")
		} else {
			w.Header().Set("Content-Type", "application/json")
		}

		track := &trackingWriter{w: w}
		var out io.Writer = track
		if level >= LevelDebug {
			out = newLoggingLineWriter(track, zlog())
		}
		flush := func() {
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		}

		err := svc.Generate(ctx, req, out, flush)
		if err != nil {
			// A vanished client is not a server error. The manager has
			// already kept whatever partial output it produced.
			if ctx.Err() != nil && errors.Is(err, context.Canceled) {
				return
			}
			status := statusForError(err)
			if status == http.StatusTooManyRequests {
				IncrementBackpressure()
			}
			if level >= LevelError {
				lg := zlog()
				lg.Error().
					Str("request_id", middleware.GetReqID(r.Context())).
					Str("model", req.Model).
					Int("status", status).
					Err(err).
					Msg("generate failed")
			}
			// Once body bytes are out the status line is gone; the broken
			// stream itself tells the client the generation died.
			if track.n == 0 {
				writeJSONError(w, err.Error(), status)
			}
			return
		}

		if level >= LevelInfo {
			lg := zlog()
			lg.Info().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("model", req.Model).
				Dur("elapsed", time.Since(start)).
				Msg("generate done")
		}
	}
}

// trackingWriter counts bytes so the handler knows whether the
// response body has started.
type trackingWriter struct {
	w http.ResponseWriter
	n int64
}

func (t *trackingWriter) Write(p []byte) (int, error) {
	n, err := t.w.Write(p)
	t.n += int64(n)
	return n, err
}
