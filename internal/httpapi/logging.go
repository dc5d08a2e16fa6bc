package httpapi

import (
	"bytes"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// LogLevel controls how chatty the generate handler is. The server
// default comes from INFERD_LOG_LEVEL; a single request can raise it
// with ?log=<level> or an X-Log-Level header, never lower it.
type LogLevel int

const (
	LevelOff LogLevel = iota
	LevelError
	LevelInfo
	LevelDebug
)

func parseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return LevelOff
	case "off", "none", "0":
		return LevelOff
	case "error":
		return LevelError
	case "info":
		return LevelInfo
	case "debug", "1", "true":
		return LevelDebug
	default:
		return LevelInfo
	}
}

var (
	logMu       sync.RWMutex
	logger      = zerolog.New(os.Stderr).With().Timestamp().Logger()
	serverLevel = parseLevel(os.Getenv("INFERD_LOG_LEVEL"))
)

// SetLogger replaces the package logger.
func SetLogger(l zerolog.Logger) {
	logMu.Lock()
	defer logMu.Unlock()
	logger = l
}

// SetLogLevel sets the server-wide request log level.
func SetLogLevel(l LogLevel) {
	logMu.Lock()
	defer logMu.Unlock()
	serverLevel = l
}

func zlog() zerolog.Logger {
	logMu.RLock()
	defer logMu.RUnlock()
	return logger
}

func configuredLevel() LogLevel {
	logMu.RLock()
	defer logMu.RUnlock()
	return serverLevel
}

// requestLogLevel reads the per-request override, if any.
func requestLogLevel(r *http.Request) LogLevel {
	if q := r.URL.Query().Get("log"); q != "" {
		return parseLevel(q)
	}
	if h := r.Header.Get("X-Log-Level"); h != "" {
		return parseLevel(h)
	}
	return LevelOff
}

func effectiveLogLevel(r *http.Request) LogLevel {
	lvl := configuredLevel()
	if req := requestLogLevel(r); req > lvl {
		lvl = req
	}
	return lvl
}

// loggingLineWriter tees complete NDJSON lines to the debug log while
// passing every byte through to the response. Partial lines are held
// until their newline arrives.
type loggingLineWriter struct {
	w   io.Writer
	log zerolog.Logger
	buf bytes.Buffer
}

func newLoggingLineWriter(w io.Writer, log zerolog.Logger) *loggingLineWriter {
	return &loggingLineWriter{w: w, log: log}
}

func (lw *loggingLineWriter) Write(p []byte) (int, error) {
	n, err := lw.w.Write(p)
	if n > 0 {
		lw.buf.Write(p[:n])
		for {
			idx := bytes.IndexByte(lw.buf.Bytes(), '\n')
			if idx < 0 {
				break
			}
			line := string(lw.buf.Next(idx + 1))
			lw.log.Debug().Str("line", strings.TrimRight(line, "\n")).Msg("generate chunk")
		}
	}
	return n, err
}
