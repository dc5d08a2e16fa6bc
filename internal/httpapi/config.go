package httpapi

import (
	"sync"
	"time"

	"github.com/go-chi/cors"
)

const defaultMaxBodyBytes = 1 << 20

var (
	cfgMu        sync.RWMutex
	bodyLimit    int64 = defaultMaxBodyBytes
	genTimeout   time.Duration
	corsSettings *cors.Options
)

// SetMaxBodyBytes caps the request body size for POST /v1/generate.
// Zero or negative restores the default of 1 MiB.
func SetMaxBodyBytes(n int64) {
	cfgMu.Lock()
	defer cfgMu.Unlock()
	if n <= 0 {
		n = defaultMaxBodyBytes
	}
	bodyLimit = n
}

func maxBodyBytes() int64 {
	cfgMu.RLock()
	defer cfgMu.RUnlock()
	return bodyLimit
}

// SetGenerateTimeoutSeconds bounds a single generation, streaming
// included. Zero disables the bound.
func SetGenerateTimeoutSeconds(secs int) {
	cfgMu.Lock()
	defer cfgMu.Unlock()
	if secs <= 0 {
		genTimeout = 0
		return
	}
	genTimeout = time.Duration(secs) * time.Second
}

func generateTimeout() time.Duration {
	cfgMu.RLock()
	defer cfgMu.RUnlock()
	return genTimeout
}

// SetCORSOptions enables CORS with the given options. Call before
// NewMux; nil disables the middleware.
func SetCORSOptions(opts *cors.Options) {
	cfgMu.Lock()
	defer cfgMu.Unlock()
	corsSettings = opts
}

func corsOptions() *cors.Options {
	cfgMu.RLock()
	defer cfgMu.RUnlock()
	return corsSettings
}
