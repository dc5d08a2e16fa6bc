package backend

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"inferd/internal/engine"
	"inferd/internal/engine/llamacpp"
	"inferd/internal/engine/llamaserver"
)

// BuildOptions select and configure the engines to register. cmd maps the
// runtime config onto this struct so the package stays decoupled from the
// config layer.
type BuildOptions struct {
	// Mode is "auto", "server" or "llama". Auto prefers the managed
	// llama-server because it covers the whole model contract; the
	// in-process engine is the fallback.
	Mode string

	// CPUOnly suppresses the accelerated variants even when an
	// accelerator is present.
	CPUOnly bool

	// GPULayers > 0 signals that offload is wanted, which enables the
	// accelerated variants for the managed server.
	GPULayers int

	// Managed llama-server runtime. ServerURL attaches to a running
	// server instead of spawning processes.
	ServerBin    string
	ServerURL    string
	ServerHost   string
	PortStart    int
	PortEnd      int
	SpawnTimeout time.Duration
	ServerArgs   []string

	// OnEvent receives server process lifecycle events.
	OnEvent func(llamaserver.Event)
}

// Report describes what Build found and registered. It is served verbatim
// in the status payload so operators can see why a box runs CPU-only or
// has no engine at all.
type Report struct {
	CgoEngine       bool     `json:"cgo_engine"`
	CUDA            bool     `json:"cuda"`
	Accel           bool     `json:"accel"`
	ServerBin       string   `json:"server_bin,omitempty"`
	ServerAvailable bool     `json:"server_available"`
	Variants        []string `json:"variants"`
	Error           string   `json:"error,omitempty"`
}

// Build wires the usable engines into a fresh registry. The returned
// server engine is non-nil when the managed llama-server was chosen;
// callers use it for process teardown and status. An empty registry is
// not an error here: the report says why, and loads fail with a clear
// message later.
func Build(opts BuildOptions, log zerolog.Logger) (*engine.Registry, *llamaserver.Engine, Report) {
	reg := engine.NewRegistry()
	rep := Report{CgoEngine: llamacpp.Built, CUDA: llamacpp.CUDA}

	accel := !opts.CPUOnly && (opts.GPULayers > 0 || llamacpp.CUDA)
	rep.Accel = accel

	attached := strings.TrimSpace(opts.ServerURL) != ""
	if attached {
		rep.ServerAvailable = true
	} else {
		rep.ServerBin = DiscoverServerBin(opts.ServerBin)
		rep.ServerAvailable = rep.ServerBin != ""
	}

	mode := opts.Mode
	if mode == "" || mode == "auto" {
		switch {
		case rep.ServerAvailable:
			mode = "server"
		case llamacpp.Built:
			mode = "llama"
		default:
			rep.Error = "no inference engine: install llama-server or rebuild with -tags llama"
		}
	}

	var server *llamaserver.Engine
	switch mode {
	case "server":
		if !rep.ServerAvailable {
			rep.Error = "llama-server not found: set server_bin or install llama.cpp"
			break
		}
		server = llamaserver.New(llamaserver.Options{
			Bin:          rep.ServerBin,
			BaseURL:      opts.ServerURL,
			Host:         opts.ServerHost,
			PortStart:    opts.PortStart,
			PortEnd:      opts.PortEnd,
			SpawnTimeout: opts.SpawnTimeout,
			ExtraArgs:    opts.ServerArgs,
			OnEvent:      opts.OnEvent,
			Log:          log,
		})
		reg.Register(engine.CPUModern, server)
		reg.Register(engine.CPULegacy, server)
		if accel {
			reg.Register(engine.AccelModern, server)
			reg.Register(engine.AccelLegacy, server)
		}
	case "llama":
		if !llamacpp.Built {
			rep.Error = "in-process engine not compiled in: rebuild with -tags llama"
			break
		}
		cgo := llamacpp.New()
		reg.Register(engine.CPUModern, cgo)
		// The pinned binding reads the modern format only; legacy files
		// fall through to no-engine for this mode.
		if accel && llamacpp.CUDA {
			reg.Register(engine.AccelModern, cgo)
		}
	}

	for _, v := range reg.Variants() {
		rep.Variants = append(rep.Variants, v.String())
	}
	log.Info().
		Str("mode", mode).
		Bool("cgo", rep.CgoEngine).
		Bool("cuda", rep.CUDA).
		Bool("server", rep.ServerAvailable).
		Str("server_bin", rep.ServerBin).
		Strs("variants", rep.Variants).
		Msg("engine registry built")
	if rep.Error != "" {
		log.Warn().Str("reason", rep.Error).Msg("no engine registered")
	}
	return reg, server, rep
}

// DiscoverServerBin locates a llama-server binary. An explicit path wins
// when it points at a file; otherwise a few conventional install locations
// are tried before PATH. Returns "" when nothing usable exists.
func DiscoverServerBin(explicit string) string {
	if p := strings.TrimSpace(explicit); p != "" {
		if isFile(p) {
			return p
		}
		return ""
	}
	home, _ := os.UserHomeDir()
	candidates := []string{
		filepath.Join(home, "apps", "llama.cpp", "build", "bin", "llama-server"),
		filepath.Join(home, ".local", "bin", "llama-server"),
		"/usr/local/bin/llama-server",
		"/opt/homebrew/bin/llama-server",
	}
	for _, p := range candidates {
		if isFile(p) {
			return p
		}
	}
	if lp, err := exec.LookPath("llama-server"); err == nil {
		return lp
	}
	return ""
}

func isFile(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && !fi.IsDir()
}
