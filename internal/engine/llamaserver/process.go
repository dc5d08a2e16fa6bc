package llamaserver

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"inferd/internal/engine"
)

// proc tracks one spawned llama-server.
type proc struct {
	cmd     *exec.Cmd
	baseURL string
	port    int
	pid     int
	ready   bool
	stderr  *bytes.Buffer

	// waitCh receives the result of cmd.Wait exactly once. Whoever tears
	// the process down consumes it; the buffer keeps the waiter goroutine
	// from leaking when nobody does.
	waitCh chan error
}

// ProcInfo is a point-in-time snapshot of a managed process.
type ProcInfo struct {
	PID   int
	Port  int
	URL   string
	Ready bool
}

// Info reports the managed process for a model path, if any.
func (e *Engine) Info(path string) (ProcInfo, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p := e.procs[path]
	if p == nil {
		return ProcInfo{}, false
	}
	return ProcInfo{PID: p.pid, Port: p.port, URL: p.baseURL, Ready: p.ready}, true
}

// ensureProcess starts (or reuses) the server for path and waits until it
// answers /health. Callers get the base URL of a ready server or an error
// that includes the stderr tail when the process died during startup.
func (e *Engine) ensureProcess(path string, params engine.ModelParams) (string, error) {
	e.mu.Lock()
	existing := e.procs[path]
	e.mu.Unlock()
	if existing != nil {
		if e.isHealthy(existing.baseURL, time.Second) {
			e.mu.Lock()
			if q := e.procs[path]; q != nil {
				q.ready = true
			}
			e.mu.Unlock()
			return existing.baseURL, nil
		}
		// Unhealthy leftover; stop it and spawn fresh.
		e.stop(path)
	}

	port, err := e.pickPort()
	if err != nil {
		return "", err
	}
	baseURL := fmt.Sprintf("http://%s:%d", e.opts.Host, port)

	args := buildArgs(path, e.opts.Host, port, params)
	args = append(args, e.opts.ExtraArgs...)
	cmd := exec.Command(e.opts.Bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("start %s: %w", e.opts.Bin, err)
	}
	pid := cmd.Process.Pid
	e.log.Info().Str("model", path).Int("pid", pid).Str("url", baseURL).Msg("llama-server spawned")
	e.publish("spawn_start", path, map[string]any{"pid": pid, "url": baseURL})

	p := &proc{cmd: cmd, baseURL: baseURL, port: port, pid: pid, stderr: &stderr, waitCh: make(chan error, 1)}
	e.mu.Lock()
	e.procs[path] = p
	e.mu.Unlock()
	go func() { p.waitCh <- cmd.Wait() }()

	deadline := time.Now().Add(e.opts.SpawnTimeout)
	for {
		if time.Now().After(deadline) {
			e.drop(path)
			e.log.Warn().Str("model", path).Int("pid", pid).Msg("llama-server spawn timed out")
			e.publish("spawn_timeout", path, map[string]any{"pid": pid})
			_ = cmd.Process.Kill()
			return "", fmt.Errorf("llama-server not ready within %s: %s", e.opts.SpawnTimeout, baseURL)
		}
		// Surface a crashed process before the next health probe.
		select {
		case werr := <-p.waitCh:
			e.drop(path)
			tail := tailOf(stderr.String(), 4096)
			e.log.Warn().Str("model", path).Int("pid", pid).Err(werr).Msg("llama-server exited during spawn")
			e.publish("spawn_exit", path, map[string]any{"pid": pid})
			if werr != nil {
				return "", fmt.Errorf("llama-server exited early: %v; stderr tail: %s", werr, tail)
			}
			return "", fmt.Errorf("llama-server exited before ready: %s; stderr tail: %s", baseURL, tail)
		default:
		}
		if e.isHealthy(baseURL, time.Second) {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}

	e.mu.Lock()
	if q := e.procs[path]; q != nil {
		q.ready = true
	}
	e.mu.Unlock()
	e.log.Info().Str("model", path).Int("pid", pid).Str("url", baseURL).Msg("llama-server ready")
	e.publish("spawn_ready", path, map[string]any{"pid": pid, "url": baseURL})
	return baseURL, nil
}

// stop terminates the spawned server for path, if any. SIGTERM first,
// then a hard kill after a short grace period.
func (e *Engine) stop(path string) {
	e.mu.Lock()
	p := e.procs[path]
	delete(e.procs, path)
	e.mu.Unlock()
	if p == nil || p.cmd == nil || p.cmd.Process == nil {
		return
	}
	_ = p.cmd.Process.Signal(syscall.SIGTERM)
	select {
	case <-p.waitCh:
	case <-time.After(2 * time.Second):
		_ = p.cmd.Process.Kill()
		<-p.waitCh
	}
	e.log.Info().Str("model", path).Int("pid", p.pid).Msg("llama-server stopped")
	e.publish("spawn_stop", path, map[string]any{"pid": p.pid})
}

// StopAll terminates every managed process. Attach mode has none.
func (e *Engine) StopAll() {
	e.mu.Lock()
	paths := make([]string, 0, len(e.procs))
	for k := range e.procs {
		paths = append(paths, k)
	}
	e.mu.Unlock()
	for _, p := range paths {
		e.stop(p)
	}
}

func (e *Engine) drop(path string) {
	e.mu.Lock()
	delete(e.procs, path)
	e.mu.Unlock()
}

// isHealthy reports whether the server at base answers /health in time.
func (e *Engine) isHealthy(base string, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

func (e *Engine) pickPort() (int, error) {
	if e.opts.PortStart > 0 && e.opts.PortEnd >= e.opts.PortStart {
		return pickPortInRange(e.opts.Host, e.opts.PortStart, e.opts.PortEnd)
	}
	return pickFreePort(e.opts.Host)
}

func pickPortInRange(host string, start, end int) (int, error) {
	for p := start; p <= end; p++ {
		l, err := net.Listen("tcp", fmt.Sprintf("%s:%d", host, p))
		if err != nil {
			continue
		}
		_ = l.Close()
		return p, nil
	}
	return 0, fmt.Errorf("no free port in range %d-%d", start, end)
}

func pickFreePort(host string) (int, error) {
	l, err := net.Listen("tcp", host+":0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	addr := l.Addr().String()
	i := strings.LastIndex(addr, ":")
	if i < 0 {
		return 0, fmt.Errorf("unexpected listen addr %q", addr)
	}
	return strconv.Atoi(addr[i+1:])
}

// buildArgs maps load parameters onto llama-server flags. Flags for
// zero-valued parameters are left out so the server keeps its defaults.
func buildArgs(path, host string, port int, params engine.ModelParams) []string {
	args := []string{"-m", path, "--host", host, "--port", strconv.Itoa(port)}
	if params.CtxSize > 0 {
		args = append(args, "-c", strconv.Itoa(params.CtxSize))
	}
	if params.Threads > 0 {
		args = append(args, "-t", strconv.Itoa(params.Threads))
	}
	if params.BatchSize > 0 {
		args = append(args, "-b", strconv.Itoa(params.BatchSize))
	}
	if params.GPULayers > 0 {
		args = append(args, "-ngl", strconv.Itoa(params.GPULayers))
	}
	if !params.UseMmap {
		args = append(args, "--no-mmap")
	}
	if params.UseMlock {
		args = append(args, "--mlock")
	}
	if params.RopeFreqBase > 0 {
		args = append(args, "--rope-freq-base", formatFloat(params.RopeFreqBase))
	}
	if params.RopeFreqScale > 0 && params.RopeFreqScale != 1 {
		args = append(args, "--rope-freq-scale", formatFloat(params.RopeFreqScale))
	}
	if len(params.TensorSplit) > 0 {
		parts := make([]string, len(params.TensorSplit))
		for i, f := range params.TensorSplit {
			parts[i] = formatFloat(f)
		}
		args = append(args, "--tensor-split", strings.Join(parts, ","))
	}
	if params.Legacy != nil {
		// Only the ggml-era server builds know these flags; a modern build
		// rejects them and the spawn error says so.
		if params.Legacy.GroupedQueryAttn > 0 {
			args = append(args, "--gqa", strconv.Itoa(params.Legacy.GroupedQueryAttn))
		}
		if params.Legacy.RMSNormEps > 0 {
			args = append(args, "--rms-norm-eps", formatFloat(params.Legacy.RMSNormEps))
		}
	}
	return args
}

func formatFloat(f float32) string {
	return strconv.FormatFloat(float64(f), 'g', -1, 32)
}

func tailOf(s string, n int) string {
	if len(s) > n {
		return s[len(s)-n:]
	}
	return s
}
