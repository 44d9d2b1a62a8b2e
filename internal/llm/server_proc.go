package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"companiond/internal/catalog"
)

const stderrTail = 4096

// tailBuffer keeps the last n bytes written to it. The server logs to
// stderr for its whole lifetime, so only the tail is retained.
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
	n   int
}

func newTailBuffer(n int) *tailBuffer {
	return &tailBuffer{buf: make([]byte, 0, n), n: n}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	written := len(p)
	if len(p) >= b.n {
		b.buf = append(b.buf[:0], p[len(p)-b.n:]...)
		return written, nil
	}
	if over := len(b.buf) + len(p) - b.n; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
	}
	b.buf = append(b.buf, p...)
	return written, nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}

// serverProc is one spawned llama-server.
type serverProc struct {
	cmd     *exec.Cmd
	pid     int
	baseURL string
	done    chan struct{} // closed once the process has been reaped
}

// spawn starts llama-server for path and waits until it answers /health.
func (r *serverRuntime) spawn(ctx context.Context, path string, opts LoadOptions) (*serverProc, error) {
	bin := strings.TrimSpace(r.cfg.Bin)
	if bin == "" {
		bin = discoverLlamaBin()
	}
	if bin == "" {
		return nil, ErrDependencyUnavailable("llama-server binary not found (set llama_bin)")
	}
	host := r.cfg.Host
	var (
		port int
		err  error
	)
	if r.cfg.PortStart > 0 && r.cfg.PortEnd >= r.cfg.PortStart {
		port, err = pickPortInRange(host, r.cfg.PortStart, r.cfg.PortEnd)
	} else {
		port, err = pickFreePort(host)
	}
	if err != nil {
		return nil, err
	}
	threads := opts.Threads
	if threads <= 0 {
		threads = r.cfg.Threads
	}
	args := serverArgs(path, host, port, threads, opts)
	args = append(args, r.cfg.ExtraArgs...)

	cmd := exec.Command(bin, args...)
	cmd.Dir = filepath.Dir(path)
	stderr := newTailBuffer(stderrTail)
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start llama-server: %w", err)
	}
	p := &serverProc{
		cmd:     cmd,
		pid:     cmd.Process.Pid,
		baseURL: fmt.Sprintf("http://%s:%d", host, port),
		done:    make(chan struct{}),
	}
	log := r.cfg.Logger
	log.Info().Str("model", path).Int("pid", p.pid).Str("host", host).Int("port", port).Msg("spawn_start")

	// Early-exit watcher: surface a crash before readiness.
	var waitErr error
	go func() {
		waitErr = cmd.Wait()
		close(p.done)
	}()

	deadline := time.NewTimer(r.cfg.ReadyTimeout)
	defer deadline.Stop()
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	for {
		hctx, cancel := context.WithTimeout(ctx, time.Second)
		herr := checkHealth(hctx, r.http, p.baseURL)
		cancel()
		if herr == nil {
			log.Info().Str("model", path).Int("pid", p.pid).Str("url", p.baseURL).Msg("spawn_ready")
			return p, nil
		}
		select {
		case <-p.done:
			tail := stderr.String()
			log.Warn().Str("model", path).Int("pid", p.pid).AnErr("exit", waitErr).Msg("spawn_exit")
			if waitErr != nil {
				return nil, fmt.Errorf("llama-server exited early: %v; stderr tail: %s", waitErr, tail)
			}
			return nil, fmt.Errorf("llama-server exited before ready: %s", p.baseURL)
		case <-ctx.Done():
			p.stop()
			return nil, ctx.Err()
		case <-deadline.C:
			p.stop()
			log.Warn().Str("model", path).Int("pid", p.pid).Msg("spawn_timeout")
			return nil, fmt.Errorf("llama-server not ready in time: %s", p.baseURL)
		case <-tick.C:
		}
	}
}

func serverArgs(path, host string, port, threads int, opts LoadOptions) []string {
	args := []string{
		"-m", path,
		"--host", host,
		"--port", strconv.Itoa(port),
	}
	if opts.ContextSize > 0 {
		args = append(args, "-c", strconv.Itoa(opts.ContextSize))
	}
	if threads > 0 {
		args = append(args, "-t", strconv.Itoa(threads))
	}
	switch opts.Backend {
	case catalog.BackendAccelerated:
		args = append(args, "-ngl", "999")
	case catalog.BackendDefault:
		args = append(args, "-ngl", "0")
	}
	// top-k has no field in the chat schema, so it is fixed per process.
	s := opts.Sampling
	if s.TopK > 0 {
		args = append(args, "--top-k", strconv.Itoa(s.TopK))
	}
	if s.Temperature > 0 {
		args = append(args, "--temp", strconv.FormatFloat(float64(s.Temperature), 'f', -1, 32))
	}
	if s.TopP > 0 {
		args = append(args, "--top-p", strconv.FormatFloat(float64(s.TopP), 'f', -1, 32))
	}
	return args
}

// stop sends SIGTERM, then kills after a grace period.
func (p *serverProc) stop() {
	if p == nil || p.cmd == nil || p.cmd.Process == nil {
		return
	}
	_ = p.cmd.Process.Signal(syscall.SIGTERM)
	select {
	case <-p.done:
	case <-time.After(2 * time.Second):
		_ = p.cmd.Process.Kill()
		<-p.done
	}
}

func pickFreePort(host string) (int, error) {
	l, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		return 0, err
	}
	defer l.Close()
	addr, ok := l.Addr().(*net.TCPAddr)
	if !ok {
		return 0, fmt.Errorf("unexpected addr: %s", l.Addr())
	}
	return addr.Port, nil
}

func pickPortInRange(host string, start, end int) (int, error) {
	for p := start; p <= end; p++ {
		l, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(p)))
		if err == nil {
			_ = l.Close()
			return p, nil
		}
	}
	return 0, errors.New("no free port in range")
}

// discoverLlamaBin looks for llama-server in common install locations, then PATH.
func discoverLlamaBin() string {
	home, _ := os.UserHomeDir()
	candidates := []string{
		filepath.Join(home, "apps", "llama.cpp", "build", "bin", "llama-server"),
		filepath.Join(home, ".local", "bin", "llama-server"),
		"/usr/local/bin/llama-server",
		"/opt/homebrew/bin/llama-server",
	}
	for _, p := range candidates {
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			return p
		}
	}
	if lp, err := exec.LookPath("llama-server"); err == nil {
		return lp
	}
	return ""
}
