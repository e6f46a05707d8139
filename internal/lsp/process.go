package lsp

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// ProcessConfig defines how to launch the sourcekit-lsp backend.
type ProcessConfig struct {
	// Command is the executable to run.
	Command string

	// Args are command-line arguments.
	Args []string

	// Env are additional environment variables.
	Env map[string]string

	// StartupProbe is how long to watch for an immediate exit after spawn
	// before declaring the process started. Default: 100ms.
	StartupProbe time.Duration
}

// DefaultProcessConfig returns the standard way to launch sourcekit-lsp.
// On macOS the toolchain copy is resolved through xcrun.
func DefaultProcessConfig() ProcessConfig {
	if runtime.GOOS == "darwin" {
		return ProcessConfig{
			Command:      "xcrun",
			Args:         []string{"sourcekit-lsp"},
			StartupProbe: 100 * time.Millisecond,
		}
	}
	return ProcessConfig{
		Command:      "sourcekit-lsp",
		StartupProbe: 100 * time.Millisecond,
	}
}

// Process owns one live sourcekit-lsp OS process and its stdio pipes.
type Process struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser

	done    chan struct{}
	exitErr error
	exited  atomic.Bool

	stdinOnce sync.Once
	killOnce  sync.Once
}

// StartProcess launches the backend binary with working directory root.
// It fails with ErrSpawn if the binary is missing or the process exits
// within the startup probe window.
func StartProcess(cfg ProcessConfig, root string) (*Process, error) {
	if cfg.StartupProbe == 0 {
		cfg.StartupProbe = 100 * time.Millisecond
	}

	if _, err := exec.LookPath(cfg.Command); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSpawn, cfg.Command, err)
	}

	cmd := exec.Command(cfg.Command, cfg.Args...)
	cmd.Dir = root
	cmd.Env = os.Environ()
	for k, v := range cfg.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stdin pipe: %v", ErrSpawn, err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("%w: stdout pipe: %v", ErrSpawn, err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		stdin.Close()
		stdout.Close()
		return nil, fmt.Errorf("%w: stderr pipe: %v", ErrSpawn, err)
	}

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdout.Close()
		stderr.Close()
		return nil, fmt.Errorf("%w: %v", ErrSpawn, err)
	}

	p := &Process{
		cmd:    cmd,
		stdin:  stdin,
		stdout: stdout,
		done:   make(chan struct{}),
	}

	// sourcekit-lsp logs to stderr. The pipe must be drained continuously or
	// the child blocks once the kernel buffer fills and every request stalls.
	go func() {
		io.Copy(io.Discard, stderr)
	}()

	go func() {
		err := cmd.Wait()
		p.exitErr = err
		p.exited.Store(true)
		close(p.done)
	}()

	// Catch binaries that accept the spawn and die immediately (missing
	// toolchain, bad arguments) so the caller gets ErrSpawn rather than a
	// handshake timeout much later.
	select {
	case <-p.done:
		return nil, fmt.Errorf("%w: exited immediately: %v", ErrSpawn, p.exitErr)
	case <-time.After(cfg.StartupProbe):
	}

	return p, nil
}

// Stdin returns the process's stdin pipe.
func (p *Process) Stdin() io.WriteCloser { return p.stdin }

// Stdout returns the process's stdout pipe.
func (p *Process) Stdout() io.ReadCloser { return p.stdout }

// PID returns the OS process id.
func (p *Process) PID() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// IsAlive is a non-blocking liveness probe.
func (p *Process) IsAlive() bool {
	return !p.exited.Load()
}

// Done is closed when the process exits for any reason.
func (p *Process) Done() <-chan struct{} { return p.done }

// ExitErr returns the error from Wait; only meaningful after Done is closed.
func (p *Process) ExitErr() error { return p.exitErr }

// CloseStdin closes the child's stdin. Idempotent.
func (p *Process) CloseStdin() {
	p.stdinOnce.Do(func() { p.stdin.Close() })
}

// Terminate waits up to grace for the process to exit on its own (the
// session sends protocol-level shutdown/exit first), then escalates to a
// forced kill. Terminating an already-dead process is not an error.
func (p *Process) Terminate(grace time.Duration) {
	if !p.IsAlive() {
		return
	}

	// Closing stdin delivers EOF, a secondary exit signal for servers that
	// missed or never received the exit notification.
	p.CloseStdin()

	select {
	case <-p.done:
		return
	case <-time.After(grace):
	}

	p.Kill()
	<-p.done
}

// Kill force-kills the process. Idempotent.
func (p *Process) Kill() {
	p.killOnce.Do(func() {
		if p.cmd.Process != nil {
			p.cmd.Process.Kill()
		}
	})
}
