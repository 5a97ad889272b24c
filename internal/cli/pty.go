package cli

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// TerminationType classifies how a PTY session ended.
type TerminationType string

const (
	// TerminationNormal: the subprocess exited on its own.
	TerminationNormal TerminationType = "normal"
	// TerminationInterrupted: exited after a forwarded Ctrl-C.
	TerminationInterrupted TerminationType = "interrupted"
	// TerminationKilled: exited after the escalated kill signal.
	TerminationKilled TerminationType = "killed"
	// TerminationDetached: the handle force-detached without waiting.
	TerminationDetached TerminationType = "detached"
)

// PtyConfig holds the pseudo-terminal knobs.
type PtyConfig struct {
	// Rows and Cols are the initial terminal size.
	Rows uint16
	Cols uint16

	// CtrlCWindow is the escalation window between presses.
	CtrlCWindow time.Duration

	// IdleReadTimeout bounds how long the reader waits on a silent PTY
	// before checking for termination. Zero means the read blocks until
	// the PTY closes.
	IdleReadTimeout time.Duration
}

// DefaultPtyConfig returns an 80x24 terminal with the standard 2s
// escalation window.
func DefaultPtyConfig() PtyConfig {
	return PtyConfig{Rows: 24, Cols: 80, CtrlCWindow: DefaultCtrlCWindow}
}

// PtyExecutionResult is the outcome of one PTY session.
type PtyExecutionResult struct {
	ExecutionResult
	Termination TerminationType
}

// PtyExecutor runs a backend under a pseudo-terminal so colors, spinners
// and cursor control survive. One executor runs at most one session at a
// time; Start blocks on an internal weighted semaphore until the
// previous handle finishes.
type PtyExecutor struct {
	backend Backend
	cfg     PtyConfig
	capture RawCapture

	sessions *semaphore.Weighted
}

// NewPtyExecutor returns a PTY executor for backend.
func NewPtyExecutor(backend Backend, cfg PtyConfig) *PtyExecutor {
	if cfg.Rows == 0 || cfg.Cols == 0 {
		def := DefaultPtyConfig()
		if cfg.Rows == 0 {
			cfg.Rows = def.Rows
		}
		if cfg.Cols == 0 {
			cfg.Cols = def.Cols
		}
	}
	return &PtyExecutor{backend: backend, cfg: cfg, sessions: semaphore.NewWeighted(1)}
}

// SetFrameCapture registers the sink receiving every raw byte read from
// the PTY. Must be called before Start.
func (e *PtyExecutor) SetFrameCapture(c RawCapture) {
	e.capture = c
}

// Start spawns prompt under a fresh PTY and returns its handle. The
// handle is exclusively owned by this executor's session slot until
// Wait returns.
func (e *PtyExecutor) Start(ctx context.Context, prompt string) (*PtyHandle, error) {
	if err := e.sessions.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("cli: acquire pty session: %w", err)
	}

	built, err := BuildCommand(e.backend, prompt, true)
	if err != nil {
		e.sessions.Release(1)
		return nil, err
	}

	cmd := exec.Command(built.Program, built.Args...)

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: e.cfg.Rows, Cols: e.cfg.Cols})
	if err != nil {
		built.Cleanup()
		e.sessions.Release(1)
		return nil, fmt.Errorf("cli: start pty %s: %w", built.Program, err)
	}

	h := &PtyHandle{
		ID:      uuid.NewString(),
		cmd:     cmd,
		ptmx:    ptmx,
		tracker: NewCtrlCTracker(e.cfg.CtrlCWindow),
		ctl:     make(chan controlCommand, 16),
		done:    make(chan struct{}),
		capture: e.capture,
		built:   built,
		release: func() { e.sessions.Release(1) },
	}

	if built.StdinPayload != "" {
		// A PTY has one bidirectional stream; prompts that would go via
		// stdin are written into the PTY after spawn instead.
		if _, err := ptmx.Write([]byte(built.StdinPayload + "\n")); err != nil {
			cmd.Process.Kill()
			cmd.Wait()
			h.finish()
			return nil, fmt.Errorf("cli: write prompt to pty: %w", err)
		}
	}

	go h.readLoop(e.cfg.IdleReadTimeout)
	go h.controlLoop()
	go h.waitLoop()
	return h, nil
}

// Execute is the blocking convenience wrapper: Start then Wait.
func (e *PtyExecutor) Execute(ctx context.Context, prompt string) (PtyExecutionResult, error) {
	h, err := e.Start(ctx, prompt)
	if err != nil {
		return PtyExecutionResult{}, err
	}
	return h.Wait(ctx)
}

type controlKind int

const (
	ctlInput controlKind = iota
	ctlCtrlC
	ctlResize
)

type controlCommand struct {
	kind   controlKind
	data   []byte
	width  uint16
	height uint16
}

// PtyHandle is the live session handle. Control commands (input, Ctrl-C,
// resize) are serialized through a single-consumer queue; raw output is
// forwarded to the registered capture.
type PtyHandle struct {
	ID string

	cmd     *exec.Cmd
	ptmx    *os.File
	tracker *CtrlCTracker
	ctl     chan controlCommand
	done    chan struct{}
	capture RawCapture
	built   BuiltCommand
	release func()

	mu       sync.Mutex
	output   strings.Builder
	detached bool
	waitErr  error
	closed   sync.Once
}

// SendInput queues raw bytes for the subprocess's terminal.
func (h *PtyHandle) SendInput(b []byte) error {
	return h.enqueue(controlCommand{kind: ctlInput, data: append([]byte(nil), b...)})
}

// SendCtrlC queues one interrupt press; the escalation state machine
// decides whether it forwards, escalates, or detaches.
func (h *PtyHandle) SendCtrlC() error {
	return h.enqueue(controlCommand{kind: ctlCtrlC})
}

// SendResize queues a terminal size change.
func (h *PtyHandle) SendResize(width, height uint16) error {
	return h.enqueue(controlCommand{kind: ctlResize, width: width, height: height})
}

func (h *PtyHandle) enqueue(c controlCommand) error {
	select {
	case <-h.done:
		return fmt.Errorf("cli: pty session %s already terminated", h.ID)
	case h.ctl <- c:
		return nil
	}
}

// CtrlCState returns the current escalation state, for the TUI header.
func (h *PtyHandle) CtrlCState() CtrlCState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.tracker.State()
}

// Done returns a channel closed when the subprocess has exited (the
// termination observer).
func (h *PtyHandle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the session ends or ctx is cancelled and returns the
// aggregated result. Cancellation sends a Ctrl-C and waits for the
// subprocess to die; callers wanting harder semantics press again.
func (h *PtyHandle) Wait(ctx context.Context) (PtyExecutionResult, error) {
	select {
	case <-h.done:
	case <-ctx.Done():
		h.SendCtrlC()
		<-h.done
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	res := PtyExecutionResult{
		ExecutionResult: ExecutionResult{
			Stdout:   h.output.String(),
			ExitCode: exitCodeOf(h.waitErr),
		},
		Termination: h.terminationLocked(),
	}
	return res, nil
}

func (h *PtyHandle) terminationLocked() TerminationType {
	if h.detached {
		return TerminationDetached
	}
	switch h.tracker.State() {
	case CtrlCInterrupting:
		return TerminationInterrupted
	case CtrlCTerminating:
		return TerminationKilled
	default:
		return TerminationNormal
	}
}

func (h *PtyHandle) readLoop(idleTimeout time.Duration) {
	buf := make([]byte, 32*1024)
	for {
		if idleTimeout > 0 {
			h.ptmx.SetReadDeadline(time.Now().Add(idleTimeout))
		}
		n, err := h.ptmx.Read(buf)
		if n > 0 {
			h.mu.Lock()
			h.output.Write(buf[:n])
			h.mu.Unlock()
			if h.capture != nil {
				h.capture.CaptureWrite(buf[:n], true)
			}
		}
		if err != nil {
			if os.IsTimeout(err) {
				select {
				case <-h.done:
					return
				default:
					continue
				}
			}
			// EOF or EIO: the slave side closed; the wait loop finishes
			// the session.
			return
		}
	}
}

func (h *PtyHandle) controlLoop() {
	for {
		select {
		case <-h.done:
			return
		case c := <-h.ctl:
			h.apply(c)
		}
	}
}

func (h *PtyHandle) apply(c controlCommand) {
	switch c.kind {
	case ctlInput:
		h.ptmx.Write(c.data)
	case ctlResize:
		pty.Setsize(h.ptmx, &pty.Winsize{Rows: c.height, Cols: c.width})
		if cc, ok := h.capture.(*CliCapture); ok && cc != nil {
			cc.CaptureResize(c.width, c.height)
		}
	case ctlCtrlC:
		h.mu.Lock()
		action := h.tracker.Press(time.Now())
		h.mu.Unlock()
		switch action {
		case CtrlCForward:
			h.ptmx.Write([]byte{0x03})
		case CtrlCEscalate:
			if h.cmd.Process != nil {
				h.cmd.Process.Signal(syscall.SIGTERM)
			}
		case CtrlCDetach:
			h.mu.Lock()
			h.detached = true
			h.mu.Unlock()
			h.forceKill()
		}
	}
}

func (h *PtyHandle) waitLoop() {
	err := h.cmd.Wait()
	h.mu.Lock()
	h.waitErr = err
	h.mu.Unlock()
	h.finish()
}

func (h *PtyHandle) forceKill() {
	if h.cmd.Process != nil {
		h.cmd.Process.Kill()
	}
	h.finish()
}

func (h *PtyHandle) finish() {
	h.closed.Do(func() {
		close(h.done)
		h.ptmx.Close()
		h.built.Cleanup()
		h.release()
	})
}
