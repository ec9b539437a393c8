// Package watcher pauses and resumes an external file-watching test runner
// around the database restore window.
package watcher

import (
	"context"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/fgeck/branchsnap/internal/execshell"
	"github.com/fgeck/branchsnap/internal/models"
)

// Signals of the pause/resume handshake. The watcher's own handling is
// stateful: one interrupt cancels a running test, a second one halts the
// watch loop, so the double-interrupt pattern must not be simplified.
const (
	sigPauseWatch  = syscall.SIGUSR1
	sigResumeWatch = syscall.SIGUSR2
	sigInterrupt   = syscall.SIGINT
)

// interruptSettle is the fixed wait after each interrupt round during pause.
// There is no acknowledgment channel from the watcher; this stands in for one.
const interruptSettle = time.Second

// Signaler delivers a signal to a process. Extracted for testing.
type Signaler interface {
	Signal(pid int, sig syscall.Signal) error
}

// DefaultSignaler sends signals via the kernel.
type DefaultSignaler struct{}

// Signal sends sig to pid.
func (DefaultSignaler) Signal(pid int, sig syscall.Signal) error {
	return syscall.Kill(pid, sig)
}

// Coordinator drives the pause/resume handshake with the watcher process and
// its output-formatter child. With no core process discovered the coordinator
// is inert: Pause and Resume are no-ops.
type Coordinator struct {
	cfg      models.WatcherConfig
	handle   models.WatcherHandle
	executor execshell.CommandExecutor
	signaler Signaler
	sleep    func(time.Duration)
	logger   zerolog.Logger
}

// New discovers the watcher core process and returns a coordinator for it.
// A nil config yields an inert coordinator. ctx bounds only the discovery
// scan; it is not retained, Pause and Resume take their own.
func New(ctx context.Context, logger zerolog.Logger, cfg *models.WatcherConfig) *Coordinator {
	return NewWithDeps(ctx, logger, cfg, &execshell.DefaultExecutor{}, DefaultSignaler{}, time.Sleep)
}

// NewWithDeps is New with custom dependencies (for testing).
func NewWithDeps(
	ctx context.Context,
	logger zerolog.Logger,
	cfg *models.WatcherConfig,
	executor execshell.CommandExecutor,
	signaler Signaler,
	sleep func(time.Duration),
) *Coordinator {
	c := &Coordinator{
		executor: executor,
		signaler: signaler,
		sleep:    sleep,
		logger:   logger,
	}
	if cfg == nil || cfg.Marker == "" {
		return c
	}
	c.cfg = *cfg
	c.handle.CorePID = c.findPID(ctx, cfg.Marker)
	if c.handle.CorePID == 0 {
		logger.Debug().Str("marker", cfg.Marker).Msg("no watcher process found")
	}
	return c
}

// Handle returns the discovered process ids. The formatter pid is only
// meaningful right after a Pause or Resume, since its lifetime is shorter
// than the core's and it is re-discovered on every call.
func (c *Coordinator) Handle() models.WatcherHandle {
	return c.handle
}

// findPID scans the running process list for the marker and returns the first
// matching pid, or 0 when none is found. An empty marker never matches: pgrep
// would treat it as match-everything and return some unrelated pid.
func (c *Coordinator) findPID(ctx context.Context, marker string) int {
	if marker == "" {
		return 0
	}
	output, err := c.executor.Execute(ctx, "pgrep", "-f", marker)
	if err != nil {
		// pgrep exits nonzero when nothing matches.
		return 0
	}
	fields := strings.Fields(string(output))
	if len(fields) == 0 {
		return 0
	}
	pid, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0
	}
	return pid
}

func (c *Coordinator) signal(pid int, sig syscall.Signal) {
	if pid == 0 {
		return
	}
	if err := c.signaler.Signal(pid, sig); err != nil {
		c.logger.Warn().Err(err).Int("pid", pid).Str("signal", sig.String()).Msg("signal delivery failed")
	}
}

// Pause halts the watch loop before the restore window. Order and timing are
// load-bearing: pause-watch, interrupt core, interrupt formatter, settle,
// interrupt core again, settle. The second interrupt is needed because the
// first may only cancel a currently running test.
func (c *Coordinator) Pause(ctx context.Context) {
	if c.handle.CorePID == 0 {
		return
	}
	c.handle.FormatterPID = c.findPID(ctx, c.cfg.FormatterMarker)

	c.logger.Debug().Int("pid", c.handle.CorePID).Msg("pausing watcher")
	c.signal(c.handle.CorePID, sigPauseWatch)
	c.signal(c.handle.CorePID, sigInterrupt)
	c.signal(c.handle.FormatterPID, sigInterrupt)
	c.sleep(interruptSettle)
	c.signal(c.handle.CorePID, sigInterrupt)
	c.sleep(interruptSettle)
}

// Resume restarts the watch loop after the restore window: interrupt core,
// interrupt formatter, resume-watch, interrupt formatter, interrupt core.
func (c *Coordinator) Resume(ctx context.Context) {
	if c.handle.CorePID == 0 {
		return
	}
	c.handle.FormatterPID = c.findPID(ctx, c.cfg.FormatterMarker)

	c.logger.Debug().Int("pid", c.handle.CorePID).Msg("resuming watcher")
	c.signal(c.handle.CorePID, sigInterrupt)
	c.signal(c.handle.FormatterPID, sigInterrupt)
	c.signal(c.handle.CorePID, sigResumeWatch)
	c.signal(c.handle.FormatterPID, sigInterrupt)
	c.signal(c.handle.CorePID, sigInterrupt)
}
