// Package procbridge runs the external release-analysis tool as a child
// process and captures its output without ever surfacing a Go error.
package procbridge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"relkit/internal/slogutil"
)

const (
	DefaultCommand      = "npm"
	DefaultBanner       = "Release Analysis"
	DefaultTimeout      = 5 * time.Minute
	DefaultGrace        = 5 * time.Second
	DefaultProbeTimeout = 10 * time.Second
)

// DefaultBaseArgs invokes the analysis script through npm.
var DefaultBaseArgs = []string{"run", "release:analyze", "--"}

// Config describes how the analysis tool is launched.
type Config struct {
	Command      string
	BaseArgs     []string
	Banner       string
	Timeout      time.Duration
	Grace        time.Duration
	ProbeTimeout time.Duration
	Logger       *slog.Logger
}

// Options tune a single invocation.
type Options struct {
	WorkingDir string
	// Timeout overrides the bridge default when positive.
	Timeout time.Duration
	// Env entries are appended to the inherited environment.
	Env map[string]string
	// MergeStderr appends stderr to the stdout buffer.
	MergeStderr bool
}

// Bridge launches the analysis tool.
type Bridge struct {
	command      string
	baseArgs     []string
	banner       string
	timeout      time.Duration
	grace        time.Duration
	probeTimeout time.Duration
	logger       *slog.Logger
}

// New returns a Bridge with zero fields in cfg replaced by defaults.
func New(cfg Config) *Bridge {
	b := &Bridge{
		command:      cfg.Command,
		baseArgs:     slices.Clone(cfg.BaseArgs),
		banner:       cfg.Banner,
		timeout:      cfg.Timeout,
		grace:        cfg.Grace,
		probeTimeout: cfg.ProbeTimeout,
		logger:       slogutil.OrDiscard(cfg.Logger),
	}
	if b.command == "" {
		b.command = DefaultCommand
		if b.baseArgs == nil {
			b.baseArgs = slices.Clone(DefaultBaseArgs)
		}
	}
	if b.banner == "" {
		b.banner = DefaultBanner
	}
	if b.timeout <= 0 {
		b.timeout = DefaultTimeout
	}
	if b.grace <= 0 {
		b.grace = DefaultGrace
	}
	if b.probeTimeout <= 0 {
		b.probeTimeout = DefaultProbeTimeout
	}
	return b
}

// Command returns the executable and base arguments.
func (b *Bridge) Command() (string, []string) {
	return b.command, slices.Clone(b.baseArgs)
}

// Execute runs the tool with args appended to the base arguments. Every
// failure, including failure to start, is reported inside the result.
func (b *Bridge) Execute(ctx context.Context, args []string, opts Options) *ExecutionResult {
	start := time.Now()
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = b.timeout
	}

	argv := append(slices.Clone(b.baseArgs), args...)
	b.logger.Debug("Spawning analysis process", "command", b.command, "args", strings.Join(argv, " "), "timeout", timeout)

	cmd := exec.Command(b.command, argv...)
	cmd.Dir = opts.WorkingDir
	cmd.Env = buildEnv(opts.Env)
	// nil Stdin reads from the null device, so the child sees EOF at once.
	cmd.Stdin = nil
	setProcessGroup(cmd)

	fail := func(msg string) *ExecutionResult {
		return &ExecutionResult{Error: msg, DurationMs: time.Since(start).Milliseconds()}
	}

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return fail(fmt.Sprintf("failed to spawn process: %v", err))
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return fail(fmt.Sprintf("failed to spawn process: %v", err))
	}
	if err := cmd.Start(); err != nil {
		b.logger.Warn("Analysis process failed to start", "command", b.command, "error", err)
		return fail(fmt.Sprintf("failed to spawn process: %v", err))
	}

	var stdout, stderr lockedBuffer
	errSink := &stderr
	if opts.MergeStderr {
		errSink = &stdout
	}

	r := &run{
		cmd:     cmd,
		grace:   b.grace,
		pipes:   []io.Closer{stdoutPipe, stderrPipe},
		exited:  make(chan struct{}),
		drained: make(chan struct{}),
	}
	var drain errgroup.Group
	drain.Go(func() error { return copyStream(&stdout, stdoutPipe) })
	drain.Go(func() error { return copyStream(errSink, stderrPipe) })
	go func() {
		r.drainErr = drain.Wait()
		close(r.drained)
	}()
	// Reaping does not wait for the streams, so exit is seen as soon as
	// the child is gone even if a grandchild still holds its stdout.
	go func() {
		r.state, r.waitErr = cmd.Process.Wait()
		close(r.exited)
	}()

	timer := time.NewTimer(timeout)
	defer r.cleanup(timer)

	var reason string
	timedOut := false
	select {
	case <-r.exited:
	case <-timer.C:
		if r.reaped() {
			break
		}
		timedOut = true
		reason = fmt.Sprintf("process timed out after %s", timeout)
		b.logger.Warn("Analysis process timed out, terminating", "timeout", timeout, "pid", cmd.Process.Pid)
		r.terminate()
	case <-ctx.Done():
		if r.reaped() {
			break
		}
		reason = fmt.Sprintf("process cancelled: %v", ctx.Err())
		b.logger.Info("Analysis process cancelled, terminating", "pid", cmd.Process.Pid)
		r.terminate()
	}
	// A clean exit that raced the deadline wins over it.
	if reason != "" && r.exitedCleanly() {
		reason, timedOut = "", false
	}
	drained := r.collect()

	res := &ExecutionResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		TimedOut: timedOut,
	}
	if r.reaped() && r.state != nil {
		if code := r.state.ExitCode(); code >= 0 {
			res.ExitCode = intPtr(code)
		}
	}

	switch {
	case reason != "":
		res.Error = reason
	case !r.reaped():
		res.Error = "process did not exit after termination"
	case r.waitErr != nil:
		res.Error = fmt.Sprintf("process terminated abnormally: %v", r.waitErr)
	case drained && r.drainErr != nil:
		res.Error = fmt.Sprintf("failed to read process output: %v", r.drainErr)
	case r.state.Success():
		res.Succeeded = true
	case res.ExitCode != nil:
		res.Error = fmt.Sprintf("process exited with code %d", *res.ExitCode)
	default:
		res.Error = fmt.Sprintf("process terminated abnormally: %s", r.state)
	}
	res.DurationMs = time.Since(start).Milliseconds()

	b.logger.Debug("Analysis process finished",
		"succeeded", res.Succeeded,
		"timedOut", res.TimedOut,
		"durationMs", res.DurationMs,
		"stdoutBytes", len(res.Stdout),
		"stderrBytes", len(res.Stderr),
	)
	return res
}

// ExecuteForJSON runs the tool requesting machine-readable output.
func (b *Bridge) ExecuteForJSON(ctx context.Context, args []string, opts Options) *ExecutionResult {
	return b.Execute(ctx, WithJSONFormat(args), opts)
}

// ExecuteSince analyzes changes since a git tag or commit.
func (b *Bridge) ExecuteSince(ctx context.Context, since string, opts Options) *ExecutionResult {
	return b.ExecuteForJSON(ctx, []string{"--since", since}, opts)
}

// ExecuteDryRun asks the tool for a non-interactive preview.
func (b *Bridge) ExecuteDryRun(ctx context.Context, opts Options) *ExecutionResult {
	return b.ExecuteForJSON(ctx, []string{"--dry-run", "--skip-confirmation"}, opts)
}

// IsAvailable probes the tool with --help.
func (b *Bridge) IsAvailable(ctx context.Context, workingDir string) bool {
	res := b.Execute(ctx, []string{"--help"}, Options{WorkingDir: workingDir, Timeout: b.probeTimeout})
	if res.Succeeded {
		return true
	}
	return strings.Contains(res.Stdout, b.banner) || strings.Contains(res.Stderr, b.banner)
}

var versionPattern = regexp.MustCompile(`(\d+)\.(\d+)\.(\d+)`)

// Version probes the tool with --version and extracts MAJOR.MINOR.PATCH.
func (b *Bridge) Version(ctx context.Context, workingDir string) (string, bool) {
	res := b.Execute(ctx, []string{"--version"}, Options{WorkingDir: workingDir, Timeout: b.probeTimeout})
	if !res.Succeeded {
		return "", false
	}
	return ExtractVersion(res.Stdout + "\n" + res.Stderr)
}

// ExtractVersion returns the first MAJOR.MINOR.PATCH found in s.
func ExtractVersion(s string) (string, bool) {
	m := versionPattern.FindString(s)
	return m, m != ""
}

// WithJSONFormat drops any caller-supplied --format and appends
// --format json, so the result is always machine-readable.
func WithJSONFormat(args []string) []string {
	out := make([]string, 0, len(args)+2)
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "--format":
			i++
		case strings.HasPrefix(args[i], "--format="):
		default:
			out = append(out, args[i])
		}
	}
	return append(out, "--format", "json")
}

func buildEnv(extra map[string]string) []string {
	env := os.Environ()
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		env = append(env, k+"="+extra[k])
	}
	return env
}

// run tracks one live child so every exit path shares a single cleanup.
type run struct {
	cmd      *exec.Cmd
	grace    time.Duration
	pipes    []io.Closer
	exited   chan struct{}
	drained  chan struct{}
	state    *os.ProcessState
	waitErr  error
	drainErr error
}

func (r *run) reaped() bool {
	select {
	case <-r.exited:
		return true
	default:
		return false
	}
}

// exitedCleanly reports a zero exit. A child killed by our signal never
// exits cleanly, so a zero status means it finished on its own.
func (r *run) exitedCleanly() bool {
	return r.reaped() && r.waitErr == nil && r.state != nil && r.state.Success()
}

// terminate asks the process group to stop and escalates after the grace
// window. It returns once the child is reaped or the second window ends.
func (r *run) terminate() {
	if r.reaped() {
		return
	}
	_ = signalGroup(r.cmd, false)
	select {
	case <-r.exited:
		return
	case <-time.After(r.grace):
	}
	_ = signalGroup(r.cmd, true)
	select {
	case <-r.exited:
	case <-time.After(r.grace):
	}
}

// collect waits for both streams to reach EOF. Streams still held open one
// grace window after exit are closed under their readers. It reports
// whether the readers finished.
func (r *run) collect() bool {
	select {
	case <-r.drained:
		return true
	case <-time.After(r.grace):
	}
	r.closePipes()
	select {
	case <-r.drained:
		return true
	case <-time.After(r.grace):
		return false
	}
}

func (r *run) closePipes() {
	for _, p := range r.pipes {
		_ = p.Close()
	}
}

func (r *run) cleanup(timer *time.Timer) {
	timer.Stop()
	if !r.reaped() {
		_ = signalGroup(r.cmd, true)
		select {
		case <-r.exited:
		case <-time.After(r.grace):
		}
	}
	r.closePipes()
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func copyStream(dst io.Writer, src io.Reader) error {
	_, err := io.Copy(dst, src)
	if errors.Is(err, os.ErrClosed) {
		return nil
	}
	return err
}
