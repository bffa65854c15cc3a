// Package runner invokes external tools (yt-dlp, BBDown, ffmpeg,
// whisper-ctranslate2) with a timeout, decodes their output and retries
// transient failures.
package runner

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	execute "github.com/alexellis/go-execute/v2"

	"github.com/guiyumin/streamscribe/internal/core/errs"
	"github.com/guiyumin/streamscribe/internal/core/logging"
	"github.com/guiyumin/streamscribe/internal/core/textenc"
)

// Command describes one external process invocation.
type Command struct {
	Name    string
	Args    []string
	Dir     string
	Env     []string // KEY=VALUE, merged over the parent environment
	Timeout time.Duration
	// Codecs overrides the decode order for captured output.
	Codecs []textenc.Codec
}

// String renders the command as a shell-pasteable line.
func (c Command) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, quote(c.Name))
	for _, a := range c.Args {
		parts = append(parts, quote(a))
	}
	return strings.Join(parts, " ")
}

func quote(s string) string {
	if s == "" || strings.ContainsAny(s, " \t\"'") {
		return fmt.Sprintf("%q", s)
	}
	return s
}

// HasArg reports whether flag appears in the argument list.
func (c Command) HasArg(flag string) bool {
	for _, a := range c.Args {
		if a == flag {
			return true
		}
	}
	return false
}

// Outcome is the result of a single process run.
type Outcome struct {
	ExitCode int
	Stdout   string
	Stderr   string
	TimedOut bool
	Duration time.Duration
}

// OK reports a clean exit.
func (o *Outcome) OK() bool {
	return o != nil && !o.TimedOut && o.ExitCode == 0
}

// Message summarizes a failed run: the tail of stderr, else stdout, else the
// exit status.
func (o *Outcome) Message() string {
	if o == nil {
		return "no output"
	}
	if o.TimedOut {
		return fmt.Sprintf("timed out after %s", o.Duration.Round(time.Second))
	}
	for _, s := range []string{o.Stderr, o.Stdout} {
		if msg := tail(s, 5); msg != "" {
			return msg
		}
	}
	return fmt.Sprintf("exit status %d", o.ExitCode)
}

func tail(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	var kept []string
	for i := len(lines) - 1; i >= 0 && len(kept) < n; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			kept = append([]string{l}, kept...)
		}
	}
	return strings.Join(kept, "\n")
}

// Executor runs a command once. A non-zero exit is reported in the Outcome,
// not as an error; the error is reserved for start failures (ToolFatal),
// timeouts (Transient) and cancellation.
type Executor interface {
	Run(ctx context.Context, cmd Command) (*Outcome, error)
}

// TaskExecutor runs commands with go-execute.
type TaskExecutor struct {
	Logger *logging.Logger
}

// NewTaskExecutor returns an executor logging through l.
func NewTaskExecutor(l *logging.Logger) *TaskExecutor {
	if l == nil {
		l = logging.Discard()
	}
	return &TaskExecutor{Logger: l}
}

func (e *TaskExecutor) Run(ctx context.Context, cmd Command) (*Outcome, error) {
	runCtx := ctx
	if cmd.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, cmd.Timeout)
		defer cancel()
	}

	e.Logger.Debug("exec", "cmd", cmd.String(), "dir", cmd.Dir)

	task := execute.ExecTask{
		Command: cmd.Name,
		Args:    cmd.Args,
		Cwd:     cmd.Dir,
		Env:     cmd.Env,
	}
	start := time.Now()
	res, err := task.Execute(runCtx)
	out := &Outcome{
		ExitCode: res.ExitCode,
		Duration: time.Since(start),
	}
	codecs := cmd.Codecs
	if len(codecs) == 0 {
		codecs = textenc.Default
	}
	out.Stdout = textenc.String([]byte(res.Stdout), codecs...)
	out.Stderr = textenc.String([]byte(res.Stderr), codecs...)

	switch {
	case ctx.Err() != nil:
		return out, errs.Wrap(errs.KindAcquisitionFailed, cmd.Name, ctx.Err())
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		out.TimedOut = true
		return out, errs.New(errs.KindTransient, cmd.Name, "timed out after %s", cmd.Timeout)
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			out.ExitCode = exitErr.ExitCode()
		} else {
			return out, errs.Wrap(errs.KindToolFatal, cmd.Name, err)
		}
	}
	e.Logger.Debug("exit", "cmd", cmd.Name, "code", out.ExitCode, "took", out.Duration.Round(time.Millisecond))
	return out, nil
}
