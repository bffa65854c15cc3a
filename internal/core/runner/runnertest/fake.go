// Package runnertest provides a scripted runner.Executor for tests.
package runnertest

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/guiyumin/streamscribe/internal/core/runner"
)

// Responder produces the outcome of one call. It may create files to mimic
// what the tool would write.
type Responder func(cmd runner.Command) (*runner.Outcome, error)

// Matcher selects the calls a rule applies to.
type Matcher func(cmd runner.Command) bool

type rule struct {
	match   Matcher
	respond Responder
}

// Fake records every call and answers with the first matching rule.
// Unmatched calls fail with exit code 127.
type Fake struct {
	mu    sync.Mutex
	rules []rule
	calls []runner.Command
}

func New() *Fake { return &Fake{} }

// On adds a rule. Rules are checked in the order they were added.
func (f *Fake) On(m Matcher, r Responder) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, rule{match: m, respond: r})
	return f
}

func (f *Fake) Run(ctx context.Context, cmd runner.Command) (*runner.Outcome, error) {
	f.mu.Lock()
	f.calls = append(f.calls, cmd)
	rules := append([]rule(nil), f.rules...)
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return &runner.Outcome{ExitCode: -1}, err
	}
	for _, r := range rules {
		if r.match(cmd) {
			return r.respond(cmd)
		}
	}
	return &runner.Outcome{ExitCode: 127, Stderr: fmt.Sprintf("unexpected command: %s", cmd)}, nil
}

// Calls returns a copy of every recorded command.
func (f *Fake) Calls() []runner.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]runner.Command(nil), f.calls...)
}

// CallsTo returns the recorded commands whose executable base name is name.
func (f *Fake) CallsTo(name string) []runner.Command {
	var out []runner.Command
	for _, c := range f.Calls() {
		if base(c.Name) == name {
			out = append(out, c)
		}
	}
	return out
}

func base(name string) string {
	return strings.TrimSuffix(filepath.Base(name), ".exe")
}

// Tool matches calls to the named executable carrying every given argument.
func Tool(name string, args ...string) Matcher {
	return func(cmd runner.Command) bool {
		if base(cmd.Name) != name {
			return false
		}
		for _, a := range args {
			if !cmd.HasArg(a) {
				return false
			}
		}
		return true
	}
}

// Ok exits 0 with the given stdout.
func Ok(stdout string) Responder {
	return func(runner.Command) (*runner.Outcome, error) {
		return &runner.Outcome{Stdout: stdout}, nil
	}
}

// Fail exits with code and stderr.
func Fail(code int, stderr string) Responder {
	return func(runner.Command) (*runner.Outcome, error) {
		return &runner.Outcome{ExitCode: code, Stderr: stderr}, nil
	}
}

// Then runs side before delegating to r.
func Then(side func(cmd runner.Command), r Responder) Responder {
	return func(cmd runner.Command) (*runner.Outcome, error) {
		side(cmd)
		return r(cmd)
	}
}

// Sequence answers successive calls with successive responders; the last
// one repeats.
func Sequence(rs ...Responder) Responder {
	var (
		mu sync.Mutex
		i  int
	)
	return func(cmd runner.Command) (*runner.Outcome, error) {
		mu.Lock()
		r := rs[min(i, len(rs)-1)]
		i++
		mu.Unlock()
		return r(cmd)
	}
}

// ArgAfter returns the argument following flag, or "".
func ArgAfter(cmd runner.Command, flag string) string {
	for i, a := range cmd.Args {
		if a == flag && i+1 < len(cmd.Args) {
			return cmd.Args[i+1]
		}
	}
	return ""
}
