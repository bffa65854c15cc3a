package runner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/guiyumin/streamscribe/internal/core/errs"
)

// TransientSignatures are case-insensitive fragments of tool output that
// mark a failure as worth retrying.
var TransientSignatures = []string{
	"http error 403: forbidden",
	"http error 429",
	"too many requests",
	"fragment 1 not found",
	"eof occurred in violation of protocol",
	"connection reset by peer",
	"temporary failure in name resolution",
	"timed out",
	"timeout",
	"network is unreachable",
}

// MatchesTransient reports whether text contains a transient signature.
func MatchesTransient(text string) bool {
	lower := strings.ToLower(text)
	for _, sig := range TransientSignatures {
		if strings.Contains(lower, sig) {
			return true
		}
	}
	return false
}

// DefaultRetryable retries timeouts and failures whose output matches a
// transient signature. Start failures are never retried.
func DefaultRetryable(out *Outcome, err error) bool {
	if err != nil {
		return errs.Is(err, errs.KindTransient)
	}
	if out == nil {
		return false
	}
	return MatchesTransient(out.Stderr) || MatchesTransient(out.Stdout)
}

// Policy is a retry budget with a fixed delay schedule.
type Policy struct {
	MaxAttempts int
	// Delays[i] is waited after failed attempt i; the last entry repeats.
	Delays    []time.Duration
	Retryable func(*Outcome, error) bool
}

// Download is the budget for metadata fetches and media downloads.
func Download(delays ...time.Duration) Policy {
	if len(delays) == 0 {
		delays = []time.Duration{5 * time.Second, 10 * time.Second, 20 * time.Second}
	}
	return Policy{MaxAttempts: 3, Delays: delays}
}

// Metadata is the budget for info queries.
func Metadata() Policy {
	return Policy{MaxAttempts: 3, Delays: []time.Duration{2 * time.Second, 5 * time.Second, 10 * time.Second}}
}

// Listing is the smaller budget for subtitle listing.
func Listing() Policy {
	return Policy{MaxAttempts: 2, Delays: []time.Duration{2 * time.Second, 5 * time.Second}}
}

// Once runs a command a single time.
func Once() Policy {
	return Policy{MaxAttempts: 1}
}

func (p Policy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// DelayAfter returns the wait following failed attempt i (0-based).
func (p Policy) DelayAfter(i int) time.Duration {
	if len(p.Delays) == 0 {
		return 0
	}
	if i >= len(p.Delays) {
		i = len(p.Delays) - 1
	}
	return p.Delays[i]
}

// Decision records what the policy chose after an attempt.
type Decision struct {
	Attempt int
	Retry   bool
	Delay   time.Duration
	Reason  string
}

// Decide classifies a failed attempt.
func (p Policy) Decide(attempt int, out *Outcome, err error) Decision {
	retryable := p.Retryable
	if retryable == nil {
		retryable = DefaultRetryable
	}
	d := Decision{Attempt: attempt, Reason: failureMessage(out, err)}
	if attempt+1 >= p.attempts() || !retryable(out, err) {
		return d
	}
	d.Retry = true
	d.Delay = p.DelayAfter(attempt)
	return d
}

func failureMessage(out *Outcome, err error) string {
	if err != nil {
		return err.Error()
	}
	return out.Message()
}

// Builder produces the command for a given 0-based attempt, which lets a
// caller vary arguments such as the proxy between attempts.
type Builder func(attempt int) Command

// Result is the successful run and the attempt that produced it.
type Result struct {
	Outcome *Outcome
	Command Command
	Attempt int
}

// Retry runs build(0), build(1), ... until one exits cleanly, the failure is
// not retryable or the budget is spent. notify, when non-nil, sees every
// decision before the wait.
func Retry(ctx context.Context, ex Executor, p Policy, build Builder, notify func(Decision)) (*Result, error) {
	var (
		attempt int
		result  *Result
		last    Decision
	)

	op := func() error {
		cmd := build(attempt)
		out, err := ex.Run(ctx, cmd)
		if err == nil && out.OK() {
			result = &Result{Outcome: out, Command: cmd, Attempt: attempt}
			return nil
		}
		last = p.Decide(attempt, out, err)
		attempt++
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		failure := classify(cmd.Name, out, err, last)
		if !last.Retry {
			return backoff.Permanent(failure)
		}
		return failure
	}

	var b backoff.BackOff = &schedule{policy: p}
	b = backoff.WithMaxRetries(b, uint64(p.attempts()-1))
	b = backoff.WithContext(b, ctx)

	err := backoff.RetryNotify(op, b, func(error, time.Duration) {
		if notify != nil {
			notify(last)
		}
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, errs.Wrap(errs.KindAcquisitionFailed, build(0).Name, ctx.Err())
		}
		return nil, err
	}
	return result, nil
}

func classify(name string, out *Outcome, err error, d Decision) *errs.Error {
	if err != nil {
		return errs.From(err, errs.KindToolFatal, name)
	}
	kind := errs.KindToolFatal
	if MatchesTransient(out.Stderr) || MatchesTransient(out.Stdout) {
		kind = errs.KindTransient
	}
	msg := d.Reason
	if d.Attempt > 0 {
		msg = fmt.Sprintf("attempt %d: %s", d.Attempt+1, msg)
	}
	return &errs.Error{Kind: kind, Op: name, Msg: msg}
}

// schedule feeds Policy delays to backoff.
type schedule struct {
	policy Policy
	n      int
}

func (s *schedule) NextBackOff() time.Duration {
	d := s.policy.DelayAfter(s.n)
	s.n++
	return d
}

func (s *schedule) Reset() { s.n = 0 }

// ProxyArgs returns the proxy flag for an attempt. The final attempt of a
// multi-attempt budget goes direct.
func ProxyArgs(proxy string, attempt, maxAttempts int) []string {
	if proxy == "" {
		return nil
	}
	if maxAttempts > 1 && attempt >= maxAttempts-1 {
		return nil
	}
	return []string{"--proxy", proxy}
}
