package extractor

import (
	"context"
	"time"

	"github.com/spf13/afero"

	"github.com/guiyumin/streamscribe/internal/core/config"
	"github.com/guiyumin/streamscribe/internal/core/errs"
	"github.com/guiyumin/streamscribe/internal/core/fileutil"
	"github.com/guiyumin/streamscribe/internal/core/i18n"
	"github.com/guiyumin/streamscribe/internal/core/logging"
	"github.com/guiyumin/streamscribe/internal/core/runner"
)

// Env is what every strategy shares: configuration, the process runner, the
// filesystem and the transcription step.
type Env struct {
	Config      *config.Config
	Exec        runner.Executor
	FS          afero.Fs
	Transcriber Transcriber
	Logger      *logging.Logger
	Lang        *i18n.Translations
	Now         func() time.Time
}

func (e *Env) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

func (e *Env) log(component string) *logging.Logger {
	if e.Logger == nil {
		return logging.Discard()
	}
	return e.Logger.For(component)
}

func (e *Env) lang() *i18n.Translations {
	if e.Lang == nil {
		return i18n.T(e.Config.Language)
	}
	return e.Lang
}

// PolicyFor converts a configured budget into a retry policy.
func PolicyFor(b config.Budget) runner.Policy {
	return runner.Policy{MaxAttempts: b.Attempts, Delays: b.Delays}
}

// retryNotifier reports retries to the log and the sink.
func (e *Env) retryNotifier(log *logging.Logger, sink Sink) func(runner.Decision) {
	return func(d runner.Decision) {
		log.Warn("retrying", "attempt", d.Attempt+2, "delay", d.Delay, "reason", d.Reason)
		sink.Emit(e.lang().Progress.Retrying, d.Attempt+1, d.Delay, d.Reason)
	}
}

// transcribe runs the engine on audio and removes audio afterwards when
// owned is set. The audio is kept on failure so the run can be inspected.
// Only configuration errors are returned as errors.
func (e *Env) transcribe(ctx context.Context, req Request, kind Kind, title, audio string, owned bool, sink Sink) (*Result, error) {
	log := e.log(string(kind))
	sink.Emit("%s", e.lang().Progress.Transcribing)

	res, err := e.Transcriber.Transcribe(ctx, audio, e.Config.Paths.OutputDir)
	if err != nil {
		return fail(req, kind, MethodTranscription, title, err)
	}
	if owned {
		fileutil.RemoveQuietly(e.FS, audio, log)
	}
	return Succeeded(e.FS, req, kind, MethodTranscription, title, res.TranscriptPath, TimingFrom(res)), nil
}

// exhausted marks a transient failure that survived every retry as a
// terminal acquisition failure, keeping the last message.
func exhausted(op string, err error) error {
	if !errs.Is(err, errs.KindTransient) {
		return err
	}
	return &errs.Error{Kind: errs.KindAcquisitionFailed, Op: op, Msg: "retries exhausted", Err: err}
}

// fail turns err into a failed result, letting configuration errors escape.
func fail(req Request, kind Kind, method Method, title string, err error) (*Result, error) {
	if errs.Is(err, errs.KindConfig) {
		return nil, err
	}
	return Failed(req, kind, method, title, err), nil
}
