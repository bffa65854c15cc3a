// Package pipeline routes inputs to their acquisition strategy, one at a
// time, and aggregates batch results.
package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/afero"

	"github.com/guiyumin/streamscribe/internal/core/config"
	"github.com/guiyumin/streamscribe/internal/core/errs"
	"github.com/guiyumin/streamscribe/internal/core/extractor"
	"github.com/guiyumin/streamscribe/internal/core/fileutil"
	"github.com/guiyumin/streamscribe/internal/core/i18n"
	"github.com/guiyumin/streamscribe/internal/core/logging"
	"github.com/guiyumin/streamscribe/internal/core/media"
	"github.com/guiyumin/streamscribe/internal/core/runner"
	"github.com/guiyumin/streamscribe/internal/core/transcriber"
)

const (
	// StaleAge is how old a temp file must be before housekeeping removes it.
	StaleAge = 24 * time.Hour

	lockName  = ".streamscribe.lock"
	lockRetry = 250 * time.Millisecond
)

// Sink receives human-readable progress lines.
type Sink = extractor.Sink

// Deps are the collaborators of a Pipeline. Zero fields get production
// defaults built from the configuration.
type Deps struct {
	Exec        runner.Executor
	FS          afero.Fs
	Transcriber extractor.Transcriber
	Extractor   *media.Extractor
	Logger      *logging.Logger
	Now         func() time.Time
}

// Pipeline is the acquisition orchestrator. It is safe for concurrent use
// but runs one acquisition at a time.
type Pipeline struct {
	cfg        *config.Config
	fs         afero.Fs
	log        *logging.Logger
	lang       *i18n.Translations
	now        func() time.Time
	strategies map[extractor.Kind]extractor.Strategy

	mu       sync.Mutex
	lockPath string
}

// New validates cfg and wires the strategies.
func New(cfg *config.Config, deps Deps) (*Pipeline, error) {
	if cfg == nil {
		return nil, errs.New(errs.KindConfig, "pipeline", "no configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if deps.Logger == nil {
		deps.Logger = logging.Discard()
	}
	if deps.FS == nil {
		deps.FS = afero.NewOsFs()
	}
	if deps.Exec == nil {
		deps.Exec = runner.NewTaskExecutor(deps.Logger.For("exec"))
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Transcriber == nil {
		prober := &media.Prober{FFprobe: cfg.Paths.FFprobe, Exec: deps.Exec, FS: deps.FS, Logger: deps.Logger.For("ffprobe")}
		deps.Transcriber = transcriber.New(transcriber.SettingsFrom(cfg.Whisper), deps.Exec, prober, deps.FS, deps.Logger.For("whisper"))
	}
	if deps.Extractor == nil {
		deps.Extractor = &media.Extractor{
			FFmpeg:   cfg.Paths.FFmpeg,
			TempDir:  cfg.Paths.TempDir,
			Embedded: cfg.Local.EmbeddedFFmpeg,
			Exec:     deps.Exec,
			FS:       deps.FS,
			Logger:   deps.Logger.For("ffmpeg"),
		}
	}

	lang := i18n.T(cfg.Language)
	env := &extractor.Env{
		Config:      cfg,
		Exec:        deps.Exec,
		FS:          deps.FS,
		Transcriber: deps.Transcriber,
		Logger:      deps.Logger,
		Lang:        lang,
		Now:         deps.Now,
	}
	strategies := map[extractor.Kind]extractor.Strategy{}
	for _, s := range []extractor.Strategy{
		extractor.NewYouTube(env),
		extractor.NewBilibili(env),
		extractor.NewLocal(env, deps.Extractor),
	} {
		strategies[s.Kind()] = s
	}

	return &Pipeline{
		cfg:        cfg,
		fs:         deps.FS,
		log:        deps.Logger.For("pipeline"),
		lang:       lang,
		now:        deps.Now,
		strategies: strategies,
		lockPath:   filepath.Join(cfg.Paths.OutputDir, lockName),
	}, nil
}

// Config returns the configuration the pipeline was built with.
func (p *Pipeline) Config() *config.Config { return p.cfg }

// AcquireOne classifies req and runs its strategy. Every failure except a
// configuration error is reported in the returned Result.
func (p *Pipeline) AcquireOne(ctx context.Context, req extractor.Request, sink Sink) (*extractor.Result, error) {
	unlock, err := p.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	p.housekeep()
	return p.acquire(ctx, req, sink)
}

func (p *Pipeline) acquire(ctx context.Context, req extractor.Request, sink Sink) (*extractor.Result, error) {
	kind := extractor.Classify(req)
	sink.Emit(p.lang.Progress.Start, req.Input())

	strategy, ok := p.strategies[kind]
	if !ok {
		p.log.Warn("unsupported input", "input", req.Input())
		res := extractor.Failed(req, extractor.KindUnsupported, "", "",
			errs.New(errs.KindUnsupportedInput, "classify", "%s: %s", p.lang.Errors.Unsupported, req.Input()))
		sink.Emit(p.lang.Progress.Failed, res.Error())
		return res, nil
	}
	sink.Emit(p.lang.Progress.Platform, strategy.Name())

	start := p.now()
	p.log.Info("acquiring", "input", req.Input(), "platform", kind)
	res, err := strategy.Acquire(ctx, req, sink)
	if err != nil {
		p.log.Error("configuration error", "input", req.Input(), "err", err)
		return nil, err
	}

	if res.Success {
		p.log.Info("done", "input", req.Input(), "method", res.Method, "transcript", res.TranscriptPath, "took", p.now().Sub(start))
		sink.Emit("%s", p.lang.Progress.Done)
	} else {
		p.log.Warn("failed", "input", req.Input(), "err", res.Err)
		sink.Emit(p.lang.Progress.Failed, res.Error())
	}
	return res, nil
}

// lock takes the output-directory lock, waiting for another process to
// release it.
func (p *Pipeline) lock(ctx context.Context) (func(), error) {
	p.mu.Lock()
	if err := p.fs.MkdirAll(p.cfg.Paths.OutputDir, 0o755); err != nil {
		p.mu.Unlock()
		return nil, errs.Wrap(errs.KindConfig, "output dir", err)
	}
	// flock needs a file descriptor, so the lock file always lives on the
	// real filesystem even when fs is in-memory.
	if err := os.MkdirAll(filepath.Dir(p.lockPath), 0o755); err != nil {
		p.mu.Unlock()
		return nil, errs.Wrap(errs.KindConfig, "output lock", err)
	}
	fl := flock.New(p.lockPath)
	ok, err := fl.TryLockContext(ctx, lockRetry)
	if err != nil || !ok {
		p.mu.Unlock()
		if err == nil {
			err = ctx.Err()
		}
		return nil, errs.Wrap(errs.KindConfig, "output lock", err)
	}
	return func() {
		if err := fl.Unlock(); err != nil {
			p.log.Warn("failed to release output lock", "path", p.lockPath, "err", err)
		}
		p.mu.Unlock()
	}, nil
}

func (p *Pipeline) housekeep() {
	if n := fileutil.CleanStale(p.fs, p.cfg.Paths.TempDir, StaleAge, p.now(), p.log); n > 0 {
		p.log.Info("removed stale temp files", "count", n)
	}
}
