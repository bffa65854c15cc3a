// Package transcriber runs the whisper-ctranslate2 speech-to-text engine
// and locates the transcript it writes.
package transcriber

import (
	"context"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/guiyumin/streamscribe/internal/core/artifact"
	"github.com/guiyumin/streamscribe/internal/core/errs"
	"github.com/guiyumin/streamscribe/internal/core/fileutil"
	"github.com/guiyumin/streamscribe/internal/core/logging"
	"github.com/guiyumin/streamscribe/internal/core/runner"
)

// Result describes one finished transcription.
type Result struct {
	TranscriptPath string
	AudioDuration  time.Duration
	ProcessingTime time.Duration
	// SpeedRatio is audio length over processing time, 0 when either is unknown.
	SpeedRatio float64
}

// Prober measures audio duration, returning 0 when it cannot.
type Prober interface {
	Duration(ctx context.Context, path string) time.Duration
}

// Transcriber invokes the engine for one audio file at a time.
type Transcriber struct {
	settings Settings
	exec     runner.Executor
	prober   Prober
	fs       afero.Fs
	resolver *artifact.Resolver
	log      *logging.Logger

	// LookPath resolves bare executable names; exec.LookPath by default.
	LookPath func(string) (string, error)
	// Now is the clock used for timing and resolution.
	Now func() time.Time
}

// New creates a transcriber. prober may be nil.
func New(s Settings, ex runner.Executor, prober Prober, fs afero.Fs, log *logging.Logger) *Transcriber {
	if log == nil {
		log = logging.Discard()
	}
	t := &Transcriber{
		settings: s,
		exec:     ex,
		prober:   prober,
		fs:       fs,
		log:      log,
		LookPath: exec.LookPath,
		Now:      time.Now,
	}
	t.resolver = &artifact.Resolver{FS: fs, Now: t.now, Window: artifact.DefaultWindow}
	return t
}

// Settings returns the engine settings in use.
func (t *Transcriber) Settings() Settings { return t.settings }

func (t *Transcriber) now() time.Time {
	if t.Now == nil {
		return time.Now()
	}
	return t.Now()
}

// Executable resolves the engine path. A missing engine is a configuration
// error.
func (t *Transcriber) Executable() (string, error) {
	return ResolveExecutable(t.settings, runtime.GOOS, t.fs, t.LookPath)
}

// ResolveExecutable finds the engine from an explicit path, a virtualenv or
// PATH, in that order.
func ResolveExecutable(s Settings, goos string, fs afero.Fs, lookPath func(string) (string, error)) (string, error) {
	const op = "whisper executable"
	exists := func(p string) bool {
		info, err := fs.Stat(p)
		return err == nil && !info.IsDir()
	}

	if s.Executable != "" {
		if strings.ContainsAny(s.Executable, `/\`) {
			if exists(s.Executable) {
				return s.Executable, nil
			}
			return "", errs.New(errs.KindConfig, op, "%s does not exist", s.Executable)
		}
		p, err := lookPath(s.Executable)
		if err != nil {
			return "", errs.New(errs.KindConfig, op, "%s not found in PATH", s.Executable)
		}
		return p, nil
	}

	if s.VenvPath != "" {
		p := VenvExecutable(s.VenvPath, goos)
		if exists(p) {
			return p, nil
		}
		return "", errs.New(errs.KindConfig, op, "%s does not exist; install whisper-ctranslate2 into the virtualenv or set whisper.executable", p)
	}

	p, err := lookPath(ExecutableName)
	if err != nil {
		return "", errs.New(errs.KindConfig, op, "%s not found in PATH; set whisper.executable or whisper.venv_path", ExecutableName)
	}
	return p, nil
}

// VenvExecutable returns the engine location inside a Python virtualenv.
func VenvExecutable(venv, goos string) string {
	if goos == "windows" {
		return filepath.Join(venv, "Scripts", ExecutableName+".exe")
	}
	return filepath.Join(venv, "bin", ExecutableName)
}

// Transcribe runs the engine on audioPath and returns the transcript it
// wrote to outputDir. The engine names its output after the audio file, so
// callers control the transcript name through the audio file name.
func (t *Transcriber) Transcribe(ctx context.Context, audioPath, outputDir string) (*Result, error) {
	exe, err := t.Executable()
	if err != nil {
		return nil, err
	}
	if err := fileutil.EnsureDirs(t.fs, outputDir); err != nil {
		return nil, errs.Wrap(errs.KindConfig, "create output dir", err)
	}

	duration := time.Duration(0)
	if t.prober != nil {
		duration = t.prober.Duration(ctx, audioPath)
	}

	s := t.settings
	cmd := runner.Command{
		Name:    exe,
		Args:    BuildArgs(s, audioPath, outputDir),
		Env:     []string{"PYTHONIOENCODING=utf-8", "PYTHONUTF8=1"},
		Timeout: s.timeout(),
	}
	t.log.Info("transcribing", "audio", filepath.Base(audioPath), "model", s.model(), "compute", s.computeType(), "duration", duration.Round(time.Second))

	start := t.now()
	res, err := t.exec.Run(ctx, cmd)
	elapsed := t.now().Sub(start)
	if err != nil {
		return nil, errs.From(err, errs.KindToolFatal, "whisper")
	}
	if !res.OK() {
		return nil, errs.New(errs.KindToolFatal, "whisper", "exit status %d: %s", res.ExitCode, res.Message())
	}

	stem := fileutil.Stem(audioPath)
	match, ok := t.resolver.Resolve(artifact.Query{Base: stem, Dir: outputDir, Exts: OutputExts(s.OutputFormat)})
	if !ok {
		return nil, errs.New(errs.KindArtifactNotFound, "whisper", "engine exited 0 but no transcript for %q in %s", stem, outputDir)
	}
	if match.Stage != artifact.StageExact {
		t.log.Warn("transcript found by fallback", "stage", match.Stage, "path", match.Path)
	}

	result := &Result{
		TranscriptPath: match.Path,
		AudioDuration:  duration,
		ProcessingTime: elapsed,
		SpeedRatio:     SpeedRatio(duration, elapsed),
	}
	t.log.Info("transcribed", "path", match.Path, "took", elapsed.Round(time.Second), "speed", result.SpeedRatio)
	return result, nil
}

// SpeedRatio returns audio/processing when both are positive.
func SpeedRatio(audio, processing time.Duration) float64 {
	if audio <= 0 || processing <= 0 {
		return 0
	}
	return audio.Seconds() / processing.Seconds()
}

// OutputExts lists transcript extensions to look for, the configured format
// first.
func OutputExts(format string) []string {
	exts := []string{".txt", ".srt", ".vtt", ".json", ".tsv"}
	f := "." + strings.ToLower(strings.TrimPrefix(format, "."))
	for i, e := range exts {
		if e == f && i > 0 {
			return append([]string{e}, append(exts[:i:i], exts[i+1:]...)...)
		}
	}
	return exts
}
