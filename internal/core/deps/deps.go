// Package deps reports which external tools the pipeline can use.
package deps

import (
	"context"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/guiyumin/streamscribe/internal/core/config"
	"github.com/guiyumin/streamscribe/internal/core/runner"
	"github.com/guiyumin/streamscribe/internal/core/transcriber"
)

const versionTimeout = 10 * time.Second

// Check is the status of one tool.
type Check struct {
	Name     string
	Path     string
	Found    bool
	Optional bool
	Version  string
	Detail   string
}

// Report is the result of Doctor.
type Report struct {
	Checks []Check
}

// OK reports whether every required tool was found.
func (r Report) OK() bool {
	for _, c := range r.Checks {
		if !c.Found && !c.Optional {
			return false
		}
	}
	return true
}

// Doctor checks yt-dlp, BBDown, whisper-ctranslate2, ffmpeg and ffprobe.
// When Exec is set, each found tool is asked for its version.
type Doctor struct {
	Config   *config.Config
	Exec     runner.Executor
	FS       afero.Fs
	LookPath func(string) (string, error)
}

type tool struct {
	name        string
	exe         string
	versionArgs []string
	optional    bool
	detail      string
}

func (d *Doctor) lookPath() func(string) (string, error) {
	if d.LookPath == nil {
		return exec.LookPath
	}
	return d.LookPath
}

// Run checks every tool.
func (d *Doctor) Run(ctx context.Context) Report {
	cfg := d.Config
	tools := []tool{
		{name: "yt-dlp", exe: cfg.Paths.YtDlp, versionArgs: []string{"--version"}, detail: "YouTube"},
		{name: "BBDown", exe: cfg.Paths.BBDown, versionArgs: []string{"--help"}, detail: "Bilibili"},
		{name: "ffmpeg", exe: cfg.Paths.FFmpeg, versionArgs: []string{"-version"}, optional: cfg.Local.EmbeddedFFmpeg, detail: "local video"},
		{name: "ffprobe", exe: cfg.Paths.FFprobe, versionArgs: []string{"-version"}, optional: true, detail: "audio duration"},
	}

	var report Report
	for _, t := range tools {
		c := Check{Name: t.name, Optional: t.optional, Detail: t.detail}
		if p, err := d.lookPath()(t.exe); err == nil {
			c.Path, c.Found = p, true
			c.Version = d.version(ctx, p, t.versionArgs)
		}
		report.Checks = append(report.Checks, c)
	}
	report.Checks = append(report.Checks, d.whisper(ctx))
	return report
}

func (d *Doctor) whisper(ctx context.Context) Check {
	c := Check{Name: transcriber.ExecutableName, Detail: "transcription"}
	fs := d.FS
	if fs == nil {
		fs = afero.NewOsFs()
	}
	p, err := transcriber.ResolveExecutable(transcriber.SettingsFrom(d.Config.Whisper), runtime.GOOS, fs, d.lookPath())
	if err != nil {
		c.Detail = err.Error()
		return c
	}
	c.Path, c.Found = p, true
	c.Version = d.version(ctx, p, []string{"--version"})
	return c
}

// version returns the first line the tool prints, or "".
func (d *Doctor) version(ctx context.Context, path string, args []string) string {
	if d.Exec == nil {
		return ""
	}
	out, err := d.Exec.Run(ctx, runner.Command{Name: path, Args: args, Timeout: versionTimeout})
	if err != nil || !out.OK() {
		return ""
	}
	text := strings.TrimSpace(out.Stdout)
	if text == "" {
		text = strings.TrimSpace(out.Stderr)
	}
	line, _, _ := strings.Cut(text, "\n")
	return strings.TrimSpace(line)
}
