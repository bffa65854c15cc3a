package deps

import (
	"context"
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guiyumin/streamscribe/internal/core/config"
	"github.com/guiyumin/streamscribe/internal/core/runner/runnertest"
)

func lookIn(found ...string) func(string) (string, error) {
	return func(name string) (string, error) {
		for _, f := range found {
			if f == name {
				return "/usr/bin/" + name, nil
			}
		}
		return "", errors.New("not found")
	}
}

func byName(r Report) map[string]Check {
	m := map[string]Check{}
	for _, c := range r.Checks {
		m[c.Name] = c
	}
	return m
}

func TestDoctorAllFound(t *testing.T) {
	cfg := config.DefaultConfig()
	fake := runnertest.New().
		On(runnertest.Tool("yt-dlp", "--version"), runnertest.Ok("2025.10.22\n")).
		On(runnertest.Tool("ffmpeg", "-version"), runnertest.Ok("ffmpeg version 7.1 Copyright\nbuilt with gcc"))
	d := &Doctor{Config: cfg, Exec: fake, FS: afero.NewMemMapFs(),
		LookPath: lookIn("yt-dlp", "BBDown", "ffmpeg", "ffprobe", "whisper-ctranslate2")}

	report := d.Run(context.Background())
	require.Len(t, report.Checks, 5)
	assert.True(t, report.OK())

	checks := byName(report)
	assert.Equal(t, "2025.10.22", checks["yt-dlp"].Version)
	assert.Equal(t, "ffmpeg version 7.1 Copyright", checks["ffmpeg"].Version)
	assert.Equal(t, "", checks["BBDown"].Version, "unscripted call fails quietly")
	assert.Equal(t, "/usr/bin/whisper-ctranslate2", checks["whisper-ctranslate2"].Path)
}

func TestDoctorMissingRequiredTool(t *testing.T) {
	cfg := config.DefaultConfig()
	d := &Doctor{Config: cfg, FS: afero.NewMemMapFs(), LookPath: lookIn("yt-dlp", "BBDown", "ffmpeg")}

	report := d.Run(context.Background())
	assert.False(t, report.OK())
	checks := byName(report)
	assert.False(t, checks["ffprobe"].Found)
	assert.True(t, checks["ffprobe"].Optional)
	assert.False(t, checks["whisper-ctranslate2"].Found)
	assert.Contains(t, checks["whisper-ctranslate2"].Detail, "not found")
}

func TestDoctorEmbeddedFFmpegMakesFFmpegOptional(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Local.EmbeddedFFmpeg = true
	d := &Doctor{Config: cfg, FS: afero.NewMemMapFs(), LookPath: lookIn("yt-dlp", "BBDown", "whisper-ctranslate2")}

	report := d.Run(context.Background())
	assert.True(t, report.OK())
}
