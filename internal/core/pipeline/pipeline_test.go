package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guiyumin/streamscribe/internal/core/config"
	"github.com/guiyumin/streamscribe/internal/core/errs"
	"github.com/guiyumin/streamscribe/internal/core/extractor"
	"github.com/guiyumin/streamscribe/internal/core/fileutil"
	"github.com/guiyumin/streamscribe/internal/core/runner"
	"github.com/guiyumin/streamscribe/internal/core/runner/runnertest"
)

const whisperPath = "/opt/whisper/bin/whisper-ctranslate2"

var fixedNow = time.Date(2026, 1, 2, 15, 4, 5, 0, time.Local)

func testConfig(t *testing.T) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Language = "en"
	cfg.Paths.OutputDir = t.TempDir()
	cfg.Paths.TempDir = "/tmp/ss"
	cfg.Whisper.Executable = whisperPath
	cfg.Retry = config.RetryConfig{
		Metadata: config.Budget{Attempts: 3},
		Download: config.Budget{Attempts: 3},
		Listing:  config.Budget{Attempts: 2},
	}
	return cfg
}

// whisperWrites makes the fake engine write <output_dir>/<audio stem>.txt.
func whisperWrites(fs afero.Fs) runnertest.Responder {
	return runnertest.Then(func(cmd runner.Command) {
		out := filepath.Join(runnertest.ArgAfter(cmd, "--output_dir"), fileutil.Stem(cmd.Args[0])+".txt")
		_ = afero.WriteFile(fs, out, []byte("hello from whisper"), 0o644)
	}, runnertest.Ok(""))
}

func newPipeline(t *testing.T, cfg *config.Config, fs afero.Fs, fake *runnertest.Fake) *Pipeline {
	t.Helper()
	require.NoError(t, afero.WriteFile(fs, whisperPath, []byte("#!/bin/sh"), 0o755))
	p, err := New(cfg, Deps{Exec: fake, FS: fs, Now: func() time.Time { return fixedNow }})
	require.NoError(t, err)
	return p
}

func TestUnsupportedInputMakesNoToolCall(t *testing.T) {
	fs := afero.NewMemMapFs()
	fake := runnertest.New()
	p := newPipeline(t, testConfig(t), fs, fake)

	var lines []string
	res, err := p.AcquireOne(context.Background(), extractor.NewURLRequest("https://vimeo.com/12345"), func(s string) { lines = append(lines, s) })
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, extractor.KindUnsupported, res.Platform)
	assert.Equal(t, errs.KindUnsupportedInput, res.Err.Kind)
	assert.Empty(t, fake.Calls())
	assert.Contains(t, lines, "Processing: https://vimeo.com/12345")
}

func TestEndToEndSubtitleAndLocalFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/media/song.mp3", []byte("ID3 audio"), 0o644))
	info := `{"id":"dQw4w9WgXcQ","title":"Talk","duration":60}`
	list := "[info] Available subtitles for dQw4w9WgXcQ:\nLanguage Name Formats\nen English vtt\nzh-Hans Chinese vtt\n"
	vtt := "WEBVTT\n\n00:00:01.000 --> 00:00:02.000\nA\n\n00:00:02.000 --> 00:00:03.000\nB\n"

	fake := runnertest.New().
		On(runnertest.Tool("yt-dlp", "--dump-json"), runnertest.Ok(info)).
		On(runnertest.Tool("yt-dlp", "--list-subs"), runnertest.Ok(list)).
		On(runnertest.Tool("yt-dlp", "--write-subs"), runnertest.Then(func(cmd runner.Command) {
			p := strings.Replace(runnertest.ArgAfter(cmd, "--output"), "%(ext)s", "zh-Hans.vtt", 1)
			_ = afero.WriteFile(fs, p, []byte(vtt), 0o644)
		}, runnertest.Ok(""))).
		On(runnertest.Tool("whisper-ctranslate2"), whisperWrites(fs))
	cfg := testConfig(t)
	p := newPipeline(t, cfg, fs, fake)

	sum, err := p.AcquireBatch(context.Background(), []extractor.Request{
		extractor.NewURLRequest("https://www.youtube.com/watch?v=dQw4w9WgXcQ"),
		extractor.NewFileRequest("/media/song.mp3"),
	}, nil)
	require.NoError(t, err)
	require.Len(t, sum.Items, 2)
	assert.Equal(t, 2, sum.Succeeded)

	yt := sum.Items[0]
	assert.Equal(t, extractor.MethodSubtitle, yt.Method)
	assert.Equal(t, filepath.Join(cfg.Paths.OutputDir, "youtube_Talk_20260102_150405.txt"), yt.TranscriptPath)
	text, err := afero.ReadFile(fs, yt.TranscriptPath)
	require.NoError(t, err)
	assert.Equal(t, "A\nB", string(text))

	local := sum.Items[1]
	assert.Equal(t, extractor.MethodTranscription, local.Method)
	assert.Equal(t, filepath.Join(cfg.Paths.OutputDir, "song.txt"), local.TranscriptPath)

	whisper := fake.CallsTo("whisper-ctranslate2")
	require.Len(t, whisper, 1, "only the local file reaches the engine")
	assert.Equal(t, "/media/song.mp3", whisper[0].Args[0])
	assert.Equal(t, map[extractor.Method]int{extractor.MethodSubtitle: 1, extractor.MethodTranscription: 1}, sum.ByMethod())
}

func TestBatchIsolatesFailures(t *testing.T) {
	fs := afero.NewMemMapFs()
	for _, name := range []string{"a.mp3", "b.mp3", "c.wav"} {
		require.NoError(t, afero.WriteFile(fs, "/media/"+name, []byte("audio "+name), 0o644))
	}
	fake := runnertest.New().
		On(runnertest.Tool("whisper-ctranslate2", "/media/b.mp3"), runnertest.Fail(1, "RuntimeError: CUDA out of memory")).
		On(runnertest.Tool("whisper-ctranslate2"), whisperWrites(fs))
	p := newPipeline(t, testConfig(t), fs, fake)

	reqs := []extractor.Request{
		extractor.NewFileRequest("/media/a.mp3"),
		extractor.NewFileRequest("/media/b.mp3"),
		extractor.NewFileRequest("/media/c.wav"),
	}
	sum, err := p.AcquireBatch(context.Background(), reqs, nil)
	require.NoError(t, err)

	assert.Equal(t, 3, sum.Total)
	assert.Equal(t, 2, sum.Succeeded)
	assert.Equal(t, 1, sum.Failed)
	require.Len(t, sum.Items, 3)
	for i, r := range sum.Items {
		assert.Equal(t, reqs[i].Input(), r.Input, "input order kept")
	}
	failed := sum.Items[1]
	assert.False(t, failed.Success)
	require.NotNil(t, failed.Err)
	assert.Equal(t, errs.KindToolFatal, failed.Err.Kind)
	assert.Contains(t, failed.Error(), "CUDA out of memory")
	assert.Empty(t, failed.TranscriptPath)
	assert.True(t, sum.Items[2].Success, "batch continues after a failed item")
	assert.Len(t, fake.CallsTo("whisper-ctranslate2"), 3)
	assert.NotEqual(t, "", sum.RunID.String())
}

func TestLockUsesDiskAndCreatesOutputDir(t *testing.T) {
	fs := afero.NewMemMapFs()
	cfg := testConfig(t)
	cfg.Paths.OutputDir = filepath.Join(t.TempDir(), "nested", "out")
	p := newPipeline(t, cfg, fs, runnertest.New())

	_, err := p.AcquireOne(context.Background(), extractor.NewURLRequest("https://vimeo.com/1"), nil)
	require.NoError(t, err)

	isDir, err := afero.IsDir(fs, cfg.Paths.OutputDir)
	require.NoError(t, err)
	assert.True(t, isDir, "output dir is created through the injected fs")

	_, err = os.Stat(filepath.Join(cfg.Paths.OutputDir, lockName))
	assert.NoError(t, err, "lock file is on the real filesystem")
	exists, _ := afero.Exists(fs, filepath.Join(cfg.Paths.OutputDir, lockName))
	assert.False(t, exists)
}

func TestBatchLocalFileLimit(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/media/a.mp3", []byte("ID3 a"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/media/b.mp3", []byte("ID3 b"), 0o644))
	fake := runnertest.New().On(runnertest.Tool("whisper-ctranslate2"), whisperWrites(fs))
	cfg := testConfig(t)
	cfg.Local.MaxBatchFiles = 1
	p := newPipeline(t, cfg, fs, fake)

	sum, err := p.AcquireBatch(context.Background(), []extractor.Request{
		extractor.NewFileRequest("/media/a.mp3"),
		extractor.NewFileRequest("/media/b.mp3"),
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Succeeded)
	assert.Equal(t, errs.KindUnsupportedInput, sum.Items[1].Err.Kind)
	assert.Len(t, fake.CallsTo("whisper-ctranslate2"), 1)
}

func TestBatchCancelled(t *testing.T) {
	fs := afero.NewMemMapFs()
	fake := runnertest.New()
	p := newPipeline(t, testConfig(t), fs, fake)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sum, err := p.AcquireBatch(ctx, []extractor.Request{
		extractor.NewURLRequest("https://youtu.be/dQw4w9WgXcQ"),
		extractor.NewFileRequest("/media/a.mp3"),
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Failed)
	for _, r := range sum.Items {
		assert.Contains(t, r.Error(), "cancelled")
	}
	assert.Empty(t, fake.Calls())
}

func TestMissingEngineIsReturnedAsError(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/media/a.mp3", []byte("ID3 a"), 0o644))
	cfg := testConfig(t)
	cfg.Whisper.Executable = "/missing/whisper-ctranslate2"
	p := newPipeline(t, cfg, fs, runnertest.New())

	res, err := p.AcquireOne(context.Background(), extractor.NewFileRequest("/media/a.mp3"), nil)
	assert.Nil(t, res)
	assert.True(t, errs.Is(err, errs.KindConfig))

	sum, err := p.AcquireBatch(context.Background(), []extractor.Request{extractor.NewFileRequest("/media/a.mp3")}, nil)
	assert.True(t, errs.Is(err, errs.KindConfig))
	assert.Empty(t, sum.Items)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Paths.OutputDir = ""
	_, err := New(cfg, Deps{FS: afero.NewMemMapFs()})
	assert.True(t, errs.Is(err, errs.KindConfig))
}

func TestChannelSinkNeverBlocks(t *testing.T) {
	ch := make(chan Event, 1)
	sink := ChannelSink(ch)
	sink("one")
	sink("two")
	ev := <-ch
	assert.Equal(t, "one", ev.Message)
	assert.Empty(t, ch)

	var got []string
	Tee(sink, nil, func(s string) { got = append(got, s) })("three")
	assert.Equal(t, []string{"three"}, got)
	assert.Equal(t, "three", (<-ch).Message)
}
