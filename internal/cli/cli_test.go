package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guiyumin/streamscribe/internal/core/config"
	"github.com/guiyumin/streamscribe/internal/core/deps"
	"github.com/guiyumin/streamscribe/internal/core/errs"
	"github.com/guiyumin/streamscribe/internal/core/extractor"
	"github.com/guiyumin/streamscribe/internal/core/i18n"
	"github.com/guiyumin/streamscribe/internal/core/media"
	"github.com/guiyumin/streamscribe/internal/core/pipeline"
)

func TestReadInputsSkipsBlanksAndComments(t *testing.T) {
	in := "https://youtu.be/dQw4w9WgXcQ\n\n  # later\n  ./talk.mp4  \n#https://b23.tv/x\n"
	got, err := readInputs(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []string{"https://youtu.be/dQw4w9WgXcQ", "./talk.mp4"}, got)
}

func TestCollectInputs(t *testing.T) {
	file := filepath.Join(t.TempDir(), "inputs.txt")
	require.NoError(t, os.WriteFile(file, []byte("b.mp3\n# skip\nc.mp3\n"), 0644))

	got, err := collectInputs([]string{"a.mp3"}, file)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.mp3", "b.mp3", "c.mp3"}, got)

	got, err = collectInputs([]string{"a.mp3"}, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.mp3"}, got)

	_, err = collectInputs(nil, filepath.Join(t.TempDir(), "missing.txt"))
	assert.ErrorContains(t, err, "failed to open input file")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefghij", 5))
	// CJK runes are two cells wide
	assert.Equal(t, "你好…", truncate("你好世界", 5))
}

func TestApplyFlags(t *testing.T) {
	t.Cleanup(func() {
		forceTranscribe, model, language, outputDir, proxy = false, "", "", "", ""
	})
	forceTranscribe = true
	model = "small"
	language = "zh"
	outputDir = "notes"
	proxy = "http://127.0.0.1:7890"

	cfg := config.DefaultConfig()
	cfg.Whisper.ComputeType = "int8"
	applyFlags(cfg)

	assert.True(t, cfg.ForceTranscribe)
	assert.Equal(t, "small", cfg.Whisper.Model)
	assert.Empty(t, cfg.Whisper.ComputeType)
	assert.Equal(t, "zh", cfg.Whisper.Language)
	assert.True(t, filepath.IsAbs(cfg.Paths.OutputDir))
	assert.Equal(t, "notes", filepath.Base(cfg.Paths.OutputDir))
	assert.Equal(t, "http://127.0.0.1:7890", cfg.Network.Proxy)
}

func TestApplyFlagsLeavesConfigAlone(t *testing.T) {
	cfg := config.DefaultConfig()
	want := *cfg
	applyFlags(cfg)
	assert.Equal(t, want.Whisper, cfg.Whisper)
	assert.Equal(t, want.Paths, cfg.Paths)
}

func TestRenderSummary(t *testing.T) {
	sum := &pipeline.Summary{Total: 2}
	sum.Add(&extractor.Result{
		Success: true, Input: "https://youtu.be/dQw4w9WgXcQ", Platform: extractor.KindYouTube,
		Method: extractor.MethodTranscription, TranscriptPath: "/out/youtube_x.txt",
		Timing: &extractor.Timing{SpeedRatio: 12.34},
	})
	sum.Add(extractor.Failed(extractor.NewFileRequest("/missing.mp3"), extractor.KindLocal, extractor.MethodTranscription, "",
		errs.New(errs.KindUnsupportedInput, "local", "file does not exist")))

	out := renderSummary(sum, i18n.T("en"), 200)
	assert.Contains(t, out, "Results")
	assert.Contains(t, out, "/out/youtube_x.txt")
	assert.Contains(t, out, "transcription 12.3x")
	assert.Contains(t, out, "file does not exist")
	assert.Contains(t, out, "Total: 2  Succeeded: 1  Failed: 1")
}

func TestMethodLabel(t *testing.T) {
	tr := i18n.T("en")
	assert.Equal(t, "subtitle", methodLabel(&extractor.Result{Method: extractor.MethodSubtitle}, tr))
	assert.Equal(t, "transcription", methodLabel(&extractor.Result{Method: extractor.MethodTranscription}, tr))
	assert.Equal(t, "-", methodLabel(&extractor.Result{}, tr))
}

func TestRenderDoctor(t *testing.T) {
	report := deps.Report{Checks: []deps.Check{
		{Name: "yt-dlp", Path: "/usr/bin/yt-dlp", Found: true, Version: "2025.01.01"},
		{Name: "BBDown", Detail: "Bilibili"},
		{Name: "ffprobe", Optional: true, Detail: "audio duration"},
	}}
	out := renderDoctor(report, i18n.T("en"))
	assert.Contains(t, out, "/usr/bin/yt-dlp")
	assert.Contains(t, out, "2025.01.01")
	assert.Contains(t, out, "missing")
	assert.Contains(t, out, "optional")
}

func TestRenderPlatforms(t *testing.T) {
	out := renderPlatforms(extractor.Platforms())
	assert.Contains(t, out, "YouTube")
	assert.Contains(t, out, "BBDown")
	assert.Contains(t, out, "https://youtu.be/<id>")
}

func TestMediaCandidates(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"talk.mp4", "notes.pdf", "song.mp3", ".hidden.mp3"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0755))

	formats := media.Formats{Audio: []string{"mp3"}, Video: []string{"mp4"}}
	got := mediaCandidates(dir+"/", formats)
	assert.Equal(t, []string{dir + "/song.mp3", dir + "/sub/", dir + "/talk.mp4"}, got)

	got = mediaCandidates(dir+"/s", formats)
	assert.Equal(t, []string{dir + "/song.mp3", dir + "/sub/"}, got)
}

func TestUnescapeShellPath(t *testing.T) {
	assert.Equal(t, "my talk (1).mp4", unescapeShellPath(`my\ talk\ \(1\).mp4`))
}
