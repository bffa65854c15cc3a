package extractor

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/guiyumin/streamscribe/internal/core/artifact"
	"github.com/guiyumin/streamscribe/internal/core/errs"
	"github.com/guiyumin/streamscribe/internal/core/fileutil"
	"github.com/guiyumin/streamscribe/internal/core/runner"
	"github.com/guiyumin/streamscribe/internal/core/subtitle"
)

const (
	ytMetadataTimeout = 2 * time.Minute
	ytListingTimeout  = time.Minute
	ytSubtitleTimeout = 5 * time.Minute
	ytAudioTimeout    = 30 * time.Minute
)

// VideoInfo is the metadata the pipeline needs from a video
type VideoInfo struct {
	ID       string
	Title    string
	Uploader string
	Duration time.Duration
}

// YouTubeStrategy acquires YouTube transcripts with yt-dlp
type YouTubeStrategy struct {
	env *Env
}

func NewYouTube(env *Env) *YouTubeStrategy { return &YouTubeStrategy{env: env} }

func (s *YouTubeStrategy) Kind() Kind   { return KindYouTube }
func (s *YouTubeStrategy) Name() string { return "YouTube" }

func (s *YouTubeStrategy) Acquire(ctx context.Context, req Request, sink Sink) (*Result, error) {
	env := s.env
	log := env.log("yt-dlp")
	t := env.lang().Progress

	sink.Emit("%s", t.FetchingInfo)
	info, err := s.Metadata(ctx, req.URL, sink)
	if err != nil {
		return fail(req, KindYouTube, "", "", err)
	}
	sink.Emit(t.Title, info.Title)
	name := OutputName(KindYouTube, info.Title, env.now())

	if env.Config.ForceTranscribe {
		sink.Emit("%s", t.ForceTranscribe)
	} else {
		sink.Emit("%s", t.CheckingSubtitles)
		if lang, ok := s.SubtitleLanguage(ctx, req.URL, sink); ok {
			sink.Emit(t.SubtitleFound, lang)
			path, err := s.FetchSubtitle(ctx, req.URL, lang, name, sink)
			if err != nil {
				return fail(req, KindYouTube, MethodSubtitle, info.Title, err)
			}
			return Succeeded(env.FS, req, KindYouTube, MethodSubtitle, info.Title, path, nil), nil
		}
		sink.Emit("%s", t.NoSubtitle)
	}

	audio, err := s.DownloadAudio(ctx, req.URL, name, sink)
	if err != nil {
		return fail(req, KindYouTube, MethodTranscription, info.Title, err)
	}
	log.Debug("audio downloaded", "path", audio)
	return env.transcribe(ctx, req, KindYouTube, info.Title, audio, true, sink)
}

// requestArgs are the anti-bot arguments added to every networked call.
func (s *YouTubeStrategy) requestArgs() []string {
	yc := s.env.Config.YouTube
	var args []string
	if yc.UserAgent != "" {
		args = append(args, "--user-agent", yc.UserAgent)
	}
	if yc.Referer != "" {
		args = append(args, "--referer", yc.Referer)
	}
	if yc.SleepRequests > 0 {
		args = append(args, "--sleep-requests", strconv.Itoa(yc.SleepRequests))
	}
	if yc.ExtractorArgs != "" {
		args = append(args, "--extractor-args", yc.ExtractorArgs)
	}
	return append(args, "--no-check-certificate")
}

func (s *YouTubeStrategy) command(args []string, timeout time.Duration) runner.Command {
	return runner.Command{Name: s.env.Config.Paths.YtDlp, Args: args, Timeout: timeout}
}

// Metadata fetches the video info without downloading media. The proxy is
// dropped on the final attempt.
func (s *YouTubeStrategy) Metadata(ctx context.Context, url string, sink Sink) (*VideoInfo, error) {
	env := s.env
	log := env.log("yt-dlp")
	policy := PolicyFor(env.Config.Retry.Metadata)

	build := func(attempt int) runner.Command {
		args := []string{"--dump-json", "--no-download", url}
		args = append(args, runner.ProxyArgs(env.Config.Network.Proxy, attempt, policy.MaxAttempts)...)
		args = append(args, s.requestArgs()...)
		return s.command(args, ytMetadataTimeout)
	}
	res, err := runner.Retry(ctx, env.Exec, policy, build, env.retryNotifier(log, sink))
	if err != nil {
		return nil, exhausted("yt-dlp metadata", err)
	}

	info, err := ParseVideoInfo(res.Outcome.Stdout)
	if err != nil {
		return nil, err
	}
	if info.Title == "" {
		_, id := VideoID(url)
		info.Title = firstNonEmpty(info.ID, id, defaultName)
	}
	log.Info("metadata", "id", info.ID, "title", info.Title, "duration", info.Duration)
	return info, nil
}

// ParseVideoInfo reads yt-dlp --dump-json output.
func ParseVideoInfo(out string) (*VideoInfo, error) {
	start := strings.IndexByte(out, '{')
	if start < 0 || !gjson.Valid(out[start:]) {
		return nil, errs.New(errs.KindToolFatal, "yt-dlp metadata", "output is not JSON: %.80q", out)
	}
	doc := gjson.Parse(out[start:])
	return &VideoInfo{
		ID:       doc.Get("id").String(),
		Title:    strings.TrimSpace(doc.Get("title").String()),
		Uploader: firstNonEmpty(doc.Get("uploader").String(), doc.Get("channel").String()),
		Duration: time.Duration(doc.Get("duration").Float() * float64(time.Second)),
	}, nil
}

// SubtitleLanguage lists the available tracks and picks one by priority.
// Listing failures count as "no subtitles" since many videos have none.
func (s *YouTubeStrategy) SubtitleLanguage(ctx context.Context, url string, sink Sink) (string, bool) {
	env := s.env
	log := env.log("yt-dlp")
	policy := PolicyFor(env.Config.Retry.Listing)

	build := func(attempt int) runner.Command {
		args := []string{"--list-subs", url}
		args = append(args, runner.ProxyArgs(env.Config.Network.Proxy, attempt, policy.MaxAttempts)...)
		args = append(args, s.requestArgs()...)
		return s.command(args, ytListingTimeout)
	}
	res, err := runner.Retry(ctx, env.Exec, policy, build, env.retryNotifier(log, sink))
	if err != nil {
		log.Warn("subtitle listing failed, assuming none", "err", err)
		return "", false
	}
	langs := ParseSubtitleList(res.Outcome.Stdout)
	lang, ok := subtitle.SelectLanguage(langs)
	log.Info("subtitles", "available", langs, "selected", lang)
	return lang, ok
}

// ParseSubtitleList extracts language codes from yt-dlp --list-subs output,
// manual subtitles and automatic captions alike, in order of appearance.
func ParseSubtitleList(out string) []string {
	var (
		langs     []string
		seen      = map[string]bool{}
		inSection bool
	)
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		lower := strings.ToLower(line)
		switch {
		case strings.Contains(lower, "available subtitles"), strings.Contains(lower, "available automatic captions"):
			inSection = true
			continue
		case strings.Contains(lower, "has no subtitles"), strings.Contains(lower, "has no automatic captions"):
			inSection = false
			continue
		case strings.HasPrefix(line, "Language") && (strings.Contains(line, "Name") || strings.Contains(line, "Formats")):
			continue
		}
		if !inSection || line == "" || strings.HasPrefix(line, "[") {
			continue
		}
		code := strings.Fields(line)[0]
		if !looksLikeLanguage(code) || seen[code] {
			continue
		}
		seen[code] = true
		langs = append(langs, code)
	}
	return langs
}

func looksLikeLanguage(code string) bool {
	if strings.Contains(code, "-") {
		return len(code) <= 10
	}
	return len(code) <= 5
}

// FetchSubtitle downloads one track as WebVTT into the temp dir, writes its
// text to <output>/<name>.txt and removes the .vtt.
func (s *YouTubeStrategy) FetchSubtitle(ctx context.Context, url, lang, name string, sink Sink) (string, error) {
	env := s.env
	cfg := env.Config
	log := env.log("yt-dlp")
	policy := PolicyFor(cfg.Retry.Listing)

	if err := fileutil.EnsureDirs(env.FS, cfg.Paths.TempDir, cfg.Paths.OutputDir); err != nil {
		return "", errs.Wrap(errs.KindConfig, "prepare dirs", err)
	}
	template := filepath.Join(cfg.Paths.TempDir, name+".%(ext)s")
	build := func(attempt int) runner.Command {
		args := []string{
			"--write-subs", "--write-auto-subs",
			"--sub-lang", lang,
			"--sub-format", "vtt",
			"--skip-download",
			"--output", template,
			url,
		}
		args = append(args, runner.ProxyArgs(cfg.Network.Proxy, attempt, policy.MaxAttempts)...)
		args = append(args, s.requestArgs()...)
		return s.command(args, ytSubtitleTimeout)
	}
	if _, err := runner.Retry(ctx, env.Exec, policy, build, env.retryNotifier(log, sink)); err != nil {
		return "", exhausted("yt-dlp subtitles", err)
	}

	resolver := &artifact.Resolver{FS: env.FS, Now: env.now, Window: artifact.DefaultWindow}
	match, ok := resolver.Resolve(artifact.Query{Base: name, Dir: cfg.Paths.TempDir, Exts: []string{".vtt"}})
	if !ok {
		return "", errs.New(errs.KindArtifactNotFound, "yt-dlp subtitles", "no .vtt for %q in %s", name, cfg.Paths.TempDir)
	}
	defer fileutil.RemoveQuietly(env.FS, match.Path, log)

	text, err := subtitle.Normalize(env.FS, match.Path, subtitle.KindVTT)
	if err != nil {
		return "", err
	}
	out := filepath.Join(cfg.Paths.OutputDir, name+".txt")
	if err := subtitle.WriteText(env.FS, out, text); err != nil {
		return "", errs.Wrap(errs.KindToolFatal, "write transcript", err)
	}
	log.Info("subtitle saved", "lang", lang, "path", out)
	return out, nil
}

// DownloadAudio fetches the best audio track as <temp>/<name>.mp3.
func (s *YouTubeStrategy) DownloadAudio(ctx context.Context, url, name string, sink Sink) (string, error) {
	env := s.env
	cfg := env.Config
	log := env.log("yt-dlp")
	policy := PolicyFor(cfg.Retry.Download)

	sink.Emit("%s", env.lang().Progress.DownloadingAudio)
	if err := fileutil.EnsureDirs(env.FS, cfg.Paths.TempDir); err != nil {
		return "", errs.Wrap(errs.KindConfig, "prepare dirs", err)
	}
	template := filepath.Join(cfg.Paths.TempDir, name+".%(ext)s")
	build := func(attempt int) runner.Command {
		args := []string{
			"--extract-audio",
			"--audio-format", "mp3",
			"--audio-quality", "192K",
			"--format", "bestaudio/best",
			"--no-video",
			"--output", template,
			url,
		}
		args = append(args, runner.ProxyArgs(cfg.Network.Proxy, attempt, policy.MaxAttempts)...)
		args = append(args, s.requestArgs()...)
		args = append(args, "--retries", "3")
		return s.command(args, ytAudioTimeout)
	}
	if _, err := runner.Retry(ctx, env.Exec, policy, build, env.retryNotifier(log, sink)); err != nil {
		return "", exhausted("yt-dlp audio", err)
	}

	audio := filepath.Join(cfg.Paths.TempDir, name+".mp3")
	if !artifact.Exists(env.FS, audio) {
		return "", errs.New(errs.KindArtifactNotFound, "yt-dlp audio", "yt-dlp exited 0 but %s was not written", audio)
	}
	return audio, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
