package extractor

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/guiyumin/streamscribe/internal/core/artifact"
	"github.com/guiyumin/streamscribe/internal/core/errs"
	"github.com/guiyumin/streamscribe/internal/core/fileutil"
	"github.com/guiyumin/streamscribe/internal/core/runner"
	"github.com/guiyumin/streamscribe/internal/core/subtitle"
)

// BV/AV conversion constants (from https://github.com/Colerar/abv)
const (
	xorCode  int64 = 23442827791579
	maskCode int64 = (1 << 51) - 1
	maxAID   int64 = maskCode + 1
	minAID   int64 = 1
	bvBase   int64 = 58
	bvLen    int   = 9
)

var alphabet = []byte("FcwAPNKTMug3GV5Lj7EJnHpWsx4tb8haYeviqBz6rkCy12mUSDQX9RdoZf")

// AVToBV converts an AV number to BV ID
func AVToBV(avid int64) (string, error) {
	if avid < minAID {
		return "", fmt.Errorf("AV %d is smaller than %d", avid, minAID)
	}
	if avid >= maxAID {
		return "", fmt.Errorf("AV %d is bigger than %d", avid, maxAID)
	}

	bvid := make([]byte, bvLen)
	tmp := (maxAID | avid) ^ xorCode
	for i := bvLen - 1; tmp != 0; i-- {
		bvid[i] = alphabet[tmp%bvBase]
		tmp /= bvBase
	}
	bvid[0], bvid[6] = bvid[6], bvid[0]
	bvid[1], bvid[4] = bvid[4], bvid[1]

	return "BV1" + string(bvid), nil
}

const (
	bbInfoTimeout     = time.Minute
	bbSubtitleTimeout = 5 * time.Minute
	bbAudioTimeout    = 30 * time.Minute

	// DefaultBilibiliTitle is used when neither BBDown nor the URL yields a title
	DefaultBilibiliTitle = "B站视频"
)

var (
	bbTitleRegex = regexp.MustCompile(`视频标题[:：]\s*(.+)`)
	avRegex      = regexp.MustCompile(`(?i)/av(\d+)`)

	bbSubtitleExts = []string{".srt", ".ass", ".vtt"}
	bbAudioExts    = []string{".m4a", ".mp3", ".aac", ".flac", ".wav"}
)

// BilibiliStrategy acquires Bilibili transcripts with BBDown
type BilibiliStrategy struct {
	env *Env
}

func NewBilibili(env *Env) *BilibiliStrategy { return &BilibiliStrategy{env: env} }

func (s *BilibiliStrategy) Kind() Kind   { return KindBilibili }
func (s *BilibiliStrategy) Name() string { return "Bilibili" }

func (s *BilibiliStrategy) Acquire(ctx context.Context, req Request, sink Sink) (*Result, error) {
	env := s.env
	cfg := env.Config
	t := env.lang().Progress

	if err := fileutil.EnsureDirs(env.FS, cfg.Paths.TempDir, cfg.Paths.OutputDir); err != nil {
		return nil, errs.Wrap(errs.KindConfig, "prepare dirs", err)
	}

	sink.Emit("%s", t.FetchingInfo)
	title := s.Title(ctx, req.URL, sink)
	sink.Emit(t.Title, title)
	name := OutputName(KindBilibili, title, env.now())

	switch {
	case cfg.ForceTranscribe:
		sink.Emit("%s", t.ForceTranscribe)
	case cfg.BBDown.DownloadSubtitle:
		sink.Emit("%s", t.CheckingSubtitles)
		if path, ok := s.FetchSubtitle(ctx, req.URL, name, sink); ok {
			return Succeeded(env.FS, req, KindBilibili, MethodSubtitle, title, path, nil), nil
		}
		sink.Emit("%s", t.NoSubtitle)
	}

	audio, err := s.DownloadAudio(ctx, req.URL, name, sink)
	if err != nil {
		return fail(req, KindBilibili, MethodTranscription, title, err)
	}
	return env.transcribe(ctx, req, KindBilibili, title, audio, true, sink)
}

func (s *BilibiliStrategy) command(args []string, timeout time.Duration) runner.Command {
	return runner.Command{Name: s.env.Config.Paths.BBDown, Args: args, Timeout: timeout}
}

// Title asks BBDown for the video title. Failures degrade to the BV id and
// then to a fixed default, never to an error.
func (s *BilibiliStrategy) Title(ctx context.Context, url string, sink Sink) string {
	env := s.env
	log := env.log("bbdown")

	build := func(int) runner.Command {
		return s.command([]string{url, "--only-show-info"}, bbInfoTimeout)
	}
	res, err := runner.Retry(ctx, env.Exec, PolicyFor(env.Config.Retry.Metadata), build, env.retryNotifier(log, sink))
	if err == nil {
		if title := ParseBBDownTitle(res.Outcome.Stdout); title != "" {
			return title
		}
	} else {
		log.Warn("video info failed, using fallback title", "err", err)
	}
	return FallbackTitle(url)
}

// ParseBBDownTitle extracts the title from BBDown --only-show-info output.
func ParseBBDownTitle(out string) string {
	m := bbTitleRegex.FindStringSubmatch(out)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// FallbackTitle returns the BV id of url, or DefaultBilibiliTitle.
func FallbackTitle(url string) string {
	if bv := bvRegex.FindString(url); bv != "" {
		return bv
	}
	if m := avRegex.FindStringSubmatch(url); m != nil {
		if aid, err := strconv.ParseInt(m[1], 10, 64); err == nil {
			if bv, err := AVToBV(aid); err == nil {
				return bv
			}
		}
	}
	return DefaultBilibiliTitle
}

// FetchSubtitle runs BBDown --sub-only and converts the newest subtitle it
// wrote. Any failure means "no subtitle".
func (s *BilibiliStrategy) FetchSubtitle(ctx context.Context, url, name string, sink Sink) (string, bool) {
	env := s.env
	cfg := env.Config
	log := env.log("bbdown")

	since := env.now().Truncate(time.Second)
	build := func(int) runner.Command {
		return s.command([]string{url, "--sub-only", "--work-dir", cfg.Paths.TempDir}, bbSubtitleTimeout)
	}
	if _, err := runner.Retry(ctx, env.Exec, PolicyFor(cfg.Retry.Listing), build, env.retryNotifier(log, sink)); err != nil {
		log.Warn("subtitle download failed", "err", err)
		return "", false
	}

	files := artifact.Fresh(env.FS, cfg.Paths.TempDir, bbSubtitleExts, since)
	if len(files) == 0 {
		log.Info("no subtitle written, may need a logged-in BBDown")
		return "", false
	}
	defer func() {
		for _, f := range files {
			fileutil.RemoveQuietly(env.FS, f, log)
		}
	}()

	text, err := subtitle.Normalize(env.FS, files[0], subtitle.KindOf(files[0]))
	if err != nil || strings.TrimSpace(text) == "" {
		log.Warn("subtitle unusable", "path", files[0], "err", err)
		return "", false
	}
	out := filepath.Join(cfg.Paths.OutputDir, name+".txt")
	if err := subtitle.WriteText(env.FS, out, text); err != nil {
		log.Warn("cannot write transcript", "path", out, "err", err)
		return "", false
	}
	log.Info("subtitle saved", "from", filepath.Base(files[0]), "path", out)
	return out, true
}

// DownloadAudio runs BBDown --audio-only and renames the newest audio file
// it wrote to <temp>/<name><ext>, so the transcript gets a predictable name.
func (s *BilibiliStrategy) DownloadAudio(ctx context.Context, url, name string, sink Sink) (string, error) {
	env := s.env
	cfg := env.Config
	log := env.log("bbdown")

	sink.Emit("%s", env.lang().Progress.DownloadingAudio)
	since := env.now().Truncate(time.Second)
	build := func(int) runner.Command {
		return s.command([]string{url, "--audio-only", "--work-dir", cfg.Paths.TempDir}, bbAudioTimeout)
	}
	if _, err := runner.Retry(ctx, env.Exec, PolicyFor(cfg.Retry.Download), build, env.retryNotifier(log, sink)); err != nil {
		return "", exhausted("bbdown audio", err)
	}

	files := artifact.Fresh(env.FS, cfg.Paths.TempDir, bbAudioExts, since)
	if len(files) == 0 {
		return "", errs.New(errs.KindArtifactNotFound, "bbdown audio", "BBDown exited 0 but wrote no audio to %s", cfg.Paths.TempDir)
	}
	audio := files[0]
	target := filepath.Join(cfg.Paths.TempDir, name+strings.ToLower(filepath.Ext(audio)))
	if err := env.FS.Rename(audio, target); err != nil {
		log.Warn("cannot rename audio, transcribing in place", "path", audio, "err", err)
		return audio, nil
	}
	return target, nil
}
