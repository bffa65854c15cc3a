package media

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/mewkiz/flac"
	"github.com/spf13/afero"

	"github.com/guiyumin/streamscribe/internal/core/logging"
	"github.com/guiyumin/streamscribe/internal/core/runner"
)

// Prober measures audio duration: ffprobe when installed, otherwise the
// pure-Go WAV, MP3 and FLAC decoders. Failures yield zero.
type Prober struct {
	FFprobe string
	Exec    runner.Executor
	FS      afero.Fs
	Logger  *logging.Logger
}

// Duration returns the length of the audio at path, or 0 when unknown.
func (p *Prober) Duration(ctx context.Context, path string) time.Duration {
	log := p.Logger
	if log == nil {
		log = logging.Discard()
	}
	if p.FFprobe != "" && p.Exec != nil {
		d, err := p.ffprobe(ctx, path)
		if err == nil {
			return d
		}
		log.Debug("ffprobe failed, decoding headers", "path", path, "err", err)
	}
	fs := p.FS
	if fs == nil {
		fs = afero.NewOsFs()
	}
	d, err := DecodeDuration(fs, path)
	if err != nil {
		log.Debug("duration unknown", "path", path, "err", err)
		return 0
	}
	return d
}

func (p *Prober) ffprobe(ctx context.Context, path string) (time.Duration, error) {
	res, err := p.Exec.Run(ctx, runner.Command{
		Name: p.FFprobe,
		Args: []string{
			"-v", "error",
			"-show_entries", "format=duration",
			"-of", "default=noprint_wrappers=1:nokey=1",
			path,
		},
		Timeout: 30 * time.Second,
	})
	if err != nil {
		return 0, err
	}
	if !res.OK() {
		return 0, fmt.Errorf("ffprobe: %s", res.Message())
	}
	return ParseSeconds(res.Stdout)
}

// ParseSeconds parses ffprobe's decimal seconds output.
func ParseSeconds(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", s, err)
	}
	if secs <= 0 {
		return 0, fmt.Errorf("non-positive duration %q", s)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// DecodeDuration reads the duration from WAV, MP3 or FLAC headers.
func DecodeDuration(fs afero.Fs, path string) (time.Duration, error) {
	f, err := fs.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return wavDuration(f)
	case ".mp3":
		return mp3Duration(f)
	case ".flac":
		return flacDuration(f)
	default:
		return 0, fmt.Errorf("no decoder for %s", filepath.Ext(path))
	}
}

func wavDuration(r io.ReadSeeker) (time.Duration, error) {
	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		return 0, fmt.Errorf("invalid WAV file")
	}
	return decoder.Duration()
}

func mp3Duration(r io.ReadSeeker) (time.Duration, error) {
	decoder, err := mp3.NewDecoder(r)
	if err != nil {
		return 0, err
	}
	// Length is in bytes of decoded 16-bit stereo PCM.
	n := decoder.Length()
	if n <= 0 || decoder.SampleRate() <= 0 {
		return 0, fmt.Errorf("unknown MP3 length")
	}
	samples := n / 4
	return time.Duration(samples) * time.Second / time.Duration(decoder.SampleRate()), nil
}

func flacDuration(r io.Reader) (time.Duration, error) {
	stream, err := flac.New(r)
	if err != nil {
		return 0, err
	}
	defer stream.Close()
	if stream.Info.SampleRate == 0 || stream.Info.NSamples == 0 {
		return 0, fmt.Errorf("unknown FLAC length")
	}
	return time.Duration(stream.Info.NSamples) * time.Second / time.Duration(stream.Info.SampleRate), nil
}
