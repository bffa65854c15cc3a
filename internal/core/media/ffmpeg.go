// Package media extracts audio tracks from video containers, measures
// audio duration and classifies local media files.
package media

import (
	"context"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/guiyumin/streamscribe/internal/core/artifact"
	"github.com/guiyumin/streamscribe/internal/core/fileutil"
	"github.com/guiyumin/streamscribe/internal/core/logging"
	"github.com/guiyumin/streamscribe/internal/core/runner"
)

const extractTimeout = 30 * time.Minute

// Extractor pulls the audio track out of a video file.
type Extractor struct {
	FFmpeg   string // ffmpeg executable name or path
	TempDir  string
	Embedded bool // fall back to the WebAssembly ffmpeg build
	Exec     runner.Executor
	FS       afero.Fs
	Logger   *logging.Logger
	// LookPath resolves FFmpeg; exec.LookPath when nil
	LookPath func(string) (string, error)
	// embed runs the WebAssembly build; convertWithEmbedded when nil
	embed func(ctx context.Context, in, out string) error
}

// Available checks if the ffmpeg binary can be found.
func (x *Extractor) Available() bool {
	lookPath := x.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	_, err := lookPath(x.FFmpeg)
	return err == nil
}

// Extraction is the audio file to transcribe. Extracted is false when the
// original video is passed through unchanged.
type Extraction struct {
	Path      string
	Extracted bool
	Via       string // "ffmpeg", "embedded" or ""
}

// Cleanup removes the extracted intermediate, never the original input.
func (e Extraction) Cleanup(fs afero.Fs, log *logging.Logger) {
	if e.Extracted {
		fileutil.RemoveQuietly(fs, e.Path, log)
	}
}

// ExtractAudio writes TempDir/<stem>_extracted.mp3 with the system ffmpeg.
// Without ffmpeg it tries the embedded build (16 kHz mono WAV) when enabled,
// and otherwise returns the video itself so the engine can read it directly.
// Extraction failures also fall back to the original file.
func (x *Extractor) ExtractAudio(ctx context.Context, videoPath, stem string) Extraction {
	log := x.logger()
	passthrough := Extraction{Path: videoPath}

	if err := fileutil.EnsureDirs(x.fs(), x.TempDir); err != nil {
		log.Warn("cannot create temp dir, using original file", "dir", x.TempDir, "err", err)
		return passthrough
	}

	if x.Available() {
		out := filepath.Join(x.TempDir, stem+"_extracted.mp3")
		cmd := runner.Command{
			Name: x.FFmpeg,
			Args: []string{
				"-i", videoPath,
				"-vn",
				"-acodec", "mp3",
				"-ab", "192k",
				"-ar", "44100",
				"-y",
				out,
			},
			Timeout: extractTimeout,
		}
		log.Debug("extracting audio", "input", videoPath, "output", out)
		res, err := x.Exec.Run(ctx, cmd)
		switch {
		case err != nil:
			log.Warn("audio extraction failed, using original file", "err", err)
		case !res.OK():
			log.Warn("audio extraction failed, using original file", "code", res.ExitCode, "stderr", res.Message())
		case !artifact.Exists(x.fs(), out):
			log.Warn("ffmpeg wrote no audio, using original file", "output", out)
		default:
			return Extraction{Path: out, Extracted: true, Via: "ffmpeg"}
		}
		fileutil.RemoveQuietly(x.fs(), out, log)
		return passthrough
	}

	if x.Embedded {
		out := filepath.Join(x.TempDir, stem+"_extracted.wav")
		embed := x.embed
		if embed == nil {
			embed = convertWithEmbedded
		}
		log.Info("ffmpeg not found, converting with embedded ffmpeg", "input", videoPath)
		if err := embed(ctx, videoPath, out); err != nil {
			log.Warn("embedded conversion failed, using original file", "err", err)
			fileutil.RemoveQuietly(x.fs(), out, log)
			return passthrough
		}
		return Extraction{Path: out, Extracted: true, Via: "embedded"}
	}

	log.Info("ffmpeg not found, passing video to the engine directly", "input", videoPath)
	return passthrough
}

func (x *Extractor) fs() afero.Fs {
	if x.FS == nil {
		return afero.NewOsFs()
	}
	return x.FS
}

func (x *Extractor) logger() *logging.Logger {
	if x.Logger == nil {
		return logging.Discard()
	}
	return x.Logger
}
