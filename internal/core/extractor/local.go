package extractor

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/guiyumin/streamscribe/internal/core/errs"
	"github.com/guiyumin/streamscribe/internal/core/fileutil"
	"github.com/guiyumin/streamscribe/internal/core/media"
)

// LocalStrategy transcribes audio and video files on disk. There is no
// metadata or subtitle phase.
type LocalStrategy struct {
	env       *Env
	extractor *media.Extractor
	formats   media.Formats
}

// NewLocal builds the strategy. extractor may be nil, in which case video
// files go to the engine unchanged.
func NewLocal(env *Env, extractor *media.Extractor) *LocalStrategy {
	return &LocalStrategy{
		env:       env,
		extractor: extractor,
		formats:   media.Formats{Audio: env.Config.Local.AudioFormats, Video: env.Config.Local.VideoFormats},
	}
}

func (s *LocalStrategy) Kind() Kind   { return KindLocal }
func (s *LocalStrategy) Name() string { return "Local file" }

// Formats returns the accepted extensions.
func (s *LocalStrategy) Formats() media.Formats { return s.formats }

func (s *LocalStrategy) Acquire(ctx context.Context, req Request, sink Sink) (*Result, error) {
	env := s.env
	t := env.lang()
	log := env.log("local")

	path := req.Path
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	title := filepath.Base(path)

	info, err := env.FS.Stat(path)
	if err != nil || info.IsDir() {
		return Failed(req, KindLocal, MethodTranscription, title,
			errs.New(errs.KindUnsupportedInput, "local", t.Errors.FileNotFound, path)), nil
	}

	kind := s.formats.Detect(env.FS, path)
	if kind == media.KindUnknown {
		supported := strings.Join(append(append([]string{}, s.formats.Audio...), s.formats.Video...), ", ")
		return Failed(req, KindLocal, MethodTranscription, title,
			errs.New(errs.KindUnsupportedInput, "local", t.Errors.BadFormat, supported)), nil
	}

	audio, owned := path, false
	if kind == media.KindVideo {
		sink.Emit("%s", t.Progress.ExtractingAudio)
		if s.extractor != nil {
			x := s.extractor.ExtractAudio(ctx, path, SanitizeFilename(fileutil.Stem(path)))
			audio, owned = x.Path, x.Extracted
			log.Info("audio source", "path", audio, "via", x.Via)
		} else {
			log.Warn("no audio extractor, passing video to the engine", "path", path)
		}
	} else {
		sink.Emit("%s", t.Progress.AudioReady)
	}

	return env.transcribe(ctx, req, KindLocal, title, audio, owned, sink)
}
