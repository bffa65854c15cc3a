package extractor

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/guiyumin/streamscribe/internal/core/artifact"
	"github.com/guiyumin/streamscribe/internal/core/errs"
	"github.com/guiyumin/streamscribe/internal/core/transcriber"
)

// Kind is the platform an input belongs to
type Kind string

const (
	KindYouTube     Kind = "youtube"
	KindBilibili    Kind = "bilibili"
	KindLocal       Kind = "local"
	KindUnsupported Kind = "unsupported"
)

// Method tells whether a transcript came from a subtitle track or from the
// speech-to-text engine
type Method string

const (
	MethodSubtitle      Method = "subtitle"
	MethodTranscription Method = "transcription"
)

// Request is one input: a URL or a local file path, never both
type Request struct {
	URL  string `json:"url,omitempty"`
	Path string `json:"path,omitempty"`
}

func NewURLRequest(u string) Request  { return Request{URL: strings.TrimSpace(u)} }
func NewFileRequest(p string) Request { return Request{Path: strings.TrimSpace(p)} }

// Validate checks that exactly one of URL and Path is set
func (r Request) Validate() error {
	switch {
	case r.URL == "" && r.Path == "":
		return errs.New(errs.KindUnsupportedInput, "request", "empty request")
	case r.URL != "" && r.Path != "":
		return errs.New(errs.KindUnsupportedInput, "request", "both url and path set")
	}
	return nil
}

// Input returns whichever of URL and Path is set
func (r Request) Input() string {
	if r.URL != "" {
		return r.URL
	}
	return r.Path
}

func (r Request) String() string { return r.Input() }

var schemeRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*://`)

// ParseInput turns a command-line argument into a request. Anything with a
// scheme or a known platform host is a URL; everything else is a path.
func ParseInput(s string) Request {
	s = strings.TrimSpace(s)
	if schemeRegex.MatchString(s) {
		return NewURLRequest(s)
	}
	lower := strings.ToLower(s)
	for _, host := range []string{"youtube.com/", "youtu.be/", "bilibili.com/", "b23.tv/"} {
		if strings.HasPrefix(lower, host) || strings.HasPrefix(lower, "www."+host) || strings.HasPrefix(lower, "m."+host) {
			return NewURLRequest("https://" + s)
		}
	}
	return NewFileRequest(s)
}

// Timing describes a transcription run
type Timing struct {
	AudioDuration  time.Duration `json:"audio_duration"`
	ProcessingTime time.Duration `json:"processing_time"`
	SpeedRatio     float64       `json:"speed_ratio"`
}

// TimingFrom copies the engine's measurements
func TimingFrom(r *transcriber.Result) *Timing {
	if r == nil {
		return nil
	}
	return &Timing{AudioDuration: r.AudioDuration, ProcessingTime: r.ProcessingTime, SpeedRatio: r.SpeedRatio}
}

// Result is the outcome of one acquisition. A successful result always
// names an existing non-empty transcript; a failed one always has Err set
// and no path.
type Result struct {
	Success        bool        `json:"success"`
	TranscriptPath string      `json:"transcript_path,omitempty"`
	Method         Method      `json:"method,omitempty"`
	Title          string      `json:"title,omitempty"`
	Platform       Kind        `json:"platform"`
	Input          string      `json:"input"`
	Err            *errs.Error `json:"-"`
	Timing         *Timing     `json:"timing,omitempty"`
}

// Error returns the failure message, or "" on success
func (r *Result) Error() string {
	if r == nil || r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Succeeded builds a successful result after checking that the transcript
// is really there. A missing or empty file turns it into a failure.
func Succeeded(fs afero.Fs, req Request, platform Kind, method Method, title, path string, timing *Timing) *Result {
	if path == "" || !artifact.Exists(fs, path) {
		return Failed(req, platform, method, title,
			errs.New(errs.KindArtifactNotFound, string(platform), "transcript %q missing or empty", path))
	}
	return &Result{
		Success:        true,
		TranscriptPath: path,
		Method:         method,
		Title:          title,
		Platform:       platform,
		Input:          req.Input(),
		Timing:         timing,
	}
}

// Failed builds a failed result. A nil err still yields a non-nil error.
func Failed(req Request, platform Kind, method Method, title string, err error) *Result {
	if err == nil {
		err = errors.New("unknown failure")
	}
	return &Result{
		Platform: platform,
		Method:   method,
		Title:    title,
		Input:    req.Input(),
		Err:      errs.From(err, errs.KindAcquisitionFailed, string(platform)),
	}
}

// Sink receives human-readable progress lines. It may be nil.
type Sink func(string)

// Emit sends a line when the sink is set
func (s Sink) Emit(format string, args ...any) {
	if s == nil {
		return
	}
	if len(args) == 0 {
		s(format)
		return
	}
	s(fmt.Sprintf(format, args...))
}

// Strategy acquires transcripts for one platform. The returned error is
// reserved for configuration problems; every other failure is a failed
// Result.
type Strategy interface {
	Kind() Kind
	// Name returns a display name (e.g., "YouTube")
	Name() string
	Acquire(ctx context.Context, req Request, sink Sink) (*Result, error)
}

// Transcriber is the speech-to-text step used on the transcription path
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath, outputDir string) (*transcriber.Result, error)
}
