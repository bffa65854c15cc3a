package media

import (
	"path/filepath"
	"slices"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/afero"
)

// Kind classifies a local media file.
type Kind int

const (
	KindUnknown Kind = iota
	KindAudio
	KindVideo
)

func (k Kind) String() string {
	switch k {
	case KindAudio:
		return "audio"
	case KindVideo:
		return "video"
	default:
		return "unknown"
	}
}

// Formats lists accepted extensions without the dot.
type Formats struct {
	Audio []string
	Video []string
}

// ByExt classifies path by its extension.
func (f Formats) ByExt(path string) Kind {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	switch {
	case ext == "":
		return KindUnknown
	case slices.Contains(f.Audio, ext):
		return KindAudio
	case slices.Contains(f.Video, ext):
		return KindVideo
	default:
		return KindUnknown
	}
}

// Detect classifies path by extension, then by sniffing its content when
// the extension is missing or not listed. The sniffed type must still be in
// the accepted lists.
func (f Formats) Detect(fs afero.Fs, path string) Kind {
	if k := f.ByExt(path); k != KindUnknown {
		return k
	}
	file, err := fs.Open(path)
	if err != nil {
		return KindUnknown
	}
	defer file.Close()

	mt, err := mimetype.DetectReader(file)
	if err != nil {
		return KindUnknown
	}
	ext := strings.TrimPrefix(mt.Extension(), ".")
	for m := mt; m != nil; m = m.Parent() {
		switch {
		case strings.HasPrefix(m.String(), "audio/") && slices.Contains(f.Audio, ext):
			return KindAudio
		case strings.HasPrefix(m.String(), "video/") && slices.Contains(f.Video, ext):
			return KindVideo
		}
	}
	return KindUnknown
}
