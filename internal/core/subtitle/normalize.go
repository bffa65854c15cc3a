// Package subtitle converts time-coded subtitle files into plain text and
// picks a caption language.
package subtitle

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/afero"

	"github.com/guiyumin/streamscribe/internal/core/errs"
	"github.com/guiyumin/streamscribe/internal/core/textenc"
)

// Kind is a subtitle container format.
type Kind int

const (
	KindUnknown Kind = iota
	KindSRT
	KindASS
	KindVTT
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindSRT:
		return "srt"
	case KindASS:
		return "ass"
	case KindVTT:
		return "vtt"
	case KindText:
		return "txt"
	default:
		return "unknown"
	}
}

// KindFromExt maps a file extension (with or without the dot) to a Kind.
func KindFromExt(ext string) Kind {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "srt":
		return KindSRT
	case "ass", "ssa":
		return KindASS
	case "vtt":
		return KindVTT
	case "txt":
		return KindText
	default:
		return KindUnknown
	}
}

// KindOf returns the Kind for a file path.
func KindOf(path string) Kind {
	return KindFromExt(filepath.Ext(path))
}

// Extensions are the subtitle files this package can normalize.
var Extensions = []string{".srt", ".ass", ".ssa", ".vtt"}

var (
	htmlTag  = regexp.MustCompile(`<[^>]+>`)
	assTag   = regexp.MustCompile(`\{[^}]*\}`)
	digits   = regexp.MustCompile(`^\d+$`)
	entities = strings.NewReplacer("&amp;", "&", "&lt;", "<", "&gt;", ">", "&nbsp;", " ", "&quot;", `"`, "&#39;", "'")
)

// Normalize reads path from fs and returns its text content, one cue line
// per output line.
func Normalize(fs afero.Fs, path string, kind Kind) (string, error) {
	raw, err := afero.ReadFile(fs, path)
	if err != nil {
		return "", errs.Wrap(errs.KindArtifactNotFound, "read subtitle", err)
	}
	if kind == KindUnknown {
		kind = KindOf(path)
	}
	if kind == KindUnknown {
		return "", errs.New(errs.KindUnsupportedInput, "normalize", "unknown subtitle format %q", filepath.Ext(path))
	}
	text, ok := textenc.UTF16(raw)
	if !ok {
		// Undecodable bytes degrade to the lenient Latin-1 rendering.
		text = textenc.String(raw, textenc.Lenient...)
	}
	return NormalizeText(text, kind), nil
}

// NormalizeText strips headers, cue indices, timing lines and markup from
// subtitle text.
func NormalizeText(text string, kind Kind) string {
	text = textenc.StripBOM(text)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	lines := strings.Split(text, "\n")

	var out []string
	switch kind {
	case KindASS:
		out = assLines(lines)
	case KindVTT:
		out = vttLines(lines)
	case KindText:
		out = plainLines(lines)
	default:
		out = srtLines(lines)
	}
	return strings.Join(out, "\n")
}

func clean(s string) string {
	s = htmlTag.ReplaceAllString(s, "")
	s = assTag.ReplaceAllString(s, "")
	return strings.TrimSpace(entities.Replace(s))
}

func srtLines(lines []string) []string {
	var out []string
	for _, l := range lines {
		t := strings.TrimSpace(l)
		if t == "" || digits.MatchString(t) || strings.Contains(t, "-->") {
			continue
		}
		if c := clean(t); c != "" {
			out = append(out, c)
		}
	}
	return out
}

func vttLines(lines []string) []string {
	var (
		out  []string
		skip bool // inside a header, NOTE, STYLE or REGION block
	)
	for i, l := range lines {
		t := strings.TrimSpace(l)
		if t == "" {
			skip = false
			continue
		}
		if skip {
			continue
		}
		switch {
		case strings.HasPrefix(t, "WEBVTT"),
			t == "NOTE" || strings.HasPrefix(t, "NOTE "),
			t == "STYLE", t == "REGION":
			skip = true
			continue
		case strings.HasPrefix(t, "Kind:"), strings.HasPrefix(t, "Language:"):
			continue
		case strings.Contains(t, "-->"), digits.MatchString(t):
			continue
		case nextIsTiming(lines, i):
			// cue identifier
			continue
		}
		c := clean(t)
		if c == "" {
			continue
		}
		// Auto-generated captions repeat the previous line as they scroll.
		if len(out) > 0 && out[len(out)-1] == c {
			continue
		}
		out = append(out, c)
	}
	return out
}

func nextIsTiming(lines []string, i int) bool {
	if i+1 >= len(lines) {
		return false
	}
	return strings.Contains(lines[i+1], "-->")
}

// assLines keeps the text field of Dialogue events. Format:
// Dialogue: Layer,Start,End,Style,Name,MarginL,MarginR,MarginV,Effect,Text
func assLines(lines []string) []string {
	var out []string
	for _, l := range lines {
		t := strings.TrimSpace(l)
		if !strings.HasPrefix(t, "Dialogue:") {
			continue
		}
		parts := strings.SplitN(t, ",", 10)
		if len(parts) < 10 {
			continue
		}
		body := strings.NewReplacer(`\N`, "\n", `\n`, "\n", `\h`, " ").Replace(parts[9])
		for _, seg := range strings.Split(body, "\n") {
			if c := clean(seg); c != "" {
				out = append(out, c)
			}
		}
	}
	return out
}

func plainLines(lines []string) []string {
	var out []string
	for _, l := range lines {
		if t := strings.TrimSpace(l); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// WriteText writes normalized text to path, creating parent directories.
func WriteText(fs afero.Fs, path, text string) error {
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := afero.WriteFile(fs, path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("write transcript: %w", err)
	}
	return nil
}
