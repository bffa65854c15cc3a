// Package artifact locates files written by external tools whose exact
// output name is not guaranteed.
package artifact

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"
)

// DefaultWindow bounds how old a file may be for the prefix and newest-file
// stages. The bound only holds while a single acquisition writes to the
// directory at a time.
const DefaultWindow = 5 * time.Minute

// Stage names the resolution step that produced a match.
type Stage string

const (
	StageExact   Stage = "exact"
	StageVariant Stage = "variant"
	StagePrefix  Stage = "prefix"
	StageNewest  Stage = "newest"
)

// Query describes the expected artifact.
type Query struct {
	Base string   // expected file name without extension
	Dir  string   // directory the tool wrote into
	Exts []string // candidate extensions in priority order, e.g. ".txt"
}

// Match is a resolved artifact.
type Match struct {
	Path  string
	Stage Stage
}

// Resolver runs the four resolution stages against a filesystem.
type Resolver struct {
	FS     afero.Fs
	Now    func() time.Time
	Window time.Duration
}

// New returns a resolver over fs with the default window.
func New(fs afero.Fs) *Resolver {
	return &Resolver{FS: fs, Now: time.Now, Window: DefaultWindow}
}

// Resolve tries exact, variant, prefix and newest-file matching in order.
func (r *Resolver) Resolve(q Query) (Match, bool) {
	q.Exts = normalizeExts(q.Exts)
	stages := []struct {
		stage Stage
		fn    func(Query) (string, bool)
	}{
		{StageExact, r.Exact},
		{StageVariant, r.Variant},
		{StagePrefix, r.PrefixGlob},
		{StageNewest, r.Newest},
	}
	for _, s := range stages {
		if p, ok := s.fn(q); ok {
			return Match{Path: p, Stage: s.stage}, true
		}
	}
	return Match{}, false
}

// Exact checks Dir/Base.ext for each extension in order.
func (r *Resolver) Exact(q Query) (string, bool) {
	return r.firstExisting(q.Dir, []string{q.Base}, normalizeExts(q.Exts))
}

// Variant checks space/underscore substitutions and truncated names.
func (r *Resolver) Variant(q Query) (string, bool) {
	return r.firstExisting(q.Dir, Variants(q.Base), normalizeExts(q.Exts))
}

// PrefixGlob matches recent files whose name starts with a prefix of Base.
func (r *Resolver) PrefixGlob(q Query) (string, bool) {
	files := r.recent(q.Dir, normalizeExts(q.Exts))
	for _, prefix := range Prefixes(q.Base) {
		for _, ext := range normalizeExts(q.Exts) {
			for _, f := range files {
				if strings.HasPrefix(f.name, prefix) && hasExt(f.name, ext) {
					return filepath.Join(q.Dir, f.name), true
				}
			}
		}
	}
	return "", false
}

// Newest returns the most recently modified recent file with a candidate
// extension.
func (r *Resolver) Newest(q Query) (string, bool) {
	files := r.recent(q.Dir, normalizeExts(q.Exts))
	if len(files) == 0 {
		return "", false
	}
	return filepath.Join(q.Dir, files[0].name), true
}

func (r *Resolver) firstExisting(dir string, bases, exts []string) (string, bool) {
	for _, b := range bases {
		for _, ext := range exts {
			p := filepath.Join(dir, b+ext)
			if info, err := r.FS.Stat(p); err == nil && !info.IsDir() {
				return p, true
			}
		}
	}
	return "", false
}

type entry struct {
	name string
	mod  time.Time
}

// recent lists files in dir with a candidate extension modified within the
// window, newest first and by name on ties.
func (r *Resolver) recent(dir string, exts []string) []entry {
	infos, err := afero.ReadDir(r.FS, dir)
	if err != nil {
		return nil
	}
	now := r.now()
	window := r.Window
	if window <= 0 {
		window = DefaultWindow
	}
	var out []entry
	for _, info := range infos {
		if info.IsDir() || !matchesAny(info.Name(), exts) {
			continue
		}
		if now.Sub(info.ModTime()) > window {
			continue
		}
		out = append(out, entry{name: info.Name(), mod: info.ModTime()})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].mod.Equal(out[j].mod) {
			return out[i].mod.After(out[j].mod)
		}
		return out[i].name < out[j].name
	})
	return out
}

func (r *Resolver) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

// Variants returns alternative spellings of base a tool may have written:
// spaces and underscores swapped, and for names over 100 characters, the
// first 100, 80 and 60 characters.
func Variants(base string) []string {
	var out []string
	seen := map[string]bool{base: true}
	add := func(s string) {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	add(strings.ReplaceAll(base, "_", " "))
	add(strings.ReplaceAll(base, " ", "_"))
	runes := []rune(base)
	if len(runes) > 100 {
		for _, n := range []int{100, 80, 60} {
			add(string(runes[:n]))
		}
	}
	return out
}

// Prefixes returns the full name and the name shortened by 10 and 20
// characters, keeping only prefixes longer than 10 characters.
func Prefixes(base string) []string {
	runes := []rune(base)
	var out []string
	for _, n := range []int{len(runes), len(runes) - 10, len(runes) - 20} {
		if n > 10 {
			out = append(out, string(runes[:n]))
		}
	}
	return out
}

func normalizeExts(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		out = append(out, strings.ToLower(e))
	}
	return out
}

func hasExt(name, ext string) bool {
	return strings.EqualFold(filepath.Ext(name), ext)
}

func matchesAny(name string, exts []string) bool {
	for _, ext := range exts {
		if hasExt(name, ext) {
			return true
		}
	}
	return false
}

// Exists reports whether path is a regular, non-empty file.
func Exists(fs afero.Fs, path string) bool {
	info, err := fs.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Size() > 0
}

// Fresh lists regular files in dir whose extension is in exts and whose
// modification time is not before since, newest first. BBDown writes into a
// work directory under names derived from the video title, so callers find
// its output this way.
func Fresh(fs afero.Fs, dir string, exts []string, since time.Time) []string {
	infos, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil
	}
	exts = normalizeExts(exts)
	var picked []os.FileInfo
	for _, info := range infos {
		if info.IsDir() || !matchesAny(info.Name(), exts) || info.ModTime().Before(since) {
			continue
		}
		picked = append(picked, info)
	}
	sort.Slice(picked, func(i, j int) bool {
		if !picked[i].ModTime().Equal(picked[j].ModTime()) {
			return picked[i].ModTime().After(picked[j].ModTime())
		}
		return picked[i].Name() < picked[j].Name()
	})
	out := make([]string, len(picked))
	for i, info := range picked {
		out[i] = filepath.Join(dir, info.Name())
	}
	return out
}
