package extractor

import (
	"regexp"
	"strings"
	"time"
)

var (
	illegalChars     = regexp.MustCompile(`[<>:"/\\|?*;，。！？、【】（）《》“”‘’` + "`" + `~@#$%^&+={}\[\]；]`)
	underscoreRegex  = regexp.MustCompile(`_+`)
	spaceRegex       = regexp.MustCompile(`\s+`)
	controlCharRegex = regexp.MustCompile(`[\x00-\x1f\x7f]`)
)

const (
	maxNameRunes = 150
	defaultName  = "video"
	stampLayout  = "20060102_150405"
)

// SanitizeFilename replaces characters that are illegal in file names, or
// awkward in shells, with underscores.
func SanitizeFilename(name string) string {
	result := controlCharRegex.ReplaceAllString(name, " ")
	result = illegalChars.ReplaceAllString(result, "_")
	result = underscoreRegex.ReplaceAllString(result, "_")

	result = strings.TrimSpace(spaceRegex.ReplaceAllString(result, " "))
	result = strings.Trim(result, "._")

	if strings.TrimSpace(strings.ReplaceAll(result, "_", "")) == "" {
		return defaultName
	}

	// Limit length to avoid "file name too long" errors
	runes := []rune(result)
	if len(runes) > maxNameRunes {
		result = strings.TrimRight(string(runes[:maxNameRunes]), "_")
	}
	return result
}

// OutputName returns <platform>_<sanitized title>_<YYYYMMDD_HHMMSS>, the
// base name shared by an item's audio file and transcript.
func OutputName(platform Kind, title string, now time.Time) string {
	return string(platform) + "_" + SanitizeFilename(title) + "_" + now.Format(stampLayout)
}
