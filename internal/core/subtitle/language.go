package subtitle

import "strings"

// Rank orders caption languages: Simplified Chinese, then Traditional
// Chinese, then English, then everything else. zh-Hant-CN counts as
// Simplified.
func Rank(lang string) int {
	l := strings.ToLower(strings.TrimSpace(lang))
	switch {
	case l == "zh-hans" || strings.HasPrefix(l, "zh-hans-"),
		l == "zh-cn", l == "zh-sg", l == "zh", l == "zh-chs",
		l == "zh-hant-cn":
		return 1
	case l == "zh-hant" || strings.HasPrefix(l, "zh-hant-"),
		l == "zh-tw", l == "zh-hk", l == "zh-mo", l == "zh-cht":
		return 2
	case l == "en" || strings.HasPrefix(l, "en-"):
		return 3
	default:
		return 4
	}
}

// SelectLanguage returns the highest ranked language, the earliest listed
// winning ties. ok is false for an empty list.
func SelectLanguage(langs []string) (string, bool) {
	best, bestRank := "", 0
	for _, l := range langs {
		if strings.TrimSpace(l) == "" {
			continue
		}
		if r := Rank(l); bestRank == 0 || r < bestRank {
			best, bestRank = l, r
		}
	}
	return best, bestRank != 0
}
