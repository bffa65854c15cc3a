package extractor

import (
	"regexp"
	"strings"
)

// URL patterns for the supported platforms
var (
	youtubePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?:youtube\.com/watch\?(?:.*&)?v=|youtu\.be/)([a-zA-Z0-9_-]{11})`),
		regexp.MustCompile(`youtube\.com/embed/([a-zA-Z0-9_-]{11})`),
		regexp.MustCompile(`youtube\.com/v/([a-zA-Z0-9_-]{11})`),
		regexp.MustCompile(`youtube\.com/shorts/([a-zA-Z0-9_-]{11})`),
	}
	bilibiliPatterns = []*regexp.Regexp{
		regexp.MustCompile(`bilibili\.com/video/(BV[a-zA-Z0-9]+)`),
		regexp.MustCompile(`bilibili\.com/video/(av\d+)`),
		regexp.MustCompile(`b23\.tv/([a-zA-Z0-9]+)`),
		regexp.MustCompile(`bilibili\.com/s/video/(BV[a-zA-Z0-9]+)`),
	}
	bvRegex = regexp.MustCompile(`BV[a-zA-Z0-9]+`)
)

// Classify determines which strategy handles req. It never fails:
// unrecognised URLs are KindUnsupported.
func Classify(req Request) Kind {
	if req.Validate() != nil {
		return KindUnsupported
	}
	if req.Path != "" {
		return KindLocal
	}
	kind, _ := VideoID(req.URL)
	return kind
}

// VideoID returns the platform and its video id for a URL.
func VideoID(rawURL string) (Kind, string) {
	if !strings.HasPrefix(strings.ToLower(rawURL), "http://") && !strings.HasPrefix(strings.ToLower(rawURL), "https://") {
		return KindUnsupported, ""
	}
	for _, re := range youtubePatterns {
		if m := re.FindStringSubmatch(rawURL); m != nil {
			return KindYouTube, m[1]
		}
	}
	for _, re := range bilibiliPatterns {
		if m := re.FindStringSubmatch(rawURL); m != nil {
			return KindBilibili, m[1]
		}
	}
	return KindUnsupported, ""
}

// PlatformInfo describes an input without acquiring it
type PlatformInfo struct {
	Platform  Kind   `json:"platform"`
	VideoID   string `json:"video_id,omitempty"`
	Supported bool   `json:"supported"`
}

// Describe classifies req and extracts its id.
func Describe(req Request) PlatformInfo {
	kind := Classify(req)
	info := PlatformInfo{Platform: kind, Supported: kind != KindUnsupported}
	if req.URL != "" {
		_, info.VideoID = VideoID(req.URL)
	}
	return info
}

// Platform is an entry of the supported platform listing
type Platform struct {
	Kind     Kind
	Name     string
	Tool     string
	Examples []string
}

// Platforms lists what the classifier recognises.
func Platforms() []Platform {
	return []Platform{
		{
			Kind: KindYouTube, Name: "YouTube", Tool: "yt-dlp",
			Examples: []string{"https://www.youtube.com/watch?v=<id>", "https://youtu.be/<id>", "https://www.youtube.com/shorts/<id>"},
		},
		{
			Kind: KindBilibili, Name: "Bilibili", Tool: "BBDown",
			Examples: []string{"https://www.bilibili.com/video/BV...", "https://b23.tv/<code>"},
		},
		{
			Kind: KindLocal, Name: "Local file", Tool: "ffmpeg",
			Examples: []string{"/path/to/audio.mp3", "/path/to/video.mp4"},
		},
	}
}
