package videos

import (
	"regexp"
	"strings"
)

// IDLength is the length of a provider video identifier.
const IDLength = 11

var (
	shortLinkPattern = regexp.MustCompile(`(?i)youtu\.be/([^?&#]*)`)
	longFormPattern  = regexp.MustCompile(`(?i)(?:youtube(?:-nocookie)?\.com/(?:embed/|v/|e/|shorts/|live/|watch\?(?:[^#]*&)?v=)|[?&]v=)([^?&#/\s]*)`)
)

// ExtractID returns the 11-character video identifier embedded in raw, or
// false when raw does not carry one.
func ExtractID(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}

	if m := shortLinkPattern.FindStringSubmatch(raw); m != nil {
		return acceptID(strings.TrimSuffix(m[1], "/"))
	}
	if m := longFormPattern.FindStringSubmatch(raw); m != nil {
		return acceptID(m[1])
	}
	return "", false
}

func acceptID(candidate string) (string, bool) {
	if len(candidate) != IDLength {
		return "", false
	}
	return candidate, true
}

// DefaultThumbnail returns the provider-hosted thumbnail for a video identifier.
func DefaultThumbnail(videoID string) string {
	if videoID == "" {
		return ""
	}
	return "https://img.youtube.com/vi/" + videoID + "/hqdefault.jpg"
}

// WatchURL returns the canonical watch page for a video identifier.
func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}
