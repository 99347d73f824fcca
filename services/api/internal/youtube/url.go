package youtube

import "regexp"

var videoURLRE = regexp.MustCompile(`(?i)(?:youtube\.com/(?:[^/]+/.+/|(?:v|e(?:mbed)?)/|.*[?&]v=)|youtu\.be/)([^"&?/\s]{11})`)

// IsURL reports whether u points at a YouTube video.
func IsURL(u string) bool {
	return videoURLRE.MatchString(u)
}

// VideoID extracts the 11-character video id, or "" when u is not a
// YouTube video URL.
func VideoID(u string) string {
	m := videoURLRE.FindStringSubmatch(u)
	if m == nil {
		return ""
	}
	return m[1]
}
