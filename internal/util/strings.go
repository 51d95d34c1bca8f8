package util

import "strings"

// SafeTruncate truncates s to maxLen bytes without panicking.
// It is used when logging identifiers and token prefixes, where only
// the first few characters should ever appear in a log line.
// A negative maxLen yields an empty string.
func SafeTruncate(s string, maxLen int) string {
	if maxLen < 0 {
		return ""
	}
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}

// NormalizeBaseURL strips trailing slashes from a base URL so that
// path joining produces exactly one separator.
func NormalizeBaseURL(url string) string {
	return strings.TrimRight(url, "/")
}
