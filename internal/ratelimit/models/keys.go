package models

import "strings"

// SanitizeKeySegment escapes delimiter characters in rate limit key segments
// so a client-controlled value containing ':' cannot address another bucket.
func SanitizeKeySegment(s string) string {
	return strings.ReplaceAll(s, ":", "_")
}

// NewIPKey returns the bucket key for a client IP within an endpoint class.
func NewIPKey(class EndpointClass, ip string) string {
	return "rl:" + string(class) + ":ip:" + SanitizeKeySegment(ip)
}
