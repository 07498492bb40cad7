package domain

import "strings"

// ResolveZoneStatus picks a zone's effective status from its redundant pair:
// the human-readable string is authoritative, the coded string is the
// fallback when the readable one is absent.
func ResolveZoneStatus(readable, coded string) string {
	if s := strings.TrimSpace(readable); s != "" {
		return s
	}
	return strings.TrimSpace(coded)
}
