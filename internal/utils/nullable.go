package utils

import "strings"

// NullableString converts a raw upstream string to *string.
// Whitespace-only values count as absent and map to nil (NULL), so the
// store never persists empty strings where the upstream had no value.
func NullableString(s string) *string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// StringVal safely dereferences *string, returning "" for nil
func StringVal(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
