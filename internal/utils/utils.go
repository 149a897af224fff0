package utils

import (
	"strings"
)

// ObfuscateHeader returns an obfuscated Authorization header,
// showing only the auth scheme and the first and last 2 characters of the token.
// Example: "Bearer sk*********yz"
func ObfuscateHeader(auth string) string {
	if auth == "" {
		return ""
	}

	scheme, token, ok := strings.Cut(auth, " ")
	if !ok {
		return "[invalid header]"
	}

	return scheme + " " + ObfuscateSecret(strings.TrimSpace(token))
}

// ObfuscateSecret masks all but the first and last 2 characters of s, keeping its length.
// Secrets of 4 characters or fewer are fully masked.
func ObfuscateSecret(s string) string {
	n := len(s)
	if n <= 4 {
		return strings.Repeat("*", n)
	}
	return s[:2] + strings.Repeat("*", n-4) + s[n-2:]
}
