// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/rawzip

package rawzip

import (
	"strings"
	"unicode/utf8"
)

// FilePath is a stored entry path as raw, uninterpreted bytes.
type FilePath []byte

// Raw returns the stored bytes without interpretation.
func (p FilePath) Raw() []byte {
	return []byte(p)
}

// String returns the stored bytes as a string without validation.
func (p FilePath) String() string {
	return string(p)
}

// UTF8 returns the path as a validated UTF-8 string.
func (p FilePath) UTF8() (string, error) {
	if !utf8.Valid(p) {
		return "", ErrInvalidEncoding
	}

	return string(p), nil
}

// SafePath returns a normalized path safe to join under an extraction root:
// a Windows drive prefix is stripped, leading separators are removed, "."
// and ".." segments are dropped, and backslashes are treated as separators.
// Already-safe paths are returned without a normalization pass.
func (p FilePath) SafePath() (string, error) {
	raw, err := p.UTF8()
	if err != nil {
		return "", err
	}

	if isSafePath(raw) {
		return raw, nil
	}

	return normalizeSafePath(raw), nil
}

// isSafePath reports whether raw needs no normalization.
func isSafePath(raw string) bool {
	if raw == "" {
		return true
	}

	if strings.HasPrefix(raw, "/") || strings.ContainsRune(raw, '\\') {
		return false
	}

	if hasDrivePrefix(raw) {
		return false
	}

	for rest := raw; rest != ""; {
		var segment string
		segment, rest, _ = strings.Cut(rest, "/")
		if segment == "" || segment == "." || segment == ".." {
			return false
		}
	}

	return true
}

// normalizeSafePath rebuilds raw from its kept segments.
func normalizeSafePath(raw string) string {
	raw = strings.ReplaceAll(raw, `\`, "/")

	trailingSlash := strings.HasSuffix(raw, "/")
	if hasDrivePrefix(raw) {
		raw = raw[2:]
	}

	var b strings.Builder
	b.Grow(len(raw))
	for rest := raw; rest != ""; {
		var segment string
		segment, rest, _ = strings.Cut(rest, "/")
		if segment == "" || segment == "." || segment == ".." {
			continue
		}

		if b.Len() > 0 {
			b.WriteByte('/')
		}

		b.WriteString(segment)
	}

	if trailingSlash && b.Len() > 0 {
		b.WriteByte('/')
	}

	return b.String()
}

// hasDrivePrefix reports whether raw starts with a Windows drive like "C:".
func hasDrivePrefix(raw string) bool {
	return len(raw) >= 2 && raw[1] == ':' && isASCIIAlpha(raw[0])
}

// isASCIIAlpha reports whether b is an ASCII latin letter.
func isASCIIAlpha(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// NormalizePath converts an archive path to normalized slash-separated form
// for rule matching. It trims spaces, accepts both "/" and "\" separators,
// and removes leading "./" and "/".
func NormalizePath(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.ReplaceAll(raw, `\`, "/")
	raw = strings.TrimPrefix(raw, "./")
	raw = strings.TrimPrefix(raw, "/")

	return strings.TrimSuffix(raw, "/")
}
