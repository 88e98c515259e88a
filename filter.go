// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/rawzip

package rawzip

import (
	"fmt"

	"github.com/woozymasta/pathrules"
)

// EntryFilter holds compiled entry selection rules.
type EntryFilter struct {
	matcher   *pathrules.Matcher
	minSize   uint64
	asciiOnly bool
}

// NewEntryFilter compiles filter options. A filter without rules matches by
// size and encoding constraints alone.
func NewEntryFilter(opts FilterOptions) (*EntryFilter, error) {
	f := &EntryFilter{minSize: opts.MinUncompressedSize, asciiOnly: opts.ASCIIOnly}

	rules := normalizeFilterRules(opts.Rules)
	if len(rules) == 0 {
		return f, nil
	}

	matcher, err := pathrules.NewMatcher(rules, opts.MatcherOptions)
	if err != nil {
		return nil, fmt.Errorf("%w: compile rules: %w", ErrInvalidFilterPattern, err)
	}

	f.matcher = matcher

	return f, nil
}

// normalizeFilterRules normalizes rule patterns and drops empty patterns.
func normalizeFilterRules(rules []pathrules.Rule) []pathrules.Rule {
	normalized := make([]pathrules.Rule, 0, len(rules))
	for _, rule := range rules {
		pattern := NormalizePath(rule.Pattern)
		if pattern == "" {
			continue
		}

		normalized = append(normalized, pathrules.Rule{
			Action:  rule.Action,
			Pattern: pattern,
		})
	}

	return normalized
}

// Match reports whether an entry with the given path and uncompressed size
// passes the filter.
func (f *EntryFilter) Match(path string, uncompressedSize uint64) bool {
	if f == nil {
		return true
	}

	if uncompressedSize < f.minSize {
		return false
	}

	if f.asciiOnly && !pathIsASCIIOnly(path) {
		return false
	}

	if f.matcher == nil {
		return true
	}

	candidate := NormalizePath(path)
	if candidate == "" {
		return false
	}

	return f.matcher.Included(candidate, false)
}

// MatchEntry applies the filter to a parsed central directory entry.
func (f *EntryFilter) MatchEntry(entry *Entry) bool {
	return f.Match(entry.Name.String(), entry.UncompressedSize)
}

// pathIsASCIIOnly reports whether path contains only ASCII bytes.
func pathIsASCIIOnly(pathValue string) bool {
	for idx := 0; idx < len(pathValue); idx++ {
		if pathValue[idx] >= 0x80 {
			return false
		}
	}

	return true
}
