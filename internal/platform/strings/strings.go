// Package strings provides optional-text helpers shared by the record types
package strings

import std "strings"

// IfEmpty returns def if in is empty, otherwise returns in
func IfEmpty[T any](in []T, def []T) []T {
	if len(in) == 0 {
		return def
	}
	return in
}

// Blank reports whether s has no non-whitespace content
func Blank(s string) bool { return std.TrimSpace(s) == "" }

// Or returns def when s is blank, otherwise s
func Or(s, def string) string {
	if Blank(s) {
		return def
	}
	return s
}

// Ptr returns a pointer to s, or nil if s is blank.
// Optional record fields serialise as null rather than "".
func Ptr(s string) *string {
	if Blank(s) {
		return nil
	}
	return &s
}

// Deref returns "" if ps is nil, else *ps
func Deref(ps *string) string {
	if ps == nil {
		return ""
	}
	return *ps
}
