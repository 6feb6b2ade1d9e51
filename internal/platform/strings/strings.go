// Package strings provides small string helpers shared by modules and commands
package strings

import std "strings"

// Or returns s when it has non whitespace content, otherwise def
func Or(s, def string) string {
	if std.TrimSpace(s) == "" {
		return def
	}
	return s
}

// MustString returns s if it has non whitespace content otherwise panics
// name is used in the panic message so you can tell what was missing
func MustString(s string, name string) string {
	if std.TrimSpace(s) == "" {
		panic(name + " is required")
	}
	return s
}

// SQLNull returns nil if s is blank/whitespace, else the original string.
// Useful for query args where NULL is desired for blanks
func SQLNull(s string) any {
	if std.TrimSpace(s) == "" {
		return nil
	}
	return s
}
