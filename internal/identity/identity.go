// Package identity normalizes account usernames.
//
// Usernames are case-insensitive everywhere in the system: the remote store
// keys, the local accounts file, and the dispatch bookkeeping may each carry a
// different spelling of the same account. Every component funnels usernames
// through Normalize before using them as map keys, comparing them, or building
// remote paths, so two spellings always resolve to the same record.
package identity

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Normalize lowercases and trims a username. The result is stable under
// repeated application: Normalize(Normalize(u)) == Normalize(u).
//
// Lowercasing goes through x/text so that non-ASCII usernames fold the same
// way on every platform. A cases.Caser is stateful, so a fresh one is built
// per call rather than shared.
func Normalize(username string) string {
	if username == "" {
		return ""
	}
	return cases.Lower(language.Und).String(strings.TrimSpace(username))
}
