// Package dedupe builds deduplication keys and tracks request lifecycle
// so a burst of duplicate webhook deliveries collapses to one unit of work.
package dedupe

import (
	"strings"
	"unicode"

	"github.com/velatorre/crossline/internal/domain/model"
)

// keyPrefix versions the key format; bump it if components change.
const keyPrefix = "CHK1"

// Normalize reduces a key component to a stable form: uppercased, with
// whitespace and everything non-alphanumeric stripped. Two payloads that
// differ only in casing or spacing of a component normalize identically.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	if b.Len() == 0 {
		return "NA"
	}
	return b.String()
}

// Key derives the deduplication key for a checkpoint. Components are
// normalized individually and joined with a separator that Normalize can
// never emit, so distinct component tuples cannot collide.
func Key(competitionID, participantID string, kind model.EventKind, point, location string) string {
	parts := []string{
		keyPrefix,
		Normalize(competitionID),
		Normalize(participantID),
		Normalize(string(kind)),
		Normalize(point),
		Normalize(location),
	}
	return strings.Join(parts, ":")
}
