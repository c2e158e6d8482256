// Package textenc repairs double-encoded UTF-8 in free-text labels.
//
// Some timing providers re-encode already-UTF-8 event and point names,
// so "Cañón" arrives as "CaÃ±Ã³n". Resolution compares both the raw form
// and the repaired form against stored names.
package textenc

import "strings"

// Common double-encoding substitutions, longest first so multi-byte
// corruptions are repaired before their prefixes.
var substitutions = []string{
	"Ã¡", "á",
	"Ã©", "é",
	"Ã­", "í",
	"Ã³", "ó",
	"Ãº", "ú",
	"Ã±", "ñ",
	"Ã€", "À",
	"Ã‰", "É",
	"Ã“", "Ó",
	"Ãš", "Ú",
	"Ã‘", "Ñ",
	"Ã¼", "ü",
	"Ã§", "ç",
	"Ã¨", "è",
	"Ãª", "ê",
	"Ã ", "à",
	"â‚¬", "€",
	"â€“", "–",
	"â€™", "’",
	"Â°", "°",
	"Âº", "º",
	"Âª", "ª",
	"Â¡", "¡",
	"Â¿", "¿",
}

var repairer = strings.NewReplacer(substitutions...)

// Repair returns s with known double-encoded UTF-8 sequences replaced.
// Strings without corruption pass through unchanged.
func Repair(s string) string {
	if !strings.ContainsRune(s, 'Ã') && !strings.ContainsRune(s, 'Â') && !strings.Contains(s, "â€") && !strings.Contains(s, "â‚") {
		return s
	}
	return repairer.Replace(s)
}

// Corrupted reports whether s looks double-encoded.
func Corrupted(s string) bool {
	return Repair(s) != s
}
