package storage

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var filenameReplacer = strings.NewReplacer(
	" ", "_",
	"/", "_",
	",", "",
	":", "",
)

// SanitizeFilename turns a category name into a file name stem: lower case,
// spaces and slashes become underscores, commas and colons are dropped and
// accents are folded ("Véhicules, Motos" becomes "vehicules_motos").
func SanitizeFilename(name string) string {
	folded, _, err := transform.String(
		transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC),
		name,
	)
	if err != nil {
		folded = name
	}

	out := filenameReplacer.Replace(strings.ToLower(strings.TrimSpace(folded)))
	if out == "" || out == "." || out == ".." {
		return "category"
	}
	return out
}
