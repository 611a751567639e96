// Package snapshot builds the CSV artifact for a role snapshot: timestamp
// formatting, row rendering, and filename generation.
package snapshot

import (
	"strings"
	"time"
	"unicode"
)

const (
	layoutDE       = "02.01.2006 15:04:05"
	layoutISO      = "2006-01-02 15:04:05"
	layoutFilename = "2006-01-02_15-04-05"
)

// Filenames always use this zone so they sort the same regardless of the
// configured display timezone.
var filenameZone = loadFilenameZone()

func loadFilenameZone() *time.Location {
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		return time.UTC
	}
	return loc
}

// FormatTimestamp renders t in loc. An override layout wins verbatim;
// otherwise de-family languages get day-first ordering and everything else
// gets ISO ordering. Output depends only on the arguments, never on the
// process timezone.
func FormatTimestamp(t time.Time, lang string, loc *time.Location, override string) string {
	layout := override
	if layout == "" {
		if strings.HasPrefix(lang, "de") {
			layout = layoutDE
		} else {
			layout = layoutISO
		}
	}
	return t.In(loc).Format(layout)
}

// Filename builds "snapshot_<role>_<timestamp>.csv" with the role name
// reduced to a filesystem-safe form.
func Filename(roleName string, t time.Time) string {
	stamp := t.In(filenameZone).Format(layoutFilename)
	return "snapshot_" + sanitizeName(roleName) + "_" + stamp + ".csv"
}

// sanitizeName keeps letters, digits, spaces, underscores and hyphens,
// trims the result and turns the remaining spaces into underscores.
func sanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '_' || r == '-' {
			b.WriteRune(r)
		}
	}
	return strings.ReplaceAll(strings.TrimSpace(b.String()), " ", "_")
}
