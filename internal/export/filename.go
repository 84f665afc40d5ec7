// SPDX-License-Identifier: MIT

// Package export turns sealed artifacts into downloadable files: filename
// derivation and optional atomic spooling to a local directory.
package export

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/pagetap/pagetap/internal/capture"
)

const maxSlugLen = 50

// slugify converts a page title into a filename-safe, human-readable slug.
// Example: "Lo-Fi Beats — Live Radio" -> "lo-fi-beats-live-radio".
func slugify(title string) string {
	s := strings.ToLower(title)

	replacer := strings.NewReplacer(
		"ä", "ae",
		"ö", "oe",
		"ü", "ue",
		"ß", "ss",
		"à", "a",
		"á", "a",
		"â", "a",
		"è", "e",
		"é", "e",
		"ê", "e",
		"ì", "i",
		"í", "i",
		"î", "i",
		"ò", "o",
		"ó", "o",
		"ô", "o",
		"ù", "u",
		"ú", "u",
		"û", "u",
		"ç", "c",
		"ñ", "n",
	)
	s = replacer.Replace(s)

	var result strings.Builder
	lastWasDash := false
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			result.WriteRune(r)
			lastWasDash = false
		} else if !lastWasDash {
			result.WriteRune('-')
			lastWasDash = true
		}
	}

	slug := strings.Trim(result.String(), "-")
	if len(slug) > maxSlugLen {
		slug = strings.TrimRight(slug[:maxSlugLen], "-")
	}
	return slug
}

// formatDuration renders the artifact duration for filenames, rounded to
// whole seconds.
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return d.Round(time.Second).String()
}

// Filename derives the download filename for an artifact from its
// timestamp, measured duration and quality label. The extension follows
// the artifact's declared media type; unrecognized types fall back to webm.
// title is optional and prepended as a slug when non-empty.
func Filename(a *capture.Artifact, title string) string {
	stamp := a.CreatedAt.Format("20060102-150405")
	base := fmt.Sprintf("%s-%s-%s", stamp, formatDuration(a.Duration), a.Quality.Label())
	if slug := slugify(title); slug != "" {
		base = slug + "-" + base
	}
	return base + "." + capture.ExtensionForMIME(a.MIME)
}
