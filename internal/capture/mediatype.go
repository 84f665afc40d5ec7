// SPDX-License-Identifier: MIT

package capture

import "strings"

// Recognized container families for artifact export. Anything else is
// exported under the webm family.
const (
	FamilyWAV  = "wav"
	FamilyWebM = "webm"
	FamilyMP3  = "mp3"
	FamilyM4A  = "m4a"
)

// MIME types produced by the built-in encode paths.
const (
	MIMEWav  = "audio/wav"
	MIMEWebM = "audio/webm"
)

// family matches a MIME type against the known families. Returns "" for
// unrecognized types.
func family(mime string) string {
	m := strings.ToLower(mime)
	if i := strings.IndexByte(m, ';'); i >= 0 {
		m = strings.TrimSpace(m[:i])
	}
	switch {
	case strings.HasSuffix(m, "/wav"), strings.HasSuffix(m, "/x-wav"), strings.HasSuffix(m, "/wave"):
		return FamilyWAV
	case strings.HasSuffix(m, "/webm"):
		return FamilyWebM
	case strings.HasSuffix(m, "/mpeg"), strings.HasSuffix(m, "/mp3"):
		return FamilyMP3
	case strings.HasSuffix(m, "/mp4"), strings.HasSuffix(m, "/m4a"), strings.HasSuffix(m, "/x-m4a"), strings.HasSuffix(m, "/aac"):
		return FamilyM4A
	default:
		return ""
	}
}

// FamilyForMIME maps a MIME type to its container family. Unrecognized
// types default to webm.
func FamilyForMIME(mime string) string {
	if f := family(mime); f != "" {
		return f
	}
	return FamilyWebM
}

// ExtensionForMIME returns the file extension (without dot) for a MIME type.
func ExtensionForMIME(mime string) string {
	return FamilyForMIME(mime)
}

// Compressed reports whether the MIME type names a directly-usable
// compressed format that needs no PCM re-encode before export.
func Compressed(mime string) bool {
	switch family(mime) {
	case FamilyWebM, FamilyMP3, FamilyM4A:
		return true
	}
	return false
}
