package shared

import "strings"

const fallbackTrackName = "track"

// SanitizeComponent reduces a free-text name to printable ASCII without the
// characters rejected by common filesystems (<>:"/\|?*). Whitespace runs
// collapse to a single space and the result is trimmed.
func SanitizeComponent(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	space := false
	for _, r := range s {
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f':
			space = true
			continue
		case r < 0x20 || r > 0x7e:
			continue
		case strings.ContainsRune(`<>:"/\|?*`, r):
			continue
		}

		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(r)
	}

	return b.String()
}

// SanitizeFilename builds the download filename for a track.
//
// Returns "{track} - {artist}.mp3" when the artist survives sanitizing and
// "{track}.mp3" otherwise. An empty track name becomes "track".
func SanitizeFilename(trackName, artistName string) string {
	track := SanitizeComponent(trackName)
	if track == "" {
		track = fallbackTrackName
	}

	if artist := SanitizeComponent(artistName); artist != "" {
		return track + " - " + artist + ".mp3"
	}
	return track + ".mp3"
}

// EncodeFilename percent-encodes a filename for a Content-Disposition header.
//
// Every byte outside [A-Za-z0-9-_.~] is escaped, spaces included.
func EncodeFilename(name string) string {
	const hex = "0123456789ABCDEF"

	var b strings.Builder
	for i := 0; i < len(name); i++ {
		c := name[i]
		if ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9') ||
			c == '-' || c == '_' || c == '.' || c == '~' {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0f])
	}
	return b.String()
}
