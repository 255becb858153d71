package pack

import "strings"

// Slugify derives a pack id from a display name: ASCII letters and digits are
// lowercased and kept, every other run of characters collapses to one '-',
// and leading or trailing dashes are trimmed. The result may be empty.
func Slugify(name string) string {
	var b strings.Builder
	b.Grow(len(name))

	dash := false
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
			dash = false
		case !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.Trim(b.String(), "-")
}

// ValidID reports whether id could have come from Slugify and is therefore
// safe to use as a single path segment.
func ValidID(id string) bool {
	if id == "" || id[0] == '-' || id[len(id)-1] == '-' {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		if !(c >= 'a' && c <= 'z') && !(c >= '0' && c <= '9') && c != '-' {
			return false
		}
	}
	return true
}
