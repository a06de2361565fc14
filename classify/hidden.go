package classify

import "strings"

// IsHidden reports whether the final path component marks the entry as
// hidden by the conventions of the major desktop OSes and photo tools:
// a leading dot, AppleDouble resource forks ("._*"), Finder's
// .DS_Store, and Windows' Thumbs.db.
func IsHidden(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}

	return name == "Thumbs.db"
}
