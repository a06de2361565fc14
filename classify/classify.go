// Package classify maps filesystem paths to the file-type taxonomy the
// rest of the core filters and prioritizes on. Classification is pure
// and extension-driven; it never touches the filesystem.
package classify

import (
	"path/filepath"
	"strings"
)

// FileType is the taxonomy a path classifies into.
type FileType int

// The file types named in the spec.
const (
	Unsupported FileType = iota
	RAW
	StandardImage
	Video
	Sidecar
	Catalog
)

func (t FileType) String() string {
	switch t {
	case RAW:
		return "raw"
	case StandardImage:
		return "standard_image"
	case Video:
		return "video"
	case Sidecar:
		return "sidecar"
	case Catalog:
		return "catalog"
	default:
		return "unsupported"
	}
}

// rawExtensions covers the common raw formats from the major camera
// manufacturers; it is intentionally not exhaustive of every vendor's
// every sensor generation.
var rawExtensions = map[string]bool{
	"nef": true, "cr2": true, "cr3": true, "arw": true, "raf": true,
	"rw2": true, "orf": true, "dng": true, "pef": true, "srw": true,
	"raw": true, "3fr": true, "erf": true, "mrw": true, "nrw": true,
}

var standardImageExtensions = map[string]bool{
	"jpg": true, "jpeg": true, "png": true, "tif": true, "tiff": true,
	"heic": true, "heif": true, "webp": true, "gif": true, "bmp": true,
	"psd": true,
}

var videoExtensions = map[string]bool{
	"mov": true, "mp4": true, "m4v": true, "avi": true, "mts": true,
	"m2ts": true, "braw": true, "r3d": true, "mxf": true,
}

// sidecarExtensions are files that accompany a primary image/video and
// carry edits or metadata rather than pixel or sample data.
var sidecarExtensions = map[string]bool{
	"xmp": true, "aae": true, "thm": true,
}

var catalogExtensions = map[string]bool{
	"lrcat": true, "cocatalog": true, "aplibrary": true, "catalog": true,
}

// cachePathFragments are path substrings (case-insensitive) that mark a
// directory as a photo-tool cache, independent of any file in it.
var cachePathFragments = []string{
	".lrdata",
	"captureone/cache",
	".bridgecache",
}

func ext(path string) string {
	e := filepath.Ext(path)
	if e == "" {
		return ""
	}

	return strings.ToLower(strings.TrimPrefix(e, "."))
}

// Classify returns the FileType for path based on its extension.
func Classify(path string) FileType {
	e := ext(path)

	switch {
	case rawExtensions[e]:
		return RAW
	case standardImageExtensions[e]:
		return StandardImage
	case videoExtensions[e]:
		return Video
	case sidecarExtensions[e]:
		return Sidecar
	case catalogExtensions[e]:
		return Catalog
	default:
		return Unsupported
	}
}

// IsCachePath reports whether p falls under a well-known photo-tool
// cache fragment, e.g. "*.lrdata/", ".../CaptureOne/Cache/...",
// ".BridgeCache". Matching is case-insensitive and substring-based
// against the full path.
func IsCachePath(p string) bool {
	lower := strings.ToLower(strings.ReplaceAll(p, `\`, "/"))
	for _, frag := range cachePathFragments {
		if strings.Contains(lower, frag) {
			return true
		}
	}

	return false
}
