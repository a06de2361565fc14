// Package manifest builds and describes the ordered list of files a
// backup run will attempt: the manifest. Once built, entries are never
// mutated — the destination queue and coordinator only ever read them.
package manifest

import "github.com/kmichels/imageintactcore/classify"

// Entry is one source file slated for backup. It is immutable once
// constructed by Build.
type Entry struct {
	// SourcePath is the absolute path to the file under the source root.
	SourcePath string

	// RelativePath is SourcePath relative to the source root, using
	// forward slashes regardless of host OS so it can be joined onto any
	// destination root unambiguously.
	RelativePath string

	// Size is the file's byte size at the time the manifest was built.
	Size int64

	// Checksum is the lowercase hex SHA-256 of the file's contents, or
	// checksum.EmptyFileDigest for zero-length files.
	Checksum string

	// Type is the classifier's verdict for this path.
	Type classify.FileType
}

// Manifest is the ordered, immutable output of Build.
type Manifest []Entry

// TotalBytes sums the size of every entry.
func (m Manifest) TotalBytes() int64 {
	var total int64
	for _, e := range m {
		total += e.Size
	}

	return total
}
