// Package config defines every configuration knob the core exposes, per
// spec §6. It has no behavior of its own: the manifest builder,
// destination queue, and coordinator each read the fields relevant to
// them.
package config

// FileTypeFilter selects which detected file types the manifest
// builder retains.
type FileTypeFilter struct {
	// Preset is one of "all", "raw", "photos", "videos", or "" when
	// Extensions is used instead.
	Preset string

	// Extensions is a custom allow-list of lowercase extensions
	// (without the leading dot), used when Preset == "".
	Extensions []string
}

// Presets recognized by FileTypeFilter.Preset.
const (
	PresetAll    = "all"
	PresetRAW    = "raw"
	PresetPhotos = "photos"
	PresetVideos = "videos"
)

// Config is every option enumerated in spec §6, plus the status-server
// settings that don't change backup semantics but do change what's
// observable from outside the process.
type Config struct {
	// ExcludeCacheFiles skips classifier-recognized cache subtrees (default true).
	ExcludeCacheFiles bool

	// SkipHiddenFiles skips dotfiles and well-known junk files (default true).
	SkipHiddenFiles bool

	// FileTypeFilter narrows the manifest to a subset of detected types.
	FileTypeFilter FileTypeFilter

	// OrganizationFolder, if set, is prefixed onto every destination
	// relative path.
	OrganizationFolder string

	// PreventSleepDuringBackup is advisory; it is forwarded to a
	// sleepguard.Inhibitor and otherwise has no effect on the core.
	PreventSleepDuringBackup bool

	// StatusServerAddr, if non-empty, is the listen address for an
	// optional status HTTP server wrapping the coordinator.
	StatusServerAddr string

	// StatusServerCredentialsFile, if non-empty, is an htpasswd-format
	// file used to require basic auth on the status server.
	StatusServerCredentialsFile string
}

// Default returns a Config with the spec's documented defaults.
func Default() Config {
	return Config{
		ExcludeCacheFiles: true,
		SkipHiddenFiles:   true,
		FileTypeFilter:    FileTypeFilter{Preset: PresetAll},
	}
}
