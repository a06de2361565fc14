package manifest

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kmichels/imageintactcore/batch"
	"github.com/kmichels/imageintactcore/classify"
	"github.com/kmichels/imageintactcore/config"
	"github.com/kmichels/imageintactcore/internal/ierrors"
	"github.com/kmichels/imageintactcore/internal/logging"
	"github.com/kmichels/imageintactcore/stats"
)

var log = logging.Module("manifest")

// candidate is a file found during the walk, before its checksum has
// been computed.
type candidate struct {
	sourcePath   string
	relativePath string
	size         int64
	fileType     classify.FileType
}

// Build walks sourceRoot depth-first in sorted order, retains files
// allowed by cfg's filters, computes their SHA-256 in batches, and
// returns the resulting Manifest in walk order.
//
// A per-file checksum failure does not fail Build, and Build never
// silently substitutes a missing checksum — the
// offending file is simply omitted from the returned Manifest, and its
// path and error are reported via the onChecksumError callback (which
// may be nil).
//
// onExcluded, if non-nil, is called once for every candidate the walk
// drops for a filter reason (cache path, hidden file, unsupported
// type), letting a caller feed a stats.Aggregator's exclusion counters
// without the walker needing to know what an Aggregator is.
func Build(ctx context.Context, sourceRoot string, cfg config.Config, onChecksumError func(path string, err error), onExcluded func(reason stats.ExclusionReason)) (Manifest, error) {
	if _, err := os.Stat(sourceRoot); err != nil {
		return nil, ierrors.FromOS(err, "source root %s", sourceRoot)
	}

	candidates, err := walk(ctx, sourceRoot, cfg, onExcluded)
	if err != nil {
		return nil, err
	}

	log.Infow("walk complete", "candidates", len(candidates))

	return checksumCandidates(ctx, candidates, onChecksumError)
}

func walk(ctx context.Context, sourceRoot string, cfg config.Config, onExcluded func(reason stats.ExclusionReason)) ([]candidate, error) {
	var out []candidate

	if onExcluded == nil {
		onExcluded = func(stats.ExclusionReason) {}
	}

	var visit func(dir string) error

	visit = func(dir string) error {
		if err := ctx.Err(); err != nil {
			return ierrors.Cancelled()
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			return ierrors.FromOS(err, "reading directory %s", dir)
		}

		sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

		for _, entry := range entries {
			name := entry.Name()
			full := filepath.Join(dir, name)

			if cfg.SkipHiddenFiles && classify.IsHidden(name) {
				onExcluded(stats.ExclusionHidden)
				continue
			}

			if entry.IsDir() {
				if cfg.ExcludeCacheFiles && classify.IsCachePath(full) {
					onExcluded(stats.ExclusionCache)
					continue
				}

				if err := visit(full); err != nil {
					return err
				}

				continue
			}

			if cfg.ExcludeCacheFiles && classify.IsCachePath(full) {
				onExcluded(stats.ExclusionCache)
				continue
			}

			fileType := classify.Classify(full)
			if fileType == classify.Unsupported {
				onExcluded(stats.ExclusionUnsupported)
				continue
			}

			if !allowedByFilter(cfg.FileTypeFilter, fileType, full) {
				continue
			}

			info, err := entry.Info()
			if err != nil {
				return ierrors.FromOS(err, "stat %s", full)
			}

			rel, err := filepath.Rel(sourceRoot, full)
			if err != nil {
				return ierrors.IO(err, "relativizing %s", full)
			}

			out = append(out, candidate{
				sourcePath:   full,
				relativePath: filepath.ToSlash(rel),
				size:         info.Size(),
				fileType:     fileType,
			})
		}

		return nil
	}

	if err := visit(sourceRoot); err != nil {
		return nil, err
	}

	return out, nil
}

func allowedByFilter(f config.FileTypeFilter, t classify.FileType, path string) bool {
	if len(f.Extensions) > 0 {
		ext := strings.ToLower(filepath.Ext(path))
		for _, allowed := range f.Extensions {
			if len(ext) > 0 && ext[1:] == strings.ToLower(allowed) {
				return true
			}
		}

		return false
	}

	switch f.Preset {
	case config.PresetRAW:
		return t == classify.RAW
	case config.PresetPhotos:
		return t == classify.RAW || t == classify.StandardImage || t == classify.Sidecar || t == classify.Catalog
	case config.PresetVideos:
		return t == classify.Video
	default:
		return true
	}
}

// checksumCandidates computes checksums in groups of batch.GroupSize so
// buffer-pool churn and autorelease-equivalent costs are amortized
// across a batch rather than paid per file, per spec §4.3.
func checksumCandidates(ctx context.Context, candidates []candidate, onChecksumError func(path string, err error)) (Manifest, error) {
	paths := make([]string, len(candidates))
	for i, c := range candidates {
		paths[i] = c.sourcePath
	}

	digests, errs := batch.BatchedChecksum(ctx, paths)

	out := make(Manifest, 0, len(candidates))

	for i, c := range candidates {
		if err := errs[i]; err != nil {
			if ierrors.IsCancelled(err) {
				return nil, ierrors.Cancelled()
			}

			if onChecksumError != nil {
				onChecksumError(c.sourcePath, err)
			}

			log.Warnw("checksum failed, omitting from manifest", "path", c.sourcePath, "error", err)

			continue
		}

		out = append(out, Entry{
			SourcePath:   c.sourcePath,
			RelativePath: c.relativePath,
			Size:         c.size,
			Checksum:     digests[i],
			Type:         c.fileType,
		})
	}

	return out, nil
}
