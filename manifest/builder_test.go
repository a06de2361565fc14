package manifest_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kmichels/imageintactcore/checksum"
	"github.com/kmichels/imageintactcore/config"
	"github.com/kmichels/imageintactcore/manifest"
	"github.com/kmichels/imageintactcore/stats"
)

func mustWrite(t *testing.T, path string, content []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, content, 0o644))
}

func TestBuild_EmptySource(t *testing.T) {
	dir := t.TempDir()

	m, err := manifest.Build(context.Background(), dir, config.Default(), nil, nil)
	require.NoError(t, err)
	require.Empty(t, m)
}

func TestBuild_FiltersAndOrders(t *testing.T) {
	dir := t.TempDir()

	mustWrite(t, filepath.Join(dir, "a.nef"), []byte("raw-a"))
	mustWrite(t, filepath.Join(dir, "b.cr2"), []byte("raw-b"))
	mustWrite(t, filepath.Join(dir, "notes.txt"), []byte("unsupported"))
	mustWrite(t, filepath.Join(dir, ".DS_Store"), []byte("junk"))
	mustWrite(t, filepath.Join(dir, "2024", "year.nef"), []byte("nested"))
	mustWrite(t, filepath.Join(dir, "Lightroom.lrdata", "cache.dat"), []byte("cache"))

	m, err := manifest.Build(context.Background(), dir, config.Default(), nil, nil)
	require.NoError(t, err)
	require.Len(t, m, 3)

	var rels []string
	for _, e := range m {
		rels = append(rels, e.RelativePath)
	}

	require.Equal(t, []string{"2024/year.nef", "a.nef", "b.cr2"}, rels)
}

func TestBuild_EmptyFileGetsSentinelChecksum(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "empty.nef"), nil)

	m, err := manifest.Build(context.Background(), dir, config.Default(), nil, nil)
	require.NoError(t, err)
	require.Len(t, m, 1)
	require.Equal(t, checksum.EmptyFileDigest, m[0].Checksum)
	require.Equal(t, int64(0), m[0].Size)
}

func TestBuild_RawPresetFilter(t *testing.T) {
	dir := t.TempDir()

	mustWrite(t, filepath.Join(dir, "a.nef"), []byte("raw"))
	mustWrite(t, filepath.Join(dir, "b.jpg"), []byte("jpeg"))

	cfg := config.Default()
	cfg.FileTypeFilter = config.FileTypeFilter{Preset: config.PresetRAW}

	m, err := manifest.Build(context.Background(), dir, cfg, nil, nil)
	require.NoError(t, err)
	require.Len(t, m, 1)
	require.Equal(t, "a.nef", m[0].RelativePath)
}

func TestBuild_SourceNotFound(t *testing.T) {
	_, err := manifest.Build(context.Background(), filepath.Join(t.TempDir(), "missing"), config.Default(), nil, nil)
	require.Error(t, err)
}

func TestBuild_ReportsExclusions(t *testing.T) {
	dir := t.TempDir()

	mustWrite(t, filepath.Join(dir, "a.nef"), []byte("raw-a"))
	mustWrite(t, filepath.Join(dir, "notes.txt"), []byte("unsupported"))
	mustWrite(t, filepath.Join(dir, ".DS_Store"), []byte("junk"))

	var hidden, unsupported int
	_, err := manifest.Build(context.Background(), dir, config.Default(), nil, func(reason stats.ExclusionReason) {
		switch reason {
		case stats.ExclusionHidden:
			hidden++
		case stats.ExclusionUnsupported:
			unsupported++
		}
	})
	require.NoError(t, err)
	require.Equal(t, 1, hidden)
	require.Equal(t, 1, unsupported)
}
