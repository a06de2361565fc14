package checksum_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kmichels/imageintactcore/checksum"
)

func writeFile(t *testing.T, dir, name string, size int) string {
	t.Helper()

	path := filepath.Join(dir, name)
	data := make([]byte, size)

	for i := range data {
		data[i] = byte(i % 251)
	}

	require.NoError(t, os.WriteFile(path, data, 0o644))

	return path
}

func refDigest(t *testing.T, path string) string {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	sum := sha256.Sum256(data)

	return hex.EncodeToString(sum[:])
}

func TestFile_EmptySentinel(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "empty.nef", 0)

	digest, err := checksum.File(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, checksum.EmptyFileDigest, digest)
}

func TestFile_MatchesReferenceAcrossSizes(t *testing.T) {
	dir := t.TempDir()

	sizes := []int{
		1,
		4096,
		10*1024*1024 - 1, // whole-read path, just under the boundary
		10 * 1024 * 1024, // whole-read path, exactly at the boundary
		10*1024*1024 + 1, // streaming path, just over the boundary
		17 * 1024 * 1024, // streaming path, past the 16 MiB chunk-size step
	}

	for _, size := range sizes {
		path := writeFile(t, dir, "f.dat", size)

		got, err := checksum.File(context.Background(), path)
		require.NoError(t, err)
		require.Equal(t, refDigest(t, path), got, "size %d", size)
	}
}

func TestFile_Deterministic(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "f.dat", 3*1024*1024)

	first, err := checksum.File(context.Background(), path)
	require.NoError(t, err)

	second, err := checksum.File(context.Background(), path)
	require.NoError(t, err)

	require.Equal(t, first, second)
}

func TestFile_NotFound(t *testing.T) {
	_, err := checksum.File(context.Background(), filepath.Join(t.TempDir(), "missing.nef"))
	require.Error(t, err)
}

func TestFile_CancelledBeforeStart(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "f.dat", 20*1024*1024)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := checksum.File(ctx, path)
	require.Error(t, err)
}

func TestChunkSize_Thresholds(t *testing.T) {
	require.Equal(t, 256*1024, checksum.ChunkSize(1024))
	require.Equal(t, 256*1024, checksum.ChunkSize(16*1024*1024))
	require.Equal(t, 1024*1024, checksum.ChunkSize(16*1024*1024+1))
	require.Equal(t, 1024*1024, checksum.ChunkSize(128*1024*1024))
	require.Equal(t, 2*1024*1024, checksum.ChunkSize(128*1024*1024+1))
	require.Equal(t, 2*1024*1024, checksum.ChunkSize(512*1024*1024))
	require.Equal(t, 4*1024*1024, checksum.ChunkSize(512*1024*1024+1))
}
