// Package checksum computes streaming SHA-256 digests of file contents,
// with cooperative cancellation and chunk sizing tuned to file size so
// a full directory tree of mixed RAW/video sizes hashes without either
// thrashing on tiny reads or blowing memory on giant ones.
package checksum

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
	"os"

	"github.com/edsrzf/mmap-go"

	"github.com/kmichels/imageintactcore/internal/bufpool"
	"github.com/kmichels/imageintactcore/internal/ierrors"
)

// EmptyFileDigest is the sentinel digest used for zero-length sources
// and as the manifest's expected checksum for them.
const EmptyFileDigest = "empty-file-0-bytes"

const (
	wholeReadThreshold = 10 * 1024 * 1024

	chunk256KiB = 256 * 1024
	chunk1MiB   = 1024 * 1024
	chunk2MiB   = 2 * 1024 * 1024
	chunk4MiB   = 4 * 1024 * 1024

	boundary16MiB  = 16 * 1024 * 1024
	boundary128MiB = 128 * 1024 * 1024
	boundary512MiB = 512 * 1024 * 1024
)

// ChunkSize returns the streaming chunk size the engine uses for a file
// of the given size, per the thresholds in the spec.
func ChunkSize(size int64) int {
	switch {
	case size <= boundary16MiB:
		return chunk256KiB
	case size <= boundary128MiB:
		return chunk1MiB
	case size <= boundary512MiB:
		return chunk2MiB
	default:
		return chunk4MiB
	}
}

var pools = map[int]*bufpool.Pool{
	chunk256KiB: bufpool.New(chunk256KiB, 8),
	chunk1MiB:   bufpool.New(chunk1MiB, 8),
	chunk2MiB:   bufpool.New(chunk2MiB, 4),
	chunk4MiB:   bufpool.New(chunk4MiB, 4),
}

// File computes the SHA-256 hex digest of the file at path.
//
// ctx is checked between chunks (and, for the whole-read path, once up
// front); if it is already done the engine returns a Cancelled error
// instead of beginning the read.
func File(ctx context.Context, path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", ierrors.FromOS(err, "stat %s", path)
	}

	if info.Size() == 0 {
		return EmptyFileDigest, nil
	}

	if err := ctx.Err(); err != nil {
		return "", ierrors.Cancelled()
	}

	if info.Size() <= wholeReadThreshold {
		if digest, ok, err := hashWholeFileMapped(path, info.Size()); err != nil {
			return "", err
		} else if ok {
			return digest, nil
		}

		return hashWholeFileBuffered(path)
	}

	return hashStreaming(ctx, path, info.Size())
}

// hashWholeFileMapped hashes path via a read-only mmap, returning
// ok=false (with a nil error) when mapping isn't usable for this file
// so the caller falls back to the buffered whole-file path. It never
// falls back silently on an actual hashing error.
func hashWholeFileMapped(path string, size int64) (digest string, ok bool, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", false, ierrors.FromOS(err, "open %s", path)
	}
	defer f.Close()

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return "", false, nil
	}
	defer m.Unmap()

	if int64(len(m)) != size {
		return "", false, nil
	}

	h := sha256.New()
	if _, err := h.Write(m); err != nil {
		return "", false, nil
	}

	return hex.EncodeToString(h.Sum(nil)), true, nil
}

func hashWholeFileBuffered(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", ierrors.FromOS(err, "open %s", path)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", ierrors.FromOS(err, "read %s", path)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

func hashStreaming(ctx context.Context, path string, size int64) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", ierrors.FromOS(err, "open %s", path)
	}
	defer f.Close()

	chunkSize := ChunkSize(size)

	pool := pools[chunkSize]

	buf := pool.Get()
	defer pool.Put(buf)

	h := sha256.New()

	if err := copyChunked(ctx, h, f, buf, path); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// copyChunked reads from src into dst chunkSize bytes at a time,
// checking ctx for cancellation between chunks.
func copyChunked(ctx context.Context, dst hash.Hash, src io.Reader, buf []byte, path string) error {
	for {
		select {
		case <-ctx.Done():
			return ierrors.Cancelled()
		default:
		}

		n, readErr := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return ierrors.IO(werr, "hashing %s", path)
			}
		}

		if readErr == io.EOF {
			return nil
		}

		if readErr != nil {
			return ierrors.FromOS(readErr, "reading %s", path)
		}
	}
}
