package destqueue

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kmichels/imageintactcore/checksum"
	"github.com/kmichels/imageintactcore/classify"
	"github.com/kmichels/imageintactcore/config"
	"github.com/kmichels/imageintactcore/destlock"
	"github.com/kmichels/imageintactcore/internal/ierrors"
	"github.com/kmichels/imageintactcore/internal/logging"
	"github.com/kmichels/imageintactcore/manifest"
	"github.com/kmichels/imageintactcore/queue"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func buildTasks(t *testing.T, srcDir string, files map[string]string) []*queue.Task {
	t.Helper()

	var tasks []*queue.Task
	for rel, content := range files {
		full := filepath.Join(srcDir, rel)
		writeFile(t, full, content)

		digest, err := checksum.File(context.Background(), full)
		require.NoError(t, err)

		tasks = append(tasks, queue.NewTask(rel, manifest.Entry{
			SourcePath:   full,
			RelativePath: rel,
			Size:         int64(len(content)),
			Checksum:     digest,
			Type:         classify.StandardImage,
		}, queue.Normal))
	}

	return tasks
}

func waitComplete(t *testing.T, q *Queue) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if q.IsComplete() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("destination queue never reached completion")
}

func TestQueue_CopiesAndVerifiesEveryFile(t *testing.T) {
	srcDir := t.TempDir()
	destDir := t.TempDir()

	tasks := buildTasks(t, srcDir, map[string]string{
		"a.jpg":        "hello world",
		"sub/b.jpg":    "second file",
		"sub/deep/c.jpg": "third file, nested deeper",
	})

	log := logging.Module("test")
	q := New("primary", destDir, "session-1", tasks, config.Default(), nil, log)

	require.NoError(t, q.Start(context.Background()))
	waitComplete(t, q)
	require.NoError(t, q.Stop())

	status := q.Status()
	require.Equal(t, 3, status.Copied)
	require.Equal(t, 3, status.Verified)
	require.Empty(t, status.Failed)
	require.True(t, status.IsComplete)

	for rel := range map[string]string{"a.jpg": "", "sub/b.jpg": "", "sub/deep/c.jpg": ""} {
		data, err := os.ReadFile(filepath.Join(destDir, rel))
		require.NoError(t, err)
		require.NotEmpty(t, data)
	}
}

func TestQueue_SkipsIdenticalExistingFile(t *testing.T) {
	srcDir := t.TempDir()
	destDir := t.TempDir()

	tasks := buildTasks(t, srcDir, map[string]string{"a.jpg": "identical contents"})

	// Pre-seed the destination with the exact same bytes.
	writeFile(t, filepath.Join(destDir, "a.jpg"), "identical contents")

	log := logging.Module("test")
	q := New("primary", destDir, "session-2", tasks, config.Default(), nil, log)

	require.NoError(t, q.Start(context.Background()))
	waitComplete(t, q)
	require.NoError(t, q.Stop())

	status := q.Status()
	require.Equal(t, 1, status.Copied)
	require.Equal(t, 1, status.Verified)
	require.Empty(t, status.Failed)
}

func TestQueue_ReplacesMismatchedExistingFile(t *testing.T) {
	srcDir := t.TempDir()
	destDir := t.TempDir()

	tasks := buildTasks(t, srcDir, map[string]string{"a.jpg": "correct contents"})

	writeFile(t, filepath.Join(destDir, "a.jpg"), "stale, wrong contents!!")

	log := logging.Module("test")
	q := New("primary", destDir, "session-3", tasks, config.Default(), nil, log)

	require.NoError(t, q.Start(context.Background()))
	waitComplete(t, q)
	require.NoError(t, q.Stop())

	data, err := os.ReadFile(filepath.Join(destDir, "a.jpg"))
	require.NoError(t, err)
	require.Equal(t, "correct contents", string(data))

	status := q.Status()
	require.Equal(t, 1, status.Verified)
	require.Empty(t, status.Failed)
}

func TestQueue_CancelStopsShortOfCompletion(t *testing.T) {
	srcDir := t.TempDir()
	destDir := t.TempDir()

	files := map[string]string{}
	for i := 0; i < 40; i++ {
		files[fmt.Sprintf("f/file%03d.jpg", i)] = "some reasonably sized payload for file"
	}
	tasks := buildTasks(t, srcDir, files)

	log := logging.Module("test")
	q := New("primary", destDir, "session-4", tasks, config.Default(), nil, log)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, q.Start(ctx))
	cancel()
	require.NoError(t, q.Stop())
	q.Wait()

	status := q.Status()
	require.LessOrEqual(t, status.Verified+len(status.Failed), status.Total)
}

func TestQueue_PermanentFailureRecordedOnce(t *testing.T) {
	srcDir := t.TempDir()
	destDir := t.TempDir()

	tasks := buildTasks(t, srcDir, map[string]string{"a.jpg": "will fail to copy"})
	// Point the source at a path that doesn't exist so every copy attempt fails.
	tasks[0].SourcePath = filepath.Join(srcDir, "missing-source.jpg")

	log := logging.Module("test")
	q := New("primary", destDir, "session-5", tasks, config.Default(), nil, log)

	require.NoError(t, q.Start(context.Background()))
	waitComplete(t, q)
	require.NoError(t, q.Stop())

	status := q.Status()
	require.Len(t, status.Failed, 1)
	require.Equal(t, "a.jpg", status.Failed[0].RelativePath)
}

func TestQueue_MultiplePermanentFailuresDontStartVerificationEarly(t *testing.T) {
	srcDir := t.TempDir()
	destDir := t.TempDir()

	files := map[string]string{}
	for i := 0; i < 10; i++ {
		files[fmt.Sprintf("ok/file%02d.jpg", i)] = "payload that should copy and verify fine"
	}
	tasks := buildTasks(t, srcDir, files)

	// Two tasks whose source never exists: both hit maxAttempts and land
	// in failed[] while completed is only ever incremented once each.
	tasks = append(tasks,
		queue.NewTask("missing-1", manifest.Entry{SourcePath: filepath.Join(srcDir, "missing-1.jpg"), RelativePath: "missing-1.jpg", Size: 5, Checksum: "x"}, queue.Normal),
		queue.NewTask("missing-2", manifest.Entry{SourcePath: filepath.Join(srcDir, "missing-2.jpg"), RelativePath: "missing-2.jpg", Size: 5, Checksum: "x"}, queue.Normal),
	)

	log := logging.Module("test")
	q := New("primary", destDir, "session-7", tasks, config.Default(), nil, log)

	require.NoError(t, q.Start(context.Background()))
	waitComplete(t, q)
	require.NoError(t, q.Stop())

	status := q.Status()
	require.Len(t, status.Failed, 2)
	require.Equal(t, 10, status.Verified)
	require.True(t, status.IsComplete)

	for rel := range files {
		_, err := os.Stat(filepath.Join(destDir, rel))
		require.NoError(t, err)
	}
}

func TestQueue_RefusesTaggedSourceDestination(t *testing.T) {
	srcDir := t.TempDir()
	destDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(destDir, destlock.SourceSentinelName), []byte(`{"source_id":"x"}`), 0o644))

	tasks := buildTasks(t, srcDir, map[string]string{"a.jpg": "content"})

	log := logging.Module("test")
	q := New("primary", destDir, "session-8", tasks, config.Default(), nil, log)

	err := q.Start(context.Background())
	require.Error(t, err)
	require.True(t, ierrors.Is(err, ierrors.KindPolicy))
}

func TestQueue_ProgressCallbackFiresFinalFlush(t *testing.T) {
	srcDir := t.TempDir()
	destDir := t.TempDir()

	tasks := buildTasks(t, srcDir, map[string]string{"a.jpg": "final flush check"})

	var lastState State
	log := logging.Module("test")
	q := New("primary", destDir, "session-6", tasks, config.Default(), nil, log)
	q.SetProgressCallback(func(s State) { lastState = s })

	require.NoError(t, q.Start(context.Background()))
	waitComplete(t, q)
	require.NoError(t, q.Stop())

	require.Equal(t, 1, lastState.Copied)
}
