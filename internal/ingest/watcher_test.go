package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, ch <-chan string, want int, deadline time.Duration) []string {
	t.Helper()
	var got []string
	timeout := time.After(deadline)
	for len(got) < want {
		select {
		case p, ok := <-ch:
			if !ok {
				return got
			}
			got = append(got, p)
		case <-timeout:
			t.Fatalf("timed out with %d of %d paths: %v", len(got), want, got)
		}
	}
	return got
}

func TestWatcherEmitsSettledImages(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, _, err := StartWatcher(ctx, WatchConfig{Dir: dir, Debounce: 50 * time.Millisecond}, nil)
	require.NoError(t, err)

	path := filepath.Join(dir, "intake.png")
	require.NoError(t, os.WriteFile(path, []byte("png bytes"), 0o644))

	got := collect(t, events, 1, 5*time.Second)
	assert.Equal(t, []string{path}, got)
}

func TestWatcherIgnoresNonImages(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, _, err := StartWatcher(ctx, WatchConfig{Dir: dir, Debounce: 50 * time.Millisecond}, nil)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scan.jpg"), []byte("y"), 0o644))

	got := collect(t, events, 1, 5*time.Second)
	require.Len(t, got, 1)
	assert.Equal(t, filepath.Join(dir, "scan.jpg"), got[0])

	select {
	case p := <-events:
		t.Fatalf("unexpected extra path %q", p)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcherCoalescesWriteBursts(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, _, err := StartWatcher(ctx, WatchConfig{Dir: dir, Debounce: 100 * time.Millisecond}, nil)
	require.NoError(t, err)

	// Simulate a scan still copying in: several writes in quick succession.
	path := filepath.Join(dir, "intake.jpeg")
	f, err := os.Create(path)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err = f.Write([]byte("chunk"))
		require.NoError(t, err)
		time.Sleep(10 * time.Millisecond)
	}
	require.NoError(t, f.Close())

	got := collect(t, events, 1, 5*time.Second)
	assert.Equal(t, []string{path}, got)

	select {
	case p := <-events:
		t.Fatalf("burst produced a duplicate emission %q", p)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcherRequiresDirectory(t *testing.T) {
	_, _, err := StartWatcher(context.Background(), WatchConfig{}, nil)
	require.Error(t, err)

	_, _, err = StartWatcher(context.Background(), WatchConfig{Dir: filepath.Join(t.TempDir(), "missing")}, nil)
	require.Error(t, err)
}

func TestWatcherStopsOnCancel(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())

	events, errs, err := StartWatcher(ctx, WatchConfig{Dir: dir, Debounce: 50 * time.Millisecond}, nil)
	require.NoError(t, err)

	cancel()

	timeout := time.After(2 * time.Second)
	for events != nil || errs != nil {
		select {
		case _, ok := <-events:
			if !ok {
				events = nil
			}
		case _, ok := <-errs:
			if !ok {
				errs = nil
			}
		case <-timeout:
			t.Fatal("watcher channels did not close after cancel")
		}
	}
}
