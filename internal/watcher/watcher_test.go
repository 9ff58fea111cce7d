package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"meeting-insights-go/internal/logger"
)

func startWatcher(t *testing.T, dir string, scan bool) <-chan string {
	t.Helper()
	got := make(chan string, 16)
	w := New(dir, 40*time.Millisecond, func(ctx context.Context, path string) error {
		got <- filepath.Base(path)
		return nil
	}, logger.Discard())
	w.ScanExisting = scan

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-errc)
	})
	return got
}

func waitFor(t *testing.T, got <-chan string) string {
	t.Helper()
	select {
	case name := <-got:
		return name
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a recording")
	}
	return ""
}

func TestWatcherPicksUpNewAudio(t *testing.T) {
	dir := t.TempDir()
	got := startWatcher(t, dir, false)
	// give the watcher a moment to register the directory
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden.wav"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "standup.wav"), []byte("RIFF"), 0o644))

	assert.Equal(t, "standup.wav", waitFor(t, got))
	select {
	case name := <-got:
		t.Fatalf("unexpected file %s", name)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcherScansExistingFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.mp3"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0o644))

	got := startWatcher(t, dir, true)
	assert.Equal(t, "b.mp3", waitFor(t, got))
}

func TestAccept(t *testing.T) {
	dir := t.TempDir()
	w := New(dir, 0, nil, logger.Discard())
	assert.Equal(t, 2*time.Second, w.Settle)

	p := filepath.Join(dir, "x.flac")
	assert.False(t, w.accept(p), "missing file")
	require.NoError(t, os.WriteFile(p, nil, 0o644))
	assert.True(t, w.accept(p))
	w.queued[p] = true
	assert.False(t, w.accept(p))
	assert.False(t, w.accept(filepath.Join(dir, "x.wav.part")))
}
