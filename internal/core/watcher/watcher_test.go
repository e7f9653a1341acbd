package watcher

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitForBatch(t *testing.T, w *Watcher) []string {
	t.Helper()
	select {
	case batch := <-w.Changes():
		return batch
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for change batch")
		return nil
	}
}

func TestWatcherReportsSourceChanges(t *testing.T) {
	dir := t.TempDir()
	w, err := New(50*time.Millisecond, nil, nil)
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.Watch([]string{dir}))

	path := filepath.Join(dir, "Player.cs")
	require.NoError(t, os.WriteFile(path, []byte("class Player {}"), 0o644))

	batch := waitForBatch(t, w)
	assert.Contains(t, batch, path)
}

func TestWatcherBatchesBurstsIntoOneDelivery(t *testing.T) {
	dir := t.TempDir()
	w, err := New(100*time.Millisecond, nil, nil)
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.Watch([]string{dir}))

	a := filepath.Join(dir, "A.cs")
	b := filepath.Join(dir, "B.cs")
	require.NoError(t, os.WriteFile(a, []byte("class A {}"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("class B {}"), 0o644))

	batch := waitForBatch(t, w)
	assert.Contains(t, batch, a)
	assert.Contains(t, batch, b)
}

func TestWatcherIgnoresNonSourceFiles(t *testing.T) {
	dir := t.TempDir()
	w, err := New(50*time.Millisecond, nil, nil)
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.Watch([]string{dir}))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	select {
	case batch := <-w.Changes():
		t.Fatalf("unexpected batch %v", batch)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcherExcludesDirectories(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "obj"), 0o755))

	w, err := New(50*time.Millisecond, []string{"obj"}, nil)
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.Watch([]string{dir}))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "obj", "Gen.cs"), []byte("class Gen {}"), 0o644))

	select {
	case batch := <-w.Changes():
		t.Fatalf("unexpected batch %v", batch)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcherPicksUpNewDirectories(t *testing.T) {
	dir := t.TempDir()
	w, err := New(50*time.Millisecond, nil, nil)
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.Watch([]string{dir}))

	sub := filepath.Join(dir, "Systems")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	// Give the watcher a moment to register the new directory.
	time.Sleep(100 * time.Millisecond)
	path := filepath.Join(sub, "MoveSystem.cs")
	require.NoError(t, os.WriteFile(path, []byte("class MoveSystem {}"), 0o644))

	batch := waitForBatch(t, w)
	assert.Contains(t, batch, path)
}

func TestCloseUnblocksBackloggedDelivery(t *testing.T) {
	dir := t.TempDir()
	w, err := New(time.Hour, nil, nil)
	require.NoError(t, err)
	require.NoError(t, w.Watch([]string{dir}))

	// Fill the buffer with nobody consuming, then leave one more batch in
	// flight so its send blocks.
	for i := 0; i < cap(w.changes); i++ {
		w.pending[fmt.Sprintf("File%d.cs", i)] = time.Now()
		w.flushChanges()
	}
	w.pending["Overflow.cs"] = time.Now()
	go w.flushChanges()
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, w.Close())

	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-w.Changes():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("shutdown wedged behind a blocked delivery")
		}
	}
}

func TestCloseStopsDelivery(t *testing.T) {
	dir := t.TempDir()
	w, err := New(50*time.Millisecond, nil, nil)
	require.NoError(t, err)
	require.NoError(t, w.Watch([]string{dir}))
	require.NoError(t, w.Close())

	select {
	case _, ok := <-w.Changes():
		assert.False(t, ok, "channel closes after shutdown")
	case <-time.After(time.Second):
		t.Fatal("channel did not close")
	}
}
