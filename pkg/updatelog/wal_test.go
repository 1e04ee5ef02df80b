package updatelog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAndReplay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wal.log")
	w, err := Open(path, SyncImmediate, 0)
	require.NoError(t, err)

	_, err = w.Append(AddNode("tok1", "node"))
	require.NoError(t, err)
	_, err = w.Append(AddNodeLabel("tok1", "annis", "tok", "hello"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	var replayed []UpdateEvent
	watermark, err := Replay(path, func(e UpdateEvent) error {
		replayed = append(replayed, e)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), watermark)
	require.Len(t, replayed, 2)
	assert.Equal(t, KindAddNode, replayed[0].Kind)
	assert.Equal(t, KindAddNodeLabel, replayed[1].Kind)
}

func TestReplayMissingFileReturnsZero(t *testing.T) {
	watermark, err := Replay(filepath.Join(t.TempDir(), "missing.log"), func(UpdateEvent) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, uint64(0), watermark)
}

func TestReplayStopsAtTruncatedTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wal.log")
	w, err := Open(path, SyncImmediate, 0)
	require.NoError(t, err)
	_, err = w.Append(AddNode("a", "node"))
	require.NoError(t, err)
	_, err = w.Append(AddNode("b", "node"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	// Simulate a crash mid-write: append a partial, unterminated record.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(`{"seq":3,"event":{"kind":"add_no`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	var count int
	watermark, err := Replay(path, func(UpdateEvent) error {
		count++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), watermark)
	assert.Equal(t, 2, count)
}

func TestAppendAssignsIncreasingSequence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wal.log")
	w, err := Open(path, SyncImmediate, 5)
	require.NoError(t, err)
	defer w.Close()

	seq, err := w.Append(AddNode("a", "node"))
	require.NoError(t, err)
	assert.Equal(t, uint64(6), seq)
}

func TestTruncateRemovesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wal.log")
	w, err := Open(path, SyncImmediate, 0)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	require.NoError(t, Truncate(path))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
