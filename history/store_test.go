package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecordFillsDefaults(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.Record(Exchange{
		Source:   SourcePrompt,
		Model:    "llama3.2",
		Prompt:   "hello",
		Response: "hi",
	}))

	got, err := store.Recent(10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.NotEmpty(t, got[0].ID)
	assert.False(t, got[0].CreatedAt.IsZero())
	assert.WithinDuration(t, time.Now(), got[0].CreatedAt, 5*time.Second)
}

func TestRecordRoundTrip(t *testing.T) {
	store := openTestStore(t)

	in := Exchange{
		ID:          "fixed-id",
		CreatedAt:   time.Unix(1756000000, 0),
		Source:      SourceTask,
		Model:       "qwen2.5:14b",
		Temperature: 0.3,
		Prompt:      "summarize the notes",
		Response:    "A summary.",
		EvalCount:   42,
		Duration:    1500 * time.Millisecond,
	}
	require.NoError(t, store.Record(in))

	got, err := store.Recent(1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	// Timestamps are stored at second precision, durations at millisecond.
	assert.Equal(t, in, got[0])
}

func TestRecentNewestFirst(t *testing.T) {
	store := openTestStore(t)

	base := time.Unix(1756000000, 0)
	for i := 0; i < 5; i++ {
		require.NoError(t, store.Record(Exchange{
			ID:        string(rune('a' + i)),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
			Source:    SourceChat,
			Model:     "llama3.2",
			Prompt:    "p",
			Response:  "r",
		}))
	}

	got, err := store.Recent(3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "e", got[0].ID)
	assert.Equal(t, "d", got[1].ID)
	assert.Equal(t, "c", got[2].ID)
}

func TestRecentEmptyStore(t *testing.T) {
	store := openTestStore(t)
	got, err := store.Recent(10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestClear(t *testing.T) {
	store := openTestStore(t)

	for i := 0; i < 3; i++ {
		require.NoError(t, store.Record(Exchange{
			Source: SourcePrompt, Model: "m", Prompt: "p", Response: "r",
		}))
	}

	n, err := store.Clear()
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	got, err := store.Recent(10)
	require.NoError(t, err)
	assert.Empty(t, got)

	n, err = store.Clear()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestOpenReopensExistingDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Record(Exchange{Source: SourcePrompt, Model: "m", Prompt: "p", Response: "r"}))
	require.NoError(t, store.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Recent(10)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
