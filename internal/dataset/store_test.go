package dataset

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborai/llm-gateway/internal/hooks"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "dataset.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_AppendAndList(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	payload := &hooks.StandardLogPayload{
		ID:        "call-1",
		CallType:  hooks.CallTypeCompletion,
		Status:    "success",
		Model:     "llama-3.3-70b",
		StartTime: time.Now().Add(-time.Second),
		EndTime:   time.Now(),
	}
	item := &hooks.DatasetItem{
		ID:     "item-1",
		Fields: map[string]any{"model": "llama-3.3-70b", "score": 0.9},
	}

	require.NoError(t, store.Append(ctx, item, payload))

	items, err := store.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)

	got := items[0]
	assert.Equal(t, "item-1", got.ID)
	assert.Equal(t, "call-1", got.CallID)
	assert.Equal(t, "llama-3.3-70b", got.Fields["model"])
	require.NotNil(t, got.Payload)
	assert.Equal(t, "success", got.Payload.Status)
	assert.Equal(t, hooks.CallTypeCompletion, got.Payload.CallType)
}

func TestStore_AppendGeneratesIDAndAllowsNilPayload(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, &hooks.DatasetItem{Fields: map[string]any{"k": "v"}}, nil))

	items, err := store.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.NotEmpty(t, items[0].ID)
	assert.Empty(t, items[0].CallID)
	assert.Nil(t, items[0].Payload)
}

func TestStore_Count(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, store.Append(ctx, &hooks.DatasetItem{Fields: map[string]any{}}, nil))
	}

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}

func TestStore_ListLimit(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Append(ctx, &hooks.DatasetItem{Fields: map[string]any{}}, nil))
	}

	items, err := store.List(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestStore_ReopenPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dataset.db")
	ctx := context.Background()

	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Append(ctx, &hooks.DatasetItem{ID: "persisted", Fields: map[string]any{}}, nil))
	require.NoError(t, store.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	items, err := reopened.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "persisted", items[0].ID)
}
