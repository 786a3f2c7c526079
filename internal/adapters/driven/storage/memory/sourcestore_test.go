package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/intake-cli/internal/core/domain"
)

func TestSourceStore_SaveAndGet(t *testing.T) {
	store := NewSourceStore()
	ctx := context.Background()

	source := domain.Source{
		ID:      "src-1",
		Type:    "watchfolder",
		Label:   "Inbox folder",
		Enabled: true,
		Config:  map[string]string{"path": "/srv/inbox"},
	}

	err := store.Save(ctx, source)
	require.NoError(t, err)

	saved, err := store.Get(ctx, "src-1")
	require.NoError(t, err)
	assert.Equal(t, "src-1", saved.ID)
	assert.Equal(t, "watchfolder", saved.Type)
	assert.Equal(t, "Inbox folder", saved.Label)
	assert.True(t, saved.Enabled)
	assert.Equal(t, "/srv/inbox", saved.Config["path"])
}

func TestSourceStore_Save_Update(t *testing.T) {
	store := NewSourceStore()
	ctx := context.Background()

	_ = store.Save(ctx, domain.Source{ID: "src-1", Label: "Original", Type: "watchfolder"})
	err := store.Save(ctx, domain.Source{ID: "src-1", Label: "Updated", Type: "imap"})
	require.NoError(t, err)

	saved, err := store.Get(ctx, "src-1")
	require.NoError(t, err)
	assert.Equal(t, "Updated", saved.Label)
	assert.Equal(t, "imap", saved.Type)
}

func TestSourceStore_Get_NotFound(t *testing.T) {
	store := NewSourceStore()

	source, err := store.Get(context.Background(), "nonexistent")

	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Nil(t, source)
}

func TestSourceStore_Delete(t *testing.T) {
	store := NewSourceStore()
	ctx := context.Background()

	_ = store.Save(ctx, domain.Source{ID: "src-1", Label: "A"})
	_ = store.Save(ctx, domain.Source{ID: "src-2", Label: "B"})

	err := store.Delete(ctx, "src-1")
	require.NoError(t, err)

	_, err = store.Get(ctx, "src-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	remaining, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
}

func TestSourceStore_Delete_NonExistent(t *testing.T) {
	store := NewSourceStore()
	err := store.Delete(context.Background(), "nonexistent")
	assert.NoError(t, err)
}

func TestSourceStore_List_OrderedByLabel(t *testing.T) {
	store := NewSourceStore()
	ctx := context.Background()

	_ = store.Save(ctx, domain.Source{ID: "src-1", Label: "zebra"})
	_ = store.Save(ctx, domain.Source{ID: "src-2", Label: "apple"})
	_ = store.Save(ctx, domain.Source{ID: "src-3", Label: "mango"})

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "apple", list[0].Label)
	assert.Equal(t, "mango", list[1].Label)
	assert.Equal(t, "zebra", list[2].Label)
}

func TestSourceStore_List_Empty(t *testing.T) {
	store := NewSourceStore()

	sources, err := store.List(context.Background())

	require.NoError(t, err)
	assert.Empty(t, sources)
	assert.NotNil(t, sources)
}

func TestSourceStore_Concurrency(t *testing.T) {
	store := NewSourceStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	numGoroutines := 50

	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer wg.Done()
			source := domain.Source{
				ID:    "src-" + string(rune('A'+id)),
				Label: "Source " + string(rune('A'+id)),
				Type:  "watchfolder",
			}
			_ = store.Save(ctx, source)
		}(i)
	}
	wg.Wait()

	list, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, numGoroutines)
}

func TestSourceLogStore_AppendAndList(t *testing.T) {
	store := NewSourceLogStore()
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "src-1", "first"))
	require.NoError(t, store.Append(ctx, "src-1", "second"))
	require.NoError(t, store.Append(ctx, "src-2", "other"))

	entries, err := store.List(ctx, "src-1", 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "second", entries[0].Message)
	assert.Equal(t, "first", entries[1].Message)
}

func TestSourceLogStore_ListLimit(t *testing.T) {
	store := NewSourceLogStore()
	ctx := context.Background()

	for _, msg := range []string{"a", "b", "c"} {
		require.NoError(t, store.Append(ctx, "src-1", msg))
	}

	entries, err := store.List(ctx, "src-1", 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "c", entries[0].Message)
	assert.Equal(t, "b", entries[1].Message)
}

func TestSourceLogStore_DeleteForSource(t *testing.T) {
	store := NewSourceLogStore()
	ctx := context.Background()

	_ = store.Append(ctx, "src-1", "gone")
	_ = store.Append(ctx, "src-2", "kept")

	require.NoError(t, store.DeleteForSource(ctx, "src-1"))

	entries, err := store.List(ctx, "src-1", 0)
	require.NoError(t, err)
	assert.Empty(t, entries)

	entries, err = store.List(ctx, "src-2", 0)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
