package journal

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trustreg/contracts/registry"
	"trustreg/pkg/platform/sentinel"
)

func TestMemory(t *testing.T) {
	ctx := context.Background()
	j := NewMemory()
	entries := chain(
		newEntry(1, KindRegistered, "M1"),
		newEntry(2, KindRegistered, "M2"),
		newEntry(3, KindDeactivated, "M1"),
	)
	for _, e := range entries {
		require.NoError(t, j.Append(ctx, e))
	}

	t.Run("load preserves order", func(t *testing.T) {
		loaded, err := j.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, entries, loaded)
		require.NoError(t, Verify(ctx, loaded))
	})

	t.Run("load returns a copy", func(t *testing.T) {
		loaded, _ := j.Load(ctx)
		loaded[0].Name = "mutated"
		again, _ := j.Load(ctx)
		assert.Empty(t, again[0].Name)
	})

	t.Run("non-increasing height is a conflict", func(t *testing.T) {
		err := j.Append(ctx, newEntry(3, KindReactivated, "M1"))
		assert.ErrorIs(t, err, sentinel.ErrConflict)
		err = j.Append(ctx, newEntry(1, KindReactivated, "M1"))
		assert.ErrorIs(t, err, sentinel.ErrConflict)
		assert.Equal(t, 3, j.Len())
	})

	t.Run("entries for entities", func(t *testing.T) {
		got, err := j.EntriesFor(ctx, "M1")
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, registry.Height(1), got[0].Height)
		assert.Equal(t, registry.Height(3), got[1].Height)

		got, err = j.EntriesFor(ctx, "M1", "M2")
		require.NoError(t, err)
		assert.Len(t, got, 3)

		got, err = j.EntriesFor(ctx)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}
