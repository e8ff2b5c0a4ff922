package blob

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	t.Run("GetMissing", func(t *testing.T) {
		_, err := store.Get(ctx, "logos/AAPL.png")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("PutGet", func(t *testing.T) {
		data := []byte{0x89, 0x50, 0x4e, 0x47}
		require.NoError(t, store.Put(ctx, "logos/AAPL.png", data, "image/png"))

		obj, err := store.Get(ctx, "logos/AAPL.png")
		require.NoError(t, err)
		assert.Equal(t, data, obj.Data)
		assert.Equal(t, "image/png", obj.ContentType)
	})

	t.Run("PutCopiesData", func(t *testing.T) {
		data := []byte("original")
		require.NoError(t, store.Put(ctx, "logos/MSFT.svg", data, "image/svg+xml"))
		data[0] = 'X'

		obj, err := store.Get(ctx, "logos/MSFT.svg")
		require.NoError(t, err)
		assert.Equal(t, []byte("original"), obj.Data)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "logos/TSLA.png", []byte("x"), "image/png"))
		require.NoError(t, store.Delete(ctx, "logos/TSLA.png"))
		_, err := store.Get(ctx, "logos/TSLA.png")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
