package kvstore

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_GetNotFound(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.Get(context.Background(), "auction", []byte("missing"))

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_CreateAndGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	err := store.Create(ctx, "auction", []byte("swap0001"), func() ([]byte, error) {
		return []byte(`{"winner":"alice"}`), nil
	})
	require.NoError(t, err)

	value, err := store.Get(ctx, "auction", []byte("swap0001"))
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"winner":"alice"}`), value)
}

func TestMemoryStore_CreateExisting(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, "auction", []byte("swap0001"), func() ([]byte, error) {
		return []byte("original"), nil
	}))

	err := store.Create(ctx, "auction", []byte("swap0001"), func() ([]byte, error) {
		return []byte("overwrite"), nil
	})
	assert.ErrorIs(t, err, ErrExists)

	// The stored value must be untouched by the rejected create.
	value, err := store.Get(ctx, "auction", []byte("swap0001"))
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), value)
}

func TestMemoryStore_CreateProduceError(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	produceErr := errors.New("produce failed")

	err := store.Create(ctx, "auction", []byte("swap0001"), func() ([]byte, error) {
		return nil, produceErr
	})
	assert.ErrorIs(t, err, produceErr)

	_, err = store.Get(ctx, "auction", []byte("swap0001"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_UpdateMissing(t *testing.T) {
	store := NewMemoryStore()

	err := store.Update(context.Background(), "auction", []byte("missing"), func(existing []byte) ([]byte, error) {
		return existing, nil
	})

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_Update(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, "auction", []byte("swap0001"), func() ([]byte, error) {
		return []byte("v1"), nil
	}))

	err := store.Update(ctx, "auction", []byte("swap0001"), func(existing []byte) ([]byte, error) {
		assert.Equal(t, []byte("v1"), existing)
		return []byte("v2"), nil
	})
	require.NoError(t, err)

	value, err := store.Get(ctx, "auction", []byte("swap0001"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), value)
}

func TestMemoryStore_UpdateTransformErrorAbortsWrite(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	transformErr := errors.New("precondition failed")

	require.NoError(t, store.Create(ctx, "auction", []byte("swap0001"), func() ([]byte, error) {
		return []byte("v1"), nil
	}))

	err := store.Update(ctx, "auction", []byte("swap0001"), func(existing []byte) ([]byte, error) {
		return []byte("v2"), transformErr
	})
	assert.ErrorIs(t, err, transformErr)

	value, err := store.Get(ctx, "auction", []byte("swap0001"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), value)
}

func TestMemoryStore_NamespaceIsolation(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, "auction", []byte("shared"), func() ([]byte, error) {
		return []byte("auction-value"), nil
	}))
	require.NoError(t, store.Create(ctx, "outbox", []byte("shared"), func() ([]byte, error) {
		return []byte("outbox-value"), nil
	}))

	value, err := store.Get(ctx, "auction", []byte("shared"))
	require.NoError(t, err)
	assert.Equal(t, []byte("auction-value"), value)

	keys, err := store.Keys(ctx, "auction", nil, 10)
	require.NoError(t, err)
	assert.Len(t, keys, 1)
}

func TestMemoryStore_KeysOrderedAscending(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for _, id := range []string{"zen", "lazy", "assign"} {
		require.NoError(t, store.Create(ctx, "auction", []byte(id), func() ([]byte, error) {
			return []byte("{}"), nil
		}))
	}

	keys, err := store.Keys(ctx, "auction", nil, 10)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("assign"), []byte("lazy"), []byte("zen")}, keys)
}

func TestMemoryStore_KeysStartAfterIsExclusive(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for _, id := range []string{"assign", "lazy", "zen"} {
		require.NoError(t, store.Create(ctx, "auction", []byte(id), func() ([]byte, error) {
			return []byte("{}"), nil
		}))
	}

	keys, err := store.Keys(ctx, "auction", []byte("assign"), 10)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("lazy"), []byte("zen")}, keys)
}

func TestMemoryStore_KeysLimit(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		id := []byte(fmt.Sprintf("auction-%d", i))
		require.NoError(t, store.Create(ctx, "auction", id, func() ([]byte, error) {
			return []byte("{}"), nil
		}))
	}

	keys, err := store.Keys(ctx, "auction", nil, 2)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("auction-0"), []byte("auction-1")}, keys)
}

func TestMemoryStore_KeysEmptyNamespace(t *testing.T) {
	store := NewMemoryStore()

	keys, err := store.Keys(context.Background(), "auction", nil, 10)
	require.NoError(t, err)
	assert.Empty(t, keys)
}
