package memory_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/aretw0/canopy/pkg/adapters/memory"
	"github.com/aretw0/canopy/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrailStore_Contract(t *testing.T) {
	store := memory.NewTrailStore(0)
	ports.RunTrailSinkContract(t, store)
}

func TestTrailStore_EvictsOldest(t *testing.T) {
	ctx := context.Background()
	store := memory.NewTrailStore(3)

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Append(ctx, "r", []byte(fmt.Sprint(i))))
	}

	entries, err := store.Recent(ctx, "r", 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "2", string(entries[0]))
	assert.Equal(t, "4", string(entries[2]))
}

func TestTrailStore_CopiesEntries(t *testing.T) {
	ctx := context.Background()
	store := memory.NewTrailStore(0)

	payload := []byte("abc")
	require.NoError(t, store.Append(ctx, "r", payload))
	payload[0] = 'x'

	entries, err := store.Recent(ctx, "r", 1)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(entries[0]))

	entries[0][0] = 'y'
	again, err := store.Recent(ctx, "r", 1)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(again[0]))
}

func TestTrailStore_Roots(t *testing.T) {
	ctx := context.Background()
	store := memory.NewTrailStore(0)
	require.NoError(t, store.Append(ctx, "b", []byte("{}")))
	require.NoError(t, store.Append(ctx, "a", []byte("{}")))

	roots, err := store.Roots(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, roots)
}
