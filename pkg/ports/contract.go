package ports

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunTrailSinkContract runs a suite of tests to verify that a TrailSink implementation
// adheres to the defined interface contract. The sink must retain at least 5 entries per root.
func RunTrailSinkContract(t *testing.T, sink TrailSink) {
	ctx := context.Background()
	rootID := "contract-root-" + time.Now().Format("20060102150405")

	t.Run("Append and Recent", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			require.NoError(t, sink.Append(ctx, rootID, []byte(fmt.Sprintf(`{"seq":%d}`, i))))
		}

		all, err := sink.Recent(ctx, rootID, 0)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, `{"seq":0}`, string(all[0]), "entries must be oldest first")
		assert.Equal(t, `{"seq":2}`, string(all[2]))

		last, err := sink.Recent(ctx, rootID, 2)
		require.NoError(t, err)
		require.Len(t, last, 2)
		assert.Equal(t, `{"seq":1}`, string(last[0]))
	})

	t.Run("Roots are isolated", func(t *testing.T) {
		other := rootID + "-other"
		require.NoError(t, sink.Append(ctx, other, []byte(`{}`)))

		entries, err := sink.Recent(ctx, rootID, 0)
		require.NoError(t, err)
		assert.Len(t, entries, 3)
	})

	t.Run("Unknown root is empty", func(t *testing.T) {
		entries, err := sink.Recent(ctx, "never-written", 0)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, sink.Delete(ctx, rootID))

		entries, err := sink.Recent(ctx, rootID, 0)
		require.NoError(t, err)
		assert.Empty(t, entries)

		// Idempotent
		assert.NoError(t, sink.Delete(ctx, rootID))
	})
}
