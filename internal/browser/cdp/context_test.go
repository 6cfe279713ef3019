// internal/browser/cdp/context_test.go
package cdp

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCombineContext(t *testing.T) {
	type ctxKey string
	const key ctxKey = "target"

	t.Run("InheritsValuesFromSession", func(t *testing.T) {
		session := context.WithValue(context.Background(), key, "tab-1")
		combined, cancel := CombineContext(session, context.Background())
		defer cancel()

		assert.Equal(t, "tab-1", combined.Value(key))
		assert.NoError(t, combined.Err())
	})

	t.Run("CancelledBySession", func(t *testing.T) {
		session, cancelSession := context.WithCancel(context.Background())
		combined, cancel := CombineContext(session, context.Background())
		defer cancel()

		cancelSession()
		assert.ErrorIs(t, combined.Err(), context.Canceled)
	})

	t.Run("CancelledByOperation", func(t *testing.T) {
		op, cancelOp := context.WithCancel(context.Background())
		combined, cancel := CombineContext(context.Background(), op)
		defer cancel()

		cancelOp()
		assert.Eventually(t, func() bool { return combined.Err() != nil },
			100*time.Millisecond, 5*time.Millisecond)
		assert.ErrorIs(t, combined.Err(), context.Canceled)
	})

	t.Run("CarriesOperationDeadline", func(t *testing.T) {
		deadline := time.Now().Add(time.Hour)
		op, cancelOp := context.WithDeadline(context.Background(), deadline)
		defer cancelOp()

		combined, cancel := CombineContext(context.Background(), op)
		defer cancel()

		got, ok := combined.Deadline()
		require.True(t, ok)
		assert.Equal(t, deadline, got)
	})

	t.Run("CancelReleasesOperationLink", func(t *testing.T) {
		op, cancelOp := context.WithCancel(context.Background())
		defer cancelOp()

		combined, cancel := CombineContext(context.Background(), op)
		cancel()
		assert.ErrorIs(t, combined.Err(), context.Canceled)
	})
}
