package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLease_ExclusiveUntilReleased(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	ok, err := s.AcquireLease(ctx, "plan:p1", "owner-a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.AcquireLease(ctx, "plan:p1", "owner-b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// Other keys are independent.
	ok, err = s.AcquireLease(ctx, "plan:p2", "owner-b", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	// Only the owner can release.
	require.NoError(t, s.ReleaseLease(ctx, "plan:p1", "owner-b"))
	ok, err = s.AcquireLease(ctx, "plan:p1", "owner-b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.ReleaseLease(ctx, "plan:p1", "owner-a"))
	ok, err = s.AcquireLease(ctx, "plan:p1", "owner-b", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLease_ExpiredIsTakenOver(t *testing.T) {
	now := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	s := createTestStore(t)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	ok, err := s.AcquireLease(ctx, "plan:p1", "crashed", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	now = now.Add(2 * time.Second)
	ok, err = s.AcquireLease(ctx, "plan:p1", "owner-b", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}
