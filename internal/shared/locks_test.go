package shared

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestLocker(t *testing.T) *MutationLocker {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewMutationLocker(client, 2*time.Second)
}

func TestMutationLockerSerializes(t *testing.T) {
	locker := newTestLocker(t)
	ctx := context.Background()

	key := EntityLockKey("billing:document", 42)
	release, err := locker.Acquire(ctx, key)
	require.NoError(t, err)

	_, err = locker.Acquire(ctx, key)
	require.ErrorIs(t, err, ErrLockHeld)

	release()

	release2, err := locker.Acquire(ctx, key)
	require.NoError(t, err)
	release2()
}

func TestMutationLockerIndependentKeys(t *testing.T) {
	locker := newTestLocker(t)
	ctx := context.Background()

	releaseA, err := locker.Acquire(ctx, EntityLockKey("billing:document", 1))
	require.NoError(t, err)
	defer releaseA()

	releaseB, err := locker.Acquire(ctx, EntityLockKey("billing:document", 2))
	require.NoError(t, err)
	defer releaseB()
}

func TestMutationLockerNilClient(t *testing.T) {
	var locker *MutationLocker
	release, err := locker.Acquire(context.Background(), "any")
	require.NoError(t, err)
	release()
}
