package inventory

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupService(t *testing.T) (*Service, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewService(client, Config{TTLHours: 168}, zap.NewNop()), mr
}

func TestKey(t *testing.T) {
	assert.Equal(t, "inventory:concert:12", Key(12))
}

func TestService_RemainingNotInitialized(t *testing.T) {
	svc, _ := setupService(t)

	_, err := svc.Remaining(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestService_InitializeAndRemaining(t *testing.T) {
	svc, mr := setupService(t)
	ctx := context.Background()

	require.NoError(t, svc.Initialize(ctx, 1, 100))

	seats, err := svc.Remaining(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 100, seats)

	// Counters expire; an expired counter reads as uninitialized.
	ttl := mr.TTL(Key(1))
	assert.Greater(t, ttl.Hours(), 0.0)
	mr.FastForward(ttl)
	_, err = svc.Remaining(ctx, 1)
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestService_RemainingUnparseable(t *testing.T) {
	svc, mr := setupService(t)
	mr.Set(Key(3), "not-a-number")

	_, err := svc.Remaining(context.Background(), 3)
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestService_DecrementSeat(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	require.NoError(t, svc.Initialize(ctx, 1, 2))

	remaining, err := svc.DecrementSeat(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, remaining)

	remaining, err = svc.DecrementSeat(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)

	// Sold out: decrement fails and the counter stays at zero.
	_, err = svc.DecrementSeat(ctx, 1)
	assert.ErrorIs(t, err, ErrInsufficient)

	seats, err := svc.Remaining(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, seats)
}

func TestService_DecrementNeverOversells(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	const total = 20
	const callers = 50

	require.NoError(t, svc.Initialize(ctx, 1, total))

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.DecrementSeat(ctx, 1); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, total, succeeded)

	seats, err := svc.Remaining(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, seats)
}

func TestService_IncrementCompensation(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	require.NoError(t, svc.Initialize(ctx, 1, 10))

	_, err := svc.DecrementSeat(ctx, 1)
	require.NoError(t, err)

	remaining, err := svc.IncrementSeat(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 10, remaining)
}

func TestService_SyncOverwrites(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	require.NoError(t, svc.Initialize(ctx, 1, 5))
	require.NoError(t, svc.Sync(ctx, 1, 42))

	seats, err := svc.Remaining(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 42, seats)
}
