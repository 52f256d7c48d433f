package reservation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"ticketing/core/lock"
	"ticketing/feature/inventory"
	"ticketing/feature/reservation/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeStore is an in-memory Store. readGap widens the window between reading
// a concert and writing it back, which makes the oversell race deterministic
// when the lock is bypassed.
type fakeStore struct {
	mu           sync.Mutex
	concerts     map[uint]models.Concert
	members      map[uint]models.Member
	reservations map[string]models.Reservation
	readGap      time.Duration
	saveErr      error
	findErr      error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		concerts:     make(map[uint]models.Concert),
		members:      make(map[uint]models.Member),
		reservations: make(map[string]models.Reservation),
	}
}

func (s *fakeStore) addConcert(c models.Concert) { s.concerts[c.ID] = c }
func (s *fakeStore) addMember(m models.Member)   { s.members[m.ID] = m }

func (s *fakeStore) FindConcert(_ context.Context, id uint) (*models.Concert, error) {
	s.mu.Lock()
	if s.findErr != nil {
		s.mu.Unlock()
		return nil, s.findErr
	}
	c, ok := s.concerts[id]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("concert %d: %w", id, ErrNotFound)
	}
	if s.readGap > 0 {
		time.Sleep(s.readGap)
	}
	return &c, nil
}

func (s *fakeStore) FindMember(_ context.Context, id uint) (*models.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[id]
	if !ok {
		return nil, fmt.Errorf("member %d: %w", id, ErrNotFound)
	}
	return &m, nil
}

func (s *fakeStore) Concerts(_ context.Context) ([]models.Concert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Concert, 0, len(s.concerts))
	for _, c := range s.concerts {
		out = append(out, c)
	}
	return out, nil
}

func (s *fakeStore) SaveConcert(_ context.Context, c *models.Concert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.concerts[c.ID] = *c
	return nil
}

func (s *fakeStore) UpdateRemainingSeats(_ context.Context, concertID uint, remaining int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.concerts[concertID]
	if !ok {
		return fmt.Errorf("concert %d: %w", concertID, ErrNotFound)
	}
	c.RemainingSeats = remaining
	s.concerts[concertID] = c
	return nil
}

func (s *fakeStore) SaveReservation(_ context.Context, r *models.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.reservations[r.RequestID] = *r
	return nil
}

func (s *fakeStore) SaveAll(_ context.Context, rs []models.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	for _, r := range rs {
		// Mirrors the unique index: a second insert for the same request is
		// a no-op.
		if _, exists := s.reservations[r.RequestID]; exists {
			continue
		}
		s.reservations[r.RequestID] = r
	}
	return nil
}

func (s *fakeStore) FindByRequestID(_ context.Context, requestID string) (*models.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reservations[requestID]
	if !ok {
		return nil, fmt.Errorf("reservation %s: %w", requestID, ErrNotFound)
	}
	return &r, nil
}

func (s *fakeStore) Transaction(_ context.Context, fn func(Store) error) error {
	return fn(s)
}

func (s *fakeStore) countByStatus(status models.Status) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.reservations {
		if r.Status == status {
			n++
		}
	}
	return n
}

func (s *fakeStore) remainingSeats(id uint) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.concerts[id].RemainingSeats
}

// fakePublisher records published events and can be forced to fail.
type fakePublisher struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, event Event) (int32, int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return 0, 0, p.err
	}
	p.events = append(p.events, event)
	return 0, int64(len(p.events) - 1), nil
}

func setupService(t *testing.T, store *fakeStore, publisher Publisher) (*Service, *inventory.Service) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cache := inventory.NewService(client, inventory.Config{TTLHours: 168}, zap.NewNop())
	locker := lock.NewCoordinator(client, zap.NewNop())
	cfg := Config{
		LockWaitSeconds:  60,
		LockLeaseSeconds: 5,
	}
	return NewService(store, cache, locker, publisher, cfg, zap.NewNop()), cache
}

func TestService_Reserve(t *testing.T) {
	store := newFakeStore()
	store.addConcert(models.Concert{ID: 1, Title: "Concert", TotalSeats: 10, RemainingSeats: 10})
	store.addMember(models.Member{ID: 1, Name: "alice", Email: "alice@example.com"})
	svc, _ := setupService(t, store, &fakePublisher{})

	r, err := svc.Reserve(context.Background(), 1, 1)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, r.Status)
	assert.NotEmpty(t, r.RequestID)
	assert.Equal(t, 9, store.remainingSeats(1))
}

func TestService_ReserveNotFound(t *testing.T) {
	store := newFakeStore()
	store.addConcert(models.Concert{ID: 1, TotalSeats: 10, RemainingSeats: 10})
	store.addMember(models.Member{ID: 1})
	svc, _ := setupService(t, store, &fakePublisher{})
	ctx := context.Background()

	_, err := svc.Reserve(ctx, 99, 1)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Reserve(ctx, 1, 99)
	assert.ErrorIs(t, err, ErrNotFound)

	// A failed attempt must not leak a seat.
	assert.Equal(t, 10, store.remainingSeats(1))
}

func TestService_ReserveExhausted(t *testing.T) {
	store := newFakeStore()
	store.addConcert(models.Concert{ID: 1, TotalSeats: 10, RemainingSeats: 0})
	store.addMember(models.Member{ID: 1})
	svc, _ := setupService(t, store, &fakePublisher{})

	_, err := svc.Reserve(context.Background(), 1, 1)
	assert.ErrorIs(t, err, ErrExhausted)
}

// TestService_ConcurrentReserve is the headline oversell property: 150
// concurrent requests against 100 seats must produce exactly 100 COMPLETED
// reservations and 50 exhausted failures, never more.
func TestService_ConcurrentReserve(t *testing.T) {
	const totalSeats = 100
	const callers = 150

	store := newFakeStore()
	store.addConcert(models.Concert{ID: 1, TotalSeats: totalSeats, RemainingSeats: totalSeats})
	store.addMember(models.Member{ID: 1})
	svc, _ := setupService(t, store, &fakePublisher{})
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	completed, exhausted, unexpected := 0, 0, 0

	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := svc.Reserve(ctx, 1, 1)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				completed++
			case errors.Is(err, ErrExhausted):
				exhausted++
			default:
				unexpected++
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, totalSeats, completed)
	assert.Equal(t, callers-totalSeats, exhausted)
	assert.Zero(t, unexpected)
	assert.Equal(t, totalSeats, store.countByStatus(models.StatusCompleted))
	assert.Equal(t, 0, store.remainingSeats(1))
}

// TestService_UnguardedReserveOversells demonstrates that the lock is
// load-bearing: calling the critical section without serialization lets
// concurrent requests read the same remaining count and oversell.
func TestService_UnguardedReserveOversells(t *testing.T) {
	const totalSeats = 100
	const callers = 150

	store := newFakeStore()
	store.readGap = 2 * time.Millisecond
	store.addConcert(models.Concert{ID: 1, TotalSeats: totalSeats, RemainingSeats: totalSeats})
	store.addMember(models.Member{ID: 1})
	svc, _ := setupService(t, store, &fakePublisher{})
	ctx := context.Background()

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, _ = svc.reserveLocked(ctx, 1, 1)
		}()
	}
	close(start)
	wg.Wait()

	completed := store.countByStatus(models.StatusCompleted)
	assert.Greater(t, completed, totalSeats, "unsynchronized variant must oversell")
	assert.LessOrEqual(t, completed, callers)
}

func TestService_ReserveLockTimeout(t *testing.T) {
	store := newFakeStore()
	store.addConcert(models.Concert{ID: 1, TotalSeats: 10, RemainingSeats: 10})
	store.addMember(models.Member{ID: 1})

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cache := inventory.NewService(client, inventory.Config{TTLHours: 168}, zap.NewNop())
	locker := lock.NewCoordinator(client, zap.NewNop())
	cfg := Config{LockWaitSeconds: 1, LockLeaseSeconds: 5}
	svc := NewService(store, cache, locker, &fakePublisher{}, cfg, zap.NewNop())
	ctx := context.Background()

	// Hold the concert lock so the reservation cannot enter.
	lease, err := locker.Acquire(ctx, lock.ConcertKey(1), time.Second, 30*time.Second)
	require.NoError(t, err)
	defer lease.Release(ctx)

	_, err = svc.Reserve(ctx, 1, 1)
	assert.ErrorIs(t, err, lock.ErrTimeout)
}

func TestService_ReserveAsync(t *testing.T) {
	store := newFakeStore()
	store.addConcert(models.Concert{ID: 1, TotalSeats: 10, RemainingSeats: 10})
	store.addMember(models.Member{ID: 1})
	publisher := &fakePublisher{}
	svc, cache := setupService(t, store, publisher)
	ctx := context.Background()

	// No counter exists yet: the cold start must initialize it from the
	// durable store before decrementing.
	requestID, err := svc.ReserveAsync(ctx, 1, 1)
	require.NoError(t, err)
	assert.NotEmpty(t, requestID)

	remaining, err := cache.Remaining(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 9, remaining)

	require.Len(t, publisher.events, 1)
	assert.Equal(t, requestID, publisher.events[0].RequestID)
	assert.Equal(t, uint(1), publisher.events[0].ConcertID)

	// The durable store is untouched until the consumer drains the event.
	assert.Equal(t, 10, store.remainingSeats(1))
}

func TestService_ReserveAsyncExhausted(t *testing.T) {
	store := newFakeStore()
	store.addConcert(models.Concert{ID: 1, TotalSeats: 10, RemainingSeats: 0})
	store.addMember(models.Member{ID: 1})
	publisher := &fakePublisher{}
	svc, _ := setupService(t, store, publisher)

	_, err := svc.ReserveAsync(context.Background(), 1, 1)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Empty(t, publisher.events)
}

func TestService_ReserveAsyncMemberNotFound(t *testing.T) {
	store := newFakeStore()
	store.addConcert(models.Concert{ID: 1, TotalSeats: 10, RemainingSeats: 10})
	publisher := &fakePublisher{}
	svc, _ := setupService(t, store, publisher)

	_, err := svc.ReserveAsync(context.Background(), 1, 99)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, publisher.events)
}

// TestService_ReserveAsyncPublishFailure covers the compensation path: when
// the broker rejects the event after the cache decrement succeeded, the seat
// is returned to the cache and the caller sees ErrPublishFailed.
func TestService_ReserveAsyncPublishFailure(t *testing.T) {
	store := newFakeStore()
	store.addConcert(models.Concert{ID: 1, TotalSeats: 10, RemainingSeats: 10})
	store.addMember(models.Member{ID: 1})
	publisher := &fakePublisher{err: fmt.Errorf("broker unreachable")}
	svc, cache := setupService(t, store, publisher)
	ctx := context.Background()

	require.NoError(t, cache.Initialize(ctx, 1, 10))

	_, err := svc.ReserveAsync(ctx, 1, 1)
	assert.ErrorIs(t, err, ErrPublishFailed)

	remaining, err := cache.Remaining(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 10, remaining, "cache must be restored to its pre-decrement value")
}

func TestService_Status(t *testing.T) {
	store := newFakeStore()
	store.addConcert(models.Concert{ID: 1, TotalSeats: 10, RemainingSeats: 10})
	store.addMember(models.Member{ID: 1})
	svc, _ := setupService(t, store, &fakePublisher{})
	ctx := context.Background()

	r, err := svc.Reserve(ctx, 1, 1)
	require.NoError(t, err)

	found, err := svc.Status(ctx, r.RequestID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, found.Status)

	_, err = svc.Status(ctx, "unknown-request")
	assert.ErrorIs(t, err, ErrNotFound)
}
