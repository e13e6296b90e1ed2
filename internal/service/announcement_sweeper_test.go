package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockExpiredDeleter struct {
	mu      sync.Mutex
	purged  int64
	err     error
	calls   int
	lastNow time.Time
}

func (m *mockExpiredDeleter) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.lastNow = now
	if m.err != nil {
		return 0, m.err
	}
	purged := m.purged
	m.purged = 0
	return purged, nil
}

func (m *mockExpiredDeleter) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockSweepObserver struct {
	mu       sync.Mutex
	purged   int64
	failures int
}

func (m *mockSweepObserver) ObserveSweep(purged int64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.failures++
		return
	}
	m.purged += purged
}

func TestSweeperRunOnce(t *testing.T) {
	repo := &mockExpiredDeleter{purged: 4}
	sweeper := NewAnnouncementSweeper(repo, time.Hour, nil)
	fixed := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	sweeper.now = func() time.Time { return fixed }

	purged, err := sweeper.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), purged)
	assert.True(t, repo.lastNow.Equal(fixed))

	// Everything expired is already gone; an immediate second run purges
	// nothing.
	purged, err = sweeper.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, purged)
}

func TestSweeperRunOnceSurfacesError(t *testing.T) {
	repo := &mockExpiredDeleter{err: errors.New("db down")}
	observer := &mockSweepObserver{}
	sweeper := NewAnnouncementSweeper(repo, time.Hour, nil)
	sweeper.SetMetrics(observer)

	_, err := sweeper.RunOnce(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, observer.failures)
}

func TestSweeperLoopSwallowsErrors(t *testing.T) {
	repo := &mockExpiredDeleter{err: errors.New("db down")}
	sweeper := NewAnnouncementSweeper(repo, 5*time.Millisecond, nil)

	sweeper.Start(context.Background())
	assert.Eventually(t, func() bool { return repo.callCount() >= 2 }, time.Second, 5*time.Millisecond)
	sweeper.Stop()
}

func TestSweeperStartTwiceIsNoop(t *testing.T) {
	repo := &mockExpiredDeleter{}
	sweeper := NewAnnouncementSweeper(repo, time.Hour, nil)

	sweeper.Start(context.Background())
	sweeper.Start(context.Background())
	sweeper.Stop()
	// Stop after a double Start must not hang or panic; a second Stop is
	// also fine.
	sweeper.Stop()
}

func TestSweeperObserverCountsPurges(t *testing.T) {
	repo := &mockExpiredDeleter{purged: 7}
	observer := &mockSweepObserver{}
	sweeper := NewAnnouncementSweeper(repo, time.Hour, nil)
	sweeper.SetMetrics(observer)

	_, err := sweeper.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), observer.purged)
}
