package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ms-gigs/internal/clock"
	"ms-gigs/internal/models"
)

type MockCleaner struct {
	mock.Mock
	calls chan struct{}
}

func newMockCleaner() *MockCleaner {
	return &MockCleaner{calls: make(chan struct{}, 10)}
}

func (m *MockCleaner) AutoCleanupExpired(ctx context.Context) (models.CleanupReport, error) {
	args := m.Called(ctx)
	m.calls <- struct{}{}
	return args.Get(0).(models.CleanupReport), args.Error(1)
}

func waitCall(t *testing.T, m *MockCleaner) {
	t.Helper()
	select {
	case <-m.calls:
	case <-time.After(2 * time.Second):
		t.Fatal("cleanup was not run")
	}
}

func waitTicker(t *testing.T, clk *clock.Fake) {
	t.Helper()
	require.Eventually(t, func() bool { return clk.TickerCount() == 1 }, 2*time.Second, 5*time.Millisecond)
}

func TestRunsOnStartAndEveryInterval(t *testing.T) {
	clk := clock.NewFake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	cleaner := newMockCleaner()
	cleaner.On("AutoCleanupExpired", mock.Anything).Return(models.CleanupReport{CheckedCount: 2, CancelledCount: 1}, nil)

	s := NewCleanupScheduler(cleaner, clk, nil, 0)
	assert.Equal(t, DefaultCleanupInterval, s.Interval)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	waitTicker(t, clk)
	waitCall(t, cleaner)

	clk.Advance(time.Hour)
	waitCall(t, cleaner)

	cancel()
	<-done
	assert.Equal(t, 0, clk.TickerCount(), "ticker released on stop")
	cleaner.AssertNumberOfCalls(t, "AutoCleanupExpired", 2)
}

func TestFailedPassKeepsScheduling(t *testing.T) {
	clk := clock.NewFake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	cleaner := newMockCleaner()
	cleaner.On("AutoCleanupExpired", mock.Anything).Return(models.CleanupReport{}, errors.New("store down")).Once()
	cleaner.On("AutoCleanupExpired", mock.Anything).Return(models.CleanupReport{CheckedCount: 1}, nil)

	s := NewCleanupScheduler(cleaner, clk, nil, 10*time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	waitTicker(t, clk)
	waitCall(t, cleaner)
	clk.Advance(10 * time.Minute)
	waitCall(t, cleaner)
}

func TestRunOnceReturnsReport(t *testing.T) {
	cleaner := newMockCleaner()
	cleaner.On("AutoCleanupExpired", mock.Anything).Return(models.CleanupReport{CheckedCount: 4, CancelledCount: 2, CancelledGigs: []string{"a", "b"}}, nil)

	s := NewCleanupScheduler(cleaner, clock.Real(), nil, time.Hour)
	report, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, report.CancelledGigs)
}
