package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubLease grants or refuses leases and records what happened
type stubLease struct {
	mu       sync.Mutex
	held     bool
	err      error
	keys     []string
	released int
}

func (l *stubLease) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.keys = append(l.keys, key)
	if l.err != nil {
		return nil, l.err
	}
	if l.held {
		return nil, nil
	}
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.released++
		return nil
	}, nil
}

func TestPassRunner_RunsPassWithDeadline(t *testing.T) {
	logger, _ := newTestLogger()
	lease := &stubLease{}
	var hadDeadline bool
	runner := NewPassRunner("sequences", func(ctx context.Context) error {
		_, hadDeadline = ctx.Deadline()
		return nil
	}, lease, time.Minute, 2*time.Minute, logger)

	assert.Equal(t, resultOK, runner.Run(context.Background()))
	assert.True(t, hadDeadline)
	assert.Equal(t, []string{"pass:sequences"}, lease.keys)
	assert.Equal(t, 1, lease.released)
}

func TestPassRunner_SkipsOverlappingRun(t *testing.T) {
	logger, _ := newTestLogger()
	started := make(chan struct{})
	release := make(chan struct{})
	calls := 0
	runner := NewPassRunner("lyric_send", func(ctx context.Context) error {
		calls++
		close(started)
		<-release
		return nil
	}, nil, time.Minute, time.Minute, logger)

	done := make(chan string)
	go func() { done <- runner.Run(context.Background()) }()
	<-started

	assert.Equal(t, resultSkipped, runner.Run(context.Background()))

	close(release)
	assert.Equal(t, resultOK, <-done)
	assert.Equal(t, 1, calls)
}

func TestPassRunner_LeaseHeldElsewhere(t *testing.T) {
	logger, _ := newTestLogger()
	called := false
	runner := NewPassRunner("lyric_generate", func(ctx context.Context) error {
		called = true
		return nil
	}, &stubLease{held: true}, time.Minute, time.Minute, logger)

	assert.Equal(t, resultLocked, runner.Run(context.Background()))
	assert.False(t, called)
}

func TestPassRunner_Failures(t *testing.T) {
	tests := []struct {
		name  string
		lease *stubLease
		pass  PassFunc
	}{
		{
			name:  "lease error",
			lease: &stubLease{err: errors.New("redis unavailable")},
			pass:  func(ctx context.Context) error { return nil },
		},
		{
			name:  "pass error",
			lease: &stubLease{},
			pass:  func(ctx context.Context) error { return errors.New("boom") },
		},
		{
			name:  "pass panic",
			lease: &stubLease{},
			pass:  func(ctx context.Context) error { panic("nil map") },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, _ := newTestLogger()
			runner := NewPassRunner("sequences", tt.pass, tt.lease, time.Minute, time.Minute, logger)

			assert.Equal(t, resultError, runner.Run(context.Background()))
			// the guard is released so the next tick can run again
			require.False(t, runner.running.Load())
		})
	}
}

func TestPassRunner_LeaseTTLCoversTimeout(t *testing.T) {
	logger, _ := newTestLogger()
	runner := NewPassRunner("sequences", func(context.Context) error { return nil }, nil, 5*time.Minute, time.Minute, logger)
	assert.Equal(t, 5*time.Minute, runner.leaseTTL)
}

func TestPassRunner_RunNowSharesGuard(t *testing.T) {
	logger, _ := newTestLogger()
	lease := &stubLease{}
	started := make(chan struct{})
	release := make(chan struct{})
	runner := NewPassRunner("sequences", func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}, lease, time.Minute, time.Minute, logger)

	done := make(chan string)
	go func() { done <- runner.Run(context.Background()) }()
	<-started

	called := false
	now := func(ctx context.Context) error {
		called = true
		return nil
	}
	assert.Equal(t, resultSkipped, runner.RunNow(context.Background(), now))
	assert.False(t, called)

	close(release)
	assert.Equal(t, resultOK, <-done)

	assert.Equal(t, resultOK, runner.RunNow(context.Background(), now))
	assert.True(t, called)
	assert.Equal(t, []string{"pass:sequences", "pass:sequences"}, lease.keys)

	lease.held = true
	assert.Equal(t, resultLocked, runner.RunNow(context.Background(), func(ctx context.Context) error {
		t.Fatal("must not run while the lease is held elsewhere")
		return nil
	}))
}
