package scheduler

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenhr/be-hr-workflows/internal/escalation"
	"github.com/lumenhr/be-hr-workflows/internal/logger"
)

type fakeRunner struct {
	mu      sync.Mutex
	runs    int
	block   chan struct{} // when set, Run blocks until closed
	err     error
	summary *escalation.Summary
}

func (r *fakeRunner) Run(ctx context.Context) (*escalation.Summary, error) {
	r.mu.Lock()
	r.runs++
	block := r.block
	r.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if r.err != nil {
		return nil, r.err
	}
	if r.summary != nil {
		return r.summary, nil
	}
	return &escalation.Summary{}, nil
}

func (r *fakeRunner) runCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runs
}

func nopLogger() *logger.Logger {
	return &logger.Logger{Logger: zerolog.Nop()}
}

func TestScheduler_TriggerNow(t *testing.T) {
	runner := &fakeRunner{summary: &escalation.Summary{Processed: 3}}
	s := New(runner, time.Hour, time.Minute, nopLogger())

	summary, ok := s.TriggerNow(context.Background())
	require.True(t, ok)
	require.NotNil(t, summary)
	assert.Equal(t, 3, summary.Processed)
	assert.Equal(t, 1, runner.runCount())
}

func TestScheduler_TriggerNow_PassFailureReturnsNil(t *testing.T) {
	runner := &fakeRunner{err: fmt.Errorf("db unavailable")}
	s := New(runner, time.Hour, time.Minute, nopLogger())

	summary, ok := s.TriggerNow(context.Background())
	assert.True(t, ok)
	assert.Nil(t, summary)
}

func TestScheduler_TriggerNow_SingleFlight(t *testing.T) {
	block := make(chan struct{})
	runner := &fakeRunner{block: block}
	s := New(runner, time.Hour, time.Minute, nopLogger())

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, ok := s.TriggerNow(context.Background())
		assert.True(t, ok)
	}()

	// Wait for the first pass to be in flight, then try a second one.
	require.Eventually(t, func() bool { return runner.runCount() == 1 },
		time.Second, 5*time.Millisecond)

	summary, ok := s.TriggerNow(context.Background())
	assert.False(t, ok)
	assert.Nil(t, summary)

	close(block)
	<-done
	assert.Equal(t, 1, runner.runCount())
}

func TestScheduler_StartRunsImmediatelyAndStopsOnCancel(t *testing.T) {
	runner := &fakeRunner{}
	s := New(runner, time.Hour, time.Minute, nopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Start(ctx)
	}()

	require.Eventually(t, func() bool { return runner.runCount() == 1 },
		time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after context cancel")
	}
}

func TestScheduler_PassTimeoutBoundsRun(t *testing.T) {
	block := make(chan struct{}) // never closed; the pass only ends via timeout
	runner := &fakeRunner{block: block}
	s := New(runner, time.Hour, 20*time.Millisecond, nopLogger())

	start := time.Now()
	summary, ok := s.TriggerNow(context.Background())
	assert.True(t, ok)
	assert.Nil(t, summary)
	assert.Less(t, time.Since(start), time.Second)
}
