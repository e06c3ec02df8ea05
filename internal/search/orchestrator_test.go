package search

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/secopshq/ngsiem-mcp/internal/backend"
)

// fakeBackend simulates the remote search service. Each job completes after
// pollsUntilDone status calls, or reports failure when failJobs is set.
type fakeBackend struct {
	mu             sync.Mutex
	pollsUntilDone int
	failJobs       bool
	startErr       error

	startCalls int
	stopCalls  int
	polls      map[string]int
}

func newFakeBackend(pollsUntilDone int) *fakeBackend {
	return &fakeBackend{pollsUntilDone: pollsUntilDone, polls: make(map[string]int)}
}

func (f *fakeBackend) StartSearch(_ context.Context, _, _, _ string, _ bool) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return "", f.startErr
	}
	f.startCalls++
	return uuid.NewString(), nil
}

func (f *fakeBackend) SearchStatus(_ context.Context, _, jobID string) (*backend.StatusReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls[jobID]++

	if f.failJobs {
		return &backend.StatusReport{State: backend.StateFailed}, nil
	}
	if f.polls[jobID] >= f.pollsUntilDone {
		return &backend.StatusReport{
			State:      backend.StateDone,
			EventCount: 2,
			Events:     []map[string]any{{"a": 1}, {"a": 2}},
		}, nil
	}
	return &backend.StatusReport{State: backend.StateRunning}, nil
}

func (f *fakeBackend) StopSearch(_ context.Context, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopCalls++
	return nil
}

func newTestOrchestrator(fb *fakeBackend) *Orchestrator {
	return New(fb, zerolog.Nop())
}

func TestStart_InvalidRepository(t *testing.T) {
	fb := newFakeBackend(1)
	o := newTestOrchestrator(fb)

	for _, repo := range []string{"bad name", "repo/../../etc", "", "repo;drop"} {
		_, err := o.Start(context.Background(), repo, "a=1", "1d", false)
		assert.ErrorIs(t, err, ErrInvalidRepository, "repo: %q", repo)
	}
	assert.Equal(t, 0, fb.startCalls, "backend must not be contacted for invalid repositories")
}

func TestStart_RegistersRunningJob(t *testing.T) {
	fb := newFakeBackend(1)
	o := newTestOrchestrator(fb)

	snap, err := o.Start(context.Background(), "detections", "#event_simpleName=Foo", "1d", false)
	require.NoError(t, err)
	assert.NotEmpty(t, snap.ID)
	assert.Equal(t, StateRunning, snap.State)
	assert.Equal(t, "detections", snap.Repository)
	assert.Equal(t, 0, snap.PollCount)

	jobs := o.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, snap.ID, jobs[0].ID)
}

func TestStatus_UnknownJob(t *testing.T) {
	o := newTestOrchestrator(newFakeBackend(1))

	_, err := o.Status(context.Background(), "no-such-job")
	assert.ErrorIs(t, err, ErrUnknownJob)
}

func TestStatus_PollCountMonotonic(t *testing.T) {
	fb := newFakeBackend(3)
	o := newTestOrchestrator(fb)
	ctx := context.Background()

	snap, err := o.Start(ctx, "repo", "a=1", "1d", false)
	require.NoError(t, err)

	prev := 0
	for i := 0; i < 3; i++ {
		result, err := o.Status(ctx, snap.ID)
		require.NoError(t, err)
		assert.Greater(t, result.Job.PollCount, prev)
		prev = result.Job.PollCount
		assert.False(t, result.Job.LastPolledAt.IsZero())
	}
}

func TestStatus_NoRegressionFromDone(t *testing.T) {
	fb := newFakeBackend(1)
	o := newTestOrchestrator(fb)
	ctx := context.Background()

	snap, err := o.Start(ctx, "repo", "a=1", "1d", false)
	require.NoError(t, err)

	result, err := o.Status(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, StateDone, result.Job.State)

	// The fake keeps answering DONE, but even a RUNNING report must not
	// move the cached state backwards.
	fb.mu.Lock()
	fb.polls[snap.ID] = -100
	fb.mu.Unlock()

	result, err = o.Status(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, StateDone, result.Job.State)
}

func TestWaitForCompletion_Success(t *testing.T) {
	fb := newFakeBackend(3)
	o := newTestOrchestrator(fb)

	outcome, err := o.WaitForCompletion(context.Background(), "repo", "a=1", "1d", false,
		5*time.Second, 5*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, StateDone, outcome.Job.State)
	assert.Equal(t, 2, outcome.EventCount)
	assert.Len(t, outcome.Events, 2)
	assert.Equal(t, 3, outcome.Job.PollCount)
}

func TestWaitForCompletion_Timeout(t *testing.T) {
	fb := newFakeBackend(1 << 30) // never completes
	o := newTestOrchestrator(fb)

	maxWait := 60 * time.Millisecond
	pollInterval := 10 * time.Millisecond

	begin := time.Now()
	_, err := o.WaitForCompletion(context.Background(), "repo", "a=1", "1d", false, maxWait, pollInterval)
	elapsed := time.Since(begin)

	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.NotEmpty(t, timeoutErr.JobID)

	// Bounded by maxWait plus one poll tick (with scheduling slack).
	assert.Less(t, elapsed, maxWait+pollInterval+100*time.Millisecond)

	result, err := o.Status(context.Background(), timeoutErr.JobID)
	require.NoError(t, err)
	assert.Equal(t, StateTimedOut, result.Job.State, "timed-out job stays inspectable")
}

func TestWaitForCompletion_BackendFailure(t *testing.T) {
	fb := newFakeBackend(1)
	fb.failJobs = true
	o := newTestOrchestrator(fb)

	_, err := o.WaitForCompletion(context.Background(), "repo", "a=1", "1d", false,
		time.Second, time.Millisecond)
	assert.ErrorIs(t, err, ErrSearchFailed)
}

func TestWaitForCompletion_ContextCancelled(t *testing.T) {
	fb := newFakeBackend(1 << 30)
	o := newTestOrchestrator(fb)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := o.WaitForCompletion(ctx, "repo", "a=1", "1d", false, time.Minute, 5*time.Millisecond)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCancel_RunningJob(t *testing.T) {
	fb := newFakeBackend(1 << 30)
	o := newTestOrchestrator(fb)
	ctx := context.Background()

	snap, err := o.Start(ctx, "repo", "a=1", "1d", false)
	require.NoError(t, err)

	result, err := o.Cancel(ctx, snap.ID)
	require.NoError(t, err)
	assert.True(t, result.Transitioned)
	assert.Equal(t, StateCancelled, result.Job.State)
	assert.Equal(t, 1, fb.stopCalls)
}

func TestCancel_TerminalJobIsNoOp(t *testing.T) {
	fb := newFakeBackend(1)
	o := newTestOrchestrator(fb)
	ctx := context.Background()

	snap, err := o.Start(ctx, "repo", "a=1", "1d", false)
	require.NoError(t, err)

	_, err = o.Status(ctx, snap.ID) // completes the job
	require.NoError(t, err)

	result, err := o.Cancel(ctx, snap.ID)
	require.NoError(t, err, "cancel on terminal job is not an error")
	assert.False(t, result.Transitioned)
	assert.Equal(t, StateDone, result.Job.State)
	assert.Equal(t, 0, fb.stopCalls, "backend stop skipped for terminal jobs")
}

func TestCancel_UnknownJob(t *testing.T) {
	o := newTestOrchestrator(newFakeBackend(1))

	_, err := o.Cancel(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrUnknownJob)
}

func TestCancel_ConcurrentCallersSingleTransition(t *testing.T) {
	fb := newFakeBackend(1 << 30)
	o := newTestOrchestrator(fb)
	ctx := context.Background()

	snap, err := o.Start(ctx, "repo", "a=1", "1d", false)
	require.NoError(t, err)

	const callers = 16
	var mu sync.Mutex
	transitions := 0
	finalStates := make(map[State]int)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < callers; i++ {
		g.Go(func() error {
			result, err := o.Cancel(gctx, snap.ID)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			if result.Transitioned {
				transitions++
			}
			finalStates[result.Job.State]++
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, 1, transitions, "exactly one caller performs the transition")
	assert.Equal(t, callers, finalStates[StateCancelled], "all callers observe the same terminal state")
}

func TestConcurrentWaits_IndependentJobs(t *testing.T) {
	fb := newFakeBackend(2)
	o := newTestOrchestrator(fb)

	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			_, err := o.WaitForCompletion(ctx, "repo", "a=1", "1d", false,
				5*time.Second, 2*time.Millisecond)
			return err
		})
	}
	require.NoError(t, g.Wait())
	assert.Len(t, o.Jobs(), 8)
	for _, job := range o.Jobs() {
		assert.Equal(t, StateDone, job.State)
	}
}

func TestShutdown_CancelsActiveJobs(t *testing.T) {
	fb := newFakeBackend(1 << 30)
	o := newTestOrchestrator(fb)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := o.Start(ctx, "repo", "a=1", "1d", false)
		require.NoError(t, err)
	}

	require.NoError(t, o.Shutdown(ctx))
	for _, job := range o.Jobs() {
		assert.Equal(t, StateCancelled, job.State)
	}
	assert.Equal(t, 3, fb.stopCalls)
}

func TestValidateRepository(t *testing.T) {
	assert.NoError(t, ValidateRepository("search-all_2024"))
	assert.Error(t, ValidateRepository("bad repo"))
	assert.Error(t, ValidateRepository(""))
}
