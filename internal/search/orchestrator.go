package search

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/secopshq/ngsiem-mcp/internal/backend"
)

const (
	// MaxWaitCeiling is the hard upper bound for blocking waits.
	MaxWaitCeiling = 3600 * time.Second

	// DefaultPollInterval is used when the caller does not specify one.
	DefaultPollInterval = 2 * time.Second

	// DefaultMaxWait bounds a blocking wait when the caller does not
	// specify one.
	DefaultMaxWait = 300 * time.Second
)

var (
	// ErrInvalidRepository means the repository name failed the permitted
	// character check. The backend is never contacted in this case.
	ErrInvalidRepository = errors.New("invalid repository name")

	// ErrUnknownJob means the job id was not started by this orchestrator.
	ErrUnknownJob = errors.New("unknown search job")

	// ErrSearchFailed means the backend reported a fatal job error.
	ErrSearchFailed = errors.New("search failed")

	// ErrJobCancelled means the job was cancelled while a blocking wait
	// was still polling it.
	ErrJobCancelled = errors.New("search job cancelled")
)

// repositoryRe is the permitted character set for repository names.
var repositoryRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// TimeoutError reports that a blocking wait gave up before the job
// finished. It carries the job id so the caller can still inspect or cancel
// the remote job, which may well still be running.
type TimeoutError struct {
	JobID   string
	Elapsed time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("search %s did not complete within %s; check status later or cancel it", e.JobID, e.Elapsed.Round(time.Second))
}

// Recorder receives job lifecycle notifications, typically for an audit
// trail. Implementations must tolerate concurrent calls.
type Recorder interface {
	RecordStart(ctx context.Context, snap Snapshot)
	RecordFinish(ctx context.Context, snap Snapshot, eventCount int)
}

// StatusResult is the outcome of one Status call.
type StatusResult struct {
	Job        Snapshot
	EventCount int
	Events     []map[string]any
	Metadata   map[string]any
}

// Outcome is the result of a completed blocking wait.
type Outcome struct {
	Job        Snapshot
	EventCount int
	Events     []map[string]any
	Metadata   map[string]any
	Elapsed    time.Duration
}

// CancelResult reports what Cancel did. Transitioned is false when the job
// was already terminal and the call became a no-op.
type CancelResult struct {
	Job          Snapshot
	Transitioned bool
}

// Orchestrator drives search jobs against a backend client. Each instance
// owns its own job registry; jobs started elsewhere are unknown to it.
type Orchestrator struct {
	client   backend.Client
	registry *registry
	recorder Recorder
	log      zerolog.Logger
}

// New creates an orchestrator over the given backend client.
func New(client backend.Client, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		client:   client,
		registry: newRegistry(),
		log:      log,
	}
}

// WithRecorder attaches an audit recorder and returns the orchestrator.
func (o *Orchestrator) WithRecorder(r Recorder) *Orchestrator {
	o.recorder = r
	return o
}

// ValidateRepository checks a repository name against the permitted
// character set without contacting the backend.
func ValidateRepository(repository string) error {
	if !repositoryRe.MatchString(repository) {
		return fmt.Errorf("%w: %q must match [A-Za-z0-9_-]+", ErrInvalidRepository, repository)
	}
	return nil
}

// Start submits a search and registers the job. Non-blocking: it returns as
// soon as the backend assigns an id. The job is observed as running
// immediately after a successful start.
func (o *Orchestrator) Start(ctx context.Context, repository, query, start string, isLive bool) (Snapshot, error) {
	if err := ValidateRepository(repository); err != nil {
		return Snapshot{}, err
	}

	id, err := o.client.StartSearch(ctx, repository, query, start, isLive)
	if err != nil {
		return Snapshot{}, err
	}

	job := newJob(id, repository, query)
	job.transition(StateRunning)
	o.registry.add(job)

	snap := job.Snapshot()
	if o.recorder != nil {
		o.recorder.RecordStart(ctx, snap)
	}
	o.log.Info().
		Str("job_id", id).
		Str("repository", repository).
		Msg("search job registered")
	return snap, nil
}

// Status performs a single backend round trip for a job started by this
// orchestrator and updates the cached job state.
func (o *Orchestrator) Status(ctx context.Context, jobID string) (*StatusResult, error) {
	job, ok := o.registry.get(jobID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownJob, jobID)
	}

	snap := job.Snapshot()
	report, err := o.client.SearchStatus(ctx, snap.Repository, jobID)
	if err != nil {
		return nil, err
	}

	job.recordPoll()
	switch report.State {
	case backend.StateDone:
		if job.transition(StateDone) && o.recorder != nil {
			o.recorder.RecordFinish(ctx, job.Snapshot(), report.EventCount)
		}
	case backend.StateFailed:
		if job.transition(StateFailed) && o.recorder != nil {
			o.recorder.RecordFinish(ctx, job.Snapshot(), report.EventCount)
		}
	}

	return &StatusResult{
		Job:        job.Snapshot(),
		EventCount: report.EventCount,
		Events:     report.Events,
		Metadata:   report.Metadata,
	}, nil
}

// WaitForCompletion starts a search and polls until it finishes. The wait is
// bounded by maxWait (clamped to MaxWaitCeiling); on expiry the job
// transitions to TimedOut and a *TimeoutError carrying the job id is
// returned. pollInterval defaults to DefaultPollInterval when non-positive.
//
// Cancellation is cooperative: ctx is checked at every loop iteration, and
// between polls the wait sleeps in a ctx-aware select.
func (o *Orchestrator) WaitForCompletion(ctx context.Context, repository, query, start string, isLive bool, maxWait, pollInterval time.Duration) (*Outcome, error) {
	if maxWait <= 0 {
		maxWait = DefaultMaxWait
	}
	if maxWait > MaxWaitCeiling {
		maxWait = MaxWaitCeiling
	}
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}

	snap, err := o.Start(ctx, repository, query, start, isLive)
	if err != nil {
		return nil, err
	}

	begin := time.Now()
	deadline := begin.Add(maxWait)
	job, _ := o.registry.get(snap.ID)

	timer := time.NewTimer(pollInterval)
	defer timer.Stop()

	for {
		if time.Now().After(deadline) {
			elapsed := time.Since(begin)
			if job.transition(StateTimedOut) {
				o.log.Warn().
					Str("job_id", snap.ID).
					Dur("elapsed", elapsed).
					Msg("search timed out client-side; remote job may still be running")
				if o.recorder != nil {
					o.recorder.RecordFinish(ctx, job.Snapshot(), 0)
				}
			}
			return nil, &TimeoutError{JobID: snap.ID, Elapsed: elapsed}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
		timer.Reset(pollInterval)

		result, err := o.Status(ctx, snap.ID)
		if err != nil {
			return nil, err
		}

		switch result.Job.State {
		case StateDone:
			return &Outcome{
				Job:        result.Job,
				EventCount: result.EventCount,
				Events:     result.Events,
				Metadata:   result.Metadata,
				Elapsed:    time.Since(begin),
			}, nil
		case StateFailed:
			return nil, fmt.Errorf("%w: job %s", ErrSearchFailed, snap.ID)
		case StateCancelled:
			// Someone cancelled the job out from under the wait.
			return nil, fmt.Errorf("%w: job %s", ErrJobCancelled, snap.ID)
		}
	}
}

// Cancel stops a job. Cancelling a job that already reached a terminal
// state is a no-op that reports the existing state rather than an error.
func (o *Orchestrator) Cancel(ctx context.Context, jobID string) (*CancelResult, error) {
	job, ok := o.registry.get(jobID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownJob, jobID)
	}

	snap := job.Snapshot()
	if snap.State.Terminal() {
		return &CancelResult{Job: snap, Transitioned: false}, nil
	}

	if err := o.client.StopSearch(ctx, snap.Repository, jobID); err != nil {
		return nil, err
	}

	transitioned := job.transition(StateCancelled)
	final := job.Snapshot()
	if transitioned {
		o.log.Info().Str("job_id", jobID).Msg("search job cancelled")
		if o.recorder != nil {
			o.recorder.RecordFinish(ctx, final, 0)
		}
	}
	return &CancelResult{Job: final, Transitioned: transitioned}, nil
}

// Jobs lists snapshots of every job this orchestrator has started.
func (o *Orchestrator) Jobs() []Snapshot {
	jobs := o.registry.all()
	out := make([]Snapshot, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, j.Snapshot())
	}
	return out
}

// Shutdown cancels every non-terminal job, typically during server
// shutdown. Backend stop failures are collected but do not stop the sweep.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, job := range o.registry.all() {
		snap := job.Snapshot()
		if snap.State.Terminal() {
			continue
		}
		g.Go(func() error {
			_, err := o.Cancel(gctx, snap.ID)
			return err
		})
	}
	return g.Wait()
}
