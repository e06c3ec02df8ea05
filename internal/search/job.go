package search

import (
	"sync"
	"time"
)

// State is the orchestrator's view of a search job.
type State string

const (
	StatePending   State = "PENDING"
	StateRunning   State = "RUNNING"
	StateDone      State = "DONE"
	StateTimedOut  State = "TIMED_OUT"
	StateCancelled State = "CANCELLED"
	StateFailed    State = "FAILED"
)

// Terminal reports whether no further transitions can leave this state.
func (s State) Terminal() bool {
	switch s {
	case StateDone, StateTimedOut, StateCancelled, StateFailed:
		return true
	}
	return false
}

// Job tracks one search started through the orchestrator. The backend owns
// the authoritative truth of job progress; the Job caches the last observed
// state. The id never changes after creation.
type Job struct {
	mu sync.Mutex

	id           string
	repository   string
	query        string
	startedAt    time.Time
	state        State
	lastPolledAt time.Time
	pollCount    int
}

func newJob(id, repository, query string) *Job {
	return &Job{
		id:         id,
		repository: repository,
		query:      query,
		startedAt:  time.Now(),
		state:      StatePending,
	}
}

// Snapshot is an immutable copy of a job's tracked fields.
type Snapshot struct {
	ID           string    `json:"id"`
	Repository   string    `json:"repository"`
	Query        string    `json:"query"`
	State        State     `json:"state"`
	StartedAt    time.Time `json:"started_at"`
	LastPolledAt time.Time `json:"last_polled_at,omitempty"`
	PollCount    int       `json:"poll_count"`
}

// Snapshot returns a consistent copy of the job.
func (j *Job) Snapshot() Snapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	return Snapshot{
		ID:           j.id,
		Repository:   j.repository,
		Query:        j.query,
		State:        j.state,
		StartedAt:    j.startedAt,
		LastPolledAt: j.lastPolledAt,
		PollCount:    j.pollCount,
	}
}

// transition moves the job to a new state. Returns false without mutating
// when the job is already terminal, which makes racing terminal writers
// (poll loop vs explicit cancel) safe: exactly one wins.
func (j *Job) transition(to State) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state.Terminal() {
		return false
	}
	j.state = to
	return true
}

// recordPoll bumps the poll counters after one status round trip.
func (j *Job) recordPoll() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.pollCount++
	j.lastPolledAt = time.Now()
}

// registry maps job ids to jobs. The map lock guards membership only; each
// job carries its own mutex so state updates never hold the registry lock.
type registry struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

func newRegistry() *registry {
	return &registry{jobs: make(map[string]*Job)}
}

func (r *registry) add(j *Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[j.id] = j
}

func (r *registry) get(id string) (*Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.jobs[id]
	return j, ok
}

func (r *registry) all() []*Job {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Job, 0, len(r.jobs))
	for _, j := range r.jobs {
		out = append(out, j)
	}
	return out
}
