// Package backend talks to the remote NG-SIEM search service. It exposes the
// minimal capability the orchestrator needs (start, status, stop) behind the
// Client interface, plus the CrowdStrike HTTP implementation.
package backend

import (
	"context"
	"errors"
)

// Common errors. Transport failures are wrapped and surfaced unchanged;
// retry policy is the caller's concern.
var (
	ErrUnauthorized       = errors.New("backend authorization failed")
	ErrUnavailable        = errors.New("backend unavailable")
	ErrRepositoryNotFound = errors.New("repository not found")
	ErrAccessDenied       = errors.New("access to repository denied")
	ErrJobNotFound        = errors.New("search job not found")
)

// JobState is the execution state the backend reports for a search job.
type JobState string

const (
	StateRunning JobState = "RUNNING"
	StateDone    JobState = "DONE"
	StateFailed  JobState = "FAILED"
)

// StatusReport is one observation of a remote search job.
type StatusReport struct {
	State      JobState
	EventCount int
	Events     []map[string]any
	Metadata   map[string]any
}

// Client is the abstract search backend consumed by the orchestrator.
type Client interface {
	// StartSearch submits a query and returns the backend-assigned job id.
	StartSearch(ctx context.Context, repository, queryString, start string, isLive bool) (string, error)

	// SearchStatus performs one status round trip for a job.
	SearchStatus(ctx context.Context, repository, jobID string) (*StatusReport, error)

	// StopSearch asks the backend to cancel a job. Stopping an already
	// finished job is not an error.
	StopSearch(ctx context.Context, repository, jobID string) error
}
