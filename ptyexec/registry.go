package ptyexec

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// CurrentJob is the id used for the single long-running job an
// application allows at a time.
const CurrentJob = "current"

var (
	ErrJobRunning = fmt.Errorf("a job with this id is already running")
	ErrNoSuchJob  = fmt.Errorf("no such job")
)

// Killer is anything a cancellation request can terminate.
type Killer interface {
	Kill() error
}

type job struct {
	killer    Killer
	cancelled bool
}

// Registry maps job ids to running processes so that a separate request
// can cancel them. All access goes through one mutex.
type Registry struct {
	mu   sync.Mutex
	jobs map[string]*job
}

func NewRegistry() *Registry {
	return &Registry{
		jobs: make(map[string]*job),
	}
}

// NewJobID returns a fresh random job id.
func NewJobID() string {
	return uuid.NewString()
}

// Track registers k under id. It fails if id is already tracked.
func (r *Registry) Track(id string, k Killer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[id]; ok {
		return fmt.Errorf("%w: %s", ErrJobRunning, id)
	}
	r.jobs[id] = &job{killer: k}
	return nil
}

// Untrack forgets id and reports whether it was cancelled while tracked.
func (r *Registry) Untrack(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.jobs[id]
	if !ok {
		return false
	}
	delete(r.jobs, id)
	return j.cancelled
}

// Cancel kills the process tracked under id and marks the job cancelled.
// The entry stays until its owner calls Untrack.
func (r *Registry) Cancel(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.jobs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoSuchJob, id)
	}
	j.cancelled = true

	log.WithField("job", id).Info("cancelling job")
	return j.killer.Kill()
}

// Running reports whether id is tracked.
func (r *Registry) Running(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.jobs[id]
	return ok
}
