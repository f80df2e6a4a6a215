// Package jobs implements the in-memory job store, the job lifecycle state
// machine, and the per-job event fan-out.
package jobs

import (
	"errors"
	"sync"

	"github.com/scrapegoat/scrapegoat/internal/crawler"
)

// ErrNotFound indicates an unknown job ID.
var ErrNotFound = errors.New("job not found")

// ErrAlreadyExists indicates a duplicate job ID on create.
var ErrAlreadyExists = errors.New("job already exists")

// ErrTerminal indicates an attempted transition out of a terminal status.
var ErrTerminal = errors.New("job already in a terminal state")

// Store holds job records in process memory for the lifetime of the service.
// The Manager is the only writer; readers observe snapshots.
type Store struct {
	mu    sync.RWMutex
	jobs  map[string]crawler.Job
	order []string
}

// NewStore constructs a Store.
func NewStore() *Store {
	return &Store{jobs: make(map[string]crawler.Job)}
}

// Create stores a new job record.
func (s *Store) Create(job crawler.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return ErrAlreadyExists
	}
	s.jobs[job.ID] = job
	s.order = append(s.order, job.ID)
	return nil
}

// Get returns a snapshot of the job.
func (s *Store) Get(id string) (crawler.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return crawler.Job{}, ErrNotFound
	}
	return cloneJob(job), nil
}

// List returns snapshots of every job in submission order.
func (s *Store) List() []crawler.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]crawler.Job, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, cloneJob(s.jobs[id]))
	}
	return out
}

// Update applies mutate to the stored job and returns the new snapshot.
// Terminal jobs reject further mutation.
func (s *Store) Update(id string, mutate func(*crawler.Job)) (crawler.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return crawler.Job{}, ErrNotFound
	}
	if job.Status.Terminal() {
		return crawler.Job{}, ErrTerminal
	}
	mutate(&job)
	s.jobs[id] = job
	return cloneJob(job), nil
}

// cloneJob detaches a snapshot's mutable payload from the stored record so
// readers cannot alias the store.
func cloneJob(job crawler.Job) crawler.Job {
	if job.Finished != nil {
		finished := *job.Finished
		job.Finished = &finished
	}
	if job.Result == nil {
		return job
	}
	result := *job.Result
	if result.Metadata != nil {
		meta := make(map[string]any, len(result.Metadata))
		for k, v := range result.Metadata {
			meta[k] = v
		}
		result.Metadata = meta
	}
	if result.Images != nil {
		result.Images = append([]string(nil), result.Images...)
	}
	job.Result = &result
	return job
}
