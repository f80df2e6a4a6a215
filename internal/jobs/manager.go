package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/scrapegoat/scrapegoat/internal/crawler"
	"github.com/scrapegoat/scrapegoat/internal/extract"
	"github.com/scrapegoat/scrapegoat/internal/metrics"
)

// Clock supplies job timestamps.
type Clock interface {
	Now() time.Time
}

// IDGenerator mints job IDs.
type IDGenerator interface {
	NewID() (string, error)
}

// Crawler is the orchestration dependency the manager drives. Satisfied by
// crawler.Engine; tests inject fakes.
type Crawler interface {
	Crawl(ctx context.Context, req crawler.Request) (*extract.ScrapedData, error)
}

// Config controls Manager behavior.
type Config struct {
	// BaseContext parents job processing, decoupling it from the submitting
	// request. Defaults to context.Background().
	BaseContext context.Context
	Logger      *zap.Logger
}

// Manager owns the job lifecycle state machine. It is the exclusive mutator
// of job records; every status change is paired one-to-one with a published
// event, and no error escapes a job's processing goroutine.
type Manager struct {
	store  *Store
	hub    *Hub
	engine Crawler
	idGen  IDGenerator
	clock  Clock
	logger *zap.Logger
	base   context.Context

	wg sync.WaitGroup
}

// NewManager constructs a Manager.
func NewManager(store *Store, hub *Hub, engine Crawler, idGen IDGenerator, clock Clock, cfg Config) *Manager {
	base := cfg.BaseContext
	if base == nil {
		base = context.Background()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:  store,
		hub:    hub,
		engine: engine,
		idGen:  idGen,
		clock:  clock,
		logger: logger,
		base:   base,
	}
}

// Submit creates a job in pending state, broadcasts job:created, and starts
// asynchronous processing. The pending record and its event are emitted
// before any network activity.
func (m *Manager) Submit(req crawler.Request) (crawler.Job, error) {
	id, err := m.idGen.NewID()
	if err != nil {
		return crawler.Job{}, fmt.Errorf("mint job id: %w", err)
	}
	job := crawler.Job{
		ID:      id,
		URL:     req.URL,
		Status:  crawler.JobStatusPending,
		Created: m.clock.Now(),
	}
	if err := m.store.Create(job); err != nil {
		return crawler.Job{}, fmt.Errorf("create job: %w", err)
	}
	m.publish(job)

	m.wg.Add(1)
	go m.process(id, req)
	return job, nil
}

// Job returns a snapshot by ID.
func (m *Manager) Job(id string) (crawler.Job, error) {
	return m.store.Get(id)
}

// Jobs returns snapshots of all jobs in submission order.
func (m *Manager) Jobs() []crawler.Job {
	return m.store.List()
}

// Hub exposes the event registry for the websocket layer.
func (m *Manager) Hub() *Hub {
	return m.hub
}

// Close waits for in-flight jobs to reach a terminal state.
func (m *Manager) Close() {
	m.wg.Wait()
}

// process runs one job to a terminal state. Panics and errors are converted
// into the failed status; nothing propagates out of the goroutine.
func (m *Manager) process(id string, req crawler.Request) {
	defer m.wg.Done()
	defer func() {
		if rec := recover(); rec != nil {
			m.logger.Error("job processing panic", zap.String("job_id", id), zap.Any("panic", rec))
			m.finish(id, nil, fmt.Sprintf("internal error: %v", rec))
		}
	}()

	m.transition(id, func(job *crawler.Job) {
		job.Status = crawler.JobStatusProcessing
	})
	metrics.IncActiveJobs()
	defer metrics.DecActiveJobs()

	start := m.clock.Now()
	data, err := m.engine.Crawl(m.base, req)
	metrics.ObserveCrawlDuration(m.clock.Now().Sub(start))

	if err != nil {
		m.finish(id, nil, err.Error())
		return
	}
	m.finish(id, data, "")
}

// finish moves the job to its terminal state with a completion timestamp.
func (m *Manager) finish(id string, result *extract.ScrapedData, errText string) {
	job, err := m.transition(id, func(job *crawler.Job) {
		now := m.clock.Now()
		job.Finished = &now
		if errText != "" {
			job.Status = crawler.JobStatusFailed
			job.ErrorText = errText
			return
		}
		job.Status = crawler.JobStatusCompleted
		job.Result = result
	})
	if err == nil {
		metrics.ObserveJob(string(job.Status))
	}
}

// transition applies a status mutation and publishes its paired event.
func (m *Manager) transition(id string, mutate func(*crawler.Job)) (crawler.Job, error) {
	job, err := m.store.Update(id, mutate)
	if err != nil {
		m.logger.Error("job transition rejected", zap.String("job_id", id), zap.Error(err))
		return crawler.Job{}, err
	}
	m.publish(job)
	return job, nil
}

func (m *Manager) publish(job crawler.Job) {
	m.hub.Publish(crawler.JobEvent{
		Event:     crawler.EventForStatus(job.Status),
		JobID:     job.ID,
		Job:       job,
		Timestamp: m.clock.Now(),
	})
}
