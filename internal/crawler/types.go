// Package crawler defines core types shared across subsystems and implements
// the crawl orchestration engine.
package crawler

import (
	"time"

	"github.com/scrapegoat/scrapegoat/internal/extract"
	"github.com/scrapegoat/scrapegoat/internal/paginate"
)

// Request captures everything needed to crawl a single target. A Request is
// treated as immutable once submitted.
type Request struct {
	// URL is the target page. Required.
	URL string `json:"url"`
	// Render enables JavaScript rendering through the headless browser.
	// When false the static fetch path is used instead.
	Render bool `json:"render"`
	// Timeout bounds each navigation attempt. Zero means the engine default.
	Timeout time.Duration `json:"timeout"`
	// WaitAfterLoad is an extra settle delay applied after a successful
	// navigation, before the markup is read.
	WaitAfterLoad time.Duration `json:"wait_after_load"`
	// MaxDepth bounds pagination traversal. Zero or one disables pagination.
	MaxDepth int `json:"max_depth"`
	// NextSelector overrides the built-in "next page" heuristics with a CSS
	// selector for the next anchor.
	NextSelector string `json:"next_selector"`
	// NextFunc fully overrides next-URL resolution. Library-only; never set
	// from the service surface.
	NextFunc paginate.NextFunc `json:"-"`
	// Schema supplies per-field selector overrides and custom rules.
	Schema *extract.Schema `json:"schema,omitempty"`
	// Proxies overrides the engine's default proxy pool for this request.
	Proxies []string `json:"proxies,omitempty"`
	// UserAgent overrides the engine's default user agent.
	UserAgent string `json:"user_agent"`
	// AutoDetectSchema runs the structural schema scanner when no explicit
	// schema is supplied.
	AutoDetectSchema bool `json:"auto_detect_schema"`
	// EmbedMedia downloads extracted images and records them alongside the
	// result. Failures are per-item soft failures.
	EmbedMedia bool `json:"embed_media"`
	// LLMExtract runs the supplementary local-model field extraction pass.
	// Failure is soft and recorded in result metadata.
	LLMExtract bool `json:"llm_extract"`
}

// JobStatus represents the lifecycle state of a crawl job.
type JobStatus string

// Job status values held in the job store.
const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether no further transition may occur from s.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Job is the record kept for each submitted crawl request. Records live only
// in process memory for the lifetime of the service.
type Job struct {
	ID        string               `json:"id"`
	URL       string               `json:"url"`
	Status    JobStatus            `json:"status"`
	Result    *extract.ScrapedData `json:"result,omitempty"`
	ErrorText string               `json:"error,omitempty"`
	Created   time.Time            `json:"created_at"`
	Finished  *time.Time           `json:"finished_at,omitempty"`
}

// EventName identifies a job state transition broadcast to subscribers.
type EventName string

// Event names paired one-to-one with job status transitions.
const (
	EventJobCreated    EventName = "job:created"
	EventJobProcessing EventName = "job:processing"
	EventJobCompleted  EventName = "job:completed"
	EventJobFailed     EventName = "job:failed"
)

// EventForStatus maps a job status to its paired event name.
func EventForStatus(s JobStatus) EventName {
	switch s {
	case JobStatusProcessing:
		return EventJobProcessing
	case JobStatusCompleted:
		return EventJobCompleted
	case JobStatusFailed:
		return EventJobFailed
	default:
		return EventJobCreated
	}
}

// JobEvent is the projection pushed to subscribers on every transition.
type JobEvent struct {
	Event     EventName `json:"event"`
	JobID     string    `json:"jobId"`
	Job       Job       `json:"job"`
	Timestamp time.Time `json:"timestamp"`
}
