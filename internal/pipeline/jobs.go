package pipeline

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the state of a conversion job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusConverting JobStatus = "converting"
	StatusCompleted  JobStatus = "completed"
	// StatusPartial is a completed conversion that dropped TOC entries or fell
	// back to fast cleanup somewhere.
	StatusPartial   JobStatus = "partial"
	StatusCancelled JobStatus = "cancelled"
	StatusFailed    JobStatus = "failed"
)

// Terminal reports whether no further transitions happen.
func (s JobStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusPartial, StatusCancelled, StatusFailed:
		return true
	}
	return false
}

// Event types of the progress stream.
const (
	EventProgress = "progress"
	EventComplete = "complete"
	EventError    = "error"
)

// Event is one message of a job's progress stream: any number of progress
// events followed by exactly one complete or error event.
type Event struct {
	Type    string    `json:"type"`
	Percent int       `json:"percent,omitempty"`
	Message string    `json:"message,omitempty"`
	Status  JobStatus `json:"status,omitempty"`
	XML     string    `json:"xml,omitempty"`
}

// Job tracks the state of a single document conversion.
type Job struct {
	mu sync.Mutex

	ID       string
	Filename string
	Title    string
	Mode     Mode

	Status   JobStatus
	Phase    string
	Percent  int
	Message  string
	Strategy Strategy
	Warnings []string

	ContentHash string
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// Internal: not serialized.
	fileData []byte
	result   []byte
	sections int
	events   []Event
	changed  chan struct{}
	cancel   context.CancelFunc
	aborted  bool
}

// NewJob creates a queued job with a fresh ID.
func NewJob(filename, title string, mode Mode, data []byte) *Job {
	now := time.Now()
	return &Job{
		ID:          uuid.NewString(),
		Filename:    filename,
		Title:       title,
		Mode:        mode,
		Status:      StatusQueued,
		Phase:       "queued",
		ContentHash: ContentHashHex(data),
		CreatedAt:   now,
		UpdatedAt:   now,
		fileData:    data,
		changed:     make(chan struct{}),
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Len returns the number of tracked jobs.
func (s *JobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Cleanup removes finished jobs not updated within the TTL.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		job.mu.Lock()
		expired := job.Status.Terminal() && now.Sub(job.UpdatedAt) > s.ttl
		job.mu.Unlock()
		if expired {
			delete(s.jobs, id)
		}
	}
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// Progress records and publishes a progress event. It matches ProgressFunc.
func (j *Job) Progress(percent int, message string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.Status.Terminal() {
		return
	}
	j.Percent = percent
	j.Message = message
	j.UpdatedAt = time.Now()
	j.publishLocked(Event{Type: EventProgress, Percent: percent, Message: message})
}

// Complete stores the serialized result and publishes the complete event.
// status is StatusCompleted, StatusPartial or StatusCancelled.
func (j *Job) Complete(status JobStatus, res *Result, xml []byte) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.Status.Terminal() {
		return
	}
	j.Status = status
	j.Phase = "done"
	j.Percent = 100
	j.Strategy = res.Strategy
	j.Warnings = append(j.Warnings, res.Warnings...)
	j.sections = res.Tree.Count()
	j.result = xml
	j.fileData = nil
	j.UpdatedAt = time.Now()
	j.publishLocked(Event{Type: EventComplete, Status: status, XML: string(xml)})
}

// Fail marks the job failed and publishes the error event. status is
// StatusFailed or StatusCancelled.
func (j *Job) Fail(status JobStatus, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.Status.Terminal() {
		return
	}
	j.Status = status
	j.Phase = "done"
	j.Message = err.Error()
	j.fileData = nil
	j.UpdatedAt = time.Now()
	j.publishLocked(Event{Type: EventError, Status: status, Message: err.Error()})
}

// publishLocked appends e and wakes every waiting subscriber.
func (j *Job) publishLocked(e Event) {
	j.events = append(j.events, e)
	close(j.changed)
	j.changed = make(chan struct{})
}

// EventsSince returns the events after the first n, a channel closed on the
// next event and whether the returned events end the stream.
func (j *Job) EventsSince(n int) ([]Event, <-chan struct{}, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var evs []Event
	if n < len(j.events) {
		evs = append(evs, j.events[n:]...)
	}
	return evs, j.changed, j.Status.Terminal()
}

// begin attaches a cancellable context to the job. ok is false when the job
// was cancelled while queued.
func (j *Job) begin(parent context.Context) (ctx context.Context, ok bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.aborted || j.Status.Terminal() {
		return nil, false
	}
	ctx, j.cancel = context.WithCancel(parent)
	j.Status = StatusConverting
	j.Phase = "converting"
	j.UpdatedAt = time.Now()
	return ctx, true
}

// release frees the job's context.
func (j *Job) release() {
	j.mu.Lock()
	cancel := j.cancel
	j.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Cancel stops the job. A queued job is finished immediately; a running one
// stops between sections and keeps what it completed. It returns false when
// the job had already finished.
func (j *Job) Cancel() bool {
	j.mu.Lock()
	if j.Status.Terminal() {
		j.mu.Unlock()
		return false
	}
	j.aborted = true
	cancel := j.cancel
	queued := j.Status == StatusQueued
	j.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if queued {
		j.Fail(StatusCancelled, context.Canceled)
	}
	return true
}

// FileData returns the raw file bytes.
func (j *Job) FileData() []byte {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.fileData
}

// Result returns the serialized XML, or nil when none is available.
func (j *Job) Result() []byte {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID          string    `json:"job_id"`
	Filename    string    `json:"filename"`
	Title       string    `json:"title"`
	Mode        Mode      `json:"mode"`
	Status      JobStatus `json:"status"`
	Phase       string    `json:"phase"`
	Percent     int       `json:"percent"`
	Message     string    `json:"message"`
	Strategy    Strategy  `json:"strategy,omitempty"`
	Sections    int       `json:"sections"`
	Warnings    []string  `json:"warnings"`
	HasResult   bool      `json:"has_result"`
	ContentHash string    `json:"content_hash,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	warnings := make([]string, len(j.Warnings))
	copy(warnings, j.Warnings)
	return JobSnapshot{
		ID:          j.ID,
		Filename:    j.Filename,
		Title:       j.Title,
		Mode:        j.Mode,
		Status:      j.Status,
		Phase:       j.Phase,
		Percent:     j.Percent,
		Message:     j.Message,
		Strategy:    j.Strategy,
		Sections:    j.sections,
		Warnings:    warnings,
		HasResult:   j.result != nil,
		ContentHash: j.ContentHash,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
	}
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
