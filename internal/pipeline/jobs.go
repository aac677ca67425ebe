package pipeline

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"galley/internal/fidelity"
	"galley/internal/generate"
	"galley/internal/state"
)

// JobStatus represents the state of a validation job.
type JobStatus string

const (
	StatusQueued      JobStatus = "queued"
	StatusExtracting  JobStatus = "extracting"
	StatusClassifying JobStatus = "classifying"
	StatusGenerating  JobStatus = "generating"
	StatusValidating  JobStatus = "validating"
	StatusRecording   JobStatus = "recording"
	StatusCompleted   JobStatus = "completed"
	StatusBlocked     JobStatus = "blocked"
	StatusFailed      JobStatus = "failed"
)

// Outcome is the final result of a validation job: the unit's decision
// plus the evidence from the last attempt.
type Outcome struct {
	Decision   state.Decision      `json:"decision"`
	Report     *fidelity.Report    `json:"report,omitempty"`
	Duplicates *fidelity.DupReport `json:"duplicates,omitempty"`
	Issues     []string            `json:"issues,omitempty"`
	Warnings   []string            `json:"warnings,omitempty"`
	Attempts   int                 `json:"attempts"`
}

// Job tracks the validation of a single unit.
type Job struct {
	mu sync.Mutex

	ID   string    `json:"job_id"`
	Unit state.Key `json:"unit"`

	SourcePath string `json:"source_path"`
	Format     string `json:"format"`
	Generate   bool   `json:"generate"`

	Status JobStatus `json:"status"`
	Phase  string    `json:"phase"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Internal: not serialized.
	candidate   *generate.Rendering
	visualScore *float64
	maxRetries  int
	errors      []string
	outcome     *Outcome
}

// NewJob creates a queued job for one unit.
func NewJob(unit state.Key, sourcePath, format string, generateCandidate bool) *Job {
	now := time.Now()
	return &Job{
		ID:         uuid.NewString(),
		Unit:       unit,
		SourcePath: sourcePath,
		Format:     format,
		Generate:   generateCandidate,
		Status:     StatusQueued,
		Phase:      "queued",
		CreatedAt:  now,
		UpdatedAt:  now,
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

// AddError records a pipeline error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.UpdatedAt = time.Now()
}

// SetCandidate attaches a caller-supplied rendering to validate.
func (j *Job) SetCandidate(format, content string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.candidate = &generate.Rendering{Format: format, Content: content}
}

// Candidate returns the attached rendering, or nil.
func (j *Job) Candidate() *generate.Rendering {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.candidate
}

// SetVisualScore attaches an externally computed visual score.
func (j *Job) SetVisualScore(score float64) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.visualScore = &score
}

// VisualScore returns the attached visual score, or nil.
func (j *Job) VisualScore() *float64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.visualScore
}

// SetMaxRetries overrides the unit's retry budget for this run.
func (j *Job) SetMaxRetries(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.maxRetries = n
}

// MaxRetries returns the per-job retry override, 0 when unset.
func (j *Job) MaxRetries() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.maxRetries
}

// SetOutcome records the final result.
func (j *Job) SetOutcome(o *Outcome) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.outcome = o
	j.UpdatedAt = time.Now()
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID         string    `json:"job_id"`
	Unit       string    `json:"unit"`
	Status     JobStatus `json:"status"`
	Phase      string    `json:"phase"`
	SourcePath string    `json:"source_path,omitempty"`
	Format     string    `json:"format,omitempty"`
	Generate   bool      `json:"generate"`
	Errors     []string  `json:"errors"`
	Outcome    *Outcome  `json:"outcome,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := j.errors
	if errs == nil {
		errs = []string{}
	}
	return JobSnapshot{
		ID:         j.ID,
		Unit:       j.Unit.String(),
		Status:     j.Status,
		Phase:      j.Phase,
		SourcePath: j.SourcePath,
		Format:     j.Format,
		Generate:   j.Generate,
		Errors:     errs,
		Outcome:    j.outcome,
		CreatedAt:  j.CreatedAt,
		UpdatedAt:  j.UpdatedAt,
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

// Cleanup removes expired jobs.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		if now.Sub(job.UpdatedAt) > s.ttl {
			delete(s.jobs, id)
		}
	}
}
