// Package state persists per-unit validation history and drives the
// retry state machine.
package state

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle state of a validation unit.
type Status string

const (
	StatusNew     Status = "new"
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusBlocked Status = "blocked"
)

// Terminal reports whether no further attempts may be recorded.
func (s Status) Terminal() bool { return s == StatusPassed || s == StatusBlocked }

// DefaultMaxRetries is the retry budget applied when a unit does not
// carry its own.
const DefaultMaxRetries = 3

// ErrTerminal is returned when an attempt is recorded against a unit
// that already passed or was blocked.
var ErrTerminal = errors.New("unit is in a terminal state")

// Scores is the cumulative score snapshot for one unit. Nil fields mean
// "not measured"; merging overwrites present values and keeps the rest.
type Scores struct {
	TextCoverage   *float64 `json:"text_coverage,omitempty"`
	StructureScore *float64 `json:"structure_score,omitempty"`
	VisualScore    *float64 `json:"visual_score,omitempty"`
}

// Merge folds newer scores into s, field by field.
func (s *Scores) Merge(in Scores) {
	if in.TextCoverage != nil {
		s.TextCoverage = in.TextCoverage
	}
	if in.StructureScore != nil {
		s.StructureScore = in.StructureScore
	}
	if in.VisualScore != nil {
		s.VisualScore = in.VisualScore
	}
}

// Float builds an optional score value.
func Float(v float64) *float64 { return &v }

// ValidationRecord is one append-only attempt log entry.
type ValidationRecord struct {
	UnitID    string    `json:"unit_id"`
	Timestamp time.Time `json:"timestamp"`
	Stage     string    `json:"stage"`
	Status    Status    `json:"status"`
	Scores    Scores    `json:"scores"`
	Issues    []string  `json:"issues,omitempty"`
}

// Key addresses one validation unit: a chapter, or one page within it.
// Page 0 means the whole chapter; page IDs are 1-based.
type Key struct {
	Chapter string `json:"chapter_id"`
	Page    int    `json:"page_id,omitempty"`
}

func (k Key) String() string {
	if k.Page > 0 {
		return fmt.Sprintf("%s.p%03d", k.Chapter, k.Page)
	}
	return k.Chapter
}

// Unit is the persisted retry state for one validation unit. All
// transitions flow through RecordAttempt, IncrementRetry, MarkBlocked,
// and Reset so the invariants hold in one place: the retry counter never
// decreases outside Reset, and terminal states accept no new attempts.
type Unit struct {
	Key           Key                `json:"unit"`
	Status        Status             `json:"status"`
	RetryCount    int                `json:"retry_count"`
	MaxRetries    int                `json:"max_retries"`
	Attempts      []ValidationRecord `json:"attempts"`
	LastResult    *ValidationRecord  `json:"last_result,omitempty"`
	Scores        Scores             `json:"validation_scores"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
	PassedAt      *time.Time         `json:"passed_at,omitempty"`
	BlockedAt     *time.Time         `json:"blocked_at,omitempty"`
	BlockedReason string             `json:"blocked_reason,omitempty"`
}

// NewUnit returns a fresh unit in the New state.
func NewUnit(key Key, maxRetries int) *Unit {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	now := time.Now().UTC()
	return &Unit{
		Key:        key,
		Status:     StatusNew,
		MaxRetries: maxRetries,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// RecordAttempt appends one validation attempt and applies the resulting
// transition. A failed attempt that lands with the retry budget already
// spent moves the unit to blocked rather than leaving it failed.
func (u *Unit) RecordAttempt(stage string, status Status, scores Scores, issues []string) error {
	if u.Status.Terminal() {
		return fmt.Errorf("record attempt on %s: %w", u.Key, ErrTerminal)
	}
	if status != StatusPassed && status != StatusFailed {
		return fmt.Errorf("attempt status must be passed or failed, got %q", status)
	}
	now := time.Now().UTC()
	rec := ValidationRecord{
		UnitID:    u.Key.String(),
		Timestamp: now,
		Stage:     stage,
		Status:    status,
		Scores:    scores,
		Issues:    issues,
	}
	u.Attempts = append(u.Attempts, rec)
	last := rec
	u.LastResult = &last
	u.Scores.Merge(scores)
	u.UpdatedAt = now

	if status == StatusPassed {
		u.Status = StatusPassed
		u.PassedAt = &now
		return nil
	}
	if u.RetryCount+1 >= u.MaxRetries {
		blockedAt := now
		u.Status = StatusBlocked
		u.BlockedAt = &blockedAt
		u.BlockedReason = fmt.Sprintf("retry budget exhausted after %d attempts", len(u.Attempts))
		return nil
	}
	u.Status = StatusFailed
	return nil
}

// CanRetry reports whether the caller may regenerate and try again.
func (u *Unit) CanRetry() bool {
	return !u.Status.Terminal() && u.RetryCount < u.MaxRetries
}

// IncrementRetry bumps the retry counter ahead of a regeneration.
func (u *Unit) IncrementRetry() int {
	u.RetryCount++
	u.UpdatedAt = time.Now().UTC()
	return u.RetryCount
}

// MarkBlocked forces the blocked state with an operator-visible reason.
// A passed unit stays passed.
func (u *Unit) MarkBlocked(reason string) {
	if u.Status == StatusPassed {
		return
	}
	now := time.Now().UTC()
	u.Status = StatusBlocked
	u.BlockedAt = &now
	u.BlockedReason = reason
	u.UpdatedAt = now
}

// Reset clears history and counters for deliberate reprocessing. The
// creation timestamp survives.
func (u *Unit) Reset() {
	u.Status = StatusNew
	u.RetryCount = 0
	u.Attempts = nil
	u.LastResult = nil
	u.Scores = Scores{}
	u.PassedAt = nil
	u.BlockedAt = nil
	u.BlockedReason = ""
	u.UpdatedAt = time.Now().UTC()
}

// Decision is the retry-decision contract handed to callers.
type Decision struct {
	Unit       string `json:"unit"`
	Status     Status `json:"status"`
	RetryCount int    `json:"retry_count"`
	MaxRetries int    `json:"max_retries"`
	CanRetry   bool   `json:"can_retry"`
	Reason     string `json:"reason,omitempty"`
}

// Decision summarizes the unit's current standing.
func (u *Unit) Decision() Decision {
	return Decision{
		Unit:       u.Key.String(),
		Status:     u.Status,
		RetryCount: u.RetryCount,
		MaxRetries: u.MaxRetries,
		CanRetry:   u.CanRetry(),
		Reason:     u.BlockedReason,
	}
}

// FeedbackSummary renders the latest failure in a form an external
// generator can act on when regenerating the unit. Empty when the unit
// has no failed attempt to report.
func (u *Unit) FeedbackSummary() string {
	if u.LastResult == nil || u.LastResult.Status != StatusFailed {
		return ""
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "attempt %d of %d failed at stage %s", len(u.Attempts), u.MaxRetries, u.LastResult.Stage)
	if u.LastResult.Scores.TextCoverage != nil {
		fmt.Fprintf(&sb, "; text coverage %.1f%%", *u.LastResult.Scores.TextCoverage)
	}
	issues := u.LastResult.Issues
	if len(issues) > 5 {
		issues = issues[:5]
	}
	if len(issues) > 0 {
		sb.WriteString("; issues: ")
		sb.WriteString(strings.Join(issues, "; "))
	}
	return sb.String()
}
