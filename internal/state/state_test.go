package state

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func testKey() Key {
	return Key{Chapter: "ch03"}
}

func TestKey_String(t *testing.T) {
	if got := (Key{Chapter: "ch03"}).String(); got != "ch03" {
		t.Errorf("expected ch03, got %q", got)
	}
	if got := (Key{Chapter: "ch03", Page: 7}).String(); got != "ch03.p007" {
		t.Errorf("expected ch03.p007, got %q", got)
	}
}

func TestUnit_FailFailPass(t *testing.T) {
	u := NewUnit(testKey(), 3)
	if u.Status != StatusNew {
		t.Fatalf("expected new unit, got %s", u.Status)
	}

	if err := u.RecordAttempt("text", StatusFailed, Scores{TextCoverage: Float(82)}, []string{"coverage 82.0%"}); err != nil {
		t.Fatalf("first attempt: %v", err)
	}
	if u.Status != StatusFailed {
		t.Fatalf("expected failed after first attempt, got %s", u.Status)
	}
	if !u.CanRetry() {
		t.Fatal("expected retry available after first failure")
	}
	u.IncrementRetry()

	if err := u.RecordAttempt("text", StatusFailed, Scores{TextCoverage: Float(91)}, nil); err != nil {
		t.Fatalf("second attempt: %v", err)
	}
	if u.Status != StatusFailed {
		t.Fatalf("expected failed after second attempt, got %s", u.Status)
	}
	u.IncrementRetry()

	if err := u.RecordAttempt("text", StatusPassed, Scores{TextCoverage: Float(100)}, nil); err != nil {
		t.Fatalf("third attempt: %v", err)
	}

	if u.Status != StatusPassed {
		t.Errorf("expected passed, got %s", u.Status)
	}
	if u.RetryCount != 2 {
		t.Errorf("expected retry count 2, got %d", u.RetryCount)
	}
	if len(u.Attempts) != 3 {
		t.Errorf("expected 3 attempts, got %d", len(u.Attempts))
	}
	if u.PassedAt == nil {
		t.Error("expected passed timestamp")
	}
	if u.CanRetry() {
		t.Error("passed unit must not retry")
	}
}

func TestUnit_BlocksAfterBudgetExhausted(t *testing.T) {
	u := NewUnit(testKey(), 3)

	for attempt := 0; attempt < 3; attempt++ {
		if u.Status.Terminal() {
			t.Fatalf("unit terminal before attempt %d", attempt+1)
		}
		if err := u.RecordAttempt("text", StatusFailed, Scores{}, nil); err != nil {
			t.Fatalf("attempt %d: %v", attempt+1, err)
		}
		if u.CanRetry() {
			u.IncrementRetry()
		}
	}

	if u.Status != StatusBlocked {
		t.Fatalf("expected blocked after three failures, got %s", u.Status)
	}
	if u.BlockedAt == nil || u.BlockedReason == "" {
		t.Error("expected blocked timestamp and reason")
	}
	if u.CanRetry() {
		t.Error("blocked unit must not retry")
	}
}

func TestUnit_TerminalRejectsAttempts(t *testing.T) {
	u := NewUnit(testKey(), 3)
	if err := u.RecordAttempt("text", StatusPassed, Scores{}, nil); err != nil {
		t.Fatalf("pass attempt: %v", err)
	}

	err := u.RecordAttempt("text", StatusFailed, Scores{}, nil)
	if !errors.Is(err, ErrTerminal) {
		t.Errorf("expected ErrTerminal, got %v", err)
	}
	if len(u.Attempts) != 1 {
		t.Errorf("rejected attempt must not be appended, got %d attempts", len(u.Attempts))
	}
}

func TestUnit_RecordAttemptValidatesStatus(t *testing.T) {
	u := NewUnit(testKey(), 3)
	if err := u.RecordAttempt("text", StatusBlocked, Scores{}, nil); err == nil {
		t.Error("expected error for non-attempt status")
	}
}

func TestUnit_ScoreMerge(t *testing.T) {
	u := NewUnit(testKey(), 3)
	if err := u.RecordAttempt("text", StatusFailed, Scores{TextCoverage: Float(80)}, nil); err != nil {
		t.Fatal(err)
	}
	u.IncrementRetry()
	if err := u.RecordAttempt("structure", StatusFailed, Scores{StructureScore: Float(75)}, nil); err != nil {
		t.Fatal(err)
	}

	if u.Scores.TextCoverage == nil || *u.Scores.TextCoverage != 80 {
		t.Errorf("expected text coverage 80 retained, got %v", u.Scores.TextCoverage)
	}
	if u.Scores.StructureScore == nil || *u.Scores.StructureScore != 75 {
		t.Errorf("expected structure score 75 merged, got %v", u.Scores.StructureScore)
	}
	if u.Scores.VisualScore != nil {
		t.Errorf("expected visual score absent, got %v", *u.Scores.VisualScore)
	}
}

func TestUnit_ResetPreservesCreatedAt(t *testing.T) {
	u := NewUnit(testKey(), 3)
	created := u.CreatedAt
	if err := u.RecordAttempt("text", StatusFailed, Scores{TextCoverage: Float(50)}, nil); err != nil {
		t.Fatal(err)
	}
	u.IncrementRetry()

	time.Sleep(time.Millisecond)
	u.Reset()

	if u.Status != StatusNew {
		t.Errorf("expected new after reset, got %s", u.Status)
	}
	if u.RetryCount != 0 || len(u.Attempts) != 0 || u.LastResult != nil {
		t.Error("expected history cleared on reset")
	}
	if u.Scores.TextCoverage != nil {
		t.Error("expected scores cleared on reset")
	}
	if !u.CreatedAt.Equal(created) {
		t.Errorf("reset must preserve created_at: %v vs %v", created, u.CreatedAt)
	}
	if !u.UpdatedAt.After(created) {
		t.Error("expected updated_at to advance on reset")
	}
}

func TestUnit_MarkBlocked(t *testing.T) {
	u := NewUnit(testKey(), 3)
	u.MarkBlocked("source file unreadable")
	if u.Status != StatusBlocked || u.BlockedReason == "" {
		t.Errorf("expected blocked with reason, got %s %q", u.Status, u.BlockedReason)
	}

	p := NewUnit(testKey(), 3)
	if err := p.RecordAttempt("text", StatusPassed, Scores{}, nil); err != nil {
		t.Fatal(err)
	}
	p.MarkBlocked("should not apply")
	if p.Status != StatusPassed {
		t.Errorf("passed unit must stay passed, got %s", p.Status)
	}
}

func TestUnit_Decision(t *testing.T) {
	u := NewUnit(testKey(), 3)
	if err := u.RecordAttempt("text", StatusFailed, Scores{}, nil); err != nil {
		t.Fatal(err)
	}
	u.IncrementRetry()

	d := u.Decision()
	if d.Unit != "ch03" || d.Status != StatusFailed || d.RetryCount != 1 || d.MaxRetries != 3 {
		t.Errorf("unexpected decision %+v", d)
	}
	if !d.CanRetry {
		t.Error("expected retry available")
	}
}

func TestUnit_FeedbackSummary(t *testing.T) {
	u := NewUnit(testKey(), 3)
	if u.FeedbackSummary() != "" {
		t.Error("expected empty feedback for a fresh unit")
	}

	issues := []string{"coverage 82.0% (failed)", "chapter header missing"}
	if err := u.RecordAttempt("text", StatusFailed, Scores{TextCoverage: Float(82)}, issues); err != nil {
		t.Fatal(err)
	}

	fb := u.FeedbackSummary()
	if fb == "" {
		t.Fatal("expected feedback after a failure")
	}
	for _, want := range []string{"82.0%", "chapter header missing"} {
		if !strings.Contains(fb, want) {
			t.Errorf("feedback %q missing %q", fb, want)
		}
	}
}
