package session

import (
	"errors"
	"fmt"
)

// Policy is the kind-specific strategy behind the generic session ledger.
// The state machine, buffer handling, and upsert flow are shared across
// kinds; only defaults and validation differ.
type Policy interface {
	Kind() Kind
	// DefaultEntry returns the buffer value a roster student starts with
	// when no record exists yet.
	DefaultEntry() Entry
	// ValidateEntry checks a single buffered entry against the working
	// metadata. Used to flag slots without blocking edits.
	ValidateEntry(e Entry, meta Metadata) error
	// ValidateCommit checks the whole buffer before any write. A non-nil
	// error blocks the commit entirely; no partial writes happen.
	ValidateCommit(entries map[string]Entry, meta Metadata) error
}

// PolicyFor returns the Policy for a kind.
// PRE: none
// POST: returns the matching policy or ErrUnknownKind
func PolicyFor(kind Kind) (Policy, error) {
	switch kind {
	case KindAttendance:
		return AttendancePolicy{}, nil
	case KindExam:
		return ExamPolicy{}, nil
	default:
		return nil, ErrUnknownKind
	}
}

// AttendancePolicy defaults every student to Present. Every roster student
// always has a defined status, so commit needs no further validation.
type AttendancePolicy struct{}

// Kind identifies the policy's record kind.
func (AttendancePolicy) Kind() Kind { return KindAttendance }

// DefaultEntry returns Present for a new attendance buffer slot.
func (AttendancePolicy) DefaultEntry() Entry {
	return Entry{Status: Present}
}

// ValidateEntry checks one attendance entry.
// POST: nil unless the status is neither Present nor Absent
func (AttendancePolicy) ValidateEntry(e Entry, _ Metadata) error {
	if e.Status != Present && e.Status != Absent {
		return fmt.Errorf("attendance status must be %q or %q", Present, Absent)
	}
	return nil
}

// ValidateCommit checks an attendance buffer before a write.
// POST: nil if every entry has a valid status
func (p AttendancePolicy) ValidateCommit(entries map[string]Entry, meta Metadata) error {
	if len(entries) == 0 {
		return errors.New("attendance session has no students")
	}
	for id, e := range entries {
		if err := p.ValidateEntry(e, meta); err != nil {
			return fmt.Errorf("student %s: %w", id, err)
		}
	}
	return nil
}

// ExamPolicy leaves new buffer slots blank and enforces the max-score gate:
// commit is blocked, never clamped, while any score exceeds the max.
type ExamPolicy struct{}

// Kind identifies the policy's record kind.
func (ExamPolicy) Kind() Kind { return KindExam }

// DefaultEntry returns a blank slot for a new exam buffer.
func (ExamPolicy) DefaultEntry() Entry {
	return Entry{}
}

// ValidateEntry checks one exam entry against the working max score.
// POST: nil for blank slots and in-range scores
func (ExamPolicy) ValidateEntry(e Entry, meta Metadata) error {
	if !e.Filled {
		return nil
	}
	if e.Score < 0 {
		return errors.New("score cannot be negative")
	}
	if meta.MaxScore > 0 && e.Score > meta.MaxScore {
		return fmt.Errorf("score %d exceeds max score %d", e.Score, meta.MaxScore)
	}
	return nil
}

// ValidateCommit checks an exam buffer before a write.
// POST: nil only when metadata is complete, at least one entry is filled,
// and no filled entry exceeds the max score
func (p ExamPolicy) ValidateCommit(entries map[string]Entry, meta Metadata) error {
	if meta.ExamTitle == "" {
		return errors.New("exam title cannot be empty")
	}
	if meta.MaxScore <= 0 {
		return errors.New("max score must be positive")
	}
	filled := 0
	for id, e := range entries {
		if !e.Filled {
			continue
		}
		filled++
		if err := p.ValidateEntry(e, meta); err != nil {
			return fmt.Errorf("student %s: %w", id, err)
		}
	}
	if filled == 0 {
		return errors.New("at least one score must be entered")
	}
	return nil
}
