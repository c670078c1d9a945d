package orchestrators

import (
	"context"
	"errors"
	"log/slog"
	"time"

	sessionstore "classledger/internal/adapters/storage/session"
	"classledger/internal/domain/roster"
	"classledger/internal/domain/session"
)

// SessionStore defines the interface for session record persistence.
type SessionStore interface {
	GetByKey(ctx context.Context, kind session.Kind, key session.Key) (session.Record, error)
	Upsert(ctx context.Context, record session.Record) (session.Record, error)
}

// RosterLookupStore defines the roster store interface needed for sessions.
type RosterLookupStore interface {
	ListByClass(ctx context.Context, classID string) ([]roster.Student, error)
}

// AssignmentCheckStore defines the classroom store interface needed for
// the teacher authorization check.
type AssignmentCheckStore interface {
	TeacherAssigned(ctx context.Context, teacherID string, classID string, subject string) (bool, error)
}

// ErrNotAssigned is returned when a teacher targets a (class, subject) pair
// they do not hold.
var ErrNotAssigned = errors.New("teacher is not assigned to this class and subject")

// LoadSessionInput carries input for the session load orchestrator.
// Date is the raw DD/MM/YYYY string as submitted by the caller.
type LoadSessionInput struct {
	Kind      session.Kind
	ClassID   string
	Subject   string
	Date      string
	TeacherID string
}

// LoadSessionResult carries the loaded session handle.
type LoadSessionResult struct {
	Session *session.Session
	// Existing reports whether a committed record already occupies the key,
	// i.e. the session came back Locked rather than Draft.
	Existing bool
}

// LoadSessionDeps holds dependencies for LoadSession.
type LoadSessionDeps struct {
	SessionStore   SessionStore
	RosterStore    RosterLookupStore
	ClassroomStore AssignmentCheckStore
	Now            func() time.Time // nil defaults to time.Now
}

// ExecuteLoadSession resolves a (class, subject, date) key to an editable
// session handle: a Locked one mirroring the committed record when the key is
// occupied, otherwise a fresh Draft with the kind's defaults for every roster
// student.
// PRE: TeacherID identifies an authenticated teacher
// POST: Returns a session whose buffer holds one slot per roster student
// INVARIANT: future dates are rejected before any store access
func ExecuteLoadSession(ctx context.Context, input LoadSessionInput, deps LoadSessionDeps) (LoadSessionResult, error) {
	key, err := resolveKey(input.ClassID, input.Subject, input.Date, deps.Now)
	if err != nil {
		return LoadSessionResult{}, err
	}

	assigned, err := deps.ClassroomStore.TeacherAssigned(ctx, input.TeacherID, key.ClassID, key.Subject)
	if err != nil {
		return LoadSessionResult{}, err
	}
	if !assigned {
		return LoadSessionResult{}, ErrNotAssigned
	}

	students, err := deps.RosterStore.ListByClass(ctx, key.ClassID)
	if err != nil {
		return LoadSessionResult{}, err
	}
	if len(students) == 0 {
		return LoadSessionResult{}, invalidInput(errors.New("class has no students"))
	}

	rec, err := deps.SessionStore.GetByKey(ctx, input.Kind, key)
	if err != nil && !errors.Is(err, sessionstore.ErrNotFound) {
		return LoadSessionResult{}, err
	}

	if errors.Is(err, sessionstore.ErrNotFound) {
		s, err := session.NewDraft(key, input.Kind, input.TeacherID, students)
		if err != nil {
			return LoadSessionResult{}, invalidInput(err)
		}
		return LoadSessionResult{Session: s, Existing: false}, nil
	}

	s, err := session.FromRecord(rec, students)
	if err != nil {
		return LoadSessionResult{}, err
	}
	slog.Info("ledger_event", "event", "session_loaded", "kind", input.Kind, "key", key.String(), "teacher_id", input.TeacherID)
	return LoadSessionResult{Session: s, Existing: true}, nil
}

// resolveKey parses and validates the composite key shared by the session
// orchestrators. Day precision only; the submitted date may not lie in the
// future.
func resolveKey(classID, subject, rawDate string, now func() time.Time) (session.Key, error) {
	if now == nil {
		now = time.Now
	}
	date, err := session.ParseLedgerDate(rawDate)
	if err != nil {
		return session.Key{}, invalidInput(err)
	}
	key := session.Key{ClassID: classID, Subject: subject, Date: date}
	if err := key.Validate(); err != nil {
		return session.Key{}, invalidInput(err)
	}
	today := now().UTC().Truncate(24 * time.Hour)
	if date.After(today) {
		return session.Key{}, invalidInput(session.ErrFutureDate)
	}
	return key, nil
}
