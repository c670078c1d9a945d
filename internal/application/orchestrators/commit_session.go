package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	sessionstore "classledger/internal/adapters/storage/session"
	"classledger/internal/domain/session"
)

// ErrKeyOccupied is returned when a commit targets a key that already holds a
// record and the caller did not explicitly unlock it first.
var ErrKeyOccupied = errors.New("a record already exists for this date; unlock it to overwrite")

// CommitSessionInput carries input for the commit orchestrator. Exactly one
// of Statuses or Scores is consulted, depending on Kind. Scores are raw
// strings as entered; empty values clear a slot.
type CommitSessionInput struct {
	Kind      session.Kind
	ClassID   string
	Subject   string
	Date      string
	TeacherID string
	// Unlocked acknowledges that an existing record at this key may be
	// overwritten. Without it, commits to an occupied key are rejected.
	Unlocked  bool
	Statuses  map[string]string
	Scores    map[string]string
	ExamTitle string
	MaxScore  int
}

// CommitSessionResult carries the stored record after a successful commit.
type CommitSessionResult struct {
	Record  session.Record
	Updated bool
}

// CommitSessionDeps holds dependencies for CommitSession.
type CommitSessionDeps struct {
	SessionStore   SessionStore
	RosterStore    RosterLookupStore
	ClassroomStore AssignmentCheckStore
	Now            func() time.Time // nil defaults to time.Now
}

// ExecuteCommitSession validates and persists a whole session buffer at its
// key. A vacant key gets a new record; an occupied key is updated in place,
// but only when the caller has explicitly unlocked it. Validation runs before
// any write, so a failed commit leaves the stored record untouched.
// PRE: TeacherID identifies an authenticated teacher
// POST: Exactly one record exists at the key; entries written as one unit
// INVARIANT: on update, exam metadata and created_at are taken from the
// stored record, never from the input
func ExecuteCommitSession(ctx context.Context, input CommitSessionInput, deps CommitSessionDeps) (CommitSessionResult, error) {
	key, err := resolveKey(input.ClassID, input.Subject, input.Date, deps.Now)
	if err != nil {
		return CommitSessionResult{}, err
	}

	assigned, err := deps.ClassroomStore.TeacherAssigned(ctx, input.TeacherID, key.ClassID, key.Subject)
	if err != nil {
		return CommitSessionResult{}, err
	}
	if !assigned {
		return CommitSessionResult{}, ErrNotAssigned
	}

	students, err := deps.RosterStore.ListByClass(ctx, key.ClassID)
	if err != nil {
		return CommitSessionResult{}, err
	}
	if len(students) == 0 {
		return CommitSessionResult{}, invalidInput(errors.New("class has no students"))
	}

	existing, err := deps.SessionStore.GetByKey(ctx, input.Kind, key)
	if err != nil && !errors.Is(err, sessionstore.ErrNotFound) {
		return CommitSessionResult{}, err
	}
	updating := err == nil

	var s *session.Session
	if updating {
		if !input.Unlocked {
			return CommitSessionResult{}, ErrKeyOccupied
		}
		s, err = session.FromRecord(existing, students)
		if err != nil {
			return CommitSessionResult{}, err
		}
		if err := s.Unlock(); err != nil {
			return CommitSessionResult{}, err
		}
	} else {
		s, err = session.NewDraft(key, input.Kind, input.TeacherID, students)
		if err != nil {
			return CommitSessionResult{}, invalidInput(err)
		}
		if input.Kind == session.KindExam {
			if err := s.SetMetadata(session.Metadata{ExamTitle: input.ExamTitle, MaxScore: input.MaxScore}); err != nil {
				return CommitSessionResult{}, invalidInput(err)
			}
		}
	}

	if err := applyBuffer(s, input); err != nil {
		return CommitSessionResult{}, invalidInput(err)
	}

	if err := s.ValidateCommit(); err != nil {
		if bad := s.InvalidStudents(); len(bad) > 0 {
			err = fmt.Errorf("%w (flagged: %s)", err, strings.Join(bad, ", "))
		}
		return CommitSessionResult{}, invalidInput(err)
	}

	rec := s.ToRecord()
	if updating {
		// Entries for students no longer in the roster stay as committed;
		// the buffer only ever covers the current roster.
		for id, e := range existing.Entries {
			if _, ok := rec.Entries[id]; !ok && !inRoster(s, id) {
				rec.Entries[id] = e
				rec.StudentCount++
			}
		}
		rec.Metadata = existing.Metadata
	}

	if err := rec.Validate(); err != nil {
		return CommitSessionResult{}, err
	}

	stored, err := deps.SessionStore.Upsert(ctx, rec)
	if err != nil {
		return CommitSessionResult{}, err
	}
	s.MarkCommitted(stored.CreatedAt, stored.UpdatedAt)

	slog.Info("ledger_event", "event", "session_committed", "kind", input.Kind, "key", key.String(), "teacher_id", input.TeacherID, "updated", updating, "students", stored.StudentCount)
	return CommitSessionResult{Record: stored, Updated: updating}, nil
}

// applyBuffer replays the submitted per-student values into the session.
// Values for students outside the roster are rejected outright.
func applyBuffer(s *session.Session, input CommitSessionInput) error {
	switch input.Kind {
	case session.KindAttendance:
		for id, status := range input.Statuses {
			if err := s.SetStatus(id, status); err != nil {
				return err
			}
		}
		return nil
	case session.KindExam:
		for id, raw := range input.Scores {
			if err := s.SetScore(id, raw); err != nil {
				return err
			}
		}
		return nil
	default:
		return session.ErrUnknownKind
	}
}

func inRoster(s *session.Session, studentID string) bool {
	for _, st := range s.Roster {
		if st.ID == studentID {
			return true
		}
	}
	return false
}
