package orchestrators

import (
	"context"
	"errors"
	"strings"
	"testing"

	"classledger/internal/domain/session"
)

func commitTestDeps() (CommitSessionDeps, *mockSessionStore) {
	loadDeps, store := sessionTestDeps()
	return CommitSessionDeps{
		SessionStore:   loadDeps.SessionStore,
		RosterStore:    loadDeps.RosterStore,
		ClassroomStore: loadDeps.ClassroomStore,
		Now:            loadDeps.Now,
	}, store
}

func TestExecuteCommitSession_NewAttendance(t *testing.T) {
	deps, store := commitTestDeps()

	result, err := ExecuteCommitSession(context.Background(), CommitSessionInput{
		Kind:      session.KindAttendance,
		ClassID:   "10A",
		Subject:   "Maths",
		Date:      "05/03/2024",
		TeacherID: "t1",
		Statuses:  map[string]string{"s2": session.Absent},
	}, deps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Updated {
		t.Error("expected a fresh insert, got update")
	}
	if len(store.saved) != 1 {
		t.Fatalf("expected 1 upsert, got %d", len(store.saved))
	}
	rec := store.saved[0]
	// s1 keeps the Present default; only s2 was overridden.
	if rec.Entries["s1"].Status != session.Present {
		t.Errorf("expected s1 Present, got %q", rec.Entries["s1"].Status)
	}
	if rec.Entries["s2"].Status != session.Absent {
		t.Errorf("expected s2 Absent, got %q", rec.Entries["s2"].Status)
	}
	if rec.StudentCount != 2 {
		t.Errorf("expected 2 students, got %d", rec.StudentCount)
	}
}

func TestExecuteCommitSession_OccupiedKeyNeedsUnlock(t *testing.T) {
	deps, store := commitTestDeps()

	input := CommitSessionInput{
		Kind:      session.KindAttendance,
		ClassID:   "10A",
		Subject:   "Maths",
		Date:      "05/03/2024",
		TeacherID: "t1",
		Statuses:  map[string]string{"s1": session.Absent},
	}
	if _, err := ExecuteCommitSession(context.Background(), input, deps); err != nil {
		t.Fatalf("first commit failed: %v", err)
	}

	// Re-commit without the unlock acknowledgement is rejected.
	if _, err := ExecuteCommitSession(context.Background(), input, deps); !errors.Is(err, ErrKeyOccupied) {
		t.Fatalf("expected ErrKeyOccupied, got %v", err)
	}

	input.Unlocked = true
	input.Statuses = map[string]string{"s1": session.Present}
	result, err := ExecuteCommitSession(context.Background(), input, deps)
	if err != nil {
		t.Fatalf("unlocked re-commit failed: %v", err)
	}
	if !result.Updated {
		t.Error("expected an update")
	}
	if result.Record.ID != "rec-1" {
		t.Errorf("expected update to keep record ID, got %q", result.Record.ID)
	}
	if len(store.saved) != 2 {
		t.Errorf("expected 2 upserts, got %d", len(store.saved))
	}
}

func TestExecuteCommitSession_NewExam(t *testing.T) {
	deps, store := commitTestDeps()

	result, err := ExecuteCommitSession(context.Background(), CommitSessionInput{
		Kind:      session.KindExam,
		ClassID:   "10A",
		Subject:   "Maths",
		Date:      "05/03/2024",
		TeacherID: "t1",
		Scores:    map[string]string{"s1": "42", "s2": "0"},
		ExamTitle: "Term 1 Algebra",
		MaxScore:  50,
	}, deps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rec := store.saved[0]
	if rec.Metadata.ExamTitle != "Term 1 Algebra" || rec.Metadata.MaxScore != 50 {
		t.Errorf("unexpected metadata: %+v", rec.Metadata)
	}
	if e := rec.Entries["s2"]; e.Score != 0 || !e.Filled {
		t.Errorf("expected entered zero for s2, got %+v", e)
	}
	if result.Record.StudentCount != 2 {
		t.Errorf("expected 2 scored students, got %d", result.Record.StudentCount)
	}
}

func TestExecuteCommitSession_ExamOverMaxBlocked(t *testing.T) {
	deps, store := commitTestDeps()

	_, err := ExecuteCommitSession(context.Background(), CommitSessionInput{
		Kind:      session.KindExam,
		ClassID:   "10A",
		Subject:   "Maths",
		Date:      "05/03/2024",
		TeacherID: "t1",
		Scores:    map[string]string{"s1": "51"},
		ExamTitle: "Term 1 Algebra",
		MaxScore:  50,
	}, deps)
	if err == nil {
		t.Fatal("expected out-of-range score to block the commit")
	}
	if !strings.Contains(err.Error(), "exceeds max score") {
		t.Errorf("unexpected error: %v", err)
	}
	if len(store.saved) != 0 {
		t.Errorf("expected no writes on a blocked commit, got %d", len(store.saved))
	}
}

func TestExecuteCommitSession_ExamMetadataImmutableOnUpdate(t *testing.T) {
	deps, store := commitTestDeps()

	first := CommitSessionInput{
		Kind:      session.KindExam,
		ClassID:   "10A",
		Subject:   "Maths",
		Date:      "05/03/2024",
		TeacherID: "t1",
		Scores:    map[string]string{"s1": "42"},
		ExamTitle: "Term 1 Algebra",
		MaxScore:  50,
	}
	if _, err := ExecuteCommitSession(context.Background(), first, deps); err != nil {
		t.Fatalf("first commit failed: %v", err)
	}

	second := first
	second.Unlocked = true
	second.ExamTitle = "Renamed"
	second.MaxScore = 100
	second.Scores = map[string]string{"s1": "45", "s2": "30"}
	if _, err := ExecuteCommitSession(context.Background(), second, deps); err != nil {
		t.Fatalf("second commit failed: %v", err)
	}

	rec := store.saved[len(store.saved)-1]
	if rec.Metadata.ExamTitle != "Term 1 Algebra" || rec.Metadata.MaxScore != 50 {
		t.Errorf("expected stored metadata preserved, got %+v", rec.Metadata)
	}
}

func TestExecuteCommitSession_StoredMaxGovernsUpdate(t *testing.T) {
	deps, _ := commitTestDeps()

	first := CommitSessionInput{
		Kind:      session.KindExam,
		ClassID:   "10A",
		Subject:   "Maths",
		Date:      "05/03/2024",
		TeacherID: "t1",
		Scores:    map[string]string{"s1": "42"},
		ExamTitle: "Term 1 Algebra",
		MaxScore:  50,
	}
	if _, err := ExecuteCommitSession(context.Background(), first, deps); err != nil {
		t.Fatalf("first commit failed: %v", err)
	}

	// Raising MaxScore in the input cannot widen the stored record's range.
	second := first
	second.Unlocked = true
	second.MaxScore = 200
	second.Scores = map[string]string{"s1": "120"}
	if _, err := ExecuteCommitSession(context.Background(), second, deps); err == nil {
		t.Error("expected score above stored max to block the update")
	}
}

func TestExecuteCommitSession_DepartedStudentsPreserved(t *testing.T) {
	deps, store := commitTestDeps()
	key := session.Key{ClassID: "10A", Subject: "Maths", Date: mustDate(t, "05/03/2024")}
	store.records = map[string]session.Record{
		recordKey(session.KindAttendance, key): {
			ID:        "rec-1",
			Key:       key,
			Kind:      session.KindAttendance,
			TeacherID: "t1",
			Entries: map[string]session.Entry{
				"s1":   {Status: session.Present, Filled: true},
				"gone": {Status: session.Absent, Filled: true},
			},
			StudentCount: 2,
		},
	}

	result, err := ExecuteCommitSession(context.Background(), CommitSessionInput{
		Kind:      session.KindAttendance,
		ClassID:   "10A",
		Subject:   "Maths",
		Date:      "05/03/2024",
		TeacherID: "t1",
		Unlocked:  true,
		Statuses:  map[string]string{"s1": session.Absent, "s2": session.Present},
	}, deps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// "gone" left the roster after the original commit; their entry survives.
	rec := result.Record
	if e, ok := rec.Entries["gone"]; !ok || e.Status != session.Absent {
		t.Errorf("expected departed student's entry preserved, got %+v", rec.Entries)
	}
	if rec.StudentCount != 3 {
		t.Errorf("expected 3 entries after merge, got %d", rec.StudentCount)
	}
}

func TestExecuteCommitSession_UnknownStudentRejected(t *testing.T) {
	deps, store := commitTestDeps()

	_, err := ExecuteCommitSession(context.Background(), CommitSessionInput{
		Kind:      session.KindAttendance,
		ClassID:   "10A",
		Subject:   "Maths",
		Date:      "05/03/2024",
		TeacherID: "t1",
		Statuses:  map[string]string{"intruder": session.Present},
	}, deps)
	if !errors.Is(err, session.ErrStudentNotInRoster) {
		t.Errorf("expected ErrStudentNotInRoster, got %v", err)
	}
	if len(store.saved) != 0 {
		t.Errorf("expected no writes, got %d", len(store.saved))
	}
}

func TestExecuteCommitSession_BlockedCommitNamesStudents(t *testing.T) {
	deps, _ := commitTestDeps()

	_, err := ExecuteCommitSession(context.Background(), CommitSessionInput{
		Kind:      session.KindExam,
		ClassID:   "10A",
		Subject:   "Maths",
		Date:      "05/03/2024",
		TeacherID: "t1",
		Scores:    map[string]string{"s1": "51", "s2": "40"},
		ExamTitle: "Term 1 Algebra",
		MaxScore:  50,
	}, deps)
	if err == nil {
		t.Fatal("expected out-of-range score to block the commit")
	}
	if !strings.Contains(err.Error(), "flagged: s1") {
		t.Errorf("expected the offending student to be named, got %v", err)
	}
	if strings.Contains(err.Error(), "s2") {
		t.Errorf("in-range student flagged: %v", err)
	}
	var inputErr *InputError
	if !errors.As(err, &inputErr) {
		t.Errorf("expected a caller-correctable error, got %v", err)
	}
}

func TestExecuteCommitSession_StoreFailureNotCallerError(t *testing.T) {
	deps, store := commitTestDeps()
	store.failGet = errors.New("database is locked")

	_, err := ExecuteCommitSession(context.Background(), CommitSessionInput{
		Kind:      session.KindAttendance,
		ClassID:   "10A",
		Subject:   "Maths",
		Date:      "05/03/2024",
		TeacherID: "t1",
		Statuses:  map[string]string{"s1": session.Present},
	}, deps)
	if err == nil {
		t.Fatal("expected store failure to propagate")
	}
	var inputErr *InputError
	if errors.As(err, &inputErr) {
		t.Errorf("store failure classified as caller input: %v", err)
	}
}
