package orchestrators

import (
	"context"
	"errors"
	"testing"
	"time"

	sessionstore "classledger/internal/adapters/storage/session"
	"classledger/internal/domain/roster"
	"classledger/internal/domain/session"
)

// mockSessionStore implements SessionStore for testing.
type mockSessionStore struct {
	records map[string]session.Record
	saved   []session.Record
	failGet error
}

func recordKey(kind session.Kind, key session.Key) string {
	return string(kind) + "|" + key.String()
}

func (m *mockSessionStore) GetByKey(_ context.Context, kind session.Kind, key session.Key) (session.Record, error) {
	if m.failGet != nil {
		return session.Record{}, m.failGet
	}
	if rec, ok := m.records[recordKey(kind, key)]; ok {
		return rec, nil
	}
	return session.Record{}, sessionstore.ErrNotFound
}

func (m *mockSessionStore) Upsert(_ context.Context, rec session.Record) (session.Record, error) {
	if rec.ID == "" {
		rec.ID = "rec-1"
		rec.CreatedAt = time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)
	}
	rec.UpdatedAt = time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	if m.records == nil {
		m.records = map[string]session.Record{}
	}
	m.records[recordKey(rec.Kind, rec.Key)] = rec
	m.saved = append(m.saved, rec)
	return rec, nil
}

// mockRosterStore implements RosterLookupStore for testing.
type mockRosterStore struct {
	students map[string][]roster.Student
}

func (m *mockRosterStore) ListByClass(_ context.Context, classID string) ([]roster.Student, error) {
	return m.students[classID], nil
}

// mockClassroomStore implements AssignmentCheckStore for testing.
type mockClassroomStore struct {
	assigned map[string]bool
}

func (m *mockClassroomStore) TeacherAssigned(_ context.Context, teacherID, classID, subject string) (bool, error) {
	return m.assigned[teacherID+"|"+classID+"|"+subject], nil
}

func fixedNow() time.Time {
	return time.Date(2024, 3, 10, 14, 0, 0, 0, time.UTC)
}

func sessionTestDeps() (LoadSessionDeps, *mockSessionStore) {
	store := &mockSessionStore{}
	deps := LoadSessionDeps{
		SessionStore: store,
		RosterStore: &mockRosterStore{students: map[string][]roster.Student{
			"10A": {
				{ID: "s1", Name: "Aisha Khan", ClassID: "10A"},
				{ID: "s2", Name: "Ben Carter", ClassID: "10A"},
			},
		}},
		ClassroomStore: &mockClassroomStore{assigned: map[string]bool{
			"t1|10A|Maths": true,
		}},
		Now: fixedNow,
	}
	return deps, store
}

func TestExecuteLoadSession_NewDraft(t *testing.T) {
	deps, _ := sessionTestDeps()

	result, err := ExecuteLoadSession(context.Background(), LoadSessionInput{
		Kind:      session.KindAttendance,
		ClassID:   "10A",
		Subject:   "Maths",
		Date:      "05/03/2024",
		TeacherID: "t1",
	}, deps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Existing {
		t.Error("expected a fresh draft, got existing")
	}
	if result.Session.Status != session.StatusDraft {
		t.Errorf("expected draft status, got %q", result.Session.Status)
	}
	if len(result.Session.Entries) != 2 {
		t.Errorf("expected 2 buffer slots, got %d", len(result.Session.Entries))
	}
	if result.Session.Entries["s1"].Status != session.Present {
		t.Errorf("expected default Present, got %q", result.Session.Entries["s1"].Status)
	}
}

func TestExecuteLoadSession_ExistingRecordLocks(t *testing.T) {
	deps, store := sessionTestDeps()
	key := session.Key{ClassID: "10A", Subject: "Maths", Date: mustDate(t, "05/03/2024")}
	store.records = map[string]session.Record{
		recordKey(session.KindAttendance, key): {
			ID:        "rec-1",
			Key:       key,
			Kind:      session.KindAttendance,
			TeacherID: "t1",
			Entries: map[string]session.Entry{
				"s1": {Status: session.Absent, Filled: true},
			},
		},
	}

	result, err := ExecuteLoadSession(context.Background(), LoadSessionInput{
		Kind:      session.KindAttendance,
		ClassID:   "10A",
		Subject:   "Maths",
		Date:      "05/03/2024",
		TeacherID: "t1",
	}, deps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Existing {
		t.Error("expected existing record")
	}
	if result.Session.Status != session.StatusLocked {
		t.Errorf("expected locked status, got %q", result.Session.Status)
	}
	if result.Session.Entries["s1"].Status != session.Absent {
		t.Errorf("expected committed Absent, got %q", result.Session.Entries["s1"].Status)
	}
	// s2 was not in the committed record; the slot stays blank, not defaulted.
	if result.Session.Entries["s2"].Status != "" {
		t.Errorf("expected blank slot for s2, got %q", result.Session.Entries["s2"].Status)
	}
}

func TestExecuteLoadSession_FutureDateRejected(t *testing.T) {
	deps, _ := sessionTestDeps()

	_, err := ExecuteLoadSession(context.Background(), LoadSessionInput{
		Kind:      session.KindAttendance,
		ClassID:   "10A",
		Subject:   "Maths",
		Date:      "11/03/2024", // one day past fixedNow
		TeacherID: "t1",
	}, deps)
	if !errors.Is(err, session.ErrFutureDate) {
		t.Errorf("expected ErrFutureDate, got %v", err)
	}
}

func TestExecuteLoadSession_TodayAllowed(t *testing.T) {
	deps, _ := sessionTestDeps()

	_, err := ExecuteLoadSession(context.Background(), LoadSessionInput{
		Kind:      session.KindAttendance,
		ClassID:   "10A",
		Subject:   "Maths",
		Date:      "10/03/2024",
		TeacherID: "t1",
	}, deps)
	if err != nil {
		t.Errorf("expected today's date to load, got %v", err)
	}
}

func TestExecuteLoadSession_UnassignedTeacherRejected(t *testing.T) {
	deps, _ := sessionTestDeps()

	_, err := ExecuteLoadSession(context.Background(), LoadSessionInput{
		Kind:      session.KindAttendance,
		ClassID:   "10A",
		Subject:   "Maths",
		Date:      "05/03/2024",
		TeacherID: "t2",
	}, deps)
	if !errors.Is(err, ErrNotAssigned) {
		t.Errorf("expected ErrNotAssigned, got %v", err)
	}
}

func TestExecuteLoadSession_MalformedDateRejected(t *testing.T) {
	deps, _ := sessionTestDeps()

	_, err := ExecuteLoadSession(context.Background(), LoadSessionInput{
		Kind:      session.KindAttendance,
		ClassID:   "10A",
		Subject:   "Maths",
		Date:      "2024-03-05",
		TeacherID: "t1",
	}, deps)
	if err == nil {
		t.Error("expected error for ISO-format date")
	}
	var inputErr *InputError
	if !errors.As(err, &inputErr) {
		t.Errorf("expected a caller-correctable error, got %v", err)
	}
}

func TestExecuteLoadSession_StoreFailureNotCallerError(t *testing.T) {
	deps, store := sessionTestDeps()
	store.failGet = errors.New("database is locked")

	_, err := ExecuteLoadSession(context.Background(), LoadSessionInput{
		Kind:      session.KindAttendance,
		ClassID:   "10A",
		Subject:   "Maths",
		Date:      "05/03/2024",
		TeacherID: "t1",
	}, deps)
	if err == nil {
		t.Fatal("expected store failure to propagate")
	}
	var inputErr *InputError
	if errors.As(err, &inputErr) {
		t.Errorf("store failure classified as caller input: %v", err)
	}
}

func mustDate(t *testing.T, raw string) time.Time {
	t.Helper()
	d, err := session.ParseLedgerDate(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return d
}
