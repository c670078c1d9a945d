package session

import (
	"errors"
	"fmt"
	"time"

	"classledger/internal/domain/roster"
)

// Kind discriminates the two ledger record kinds.
type Kind string

const (
	KindAttendance Kind = "attendance"
	KindExam       Kind = "exam"
)

// Status values for the in-memory session handle.
// A persisted record has no stored lock flag: a session is Locked simply by
// virtue of a record existing at its key, and Unlocked is a transient
// client-side override that permits a re-commit to the same key.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusLocked   Status = "locked"
	StatusUnlocked Status = "unlocked"
)

// Attendance status constants.
const (
	Present = "Present"
	Absent  = "Absent"
)

// LedgerDateLayout is the fixed storage format for session dates.
// Stored records key dates as DD/MM/YYYY strings; any change here breaks
// round-trips with existing data.
const LedgerDateLayout = "02/01/2006"

// Domain errors
var (
	ErrLocked             = errors.New("session is locked; unlock before editing")
	ErrNotLocked          = errors.New("only a locked session can be unlocked")
	ErrUnknownKind        = errors.New("kind must be 'attendance' or 'exam'")
	ErrFutureDate         = errors.New("cannot record a session for a future date")
	ErrStudentNotInRoster = errors.New("student is not in the class roster")
)

// FormatLedgerDate serializes a date using the storage date convention.
// PRE: t is non-zero
// POST: returns DD/MM/YYYY string
func FormatLedgerDate(t time.Time) string {
	return t.Format(LedgerDateLayout)
}

// ParseLedgerDate parses a DD/MM/YYYY storage date string.
// PRE: s is non-empty
// POST: returns the calendar day at midnight UTC, or an error
func ParseLedgerDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(LedgerDateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid ledger date %q (want DD/MM/YYYY): %w", s, err)
	}
	return t, nil
}

// Key is the composite identity of a session: one record may exist per
// (class, subject, calendar day). Date carries day precision only.
type Key struct {
	ClassID string
	Subject string
	Date    time.Time
}

// Validate checks if the Key has valid data.
// PRE: Key struct is initialized
// POST: Returns error if validation fails, nil otherwise
func (k Key) Validate() error {
	if k.ClassID == "" {
		return errors.New("session key requires a class")
	}
	if k.Subject == "" {
		return errors.New("session key requires a subject")
	}
	if k.Date.IsZero() {
		return errors.New("session key requires a date")
	}
	return nil
}

// String renders the key for logging.
func (k Key) String() string {
	return k.ClassID + "/" + k.Subject + "/" + FormatLedgerDate(k.Date)
}

// Entry is one student's value in a session buffer or record.
// Attendance sessions use Status; exam sessions use Score with Filled
// distinguishing an entered zero from a blank slot.
type Entry struct {
	Status string
	Score  int
	Filled bool
}

// Metadata carries kind-specific record metadata. Attendance sessions have
// none; exam sessions require a title and a positive max score, both
// immutable once the record is first committed.
type Metadata struct {
	ExamTitle string
	MaxScore  int
}

// Record is one persisted session document. Exactly one Record exists per
// (Kind, Key); commits to an existing key update that document in place.
type Record struct {
	ID           string
	Key          Key
	Kind         Kind
	TeacherID    string
	Entries      map[string]Entry
	Metadata     Metadata
	StudentCount int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Validate checks if the Record has valid data.
// PRE: Record struct is initialized
// POST: Returns error if validation fails, nil otherwise
// INVARIANT: Key is valid, Kind is known, TeacherID is set
func (r *Record) Validate() error {
	if err := r.Key.Validate(); err != nil {
		return err
	}
	if r.Kind != KindAttendance && r.Kind != KindExam {
		return ErrUnknownKind
	}
	if r.TeacherID == "" {
		return errors.New("session record must be associated with a teacher")
	}
	if r.Kind == KindExam {
		if r.Metadata.ExamTitle == "" {
			return errors.New("exam title cannot be empty")
		}
		if r.Metadata.MaxScore <= 0 {
			return errors.New("max score must be positive")
		}
	}
	return nil
}

// Session is the in-memory handle for editing exactly one session at a time.
// It mediates between the roster, a previously committed record (if any), and
// the caller's edit buffer. All mutation goes through its methods so the
// Draft -> Locked -> Unlocked state machine cannot be bypassed.
type Session struct {
	Key       Key
	Kind      Kind
	Status    Status
	TeacherID string
	Roster    []roster.Student
	Entries   map[string]Entry
	Metadata  Metadata
	CreatedAt time.Time
	UpdatedAt time.Time

	policy Policy
}

// NewDraft initializes a Draft session for a key with no persisted record.
// Every roster student gets the kind's default entry (Present for
// attendance, blank for exams).
// PRE: key is valid, students is the current roster for key.ClassID
// POST: returns a Draft session with one buffer slot per student
func NewDraft(key Key, kind Kind, teacherID string, students []roster.Student) (*Session, error) {
	policy, err := PolicyFor(kind)
	if err != nil {
		return nil, err
	}
	entries := make(map[string]Entry, len(students))
	for _, st := range students {
		entries[st.ID] = policy.DefaultEntry()
	}
	return &Session{
		Key:       key,
		Kind:      kind,
		Status:    StatusDraft,
		TeacherID: teacherID,
		Roster:    students,
		Entries:   entries,
		policy:    policy,
	}, nil
}

// FromRecord initializes a Locked session from a persisted record.
// The buffer holds one slot per roster student; students missing from the
// persisted entries stay blank rather than being defaulted.
// PRE: rec is a valid persisted record, students is the current roster
// POST: returns a Locked session whose buffer mirrors the record
func FromRecord(rec Record, students []roster.Student) (*Session, error) {
	policy, err := PolicyFor(rec.Kind)
	if err != nil {
		return nil, err
	}
	entries := make(map[string]Entry, len(students))
	for _, st := range students {
		if e, ok := rec.Entries[st.ID]; ok {
			entries[st.ID] = e
		} else {
			entries[st.ID] = Entry{}
		}
	}
	return &Session{
		Key:       rec.Key,
		Kind:      rec.Kind,
		Status:    StatusLocked,
		TeacherID: rec.TeacherID,
		Roster:    students,
		Entries:   entries,
		Metadata:  rec.Metadata,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
		policy:    policy,
	}, nil
}

// Editable reports whether the session accepts buffer mutations.
// INVARIANT: only Draft and Unlocked sessions are editable
func (s *Session) Editable() bool {
	return s.Status == StatusDraft || s.Status == StatusUnlocked
}

// ToggleAttendance flips a student's status between Present and Absent.
// PRE: session kind is attendance, studentID is in the roster
// POST: entry flipped, or ErrLocked / ErrStudentNotInRoster
func (s *Session) ToggleAttendance(studentID string) error {
	if s.Kind != KindAttendance {
		return errors.New("toggle is only valid for attendance sessions")
	}
	if !s.Editable() {
		return ErrLocked
	}
	e, ok := s.Entries[studentID]
	if !ok {
		return ErrStudentNotInRoster
	}
	if e.Status == Absent {
		e.Status = Present
	} else {
		e.Status = Absent
	}
	s.Entries[studentID] = e
	return nil
}

// SetStatus overwrites a student's attendance status in the buffer. Unlike
// ToggleAttendance it takes the target value directly, which suits callers
// replaying a full buffer rather than editing interactively. The value is not
// checked here; commit validation rejects unknown statuses.
// PRE: session kind is attendance, studentID is in the roster
// POST: entry replaced, or ErrLocked / ErrStudentNotInRoster
func (s *Session) SetStatus(studentID, status string) error {
	if s.Kind != KindAttendance {
		return errors.New("statuses are only valid for attendance sessions")
	}
	if !s.Editable() {
		return ErrLocked
	}
	if _, ok := s.Entries[studentID]; !ok {
		return ErrStudentNotInRoster
	}
	s.Entries[studentID] = Entry{Status: status, Filled: true}
	return nil
}

// SetScore records a student's exam score in the buffer. An empty raw value
// clears the slot back to blank. Out-of-range scores are accepted into the
// buffer but flagged by InvalidStudents, which blocks commit until corrected.
// PRE: session kind is exam, raw contains digits only (or is empty)
// POST: buffer updated, or ErrLocked / ErrStudentNotInRoster / parse error
func (s *Session) SetScore(studentID, raw string) error {
	if s.Kind != KindExam {
		return errors.New("scores are only valid for exam sessions")
	}
	if !s.Editable() {
		return ErrLocked
	}
	e, ok := s.Entries[studentID]
	if !ok {
		return ErrStudentNotInRoster
	}
	if raw == "" {
		s.Entries[studentID] = Entry{}
		return nil
	}
	score, err := parseScore(raw)
	if err != nil {
		return err
	}
	e.Score = score
	e.Filled = true
	e.Status = ""
	s.Entries[studentID] = e
	return nil
}

// SetMetadata updates the working exam metadata while editable.
// PRE: session is Draft or Unlocked
// POST: metadata replaced, or ErrLocked
func (s *Session) SetMetadata(meta Metadata) error {
	if !s.Editable() {
		return ErrLocked
	}
	s.Metadata = meta
	return nil
}

// Unlock transitions a Locked session to Unlocked, which edits like a
// Draft except that a subsequent commit is known to be an update. Callers
// must gather explicit user confirmation first: historical records should
// never be overwritten by passive re-navigation to the same date.
// PRE: Status is Locked
// POST: Status is Unlocked, or ErrNotLocked
func (s *Session) Unlock() error {
	if s.Status != StatusLocked {
		return ErrNotLocked
	}
	s.Status = StatusUnlocked
	return nil
}

// InvalidStudents returns the roster-ordered student IDs whose buffered
// entries violate the kind's per-entry rules (e.g. score above max).
// PRE: none
// POST: returns possibly-empty slice; buffer is not mutated
func (s *Session) InvalidStudents() []string {
	var bad []string
	for _, st := range s.Roster {
		if err := s.policy.ValidateEntry(s.Entries[st.ID], s.Metadata); err != nil {
			bad = append(bad, st.ID)
		}
	}
	return bad
}

// ValidateCommit checks whether the buffer may be committed as a whole.
// Runs before any write; a failure leaves the session state untouched.
// PRE: none
// POST: nil if the buffer satisfies the kind's commit rules
func (s *Session) ValidateCommit() error {
	return s.policy.ValidateCommit(s.Entries, s.Metadata)
}

// MarkCommitted transitions the session to Locked after a successful write.
// PRE: commit write succeeded
// POST: Status is Locked, timestamps mirror the stored record
func (s *Session) MarkCommitted(createdAt, updatedAt time.Time) {
	s.Status = StatusLocked
	s.CreatedAt = createdAt
	s.UpdatedAt = updatedAt
}

// ToRecord snapshots the buffer into a Record ready for upsert. Entries for
// students outside the current roster are excluded; merging previously
// committed entries for departed students is the committer's concern.
// PRE: ValidateCommit returned nil
// POST: returns a Record carrying the whole buffer as one unit
func (s *Session) ToRecord() Record {
	entries := make(map[string]Entry, len(s.Roster))
	filled := 0
	for _, st := range s.Roster {
		e := s.Entries[st.ID]
		switch s.Kind {
		case KindAttendance:
			entries[st.ID] = e
			filled++
		case KindExam:
			if e.Filled {
				entries[st.ID] = e
				filled++
			}
		}
	}
	return Record{
		Key:          s.Key,
		Kind:         s.Kind,
		TeacherID:    s.TeacherID,
		Entries:      entries,
		Metadata:     s.Metadata,
		StudentCount: filled,
	}
}

// parseScore converts a digits-only string to a non-negative score.
func parseScore(raw string) (int, error) {
	score := 0
	for _, r := range raw {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("score must contain digits only, got %q", raw)
		}
		score = score*10 + int(r-'0')
		if score > 1000000 {
			return 0, fmt.Errorf("score %q is out of range", raw)
		}
	}
	return score, nil
}
