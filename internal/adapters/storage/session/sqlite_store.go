package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"classledger/internal/adapters/storage"
	domain "classledger/internal/domain/session"
)

// SQLiteStore implements Store over the attendance_session and exam_session
// tables. The two tables share the (class_id, subject, date) uniqueness rule;
// entries are written as a single JSON column so a commit replaces the whole
// map atomically.
type SQLiteStore struct {
	db  storage.SQLDB
	now func() time.Time
}

// NewSQLiteStore creates a new session Store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db, now: time.Now}
}

// GetByKey retrieves the record at a (class, subject, date) key.
// PRE: key is valid, kind is known
// POST: Returns the record, or ErrNotFound if no record exists at the key
func (s *SQLiteStore) GetByKey(ctx context.Context, kind domain.Kind, key domain.Key) (domain.Record, error) {
	date := domain.FormatLedgerDate(key.Date)

	switch kind {
	case domain.KindAttendance:
		row := s.db.QueryRowContext(ctx,
			"SELECT id, teacher_id, records, created_at, updated_at FROM attendance_session WHERE class_id = ? AND subject = ? AND date = ?",
			key.ClassID, key.Subject, date)
		return s.scanAttendance(row, key)
	case domain.KindExam:
		row := s.db.QueryRowContext(ctx,
			"SELECT id, teacher_id, exam_title, max_score, results, student_count, created_at, updated_at FROM exam_session WHERE class_id = ? AND subject = ? AND date = ?",
			key.ClassID, key.Subject, date)
		return s.scanExam(row, key)
	default:
		return domain.Record{}, domain.ErrUnknownKind
	}
}

// Upsert commits a record at its key: inserts when the key is vacant,
// otherwise updates the existing row in place.
// PRE: record has been validated
// POST: record is persisted; the returned copy carries the stored ID and
// timestamps
// INVARIANT: created_at and exam metadata are written once and never updated
func (s *SQLiteStore) Upsert(ctx context.Context, record domain.Record) (domain.Record, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Record{}, err
	}
	defer tx.Rollback()

	date := domain.FormatLedgerDate(record.Key.Date)
	now := s.now().UTC()

	var table string
	switch record.Kind {
	case domain.KindAttendance:
		table = "attendance_session"
	case domain.KindExam:
		table = "exam_session"
	default:
		return domain.Record{}, domain.ErrUnknownKind
	}

	var existingID, existingCreated string
	err = tx.QueryRowContext(ctx,
		fmt.Sprintf("SELECT id, created_at FROM %s WHERE class_id = ? AND subject = ? AND date = ?", table),
		record.Key.ClassID, record.Key.Subject, date,
	).Scan(&existingID, &existingCreated)
	if err != nil && err != sql.ErrNoRows {
		return domain.Record{}, err
	}

	entriesJSON, err := encodeEntries(record.Kind, record.Entries)
	if err != nil {
		return domain.Record{}, err
	}

	if existingID == "" {
		record.ID = uuid.New().String()
		record.CreatedAt = now
		record.UpdatedAt = now
		if record.Kind == domain.KindAttendance {
			_, err = tx.ExecContext(ctx,
				"INSERT INTO attendance_session (id, class_id, subject, date, teacher_id, records, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
				record.ID, record.Key.ClassID, record.Key.Subject, date,
				record.TeacherID, entriesJSON,
				now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano))
		} else {
			_, err = tx.ExecContext(ctx,
				"INSERT INTO exam_session (id, class_id, subject, date, exam_title, max_score, teacher_id, results, student_count, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
				record.ID, record.Key.ClassID, record.Key.Subject, date,
				record.Metadata.ExamTitle, record.Metadata.MaxScore,
				record.TeacherID, entriesJSON, record.StudentCount,
				now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano))
		}
		if err != nil {
			return domain.Record{}, err
		}
		return record, tx.Commit()
	}

	record.ID = existingID
	record.CreatedAt, err = parseStoredTime(existingCreated)
	if err != nil {
		return domain.Record{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	record.UpdatedAt = now

	if record.Kind == domain.KindAttendance {
		_, err = tx.ExecContext(ctx,
			"UPDATE attendance_session SET records = ?, updated_at = ? WHERE id = ?",
			entriesJSON, now.Format(time.RFC3339Nano), existingID)
	} else {
		_, err = tx.ExecContext(ctx,
			"UPDATE exam_session SET results = ?, student_count = ?, updated_at = ? WHERE id = ?",
			entriesJSON, record.StudentCount, now.Format(time.RFC3339Nano), existingID)
	}
	if err != nil {
		return domain.Record{}, err
	}
	return record, tx.Commit()
}

// ListDates returns the distinct committed dates for a (class, subject) pair,
// in chronological order.
// PRE: classID and subject are non-empty
// POST: Returns committed dates at day precision
func (s *SQLiteStore) ListDates(ctx context.Context, kind domain.Kind, classID string, subject string) ([]time.Time, error) {
	var table string
	switch kind {
	case domain.KindAttendance:
		table = "attendance_session"
	case domain.KindExam:
		table = "exam_session"
	default:
		return nil, domain.ErrUnknownKind
	}

	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf("SELECT date FROM %s WHERE class_id = ? AND subject = ?", table),
		classID, subject)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dates []time.Time
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		d, err := domain.ParseLedgerDate(raw)
		if err != nil {
			return nil, err
		}
		dates = append(dates, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Date strings are DD/MM/YYYY so lexical ORDER BY would misorder them.
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates, nil
}

func (s *SQLiteStore) scanAttendance(row *sql.Row, key domain.Key) (domain.Record, error) {
	var rec domain.Record
	var recordsJSON, createdStr, updatedStr string
	err := row.Scan(&rec.ID, &rec.TeacherID, &recordsJSON, &createdStr, &updatedStr)
	if err == sql.ErrNoRows {
		return domain.Record{}, ErrNotFound
	}
	if err != nil {
		return domain.Record{}, err
	}

	rec.Key = key
	rec.Kind = domain.KindAttendance
	var statuses map[string]string
	if err := json.Unmarshal([]byte(recordsJSON), &statuses); err != nil {
		return domain.Record{}, fmt.Errorf("failed to decode attendance records: %w", err)
	}
	rec.Entries = make(map[string]domain.Entry, len(statuses))
	for id, status := range statuses {
		rec.Entries[id] = domain.Entry{Status: status, Filled: true}
	}
	rec.StudentCount = len(statuses)

	if rec.CreatedAt, err = parseStoredTime(createdStr); err != nil {
		return domain.Record{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if rec.UpdatedAt, err = parseStoredTime(updatedStr); err != nil {
		return domain.Record{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return rec, nil
}

func (s *SQLiteStore) scanExam(row *sql.Row, key domain.Key) (domain.Record, error) {
	var rec domain.Record
	var resultsJSON, createdStr, updatedStr string
	err := row.Scan(&rec.ID, &rec.TeacherID, &rec.Metadata.ExamTitle, &rec.Metadata.MaxScore,
		&resultsJSON, &rec.StudentCount, &createdStr, &updatedStr)
	if err == sql.ErrNoRows {
		return domain.Record{}, ErrNotFound
	}
	if err != nil {
		return domain.Record{}, err
	}

	rec.Key = key
	rec.Kind = domain.KindExam
	var scores map[string]int
	if err := json.Unmarshal([]byte(resultsJSON), &scores); err != nil {
		return domain.Record{}, fmt.Errorf("failed to decode exam results: %w", err)
	}
	rec.Entries = make(map[string]domain.Entry, len(scores))
	for id, score := range scores {
		rec.Entries[id] = domain.Entry{Score: score, Filled: true}
	}

	if rec.CreatedAt, err = parseStoredTime(createdStr); err != nil {
		return domain.Record{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if rec.UpdatedAt, err = parseStoredTime(updatedStr); err != nil {
		return domain.Record{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return rec, nil
}

// encodeEntries flattens the entries map for the kind's JSON column:
// attendance rows store a status per student, exam rows a score per student.
// Blank exam entries are dropped rather than stored as zeros.
func encodeEntries(kind domain.Kind, entries map[string]domain.Entry) (string, error) {
	var payload any
	switch kind {
	case domain.KindAttendance:
		statuses := make(map[string]string, len(entries))
		for id, e := range entries {
			statuses[id] = e.Status
		}
		payload = statuses
	case domain.KindExam:
		scores := make(map[string]int, len(entries))
		for id, e := range entries {
			if e.Filled {
				scores[id] = e.Score
			}
		}
		payload = scores
	default:
		return "", domain.ErrUnknownKind
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func parseStoredTime(value string) (time.Time, error) {
	if idx := strings.Index(value, " m="); idx != -1 {
		value = value[:idx]
	}
	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05.999999999 -0700 MST",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
	}
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported time format: %q", value)
}
