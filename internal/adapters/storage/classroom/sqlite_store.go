package classroom

import (
	"context"
	"database/sql"
	"fmt"

	"classledger/internal/adapters/storage"
	domain "classledger/internal/domain/classroom"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new classroom Store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// GetClass retrieves a Class by its ID.
// PRE: id is non-empty
// POST: Returns the entity or an error if not found
func (s *SQLiteStore) GetClass(ctx context.Context, id string) (domain.Class, error) {
	row := s.db.QueryRowContext(ctx, "SELECT id, name FROM class WHERE id = ?", id)
	var entity domain.Class
	err := row.Scan(&entity.ID, &entity.Name)
	if err == sql.ErrNoRows {
		return domain.Class{}, fmt.Errorf("class not found: %w", err)
	}
	return entity, err
}

// SaveClass persists a Class to the database.
// PRE: entity has been validated
// POST: Entity is persisted (insert or update)
func (s *SQLiteStore) SaveClass(ctx context.Context, entity domain.Class) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO class (id, name) VALUES (?, ?) ON CONFLICT(id) DO UPDATE SET name=excluded.name",
		entity.ID, entity.Name,
	)
	return err
}

// ListClasses retrieves all classes, ordered by name.
func (s *SQLiteStore) ListClasses(ctx context.Context) ([]domain.Class, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name FROM class ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.Class
	for rows.Next() {
		var entity domain.Class
		if err := rows.Scan(&entity.ID, &entity.Name); err != nil {
			return nil, err
		}
		results = append(results, entity)
	}
	return results, rows.Err()
}

// SaveAssignment persists an Assignment to the database.
// PRE: entity has been validated
// POST: Entity is persisted (insert or update)
func (s *SQLiteStore) SaveAssignment(ctx context.Context, entity domain.Assignment) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO subject_assignment (id, teacher_id, class_id, subject) VALUES (?, ?, ?, ?) ON CONFLICT(teacher_id, class_id, subject) DO NOTHING",
		entity.ID, entity.TeacherID, entity.ClassID, entity.Subject,
	)
	return err
}

// ListAssignmentsByTeacher retrieves a teacher's subject assignments,
// ordered by class then subject.
// PRE: teacherID is non-empty
// POST: Returns assignments for the given teacher
func (s *SQLiteStore) ListAssignmentsByTeacher(ctx context.Context, teacherID string) ([]domain.Assignment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT a.id, a.teacher_id, a.class_id, a.subject
		FROM subject_assignment a
		JOIN class c ON c.id = a.class_id
		WHERE a.teacher_id = ?
		ORDER BY c.name, a.subject`, teacherID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.Assignment
	for rows.Next() {
		var entity domain.Assignment
		if err := rows.Scan(&entity.ID, &entity.TeacherID, &entity.ClassID, &entity.Subject); err != nil {
			return nil, err
		}
		results = append(results, entity)
	}
	return results, rows.Err()
}

// TeacherAssigned reports whether a teacher holds the given (class, subject)
// assignment. Used as the authorization check before loading or committing a
// session.
// PRE: all arguments are non-empty
// POST: Returns true only if a matching assignment row exists
func (s *SQLiteStore) TeacherAssigned(ctx context.Context, teacherID string, classID string, subject string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM subject_assignment WHERE teacher_id = ? AND class_id = ? AND subject = ?",
		teacherID, classID, subject).Scan(&count)
	return count > 0, err
}
