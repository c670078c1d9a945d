package roster

import (
	"context"
	"database/sql"
	"fmt"

	"classledger/internal/adapters/storage"
	domain "classledger/internal/domain/roster"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new roster Store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// GetByID retrieves a Student by its ID.
// PRE: id is non-empty
// POST: Returns the entity or an error if not found
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (domain.Student, error) {
	row := s.db.QueryRowContext(ctx, "SELECT id, name, class_id, avatar_url FROM student WHERE id = ?", id)
	var entity domain.Student
	var avatar sql.NullString
	err := row.Scan(&entity.ID, &entity.Name, &entity.ClassID, &avatar)
	if avatar.Valid {
		entity.AvatarURL = avatar.String
	}
	if err == sql.ErrNoRows {
		return domain.Student{}, fmt.Errorf("student not found: %w", err)
	}
	return entity, err
}

// Save persists a Student to the database.
// PRE: entity has been validated
// POST: Entity is persisted (insert or update)
func (s *SQLiteStore) Save(ctx context.Context, entity domain.Student) error {
	var avatar any
	if entity.AvatarURL != "" {
		avatar = entity.AvatarURL
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO student (id, name, class_id, avatar_url) VALUES (?, ?, ?, ?) ON CONFLICT(id) DO UPDATE SET name=excluded.name, class_id=excluded.class_id, avatar_url=excluded.avatar_url",
		entity.ID, entity.Name, entity.ClassID, avatar,
	)
	return err
}

// ListByClass retrieves the roster of a class, ordered by name.
// PRE: classID is non-empty
// POST: Returns students for the given class, name ascending
func (s *SQLiteStore) ListByClass(ctx context.Context, classID string) ([]domain.Student, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, class_id, avatar_url FROM student WHERE class_id = ? ORDER BY name, id", classID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.Student
	for rows.Next() {
		var entity domain.Student
		var avatar sql.NullString
		if err := rows.Scan(&entity.ID, &entity.Name, &entity.ClassID, &avatar); err != nil {
			return nil, err
		}
		if avatar.Valid {
			entity.AvatarURL = avatar.String
		}
		results = append(results, entity)
	}
	return results, rows.Err()
}

// Count returns the total number of students.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM student").Scan(&count)
	return count, err
}
