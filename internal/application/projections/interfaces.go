package projections

import (
	"context"
	"time"

	domainClassroom "classledger/internal/domain/classroom"
	domainRoster "classledger/internal/domain/roster"
	domainSession "classledger/internal/domain/session"
)

// SessionDateStore interface for coverage queries.
type SessionDateStore interface {
	ListDates(ctx context.Context, kind domainSession.Kind, classID string, subject string) ([]time.Time, error)
}

// RosterStore interface for roster queries.
type RosterStore interface {
	ListByClass(ctx context.Context, classID string) ([]domainRoster.Student, error)
}

// ClassroomStore interface for class and assignment queries.
type ClassroomStore interface {
	ListClasses(ctx context.Context) ([]domainClassroom.Class, error)
	ListAssignmentsByTeacher(ctx context.Context, teacherID string) ([]domainClassroom.Assignment, error)
}
