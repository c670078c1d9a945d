package classroom

import (
	"context"

	domain "classledger/internal/domain/classroom"
)

// Store persists Class and Assignment state.
type Store interface {
	GetClass(ctx context.Context, id string) (domain.Class, error)
	SaveClass(ctx context.Context, value domain.Class) error
	ListClasses(ctx context.Context) ([]domain.Class, error)
	SaveAssignment(ctx context.Context, value domain.Assignment) error
	ListAssignmentsByTeacher(ctx context.Context, teacherID string) ([]domain.Assignment, error)
	TeacherAssigned(ctx context.Context, teacherID string, classID string, subject string) (bool, error)
}
