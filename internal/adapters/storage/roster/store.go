package roster

import (
	"context"

	domain "classledger/internal/domain/roster"
)

// Store persists Student state.
type Store interface {
	GetByID(ctx context.Context, id string) (domain.Student, error)
	Save(ctx context.Context, value domain.Student) error
	ListByClass(ctx context.Context, classID string) ([]domain.Student, error)
	Count(ctx context.Context) (int, error)
}
