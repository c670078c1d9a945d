package session

import (
	"context"
	"errors"
	"time"

	domain "classledger/internal/domain/session"
)

// ErrNotFound is returned when no record exists at the requested key.
var ErrNotFound = errors.New("session record not found")

// Store persists session Records keyed by (class, subject, date).
type Store interface {
	GetByKey(ctx context.Context, kind domain.Kind, key domain.Key) (domain.Record, error)
	Upsert(ctx context.Context, record domain.Record) (domain.Record, error)
	ListDates(ctx context.Context, kind domain.Kind, classID string, subject string) ([]time.Time, error)
}
