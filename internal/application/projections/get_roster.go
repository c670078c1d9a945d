package projections

import (
	"context"
	"errors"

	"classledger/internal/domain/roster"
)

// GetRosterQuery carries query parameters.
type GetRosterQuery struct {
	ClassID string
}

// GetRosterResult carries the query result, ordered by student name.
type GetRosterResult struct {
	Students []roster.Student
}

// GetRosterDeps holds dependencies for GetRoster.
type GetRosterDeps struct {
	RosterStore RosterStore
}

// QueryGetRoster retrieves the roster of a class.
// PRE: ClassID is non-empty
// POST: Returns the class's students ordered by name
func QueryGetRoster(ctx context.Context, query GetRosterQuery, deps GetRosterDeps) (GetRosterResult, error) {
	if query.ClassID == "" {
		return GetRosterResult{}, errors.New("class is required")
	}
	students, err := deps.RosterStore.ListByClass(ctx, query.ClassID)
	if err != nil {
		return GetRosterResult{}, err
	}
	if students == nil {
		students = []roster.Student{}
	}
	roster.SortByName(students)
	return GetRosterResult{Students: students}, nil
}
