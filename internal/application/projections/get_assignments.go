package projections

import (
	"context"
	"errors"
)

// GetAssignmentsQuery carries query parameters.
type GetAssignmentsQuery struct {
	TeacherID string
}

// ClassAssignments groups a teacher's subjects under one class, in the order
// a cascading class-then-subject picker presents them.
type ClassAssignments struct {
	ClassID   string
	ClassName string
	Subjects  []string
}

// GetAssignmentsResult carries the query result.
type GetAssignmentsResult struct {
	Classes []ClassAssignments
}

// GetAssignmentsDeps holds dependencies for GetAssignments.
type GetAssignmentsDeps struct {
	ClassroomStore ClassroomStore
}

// QueryGetAssignments retrieves a teacher's subject assignments grouped by
// class. Classes appear in name order, subjects in the store's order.
// PRE: TeacherID is non-empty
// POST: Returns only classes where the teacher holds at least one subject
func QueryGetAssignments(ctx context.Context, query GetAssignmentsQuery, deps GetAssignmentsDeps) (GetAssignmentsResult, error) {
	if query.TeacherID == "" {
		return GetAssignmentsResult{}, errors.New("teacher is required")
	}

	assignments, err := deps.ClassroomStore.ListAssignmentsByTeacher(ctx, query.TeacherID)
	if err != nil {
		return GetAssignmentsResult{}, err
	}
	classes, err := deps.ClassroomStore.ListClasses(ctx)
	if err != nil {
		return GetAssignmentsResult{}, err
	}

	names := make(map[string]string, len(classes))
	for _, c := range classes {
		names[c.ID] = c.Name
	}

	// Assignments arrive ordered by class name then subject; group while
	// preserving that order.
	grouped := []ClassAssignments{}
	index := map[string]int{}
	for _, a := range assignments {
		i, ok := index[a.ClassID]
		if !ok {
			i = len(grouped)
			index[a.ClassID] = i
			grouped = append(grouped, ClassAssignments{
				ClassID:   a.ClassID,
				ClassName: names[a.ClassID],
			})
		}
		grouped[i].Subjects = append(grouped[i].Subjects, a.Subject)
	}

	return GetAssignmentsResult{Classes: grouped}, nil
}
