package roster

import (
	"errors"
	"sort"
	"strings"
)

// Max length constants for user-editable fields.
const (
	MaxNameLength = 100
)

// Student is the ledger's read-only projection of an enrolled student.
// The ledger never mutates roster data; it treats the roster as a pure
// function of the class at load time.
type Student struct {
	ID        string
	Name      string
	ClassID   string
	AvatarURL string
}

// Validate checks if the Student has valid data.
// PRE: Student struct is initialized
// POST: Returns error if validation fails, nil otherwise
// INVARIANT: Name and ClassID must not be empty
func (s *Student) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return errors.New("student name cannot be empty")
	}
	if len(s.Name) > MaxNameLength {
		return errors.New("student name cannot exceed 100 characters")
	}
	if s.ClassID == "" {
		return errors.New("student must belong to a class")
	}
	return nil
}

// SortByName orders a roster by display name, then by ID for stability.
// PRE: none
// POST: students is sorted in place
func SortByName(students []Student) {
	sort.Slice(students, func(i, j int) bool {
		if students[i].Name != students[j].Name {
			return students[i].Name < students[j].Name
		}
		return students[i].ID < students[j].ID
	})
}
