package classroom

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors
var (
	ErrEmptyName      = errors.New("class name cannot be empty")
	ErrEmptySubject   = errors.New("subject cannot be empty")
	ErrEmptyTeacherID = errors.New("teacher ID cannot be empty")
	ErrEmptyClassID   = errors.New("class ID cannot be empty")
)

// Max length constants.
const (
	MaxNameLength    = 100
	MaxSubjectLength = 100
)

// Class represents one class (standard) in the school, e.g. "10A".
type Class struct {
	ID   string
	Name string
}

// Validate checks if the Class has valid data.
// PRE: Class struct is populated
// POST: Returns nil if valid, error otherwise
func (c *Class) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if len(c.Name) > MaxNameLength {
		return fmt.Errorf("class name cannot exceed %d characters", MaxNameLength)
	}
	return nil
}

// Assignment links a teacher to one subject taught in one class. A teacher's
// assignments drive the cascading class -> subject selection in the client.
type Assignment struct {
	ID        string
	TeacherID string
	ClassID   string
	Subject   string
}

// Validate checks if the Assignment has valid data.
// PRE: Assignment struct is populated
// POST: Returns nil if valid, error otherwise
func (a *Assignment) Validate() error {
	if a.TeacherID == "" {
		return ErrEmptyTeacherID
	}
	if a.ClassID == "" {
		return ErrEmptyClassID
	}
	if strings.TrimSpace(a.Subject) == "" {
		return ErrEmptySubject
	}
	if len(a.Subject) > MaxSubjectLength {
		return fmt.Errorf("subject cannot exceed %d characters", MaxSubjectLength)
	}
	return nil
}
