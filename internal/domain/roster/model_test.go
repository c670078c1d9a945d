package roster

import (
	"strings"
	"testing"
)

// TestStudent_Validate tests roster entry validation.
func TestStudent_Validate(t *testing.T) {
	valid := Student{ID: "s1", Name: "Aisha Khan", ClassID: "10A"}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid student, got: %v", err)
	}

	tests := []struct {
		name   string
		modify func(s *Student)
	}{
		{"empty name", func(s *Student) { s.Name = "  " }},
		{"name too long", func(s *Student) { s.Name = strings.Repeat("a", MaxNameLength+1) }},
		{"missing class", func(s *Student) { s.ClassID = "" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := valid
			tc.modify(&s)
			if err := s.Validate(); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

// TestSortByName orders by display name with ID as tiebreak.
func TestSortByName(t *testing.T) {
	students := []Student{
		{ID: "s3", Name: "Chloe Patel", ClassID: "10A"},
		{ID: "s1", Name: "Aisha Khan", ClassID: "10A"},
		{ID: "s4", Name: "Ben Carter", ClassID: "10A"},
		{ID: "s2", Name: "Ben Carter", ClassID: "10A"},
	}
	SortByName(students)

	wantIDs := []string{"s1", "s2", "s4", "s3"}
	for i, want := range wantIDs {
		if students[i].ID != want {
			t.Fatalf("position %d = %s, want %s (got order %v)", i, students[i].ID, want, students)
		}
	}
}
