package export_test

import (
	"testing"

	"github.com/classquest/classquest/internal/content"
	"github.com/classquest/classquest/internal/export"
	"github.com/classquest/classquest/internal/identity"
	"github.com/classquest/classquest/internal/progression"
)

func TestGradebook(t *testing.T) {
	course := &content.Course{
		ID:               "c1",
		Details:          content.CourseDetails{Title: "Fractions", DurationWeeks: 3},
		EnrolledStudents: []string{"s1", "s2"},
	}
	subs := []progression.Submission{
		{StudentID: "s1", CourseID: "c1", WeekNumber: 1, ScorePercentage: 100, XPAwarded: 50},
		{StudentID: "s1", CourseID: "c1", WeekNumber: 2, ScorePercentage: 60, XPAwarded: 30},
		{StudentID: "s2", CourseID: "c1", WeekNumber: 1, ScorePercentage: 80, XPAwarded: 40},
	}
	profiles := map[string]identity.Profile{
		"s1": {ID: "s1", DisplayName: "Ada"},
	}

	f, err := export.Gradebook(course, subs, profiles)
	if err != nil {
		t.Fatalf("Gradebook() error = %v", err)
	}

	rows, err := f.GetRows("Gradebook")
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("row count = %d, want header + 2 students", len(rows))
	}
	if rows[0][0] != "Student" || rows[0][2] != "Week 1 (%)" {
		t.Errorf("header = %v", rows[0])
	}
	if rows[1][0] != "s1" || rows[1][1] != "Ada" || rows[1][2] != "100" || rows[1][3] != "60" {
		t.Errorf("s1 row = %v", rows[1])
	}
	// s2 has no week 2 submission: empty cell, not zero.
	if rows[2][0] != "s2" || rows[2][2] != "80" {
		t.Errorf("s2 row = %v", rows[2])
	}
	if len(rows[2]) > 3 && rows[2][3] == "0" {
		t.Errorf("s2 week 2 cell = %q, want empty", rows[2][3])
	}
}
