package content_test

import (
	"testing"

	"github.com/classquest/classquest/internal/content"
)

const validCourseDoc = `{
  "id": "algebra-1-2025",
  "course": {
    "course_title": "Algebra I",
    "subject": "Mathematics",
    "grade_level": "8th Grade",
    "duration_weeks": 12,
    "school_year": "2025-2026"
  },
  "weeks": [
    {
      "week": 1,
      "topic": "Variables",
      "study_content": true,
      "assignment": {
        "total_points": 100,
        "questions": [
          {"id": "q1", "question": "What is 2x when x=3?", "type": "short_answer", "correct_text": "6"},
          {"id": "q2", "question": "Pick the variable", "type": "mcq", "options": ["3", "x", "+"], "correct_option": 1}
        ]
      }
    }
  ]
}`

func TestValidateImport_Valid(t *testing.T) {
	if err := content.ValidateImport([]byte(validCourseDoc)); err != nil {
		t.Errorf("ValidateImport() error = %v, want nil", err)
	}
}

func TestValidateImport_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not json", `not-json`},
		{"missing id", `{"course": {"course_title": "T", "subject": "S", "grade_level": "1", "duration_weeks": 4}, "weeks": []}`},
		{"zero duration", `{"id": "x", "course": {"course_title": "T", "subject": "S", "grade_level": "1", "duration_weeks": 0}, "weeks": []}`},
		{"mcq without options", `{"id": "x", "course": {"course_title": "T", "subject": "S", "grade_level": "1", "duration_weeks": 4}, "weeks": [
			{"week": 1, "topic": "A", "assignment": {"questions": [{"id": "q1", "question": "Q?", "type": "mcq"}]}}
		]}`},
		{"short answer without correct text", `{"id": "x", "course": {"course_title": "T", "subject": "S", "grade_level": "1", "duration_weeks": 4}, "weeks": [
			{"week": 1, "topic": "A", "assignment": {"questions": [{"id": "q1", "question": "Q?", "type": "short_answer"}]}}
		]}`},
		{"unknown question type", `{"id": "x", "course": {"course_title": "T", "subject": "S", "grade_level": "1", "duration_weeks": 4}, "weeks": [
			{"week": 1, "topic": "A", "assignment": {"questions": [{"id": "q1", "question": "Q?", "type": "essay"}]}}
		]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := content.ValidateImport([]byte(tt.doc)); err == nil {
				t.Error("ValidateImport() error = nil, want validation error")
			}
		})
	}
}

func TestParseImport_WeekOutsideDuration(t *testing.T) {
	doc := `{"id": "x", "course": {"course_title": "T", "subject": "S", "grade_level": "1", "duration_weeks": 2}, "weeks": [
		{"week": 5, "topic": "Too far"}
	]}`
	if _, err := content.ParseImport([]byte(doc)); err == nil {
		t.Error("ParseImport() error = nil, want week-out-of-range error")
	}
}

func TestParseImport_Valid(t *testing.T) {
	pack, err := content.ParseImport([]byte(validCourseDoc))
	if err != nil {
		t.Fatalf("ParseImport() error = %v", err)
	}
	if pack.ID != "algebra-1-2025" {
		t.Errorf("ID = %q, want algebra-1-2025", pack.ID)
	}
	if len(pack.Weeks) != 1 {
		t.Fatalf("Weeks count = %d, want 1", len(pack.Weeks))
	}
	if got := len(pack.Weeks[0].Assignment.Questions); got != 2 {
		t.Errorf("question count = %d, want 2", got)
	}
}
