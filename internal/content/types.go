// Package content holds course and weekly-content records: the read side the
// progression engine checks week readiness and question banks against.
package content

import "time"

// QuestionType distinguishes scoring rules for quiz questions.
type QuestionType string

const (
	MultipleChoice QuestionType = "mcq"
	ShortAnswer    QuestionType = "short_answer"
)

// Course is the course document created from syllabus analysis.
type Course struct {
	ID               string        `json:"id"`
	Details          CourseDetails `json:"course_details"`
	TeacherName      string        `json:"teacher_name"`
	CreatedBy        string        `json:"created_by"`
	CreatedAt        time.Time     `json:"created_at"`
	Code             string        `json:"course_code"`
	EnrolledStudents []string      `json:"enrolled_students"`
	MaxStudents      int           `json:"max_students"`
}

// CourseDetails holds the syllabus-level facts about a course.
type CourseDetails struct {
	Title         string `json:"course_title"`
	Subject       string `json:"subject"`
	GradeLevel    string `json:"grade_level"`
	DurationWeeks int    `json:"duration_weeks"`
	SchoolYear    string `json:"school_year"`
}

// IsEnrolled reports whether the student appears on the course roster.
func (c *Course) IsEnrolled(studentID string) bool {
	for _, s := range c.EnrolledStudents {
		if s == studentID {
			return true
		}
	}
	return false
}

// WeekContent is one week's teaching material and assignment.
type WeekContent struct {
	WeekNumber      int              `json:"week_number"`
	Topic           string           `json:"topic"`
	Description     string           `json:"description"`
	Video           VideoContent     `json:"video"`
	StudyContent    StudyContent     `json:"study_content"`
	Assignment      Assignment       `json:"weekly_assignment"`
	DailyChallenges []DailyChallenge `json:"daily_challenges"`
	DueDate         string           `json:"due_date"`
}

// VideoContent tracks the week's lesson video upload.
type VideoContent struct {
	Uploaded        bool   `json:"uploaded"`
	URL             string `json:"video_url,omitempty"`
	DurationSeconds int    `json:"video_duration,omitempty"`
}

// StudyContent tracks whether generated study material exists for the week.
type StudyContent struct {
	Created bool `json:"created"`
}

// Assignment is the week's quiz: the question bank students are graded on.
type Assignment struct {
	Created          bool       `json:"created"`
	Questions        []Question `json:"questions,omitempty"`
	TotalPoints      float64    `json:"total_points,omitempty"`
	TimeLimitSeconds int        `json:"time_limit,omitempty"`
}

// Question is a single quiz question. Exactly one of CorrectOption or
// CorrectText is meaningful, depending on Type.
type Question struct {
	ID            string       `json:"id"`
	Prompt        string       `json:"question"`
	Type          QuestionType `json:"type"`
	Options       []string     `json:"options,omitempty"`
	CorrectOption *int         `json:"correct_option,omitempty"`
	CorrectText   string       `json:"correct_text,omitempty"`
	Points        *float64     `json:"points,omitempty"`
	Explanation   string       `json:"explanation,omitempty"`
}

// DailyChallenge is a short once-per-day practice question attached to a week.
type DailyChallenge struct {
	Day           int          `json:"day"`
	Prompt        string       `json:"question"`
	Type          QuestionType `json:"type"`
	Options       []string     `json:"options,omitempty"`
	CorrectOption *int         `json:"correct_option,omitempty"`
	CorrectText   string       `json:"correct_text,omitempty"`
	Points        float64      `json:"points"`
}

// Published reports whether the teacher has made any of the week's material
// available: study content, an assignment, or an uploaded video. Unpublished
// weeks are never accessible to students regardless of progress.
func (w *WeekContent) Published() bool {
	return w.StudyContent.Created || w.Assignment.Created || w.Video.Uploaded
}

// HasQuestions reports whether the week has a usable question bank.
func (w *WeekContent) HasQuestions() bool {
	return w.Assignment.Created && len(w.Assignment.Questions) > 0
}
