// Package progression implements the student advancement engine: week
// unlocking, idempotent quiz submissions and scoring, XP and streak
// bookkeeping, and the once-per-day mission tasks.
package progression

import (
	"time"

	"github.com/classquest/classquest/internal/content"
)

// Progress is the per-student, per-course progress document. It is mutated
// only through engine operations, always inside a store transaction.
type Progress struct {
	StudentID       string               `json:"student_id"`
	CourseID        string               `json:"course_id"`
	CurrentWeek     int                  `json:"current_week"`
	CompletedWeeks  []int                `json:"completed_weeks"`
	OverallProgress int                  `json:"overall_progress"`
	WeeklyProgress  map[int]WeekProgress `json:"weekly_progress"`
	TotalPoints     float64              `json:"total_points"`
	EnrolledAt      time.Time            `json:"enrolled_at"`
}

// WeekProgress is per-week detail inside a progress document.
type WeekProgress struct {
	VideoWatched             bool      `json:"video_watched"`
	AssignmentCompleted      bool      `json:"assignment_completed"`
	AssignmentScore          int       `json:"assignment_score"`
	AssignmentSubmittedAt    time.Time `json:"assignment_submitted_at,omitzero"`
	DailyChallengesCompleted []int     `json:"daily_challenges_completed,omitempty"`
	TotalDailyPoints         float64   `json:"total_daily_points"`
}

// NewProgress returns the initial progress state created on enrollment.
func NewProgress(studentID, courseID string, now time.Time) Progress {
	return Progress{
		StudentID:      studentID,
		CourseID:       courseID,
		CurrentWeek:    1,
		CompletedWeeks: []int{},
		WeeklyProgress: map[int]WeekProgress{},
		EnrolledAt:     now,
	}
}

// Completed reports whether the week has a recorded graded submission.
func (p *Progress) Completed(weekNumber int) bool {
	for _, w := range p.CompletedWeeks {
		if w == weekNumber {
			return true
		}
	}
	return false
}

// CanAccessWeek applies the unlock rule: completed weeks are always
// revisitable; otherwise the week must be within the current-week pointer and
// the teacher must have published content for it. The returned error
// distinguishes the two denial reasons.
func (p *Progress) CanAccessWeek(weekNumber int, published bool) error {
	if p.Completed(weekNumber) {
		return nil
	}
	if weekNumber > p.CurrentWeek {
		return ErrProgressGated
	}
	if !published {
		return ErrContentNotReady
	}
	return nil
}

// Answer is one answered (or timed-out) question in a quiz submission
// payload. Exactly one of SelectedOption or SelectedText is meaningful,
// matching the question type.
type Answer struct {
	QuestionID     string `json:"question_id"`
	SelectedOption *int   `json:"selected_option,omitempty"`
	SelectedText   string `json:"selected_text,omitempty"`
	TimedOut       bool   `json:"timed_out,omitempty"`
}

// Timing is the client-reported quiz timing.
type Timing struct {
	StartedAt        time.Time `json:"started_at"`
	CompletedAt      time.Time `json:"completed_at"`
	TimeTakenSeconds int       `json:"time_taken_seconds"`
}

// Submission is the immutable graded record of a quiz, at most one per
// (student, course, week).
type Submission struct {
	StudentID        string         `json:"student_id"`
	CourseID         string         `json:"course_id"`
	WeekNumber       int            `json:"week_number"`
	TotalQuestions   int            `json:"total_questions"`
	CorrectAnswers   int            `json:"correct_answers"`
	TotalPoints      float64        `json:"total_points"`
	PointsEarned     float64        `json:"points_earned"`
	XPAwarded        int            `json:"xp_awarded"`
	ScorePercentage  int            `json:"score_percentage"`
	TimeTakenSeconds int            `json:"time_taken_seconds"`
	StartedAt        time.Time      `json:"started_at,omitzero"`
	CompletedAt      time.Time      `json:"completed_at"`
	Answers          []AnswerRecord `json:"answers"`
}

// AnswerRecord is the graded form of one answer, stored in question order.
type AnswerRecord struct {
	QuestionID     string  `json:"question_id"`
	SelectedOption *int    `json:"selected_option,omitempty"`
	SelectedText   string  `json:"selected_text,omitempty"`
	Correct        bool    `json:"is_correct"`
	TimedOut       bool    `json:"timed_out,omitempty"`
	PointsAwarded  float64 `json:"points_awarded"`
}

// TaskType names the three daily mission slots.
type TaskType string

const (
	TaskLogin    TaskType = "login"
	TaskQuestion TaskType = "question"
	TaskFocus    TaskType = "focus"
)

// TaskPayload carries the inputs for question and focus tasks. Login needs
// no payload.
type TaskPayload struct {
	SelectedOption *int    `json:"selected_option,omitempty"`
	AnswerText     *string `json:"answer,omitempty"`
	Reflection     string  `json:"reflection,omitempty"`
}

// MissionSlot is one task slot in a daily mission record. XPAwarded is zero
// until first completion and fixed thereafter.
type MissionSlot struct {
	Completed   bool      `json:"completed"`
	XPAwarded   int       `json:"xp_awarded"`
	CompletedAt time.Time `json:"completed_at,omitzero"`
	Correct     *bool     `json:"correct,omitempty"`
}

// MissionRecord is the per-student, per-day mission document.
type MissionRecord struct {
	StudentID string      `json:"student_id"`
	DateKey   string      `json:"date_key"`
	Login     MissionSlot `json:"login"`
	Question  MissionSlot `json:"question"`
	Focus     MissionSlot `json:"focus"`
}

func (m *MissionRecord) slot(task TaskType) *MissionSlot {
	switch task {
	case TaskLogin:
		return &m.Login
	case TaskQuestion:
		return &m.Question
	case TaskFocus:
		return &m.Focus
	}
	return nil
}

// DailyQuestion is the deterministically selected practice question for one
// student on one day.
type DailyQuestion struct {
	CourseID    string           `json:"course_id"`
	CourseTitle string           `json:"course_title"`
	WeekNumber  int              `json:"week_number"`
	Question    content.Question `json:"question"`
}

// WeekStatus summarizes one week of a course for the student-facing view.
type WeekStatus struct {
	WeekNumber int    `json:"week_number"`
	Topic      string `json:"topic,omitempty"`
	Published  bool   `json:"published"`
	Completed  bool   `json:"completed"`
	Accessible bool   `json:"accessible"`
	Reason     string `json:"reason,omitempty"`
	Score      int    `json:"score,omitempty"`
}

// DateKey formats a time as the engine's calendar-day key. All "today"
// decisions use UTC so streaks and missions roll over at one consistent
// instant for everyone.
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
