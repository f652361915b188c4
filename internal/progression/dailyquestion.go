package progression

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/classquest/classquest/internal/content"
)

// hashPick hashes the parts with FNV-1a and maps the digest onto [0, n).
// Each selection level passes a distinct salt so course, week, and question
// picks do not fall into correlated cycles.
func hashPick(n int, parts ...string) int {
	h := fnv.New64a()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return int(h.Sum64() % uint64(n))
}

// SelectDailyQuestion picks the student's practice question for the day. It
// is a pure function of the enrolled course set and the date key: concurrent
// calls on the same day agree without any stored "already selected" state.
// Returns nil when the student has no course with a published question bank.
func (e *Engine) SelectDailyQuestion(ctx context.Context, studentID, dateKey string) (*DailyQuestion, error) {
	courses, err := e.content.StudentCourses(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("select daily question: %w", err)
	}

	// Keep only courses with at least one week holding questions, with their
	// eligible weeks in week order (StudentCourses is already ID-ordered).
	type eligible struct {
		course content.Course
		weeks  []content.WeekContent
	}
	var pool []eligible
	for _, c := range courses {
		weeks, err := e.content.CourseWeeks(ctx, c.ID)
		if err != nil {
			return nil, fmt.Errorf("select daily question: %w", err)
		}
		var withQuestions []content.WeekContent
		for _, w := range weeks {
			if w.HasQuestions() {
				withQuestions = append(withQuestions, w)
			}
		}
		if len(withQuestions) > 0 {
			pool = append(pool, eligible{course: c, weeks: withQuestions})
		}
	}
	if len(pool) == 0 {
		return nil, nil
	}

	pick := pool[hashPick(len(pool), studentID, dateKey, "course")]
	week := pick.weeks[hashPick(len(pick.weeks), studentID, dateKey, pick.course.ID, "week")]
	qs := week.Assignment.Questions
	q := qs[hashPick(len(qs), studentID, dateKey, pick.course.ID, fmt.Sprint(week.WeekNumber), "question")]

	return &DailyQuestion{
		CourseID:    pick.course.ID,
		CourseTitle: pick.course.Details.Title,
		WeekNumber:  week.WeekNumber,
		Question:    q,
	}, nil
}
