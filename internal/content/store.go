package content

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/classquest/classquest/internal/platform/docstore"
)

const (
	coursesCollection     = "courses"
	weeksCollection       = "weeks"
	courseCodesCollection = "course_codes"
)

// ErrCourseFull is returned when enrollment would exceed the course roster cap.
var ErrCourseFull = errors.New("course is full")

// ErrNotFound is returned when a course or week does not exist.
var ErrNotFound = errors.New("not found")

// Store persists courses and weekly content in the document store.
type Store struct {
	docs docstore.Store
}

// NewStore creates a content store over the given document store.
func NewStore(docs docstore.Store) *Store {
	return &Store{docs: docs}
}

func weekKey(courseID string, weekNumber int) string {
	return fmt.Sprintf("%s/%04d", courseID, weekNumber)
}

// CreateCourse stores a new course and its weeks, assigning an ID and a unique
// course code. Weeks beyond the course duration are rejected.
func (s *Store) CreateCourse(ctx context.Context, course Course, weeks []WeekContent) (string, error) {
	if course.Details.Title == "" {
		return "", fmt.Errorf("course title is required")
	}
	if course.Details.DurationWeeks < 1 {
		return "", fmt.Errorf("course duration must be at least one week")
	}
	for _, w := range weeks {
		if w.WeekNumber < 1 || w.WeekNumber > course.Details.DurationWeeks {
			return "", fmt.Errorf("week %d outside course duration of %d weeks", w.WeekNumber, course.Details.DurationWeeks)
		}
	}

	course.ID = uuid.NewString()
	if course.CreatedAt.IsZero() {
		course.CreatedAt = time.Now().UTC()
	}
	if course.EnrolledStudents == nil {
		course.EnrolledStudents = []string{}
	}

	// Course codes must be unique; the conditional create on the code document
	// is the uniqueness check. Retry with a fresh random suffix on collision.
	for attempt := 0; ; attempt++ {
		course.Code = generateCourseCode(course.Details.Subject, course.Details.GradeLevel, course.Details.SchoolYear)
		claimed, err := s.docs.Create(ctx, courseCodesCollection, course.Code, map[string]string{"course_id": course.ID})
		if err != nil {
			return "", fmt.Errorf("claim course code: %w", err)
		}
		if claimed {
			break
		}
		if attempt == 4 {
			return "", fmt.Errorf("could not allocate a unique course code")
		}
	}

	if err := s.docs.Put(ctx, coursesCollection, course.ID, course); err != nil {
		return "", fmt.Errorf("store course: %w", err)
	}
	for _, w := range weeks {
		if err := s.docs.Put(ctx, weeksCollection, weekKey(course.ID, w.WeekNumber), w); err != nil {
			return "", fmt.Errorf("store week %d: %w", w.WeekNumber, err)
		}
	}
	return course.ID, nil
}

// Course returns a course by ID.
func (s *Store) Course(ctx context.Context, courseID string) (*Course, error) {
	var c Course
	if err := s.docs.Get(ctx, coursesCollection, courseID, &c); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, fmt.Errorf("course %s: %w", courseID, ErrNotFound)
		}
		return nil, fmt.Errorf("get course: %w", err)
	}
	return &c, nil
}

// CourseByCode resolves a course from its join code.
func (s *Store) CourseByCode(ctx context.Context, code string) (*Course, error) {
	var ref struct {
		CourseID string `json:"course_id"`
	}
	if err := s.docs.Get(ctx, courseCodesCollection, strings.ToUpper(code), &ref); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, fmt.Errorf("course code %s: %w", code, ErrNotFound)
		}
		return nil, fmt.Errorf("resolve course code: %w", err)
	}
	return s.Course(ctx, ref.CourseID)
}

// Week returns one week's content; ErrNotFound when the teacher has not
// created the week at all.
func (s *Store) Week(ctx context.Context, courseID string, weekNumber int) (*WeekContent, error) {
	var w WeekContent
	if err := s.docs.Get(ctx, weeksCollection, weekKey(courseID, weekNumber), &w); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, fmt.Errorf("course %s week %d: %w", courseID, weekNumber, ErrNotFound)
		}
		return nil, fmt.Errorf("get week: %w", err)
	}
	return &w, nil
}

// CourseWeeks returns all weeks of a course ordered by week number.
func (s *Store) CourseWeeks(ctx context.Context, courseID string) ([]WeekContent, error) {
	keys, err := s.docs.ListKeys(ctx, weeksCollection, courseID+"/")
	if err != nil {
		return nil, fmt.Errorf("list weeks: %w", err)
	}

	weeks := make([]WeekContent, 0, len(keys))
	for _, key := range keys {
		var w WeekContent
		if err := s.docs.Get(ctx, weeksCollection, key, &w); err != nil {
			return nil, fmt.Errorf("get week %s: %w", key, err)
		}
		weeks = append(weeks, w)
	}
	return weeks, nil
}

// UpdateWeek replaces one week's content.
func (s *Store) UpdateWeek(ctx context.Context, courseID string, week WeekContent) error {
	if week.WeekNumber < 1 {
		return fmt.Errorf("week number must be at least 1")
	}
	if err := s.docs.Put(ctx, weeksCollection, weekKey(courseID, week.WeekNumber), week); err != nil {
		return fmt.Errorf("update week %d: %w", week.WeekNumber, err)
	}
	return nil
}

// AddToRoster records the student on the course roster. Adding an already
// enrolled student is a no-op.
func (s *Store) AddToRoster(ctx context.Context, courseID, studentID string) error {
	return s.docs.RunTxn(ctx, func(tx docstore.Txn) error {
		var c Course
		if err := tx.Get(ctx, coursesCollection, courseID, &c); err != nil {
			if errors.Is(err, docstore.ErrNotFound) {
				return fmt.Errorf("course %s: %w", courseID, ErrNotFound)
			}
			return fmt.Errorf("get course: %w", err)
		}
		if c.IsEnrolled(studentID) {
			return nil
		}
		if c.MaxStudents > 0 && len(c.EnrolledStudents) >= c.MaxStudents {
			return fmt.Errorf("course %s: %w", courseID, ErrCourseFull)
		}
		c.EnrolledStudents = append(c.EnrolledStudents, studentID)
		return tx.Put(ctx, coursesCollection, courseID, c)
	})
}

// RemoveFromRoster takes the student off the course roster. Progress records
// are deliberately left in place so a re-enrolling student resumes where they
// stopped.
func (s *Store) RemoveFromRoster(ctx context.Context, courseID, studentID string) error {
	return s.docs.RunTxn(ctx, func(tx docstore.Txn) error {
		var c Course
		if err := tx.Get(ctx, coursesCollection, courseID, &c); err != nil {
			if errors.Is(err, docstore.ErrNotFound) {
				return fmt.Errorf("course %s: %w", courseID, ErrNotFound)
			}
			return fmt.Errorf("get course: %w", err)
		}
		kept := c.EnrolledStudents[:0]
		for _, id := range c.EnrolledStudents {
			if id != studentID {
				kept = append(kept, id)
			}
		}
		c.EnrolledStudents = kept
		return tx.Put(ctx, coursesCollection, courseID, c)
	})
}

// AllCourses returns every course, ordered by course ID for deterministic
// iteration.
func (s *Store) AllCourses(ctx context.Context) ([]Course, error) {
	keys, err := s.docs.ListKeys(ctx, coursesCollection, "")
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}

	courses := make([]Course, 0, len(keys))
	for _, key := range keys {
		var c Course
		if err := s.docs.Get(ctx, coursesCollection, key, &c); err != nil {
			return nil, fmt.Errorf("get course %s: %w", key, err)
		}
		courses = append(courses, c)
	}
	return courses, nil
}

// StudentCourses returns the courses a student is enrolled in, ordered by
// course ID for deterministic iteration.
func (s *Store) StudentCourses(ctx context.Context, studentID string) ([]Course, error) {
	all, err := s.AllCourses(ctx)
	if err != nil {
		return nil, err
	}

	var courses []Course
	for _, c := range all {
		if c.IsEnrolled(studentID) {
			courses = append(courses, c)
		}
	}
	return courses, nil
}

// generateCourseCode builds a join code like MATH524A7F: subject prefix,
// grade digits, school-year suffix, random tail.
func generateCourseCode(subject, gradeLevel, schoolYear string) string {
	prefix := strings.ToUpper(subject)
	prefix = strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' {
			return r
		}
		return -1
	}, prefix)
	if len(prefix) > 4 {
		prefix = prefix[:4]
	}
	if prefix == "" {
		prefix = "GEN"
	}

	grade := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, gradeLevel)
	if grade == "" {
		grade = "1"
	}

	year := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, schoolYear)
	if len(year) >= 4 {
		year = year[2:4]
	}

	b := make([]byte, 2)
	rand.Read(b)
	return fmt.Sprintf("%s%s%s%X", prefix, grade, year, b)
}
