package progression

import "errors"

// Denial and failure reasons surfaced to callers. Precondition errors are
// distinguishable so the caller can render an accurate message; duplicate
// submissions and already-awarded tasks are not errors at all, those
// operations return the stored state.
var (
	// ErrProgressGated means the week is beyond the student's current-week
	// pointer, even if its content is published.
	ErrProgressGated = errors.New("progress-gated")

	// ErrContentNotReady means the teacher has not published any content for
	// the week.
	ErrContentNotReady = errors.New("content-not-ready")

	// ErrQuizUnavailable means the week has no question bank to grade against.
	ErrQuizUnavailable = errors.New("quiz-unavailable")

	// ErrNotEnrolled means the student has no enrollment (and therefore no
	// progress record) for the course.
	ErrNotEnrolled = errors.New("not enrolled in course")

	// ErrInvalidInput wraps validation failures rejected before any write.
	ErrInvalidInput = errors.New("invalid input")
)
