package progression

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/classquest/classquest/internal/content"
	"github.com/classquest/classquest/internal/identity"
	"github.com/classquest/classquest/internal/platform/docstore"
)

const (
	progressCollection    = "progress"
	submissionsCollection = "submissions"
	missionsCollection    = "missions"
)

func progressKey(studentID, courseID string) string {
	return studentID + "/" + courseID
}

func submissionKey(studentID, courseID string, weekNumber int) string {
	return fmt.Sprintf("%s/%s/%d", studentID, courseID, weekNumber)
}

func missionKey(studentID, dateKey string) string {
	return studentID + "/" + dateKey
}

// Rewards holds the XP tuning the engine awards with.
type Rewards struct {
	LoginXP               int
	QuestionXP            int
	QuestionBonusXP       int
	FocusXP               int
	XPPerCorrect          int
	DefaultQuestionPoints float64
}

// XPSink receives every XP award, keyed by student and (when the award came
// from course activity) course. Sinks feed leaderboards; a sink failure is
// logged, never surfaced, because the award itself already committed.
type XPSink interface {
	RecordXP(ctx context.Context, studentID, courseID string, amount float64) error
}

// EngineConfig holds dependencies for the progression engine.
type EngineConfig struct {
	Docs    docstore.Store
	Content *content.Store
	Rewards Rewards
	Sink    XPSink           // optional
	Clock   func() time.Time // defaults to time.Now
}

// Engine owns per-student progress records and every mutation of them.
type Engine struct {
	docs    docstore.Store
	content *content.Store
	rewards Rewards
	sink    XPSink
	clock   func() time.Time
}

// NewEngine creates a progression engine.
func NewEngine(cfg EngineConfig) *Engine {
	rewards := cfg.Rewards
	if rewards.LoginXP == 0 {
		rewards.LoginXP = 10
	}
	if rewards.QuestionXP == 0 {
		rewards.QuestionXP = 10
	}
	if rewards.QuestionBonusXP == 0 {
		rewards.QuestionBonusXP = 10
	}
	if rewards.FocusXP == 0 {
		rewards.FocusXP = 15
	}
	if rewards.XPPerCorrect == 0 {
		rewards.XPPerCorrect = 10
	}
	if rewards.DefaultQuestionPoints == 0 {
		rewards.DefaultQuestionPoints = 10
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Engine{
		docs:    cfg.Docs,
		content: cfg.Content,
		rewards: rewards,
		sink:    cfg.Sink,
		clock:   clock,
	}
}

// Enroll adds the student to the course roster and creates the progress
// record at week 1. Enrolling twice, or re-enrolling after removal, returns
// the surviving progress record: progress is preserved across re-enrollment.
func (e *Engine) Enroll(ctx context.Context, studentID, courseID string) (*Progress, error) {
	if studentID == "" || courseID == "" {
		return nil, fmt.Errorf("%w: student and course IDs are required", ErrInvalidInput)
	}
	if err := e.content.AddToRoster(ctx, courseID, studentID); err != nil {
		return nil, fmt.Errorf("enroll %s in %s: %w", studentID, courseID, err)
	}

	p := NewProgress(studentID, courseID, e.clock().UTC())
	key := progressKey(studentID, courseID)
	created, err := e.docs.Create(ctx, progressCollection, key, p)
	if err != nil {
		return nil, fmt.Errorf("create progress %s: %w", key, err)
	}
	if created {
		slog.Info("student enrolled", "student_id", studentID, "course_id", courseID)
		return &p, nil
	}
	return e.Progress(ctx, studentID, courseID)
}

// Progress returns the student's progress record for a course.
func (e *Engine) Progress(ctx context.Context, studentID, courseID string) (*Progress, error) {
	var p Progress
	key := progressKey(studentID, courseID)
	if err := e.docs.Get(ctx, progressCollection, key, &p); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, fmt.Errorf("progress %s: %w", key, ErrNotEnrolled)
		}
		return nil, fmt.Errorf("get progress %s: %w", key, err)
	}
	return &p, nil
}

// CourseStatus returns the student's progress plus a per-week accessibility
// summary covering every week of the course, published or not.
func (e *Engine) CourseStatus(ctx context.Context, studentID, courseID string) (*Progress, []WeekStatus, error) {
	p, err := e.Progress(ctx, studentID, courseID)
	if err != nil {
		return nil, nil, err
	}
	course, err := e.content.Course(ctx, courseID)
	if err != nil {
		return nil, nil, err
	}
	weeks, err := e.content.CourseWeeks(ctx, courseID)
	if err != nil {
		return nil, nil, err
	}
	byNumber := make(map[int]content.WeekContent, len(weeks))
	for _, w := range weeks {
		byNumber[w.WeekNumber] = w
	}

	statuses := make([]WeekStatus, 0, course.Details.DurationWeeks)
	for n := 1; n <= course.Details.DurationWeeks; n++ {
		w, exists := byNumber[n]
		st := WeekStatus{
			WeekNumber: n,
			Published:  exists && w.Published(),
			Completed:  p.Completed(n),
		}
		if exists {
			st.Topic = w.Topic
		}
		switch err := p.CanAccessWeek(n, st.Published); {
		case err == nil:
			st.Accessible = true
		default:
			st.Reason = err.Error()
		}
		if wp, ok := p.WeeklyProgress[n]; ok && wp.AssignmentCompleted {
			st.Score = wp.AssignmentScore
		}
		statuses = append(statuses, st)
	}
	return p, statuses, nil
}

// SubmitQuiz grades and records a quiz submission. The operation is
// idempotent by (student, course, week): a repeat call returns the stored
// submission and awards nothing. On first submission the grade, the progress
// update, week completion, and the XP increment commit as one transaction.
func (e *Engine) SubmitQuiz(ctx context.Context, studentID, courseID string, weekNumber int, answers []Answer, timing Timing) (*Submission, error) {
	if studentID == "" || courseID == "" {
		return nil, fmt.Errorf("%w: student and course IDs are required", ErrInvalidInput)
	}
	if weekNumber < 1 {
		return nil, fmt.Errorf("%w: week number %d", ErrInvalidInput, weekNumber)
	}

	course, err := e.content.Course(ctx, courseID)
	if err != nil {
		return nil, err
	}
	week, err := e.content.Week(ctx, courseID, weekNumber)
	if err != nil {
		if !errors.Is(err, content.ErrNotFound) {
			return nil, err
		}
		// No week document yet: treated as unpublished so the access check
		// below reports the right denial reason.
		week = &content.WeekContent{WeekNumber: weekNumber}
	}

	completedAt := timing.CompletedAt
	if completedAt.IsZero() {
		completedAt = e.clock().UTC()
	}

	var (
		result  Submission
		isFirst bool
	)
	err = e.docs.RunTxn(ctx, func(tx docstore.Txn) error {
		result, isFirst = Submission{}, false

		var p Progress
		pKey := progressKey(studentID, courseID)
		if err := tx.Get(ctx, progressCollection, pKey, &p); err != nil {
			if errors.Is(err, docstore.ErrNotFound) {
				return fmt.Errorf("submit quiz: %w", ErrNotEnrolled)
			}
			return fmt.Errorf("get progress %s: %w", pKey, err)
		}
		if err := p.CanAccessWeek(weekNumber, week.Published()); err != nil {
			return fmt.Errorf("submit quiz week %d: %w", weekNumber, err)
		}
		if !week.HasQuestions() {
			return fmt.Errorf("week %d of %s has no question bank: %w", weekNumber, courseID, ErrQuizUnavailable)
		}

		sKey := submissionKey(studentID, courseID, weekNumber)
		var existing Submission
		switch err := tx.Get(ctx, submissionsCollection, sKey, &existing); {
		case err == nil:
			result = existing
			return nil
		case !errors.Is(err, docstore.ErrNotFound):
			return fmt.Errorf("get submission %s: %w", sKey, err)
		}

		sub := scoreQuiz(week.Assignment, answers, e.rewards.DefaultQuestionPoints, e.rewards.XPPerCorrect, completedAt)
		sub.StudentID = studentID
		sub.CourseID = courseID
		sub.WeekNumber = weekNumber
		sub.StartedAt = timing.StartedAt
		sub.TimeTakenSeconds = timing.TimeTakenSeconds

		created, err := tx.Create(ctx, submissionsCollection, sKey, sub)
		if err != nil {
			return fmt.Errorf("store submission %s: %w", sKey, err)
		}
		if !created {
			// Lost a race with a concurrent submission.
			if err := tx.Get(ctx, submissionsCollection, sKey, &existing); err != nil {
				return fmt.Errorf("get submission %s: %w", sKey, err)
			}
			result = existing
			return nil
		}

		wp := p.WeeklyProgress[weekNumber]
		wp.AssignmentCompleted = true
		wp.AssignmentScore = sub.ScorePercentage
		wp.AssignmentSubmittedAt = completedAt
		if p.WeeklyProgress == nil {
			p.WeeklyProgress = map[int]WeekProgress{}
		}
		p.WeeklyProgress[weekNumber] = wp

		if _, err := e.completeWeekTx(ctx, tx, &p, course.Details.DurationWeeks, weekNumber, sub.XPAwarded, completedAt); err != nil {
			return err
		}
		if err := tx.Put(ctx, progressCollection, pKey, p); err != nil {
			return fmt.Errorf("put progress %s: %w", pKey, err)
		}

		result, isFirst = sub, true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if isFirst {
		slog.Info("quiz submitted",
			"student_id", studentID,
			"course_id", courseID,
			"week", weekNumber,
			"score", result.ScorePercentage,
			"xp", result.XPAwarded,
		)
		e.recordXP(ctx, studentID, courseID, float64(result.XPAwarded))
	}
	return &result, nil
}

// CompleteWeek marks a week completed and awards XP outside the quiz path.
// No-op if the week is already completed.
func (e *Engine) CompleteWeek(ctx context.Context, studentID, courseID string, weekNumber, xpAward int) error {
	course, err := e.content.Course(ctx, courseID)
	if err != nil {
		return err
	}
	if weekNumber < 1 || weekNumber > course.Details.DurationWeeks {
		return fmt.Errorf("%w: week %d outside course duration of %d weeks", ErrInvalidInput, weekNumber, course.Details.DurationWeeks)
	}

	var awarded bool
	err = e.docs.RunTxn(ctx, func(tx docstore.Txn) error {
		awarded = false
		var p Progress
		pKey := progressKey(studentID, courseID)
		if err := tx.Get(ctx, progressCollection, pKey, &p); err != nil {
			if errors.Is(err, docstore.ErrNotFound) {
				return fmt.Errorf("complete week: %w", ErrNotEnrolled)
			}
			return fmt.Errorf("get progress %s: %w", pKey, err)
		}
		changed, err := e.completeWeekTx(ctx, tx, &p, course.Details.DurationWeeks, weekNumber, xpAward, e.clock().UTC())
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}
		awarded = true
		return tx.Put(ctx, progressCollection, pKey, p)
	})
	if err != nil {
		return err
	}
	if awarded && xpAward > 0 {
		e.recordXP(ctx, studentID, courseID, float64(xpAward))
	}
	return nil
}

// completeWeekTx applies the week-completion rule inside a transaction:
// record the week, advance the current-week pointer by exactly one (capped
// at the course length, never backwards), recompute overall progress, award
// XP atomically, and run the daily streak transition. The caller persists
// the mutated progress record.
func (e *Engine) completeWeekTx(ctx context.Context, tx docstore.Txn, p *Progress, totalWeeks, weekNumber, xpAward int, now time.Time) (bool, error) {
	if p.Completed(weekNumber) {
		return false, nil
	}
	p.CompletedWeeks = append(p.CompletedWeeks, weekNumber)
	sort.Ints(p.CompletedWeeks)
	if next := min(weekNumber+1, totalWeeks); next > p.CurrentWeek {
		p.CurrentWeek = next
	}
	if totalWeeks > 0 {
		p.OverallProgress = int(math.Round(float64(len(p.CompletedWeeks)) / float64(totalWeeks) * 100))
	}

	if xpAward > 0 {
		if _, err := identity.IncrementXP(ctx, tx, p.StudentID, float64(xpAward)); err != nil {
			return false, err
		}
		p.TotalPoints = round2(p.TotalPoints + float64(xpAward))
	}

	if err := e.touchStreak(ctx, tx, p.StudentID, DateKey(now)); err != nil {
		return false, err
	}
	return true, nil
}

// touchStreak runs the once-per-day streak transition. Quiz completion and
// the daily login mission both route through here, so a day is credited at
// most once no matter which activity happens first.
func (e *Engine) touchStreak(ctx context.Context, tx docstore.Txn, studentID, dateKey string) error {
	st, err := identity.GetStreak(ctx, tx, studentID)
	if err != nil {
		return err
	}
	next, changed := nextStreak(st, dateKey)
	if !changed {
		return nil
	}
	return identity.PutStreak(ctx, tx, studentID, next)
}

// DailyMissions returns the student's mission record for the given day, with
// all slots zero when nothing has been completed yet.
func (e *Engine) DailyMissions(ctx context.Context, studentID string, now time.Time) (*MissionRecord, error) {
	dateKey := DateKey(now)
	rec := MissionRecord{StudentID: studentID, DateKey: dateKey}
	err := e.docs.Get(ctx, missionsCollection, missionKey(studentID, dateKey), &rec)
	if err != nil && !errors.Is(err, docstore.ErrNotFound) {
		return nil, fmt.Errorf("get missions %s: %w", dateKey, err)
	}
	return &rec, nil
}

// CompleteDailyTask completes one mission slot for today. Each slot awards
// XP at most once per day; repeat calls return the stored record unchanged.
// Login is the only task that touches the streak.
func (e *Engine) CompleteDailyTask(ctx context.Context, studentID string, task TaskType, payload TaskPayload, now time.Time) (*MissionRecord, error) {
	if studentID == "" {
		return nil, fmt.Errorf("%w: student ID is required", ErrInvalidInput)
	}
	dateKey := DateKey(now)

	switch task {
	case TaskLogin:
	case TaskQuestion:
		if payload.SelectedOption == nil && payload.AnswerText == nil {
			return nil, fmt.Errorf("%w: question task requires an answer", ErrInvalidInput)
		}
	case TaskFocus:
		if strings.TrimSpace(payload.Reflection) == "" {
			return nil, fmt.Errorf("%w: focus task requires a reflection", ErrInvalidInput)
		}
	default:
		return nil, fmt.Errorf("%w: unknown task type %q", ErrInvalidInput, task)
	}

	// An already-awarded slot is a no-op even when the day's question has
	// since become unavailable, so this check comes before selection. The
	// transaction below re-checks under the lock.
	existing, err := e.DailyMissions(ctx, studentID, now)
	if err != nil {
		return nil, err
	}
	if existing.slot(task).Completed {
		return existing, nil
	}

	var daily *DailyQuestion
	if task == TaskQuestion {
		daily, err = e.SelectDailyQuestion(ctx, studentID, dateKey)
		if err != nil {
			return nil, err
		}
		if daily == nil {
			return nil, fmt.Errorf("no daily question for %s: %w", studentID, ErrQuizUnavailable)
		}
	}

	var (
		rec     MissionRecord
		awarded int
	)
	err = e.docs.RunTxn(ctx, func(tx docstore.Txn) error {
		awarded = 0
		rec = MissionRecord{StudentID: studentID, DateKey: dateKey}
		key := missionKey(studentID, dateKey)
		switch err := tx.Get(ctx, missionsCollection, key, &rec); {
		case errors.Is(err, docstore.ErrNotFound):
			// Materialize the day's record first so concurrent completions
			// serialize on it instead of both starting from the empty state.
			created, err := tx.Create(ctx, missionsCollection, key, rec)
			if err != nil {
				return fmt.Errorf("create missions %s: %w", key, err)
			}
			if !created {
				if err := tx.Get(ctx, missionsCollection, key, &rec); err != nil {
					return fmt.Errorf("get missions %s: %w", key, err)
				}
			}
		case err != nil:
			return fmt.Errorf("get missions %s: %w", key, err)
		}

		slot := rec.slot(task)
		if slot.Completed {
			return nil
		}

		switch task {
		case TaskLogin:
			awarded = e.rewards.LoginXP
			if err := e.touchStreak(ctx, tx, studentID, dateKey); err != nil {
				return err
			}
		case TaskQuestion:
			answer := Answer{SelectedOption: payload.SelectedOption}
			if payload.AnswerText != nil {
				answer.SelectedText = *payload.AnswerText
			}
			correct := answerCorrect(daily.Question, answer)
			slot.Correct = &correct
			awarded = e.rewards.QuestionXP
			if correct {
				awarded += e.rewards.QuestionBonusXP
			}
		case TaskFocus:
			awarded = e.rewards.FocusXP
		}

		slot.Completed = true
		slot.XPAwarded = awarded
		slot.CompletedAt = now.UTC()

		if err := tx.Put(ctx, missionsCollection, key, rec); err != nil {
			return fmt.Errorf("put missions %s: %w", key, err)
		}
		if _, err := identity.IncrementXP(ctx, tx, studentID, float64(awarded)); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if awarded > 0 {
		slog.Info("daily task completed", "student_id", studentID, "task", string(task), "xp", awarded)
		e.recordXP(ctx, studentID, "", float64(awarded))
	}
	return &rec, nil
}

// CompleteDailyChallenge records one of a week's daily challenges and awards
// its points. Each (week, day) pair is credited at most once; repeats return
// the points already earned that week.
func (e *Engine) CompleteDailyChallenge(ctx context.Context, studentID, courseID string, weekNumber, day int) (float64, error) {
	week, err := e.content.Week(ctx, courseID, weekNumber)
	if err != nil {
		if errors.Is(err, content.ErrNotFound) {
			return 0, fmt.Errorf("week %d of %s: %w", weekNumber, courseID, ErrContentNotReady)
		}
		return 0, err
	}
	var challenge *content.DailyChallenge
	for i := range week.DailyChallenges {
		if week.DailyChallenges[i].Day == day {
			challenge = &week.DailyChallenges[i]
			break
		}
	}
	if challenge == nil {
		return 0, fmt.Errorf("%w: week %d has no day-%d challenge", ErrInvalidInput, weekNumber, day)
	}

	var (
		total   float64
		awarded float64
	)
	err = e.docs.RunTxn(ctx, func(tx docstore.Txn) error {
		total, awarded = 0, 0
		var p Progress
		pKey := progressKey(studentID, courseID)
		if err := tx.Get(ctx, progressCollection, pKey, &p); err != nil {
			if errors.Is(err, docstore.ErrNotFound) {
				return fmt.Errorf("daily challenge: %w", ErrNotEnrolled)
			}
			return fmt.Errorf("get progress %s: %w", pKey, err)
		}
		if err := p.CanAccessWeek(weekNumber, week.Published()); err != nil {
			return fmt.Errorf("daily challenge week %d: %w", weekNumber, err)
		}

		wp := p.WeeklyProgress[weekNumber]
		for _, d := range wp.DailyChallengesCompleted {
			if d == day {
				total = wp.TotalDailyPoints
				return nil
			}
		}
		wp.DailyChallengesCompleted = append(wp.DailyChallengesCompleted, day)
		sort.Ints(wp.DailyChallengesCompleted)
		wp.TotalDailyPoints = round2(wp.TotalDailyPoints + challenge.Points)
		if p.WeeklyProgress == nil {
			p.WeeklyProgress = map[int]WeekProgress{}
		}
		p.WeeklyProgress[weekNumber] = wp
		p.TotalPoints = round2(p.TotalPoints + challenge.Points)

		if _, err := identity.IncrementXP(ctx, tx, studentID, challenge.Points); err != nil {
			return err
		}
		if err := tx.Put(ctx, progressCollection, pKey, p); err != nil {
			return fmt.Errorf("put progress %s: %w", pKey, err)
		}
		total, awarded = wp.TotalDailyPoints, challenge.Points
		return nil
	})
	if err != nil {
		return 0, err
	}
	if awarded > 0 {
		e.recordXP(ctx, studentID, courseID, awarded)
	}
	return total, nil
}

// MarkVideoWatched flags the week's lesson video as watched. Idempotent, no
// XP attached.
func (e *Engine) MarkVideoWatched(ctx context.Context, studentID, courseID string, weekNumber int) error {
	return e.docs.RunTxn(ctx, func(tx docstore.Txn) error {
		var p Progress
		pKey := progressKey(studentID, courseID)
		if err := tx.Get(ctx, progressCollection, pKey, &p); err != nil {
			if errors.Is(err, docstore.ErrNotFound) {
				return fmt.Errorf("mark video watched: %w", ErrNotEnrolled)
			}
			return fmt.Errorf("get progress %s: %w", pKey, err)
		}
		wp := p.WeeklyProgress[weekNumber]
		if wp.VideoWatched {
			return nil
		}
		wp.VideoWatched = true
		if p.WeeklyProgress == nil {
			p.WeeklyProgress = map[int]WeekProgress{}
		}
		p.WeeklyProgress[weekNumber] = wp
		return tx.Put(ctx, progressCollection, pKey, p)
	})
}

// Submission returns the stored submission for a week, if any.
func (e *Engine) Submission(ctx context.Context, studentID, courseID string, weekNumber int) (*Submission, error) {
	var sub Submission
	key := submissionKey(studentID, courseID, weekNumber)
	if err := e.docs.Get(ctx, submissionsCollection, key, &sub); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get submission %s: %w", key, err)
	}
	return &sub, nil
}

// CourseSubmissions returns every stored submission for a course, for the
// teacher-facing gradebook.
func (e *Engine) CourseSubmissions(ctx context.Context, courseID string, studentIDs []string) ([]Submission, error) {
	var out []Submission
	for _, sid := range studentIDs {
		keys, err := e.docs.ListKeys(ctx, submissionsCollection, sid+"/"+courseID+"/")
		if err != nil {
			return nil, fmt.Errorf("list submissions for %s: %w", sid, err)
		}
		for _, key := range keys {
			var sub Submission
			if err := e.docs.Get(ctx, submissionsCollection, key, &sub); err != nil {
				return nil, fmt.Errorf("get submission %s: %w", key, err)
			}
			out = append(out, sub)
		}
	}
	return out, nil
}

func (e *Engine) recordXP(ctx context.Context, studentID, courseID string, amount float64) {
	if e.sink == nil {
		return
	}
	if err := e.sink.RecordXP(ctx, studentID, courseID, amount); err != nil {
		slog.Error("failed to record XP award", "student_id", studentID, "error", err)
	}
}
