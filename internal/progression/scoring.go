package progression

import (
	"math"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/classquest/classquest/internal/content"
)

var foldCaser = cases.Fold()

// normalizeAnswer prepares free-text answers for comparison: trimmed,
// Unicode-normalized, and case-folded. "½" and the compatibility form "1⁄2"
// compare equal, as do Turkish dotless-i variants.
func normalizeAnswer(s string) string {
	return foldCaser.String(norm.NFKC.String(strings.TrimSpace(s)))
}

// answerCorrect grades a single answer. Multiple choice is index equality;
// short answers are normalized exact equality. Timed-out and missing answers
// are incorrect, never an error.
func answerCorrect(q content.Question, a Answer) bool {
	if a.TimedOut {
		return false
	}
	switch q.Type {
	case content.MultipleChoice:
		return q.CorrectOption != nil && a.SelectedOption != nil && *a.SelectedOption == *q.CorrectOption
	case content.ShortAnswer:
		want := normalizeAnswer(q.CorrectText)
		return want != "" && normalizeAnswer(a.SelectedText) == want
	}
	return false
}

// questionPoints resolves the point value of every question in bank order.
// Explicit values win; questions without one split the remainder of the
// assignment's declared total evenly, and are worth nothing once explicit
// values have consumed that total. Only assignments with no declared total
// fall back to defaultPoints. Values are rounded to 2 decimals.
func questionPoints(questions []content.Question, declaredTotal, defaultPoints float64) []float64 {
	points := make([]float64, len(questions))
	var explicitSum float64
	var unspecified int
	for i, q := range questions {
		if q.Points != nil {
			points[i] = round2(*q.Points)
			explicitSum += points[i]
		} else {
			unspecified++
		}
	}
	if unspecified == 0 {
		return points
	}
	share := defaultPoints
	if declaredTotal > 0 {
		share = 0
		if remainder := declaredTotal - explicitSum; remainder > 0 {
			share = remainder / float64(unspecified)
		}
	}
	share = round2(share)
	for i, q := range questions {
		if q.Points == nil {
			points[i] = share
		}
	}
	return points
}

// scoreQuiz grades a full answer set against the week's assignment. The
// result is deterministic: a fixed bank and fixed answers always produce the
// same points, percentage, and XP.
func scoreQuiz(assignment content.Assignment, answers []Answer, defaultPoints float64, xpPerCorrect int, completedAt time.Time) Submission {
	questions := assignment.Questions
	points := questionPoints(questions, assignment.TotalPoints, defaultPoints)

	byID := make(map[string]Answer, len(answers))
	for _, a := range answers {
		byID[a.QuestionID] = a
	}

	var (
		records      = make([]AnswerRecord, len(questions))
		correct      int
		pointsEarned float64
		totalPoints  float64
	)
	for i, q := range questions {
		totalPoints += points[i]
		a, answered := byID[q.ID]
		rec := AnswerRecord{
			QuestionID:     q.ID,
			SelectedOption: a.SelectedOption,
			SelectedText:   a.SelectedText,
			TimedOut:       a.TimedOut || !answered,
		}
		if answered && answerCorrect(q, a) {
			rec.Correct = true
			rec.TimedOut = false
			rec.PointsAwarded = points[i]
			correct++
			pointsEarned += points[i]
		}
		records[i] = rec
	}

	// Rounded shares can drift off the declared total (100 split three ways
	// sums to 99.99); the stored total is the declared one when it exists.
	if assignment.TotalPoints > 0 {
		totalPoints = assignment.TotalPoints
	}

	pct := 0
	if len(questions) > 0 {
		pct = int(math.Round(float64(correct) / float64(len(questions)) * 100))
	}
	pct = min(max(pct, 0), 100)

	pointsEarned = round2(pointsEarned)
	xp := int(math.Round(pointsEarned))
	if floor := correct * xpPerCorrect; floor > xp {
		xp = floor
	}

	return Submission{
		TotalQuestions:  len(questions),
		CorrectAnswers:  correct,
		TotalPoints:     round2(totalPoints),
		PointsEarned:    pointsEarned,
		XPAwarded:       xp,
		ScorePercentage: pct,
		CompletedAt:     completedAt,
		Answers:         records,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
