// Package export builds teacher-facing spreadsheet exports.
package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/classquest/classquest/internal/content"
	"github.com/classquest/classquest/internal/identity"
	"github.com/classquest/classquest/internal/progression"
)

const sheetName = "Gradebook"

// Gradebook renders a course's quiz results as a spreadsheet: one row per
// enrolled student, one column per week with the score percentage, plus
// earned-XP totals. Students with no submission for a week get an empty
// cell, not a zero.
func Gradebook(course *content.Course, subs []progression.Submission, profiles map[string]identity.Profile) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	headers := []any{"Student", "Name"}
	for week := 1; week <= course.Details.DurationWeeks; week++ {
		headers = append(headers, fmt.Sprintf("Week %d (%%)", week))
	}
	headers = append(headers, "Quizzes Taken", "XP Earned")
	if err := f.SetSheetRow(sheetName, "A1", &headers); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	// score[student][week] = percentage
	scores := make(map[string]map[int]int)
	xpEarned := make(map[string]int)
	for _, s := range subs {
		if scores[s.StudentID] == nil {
			scores[s.StudentID] = make(map[int]int)
		}
		scores[s.StudentID][s.WeekNumber] = s.ScorePercentage
		xpEarned[s.StudentID] += s.XPAwarded
	}

	for i, studentID := range course.EnrolledStudents {
		row := []any{studentID}
		if p, ok := profiles[studentID]; ok {
			row = append(row, p.DisplayName)
		} else {
			row = append(row, "")
		}
		for week := 1; week <= course.Details.DurationWeeks; week++ {
			if pct, ok := scores[studentID][week]; ok {
				row = append(row, pct)
			} else {
				row = append(row, nil)
			}
		}
		row = append(row, len(scores[studentID]), xpEarned[studentID])

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("row coordinates: %w", err)
		}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return nil, fmt.Errorf("write row for %s: %w", studentID, err)
		}
	}
	return f, nil
}
