package content

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const packsCollection = "course_packs"

// Pack is a parsed, validated course pack ready to seed into the store.
type Pack struct {
	ID     string     `json:"id"`
	Course packCourse `json:"course"`
	Weeks  []packWeek `json:"weeks"`
}

type packCourse struct {
	Title         string `json:"course_title"`
	Subject       string `json:"subject"`
	GradeLevel    string `json:"grade_level"`
	DurationWeeks int    `json:"duration_weeks"`
	SchoolYear    string `json:"school_year"`
	TeacherName   string `json:"teacher_name"`
	MaxStudents   int    `json:"max_students"`
}

type packWeek struct {
	Week            int              `json:"week"`
	Topic           string           `json:"topic"`
	Description     string           `json:"description"`
	StudyContent    bool             `json:"study_content"`
	Video           bool             `json:"video"`
	DueDate         string           `json:"due_date"`
	Assignment      *packAssignment  `json:"assignment"`
	DailyChallenges []DailyChallenge `json:"daily_challenges"`
}

type packAssignment struct {
	TotalPoints      float64    `json:"total_points"`
	TimeLimitSeconds int        `json:"time_limit"`
	Questions        []Question `json:"questions"`
}

// LoadPacks walks a directory tree and parses every .yaml/.yml course pack.
// Each pack is schema-validated; an invalid pack fails the whole load so a
// bad deploy is caught at startup rather than at quiz time.
func LoadPacks(rootDir string) ([]Pack, error) {
	var packs []Pack

	err := filepath.Walk(rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		if !strings.HasSuffix(path, ".yaml") && !strings.HasSuffix(path, ".yml") {
			return nil
		}

		pack, err := parsePack(path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		packs = append(packs, *pack)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading course packs: %w", err)
	}

	slog.Info("course packs loaded", "dir", rootDir, "packs", len(packs))
	return packs, nil
}

func parsePack(path string) (*Pack, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// YAML is re-encoded as JSON so a single schema governs both file packs
	// and JSON documents imported from syllabus analysis.
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	doc, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("convert to json: %w", err)
	}

	return ParseImport(doc)
}

// ParseImport validates and decodes a course import document.
func ParseImport(doc []byte) (*Pack, error) {
	if err := ValidateImport(doc); err != nil {
		return nil, err
	}

	var pack Pack
	if err := json.Unmarshal(doc, &pack); err != nil {
		return nil, fmt.Errorf("decode course document: %w", err)
	}
	for _, w := range pack.Weeks {
		if w.Week > pack.Course.DurationWeeks {
			return nil, fmt.Errorf("week %d outside course duration of %d weeks", w.Week, pack.Course.DurationWeeks)
		}
	}
	return &pack, nil
}

// Seed creates the courses from packs that have not been seeded before.
// Seeding is idempotent: each pack ID is claimed with a conditional create,
// so restarting the server never duplicates courses.
func (s *Store) Seed(ctx context.Context, packs []Pack, createdBy string) error {
	for _, pack := range packs {
		course := Course{
			Details: CourseDetails{
				Title:         pack.Course.Title,
				Subject:       pack.Course.Subject,
				GradeLevel:    pack.Course.GradeLevel,
				DurationWeeks: pack.Course.DurationWeeks,
				SchoolYear:    pack.Course.SchoolYear,
			},
			TeacherName: pack.Course.TeacherName,
			CreatedBy:   createdBy,
			MaxStudents: pack.Course.MaxStudents,
		}

		weeks := make([]WeekContent, 0, len(pack.Weeks))
		for _, pw := range pack.Weeks {
			week := WeekContent{
				WeekNumber:      pw.Week,
				Topic:           pw.Topic,
				Description:     pw.Description,
				Video:           VideoContent{Uploaded: pw.Video},
				StudyContent:    StudyContent{Created: pw.StudyContent},
				DailyChallenges: pw.DailyChallenges,
				DueDate:         pw.DueDate,
			}
			if pw.Assignment != nil {
				week.Assignment = Assignment{
					Created:          true,
					Questions:        pw.Assignment.Questions,
					TotalPoints:      pw.Assignment.TotalPoints,
					TimeLimitSeconds: pw.Assignment.TimeLimitSeconds,
				}
			}
			weeks = append(weeks, week)
		}

		claimed, err := s.docs.Create(ctx, packsCollection, pack.ID, map[string]string{"status": "seeding"})
		if err != nil {
			return fmt.Errorf("claim pack %s: %w", pack.ID, err)
		}
		if !claimed {
			slog.Debug("course pack already seeded", "pack", pack.ID)
			continue
		}

		courseID, err := s.CreateCourse(ctx, course, weeks)
		if err != nil {
			return fmt.Errorf("seed pack %s: %w", pack.ID, err)
		}
		if err := s.docs.Put(ctx, packsCollection, pack.ID, map[string]string{"status": "seeded", "course_id": courseID}); err != nil {
			return fmt.Errorf("record pack %s: %w", pack.ID, err)
		}

		slog.Info("course seeded from pack", "pack", pack.ID, "course_id", courseID, "weeks", len(weeks))
	}
	return nil
}
