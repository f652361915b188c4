package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/classquest/classquest/internal/content"
	"github.com/classquest/classquest/internal/export"
	"github.com/classquest/classquest/internal/identity"
	"github.com/classquest/classquest/internal/leaderboard"
	"github.com/classquest/classquest/internal/levels"
	"github.com/classquest/classquest/internal/platform/cache"
	"github.com/classquest/classquest/internal/platform/database"
	"github.com/classquest/classquest/internal/progression"
)

type server struct {
	engine  *progression.Engine
	content *content.Store
	users   *identity.Store
	board   leaderboard.Board
	db      *database.DB // nil when not postgres-backed
	cache   *cache.Cache // nil when the cache is disabled
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)

	mux.HandleFunc("GET /api/courses", s.handleListCourses)
	mux.HandleFunc("POST /api/courses/{courseID}/enroll", s.handleEnroll)
	mux.HandleFunc("GET /api/courses/{courseID}/gradebook", s.handleGradebook)

	mux.HandleFunc("GET /api/students/{studentID}/courses/{courseID}/status", s.handleCourseStatus)
	mux.HandleFunc("POST /api/students/{studentID}/courses/{courseID}/weeks/{week}/submit", s.handleSubmitQuiz)
	mux.HandleFunc("POST /api/students/{studentID}/courses/{courseID}/weeks/{week}/video", s.handleVideoWatched)
	mux.HandleFunc("POST /api/students/{studentID}/courses/{courseID}/weeks/{week}/challenges/{day}", s.handleDailyChallenge)

	mux.HandleFunc("GET /api/students/{studentID}/missions", s.handleDailyMissions)
	mux.HandleFunc("POST /api/students/{studentID}/missions/{task}", s.handleCompleteTask)
	mux.HandleFunc("GET /api/students/{studentID}/daily-question", s.handleDailyQuestion)
	mux.HandleFunc("GET /api/students/{studentID}/profile", s.handleProfile)

	mux.HandleFunc("GET /api/leaderboard", s.handleLeaderboard)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

// writeError maps engine errors onto HTTP statuses: validation is 400,
// missing things are 404, unmet preconditions are 409 with the precise
// denial reason, everything else is a 500.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, progression.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, progression.ErrNotEnrolled),
		errors.Is(err, content.ErrNotFound),
		errors.Is(err, identity.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, progression.ErrProgressGated):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), Reason: progression.ErrProgressGated.Error()})
	case errors.Is(err, progression.ErrContentNotReady):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), Reason: progression.ErrContentNotReady.Error()})
	case errors.Is(err, progression.ErrQuizUnavailable):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), Reason: progression.ErrQuizUnavailable.Error()})
	case errors.Is(err, content.ErrCourseFull):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	default:
		slog.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func pathInt(r *http.Request, name string) (int, error) {
	v, err := strconv.Atoi(r.PathValue(name))
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a number", progression.ErrInvalidInput, name)
	}
	return v, nil
}

func (s *server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.HealthCheck(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "database unavailable"})
			return
		}
	}
	if s.cache != nil {
		if err := s.cache.HealthCheck(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "cache unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *server) handleListCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := s.content.AllCourses(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"courses": courses})
}

func (s *server) handleEnroll(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StudentID   string `json:"student_id"`
		DisplayName string `json:"display_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: %v", progression.ErrInvalidInput, err))
		return
	}
	if req.StudentID == "" {
		writeError(w, fmt.Errorf("%w: student_id is required", progression.ErrInvalidInput))
		return
	}
	if _, err := s.users.EnsureProfile(r.Context(), req.StudentID, req.DisplayName, "student"); err != nil {
		writeError(w, err)
		return
	}
	p, err := s.engine.Enroll(r.Context(), req.StudentID, r.PathValue("courseID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *server) handleCourseStatus(w http.ResponseWriter, r *http.Request) {
	p, weeks, err := s.engine.CourseStatus(r.Context(), r.PathValue("studentID"), r.PathValue("courseID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"progress": p,
		"weeks":    weeks,
	})
}

func (s *server) handleSubmitQuiz(w http.ResponseWriter, r *http.Request) {
	week, err := pathInt(r, "week")
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		Answers []progression.Answer `json:"answers"`
		Timing  progression.Timing   `json:"timing"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: %v", progression.ErrInvalidInput, err))
		return
	}
	sub, err := s.engine.SubmitQuiz(r.Context(), r.PathValue("studentID"), r.PathValue("courseID"), week, req.Answers, req.Timing)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (s *server) handleVideoWatched(w http.ResponseWriter, r *http.Request) {
	week, err := pathInt(r, "week")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.engine.MarkVideoWatched(r.Context(), r.PathValue("studentID"), r.PathValue("courseID"), week); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleDailyChallenge(w http.ResponseWriter, r *http.Request) {
	week, err := pathInt(r, "week")
	if err != nil {
		writeError(w, err)
		return
	}
	day, err := pathInt(r, "day")
	if err != nil {
		writeError(w, err)
		return
	}
	total, err := s.engine.CompleteDailyChallenge(r.Context(), r.PathValue("studentID"), r.PathValue("courseID"), week, day)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"total_daily_points": total})
}

func (s *server) handleDailyMissions(w http.ResponseWriter, r *http.Request) {
	rec, err := s.engine.DailyMissions(r.Context(), r.PathValue("studentID"), time.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *server) handleCompleteTask(w http.ResponseWriter, r *http.Request) {
	var payload progression.TaskPayload
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeError(w, fmt.Errorf("%w: %v", progression.ErrInvalidInput, err))
			return
		}
	}
	rec, err := s.engine.CompleteDailyTask(r.Context(), r.PathValue("studentID"),
		progression.TaskType(r.PathValue("task")), payload, time.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *server) handleDailyQuestion(w http.ResponseWriter, r *http.Request) {
	q, err := s.engine.SelectDailyQuestion(r.Context(), r.PathValue("studentID"), progression.DateKey(time.Now()))
	if err != nil {
		writeError(w, err)
		return
	}
	if q == nil {
		writeJSON(w, http.StatusOK, map[string]any{"question": nil})
		return
	}
	// Never ship the answer key to the client.
	q.Question.CorrectOption = nil
	q.Question.CorrectText = ""
	writeJSON(w, http.StatusOK, map[string]any{"question": q})
}

func (s *server) handleProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.users.Profile(r.Context(), r.PathValue("studentID"))
	if err != nil {
		writeError(w, err)
		return
	}
	st, err := s.users.Streak(r.Context(), p.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"profile":          p,
		"streak":           st,
		"tier":             levels.TierFor(p.XP),
		"next_tier":        levels.NextTier(p.XP),
		"progress_to_next": levels.ProgressToNext(p.XP),
	})
}

func (s *server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	n := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			n = parsed
		}
	}
	entries, err := s.board.Top(r.Context(), r.URL.Query().Get("course"), n)
	if err != nil {
		writeError(w, err)
		return
	}

	// Attach display names.
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.StudentID
	}
	profiles, err := s.users.Profiles(r.Context(), ids)
	if err != nil {
		writeError(w, err)
		return
	}
	for i := range entries {
		if p, ok := profiles[entries[i].StudentID]; ok {
			entries[i].DisplayName = p.DisplayName
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (s *server) handleGradebook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	course, err := s.content.Course(ctx, r.PathValue("courseID"))
	if err != nil {
		writeError(w, err)
		return
	}
	subs, err := s.engine.CourseSubmissions(ctx, course.ID, course.EnrolledStudents)
	if err != nil {
		writeError(w, err)
		return
	}
	profiles, err := s.users.Profiles(ctx, course.EnrolledStudents)
	if err != nil {
		writeError(w, err)
		return
	}
	f, err := export.Gradebook(course, subs, profiles)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", course.Details.Title+"-gradebook.xlsx"))
	if err := f.Write(w); err != nil {
		slog.Error("failed to write gradebook", "course_id", course.ID, "error", err)
	}
}
