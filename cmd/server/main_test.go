package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/classquest/classquest/internal/content"
	"github.com/classquest/classquest/internal/identity"
	"github.com/classquest/classquest/internal/leaderboard"
	"github.com/classquest/classquest/internal/platform/docstore"
	"github.com/classquest/classquest/internal/progression"
)

func intp(v int) *int           { return &v }
func floatp(v float64) *float64 { return &v }

func newTestServer(t *testing.T) (*server, string) {
	t.Helper()
	docs := docstore.NewMemory()
	contentStore := content.NewStore(docs)
	board := leaderboard.NewMemory()
	srv := &server{
		engine: progression.NewEngine(progression.EngineConfig{
			Docs:    docs,
			Content: contentStore,
			Sink:    board,
		}),
		content: contentStore,
		users:   identity.NewStore(docs),
		board:   board,
	}

	week := content.WeekContent{
		WeekNumber: 1,
		Topic:      "Fractions",
		Assignment: content.Assignment{Created: true},
	}
	for i := 0; i < 3; i++ {
		week.Assignment.Questions = append(week.Assignment.Questions, content.Question{
			ID:            fmt.Sprintf("q%d", i+1),
			Prompt:        "pick one",
			Type:          content.MultipleChoice,
			Options:       []string{"x", "y", "z"},
			CorrectOption: intp(0),
			Points:        floatp(10),
		})
	}
	courseID, err := contentStore.CreateCourse(t.Context(), content.Course{
		Details: content.CourseDetails{
			Title:         "Math",
			Subject:       "Math",
			GradeLevel:    "5th Grade",
			DurationWeeks: 4,
			SchoolYear:    "2025-2026",
		},
		CreatedBy: "teacher-1",
	}, []content.WeekContent{week})
	if err != nil {
		t.Fatalf("CreateCourse() error = %v", err)
	}
	return srv, courseID
}

func doRequest(t *testing.T, srv *server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d, want 200", rec.Code)
	}
	// No database or cache wired: readyz has nothing to fail on.
	rec = doRequest(t, srv, http.MethodGet, "/readyz", "")
	if rec.Code != http.StatusOK {
		t.Errorf("readyz status = %d, want 200", rec.Code)
	}
}

func TestEnrollAndSubmitFlow(t *testing.T) {
	srv, courseID := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/courses/"+courseID+"/enroll",
		`{"student_id":"s1","display_name":"Ada"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("enroll status = %d, body %s", rec.Code, rec.Body)
	}

	body := `{"answers":[
		{"question_id":"q1","selected_option":0},
		{"question_id":"q2","selected_option":0},
		{"question_id":"q3","selected_option":1}
	],"timing":{"time_taken_seconds":90}}`
	rec = doRequest(t, srv, http.MethodPost,
		"/api/students/s1/courses/"+courseID+"/weeks/1/submit", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("submit status = %d, body %s", rec.Code, rec.Body)
	}
	var sub progression.Submission
	if err := json.Unmarshal(rec.Body.Bytes(), &sub); err != nil {
		t.Fatalf("decode submission: %v", err)
	}
	if sub.CorrectAnswers != 2 || sub.ScorePercentage != 67 {
		t.Errorf("submission = %+v, want 2 correct at 67%%", sub)
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/students/s1/courses/"+courseID+"/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status endpoint = %d, body %s", rec.Code, rec.Body)
	}
	var status struct {
		Progress progression.Progress     `json:"progress"`
		Weeks    []progression.WeekStatus `json:"weeks"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.Progress.CurrentWeek != 2 {
		t.Errorf("CurrentWeek = %d, want 2", status.Progress.CurrentWeek)
	}
	if len(status.Weeks) != 4 {
		t.Errorf("weeks = %d, want 4", len(status.Weeks))
	}
}

func TestSubmitQuiz_DenialReasonsOverHTTP(t *testing.T) {
	srv, courseID := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/courses/"+courseID+"/enroll",
		`{"student_id":"s1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("enroll status = %d", rec.Code)
	}

	// Week 2 is beyond the current-week pointer.
	rec = doRequest(t, srv, http.MethodPost,
		"/api/students/s1/courses/"+courseID+"/weeks/2/submit", `{"answers":[]}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("locked week status = %d, want 409", rec.Code)
	}
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if resp.Reason != "progress-gated" {
		t.Errorf("reason = %q, want progress-gated", resp.Reason)
	}
}

func TestDailyMissionsOverHTTP(t *testing.T) {
	srv, courseID := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/courses/"+courseID+"/enroll",
		`{"student_id":"s1","display_name":"Ada"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("enroll status = %d", rec.Code)
	}

	rec = doRequest(t, srv, http.MethodPost, "/api/students/s1/missions/login", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("login mission status = %d, body %s", rec.Code, rec.Body)
	}
	var mission progression.MissionRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &mission); err != nil {
		t.Fatalf("decode mission: %v", err)
	}
	if !mission.Login.Completed || mission.Login.XPAwarded != 10 {
		t.Errorf("login slot = %+v, want completed with 10 XP", mission.Login)
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/students/s1/missions", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("missions status = %d", rec.Code)
	}

	rec = doRequest(t, srv, http.MethodPost, "/api/students/s1/missions/focus",
		`{"reflection":""}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty focus status = %d, want 400", rec.Code)
	}
}

func TestDailyQuestionHidesAnswerKey(t *testing.T) {
	srv, courseID := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/courses/"+courseID+"/enroll",
		`{"student_id":"s1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("enroll status = %d", rec.Code)
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/students/s1/daily-question", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("daily question status = %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "correct_option") {
		t.Errorf("daily question response leaks the answer key: %s", rec.Body)
	}
}

func TestLeaderboardOverHTTP(t *testing.T) {
	srv, courseID := newTestServer(t)

	for _, student := range []string{"s1", "s2"} {
		rec := doRequest(t, srv, http.MethodPost, "/api/courses/"+courseID+"/enroll",
			fmt.Sprintf(`{"student_id":%q,"display_name":"Student %s"}`, student, student))
		if rec.Code != http.StatusOK {
			t.Fatalf("enroll %s status = %d", student, rec.Code)
		}
	}
	body := `{"answers":[{"question_id":"q1","selected_option":0},{"question_id":"q2","selected_option":0},{"question_id":"q3","selected_option":0}]}`
	rec := doRequest(t, srv, http.MethodPost, "/api/students/s1/courses/"+courseID+"/weeks/1/submit", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("submit status = %d", rec.Code)
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/leaderboard?course="+courseID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("leaderboard status = %d", rec.Code)
	}
	var resp struct {
		Entries []leaderboard.Entry `json:"entries"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode leaderboard: %v", err)
	}
	if len(resp.Entries) != 1 || resp.Entries[0].StudentID != "s1" {
		t.Fatalf("entries = %+v, want s1 only", resp.Entries)
	}
	if resp.Entries[0].DisplayName != "Student s1" {
		t.Errorf("display name = %q, want resolved profile name", resp.Entries[0].DisplayName)
	}
}

func TestGradebookOverHTTP(t *testing.T) {
	srv, courseID := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/courses/"+courseID+"/enroll",
		`{"student_id":"s1","display_name":"Ada"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("enroll status = %d", rec.Code)
	}
	rec = doRequest(t, srv, http.MethodGet, "/api/courses/"+courseID+"/gradebook", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("gradebook status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "spreadsheetml") {
		t.Errorf("Content-Type = %q, want xlsx", ct)
	}
	if rec.Body.Len() == 0 {
		t.Error("gradebook body is empty")
	}
}
