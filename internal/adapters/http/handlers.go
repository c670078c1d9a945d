package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"classledger/internal/adapters/http/middleware"
	"classledger/internal/application/orchestrators"
	"classledger/internal/application/projections"
	"classledger/internal/domain/session"
)

// timeNow is a variable for testability.
var timeNow = time.Now

// validate is the shared request validator instance.
var validate = validator.New()

// internalError logs the real error and returns a generic message to the client.
// This prevents leaking internal details per OWASP A05.
func internalError(w http.ResponseWriter, err error) {
	slog.Error("internal_error", "error", err.Error())
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

// strictDecode decodes JSON from the request body, rejecting unknown fields.
func strictDecode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// requireTeacher resolves the authenticated teacher (or admin) session,
// writing the error response itself when the caller is not allowed.
func requireTeacher(w http.ResponseWriter, r *http.Request) (middleware.Session, bool) {
	sess, ok := middleware.GetSessionFromContext(r.Context())
	if !ok {
		http.Error(w, "not authenticated", http.StatusUnauthorized)
		return middleware.Session{}, false
	}
	if !middleware.IsTeacherOrAdmin(r.Context()) {
		slog.Warn("auth_event", "event", "auth_denied", "account_id", sess.AccountID, "role", sess.Role, "path", r.URL.Path)
		http.Error(w, "forbidden", http.StatusForbidden)
		return middleware.Session{}, false
	}
	return sess, true
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	AccountID string `json:"account_id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Role      string `json:"role"`
}

// handleLogin handles POST /api/login.
func handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req loginRequest
	if err := strictDecode(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := validate.Struct(req); err != nil {
		http.Error(w, "email and password are required", http.StatusBadRequest)
		return
	}

	result, err := orchestrators.ExecuteLogin(r.Context(), orchestrators.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	}, orchestrators.LoginDeps{
		AccountStore: stores.AccountStore,
	})
	if err != nil {
		switch {
		case errors.Is(err, orchestrators.ErrInvalidCredentials):
			http.Error(w, err.Error(), http.StatusUnauthorized)
		case errors.Is(err, orchestrators.ErrAccountLocked):
			http.Error(w, err.Error(), http.StatusForbidden)
		default:
			internalError(w, err)
		}
		return
	}

	token, err := sessions.Create(result.AccountID, result.Email, result.Name, result.Role)
	if err != nil {
		internalError(w, err)
		return
	}
	middleware.SetSessionCookie(w, token)

	writeJSON(w, http.StatusOK, loginResponse{
		AccountID: result.AccountID,
		Email:     result.Email,
		Name:      result.Name,
		Role:      result.Role,
	})
}

// handleLogout handles POST /api/logout.
func handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	if cookie, err := r.Cookie(middleware.SessionCookieName()); err == nil {
		sessions.Delete(cookie.Value)
	}
	middleware.ClearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

type assignmentsResponse struct {
	Classes []classAssignmentsDTO `json:"classes"`
}

type classAssignmentsDTO struct {
	ClassID   string   `json:"class_id"`
	ClassName string   `json:"class_name"`
	Subjects  []string `json:"subjects"`
}

// handleAssignments handles GET /api/assignments: the authenticated teacher's
// (class, subject) pairs, grouped by class for a cascading picker.
func handleAssignments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	sess, ok := requireTeacher(w, r)
	if !ok {
		return
	}

	result, err := projections.QueryGetAssignments(r.Context(), projections.GetAssignmentsQuery{
		TeacherID: sess.AccountID,
	}, projections.GetAssignmentsDeps{
		ClassroomStore: stores.ClassroomStore,
	})
	if err != nil {
		internalError(w, err)
		return
	}

	resp := assignmentsResponse{Classes: []classAssignmentsDTO{}}
	for _, c := range result.Classes {
		resp.Classes = append(resp.Classes, classAssignmentsDTO{
			ClassID:   c.ClassID,
			ClassName: c.ClassName,
			Subjects:  c.Subjects,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type studentDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

type rosterResponse struct {
	ClassID  string       `json:"class_id"`
	Students []studentDTO `json:"students"`
}

// handleRoster handles GET /api/roster?class=.
func handleRoster(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if _, ok := requireTeacher(w, r); !ok {
		return
	}

	classID := r.URL.Query().Get("class")
	if classID == "" {
		http.Error(w, "class is required", http.StatusBadRequest)
		return
	}
	result, err := projections.QueryGetRoster(r.Context(), projections.GetRosterQuery{
		ClassID: classID,
	}, projections.GetRosterDeps{
		RosterStore: stores.RosterStore,
	})
	if err != nil {
		internalError(w, err)
		return
	}

	resp := rosterResponse{ClassID: classID, Students: []studentDTO{}}
	for _, s := range result.Students {
		resp.Students = append(resp.Students, studentDTO{ID: s.ID, Name: s.Name, AvatarURL: s.AvatarURL})
	}
	writeJSON(w, http.StatusOK, resp)
}

type sessionEntryDTO struct {
	Status string `json:"status,omitempty"`
	Score  *int   `json:"score,omitempty"`
}

type sessionResponse struct {
	Kind      string                     `json:"kind"`
	ClassID   string                     `json:"class_id"`
	Subject   string                     `json:"subject"`
	Date      string                     `json:"date"`
	Status    string                     `json:"status"`
	Existing  bool                       `json:"existing"`
	Entries   map[string]sessionEntryDTO `json:"entries"`
	ExamTitle string                     `json:"exam_title,omitempty"`
	MaxScore  int                        `json:"max_score,omitempty"`
	CreatedAt string                     `json:"created_at,omitempty"`
	UpdatedAt string                     `json:"updated_at,omitempty"`
}

func sessionEntriesDTO(kind session.Kind, entries map[string]session.Entry) map[string]sessionEntryDTO {
	out := make(map[string]sessionEntryDTO, len(entries))
	for id, e := range entries {
		if kind == session.KindAttendance {
			out[id] = sessionEntryDTO{Status: e.Status}
			continue
		}
		dto := sessionEntryDTO{}
		if e.Filled {
			score := e.Score
			dto.Score = &score
		}
		out[id] = dto
	}
	return out
}

type commitSessionRequest struct {
	Kind      string            `json:"kind" validate:"required,oneof=attendance exam"`
	ClassID   string            `json:"class_id" validate:"required"`
	Subject   string            `json:"subject" validate:"required"`
	Date      string            `json:"date" validate:"required"`
	Unlocked  bool              `json:"unlocked"`
	Statuses  map[string]string `json:"statuses"`
	Scores    map[string]string `json:"scores"`
	ExamTitle string            `json:"exam_title"`
	MaxScore  int               `json:"max_score" validate:"gte=0"`
}

type commitSessionResponse struct {
	ID           string `json:"id"`
	Updated      bool   `json:"updated"`
	StudentCount int    `json:"student_count"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

// handleSessions handles GET (load) and POST (commit) for /api/sessions.
func handleSessions(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireTeacher(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		result, err := orchestrators.ExecuteLoadSession(r.Context(), orchestrators.LoadSessionInput{
			Kind:      session.Kind(q.Get("kind")),
			ClassID:   q.Get("class"),
			Subject:   q.Get("subject"),
			Date:      q.Get("date"),
			TeacherID: sess.AccountID,
		}, orchestrators.LoadSessionDeps{
			SessionStore:   stores.SessionStore,
			RosterStore:    stores.RosterStore,
			ClassroomStore: stores.ClassroomStore,
			Now:            timeNow,
		})
		if err != nil {
			writeSessionError(w, err)
			return
		}

		loaded := result.Session
		resp := sessionResponse{
			Kind:      string(loaded.Kind),
			ClassID:   loaded.Key.ClassID,
			Subject:   loaded.Key.Subject,
			Date:      session.FormatLedgerDate(loaded.Key.Date),
			Status:    string(loaded.Status),
			Existing:  result.Existing,
			Entries:   sessionEntriesDTO(loaded.Kind, loaded.Entries),
			ExamTitle: loaded.Metadata.ExamTitle,
			MaxScore:  loaded.Metadata.MaxScore,
		}
		if result.Existing {
			resp.CreatedAt = loaded.CreatedAt.Format(time.RFC3339)
			resp.UpdatedAt = loaded.UpdatedAt.Format(time.RFC3339)
		}
		writeJSON(w, http.StatusOK, resp)

	case http.MethodPost:
		var req commitSessionRequest
		if err := strictDecode(r, &req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if err := validate.Struct(req); err != nil {
			http.Error(w, "kind, class_id, subject and date are required", http.StatusBadRequest)
			return
		}

		result, err := orchestrators.ExecuteCommitSession(r.Context(), orchestrators.CommitSessionInput{
			Kind:      session.Kind(req.Kind),
			ClassID:   req.ClassID,
			Subject:   req.Subject,
			Date:      req.Date,
			TeacherID: sess.AccountID,
			Unlocked:  req.Unlocked,
			Statuses:  req.Statuses,
			Scores:    req.Scores,
			ExamTitle: req.ExamTitle,
			MaxScore:  req.MaxScore,
		}, orchestrators.CommitSessionDeps{
			SessionStore:   stores.SessionStore,
			RosterStore:    stores.RosterStore,
			ClassroomStore: stores.ClassroomStore,
			Now:            timeNow,
		})
		if err != nil {
			writeSessionError(w, err)
			return
		}

		status := http.StatusCreated
		if result.Updated {
			status = http.StatusOK
		}
		writeJSON(w, status, commitSessionResponse{
			ID:           result.Record.ID,
			Updated:      result.Updated,
			StudentCount: result.Record.StudentCount,
			CreatedAt:    result.Record.CreatedAt.Format(time.RFC3339),
			UpdatedAt:    result.Record.UpdatedAt.Format(time.RFC3339),
		})

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// writeSessionError maps session orchestrator errors to HTTP statuses.
// Caller-correctable failures (bad dates, max-score breaches, bad statuses)
// carry their message verbatim; anything else is a backing failure and gets
// the generic internal response.
func writeSessionError(w http.ResponseWriter, err error) {
	var inputErr *orchestrators.InputError
	switch {
	case errors.Is(err, orchestrators.ErrNotAssigned):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, orchestrators.ErrKeyOccupied):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.As(err, &inputErr):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		internalError(w, err)
	}
}

type coverageResponse struct {
	Year         int              `json:"year"`
	Month        int              `json:"month"`
	Dates        []string         `json:"dates"`
	Days         []coverageDayDTO `json:"days"`
	CanGoForward bool             `json:"can_go_forward"`
}

type coverageDayDTO struct {
	Date     string `json:"date"`
	Day      int    `json:"day"`
	Covered  bool   `json:"covered"`
	Future   bool   `json:"future"`
	Selected bool   `json:"selected"`
}

// handleCoverage handles GET /api/coverage?kind=&class=&subject=&year=&month=&selected=.
// Year and month default to the current month when absent.
func handleCoverage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if _, ok := requireTeacher(w, r); !ok {
		return
	}

	q := r.URL.Query()
	kind := session.Kind(q.Get("kind"))
	if kind != session.KindAttendance && kind != session.KindExam {
		http.Error(w, "kind must be 'attendance' or 'exam'", http.StatusBadRequest)
		return
	}
	if q.Get("class") == "" {
		http.Error(w, "class is required", http.StatusBadRequest)
		return
	}
	if q.Get("subject") == "" {
		http.Error(w, "subject is required", http.StatusBadRequest)
		return
	}

	now := timeNow().UTC()
	year, month := now.Year(), now.Month()
	if y := q.Get("year"); y != "" {
		parsed, err := strconv.Atoi(y)
		if err != nil {
			http.Error(w, "year must be a number", http.StatusBadRequest)
			return
		}
		year = parsed
	}
	if m := q.Get("month"); m != "" {
		parsed, err := strconv.Atoi(m)
		if err != nil || parsed < 1 || parsed > 12 {
			http.Error(w, "month must be between 1 and 12", http.StatusBadRequest)
			return
		}
		month = time.Month(parsed)
	}

	result, err := projections.QueryGetCoverage(r.Context(), projections.GetCoverageQuery{
		Kind:     kind,
		ClassID:  q.Get("class"),
		Subject:  q.Get("subject"),
		Year:     year,
		Month:    month,
		Selected: q.Get("selected"),
	}, projections.GetCoverageDeps{
		SessionStore: stores.SessionStore,
		Now:          timeNow,
	})
	if err != nil {
		internalError(w, err)
		return
	}

	resp := coverageResponse{
		Year:         result.Year,
		Month:        int(result.Month),
		Dates:        result.Dates,
		Days:         []coverageDayDTO{},
		CanGoForward: result.CanGoForward,
	}
	for _, d := range result.Days {
		resp.Days = append(resp.Days, coverageDayDTO{
			Date:     d.Date,
			Day:      d.Day,
			Covered:  d.Covered,
			Future:   d.Future,
			Selected: d.Selected,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// handlePerfDashboard handles GET /api/perf: recent request timings, admin only.
func handlePerfDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !middleware.IsAdmin(r.Context()) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	minutes := 5
	if m := r.URL.Query().Get("minutes"); m != "" {
		parsed, err := strconv.Atoi(m)
		if err != nil || parsed < 1 {
			http.Error(w, "minutes must be a positive number", http.StatusBadRequest)
			return
		}
		minutes = parsed
	}

	since := timeNow().Add(-time.Duration(minutes) * time.Minute)
	snapshot := perfCollector.Snapshot(since, 10)
	writeJSON(w, http.StatusOK, snapshot)
}
