package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"progress-engine/internal/app"
	"progress-engine/internal/domain"
)

// studentHeader carries the authenticated learner ID. Identity is
// established upstream; the engine trusts the value as-is.
const studentHeader = "X-Student-ID"

// Handler exposes the engine's operation surface over JSON/HTTP.
type Handler struct {
	engine *app.Engine
}

func NewHandler(engine *app.Engine) *Handler {
	return &Handler{engine: engine}
}

// Register wires the REST routes onto the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/attempts", h.Attempts)
	mux.HandleFunc("/lessons/complete", h.CompleteLesson)
	mux.HandleFunc("/enrollments", h.Enroll)
	mux.HandleFunc("/stats", h.GetStats)
	mux.HandleFunc("/leaderboard", h.GetLeaderboard)
}

type submitAttemptRequest struct {
	QuizID  string            `json:"quizId"`
	Answers map[string]string `json:"answers"`
}

type submitAttemptResponse struct {
	app.AttemptResult
	AwardPending bool   `json:"awardPending,omitempty"`
	Error        string `json:"error,omitempty"`
}

// Attempts dispatches the attempt routes: POST submits, GET lists the
// learner's trail for a quiz.
func (h *Handler) Attempts(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		h.ListAttempts(w, r)
		return
	}
	h.SubmitAttempt(w, r)
}

func (h *Handler) SubmitAttempt(w http.ResponseWriter, r *http.Request) {
	studentID, ok := h.student(w, r, http.MethodPost)
	if !ok {
		return
	}
	var req submitAttemptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.QuizID == "" {
		http.Error(w, "quizId and answers required", http.StatusBadRequest)
		return
	}

	result, err := h.engine.SubmitQuizAttempt(r.Context(), studentID, req.QuizID, req.Answers)
	if err != nil {
		if result.Attempt.ID != "" {
			// The attempt was graded and recorded but the award did not
			// commit; report the score with the side effect flagged
			// pending so the client can retry the submission.
			writeJSON(w, http.StatusAccepted, submitAttemptResponse{
				AttemptResult: result,
				AwardPending:  true,
				Error:         err.Error(),
			})
			return
		}
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, submitAttemptResponse{AttemptResult: result})
}

func (h *Handler) ListAttempts(w http.ResponseWriter, r *http.Request) {
	studentID, ok := h.student(w, r, http.MethodGet)
	if !ok {
		return
	}
	quizID := r.URL.Query().Get("quizId")
	if quizID == "" {
		http.Error(w, "quizId query parameter required", http.StatusBadRequest)
		return
	}
	attempts, err := h.engine.ListAttempts(r.Context(), studentID, quizID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if attempts == nil {
		attempts = []domain.QuizAttempt{}
	}
	writeJSON(w, http.StatusOK, attempts)
}

type completeLessonRequest struct {
	LessonID string `json:"lessonId"`
}

type completeLessonResponse struct {
	Progress          domain.Progress `json:"progress"`
	WasNewlyCompleted bool            `json:"wasNewlyCompleted"`
}

func (h *Handler) CompleteLesson(w http.ResponseWriter, r *http.Request) {
	studentID, ok := h.student(w, r, http.MethodPost)
	if !ok {
		return
	}
	var req completeLessonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.LessonID == "" {
		http.Error(w, "lessonId required", http.StatusBadRequest)
		return
	}

	progress, wasNew, err := h.engine.MarkLessonComplete(r.Context(), studentID, req.LessonID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	status := http.StatusOK
	if wasNew {
		status = http.StatusCreated
	}
	writeJSON(w, status, completeLessonResponse{Progress: progress, WasNewlyCompleted: wasNew})
}

type enrollRequest struct {
	CourseID string `json:"courseId"`
}

type enrollResponse struct {
	Enrollment domain.Enrollment `json:"enrollment"`
	Created    bool              `json:"created"`
}

func (h *Handler) Enroll(w http.ResponseWriter, r *http.Request) {
	studentID, ok := h.student(w, r, http.MethodPost)
	if !ok {
		return
	}
	var req enrollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CourseID == "" {
		http.Error(w, "courseId required", http.StatusBadRequest)
		return
	}

	enrollment, created, err := h.engine.Enroll(r.Context(), studentID, req.CourseID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, enrollResponse{Enrollment: enrollment, Created: created})
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	studentID, ok := h.student(w, r, http.MethodGet)
	if !ok {
		return
	}
	stats, err := h.engine.GetStats(r.Context(), studentID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			http.Error(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = parsed
	}
	lb, err := h.engine.GetLeaderboard(r.Context(), limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lb)
}

func (h *Handler) student(w http.ResponseWriter, r *http.Request, method string) (string, bool) {
	if r.Method != method {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return "", false
	}
	studentID := r.Header.Get(studentHeader)
	if studentID == "" {
		http.Error(w, "missing "+studentHeader+" header", http.StatusBadRequest)
		return "", false
	}
	return studentID, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), statusFor(err))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrQuizNotFound),
		errors.Is(err, domain.ErrLessonNotFound),
		errors.Is(err, domain.ErrCourseNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrNotEnrolled):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidQuiz):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrConflict):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
