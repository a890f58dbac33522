// Package http exposes the quiz over plain HTTP: JSON views, form posts and
// 303 redirects driven by the navigation state machine.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"timed-quiz-service/internal/app"
	"timed-quiz-service/internal/domain"
)

const sessionCookie = "quiz_session"

// Handler holds shared dependencies for the HTTP endpoints.
type Handler struct {
	service *app.QuizService
	hub     *app.LeaderboardHub
	counts  []int
}

func NewHandler(service *app.QuizService, hub *app.LeaderboardHub) *Handler {
	return &Handler{
		service: service,
		hub:     hub,
		counts:  []int{20, 40, 60, 100},
	}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.handleIndex)
	r.Post("/start_quiz", h.handleStartQuiz)
	r.Get("/quiz/{n}", h.handleQuizView)
	r.Post("/quiz/{n}", h.handleQuizSubmit)
	r.Get("/review_or_end", h.handleReviewOrEnd)
	r.Get("/review_unanswered/{index}", h.handleReviewUnanswered)
	r.Post("/review_unanswered/{index}", h.handleReviewUnanswered)
	r.Get("/review_marked/{index}", h.handleReviewMarked)
	r.Post("/review_marked/{index}", h.handleReviewMarked)
	r.Get("/end_test", h.handleEndTestView)
	r.Post("/end_test", h.handleEndTestSubmit)
	r.Get("/leaderboard", h.handleLeaderboard)
	r.Get("/ws/leaderboard", h.ServeWS)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"questionCounts": h.counts,
	})
}

func (h *Handler) handleStartQuiz(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	numQuestions, _ := strconv.Atoi(r.PostFormValue("num_questions"))
	username := r.PostFormValue("username")

	id, err := h.service.Start(r.Context(), username, numQuestions)
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/quiz/1", http.StatusSeeOther)
}

func (h *Handler) handleQuizView(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	n, _ := strconv.Atoi(chi.URLParam(r, "n"))

	step, err := h.service.ViewQuestion(r.Context(), id, n)
	if err != nil {
		h.stepError(w, r, err)
		return
	}
	h.renderStep(w, r, step)
}

func (h *Handler) handleQuizSubmit(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	n, _ := strconv.Atoi(chi.URLParam(r, "n"))

	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	sub := app.Submission{
		Answer:        r.PostFormValue("answer"),
		Mark:          r.PostForm.Has("mark"),
		RequestAnswer: r.PostForm.Has("request_answer"),
		Action:        r.PostFormValue("next_action"),
	}

	step, err := h.service.SubmitQuestion(r.Context(), id, n, sub)
	if err != nil {
		h.stepError(w, r, err)
		return
	}
	h.renderStep(w, r, step)
}

func (h *Handler) handleReviewOrEnd(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	status, err := h.service.ReviewStatus(r.Context(), id)
	if err != nil {
		h.stepError(w, r, err)
		return
	}
	if status.Expired {
		http.Redirect(w, r, "/end_test", http.StatusSeeOther)
		return
	}
	writeJSON(w, status)
}

func (h *Handler) handleReviewUnanswered(w http.ResponseWriter, r *http.Request) {
	h.reviewJump(w, r, h.service.ReviewUnanswered)
}

func (h *Handler) handleReviewMarked(w http.ResponseWriter, r *http.Request) {
	h.reviewJump(w, r, h.service.ReviewMarked)
}

func (h *Handler) reviewJump(w http.ResponseWriter, r *http.Request, jump func(ctx context.Context, id string, index int) (app.Step, error)) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	index, _ := strconv.Atoi(chi.URLParam(r, "index"))

	step, err := jump(r.Context(), id, index)
	if err != nil {
		h.stepError(w, r, err)
		return
	}
	h.renderStep(w, r, step)
}

func (h *Handler) handleEndTestView(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	summary, pending, err := h.service.Finish(r.Context(), id, nil)
	if err != nil {
		h.stepError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{
		"summary":         summary,
		"pendingRequests": pending,
	})
}

func (h *Handler) handleEndTestSubmit(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	contact := &domain.Contact{
		Username:     r.PostFormValue("username"),
		Email:        r.PostFormValue("email"),
		Phone:        r.PostFormValue("phone"),
		EmailAnswers: r.PostForm.Has("email_answers"),
		OptInText:    r.PostForm.Has("opt_in_text"),
	}

	if _, _, err := h.service.Finish(r.Context(), id, contact); err != nil {
		h.stepError(w, r, err)
		return
	}
	http.Redirect(w, r, "/leaderboard", http.StatusSeeOther)
}

func (h *Handler) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	id := ""
	if cookie, err := r.Cookie(sessionCookie); err == nil {
		id = cookie.Value
	}
	lb, err := h.service.Leaderboard(r.Context(), id)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, lb)
}

// sessionID pulls the opaque session ID from the cookie. A caller without a
// session is sent to the entry page to start a quiz.
func (h *Handler) sessionID(w http.ResponseWriter, r *http.Request) (string, bool) {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil || cookie.Value == "" {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return "", false
	}
	return cookie.Value, true
}

// renderStep maps a state-machine outcome onto the wire: question views are
// returned as JSON, everything else is a 303 redirect.
func (h *Handler) renderStep(w http.ResponseWriter, r *http.Request, step app.Step) {
	switch step.Kind {
	case app.StepQuestion:
		writeJSON(w, step.View)
	case app.StepRedirect:
		http.Redirect(w, r, quizPath(step.Redirect), http.StatusSeeOther)
	case app.StepReview:
		http.Redirect(w, r, "/review_or_end", http.StatusSeeOther)
	case app.StepExpired:
		http.Redirect(w, r, "/end_test", http.StatusSeeOther)
	}
}

func (h *Handler) stepError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, domain.ErrSessionNotFound) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	h.serverError(w, r, err)
}

func (h *Handler) serverError(w http.ResponseWriter, r *http.Request, err error) {
	slog.Error("request failed", "path", r.URL.Path, "error", err)
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func quizPath(n int) string {
	return fmt.Sprintf("/quiz/%d", n)
}
