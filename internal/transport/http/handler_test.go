package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"timed-quiz-service/internal/app"
	"timed-quiz-service/internal/bank"
	"timed-quiz-service/internal/domain"
	"timed-quiz-service/internal/infra/memory"
)

func newTestServer(t *testing.T) (*httptest.Server, *app.LeaderboardHub) {
	t.Helper()
	questions := make([]domain.Question, 40)
	for i := range questions {
		questions[i] = domain.Question{
			Text:     fmt.Sprintf("question %d", i+1),
			Options:  []string{"a", "b", "c", "d"},
			Correct:  "a",
			Category: "General",
			Hint:     "starts with a",
		}
	}
	b, err := bank.New(questions)
	if err != nil {
		t.Fatalf("new bank: %v", err)
	}

	results := memory.NewResultRepository()
	board := app.NewLeaderboardCache(results, 10, 0)
	hub := app.NewLeaderboardHub()
	service := app.NewQuizService(memory.NewSessionStore(time.Hour), results, b, board, hub)

	router := chi.NewRouter()
	NewHandler(service, hub).Routes(router)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server, hub
}

// client that surfaces redirects instead of following them
func noRedirectClient() *http.Client {
	return &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func postForm(t *testing.T, client *http.Client, rawURL string, form url.Values, cookie *http.Cookie) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	return resp
}

func get(t *testing.T, client *http.Client, rawURL string, cookie *http.Cookie) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, rawURL, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	return resp
}

func startQuiz(t *testing.T, client *http.Client, base string) *http.Cookie {
	t.Helper()
	resp := postForm(t, client, base+"/start_quiz", url.Values{
		"num_questions": {"20"},
		"username":      {"alice"},
	}, nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("start status %d", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "/quiz/1" {
		t.Fatalf("start redirected to %q", loc)
	}
	for _, cookie := range resp.Cookies() {
		if cookie.Name == sessionCookie && cookie.Value != "" {
			return cookie
		}
	}
	t.Fatalf("no session cookie set")
	return nil
}

func TestStartQuizAndViewQuestion(t *testing.T) {
	server, _ := newTestServer(t)
	client := noRedirectClient()
	cookie := startQuiz(t, client, server.URL)

	resp := get(t, client, server.URL+"/quiz/1", cookie)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("view status %d", resp.StatusCode)
	}

	var view app.QuestionView
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if view.Number != 1 || view.Total != 20 || len(view.Options) != 4 {
		t.Fatalf("view %+v", view)
	}
}

func TestQuestionClampRedirects(t *testing.T) {
	server, _ := newTestServer(t)
	client := noRedirectClient()
	cookie := startQuiz(t, client, server.URL)

	for path, want := range map[string]string{
		"/quiz/0":  "/quiz/1",
		"/quiz/21": "/quiz/20",
	} {
		resp := get(t, client, server.URL+path, cookie)
		resp.Body.Close()
		if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != want {
			t.Fatalf("%s: status %d location %q, want %q", path, resp.StatusCode, resp.Header.Get("Location"), want)
		}
	}
}

func TestMissingSessionRedirectsToEntry(t *testing.T) {
	server, _ := newTestServer(t)
	client := noRedirectClient()

	resp := get(t, client, server.URL+"/quiz/1", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/" {
		t.Fatalf("status %d location %q, want redirect to /", resp.StatusCode, resp.Header.Get("Location"))
	}

	stale := &http.Cookie{Name: sessionCookie, Value: "expired"}
	resp = get(t, client, server.URL+"/quiz/1", stale)
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/" {
		t.Fatalf("stale cookie: status %d location %q", resp.StatusCode, resp.Header.Get("Location"))
	}
}

func TestFullQuizFlow(t *testing.T) {
	server, _ := newTestServer(t)
	client := noRedirectClient()
	cookie := startQuiz(t, client, server.URL)

	// Answer the first three questions correctly.
	for n := 1; n <= 3; n++ {
		resp := postForm(t, client, fmt.Sprintf("%s/quiz/%d", server.URL, n), url.Values{
			"answer":      {"a"},
			"next_action": {"next"},
		}, cookie)
		resp.Body.Close()
		if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != fmt.Sprintf("/quiz/%d", n+1) {
			t.Fatalf("q%d: status %d location %q", n, resp.StatusCode, resp.Header.Get("Location"))
		}
	}

	// Request help and finish from question 4.
	resp := postForm(t, client, server.URL+"/quiz/4", url.Values{
		"request_answer": {"on"},
		"next_action":    {"finish"},
	}, cookie)
	resp.Body.Close()
	if resp.Header.Get("Location") != "/review_or_end" {
		t.Fatalf("finish redirected to %q", resp.Header.Get("Location"))
	}

	resp = get(t, client, server.URL+"/review_or_end", cookie)
	var status app.ReviewStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode review status: %v", err)
	}
	resp.Body.Close()
	if !status.HasUnanswered || len(status.Unanswered) != 17 {
		t.Fatalf("review status %+v", status)
	}

	resp = get(t, client, server.URL+"/end_test", cookie)
	var endView struct {
		Summary         *domain.Summary `json:"summary"`
		PendingRequests []string        `json:"pendingRequests"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&endView); err != nil {
		t.Fatalf("decode end view: %v", err)
	}
	resp.Body.Close()
	if endView.Summary == nil || endView.Summary.RawCorrect != 3 || endView.Summary.Score != 3 {
		t.Fatalf("summary %+v", endView.Summary)
	}
	if len(endView.PendingRequests) != 1 {
		t.Fatalf("pending requests %v", endView.PendingRequests)
	}

	resp = postForm(t, client, server.URL+"/end_test", url.Values{
		"username": {"alice"},
		"email":    {"alice@example.com"},
	}, cookie)
	resp.Body.Close()
	if resp.Header.Get("Location") != "/leaderboard" {
		t.Fatalf("end_test redirected to %q", resp.Header.Get("Location"))
	}

	resp = get(t, client, server.URL+"/leaderboard", cookie)
	var lb domain.Leaderboard
	if err := json.NewDecoder(resp.Body).Decode(&lb); err != nil {
		t.Fatalf("decode leaderboard: %v", err)
	}
	resp.Body.Close()
	if len(lb.Entries) != 1 || lb.Entries[0].Username != "alice" || lb.Entries[0].Percentage != 15.0 {
		t.Fatalf("leaderboard %+v", lb.Entries)
	}
	if lb.Final == nil || lb.Final.Score != 3 {
		t.Fatalf("final result %+v", lb.Final)
	}
}

func TestReviewJumpEndpoints(t *testing.T) {
	server, _ := newTestServer(t)
	client := noRedirectClient()
	cookie := startQuiz(t, client, server.URL)

	resp := postForm(t, client, server.URL+"/quiz/5", url.Values{
		"mark":        {"on"},
		"next_action": {"next"},
	}, cookie)
	resp.Body.Close()

	resp = get(t, client, server.URL+"/review_marked/0", cookie)
	resp.Body.Close()
	if resp.Header.Get("Location") != "/quiz/5" {
		t.Fatalf("review_marked/0 redirected to %q", resp.Header.Get("Location"))
	}

	resp = get(t, client, server.URL+"/review_marked/5", cookie)
	resp.Body.Close()
	if resp.Header.Get("Location") != "/review_or_end" {
		t.Fatalf("out-of-range ordinal redirected to %q", resp.Header.Get("Location"))
	}

	// Question 5 carries an answer-less submission, so it stays unanswered;
	// the 0th unanswered question is 1.
	resp = get(t, client, server.URL+"/review_unanswered/0", cookie)
	resp.Body.Close()
	if resp.Header.Get("Location") != "/quiz/1" {
		t.Fatalf("review_unanswered/0 redirected to %q", resp.Header.Get("Location"))
	}
}
