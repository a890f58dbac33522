package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"timed-quiz-service/internal/bank"
	"timed-quiz-service/internal/domain"
)

// SessionRepository abstracts how quiz sessions are stored (in-memory, Redis, etc).
type SessionRepository interface {
	Get(ctx context.Context, id string) (*domain.QuizSession, error)
	Save(ctx context.Context, session *domain.QuizSession) error
}

// ResultRepository persists completed-quiz records and serves the ranked query.
type ResultRepository interface {
	SaveScore(ctx context.Context, record *domain.ScoreRecord) error
	SaveAnswerRequests(ctx context.Context, requests []domain.AnswerRequest) error
	TopScores(ctx context.Context, limit int) ([]domain.ScoreRecord, error)
}

// timeLimits maps the supported question counts to their budget in seconds.
// Any other count falls back to defaultTimeLimit.
var timeLimits = map[int]int{
	20:  3600,
	40:  7200,
	60:  10800,
	100: 16200,
}

const defaultTimeLimit = 3600

const defaultNumQuestions = 20

const anonymousUser = "Anonymous"

// StepKind tells the transport layer what to do after a quiz interaction.
type StepKind int

const (
	// StepQuestion renders the question view carried on the step.
	StepQuestion StepKind = iota
	// StepRedirect navigates to the question number carried on the step.
	StepRedirect
	// StepReview navigates to the review-or-end page.
	StepReview
	// StepExpired navigates to the end-of-test page; the in-flight action,
	// if any, has been discarded.
	StepExpired
)

// Step is the outcome of one interaction with the navigation state machine.
type Step struct {
	Kind     StepKind
	Redirect int // question number, set for StepRedirect
	View     *QuestionView
}

// QuestionView is what the client sees for one question. The correct option
// is deliberately absent.
type QuestionView struct {
	Number   int                `json:"number"`
	Total    int                `json:"total"`
	Text     string             `json:"text"`
	Options  []string           `json:"options"`
	Category string             `json:"category"`
	Answer   *string            `json:"answer,omitempty"`
	Marked   bool               `json:"marked"`
	Hint     string             `json:"hint,omitempty"`
	Time     *domain.TimeReport `json:"time,omitempty"`
}

// Submission is one POST to a question: the recorded fields plus the
// requested transition.
type Submission struct {
	Answer        string // empty = no answer chosen
	Mark          bool
	RequestAnswer bool
	Action        string // hint, check_time, review_marked, previous, next, finish, or empty
}

// ReviewStatus reports the session's position at the review-or-end stage.
type ReviewStatus struct {
	Expired       bool  `json:"expired"`
	HasUnanswered bool  `json:"hasUnanswered"`
	Unanswered    []int `json:"unanswered"` // question numbers, ascending
	Marked        []int `json:"marked"`     // question numbers, ascending
}

// QuizService contains the quiz use cases: starting a quiz, navigating it,
// finishing it, and reading the leaderboard.
type QuizService struct {
	sessions SessionRepository
	results  ResultRepository
	bank     *bank.Bank
	board    *LeaderboardCache
	hub      *LeaderboardHub
	now      func() time.Time
}

func NewQuizService(sessions SessionRepository, results ResultRepository, b *bank.Bank, board *LeaderboardCache, hub *LeaderboardHub) *QuizService {
	return &QuizService{
		sessions: sessions,
		results:  results,
		bank:     b,
		board:    board,
		hub:      hub,
		now:      time.Now,
	}
}

// WithClock overrides the wall clock; test-only.
func (s *QuizService) WithClock(now func() time.Time) *QuizService {
	s.now = now
	return s
}

// Start initializes a new quiz session and returns its opaque ID.
func (s *QuizService) Start(ctx context.Context, username string, numQuestions int) (string, error) {
	if username == "" {
		username = anonymousUser
	}
	if numQuestions <= 0 {
		numQuestions = defaultNumQuestions
	}

	limit, ok := timeLimits[numQuestions]
	if !ok {
		limit = defaultTimeLimit
	}

	selected := s.bank.Sample(numQuestions)
	if len(selected) == 0 {
		return "", domain.ErrBankEmpty
	}
	n := len(selected)

	session := &domain.QuizSession{
		ID:           uuid.NewString(),
		Username:     username,
		NumQuestions: n,
		Questions:    selected,
		Answers:      make([]*string, n),
		Marked:       make([]bool, n),
		HintsUsed:    make([]bool, n),
		HelpRequests: []string{},
		StartedAt:    s.now(),
		TimeLimit:    limit,
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return "", fmt.Errorf("save session: %w", err)
	}
	return session.ID, nil
}

// ViewQuestion handles a GET of question n. Out-of-range numbers redirect to
// the nearest bound; an exhausted timer redirects to the end of the test.
func (s *QuizService) ViewQuestion(ctx context.Context, id string, n int) (Step, error) {
	session, err := s.sessions.Get(ctx, id)
	if err != nil {
		return Step{}, err
	}
	if session.Finished || s.remaining(session) <= 0 {
		return Step{Kind: StepExpired}, nil
	}
	if clamped, ok := clampQuestion(n, session.NumQuestions); !ok {
		return Step{Kind: StepRedirect, Redirect: clamped}, nil
	}
	return Step{Kind: StepQuestion, View: s.questionView(session, n)}, nil
}

// SubmitQuestion handles a POST to question n per the requested action.
// The timer is checked first: once it hits zero the in-flight action is
// discarded and the caller is sent to the end of the test.
func (s *QuizService) SubmitQuestion(ctx context.Context, id string, n int, sub Submission) (Step, error) {
	session, err := s.sessions.Get(ctx, id)
	if err != nil {
		return Step{}, err
	}
	if session.Finished || s.remaining(session) <= 0 {
		return Step{Kind: StepExpired}, nil
	}
	if clamped, ok := clampQuestion(n, session.NumQuestions); !ok {
		return Step{Kind: StepRedirect, Redirect: clamped}, nil
	}

	switch sub.Action {
	case "hint":
		session.HintsUsed[n-1] = true
		if err := s.sessions.Save(ctx, session); err != nil {
			return Step{}, fmt.Errorf("save session: %w", err)
		}
		view := s.questionView(session, n)
		view.Hint = session.Questions[n-1].Hint
		return Step{Kind: StepQuestion, View: view}, nil

	case "check_time":
		// Pure read; no answer or mark state changes.
		view := s.questionView(session, n)
		report := s.timeReport(session, n)
		view.Time = &report
		return Step{Kind: StepQuestion, View: view}, nil

	case "review_marked":
		for i, marked := range session.Marked {
			if marked {
				return Step{Kind: StepRedirect, Redirect: i + 1}, nil
			}
		}
		return Step{Kind: StepRedirect, Redirect: n}, nil
	}

	// Default branch: record the submission, then follow the transition.
	session.Answers[n-1] = validAnswer(session.Questions[n-1], sub.Answer)
	session.Marked[n-1] = sub.Mark
	if sub.RequestAnswer {
		session.HelpRequests = append(session.HelpRequests, session.Questions[n-1].Text)
	}
	session.Score = runningScore(session)
	session.Current = n
	if err := s.sessions.Save(ctx, session); err != nil {
		return Step{}, fmt.Errorf("save session: %w", err)
	}

	switch sub.Action {
	case "previous":
		// No lower clamp here; the next view clamps into range.
		return Step{Kind: StepRedirect, Redirect: n - 1}, nil
	case "next":
		if n == session.NumQuestions {
			return Step{Kind: StepReview}, nil
		}
		return Step{Kind: StepRedirect, Redirect: n + 1}, nil
	case "finish":
		return Step{Kind: StepReview}, nil
	default:
		return Step{Kind: StepQuestion, View: s.questionView(session, n)}, nil
	}
}

// ReviewStatus reports whether unanswered questions remain, plus the ordinal
// lists used by the review navigation endpoints.
func (s *QuizService) ReviewStatus(ctx context.Context, id string) (ReviewStatus, error) {
	session, err := s.sessions.Get(ctx, id)
	if err != nil {
		return ReviewStatus{}, err
	}
	if session.Finished || s.remaining(session) <= 0 {
		return ReviewStatus{Expired: true}, nil
	}

	status := ReviewStatus{Unanswered: []int{}, Marked: []int{}}
	for i := 0; i < session.NumQuestions; i++ {
		if session.Answers[i] == nil {
			status.Unanswered = append(status.Unanswered, i+1)
		}
		if session.Marked[i] {
			status.Marked = append(status.Marked, i+1)
		}
	}
	status.HasUnanswered = len(status.Unanswered) > 0
	return status, nil
}

// ReviewUnanswered resolves the index-th unanswered question (0-based ordinal).
// Out-of-range ordinals send the caller back to the review page.
func (s *QuizService) ReviewUnanswered(ctx context.Context, id string, index int) (Step, error) {
	return s.reviewJump(ctx, id, index, func(session *domain.QuizSession, i int) bool {
		return session.Answers[i] == nil
	})
}

// ReviewMarked resolves the index-th marked question (0-based ordinal).
func (s *QuizService) ReviewMarked(ctx context.Context, id string, index int) (Step, error) {
	return s.reviewJump(ctx, id, index, func(session *domain.QuizSession, i int) bool {
		return session.Marked[i]
	})
}

func (s *QuizService) reviewJump(ctx context.Context, id string, index int, match func(*domain.QuizSession, int) bool) (Step, error) {
	session, err := s.sessions.Get(ctx, id)
	if err != nil {
		return Step{}, err
	}
	if session.Finished || s.remaining(session) <= 0 {
		return Step{Kind: StepExpired}, nil
	}

	var numbers []int
	for i := 0; i < session.NumQuestions; i++ {
		if match(session, i) {
			numbers = append(numbers, i+1)
		}
	}
	if index < 0 || index >= len(numbers) {
		return Step{Kind: StepReview}, nil
	}
	return Step{Kind: StepRedirect, Redirect: numbers[index]}, nil
}

// Finish transitions the session into its final state. Scoring runs and the
// ScoreRecord is persisted exactly once, on the first call; later calls see
// the stored summary. When contact details accompany pending help requests,
// one AnswerRequest per request is written as a single batch and the pending
// list is cleared. The returned slice holds the still-pending request texts.
func (s *QuizService) Finish(ctx context.Context, id string, contact *domain.Contact) (*domain.Summary, []string, error) {
	session, err := s.sessions.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	if !session.Finished {
		summary := Summarize(session)
		session.Finished = true
		session.Summary = &summary

		record := &domain.ScoreRecord{
			Username:   session.Username,
			Score:      summary.Score,
			Percentage: summary.Percentage,
			CreatedAt:  s.now(),
		}
		if err := s.results.SaveScore(ctx, record); err != nil {
			return nil, nil, fmt.Errorf("save score: %w", err)
		}
		if err := s.sessions.Save(ctx, session); err != nil {
			return nil, nil, fmt.Errorf("save session: %w", err)
		}
		s.publishLeaderboard(ctx)
	}

	if contact != nil && contact.Username != "" && contact.Email != "" && len(session.HelpRequests) > 0 {
		requests := make([]domain.AnswerRequest, 0, len(session.HelpRequests))
		for _, question := range session.HelpRequests {
			requests = append(requests, domain.AnswerRequest{
				Username:  contact.Username,
				Email:     contact.Email,
				Question:  question,
				CreatedAt: s.now(),
			})
		}
		if err := s.results.SaveAnswerRequests(ctx, requests); err != nil {
			return nil, nil, fmt.Errorf("save answer requests: %w", err)
		}
		session.HelpRequests = []string{}
		if err := s.sessions.Save(ctx, session); err != nil {
			return nil, nil, fmt.Errorf("save session: %w", err)
		}
	}

	return session.Summary, session.HelpRequests, nil
}

// Leaderboard returns the ranked top-N scores, with the caller's own final
// summary attached when their session has one. id may be empty.
func (s *QuizService) Leaderboard(ctx context.Context, id string) (domain.Leaderboard, error) {
	entries, err := s.board.Top(ctx)
	if err != nil {
		return domain.Leaderboard{}, fmt.Errorf("leaderboard query: %w", err)
	}
	lb := domain.Leaderboard{Entries: entries, UpdatedAt: s.now()}
	if id != "" {
		if session, err := s.sessions.Get(ctx, id); err == nil && session.Summary != nil {
			lb.Final = session.Summary
		}
	}
	return lb, nil
}

// publishLeaderboard refreshes the cached ranking and fans it out to
// websocket subscribers. Failures here are invisible to the finishing user.
func (s *QuizService) publishLeaderboard(ctx context.Context) {
	s.board.Invalidate()
	entries, err := s.board.Top(ctx)
	if err != nil {
		return
	}
	s.hub.Broadcast(domain.Leaderboard{Entries: entries, UpdatedAt: s.now()})
}

func (s *QuizService) remaining(session *domain.QuizSession) float64 {
	elapsed := s.now().Sub(session.StartedAt).Seconds()
	remaining := float64(session.TimeLimit) - elapsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (s *QuizService) questionView(session *domain.QuizSession, n int) *QuestionView {
	q := session.Questions[n-1]
	return &QuestionView{
		Number:   n,
		Total:    session.NumQuestions,
		Text:     q.Text,
		Options:  q.Options,
		Category: q.Category,
		Answer:   session.Answers[n-1],
		Marked:   session.Marked[n-1],
	}
}

// timeReport computes elapsed/remaining and the pacing averages: time spent
// per question answered so far (among the first n) and time left per
// question still unanswered.
func (s *QuizService) timeReport(session *domain.QuizSession, n int) domain.TimeReport {
	elapsed := s.now().Sub(session.StartedAt).Seconds()
	remaining := float64(session.TimeLimit) - elapsed
	if remaining < 0 {
		remaining = 0
	}

	answered := 0
	for _, a := range session.Answers[:n] {
		if a != nil {
			answered++
		}
	}
	left := session.NumQuestions - answered

	report := domain.TimeReport{
		ElapsedMin:       int(elapsed) / 60,
		ElapsedSec:       int(elapsed) % 60,
		RemainingMin:     int(remaining) / 60,
		RemainingSec:     int(remaining) % 60,
		AnsweredSoFar:    answered,
		QuestionsLeft:    left,
		RemainingSeconds: int(remaining),
	}
	if answered > 0 {
		avg := elapsed / float64(answered)
		report.AvgAnsweredMin = int(avg) / 60
		report.AvgAnsweredSec = int(avg) % 60
	}
	if left > 0 {
		avg := remaining / float64(left)
		report.AvgRemainingMin = int(avg) / 60
		report.AvgRemainingSec = int(avg) % 60
	}
	return report
}

// clampQuestion returns (n, true) when n is within [1, total], otherwise the
// nearest bound and false.
func clampQuestion(n, total int) (int, bool) {
	if n < 1 {
		return 1, false
	}
	if n > total {
		return total, false
	}
	return n, true
}

// validAnswer keeps the invariant that a stored answer is always one of the
// question's option identifiers; anything else is treated as unanswered.
func validAnswer(q domain.Question, answer string) *string {
	if answer == "" {
		return nil
	}
	for _, opt := range q.Options {
		if answer == opt {
			return &answer
		}
	}
	return nil
}
