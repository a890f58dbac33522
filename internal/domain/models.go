package domain

import "time"

// Question is a single multiple-choice question. Questions are loaded once
// at startup and never mutated afterwards.
type Question struct {
	Text     string   `json:"text"`
	Options  []string `json:"options"` // exactly four
	Correct  string   `json:"correct"`
	Category string   `json:"category"`
	Hint     string   `json:"hint"`
}

// QuizSession is the per-user quiz-in-progress state, keyed by an opaque
// session identifier. All per-question slices have length NumQuestions.
type QuizSession struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	NumQuestions int        `json:"numQuestions"`
	Questions    []Question `json:"questions"`
	Answers      []*string  `json:"answers"` // nil = unanswered
	Marked       []bool     `json:"marked"`
	HintsUsed    []bool     `json:"hintsUsed"`
	HelpRequests []string   `json:"helpRequests"` // question texts, accumulated
	Score        float64    `json:"score"`
	Current      int        `json:"current"` // last visited question, 1-indexed, 0 before any submit
	StartedAt    time.Time  `json:"startedAt"`
	TimeLimit    int        `json:"timeLimit"` // seconds
	Finished     bool       `json:"finished"`
	Summary      *Summary   `json:"summary,omitempty"` // set once on finish
}

// CategoryResult aggregates correctness for one category label.
type CategoryResult struct {
	Correct    int     `json:"correct"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}

// Summary is the outcome of scoring a finished session.
type Summary struct {
	RawCorrect int                       `json:"rawCorrect"`
	Penalty    float64                   `json:"penalty"`
	Score      float64                   `json:"score"` // raw minus penalty, floored at 0
	Total      int                       `json:"total"`
	Percentage float64                   `json:"percentage"`
	Categories map[string]CategoryResult `json:"categories"`
}

// ScoreRecord is the durable result row written once per completed quiz.
type ScoreRecord struct {
	ID         int64     `json:"id"`
	Username   string    `json:"username"`
	Score      float64   `json:"score"`
	Percentage float64   `json:"percentage"`
	CreatedAt  time.Time `json:"createdAt"`
}

// AnswerRequest is a durable request to receive the answer to one question,
// written only when the user supplies contact details at submission time.
type AnswerRequest struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Question  string    `json:"question"`
	CreatedAt time.Time `json:"createdAt"`
}

// Contact carries the optional details collected on the end-of-test form.
type Contact struct {
	Username     string `json:"username"`
	Email        string `json:"email"`
	Phone        string `json:"phone,omitempty"`
	EmailAnswers bool   `json:"emailAnswers"`
	OptInText    bool   `json:"optInText"`
}

// Leaderboard is the ranked top-N view plus the caller's own final result
// when their session has one.
type Leaderboard struct {
	Entries   []ScoreRecord `json:"entries"`
	Final     *Summary      `json:"final,omitempty"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// TimeReport is the pure check_time read: elapsed/remaining plus pacing
// averages, all broken into whole minutes and seconds.
type TimeReport struct {
	ElapsedMin       int `json:"elapsedMin"`
	ElapsedSec       int `json:"elapsedSec"`
	RemainingMin     int `json:"remainingMin"`
	RemainingSec     int `json:"remainingSec"`
	AvgAnsweredMin   int `json:"avgAnsweredMin"`
	AvgAnsweredSec   int `json:"avgAnsweredSec"`
	AvgRemainingMin  int `json:"avgRemainingMin"`
	AvgRemainingSec  int `json:"avgRemainingSec"`
	AnsweredSoFar    int `json:"answeredSoFar"`
	QuestionsLeft    int `json:"questionsLeft"`
	RemainingSeconds int `json:"remainingSeconds"`
}
