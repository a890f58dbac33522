package memory

import (
	"context"
	"sort"
	"sync"

	"timed-quiz-service/internal/domain"
)

// ResultRepository is an in-memory implementation of app.ResultRepository,
// used for database-less runs and in tests.
type ResultRepository struct {
	mu       sync.Mutex
	nextID   int64
	scores   []domain.ScoreRecord
	requests []domain.AnswerRequest
}

func NewResultRepository() *ResultRepository {
	return &ResultRepository{nextID: 1}
}

func (r *ResultRepository) SaveScore(_ context.Context, record *domain.ScoreRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	record.ID = r.nextID
	r.nextID++
	r.scores = append(r.scores, *record)
	return nil
}

func (r *ResultRepository) SaveAnswerRequests(_ context.Context, requests []domain.AnswerRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range requests {
		requests[i].ID = r.nextID
		r.nextID++
	}
	r.requests = append(r.requests, requests...)
	return nil
}

// TopScores ranks by percentage descending; ties break by insertion order.
func (r *ResultRepository) TopScores(_ context.Context, limit int) ([]domain.ScoreRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ranked := append([]domain.ScoreRecord(nil), r.scores...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Percentage > ranked[j].Percentage
	})
	if limit > 0 && limit < len(ranked) {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

// AnswerRequests returns all stored help requests; test helper.
func (r *ResultRepository) AnswerRequests() []domain.AnswerRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.AnswerRequest(nil), r.requests...)
}

// Scores returns all stored score records; test helper.
func (r *ResultRepository) Scores() []domain.ScoreRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.ScoreRecord(nil), r.scores...)
}
