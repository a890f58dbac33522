package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"timed-quiz-service/internal/bank"
	"timed-quiz-service/internal/domain"
)

// BankLoader reads the question bank from the questions table, as an
// alternative to the CSV source.
type BankLoader struct {
	pool *pgxpool.Pool
}

func NewBankLoader(pool *pgxpool.Pool) *BankLoader {
	return &BankLoader{pool: pool}
}

func (l *BankLoader) Load(ctx context.Context) (*bank.Bank, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT question, option1, option2, option3, option4, correct,
		       COALESCE(NULLIF(category, ''), $1),
		       COALESCE(NULLIF(hint, ''), $2)
		FROM questions
		ORDER BY id`, bank.DefaultCategory, bank.DefaultHint)
	if err != nil {
		return nil, fmt.Errorf("load question bank: %w", err)
	}
	defer rows.Close()

	var questions []domain.Question
	for rows.Next() {
		var q domain.Question
		q.Options = make([]string, 4)
		if err := rows.Scan(&q.Text, &q.Options[0], &q.Options[1], &q.Options[2], &q.Options[3], &q.Correct, &q.Category, &q.Hint); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read questions: %w", err)
	}
	return bank.New(questions)
}
