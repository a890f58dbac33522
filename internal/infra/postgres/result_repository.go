package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"timed-quiz-service/internal/domain"
)

type scoreRow struct {
	bun.BaseModel `bun:"table:scores"`

	ID         int64     `bun:"id,pk,autoincrement"`
	Username   string    `bun:"username,notnull"`
	Score      float64   `bun:"score,notnull"`
	Percentage float64   `bun:"percentage,notnull"`
	CreatedAt  time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type answerRequestRow struct {
	bun.BaseModel `bun:"table:answer_requests"`

	ID        int64     `bun:"id,pk,autoincrement"`
	Username  string    `bun:"username,notnull"`
	Email     string    `bun:"email,notnull"`
	Question  string    `bun:"question,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

// ResultRepository persists ScoreRecords and AnswerRequests in Postgres.
type ResultRepository struct {
	db *bun.DB
}

func NewResultRepository(db *bun.DB) *ResultRepository {
	return &ResultRepository{db: db}
}

// NewDB opens a bun handle over the pgdriver connector for the given DSN.
func NewDB(dsn string) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return bun.NewDB(sqldb, pgdialect.New())
}

func (r *ResultRepository) SaveScore(ctx context.Context, record *domain.ScoreRecord) error {
	row := &scoreRow{
		Username:   record.Username,
		Score:      record.Score,
		Percentage: record.Percentage,
		CreatedAt:  record.CreatedAt,
	}
	if _, err := r.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("insert score: %w", err)
	}
	record.ID = row.ID
	return nil
}

// SaveAnswerRequests writes the batch inside one transaction: all rows land
// or none do.
func (r *ResultRepository) SaveAnswerRequests(ctx context.Context, requests []domain.AnswerRequest) error {
	if len(requests) == 0 {
		return nil
	}
	rows := make([]answerRequestRow, len(requests))
	for i, req := range requests {
		rows[i] = answerRequestRow{
			Username:  req.Username,
			Email:     req.Email,
			Question:  req.Question,
			CreatedAt: req.CreatedAt,
		}
	}
	err := r.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().Model(&rows).Exec(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("insert answer requests: %w", err)
	}
	return nil
}

// TopScores returns the ranked entries: percentage descending, id ascending
// as the tiebreak (insertion order).
func (r *ResultRepository) TopScores(ctx context.Context, limit int) ([]domain.ScoreRecord, error) {
	var rows []scoreRow
	err := r.db.NewSelect().
		Model(&rows).
		OrderExpr("percentage DESC").
		OrderExpr("id ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select top scores: %w", err)
	}
	records := make([]domain.ScoreRecord, len(rows))
	for i, row := range rows {
		records[i] = domain.ScoreRecord{
			ID:         row.ID,
			Username:   row.Username,
			Score:      row.Score,
			Percentage: row.Percentage,
			CreatedAt:  row.CreatedAt,
		}
	}
	return records, nil
}
