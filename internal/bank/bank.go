// Package bank holds the immutable question bank loaded once at startup.
package bank

import (
	"encoding/csv"
	"fmt"
	"io"
	"math/rand"
	"os"
	"strings"
	"sync"
	"time"

	"timed-quiz-service/internal/domain"
)

const (
	// DefaultCategory is applied when a row omits the category column.
	DefaultCategory = "Uncategorized"
	// DefaultHint is applied when a row omits the hint column.
	DefaultHint = "Article unknown"
)

var mandatoryColumns = []string{"question", "option1", "option2", "option3", "option4", "correct"}

// Bank is a read-only set of candidate questions shared by all sessions.
type Bank struct {
	questions []domain.Question

	mu  sync.Mutex
	rnd *rand.Rand
}

// New wraps an already-loaded question slice.
func New(questions []domain.Question) (*Bank, error) {
	if len(questions) == 0 {
		return nil, domain.ErrBankEmpty
	}
	return &Bank{
		questions: questions,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// Size reports how many questions the bank holds.
func (b *Bank) Size() int {
	return len(b.questions)
}

// Sample draws n distinct questions uniformly at random without replacement.
// n greater than the bank size is clamped to the bank size.
func (b *Bank) Sample(n int) []domain.Question {
	if n > len(b.questions) {
		n = len(b.questions)
	}
	if n < 0 {
		n = 0
	}

	b.mu.Lock()
	perm := b.rnd.Perm(len(b.questions))
	b.mu.Unlock()

	selected := make([]domain.Question, n)
	for i := 0; i < n; i++ {
		selected[i] = b.questions[perm[i]]
	}
	return selected
}

// LoadCSV reads the question bank from a CSV file with header
// question,option1,option2,option3,option4,correct,category,hint.
// Category and hint are optional columns.
func LoadCSV(path string) (*Bank, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open question bank: %w", err)
	}
	defer f.Close()
	return ReadCSV(f)
}

// ReadCSV parses question rows from r. It fails on a missing mandatory
// column or a short row so a malformed bank never serves traffic.
func ReadCSV(r io.Reader) (*Bank, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: read header: %v", domain.ErrBankFormat, err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(strings.ToLower(name))] = i
	}
	for _, name := range mandatoryColumns {
		if _, ok := columns[name]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", domain.ErrBankFormat, name)
		}
	}

	var questions []domain.Question
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", domain.ErrBankFormat, line, err)
		}

		q := domain.Question{
			Text: field(row, columns, "question"),
			Options: []string{
				field(row, columns, "option1"),
				field(row, columns, "option2"),
				field(row, columns, "option3"),
				field(row, columns, "option4"),
			},
			Correct:  field(row, columns, "correct"),
			Category: field(row, columns, "category"),
			Hint:     field(row, columns, "hint"),
		}
		if q.Text == "" || q.Correct == "" {
			return nil, fmt.Errorf("%w: line %d: empty question or correct option", domain.ErrBankFormat, line)
		}
		if q.Category == "" {
			q.Category = DefaultCategory
		}
		if q.Hint == "" {
			q.Hint = DefaultHint
		}
		questions = append(questions, q)
	}

	return New(questions)
}

func field(row []string, columns map[string]int, name string) string {
	i, ok := columns[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
