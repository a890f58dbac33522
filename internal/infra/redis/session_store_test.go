package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"timed-quiz-service/internal/domain"
)

func newTestStore(t *testing.T) (*SessionStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewSessionStore(client, time.Minute), mr
}

func TestSessionStoreRoundTrip(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	answer := "c"
	session := &domain.QuizSession{
		ID:           "s1",
		Username:     "bob",
		NumQuestions: 1,
		Questions:    []domain.Question{{Text: "q", Options: []string{"a", "b", "c", "d"}, Correct: "c"}},
		Answers:      []*string{&answer},
		Marked:       []bool{true},
		HintsUsed:    []bool{false},
		TimeLimit:    3600,
		StartedAt:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := store.Save(ctx, session); err != nil {
		t.Fatalf("save: %v", err)
	}
	if !mr.Exists("quiz:session:s1") {
		t.Fatalf("expected redis key to be set")
	}

	loaded, err := store.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if loaded.Username != "bob" || *loaded.Answers[0] != "c" || !loaded.StartedAt.Equal(session.StartedAt) {
		t.Fatalf("loaded %+v", loaded)
	}
}

func TestSessionStoreMissing(t *testing.T) {
	store, _ := newTestStore(t)
	if _, err := store.Get(context.Background(), "missing"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("got %v, want ErrSessionNotFound", err)
	}
}

func TestSessionStoreExpiry(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	if err := store.Save(ctx, &domain.QuizSession{ID: "s1"}); err != nil {
		t.Fatalf("save: %v", err)
	}

	mr.FastForward(2 * time.Minute)
	if _, err := store.Get(ctx, "s1"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("got %v after TTL, want ErrSessionNotFound", err)
	}
}
