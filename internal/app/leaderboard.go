package app

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"timed-quiz-service/internal/domain"
)

// LeaderboardCache caches the ranked top-N query with a TTL so leaderboard
// views do not hit the durable store on every request.
type LeaderboardCache struct {
	results ResultRepository
	limit   int
	ttl     time.Duration
	clock   func() time.Time
	sf      singleflight.Group
	rnd     *rand.Rand

	mu        sync.RWMutex
	entries   []domain.ScoreRecord
	expiresAt time.Time
}

func NewLeaderboardCache(results ResultRepository, limit int, ttl time.Duration) *LeaderboardCache {
	return &LeaderboardCache{
		results: results,
		limit:   limit,
		ttl:     ttl,
		clock:   time.Now,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Top returns the cached ranking, refreshing it from the repository when the
// TTL has lapsed. Concurrent refreshes collapse into one query.
func (c *LeaderboardCache) Top(ctx context.Context) ([]domain.ScoreRecord, error) {
	now := c.clock()

	c.mu.RLock()
	if c.entries != nil && c.expiresAt.After(now) {
		entries := c.entries
		c.mu.RUnlock()
		return entries, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do("top", func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if c.entries != nil && c.expiresAt.After(now) {
			entries := c.entries
			c.mu.RUnlock()
			return entries, nil
		}
		c.mu.RUnlock()

		entries, err := c.results.TopScores(ctx, c.limit)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.entries = entries
		c.expiresAt = now.Add(c.ttlWithJitter())
		c.mu.Unlock()
		return entries, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.ScoreRecord), nil
}

// Invalidate drops the cached ranking; the next Top call re-queries.
func (c *LeaderboardCache) Invalidate() {
	c.mu.Lock()
	c.entries = nil
	c.expiresAt = time.Time{}
	c.mu.Unlock()
}

func (c *LeaderboardCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

// LeaderboardHub fans out leaderboard snapshots to live subscribers.
type LeaderboardHub struct {
	mu          sync.Mutex
	subscribers map[chan domain.Leaderboard]struct{}
}

func NewLeaderboardHub() *LeaderboardHub {
	return &LeaderboardHub{subscribers: make(map[chan domain.Leaderboard]struct{})}
}

// Subscribe registers a listener. The caller must invoke the returned cancel
// function to avoid leaks.
func (h *LeaderboardHub) Subscribe() (<-chan domain.Leaderboard, func()) {
	ch := make(chan domain.Leaderboard, 8)

	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subscribers[ch]; ok {
			delete(h.subscribers, ch)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Broadcast sends the snapshot to every subscriber. A slow subscriber loses
// its stale update rather than blocking the broadcast.
func (h *LeaderboardHub) Broadcast(lb domain.Leaderboard) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subscribers {
		select {
		case ch <- lb:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- lb
		}
	}
}
