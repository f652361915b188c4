// Package leaderboard ranks students by accumulated XP. Awards arrive
// through the progression engine's XP sink; rankings are served from Redis
// sorted sets, one global and one per course.
package leaderboard

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/redis/go-redis/v9"
)

const (
	globalKey       = "leaderboard:global"
	courseKeyPrefix = "leaderboard:course:"
)

// Entry is one ranked row.
type Entry struct {
	Rank        int     `json:"rank"`
	StudentID   string  `json:"student_id"`
	DisplayName string  `json:"display_name,omitempty"`
	XP          float64 `json:"xp"`
}

// Board records XP awards and serves rankings.
type Board interface {
	RecordXP(ctx context.Context, studentID, courseID string, amount float64) error
	Top(ctx context.Context, courseID string, n int) ([]Entry, error)
}

// Nop discards all awards and serves empty rankings.
type Nop struct{}

func (Nop) RecordXP(context.Context, string, string, float64) error { return nil }

func (Nop) Top(context.Context, string, int) ([]Entry, error) { return nil, nil }

// Memory keeps scores in process for tests and cache-less deployments.
type Memory struct {
	mu     sync.Mutex
	scores map[string]map[string]float64 // scope key -> student -> xp
}

func NewMemory() *Memory {
	return &Memory{scores: make(map[string]map[string]float64)}
}

func (m *Memory) RecordXP(_ context.Context, studentID, courseID string, amount float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range scopeKeys(courseID) {
		if m.scores[key] == nil {
			m.scores[key] = make(map[string]float64)
		}
		m.scores[key][studentID] += amount
	}
	return nil
}

func (m *Memory) Top(_ context.Context, courseID string, n int) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := globalKey
	if courseID != "" {
		key = courseKeyPrefix + courseID
	}
	entries := make([]Entry, 0, len(m.scores[key]))
	for sid, xp := range m.scores[key] {
		entries = append(entries, Entry{StudentID: sid, XP: xp})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].XP != entries[j].XP {
			return entries[i].XP > entries[j].XP
		}
		return entries[i].StudentID < entries[j].StudentID
	})
	if n > 0 && len(entries) > n {
		entries = entries[:n]
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}

// Redis backs the leaderboard with sorted sets. Every award increments the
// global set and, when the award came from course activity, the course set.
type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) RecordXP(ctx context.Context, studentID, courseID string, amount float64) error {
	pipe := r.client.Pipeline()
	for _, key := range scopeKeys(courseID) {
		pipe.ZIncrBy(ctx, key, amount, studentID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record xp for %s: %w", studentID, err)
	}
	return nil
}

func (r *Redis) Top(ctx context.Context, courseID string, n int) ([]Entry, error) {
	key := globalKey
	if courseID != "" {
		key = courseKeyPrefix + courseID
	}
	if n <= 0 {
		n = 10
	}
	rows, err := r.client.ZRevRangeWithScores(ctx, key, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("read leaderboard %s: %w", key, err)
	}
	entries := make([]Entry, 0, len(rows))
	for i, row := range rows {
		entries = append(entries, Entry{
			Rank:      i + 1,
			StudentID: fmt.Sprint(row.Member),
			XP:        row.Score,
		})
	}
	return entries, nil
}

func scopeKeys(courseID string) []string {
	keys := []string{globalKey}
	if courseID != "" {
		keys = append(keys, courseKeyPrefix+courseID)
	}
	return keys
}
