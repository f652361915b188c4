// Package identity holds student profiles and their reward state: lifetime XP
// and the daily mission streak. XP lives on the profile document and is only
// ever changed through atomic increments, so concurrent awards from different
// courses never lose updates. The streak is kept in its own collection because
// it is rewritten wholesale inside mission transactions.
package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/classquest/classquest/internal/platform/docstore"
)

const (
	usersCollection   = "users"
	streaksCollection = "user_streaks"
)

// ErrNotFound is returned when a profile does not exist.
var ErrNotFound = errors.New("profile not found")

// Profile is a student or teacher account record.
type Profile struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	Role        string    `json:"role"`
	XP          float64   `json:"xp"`
	CreatedAt   time.Time `json:"created_at"`
}

// Streak is a student's daily mission streak. Current is consecutive days of
// completed logins, Longest the historical maximum, LastMissionDate the UTC
// date key (YYYY-MM-DD) of the most recent completion.
type Streak struct {
	Current         int    `json:"current_streak"`
	Longest         int    `json:"longest_streak"`
	LastMissionDate string `json:"last_mission_date"`
}

// IncrementXP atomically adds amount to the student's lifetime XP and returns
// the new total. It works on a bare Writer so the progression engine can call
// it inside its own transactions.
func IncrementXP(ctx context.Context, w docstore.Writer, studentID string, amount float64) (float64, error) {
	total, err := w.Increment(ctx, usersCollection, studentID, "xp", amount)
	if err != nil {
		return 0, fmt.Errorf("increment xp for %s: %w", studentID, err)
	}
	return total, nil
}

// GetStreak reads the student's streak. A student with no streak record yet
// gets the zero value, not an error.
func GetStreak(ctx context.Context, r docstore.Reader, studentID string) (Streak, error) {
	var st Streak
	if err := r.Get(ctx, streaksCollection, studentID, &st); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return Streak{}, nil
		}
		return Streak{}, fmt.Errorf("get streak for %s: %w", studentID, err)
	}
	return st, nil
}

// PutStreak writes the student's streak record.
func PutStreak(ctx context.Context, w docstore.Writer, studentID string, st Streak) error {
	if err := w.Put(ctx, streaksCollection, studentID, st); err != nil {
		return fmt.Errorf("put streak for %s: %w", studentID, err)
	}
	return nil
}

// Store provides profile access outside engine transactions.
type Store struct {
	docs docstore.Store
}

func NewStore(docs docstore.Store) *Store {
	return &Store{docs: docs}
}

// EnsureProfile creates the profile if it does not exist yet. Creation is
// conditional, so a concurrent XP increment that already materialized the
// document never gets overwritten.
func (s *Store) EnsureProfile(ctx context.Context, id, displayName, role string) (*Profile, error) {
	p := Profile{
		ID:          id,
		DisplayName: displayName,
		Role:        role,
		CreatedAt:   time.Now().UTC(),
	}
	created, err := s.docs.Create(ctx, usersCollection, id, p)
	if err != nil {
		return nil, fmt.Errorf("create profile %s: %w", id, err)
	}
	if created {
		return &p, nil
	}
	return s.Profile(ctx, id)
}

// Profile returns a profile by ID.
func (s *Store) Profile(ctx context.Context, id string) (*Profile, error) {
	var p Profile
	if err := s.docs.Get(ctx, usersCollection, id, &p); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, fmt.Errorf("profile %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	// An increment against a missing profile materializes a document holding
	// only the XP field. Backfill the ID so callers always see one.
	if p.ID == "" {
		p.ID = id
	}
	return &p, nil
}

// Profiles resolves several profiles at once, skipping IDs with no record.
// Used to attach display names to leaderboard entries.
func (s *Store) Profiles(ctx context.Context, ids []string) (map[string]Profile, error) {
	out := make(map[string]Profile, len(ids))
	for _, id := range ids {
		p, err := s.Profile(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		out[id] = *p
	}
	return out, nil
}

// Streak returns the student's streak record through the store.
func (s *Store) Streak(ctx context.Context, studentID string) (Streak, error) {
	return GetStreak(ctx, s.docs, studentID)
}
