package levels_test

import (
	"testing"

	"github.com/classquest/classquest/internal/levels"
)

func TestTierFor(t *testing.T) {
	tests := []struct {
		xp   float64
		want string
	}{
		{0, "Beginner"},
		{99, "Beginner"},
		{100, "Intermediate"},
		{499, "Intermediate"},
		{500, "Expert"},
		{1500, "Legend"},
		{4000, "Master"},
		{9999, "Master"},
		{10000, "Champion"},
		{250000, "Champion"},
		{-5, "Beginner"},
	}
	for _, tt := range tests {
		if got := levels.TierFor(tt.xp); got.Name != tt.want {
			t.Errorf("TierFor(%v) = %s, want %s", tt.xp, got.Name, tt.want)
		}
	}
}

func TestNextTier(t *testing.T) {
	next := levels.NextTier(50)
	if next == nil || next.Name != "Intermediate" {
		t.Errorf("NextTier(50) = %+v, want Intermediate", next)
	}
	if got := levels.NextTier(10000); got != nil {
		t.Errorf("NextTier(10000) = %+v, want nil at top tier", got)
	}
}

func TestProgressToNext(t *testing.T) {
	tests := []struct {
		xp   float64
		want int
	}{
		{0, 0},
		{50, 50},
		{99, 99},
		{100, 0},
		{300, 50},
		{10000, 100},
	}
	for _, tt := range tests {
		if got := levels.ProgressToNext(tt.xp); got != tt.want {
			t.Errorf("ProgressToNext(%v) = %d, want %d", tt.xp, got, tt.want)
		}
	}
}
