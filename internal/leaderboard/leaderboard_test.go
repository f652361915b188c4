package leaderboard_test

import (
	"testing"

	"github.com/classquest/classquest/internal/leaderboard"
)

func TestMemory_RanksByXP(t *testing.T) {
	board := leaderboard.NewMemory()
	ctx := t.Context()

	awards := []struct {
		student string
		course  string
		amount  float64
	}{
		{"s1", "c1", 50},
		{"s2", "c1", 80},
		{"s1", "c1", 40},
		{"s3", "c2", 60},
		{"s1", "", 10}, // daily mission, global only
	}
	for _, a := range awards {
		if err := board.RecordXP(ctx, a.student, a.course, a.amount); err != nil {
			t.Fatalf("RecordXP() error = %v", err)
		}
	}

	global, err := board.Top(ctx, "", 10)
	if err != nil {
		t.Fatalf("Top(global) error = %v", err)
	}
	want := []struct {
		student string
		xp      float64
	}{
		{"s1", 100},
		{"s2", 80},
		{"s3", 60},
	}
	if len(global) != len(want) {
		t.Fatalf("len(Top) = %d, want %d", len(global), len(want))
	}
	for i, w := range want {
		if global[i].StudentID != w.student || global[i].XP != w.xp || global[i].Rank != i+1 {
			t.Errorf("global[%d] = %+v, want %s with %v XP at rank %d", i, global[i], w.student, w.xp, i+1)
		}
	}

	course, err := board.Top(ctx, "c1", 10)
	if err != nil {
		t.Fatalf("Top(c1) error = %v", err)
	}
	if len(course) != 2 {
		t.Fatalf("len(Top(c1)) = %d, want 2", len(course))
	}
	if course[0].StudentID != "s1" || course[0].XP != 90 {
		t.Errorf("course leader = %+v, want s1 with 90", course[0])
	}
}

func TestMemory_TopLimits(t *testing.T) {
	board := leaderboard.NewMemory()
	ctx := t.Context()

	for _, s := range []string{"a", "b", "c", "d"} {
		if err := board.RecordXP(ctx, s, "", 10); err != nil {
			t.Fatalf("RecordXP() error = %v", err)
		}
	}
	got, err := board.Top(ctx, "", 2)
	if err != nil {
		t.Fatalf("Top() error = %v", err)
	}
	if len(got) != 2 {
		t.Errorf("len(Top(2)) = %d, want 2", len(got))
	}
}
