package rating

import (
	"math"
	"testing"
)

func TestApply(t *testing.T) {
	cases := []struct {
		name           string
		winner, loser  int64
		wantW, wantL   int64
	}{
		{"both default", DefaultRating, DefaultRating, 151000, 149000},
		{"loser near floor", DefaultRating, 100500, 151000, MinRating},
		{"loser at floor", DefaultRating, MinRating, 151000, MinRating},
		{"winner keeps climbing", 250000, 250000, 251000, 249000},
	}
	for _, c := range cases {
		gotW, gotL := Apply(c.winner, c.loser)
		if gotW != c.wantW || gotL != c.wantL {
			t.Errorf("%s: Apply(%d, %d) = (%d, %d), want (%d, %d)",
				c.name, c.winner, c.loser, gotW, gotL, c.wantW, c.wantL)
		}
	}
}

func TestApplyFloorIsStable(t *testing.T) {
	// 连输多局，积分钉在下限不再下降
	r := int64(MinRating + 2500)
	for i := 0; i < 10; i++ {
		_, r = Apply(DefaultRating, r)
	}
	if r != MinRating {
		t.Errorf("rating after repeated losses = %d, want %d", r, MinRating)
	}
}

func TestApplySaturates(t *testing.T) {
	w, _ := Apply(math.MaxInt64-10, DefaultRating)
	if w != math.MaxInt64-10 {
		t.Errorf("winner rating overflowed: %d", w)
	}
}

func TestApplyDeterministic(t *testing.T) {
	w1, l1 := Apply(123456, 654321)
	w2, l2 := Apply(123456, 654321)
	if w1 != w2 || l1 != l2 {
		t.Error("Apply should be deterministic")
	}
}
