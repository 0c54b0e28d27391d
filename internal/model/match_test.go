package model

import "testing"

func TestClampListLimit(t *testing.T) {
	cases := []struct {
		in, want int
	}{
		{-5, 10},
		{0, 10},
		{1, 1},
		{10, 10},
		{30, 30},
		{31, 30},
		{1000, 30},
	}
	for _, c := range cases {
		if got := ClampListLimit(c.in); got != c.want {
			t.Errorf("ClampListLimit(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestMatchStatusRoundTrip(t *testing.T) {
	for _, s := range []string{"created", "in_progress", "completed", "abandoned"} {
		code := MatchStatusCode(s)
		if code == 0 {
			t.Errorf("MatchStatusCode(%s) = 0", s)
		}
		if got := MatchStatusStr(code); got != s {
			t.Errorf("MatchStatusStr(%d) = %s, want %s", code, got, s)
		}
	}
	if MatchStatusCode("unknown") != 0 {
		t.Error("unknown status should map to 0")
	}
	if MatchStatusStr(99) != "" {
		t.Error("unknown code should map to empty string")
	}
}

func TestResultCategoryCode(t *testing.T) {
	cases := []struct {
		in   string
		want int8
	}{
		{"normal", 1},
		{"gammon", 2},
		{"backgammon", 3},
		{"", 0},
		{"double", 0},
	}
	for _, c := range cases {
		if got := ResultCategoryCode(c.in); got != c.want {
			t.Errorf("ResultCategoryCode(%s) = %d, want %d", c.in, got, c.want)
		}
	}
}
