package helper

import (
	"strings"
	"testing"
)

func TestIsAccountFormat(t *testing.T) {
	valid := []string{"alice", "bob_01", "a.b-c", "x", strings.Repeat("a", 64), "  alice  "}
	for _, s := range valid {
		if !IsAccountFormat(s) {
			t.Errorf("IsAccountFormat(%q) = false, want true", s)
		}
	}
	invalid := []string{"", " ", "有汉字", "a b", "a@b", strings.Repeat("a", 65)}
	for _, s := range invalid {
		if IsAccountFormat(s) {
			t.Errorf("IsAccountFormat(%q) = true, want false", s)
		}
	}
}

func TestIsJSONContentType(t *testing.T) {
	yes := []string{"application/json", "application/json; charset=utf-8", "APPLICATION/JSON", "text/json"}
	for _, ct := range yes {
		if !IsJSONContentType(ct) {
			t.Errorf("IsJSONContentType(%q) = false, want true", ct)
		}
	}
	no := []string{"", "application/x-www-form-urlencoded", "text/plain"}
	for _, ct := range no {
		if IsJSONContentType(ct) {
			t.Errorf("IsJSONContentType(%q) = true, want false", ct)
		}
	}
}

func TestParseCreateMatchFromJSON(t *testing.T) {
	out, ok, msg := ParseCreateMatchFromJSON(strings.NewReader(`{"opponent":"bob","stake":5000}`))
	if !ok {
		t.Fatalf("parse failed: %s", msg)
	}
	if out.Opponent != "bob" || out.Stake != 5000 {
		t.Errorf("unexpected result: %+v", out)
	}

	if _, ok, _ := ParseCreateMatchFromJSON(strings.NewReader(`{bad`)); ok {
		t.Error("malformed json should fail")
	}
}

func TestValidateCreateMatch(t *testing.T) {
	good := CreateMatchParsed{Opponent: "bob", Stake: 0}
	if ok, msg := ValidateCreateMatch(&good); !ok {
		t.Errorf("zero stake should be allowed: %s", msg)
	}

	badOpp := CreateMatchParsed{Opponent: "", Stake: 100}
	if ok, _ := ValidateCreateMatch(&badOpp); ok {
		t.Error("empty opponent should fail")
	}

	negStake := CreateMatchParsed{Opponent: "bob", Stake: -1}
	if ok, _ := ValidateCreateMatch(&negStake); ok {
		t.Error("negative stake should fail")
	}
}

func TestValidateReportResult(t *testing.T) {
	// 缺省类别按 normal 处理
	in := ReportResultParsed{MatchID: "game-1", Winner: "alice"}
	if ok, msg := ValidateReportResult(&in); !ok {
		t.Fatalf("default category should pass: %s", msg)
	}
	if in.Category != "normal" {
		t.Errorf("category defaulted to %q, want normal", in.Category)
	}

	for _, cat := range []string{"normal", "gammon", "backgammon"} {
		in := ReportResultParsed{MatchID: "game-1", Winner: "alice", Category: cat}
		if ok, msg := ValidateReportResult(&in); !ok {
			t.Errorf("category %s should pass: %s", cat, msg)
		}
	}

	bad := ReportResultParsed{MatchID: "game-1", Winner: "alice", Category: "double"}
	if ok, _ := ValidateReportResult(&bad); ok {
		t.Error("unknown category should fail")
	}

	noMatch := ReportResultParsed{Winner: "alice", Category: "normal"}
	if ok, _ := ValidateReportResult(&noMatch); ok {
		t.Error("missing match_id should fail")
	}

	negMoves := ReportResultParsed{MatchID: "game-1", Winner: "alice", Category: "normal", MoveCount: -1}
	if ok, _ := ValidateReportResult(&negMoves); ok {
		t.Error("negative move_count should fail")
	}
}

func TestValidateDeposit(t *testing.T) {
	good := DepositParsed{MatchID: "game-1", Amount: 1000, IdempotencyKey: "key-1"}
	if ok, msg := ValidateDeposit(&good); !ok {
		t.Fatalf("valid deposit rejected: %s", msg)
	}

	cases := []DepositParsed{
		{MatchID: "", Amount: 1000, IdempotencyKey: "k"},
		{MatchID: "game-1", Amount: 0, IdempotencyKey: "k"},
		{MatchID: "game-1", Amount: -5, IdempotencyKey: "k"},
		{MatchID: "game-1", Amount: 1000, IdempotencyKey: ""},
		{MatchID: strings.Repeat("x", 65), Amount: 1000, IdempotencyKey: "k"},
	}
	for i, c := range cases {
		if ok, _ := ValidateDeposit(&c); ok {
			t.Errorf("case %d should fail: %+v", i, c)
		}
	}
}

func TestValidateSettle(t *testing.T) {
	// 倍数缺省为1
	in := SettleParsed{MatchID: "game-1", Winner: "alice"}
	if ok, msg := ValidateSettle(&in); !ok {
		t.Fatalf("default multiplier should pass: %s", msg)
	}
	if in.Multiplier != 1 {
		t.Errorf("multiplier defaulted to %d, want 1", in.Multiplier)
	}

	for _, m := range []int{1, 2, 3} {
		in := SettleParsed{MatchID: "game-1", Winner: "alice", Multiplier: m}
		if ok, msg := ValidateSettle(&in); !ok {
			t.Errorf("multiplier %d should pass: %s", m, msg)
		}
	}
	for _, m := range []int{-1, 4, 10} {
		in := SettleParsed{MatchID: "game-1", Winner: "alice", Multiplier: m}
		if ok, _ := ValidateSettle(&in); ok {
			t.Errorf("multiplier %d should fail", m)
		}
	}
}

func TestValidateCreateEscrow(t *testing.T) {
	good := CreateEscrowParsed{MatchID: "game-1", PlayerA: "alice", PlayerB: "bob", Stake: 1000}
	if ok, msg := ValidateCreateEscrow(&good); !ok {
		t.Fatalf("valid escrow rejected: %s", msg)
	}

	zeroStake := CreateEscrowParsed{MatchID: "game-1", PlayerA: "alice", PlayerB: "bob", Stake: 0}
	if ok, _ := ValidateCreateEscrow(&zeroStake); ok {
		t.Error("zero stake should fail")
	}

	badPlayer := CreateEscrowParsed{MatchID: "game-1", PlayerA: "", PlayerB: "bob", Stake: 1000}
	if ok, _ := ValidateCreateEscrow(&badPlayer); ok {
		t.Error("empty player should fail")
	}
}
