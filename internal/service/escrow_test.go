package service

import (
	"errors"
	"strings"
	"testing"

	chelper "bg-server/common/helper"
)

func TestComputePayout(t *testing.T) {
	cases := []struct {
		name                  string
		stake, rakeBps        int64
		wantPot, wantRake     int64
		wantPayout            int64
	}{
		{"standard 2.5%", 1000000, 250, 2000000, 50000, 1950000},
		{"zero rake", 1000000, 0, 2000000, 0, 2000000},
		{"full rake", 1000000, 10000, 2000000, 2000000, 0},
		// 整数向下取整：2*3 *250/10000 = 0
		{"tiny stake floors to zero rake", 3, 250, 6, 0, 6},
		{"odd stake floors", 333, 250, 666, 16, 650},
		{"min stake one unit", 1, 250, 2, 0, 2},
	}
	for _, c := range cases {
		pot, rake, payout := computePayout(c.stake, c.rakeBps)
		if pot != c.wantPot || rake != c.wantRake || payout != c.wantPayout {
			t.Errorf("%s: computePayout(%d, %d) = (%d, %d, %d), want (%d, %d, %d)",
				c.name, c.stake, c.rakeBps, pot, rake, payout, c.wantPot, c.wantRake, c.wantPayout)
		}
	}
}

func TestComputePayoutConserved(t *testing.T) {
	// 任意注金与抽水比例下，rake+payout 必须恰好等于彩池
	for stake := int64(1); stake < 10000; stake += 137 {
		for _, bps := range []int64{0, 1, 250, 500, 9999, 10000} {
			pot, rake, payout := computePayout(stake, bps)
			if rake+payout != pot {
				t.Fatalf("pot leak: stake=%d bps=%d pot=%d rake=%d payout=%d",
					stake, bps, pot, rake, payout)
			}
			if rake < 0 || payout < 0 {
				t.Fatalf("negative split: stake=%d bps=%d rake=%d payout=%d", stake, bps, rake, payout)
			}
		}
	}
}

func TestRemainingSeconds(t *testing.T) {
	createdMs := int64(1_700_000_000_000)
	timeout := int64(600)

	// 边界前1秒仍有剩余
	if got := remainingSeconds(createdMs, timeout, createdMs+599_000); got != 1 {
		t.Errorf("1s before boundary: remaining = %d, want 1", got)
	}
	// 恰到边界即视为到期
	if got := remainingSeconds(createdMs, timeout, createdMs+600_000); got > 0 {
		t.Errorf("at boundary: remaining = %d, want <= 0", got)
	}
	if got := remainingSeconds(createdMs, timeout, createdMs+3600_000); got > 0 {
		t.Errorf("long after boundary: remaining = %d, want <= 0", got)
	}
}

func TestGenerateTransferNo(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		no := generateTransferNo()
		if !strings.HasPrefix(no, "BG") {
			t.Fatalf("missing BG prefix: %s", no)
		}
		// BG + 14位时间 + 10位带校验码
		if len(no) != 2+14+10 {
			t.Fatalf("unexpected length %d: %s", len(no), no)
		}
		if !chelper.LuhnCheck(no[16:]) {
			t.Fatalf("luhn check fail on tail: %s", no)
		}
		if seen[no] {
			t.Fatalf("duplicate transfer no: %s", no)
		}
		seen[no] = true
	}
}

func TestCategoryMultiplier(t *testing.T) {
	cases := []struct {
		category string
		want     int
	}{
		{"normal", 1},
		{"gammon", 2},
		{"backgammon", 3},
	}
	for _, c := range cases {
		got, err := categoryMultiplier(c.category)
		if err != nil {
			t.Errorf("categoryMultiplier(%s): unexpected error: %v", c.category, err)
			continue
		}
		if got != c.want {
			t.Errorf("categoryMultiplier(%s) = %d, want %d", c.category, got, c.want)
		}
	}

	for _, bad := range []string{"", "Normal", "double", "GAMMON"} {
		if _, err := categoryMultiplier(bad); !errors.Is(err, ErrInvalidResultCategory) {
			t.Errorf("categoryMultiplier(%q): expected ErrInvalidResultCategory, got %v", bad, err)
		}
	}
}

func TestIsMySQLDuplicateKeyError(t *testing.T) {
	if isMySQLDuplicateKeyError(nil) {
		t.Error("nil should not be duplicate key error")
	}
	if !isMySQLDuplicateKeyError(errors.New("Error 1062: Duplicate entry 'game-1' for key 'uk_match_id'")) {
		t.Error("1062 message should be recognized")
	}
	if isMySQLDuplicateKeyError(errors.New("Error 1205: Lock wait timeout exceeded")) {
		t.Error("lock timeout should not be recognized as duplicate key")
	}
}

// 入金额度：等于或超过注金均接受，低于注金或非正数拒绝
func TestCheckDepositAmount(t *testing.T) {
	cases := []struct {
		amount int64
		stake  int64
		want   error
	}{
		{1000, 1000, nil},
		{1500, 1000, nil}, // 超额入金接受，超出部分不入注池
		{999, 1000, ErrInsufficientPayment},
		{1, 1000, ErrInsufficientPayment},
		{0, 1000, ErrNoPayment},
		{-5, 1000, ErrNoPayment},
	}
	for _, c := range cases {
		if got := checkDepositAmount(c.amount, c.stake); !errors.Is(got, c.want) {
			t.Errorf("checkDepositAmount(%d, %d) = %v, want %v", c.amount, c.stake, got, c.want)
		}
	}
}
