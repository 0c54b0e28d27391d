package model

import "testing"

func TestEscrowStatusRoundTrip(t *testing.T) {
	for _, s := range []string{"awaiting_deposits", "active", "settled", "cancelled", "timed_out"} {
		code := EscrowStatusCode(s)
		if code == 0 {
			t.Errorf("EscrowStatusCode(%s) = 0", s)
		}
		if got := EscrowStatusStr(code); got != s {
			t.Errorf("EscrowStatusStr(%d) = %s, want %s", code, got, s)
		}
	}
	if EscrowStatusCode("open") != 0 {
		t.Error("unknown status should map to 0")
	}
	if EscrowStatusStr(0) != "" {
		t.Error("code 0 should map to empty string")
	}
}
