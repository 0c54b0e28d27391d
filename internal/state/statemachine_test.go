package state

import "testing"

func TestNextEscrowState(t *testing.T) {
	cases := []struct {
		cur, evt string
		want     string
		wantErr  bool
	}{
		{EscrowAwaitingDeposits, EvtDepositsComplete, EscrowActive, false},
		{EscrowAwaitingDeposits, EvtCancel, EscrowCancelled, false},
		{EscrowAwaitingDeposits, EvtClaimTimeout, EscrowTimedOut, false},
		{EscrowAwaitingDeposits, EvtSettle, "", true},
		{EscrowActive, EvtSettle, EscrowSettled, false},
		{EscrowActive, EvtCancel, EscrowCancelled, false},
		{EscrowActive, EvtClaimTimeout, "", true},
		{EscrowActive, EvtDepositsComplete, "", true},
		// 终态不接受任何事件
		{EscrowSettled, EvtSettle, "", true},
		{EscrowSettled, EvtCancel, "", true},
		{EscrowCancelled, EvtSettle, "", true},
		{EscrowTimedOut, EvtClaimTimeout, "", true},
	}
	for _, c := range cases {
		got, err := NextEscrowState(c.cur, c.evt)
		if c.wantErr {
			if err == nil {
				t.Errorf("NextEscrowState(%s, %s): expected error, got %s", c.cur, c.evt, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("NextEscrowState(%s, %s): unexpected error: %v", c.cur, c.evt, err)
			continue
		}
		if got != c.want {
			t.Errorf("NextEscrowState(%s, %s) = %s, want %s", c.cur, c.evt, got, c.want)
		}
	}
}

func TestNextMatchState(t *testing.T) {
	cases := []struct {
		cur, evt string
		want     string
		wantErr  bool
	}{
		{MatchCreated, EvtStart, MatchInProgress, false},
		{MatchCreated, EvtReportResult, MatchCompleted, false},
		{MatchCreated, EvtReportAbandon, MatchAbandoned, false},
		{MatchInProgress, EvtReportResult, MatchCompleted, false},
		{MatchInProgress, EvtReportAbandon, MatchAbandoned, false},
		{MatchInProgress, EvtStart, "", true},
		{MatchCompleted, EvtReportResult, "", true},
		{MatchCompleted, EvtStart, "", true},
		{MatchAbandoned, EvtReportAbandon, "", true},
	}
	for _, c := range cases {
		got, err := NextMatchState(c.cur, c.evt)
		if c.wantErr {
			if err == nil {
				t.Errorf("NextMatchState(%s, %s): expected error, got %s", c.cur, c.evt, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("NextMatchState(%s, %s): unexpected error: %v", c.cur, c.evt, err)
			continue
		}
		if got != c.want {
			t.Errorf("NextMatchState(%s, %s) = %s, want %s", c.cur, c.evt, got, c.want)
		}
	}
}

func TestTerminalStates(t *testing.T) {
	for _, s := range []string{EscrowSettled, EscrowCancelled, EscrowTimedOut} {
		if !IsEscrowTerminal(s) {
			t.Errorf("IsEscrowTerminal(%s) = false", s)
		}
	}
	for _, s := range []string{EscrowAwaitingDeposits, EscrowActive} {
		if IsEscrowTerminal(s) {
			t.Errorf("IsEscrowTerminal(%s) = true", s)
		}
	}
	if !IsMatchTerminal(MatchCompleted) || !IsMatchTerminal(MatchAbandoned) {
		t.Error("completed/abandoned should be terminal")
	}
	if IsMatchTerminal(MatchCreated) || IsMatchTerminal(MatchInProgress) {
		t.Error("created/in_progress should not be terminal")
	}
}
