package state

import "fmt"

// EscrowState 托管状态
const (
	EscrowAwaitingDeposits = "awaiting_deposits" // 等待双方入金
	EscrowActive           = "active"            // 双方已入金，资金锁定
	EscrowSettled          = "settled"           // 已结算(终态)
	EscrowCancelled        = "cancelled"         // 已取消(终态)
	EscrowTimedOut         = "timed_out"         // 已超时退款(终态)
)

// Escrow 事件
const (
	EvtDepositsComplete = "deposits_complete"
	EvtSettle           = "settle"
	EvtCancel           = "cancel"
	EvtClaimTimeout     = "claim_timeout"
)

// MatchState 对局状态
const (
	MatchCreated    = "created"     // 已创建
	MatchInProgress = "in_progress" // 进行中
	MatchCompleted  = "completed"   // 已完成(终态)
	MatchAbandoned  = "abandoned"   // 已弃赛(终态)
)

// Match 事件
const (
	EvtStart         = "start"
	EvtReportResult  = "report_result"
	EvtReportAbandon = "report_abandon"
)

// NextEscrowState 根据当前状态与事件计算下一个托管状态，非法转换报错。
// 终态(settled/cancelled/timed_out)不接受任何事件。
func NextEscrowState(cur, evt string) (string, error) {
	switch cur {
	case EscrowAwaitingDeposits:
		switch evt {
		case EvtDepositsComplete:
			return EscrowActive, nil
		case EvtCancel:
			return EscrowCancelled, nil
		case EvtClaimTimeout:
			return EscrowTimedOut, nil
		}
	case EscrowActive:
		switch evt {
		case EvtSettle:
			return EscrowSettled, nil
		case EvtCancel:
			return EscrowCancelled, nil
		}
	}
	return cur, fmt.Errorf("invalid transition: %s --%s--> ?", cur, evt)
}

// NextMatchState 根据当前状态与事件计算下一个对局状态，非法转换报错。
// report_result / report_abandon 允许从 created 与 in_progress 两个状态发起。
func NextMatchState(cur, evt string) (string, error) {
	switch cur {
	case MatchCreated:
		switch evt {
		case EvtStart:
			return MatchInProgress, nil
		case EvtReportResult:
			return MatchCompleted, nil
		case EvtReportAbandon:
			return MatchAbandoned, nil
		}
	case MatchInProgress:
		switch evt {
		case EvtReportResult:
			return MatchCompleted, nil
		case EvtReportAbandon:
			return MatchAbandoned, nil
		}
	}
	return cur, fmt.Errorf("invalid transition: %s --%s--> ?", cur, evt)
}

// IsEscrowTerminal 判断托管状态是否为终态
func IsEscrowTerminal(s string) bool {
	return s == EscrowSettled || s == EscrowCancelled || s == EscrowTimedOut
}

// IsMatchTerminal 判断对局状态是否为终态
func IsMatchTerminal(s string) bool {
	return s == MatchCompleted || s == MatchAbandoned
}
