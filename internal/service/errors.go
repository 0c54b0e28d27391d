package service

import (
	"errors"
	"fmt"
)

// 业务哨兵错误：controller 层用 errors.Is/As 翻译为 HTTP 状态码与业务码
var (
	ErrUnauthorized          = errors.New("unauthorized")
	ErrNotFound              = errors.New("not found")
	ErrAlreadyExists         = errors.New("already exists")
	ErrInvalidWinner         = errors.New("winner is not a participant")
	ErrInvalidResultCategory = errors.New("invalid result category")
	ErrSelfPlay              = errors.New("cannot play against yourself")
	ErrNoPayment             = errors.New("no payment provided")
	ErrInsufficientPayment   = errors.New("payment below required stake")
	ErrAlreadyDeposited      = errors.New("already deposited")
	ErrNotAParty             = errors.New("not a party to this escrow")
	ErrNoDeposit             = errors.New("caller has not deposited")
	ErrDuplicateInFlight     = errors.New("duplicate request in flight")
)

// InvalidStatusError 状态守卫失败：携带期望状态与实际状态
type InvalidStatusError struct {
	Expected string
	Got      string
}

func (e *InvalidStatusError) Error() string {
	return fmt.Sprintf("invalid status: expected %s, got %s", e.Expected, e.Got)
}

// TimeoutNotReachedError 超时退款申领早于超时边界：携带剩余秒数
type TimeoutNotReachedError struct {
	Remaining int64
}

func (e *TimeoutNotReachedError) Error() string {
	return fmt.Sprintf("timeout not reached: %d seconds remaining", e.Remaining)
}

// InsufficientBalanceError 托管池余额不足以支付结算
type InsufficientBalanceError struct {
	Needed    int64
	Available int64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: needed %d, available %d", e.Needed, e.Available)
}

// InvalidStakeError 注金超出配置区间
type InvalidStakeError struct {
	Amount int64
	Min    int64
	Max    int64
}

func (e *InvalidStakeError) Error() string {
	return fmt.Sprintf("invalid stake %d: must be within [%d, %d]", e.Amount, e.Min, e.Max)
}
