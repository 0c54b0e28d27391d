package model

import (
	"context"
	"time"

	"bg-server/common"

	g "github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"
)

// Escrow 对应 escrows 表
// 说明：金额为最小货币单位整数（BIGINT）；状态采用"数值码+冗余字符串"双写
// status: 1=awaiting_deposits 2=active 3=settled 4=cancelled 5=timed_out
// a_deposited/b_deposited: 0=未入金 1=已入金
// pot 为托管池当前余额：入金加，派彩/抽水/退款减
type Escrow struct {
	ID          int64  `db:"id"`
	MatchID     string `db:"match_id"`
	PlayerA     string `db:"player_a"`
	PlayerB     string `db:"player_b"`
	Stake       int64  `db:"stake"`
	Denom       string `db:"denom"`
	ADeposited  int8   `db:"a_deposited"`
	BDeposited  int8   `db:"b_deposited"`
	Pot         int64  `db:"pot"`
	Status      int8   `db:"status"`
	StatusStr   string `db:"status_str"`
	Winner      string `db:"winner"`
	Multiplier  int    `db:"multiplier"`
	RakeAmount  int64  `db:"rake_amount"`
	PayoutPaid  int64  `db:"payout_paid"`
	TraceID     string `db:"trace_id"`
	CreatedAt   int64  `db:"created_at"`
	SettledAt   int64  `db:"settled_at"`
	UpdatedAt   int64  `db:"updated_at"`
}

// 托管状态码与字符串的映射
var escrowStatusToCode = map[string]int8{
	"awaiting_deposits": 1,
	"active":            2,
	"settled":           3,
	"cancelled":         4,
	"timed_out":         5,
}

var escrowCodeToStatus = map[int8]string{
	1: "awaiting_deposits",
	2: "active",
	3: "settled",
	4: "cancelled",
	5: "timed_out",
}

// EscrowStatusCode 状态字符串转数值码，未知返回0
func EscrowStatusCode(s string) int8 { return escrowStatusToCode[s] }

// EscrowStatusStr 数值码转状态字符串，未知返回空串
func EscrowStatusStr(code int8) string { return escrowCodeToStatus[code] }

// Insert 新建托管记录（状态 awaiting_deposits，数值码与字符串双写）
// match_id 唯一索引，重复创建触发 1062
func (e *Escrow) Insert(ctx context.Context, exec sqlx.ExtContext) error {
	now := time.Now().UnixMilli()
	e.CreatedAt = now

	// 使用原生 SQL 以避免 goqu 在某些 MySQL 版本上的兼容性问题
	sqlStr := "INSERT INTO escrows (match_id, player_a, player_b, stake, denom, a_deposited, b_deposited, pot, status, status_str, winner, multiplier, rake_amount, payout_paid, trace_id, created_at, settled_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
	args := []interface{}{e.MatchID, e.PlayerA, e.PlayerB, e.Stake, e.Denom, 0, 0, 0, escrowStatusToCode["awaiting_deposits"], "awaiting_deposits", "", 1, 0, 0, e.TraceID, now, 0, now}

	_, err := exec.ExecContext(ctx, sqlStr, args...)
	return err
}

const escrowColumns = `id, match_id, player_a, player_b, stake, denom, a_deposited, b_deposited, pot,
	status, status_str, winner, multiplier, rake_amount, payout_paid, trace_id, created_at, settled_at, updated_at`

// GetEscrow 按 match_id 查询托管（不加锁）
func GetEscrow(ctx context.Context, exec sqlx.ExtContext, matchID string) (*Escrow, error) {
	sqlStr := "SELECT " + escrowColumns + " FROM escrows WHERE match_id = ?"
	var e Escrow
	if err := sqlx.GetContext(ctx, exec, &e, sqlStr, matchID); err != nil {
		return nil, err
	}
	return &e, nil
}

// GetEscrowForUpdate 在事务中按 match_id 加锁查询
// 所有写操作必须先经过这里，单行锁保证同一托管串行处理
func GetEscrowForUpdate(ctx context.Context, exec sqlx.ExtContext, matchID string) (*Escrow, error) {
	sqlStr := "SELECT " + escrowColumns + " FROM escrows WHERE match_id = ? FOR UPDATE"
	var e Escrow
	if err := sqlx.GetContext(ctx, exec, &e, sqlStr, matchID); err != nil {
		return nil, err
	}
	return &e, nil
}

// CountEscrowByMatchID 判断托管是否已存在
func CountEscrowByMatchID(ctx context.Context, exec sqlx.ExtContext, matchID string) (int, error) {
	cnt, err := common.CountCtx(ctx, exec, "escrows", g.C("match_id").Eq(matchID))
	if err != nil {
		return 0, err
	}
	return int(cnt), nil
}

// SetDeposited 记录某一方入金并增加托管池余额
// side: "a" 或 "b"
func SetDeposited(ctx context.Context, exec sqlx.ExtContext, matchID, side string, amount int64) error {
	now := time.Now().UnixMilli()
	col := "a_deposited"
	if side == "b" {
		col = "b_deposited"
	}
	sqlStr := "UPDATE escrows SET " + col + " = 1, pot = pot + ?, updated_at = ? WHERE match_id = ?"
	_, err := exec.ExecContext(ctx, sqlStr, amount, now, matchID)
	return err
}

// UpdateEscrowStatus 更新托管状态（数值码与字符串双写）
func UpdateEscrowStatus(ctx context.Context, exec sqlx.ExtContext, matchID, status string) error {
	now := time.Now().UnixMilli()
	sqlStr := "UPDATE escrows SET status = ?, status_str = ?, updated_at = ? WHERE match_id = ?"
	_, err := exec.ExecContext(ctx, sqlStr, escrowStatusToCode[status], status, now, matchID)
	return err
}

// MarkEscrowSettled 标记托管已结算并清空托管池
func MarkEscrowSettled(ctx context.Context, exec sqlx.ExtContext, matchID, winner string, multiplier int, rake, payout int64) error {
	now := time.Now().UnixMilli()
	sqlStr := `UPDATE escrows SET status = ?, status_str = ?, winner = ?, multiplier = ?, rake_amount = ?,
		payout_paid = ?, pot = pot - ?, settled_at = ?, updated_at = ? WHERE match_id = ?`
	args := []interface{}{escrowStatusToCode["settled"], "settled", winner, multiplier, rake, payout, rake + payout, now, now, matchID}
	_, err := exec.ExecContext(ctx, sqlStr, args...)
	return err
}

// MarkEscrowClosed 标记托管取消或超时，并按退款总额扣减托管池
// status: cancelled 或 timed_out
func MarkEscrowClosed(ctx context.Context, exec sqlx.ExtContext, matchID, status string, refunded int64) error {
	now := time.Now().UnixMilli()
	sqlStr := "UPDATE escrows SET status = ?, status_str = ?, pot = pot - ?, updated_at = ? WHERE match_id = ?"
	_, err := exec.ExecContext(ctx, sqlStr, escrowStatusToCode[status], status, refunded, now, matchID)
	return err
}
