package model

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

// TransferLedger 对应 transfer_ledger 表（追加式资金流水）
// 说明：金额为非负最小货币单位整数；方向由 transfer_type 推导
// transfer_type: 1=deposit 入金 2=payout 派彩 3=rake 抽水 4=refund 退款
// 同时冗余 transfer_type_str 便于查询
// pot_before/pot_after 为流水发生前后的托管池余额快照
type TransferLedger struct {
	ID              int64  `db:"id"`
	TransferNo      string `db:"transfer_no"`
	MatchID         string `db:"match_id"`
	Account         string `db:"account"`
	TransferType    int    `db:"transfer_type"`
	TransferTypeStr string `db:"transfer_type_str"`
	Amount          int64  `db:"amount"`
	Denom           string `db:"denom"`
	PotBefore       int64  `db:"pot_before"`
	PotAfter        int64  `db:"pot_after"`
	Remark          string `db:"remark"`
	TraceID         string `db:"trace_id"`
	CreatedAt       int64  `db:"created_at"`
}

// Insert 新增一条流水记录（transfer_type 数值码与字符串双写）
func (l *TransferLedger) Insert(ctx context.Context, exec sqlx.ExtContext) error {
	now := time.Now().UnixMilli()
	code := l.TransferType
	str := l.TransferTypeStr
	if code == 0 && str != "" {
		switch strings.ToLower(str) {
		case "deposit":
			code = 1
		case "payout":
			code = 2
		case "rake":
			code = 3
		case "refund":
			code = 4
		}
	}
	if str == "" && code != 0 {
		switch code {
		case 1:
			str = "deposit"
		case 2:
			str = "payout"
		case 3:
			str = "rake"
		case 4:
			str = "refund"
		}
	}
	// 使用原生 SQL 以避免 goqu 在某些 MySQL 版本上的兼容性问题
	sqlStr := "INSERT INTO transfer_ledger (transfer_no, match_id, account, transfer_type, transfer_type_str, amount, denom, pot_before, pot_after, remark, trace_id, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
	args := []interface{}{l.TransferNo, l.MatchID, l.Account, code, str, l.Amount, l.Denom, l.PotBefore, l.PotAfter, l.Remark, l.TraceID, now}

	_, err := exec.ExecContext(ctx, sqlStr, args...)
	return err
}

// ListTransfersByMatch 查询一笔托管的全部流水，按发生先后排序
func ListTransfersByMatch(ctx context.Context, exec sqlx.ExtContext, matchID string) ([]TransferLedger, error) {
	sqlStr := `SELECT id, transfer_no, match_id, account, transfer_type, transfer_type_str, amount, denom,
		pot_before, pot_after, remark, trace_id, created_at
		FROM transfer_ledger WHERE match_id = ? ORDER BY id ASC`
	var list []TransferLedger
	if err := sqlx.SelectContext(ctx, exec, &list, sqlStr, matchID); err != nil {
		return nil, err
	}
	return list, nil
}
