package model

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// SettlementLog 结算日志表（防止重复结算）
// match_id 唯一索引：行锁 + 状态守卫之外的第二道防线
type SettlementLog struct {
	ID         int64  `db:"id"`          // 自增ID
	MatchID    string `db:"match_id"`    // 对局ID
	Winner     string `db:"winner"`      // 胜者账户
	Pot        int64  `db:"pot"`         // 彩池总额
	Rake       int64  `db:"rake"`        // 抽水金额
	Payout     int64  `db:"payout"`      // 派彩金额
	Multiplier int    `db:"multiplier"`  // 胜果倍数（记录用，不参与派彩计算）
	Operator   string `db:"operator"`    // 操作人
	TraceID    string `db:"trace_id"`    // 链路追踪ID
	CreatedAt  int64  `db:"created_at"`  // 创建时间（13位毫秒时间戳）
}

// CreateSettlementLog 创建结算日志（利用唯一索引防止重复结算）
// 如果返回唯一键冲突错误，说明该对局已经结算过
func CreateSettlementLog(ctx context.Context, exec sqlx.ExtContext, log *SettlementLog) error {
	now := time.Now().UnixMilli()
	log.CreatedAt = now

	sqlStr := `INSERT INTO settlement_log (match_id, winner, pot, rake, payout, multiplier, operator, trace_id, created_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := exec.ExecContext(ctx, sqlStr,
		log.MatchID, log.Winner, log.Pot, log.Rake, log.Payout, log.Multiplier, log.Operator, log.TraceID, log.CreatedAt)
	if err != nil {
		return err
	}

	id, _ := result.LastInsertId()
	log.ID = id

	return nil
}

// GetSettlementLog 查询结算日志
func GetSettlementLog(ctx context.Context, db *sqlx.DB, matchID string) (*SettlementLog, error) {
	sqlStr := `SELECT id, match_id, winner, pot, rake, payout, multiplier, operator, trace_id, created_at
	           FROM settlement_log WHERE match_id = ? LIMIT 1`

	var log SettlementLog
	if err := db.GetContext(ctx, &log, sqlStr, matchID); err != nil {
		return nil, err
	}

	return &log, nil
}
