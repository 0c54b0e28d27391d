package model

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// GlobalStats 对应 global_stats 表（单行计数器，id 固定为 1）
// total_matches 同时充当对局序号发生器：match_id = game-{total_matches}
type GlobalStats struct {
	ID                int64 `db:"id"`
	TotalMatches      int64 `db:"total_matches"`
	TotalGamesSettled int64 `db:"total_games_settled"`
	TotalRake         int64 `db:"total_rake"`
	UpdatedAt         int64 `db:"updated_at"`
}

// EnsureGlobalStats 初始化计数器行（启动时调用一次）
func EnsureGlobalStats(ctx context.Context, exec sqlx.ExtContext) error {
	now := time.Now().UnixMilli()
	sqlStr := "INSERT INTO global_stats (id, total_matches, total_games_settled, total_rake, updated_at) VALUES (1, 0, 0, 0, ?) ON DUPLICATE KEY UPDATE id = id"
	_, err := exec.ExecContext(ctx, sqlStr, now)
	return err
}

// GetGlobalStats 查询全局计数器（不加锁）
func GetGlobalStats(ctx context.Context, exec sqlx.ExtContext) (*GlobalStats, error) {
	sqlStr := "SELECT id, total_matches, total_games_settled, total_rake, updated_at FROM global_stats WHERE id = 1"
	var gs GlobalStats
	if err := sqlx.GetContext(ctx, exec, &gs, sqlStr); err != nil {
		return nil, err
	}
	return &gs, nil
}

// NextMatchSeq 在事务中递增对局计数并返回新序号
// 单行锁同时串行化对局创建，保证序号不重复
func NextMatchSeq(ctx context.Context, exec sqlx.ExtContext) (int64, error) {
	now := time.Now().UnixMilli()
	if _, err := exec.ExecContext(ctx, "UPDATE global_stats SET total_matches = total_matches + 1, updated_at = ? WHERE id = 1", now); err != nil {
		return 0, err
	}
	var seq int64
	if err := sqlx.GetContext(ctx, exec, &seq, "SELECT total_matches FROM global_stats WHERE id = 1"); err != nil {
		return 0, err
	}
	return seq, nil
}

// AddSettlementTotals 在结算事务中累计已结算局数与抽水
func AddSettlementTotals(ctx context.Context, exec sqlx.ExtContext, rake int64) error {
	now := time.Now().UnixMilli()
	sqlStr := "UPDATE global_stats SET total_games_settled = total_games_settled + 1, total_rake = total_rake + ?, updated_at = ? WHERE id = 1"
	_, err := exec.ExecContext(ctx, sqlStr, rake, now)
	return err
}
