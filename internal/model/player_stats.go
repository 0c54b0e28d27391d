package model

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"bg-server/common/logger"
	"bg-server/internal/rating"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// PlayerStats 对应 player_stats 表
// 玩家唯一标识 = player（账户地址）；新玩家积分为 rating.DefaultRating
type PlayerStats struct {
	ID           int64  `db:"id"`            // 自增ID（内部使用）
	Player       string `db:"player"`        // 玩家账户
	Rating       int64  `db:"rating"`        // 积分（1/100 分）
	GamesPlayed  int64  `db:"games_played"`  // 总对局数
	GamesWon     int64  `db:"games_won"`     // 获胜局数
	TotalWagered int64  `db:"total_wagered"` // 累计押注（最小货币单位）
	TotalWon     int64  `db:"total_won"`     // 累计赢取彩池（毛额）
	CreatedAt    int64  `db:"created_at"`    // 创建时间（13位毫秒时间戳）
	UpdatedAt    int64  `db:"updated_at"`    // 更新时间（13位毫秒时间戳）
}

// DefaultPlayerStats 返回未入库玩家的默认统计
func DefaultPlayerStats(player string) *PlayerStats {
	return &PlayerStats{Player: player, Rating: rating.DefaultRating}
}

// GetPlayerStats 按玩家查询统计；不存在时返回默认值，不视为错误
func GetPlayerStats(ctx context.Context, db *sqlx.DB, player string) (*PlayerStats, error) {
	query := `SELECT id, player, rating, games_played, games_won, total_wagered, total_won, created_at, updated_at
	          FROM player_stats WHERE player = ? LIMIT 1`

	var ps PlayerStats
	err := db.GetContext(ctx, &ps, query, player)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return DefaultPlayerStats(player), nil
		}
		logger.Error("get player stats failed",
			zap.String("player", player),
			zap.Error(err))
		return nil, err
	}
	return &ps, nil
}

// GetPlayerStatsForUpdate 按玩家加锁查询统计
// 必须在事务中调用，且调用前应先 EnsurePlayerStats
func GetPlayerStatsForUpdate(ctx context.Context, exec sqlx.ExtContext, player string) (*PlayerStats, error) {
	query := `SELECT id, player, rating, games_played, games_won, total_wagered, total_won, created_at, updated_at
	          FROM player_stats WHERE player = ? FOR UPDATE`

	var ps PlayerStats
	if err := sqlx.GetContext(ctx, exec, &ps, query, player); err != nil {
		return nil, err
	}
	return &ps, nil
}

// EnsurePlayerStats 玩家统计行不存在时插入默认行
// player 列唯一索引，并发重复插入由 ON DUPLICATE KEY 吸收
func EnsurePlayerStats(ctx context.Context, exec sqlx.ExtContext, player string) error {
	now := time.Now().UnixMilli()

	// 使用原生 SQL 以避免 goqu 在某些 MySQL 版本上的兼容性问题
	sqlStr := "INSERT INTO player_stats (player, rating, games_played, games_won, total_wagered, total_won, created_at, updated_at) VALUES (?, ?, 0, 0, 0, 0, ?, ?) ON DUPLICATE KEY UPDATE player = player"
	_, err := exec.ExecContext(ctx, sqlStr, player, rating.DefaultRating, now, now)
	return err
}

// ApplyWin 在事务中落盘胜者的一局统计
// wagered 为本局注金，wonGross 为本局赢得的彩池毛额（2*注金）
func ApplyWin(ctx context.Context, exec sqlx.ExtContext, player string, newRating, wagered, wonGross int64) error {
	now := time.Now().UnixMilli()
	sqlStr := `UPDATE player_stats SET rating = ?, games_played = games_played + 1, games_won = games_won + 1,
		total_wagered = total_wagered + ?, total_won = total_won + ?, updated_at = ? WHERE player = ?`
	_, err := exec.ExecContext(ctx, sqlStr, newRating, wagered, wonGross, now, player)
	return err
}

// ApplyLoss 在事务中落盘败者的一局统计
func ApplyLoss(ctx context.Context, exec sqlx.ExtContext, player string, newRating, wagered int64) error {
	now := time.Now().UnixMilli()
	sqlStr := `UPDATE player_stats SET rating = ?, games_played = games_played + 1,
		total_wagered = total_wagered + ?, updated_at = ? WHERE player = ?`
	_, err := exec.ExecContext(ctx, sqlStr, newRating, wagered, now, player)
	return err
}
