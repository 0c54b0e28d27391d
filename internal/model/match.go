package model

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// Match 对应 matches 表
// status: 1=created 2=in_progress 3=completed 4=abandoned
// result_category: 0=未设置 1=normal 2=gammon 3=backgammon
type Match struct {
	ID             int64  `db:"id"`
	MatchID        string `db:"match_id"`
	Creator        string `db:"creator"`
	Opponent       string `db:"opponent"`
	Stake          int64  `db:"stake"`
	Status         int8   `db:"status"`
	StatusStr      string `db:"status_str"`
	Winner         string `db:"winner"`
	ResultCategory int8   `db:"result_category"`
	ResultStr      string `db:"result_str"`
	Multiplier     int    `db:"multiplier"`
	MoveCount      int64  `db:"move_count"`
	TraceID        string `db:"trace_id"`
	CreatedAt      int64  `db:"created_at"`
	EndedAt        int64  `db:"ended_at"`
	UpdatedAt      int64  `db:"updated_at"`
}

var matchStatusToCode = map[string]int8{
	"created":     1,
	"in_progress": 2,
	"completed":   3,
	"abandoned":   4,
}

var matchCodeToStatus = map[int8]string{
	1: "created",
	2: "in_progress",
	3: "completed",
	4: "abandoned",
}

// 胜果类别的数值码与字符串映射
var resultCategoryToCode = map[string]int8{
	"normal":     1,
	"gammon":     2,
	"backgammon": 3,
}

// MatchStatusCode 状态字符串转数值码，未知返回0
func MatchStatusCode(s string) int8 { return matchStatusToCode[s] }

// MatchStatusStr 数值码转状态字符串，未知返回空串
func MatchStatusStr(code int8) string { return matchCodeToStatus[code] }

// ResultCategoryCode 胜果类别转数值码，未知返回0
func ResultCategoryCode(s string) int8 { return resultCategoryToCode[s] }

// Insert 新建对局（状态 created）
func (m *Match) Insert(ctx context.Context, exec sqlx.ExtContext) error {
	now := time.Now().UnixMilli()
	m.CreatedAt = now

	// 使用原生 SQL 以避免 goqu 在某些 MySQL 版本上的兼容性问题
	sqlStr := "INSERT INTO matches (match_id, creator, opponent, stake, status, status_str, winner, result_category, result_str, multiplier, move_count, trace_id, created_at, ended_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
	args := []interface{}{m.MatchID, m.Creator, m.Opponent, m.Stake, matchStatusToCode["created"], "created", "", 0, "", 0, 0, m.TraceID, now, 0, now}

	_, err := exec.ExecContext(ctx, sqlStr, args...)
	return err
}

const matchColumns = `id, match_id, creator, opponent, stake, status, status_str, winner,
	result_category, result_str, multiplier, move_count, trace_id, created_at, ended_at, updated_at`

// GetMatch 按 match_id 查询对局（不加锁）
func GetMatch(ctx context.Context, exec sqlx.ExtContext, matchID string) (*Match, error) {
	sqlStr := "SELECT " + matchColumns + " FROM matches WHERE match_id = ?"
	var m Match
	if err := sqlx.GetContext(ctx, exec, &m, sqlStr, matchID); err != nil {
		return nil, err
	}
	return &m, nil
}

// GetMatchForUpdate 在事务中按 match_id 加锁查询
func GetMatchForUpdate(ctx context.Context, exec sqlx.ExtContext, matchID string) (*Match, error) {
	sqlStr := "SELECT " + matchColumns + " FROM matches WHERE match_id = ? FOR UPDATE"
	var m Match
	if err := sqlx.GetContext(ctx, exec, &m, sqlStr, matchID); err != nil {
		return nil, err
	}
	return &m, nil
}

// UpdateMatchStatus 更新对局状态（数值码与字符串双写）
func UpdateMatchStatus(ctx context.Context, exec sqlx.ExtContext, matchID, status string) error {
	now := time.Now().UnixMilli()
	sqlStr := "UPDATE matches SET status = ?, status_str = ?, updated_at = ? WHERE match_id = ?"
	_, err := exec.ExecContext(ctx, sqlStr, matchStatusToCode[status], status, now, matchID)
	return err
}

// RecordMatchOutcome 记录胜负并将对局置为终态
// status: completed 或 abandoned；category: normal/gammon/backgammon（数值码与字符串双写）
func RecordMatchOutcome(ctx context.Context, exec sqlx.ExtContext, matchID, status, winner, category string, multiplier int, moveCount int64) error {
	now := time.Now().UnixMilli()
	sqlStr := `UPDATE matches SET status = ?, status_str = ?, winner = ?, result_category = ?, result_str = ?,
		multiplier = ?, move_count = ?, ended_at = ?, updated_at = ? WHERE match_id = ?`
	args := []interface{}{matchStatusToCode[status], status, winner, resultCategoryToCode[category], category, multiplier, moveCount, now, now, matchID}
	_, err := exec.ExecContext(ctx, sqlStr, args...)
	return err
}

// ClampListLimit 列表分页上限：默认10，最大30
func ClampListLimit(limit int) int {
	if limit <= 0 {
		return 10
	}
	if limit > 30 {
		return 30
	}
	return limit
}

// ListMatchesByPlayer 查询玩家参与的对局，按创建先后倒序
// 线性扫描 creator/opponent 两列，流量规模下可接受
func ListMatchesByPlayer(ctx context.Context, exec sqlx.ExtContext, player string, limit int) ([]Match, error) {
	limit = ClampListLimit(limit)
	sqlStr := "SELECT " + matchColumns + " FROM matches WHERE creator = ? OR opponent = ? ORDER BY id DESC LIMIT ?"
	var list []Match
	if err := sqlx.SelectContext(ctx, exec, &list, sqlStr, player, player, limit); err != nil {
		return nil, err
	}
	return list, nil
}
