package model

import (
	"context"
	"time"

	"bg-server/common"

	g "github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"
)

// EscrowConfig 对应 escrow_config 表（单行，id 固定为 1）
// 管理端可在运行时逐字段修改；金额为最小货币单位整数
type EscrowConfig struct {
	ID             int64  `db:"id"`
	Admin          string `db:"admin"`           // 管理员账户
	GameService    string `db:"game_service"`    // 受信任的对局服务账户
	Denom          string `db:"denom"`           // 结算币种
	RakeBps        int64  `db:"rake_bps"`        // 抽水（基点，万分比）
	RakeRecipient  string `db:"rake_recipient"`  // 抽水入账账户
	MinStake       int64  `db:"min_stake"`       // 最小注金
	MaxStake       int64  `db:"max_stake"`       // 最大注金
	TimeoutSeconds int64  `db:"timeout_seconds"` // 入金超时（秒）
	UpdatedAt      int64  `db:"updated_at"`
}

// MatchConfig 对应 match_config 表（单行，id 固定为 1）
type MatchConfig struct {
	ID            int64  `db:"id"`
	Admin         string `db:"admin"`          // 管理员账户
	EscrowEnabled int8   `db:"escrow_enabled"` // 是否启用资金托管: 0=关 1=开
	Reporter      string `db:"reporter"`       // 受信任的赛果上报账户
	UpdatedAt     int64  `db:"updated_at"`
}

// EnsureEscrowConfig 初始化托管配置行（启动时调用一次，已存在则不覆盖）
func EnsureEscrowConfig(ctx context.Context, exec sqlx.ExtContext, c *EscrowConfig) error {
	now := time.Now().UnixMilli()
	sqlStr := `INSERT INTO escrow_config (id, admin, game_service, denom, rake_bps, rake_recipient, min_stake, max_stake, timeout_seconds, updated_at)
	           VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?) ON DUPLICATE KEY UPDATE id = id`
	_, err := exec.ExecContext(ctx, sqlStr, c.Admin, c.GameService, c.Denom, c.RakeBps, c.RakeRecipient, c.MinStake, c.MaxStake, c.TimeoutSeconds, now)
	return err
}

// EnsureMatchConfig 初始化对局配置行（启动时调用一次，已存在则不覆盖）
func EnsureMatchConfig(ctx context.Context, exec sqlx.ExtContext, c *MatchConfig) error {
	now := time.Now().UnixMilli()
	sqlStr := "INSERT INTO match_config (id, admin, escrow_enabled, reporter, updated_at) VALUES (1, ?, ?, ?, ?) ON DUPLICATE KEY UPDATE id = id"
	_, err := exec.ExecContext(ctx, sqlStr, c.Admin, c.EscrowEnabled, c.Reporter, now)
	return err
}

// GetEscrowConfig 查询托管配置
func GetEscrowConfig(ctx context.Context, exec sqlx.ExtContext, forUpdate bool) (*EscrowConfig, error) {
	sqlStr := `SELECT id, admin, game_service, denom, rake_bps, rake_recipient, min_stake, max_stake, timeout_seconds, updated_at
	           FROM escrow_config WHERE id = 1`
	if forUpdate {
		sqlStr += " FOR UPDATE"
	}
	var c EscrowConfig
	if err := sqlx.GetContext(ctx, exec, &c, sqlStr); err != nil {
		return nil, err
	}
	return &c, nil
}

// GetMatchConfig 查询对局配置
func GetMatchConfig(ctx context.Context, exec sqlx.ExtContext, forUpdate bool) (*MatchConfig, error) {
	sqlStr := "SELECT id, admin, escrow_enabled, reporter, updated_at FROM match_config WHERE id = 1"
	if forUpdate {
		sqlStr += " FOR UPDATE"
	}
	var c MatchConfig
	if err := sqlx.GetContext(ctx, exec, &c, sqlStr); err != nil {
		return nil, err
	}
	return &c, nil
}

// UpdateEscrowConfig 逐字段更新托管配置，record 只含调用方显式传入的字段
func UpdateEscrowConfig(ctx context.Context, exec sqlx.ExtContext, record g.Record) error {
	record["updated_at"] = time.Now().UnixMilli()
	_, err := common.UpdateCtx(ctx, exec, "escrow_config", record, g.C("id").Eq(1))
	return err
}

// UpdateMatchConfig 逐字段更新对局配置
func UpdateMatchConfig(ctx context.Context, exec sqlx.ExtContext, record g.Record) error {
	record["updated_at"] = time.Now().UnixMilli()
	_, err := common.UpdateCtx(ctx, exec, "match_config", record, g.C("id").Eq(1))
	return err
}
