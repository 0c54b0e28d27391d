package model

import (
	"context"
	"time"

	"bg-server/common"

	g "github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"
)

// MatchEventAudit 对应 match_event_audit 表（状态机审计）
// entity 区分审计对象：escrow 或 match
// prev_status/next_status 使用字符串快照，便于直观查询
type MatchEventAudit struct {
	ID int64 `db:"id"`
	// 对局ID
	MatchID string `db:"match_id"`
	// 审计对象：escrow / match
	Entity string `db:"entity"`
	// 触发事件（deposit_complete/settle/cancel/claim_timeout/start/report_result/report_abandon）
	Event      string `db:"event"`
	PrevStatus string `db:"prev_status"`
	NextStatus string `db:"next_status"`
	Operator   string `db:"operator"`
	Source     string `db:"source"`
	Payload    string `db:"payload"`
	TraceID    string `db:"trace_id"`
	CreatedAt  int64  `db:"created_at"`
}

// Insert
func (e *MatchEventAudit) Insert(ctx context.Context, exec sqlx.ExtContext) error {
	_, err := common.InsertCtx(ctx, exec, "match_event_audit", g.Record{
		"match_id":    e.MatchID,
		"entity":      e.Entity,
		"event":       e.Event,
		"prev_status": e.PrevStatus,
		"next_status": e.NextStatus,
		"operator":    e.Operator,
		"source":      e.Source,
		"payload":     e.Payload,
		"trace_id":    e.TraceID,
		"created_at":  time.Now().UnixMilli(),
	})
	return err
}
