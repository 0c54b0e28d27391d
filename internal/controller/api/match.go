package api

import (
	"strconv"
	"strings"

	helper "bg-server/internal/common/helper"
	"bg-server/internal/common/response"
	"bg-server/internal/service"

	beego "github.com/beego/beego/v2/server/web"
)

var newMatchService = service.NewMatchService

type MatchController struct{ beego.Controller }

// Create 创建对局：POST /api/match
// creator 取自认证身份；注金大于0且托管开启时同时建立托管
func (c *MatchController) Create() {
	mp, ok, msg := helper.ParseAndValidateCreateMatch(c.Ctx)
	traceID := helper.GetTraceID(c.Ctx)
	if !ok {
		response.BadRequest(&c.Controller, msg, traceID)
		return
	}

	creator := callerAccount(c.Ctx)
	if creator == "" {
		response.BadRequest(&c.Controller, "caller required", traceID)
		return
	}

	svc := newMatchService()
	out, err := svc.CreateMatch(c.Ctx.Request.Context(), service.CreateMatchInput{
		Creator:  creator,
		Opponent: mp.Opponent,
		Stake:    mp.Stake,
		TraceID:  traceID,
	})
	if err != nil {
		writeEscrowError(&c.Controller, err, traceID)
		return
	}

	response.Success(&c.Controller, map[string]interface{}{
		"match_id": out.MatchID,
		"stake":    out.Stake,
		"escrow":   out.Escrow,
	}, traceID)
}

// Start 开始对局：POST /api/match/start
// 仅受信任的上报方或 admin 可调用
func (c *MatchController) Start() {
	matchID := strings.TrimSpace(c.Ctx.Input.Query("match_id"))
	traceID := helper.GetTraceID(c.Ctx)
	if matchID == "" {
		response.BadRequest(&c.Controller, "match_id required", traceID)
		return
	}

	caller := callerAccount(c.Ctx)
	if caller == "" {
		response.BadRequest(&c.Controller, "caller required", traceID)
		return
	}

	svc := newMatchService()
	if err := svc.StartMatch(c.Ctx.Request.Context(), caller, matchID, traceID); err != nil {
		writeEscrowError(&c.Controller, err, traceID)
		return
	}
	response.Success(&c.Controller, map[string]interface{}{
		"match_id": matchID,
		"status":   "in_progress",
	}, traceID)
}

// ReportResult 上报赛果：POST /api/match/report
// 仅受信任的上报方或 admin 可调用
func (c *MatchController) ReportResult() {
	rp, ok, msg := helper.ParseAndValidateReportResult(c.Ctx)
	traceID := helper.GetTraceID(c.Ctx)
	if !ok {
		response.BadRequest(&c.Controller, msg, traceID)
		return
	}

	svc := newMatchService()
	err := svc.ReportResult(c.Ctx.Request.Context(), service.ReportResultInput{
		Reporter:  callerAccount(c.Ctx),
		MatchID:   rp.MatchID,
		Winner:    rp.Winner,
		Category:  rp.Category,
		MoveCount: rp.MoveCount,
		TraceID:   traceID,
	})
	if err != nil {
		writeEscrowError(&c.Controller, err, traceID)
		return
	}
	response.Success(&c.Controller, map[string]interface{}{
		"match_id": rp.MatchID,
		"status":   "completed",
		"winner":   rp.Winner,
	}, traceID)
}

// ReportAbandon 上报弃赛：POST /api/match/abandon
func (c *MatchController) ReportAbandon() {
	ap, ok, msg := helper.ParseAndValidateReportAbandon(c.Ctx)
	traceID := helper.GetTraceID(c.Ctx)
	if !ok {
		response.BadRequest(&c.Controller, msg, traceID)
		return
	}

	svc := newMatchService()
	err := svc.ReportAbandonment(c.Ctx.Request.Context(), service.ReportAbandonInput{
		Reporter:  callerAccount(c.Ctx),
		MatchID:   ap.MatchID,
		Abandoner: ap.Abandoner,
		TraceID:   traceID,
	})
	if err != nil {
		writeEscrowError(&c.Controller, err, traceID)
		return
	}
	response.Success(&c.Controller, map[string]interface{}{
		"match_id": ap.MatchID,
		"status":   "abandoned",
	}, traceID)
}

// Get 查询对局：GET /api/match?match_id=
func (c *MatchController) Get() {
	matchID := strings.TrimSpace(c.Ctx.Input.Query("match_id"))
	traceID := helper.GetTraceID(c.Ctx)
	if matchID == "" {
		response.BadRequest(&c.Controller, "match_id required", traceID)
		return
	}

	svc := newMatchService()
	m, err := svc.GetMatch(c.Ctx.Request.Context(), matchID)
	if err != nil {
		writeEscrowError(&c.Controller, err, traceID)
		return
	}
	response.Success(&c.Controller, m, traceID)
}

// List 查询玩家对局列表：GET /api/match/list?player=&limit=
// limit 缺省 10，上限 30
func (c *MatchController) List() {
	traceID := helper.GetTraceID(c.Ctx)
	player := strings.TrimSpace(c.Ctx.Input.Query("player"))
	if player == "" {
		player = callerAccount(c.Ctx)
	}
	if player == "" {
		response.BadRequest(&c.Controller, "player required", traceID)
		return
	}

	limit := 0
	if s := strings.TrimSpace(c.Ctx.Input.Query("limit")); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			limit = n
		}
	}

	svc := newMatchService()
	list, err := svc.ListPlayerMatches(c.Ctx.Request.Context(), player, limit)
	if err != nil {
		response.InternalError(&c.Controller, traceID)
		return
	}
	response.Success(&c.Controller, map[string]interface{}{
		"player":  player,
		"matches": list,
	}, traceID)
}

// GetConfig 查询对局配置：GET /api/match/config
func (c *MatchController) GetConfig() {
	traceID := helper.GetTraceID(c.Ctx)
	svc := newMatchService()
	cfg, err := svc.GetConfig(c.Ctx.Request.Context())
	if err != nil {
		response.InternalError(&c.Controller, traceID)
		return
	}
	response.Success(&c.Controller, cfg, traceID)
}

// 对局配置更新请求参数，缺省字段保持不变
type matchConfigParam struct {
	EscrowEnabled *bool   `json:"escrow_enabled"`
	Reporter      *string `json:"reporter"`
}

// UpdateConfig 更新对局配置：PUT /api/admin/match/config（仅 admin）
func (c *MatchController) UpdateConfig() {
	traceID := helper.GetTraceID(c.Ctx)

	var p matchConfigParam
	if err := c.Ctx.BindJSON(&p); err != nil {
		response.BadRequest(&c.Controller, "invalid json body", traceID)
		return
	}

	svc := newMatchService()
	err := svc.UpdateConfig(c.Ctx.Request.Context(), service.UpdateMatchConfigInput{
		Caller:        callerAccount(c.Ctx),
		EscrowEnabled: p.EscrowEnabled,
		Reporter:      p.Reporter,
		TraceID:       traceID,
	})
	if err != nil {
		writeEscrowError(&c.Controller, err, traceID)
		return
	}
	response.Success(&c.Controller, nil, traceID)
}
