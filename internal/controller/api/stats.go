package api

import (
	"strings"

	chelper "bg-server/common/helper"
	helper "bg-server/internal/common/helper"
	"bg-server/internal/common/response"

	beego "github.com/beego/beego/v2/server/web"
	"github.com/shopspring/decimal"
)

// 最小货币单位与展示单位的换算比例（1展示单位 = 100最小单位）
var displayUnitFactor = decimal.NewFromInt(100)

type StatsController struct{ beego.Controller }

// Player 查询玩家统计：GET /api/stats/player?player=
// 未入库玩家返回默认积分与零统计
func (c *StatsController) Player() {
	traceID := helper.GetTraceID(c.Ctx)
	player := strings.TrimSpace(c.Ctx.Input.Query("player"))
	if player == "" {
		player = callerAccount(c.Ctx)
	}
	if player == "" {
		response.BadRequest(&c.Controller, "player required", traceID)
		return
	}

	svc := newMatchService()
	ps, err := svc.GetPlayerStats(c.Ctx.Request.Context(), player)
	if err != nil {
		response.InternalError(&c.Controller, traceID)
		return
	}
	response.Success(&c.Controller, ps, traceID)
}

// Global 查询全局统计：GET /api/stats/global
func (c *StatsController) Global() {
	traceID := helper.GetTraceID(c.Ctx)
	svc := newMatchService()
	gs, err := svc.GetGlobalStats(c.Ctx.Request.Context())
	if err != nil {
		response.InternalError(&c.Controller, traceID)
		return
	}
	response.Success(&c.Controller, map[string]any{
		"total_matches":       gs.TotalMatches,
		"total_games_settled": gs.TotalGamesSettled,
		"total_rake":          gs.TotalRake,
		"total_rake_display":  chelper.TrimDecimal(decimal.NewFromInt(gs.TotalRake).Div(displayUnitFactor)),
		"updated_at":          gs.UpdatedAt,
	}, traceID)
}
