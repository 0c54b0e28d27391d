package routers

import (
	"bg-server/internal/controller/api"
	"bg-server/internal/metrics"
	"bg-server/internal/middleware"

	beego "github.com/beego/beego/v2/server/web"
)

// init 注册HTTP路由与全局过滤器
// 路由注册发生在 main 加载配置之前，开关类过滤器（CORS/限流/管理员认证/
// 玩家认证方式）一律无条件挂载，在每次请求时自查当前配置决定是否生效
func init() {
	// 全局过滤器（按执行顺序）
	// 1. Panic Recovery（最先执行，捕获所有 panic）
	beego.InsertFilter("/*", beego.BeforeRouter, middleware.RecoveryFilter)

	// 2. 请求ID注入
	beego.InsertFilter("/*", beego.BeforeRouter, middleware.RequestIDFilter)

	// 3. CORS 处理（未启用时过滤器内部直接放行）
	beego.InsertFilter("/*", beego.BeforeExec, middleware.CORSFilter)

	// 4. HTTP 指标收集
	beego.InsertFilter("/*", beego.BeforeExec, metrics.HTTPMetricsFilter)
	beego.InsertFilter("/*", beego.FinishRouter, metrics.HTTPMetricsAfter)

	// 健康检查（无需认证）
	beego.Router("/healthz", &api.HealthController{}, "get:Healthz")
	beego.Router("/readyz", &api.HealthController{}, "get:Readyz")

	// ========== 玩家 API（JWT 认证，演示模式下简化） ==========

	beego.InsertFilter("/api/match", beego.BeforeExec, middleware.PlayerAuthFilter)
	beego.InsertFilter("/api/match/list", beego.BeforeExec, middleware.PlayerAuthFilter)
	beego.InsertFilter("/api/escrow/deposit", beego.BeforeExec, middleware.PlayerAuthFilter)
	beego.InsertFilter("/api/escrow/claim-timeout", beego.BeforeExec, middleware.PlayerAuthFilter)
	beego.InsertFilter("/api/match", beego.BeforeExec, middleware.RateLimitFilter)
	beego.InsertFilter("/api/escrow/deposit", beego.BeforeExec, middleware.RateLimitFilter)

	beego.Router("/api/match", &api.MatchController{}, "post:Create;get:Get")
	beego.Router("/api/match/list", &api.MatchController{}, "get:List")
	beego.Router("/api/escrow/deposit", &api.EscrowController{}, "post:Deposit")
	beego.Router("/api/escrow/claim-timeout", &api.EscrowController{}, "post:ClaimTimeout")

	// ========== 服务方 API（签名认证） ==========

	beego.InsertFilter("/api/escrow", beego.BeforeExec, middleware.ServiceAuthFilter)
	beego.InsertFilter("/api/escrow/settle", beego.BeforeExec, middleware.ServiceAuthFilter)
	beego.InsertFilter("/api/match/start", beego.BeforeExec, middleware.ServiceAuthFilter)
	beego.InsertFilter("/api/match/report", beego.BeforeExec, middleware.ServiceAuthFilter)
	beego.InsertFilter("/api/match/abandon", beego.BeforeExec, middleware.ServiceAuthFilter)

	beego.Router("/api/escrow", &api.EscrowController{}, "post:Create")
	beego.Router("/api/match/start", &api.MatchController{}, "post:Start")
	beego.Router("/api/escrow/settle", &api.EscrowController{}, "post:Settle")
	beego.Router("/api/match/report", &api.MatchController{}, "post:ReportResult")
	beego.Router("/api/match/abandon", &api.MatchController{}, "post:ReportAbandon")

	// ========== 公共查询 API（无需认证） ==========

	beego.Router("/api/escrow/info", &api.EscrowController{}, "get:Get")
	beego.Router("/api/escrow/transfers", &api.EscrowController{}, "get:Transfers")
	beego.Router("/api/escrow/config", &api.EscrowController{}, "get:GetConfig")
	beego.Router("/api/match/config", &api.MatchController{}, "get:GetConfig")
	beego.Router("/api/stats/player", &api.StatsController{}, "get:Player")
	beego.Router("/api/stats/global", &api.StatsController{}, "get:Global")

	// ========== 管理 API（需要管理员认证） ==========

	beego.InsertFilter("/api/admin/*", beego.BeforeExec, middleware.AdminAuthFilter)
	beego.Router("/api/admin/escrow/config", &api.EscrowController{}, "put:UpdateConfig")
	beego.Router("/api/admin/match/config", &api.MatchController{}, "put:UpdateConfig")
	beego.Router("/api/admin/escrow/cancel", &api.EscrowController{}, "post:Cancel")
}
