package api

import (
	"errors"
	"fmt"
	"strings"

	helper "bg-server/internal/common/helper"
	"bg-server/internal/common/response"
	"bg-server/internal/service"

	beego "github.com/beego/beego/v2/server/web"

	mysqlerr "github.com/go-sql-driver/mysql"
)

var newEscrowService = service.NewEscrowService

type EscrowController struct{ beego.Controller }

// Create 创建托管：POST /api/escrow
// 仅 admin 或受信任的对局服务可调用
func (c *EscrowController) Create() {
	// 这里必须要对业务参数严格校验，后续service不再重复校验
	ep, ok, msg := helper.ParseAndValidateCreateEscrow(c.Ctx)
	traceID := helper.GetTraceID(c.Ctx)
	if !ok {
		response.BadRequest(&c.Controller, msg, traceID)
		return
	}

	svc := newEscrowService()
	err := svc.CreateEscrow(c.Ctx.Request.Context(), service.CreateEscrowInput{
		Caller:  callerAccount(c.Ctx),
		MatchID: ep.MatchID,
		PlayerA: ep.PlayerA,
		PlayerB: ep.PlayerB,
		Stake:   ep.Stake,
		TraceID: traceID,
	})
	if err != nil {
		writeEscrowError(&c.Controller, err, traceID)
		return
	}

	response.Success(&c.Controller, map[string]interface{}{
		"match_id": ep.MatchID,
		"status":   "awaiting_deposits",
	}, traceID)
}

// Deposit 缴纳注金：POST /api/escrow/deposit
func (c *EscrowController) Deposit() {
	dp, ok, msg := helper.ParseAndValidateDeposit(c.Ctx)
	traceID := helper.GetTraceID(c.Ctx)
	if !ok {
		response.BadRequest(&c.Controller, msg, traceID)
		return
	}

	player := callerAccount(c.Ctx)
	if player == "" {
		response.BadRequest(&c.Controller, "caller required", traceID)
		return
	}

	svc := newEscrowService()
	out, err := svc.Deposit(c.Ctx.Request.Context(), service.DepositInput{
		MatchID:        dp.MatchID,
		Player:         player,
		Amount:         dp.Amount,
		IdempotencyKey: dp.IdempotencyKey,
		TraceID:        traceID,
	})
	if err != nil {
		// MySQL 唯一键冲突
		if me, ok := err.(*mysqlerr.MySQLError); ok && me.Number == 1062 {
			response.Conflict(&c.Controller, response.CodeDuplicateKey, traceID)
			return
		}
		// 重复请求进行中
		if errors.Is(err, service.ErrDuplicateInFlight) {
			response.Accepted(&c.Controller, "重复请求进行中，请稍后重试", traceID)
			return
		}
		writeEscrowError(&c.Controller, err, traceID)
		return
	}

	response.Success(&c.Controller, map[string]interface{}{
		"transfer_no": out.TransferNo,
		"status":      out.Status,
	}, traceID)
}

// Settle 结算托管：POST /api/escrow/settle
// multiplier 记录胜果倍数但不参与派彩计算
func (c *EscrowController) Settle() {
	sp, ok, msg := helper.ParseAndValidateSettle(c.Ctx)
	traceID := helper.GetTraceID(c.Ctx)
	if !ok {
		response.BadRequest(&c.Controller, msg, traceID)
		return
	}

	svc := newEscrowService()
	out, err := svc.Settle(c.Ctx.Request.Context(), service.SettleInput{
		Caller:     callerAccount(c.Ctx),
		MatchID:    sp.MatchID,
		Winner:     sp.Winner,
		Multiplier: sp.Multiplier,
		TraceID:    traceID,
	})
	if err != nil {
		writeEscrowError(&c.Controller, err, traceID)
		return
	}

	response.Success(&c.Controller, map[string]interface{}{
		"match_id": sp.MatchID,
		"pot":      out.Pot,
		"rake":     out.Rake,
		"payout":   out.Payout,
	}, traceID)
}

// Cancel 取消托管并退还已缴注金：POST /api/escrow/cancel
func (c *EscrowController) Cancel() {
	matchID := strings.TrimSpace(c.Ctx.Input.Query("match_id"))
	traceID := helper.GetTraceID(c.Ctx)
	if matchID == "" {
		response.BadRequest(&c.Controller, "match_id required", traceID)
		return
	}

	svc := newEscrowService()
	if err := svc.Cancel(c.Ctx.Request.Context(), callerAccount(c.Ctx), matchID, traceID); err != nil {
		writeEscrowError(&c.Controller, err, traceID)
		return
	}
	response.Success(&c.Controller, map[string]interface{}{
		"match_id": matchID,
		"status":   "cancelled",
	}, traceID)
}

// ClaimTimeout 超时退款申领：POST /api/escrow/claim-timeout
// 仅等待入金状态下，已缴注金一方在超时到达后可申领退款
func (c *EscrowController) ClaimTimeout() {
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

	svc := newEscrowService()
	refund, err := svc.ClaimTimeout(c.Ctx.Request.Context(), service.ClaimTimeoutInput{
		Caller:  caller,
		MatchID: matchID,
		TraceID: traceID,
	})
	if err != nil {
		writeEscrowError(&c.Controller, err, traceID)
		return
	}
	response.Success(&c.Controller, map[string]interface{}{
		"match_id": matchID,
		"refund":   refund,
		"status":   "timed_out",
	}, traceID)
}

// Get 查询托管：GET /api/escrow?match_id=
func (c *EscrowController) Get() {
	matchID := strings.TrimSpace(c.Ctx.Input.Query("match_id"))
	traceID := helper.GetTraceID(c.Ctx)
	if matchID == "" {
		response.BadRequest(&c.Controller, "match_id required", traceID)
		return
	}

	svc := newEscrowService()
	esc, err := svc.GetEscrow(c.Ctx.Request.Context(), matchID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			response.NotFound(&c.Controller, "托管不存在", traceID)
			return
		}
		response.InternalError(&c.Controller, traceID)
		return
	}
	response.Success(&c.Controller, esc, traceID)
}

// Transfers 查询托管结算明细（资金流水与结算日志）：GET /api/escrow/transfers?match_id=
func (c *EscrowController) Transfers() {
	matchID := strings.TrimSpace(c.Ctx.Input.Query("match_id"))
	traceID := helper.GetTraceID(c.Ctx)
	if matchID == "" {
		response.BadRequest(&c.Controller, "match_id required", traceID)
		return
	}

	svc := newEscrowService()
	detail, err := svc.GetSettlementDetail(c.Ctx.Request.Context(), matchID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			response.NotFound(&c.Controller, "托管不存在", traceID)
			return
		}
		response.InternalError(&c.Controller, traceID)
		return
	}
	response.Success(&c.Controller, detail, traceID)
}

// GetConfig 查询托管配置：GET /api/escrow/config
func (c *EscrowController) GetConfig() {
	traceID := helper.GetTraceID(c.Ctx)
	svc := newEscrowService()
	cfg, err := svc.GetConfig(c.Ctx.Request.Context())
	if err != nil {
		response.InternalError(&c.Controller, traceID)
		return
	}
	response.Success(&c.Controller, cfg, traceID)
}

// 托管配置更新请求参数，缺省字段保持不变
type escrowConfigParam struct {
	GameService    *string `json:"game_service"`
	Denom          *string `json:"denom"`
	RakeBps        *int64  `json:"rake_bps"`
	RakeRecipient  *string `json:"rake_recipient"`
	MinStake       *int64  `json:"min_stake"`
	MaxStake       *int64  `json:"max_stake"`
	TimeoutSeconds *int64  `json:"timeout_seconds"`
}

// UpdateConfig 更新托管配置：PUT /api/admin/escrow/config（仅 admin）
func (c *EscrowController) UpdateConfig() {
	traceID := helper.GetTraceID(c.Ctx)

	var p escrowConfigParam
	if err := c.Ctx.BindJSON(&p); err != nil {
		response.BadRequest(&c.Controller, "invalid json body", traceID)
		return
	}
	if p.RakeBps != nil && (*p.RakeBps < 0 || *p.RakeBps > 10000) {
		response.BadRequest(&c.Controller, "rake_bps must be within [0,10000]", traceID)
		return
	}

	svc := newEscrowService()
	err := svc.UpdateConfig(c.Ctx.Request.Context(), service.UpdateEscrowConfigInput{
		Caller:         callerAccount(c.Ctx),
		GameService:    p.GameService,
		Denom:          p.Denom,
		RakeBps:        p.RakeBps,
		RakeRecipient:  p.RakeRecipient,
		MinStake:       p.MinStake,
		MaxStake:       p.MaxStake,
		TimeoutSeconds: p.TimeoutSeconds,
		TraceID:        traceID,
	})
	if err != nil {
		writeEscrowError(&c.Controller, err, traceID)
		return
	}
	response.Success(&c.Controller, nil, traceID)
}

// writeEscrowError 统一的托管错误到 HTTP 响应映射
func writeEscrowError(c *beego.Controller, err error, traceID string) {
	var invalidStatus *service.InvalidStatusError
	if errors.As(err, &invalidStatus) {
		response.ErrorWithMessage(c, 409, response.CodeInvalidState, invalidStatus.Error(), traceID)
		return
	}
	var timeoutNotReached *service.TimeoutNotReachedError
	if errors.As(err, &timeoutNotReached) {
		response.ErrorWithMessage(c, 409, response.CodeTimeoutNotReached,
			fmt.Sprintf("缴纳超时尚未到达，剩余 %d 秒", timeoutNotReached.Remaining), traceID)
		return
	}
	var invalidStake *service.InvalidStakeError
	if errors.As(err, &invalidStake) {
		response.ErrorWithMessage(c, 400, response.CodeInvalidStake, invalidStake.Error(), traceID)
		return
	}
	var insufficient *service.InsufficientBalanceError
	if errors.As(err, &insufficient) {
		response.ErrorWithMessage(c, 409, response.CodeInsufficientBalance, insufficient.Error(), traceID)
		return
	}
	switch {
	case errors.Is(err, service.ErrUnauthorized):
		response.Error(c, 403, response.CodeUnauthorized, traceID)
	case errors.Is(err, service.ErrNotFound):
		response.NotFound(c, "托管不存在", traceID)
	case errors.Is(err, service.ErrAlreadyExists):
		response.Conflict(c, response.CodeDuplicateKey, traceID)
	case errors.Is(err, service.ErrAlreadyDeposited):
		response.Conflict(c, response.CodeAlreadyDeposited, traceID)
	case errors.Is(err, service.ErrNotAParty):
		response.Error(c, 403, response.CodeNotAParty, traceID)
	case errors.Is(err, service.ErrNoDeposit):
		// 未入金方无权发起超时退款，按越权处理
		response.Error(c, 403, response.CodeNoDeposit, traceID)
	case errors.Is(err, service.ErrSelfPlay):
		response.Error(c, 400, response.CodeSelfPlay, traceID)
	case errors.Is(err, service.ErrInvalidWinner):
		response.Error(c, 400, response.CodeInvalidWinner, traceID)
	case errors.Is(err, service.ErrInvalidResultCategory):
		response.Error(c, 400, response.CodeInvalidCategory, traceID)
	case errors.Is(err, service.ErrNoPayment), errors.Is(err, service.ErrInsufficientPayment):
		response.BadRequest(c, err.Error(), traceID)
	default:
		response.InternalError(c, traceID)
	}
}
