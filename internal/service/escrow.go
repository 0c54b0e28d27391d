package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	chelper "bg-server/common/helper"
	"bg-server/internal/config"
	infmysql "bg-server/internal/infra/mysql"
	infrds "bg-server/internal/infra/redis"
	"bg-server/internal/metrics"
	"bg-server/internal/model"
	"bg-server/internal/state"

	g "github.com/doug-martin/goqu/v9"
	mysqlerr "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// CreateEscrowInput 创建托管的输入参数
type CreateEscrowInput struct {
	Caller  string // 发起人账户（须为 admin 或受信任的对局服务）
	MatchID string
	PlayerA string
	PlayerB string
	Stake   int64 // 单方注金，最小货币单位
	TraceID string
}

// DepositInput 入金输入参数
// IdempotencyKey 由客户端生成并随请求传入，用于在网络重试/超时重发时保证同一笔入金只生效一次。
// 服务端幂等保证（多层防护）：
// 1) Redis 进行中锁（约45秒）：并发重复请求直接返回 202；
// 2) MySQL 唯一键：事务内先插入 idempotency_keys，若已存在则返回首次请求的结果；
// 3) 结果缓存：首次成功结果写入 Redis（短期缓存），后续重复直接读缓存快速返回。
type DepositInput struct {
	MatchID        string
	Player         string // 入金方账户（由认证中间件注入）
	Amount         int64  // 入金金额，必须与注金完全一致
	IdempotencyKey string
	TraceID        string
}

// DepositOutput 入金结果
type DepositOutput struct {
	TransferNo string `json:"transfer_no"`
	Status     string `json:"status"` // 入金后的托管状态
}

// SettleInput 结算输入参数
// Multiplier 为胜果倍数（1/2/3），仅作记录，不参与派彩计算
type SettleInput struct {
	Caller     string
	MatchID    string
	Winner     string
	Multiplier int
	TraceID    string
}

// SettleOutput 结算结果
type SettleOutput struct {
	Pot    int64 `json:"pot"`
	Rake   int64 `json:"rake"`
	Payout int64 `json:"payout"`
}

// ClaimTimeoutInput 超时退款申领
type ClaimTimeoutInput struct {
	Caller  string // 申领人，必须是已入金的一方
	MatchID string
	TraceID string
}

// UpdateEscrowConfigInput 管理端配置更新，nil 字段保持不变
type UpdateEscrowConfigInput struct {
	Caller         string
	GameService    *string
	Denom          *string
	RakeBps        *int64
	RakeRecipient  *string
	MinStake       *int64
	MaxStake       *int64
	TimeoutSeconds *int64
	TraceID        string
}

type EscrowService interface {
	CreateEscrow(ctx context.Context, in CreateEscrowInput) error
	Deposit(ctx context.Context, in DepositInput) (*DepositOutput, error)
	Settle(ctx context.Context, in SettleInput) (*SettleOutput, error)
	Cancel(ctx context.Context, caller, matchID, traceID string) error
	ClaimTimeout(ctx context.Context, in ClaimTimeoutInput) (int64, error)
	UpdateConfig(ctx context.Context, in UpdateEscrowConfigInput) error
	GetEscrow(ctx context.Context, matchID string) (*model.Escrow, error)
	GetSettlementDetail(ctx context.Context, matchID string) (*SettlementDetail, error)
	GetConfig(ctx context.Context) (*model.EscrowConfig, error)
	GetGlobalStats(ctx context.Context) (*model.GlobalStats, error)
}

type escrowService struct{}

func NewEscrowService() EscrowService { return &escrowService{} }

const (
	// Redis 进行中锁 TTL：覆盖一次入金事务的最长耗时即可
	idemLockTTL = 45 * time.Second
	// 结果缓存 TTL：覆盖大多数"短时重试"窗口
	idemResultTTL = 1 * time.Minute
	// 托管/对局快照缓存 TTL
	snapshotTTL = 2 * time.Minute
)

// 默认事务超时时间，防止长事务占用资源影响并发（若上游已有 deadline，则沿用上游）
// 可通过动态配置 thresholds.tx_timeout_ms 在线调整
const defaultTxTimeoutMs = 3000

func txTimeout() time.Duration {
	return time.Duration(config.GetThreshold("tx_timeout_ms", defaultTxTimeoutMs)) * time.Millisecond
}

// computePayout 计算彩池、抽水与派彩
// pot = 2*stake；rake = pot*rakeBps/10000（整数向下取整）；payout = pot - rake
// 全程最小货币单位整数运算，无浮点
func computePayout(stake, rakeBps int64) (pot, rake, payout int64) {
	pot = 2 * stake
	rake = pot * rakeBps / 10000
	payout = pot - rake
	return pot, rake, payout
}

// checkDepositAmount 校验入金额度
// 低于注金拒绝；等于或超过注金均接受，入池只按注金计
func checkDepositAmount(amount, stake int64) error {
	if amount <= 0 {
		return ErrNoPayment
	}
	if amount < stake {
		return ErrInsufficientPayment
	}
	return nil
}

// remainingSeconds 计算距离超时边界还差多少秒，<=0 表示已到期
func remainingSeconds(createdAtMs, timeoutSeconds, nowMs int64) int64 {
	return createdAtMs/1000 + timeoutSeconds - nowMs/1000
}

// generateTransferNo 生成可读的转账单号
// 格式：BG{YYYYMMDDHHmmss}{10位带Luhn校验位的数字}
// 示例：BG202609011430251234567894
// 末位为 Luhn 校验位，下游银行模块可据此做格式校验
func generateTransferNo() string {
	dateTime := time.Now().Format("20060102150405")
	code, err := chelper.Generate9PlusLuhn()
	if err != nil {
		// 随机源异常时退化为 uuid 前缀，仍保证唯一
		code = strings.ReplaceAll(uuid.New().String(), "-", "")[:10]
	}
	return fmt.Sprintf("BG%s%s", dateTime, code)
}

// beginTx 开启带默认超时的事务
func beginTx(ctx context.Context) (*sqlx.Tx, context.Context, context.CancelFunc, error) {
	txCtx := ctx
	cancel := context.CancelFunc(func() {})
	if _, has := ctx.Deadline(); !has {
		txCtx, cancel = context.WithTimeout(ctx, txTimeout())
	}
	tx, err := infmysql.SQLX().BeginTxx(txCtx, nil)
	if err != nil {
		cancel()
		return nil, nil, nil, err
	}
	return tx, txCtx, cancel, nil
}

// CreateEscrow 创建一笔对局托管
// 仅 admin 或受信任的对局服务可调用；match_id 重复返回 ErrAlreadyExists
func (s *escrowService) CreateEscrow(ctx context.Context, in CreateEscrowInput) error {
	start := time.Now()
	result := "fail"
	defer func() { metrics.RecordEscrowOp("create", result, start) }()

	fmt.Printf("[Escrow] 收到创建托管请求: match_id=%s, player_a=%s, player_b=%s, stake=%d, caller=%s, trace_id=%s\n",
		in.MatchID, in.PlayerA, in.PlayerB, in.Stake, in.Caller, in.TraceID)

	tx, txCtx, cancel, err := beginTx(ctx)
	if err != nil {
		return err
	}
	defer cancel()
	defer func() { _ = tx.Rollback() }()

	cfg, err := model.GetEscrowConfig(txCtx, tx, false)
	if err != nil {
		return err
	}
	if in.Caller != cfg.Admin && in.Caller != cfg.GameService {
		fmt.Printf("[Escrow] 创建托管未授权: caller=%s, trace_id=%s\n", in.Caller, in.TraceID)
		return ErrUnauthorized
	}

	if err := createEscrowTx(txCtx, tx, cfg, in); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	result = "success"
	return nil
}

// createEscrowTx 在既有事务中创建托管（对局服务创建对局时走这里，共享同一事务）
// 注金区间与重复性校验都在此处，调用方须已完成授权检查
func createEscrowTx(ctx context.Context, tx *sqlx.Tx, cfg *model.EscrowConfig, in CreateEscrowInput) error {
	if in.Stake < cfg.MinStake || in.Stake > cfg.MaxStake {
		fmt.Printf("[Escrow] 注金超出区间: stake=%d, min=%d, max=%d, trace_id=%s\n",
			in.Stake, cfg.MinStake, cfg.MaxStake, in.TraceID)
		return &InvalidStakeError{Amount: in.Stake, Min: cfg.MinStake, Max: cfg.MaxStake}
	}

	cnt, err := model.CountEscrowByMatchID(ctx, tx, in.MatchID)
	if err != nil {
		return err
	}
	if cnt > 0 {
		return ErrAlreadyExists
	}

	esc := &model.Escrow{
		MatchID: in.MatchID,
		PlayerA: in.PlayerA,
		PlayerB: in.PlayerB,
		Stake:   in.Stake,
		Denom:   cfg.Denom,
		TraceID: in.TraceID,
	}
	if err := esc.Insert(ctx, tx); err != nil {
		// 并发创建同一 match_id，唯一索引兜底
		if me, ok := err.(*mysqlerr.MySQLError); ok && me.Number == 1062 {
			return ErrAlreadyExists
		}
		return err
	}

	aud := &model.MatchEventAudit{
		MatchID:    in.MatchID,
		Entity:     "escrow",
		Event:      "create",
		PrevStatus: "",
		NextStatus: state.EscrowAwaitingDeposits,
		Operator:   in.Caller,
		Source:     "api",
		Payload:    toJSON(map[string]any{"player_a": in.PlayerA, "player_b": in.PlayerB, "stake": in.Stake}),
		TraceID:    in.TraceID,
	}
	if err := aud.Insert(ctx, tx); err != nil {
		return err
	}

	return model.CreateOutbox(ctx, tx, model.TopicEscrowEvent, in.MatchID, map[string]any{
		"event":    "escrow_created",
		"match_id": in.MatchID,
		"player_a": in.PlayerA,
		"player_b": in.PlayerB,
		"stake":    in.Stake,
		"denom":    cfg.Denom,
		"trace_id": in.TraceID,
	})
}

// Deposit 处理玩家入金主流程
func (s *escrowService) Deposit(ctx context.Context, in DepositInput) (*DepositOutput, error) {
	start := time.Now()
	result := "fail"
	defer func() { metrics.RecordEscrowOp("deposit", result, start) }()

	fmt.Printf("[Escrow] 收到入金请求: match_id=%s, player=%s, amount=%d, idem_key=%s, trace_id=%s\n",
		in.MatchID, in.Player, in.Amount, in.IdempotencyKey, in.TraceID)

	if in.Amount <= 0 {
		fmt.Printf("[Escrow] 入金金额无效: amount=%d, trace_id=%s\n", in.Amount, in.TraceID)
		return nil, ErrNoPayment
	}

	// Redis 快路径：若已有结果缓存，直接返回
	if r := infrds.Client(); r != nil {
		if bs, _ := r.Get(ctx, infrds.IdemResultKey(in.IdempotencyKey)).Bytes(); len(bs) > 0 {
			var out DepositOutput
			if json.Unmarshal(bs, &out) == nil {
				fmt.Printf("[Escrow] Redis 缓存命中: idem_key=%s, transfer_no=%s, trace_id=%s\n",
					in.IdempotencyKey, out.TransferNo, in.TraceID)
				result = "success_idempotent"
				return &out, nil
			}
		}

		// 进行中锁，吸收瞬时重复；唯一锁值防止误删其他请求的锁
		lockValue := uuid.New().String()
		lockKey := infrds.IdemLockKey(in.IdempotencyKey)
		ok, _ := r.SetNX(ctx, lockKey, lockValue, idemLockTTL).Result()
		if !ok {
			if bs, _ := r.Get(ctx, infrds.IdemResultKey(in.IdempotencyKey)).Bytes(); len(bs) > 0 {
				var out DepositOutput
				if json.Unmarshal(bs, &out) == nil {
					result = "success_idempotent"
					return &out, nil
				}
			}
			fmt.Printf("[Escrow] 重复请求进行中: idem_key=%s, trace_id=%s\n", in.IdempotencyKey, in.TraceID)
			return nil, ErrDuplicateInFlight
		}

		// Lua 脚本原子释放锁（仅当锁值匹配时删除）
		defer func() {
			script := `
				if redis.call("get", KEYS[1]) == ARGV[1] then
					return redis.call("del", KEYS[1])
				else
					return 0
				end
			`
			if _, err := r.Eval(ctx, script, []string{lockKey}, lockValue).Result(); err != nil {
				fmt.Printf("[Escrow] 释放分布式锁失败: idem_key=%s, error=%v, trace_id=%s\n",
					in.IdempotencyKey, err, in.TraceID)
			}
		}()
	}

	tx, txCtx, cancel, err := beginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()
	defer func() { _ = tx.Rollback() }()

	esc, err := model.GetEscrowForUpdate(txCtx, tx, in.MatchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	curStatus := model.EscrowStatusStr(esc.Status)
	if curStatus != state.EscrowAwaitingDeposits {
		fmt.Printf("[Escrow] 状态不允许入金: current=%s, match_id=%s, trace_id=%s\n",
			curStatus, in.MatchID, in.TraceID)
		return nil, &InvalidStatusError{Expected: state.EscrowAwaitingDeposits, Got: curStatus}
	}

	var side string
	switch in.Player {
	case esc.PlayerA:
		side = "a"
		if esc.ADeposited == 1 {
			return nil, ErrAlreadyDeposited
		}
	case esc.PlayerB:
		side = "b"
		if esc.BDeposited == 1 {
			return nil, ErrAlreadyDeposited
		}
	default:
		fmt.Printf("[Escrow] 非托管当事方: player=%s, match_id=%s, trace_id=%s\n",
			in.Player, in.MatchID, in.TraceID)
		return nil, ErrNotAParty
	}

	if err := checkDepositAmount(in.Amount, esc.Stake); err != nil {
		fmt.Printf("[Escrow] 入金金额不足: amount=%d, stake=%d, match_id=%s, trace_id=%s\n",
			in.Amount, esc.Stake, in.MatchID, in.TraceID)
		return nil, err
	}

	transferNo := generateTransferNo()

	// 幂等：先占幂等键，ref 记录 transfer_no
	if err := (&model.IdempotencyKey{IdempotencyKey: in.IdempotencyKey, Purpose: "deposit", Ref: transferNo}).Insert(txCtx, tx); err != nil {
		if me, ok := err.(*mysqlerr.MySQLError); ok && me.Number == 1062 {
			fmt.Printf("[Escrow] 幂等键冲突，尝试返回上次结果: idem_key=%s, trace_id=%s\n",
				in.IdempotencyKey, in.TraceID)
			_ = tx.Rollback()
			if r := infrds.Client(); r != nil {
				if bs, _ := r.Get(ctx, infrds.IdemResultKey(in.IdempotencyKey)).Bytes(); len(bs) > 0 {
					var out DepositOutput
					if json.Unmarshal(bs, &out) == nil {
						result = "success_idempotent"
						return &out, nil
					}
				}
			}
			// DB 回源：根据幂等键查首次 transfer_no
			ref, e1 := model.SelectRefByIdemKey(ctx, infmysql.SQLX(), in.IdempotencyKey)
			if e1 == nil && ref != "" {
				cur, e2 := model.GetEscrow(ctx, infmysql.SQLX(), in.MatchID)
				if e2 == nil {
					result = "success_idempotent"
					return &DepositOutput{TransferNo: ref, Status: model.EscrowStatusStr(cur.Status)}, nil
				}
			}
		}
		return nil, fmt.Errorf("idempotency conflict or insert failed: %w", err)
	}

	// 记录入金并按注金额度增加托管池
	if err := model.SetDeposited(txCtx, tx, in.MatchID, side, esc.Stake); err != nil {
		return nil, err
	}

	ledger := &model.TransferLedger{
		TransferNo:   transferNo,
		MatchID:      in.MatchID,
		Account:      in.Player,
		TransferType: 1,
		Amount:       in.Amount,
		Denom:        esc.Denom,
		PotBefore:    esc.Pot,
		PotAfter:     esc.Pot + in.Amount,
		Remark:       "escrow deposit",
		TraceID:      in.TraceID,
	}
	if err := ledger.Insert(txCtx, tx); err != nil {
		fmt.Printf("[Escrow] 写入流水失败: error=%v, transfer_no=%s, trace_id=%s\n",
			err, transferNo, in.TraceID)
		return nil, err
	}

	newStatus := state.EscrowAwaitingDeposits
	bothDeposited := (side == "a" && esc.BDeposited == 1) || (side == "b" && esc.ADeposited == 1)
	if bothDeposited {
		next, err := state.NextEscrowState(curStatus, state.EvtDepositsComplete)
		if err != nil {
			return nil, err
		}
		if err := model.UpdateEscrowStatus(txCtx, tx, in.MatchID, next); err != nil {
			return nil, err
		}
		newStatus = next

		aud := &model.MatchEventAudit{
			MatchID:    in.MatchID,
			Entity:     "escrow",
			Event:      state.EvtDepositsComplete,
			PrevStatus: curStatus,
			NextStatus: next,
			Operator:   in.Player,
			Source:     "api",
			Payload:    toJSON(map[string]any{"pot": esc.Pot + in.Amount}),
			TraceID:    in.TraceID,
		}
		if err := aud.Insert(txCtx, tx); err != nil {
			return nil, err
		}
	}

	if err := model.CreateOutbox(txCtx, tx, model.TopicEscrowEvent, transferNo, map[string]any{
		"event":      "escrow_deposit",
		"match_id":   in.MatchID,
		"player":     in.Player,
		"amount":     in.Amount,
		"status":     newStatus,
		"trace_id":   in.TraceID,
		"transferNo": transferNo,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		fmt.Printf("[Escrow] 提交事务失败: error=%v, match_id=%s, trace_id=%s\n",
			err, in.MatchID, in.TraceID)
		return nil, err
	}

	result = "success"
	out := &DepositOutput{TransferNo: transferNo, Status: newStatus}

	// 写入 Redis 结果缓存，并使快照缓存失效（降级容错）
	if r := infrds.Client(); r != nil {
		if b, e := json.Marshal(out); e == nil {
			_ = r.Set(ctx, infrds.IdemResultKey(in.IdempotencyKey), b, idemResultTTL).Err()
		}
		_ = r.Del(ctx, infrds.EscrowSnapshotKey(in.MatchID)).Err()
	}

	fmt.Printf("[Escrow] 入金完成: match_id=%s, player=%s, status=%s, transfer_no=%s, trace_id=%s\n",
		in.MatchID, in.Player, newStatus, transferNo, in.TraceID)
	return out, nil
}

// Settle 结算托管：派彩给胜者、抽水入账，状态置为 settled
// 仅 admin 或受信任的对局服务可调用
func (s *escrowService) Settle(ctx context.Context, in SettleInput) (*SettleOutput, error) {
	start := time.Now()
	result := "fail"
	defer func() { metrics.RecordEscrowOp("settle", result, start) }()

	tx, txCtx, cancel, err := beginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()
	defer func() { _ = tx.Rollback() }()

	cfg, err := model.GetEscrowConfig(txCtx, tx, false)
	if err != nil {
		return nil, err
	}
	if in.Caller != cfg.Admin && in.Caller != cfg.GameService {
		return nil, ErrUnauthorized
	}

	out, err := settleEscrowTx(txCtx, tx, cfg, in)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	result = "success"

	if r := infrds.Client(); r != nil {
		_ = r.Del(ctx, infrds.EscrowSnapshotKey(in.MatchID)).Err()
	}
	return out, nil
}

// settleEscrowTx 在既有事务中结算托管
// 对局服务上报赛果时与积分/统计更新共享同一事务，任一失败整体回滚
func settleEscrowTx(ctx context.Context, tx *sqlx.Tx, cfg *model.EscrowConfig, in SettleInput) (*SettleOutput, error) {
	esc, err := model.GetEscrowForUpdate(ctx, tx, in.MatchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	curStatus := model.EscrowStatusStr(esc.Status)
	if curStatus != state.EscrowActive {
		fmt.Printf("[Escrow] 状态不允许结算: current=%s, match_id=%s, trace_id=%s\n",
			curStatus, in.MatchID, in.TraceID)
		return nil, &InvalidStatusError{Expected: state.EscrowActive, Got: curStatus}
	}

	if in.Winner != esc.PlayerA && in.Winner != esc.PlayerB {
		return nil, ErrInvalidWinner
	}

	// 彩池/抽水/派彩全整数计算。倍数仅记录，不放大派彩。
	pot, rake, payout := computePayout(esc.Stake, cfg.RakeBps)

	// 托管池余额校验：入金缺失或流水异常时拒绝结算
	if esc.Pot < rake+payout {
		fmt.Printf("[Escrow] 托管池余额不足: needed=%d, available=%d, match_id=%s, trace_id=%s\n",
			rake+payout, esc.Pot, in.MatchID, in.TraceID)
		return nil, &InsufficientBalanceError{Needed: rake + payout, Available: esc.Pot}
	}

	// ========== 幂等性保护: 结算日志唯一索引（行锁+状态守卫之外的双重保护） ==========
	settlementLog := &model.SettlementLog{
		MatchID:    in.MatchID,
		Winner:     in.Winner,
		Pot:        pot,
		Rake:       rake,
		Payout:     payout,
		Multiplier: in.Multiplier,
		Operator:   in.Caller,
		TraceID:    in.TraceID,
	}
	if err := model.CreateSettlementLog(ctx, tx, settlementLog); err != nil {
		if isMySQLDuplicateKeyError(err) {
			fmt.Printf("[Escrow] 结算日志已存在，拒绝重复结算: match_id=%s, trace_id=%s\n",
				in.MatchID, in.TraceID)
			return nil, &InvalidStatusError{Expected: state.EscrowActive, Got: state.EscrowSettled}
		}
		return nil, err
	}

	// 派彩流水 + 转账指令
	payoutNo := generateTransferNo()
	payoutLedger := &model.TransferLedger{
		TransferNo:   payoutNo,
		MatchID:      in.MatchID,
		Account:      in.Winner,
		TransferType: 2,
		Amount:       payout,
		Denom:        esc.Denom,
		PotBefore:    esc.Pot,
		PotAfter:     esc.Pot - payout,
		Remark:       "settle payout",
		TraceID:      in.TraceID,
	}
	if err := payoutLedger.Insert(ctx, tx); err != nil {
		return nil, err
	}
	if err := model.CreateOutbox(ctx, tx, model.TopicTransferPayout, payoutNo, map[string]any{
		"event":       "transfer_payout",
		"transfer_no": payoutNo,
		"match_id":    in.MatchID,
		"account":     in.Winner,
		"amount":      payout,
		"denom":       esc.Denom,
		"trace_id":    in.TraceID,
	}); err != nil {
		return nil, err
	}

	// 抽水为0时不产生流水与指令
	if rake > 0 {
		rakeNo := generateTransferNo()
		rakeLedger := &model.TransferLedger{
			TransferNo:   rakeNo,
			MatchID:      in.MatchID,
			Account:      cfg.RakeRecipient,
			TransferType: 3,
			Amount:       rake,
			Denom:        esc.Denom,
			PotBefore:    esc.Pot - payout,
			PotAfter:     esc.Pot - payout - rake,
			Remark:       "settle rake",
			TraceID:      in.TraceID,
		}
		if err := rakeLedger.Insert(ctx, tx); err != nil {
			return nil, err
		}
		if err := model.CreateOutbox(ctx, tx, model.TopicTransferRake, rakeNo, map[string]any{
			"event":       "transfer_rake",
			"transfer_no": rakeNo,
			"match_id":    in.MatchID,
			"account":     cfg.RakeRecipient,
			"amount":      rake,
			"denom":       esc.Denom,
			"trace_id":    in.TraceID,
		}); err != nil {
			return nil, err
		}
	}

	if err := model.MarkEscrowSettled(ctx, tx, in.MatchID, in.Winner, in.Multiplier, rake, payout); err != nil {
		return nil, err
	}

	// 全局统计与结算在同一事务内更新
	if err := model.AddSettlementTotals(ctx, tx, rake); err != nil {
		return nil, err
	}

	aud := &model.MatchEventAudit{
		MatchID:    in.MatchID,
		Entity:     "escrow",
		Event:      state.EvtSettle,
		PrevStatus: curStatus,
		NextStatus: state.EscrowSettled,
		Operator:   in.Caller,
		Source:     "api",
		Payload:    toJSON(map[string]any{"winner": in.Winner, "pot": pot, "rake": rake, "payout": payout, "multiplier": in.Multiplier}),
		TraceID:    in.TraceID,
	}
	if err := aud.Insert(ctx, tx); err != nil {
		return nil, err
	}

	fmt.Printf("[Escrow] 结算完成: match_id=%s, winner=%s, pot=%d, rake=%d, payout=%d, trace_id=%s\n",
		in.MatchID, in.Winner, pot, rake, payout, in.TraceID)
	return &SettleOutput{Pot: pot, Rake: rake, Payout: payout}, nil
}

// Cancel 取消托管：已入金的一方各自退回注金
// awaiting_deposits 或 active 状态均可取消；仅 admin 或对局服务可调用
func (s *escrowService) Cancel(ctx context.Context, caller, matchID, traceID string) error {
	start := time.Now()
	result := "fail"
	defer func() { metrics.RecordEscrowOp("cancel", result, start) }()

	tx, txCtx, cancel, err := beginTx(ctx)
	if err != nil {
		return err
	}
	defer cancel()
	defer func() { _ = tx.Rollback() }()

	cfg, err := model.GetEscrowConfig(txCtx, tx, false)
	if err != nil {
		return err
	}
	if caller != cfg.Admin && caller != cfg.GameService {
		return ErrUnauthorized
	}

	esc, err := model.GetEscrowForUpdate(txCtx, tx, matchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}

	curStatus := model.EscrowStatusStr(esc.Status)
	next, err := state.NextEscrowState(curStatus, state.EvtCancel)
	if err != nil {
		return &InvalidStatusError{Expected: state.EscrowAwaitingDeposits + "|" + state.EscrowActive, Got: curStatus}
	}

	// 逐个退款已入金方
	refunded := int64(0)
	pot := esc.Pot
	refund := func(account string) error {
		no := generateTransferNo()
		l := &model.TransferLedger{
			TransferNo:   no,
			MatchID:      matchID,
			Account:      account,
			TransferType: 4,
			Amount:       esc.Stake,
			Denom:        esc.Denom,
			PotBefore:    pot,
			PotAfter:     pot - esc.Stake,
			Remark:       "cancel refund",
			TraceID:      traceID,
		}
		if err := l.Insert(txCtx, tx); err != nil {
			return err
		}
		pot -= esc.Stake
		refunded += esc.Stake
		return model.CreateOutbox(txCtx, tx, model.TopicTransferRefund, no, map[string]any{
			"event":       "transfer_refund",
			"transfer_no": no,
			"match_id":    matchID,
			"account":     account,
			"amount":      esc.Stake,
			"denom":       esc.Denom,
			"trace_id":    traceID,
		})
	}
	if esc.ADeposited == 1 {
		if err := refund(esc.PlayerA); err != nil {
			return err
		}
	}
	if esc.BDeposited == 1 {
		if err := refund(esc.PlayerB); err != nil {
			return err
		}
	}

	if err := model.MarkEscrowClosed(txCtx, tx, matchID, next, refunded); err != nil {
		return err
	}

	aud := &model.MatchEventAudit{
		MatchID:    matchID,
		Entity:     "escrow",
		Event:      state.EvtCancel,
		PrevStatus: curStatus,
		NextStatus: next,
		Operator:   caller,
		Source:     "api",
		Payload:    toJSON(map[string]any{"refunded": refunded}),
		TraceID:    traceID,
	}
	if err := aud.Insert(txCtx, tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	result = "success"

	if r := infrds.Client(); r != nil {
		_ = r.Del(ctx, infrds.EscrowSnapshotKey(matchID)).Err()
	}
	fmt.Printf("[Escrow] 取消完成: match_id=%s, refunded=%d, trace_id=%s\n", matchID, refunded, traceID)
	return nil
}

// ClaimTimeout 对手超时未入金时，已入金一方申领退款
// 仅 awaiting_deposits 状态可申领；返回退款金额
func (s *escrowService) ClaimTimeout(ctx context.Context, in ClaimTimeoutInput) (int64, error) {
	start := time.Now()
	result := "fail"
	defer func() { metrics.RecordEscrowOp("claim_timeout", result, start) }()

	tx, txCtx, cancel, err := beginTx(ctx)
	if err != nil {
		return 0, err
	}
	defer cancel()
	defer func() { _ = tx.Rollback() }()

	cfg, err := model.GetEscrowConfig(txCtx, tx, false)
	if err != nil {
		return 0, err
	}

	esc, err := model.GetEscrowForUpdate(txCtx, tx, in.MatchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}

	curStatus := model.EscrowStatusStr(esc.Status)
	if curStatus != state.EscrowAwaitingDeposits {
		return 0, &InvalidStatusError{Expected: state.EscrowAwaitingDeposits, Got: curStatus}
	}

	// 申领人必须是已入金的当事方
	switch in.Caller {
	case esc.PlayerA:
		if esc.ADeposited != 1 {
			return 0, ErrNoDeposit
		}
	case esc.PlayerB:
		if esc.BDeposited != 1 {
			return 0, ErrNoDeposit
		}
	default:
		return 0, ErrNotAParty
	}

	if remaining := remainingSeconds(esc.CreatedAt, cfg.TimeoutSeconds, time.Now().UnixMilli()); remaining > 0 {
		fmt.Printf("[Escrow] 超时边界未到: remaining=%ds, match_id=%s, trace_id=%s\n",
			remaining, in.MatchID, in.TraceID)
		return 0, &TimeoutNotReachedError{Remaining: remaining}
	}

	no := generateTransferNo()
	l := &model.TransferLedger{
		TransferNo:   no,
		MatchID:      in.MatchID,
		Account:      in.Caller,
		TransferType: 4,
		Amount:       esc.Stake,
		Denom:        esc.Denom,
		PotBefore:    esc.Pot,
		PotAfter:     esc.Pot - esc.Stake,
		Remark:       "timeout refund",
		TraceID:      in.TraceID,
	}
	if err := l.Insert(txCtx, tx); err != nil {
		return 0, err
	}
	if err := model.CreateOutbox(txCtx, tx, model.TopicTransferRefund, no, map[string]any{
		"event":       "transfer_refund",
		"transfer_no": no,
		"match_id":    in.MatchID,
		"account":     in.Caller,
		"amount":      esc.Stake,
		"denom":       esc.Denom,
		"trace_id":    in.TraceID,
	}); err != nil {
		return 0, err
	}

	if err := model.MarkEscrowClosed(txCtx, tx, in.MatchID, state.EscrowTimedOut, esc.Stake); err != nil {
		return 0, err
	}

	aud := &model.MatchEventAudit{
		MatchID:    in.MatchID,
		Entity:     "escrow",
		Event:      state.EvtClaimTimeout,
		PrevStatus: curStatus,
		NextStatus: state.EscrowTimedOut,
		Operator:   in.Caller,
		Source:     "api",
		Payload:    toJSON(map[string]any{"refunded": esc.Stake}),
		TraceID:    in.TraceID,
	}
	if err := aud.Insert(txCtx, tx); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	result = "success"

	if r := infrds.Client(); r != nil {
		_ = r.Del(ctx, infrds.EscrowSnapshotKey(in.MatchID)).Err()
	}
	fmt.Printf("[Escrow] 超时退款完成: match_id=%s, claimer=%s, amount=%d, trace_id=%s\n",
		in.MatchID, in.Caller, esc.Stake, in.TraceID)
	return esc.Stake, nil
}

// UpdateConfig 管理端更新托管配置，仅 admin 可调用；nil 字段不变
func (s *escrowService) UpdateConfig(ctx context.Context, in UpdateEscrowConfigInput) error {
	tx, txCtx, cancel, err := beginTx(ctx)
	if err != nil {
		return err
	}
	defer cancel()
	defer func() { _ = tx.Rollback() }()

	cfg, err := model.GetEscrowConfig(txCtx, tx, true)
	if err != nil {
		return err
	}
	if in.Caller != cfg.Admin {
		return ErrUnauthorized
	}

	record := g.Record{}
	if in.GameService != nil {
		record["game_service"] = *in.GameService
	}
	if in.Denom != nil {
		record["denom"] = *in.Denom
	}
	if in.RakeBps != nil {
		record["rake_bps"] = *in.RakeBps
	}
	if in.RakeRecipient != nil {
		record["rake_recipient"] = *in.RakeRecipient
	}
	if in.MinStake != nil {
		record["min_stake"] = *in.MinStake
	}
	if in.MaxStake != nil {
		record["max_stake"] = *in.MaxStake
	}
	if in.TimeoutSeconds != nil {
		record["timeout_seconds"] = *in.TimeoutSeconds
	}
	if len(record) == 0 {
		return nil
	}
	if err := model.UpdateEscrowConfig(txCtx, tx, record); err != nil {
		return err
	}

	fmt.Printf("[Escrow] 配置更新: fields=%d, caller=%s, trace_id=%s\n", len(record), in.Caller, in.TraceID)
	return tx.Commit()
}

// GetEscrow 查询托管快照，Redis 缓存优先
func (s *escrowService) GetEscrow(ctx context.Context, matchID string) (*model.Escrow, error) {
	if r := infrds.Client(); r != nil {
		if bs, _ := r.Get(ctx, infrds.EscrowSnapshotKey(matchID)).Bytes(); len(bs) > 0 {
			var esc model.Escrow
			if json.Unmarshal(bs, &esc) == nil {
				return &esc, nil
			}
		}
	}

	esc, err := model.GetEscrow(ctx, infmysql.SQLX(), matchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if r := infrds.Client(); r != nil {
		if b, e := json.Marshal(esc); e == nil {
			_ = r.Set(ctx, infrds.EscrowSnapshotKey(matchID), b, snapshotTTL).Err()
		}
	}
	return esc, nil
}

// SettlementDetail 托管结算明细：资金流水与结算日志
// 未结算的托管 settlement 为空，流水仅含入金
type SettlementDetail struct {
	Settlement *model.SettlementLog   `json:"settlement,omitempty"`
	Transfers  []model.TransferLedger `json:"transfers"`
}

// GetSettlementDetail 查询一笔托管的全部资金流水与结算日志
func (s *escrowService) GetSettlementDetail(ctx context.Context, matchID string) (*SettlementDetail, error) {
	if _, err := model.GetEscrow(ctx, infmysql.SQLX(), matchID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	transfers, err := model.ListTransfersByMatch(ctx, infmysql.SQLX(), matchID)
	if err != nil {
		return nil, err
	}
	detail := &SettlementDetail{Transfers: transfers}

	slog, err := model.GetSettlementLog(ctx, infmysql.SQLX(), matchID)
	if err == nil {
		detail.Settlement = slog
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return detail, nil
}

func (s *escrowService) GetConfig(ctx context.Context) (*model.EscrowConfig, error) {
	return model.GetEscrowConfig(ctx, infmysql.SQLX(), false)
}

func (s *escrowService) GetGlobalStats(ctx context.Context) (*model.GlobalStats, error) {
	return model.GetGlobalStats(ctx, infmysql.SQLX())
}

func toJSON(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}

// isMySQLDuplicateKeyError 判断是否为 MySQL 唯一键冲突错误
func isMySQLDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	errMsg := err.Error()
	// MySQL 错误码 1062: Duplicate entry
	return strings.Contains(errMsg, "Error 1062") ||
		strings.Contains(errMsg, "Duplicate entry") ||
		strings.Contains(errMsg, "duplicate key")
}
