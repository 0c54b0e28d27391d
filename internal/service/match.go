package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	infmysql "bg-server/internal/infra/mysql"
	infrds "bg-server/internal/infra/redis"
	"bg-server/internal/metrics"
	"bg-server/internal/model"
	"bg-server/internal/rating"
	"bg-server/internal/state"

	g "github.com/doug-martin/goqu/v9"
)

// CreateMatchInput 创建对局的输入参数
type CreateMatchInput struct {
	Creator  string
	Opponent string
	Stake    int64 // 0 表示友谊局，不创建托管
	TraceID  string
}

// CreateMatchOutput 创建对局的结果
type CreateMatchOutput struct {
	MatchID string `json:"match_id"`
	Stake   int64  `json:"stake"`
	Escrow  bool   `json:"escrow"` // 是否同时创建了托管
}

// ReportResultInput 赛果上报
// Category: normal/gammon/backgammon，对应倍数 1/2/3
type ReportResultInput struct {
	Reporter  string
	MatchID   string
	Winner    string
	Category  string
	MoveCount int64
	TraceID   string
}

// ReportAbandonInput 弃赛上报：弃赛方判负，对手按 normal 胜果获胜
type ReportAbandonInput struct {
	Reporter  string
	MatchID   string
	Abandoner string
	TraceID   string
}

// UpdateMatchConfigInput 管理端配置更新，nil 字段保持不变
type UpdateMatchConfigInput struct {
	Caller        string
	EscrowEnabled *bool
	Reporter      *string
	TraceID       string
}

type MatchService interface {
	CreateMatch(ctx context.Context, in CreateMatchInput) (*CreateMatchOutput, error)
	StartMatch(ctx context.Context, caller, matchID, traceID string) error
	ReportResult(ctx context.Context, in ReportResultInput) error
	ReportAbandonment(ctx context.Context, in ReportAbandonInput) error
	UpdateConfig(ctx context.Context, in UpdateMatchConfigInput) error
	GetMatch(ctx context.Context, matchID string) (*model.Match, error)
	GetPlayerStats(ctx context.Context, player string) (*model.PlayerStats, error)
	ListPlayerMatches(ctx context.Context, player string, limit int) ([]model.Match, error)
	GetGlobalStats(ctx context.Context) (*model.GlobalStats, error)
	GetConfig(ctx context.Context) (*model.MatchConfig, error)
}

type matchService struct{}

func NewMatchService() MatchService { return &matchService{} }

// categoryMultiplier 胜果类别对应的倍数
func categoryMultiplier(category string) (int, error) {
	switch category {
	case "normal":
		return 1, nil
	case "gammon":
		return 2, nil
	case "backgammon":
		return 3, nil
	}
	return 0, ErrInvalidResultCategory
}

// CreateMatch 创建对局
// match_id 取自全局计数器：game-{seq}；注金大于0且托管开启时，同一事务内创建托管
func (s *matchService) CreateMatch(ctx context.Context, in CreateMatchInput) (*CreateMatchOutput, error) {
	start := time.Now()
	result := "fail"
	defer func() { metrics.RecordMatchOp("create", result, start) }()

	fmt.Printf("[Match] 收到创建对局请求: creator=%s, opponent=%s, stake=%d, trace_id=%s\n",
		in.Creator, in.Opponent, in.Stake, in.TraceID)

	if in.Creator == in.Opponent {
		fmt.Printf("[Match] 不允许自对弈: player=%s, trace_id=%s\n", in.Creator, in.TraceID)
		return nil, ErrSelfPlay
	}

	tx, txCtx, cancel, err := beginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()
	defer func() { _ = tx.Rollback() }()

	// 计数器行锁串行化创建，序号即对局ID
	seq, err := model.NextMatchSeq(txCtx, tx)
	if err != nil {
		return nil, err
	}
	matchID := fmt.Sprintf("game-%d", seq)

	// 双方统计行兜底（新玩家拿默认积分）
	if err := model.EnsurePlayerStats(txCtx, tx, in.Creator); err != nil {
		return nil, err
	}
	if err := model.EnsurePlayerStats(txCtx, tx, in.Opponent); err != nil {
		return nil, err
	}

	m := &model.Match{
		MatchID:  matchID,
		Creator:  in.Creator,
		Opponent: in.Opponent,
		Stake:    in.Stake,
		TraceID:  in.TraceID,
	}
	if err := m.Insert(txCtx, tx); err != nil {
		return nil, err
	}

	aud := &model.MatchEventAudit{
		MatchID:    matchID,
		Entity:     "match",
		Event:      "create",
		PrevStatus: "",
		NextStatus: state.MatchCreated,
		Operator:   in.Creator,
		Source:     "api",
		Payload:    toJSON(map[string]any{"opponent": in.Opponent, "stake": in.Stake}),
		TraceID:    in.TraceID,
	}
	if err := aud.Insert(txCtx, tx); err != nil {
		return nil, err
	}

	if err := model.CreateOutbox(txCtx, tx, model.TopicMatchEvent, matchID, map[string]any{
		"event":    "match_created",
		"match_id": matchID,
		"creator":  in.Creator,
		"opponent": in.Opponent,
		"stake":    in.Stake,
		"trace_id": in.TraceID,
	}); err != nil {
		return nil, err
	}

	// 托管开启且有注金时同事务创建托管，失败则整体回滚
	withEscrow := false
	mcfg, err := model.GetMatchConfig(txCtx, tx, false)
	if err != nil {
		return nil, err
	}
	if mcfg.EscrowEnabled == 1 && in.Stake > 0 {
		ecfg, err := model.GetEscrowConfig(txCtx, tx, false)
		if err != nil {
			return nil, err
		}
		if err := createEscrowTx(txCtx, tx, ecfg, CreateEscrowInput{
			Caller:  ecfg.GameService,
			MatchID: matchID,
			PlayerA: in.Creator,
			PlayerB: in.Opponent,
			Stake:   in.Stake,
			TraceID: in.TraceID,
		}); err != nil {
			return nil, err
		}
		withEscrow = true
	}

	if err := tx.Commit(); err != nil {
		fmt.Printf("[Match] 提交事务失败: error=%v, match_id=%s, trace_id=%s\n", err, matchID, in.TraceID)
		return nil, err
	}

	result = "success"
	fmt.Printf("[Match] 创建对局完成: match_id=%s, escrow=%v, trace_id=%s\n", matchID, withEscrow, in.TraceID)
	return &CreateMatchOutput{MatchID: matchID, Stake: in.Stake, Escrow: withEscrow}, nil
}

// StartMatch 开始对局，仅参与者可调用
func (s *matchService) StartMatch(ctx context.Context, caller, matchID, traceID string) error {
	start := time.Now()
	result := "fail"
	defer func() { metrics.RecordMatchOp("start", result, start) }()

	tx, txCtx, cancel, err := beginTx(ctx)
	if err != nil {
		return err
	}
	defer cancel()
	defer func() { _ = tx.Rollback() }()

	mcfg, err := model.GetMatchConfig(txCtx, tx, false)
	if err != nil {
		return err
	}
	if caller != mcfg.Reporter && caller != mcfg.Admin {
		fmt.Printf("[Match] 开局未授权: caller=%s, trace_id=%s\n", caller, traceID)
		return ErrUnauthorized
	}

	m, err := model.GetMatchForUpdate(txCtx, tx, matchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}

	curStatus := model.MatchStatusStr(m.Status)
	next, err := state.NextMatchState(curStatus, state.EvtStart)
	if err != nil {
		return &InvalidStatusError{Expected: state.MatchCreated, Got: curStatus}
	}

	if err := model.UpdateMatchStatus(txCtx, tx, matchID, next); err != nil {
		return err
	}

	aud := &model.MatchEventAudit{
		MatchID:    matchID,
		Entity:     "match",
		Event:      state.EvtStart,
		PrevStatus: curStatus,
		NextStatus: next,
		Operator:   caller,
		Source:     "api",
		Payload:    "{}",
		TraceID:    traceID,
	}
	if err := aud.Insert(txCtx, tx); err != nil {
		return err
	}
	if err := model.CreateOutbox(txCtx, tx, model.TopicMatchEvent, matchID, map[string]any{
		"event":    "match_started",
		"match_id": matchID,
		"trace_id": traceID,
	}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	result = "success"

	if r := infrds.Client(); r != nil {
		_ = r.Del(ctx, infrds.MatchSnapshotKey(matchID)).Err()
	}
	return nil
}

// ReportResult 上报赛果：更新积分与统计，终结对局，并在同一事务内结算托管
func (s *matchService) ReportResult(ctx context.Context, in ReportResultInput) error {
	start := time.Now()
	result := "fail"
	defer func() { metrics.RecordMatchOp("report_result", result, start) }()

	fmt.Printf("[Match] 收到赛果上报: match_id=%s, winner=%s, category=%s, reporter=%s, trace_id=%s\n",
		in.MatchID, in.Winner, in.Category, in.Reporter, in.TraceID)

	multiplier, err := categoryMultiplier(in.Category)
	if err != nil {
		return err
	}

	return s.finishMatch(ctx, finishInput{
		Reporter:   in.Reporter,
		MatchID:    in.MatchID,
		Winner:     in.Winner,
		Category:   in.Category,
		Multiplier: multiplier,
		MoveCount:  in.MoveCount,
		Event:      state.EvtReportResult,
		TraceID:    in.TraceID,
	}, &result)
}

// ReportAbandonment 上报弃赛：对手按 normal 胜果获胜，走同一条积分与结算路径
func (s *matchService) ReportAbandonment(ctx context.Context, in ReportAbandonInput) error {
	start := time.Now()
	result := "fail"
	defer func() { metrics.RecordMatchOp("report_abandon", result, start) }()

	fmt.Printf("[Match] 收到弃赛上报: match_id=%s, abandoner=%s, reporter=%s, trace_id=%s\n",
		in.MatchID, in.Abandoner, in.Reporter, in.TraceID)

	return s.finishMatch(ctx, finishInput{
		Reporter:   in.Reporter,
		MatchID:    in.MatchID,
		Abandoner:  in.Abandoner,
		Category:   "normal",
		Multiplier: 1,
		Event:      state.EvtReportAbandon,
		TraceID:    in.TraceID,
	}, &result)
}

type finishInput struct {
	Reporter   string
	MatchID    string
	Winner     string // report_result 时必填
	Abandoner  string // report_abandon 时必填，胜者取对手
	Category   string
	Multiplier int
	MoveCount  int64
	Event      string
	TraceID    string
}

// finishMatch 终结对局的公共路径：授权、状态守卫、积分、统计、托管结算、审计
// 所有写入在同一事务内，托管结算失败整体回滚
func (s *matchService) finishMatch(ctx context.Context, in finishInput, result *string) error {
	tx, txCtx, cancel, err := beginTx(ctx)
	if err != nil {
		return err
	}
	defer cancel()
	defer func() { _ = tx.Rollback() }()

	mcfg, err := model.GetMatchConfig(txCtx, tx, false)
	if err != nil {
		return err
	}
	if in.Reporter != mcfg.Reporter && in.Reporter != mcfg.Admin {
		fmt.Printf("[Match] 上报未授权: reporter=%s, trace_id=%s\n", in.Reporter, in.TraceID)
		return ErrUnauthorized
	}

	m, err := model.GetMatchForUpdate(txCtx, tx, in.MatchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}

	curStatus := model.MatchStatusStr(m.Status)
	next, err := state.NextMatchState(curStatus, in.Event)
	if err != nil {
		fmt.Printf("[Match] 状态不允许上报: current=%s, match_id=%s, trace_id=%s\n",
			curStatus, in.MatchID, in.TraceID)
		return &InvalidStatusError{Expected: state.MatchCreated + "|" + state.MatchInProgress, Got: curStatus}
	}

	winner := in.Winner
	if in.Event == state.EvtReportAbandon {
		// 弃赛方判负，胜者取另一方
		switch in.Abandoner {
		case m.Creator:
			winner = m.Opponent
		case m.Opponent:
			winner = m.Creator
		default:
			return ErrNotAParty
		}
	}
	if winner != m.Creator && winner != m.Opponent {
		return ErrInvalidWinner
	}
	loser := m.Creator
	if winner == m.Creator {
		loser = m.Opponent
	}

	// 按账户排序加锁，避免并发上报互相持锁死锁
	if err := model.EnsurePlayerStats(txCtx, tx, winner); err != nil {
		return err
	}
	if err := model.EnsurePlayerStats(txCtx, tx, loser); err != nil {
		return err
	}
	locked := map[string]*model.PlayerStats{}
	players := []string{winner, loser}
	sort.Strings(players)
	for _, p := range players {
		ps, err := model.GetPlayerStatsForUpdate(txCtx, tx, p)
		if err != nil {
			return err
		}
		locked[p] = ps
	}

	newWinnerRating, newLoserRating := rating.Apply(locked[winner].Rating, locked[loser].Rating)

	// total_won 记彩池毛额（2*注金），与派彩净额无关
	if err := model.ApplyWin(txCtx, tx, winner, newWinnerRating, m.Stake, 2*m.Stake); err != nil {
		return err
	}
	if err := model.ApplyLoss(txCtx, tx, loser, newLoserRating, m.Stake); err != nil {
		return err
	}

	if err := model.RecordMatchOutcome(txCtx, tx, in.MatchID, next, winner, in.Category, in.Multiplier, in.MoveCount); err != nil {
		return err
	}

	aud := &model.MatchEventAudit{
		MatchID:    in.MatchID,
		Entity:     "match",
		Event:      in.Event,
		PrevStatus: curStatus,
		NextStatus: next,
		Operator:   in.Reporter,
		Source:     "api",
		Payload:    toJSON(map[string]any{"winner": winner, "category": in.Category, "multiplier": in.Multiplier, "move_count": in.MoveCount}),
		TraceID:    in.TraceID,
	}
	if err := aud.Insert(txCtx, tx); err != nil {
		return err
	}

	if err := model.CreateOutbox(txCtx, tx, model.TopicMatchEvent, in.MatchID, map[string]any{
		"event":      "match_finished",
		"match_id":   in.MatchID,
		"status":     next,
		"winner":     winner,
		"category":   in.Category,
		"multiplier": in.Multiplier,
		"trace_id":   in.TraceID,
	}); err != nil {
		return err
	}

	// 托管结算与赛果落盘同生共死
	if mcfg.EscrowEnabled == 1 && m.Stake > 0 {
		ecfg, err := model.GetEscrowConfig(txCtx, tx, false)
		if err != nil {
			return err
		}
		if _, err := settleEscrowTx(txCtx, tx, ecfg, SettleInput{
			Caller:     ecfg.GameService,
			MatchID:    in.MatchID,
			Winner:     winner,
			Multiplier: in.Multiplier,
			TraceID:    in.TraceID,
		}); err != nil {
			fmt.Printf("[Match] 托管结算失败，整体回滚: match_id=%s, error=%v, trace_id=%s\n",
				in.MatchID, err, in.TraceID)
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		fmt.Printf("[Match] 提交事务失败: error=%v, match_id=%s, trace_id=%s\n", err, in.MatchID, in.TraceID)
		return err
	}
	*result = "success"

	if r := infrds.Client(); r != nil {
		_ = r.Del(ctx, infrds.MatchSnapshotKey(in.MatchID)).Err()
		_ = r.Del(ctx, infrds.EscrowSnapshotKey(in.MatchID)).Err()
	}
	fmt.Printf("[Match] 对局终结完成: match_id=%s, status=%s, winner=%s, trace_id=%s\n",
		in.MatchID, "ended", winner, in.TraceID)
	return nil
}

// UpdateConfig 管理端更新对局配置，仅 admin 可调用；nil 字段不变
func (s *matchService) UpdateConfig(ctx context.Context, in UpdateMatchConfigInput) error {
	tx, txCtx, cancel, err := beginTx(ctx)
	if err != nil {
		return err
	}
	defer cancel()
	defer func() { _ = tx.Rollback() }()

	cfg, err := model.GetMatchConfig(txCtx, tx, true)
	if err != nil {
		return err
	}
	if in.Caller != cfg.Admin {
		return ErrUnauthorized
	}

	record := g.Record{}
	if in.EscrowEnabled != nil {
		v := int8(0)
		if *in.EscrowEnabled {
			v = 1
		}
		record["escrow_enabled"] = v
	}
	if in.Reporter != nil {
		record["reporter"] = *in.Reporter
	}
	if len(record) == 0 {
		return nil
	}
	if err := model.UpdateMatchConfig(txCtx, tx, record); err != nil {
		return err
	}

	fmt.Printf("[Match] 配置更新: fields=%d, caller=%s, trace_id=%s\n", len(record), in.Caller, in.TraceID)
	return tx.Commit()
}

// GetMatch 查询对局快照，Redis 缓存优先
func (s *matchService) GetMatch(ctx context.Context, matchID string) (*model.Match, error) {
	if r := infrds.Client(); r != nil {
		if bs, _ := r.Get(ctx, infrds.MatchSnapshotKey(matchID)).Bytes(); len(bs) > 0 {
			var m model.Match
			if json.Unmarshal(bs, &m) == nil {
				return &m, nil
			}
		}
	}

	m, err := model.GetMatch(ctx, infmysql.SQLX(), matchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if r := infrds.Client(); r != nil {
		if b, e := json.Marshal(m); e == nil {
			_ = r.Set(ctx, infrds.MatchSnapshotKey(matchID), b, snapshotTTL).Err()
		}
	}
	return m, nil
}

// GetPlayerStats 查询玩家统计，未入库玩家返回默认值
func (s *matchService) GetPlayerStats(ctx context.Context, player string) (*model.PlayerStats, error) {
	return model.GetPlayerStats(ctx, infmysql.SQLX(), player)
}

// ListPlayerMatches 查询玩家对局列表，按创建先后倒序，limit 默认10最大30
func (s *matchService) ListPlayerMatches(ctx context.Context, player string, limit int) ([]model.Match, error) {
	return model.ListMatchesByPlayer(ctx, infmysql.SQLX(), player, limit)
}

func (s *matchService) GetGlobalStats(ctx context.Context) (*model.GlobalStats, error) {
	return model.GetGlobalStats(ctx, infmysql.SQLX())
}

// GetConfig 查询对局配置（只读，不加锁）
func (s *matchService) GetConfig(ctx context.Context) (*model.MatchConfig, error) {
	return model.GetMatchConfig(ctx, infmysql.SQLX(), false)
}
