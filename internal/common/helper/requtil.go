package helper

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	beegocontext "github.com/beego/beego/v2/server/web/context"
)

// IsJSONContentType 判断是否为 JSON 请求
func IsJSONContentType(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(ct))
	return strings.Contains(ct, "json")
}

// 账户格式校验：字母数字与 _.- ，1..64 位（预编译正则）
var accountRe = regexp.MustCompile(`^[A-Za-z0-9_.\-]{1,64}$`)

// IsAccountFormat 判断账户名格式
func IsAccountFormat(s string) bool {
	return accountRe.MatchString(strings.TrimSpace(s))
}

// 默认输入保护参数
const (
	defaultJSONMaxBytes int64         = 1 << 20 // 1MB
	defaultParseTimeout time.Duration = 1 * time.Second
)

type deadlineReader struct {
	r        io.Reader
	deadline time.Time
}

func (dr *deadlineReader) Read(p []byte) (int, error) {
	if time.Now().After(dr.deadline) {
		return 0, fmt.Errorf("read timeout")
	}
	return dr.r.Read(p)
}

// jsonBodyReader 在 JSON 分支下为请求体增加大小限制与解析超时保护
func jsonBodyReader(ctx *beegocontext.Context) io.Reader {
	lr := io.LimitReader(ctx.Request.Body, defaultJSONMaxBytes)
	return &deadlineReader{r: lr, deadline: time.Now().Add(defaultParseTimeout)}
}

// GetTraceID 统一提取 trace_id：优先从中间件注入的数据取，其次从常见请求头降级
func GetTraceID(ctx *beegocontext.Context) string {
	if v := ctx.Input.GetData("trace_id"); v != nil {
		return fmt.Sprint(v)
	}
	if h := strings.TrimSpace(ctx.Input.Header("X-Trace-ID")); h != "" {
		return h
	}
	if h := strings.TrimSpace(ctx.Input.Header("Trace-Id")); h != "" {
		return h
	}
	return ""
}

// parseByContentType 按 Content-Type 选择解析函数，减少重复 if/else 分支
func parseByContentType[T any](ctx *beegocontext.Context,
	jsonParser func(io.Reader) (T, bool, string),
	formParser func(*beegocontext.Context) (T, bool, string),
) (T, bool, string) {
	ct := ctx.Input.Header("Content-Type")
	if IsJSONContentType(ct) {
		return jsonParser(jsonBodyReader(ctx))
	}
	return formParser(ctx)
}

// -------- CreateMatch helpers --------

// CreateMatchParsed 为解析后的创建对局入参（与控制器/服务层解耦）
// Stake 使用最小货币单位的整数，0 表示无注金对局
type CreateMatchParsed struct {
	Opponent string `json:"opponent"`
	Stake    int64  `json:"stake"`
}

func ParseCreateMatchFromJSON(r io.Reader) (CreateMatchParsed, bool, string) {
	var out CreateMatchParsed
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return CreateMatchParsed{}, false, "invalid json body"
	}
	return out, true, ""
}

func ParseCreateMatchFromForm(ctx *beegocontext.Context) (CreateMatchParsed, bool, string) {
	var out CreateMatchParsed
	out.Opponent = strings.TrimSpace(ctx.Input.Query("opponent"))
	if s := strings.TrimSpace(ctx.Input.Query("stake")); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return CreateMatchParsed{}, false, "stake must be integer"
		}
		out.Stake = v
	}
	return out, true, ""
}

func ValidateCreateMatch(in *CreateMatchParsed) (bool, string) {
	if !IsAccountFormat(in.Opponent) {
		return false, "opponent required"
	}
	if in.Stake < 0 {
		return false, "stake must be non-negative"
	}
	return true, ""
}

// ParseAndValidateCreateMatch 按 Content-Type 自动解析并做统一校验
func ParseAndValidateCreateMatch(ctx *beegocontext.Context) (CreateMatchParsed, bool, string) {
	out, ok, msg := parseByContentType(ctx, ParseCreateMatchFromJSON, ParseCreateMatchFromForm)
	if !ok {
		return CreateMatchParsed{}, false, msg
	}
	if ok, msg := ValidateCreateMatch(&out); !ok {
		return CreateMatchParsed{}, false, msg
	}
	return out, true, ""
}

// -------- ReportResult helpers --------

type ReportResultParsed struct {
	MatchID   string `json:"match_id"`
	Winner    string `json:"winner"`
	Category  string `json:"category"` // normal | gammon | backgammon
	MoveCount int64  `json:"move_count"`
}

func ParseReportResultFromJSON(r io.Reader) (ReportResultParsed, bool, string) {
	var out ReportResultParsed
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return ReportResultParsed{}, false, "invalid request"
	}
	return out, true, ""
}

func ParseReportResultFromForm(ctx *beegocontext.Context) (ReportResultParsed, bool, string) {
	var out ReportResultParsed
	out.MatchID = strings.TrimSpace(ctx.Input.Query("match_id"))
	out.Winner = strings.TrimSpace(ctx.Input.Query("winner"))
	out.Category = strings.TrimSpace(ctx.Input.Query("category"))
	if s := strings.TrimSpace(ctx.Input.Query("move_count")); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return ReportResultParsed{}, false, "move_count must be integer"
		}
		out.MoveCount = v
	}
	return out, true, ""
}

func ValidateReportResult(in *ReportResultParsed) (bool, string) {
	if in.MatchID == "" || len(in.MatchID) > 64 {
		return false, "match_id required"
	}
	if !IsAccountFormat(in.Winner) {
		return false, "winner required"
	}
	if in.MoveCount < 0 {
		return false, "move_count must be non-negative"
	}
	if in.Category == "" {
		// 缺省按普通胜果处理
		in.Category = "normal"
	}
	switch in.Category {
	case "normal", "gammon", "backgammon":
	default:
		return false, "category must be normal|gammon|backgammon"
	}
	return true, ""
}

func ParseAndValidateReportResult(ctx *beegocontext.Context) (ReportResultParsed, bool, string) {
	out, ok, msg := parseByContentType(ctx, ParseReportResultFromJSON, ParseReportResultFromForm)
	if !ok {
		return ReportResultParsed{}, false, msg
	}
	if ok, msg := ValidateReportResult(&out); !ok {
		return ReportResultParsed{}, false, msg
	}
	return out, true, ""
}

// -------- ReportAbandonment helpers --------

type ReportAbandonParsed struct {
	MatchID   string `json:"match_id"`
	Abandoner string `json:"abandoner"`
}

func ParseReportAbandonFromJSON(r io.Reader) (ReportAbandonParsed, bool, string) {
	var out ReportAbandonParsed
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return ReportAbandonParsed{}, false, "invalid request"
	}
	return out, true, ""
}

func ParseReportAbandonFromForm(ctx *beegocontext.Context) (ReportAbandonParsed, bool, string) {
	var out ReportAbandonParsed
	out.MatchID = strings.TrimSpace(ctx.Input.Query("match_id"))
	out.Abandoner = strings.TrimSpace(ctx.Input.Query("abandoner"))
	return out, true, ""
}

func ParseAndValidateReportAbandon(ctx *beegocontext.Context) (ReportAbandonParsed, bool, string) {
	out, ok, msg := parseByContentType(ctx, ParseReportAbandonFromJSON, ParseReportAbandonFromForm)
	if !ok {
		return ReportAbandonParsed{}, false, msg
	}
	if out.MatchID == "" || len(out.MatchID) > 64 {
		return ReportAbandonParsed{}, false, "match_id required"
	}
	if !IsAccountFormat(out.Abandoner) {
		return ReportAbandonParsed{}, false, "abandoner required"
	}
	return out, true, ""
}

// -------- Deposit helpers --------

type DepositParsed struct {
	MatchID        string `json:"match_id"`
	Amount         int64  `json:"amount"`
	IdempotencyKey string `json:"idempotency_key"`
}

func ParseDepositFromJSON(r io.Reader) (DepositParsed, bool, string) {
	var out DepositParsed
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return DepositParsed{}, false, "invalid json body"
	}
	return out, true, ""
}

func ParseDepositFromForm(ctx *beegocontext.Context) (DepositParsed, bool, string) {
	var out DepositParsed
	out.MatchID = strings.TrimSpace(ctx.Input.Query("match_id"))
	if s := strings.TrimSpace(ctx.Input.Query("amount")); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return DepositParsed{}, false, "amount must be integer"
		}
		out.Amount = v
	}
	out.IdempotencyKey = strings.TrimSpace(ctx.Input.Query("idempotency_key"))
	return out, true, ""
}

func ValidateDeposit(in *DepositParsed) (bool, string) {
	if in.MatchID == "" || len(in.MatchID) > 64 {
		return false, "match_id required"
	}
	if in.Amount <= 0 {
		return false, "amount must be positive"
	}
	if in.IdempotencyKey == "" || len(in.IdempotencyKey) > 64 {
		return false, "idempotency_key required"
	}
	return true, ""
}

// ParseAndValidateDeposit 按 Content-Type 自动解析并校验
func ParseAndValidateDeposit(ctx *beegocontext.Context) (DepositParsed, bool, string) {
	out, ok, msg := parseByContentType(ctx, ParseDepositFromJSON, ParseDepositFromForm)
	if !ok {
		return DepositParsed{}, false, msg
	}
	if ok, msg := ValidateDeposit(&out); !ok {
		return DepositParsed{}, false, msg
	}
	return out, true, ""
}

// -------- CreateEscrow helpers --------

type CreateEscrowParsed struct {
	MatchID string `json:"match_id"`
	PlayerA string `json:"player_a"`
	PlayerB string `json:"player_b"`
	Stake   int64  `json:"stake"`
}

func ParseCreateEscrowFromJSON(r io.Reader) (CreateEscrowParsed, bool, string) {
	var out CreateEscrowParsed
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return CreateEscrowParsed{}, false, "invalid json body"
	}
	return out, true, ""
}

func ParseCreateEscrowFromForm(ctx *beegocontext.Context) (CreateEscrowParsed, bool, string) {
	var out CreateEscrowParsed
	out.MatchID = strings.TrimSpace(ctx.Input.Query("match_id"))
	out.PlayerA = strings.TrimSpace(ctx.Input.Query("player_a"))
	out.PlayerB = strings.TrimSpace(ctx.Input.Query("player_b"))
	if s := strings.TrimSpace(ctx.Input.Query("stake")); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return CreateEscrowParsed{}, false, "stake must be integer"
		}
		out.Stake = v
	}
	return out, true, ""
}

func ValidateCreateEscrow(in *CreateEscrowParsed) (bool, string) {
	if in.MatchID == "" || len(in.MatchID) > 64 {
		return false, "match_id required"
	}
	if !IsAccountFormat(in.PlayerA) || !IsAccountFormat(in.PlayerB) {
		return false, "player_a/player_b required"
	}
	if in.Stake <= 0 {
		return false, "stake must be positive"
	}
	return true, ""
}

func ParseAndValidateCreateEscrow(ctx *beegocontext.Context) (CreateEscrowParsed, bool, string) {
	out, ok, msg := parseByContentType(ctx, ParseCreateEscrowFromJSON, ParseCreateEscrowFromForm)
	if !ok {
		return CreateEscrowParsed{}, false, msg
	}
	if ok, msg := ValidateCreateEscrow(&out); !ok {
		return CreateEscrowParsed{}, false, msg
	}
	return out, true, ""
}

// -------- Settle helpers --------

type SettleParsed struct {
	MatchID    string `json:"match_id"`
	Winner     string `json:"winner"`
	Multiplier int    `json:"multiplier"`
}

func ParseSettleFromJSON(r io.Reader) (SettleParsed, bool, string) {
	var out SettleParsed
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return SettleParsed{}, false, "invalid json body"
	}
	return out, true, ""
}

func ParseSettleFromForm(ctx *beegocontext.Context) (SettleParsed, bool, string) {
	var out SettleParsed
	out.MatchID = strings.TrimSpace(ctx.Input.Query("match_id"))
	out.Winner = strings.TrimSpace(ctx.Input.Query("winner"))
	if s := strings.TrimSpace(ctx.Input.Query("multiplier")); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			out.Multiplier = n
		}
	}
	return out, true, ""
}

func ValidateSettle(in *SettleParsed) (bool, string) {
	if in.MatchID == "" || len(in.MatchID) > 64 {
		return false, "match_id required"
	}
	if !IsAccountFormat(in.Winner) {
		return false, "winner required"
	}
	if in.Multiplier == 0 {
		in.Multiplier = 1
	}
	if in.Multiplier < 1 || in.Multiplier > 3 {
		return false, "multiplier must be 1|2|3"
	}
	return true, ""
}

func ParseAndValidateSettle(ctx *beegocontext.Context) (SettleParsed, bool, string) {
	out, ok, msg := parseByContentType(ctx, ParseSettleFromJSON, ParseSettleFromForm)
	if !ok {
		return SettleParsed{}, false, msg
	}
	if ok, msg := ValidateSettle(&out); !ok {
		return SettleParsed{}, false, msg
	}
	return out, true, ""
}
