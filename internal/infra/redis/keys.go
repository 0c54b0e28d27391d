package redis

// Redis Key 定义与构造器
// 统一管理业务使用的 Redis Key，避免散落的魔法字符串，便于统一维护与变更。

const (
	// PrefixDepositIdemResult：入金幂等"结果缓存"Key 的前缀。
	// 作用：缓存某个 idempotency key 对应的第一次成功结果（DepositOutput JSON），用于后续重复请求直接返回。
	PrefixDepositIdemResult = "escrow:idem:result:"
	// PrefixDepositIdemLock：入金幂等"进行中锁"Key 的前缀。
	// 作用：使用 SETNX + TTL 标记 idempotency key 正在处理，吸收瞬时重复请求，减轻数据库压力。
	PrefixDepositIdemLock = "escrow:idem:lock:"

	// PrefixEscrowSnapshot：托管快照缓存，用于 GET 接口快速查询
	PrefixEscrowSnapshot = "escrow:snapshot:"
	// PrefixMatchSnapshot：对局快照缓存
	PrefixMatchSnapshot = "match:snapshot:"
)

// IdemResultKey：构造幂等"结果缓存"的完整 Key。
// 形如：escrow:idem:result:{idempotency_key}
func IdemResultKey(k string) string { return PrefixDepositIdemResult + k }

// IdemLockKey：构造幂等"进行中锁"的完整 Key。
// 形如：escrow:idem:lock:{idempotency_key}
func IdemLockKey(k string) string { return PrefixDepositIdemLock + k }

// EscrowSnapshotKey：构造托管快照缓存 Key。形如：escrow:snapshot:{match_id}
func EscrowSnapshotKey(matchID string) string { return PrefixEscrowSnapshot + matchID }

// MatchSnapshotKey：构造对局快照缓存 Key。形如：match:snapshot:{match_id}
func MatchSnapshotKey(matchID string) string { return PrefixMatchSnapshot + matchID }
