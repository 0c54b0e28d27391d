package service

import "testing"

// 控制器调用到的方法必须全部包含在服务接口内，缺少任一方法无法编译
func TestServiceMethodSets(t *testing.T) {
	var ms MatchService = NewMatchService()
	if ms == nil {
		t.Fatal("NewMatchService returned nil")
	}
	_ = MatchService.GetConfig
	_ = MatchService.GetMatch
	_ = MatchService.GetPlayerStats
	_ = MatchService.ListPlayerMatches
	_ = MatchService.GetGlobalStats

	var es EscrowService = NewEscrowService()
	if es == nil {
		t.Fatal("NewEscrowService returned nil")
	}
	_ = EscrowService.GetConfig
	_ = EscrowService.GetEscrow
	_ = EscrowService.GetSettlementDetail
	_ = EscrowService.GetGlobalStats
}
