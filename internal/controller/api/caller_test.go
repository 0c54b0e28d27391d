package api

import (
	"net/http/httptest"
	"testing"

	beegocontext "github.com/beego/beego/v2/server/web/context"
)

func newTestCtx(target string) *beegocontext.Context {
	ctx := beegocontext.NewContext()
	ctx.Reset(httptest.NewRecorder(), httptest.NewRequest("GET", target, nil))
	return ctx
}

// 服务认证注入的身份优先于其它来源
func TestCallerAccountPrefersServiceAccount(t *testing.T) {
	ctx := newTestCtx("/api/escrow?caller=mallory")
	ctx.Input.SetData("service_account", "game-service")
	ctx.Input.SetData("username", "alice")

	if got := callerAccount(ctx); got != "game-service" {
		t.Errorf("callerAccount = %q, want game-service", got)
	}
}

func TestCallerAccountUsesJWTUsername(t *testing.T) {
	ctx := newTestCtx("/api/match?caller=mallory")
	ctx.Input.SetData("username", "alice")

	if got := callerAccount(ctx); got != "alice" {
		t.Errorf("callerAccount = %q, want alice", got)
	}
}

// 严格模式下查询参数不能充当调用方身份，防止未认证请求伪造管理员
func TestCallerAccountRejectsQueryParamWithoutDemoMode(t *testing.T) {
	ctx := newTestCtx("/api/admin/escrow/cancel?caller=escrow-admin")

	if got := callerAccount(ctx); got != "" {
		t.Errorf("callerAccount = %q, want empty", got)
	}
}

// 演示模式认证放行后才允许查询参数兜底
func TestCallerAccountQueryParamInDemoMode(t *testing.T) {
	ctx := newTestCtx("/api/match?caller=alice")
	ctx.Input.SetData("demo_mode", true)

	if got := callerAccount(ctx); got != "alice" {
		t.Errorf("callerAccount = %q, want alice", got)
	}
}
