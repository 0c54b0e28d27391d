package middleware

import (
	"net/http/httptest"
	"testing"

	"bg-server/internal/config"

	beegocontext "github.com/beego/beego/v2/server/web/context"
)

// 演示模式下从查询参数取玩家身份并打上 demo_mode 标记
func TestPlayerAuthFilterDemoMode(t *testing.T) {
	cfg := &config.Config{}
	cfg.Auth.DemoMode = true
	config.Set(cfg)
	defer config.Set(nil)

	ctx := beegocontext.NewContext()
	ctx.Reset(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/match?caller=alice", nil))

	PlayerAuthFilter(ctx)

	if got := ctx.Input.GetData("username"); got != "alice" {
		t.Errorf("username = %v, want alice", got)
	}
	if v, ok := ctx.Input.GetData("demo_mode").(bool); !ok || !v {
		t.Error("demo_mode flag not set")
	}
}

// 配置未加载时按严格模式处理：缺少 Token 必须 401，查询参数不放行
func TestPlayerAuthFilterStrictRejectsMissingToken(t *testing.T) {
	config.Set(nil)

	rec := httptest.NewRecorder()
	ctx := beegocontext.NewContext()
	ctx.Reset(rec, httptest.NewRequest("GET", "/api/match?caller=alice", nil))

	PlayerAuthFilter(ctx)

	if rec.Code != 401 {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if ctx.Input.GetData("username") != nil {
		t.Error("username must not be set without a valid token")
	}
}

// 严格模式（演示关闭）同样拒绝无 Token 请求
func TestPlayerAuthFilterStrictWithDemoDisabled(t *testing.T) {
	config.Set(&config.Config{})
	defer config.Set(nil)

	rec := httptest.NewRecorder()
	ctx := beegocontext.NewContext()
	ctx.Reset(rec, httptest.NewRequest("GET", "/api/match", nil))

	PlayerAuthFilter(ctx)

	if rec.Code != 401 {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}
