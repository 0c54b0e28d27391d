package api

import (
	"strings"

	beegocontext "github.com/beego/beego/v2/server/web/context"
)

// callerAccount 提取当前请求的调用方账户
// 优先级：服务认证注入的 service_account > JWT 注入的 username
// 查询参数 caller 仅在演示模式认证放行后才作为兜底，严格模式下不可伪造
func callerAccount(ctx *beegocontext.Context) string {
	if v := ctx.Input.GetData("service_account"); v != nil {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if v := ctx.Input.GetData("username"); v != nil {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if v, ok := ctx.Input.GetData("demo_mode").(bool); ok && v {
		return strings.TrimSpace(ctx.Input.Query("caller"))
	}
	return ""
}
