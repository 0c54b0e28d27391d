package middleware

import (
	"github.com/beego/beego/v2/server/web/context"
	"github.com/google/uuid"
)

// RequestIDFilter 为每个请求注入并回写追踪ID
// 优先沿用上游传入的 X-Trace-ID / X-Request-Id，都没有时生成新的 uuid
func RequestIDFilter(ctx *context.Context) {
	id := ctx.Input.Header("X-Trace-ID")
	if id == "" {
		id = ctx.Input.Header("X-Request-Id")
	}
	if id == "" {
		id = uuid.NewString()
	}
	ctx.Input.SetData("trace_id", id)
	ctx.Output.Header("X-Request-Id", id)
}
