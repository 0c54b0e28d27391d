package api

import (
	"net/http/httptest"
	"testing"

	"bg-server/internal/service"

	beego "github.com/beego/beego/v2/server/web"
	beegocontext "github.com/beego/beego/v2/server/web/context"
)

// 业务错误到 HTTP 状态码的映射：越权类（含未入金方领取超时退款）一律 403
func TestWriteEscrowErrorStatusCodes(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"no_deposit", service.ErrNoDeposit, 403},
		{"not_a_party", service.ErrNotAParty, 403},
		{"unauthorized", service.ErrUnauthorized, 403},
		{"already_deposited", service.ErrAlreadyDeposited, 409},
		{"not_found", service.ErrNotFound, 404},
		{"self_play", service.ErrSelfPlay, 400},
	}
	for _, c := range cases {
		rec := httptest.NewRecorder()
		ctx := beegocontext.NewContext()
		ctx.Reset(rec, httptest.NewRequest("POST", "/api/escrow/claim-timeout", nil))
		ctrl := &beego.Controller{}
		ctrl.Init(ctx, "EscrowController", c.name, nil)

		writeEscrowError(ctrl, c.err, "trace-test")

		if rec.Code != c.want {
			t.Errorf("%s: status = %d, want %d", c.name, rec.Code, c.want)
		}
	}
}
