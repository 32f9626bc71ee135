package xcontext

import (
	"context"
	"fmt"

	"github.com/xuperchain/xreplay/lib/logs"
	"github.com/xuperchain/xreplay/lib/timer"
)

// 通用操作级上下文，一次事件派发或静态调用使用一个
type ComOpCtx struct {
	BaseCtx
}

func CreateComOpCtx(xlog logs.Logger, tmr *timer.XTimer) (*ComOpCtx, error) {
	return CreateComOpCtxWithParent(context.Background(), xlog, tmr)
}

// CreateComOpCtxWithParent derives an operate context that is cancelled
// together with parent
func CreateComOpCtxWithParent(parent context.Context, xlog logs.Logger, tmr *timer.XTimer) (*ComOpCtx, error) {
	if parent == nil || xlog == nil || tmr == nil {
		return nil, fmt.Errorf("create operate context failed because some param are missing")
	}

	ctx := new(ComOpCtx)
	ctx.Context = parent
	ctx.XLog = xlog
	ctx.Timer = tmr

	return ctx, nil
}

func (t *ComOpCtx) IsVaild() bool {
	if t == nil || t.Context == nil || t.XLog == nil || t.Timer == nil {
		return false
	}

	return true
}
