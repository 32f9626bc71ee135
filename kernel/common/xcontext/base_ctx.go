// 定义公共上下文结构，事件派发和静态调用都带着它走
package xcontext

import (
	"context"

	"github.com/xuperchain/xreplay/lib/logs"
	"github.com/xuperchain/xreplay/lib/timer"
)

type XContext interface {
	context.Context
	GetLog() logs.Logger
	GetTimer() *timer.XTimer
}

// BaseCtx 取消和截止时间由上层context决定，自身只携带日志和计时器
type BaseCtx struct {
	context.Context
	XLog  logs.Logger
	Timer *timer.XTimer
}

func (t *BaseCtx) GetLog() logs.Logger {
	return t.XLog
}

func (t *BaseCtx) GetTimer() *timer.XTimer {
	return t.Timer
}
