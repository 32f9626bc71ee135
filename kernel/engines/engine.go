package engines

import (
	xconf "github.com/xuperchain/xreplay/kernel/common/xconfig"
)

// 执行引擎只约束最基本接口，查询等个性化能力由具体引擎扩展，
// 使用方通过引擎提供的类型转换函数拿到具体类型

// BCEngine 回放执行引擎
type BCEngine interface {
	// 初始化引擎
	Init(*xconf.EnvConf) error
	// 退出引擎，需要幂等
	Exit()
}
