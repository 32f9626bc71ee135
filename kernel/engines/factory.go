package engines

import (
	"fmt"
	"sort"
	"sync"

	xconf "github.com/xuperchain/xreplay/kernel/common/xconfig"
	"github.com/xuperchain/xreplay/lib/logs"
)

// 创建engine实例方法
type NewBCEngineFunc func() BCEngine

var (
	engineMu sync.RWMutex
	engines  = make(map[string]NewBCEngineFunc)
)

func Register(name string, f NewBCEngineFunc) {
	engineMu.Lock()
	defer engineMu.Unlock()

	if f == nil {
		panic("engines: Register new func is nil")
	}
	if _, dup := engines[name]; dup {
		panic("engines: Register called twice for func " + name)
	}
	engines[name] = f
}

func Engines() []string {
	engineMu.RLock()
	defer engineMu.RUnlock()
	list := make([]string, 0, len(engines))
	for name := range engines {
		list = append(list, name)
	}
	sort.Strings(list)
	return list
}

func newBCEngine(name string) BCEngine {
	engineMu.RLock()
	defer engineMu.RUnlock()

	if f, ok := engines[name]; ok {
		return f()
	}

	return nil
}

// 采用工厂模式，引擎注册通过init实现，由应用方选择具体要使用的引擎
func CreateBCEngine(egName string, envCfg *xconf.EnvConf) (BCEngine, error) {
	// 检查参数
	if egName == "" || envCfg == nil {
		return nil, fmt.Errorf("create bc engine failed because some param unset")
	}

	// 初始化日志实例，日志初始化操作是幂等的
	err := logs.InitLog(envCfg.GenConfFilePath(envCfg.LogConf), envCfg.GenDirAbsPath(envCfg.LogDir))
	if err != nil {
		return nil, fmt.Errorf("create bc engine failed because init log failed.err:%v", err)
	}

	engine := newBCEngine(egName)
	if engine == nil {
		return nil, fmt.Errorf("create bc engine failed because engine not exist. name:%s", egName)
	}

	err = engine.Init(envCfg)
	if err != nil {
		return nil, fmt.Errorf("init engine error: %v", err)
	}

	return engine, nil
}
