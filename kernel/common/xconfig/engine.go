package xconfig

import (
	"fmt"
	"time"

	"github.com/docker/go-units"
)

const (
	StateEngineMemory  = "memory"
	StateEngineLevelDB = "leveldb"
	StateEngineBadger  = "badger"

	ReceiptStoreMemory = "memory"
	ReceiptStoreKV     = "kv"
	ReceiptStoreSQLite = "sqlite"
)

// EngineConf replay engine config
type EngineConf struct {
	// 合约嵌套调用最大深度
	MaxCallDepth int `yaml:"maxCallDepth,omitempty"`
	// committed state backend: memory|leveldb|badger
	StateEngine string `yaml:"stateEngine,omitempty"`
	// read cache in front of the kv state, e.g. "32MB"
	StateCacheSize string `yaml:"stateCacheSize,omitempty"`
	// receipt backend: memory|kv|sqlite
	ReceiptStore string `yaml:"receiptStore,omitempty"`
	// number of receipts kept in the lru
	ReceiptCacheSize int `yaml:"receiptCacheSize,omitempty"`
	// receipt list query cache expiration
	ListCacheExpire time.Duration `yaml:"listCacheExpire,omitempty"`
	// lua protocol files, relative to conf dir
	ProtocolScripts []string `yaml:"protocolScripts,omitempty"`
	// extra function names blocked from external calls
	StaticDenyList []string `yaml:"staticDenyList,omitempty"`
}

func LoadEngineConf(cfgFile string) (*EngineConf, error) {
	cfg := GetDefEngineConf()
	if err := loadConf(cfgFile, cfg); err != nil {
		return nil, fmt.Errorf("load engine config failed.err:%v", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func GetDefEngineConf() *EngineConf {
	return &EngineConf{
		MaxCallDepth:     32,
		StateEngine:      StateEngineMemory,
		StateCacheSize:   "32MB",
		ReceiptStore:     ReceiptStoreMemory,
		ReceiptCacheSize: 1024,
		ListCacheExpire:  time.Minute,
	}
}

func (t *EngineConf) Validate() error {
	if t.MaxCallDepth <= 0 {
		return fmt.Errorf("engine config invalid.maxCallDepth:%d", t.MaxCallDepth)
	}
	switch t.StateEngine {
	case StateEngineMemory, StateEngineLevelDB, StateEngineBadger:
	default:
		return fmt.Errorf("engine config invalid.stateEngine:%s", t.StateEngine)
	}
	switch t.ReceiptStore {
	case ReceiptStoreMemory, ReceiptStoreKV, ReceiptStoreSQLite:
	default:
		return fmt.Errorf("engine config invalid.receiptStore:%s", t.ReceiptStore)
	}
	// 回执进度决定重启后从哪里续放，状态必须和回执一样持久
	if t.StateEngine == StateEngineMemory && t.ReceiptStore != ReceiptStoreMemory {
		return fmt.Errorf("engine config invalid.receiptStore:%s needs a persistent stateEngine", t.ReceiptStore)
	}
	if _, err := t.StateCacheBytes(); err != nil {
		return err
	}
	return nil
}

// StateCacheBytes parses StateCacheSize, e.g. "64MB"
func (t *EngineConf) StateCacheBytes() (int, error) {
	if t.StateCacheSize == "" {
		return 0, nil
	}
	size, err := units.RAMInBytes(t.StateCacheSize)
	if err != nil {
		return 0, fmt.Errorf("engine config invalid.stateCacheSize:%s err:%v", t.StateCacheSize, err)
	}
	return int(size), nil
}
