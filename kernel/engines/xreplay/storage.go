package xreplay

import (
	"path/filepath"

	"github.com/pkg/errors"

	xconf "github.com/xuperchain/xreplay/kernel/common/xconfig"
	"github.com/xuperchain/xreplay/kernel/contract"
	"github.com/xuperchain/xreplay/kernel/contract/sandbox"
	"github.com/xuperchain/xreplay/kernel/ledger"
	"github.com/xuperchain/xreplay/lib/storage/kvdb"
	_ "github.com/xuperchain/xreplay/lib/storage/kvdb/badger"
	_ "github.com/xuperchain/xreplay/lib/storage/kvdb/leveldb"
)

// 数据目录布局
const (
	stateDir     = "state"
	receiptsDir  = "receipts"
	receiptsFile = "receipts.db"
)

// dataPath returns "" for an empty dataDir so that every backend opens in
// memory
func dataPath(dataDir, name string) string {
	if dataDir == "" {
		return ""
	}
	return filepath.Join(dataDir, name)
}

func openKV(engine, path string) (kvdb.Database, error) {
	return kvdb.CreateKVInstance(&kvdb.KVParameter{
		DBPath:                path,
		KVEngineType:          engine,
		MemCacheSize:          128,
		FileHandlersCacheSize: 512,
	})
}

func openState(cfg *xconf.EngineConf, dataDir string) (contract.CommittedState, error) {
	if cfg.StateEngine == xconf.StateEngineMemory {
		return sandbox.NewMemState(), nil
	}

	cacheBytes, err := cfg.StateCacheBytes()
	if err != nil {
		return nil, err
	}
	db, err := openKV(cfg.StateEngine, dataPath(dataDir, stateDir))
	if err != nil {
		return nil, errors.Wrap(err, "open state db failed")
	}
	return sandbox.NewKVState(db, cacheBytes), nil
}

func openReceiptStore(cfg *xconf.EngineConf, dataDir string) (ledger.ReceiptStore, error) {
	switch cfg.ReceiptStore {
	case xconf.ReceiptStoreMemory:
		return ledger.NewMemReceiptStore(), nil
	case xconf.ReceiptStoreKV:
		// 跟随状态库引擎
		db, err := openKV(cfg.StateEngine, dataPath(dataDir, receiptsDir))
		if err != nil {
			return nil, errors.Wrap(err, "open receipt db failed")
		}
		return ledger.NewKVReceiptStore(db, cfg.ReceiptCacheSize)
	case xconf.ReceiptStoreSQLite:
		return ledger.OpenSQLReceiptStore(dataPath(dataDir, receiptsFile))
	}
	return nil, errors.Errorf("unknown receipt store %s", cfg.ReceiptStore)
}
