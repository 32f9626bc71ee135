package xreplay

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/hashicorp/go-multierror"

	xconf "github.com/xuperchain/xreplay/kernel/common/xconfig"
	"github.com/xuperchain/xreplay/kernel/common/xcontext"
	"github.com/xuperchain/xreplay/kernel/contract"
	"github.com/xuperchain/xreplay/kernel/contract/bridge"
	"github.com/xuperchain/xreplay/kernel/contract/protocols"
	"github.com/xuperchain/xreplay/kernel/contract/registry"
	"github.com/xuperchain/xreplay/kernel/contract/sandbox"
	"github.com/xuperchain/xreplay/kernel/engines"
	"github.com/xuperchain/xreplay/kernel/ledger"
	"github.com/xuperchain/xreplay/lib/logs"
	"github.com/xuperchain/xreplay/lib/timer"
	"github.com/xuperchain/xreplay/lib/utils"
)

// XReplayEngine 回放执行引擎，按序号顺序把事件应用到合约状态并记录回执
type XReplayEngine struct {
	envCfg *xconf.EnvConf
	engCfg *xconf.EngineConf
	log    logs.Logger

	registry *registry.Registry
	state    contract.CommittedState
	bridge   *bridge.XBridge
	receipts *ledger.CachedStore

	// 单写者，保护以下字段
	mu      sync.Mutex
	applied bool
	lastSeq uint64
	halted  error
	closed  bool
}

func NewXReplayEngine() engines.BCEngine {
	return &XReplayEngine{}
}

// 向工厂注册自己的创建方法
func init() {
	engines.Register(BCEngineName, NewXReplayEngine)
}

// EngineConvert 转换引擎句柄类型
func EngineConvert(engine engines.BCEngine) (*XReplayEngine, error) {
	if engine == nil {
		return nil, fmt.Errorf("transfer engine type failed because param is nil")
	}

	if v, ok := engine.(*XReplayEngine); ok {
		return v, nil
	}

	return nil, fmt.Errorf("transfer engine type failed by type assert")
}

// Init loads the engine config named by envCfg and opens the data dir
func (t *XReplayEngine) Init(envCfg *xconf.EnvConf) error {
	if envCfg == nil {
		return fmt.Errorf("init engine failed because env config is nil")
	}
	// 引擎配置缺省时使用默认配置，全部数据在内存中
	engCfg := xconf.GetDefEngineConf()
	if cfgFile := envCfg.GenConfFilePath(envCfg.EngineConf); utils.FileIsExist(cfgFile) {
		var err error
		if engCfg, err = xconf.LoadEngineConf(cfgFile); err != nil {
			return fmt.Errorf("init engine failed because load engine config failed.err:%v", err)
		}
	}

	// lua脚本路径相对配置目录
	scripts := make([]string, 0, len(engCfg.ProtocolScripts))
	for _, file := range engCfg.ProtocolScripts {
		if !filepath.IsAbs(file) {
			file = envCfg.GenConfFilePath(file)
		}
		scripts = append(scripts, file)
	}
	engCfg.ProtocolScripts = scripts

	dataDir := envCfg.GenDirAbsPath(envCfg.DataDir)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("init engine failed because create data dir failed.err:%v", err)
	}

	t.envCfg = envCfg
	return t.setup(engCfg, dataDir)
}

// NewEngine builds an engine without env config, an empty dataDir keeps
// everything in memory
func NewEngine(engCfg *xconf.EngineConf, dataDir string) (*XReplayEngine, error) {
	if engCfg == nil {
		engCfg = xconf.GetDefEngineConf()
	}
	if err := engCfg.Validate(); err != nil {
		return nil, err
	}
	t := &XReplayEngine{}
	if err := t.setup(engCfg, dataDir); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *XReplayEngine) setup(engCfg *xconf.EngineConf, dataDir string) error {
	log, err := logs.NewLogger("", moduleName)
	if err != nil {
		return fmt.Errorf("init engine failed because new logger failed.err:%v", err)
	}
	t.log = log
	t.engCfg = engCfg

	t.registry = registry.New()
	if err := protocols.RegisterBuiltins(t.registry); err != nil {
		return fmt.Errorf("init engine failed because register builtins failed.err:%v", err)
	}
	if err := protocols.LoadScripts(t.registry, engCfg.ProtocolScripts); err != nil {
		return fmt.Errorf("init engine failed because load protocol scripts failed.err:%v", err)
	}
	t.log.Trace("init protocol registry succ", "protocols", len(t.registry.List()))

	t.state, err = openState(engCfg, dataDir)
	if err != nil {
		return fmt.Errorf("init engine failed because open state failed.err:%v", err)
	}
	store, err := openReceiptStore(engCfg, dataDir)
	if err != nil {
		t.state.Close()
		return fmt.Errorf("init engine failed because open receipt store failed.err:%v", err)
	}
	t.receipts = ledger.NewCachedStore(store, engCfg.ReceiptStore, engCfg.ListCacheExpire)

	t.bridge, err = bridge.New(&bridge.XBridgeConfig{
		Registry:     t.registry,
		State:        t.state,
		MaxCallDepth: engCfg.MaxCallDepth,
		DenyList:     engCfg.StaticDenyList,
	})
	if err != nil {
		t.closeStores()
		return fmt.Errorf("init engine failed because new bridge failed.err:%v", err)
	}

	if err := t.loadProgress(); err != nil {
		t.closeStores()
		return fmt.Errorf("init engine failed because load progress failed.err:%v", err)
	}
	t.log.Trace("init engine succ", "stateEngine", engCfg.StateEngine,
		"receiptStore", engCfg.ReceiptStore, "lastSequence", t.lastSeq, "dataDir", dataDir)
	return nil
}

// loadProgress recovers the last applied sequence. Successful events bump
// the state bookkeeping key, failed ones only leave a receipt, so the
// larger of the two wins.
func (t *XReplayEngine) loadProgress() error {
	count, err := t.receipts.Count()
	if err != nil {
		return err
	}
	if count > 0 {
		t.applied = true
		if t.lastSeq, err = t.receipts.LastSequence(); err != nil {
			return err
		}
	}

	raw, err := t.state.Get(sandbox.MakeRawKey(contract.EngineBucket, contract.SequenceKey))
	if errors.Is(err, contract.ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	seq, err := strconv.ParseUint(string(raw), 10, 64)
	if err != nil {
		return fmt.Errorf("corrupted sequence key: %v", err)
	}
	if !t.applied || seq > t.lastSeq {
		t.lastSeq = seq
	}
	t.applied = true
	return nil
}

func (t *XReplayEngine) newOpCtx(ctx context.Context, logId string) (xcontext.XContext, error) {
	log, err := logs.NewLogger(logId, moduleName)
	if err != nil {
		return nil, err
	}
	return xcontext.CreateComOpCtxWithParent(ctx, log, timer.NewXTimer())
}

// Dispatch applies one event and persists its receipt. Events must arrive
// with strictly increasing sequence numbers.
func (t *XReplayEngine) Dispatch(event *contract.InboundEvent) (*contract.Receipt, error) {
	return t.DispatchContext(context.Background(), event)
}

// DispatchContext is Dispatch with a caller context. A context already done
// rejects the event before anything runs, an event once started always
// completes.
func (t *XReplayEngine) DispatchContext(ctx context.Context, event *contract.InboundEvent) (*contract.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if event == nil {
		return nil, fmt.Errorf("dispatch failed because event is nil")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, ErrClosed
	}
	if t.halted != nil {
		return nil, ErrHalted
	}
	if t.applied && event.Sequence <= t.lastSeq {
		return nil, fmt.Errorf("%w: got %d, last applied %d", ErrOutOfOrder, event.Sequence, t.lastSeq)
	}

	xctx, err := t.newOpCtx(ctx, event.EventID())
	if err != nil {
		return nil, err
	}
	xlog := xctx.GetLog()

	receipt := t.bridge.Dispatch(xctx, event)
	if receipt.Status == contract.StatusFatal {
		t.halted = fmt.Errorf("%w: event %s: %s", ErrHalted, receipt.EventID, receipt.Error)
		xlog.Error("fatal outcome, engine halted", "sequence", event.Sequence,
			"command", event.Command, "contract", receipt.ContractID, "err", receipt.Error)
		return receipt, t.halted
	}

	if err := t.receipts.Put(receipt); err != nil {
		// 状态已提交而回执丢失，无法继续保证一致
		t.halted = fmt.Errorf("%w: persist receipt %s: %v", ErrHalted, receipt.EventID, err)
		xlog.Error("persist receipt failed, engine halted", "sequence", event.Sequence, "err", err)
		return receipt, t.halted
	}
	t.applied = true
	t.lastSeq = event.Sequence

	if receipt.Status == contract.StatusCallError {
		xlog.Warn("event failed", "sequence", event.Sequence, "command", event.Command,
			"contract", receipt.ContractID, "function", receipt.Function, "err", receipt.Error)
	} else {
		xlog.Info("event applied", "sequence", event.Sequence, "command", event.Command,
			"contract", receipt.ContractID, "function", receipt.Function, "logs", len(receipt.Logs),
			"timer", xctx.GetTimer().Print())
	}
	return receipt, nil
}

// Halted returns the halt reason, nil while the engine is healthy
func (t *XReplayEngine) Halted() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.halted
}

// LastSequence is the sequence of the last applied event, ok is false
// before the first one
func (t *XReplayEngine) LastSequence() (uint64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastSeq, t.applied
}

func (t *XReplayEngine) closeStores() error {
	var result *multierror.Error
	if t.receipts != nil {
		if err := t.receipts.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close receipts: %v", err))
		}
	}
	if t.state != nil {
		if err := t.state.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close state: %v", err))
		}
	}
	return result.ErrorOrNil()
}

// Close releases the stores, safe to call more than once
func (t *XReplayEngine) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	return t.closeStores()
}

// Exit 退出引擎，需要幂等
func (t *XReplayEngine) Exit() {
	if err := t.Close(); err != nil && t.log != nil {
		t.log.Warn("close engine failed", "err", err)
	}
}
