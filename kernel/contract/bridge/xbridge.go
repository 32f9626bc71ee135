package bridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"strconv"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/xuperchain/xreplay/kernel/common/xaddress"
	"github.com/xuperchain/xreplay/kernel/common/xcontext"
	"github.com/xuperchain/xreplay/kernel/contract"
	"github.com/xuperchain/xreplay/kernel/contract/registry"
	"github.com/xuperchain/xreplay/kernel/contract/sandbox"
	"github.com/xuperchain/xreplay/lib/logs"
	"github.com/xuperchain/xreplay/lib/metrics"
)

const (
	DefaultMaxCallDepth = 32

	// keys written next to SequenceKey in EngineBucket
	BlockNumberKey    = "blockNumber"
	BlockTimestampKey = "blockTimestamp"
)

// XBridge 合约调用分发器，负责解析、鉴权、执行与结算
type XBridge struct {
	registry *registry.Registry
	state    contract.CommittedState
	guard    *Guard
	maxDepth int
}

type XBridgeConfig struct {
	Registry     *registry.Registry
	State        contract.CommittedState
	MaxCallDepth int
	DenyList     []string
}

// New instances a new XBridge
func New(cfg *XBridgeConfig) (*XBridge, error) {
	if cfg == nil || cfg.Registry == nil || cfg.State == nil {
		return nil, fmt.Errorf("new xbridge failed because some param are missing")
	}
	maxDepth := cfg.MaxCallDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxCallDepth
	}
	return &XBridge{
		registry: cfg.Registry,
		state:    cfg.State,
		guard:    NewGuard(cfg.DenyList),
		maxDepth: maxDepth,
	}, nil
}

func (b *XBridge) Guard() *Guard {
	return b.guard
}

// Outcome is everything the receipt is built from
type Outcome struct {
	ContractID string
	Function   string
	Response   *contract.Response
	Logs       []*contract.Log
	Err        error
}

// Dispatch applies one event and returns its receipt. The event's writes
// reach committed state only when the receipt status is success.
func (b *XBridge) Dispatch(xctx xcontext.XContext, event *contract.InboundEvent) *contract.Receipt {
	begin := time.Now()
	exec := b.newExecution(xctx, sandbox.NewStore(b.state), false)
	exec.facts = factsOfEvent(event)

	var out *Outcome
	switch event.Command {
	case contract.CommandDeploy:
		out = exec.deploy(event)
	case contract.CommandCall:
		out = exec.callEvent(event)
	default:
		out = &Outcome{Err: contract.CallErrorf("unknown command %q", event.Command)}
	}
	xctx.GetTimer().Mark("Settling")

	receipt := EmitReceipt(event, out)
	metrics.DispatchCounter.WithLabelValues(string(event.Command), string(receipt.Status)).Inc()
	metrics.DispatchHistogram.WithLabelValues(string(event.Command)).Observe(time.Since(begin).Seconds())
	if exec.maxDepth > 0 {
		metrics.CallDepthHistogram.Observe(float64(exec.maxDepth))
	}
	return receipt
}

// StaticCall runs a read-only function over a committed snapshot. Nothing
// it does is ever committed.
func (b *XBridge) StaticCall(xctx xcontext.XContext, contractID, function string,
	args map[string]interface{}) (resp *contract.Response, err error) {
	defer func() {
		metrics.StaticCallCounter.WithLabelValues(string(contract.StatusOf(err))).Inc()
	}()

	snap, err := b.state.Snapshot()
	if err != nil {
		return nil, contract.AsFatal(pkgerrors.Wrap(err, "open state snapshot"))
	}
	defer snap.Release()

	exec := b.newExecution(xctx, sandbox.NewReadOnlyStore(snap), true)
	facts, err := readStaticFacts(snap)
	if err != nil {
		return nil, err
	}
	exec.facts = facts

	id, err := xaddress.Normalize(contractID)
	if err != nil {
		return nil, contract.ContractNotFoundf("contract not found: %s", contractID)
	}
	contractID = id
	def, err := exec.resolveInstance(nil, contractID)
	if err != nil {
		return nil, err
	}
	xctx.GetTimer().Mark("Resolving")

	spec, callArgs, err := b.guard.Authorize(def, function, PathStatic, args)
	if err != nil {
		return nil, err
	}
	xctx.GetTimer().Mark("Authorizing")

	root, err := exec.store.OpenReadOnlyFrame(nil)
	if err != nil {
		return nil, contract.AsFatal(err)
	}
	resp, err = exec.invoke(root, contractID, spec, callArgs, exec.facts.initiator)
	xctx.GetTimer().Mark("Executing")
	if derr := root.Discard(); derr != nil && err == nil {
		err = exec.markFatal(contract.AsFatal(derr))
	}
	if exec.fatal != nil {
		return nil, exec.fatal
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// facts 单次执行内不变的环境数据
type facts struct {
	initiator      string
	sequence       uint64
	blockNumber    uint64
	blockTimestamp int64
}

func factsOfEvent(event *contract.InboundEvent) facts {
	from, err := xaddress.Normalize(event.From)
	if err != nil {
		from = event.From
	}
	return facts{
		initiator:      from,
		sequence:       event.Sequence,
		blockNumber:    event.BlockNumber,
		blockTimestamp: event.BlockTimestamp,
	}
}

// readStaticFacts gives static calls the context of the last applied event
func readStaticFacts(reader contract.StateReader) (facts, error) {
	f := facts{initiator: xaddress.ZeroAddress}
	read := func(key string) (uint64, error) {
		v, err := reader.Get(sandbox.MakeRawKey(contract.EngineBucket, key))
		if errors.Is(err, contract.ErrKeyNotFound) {
			return 0, nil
		}
		if err != nil {
			return 0, contract.AsFatal(err)
		}
		n, err := strconv.ParseUint(string(v), 10, 64)
		if err != nil {
			return 0, contract.Fatalf("corrupted engine key %s: %v", key, err)
		}
		return n, nil
	}

	var err error
	if f.sequence, err = read(contract.SequenceKey); err != nil {
		return f, err
	}
	if f.blockNumber, err = read(BlockNumberKey); err != nil {
		return f, err
	}
	ts, err := read(BlockTimestampKey)
	if err != nil {
		return f, err
	}
	f.blockTimestamp = int64(ts)
	return f, nil
}

// callFrame is one entry of the explicit call stack
type callFrame struct {
	contractID string
	function   string
	frame      *sandbox.Frame
	depth      int
}

// execution is the state of one Dispatch or StaticCall
type execution struct {
	bridge   *XBridge
	xctx     xcontext.XContext
	log      logs.Logger
	store    *sandbox.Store
	static   bool
	facts    facts
	stack    []*callFrame
	maxDepth int
	// first fatal error, a caller can never swallow it
	fatal error
}

func (b *XBridge) newExecution(xctx xcontext.XContext, store *sandbox.Store, static bool) *execution {
	return &execution{
		bridge: b,
		xctx:   xctx,
		log:    xctx.GetLog(),
		store:  store,
		static: static,
	}
}

func (e *execution) markFatal(err error) error {
	if contract.IsFatal(err) && e.fatal == nil {
		e.fatal = err
		e.log.Error("fatal error in execution", "err", err, "stack", e.stackString())
	}
	return err
}

func (e *execution) stackString() string {
	s := ""
	for i, cf := range e.stack {
		if i > 0 {
			s += " > "
		}
		s += cf.contractID + "." + cf.function
	}
	return s
}

// resolveInstance loads the instance through frame, or committed state
// when frame is nil, and resolves its protocol
func (e *execution) resolveInstance(frame *sandbox.Frame, contractID string) (contract.ProtocolDefinition, error) {
	var (
		raw []byte
		err error
	)
	if frame != nil {
		raw, err = frame.Get(contract.ContractsBucket, contractID)
		if errors.Is(err, sandbox.ErrNotFound) {
			err = contract.ErrKeyNotFound
		}
	} else {
		raw, err = e.store.Reader().Get(sandbox.MakeRawKey(contract.ContractsBucket, contractID))
	}
	if errors.Is(err, contract.ErrKeyNotFound) {
		return contract.ProtocolDefinition{}, contract.ContractNotFoundf("contract not found: %s", contractID)
	}
	if err != nil {
		return contract.ProtocolDefinition{}, e.markFatal(contract.AsFatal(err))
	}

	inst := new(contract.Instance)
	if err := json.Unmarshal(raw, inst); err != nil {
		return contract.ProtocolDefinition{}, e.markFatal(contract.Fatalf("corrupted instance %s: %v", contractID, err))
	}
	def, err := e.bridge.registry.Resolve(inst.Protocol, inst.Version)
	if err != nil {
		return contract.ProtocolDefinition{}, err
	}
	return def, nil
}

func (e *execution) deploy(event *contract.InboundEvent) *Outcome {
	out := &Outcome{Function: contract.ConstructorName}
	from, err := xaddress.Normalize(event.From)
	if err != nil {
		out.Err = contract.CallErrorf("invalid sender address %q", event.From)
		return out
	}
	contractID := xaddress.DeriveContractID(from, event.Sequence, event.TxHash)
	out.ContractID = contractID
	e.log = e.log.With("contract", contractID)

	def, err := e.bridge.registry.Resolve(event.Protocol, event.Version)
	if err != nil {
		out.Err = err
		return out
	}
	_, err = e.store.Reader().Get(sandbox.MakeRawKey(contract.ContractsBucket, contractID))
	if err == nil {
		out.Err = contract.CallErrorf("contract already exists: %s", contractID)
		return out
	}
	if !errors.Is(err, contract.ErrKeyNotFound) {
		out.Err = e.markFatal(contract.AsFatal(err))
		return out
	}
	e.xctx.GetTimer().Mark("Resolving")

	args, err := contract.ValidateArgs(def.Constructor.Params, event.ConstructorArgs)
	if err != nil {
		out.Err = err
		return out
	}
	e.xctx.GetTimer().Mark("Authorizing")

	root, err := e.store.OpenFrame(nil)
	if err != nil {
		out.Err = e.markFatal(contract.AsFatal(err))
		return out
	}
	inst := &contract.Instance{
		ContractID: contractID,
		Protocol:   def.Name,
		Version:    def.Version,
		Creator:    from,
		CreatedAt:  event.Sequence,
		TxHash:     event.TxHash,
	}
	instBuf, err := json.Marshal(inst)
	if err == nil {
		err = root.Put(contract.ContractsBucket, contractID, instBuf)
	}
	if err != nil {
		out.Err = e.markFatal(contract.AsFatal(err))
		root.Discard()
		return out
	}

	var resp *contract.Response
	if ctor := def.Constructor; ctor.Handler != nil {
		ctor.Name = contract.ConstructorName
		resp, err = e.invoke(root, contractID, ctor, args, from)
	}
	e.xctx.GetTimer().Mark("Executing")
	if err == nil {
		if resp == nil || len(resp.Body) == 0 {
			resp = contract.OKString(contractID)
		}
	}
	return e.settle(root, event, out, resp, err)
}

func (e *execution) callEvent(event *contract.InboundEvent) *Outcome {
	out := &Outcome{Function: event.Function}
	from, err := xaddress.Normalize(event.From)
	if err != nil {
		out.Err = contract.CallErrorf("invalid sender address %q", event.From)
		return out
	}
	contractID, err := xaddress.Normalize(event.ContractID)
	if err != nil {
		out.ContractID = event.ContractID
		out.Err = contract.ContractNotFoundf("contract not found: %s", event.ContractID)
		return out
	}
	out.ContractID = contractID
	e.log = e.log.With("contract", contractID)

	def, err := e.resolveInstance(nil, contractID)
	if err != nil {
		out.Err = err
		return out
	}
	e.xctx.GetTimer().Mark("Resolving")

	spec, args, err := e.bridge.guard.Authorize(def, event.Function, PathCall, event.Args)
	if err != nil {
		out.Err = err
		return out
	}
	e.xctx.GetTimer().Mark("Authorizing")

	root, err := e.store.OpenFrame(nil)
	if err != nil {
		out.Err = e.markFatal(contract.AsFatal(err))
		return out
	}
	resp, err := e.invoke(root, contractID, spec, args, from)
	e.xctx.GetTimer().Mark("Executing")
	return e.settle(root, event, out, resp, err)
}

// settle commits the root frame on success and discards it otherwise
func (e *execution) settle(root *sandbox.Frame, event *contract.InboundEvent, out *Outcome,
	resp *contract.Response, err error) *Outcome {
	if err == nil && e.fatal == nil {
		err = e.writeBookkeeping(root, event)
	}
	if err == nil && e.fatal == nil {
		emitted := root.Logs()
		if cerr := root.Commit(); cerr != nil {
			out.Err = e.markFatal(contract.AsFatal(pkgerrors.Wrap(cerr, "commit root frame")))
			return out
		}
		out.Response = resp
		out.Logs = emitted
		return out
	}

	if derr := root.Discard(); derr != nil {
		e.markFatal(contract.AsFatal(pkgerrors.Wrap(derr, "discard root frame")))
	}
	if e.fatal != nil {
		out.Err = e.fatal
	} else {
		out.Err = err
	}
	return out
}

func (e *execution) writeBookkeeping(root *sandbox.Frame, event *contract.InboundEvent) error {
	kvs := [][2]string{
		{contract.SequenceKey, strconv.FormatUint(event.Sequence, 10)},
		{BlockNumberKey, strconv.FormatUint(event.BlockNumber, 10)},
		{BlockTimestampKey, strconv.FormatInt(event.BlockTimestamp, 10)},
	}
	for _, kv := range kvs {
		if err := root.Put(contract.EngineBucket, kv[0], []byte(kv[1])); err != nil {
			return e.markFatal(contract.AsFatal(err))
		}
	}
	return nil
}

// invoke runs one function body in frame. The frame is resolved by the
// caller of invoke.
func (e *execution) invoke(frame *sandbox.Frame, contractID string, spec contract.FunctionSpec,
	args *contract.Args, caller string) (resp *contract.Response, err error) {
	cf := &callFrame{
		contractID: contractID,
		function:   spec.Name,
		frame:      frame,
		depth:      len(e.stack) + 1,
	}
	e.stack = append(e.stack, cf)
	if cf.depth > e.maxDepth {
		e.maxDepth = cf.depth
	}
	defer func() {
		e.stack = e.stack[:len(e.stack)-1]
	}()

	kctx := &kcontextImpl{
		exec:       e,
		frame:      frame,
		contractID: contractID,
		function:   spec.Name,
		caller:     caller,
		args:       args,
		logger:     e.log.With("function", spec.Name),
	}

	defer func() {
		if r := recover(); r != nil {
			resp = nil
			err = e.markFatal(contract.Fatalf("panic in %s.%s: %v", contractID, spec.Name, r))
			e.log.Error("recovered contract panic", "contract", contractID,
				"function", spec.Name, "panic", r, "trace", string(debug.Stack()))
		}
	}()

	resp, err = spec.Handler(kctx)
	if err != nil {
		return nil, e.markFatal(err)
	}
	if resp == nil {
		resp = contract.OK(nil)
	}
	if resp.HasError() {
		return nil, contract.CallErrorf("%s", resp.Message)
	}
	return resp, nil
}

// call handles a contract to contract call from the top of the stack
func (e *execution) call(parent *sandbox.Frame, caller, contractID, function string,
	rawArgs map[string]interface{}) (*contract.Response, error) {
	if e.fatal != nil {
		return nil, e.fatal
	}
	if len(e.stack) >= e.bridge.maxDepth {
		return nil, contract.CallErrorf("call depth exceeded")
	}
	id, err := xaddress.Normalize(contractID)
	if err != nil {
		return nil, contract.ContractNotFoundf("contract not found: %s", contractID)
	}

	def, err := e.resolveInstance(parent, id)
	if err != nil {
		return nil, err
	}
	path := PathNested
	if e.static || parent.IsReadOnly() {
		path = PathStatic
	}
	spec, args, err := e.bridge.guard.Authorize(def, function, path, rawArgs)
	if err != nil {
		return nil, err
	}

	child, err := e.store.OpenFrame(parent)
	if err != nil {
		return nil, e.markFatal(contract.AsFatal(err))
	}
	resp, err := e.invoke(child, id, spec, args, caller)
	if err != nil {
		if derr := child.Discard(); derr != nil {
			e.markFatal(contract.AsFatal(derr))
		}
		return nil, err
	}
	if cerr := child.Commit(); cerr != nil {
		return nil, e.markFatal(contract.AsFatal(cerr))
	}
	return resp, nil
}
