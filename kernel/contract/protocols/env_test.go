package protocols

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xuperchain/xreplay/kernel/common/xcontext"
	"github.com/xuperchain/xreplay/kernel/contract"
	"github.com/xuperchain/xreplay/kernel/contract/bridge"
	"github.com/xuperchain/xreplay/kernel/contract/registry"
	"github.com/xuperchain/xreplay/kernel/contract/sandbox"
	"github.com/xuperchain/xreplay/lib/logs"
	"github.com/xuperchain/xreplay/lib/timer"
)

const (
	deployer = "0xC2172a6315c1D7f6855768F843c420EbB36eDa97"
	receiver = "0xF99812028817Da95f5CF95fB29a2a7EAbfBCC27E"
	trusted  = "0x019824B229400345510A3a7EFcFB77fD6A78D8d0"

	genesisTime = int64(1700000000)
)

type env struct {
	t      *testing.T
	reg    *registry.Registry
	bridge *bridge.XBridge
	state  *sandbox.MemState
	seq    uint64
}

func newEnv(t *testing.T, extra ...contract.ProtocolDefinition) *env {
	reg := registry.New()
	require.NoError(t, RegisterBuiltins(reg))
	for _, def := range extra {
		require.NoError(t, reg.Register(def))
	}
	state := sandbox.NewMemState()
	b, err := bridge.New(&bridge.XBridgeConfig{Registry: reg, State: state})
	require.NoError(t, err)
	return &env{t: t, reg: reg, bridge: b, state: state}
}

func (e *env) xctx() xcontext.XContext {
	lg, _ := logs.NewLogger("", "protocols_test")
	ctx, err := xcontext.CreateComOpCtx(lg, timer.NewXTimer())
	require.NoError(e.t, err)
	return ctx
}

func (e *env) now() int64 {
	return genesisTime + int64(e.seq)*12
}

func (e *env) dispatch(event *contract.InboundEvent) *contract.Receipt {
	e.seq++
	event.Sequence = e.seq
	event.BlockNumber = e.seq
	event.BlockTimestamp = e.now()
	event.TxHash = "0x" + strconv.FormatUint(e.seq, 16)
	return e.bridge.Dispatch(e.xctx(), event)
}

func (e *env) deploy(from, protocol string, args map[string]interface{}) string {
	r := e.dispatch(&contract.InboundEvent{
		Command:         contract.CommandDeploy,
		From:            from,
		Protocol:        protocol,
		ConstructorArgs: args,
	})
	require.Equal(e.t, contract.StatusSuccess, r.Status, "deploy %s: %s", protocol, r.Error)
	return r.ContractID
}

func (e *env) call(from, id, fn string, args map[string]interface{}) *contract.Receipt {
	return e.dispatch(&contract.InboundEvent{
		Command:    contract.CommandCall,
		From:       from,
		ContractID: id,
		Function:   fn,
		Args:       args,
	})
}

func (e *env) mustCall(from, id, fn string, args map[string]interface{}) *contract.Receipt {
	r := e.call(from, id, fn, args)
	require.Equal(e.t, contract.StatusSuccess, r.Status, "%s: %s", fn, r.Error)
	return r
}

func (e *env) static(id, fn string, args map[string]interface{}) (string, error) {
	resp, err := e.bridge.StaticCall(e.xctx(), id, fn, args)
	if err != nil {
		return "", err
	}
	return string(resp.Body), nil
}

func (e *env) view(id, fn string, args map[string]interface{}) string {
	v, err := e.static(id, fn, args)
	require.NoError(e.t, err, fn)
	return v
}

func (e *env) balanceOf(token, account string) string {
	return e.view(token, "balanceOf", map[string]interface{}{"_1": account})
}

// digestOf hashes the committed state of one contract
func (e *env) digestOf(id string) string {
	d, err := sandbox.DigestPrefix(e.state, sandbox.BucketPrefix(id))
	require.NoError(e.t, err)
	return d
}

func openMintArgs(name, symbol string) map[string]interface{} {
	return map[string]interface{}{
		"name":         name,
		"symbol":       symbol,
		"maxSupply":    "21000000",
		"perMintLimit": "1000",
		"decimals":     18,
	}
}
