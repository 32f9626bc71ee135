package luascript

import (
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xuperchain/xreplay/kernel/common/xcontext"
	"github.com/xuperchain/xreplay/kernel/contract"
	"github.com/xuperchain/xreplay/kernel/contract/bridge"
	"github.com/xuperchain/xreplay/kernel/contract/registry"
	"github.com/xuperchain/xreplay/kernel/contract/sandbox"
	"github.com/xuperchain/xreplay/lib/logs"
	"github.com/xuperchain/xreplay/lib/timer"
)

const sender = "0x00000000000000000000000000000000000000aa"

type scriptEnv struct {
	t      *testing.T
	bridge *bridge.XBridge
	state  *sandbox.MemState
	seq    uint64
}

func newScriptEnv(t *testing.T) *scriptEnv {
	return loadScriptEnv(t, "testdata/counter.lua")
}

func loadScriptEnv(t *testing.T, files ...string) *scriptEnv {
	reg := registry.New()
	for _, file := range files {
		def, err := LoadFile(file)
		require.NoError(t, err)
		require.NoError(t, reg.Register(def))
	}
	state := sandbox.NewMemState()
	b, err := bridge.New(&bridge.XBridgeConfig{Registry: reg, State: state})
	require.NoError(t, err)
	return &scriptEnv{t: t, bridge: b, state: state}
}

func (e *scriptEnv) xctx() xcontext.XContext {
	lg, _ := logs.NewLogger("", "luascript_test")
	ctx, _ := xcontext.CreateComOpCtx(lg, timer.NewXTimer())
	return ctx
}

func (e *scriptEnv) dispatch(event *contract.InboundEvent) *contract.Receipt {
	e.seq++
	event.Sequence = e.seq
	event.BlockNumber = 1000 + e.seq
	event.TxHash = "0xlua" + strconv.FormatUint(e.seq, 10)
	event.From = sender
	return e.bridge.Dispatch(e.xctx(), event)
}

func (e *scriptEnv) deploy(start string) string {
	r := e.dispatch(&contract.InboundEvent{Command: contract.CommandDeploy, Protocol: "LuaCounter",
		ConstructorArgs: map[string]interface{}{"start": start}})
	require.Equal(e.t, contract.StatusSuccess, r.Status, r.Error)
	return r.ContractID
}

func (e *scriptEnv) call(id, fn string, args map[string]interface{}) *contract.Receipt {
	return e.dispatch(&contract.InboundEvent{Command: contract.CommandCall, ContractID: id, Function: fn, Args: args})
}

func (e *scriptEnv) view(id, fn string) (string, error) {
	resp, err := e.bridge.StaticCall(e.xctx(), id, fn, nil)
	if err != nil {
		return "", err
	}
	return string(resp.Body), nil
}

func TestLoadDeclaration(t *testing.T) {
	def, err := LoadFile("testdata/counter.lua")
	require.NoError(t, err)
	assert.Equal(t, "LuaCounter", def.Name)
	assert.Equal(t, uint64(1), def.Version)
	assert.Equal(t, []contract.ParamSpec{{Name: "start", Type: contract.ParamUint256}}, def.Constructor.Params)

	get, ok := def.Function("get")
	require.True(t, ok)
	assert.True(t, get.IsReadOnly())
	secret, ok := def.Function("_secret")
	require.True(t, ok)
	assert.True(t, secret.IsInternal())
	poke, _ := def.Function("poke")
	assert.Len(t, poke.Params, 2)
}

func TestLoadErrors(t *testing.T) {
	cases := map[string]string{
		"syntax":       `return {`,
		"not a table":  `return 1`,
		"no name":      `return { version = 1, functions = {} }`,
		"bad version":  `return { name = "Bad", version = 1.5, functions = {} }`,
		"no body":      `return { name = "Bad", version = 1, functions = { f = {} } }`,
		"bad type":     `return { name = "Bad", version = 1, functions = { f = { params = { { name = "x", type = "float" } }, body = function() end } } }`,
		"host at load": `storage.set("a", "b") return { name = "Bad", version = 1, functions = {} }`,
		"no os":        `return { name = os.time(), version = 1, functions = {} }`,
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(name, src)
			assert.Error(t, err)
		})
	}
	_, err := LoadFile("testdata/missing.lua")
	assert.Error(t, err)
}

func TestScriptCounter(t *testing.T) {
	env := newScriptEnv(t)
	id := env.deploy("41")

	r := env.call(id, "inc", nil)
	require.Equal(t, contract.StatusSuccess, r.Status, r.Error)
	assert.Equal(t, "42", r.ReturnValue)
	require.Len(t, r.Logs, 1)
	assert.Equal(t, map[string]string{"count": "42", "sender": sender}, r.Logs[0].Data)

	v, err := env.view(id, "get")
	require.NoError(t, err)
	assert.Equal(t, "42", v)

	r = env.call(id, "fail", nil)
	assert.Equal(t, contract.StatusCallError, r.Status)
	assert.Equal(t, "lua says no", r.Error)

	r = env.call(id, "underflow", nil)
	assert.Equal(t, contract.StatusCallError, r.Status)

	r = env.call(id, "iterate", nil)
	assert.Equal(t, contract.StatusCallError, r.Status, "pairs is not available")

	v, _ = env.view(id, "get")
	assert.Equal(t, "42", v)

	_, err = env.view(id, "_secret")
	assert.True(t, errors.Is(err, contract.ErrStaticCallRestricted))
	_, err = env.view(id, "inc")
	assert.True(t, errors.Is(err, contract.ErrCall))
}

func TestScriptNestedCalls(t *testing.T) {
	env := newScriptEnv(t)
	a := env.deploy("0")
	b := env.deploy("7")

	r := env.call(a, "poke", map[string]interface{}{"target": b, "fn": "fail"})
	require.Equal(t, contract.StatusSuccess, r.Status, r.Error)
	assert.Equal(t, "failed:lua says no", r.ReturnValue)
	v, _ := env.view(b, "get")
	assert.Equal(t, "7", v)

	r = env.call(a, "poke", map[string]interface{}{"target": b, "fn": "inc"})
	require.Equal(t, contract.StatusSuccess, r.Status, r.Error)
	assert.Equal(t, "ok:8", r.ReturnValue)

	r = env.call(a, "relay", map[string]interface{}{"target": b, "fn": "fail"})
	assert.Equal(t, contract.StatusCallError, r.Status)
	assert.Equal(t, "lua says no", r.Error)

	r = env.call(a, "info", nil)
	require.Equal(t, contract.StatusSuccess, r.Status, r.Error)
	assert.JSONEq(t, `{"seq":6,"block":1006,"origin":"`+sender+`","contract":"`+a+`"}`, r.ReturnValue)
}

func (e *scriptEnv) deployPrinter() string {
	r := e.dispatch(&contract.InboundEvent{Command: contract.CommandDeploy, Protocol: "Printer"})
	require.Equal(e.t, contract.StatusSuccess, r.Status, r.Error)
	return r.ContractID
}

func TestScriptStringForms(t *testing.T) {
	env := loadScriptEnv(t, "testdata/printer.lua")
	id := env.deployPrinter()

	r := env.call(id, "label", nil)
	require.Equal(t, contract.StatusSuccess, r.Status, r.Error)
	assert.Equal(t, "42|x-7-true|<1.5>", r.ReturnValue)

	// heap addresses never reach contract state
	for _, fn := range []string{"leak_table", "leak_function", "leak_format", "leak_method"} {
		r = env.call(id, fn, nil)
		assert.Equal(t, contract.StatusCallError, r.Status, fn)
		assert.NotContains(t, r.Error, "0x", fn)
	}

	r = env.call(id, "protected", nil)
	assert.Equal(t, contract.StatusCallError, r.Status, "xpcall is not available")
}

func TestScriptRecoveredHostError(t *testing.T) {
	env := loadScriptEnv(t, "testdata/printer.lua")
	id := env.deployPrinter()

	r := env.call(id, "recover", nil)
	require.Equal(t, contract.StatusSuccess, r.Status, r.Error)
	assert.Contains(t, r.ReturnValue, "inner")

	// the later runtime error is reported, not the revert pcall already caught
	r = env.call(id, "recover_then_fail", nil)
	assert.Equal(t, contract.StatusCallError, r.Status)
	assert.NotContains(t, r.Error, "inner")
	assert.Contains(t, r.Error, "index")
}

func TestScriptReplayDeterministic(t *testing.T) {
	run := func() string {
		env := loadScriptEnv(t, "testdata/counter.lua", "testdata/printer.lua")
		counter := env.deploy("1")
		printer := env.deployPrinter()
		for _, fn := range []string{"label", "leak_table", "leak_function", "leak_format", "recover"} {
			env.call(printer, fn, nil)
		}
		env.call(counter, "inc", nil)
		env.call(counter, "poke", map[string]interface{}{"target": printer, "fn": "leak_table"})

		digest, err := sandbox.Digest(env.state)
		require.NoError(t, err)
		return digest
	}
	assert.Equal(t, run(), run())
}
