package luascript

import (
	"strconv"

	lua "github.com/Shopify/go-lua"

	"github.com/xuperchain/xreplay/kernel/contract"
	"github.com/xuperchain/xreplay/lib/numeric"
)

// host binds the script api to the running contract. err keeps the typed
// error behind the last lua error raised by the host.
type host struct {
	ctx contract.KContext
	err error
}

func (h *host) register(l *lua.State) {
	h.table(l, "storage", []lua.RegistryFunction{
		{Name: "get", Function: h.storageGet},
		{Name: "set", Function: h.storageSet},
		{Name: "del", Function: h.storageDel},
	})
	h.table(l, "contract", []lua.RegistryFunction{
		{Name: "call", Function: h.contractCall},
		{Name: "try_call", Function: h.contractTryCall},
	})
	h.table(l, "msg", []lua.RegistryFunction{
		{Name: "sender", Function: h.msgString(func(ctx contract.KContext) string { return ctx.Caller() })},
		{Name: "origin", Function: h.msgString(func(ctx contract.KContext) string { return ctx.Initiator() })},
		{Name: "contract", Function: h.msgString(func(ctx contract.KContext) string { return ctx.ContractID() })},
		{Name: "sequence", Function: h.msgNumber(func(ctx contract.KContext) float64 { return float64(ctx.Sequence()) })},
		{Name: "timestamp", Function: h.msgNumber(func(ctx contract.KContext) float64 { return float64(ctx.BlockTimestamp()) })},
		{Name: "block", Function: h.msgNumber(func(ctx contract.KContext) float64 { return float64(ctx.BlockNumber()) })},
	})
	h.table(l, "u256", []lua.RegistryFunction{
		{Name: "add", Function: h.arith((*numeric.Int).Add)},
		{Name: "sub", Function: h.arith((*numeric.Int).Sub)},
		{Name: "mul", Function: h.arith((*numeric.Int).Mul)},
		{Name: "div", Function: h.arith((*numeric.Int).Div)},
		{Name: "mod", Function: h.arith((*numeric.Int).Mod)},
		{Name: "cmp", Function: h.cmp},
	})
	l.PushGoFunction(h.emit)
	l.SetGlobal("emit")
	l.PushGoFunction(h.revert)
	l.SetGlobal("revert")
	l.PushGoFunction(h.pcall)
	l.SetGlobal("pcall")
}

func (h *host) table(l *lua.State, name string, fns []lua.RegistryFunction) {
	l.NewTable()
	lua.SetFunctions(l, fns, 0)
	l.SetGlobal(name)
}

// fail records err and raises it inside the interpreter
func (h *host) fail(l *lua.State, err error) int {
	h.err = err
	lua.Errorf(l, "%s", err.Error())
	return 0
}

// pcall replaces the base pcall. A host error it catches is forgotten,
// except a fatal one, which keeps unwinding.
func (h *host) pcall(l *lua.State) int {
	lua.CheckAny(l, 1)
	if err := l.ProtectedCall(l.Top()-1, lua.MultipleReturns, 0); err != nil {
		if h != nil && h.err != nil {
			if contract.IsFatal(h.err) {
				l.Error()
			}
			h.err = nil
		}
		l.PushBoolean(false)
		l.Insert(1)
		return 2
	}
	l.PushBoolean(true)
	l.Insert(1)
	return l.Top()
}

func (h *host) context(l *lua.State) contract.KContext {
	if h == nil || h.ctx == nil {
		lua.Errorf(l, "host api is not available while loading")
	}
	return h.ctx
}

func (h *host) storageGet(l *lua.State) int {
	ctx := h.context(l)
	v, err := ctx.Get(lua.CheckString(l, 1))
	if err != nil {
		return h.fail(l, err)
	}
	if v == nil {
		l.PushNil()
	} else {
		l.PushString(string(v))
	}
	return 1
}

func (h *host) storageSet(l *lua.State) int {
	ctx := h.context(l)
	if err := ctx.Put(lua.CheckString(l, 1), []byte(lua.CheckString(l, 2))); err != nil {
		return h.fail(l, err)
	}
	return 0
}

func (h *host) storageDel(l *lua.State) int {
	ctx := h.context(l)
	if err := ctx.Del(lua.CheckString(l, 1)); err != nil {
		return h.fail(l, err)
	}
	return 0
}

func (h *host) call(l *lua.State) (*contract.Response, error) {
	ctx := h.context(l)
	id := lua.CheckString(l, 1)
	fn := lua.CheckString(l, 2)
	var args map[string]interface{}
	if !l.IsNoneOrNil(3) {
		lua.CheckType(l, 3, lua.TypeTable)
		args = tableToMap(l, 3)
	}
	return ctx.Call(id, fn, args)
}

// contractCall reverts the script when the callee fails
func (h *host) contractCall(l *lua.State) int {
	resp, err := h.call(l)
	if err != nil {
		return h.fail(l, err)
	}
	l.PushString(string(resp.Body))
	return 1
}

// contractTryCall returns ok, result or false, error message
func (h *host) contractTryCall(l *lua.State) int {
	resp, err := h.call(l)
	if err != nil {
		if contract.IsFatal(err) {
			return h.fail(l, err)
		}
		l.PushBoolean(false)
		l.PushString(err.Error())
		return 2
	}
	l.PushBoolean(true)
	l.PushString(string(resp.Body))
	return 2
}

func (h *host) msgString(get func(contract.KContext) string) lua.Function {
	return func(l *lua.State) int {
		l.PushString(get(h.context(l)))
		return 1
	}
}

func (h *host) msgNumber(get func(contract.KContext) float64) lua.Function {
	return func(l *lua.State) int {
		l.PushNumber(get(h.context(l)))
		return 1
	}
}

func (h *host) emit(l *lua.State) int {
	ctx := h.context(l)
	name := lua.CheckString(l, 1)
	data := make(map[string]string)
	if !l.IsNoneOrNil(2) {
		lua.CheckType(l, 2, lua.TypeTable)
		for k, v := range tableToMap(l, 2) {
			data[k] = valueString(v)
		}
	}
	if err := ctx.Emit(name, data); err != nil {
		return h.fail(l, err)
	}
	return 0
}

func (h *host) revert(l *lua.State) int {
	return h.fail(l, contract.Revert("%s", lua.OptString(l, 1, "reverted")))
}

func (h *host) checkInt(l *lua.State, index int) *numeric.Int {
	s := lua.CheckString(l, index)
	n, err := numeric.FromDecimal(s)
	if err != nil {
		h.fail(l, contract.Revert("bad uint256 %q: %v", s, err))
	}
	return n
}

func (h *host) arith(op func(a, b *numeric.Int) (*numeric.Int, error)) lua.Function {
	return func(l *lua.State) int {
		a, b := h.checkInt(l, 1), h.checkInt(l, 2)
		n, err := op(a, b)
		if err != nil {
			return h.fail(l, contract.Revert("%v", err))
		}
		l.PushString(n.String())
		return 1
	}
}

func (h *host) cmp(l *lua.State) int {
	a, b := h.checkInt(l, 1), h.checkInt(l, 2)
	l.PushInteger(a.Cmp(b))
	return 1
}

func valueString(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case nil:
		return ""
	}
	return ""
}
