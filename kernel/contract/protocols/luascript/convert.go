package luascript

import (
	"encoding/json"
	"fmt"
	"strconv"

	lua "github.com/Shopify/go-lua"

	"github.com/xuperchain/xreplay/kernel/contract"
)

// pushArgs pushes validated arguments as a table. uint256 values become
// decimal strings, lua numbers can not hold them.
func pushArgs(l *lua.State, args *contract.Args) {
	l.NewTable()
	for name, v := range args.Raw() {
		switch x := v.(type) {
		case string:
			l.PushString(x)
		case bool:
			l.PushBoolean(x)
		case int64:
			l.PushNumber(float64(x))
		case interface{ String() string }:
			l.PushString(x.String())
		default:
			continue
		}
		l.SetField(-2, name)
	}
}

// toBody encodes a lua return value as response body
func toBody(l *lua.State, index int) ([]byte, error) {
	switch l.TypeOf(index) {
	case lua.TypeNil, lua.TypeNone:
		return nil, nil
	case lua.TypeString:
		s, _ := l.ToString(index)
		return []byte(s), nil
	case lua.TypeNumber:
		n, _ := l.ToNumber(index)
		return []byte(strconv.FormatFloat(n, 'f', -1, 64)), nil
	case lua.TypeBoolean:
		return []byte(strconv.FormatBool(l.ToBoolean(index))), nil
	case lua.TypeTable:
		return json.Marshal(tableToGo(l, index))
	}
	return nil, fmt.Errorf("unsupported return value type %s", lua.TypeNameOf(l, index))
}

func tableToMap(l *lua.State, index int) map[string]interface{} {
	out := make(map[string]interface{})
	index = l.AbsIndex(index)
	l.PushNil()
	for l.Next(index) {
		if l.TypeOf(-2) == lua.TypeString {
			key, _ := l.ToString(-2)
			out[key] = luaToGo(l, -1)
		}
		l.Pop(1)
	}
	return out
}

func luaToGo(l *lua.State, index int) interface{} {
	switch l.TypeOf(index) {
	case lua.TypeString:
		s, _ := l.ToString(index)
		return s
	case lua.TypeNumber:
		n, _ := l.ToNumber(index)
		return n
	case lua.TypeBoolean:
		return l.ToBoolean(index)
	case lua.TypeTable:
		return tableToGo(l, index)
	}
	return nil
}

// tableToGo turns sequences into slices and everything else into maps
func tableToGo(l *lua.State, index int) interface{} {
	index = l.AbsIndex(index)
	n := l.RawLength(index)
	if n == 0 {
		return tableToMap(l, index)
	}
	out := make([]interface{}, 0, n)
	for i := 1; i <= n; i++ {
		l.RawGetInt(index, i)
		out = append(out, luaToGo(l, -1))
		l.Pop(1)
	}
	return out
}
