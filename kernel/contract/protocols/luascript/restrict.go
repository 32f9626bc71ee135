package luascript

import (
	lua "github.com/Shopify/go-lua"
)

// printable reports whether v has the same string form in every process.
// Tables, functions and userdata print as their heap address.
func printable(l *lua.State, index int) bool {
	switch l.TypeOf(index) {
	case lua.TypeString, lua.TypeNumber, lua.TypeBoolean, lua.TypeNil:
		return true
	}
	return false
}

// safeToString replaces the tostring global
func safeToString(l *lua.State) int {
	lua.CheckAny(l, 1)
	if !printable(l, 1) {
		lua.Errorf(l, "tostring: %s value has no string form", lua.TypeNameOf(l, 1))
	}
	lua.ToStringMeta(l, 1)
	return 1
}

// safeFormat wraps string.format, held as upvalue 1, and rejects
// arguments without a fixed string form
func safeFormat(l *lua.State) int {
	n := l.Top()
	for i := 2; i <= n; i++ {
		if !printable(l, i) {
			lua.ArgumentError(l, i, lua.TypeNameOf(l, i)+" value can not be formatted")
		}
	}
	l.PushValue(lua.UpValueIndex(1))
	l.Insert(1)
	l.Call(n, 1)
	return 1
}
