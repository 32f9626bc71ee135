// Package luascript loads contract protocols written in Lua
package luascript

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	lua "github.com/Shopify/go-lua"
	"github.com/pkg/errors"

	"github.com/xuperchain/xreplay/kernel/contract"
)

const (
	fieldName        = "name"
	fieldVersion     = "version"
	fieldConstructor = "constructor"
	fieldFunctions   = "functions"
	fieldParams      = "params"
	fieldBody        = "body"
	fieldMutability  = "mutability"
	fieldVisibility  = "visibility"
	fieldType        = "type"
)

// 脚本内不可用的基础函数，要么访问宿主环境，要么迭代顺序不确定
var removedGlobals = []string{
	"print", "dofile", "loadfile", "load", "loadstring", "collectgarbage",
	"pairs", "next", "require", "xpcall",
}

// Script is one loaded protocol source
type Script struct {
	chunk  string
	source string
}

// LoadFile reads a protocol script from disk
func LoadFile(path string) (contract.ProtocolDefinition, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return contract.ProtocolDefinition{}, errors.Wrapf(err, "read protocol script %s", path)
	}
	return Load(filepath.Base(path), string(buf))
}

// Load evaluates source once to read its declaration. Every invocation
// later runs in a fresh interpreter.
func Load(chunk, source string) (contract.ProtocolDefinition, error) {
	s := &Script{chunk: chunk, source: source}
	l, err := s.open(nil)
	if err != nil {
		return contract.ProtocolDefinition{}, err
	}

	def := contract.ProtocolDefinition{Functions: make(map[string]contract.FunctionSpec)}
	if def.Name, err = stringField(l, -1, fieldName); err != nil {
		return def, err
	}
	version, err := numberField(l, -1, fieldVersion)
	if err != nil {
		return def, err
	}
	if version < 1 || version != float64(uint64(version)) {
		return def, fmt.Errorf("script %s: bad version %v", chunk, version)
	}
	def.Version = uint64(version)

	l.Field(-1, fieldConstructor)
	if l.TypeOf(-1) == lua.TypeTable {
		ctor, err := s.readFunction(l, contract.ConstructorName)
		if err != nil {
			return def, err
		}
		def.Constructor = ctor
	} else if !l.IsNil(-1) {
		return def, fmt.Errorf("script %s: constructor must be a table", chunk)
	}
	l.Pop(1)

	l.Field(-1, fieldFunctions)
	if l.TypeOf(-1) != lua.TypeTable {
		return def, fmt.Errorf("script %s: functions must be a table", chunk)
	}
	names := tableKeys(l, -1)
	for _, name := range names {
		l.Field(-1, name)
		if l.TypeOf(-1) != lua.TypeTable {
			return def, fmt.Errorf("script %s: function %s must be a table", chunk, name)
		}
		fn, err := s.readFunction(l, name)
		if err != nil {
			return def, err
		}
		def.Functions[name] = fn
		l.Pop(1)
	}
	l.Pop(1)

	if err := def.Validate(); err != nil {
		return def, errors.Wrapf(err, "script %s", chunk)
	}
	return def, nil
}

// open runs the chunk in a fresh sandboxed state, leaving the declaration
// table on top of the stack
func (s *Script) open(h *host) (*lua.State, error) {
	l := lua.NewState()
	lua.Require(l, "_G", lua.BaseOpen, true)
	l.Pop(1)
	lua.Require(l, "string", lua.StringOpen, true)
	l.Field(-1, "format")
	l.PushGoClosure(safeFormat, 1)
	l.SetField(-2, "format")
	l.Pop(1)
	lua.Require(l, "table", lua.TableOpen, true)
	l.Pop(1)
	for _, name := range removedGlobals {
		l.PushNil()
		l.SetGlobal(name)
	}
	l.PushGoFunction(safeToString)
	l.SetGlobal("tostring")
	h.register(l)

	if err := lua.LoadBuffer(l, s.source, s.chunk, "t"); err != nil {
		return nil, fmt.Errorf("script %s: %v", s.chunk, err)
	}
	if err := l.ProtectedCall(0, 1, 0); err != nil {
		if h != nil && h.err != nil {
			return nil, h.err
		}
		return nil, fmt.Errorf("script %s: %v", s.chunk, err)
	}
	if l.TypeOf(-1) != lua.TypeTable {
		return nil, fmt.Errorf("script %s must return a protocol table", s.chunk)
	}
	return l, nil
}

// readFunction reads the function table on top of the stack
func (s *Script) readFunction(l *lua.State, name string) (contract.FunctionSpec, error) {
	fn := contract.FunctionSpec{
		Name:       name,
		Visibility: contract.Public,
		Mutability: contract.Mutating,
	}
	if v, ok := optStringField(l, -1, fieldVisibility); ok {
		fn.Visibility = contract.Visibility(v)
	}
	if v, ok := optStringField(l, -1, fieldMutability); ok {
		fn.Mutability = contract.Mutability(v)
	}

	l.Field(-1, fieldParams)
	if l.TypeOf(-1) == lua.TypeTable {
		n := l.RawLength(-1)
		for i := 1; i <= n; i++ {
			l.RawGetInt(-1, i)
			pname, err := stringField(l, -1, fieldName)
			if err != nil {
				return fn, errors.Wrapf(err, "function %s param %d", name, i)
			}
			ptype, err := stringField(l, -1, fieldType)
			if err != nil {
				return fn, errors.Wrapf(err, "function %s param %d", name, i)
			}
			fn.Params = append(fn.Params, contract.ParamSpec{Name: pname, Type: contract.ParamType(ptype)})
			l.Pop(1)
		}
	}
	l.Pop(1)

	l.Field(-1, fieldBody)
	isFunc := l.TypeOf(-1) == lua.TypeFunction
	l.Pop(1)
	if !isFunc {
		return fn, fmt.Errorf("script %s: function %s has no body", s.chunk, name)
	}
	fn.Handler = s.handler(name)
	return fn, nil
}

// handler runs body of function name against one KContext
func (s *Script) handler(name string) contract.KernMethod {
	return func(ctx contract.KContext) (*contract.Response, error) {
		h := &host{ctx: ctx}
		l, err := s.open(h)
		if err != nil {
			return nil, err
		}

		if name == contract.ConstructorName {
			l.Field(-1, fieldConstructor)
		} else {
			l.Field(-1, fieldFunctions)
			l.Field(-1, name)
		}
		l.Field(-1, fieldBody)
		pushArgs(l, ctx.Args())

		if err := l.ProtectedCall(1, 1, 0); err != nil {
			if h.err != nil {
				return nil, h.err
			}
			return nil, contract.CallErrorf("%s: %v", name, err)
		}
		body, err := toBody(l, -1)
		if err != nil {
			return nil, contract.CallErrorf("%s: %v", name, err)
		}
		return contract.OK(body), nil
	}
}

func stringField(l *lua.State, index int, field string) (string, error) {
	v, ok := optStringField(l, index, field)
	if !ok {
		return "", fmt.Errorf("field %s must be a string", field)
	}
	return v, nil
}

func optStringField(l *lua.State, index int, field string) (string, bool) {
	l.Field(index, field)
	defer l.Pop(1)
	if l.TypeOf(-1) != lua.TypeString {
		return "", false
	}
	return l.ToString(-1)
}

func numberField(l *lua.State, index int, field string) (float64, error) {
	l.Field(index, field)
	defer l.Pop(1)
	if l.TypeOf(-1) != lua.TypeNumber {
		return 0, fmt.Errorf("field %s must be a number", field)
	}
	v, _ := l.ToNumber(-1)
	return v, nil
}

// tableKeys returns the string keys of a table in sorted order
func tableKeys(l *lua.State, index int) []string {
	index = l.AbsIndex(index)
	var keys []string
	l.PushNil()
	for l.Next(index) {
		if l.TypeOf(-2) == lua.TypeString {
			key, _ := l.ToString(-2)
			keys = append(keys, key)
		}
		l.Pop(1)
	}
	sort.Strings(keys)
	return keys
}
