package bridge

import (
	"strings"

	"github.com/xuperchain/xreplay/kernel/contract"
)

// Path is the route a call takes into a contract
type Path int

const (
	// PathCall top level call event
	PathCall Path = iota
	// PathStatic read-only query, including calls nested inside one
	PathStatic
	// PathNested contract to contract call inside a mutating event
	PathNested
)

func (p Path) String() string {
	switch p {
	case PathCall:
		return "call"
	case PathStatic:
		return "static"
	case PathNested:
		return "nested"
	}
	return "unknown"
}

// 内置及自省方法名，任何协议都不能对外暴露
var defaultDenyList = []string{
	"id", "s", "msg", "tx", "block", "this",
	"require", "revert", "emit", "send", "initialize",
}

// Guard decides whether a function may be invoked on a path
type Guard struct {
	denyList map[string]bool
}

func NewGuard(extra []string) *Guard {
	g := &Guard{denyList: make(map[string]bool, len(defaultDenyList)+len(extra))}
	for _, name := range defaultDenyList {
		g.denyList[name] = true
	}
	for _, name := range extra {
		if name = strings.TrimSpace(name); name != "" {
			g.denyList[name] = true
		}
	}
	return g
}

// IsDenied reports whether name is on the deny-list
func (g *Guard) IsDenied(name string) bool {
	return g.denyList[name]
}

// Authorize resolves the function spec and validates the arguments.
// No frame is opened here.
func (g *Guard) Authorize(def contract.ProtocolDefinition, function string, path Path,
	rawArgs map[string]interface{}) (contract.FunctionSpec, *contract.Args, error) {
	restricted := func(format string) error {
		if path == PathStatic {
			return contract.Restrictedf(format, function)
		}
		return contract.CallErrorf(format, function)
	}

	if function == contract.ConstructorName {
		return contract.FunctionSpec{}, nil, contract.CallErrorf("constructor not externally callable")
	}
	if strings.HasPrefix(function, contract.InternalPrefix) {
		return contract.FunctionSpec{}, nil, restricted("function %s is internal")
	}
	if g.IsDenied(function) {
		return contract.FunctionSpec{}, nil, restricted("function %s is restricted")
	}

	spec, ok := def.Function(function)
	if !ok {
		return contract.FunctionSpec{}, nil, contract.CallErrorf("function not found: %s.%s", def.Name, function)
	}
	if spec.IsInternal() {
		return contract.FunctionSpec{}, nil, restricted("function %s is internal")
	}
	if path == PathStatic && !spec.IsReadOnly() {
		return contract.FunctionSpec{}, nil, contract.CallErrorf("function %s is not read-only", function)
	}

	args, err := contract.ValidateArgs(spec.Params, rawArgs)
	if err != nil {
		return contract.FunctionSpec{}, nil, err
	}
	return spec, args, nil
}
