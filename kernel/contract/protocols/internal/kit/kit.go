// Package kit holds the helpers shared by the built-in protocols
package kit

import (
	"strings"

	"github.com/xuperchain/xreplay/kernel/contract"
	"github.com/xuperchain/xreplay/lib/numeric"
)

func Param(name string, tp contract.ParamType) contract.ParamSpec {
	return contract.ParamSpec{Name: name, Type: tp}
}

// Mutating declares a public state changing function
func Mutating(name string, h contract.KernMethod, params ...contract.ParamSpec) contract.FunctionSpec {
	return contract.FunctionSpec{Name: name, Params: params, Visibility: contract.Public,
		Mutability: contract.Mutating, Handler: h}
}

// View declares a public read-only function
func View(name string, h contract.KernMethod, params ...contract.ParamSpec) contract.FunctionSpec {
	return contract.FunctionSpec{Name: name, Params: params, Visibility: contract.Public,
		Mutability: contract.ReadOnly, Handler: h}
}

// Internal reserves a function name and signature without making it
// runnable. Protocols reach the behaviour through Go calls, the dispatcher
// refuses every internal name before a handler is looked up.
func Internal(name string, params ...contract.ParamSpec) contract.FunctionSpec {
	return contract.FunctionSpec{Name: name, Params: params, Visibility: contract.Internal,
		Mutability: contract.Mutating, Handler: unreachable(name)}
}

func unreachable(name string) contract.KernMethod {
	return func(contract.KContext) (*contract.Response, error) {
		return nil, contract.Fatalf("internal function %s dispatched", name)
	}
}

func Constructor(h contract.KernMethod, params ...contract.ParamSpec) contract.FunctionSpec {
	return contract.FunctionSpec{Name: contract.ConstructorName, Params: params,
		Visibility: contract.Public, Mutability: contract.Mutating, Handler: h}
}

// Functions indexes specs by name, later specs override earlier ones
func Functions(groups ...[]contract.FunctionSpec) map[string]contract.FunctionSpec {
	fns := make(map[string]contract.FunctionSpec)
	for _, group := range groups {
		for _, fn := range group {
			fns[fn.Name] = fn
		}
	}
	return fns
}

// Key joins key parts with "/"
func Key(parts ...string) string {
	return strings.Join(parts, "/")
}

// GetInt reads a decimal uint256, absent keys are zero
func GetInt(ctx contract.KContext, key string) (*numeric.Int, error) {
	v, err := ctx.Get(key)
	if err != nil {
		return nil, err
	}
	if len(v) == 0 {
		return numeric.Zero(), nil
	}
	n, err := numeric.FromDecimal(string(v))
	if err != nil {
		return nil, contract.Fatalf("corrupted number at %s: %v", key, err)
	}
	return n, nil
}

// PutInt stores n as decimal, zero deletes the key
func PutInt(ctx contract.KContext, key string, n *numeric.Int) error {
	if n.IsZero() {
		return ctx.Del(key)
	}
	return ctx.Put(key, []byte(n.String()))
}

func GetString(ctx contract.KContext, key string) (string, error) {
	v, err := ctx.Get(key)
	if err != nil {
		return "", err
	}
	return string(v), nil
}

func PutString(ctx contract.KContext, key, value string) error {
	return ctx.Put(key, []byte(value))
}

// Require reverts with msg unless cond holds
func Require(cond bool, msg string) error {
	if cond {
		return nil
	}
	return contract.Revert("%s", msg)
}
