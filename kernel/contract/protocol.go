package contract

import (
	"fmt"
	"strings"
)

const (
	// ConstructorName 构造函数名，只能在部署时执行一次
	ConstructorName = "constructor"
	// InternalPrefix marks implementation private functions
	InternalPrefix = "_"
)

type ParamType string

const (
	ParamUint256  ParamType = "uint256"
	ParamAddress  ParamType = "address"
	ParamString   ParamType = "string"
	ParamBool     ParamType = "bool"
	ParamDatetime ParamType = "datetime"
)

func (p ParamType) Valid() bool {
	switch p {
	case ParamUint256, ParamAddress, ParamString, ParamBool, ParamDatetime:
		return true
	}
	return false
}

type Visibility string

const (
	Public   Visibility = "public"
	Internal Visibility = "internal"
)

type Mutability string

const (
	Mutating Mutability = "mutating"
	ReadOnly Mutability = "readonly"
)

type ParamSpec struct {
	Name string
	Type ParamType
}

// FunctionSpec 合约函数签名及其实现
type FunctionSpec struct {
	Name       string
	Params     []ParamSpec
	Visibility Visibility
	Mutability Mutability
	Handler    KernMethod
}

func (f FunctionSpec) IsInternal() bool {
	return f.Visibility == Internal || strings.HasPrefix(f.Name, InternalPrefix)
}

func (f FunctionSpec) IsReadOnly() bool {
	return f.Mutability == ReadOnly
}

func (f FunctionSpec) clone() FunctionSpec {
	c := f
	c.Params = append([]ParamSpec(nil), f.Params...)
	return c
}

// ProtocolDefinition is a versioned contract template. The constructor
// handler may be nil for protocols without initial state.
type ProtocolDefinition struct {
	Name        string
	Version     uint64
	Constructor FunctionSpec
	Functions   map[string]FunctionSpec
}

// Clone returns a deep copy, registered definitions are never shared
func (d ProtocolDefinition) Clone() ProtocolDefinition {
	c := d
	c.Constructor = d.Constructor.clone()
	c.Functions = make(map[string]FunctionSpec, len(d.Functions))
	for name, fn := range d.Functions {
		c.Functions[name] = fn.clone()
	}
	return c
}

// Function looks up a declared function
func (d ProtocolDefinition) Function(name string) (FunctionSpec, bool) {
	fn, ok := d.Functions[name]
	return fn, ok
}

func (d ProtocolDefinition) String() string {
	return fmt.Sprintf("%s@%d", d.Name, d.Version)
}

// Validate rejects malformed definitions before registration
func (d ProtocolDefinition) Validate() error {
	if err := ValidProtocolName(d.Name); err != nil {
		return err
	}
	if d.Version == 0 {
		return fmt.Errorf("protocol %s version must be greater than 0", d.Name)
	}
	if err := validateParams(ConstructorName, d.Constructor.Params); err != nil {
		return err
	}
	if d.Constructor.Handler == nil && len(d.Constructor.Params) > 0 {
		return fmt.Errorf("protocol %s constructor declares params without handler", d.Name)
	}
	if _, ok := d.Functions[ConstructorName]; ok {
		return fmt.Errorf("protocol %s declares constructor as a function", d.Name)
	}
	for name, fn := range d.Functions {
		if name != fn.Name {
			return fmt.Errorf("protocol %s function key %s mismatch name %s", d.Name, name, fn.Name)
		}
		if err := ValidFunctionName(name); err != nil {
			return err
		}
		if fn.Handler == nil {
			return fmt.Errorf("protocol %s function %s has no handler", d.Name, name)
		}
		switch fn.Visibility {
		case Public, Internal:
		default:
			return fmt.Errorf("protocol %s function %s bad visibility %q", d.Name, name, fn.Visibility)
		}
		switch fn.Mutability {
		case Mutating, ReadOnly:
		default:
			return fmt.Errorf("protocol %s function %s bad mutability %q", d.Name, name, fn.Mutability)
		}
		if err := validateParams(name, fn.Params); err != nil {
			return err
		}
	}
	return nil
}

func validateParams(fn string, params []ParamSpec) error {
	seen := make(map[string]bool, len(params))
	for _, p := range params {
		if p.Name == "" || strings.HasPrefix(p.Name, InternalPrefix) {
			return fmt.Errorf("function %s has invalid param name %q", fn, p.Name)
		}
		if seen[p.Name] {
			return fmt.Errorf("function %s declares param %s twice", fn, p.Name)
		}
		seen[p.Name] = true
		if !p.Type.Valid() {
			return fmt.Errorf("function %s param %s has unknown type %q", fn, p.Name, p.Type)
		}
	}
	return nil
}
