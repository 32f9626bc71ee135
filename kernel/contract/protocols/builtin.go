// Package protocols registers the protocols shipped with the engine
package protocols

import (
	"github.com/pkg/errors"

	"github.com/xuperchain/xreplay/kernel/contract"
	"github.com/xuperchain/xreplay/kernel/contract/protocols/bridgeable"
	"github.com/xuperchain/xreplay/kernel/contract/protocols/dexpool"
	"github.com/xuperchain/xreplay/kernel/contract/protocols/luascript"
	"github.com/xuperchain/xreplay/kernel/contract/protocols/openedition"
	"github.com/xuperchain/xreplay/kernel/contract/protocols/openmint"
)

// Registry is the part of the protocol registry used for registration
type Registry interface {
	Register(def contract.ProtocolDefinition) error
}

// Builtins returns the native protocol definitions
func Builtins() []contract.ProtocolDefinition {
	return []contract.ProtocolDefinition{
		openmint.Definition(),
		bridgeable.Definition(),
		dexpool.Definition(),
		openedition.Definition(),
	}
}

func RegisterBuiltins(reg Registry) error {
	for _, def := range Builtins() {
		if err := reg.Register(def); err != nil {
			return errors.Wrapf(err, "register builtin protocol %s", def)
		}
	}
	return nil
}

// LoadScripts registers every lua protocol script in files
func LoadScripts(reg Registry, files []string) error {
	for _, file := range files {
		def, err := luascript.LoadFile(file)
		if err != nil {
			return err
		}
		if err := reg.Register(def); err != nil {
			return errors.Wrapf(err, "register script protocol %s", file)
		}
	}
	return nil
}
