package registry

import (
	"sort"
	"sync"

	"github.com/xuperchain/xreplay/kernel/contract"
)

// Registry maps protocol name + version to an immutable definition.
// Safe for concurrent use, resolution has no side effects.
type Registry struct {
	mutex     sync.RWMutex
	protocols map[string]map[uint64]contract.ProtocolDefinition
}

func New() *Registry {
	return &Registry{
		protocols: make(map[string]map[uint64]contract.ProtocolDefinition),
	}
}

// Register stores a deep copy of def
func (r *Registry) Register(def contract.ProtocolDefinition) error {
	if err := def.Validate(); err != nil {
		return err
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	versions, ok := r.protocols[def.Name]
	if !ok {
		versions = make(map[uint64]contract.ProtocolDefinition)
		r.protocols[def.Name] = versions
	}
	if _, ok = versions[def.Version]; ok {
		return contract.DuplicateProtocolf("protocol `%s' version %d exists", def.Name, def.Version)
	}
	versions[def.Version] = def.Clone()
	return nil
}

// Resolve returns a copy of the definition, version 0 means the highest
// registered version
func (r *Registry) Resolve(name string, version uint64) (contract.ProtocolDefinition, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	versions, ok := r.protocols[name]
	if !ok || len(versions) == 0 {
		return contract.ProtocolDefinition{}, contract.UnknownProtocolf("unknown protocol `%s'", name)
	}
	if version == 0 {
		for v := range versions {
			if v > version {
				version = v
			}
		}
	}
	def, ok := versions[version]
	if !ok {
		return contract.ProtocolDefinition{}, contract.UnknownProtocolf("unknown protocol `%s' version %d", name, version)
	}
	return def.Clone(), nil
}

// List returns every definition sorted by name and version
func (r *Registry) List() []contract.ProtocolDefinition {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var defs []contract.ProtocolDefinition
	for _, versions := range r.protocols {
		for _, def := range versions {
			defs = append(defs, def.Clone())
		}
	}
	sort.Slice(defs, func(i, j int) bool {
		if defs[i].Name != defs[j].Name {
			return defs[i].Name < defs[j].Name
		}
		return defs[i].Version < defs[j].Version
	})
	return defs
}
