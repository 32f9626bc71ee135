package sandbox

import (
	"sync"

	iradix "github.com/hashicorp/go-immutable-radix"

	"github.com/xuperchain/xreplay/kernel/contract"
)

// MemState committed state on an immutable radix tree. Every Apply
// produces a new root, snapshots simply keep an older root.
type MemState struct {
	mu   sync.RWMutex
	tree *iradix.Tree
}

var _ contract.CommittedState = (*MemState)(nil)

func NewMemState() *MemState {
	return &MemState{tree: iradix.New()}
}

func (m *MemState) root() *iradix.Tree {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tree
}

func (m *MemState) Get(rawKey []byte) ([]byte, error) {
	return radixGet(m.root(), rawKey)
}

func (m *MemState) Iterate(prefix []byte, fn func(key, value []byte) bool) error {
	return radixIterate(m.root(), prefix, fn)
}

func (m *MemState) Apply(ops []*contract.WriteOp) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	txn := m.tree.Txn()
	for _, op := range ops {
		if op.Del {
			txn.Delete(op.Key)
			continue
		}
		txn.Insert(copyBytes(op.Key), copyBytes(op.Value))
	}
	m.tree = txn.Commit()
	return nil
}

func (m *MemState) Snapshot() (contract.StateSnapshot, error) {
	return &memSnapshot{tree: m.root()}, nil
}

func (m *MemState) Close() error {
	return nil
}

type memSnapshot struct {
	tree *iradix.Tree
}

func (s *memSnapshot) Get(rawKey []byte) ([]byte, error) {
	return radixGet(s.tree, rawKey)
}

func (s *memSnapshot) Iterate(prefix []byte, fn func(key, value []byte) bool) error {
	return radixIterate(s.tree, prefix, fn)
}

func (s *memSnapshot) Release() {}

func radixGet(tree *iradix.Tree, rawKey []byte) ([]byte, error) {
	v, ok := tree.Get(rawKey)
	if !ok {
		return nil, contract.ErrKeyNotFound
	}
	return copyBytes(v.([]byte)), nil
}

// radixIterate walks in lexical order, the radix walk stops when the
// callback returns true
func radixIterate(tree *iradix.Tree, prefix []byte, fn func(key, value []byte) bool) error {
	tree.Root().WalkPrefix(prefix, func(k []byte, v interface{}) bool {
		return !fn(copyBytes(k), copyBytes(v.([]byte)))
	})
	return nil
}
