package sandbox

import (
	"bytes"

	"github.com/emirpasic/gods/trees/redblacktree"
)

// MemXModel is an ordered in-memory write set keyed by raw key.
// A nil value marks a deletion.
type MemXModel struct {
	tree *redblacktree.Tree
}

func NewMemXModel() *MemXModel {
	tree := redblacktree.NewWith(treeCompare)
	return &MemXModel{
		tree: tree,
	}
}

// Get returns the recorded value and whether the key was written at all
func (m *MemXModel) Get(rawKey []byte) ([]byte, bool) {
	v, ok := m.tree.Get(rawKey)
	if !ok {
		return nil, false
	}
	return v.([]byte), true
}

func (m *MemXModel) Put(rawKey []byte, value []byte) {
	if value == nil {
		value = []byte{}
	}
	m.tree.Put(copyBytes(rawKey), copyBytes(value))
}

// Del records a deletion marker
func (m *MemXModel) Del(rawKey []byte) {
	m.tree.Put(copyBytes(rawKey), []byte(nil))
}

// Remove forgets the key entirely, unlike Del no marker is kept
func (m *MemXModel) Remove(rawKey []byte) {
	m.tree.Remove(rawKey)
}

func (m *MemXModel) Len() int {
	return m.tree.Size()
}

// Select 扫描一个bucket中指定前缀的key，包含删除标记
func (m *MemXModel) Select(bucket string, prefix string) *treeIterator {
	return m.NewIterator(MakeRawKey(bucket, prefix))
}

// NewIterator walks raw keys with prefix in order, nil prefix walks all
func (m *MemXModel) NewIterator(prefix []byte) *treeIterator {
	return &treeIterator{
		iter:   m.tree.Iterator(),
		prefix: prefix,
	}
}

// treeIterator 把tree的Iterator转换成前缀迭代器
type treeIterator struct {
	iter   redblacktree.Iterator
	prefix []byte
	done   bool
}

func (t *treeIterator) Next() bool {
	if t.done {
		return false
	}
	for t.iter.Next() {
		key := t.iter.Key().([]byte)
		if bytes.Compare(key, t.prefix) < 0 {
			continue
		}
		if !bytes.HasPrefix(key, t.prefix) {
			break
		}
		return true
	}
	t.done = true
	return false
}

func (t *treeIterator) Key() []byte {
	if t.done {
		return nil
	}
	return t.iter.Key().([]byte)
}

// Value is nil for deletion markers
func (t *treeIterator) Value() []byte {
	if t.done {
		return nil
	}
	return t.iter.Value().([]byte)
}

func (t *treeIterator) Error() error {
	return nil
}

func (t *treeIterator) Close() {
	t.done = true
}

func treeCompare(a, b interface{}) int {
	ka := a.([]byte)
	kb := b.([]byte)
	return bytes.Compare(ka, kb)
}
