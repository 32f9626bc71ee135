package sandbox

import (
	"errors"

	"github.com/xuperchain/xreplay/kernel/contract"
	"github.com/xuperchain/xreplay/lib/metrics"
)

var (
	// ErrNotFound is returned when key is not found
	ErrNotFound = errors.New("Key not found")
	// ErrReadOnly is returned on writes inside a static call
	ErrReadOnly = errors.New("write in read-only frame")
	// ErrFrameResolved is returned when a committed or discarded frame is used
	ErrFrameResolved = errors.New("frame already resolved")
	// ErrFrameTree is returned when resolving a frame would break the tree
	ErrFrameTree = errors.New("frame tree corrupted")
)

// Store opens execution frames over the committed state
type Store struct {
	reader    contract.StateReader
	committed contract.CommittedState
}

func NewStore(committed contract.CommittedState) *Store {
	return &Store{reader: committed, committed: committed}
}

// NewReadOnlyStore serves frames from a snapshot, root frames can never
// commit
func NewReadOnlyStore(reader contract.StateReader) *Store {
	return &Store{reader: reader}
}

// Reader returns the committed view frames read through
func (s *Store) Reader() contract.StateReader {
	return s.reader
}

// OpenFrame opens a child of parent, nil opens a root frame.
// Children inherit read-only mode.
func (s *Store) OpenFrame(parent *Frame) (*Frame, error) {
	readOnly := false
	if parent != nil {
		readOnly = parent.readOnly
	}
	return s.openFrame(parent, readOnly)
}

// OpenReadOnlyFrame opens a frame rejecting every write
func (s *Store) OpenReadOnlyFrame(parent *Frame) (*Frame, error) {
	return s.openFrame(parent, true)
}

func (s *Store) openFrame(parent *Frame, readOnly bool) (*Frame, error) {
	f := &Frame{
		store:    s,
		parent:   parent,
		readOnly: readOnly,
		writes:   NewMemXModel(),
	}
	if parent != nil {
		if parent.resolved {
			return nil, ErrFrameResolved
		}
		if parent.store != s {
			return nil, ErrFrameTree
		}
		f.depth = parent.depth + 1
		parent.openChildren++
	}
	return f, nil
}

// Frame is one call's pending writes and logs. Writes become visible to
// the parent only on Commit, Discard drops them together with everything
// committed into the frame by its children.
type Frame struct {
	store        *Store
	parent       *Frame
	depth        int
	readOnly     bool
	writes       *MemXModel
	logs         []*contract.Log
	openChildren int
	resolved     bool
}

func (f *Frame) Depth() int {
	return f.depth
}

func (f *Frame) IsReadOnly() bool {
	return f.readOnly
}

func (f *Frame) IsRoot() bool {
	return f.parent == nil
}

func (f *Frame) Parent() *Frame {
	return f.parent
}

// Get reads the nearest write: this frame, then ancestors, then committed
func (f *Frame) Get(bucket, key string) ([]byte, error) {
	if f.resolved {
		return nil, ErrFrameResolved
	}
	rawKey := MakeRawKey(bucket, key)
	for cur := f; cur != nil; cur = cur.parent {
		if v, ok := cur.writes.Get(rawKey); ok {
			if v == nil {
				return nil, ErrNotFound
			}
			return copyBytes(v), nil
		}
	}

	v, err := f.store.reader.Get(rawKey)
	if errors.Is(err, contract.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (f *Frame) Put(bucket, key string, value []byte) error {
	if err := f.checkWritable(); err != nil {
		return err
	}
	f.writes.Put(MakeRawKey(bucket, key), value)
	return nil
}

func (f *Frame) Del(bucket, key string) error {
	if err := f.checkWritable(); err != nil {
		return err
	}
	f.writes.Del(MakeRawKey(bucket, key))
	return nil
}

func (f *Frame) checkWritable() error {
	if f.resolved {
		return ErrFrameResolved
	}
	if f.readOnly {
		return ErrReadOnly
	}
	return nil
}

// Select returns the merged view of committed state and every pending
// write on the path to this frame, ordered by key. Keys are returned
// without the bucket part.
func (f *Frame) Select(bucket, prefix string) (contract.Iterator, error) {
	if f.resolved {
		return nil, ErrFrameResolved
	}
	rawPrefix := MakeRawKey(bucket, prefix)
	merged := NewMemXModel()
	err := f.store.reader.Iterate(rawPrefix, func(key, value []byte) bool {
		merged.Put(key, value)
		return true
	})
	if err != nil {
		return nil, err
	}

	// ancestors first so nearer writes win
	var chain []*Frame
	for cur := f; cur != nil; cur = cur.parent {
		chain = append(chain, cur)
	}
	for i := len(chain) - 1; i >= 0; i-- {
		iter := chain[i].writes.NewIterator(rawPrefix)
		for iter.Next() {
			if iter.Value() == nil {
				merged.Remove(iter.Key())
			} else {
				merged.Put(iter.Key(), iter.Value())
			}
		}
	}

	return newSelectIterator(merged.NewIterator(rawPrefix), len(BucketPrefix(bucket))), nil
}

// AddLog appends a log scoped to this frame
func (f *Frame) AddLog(log *contract.Log) error {
	if f.resolved {
		return ErrFrameResolved
	}
	f.logs = append(f.logs, log)
	return nil
}

// Logs returns the logs recorded in this frame, including committed children
func (f *Frame) Logs() []*contract.Log {
	return append([]*contract.Log(nil), f.logs...)
}

// Writes returns the pending write set in key order
func (f *Frame) Writes() []*contract.WriteOp {
	ops := make([]*contract.WriteOp, 0, f.writes.Len())
	iter := f.writes.NewIterator(nil)
	for iter.Next() {
		op := &contract.WriteOp{Key: copyBytes(iter.Key())}
		if iter.Value() == nil {
			op.Del = true
		} else {
			op.Value = copyBytes(iter.Value())
		}
		ops = append(ops, op)
	}
	return ops
}

func (f *Frame) checkResolvable() error {
	if f.resolved {
		return ErrFrameResolved
	}
	if f.openChildren > 0 {
		return ErrFrameTree
	}
	if f.parent != nil && f.parent.resolved {
		return ErrFrameTree
	}
	return nil
}

// Commit merges this frame into its parent, a root frame is applied to
// committed state as one batch
func (f *Frame) Commit() error {
	if err := f.checkResolvable(); err != nil {
		return err
	}

	if f.parent == nil {
		if f.readOnly || f.store.committed == nil {
			return ErrReadOnly
		}
		if err := f.store.committed.Apply(f.Writes()); err != nil {
			return err
		}
	} else {
		iter := f.writes.NewIterator(nil)
		for iter.Next() {
			if iter.Value() == nil {
				f.parent.writes.Del(iter.Key())
			} else {
				f.parent.writes.Put(iter.Key(), iter.Value())
			}
		}
		f.parent.logs = append(f.parent.logs, f.logs...)
		f.parent.openChildren--
	}

	f.resolve()
	metrics.FrameCounter.WithLabelValues("commit").Inc()
	return nil
}

// Discard drops the frame
func (f *Frame) Discard() error {
	if err := f.checkResolvable(); err != nil {
		return err
	}
	if f.parent != nil {
		f.parent.openChildren--
	}

	f.resolve()
	metrics.FrameCounter.WithLabelValues("discard").Inc()
	return nil
}

func (f *Frame) resolve() {
	f.resolved = true
	f.writes = NewMemXModel()
	f.logs = nil
}

// selectIterator strips the bucket part from merged keys
type selectIterator struct {
	*treeIterator
	skip int
}

func newSelectIterator(iter *treeIterator, skip int) contract.Iterator {
	return &selectIterator{treeIterator: iter, skip: skip}
}

func (s *selectIterator) Key() []byte {
	key := s.treeIterator.Key()
	if key == nil {
		return nil
	}
	return key[s.skip:]
}
