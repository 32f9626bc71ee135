package kvdb

import (
	"errors"
)

// ErrNotFoundKey is returned by every driver when a key is absent
var ErrNotFoundKey = errors.New("kvdb: key not found")

// Database kv数据库统一接口
type Database interface {
	Open(path string, options map[string]interface{}) error
	Put(key []byte, value []byte) error
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
	Delete(key []byte) error
	Close() error
	NewBatch() Batch
	NewIteratorWithPrefix(prefix []byte) Iterator
	NewSnapshot() (Snapshot, error)
}

// Batch 批量写，Write之前对数据库不可见
type Batch interface {
	ValueSize() int
	Write() error
	Reset()
	Put(key []byte, value []byte) error
	Delete(key []byte) error
}

// Iterator walks keys in ascending byte order. Key and Value are only valid
// until the next call to Next, callers must copy what they keep.
type Iterator interface {
	Key() []byte
	Value() []byte
	Next() bool
	Error() error
	Release()
}

// Snapshot is a consistent read-only view of the database
type Snapshot interface {
	Get(key []byte) ([]byte, error)
	NewIteratorWithPrefix(prefix []byte) Iterator
	Release()
}

// ErrNotFound reports whether err means the key does not exist
func ErrNotFound(err error) bool {
	return errors.Is(err, ErrNotFoundKey)
}
