package contract

import (
	"errors"
)

const (
	// ContractsBucket holds one Instance per deployed contract
	ContractsBucket = "__contracts"
	// EngineBucket holds engine bookkeeping written with each root commit
	EngineBucket = "__engine"
	// SequenceKey last applied event sequence, in EngineBucket
	SequenceKey = "sequence"
)

// ErrKeyNotFound is returned by committed state readers for absent keys
var ErrKeyNotFound = errors.New("state key not found")

// Iterator iterates over key/value pairs in key order
type Iterator interface {
	Key() []byte
	Value() []byte
	Next() bool
	Error() error
	// Iterator 必须在使用完毕后关闭
	Close()
}

// WriteOp is one committed write, Key is the raw bucket/key form
type WriteOp struct {
	Key   []byte
	Value []byte
	Del   bool
}

// StateReader 已提交状态的只读接口
type StateReader interface {
	Get(rawKey []byte) ([]byte, error)
	// Iterate calls fn for every key with prefix in ascending order until
	// fn returns false
	Iterate(prefix []byte, fn func(key, value []byte) bool) error
}

// StateSnapshot pins a committed version for queries
type StateSnapshot interface {
	StateReader
	Release()
}

// CommittedState is the permanent store, written only by root frame commits
type CommittedState interface {
	StateReader
	// Apply writes all ops atomically
	Apply(ops []*WriteOp) error
	Snapshot() (StateSnapshot, error)
	Close() error
}
