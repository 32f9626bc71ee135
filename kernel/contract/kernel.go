package contract

import (
	"github.com/xuperchain/xreplay/lib/logs"
)

// KernMethod is the body of one protocol function
type KernMethod func(ctx KContext) (*Response, error)

// KContext is the capability surface handed to a running function body.
// Storage operations are scoped to the current contract and the current
// execution frame.
type KContext interface {
	// 交易相关数据
	Args() *Args
	Initiator() string
	Caller() string
	ContractID() string
	Function() string
	Sequence() uint64
	BlockNumber() uint64
	BlockTimestamp() int64
	IsStatic() bool

	// 状态读写接口，Get读取不存在的key返回nil
	Get(key string) ([]byte, error)
	Put(key string, value []byte) error
	Del(key string) error
	Select(prefix string) (Iterator, error)

	// Call invokes a public function of another contract in a child frame.
	// A failed callee leaves no writes or logs behind and its error is
	// returned to the caller.
	Call(contractID, function string, args map[string]interface{}) (*Response, error)
	Emit(event string, data map[string]string) error

	Logger() logs.Logger
}
