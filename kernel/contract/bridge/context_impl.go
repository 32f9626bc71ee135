package bridge

import (
	"errors"

	"github.com/xuperchain/xreplay/kernel/contract"
	"github.com/xuperchain/xreplay/kernel/contract/sandbox"
	"github.com/xuperchain/xreplay/lib/logs"
)

// kcontextImpl 为contract.KContext的实现，
// 存储访问限定在当前合约的bucket和当前执行帧内
type kcontextImpl struct {
	exec       *execution
	frame      *sandbox.Frame
	contractID string
	function   string
	caller     string
	args       *contract.Args
	logger     logs.Logger
}

var _ contract.KContext = (*kcontextImpl)(nil)

func (k *kcontextImpl) Args() *contract.Args {
	return k.args
}

func (k *kcontextImpl) Initiator() string {
	return k.exec.facts.initiator
}

func (k *kcontextImpl) Caller() string {
	return k.caller
}

func (k *kcontextImpl) ContractID() string {
	return k.contractID
}

func (k *kcontextImpl) Function() string {
	return k.function
}

func (k *kcontextImpl) Sequence() uint64 {
	return k.exec.facts.sequence
}

func (k *kcontextImpl) BlockNumber() uint64 {
	return k.exec.facts.blockNumber
}

func (k *kcontextImpl) BlockTimestamp() int64 {
	return k.exec.facts.blockTimestamp
}

func (k *kcontextImpl) IsStatic() bool {
	return k.exec.static || k.frame.IsReadOnly()
}

func (k *kcontextImpl) Get(key string) ([]byte, error) {
	v, err := k.frame.Get(k.contractID, key)
	if errors.Is(err, sandbox.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, k.storeError(err)
	}
	return v, nil
}

func (k *kcontextImpl) Put(key string, value []byte) error {
	return k.storeError(k.frame.Put(k.contractID, key, value))
}

func (k *kcontextImpl) Del(key string) error {
	return k.storeError(k.frame.Del(k.contractID, key))
}

func (k *kcontextImpl) Select(prefix string) (contract.Iterator, error) {
	iter, err := k.frame.Select(k.contractID, prefix)
	if err != nil {
		return nil, k.storeError(err)
	}
	return iter, nil
}

func (k *kcontextImpl) Call(contractID, function string, args map[string]interface{}) (*contract.Response, error) {
	return k.exec.call(k.frame, k.contractID, contractID, function, args)
}

func (k *kcontextImpl) Emit(event string, data map[string]string) error {
	if event == "" {
		return contract.CallErrorf("empty event name")
	}
	var copied map[string]string
	if len(data) > 0 {
		copied = make(map[string]string, len(data))
		for key, value := range data {
			copied[key] = value
		}
	}
	return k.storeError(k.frame.AddLog(&contract.Log{
		ContractID: k.contractID,
		Event:      event,
		Data:       copied,
	}))
}

func (k *kcontextImpl) Logger() logs.Logger {
	return k.logger
}

// storeError classifies a frame error. A write in a static call is a
// revert, anything else means the engine itself is broken.
func (k *kcontextImpl) storeError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sandbox.ErrReadOnly) {
		return contract.CallErrorf("state modification in static call: %s.%s", k.contractID, k.function)
	}
	return k.exec.markFatal(contract.AsFatal(err))
}
