package xreplay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"

	pkgerrors "github.com/pkg/errors"

	"github.com/xuperchain/xreplay/kernel/common/xaddress"
	"github.com/xuperchain/xreplay/kernel/contract"
	"github.com/xuperchain/xreplay/kernel/contract/sandbox"
	"github.com/xuperchain/xreplay/kernel/ledger"
	"github.com/xuperchain/xreplay/lib/utils"
)

// 查询只读已提交快照，不经过引擎锁

// StaticCall runs a read-only function against committed state
func (t *XReplayEngine) StaticCall(contractID, function string, args map[string]interface{}) (*contract.Response, error) {
	xctx, err := t.newOpCtx(context.Background(), utils.GenLogId())
	if err != nil {
		return nil, err
	}
	resp, err := t.bridge.StaticCall(xctx, contractID, function, args)
	if err != nil {
		xctx.GetLog().Debug("static call failed", "contract", contractID, "function", function, "err", err)
		return nil, err
	}
	return resp, nil
}

func (t *XReplayEngine) GetReceipt(eventID string) (*contract.Receipt, error) {
	return t.receipts.Get(eventID)
}

// ListReceipts pages receipts newest first
func (t *XReplayEngine) ListReceipts(filter *ledger.Filter, page, perPage int) ([]*contract.Receipt, int, error) {
	return t.receipts.List(filter, page, perPage)
}

func (t *XReplayEngine) CountTransactions() (int, error) {
	return t.receipts.Count()
}

func (t *XReplayEngine) CountDistinctSenders() (int, error) {
	return t.receipts.CountDistinctSenders()
}

func (t *XReplayEngine) Totals() (*Totals, error) {
	count, err := t.receipts.Count()
	if err != nil {
		return nil, err
	}
	senders, err := t.receipts.CountDistinctSenders()
	if err != nil {
		return nil, err
	}
	return &Totals{TransactionCount: count, UniqueFromAddressCount: senders}, nil
}

func (t *XReplayEngine) snapshot() (contract.StateSnapshot, error) {
	snap, err := t.state.Snapshot()
	if err != nil {
		return nil, pkgerrors.Wrap(err, "open state snapshot failed")
	}
	return snap, nil
}

func getInstance(reader contract.StateReader, contractID string) (*contract.Instance, error) {
	id, err := xaddress.Normalize(contractID)
	if err != nil {
		return nil, contract.ContractNotFoundf("contract not found: %s", contractID)
	}
	raw, err := reader.Get(sandbox.MakeRawKey(contract.ContractsBucket, id))
	if errors.Is(err, contract.ErrKeyNotFound) {
		return nil, contract.ContractNotFoundf("contract not found: %s", contractID)
	}
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "read instance failed.contract:%s", id)
	}
	inst := new(contract.Instance)
	if err := json.Unmarshal(raw, inst); err != nil {
		return nil, pkgerrors.Wrapf(err, "decode instance failed.contract:%s", id)
	}
	return inst, nil
}

func (t *XReplayEngine) GetContract(contractID string) (*contract.Instance, error) {
	snap, err := t.snapshot()
	if err != nil {
		return nil, err
	}
	defer snap.Release()
	return getInstance(snap, contractID)
}

// GetContractState returns every storage key of the contract with its value
func (t *XReplayEngine) GetContractState(contractID string) (map[string]string, error) {
	snap, err := t.snapshot()
	if err != nil {
		return nil, err
	}
	defer snap.Release()

	inst, err := getInstance(snap, contractID)
	if err != nil {
		return nil, err
	}
	prefix := sandbox.BucketPrefix(inst.ContractID)
	state := make(map[string]string)
	err = snap.Iterate(prefix, func(key, value []byte) bool {
		state[string(bytes.TrimPrefix(key, prefix))] = string(value)
		return true
	})
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "iterate contract state failed.contract:%s", inst.ContractID)
	}
	return state, nil
}

// StateDigest hashes all committed state, equal digests mean identical state
func (t *XReplayEngine) StateDigest() (string, error) {
	snap, err := t.snapshot()
	if err != nil {
		return "", err
	}
	defer snap.Release()
	return sandbox.Digest(snap)
}

// ContractDigest hashes the storage of one contract
func (t *XReplayEngine) ContractDigest(contractID string) (string, error) {
	snap, err := t.snapshot()
	if err != nil {
		return "", err
	}
	defer snap.Release()

	inst, err := getInstance(snap, contractID)
	if err != nil {
		return "", err
	}
	return sandbox.DigestPrefix(snap, sandbox.BucketPrefix(inst.ContractID))
}

func (t *XReplayEngine) Protocols() []contract.ProtocolDefinition {
	return t.registry.List()
}
