package ledger

import (
	"sync"

	mapset "github.com/deckarep/golang-set"

	"github.com/xuperchain/xreplay/kernel/contract"
)

// MemReceiptStore keeps receipts in sequence order, lost on restart
type MemReceiptStore struct {
	mu       sync.RWMutex
	receipts []*contract.Receipt
	index    map[string]int
	senders  mapset.Set
}

var _ ReceiptStore = (*MemReceiptStore)(nil)

func NewMemReceiptStore() *MemReceiptStore {
	return &MemReceiptStore{
		index:   make(map[string]int),
		senders: mapset.NewThreadUnsafeSet(),
	}
}

func (m *MemReceiptStore) Put(receipt *contract.Receipt) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.index[receipt.EventID]; ok {
		return ErrReceiptExists
	}
	if n := len(m.receipts); n > 0 && receipt.Sequence <= m.receipts[n-1].Sequence {
		return ErrSequenceRegress
	}
	m.index[receipt.EventID] = len(m.receipts)
	m.receipts = append(m.receipts, cloneReceipt(receipt))
	m.senders.Add(senderOf(receipt))
	return nil
}

func (m *MemReceiptStore) Get(eventID string) (*contract.Receipt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i, ok := m.index[eventID]
	if !ok {
		return nil, ErrReceiptNotFound
	}
	return cloneReceipt(m.receipts[i]), nil
}

func (m *MemReceiptStore) List(filter *Filter, page, perPage int) ([]*contract.Receipt, int, error) {
	filter = filter.Normalize()
	offset, limit := Paginate(page, perPage)

	m.mu.RLock()
	defer m.mu.RUnlock()

	var (
		result []*contract.Receipt
		total  int
	)
	for i := len(m.receipts) - 1; i >= 0; i-- {
		r := m.receipts[i]
		if !filter.Match(r) {
			continue
		}
		if total >= offset && len(result) < limit {
			result = append(result, cloneReceipt(r))
		}
		total++
	}
	return result, total, nil
}

func (m *MemReceiptStore) Count() (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.receipts), nil
}

func (m *MemReceiptStore) CountDistinctSenders() (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.senders.Cardinality(), nil
}

func (m *MemReceiptStore) LastSequence() (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.receipts) == 0 {
		return 0, nil
	}
	return m.receipts[len(m.receipts)-1].Sequence, nil
}

func (m *MemReceiptStore) Close() error {
	return nil
}
