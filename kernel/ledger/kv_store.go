package ledger

import (
	"encoding/json"
	"strconv"
	"sync"

	"github.com/golang/snappy"
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"

	"github.com/xuperchain/xreplay/kernel/contract"
	"github.com/xuperchain/xreplay/lib/storage/kvdb"
	"github.com/xuperchain/xreplay/lib/utils"
)

// kv布局
const (
	receiptPrefix = "R/"
	eventPrefix   = "E/"
	senderPrefix  = "S/"

	metaCount   = "M/count"
	metaSenders = "M/senders"
	metaLast    = "M/last"
)

const DefaultReceiptCacheSize = 1024

// KVReceiptStore receipts as snappy compressed json in a kvdb instance,
// keyed by zero padded sequence so iteration follows replay order
type KVReceiptStore struct {
	// 写串行，读走db
	mu    sync.Mutex
	db    kvdb.Database
	cache *lru.ARCCache
}

var _ ReceiptStore = (*KVReceiptStore)(nil)

// NewKVReceiptStore takes ownership of db
func NewKVReceiptStore(db kvdb.Database, cacheSize int) (*KVReceiptStore, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultReceiptCacheSize
	}
	cache, err := lru.NewARC(cacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "create receipt cache failed")
	}
	return &KVReceiptStore{db: db, cache: cache}, nil
}

func encodeReceipt(r *contract.Receipt) ([]byte, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return snappy.Encode(nil, raw), nil
}

func decodeReceipt(value []byte) (*contract.Receipt, error) {
	raw, err := snappy.Decode(nil, value)
	if err != nil {
		return nil, err
	}
	r := new(contract.Receipt)
	if err := json.Unmarshal(raw, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *KVReceiptStore) getUint(key string) (uint64, error) {
	value, err := s.db.Get([]byte(key))
	if kvdb.ErrNotFound(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(string(value), 10, 64)
}

func (s *KVReceiptStore) Put(receipt *contract.Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	has, err := s.db.Has([]byte(eventPrefix + receipt.EventID))
	if err != nil {
		return errors.Wrap(err, "check receipt failed")
	}
	if has {
		return ErrReceiptExists
	}
	last, err := s.getUint(metaLast)
	if err != nil {
		return errors.Wrap(err, "read last sequence failed")
	}
	count, err := s.getUint(metaCount)
	if err != nil {
		return errors.Wrap(err, "read receipt count failed")
	}
	if count > 0 && receipt.Sequence <= last {
		return ErrSequenceRegress
	}
	senders, err := s.getUint(metaSenders)
	if err != nil {
		return errors.Wrap(err, "read sender count failed")
	}

	value, err := encodeReceipt(receipt)
	if err != nil {
		return errors.Wrap(err, "encode receipt failed")
	}
	seqKey := utils.PadSequence(receipt.Sequence)
	senderKey := []byte(senderPrefix + senderOf(receipt))
	known, err := s.db.Has(senderKey)
	if err != nil {
		return errors.Wrap(err, "check sender failed")
	}

	batch := s.db.NewBatch()
	batch.Put([]byte(receiptPrefix+seqKey), value)
	batch.Put([]byte(eventPrefix+receipt.EventID), []byte(seqKey))
	if !known {
		batch.Put(senderKey, []byte{1})
		batch.Put([]byte(metaSenders), []byte(strconv.FormatUint(senders+1, 10)))
	}
	batch.Put([]byte(metaCount), []byte(strconv.FormatUint(count+1, 10)))
	batch.Put([]byte(metaLast), []byte(strconv.FormatUint(receipt.Sequence, 10)))
	if err := batch.Write(); err != nil {
		return errors.Wrapf(err, "write receipt failed.event:%s", receipt.EventID)
	}
	return nil
}

func (s *KVReceiptStore) Get(eventID string) (*contract.Receipt, error) {
	if v, ok := s.cache.Get(eventID); ok {
		return cloneReceipt(v.(*contract.Receipt)), nil
	}

	seqKey, err := s.db.Get([]byte(eventPrefix + eventID))
	if kvdb.ErrNotFound(err) {
		return nil, ErrReceiptNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "read receipt index failed")
	}
	value, err := s.db.Get(append([]byte(receiptPrefix), seqKey...))
	if err != nil {
		return nil, errors.Wrapf(err, "read receipt failed.event:%s", eventID)
	}
	r, err := decodeReceipt(value)
	if err != nil {
		return nil, errors.Wrapf(err, "decode receipt failed.event:%s", eventID)
	}
	s.cache.Add(eventID, r)
	return cloneReceipt(r), nil
}

func (s *KVReceiptStore) List(filter *Filter, page, perPage int) ([]*contract.Receipt, int, error) {
	filter = filter.Normalize()
	offset, limit := Paginate(page, perPage)

	it := s.db.NewIteratorWithPrefix([]byte(receiptPrefix))
	defer it.Release()

	var matched []*contract.Receipt
	for it.Next() {
		r, err := decodeReceipt(it.Value())
		if err != nil {
			return nil, 0, errors.Wrapf(err, "decode receipt failed.key:%s", it.Key())
		}
		if filter.Match(r) {
			matched = append(matched, r)
		}
	}
	if err := it.Error(); err != nil {
		return nil, 0, errors.Wrap(err, "iterate receipts failed")
	}

	total := len(matched)
	var result []*contract.Receipt
	for i := total - 1 - offset; i >= 0 && len(result) < limit; i-- {
		result = append(result, matched[i])
	}
	return result, total, nil
}

func (s *KVReceiptStore) Count() (int, error) {
	n, err := s.getUint(metaCount)
	return int(n), err
}

func (s *KVReceiptStore) CountDistinctSenders() (int, error) {
	n, err := s.getUint(metaSenders)
	return int(n), err
}

func (s *KVReceiptStore) LastSequence() (uint64, error) {
	return s.getUint(metaLast)
}

func (s *KVReceiptStore) Close() error {
	s.cache.Purge()
	return s.db.Close()
}
