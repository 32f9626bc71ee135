package badger

import (
	"github.com/dgraph-io/badger/v3"

	"github.com/xuperchain/xreplay/lib/storage/kvdb"
)

// BadgerDatabase kvdb.Database over a badger instance
type BadgerDatabase struct {
	path string
	db   *badger.DB
}

func init() {
	kvdb.Register(kvdb.KVEngineTypeBadger, NewKVDBInstance)
}

// NewKVDBInstance create and open a badger instance
func NewKVDBInstance(param *kvdb.KVParameter) (kvdb.Database, error) {
	baseDB := new(BadgerDatabase)
	options := map[string]interface{}{
		"cache": param.GetMemCacheSize(),
	}
	if err := baseDB.Open(param.GetDBPath(), options); err != nil {
		return nil, err
	}
	return baseDB, nil
}

// Open opens badger at path, an empty path runs fully in memory
func (bdb *BadgerDatabase) Open(path string, options map[string]interface{}) error {
	opts := badger.DefaultOptions(path).
		WithLogger(nil).
		WithInMemory(path == "")
	if cache, ok := options["cache"].(int); ok && cache > 0 {
		opts = opts.WithBlockCacheSize(int64(cache) << 20)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return err
	}
	bdb.path = path
	bdb.db = db
	return nil
}

func (bdb *BadgerDatabase) Put(key []byte, value []byte) error {
	return bdb.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

func (bdb *BadgerDatabase) Get(key []byte) ([]byte, error) {
	var value []byte
	err := bdb.db.View(func(txn *badger.Txn) error {
		var err error
		value, err = getFromTxn(txn, key)
		return err
	})
	return value, err
}

func (bdb *BadgerDatabase) Has(key []byte) (bool, error) {
	_, err := bdb.Get(key)
	if kvdb.ErrNotFound(err) {
		return false, nil
	}
	return err == nil, err
}

func (bdb *BadgerDatabase) Delete(key []byte) error {
	return bdb.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

func (bdb *BadgerDatabase) Close() error {
	return bdb.db.Close()
}

// NewBatch collects writes and applies them in a single transaction
func (bdb *BadgerDatabase) NewBatch() kvdb.Batch {
	return &BadgerBatch{db: bdb.db}
}

func (bdb *BadgerDatabase) NewIteratorWithPrefix(prefix []byte) kvdb.Iterator {
	txn := bdb.db.NewTransaction(false)
	return newIterator(txn, prefix, true)
}

// NewSnapshot keeps a read-only transaction open, badger MVCC pins its
// read timestamp until Release
func (bdb *BadgerDatabase) NewSnapshot() (kvdb.Snapshot, error) {
	return &BadgerSnapshot{txn: bdb.db.NewTransaction(false)}, nil
}

func getFromTxn(txn *badger.Txn, key []byte) ([]byte, error) {
	item, err := txn.Get(key)
	if err == badger.ErrKeyNotFound {
		return nil, kvdb.ErrNotFoundKey
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

type BadgerSnapshot struct {
	txn *badger.Txn
}

func (s *BadgerSnapshot) Get(key []byte) ([]byte, error) {
	return getFromTxn(s.txn, key)
}

func (s *BadgerSnapshot) NewIteratorWithPrefix(prefix []byte) kvdb.Iterator {
	return newIterator(s.txn, prefix, false)
}

func (s *BadgerSnapshot) Release() {
	s.txn.Discard()
}

type batchOp struct {
	key   []byte
	value []byte
	del   bool
}

type BadgerBatch struct {
	db   *badger.DB
	ops  []batchOp
	size int
}

func (b *BadgerBatch) Put(key, value []byte) error {
	b.ops = append(b.ops, batchOp{key: append([]byte(nil), key...), value: append([]byte(nil), value...)})
	b.size += len(value)
	return nil
}

func (b *BadgerBatch) Delete(key []byte) error {
	b.ops = append(b.ops, batchOp{key: append([]byte(nil), key...), del: true})
	b.size += len(key)
	return nil
}

func (b *BadgerBatch) Write() error {
	return b.db.Update(func(txn *badger.Txn) error {
		for _, op := range b.ops {
			var err error
			if op.del {
				err = txn.Delete(op.key)
			} else {
				err = txn.Set(op.key, op.value)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *BadgerBatch) ValueSize() int {
	return b.size
}

func (b *BadgerBatch) Reset() {
	b.ops = b.ops[:0]
	b.size = 0
}

// badgerIterator adapts badger's Rewind/Valid cursor to Next() semantics
type badgerIterator struct {
	txn     *badger.Txn
	it      *badger.Iterator
	prefix  []byte
	ownTxn  bool
	started bool
	key     []byte
	value   []byte
	err     error
}

func newIterator(txn *badger.Txn, prefix []byte, ownTxn bool) *badgerIterator {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	return &badgerIterator{
		txn:    txn,
		it:     txn.NewIterator(opts),
		prefix: prefix,
		ownTxn: ownTxn,
	}
}

func (i *badgerIterator) Next() bool {
	if i.err != nil {
		return false
	}
	if !i.started {
		i.it.Rewind()
		i.started = true
	} else {
		i.it.Next()
	}
	if !i.it.ValidForPrefix(i.prefix) {
		i.key, i.value = nil, nil
		return false
	}

	item := i.it.Item()
	i.key = item.KeyCopy(nil)
	i.value, i.err = item.ValueCopy(nil)
	return i.err == nil
}

func (i *badgerIterator) Key() []byte {
	return i.key
}

func (i *badgerIterator) Value() []byte {
	return i.value
}

func (i *badgerIterator) Error() error {
	return i.err
}

func (i *badgerIterator) Release() {
	i.it.Close()
	if i.ownTxn {
		i.txn.Discard()
	}
}
