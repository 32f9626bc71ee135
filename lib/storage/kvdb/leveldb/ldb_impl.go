package leveldb

import (
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/xuperchain/xreplay/lib/storage/kvdb"
)

// LDBDatabase define data structure of storage
type LDBDatabase struct {
	fn string      // filename for reporting
	db *leveldb.DB // LevelDB instance
}

func init() {
	kvdb.Register(kvdb.KVEngineTypeLDB, NewKVDBInstance)
}

// NewKVDBInstance create and open a leveldb instance
func NewKVDBInstance(param *kvdb.KVParameter) (kvdb.Database, error) {
	baseDB := new(LDBDatabase)
	options := map[string]interface{}{
		"cache": param.GetMemCacheSize(),
		"fds":   param.GetFileHandlersCacheSize(),
	}
	if err := baseDB.Open(param.GetDBPath(), options); err != nil {
		return nil, err
	}
	return baseDB, nil
}

func setDefaultOptions(options map[string]interface{}) {
	if v, ok := options["cache"].(int); !ok || v < 16 {
		options["cache"] = 16
	}
	if v, ok := options["fds"].(int); !ok || v < 16 {
		options["fds"] = 16
	}
}

// Open opens an instance of LDB with parameters (ldb path and other options),
// an empty path opens a memory backed instance
func (ldb *LDBDatabase) Open(path string, options map[string]interface{}) error {
	setDefaultOptions(options)
	cache := options["cache"].(int)
	fds := options["fds"].(int)
	o := &opt.Options{
		OpenFilesCacheCapacity: fds,
		BlockCacheCapacity:     cache / 2 * opt.MiB,
		WriteBuffer:            cache / 4 * opt.MiB, // Two of these are used internally
		Filter:                 filter.NewBloomFilter(10),
	}

	var (
		db  *leveldb.DB
		err error
	)
	if path == "" {
		db, err = leveldb.Open(storage.NewMemStorage(), o)
	} else {
		db, err = leveldb.OpenFile(path, o)
	}
	if _, corrupted := err.(*errors.ErrCorrupted); corrupted && path != "" {
		db, err = leveldb.RecoverFile(path, nil)
	}
	// (Re)check for errors and abort if opening of the db failed
	if err != nil {
		return err
	}
	ldb.fn = path
	ldb.db = db
	return nil
}

// Path returns the path to the database directory.
func (ldb *LDBDatabase) Path() string {
	return ldb.fn
}

// Put puts the given key / value to the queue
func (ldb *LDBDatabase) Put(key []byte, value []byte) error {
	return ldb.db.Put(key, value, nil)
}

// Has if key exists
func (ldb *LDBDatabase) Has(key []byte) (bool, error) {
	return ldb.db.Has(key, nil)
}

// Get returns the given key if it's present.
func (ldb *LDBDatabase) Get(key []byte) ([]byte, error) {
	dat, err := ldb.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, kvdb.ErrNotFoundKey
	}
	if err != nil {
		return nil, err
	}
	return dat, nil
}

// Delete deletes the key from the queue and database
func (ldb *LDBDatabase) Delete(key []byte) error {
	return ldb.db.Delete(key, nil)
}

// NewIteratorWithPrefix returns a Iterator for traversing the database
// with specific prefix
func (ldb *LDBDatabase) NewIteratorWithPrefix(prefix []byte) kvdb.Iterator {
	return ldb.db.NewIterator(util.BytesPrefix(prefix), nil)
}

// NewSnapshot pins the current version of the database
func (ldb *LDBDatabase) NewSnapshot() (kvdb.Snapshot, error) {
	snap, err := ldb.db.GetSnapshot()
	if err != nil {
		return nil, err
	}
	return &LDBSnapshot{snap: snap}, nil
}

// Close close database instance
func (ldb *LDBDatabase) Close() error {
	return ldb.db.Close()
}

// NewBatch new a batch for writing
func (ldb *LDBDatabase) NewBatch() kvdb.Batch {
	return &LDBBatch{db: ldb.db, b: new(leveldb.Batch)}
}

// LDBSnapshot wraps a leveldb snapshot
type LDBSnapshot struct {
	snap *leveldb.Snapshot
}

func (s *LDBSnapshot) Get(key []byte) ([]byte, error) {
	dat, err := s.snap.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, kvdb.ErrNotFoundKey
	}
	return dat, err
}

func (s *LDBSnapshot) NewIteratorWithPrefix(prefix []byte) kvdb.Iterator {
	return s.snap.NewIterator(util.BytesPrefix(prefix), nil)
}

func (s *LDBSnapshot) Release() {
	s.snap.Release()
}

// LDBBatch define a batch structure
type LDBBatch struct {
	db   *leveldb.DB
	b    *leveldb.Batch
	size int
}

// Put put a key-value into batch
func (b *LDBBatch) Put(key, value []byte) error {
	b.b.Put(key, value)
	b.size += len(value)
	return nil
}

// Delete delete a key in batch
func (b *LDBBatch) Delete(key []byte) error {
	b.b.Delete(key)
	b.size += len(key)
	return nil
}

// Write commit batch into database
func (b *LDBBatch) Write() error {
	return b.db.Write(b.b, nil)
}

// ValueSize return the value size of batch
func (b *LDBBatch) ValueSize() int {
	return b.size
}

// Reset reset the batch
func (b *LDBBatch) Reset() {
	b.b.Reset()
	b.size = 0
}
