package sandbox

import (
	"github.com/VictoriaMetrics/fastcache"

	"github.com/xuperchain/xreplay/kernel/contract"
	"github.com/xuperchain/xreplay/lib/metrics"
	"github.com/xuperchain/xreplay/lib/storage/kvdb"
)

// KVState committed state persisted in a kvdb instance with a fastcache
// read cache in front of it
type KVState struct {
	db    kvdb.Database
	cache *fastcache.Cache
}

var _ contract.CommittedState = (*KVState)(nil)

// NewKVState takes ownership of db, cacheBytes <= 0 disables the cache
func NewKVState(db kvdb.Database, cacheBytes int) *KVState {
	s := &KVState{db: db}
	if cacheBytes > 0 {
		s.cache = fastcache.New(cacheBytes)
	}
	return s
}

func (s *KVState) Get(rawKey []byte) ([]byte, error) {
	if s.cache != nil {
		if v, ok := s.cache.HasGet(nil, rawKey); ok {
			metrics.StateCacheCounter.WithLabelValues("hit").Inc()
			return v, nil
		}
		metrics.StateCacheCounter.WithLabelValues("miss").Inc()
	}

	v, err := s.db.Get(rawKey)
	if kvdb.ErrNotFound(err) {
		return nil, contract.ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Set(rawKey, v)
	}
	return v, nil
}

func (s *KVState) Iterate(prefix []byte, fn func(key, value []byte) bool) error {
	return iterateKV(s.db.NewIteratorWithPrefix(prefix), fn)
}

func (s *KVState) Apply(ops []*contract.WriteOp) error {
	batch := s.db.NewBatch()
	for _, op := range ops {
		var err error
		if op.Del {
			err = batch.Delete(op.Key)
		} else {
			err = batch.Put(op.Key, op.Value)
		}
		if err != nil {
			return err
		}
	}
	err := batch.Write()

	if s.cache != nil {
		for _, op := range ops {
			if op.Del || err != nil {
				s.cache.Del(op.Key)
			} else {
				s.cache.Set(op.Key, op.Value)
			}
		}
	}
	return err
}

func (s *KVState) Snapshot() (contract.StateSnapshot, error) {
	snap, err := s.db.NewSnapshot()
	if err != nil {
		return nil, err
	}
	return &kvSnapshot{snap: snap}, nil
}

func (s *KVState) Close() error {
	if s.cache != nil {
		s.cache.Reset()
	}
	return s.db.Close()
}

type kvSnapshot struct {
	snap kvdb.Snapshot
}

func (s *kvSnapshot) Get(rawKey []byte) ([]byte, error) {
	v, err := s.snap.Get(rawKey)
	if kvdb.ErrNotFound(err) {
		return nil, contract.ErrKeyNotFound
	}
	return v, err
}

func (s *kvSnapshot) Iterate(prefix []byte, fn func(key, value []byte) bool) error {
	return iterateKV(s.snap.NewIteratorWithPrefix(prefix), fn)
}

func (s *kvSnapshot) Release() {
	s.snap.Release()
}

func iterateKV(it kvdb.Iterator, fn func(key, value []byte) bool) error {
	defer it.Release()
	for it.Next() {
		if !fn(copyBytes(it.Key()), copyBytes(it.Value())) {
			break
		}
	}
	return it.Error()
}
