package leveldb

import (
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/xuperchain/xreplay/lib/storage/kvdb"
)

const (
	letterIdxBits = 6                    // 6 bits to represent a letter index
	letterIdxMask = 1<<letterIdxBits - 1 // All 1-bits, as many as letterIdxBits
	letterIdxMax  = 63 / letterIdxBits   // # of letter indices fitting in 63 bits
)

const letterBytes = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// 产生随机字符串
func RandBytes(n int) []byte {
	b := make([]byte, n)
	for i, cache, remain := n-1, rand.Int63(), letterIdxMax; i >= 0; {
		if remain == 0 {
			cache, remain = rand.Int63(), letterIdxMax
		}
		if idx := int(cache & letterIdxMask); idx < len(letterBytes) {
			b[i] = letterBytes[idx]
			i--
		}
		cache >>= letterIdxBits
		remain--
	}
	return b
}

func makeDB() (kvdb.Database, error) {
	kvParam := &kvdb.KVParameter{
		KVEngineType:          kvdb.KVEngineTypeLDB,
		MemCacheSize:          128,
		FileHandlersCacheSize: 1024,
	}
	return NewKVDBInstance(kvParam)
}

func TestReopenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state")
	param := &kvdb.KVParameter{DBPath: path, KVEngineType: kvdb.KVEngineTypeLDB}

	db, err := NewKVDBInstance(param)
	if err != nil {
		t.Fatalf("open failed.err:%v", err)
	}
	if err := db.Put([]byte("seq"), []byte("42")); err != nil {
		t.Fatal(err)
	}
	if err := db.Close(); err != nil {
		t.Fatal(err)
	}

	db, err = NewKVDBInstance(param)
	if err != nil {
		t.Fatalf("reopen failed.err:%v", err)
	}
	defer db.Close()
	v, err := db.Get([]byte("seq"))
	if err != nil || string(v) != "42" {
		t.Errorf("value lost after reopen: %s %v", v, err)
	}
	if db.(*LDBDatabase).Path() != path {
		t.Errorf("unexpected path %s", db.(*LDBDatabase).Path())
	}
}

func BenchmarkLdbBatch_Put(b *testing.B) {
	db, err := makeDB()
	if err != nil {
		b.Errorf("NewKVDBInstance error: %s", err)
		return
	}
	defer db.Close()

	keys := make([][]byte, 5)
	for i := 0; i < b.N; i++ {
		batch := db.NewBatch()
		if i > 0 {
			batch.Delete(keys[1])
			batch.Delete(keys[3])
		}
		for j := 0; j < 5; j++ {
			key := RandBytes(64)
			batch.Put(key, RandBytes(1024))
			keys[j] = key
		}
		batch.Write()
	}
}

func BenchmarkLdbBatch_Get(b *testing.B) {
	db, err := makeDB()
	if err != nil {
		b.Errorf("NewKVDBInstance error: %s", err)
		return
	}
	defer db.Close()

	key := RandBytes(64)
	value := RandBytes(1024)
	db.Put(key, value)
	for i := 0; i < b.N; i++ {
		db.Get(key)
	}
}

func BenchmarkLdbBatch_GetNotExist(b *testing.B) {
	db, err := makeDB()
	if err != nil {
		b.Errorf("NewKVDBInstance error: %s", err)
		return
	}
	defer db.Close()

	key := RandBytes(64)
	for i := 0; i < b.N; i++ {
		db.Get(key)
	}
}
