package ledger

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xuperchain/xreplay/kernel/contract"
	"github.com/xuperchain/xreplay/lib/storage/kvdb"
	_ "github.com/xuperchain/xreplay/lib/storage/kvdb/badger"
	_ "github.com/xuperchain/xreplay/lib/storage/kvdb/leveldb"
)

const (
	alice = "0x00000000000000000000000000000000000000a1"
	bob   = "0x00000000000000000000000000000000000000b2"
	token = "0x00000000000000000000000000000000000000c3"
	pool  = "0x00000000000000000000000000000000000000d4"
)

func openStores(t *testing.T) map[string]ReceiptStore {
	stores := map[string]ReceiptStore{
		"memory": NewMemReceiptStore(),
	}
	for _, engine := range []string{kvdb.KVEngineTypeLDB, kvdb.KVEngineTypeBadger} {
		db, err := kvdb.CreateKVInstance(&kvdb.KVParameter{KVEngineType: engine})
		require.NoError(t, err)
		store, err := NewKVReceiptStore(db, 4)
		require.NoError(t, err)
		stores["kv-"+engine] = store
	}
	sqlStore, err := OpenSQLReceiptStore("")
	require.NoError(t, err)
	stores["sqlite"] = sqlStore

	t.Cleanup(func() {
		for _, s := range stores {
			s.Close()
		}
	})
	return stores
}

func receipt(seq, block uint64, from, to string) *contract.Receipt {
	return &contract.Receipt{
		EventID:        fmt.Sprintf("0xhash%d", seq),
		Sequence:       seq,
		BlockNumber:    block,
		BlockTimestamp: int64(1700000000 + seq),
		From:           from,
		Command:        contract.CommandCall,
		ContractID:     to,
		Function:       "transfer",
		Status:         contract.StatusSuccess,
		Logs: []*contract.Log{
			{ContractID: to, Event: "Transfer", Data: map[string]string{"amount": "1"}},
		},
	}
}

// 6 receipts over 3 blocks
func fill(t *testing.T, store ReceiptStore) {
	rows := []struct {
		block    uint64
		from, to string
	}{
		{1, alice, token},
		{1, bob, token},
		{2, alice, pool},
		{2, alice, token},
		{3, bob, pool},
		{3, token, pool},
	}
	for i, row := range rows {
		require.NoError(t, store.Put(receipt(uint64(i+1), row.block, row.from, row.to)))
	}
}

func sequences(receipts []*contract.Receipt) []uint64 {
	var out []uint64
	for _, r := range receipts {
		out = append(out, r.Sequence)
	}
	return out
}

func TestReceiptStorePutGet(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			want := receipt(7, 3, alice, token)
			require.NoError(t, store.Put(want))

			got, err := store.Get(want.EventID)
			require.NoError(t, err)
			assert.Equal(t, want, got)

			// 二次读取走缓存
			got, err = store.Get(want.EventID)
			require.NoError(t, err)
			assert.Equal(t, want, got)

			got.Logs[0].Data["amount"] = "999"
			again, err := store.Get(want.EventID)
			require.NoError(t, err)
			assert.Equal(t, "1", again.Logs[0].Data["amount"])

			_, err = store.Get("0xmissing")
			assert.ErrorIs(t, err, ErrReceiptNotFound)

			assert.ErrorIs(t, store.Put(want), ErrReceiptExists)
			older := receipt(5, 3, alice, token)
			assert.ErrorIs(t, store.Put(older), ErrSequenceRegress)

			last, err := store.LastSequence()
			require.NoError(t, err)
			assert.Equal(t, uint64(7), last)
		})
	}
}

func TestReceiptStoreCounts(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			last, err := store.LastSequence()
			require.NoError(t, err)
			assert.Equal(t, uint64(0), last)

			fill(t, store)
			n, err := store.Count()
			require.NoError(t, err)
			assert.Equal(t, 6, n)

			senders, err := store.CountDistinctSenders()
			require.NoError(t, err)
			assert.Equal(t, 3, senders)

			last, err = store.LastSequence()
			require.NoError(t, err)
			assert.Equal(t, uint64(6), last)
		})
	}
}

func TestReceiptStoreList(t *testing.T) {
	block2 := uint64(2)
	cases := []struct {
		name    string
		filter  *Filter
		page    int
		perPage int
		want    []uint64
		total   int
	}{
		{"all newest first", nil, 1, 0, []uint64{6, 5, 4, 3, 2, 1}, 6},
		{"paged", &Filter{}, 2, 4, []uint64{2, 1}, 6},
		{"page past end", &Filter{}, 3, 4, nil, 6},
		{"page below one", &Filter{}, -1, 2, []uint64{6, 5}, 6},
		{"huge page", &Filter{}, math.MaxInt, 10, nil, 6},
		{"block", &Filter{BlockNumber: &block2}, 1, 50, []uint64{4, 3}, 2},
		{"from", &Filter{From: alice}, 1, 50, []uint64{4, 3, 1}, 3},
		{"from uppercase", &Filter{From: "0x00000000000000000000000000000000000000A1"}, 1, 50, []uint64{4, 3, 1}, 3},
		{"to", &Filter{To: pool}, 1, 50, []uint64{6, 5, 3}, 3},
		{"to or from", &Filter{ToOrFrom: token}, 1, 50, []uint64{6, 4, 2, 1}, 4},
		{"combined", &Filter{From: bob, To: pool}, 1, 50, []uint64{5}, 1},
		{"no match", &Filter{From: pool}, 1, 50, nil, 0},
	}

	for name, store := range openStores(t) {
		fill(t, store)
		for _, tc := range cases {
			t.Run(name+"/"+tc.name, func(t *testing.T) {
				got, total, err := store.List(tc.filter, tc.page, tc.perPage)
				require.NoError(t, err)
				assert.Equal(t, tc.want, sequences(got))
				assert.Equal(t, tc.total, total)
			})
		}
	}
}

func TestPaginate(t *testing.T) {
	cases := []struct {
		page, perPage int
		offset, limit int
	}{
		{1, 0, 0, 50},
		{1, 10, 0, 10},
		{3, 10, 20, 10},
		{0, 10, 0, 10},
		{2, 500, 50, 50},
		{math.MaxInt, 10, (math.MaxInt/10 - 1) * 10, 10},
		{math.MaxInt, 0, (math.MaxInt/DefaultPerPage - 1) * DefaultPerPage, 50},
	}
	for _, tc := range cases {
		offset, limit := Paginate(tc.page, tc.perPage)
		assert.GreaterOrEqual(t, offset, 0)
		if offset != tc.offset || limit != tc.limit {
			t.Errorf("Paginate(%d,%d)=%d,%d want %d,%d", tc.page, tc.perPage, offset, limit, tc.offset, tc.limit)
		}
	}
}

func TestCachedStoreFlushOnPut(t *testing.T) {
	store := NewCachedStore(NewMemReceiptStore(), "memory", time.Hour)
	defer store.Close()
	fill(t, store)

	first, total, err := store.List(&Filter{To: pool}, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, []uint64{6, 5}, sequences(first))
	assert.Equal(t, 3, total)

	// cached copies are not shared with callers
	first[0].Sequence = 100
	cached, _, err := store.List(&Filter{To: pool}, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, []uint64{6, 5}, sequences(cached))

	require.NoError(t, store.Put(receipt(7, 4, alice, pool)))
	fresh, total, err := store.List(&Filter{To: pool}, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, []uint64{7, 6}, sequences(fresh))
	assert.Equal(t, 4, total)
}

func TestKVReceiptStoreReopen(t *testing.T) {
	dir := t.TempDir()
	param := &kvdb.KVParameter{DBPath: dir, KVEngineType: kvdb.KVEngineTypeLDB, MemCacheSize: 16, FileHandlersCacheSize: 16}
	db, err := kvdb.CreateKVInstance(param)
	require.NoError(t, err)
	store, err := NewKVReceiptStore(db, 0)
	require.NoError(t, err)
	fill(t, store)
	require.NoError(t, store.Close())

	db, err = kvdb.CreateKVInstance(param)
	require.NoError(t, err)
	store, err = NewKVReceiptStore(db, 0)
	require.NoError(t, err)
	defer store.Close()

	last, err := store.LastSequence()
	require.NoError(t, err)
	assert.Equal(t, uint64(6), last)
	senders, err := store.CountDistinctSenders()
	require.NoError(t, err)
	assert.Equal(t, 3, senders)
	r, err := store.Get("0xhash3")
	require.NoError(t, err)
	assert.Equal(t, pool, r.ContractID)
}
