package ledger

import (
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/xuperchain/xreplay/kernel/contract"
	"github.com/xuperchain/xreplay/lib/metrics"
)

const listCacheGcTime = 5 * time.Minute

type listResult struct {
	receipts []*contract.Receipt
	total    int
}

// CachedStore caches List pages, every Put drops the whole cache since a
// new receipt shifts all newest-first pages
type CachedStore struct {
	ReceiptStore
	engine string
	lists  *cache.Cache
}

func NewCachedStore(store ReceiptStore, engine string, expire time.Duration) *CachedStore {
	if expire <= 0 {
		expire = time.Minute
	}
	return &CachedStore{
		ReceiptStore: store,
		engine:       engine,
		lists:        cache.New(expire, listCacheGcTime),
	}
}

func (c *CachedStore) Put(receipt *contract.Receipt) error {
	if err := c.ReceiptStore.Put(receipt); err != nil {
		return err
	}
	c.lists.Flush()
	metrics.ReceiptCounter.WithLabelValues(c.engine).Inc()
	return nil
}

func (c *CachedStore) List(filter *Filter, page, perPage int) ([]*contract.Receipt, int, error) {
	filter = filter.Normalize()
	offset, limit := Paginate(page, perPage)
	key := fmt.Sprintf("%s#%d#%d", filter.Key(), offset, limit)
	if v, ok := c.lists.Get(key); ok {
		res := v.(*listResult)
		return cloneReceipts(res.receipts), res.total, nil
	}

	receipts, total, err := c.ReceiptStore.List(filter, page, perPage)
	if err != nil {
		return nil, 0, err
	}
	c.lists.Set(key, &listResult{receipts: cloneReceipts(receipts), total: total}, cache.DefaultExpiration)
	return receipts, total, nil
}

func cloneReceipts(in []*contract.Receipt) []*contract.Receipt {
	out := make([]*contract.Receipt, 0, len(in))
	for _, r := range in {
		out = append(out, cloneReceipt(r))
	}
	return out
}
