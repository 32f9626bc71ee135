// 回执账本，按事件序号顺序持久化每个事件的回执
package ledger

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/xuperchain/xreplay/kernel/contract"
)

const (
	DefaultPerPage = 50
	MaxPerPage     = 50
)

var (
	ErrReceiptNotFound = errors.New("receipt not found")
	ErrReceiptExists   = errors.New("receipt already exists")
	// sequence must grow with every Put
	ErrSequenceRegress = errors.New("receipt sequence not increasing")
)

// ReceiptStore receipts are immutable once stored
type ReceiptStore interface {
	Put(receipt *contract.Receipt) error
	Get(eventID string) (*contract.Receipt, error)
	// List returns one page newest first, together with the total number
	// of receipts matching filter
	List(filter *Filter, page, perPage int) ([]*contract.Receipt, int, error)
	Count() (int, error)
	CountDistinctSenders() (int, error)
	// LastSequence is 0 for an empty store
	LastSequence() (uint64, error)
	Close() error
}

// Filter empty fields match everything, addresses compare case-insensitively
type Filter struct {
	BlockNumber *uint64
	From        string
	// To is the target contract id
	To       string
	ToOrFrom string
}

// Normalize returns a copy with lowercased address fields
func (f *Filter) Normalize() *Filter {
	if f == nil {
		return &Filter{}
	}
	return &Filter{
		BlockNumber: f.BlockNumber,
		From:        strings.ToLower(strings.TrimSpace(f.From)),
		To:          strings.ToLower(strings.TrimSpace(f.To)),
		ToOrFrom:    strings.ToLower(strings.TrimSpace(f.ToOrFrom)),
	}
}

func (f *Filter) Match(r *contract.Receipt) bool {
	if f == nil {
		return true
	}
	if f.BlockNumber != nil && r.BlockNumber != *f.BlockNumber {
		return false
	}
	from := strings.ToLower(r.From)
	to := strings.ToLower(r.ContractID)
	if f.From != "" && from != f.From {
		return false
	}
	if f.To != "" && to != f.To {
		return false
	}
	if f.ToOrFrom != "" && from != f.ToOrFrom && to != f.ToOrFrom {
		return false
	}
	return true
}

// Key is a stable string form used as a cache key
func (f *Filter) Key() string {
	if f == nil {
		return "*"
	}
	block := "*"
	if f.BlockNumber != nil {
		block = strconv.FormatUint(*f.BlockNumber, 10)
	}
	return strings.Join([]string{block, f.From, f.To, f.ToOrFrom}, "|")
}

// Paginate clamps page to >= 1 and perPage into (0, MaxPerPage], then
// returns the offset and limit of that page
func Paginate(page, perPage int) (offset, limit int) {
	if page < 1 {
		page = 1
	}
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	// 超出的页号都落在最后一个可表示的页上
	if maxPage := math.MaxInt / perPage; page > maxPage {
		page = maxPage
	}
	return (page - 1) * perPage, perPage
}

func cloneReceipt(r *contract.Receipt) *contract.Receipt {
	if r == nil {
		return nil
	}
	cp := *r
	if r.Logs != nil {
		cp.Logs = make([]*contract.Log, 0, len(r.Logs))
		for _, l := range r.Logs {
			lc := *l
			if l.Data != nil {
				lc.Data = make(map[string]string, len(l.Data))
				for k, v := range l.Data {
					lc.Data[k] = v
				}
			}
			cp.Logs = append(cp.Logs, &lc)
		}
	}
	return &cp
}

func senderOf(r *contract.Receipt) string {
	return strings.ToLower(r.From)
}
