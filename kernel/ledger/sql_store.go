package ledger

import (
	"database/sql"
	"encoding/json"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/xuperchain/xreplay/kernel/contract"
)

const receiptSchema = `
CREATE TABLE IF NOT EXISTS receipts (
	seq          INTEGER PRIMARY KEY,
	event_id     TEXT NOT NULL UNIQUE,
	block_number INTEGER NOT NULL,
	from_address TEXT NOT NULL,
	contract_id  TEXT NOT NULL,
	payload      BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_receipts_block ON receipts(block_number);
CREATE INDEX IF NOT EXISTS idx_receipts_from ON receipts(from_address);
CREATE INDEX IF NOT EXISTS idx_receipts_contract ON receipts(contract_id);
`

// SQLReceiptStore receipts in a sqlite table, filters run as indexed queries
type SQLReceiptStore struct {
	mu    sync.Mutex
	sqlDB *sql.DB
}

var _ ReceiptStore = (*SQLReceiptStore)(nil)

// OpenSQLReceiptStore opens the database file at path, an empty path opens
// a private in-memory database
func OpenSQLReceiptStore(path string) (*SQLReceiptStore, error) {
	dsn := ":memory:"
	if strings.TrimSpace(path) != "" {
		dsn = filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite db failed")
	}
	// 内存库每个连接各自一份
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, errors.Wrap(err, "ping sqlite db failed")
	}
	if _, err := sqlDB.Exec(receiptSchema); err != nil {
		_ = sqlDB.Close()
		return nil, errors.Wrap(err, "create receipt schema failed")
	}
	return &SQLReceiptStore{sqlDB: sqlDB}, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return false
}

func (s *SQLReceiptStore) Put(receipt *contract.Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var exists int
	err := s.sqlDB.QueryRow(`SELECT COUNT(*) FROM receipts WHERE event_id = ?`, receipt.EventID).Scan(&exists)
	if err != nil {
		return errors.Wrap(err, "check receipt failed")
	}
	if exists > 0 {
		return ErrReceiptExists
	}
	last, err := s.LastSequence()
	if err != nil {
		return err
	}
	count, err := s.Count()
	if err != nil {
		return err
	}
	if count > 0 && receipt.Sequence <= last {
		return ErrSequenceRegress
	}

	payload, err := json.Marshal(receipt)
	if err != nil {
		return errors.Wrap(err, "encode receipt failed")
	}
	_, err = s.sqlDB.Exec(
		`INSERT INTO receipts (seq, event_id, block_number, from_address, contract_id, payload) VALUES (?, ?, ?, ?, ?, ?)`,
		int64(receipt.Sequence), receipt.EventID, int64(receipt.BlockNumber),
		senderOf(receipt), strings.ToLower(receipt.ContractID), payload)
	if isUniqueViolation(err) {
		return ErrReceiptExists
	}
	if err != nil {
		return errors.Wrapf(err, "insert receipt failed.event:%s", receipt.EventID)
	}
	return nil
}

func (s *SQLReceiptStore) Get(eventID string) (*contract.Receipt, error) {
	var payload []byte
	err := s.sqlDB.QueryRow(`SELECT payload FROM receipts WHERE event_id = ?`, eventID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReceiptNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "query receipt failed.event:%s", eventID)
	}
	r := new(contract.Receipt)
	if err := json.Unmarshal(payload, r); err != nil {
		return nil, errors.Wrapf(err, "decode receipt failed.event:%s", eventID)
	}
	return r, nil
}

func whereClause(filter *Filter) (string, []interface{}) {
	if filter == nil {
		return "", nil
	}
	var (
		conds []string
		args  []interface{}
	)
	if filter.BlockNumber != nil {
		conds = append(conds, "block_number = ?")
		args = append(args, int64(*filter.BlockNumber))
	}
	if filter.From != "" {
		conds = append(conds, "from_address = ?")
		args = append(args, filter.From)
	}
	if filter.To != "" {
		conds = append(conds, "contract_id = ?")
		args = append(args, filter.To)
	}
	if filter.ToOrFrom != "" {
		conds = append(conds, "(from_address = ? OR contract_id = ?)")
		args = append(args, filter.ToOrFrom, filter.ToOrFrom)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (s *SQLReceiptStore) List(filter *Filter, page, perPage int) ([]*contract.Receipt, int, error) {
	filter = filter.Normalize()
	offset, limit := Paginate(page, perPage)
	where, args := whereClause(filter)

	var total int
	if err := s.sqlDB.QueryRow(`SELECT COUNT(*) FROM receipts`+where, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "count receipts failed")
	}

	rows, err := s.sqlDB.Query(`SELECT payload FROM receipts`+where+` ORDER BY seq DESC LIMIT ? OFFSET ?`,
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "list receipts failed")
	}
	defer rows.Close()

	var result []*contract.Receipt
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, 0, errors.Wrap(err, "scan receipt failed")
		}
		r := new(contract.Receipt)
		if err := json.Unmarshal(payload, r); err != nil {
			return nil, 0, errors.Wrap(err, "decode receipt failed")
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.Wrap(err, "iterate receipts failed")
	}
	return result, total, nil
}

func (s *SQLReceiptStore) Count() (int, error) {
	var n int
	if err := s.sqlDB.QueryRow(`SELECT COUNT(*) FROM receipts`).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "count receipts failed")
	}
	return n, nil
}

func (s *SQLReceiptStore) CountDistinctSenders() (int, error) {
	var n int
	if err := s.sqlDB.QueryRow(`SELECT COUNT(DISTINCT from_address) FROM receipts`).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "count senders failed")
	}
	return n, nil
}

func (s *SQLReceiptStore) LastSequence() (uint64, error) {
	var seq sql.NullInt64
	if err := s.sqlDB.QueryRow(`SELECT MAX(seq) FROM receipts`).Scan(&seq); err != nil {
		return 0, errors.Wrap(err, "query last sequence failed")
	}
	if !seq.Valid {
		return 0, nil
	}
	return uint64(seq.Int64), nil
}

func (s *SQLReceiptStore) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}
