package xreplay

import (
	"errors"
)

const (
	BCEngineName = "xreplay"

	// 子模块名，用于日志
	moduleName = "xreplay"
)

var (
	ErrOutOfOrder = errors.New("event sequence out of order")
	// ErrHalted every Dispatch after a fatal outcome fails with it, the
	// operator has to inspect the state before replay can continue
	ErrHalted = errors.New("engine halted by fatal outcome")
	ErrClosed = errors.New("engine closed")
)

// Totals 回执统计
type Totals struct {
	TransactionCount       int `json:"transaction_count"`
	UniqueFromAddressCount int `json:"unique_from_address_count"`
}
