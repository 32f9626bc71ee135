package contract

import (
	"strconv"
)

type Command string

const (
	CommandDeploy Command = "deploy"
	CommandCall   Command = "call"
)

// InboundEvent 上游账本按顺序下发的事件，引擎只读
type InboundEvent struct {
	Sequence       uint64  `json:"sequence" mapstructure:"sequence"`
	BlockNumber    uint64  `json:"blockNumber" mapstructure:"blockNumber"`
	BlockTimestamp int64   `json:"blockTimestamp" mapstructure:"blockTimestamp"`
	TxHash         string  `json:"txHash" mapstructure:"txHash"`
	Command        Command `json:"command" mapstructure:"command"`
	From           string  `json:"from" mapstructure:"from"`

	// call
	ContractID string                 `json:"contractId,omitempty" mapstructure:"contractId"`
	Function   string                 `json:"function,omitempty" mapstructure:"function"`
	Args       map[string]interface{} `json:"args,omitempty" mapstructure:"args"`

	// deploy
	Protocol        string                 `json:"protocol,omitempty" mapstructure:"protocol"`
	Version         uint64                 `json:"version,omitempty" mapstructure:"version"`
	ConstructorArgs map[string]interface{} `json:"constructorArgs,omitempty" mapstructure:"constructorArgs"`
}

// EventID is the tx hash when present, else the decimal sequence
func (e *InboundEvent) EventID() string {
	if e.TxHash != "" {
		return e.TxHash
	}
	return strconv.FormatUint(e.Sequence, 10)
}

// Log is one event emitted by a contract
type Log struct {
	ContractID string            `json:"contractId"`
	Event      string            `json:"event"`
	Data       map[string]string `json:"data,omitempty"`
}

// Receipt 每个事件恰好产生一个回执，产生后不再修改
type Receipt struct {
	EventID        string  `json:"eventId"`
	Sequence       uint64  `json:"sequence"`
	BlockNumber    uint64  `json:"blockNumber"`
	BlockTimestamp int64   `json:"blockTimestamp"`
	TxHash         string  `json:"txHash,omitempty"`
	From           string  `json:"from"`
	Command        Command `json:"command"`
	ContractID     string  `json:"contractId,omitempty"`
	Function       string  `json:"function,omitempty"`
	Status         Status  `json:"status"`
	ReturnValue    string  `json:"returnValue,omitempty"`
	Logs           []*Log  `json:"logs,omitempty"`
	Error          string  `json:"error,omitempty"`
}

func (r *Receipt) Succeeded() bool {
	return r.Status == StatusSuccess
}

// Instance 已部署合约的元信息
type Instance struct {
	ContractID string `json:"contractId"`
	Protocol   string `json:"protocol"`
	Version    uint64 `json:"version"`
	Creator    string `json:"creator"`
	CreatedAt  uint64 `json:"createdAt"`
	TxHash     string `json:"txHash,omitempty"`
}
