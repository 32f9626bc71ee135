package bridge

import (
	"github.com/xuperchain/xreplay/kernel/common/xaddress"
	"github.com/xuperchain/xreplay/kernel/contract"
)

// EmitReceipt builds the receipt of event from its outcome
func EmitReceipt(event *contract.InboundEvent, out *Outcome) *contract.Receipt {
	receipt := &contract.Receipt{
		EventID:        event.EventID(),
		Sequence:       event.Sequence,
		BlockNumber:    event.BlockNumber,
		BlockTimestamp: event.BlockTimestamp,
		TxHash:         event.TxHash,
		From:           event.From,
		Command:        event.Command,
		ContractID:     out.ContractID,
		Function:       out.Function,
		Status:         contract.StatusOf(out.Err),
	}
	if from, ok := normalizedFrom(event.From); ok {
		receipt.From = from
	}

	if out.Err != nil {
		receipt.Error = out.Err.Error()
		return receipt
	}
	if out.Response != nil {
		receipt.ReturnValue = string(out.Response.Body)
	}
	if len(out.Logs) > 0 {
		receipt.Logs = append([]*contract.Log(nil), out.Logs...)
	}
	return receipt
}

func normalizedFrom(from string) (string, bool) {
	addr, err := xaddress.Normalize(from)
	return addr, err == nil
}
