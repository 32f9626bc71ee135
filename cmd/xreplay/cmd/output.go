package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/xuperchain/xreplay/kernel/contract"
)

const (
	outputTable = "table"
	outputJSON  = "json"
)

var stdout io.Writer = os.Stdout

func isJSON() bool {
	return strings.EqualFold(global.Output, outputJSON)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(stdout)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	return table
}

// printKV renders a two column table sorted by key
func printKV(header [2]string, kv map[string]string) {
	keys := make([]string, 0, len(kv))
	for k := range kv {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	table := newTable(header[0], header[1])
	for _, k := range keys {
		table.Append([]string{k, kv[k]})
	}
	table.Render()
}

func printReceipt(r *contract.Receipt) {
	table := newTable("Field", "Value")
	table.AppendBulk([][]string{
		{"event", r.EventID},
		{"sequence", strconv.FormatUint(r.Sequence, 10)},
		{"block", strconv.FormatUint(r.BlockNumber, 10)},
		{"timestamp", strconv.FormatInt(r.BlockTimestamp, 10)},
		{"from", r.From},
		{"command", string(r.Command)},
		{"contract", r.ContractID},
		{"function", r.Function},
		{"status", string(r.Status)},
		{"return", r.ReturnValue},
		{"error", r.Error},
	})
	table.Render()

	if len(r.Logs) == 0 {
		return
	}
	logs := newTable("#", "Contract", "Event", "Data")
	for i, l := range r.Logs {
		data, _ := json.Marshal(l.Data)
		logs.Append([]string{strconv.Itoa(i), l.ContractID, l.Event, string(data)})
	}
	logs.Render()
}

func printReceipts(receipts []*contract.Receipt, total int) {
	table := newTable("Seq", "Block", "Event", "From", "Command", "Contract", "Function", "Status")
	for _, r := range receipts {
		table.Append([]string{
			strconv.FormatUint(r.Sequence, 10),
			strconv.FormatUint(r.BlockNumber, 10),
			r.EventID,
			r.From,
			string(r.Command),
			r.ContractID,
			r.Function,
			string(r.Status),
		})
	}
	table.SetFooter([]string{"", "", "", "", "", "", "total", strconv.Itoa(total)})
	table.Render()
}

func printf(format string, args ...interface{}) {
	fmt.Fprintf(stdout, format, args...)
}
