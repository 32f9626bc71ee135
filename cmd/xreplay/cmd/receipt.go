package cmd

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/xuperchain/xreplay/kernel/engines/xreplay"
	"github.com/xuperchain/xreplay/kernel/ledger"
)

type ReceiptCmd struct {
	BaseCmd
}

func GetReceiptCmd() *ReceiptCmd {
	receiptCmdIns := new(ReceiptCmd)

	receiptCmdIns.cmd = &cobra.Command{
		Use:           "receipt <event-id>",
		Short:         "Query the receipt of one event by tx hash or sequence.",
		Example:       CmdLineName + " receipt 0x3f2a... --conf ./conf/env.yaml",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, func(eng *xreplay.XReplayEngine) error {
				r, err := eng.GetReceipt(args[0])
				if err != nil {
					return err
				}
				if isJSON() {
					return printJSON(r)
				}
				printReceipt(r)
				return nil
			})
		},
	}

	return receiptCmdIns
}

type ReceiptsCmd struct {
	BaseCmd
}

func GetReceiptsCmd() *ReceiptsCmd {
	receiptsCmdIns := new(ReceiptsCmd)

	var (
		block         string
		page, perPage int
		filter        ledger.Filter
	)

	receiptsCmdIns.cmd = &cobra.Command{
		Use:           "receipts",
		Short:         "List receipts newest first.",
		Example:       CmdLineName + " receipts --to 0x5fbd... --page 2 --per-page 20",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if block != "" {
				n, err := strconv.ParseUint(block, 10, 64)
				if err != nil {
					return err
				}
				filter.BlockNumber = &n
			}
			return withEngine(cmd, func(eng *xreplay.XReplayEngine) error {
				receipts, total, err := eng.ListReceipts(&filter, page, perPage)
				if err != nil {
					return err
				}
				if isJSON() {
					return printJSON(map[string]interface{}{"result": receipts, "count": total})
				}
				printReceipts(receipts, total)
				return nil
			})
		},
	}

	flags := receiptsCmdIns.cmd.Flags()
	flags.StringVar(&block, "block", "", "only receipts of this block number")
	flags.StringVar(&filter.From, "from", "", "only receipts sent by this address")
	flags.StringVar(&filter.To, "to", "", "only receipts touching this contract")
	flags.StringVar(&filter.ToOrFrom, "to-or-from", "", "receipts sent by or touching this address")
	flags.IntVar(&page, "page", 1, "page number, starting at 1")
	flags.IntVar(&perPage, "per-page", ledger.DefaultPerPage, "page size, at most 50")

	return receiptsCmdIns
}

type TotalsCmd struct {
	BaseCmd
}

func GetTotalsCmd() *TotalsCmd {
	totalsCmdIns := new(TotalsCmd)

	totalsCmdIns.cmd = &cobra.Command{
		Use:           "totals",
		Short:         "Count receipts and distinct senders.",
		Example:       CmdLineName + " totals --conf ./conf/env.yaml",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, func(eng *xreplay.XReplayEngine) error {
				totals, err := eng.Totals()
				if err != nil {
					return err
				}
				if isJSON() {
					return printJSON(map[string]interface{}{"result": totals})
				}
				printKV([2]string{"Total", "Count"}, map[string]string{
					"transaction_count":         strconv.Itoa(totals.TransactionCount),
					"unique_from_address_count": strconv.Itoa(totals.UniqueFromAddressCount),
				})
				return nil
			})
		},
	}

	return totalsCmdIns
}
