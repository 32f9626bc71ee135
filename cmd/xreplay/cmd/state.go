package cmd

import (
	"encoding/json"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/xuperchain/xreplay/kernel/engines/xreplay"
)

type StateCmd struct {
	BaseCmd
}

func GetStateCmd() *StateCmd {
	stateCmdIns := new(StateCmd)

	stateCmdIns.cmd = &cobra.Command{
		Use:           "state [contract-id]",
		Short:         "Dump the storage of a contract, or the global state digest without one.",
		Example:       CmdLineName + " state 0x5fbd... --feed events.jsonl",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, func(eng *xreplay.XReplayEngine) error {
				if len(args) == 0 {
					digest, err := eng.StateDigest()
					if err != nil {
						return err
					}
					last, _ := eng.LastSequence()
					if isJSON() {
						return printJSON(map[string]interface{}{"digest": digest, "lastSequence": last})
					}
					printKV([2]string{"State", "Value"}, map[string]string{
						"digest":        digest,
						"last sequence": strconv.FormatUint(last, 10),
					})
					return nil
				}

				inst, err := eng.GetContract(args[0])
				if err != nil {
					return err
				}
				state, err := eng.GetContractState(inst.ContractID)
				if err != nil {
					return err
				}
				if isJSON() {
					return printJSON(map[string]interface{}{"contract": inst, "state": state})
				}
				meta, _ := json.Marshal(inst)
				printf("%s\n", meta)
				printKV([2]string{"Key", "Value"}, state)
				return nil
			})
		},
	}

	return stateCmdIns
}

type CallCmd struct {
	BaseCmd
}

func GetCallCmd() *CallCmd {
	callCmdIns := new(CallCmd)

	var rawArgs string

	callCmdIns.cmd = &cobra.Command{
		Use:           "call <contract-id> <function>",
		Short:         "Static call a read-only contract function.",
		Example:       CmdLineName + ` call 0x5fbd... balanceOf --args '{"account":"0xc217..."}'`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			callArgs := make(map[string]interface{})
			if rawArgs != "" {
				if err := json.Unmarshal([]byte(rawArgs), &callArgs); err != nil {
					return err
				}
			}
			return withEngine(cmd, func(eng *xreplay.XReplayEngine) error {
				resp, err := eng.StaticCall(args[0], args[1], callArgs)
				if err != nil {
					return err
				}
				if isJSON() {
					return printJSON(map[string]interface{}{"result": string(resp.Body)})
				}
				printf("%s\n", resp.Body)
				return nil
			})
		},
	}

	callCmdIns.cmd.Flags().StringVar(&rawArgs, "args", "", "function arguments as a json object")

	return callCmdIns
}
