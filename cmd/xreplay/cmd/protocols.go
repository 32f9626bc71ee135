package cmd

import (
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xuperchain/xreplay/kernel/contract"
	"github.com/xuperchain/xreplay/kernel/engines/xreplay"
)

type ProtocolsCmd struct {
	BaseCmd
}

type protocolInfo struct {
	Name      string   `json:"name"`
	Version   uint64   `json:"version"`
	Functions []string `json:"functions"`
}

func describe(def contract.ProtocolDefinition) protocolInfo {
	info := protocolInfo{Name: def.Name, Version: def.Version}
	for name, fn := range def.Functions {
		params := make([]string, 0, len(fn.Params))
		for _, p := range fn.Params {
			params = append(params, p.Name+" "+string(p.Type))
		}
		sig := name + "(" + strings.Join(params, ", ") + ")"
		if fn.IsReadOnly() {
			sig += " view"
		}
		if fn.IsInternal() {
			sig += " internal"
		}
		info.Functions = append(info.Functions, sig)
	}
	sort.Strings(info.Functions)
	return info
}

func GetProtocolsCmd() *ProtocolsCmd {
	protocolsCmdIns := new(ProtocolsCmd)

	protocolsCmdIns.cmd = &cobra.Command{
		Use:           "protocols",
		Short:         "List registered contract protocols.",
		Example:       CmdLineName + " protocols --conf ./conf/env.yaml",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, func(eng *xreplay.XReplayEngine) error {
				var infos []protocolInfo
				for _, def := range eng.Protocols() {
					infos = append(infos, describe(def))
				}
				if isJSON() {
					return printJSON(infos)
				}
				table := newTable("Protocol", "Version", "Functions")
				for _, info := range infos {
					table.Append([]string{info.Name, strconv.FormatUint(info.Version, 10),
						strings.Join(info.Functions, "\n")})
				}
				table.Render()
				return nil
			})
		},
	}

	return protocolsCmdIns
}
