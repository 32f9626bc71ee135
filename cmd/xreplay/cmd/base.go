package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	xconf "github.com/xuperchain/xreplay/kernel/common/xconfig"
	"github.com/xuperchain/xreplay/kernel/engines"
	"github.com/xuperchain/xreplay/kernel/engines/xreplay"
)

const CmdLineName = "xreplay"

type BaseCmd struct {
	cmd *cobra.Command
}

func (t *BaseCmd) GetCmd() *cobra.Command {
	return t.cmd
}

// 全局参数
type GlobalFlags struct {
	// env config file, empty runs on built-in defaults
	EnvConf string
	// event log replayed before a query runs
	Feed string
	// table|json
	Output string
}

var global = &GlobalFlags{}

func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           CmdLineName + " <command> [arguments]",
		Short:         "Xreplay replays a ledger event log into deterministic contract state.",
		Long:          "Xreplay replays a ledger event log into deterministic contract state and queries the result.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Example:       CmdLineName + " replay events.jsonl --conf ./conf/env.yaml",
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&global.EnvConf, "conf", "c", "", "engine environment config file path")
	flags.StringVarP(&global.Feed, "feed", "f", "", "event log to replay before running a query")
	flags.StringVarP(&global.Output, "output", "o", outputTable, "output format: table|json")

	rootCmd.AddCommand(GetVersionCmd().GetCmd())
	rootCmd.AddCommand(GetReplayCmd().GetCmd())
	rootCmd.AddCommand(GetReceiptCmd().GetCmd())
	rootCmd.AddCommand(GetReceiptsCmd().GetCmd())
	rootCmd.AddCommand(GetTotalsCmd().GetCmd())
	rootCmd.AddCommand(GetStateCmd().GetCmd())
	rootCmd.AddCommand(GetCallCmd().GetCmd())
	rootCmd.AddCommand(GetProtocolsCmd().GetCmd())
	return rootCmd
}

func loadEnvConf(path string) (*xconf.EnvConf, error) {
	if path == "" {
		envConf := xconf.GetDefEnvConf()
		// 未指定配置时以当前目录为根
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		envConf.RootPath = wd
		return envConf, nil
	}
	return xconf.LoadEnvConf(path)
}

// openEngine creates the engine from the global flags and replays the
// --feed log when one is given
func openEngine(ctx context.Context) (*xreplay.XReplayEngine, *xconf.EnvConf, error) {
	envConf, err := loadEnvConf(global.EnvConf)
	if err != nil {
		return nil, nil, err
	}
	engine, err := engines.CreateBCEngine(xreplay.BCEngineName, envConf)
	if err != nil {
		return nil, nil, err
	}
	eng, err := xreplay.EngineConvert(engine)
	if err != nil {
		engine.Exit()
		return nil, nil, err
	}

	if global.Feed != "" {
		if _, err := replayFile(ctx, eng, global.Feed, 0); err != nil {
			eng.Exit()
			return nil, nil, fmt.Errorf("replay feed %s failed.err:%v", global.Feed, err)
		}
	}
	return eng, envConf, nil
}

// withEngine runs fn against an opened engine and closes it afterwards
func withEngine(cmd *cobra.Command, fn func(eng *xreplay.XReplayEngine) error) error {
	eng, _, err := openEngine(cmd.Context())
	if err != nil {
		return err
	}
	defer eng.Exit()
	return fn(eng)
}
