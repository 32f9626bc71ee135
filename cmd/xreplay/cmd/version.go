package cmd

import (
	"github.com/spf13/cobra"
)

// 编译时通过ldflags注入
var (
	buildVersion = "dev"
	commitHash   = ""
	buildDate    = ""
)

type VersionCmd struct {
	BaseCmd
}

func GetVersionCmd() *VersionCmd {
	versionCmdIns := new(VersionCmd)

	versionCmdIns.cmd = &cobra.Command{
		Use:     "version",
		Short:   "View process version information.",
		Example: CmdLineName + " version",
		Run: func(cmd *cobra.Command, args []string) {
			Version()
		},
	}

	return versionCmdIns
}

func Version() {
	printf("%s-%s %s\n", buildVersion, commitHash, buildDate)
}
