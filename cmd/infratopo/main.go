package main

import (
	"os"

	"github.com/klothoplatform/infratopo/pkg/cli"
	clicommon "github.com/klothoplatform/infratopo/pkg/cli_common"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var commonCfg struct {
	clicommon.CommonConfig
}

var fs = afero.NewOsFs()

func main() {
	var rootCmd = &cobra.Command{
		Use:           "infratopo",
		Short:         "Compose the network, identity, data, compute and edge stacks of a web tier",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	clicommon.SetupRoot(rootCmd, &commonCfg.CommonConfig)

	rootCmd.AddCommand(newSynthCmd())
	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newGraphCmd())
	rootCmd.AddCommand(newDiffCmd())

	if err := rootCmd.Execute(); err != nil {
		errHandler().PrintErr(err)
		os.Exit(1)
	}
}

func errHandler() cli.ErrorHandler {
	return cli.ErrorHandler{
		Verbose: commonCfg.Verbose(),
		JSON:    commonCfg.JSONLog(),
		Out:     os.Stderr,
	}
}
