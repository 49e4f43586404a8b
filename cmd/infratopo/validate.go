package main

import (
	"fmt"
	"runtime"

	"github.com/fatih/color"
	"github.com/klothoplatform/infratopo/pkg/cli"
	"github.com/klothoplatform/infratopo/pkg/config"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var validateConfig struct {
	workers int
}

func newValidateCmd() *cobra.Command {
	var validateCommand = &cobra.Command{
		Use:   "validate [profile or glob]...",
		Short: "Assemble profiles without writing anything",
		Args:  cobra.MinimumNArgs(1),
		RunE:  validate,
	}
	flags := validateCommand.Flags()
	flags.IntVarP(&validateConfig.workers, "workers", "w", runtime.NumCPU(), "Number of profiles to assemble concurrently")
	return validateCommand
}

func validate(cmd *cobra.Command, args []string) error {
	paths, err := cli.ExpandProfiles(fs, args)
	if err != nil {
		return err
	}
	results := cli.ValidateProfiles(cmd.Context(), fs, paths, config.Environment(), validateConfig.workers)

	out := cmd.OutOrStdout()
	failed := 0
	for _, r := range results {
		if r.Err == nil {
			fmt.Fprintf(out, "%s %s\n", color.GreenString("ok  "), r.Path)
			continue
		}
		failed++
		fmt.Fprintf(out, "%s %s\n", color.RedString("fail"), r.Path)
		errHandler().PrintErr(r.Err)
	}
	if failed > 0 {
		return errors.Errorf("%d of %d profiles failed validation", failed, len(results))
	}
	return nil
}
