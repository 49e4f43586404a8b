package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/klothoplatform/infratopo/pkg/cli"
	"github.com/klothoplatform/infratopo/pkg/config"
	"github.com/klothoplatform/infratopo/pkg/topology"
	"github.com/r3labs/diff"
	"github.com/spf13/cobra"
)

func newDiffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diff [from profile] [to profile]",
		Short: "Show the resource changes between two profiles",
		Args:  cobra.ExactArgs(2),
		RunE:  diffProfiles,
	}
}

func diffProfiles(cmd *cobra.Command, args []string) error {
	env := config.Environment()
	var topos [2]*topology.Topology
	for i, arg := range args {
		profile, err := cli.ResolveProfile(fs, arg)
		if err != nil {
			return err
		}
		if topos[i], err = topology.Assemble(cmd.Context(), profile, env); err != nil {
			return err
		}
	}
	changes, err := topology.Diff(topos[0], topos[1])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(changes) == 0 {
		fmt.Fprintln(out, "no changes")
		return nil
	}
	for _, c := range changes {
		line := topology.FormatChange(c)
		switch c.Type {
		case diff.CREATE:
			line = color.GreenString(line)
		case diff.DELETE:
			line = color.RedString(line)
		default:
			line = color.YellowString(line)
		}
		fmt.Fprintln(out, line)
	}
	return nil
}
