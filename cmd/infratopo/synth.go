package main

import (
	"fmt"
	"sort"

	"github.com/fatih/color"
	"github.com/klothoplatform/infratopo/pkg/cli"
	"github.com/klothoplatform/infratopo/pkg/config"
	"github.com/klothoplatform/infratopo/pkg/logging"
	"github.com/klothoplatform/infratopo/pkg/provisioning"
	"github.com/klothoplatform/infratopo/pkg/topology"
	"github.com/spf13/cobra"
)

var synthConfig struct {
	outputDir string
}

func newSynthCmd() *cobra.Command {
	var synthCommand = &cobra.Command{
		Use:   "synth [profile]",
		Short: "Assemble a profile and write its topology document",
		Args:  cobra.ExactArgs(1),
		RunE:  synth,
	}
	flags := synthCommand.Flags()
	flags.StringVarP(&synthConfig.outputDir, "output", "o", "out", "Directory to write the topology document to")
	return synthCommand
}

func synth(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	log := logging.GetLogger(ctx).Sugar()

	profile, err := cli.ResolveProfile(fs, args[0])
	if err != nil {
		return err
	}
	topo, err := topology.Assemble(ctx, profile, config.Environment())
	if err != nil {
		return err
	}
	outputs, err := topo.Deploy(ctx, provisioning.NewFileBackend(fs, synthConfig.outputDir))
	if err != nil {
		return err
	}
	log.Infof("Wrote %d resources for %s to %s", topo.Registry.Len(), profile.Name, synthConfig.outputDir)

	names := make([]string, 0, len(outputs))
	for name := range outputs {
		names = append(names, name)
	}
	sort.Strings(names)
	out := cmd.OutOrStdout()
	for _, name := range names {
		fmt.Fprintf(out, "%s = %s\n", color.CyanString(name), outputs[name])
	}
	return nil
}
