package main

import (
	"io"

	"github.com/klothoplatform/infratopo/pkg/cli"
	"github.com/klothoplatform/infratopo/pkg/config"
	"github.com/klothoplatform/infratopo/pkg/topology"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var graphConfig struct {
	output string
}

func newGraphCmd() *cobra.Command {
	var graphCommand = &cobra.Command{
		Use:   "graph [profile]",
		Short: "Print the dependency graph of a profile in DOT format",
		Args:  cobra.ExactArgs(1),
		RunE:  graph,
	}
	flags := graphCommand.Flags()
	flags.StringVarP(&graphConfig.output, "output", "o", "", "File to write the graph to, stdout if empty")
	return graphCommand
}

func graph(cmd *cobra.Command, args []string) error {
	profile, err := cli.ResolveProfile(fs, args[0])
	if err != nil {
		return err
	}
	topo, err := topology.Assemble(cmd.Context(), profile, config.Environment())
	if err != nil {
		return err
	}
	doc, err := topo.Document()
	if err != nil {
		return err
	}

	var out io.Writer = cmd.OutOrStdout()
	if graphConfig.output != "" {
		f, err := fs.Create(graphConfig.output)
		if err != nil {
			return errors.Wrapf(err, "could not create %s", graphConfig.output)
		}
		defer f.Close()
		out = f
	}
	return doc.WriteDOT(out)
}
