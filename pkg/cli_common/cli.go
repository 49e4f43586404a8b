package clicommon

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime/pprof"

	"github.com/fatih/color"
	"github.com/klothoplatform/infratopo/pkg/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type CommonConfig struct {
	verbose   LevelledFlag
	jsonLog   bool
	color     string
	profileTo string
}

func setupProfiling(commonCfg *CommonConfig) func() {
	if commonCfg.profileTo != "" {
		err := os.MkdirAll(filepath.Dir(commonCfg.profileTo), 0755)
		if err != nil {
			panic(fmt.Errorf("failed to create profile directory: %w", err))
		}
		profileF, err := os.OpenFile(commonCfg.profileTo, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
		if err != nil {
			panic(fmt.Errorf("failed to open profile file: %w", err))
		}
		err = pprof.StartCPUProfile(profileF)
		if err != nil {
			panic(fmt.Errorf("failed to start profile: %w", err))
		}
		return func() {
			pprof.StopCPUProfile()
			profileF.Close()
		}
	}
	return func() {}
}

// LogOpts translates the persistent flags into logger options. A single -v shows the assembler's debug output,
// -vv shows every builder's.
func (commonCfg *CommonConfig) LogOpts() logging.LogOpts {
	opts := logging.LogOpts{
		Verbose: commonCfg.verbose > 0,
		Color:   commonCfg.color,
		Levels: map[string]zapcore.Level{
			"network":  zap.InfoLevel,
			"identity": zap.InfoLevel,
			"datatier": zap.InfoLevel,
			"compute":  zap.InfoLevel,
			"edge":     zap.InfoLevel,
		},
	}
	if commonCfg.verbose > 1 {
		opts.Levels = nil
	}
	if commonCfg.jsonLog {
		opts.Encoding = "json"
	}
	return opts
}

func (commonCfg *CommonConfig) Verbose() bool {
	return commonCfg.verbose > 0
}

func (commonCfg *CommonConfig) JSONLog() bool {
	return commonCfg.jsonLog
}

func SetupRoot(root *cobra.Command, commonCfg *CommonConfig) {
	flags := root.PersistentFlags()
	flags.VarP(&commonCfg.verbose, "verbose", "v", "Enable verbose logging, repeat for more")
	flags.Lookup("verbose").NoOptDefVal = "true"
	flags.BoolVar(&commonCfg.jsonLog, "json-log", false, "Enable JSON logging")
	flags.StringVar(&commonCfg.color, "color", "auto", "Colorize output: auto, always or never")
	flags.StringVar(&commonCfg.profileTo, "profiling", "", "Profile to file")

	profileClose := func() {}

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		logger, err := commonCfg.LogOpts().NewLogger()
		if err != nil {
			return err
		}
		zap.ReplaceGlobals(logger)
		switch commonCfg.color {
		case "never", "off":
			color.NoColor = true
		case "always", "on":
			color.NoColor = false
		}
		cmd.SetContext(logging.WithLogger(cmd.Context(), logger))

		profileClose = setupProfiling(commonCfg)
		return nil
	}

	root.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		zap.L().Sync() //nolint:errcheck

		profileClose()
	}
}
