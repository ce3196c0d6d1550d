package main

import (
	"fmt"
	"os"

	"github.com/binzume/pmxutil/internal/config"
	"github.com/binzume/pmxutil/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const version = "0.1.0"

// app carries what every subcommand needs once flags are parsed.
type app struct {
	flags *config.Flags
	cfg   *config.Config
	log   *zap.Logger
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(a.flags)
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Logging.Level, cfg.Logging.File)
	if err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	a.cfg = cfg
	a.log = log
	return nil
}

func (a *app) teardown(cmd *cobra.Command, args []string) {
	logger.Sync(a.log)
}

func newRootCmd() *cobra.Command {
	a := &app{}
	rootCmd := &cobra.Command{
		Use:               "pmxutil",
		Short:             "Read, re-encode and export MikuMikuDance PMX models",
		Version:           version,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: a.teardown,
	}
	a.flags = config.BindFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(
		newConvertCmd(a),
		newGLTFCmd(a),
		newInfoCmd(a),
		newConfigCmd(),
	)
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
