package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/okian/gmassign/internal/config"
	"github.com/okian/gmassign/pkg/logger"
	"github.com/okian/gmassign/pkg/metrics"
)

// rootOptions are the flags shared by every subcommand.
type rootOptions struct {
	configPath string
	database   string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Version:       "indev",
		Use:           "gmassign",
		Short:         "Assigns game masters to scheduled events",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	p := root.PersistentFlags()
	p.StringVar(&opts.configPath, "config", "", "YAML config file (defaults to $"+config.FileEnv+")")
	p.StringVar(&opts.database, "database", "", "SQLite database path, overrides database_path")

	root.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		return opts.load(cmd)
	}

	root.AddCommand(
		newServeCmd(opts),
		newBatchCmd(opts),
		newDiagnoseCmd(opts),
		newSeedCmd(opts),
	)
	return root
}

// load resolves configuration (defaults -> optional file -> env -> flags)
// and initializes logging from it.
func (o *rootOptions) load(cmd *cobra.Command) error {
	path := o.configPath
	if path == "" {
		path = os.Getenv(config.FileEnv)
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		return err
	}
	if o.database != "" {
		cfg.DatabasePath = o.database
	}
	if err := logger.InitWithFormat(cfg.LogFormat, cmd.ErrOrStderr()); err != nil {
		return err
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(cmd.Context(), "invalid log_level; falling back to info",
			logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	metrics.SetEnabled(cfg.MetricsEnabled)
	o.cfg = cfg
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Stderr.WriteString("gmassign: " + err.Error() + "\n")
		os.Exit(1)
	}
}
