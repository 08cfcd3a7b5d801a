// Command fceval scores function-calling completions against ground truth.
package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ZanzyTHEbar/fceval/fceval/config"
)

// cli holds state shared by the subcommands.
type cli struct {
	configPath string
	logLevel   string

	cfg    *config.Config
	logger zerolog.Logger
	stderr io.Writer
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{stderr: os.Stderr, logger: zerolog.Nop()}

	root := &cobra.Command{
		Use:           "fceval",
		Short:         "Evaluate function-calling models on simple, parallel and multiple call tasks",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd)
		},
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default: ./config.yaml)")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "override log.level")

	root.AddCommand(
		newRunCmd(c),
		newCheckCmd(c),
		newValidateCmd(c),
	)
	return root
}

func (c *cli) setup(cmd *cobra.Command) error {
	cfg, err := config.LoadConfig(c.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if c.logLevel != "" {
		cfg.Log.Level = c.logLevel
	}
	c.cfg = cfg

	out := cmd.ErrOrStderr()
	if cfg.Log.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}
	// The global level gates output so a watched config can change it mid-run.
	zerolog.SetGlobalLevel(cfg.Log.ParseLevel())
	c.logger = zerolog.New(out).With().Timestamp().Logger()
	return nil
}

// applyReload follows log.level changes of a watched config file. A --log-level
// flag takes precedence.
func (c *cli) applyReload(next *config.Config, e fsnotify.Event) {
	if c.logLevel != "" {
		return
	}
	level := next.Log.ParseLevel()
	zerolog.SetGlobalLevel(level)
	c.logger.Info().Str("file", e.Name).Str("level", level.String()).Msg("Log level reloaded")
}
