package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ZanzyTHEbar/fceval/fceval/config"
	"github.com/ZanzyTHEbar/fceval/fceval/db"
	"github.com/ZanzyTHEbar/fceval/fceval/harness"
	"github.com/ZanzyTHEbar/fceval/fceval/matcher"
)

type runOptions struct {
	categories  []string
	concurrency int
	strategy    string
	noStore     bool
	details     bool
	watchConfig bool
}

func newRunCmd(c *cli) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the evaluation and print the per-category summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return c.run(ctx, cmd, opts)
		},
	}
	cmd.Flags().StringSliceVar(&opts.categories, "category", nil, "categories to evaluate (default: eval.categories)")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 0, "override eval.concurrency")
	cmd.Flags().StringVar(&opts.strategy, "strategy", "", "override eval.strategy (first_fit or maximum)")
	cmd.Flags().BoolVar(&opts.noStore, "no-store", false, "do not persist results")
	cmd.Flags().BoolVar(&opts.details, "details", false, "include per-item results in the output")
	cmd.Flags().BoolVar(&opts.watchConfig, "watch-config", false, "reload log.level when the config file changes")
	return cmd
}

func (c *cli) run(ctx context.Context, cmd *cobra.Command, opts *runOptions) error {
	cfg := *c.cfg
	if len(opts.categories) > 0 {
		cfg.Eval.Categories = opts.categories
	}
	if opts.concurrency > 0 {
		cfg.Eval.Concurrency = opts.concurrency
	}
	if opts.strategy != "" {
		cfg.Eval.Strategy = opts.strategy
	}
	if opts.noStore {
		cfg.Store.Enabled = false
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if opts.watchConfig {
		if _, err := config.WatchConfig(c.configPath, c.logger, c.applyReload); err != nil {
			if !errors.Is(err, config.ErrNoConfigFile) {
				return fmt.Errorf("failed to watch config: %w", err)
			}
			c.logger.Debug().Msg("No config file to watch")
		}
	}

	var conn *sql.DB
	if cfg.Store.Enabled {
		var err error
		conn, err = db.Open(ctx, cfg.Store.Database.DSN, c.logger)
		if err != nil {
			return fmt.Errorf("failed to open result store: %w", err)
		}
		defer conn.Close()
	}

	runner, err := harness.NewFactory(&cfg, conn, c.logger).CreateRunner(nil)
	if err != nil {
		return err
	}

	report, err := runner.Run(ctx, cfg.Eval.Categories)
	if err != nil {
		return err
	}

	c.logger.Info().Str("run_id", report.RunID).Float64("fc_score", report.FCScore).Msg("Evaluation finished")

	summaries := report.Summaries()
	var out any = struct {
		RunID     string                 `json:"run_id"`
		Summaries []harness.Summary      `json:"summaries"`
		Reasons   map[matcher.Reason]int `json:"reasons"`
		FCScore   float64                `json:"fc_score"`
	}{report.RunID, summaries, harness.ReasonCounts(summaries), report.FCScore}
	if opts.details {
		out = report
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
