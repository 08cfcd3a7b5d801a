package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ZanzyTHEbar/fceval/fceval/callparse"
	"github.com/ZanzyTHEbar/fceval/fceval/catalog"
	"github.com/ZanzyTHEbar/fceval/fceval/dataset"
	"github.com/ZanzyTHEbar/fceval/fceval/harness"
	"github.com/ZanzyTHEbar/fceval/fceval/matcher"
)

type checkOptions struct {
	category    string
	catalogPath string
	answerPath  string
	output      string
	strategy    string
}

func newCheckCmd(c *cli) *cobra.Command {
	opts := &checkOptions{}
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Grade one completion offline and print the verdict",
		Long: `Parses a completion in the [func(arg=value), ...] format and matches it
against a function catalog and ground truth. --output - reads the completion from stdin.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.check(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.category, "category", "", "test category (simple, parallel or multiple)")
	cmd.Flags().StringVar(&opts.catalogPath, "catalog", "", "JSON file with the function descriptions")
	cmd.Flags().StringVar(&opts.answerPath, "answer", "", "JSON file with the ground truth")
	cmd.Flags().StringVar(&opts.output, "output", "", "completion text, or - for stdin")
	cmd.Flags().StringVar(&opts.strategy, "strategy", "", "override eval.strategy")
	for _, name := range []string{"category", "catalog", "answer", "output"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func (c *cli) check(cmd *cobra.Command, opts *checkOptions) error {
	item, err := loadCheckItem(opts.catalogPath, opts.answerPath)
	if err != nil {
		return err
	}

	text := opts.output
	if text == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read completion: %w", err)
		}
		text = string(data)
	}

	strategy := c.cfg.Eval.Strategy
	if opts.strategy != "" {
		strategy = opts.strategy
	}

	verdict := harness.Grade(
		callparse.NewParser(callparse.WithLogger(c.logger)),
		harness.NewOutputGuard(c.cfg.Harness.MaxOutputSize),
		matcher.Checker{Strategy: matcher.ParseStrategy(strategy)},
		opts.category, item, text,
	)

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(verdict)
}

func loadCheckItem(catalogPath, answerPath string) (dataset.Item, error) {
	item := dataset.Item{ID: "check"}

	data, err := os.ReadFile(catalogPath)
	if err != nil {
		return item, fmt.Errorf("failed to read catalog: %w", err)
	}
	if err := json.Unmarshal(data, &item.RawFunctions); err != nil {
		return item, fmt.Errorf("catalog must be an array of function descriptions: %w", err)
	}
	item.Functions = make(catalog.Catalog, len(item.RawFunctions))
	for i, raw := range item.RawFunctions {
		if err := json.Unmarshal(raw, &item.Functions[i]); err != nil {
			return item, fmt.Errorf("function %d: %w", i+1, err)
		}
	}

	data, err = os.ReadFile(answerPath)
	if err != nil {
		return item, fmt.Errorf("failed to read answer: %w", err)
	}
	if err := json.Unmarshal(data, &item.Answers); err != nil {
		return item, fmt.Errorf("failed to decode answer: %w", err)
	}
	return item, nil
}
