package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ZanzyTHEbar/fceval/fceval/catalog"
	"github.com/ZanzyTHEbar/fceval/fceval/dataset"
)

var errInvalidSamples = errors.New("samples contain invalid function descriptions")

func newValidateCmd(c *cli) *cobra.Command {
	var samples string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the function descriptions of a samples file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.validate(cmd, samples)
		},
	}
	cmd.Flags().StringVar(&samples, "samples", "", "samples file (<category>_FC.json)")
	_ = cmd.MarkFlagRequired("samples")
	return cmd
}

func (c *cli) validate(cmd *cobra.Command, path string) error {
	items, err := dataset.LoadSamples(path)
	if err != nil {
		return err
	}
	validator, err := catalog.NewValidator()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	invalid := 0
	for _, item := range items {
		if err := validator.ValidateCatalog(item.RawFunctions); err != nil {
			invalid++
			fmt.Fprintf(out, "%s: %v\n", item.ID, err)
		}
	}
	fmt.Fprintf(out, "%d items checked, %d invalid\n", len(items), invalid)

	if invalid > 0 {
		return errInvalidSamples
	}
	c.logger.Debug().Str("samples", path).Int("items", len(items)).Msg("Samples valid")
	return nil
}
