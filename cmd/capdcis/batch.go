package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cap-dcis-prompt-server/internal/batch"
	"github.com/cap-dcis-prompt-server/internal/setup"
)

func (c *cli) batchCmd() *cobra.Command {
	var (
		concurrency int
		format      string
		output      string
		checklist   string
		envelope    bool
	)

	cmd := &cobra.Command{
		Use:   "batch <path>...",
		Short: "Assemble prompts for every case in files or directories",
		Long: `Reads cases from JSON, JSON Lines and YAML files. A file may hold a single
case, a list of cases or {"cases": [...]}. Each case is {"id": ..., "data": {...}}
or a bare data object, which is named after its file and position.

Exits with status 1 when any case was rejected or failed.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			cases, err := batch.Load(args...)
			if err != nil {
				return err
			}

			app, err := c.bootstrap(cmd, false, setup.Options{ChecklistFile: checklist})
			if err != nil {
				return err
			}
			defer app.Close()

			if concurrency <= 0 {
				concurrency = app.Config.Batch.Concurrency
			}
			results, summary := batch.NewRunner(app.Assembler, concurrency, envelope, app.Logger).Run(cmd.Context(), cases)

			w, closeOutput, err := openOutput(cmd, output)
			if err != nil {
				return err
			}
			if format == "json" {
				err = batch.WriteJSON(w, results)
			} else {
				err = batch.WriteText(w, results)
			}
			if cerr := closeOutput(); err == nil {
				err = cerr
			}
			if err != nil {
				return fmt.Errorf("writing report: %w", err)
			}

			if !summary.OK() {
				return &exitError{code: 1, err: fmt.Errorf("%d of %d cases did not assemble", summary.Total-summary.Assembled, summary.Total)}
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Cases assembled in parallel (default batch.concurrency)")
	cmd.Flags().StringVar(&format, "format", "text", "Report format (text, json)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the report to a file instead of stdout")
	cmd.Flags().StringVar(&checklist, "checklist", "", "Checklist definition YAML (default built-in)")
	cmd.Flags().BoolVar(&envelope, "envelope", false, "Include the system/user prompt envelope")
	return cmd
}
