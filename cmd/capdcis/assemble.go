package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cap-dcis-prompt-server/internal/batch"
	"github.com/cap-dcis-prompt-server/internal/domain"
	"github.com/cap-dcis-prompt-server/internal/service"
	"github.com/cap-dcis-prompt-server/internal/setup"
)

func (c *cli) assembleCmd() *cobra.Command {
	var (
		format    string
		checklist string
		envelope  bool
		caseID    string
		history   string
		reported  string
	)

	cmd := &cobra.Command{
		Use:   "assemble <file|->",
		Short: "Validate one case and print its prompt or violations",
		Long: `Reads one case as JSON (or YAML for .yaml/.yml files) from a file or stdin.
Prints the composed prompt, or every violation and exits with status 1.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			kase, err := batch.ParseCase(data, inputFormat(args[0]))
			if err != nil {
				return err
			}
			if caseID != "" {
				kase.ID = caseID
			}
			// flags override context read from the case file
			cc := kase.Context
			if cmd.Flags().Changed("history") {
				cc.ClinicalHistory = history
			}
			if cmd.Flags().Changed("report-date") {
				cc.ReportDate = reported
			}
			if kase.Context, err = cc.Normalize(); err != nil {
				return err
			}

			app, err := c.bootstrap(cmd, false, setup.Options{ChecklistFile: checklist, DisableCache: true})
			if err != nil {
				return err
			}
			defer app.Close()

			result, err := app.Assembler.Assemble(cmd.Context(), service.AssembleRequest{
				CaseID:          kase.ID,
				Source:          domain.SourceCLI,
				Data:            kase.Data,
				IncludeEnvelope: envelope,
				Context:         kase.Context,
			})

			out := cmd.OutOrStdout()
			var failure *domain.ValidationFailure
			switch {
			case err == nil:
				return writeAssembled(out, format, result)
			case errors.As(err, &failure):
				if werr := writeViolations(out, format, failure); werr != nil {
					return werr
				}
				return &exitError{code: 1, err: fmt.Errorf("case rejected with %d violations", len(failure.Violations))}
			default:
				return err
			}
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "Output format (text, json)")
	cmd.Flags().StringVar(&checklist, "checklist", "", "Checklist definition YAML (default built-in)")
	cmd.Flags().BoolVar(&envelope, "envelope", false, "Include the system/user prompt envelope")
	cmd.Flags().StringVar(&caseID, "id", "", "Case identifier recorded in the audit trail")
	cmd.Flags().StringVar(&history, "history", "", "Clinical history summary carried into the envelope")
	cmd.Flags().StringVar(&reported, "report-date", "", "Report date (YYYY-MM-DD) carried into the envelope")
	return cmd
}

func inputFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	}
	return "json"
}

func writeAssembled(w io.Writer, format string, result *service.AssembleResult) error {
	if format == "json" {
		return writeJSON(w, result)
	}
	if result.Envelope != nil {
		e := result.Envelope
		_, err := fmt.Fprintf(w, "# System\n%s\n\n# Reasoning\n%s\n\n# Instructions\n%s\n\n# User\n%s",
			e.System, e.Reasoning, e.Instructions, e.User)
		return err
	}
	_, err := fmt.Fprintln(w, result.Prompt)
	return err
}

func writeViolations(w io.Writer, format string, failure *domain.ValidationFailure) error {
	if format == "json" {
		return writeJSON(w, failure)
	}
	for _, v := range failure.Violations {
		if _, err := fmt.Fprintf(w, "%s [%s]: %s\n", v.Element, v.Reason, v.Message); err != nil {
			return err
		}
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
