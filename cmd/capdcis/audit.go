package main

import (
	"bytes"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cap-dcis-prompt-server/internal/setup"
)

var errNoAuditStore = errors.New("no audit store configured (database.driver is none)")

func (c *cli) auditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect, export and import the assembly audit trail",
	}

	openStore := func(cmd *cobra.Command) (*setup.App, error) {
		app, err := c.bootstrap(cmd, false, setup.Options{DisableCache: true})
		if err != nil {
			return nil, err
		}
		if app.Audit == nil {
			app.Close()
			return nil, errNoAuditStore
		}
		return app, nil
	}

	var output string
	export := &cobra.Command{
		Use:   "export",
		Short: "Write every audit record as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			w, closeOutput, err := openOutput(cmd, output)
			if err != nil {
				return err
			}
			err = app.Audit.ExportJSON(cmd.Context(), w)
			if cerr := closeOutput(); err == nil {
				err = cerr
			}
			return err
		},
	}
	export.Flags().StringVarP(&output, "output", "o", "", "Write to a file instead of stdout")

	imp := &cobra.Command{
		Use:   "import <file|->",
		Short: "Load audit records from a JSON export, skipping records already stored",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			app, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			imported, skipped, err := app.Audit.ImportJSON(cmd.Context(), bytes.NewReader(data))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "imported %d records, skipped %d\n", imported, skipped)
			return err
		},
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "Show the most recent assemblies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			records, err := app.Audit.List(cmd.Context(), limit, 0)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CREATED\tCASE\tSOURCE\tSTATUS\tVIOLATIONS\tDURATION")
			for _, r := range records {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%dms\n",
					r.CreatedAt.Format(time.RFC3339), r.CaseID, r.Source, r.Status, r.ViolationCount, r.DurationMS)
			}
			return tw.Flush()
		},
	}
	list.Flags().IntVar(&limit, "limit", 20, "Number of records to show")

	var olderThan time.Duration
	purge := &cobra.Command{
		Use:   "purge",
		Short: "Delete audit records older than a retention period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return errors.New("--older-than must be positive")
			}
			app, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			removed, err := app.Audit.Purge(cmd.Context(), time.Now().Add(-olderThan))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "purged %d records\n", removed)
			return err
		},
	}
	purge.Flags().DurationVar(&olderThan, "older-than", 90*24*time.Hour, "Retention period")

	cmd.AddCommand(export, imp, list, purge)
	return cmd
}
