package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cap-dcis-prompt-server/internal/checklist"
	"github.com/cap-dcis-prompt-server/internal/domain"
	"github.com/cap-dcis-prompt-server/internal/setup"
)

func (c *cli) checklistCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checklist",
		Short: "Inspect and validate checklist definitions",
	}

	var format string
	describe := &cobra.Command{
		Use:   "describe [file]",
		Short: "Print the sections and data elements of a checklist",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			schema, err := setup.LoadSchema(optionalArg(args))
			if err != nil {
				return err
			}
			if format == "json" {
				return writeJSON(cmd.OutOrStdout(), schema.Describe())
			}
			return writeDescription(cmd.OutOrStdout(), schema)
		},
	}
	describe.Flags().StringVar(&format, "format", "text", "Output format (text, json)")

	validate := &cobra.Command{
		Use:   "validate [file]",
		Short: "Check that a checklist definition builds into a schema",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, err := setup.LoadSchema(optionalArg(args))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "checklist %s is valid: %d elements in %d sections\n",
				schema.Version(), schema.Len(), len(schema.Sections()))
			return err
		},
	}

	def := &cobra.Command{
		Use:   "default",
		Short: "Print the built-in checklist definition as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := cmd.OutOrStdout().Write(checklist.DefaultDefinition())
			return err
		},
	}

	cmd.AddCommand(describe, validate, def)
	return cmd
}

func optionalArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func writeDescription(w io.Writer, schema *checklist.Schema) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)\n", schema.Title(), schema.Version())
	for _, sec := range schema.Describe().Sections {
		fmt.Fprintf(&b, "\n%s\n", sec.Heading)
		for _, el := range sec.Elements {
			fmt.Fprintf(&b, "  %-28s %-18s %s\n", el.ID, el.Kind, requirement(el))
			if len(el.Domain) > 0 {
				fmt.Fprintf(&b, "  %-28s one of: %s\n", "", strings.Join(el.Domain, ", "))
			}
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func requirement(el domain.DataElement) string {
	if el.Required {
		return "required"
	}
	if len(el.Rules) == 0 {
		return "optional"
	}
	conds := make([]string, len(el.Rules))
	for i, r := range el.Rules {
		conds[i] = r.Condition.String()
	}
	return "required when " + strings.Join(conds, " or ")
}
