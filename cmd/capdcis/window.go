package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cap-dcis-prompt-server/pkg/textwindow"
)

func (c *cli) windowCmd() *cobra.Command {
	var (
		size    int
		overlap int
		format  string
	)

	cmd := &cobra.Command{
		Use:   "window <file|->",
		Short: "Split long text into overlapping token windows",
		Long: `Splits text on whitespace into windows of --size tokens, each sharing
--overlap tokens with the previous one, for feeding long reports to models
with small context limits.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			w, err := textwindow.New(size, overlap)
			if err != nil {
				return err
			}
			text, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}

			windows := w.Generate(string(text))
			if format == "json" {
				if windows == nil {
					windows = []string{}
				}
				return writeJSON(cmd.OutOrStdout(), windows)
			}

			var b strings.Builder
			for i, win := range windows {
				fmt.Fprintf(&b, "--- window %d/%d ---\n%s\n", i+1, len(windows), win)
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), b.String())
			return err
		},
	}

	cmd.Flags().IntVar(&size, "size", 512, "Tokens per window")
	cmd.Flags().IntVar(&overlap, "overlap", 64, "Tokens shared by consecutive windows")
	cmd.Flags().StringVar(&format, "format", "text", "Output format (text, json)")
	return cmd
}
