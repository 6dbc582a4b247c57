package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/jingkaihe/skillctl/pkg/lint"
	"github.com/jingkaihe/skillctl/pkg/report"
	"github.com/spf13/cobra"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON Schema of the lint report",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		data, err := report.Schema()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return err
	},
}

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List the lint rules",
	Long:  `List every lint rule with its effective severity. Disabled rules are marked as off.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		linter, err := lint.New(lintOptions(cfg))
		if err != nil {
			return err
		}
		return writeRules(cmd.OutOrStdout(), linter)
	},
}

func writeRules(w io.Writer, linter *lint.Linter) error {
	active := make(map[string]bool)
	for _, r := range linter.Active() {
		active[r.ID()] = true
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RULE\tSEVERITY\tDESCRIPTION")
	for _, r := range lint.Rules() {
		severity := "off"
		if active[r.ID()] {
			severity = string(linter.SeverityOf(r))
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.ID(), severity, r.Description())
	}
	return tw.Flush()
}
