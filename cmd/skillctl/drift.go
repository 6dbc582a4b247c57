package main

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/jingkaihe/skillctl/pkg/config"
	"github.com/jingkaihe/skillctl/pkg/drift"
	"github.com/spf13/cobra"
)

// DriftConfig holds configuration for the drift command
type DriftConfig struct {
	Base   string
	Trees  []string
	Skills []string
	Diff   bool
	All    bool
	JSON   bool
	Strict bool
}

// NewDriftConfig creates a DriftConfig with default values
func NewDriftConfig() *DriftConfig {
	return &DriftConfig{Base: "skills"}
}

var driftCmd = &cobra.Command{
	Use:   "drift [skills...]",
	Short: "Compare mirrored skill trees against a base tree",
	Long: `Compare every skill file of the other trees with the base tree and report
files that are modified, missing from a tree or only present in it.

With --strict the command exits with status 1 when any drift is found.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dc := getDriftConfigFromFlags(cmd)
		dc.Skills = args

		drifted, err := runDrift(cmd.Context(), cfg, dc, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		if drifted && dc.Strict {
			return errCheckFailed
		}
		return nil
	},
}

func init() {
	defaults := NewDriftConfig()
	driftCmd.Flags().String("base", defaults.Base, "Tree the others are compared against")
	driftCmd.Flags().StringSlice("against", nil, "Trees to compare, every other tree when empty")
	driftCmd.Flags().Bool("diff", false, "Print unified diffs of modified files")
	driftCmd.Flags().Bool("all", false, "Also list identical files")
	driftCmd.Flags().Bool("json", false, "Print JSON")
	driftCmd.Flags().Bool("strict", false, "Exit with status 1 when drift is found")
}

func getDriftConfigFromFlags(cmd *cobra.Command) *DriftConfig {
	dc := NewDriftConfig()
	if base, err := cmd.Flags().GetString("base"); err == nil {
		dc.Base = base
	}
	if trees, err := cmd.Flags().GetStringSlice("against"); err == nil {
		dc.Trees = trees
	}
	if diff, err := cmd.Flags().GetBool("diff"); err == nil {
		dc.Diff = diff
	}
	if all, err := cmd.Flags().GetBool("all"); err == nil {
		dc.All = all
	}
	if asJSON, err := cmd.Flags().GetBool("json"); err == nil {
		dc.JSON = asJSON
	}
	if strict, err := cmd.Flags().GetBool("strict"); err == nil {
		dc.Strict = strict
	}
	return dc
}

// runDrift prints the comparison and reports whether anything drifted
func runDrift(ctx context.Context, c config.Config, dc *DriftConfig, out io.Writer) (bool, error) {
	corpus, err := loadCorpus(ctx, c, nil)
	if err != nil {
		return false, err
	}

	result, err := drift.Compare(corpus, dc.Base, drift.Options{
		Diff:   dc.Diff || dc.JSON,
		Trees:  dc.Trees,
		Skills: dc.Skills,
	})
	if err != nil {
		return false, err
	}
	drifted := len(result.Changed()) > 0

	if dc.JSON {
		return drifted, writeJSON(out, struct {
			*drift.Result
			Summary drift.Summary `json:"summary"`
		}{result, result.Summary()})
	}

	entries := result.Changed()
	if dc.All {
		entries = result.Entries
	}
	for _, e := range entries {
		target := e.Skill
		if e.File != "" {
			target += "/" + e.File
		}
		fmt.Fprintf(out, "%s  %-14s %s\n", statusColor(e.Status).Sprintf("%-9s", e.Status), e.Tree, target)
		if dc.Diff && e.Diff != "" {
			fmt.Fprintln(out, e.Diff)
		}
	}

	s := result.Summary()
	fmt.Fprintf(out, "\nbase %s: %d identical, %d modified, %d missing, %d extra\n",
		result.Base, s.Identical, s.Modified, s.Missing, s.Extra)
	return drifted, nil
}

func statusColor(s drift.Status) *color.Color {
	switch s {
	case drift.StatusModified:
		return color.New(color.FgYellow)
	case drift.StatusMissing:
		return color.New(color.FgRed)
	case drift.StatusExtra:
		return color.New(color.FgCyan)
	default:
		return color.New(color.FgGreen)
	}
}
