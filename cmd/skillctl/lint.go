package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/jingkaihe/skillctl/pkg/config"
	"github.com/jingkaihe/skillctl/pkg/lint"
	"github.com/jingkaihe/skillctl/pkg/logger"
	"github.com/jingkaihe/skillctl/pkg/presenter"
	"github.com/jingkaihe/skillctl/pkg/report"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// errCheckFailed makes the process exit 1 without printing an error, the
// report already explains why
var errCheckFailed = errors.New("check failed")

// LintRunConfig holds the per-invocation lint flags that are not part of
// the persistent configuration
type LintRunConfig struct {
	Paths          []string
	UpdateBaseline bool
	Record         bool
}

var lintCmd = &cobra.Command{
	Use:   "lint [paths...]",
	Short: "Check skills against the authoring conventions",
	Long: `Check every skill of the configured trees, or only the given skill and tree
directories, for frontmatter, naming, length, link and consistency problems.

The command exits with status 1 when a finding reaches the --fail-on severity.
Findings recorded in the baseline file are suppressed.`,
	Args: cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		run := getLintRunConfigFromFlags(cmd)
		run.Paths = args

		failOn, err := lint.ParseFailOn(cfg.Lint.FailOn)
		if err != nil {
			return err
		}

		rep, err := runLint(cmd.Context(), cfg, run, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		if rep != nil && rep.Failed(failOn) {
			return errCheckFailed
		}
		return nil
	},
}

func init() {
	lintCmd.Flags().StringP("format", "f", "text", "Report format (text, json, github)")
	lintCmd.Flags().String("fail-on", "error", "Lowest severity that fails the run (error, warning, info, never)")
	lintCmd.Flags().String("baseline", "", "Baseline file of accepted findings")
	lintCmd.Flags().Bool("update-baseline", false, "Write the current findings to the baseline file and exit")
	lintCmd.Flags().Bool("record", false, "Record the run and its findings in the catalog")
	lintCmd.Flags().StringSlice("disable", nil, "Rule ID patterns to disable")
	lintCmd.Flags().StringSlice("enable", nil, "Rule ID patterns to enable, every rule when empty")

	viper.BindPFlag("lint.format", lintCmd.Flags().Lookup("format"))
	viper.BindPFlag("lint.fail_on", lintCmd.Flags().Lookup("fail-on"))
	viper.BindPFlag("lint.baseline", lintCmd.Flags().Lookup("baseline"))
	viper.BindPFlag("lint.disable", lintCmd.Flags().Lookup("disable"))
	viper.BindPFlag("lint.enable", lintCmd.Flags().Lookup("enable"))
}

func getLintRunConfigFromFlags(cmd *cobra.Command) LintRunConfig {
	var run LintRunConfig
	if update, err := cmd.Flags().GetBool("update-baseline"); err == nil {
		run.UpdateBaseline = update
	}
	if record, err := cmd.Flags().GetBool("record"); err == nil {
		run.Record = record
	}
	return run
}

// runLint lints the corpus and writes the report to out. The report is nil
// when the run only updated the baseline.
func runLint(ctx context.Context, c config.Config, run LintRunConfig, out io.Writer) (*report.Report, error) {
	writer, err := report.NewWriter(c.Lint.Format)
	if err != nil {
		return nil, err
	}
	if run.UpdateBaseline && c.Lint.Baseline == "" {
		return nil, errors.New("--update-baseline requires a baseline file (--baseline or lint.baseline)")
	}

	corpus, err := loadCorpus(ctx, c, run.Paths)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load skills")
	}

	linter, err := lint.New(lintOptions(c))
	if err != nil {
		return nil, errors.Wrap(err, "invalid lint configuration")
	}
	result, err := linter.Run(ctx, corpus)
	if err != nil {
		return nil, err
	}

	if run.UpdateBaseline {
		if err := lint.WriteBaseline(c.Lint.Baseline, result.Findings); err != nil {
			return nil, err
		}
		presenter.Success(fmt.Sprintf("Recorded %d findings in %s", len(result.Findings), c.Lint.Baseline))
		return nil, nil
	}

	suppressed := 0
	if c.Lint.Baseline != "" {
		baseline, err := lint.LoadBaseline(c.Lint.Baseline)
		if err != nil {
			return nil, err
		}
		result.Findings, suppressed = baseline.Filter(result.Findings)
	}

	if run.Record {
		if err := recordRun(ctx, c, corpus.Root, result); err != nil {
			presenter.Warning(fmt.Sprintf("failed to record lint run: %s", err))
		}
	}

	rep := report.New(corpus.Root, result, suppressed)
	if err := writer.Write(out, rep); err != nil {
		return nil, errors.Wrap(err, "failed to write report")
	}

	logger.G(ctx).WithField("skills", rep.SkillCount).
		WithField("findings", len(rep.Findings)).
		WithField("suppressed", suppressed).
		Info("lint finished")
	return rep, nil
}

func recordRun(ctx context.Context, c config.Config, root string, result *lint.Result) error {
	store, err := openCatalog(ctx, c)
	if err != nil {
		return err
	}
	defer store.Close()

	id, err := store.RecordRun(ctx, root, result)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Recorded lint run %s\n", id)
	return nil
}
