package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/jingkaihe/skillctl/pkg/catalog"
	"github.com/jingkaihe/skillctl/pkg/lint"
	"github.com/jingkaihe/skillctl/pkg/presenter"
	"github.com/jingkaihe/skillctl/pkg/report"
	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Index the corpus into the skill catalog",
	Long: `Record every skill of the corpus in the SQLite catalog so it can be searched.
Skills removed from disk are removed from the catalog.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		corpus, err := loadCorpus(ctx, cfg, nil)
		if err != nil {
			return err
		}

		store, err := openCatalog(ctx, cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		stats, err := store.IndexCorpus(ctx, corpus)
		if err != nil {
			return err
		}
		presenter.Success(fmt.Sprintf("Indexed %d skills into %s: %d added, %d updated, %d unchanged, %d removed",
			len(corpus.Skills), store.Path(), stats.Added, stats.Updated, stats.Unchanged, stats.Removed))
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the skill catalog",
	Long:  `Search indexed skills by name and description. Run "skillctl index" first.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		tree, _ := cmd.Flags().GetString("tree")
		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")

		store, err := openCatalog(ctx, cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		records, err := store.Search(ctx, args[0], tree, limit)
		if err != nil {
			return err
		}
		if asJSON {
			return writeJSON(cmd.OutOrStdout(), records)
		}
		if len(records) == 0 {
			presenter.Info(fmt.Sprintf("No skills match %q", args[0]))
			return nil
		}
		return writeRecords(cmd.OutOrStdout(), records)
	},
}

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "Show recorded lint runs",
	Long: `List lint runs recorded with "skillctl lint --record", most recent first.
Given a run ID, or a unique prefix of one, print the findings of that run.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		limit, _ := cmd.Flags().GetInt("limit")

		store, err := openCatalog(ctx, cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		if len(args) == 0 {
			runs, err := store.ListRuns(ctx, limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				presenter.Info("No lint runs recorded")
				return nil
			}
			return writeRuns(cmd.OutOrStdout(), runs)
		}

		run, err := store.GetRun(ctx, args[0])
		if err != nil {
			return err
		}
		findings, err := store.RunFindings(ctx, run.ID)
		if err != nil {
			return err
		}

		writer, err := report.NewWriter(cfg.Lint.Format)
		if err != nil {
			return err
		}
		return writer.Write(cmd.OutOrStdout(), report.New(run.Root, &lint.Result{
			Findings:   findings,
			SkillCount: run.SkillCount,
			StartedAt:  run.StartedAt,
			Duration:   time.Duration(run.DurationMS) * time.Millisecond,
		}, 0))
	},
}

func init() {
	searchCmd.Flags().String("tree", "", "Only search this tree")
	searchCmd.Flags().Int("limit", 50, "Maximum number of results")
	searchCmd.Flags().Bool("json", false, "Print JSON")

	historyCmd.Flags().Int("limit", 20, "Maximum number of runs to list")
}

func writeRecords(w io.Writer, records []catalog.SkillRecord) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TREE\tNAME\tDESCRIPTION")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Tree, r.Directory, truncate(r.Description, 80))
	}
	return tw.Flush()
}

func writeRuns(w io.Writer, runs []catalog.RunRecord) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tSKILLS\tERRORS\tWARNINGS\tINFO\tDURATION\tROOT")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%s\t%s\n",
			r.ID[:8], r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.SkillCount, r.Errors, r.Warnings, r.Infos,
			time.Duration(r.DurationMS)*time.Millisecond, r.Root)
	}
	return tw.Flush()
}
