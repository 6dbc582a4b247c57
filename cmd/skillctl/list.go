package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/jingkaihe/skillctl/pkg/skills"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list [skill-dir...]",
	Short: "List the skills of the corpus",
	Long:  `List every skill with its tree and description, as an agent host sees them. Directory names given as arguments restrict the listing to those skills.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		tree, _ := cmd.Flags().GetString("tree")
		asJSON, _ := cmd.Flags().GetBool("json")

		corpus, err := loadCorpus(cmd.Context(), cfg, nil)
		if err != nil {
			return err
		}

		list := corpus.Skills
		if tree != "" {
			list = corpus.InTree(tree)
		}
		list = skills.FilterByAllowlist(list, args)
		return writeSkillList(cmd.OutOrStdout(), corpus.Summarize(list), asJSON)
	},
}

var showCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show the structure of a skill",
	Long:  `Show the frontmatter, headings and supporting files of a skill. With --body the SKILL.md body is printed as well.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tree, _ := cmd.Flags().GetString("tree")
		asJSON, _ := cmd.Flags().GetBool("json")
		withBody, _ := cmd.Flags().GetBool("body")

		corpus, err := loadCorpus(cmd.Context(), cfg, nil)
		if err != nil {
			return err
		}
		skill, ok := corpus.Find(tree, args[0])
		if !ok {
			return errors.Errorf("skill %s not found", args[0])
		}
		return writeSkillDetail(cmd.OutOrStdout(), corpus.Detail(skill), skill.Content, asJSON, withBody)
	},
}

func init() {
	listCmd.Flags().String("tree", "", "Only list skills of this tree")
	listCmd.Flags().Bool("json", false, "Print JSON instead of a table")

	showCmd.Flags().String("tree", "", "Tree of the skill, defaults to the first tree containing it")
	showCmd.Flags().Bool("json", false, "Print JSON")
	showCmd.Flags().Bool("body", false, "Print the SKILL.md body")
}

func writeSkillList(w io.Writer, list []skills.Summary, asJSON bool) error {
	if asJSON {
		return writeJSON(w, list)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TREE\tNAME\tDESCRIPTION")
	for _, s := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", s.Tree, s.Directory, truncate(s.Description, 80))
	}
	return tw.Flush()
}

func writeSkillDetail(w io.Writer, d skills.Detail, body string, asJSON, withBody bool) error {
	if asJSON {
		if withBody {
			return writeJSON(w, struct {
				skills.Detail
				Body string `json:"body"`
			}{d, body})
		}
		return writeJSON(w, d)
	}

	fmt.Fprintf(w, "Name:        %s\n", d.Name)
	fmt.Fprintf(w, "Tree:        %s\n", d.Tree)
	fmt.Fprintf(w, "Path:        %s\n", d.Path)
	fmt.Fprintf(w, "Description: %s\n", d.Description)
	fmt.Fprintf(w, "Body lines:  %d\n", d.BodyLines)

	if len(d.Headings) > 0 {
		fmt.Fprintln(w, "\nHeadings:")
		for _, h := range d.Headings {
			fmt.Fprintf(w, "  %s%s\n", strings.Repeat("  ", h.Level-1), h.Text)
		}
	}
	printFiles(w, "References", d.References)
	printFiles(w, "Examples", d.Examples)

	if withBody {
		fmt.Fprintf(w, "\n%s", body)
	}
	return nil
}

func printFiles(w io.Writer, title string, files []string) {
	if len(files) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s:\n", title)
	for _, f := range files {
		fmt.Fprintf(w, "  %s\n", f)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// truncate shortens s to at most n runes
func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
