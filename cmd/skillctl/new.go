package main

import (
	"fmt"
	"path/filepath"

	"github.com/jingkaihe/skillctl/pkg/presenter"
	"github.com/jingkaihe/skillctl/pkg/skills"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var newCmd = &cobra.Command{
	Use:   "new <name>",
	Short: "Scaffold a new skill",
	Long: `Create <root>/<tree>/<name>/SKILL.md with valid frontmatter and a heading
skeleton. The description is prompted for when --description is not given.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		tree, _ := cmd.Flags().GetString("tree")
		description, _ := cmd.Flags().GetString("description")
		withReferences, _ := cmd.Flags().GetBool("references")
		withExamples, _ := cmd.Flags().GetBool("examples")

		if !skills.ValidName(name) {
			return errors.Errorf("invalid skill name %q: use lowercase letters and digits separated by single hyphens", name)
		}
		if description == "" {
			description = presenter.Prompt("Describe what the skill does and when to use it")
		}
		if description == "" {
			return errors.New("a description is required")
		}

		sections := cfg.Lint.RequiredSections
		if len(sections) == 0 {
			sections = []string{"When to Use", "Procedure", "Verification"}
		}

		dir, err := skills.Scaffold(skills.ScaffoldOptions{
			Root:        cfg.Root,
			Tree:        tree,
			Name:        name,
			Description: description,
			Sections:    sections,
			References:  withReferences,
			Examples:    withExamples,

			NameMax:        cfg.Lint.Limits.NameMax,
			DescriptionMax: cfg.Lint.Limits.DescriptionMax,
		})
		if err != nil {
			return err
		}
		presenter.Success(fmt.Sprintf("Created %s", filepath.Join(dir, skills.SkillFileName)))
		return nil
	},
}

func init() {
	newCmd.Flags().String("tree", "skills", "Tree to create the skill in")
	newCmd.Flags().String("description", "", "Frontmatter description")
	newCmd.Flags().Bool("references", false, "Create a references/ directory")
	newCmd.Flags().Bool("examples", false, "Create an examples/ directory")
}
