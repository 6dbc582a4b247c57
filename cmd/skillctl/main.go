package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jingkaihe/skillctl/pkg/catalog"
	"github.com/jingkaihe/skillctl/pkg/config"
	"github.com/jingkaihe/skillctl/pkg/lint"
	"github.com/jingkaihe/skillctl/pkg/logger"
	"github.com/jingkaihe/skillctl/pkg/presenter"
	"github.com/jingkaihe/skillctl/pkg/skills"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// cfg is loaded once per invocation before any command runs
	cfg config.Config

	shutdownTracing func(context.Context) error
)

var rootCmd = &cobra.Command{
	Use:   "skillctl",
	Short: "Lint, compare and serve DBA agent skills",
	Long: `skillctl validates a corpus of agent skills: directories holding a SKILL.md
with YAML frontmatter plus optional references/ and examples/ Markdown files.

It checks frontmatter, naming and length conventions, link integrity and
cross-tree consistency, compares mirrored skill trees, keeps a searchable
catalog of skills and lint history, and serves skills over HTTP and MCP.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
		if shutdownTracing != nil {
			return shutdownTracing(cmd.Context())
		}
		return nil
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Config file (default $HOME/.skillctl/config.yaml and ./.skillctl.yaml)")
	flags.String("root", ".", "Corpus root directory containing the skill trees")
	flags.StringSlice("trees", []string{"skills", "skills-codex", "skills-gemini"}, "Skill tree directories relative to the root")
	flags.StringSlice("exclude", nil, "Glob patterns of paths to skip (doublestar syntax)")
	flags.String("log-level", "warn", "Log level (debug, info, warn, error)")
	flags.String("log-format", "text", "Log format (text, json)")
	flags.String("color", "auto", "Colorize output (auto, always, never)")

	viper.BindPFlag("root", flags.Lookup("root"))
	viper.BindPFlag("trees", flags.Lookup("trees"))
	viper.BindPFlag("exclude", flags.Lookup("exclude"))
	viper.BindPFlag("log_level", flags.Lookup("log-level"))
	viper.BindPFlag("log_format", flags.Lookup("log-format"))
	viper.BindPFlag("color", flags.Lookup("color"))
}

// setup loads configuration and prepares logging, colors and tracing
func setup(cmd *cobra.Command, _ []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	if err := config.Init(viper.GetViper(), configFile); err != nil {
		return err
	}

	loaded, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}
	cfg = loaded

	if err := logger.Configure(cfg.LogLevel, cfg.LogFormat, os.Stderr); err != nil {
		return err
	}
	presenter.SetColorMode(presenter.ParseColorMode(cfg.Color))

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	shutdown, err := initTracing(ctx)
	if err != nil {
		logger.G(ctx).WithError(err).Warn("failed to initialize tracing")
	} else {
		shutdownTracing = shutdown
	}

	ctx = logger.WithFields(ctx, map[string]any{"root": cfg.Root})
	cmd.SetContext(ctx)
	return nil
}

// newLoader builds a skill loader from the configuration
func newLoader(c config.Config) (*skills.Loader, error) {
	return skills.NewLoader(
		skills.WithRoot(c.Root),
		skills.WithTrees(c.Trees...),
		skills.WithExclude(c.Exclude...),
	)
}

// loadCorpus loads every configured tree, or only paths when given.
// Skills that fail to load are reported as warnings.
func loadCorpus(ctx context.Context, c config.Config, paths []string) (*skills.Corpus, error) {
	loader, err := newLoader(c)
	if err != nil {
		return nil, errors.Wrap(err, "invalid loader configuration")
	}

	var corpus *skills.Corpus
	if len(paths) > 0 {
		corpus, err = loader.LoadPaths(ctx, paths)
	} else {
		corpus, err = loader.Load(ctx)
	}
	if corpus == nil {
		return nil, err
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		presenter.Warning(fmt.Sprintf("some skills could not be loaded: %s", err))
		logger.G(ctx).WithError(err).Warn("partial corpus load")
	}
	return corpus, nil
}

// lintOptions maps the lint configuration onto linter options
func lintOptions(c config.Config) lint.Options {
	return lint.Options{
		Limits: lint.Limits{
			NameMax:        c.Lint.Limits.NameMax,
			DescriptionMax: c.Lint.Limits.DescriptionMax,
			BodyLines:      c.Lint.Limits.BodyLines,
		},
		RequiredSections: c.Lint.RequiredSections,
		Enable:           c.Lint.Enable,
		Disable:          c.Lint.Disable,
		Severity:         c.Lint.Severity,
		Concurrency:      c.Lint.Concurrency,
		CheckAnchors:     c.Lint.CheckAnchors,
	}
}

// openCatalog opens the configured catalog, or the default one
func openCatalog(ctx context.Context, c config.Config) (*catalog.Store, error) {
	path := c.Catalog.Path
	if path == "" {
		var err error
		if path, err = catalog.DefaultPath(); err != nil {
			return nil, err
		}
	}
	return catalog.Open(ctx, path)
}

func main() {
	rootCmd.AddCommand(withTracing(lintCmd))
	rootCmd.AddCommand(withTracing(listCmd))
	rootCmd.AddCommand(withTracing(showCmd))
	rootCmd.AddCommand(withTracing(driftCmd))
	rootCmd.AddCommand(withTracing(indexCmd))
	rootCmd.AddCommand(withTracing(searchCmd))
	rootCmd.AddCommand(withTracing(historyCmd))
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(withTracing(newCmd))
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		if !errors.Is(err, errCheckFailed) {
			presenter.Error(err, "skillctl failed")
		}
		os.Exit(1)
	}
}
