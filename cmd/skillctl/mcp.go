package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/jingkaihe/skillctl/pkg/mcpserver"
	"github.com/jingkaihe/skillctl/pkg/presenter"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve skills to agent hosts over MCP stdio",
	Long: `Start a Model Context Protocol server on stdin/stdout exposing the tools
list_skills, get_skill, read_skill_file and lint_skill.

Configure it in an agent host as a stdio server running "skillctl mcp --root <corpus>".`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		// stdout carries the protocol
		presenter.SetQuiet(true)

		loader, err := newLoader(cfg)
		if err != nil {
			return err
		}
		server, err := mcpserver.New(loader, lintOptions(cfg))
		if err != nil {
			return errors.Wrap(err, "failed to create MCP server")
		}

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		return server.Serve(ctx, os.Stdin, os.Stdout)
	},
}
