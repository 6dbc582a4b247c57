// Package mcpserver exposes a skills corpus to agent hosts over the Model
// Context Protocol. Hosts list skills by frontmatter, then pull SKILL.md and
// its supporting files into context.
package mcpserver

import (
	"context"
	"encoding/json"
	"io"

	"github.com/jingkaihe/skillctl/pkg/lint"
	"github.com/jingkaihe/skillctl/pkg/logger"
	"github.com/jingkaihe/skillctl/pkg/skills"
	"github.com/jingkaihe/skillctl/pkg/version"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/pkg/errors"
)

// Source loads the corpus for each tool call
type Source interface {
	Load(ctx context.Context) (*skills.Corpus, error)
}

// Server wraps an MCP server with the skill tools registered
type Server struct {
	source      Source
	lintOptions lint.Options
	mcp         *server.MCPServer
}

// New creates the server and registers its tools
func New(source Source, lintOptions lint.Options) (*Server, error) {
	if _, err := lint.New(lintOptions); err != nil {
		return nil, errors.Wrap(err, "invalid lint options")
	}

	s := &Server{
		source:      source,
		lintOptions: lintOptions,
		mcp: server.NewMCPServer(
			"skillctl",
			version.Get().Version,
			server.WithToolCapabilities(true),
		),
	}

	s.mcp.AddTool(mcp.NewTool("list_skills",
		mcp.WithDescription("List available skills with their name and description. Use the description to decide which skill applies to a task."),
		mcp.WithString("tree", mcp.Description("Restrict the listing to one skill tree, e.g. skills or skills-codex")),
	), s.handleListSkills)

	s.mcp.AddTool(mcp.NewTool("get_skill",
		mcp.WithDescription("Get the full SKILL.md body of a skill together with its headings and supporting files."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Skill name, the directory name of the skill")),
		mcp.WithString("tree", mcp.Description("Skill tree, defaults to the first tree containing the skill")),
	), s.handleGetSkill)

	s.mcp.AddTool(mcp.NewTool("read_skill_file",
		mcp.WithDescription("Read a supporting file of a skill, such as references/backup.md or examples/restore.md."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Skill name")),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path relative to the skill directory")),
		mcp.WithString("tree", mcp.Description("Skill tree, defaults to the first tree containing the skill")),
	), s.handleReadSkillFile)

	s.mcp.AddTool(mcp.NewTool("lint_skill",
		mcp.WithDescription("Check a skill against the authoring conventions and return its findings."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Skill name")),
		mcp.WithString("tree", mcp.Description("Skill tree, defaults to every tree containing the skill")),
	), s.handleLintSkill)

	return s, nil
}

// Serve speaks MCP over the given streams until ctx is cancelled or the
// input is closed
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	logger.G(ctx).Info("serving skills over MCP stdio")
	err := server.NewStdioServer(s.mcp).Listen(ctx, in, out)
	if err != nil && !errors.Is(err, context.Canceled) {
		return errors.Wrap(err, "MCP server failed")
	}
	return nil
}

func (s *Server) load(ctx context.Context) (*skills.Corpus, error) {
	corpus, err := s.source.Load(ctx)
	if corpus == nil {
		return nil, errors.Wrap(err, "failed to load skills")
	}
	if err != nil {
		logger.G(ctx).WithError(err).Warn("some skills could not be loaded")
	}
	return corpus, nil
}

func (s *Server) findSkill(ctx context.Context, request mcp.CallToolRequest) (*skills.Corpus, *skills.Skill, *mcp.CallToolResult) {
	name, err := request.RequireString("name")
	if err != nil {
		return nil, nil, mcp.NewToolResultError(err.Error())
	}
	tree := request.GetString("tree", "")

	corpus, err := s.load(ctx)
	if err != nil {
		return nil, nil, mcp.NewToolResultError(err.Error())
	}
	skill, ok := corpus.Find(tree, name)
	if !ok {
		if tree != "" {
			return nil, nil, mcp.NewToolResultErrorf("skill %s not found in tree %s", name, tree)
		}
		return nil, nil, mcp.NewToolResultErrorf("skill %s not found", name)
	}
	return corpus, skill, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal tool result")
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) handleListSkills(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	corpus, err := s.load(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	list := corpus.Skills
	if tree := request.GetString("tree", ""); tree != "" {
		list = corpus.InTree(tree)
	}
	return jsonResult(corpus.Summarize(list))
}

// SkillContent is the result of get_skill
type SkillContent struct {
	skills.Detail
	Body string `json:"body"`
}

func (s *Server) handleGetSkill(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	corpus, skill, failure := s.findSkill(ctx, request)
	if failure != nil {
		return failure, nil
	}
	return jsonResult(SkillContent{Detail: corpus.Detail(skill), Body: skill.Content})
}

func (s *Server) handleReadSkillFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rel, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	_, skill, failure := s.findSkill(ctx, request)
	if failure != nil {
		return failure, nil
	}

	data, err := skill.ReadFile(rel)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) handleLintSkill(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	corpus, skill, failure := s.findSkill(ctx, request)
	if failure != nil {
		return failure, nil
	}

	linter, err := lint.New(s.lintOptions)
	if err != nil {
		return nil, err
	}
	result, err := linter.Run(ctx, corpus)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	tree := request.GetString("tree", "")
	findings := []lint.Finding{}
	for _, f := range result.Findings {
		if f.Skill != skill.DirName() {
			continue
		}
		if tree != "" && f.Tree != tree {
			continue
		}
		findings = append(findings, f)
	}
	return jsonResult(map[string]any{
		"skill":    skill.DirName(),
		"findings": findings,
		"summary":  lint.Count(findings),
	})
}
