package skills

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func skillFile(name, description, body string) string {
	return "---\nname: " + name + "\ndescription: " + description + "\n---\n\n" + body
}

func TestNewLoader(t *testing.T) {
	t.Run("with defaults", func(t *testing.T) {
		loader, err := NewLoader()
		require.NoError(t, err)
		assert.Equal(t, DefaultTrees, loader.trees)
		assert.True(t, filepath.IsAbs(loader.Root()))
	})

	t.Run("with custom trees", func(t *testing.T) {
		loader, err := NewLoader(WithRoot("/tmp/corpus"), WithTrees("a", "b"))
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, loader.trees)
		assert.Equal(t, "/tmp/corpus", loader.Root())
	})

	t.Run("invalid exclude pattern", func(t *testing.T) {
		_, err := NewLoader(WithExclude("[unclosed"))
		assert.Error(t, err)
	})
}

func TestLoadTrees(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "skills", "postgresql-security", "SKILL.md"),
		skillFile("postgresql-security", "Harden PostgreSQL roles", "# PostgreSQL Security\n\nAudit roles.\n"))
	writeFile(t, filepath.Join(root, "skills", "sqlserver-health-check", "SKILL.md"),
		skillFile("sqlserver-health-check", "Check SQL Server health", "# Health Check\n"))
	writeFile(t, filepath.Join(root, "skills-codex", "postgresql-security", "SKILL.md"),
		skillFile("postgresql-security", "Harden PostgreSQL roles", "# PostgreSQL Security\n"))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "skills", "empty-dir"), 0o755))
	writeFile(t, filepath.Join(root, "skills", "README.md"), "not a skill")

	loader, err := NewLoader(WithRoot(root))
	require.NoError(t, err)

	corpus, err := loader.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"skills", "skills-codex"}, corpus.Trees)
	require.Len(t, corpus.Skills, 3)
	assert.Equal(t, "skills", corpus.Skills[0].Tree)
	assert.Equal(t, "postgresql-security", corpus.Skills[0].Name)
	assert.Equal(t, "sqlserver-health-check", corpus.Skills[1].Name)
	assert.Equal(t, "skills-codex", corpus.Skills[2].Tree)

	require.Len(t, corpus.Orphans, 1)
	assert.Equal(t, "skills", corpus.Orphans[0].Tree)
	assert.Equal(t, filepath.Join(root, "skills", "empty-dir"), corpus.Orphans[0].Directory)

	skill, ok := corpus.Find("skills", "postgresql-security")
	require.True(t, ok)
	assert.Equal(t, "Harden PostgreSQL roles", skill.Description)
	assert.Contains(t, skill.Content, "Audit roles.")
	assert.Len(t, skill.Hash, 64)

	assert.Len(t, corpus.ByName("postgresql-security"), 2)
	assert.Equal(t, []string{"postgresql-security", "sqlserver-health-check"}, corpus.SkillDirNames())
	assert.Len(t, corpus.InTree("skills-codex"), 1)
}

func TestLoadSkipsMissingTrees(t *testing.T) {
	loader, err := NewLoader(WithRoot(t.TempDir()))
	require.NoError(t, err)

	corpus, err := loader.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, corpus.Trees)
	assert.Empty(t, corpus.Skills)
}

func TestLoadWithSymlinks(t *testing.T) {
	root := t.TempDir()
	actual := filepath.Join(root, "elsewhere", "linked-skill")
	writeFile(t, filepath.Join(actual, "SKILL.md"), skillFile("linked-skill", "Linked", "Body\n"))

	skillsDir := filepath.Join(root, "skills")
	require.NoError(t, os.MkdirAll(skillsDir, 0o755))
	require.NoError(t, os.Symlink(actual, filepath.Join(skillsDir, "linked-skill")))
	require.NoError(t, os.Symlink("/non/existent/path", filepath.Join(skillsDir, "broken")))

	loader, err := NewLoader(WithRoot(root), WithTrees("skills"))
	require.NoError(t, err)

	corpus, err := loader.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, corpus.Skills, 1)
	assert.Equal(t, "linked-skill", corpus.Skills[0].Name)
	assert.Equal(t, filepath.Join(skillsDir, "linked-skill"), corpus.Skills[0].Directory)
	assert.Empty(t, corpus.Orphans, "broken symlink should be ignored")
}

func TestLoadWithExclude(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "skills", "kept", "SKILL.md"), skillFile("kept", "Kept", "Body\n"))
	writeFile(t, filepath.Join(root, "skills", "kept", "references", "draft-notes.md"), "# Draft\n")
	writeFile(t, filepath.Join(root, "skills", "kept", "references", "final.md"), "# Final\n")
	writeFile(t, filepath.Join(root, "skills", "wip-skill", "SKILL.md"), skillFile("wip-skill", "WIP", "Body\n"))

	loader, err := NewLoader(WithRoot(root), WithTrees("skills"), WithExclude("skills/wip-*", "**/draft-*.md"))
	require.NoError(t, err)

	corpus, err := loader.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, corpus.Skills, 1)
	require.Len(t, corpus.Skills[0].References, 1)
	assert.Equal(t, "references/final.md", corpus.Skills[0].References[0].RelPath)
}

func TestLoadPaths(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "skills", "one", "SKILL.md"), skillFile("one", "One", "Body\n"))
	writeFile(t, filepath.Join(root, "skills", "two", "SKILL.md"), skillFile("two", "Two", "Body\n"))
	writeFile(t, filepath.Join(root, "skills-gemini", "one", "SKILL.md"), skillFile("one", "One", "Body\n"))

	loader, err := NewLoader(WithRoot(root))
	require.NoError(t, err)

	t.Run("single skill directory", func(t *testing.T) {
		corpus, err := loader.LoadPaths(context.Background(), []string{filepath.Join(root, "skills", "two")})
		require.NoError(t, err)
		require.Len(t, corpus.Skills, 1)
		assert.Equal(t, "two", corpus.Skills[0].Name)
		assert.Equal(t, []string{"skills"}, corpus.Trees)
	})

	t.Run("SKILL.md file", func(t *testing.T) {
		corpus, err := loader.LoadPaths(context.Background(), []string{filepath.Join(root, "skills", "one", "SKILL.md")})
		require.NoError(t, err)
		require.Len(t, corpus.Skills, 1)
	})

	t.Run("single skill directory honours exclude", func(t *testing.T) {
		writeFile(t, filepath.Join(root, "skills", "one", "references", "draft-plan.md"), "# Draft\n")
		writeFile(t, filepath.Join(root, "skills", "one", "references", "plan.md"), "# Plan\n")
		excluding, err := NewLoader(WithRoot(root), WithExclude("**/draft-*.md"))
		require.NoError(t, err)

		corpus, err := excluding.LoadPaths(context.Background(), []string{filepath.Join(root, "skills", "one")})
		require.NoError(t, err)
		require.Len(t, corpus.Skills, 1)
		require.Len(t, corpus.Skills[0].References, 1)
		assert.Equal(t, "references/plan.md", corpus.Skills[0].References[0].RelPath)
	})

	t.Run("tree directory", func(t *testing.T) {
		corpus, err := loader.LoadPaths(context.Background(), []string{filepath.Join(root, "skills-gemini")})
		require.NoError(t, err)
		require.Len(t, corpus.Skills, 1)
		assert.Equal(t, "skills-gemini", corpus.Skills[0].Tree)
	})

	t.Run("missing path", func(t *testing.T) {
		_, err := loader.LoadPaths(context.Background(), []string{filepath.Join(root, "nope")})
		assert.Error(t, err)
	})
}

func TestLoadSkillFrontmatter(t *testing.T) {
	tmpDir := t.TempDir()

	load := func(t *testing.T, content string) *Skill {
		t.Helper()
		dir := filepath.Join(t.TempDir(), "skill")
		writeFile(t, filepath.Join(dir, "SKILL.md"), content)
		skill, err := LoadSkill(dir, "skills", tmpDir)
		require.NoError(t, err)
		return skill
	}

	t.Run("valid", func(t *testing.T) {
		skill := load(t, skillFile("index-maintenance", "Rebuild fragmented indexes", "# Index Maintenance\n"))
		require.True(t, skill.Frontmatter.Present)
		assert.NoError(t, skill.Frontmatter.Err)
		assert.Equal(t, []string{"name", "description"}, skill.Frontmatter.Keys)
		assert.Empty(t, skill.Frontmatter.Unused)
		assert.Equal(t, 4, skill.Frontmatter.EndLine)
		assert.Equal(t, 6, skill.BodyStartLine)
		assert.Equal(t, 2, skill.BodyLines)
	})

	t.Run("extra keys", func(t *testing.T) {
		skill := load(t, "---\nname: x\nversion: 2\ndescription: d\nallowed-tools: [Read]\n---\nBody\n")
		require.True(t, skill.Frontmatter.Present)
		assert.NoError(t, skill.Frontmatter.Err)
		assert.Equal(t, []string{"name", "version", "description", "allowed-tools"}, skill.Frontmatter.Keys)
		assert.Equal(t, []string{"allowed-tools", "version"}, skill.Frontmatter.Unused)
		assert.True(t, skill.Frontmatter.HasKey("version"))
	})

	t.Run("no frontmatter", func(t *testing.T) {
		skill := load(t, "# Just content\nNo frontmatter here.\n")
		assert.False(t, skill.Frontmatter.Present)
		assert.Empty(t, skill.Name)
		assert.Contains(t, skill.Content, "# Just content")
		assert.Equal(t, 1, skill.BodyStartLine)
	})

	t.Run("unterminated frontmatter", func(t *testing.T) {
		skill := load(t, "---\nname: x\n# No closing\n")
		assert.False(t, skill.Frontmatter.Present)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		skill := load(t, "---\nname: [unclosed\ndescription: d\n---\nBody\n")
		require.True(t, skill.Frontmatter.Present)
		assert.Error(t, skill.Frontmatter.Err)
	})

	t.Run("non-string name", func(t *testing.T) {
		skill := load(t, "---\nname:\n  - a\n  - b\ndescription: d\n---\nBody\n")
		require.True(t, skill.Frontmatter.Present)
		assert.Error(t, skill.Frontmatter.Err)
	})

	t.Run("dash-only delimiters", func(t *testing.T) {
		skill := load(t, "----\nname: dashes\ndescription: Longer fences\n -----  \n\n# Dashes\n")
		require.True(t, skill.Frontmatter.Present)
		assert.NoError(t, skill.Frontmatter.Err)
		assert.Equal(t, "dashes", skill.Name)
		assert.Equal(t, 4, skill.Frontmatter.EndLine)
		assert.Equal(t, 6, skill.BodyStartLine)
		assert.Equal(t, "# Dashes\n", skill.Content)
	})

	t.Run("crlf line endings", func(t *testing.T) {
		skill := load(t, "---\r\nname: crlf-skill\r\ndescription: Windows\r\n---\r\n\r\nBody\r\n")
		require.True(t, skill.Frontmatter.Present)
		assert.Equal(t, "crlf-skill", skill.Name)
		assert.Equal(t, "Body", skill.Content[:4])
	})
}

func TestLoadSkillResources(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "skills", "backup-recovery")
	writeFile(t, filepath.Join(dir, "SKILL.md"), skillFile("backup-recovery", "Plan backups", "See [strategy](references/strategy.md).\n"))
	writeFile(t, filepath.Join(dir, "references", "strategy.md"), "# Strategy\n\n## RPO and RTO\n")
	writeFile(t, filepath.Join(dir, "references", "scripts", "full-backup.sql"), "BACKUP DATABASE x TO DISK = 'x.bak';\n")
	writeFile(t, filepath.Join(dir, "examples", "pitr.md"), "# Point in time restore\n")
	writeFile(t, filepath.Join(dir, "examples", ".hidden.md"), "# Hidden\n")

	skill, err := LoadSkill(dir, "skills", root)
	require.NoError(t, err)

	require.Len(t, skill.References, 2)
	assert.Equal(t, "references/scripts/full-backup.sql", skill.References[0].RelPath)
	assert.Nil(t, skill.References[0].Document)
	assert.Equal(t, "references/strategy.md", skill.References[1].RelPath)
	require.NotNil(t, skill.References[1].Document)
	assert.True(t, skill.References[1].Document.HasHeading("rpo and rto"))
	assert.Equal(t, "skills/backup-recovery/references/strategy.md", skill.References[1].Document.Path)

	require.Len(t, skill.Examples, 1)
	assert.Equal(t, KindExample, skill.Examples[0].Kind)
	assert.Len(t, skill.Resources(), 3)
}

func TestExtractBody(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		body      string
		startLine int
		lines     int
	}{
		{
			name:      "with frontmatter",
			input:     "---\nname: test\ndescription: desc\n---\n\n# Content\n\nBody text.",
			body:      "# Content\n\nBody text.",
			startLine: 6,
			lines:     4,
		},
		{
			name:      "no frontmatter",
			input:     "# Just content\nNo frontmatter.",
			body:      "# Just content\nNo frontmatter.",
			startLine: 1,
			lines:     2,
		},
		{
			name:      "incomplete frontmatter",
			input:     "---\nname: test\n# No closing ---",
			body:      "---\nname: test\n# No closing ---",
			startLine: 1,
			lines:     3,
		},
		{
			name:      "empty body",
			input:     "---\nname: test\n---\n\n",
			body:      "",
			startLine: 0,
			lines:     1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines := strings.Split(tt.input, "\n")
			body, start, count := extractBody(lines, splitFrontmatter(lines))
			assert.Equal(t, tt.body, body)
			assert.Equal(t, tt.startLine, start)
			assert.Equal(t, tt.lines, count)
		})
	}
}

func TestBodyLinesCountFromDelimiter(t *testing.T) {
	load := func(t *testing.T, content int) *Skill {
		t.Helper()
		dir := filepath.Join(t.TempDir(), "long-body")
		// blank separator line plus content lines
		writeFile(t, filepath.Join(dir, "SKILL.md"), skillFile("long-body", "Boundary", strings.Repeat("line\n", content)))
		skill, err := LoadSkill(dir, "skills", filepath.Dir(dir))
		require.NoError(t, err)
		return skill
	}

	assert.Equal(t, 499, load(t, 498).BodyLines)
	assert.Equal(t, 500, load(t, 499).BodyLines)
	assert.Equal(t, 6, load(t, 499).BodyStartLine)
}

func TestSplitFrontmatter(t *testing.T) {
	assert.Equal(t, 2, splitFrontmatter([]string{"---", "name: x", "---"}))
	assert.Equal(t, 2, splitFrontmatter([]string{"---", "name: x", "-"}))
	assert.Equal(t, 3, splitFrontmatter([]string{"  ---- ", "name: x", "", "------"}))
	assert.Equal(t, -1, splitFrontmatter([]string{"", "---", "name: x", "---"}))
	assert.Equal(t, -1, splitFrontmatter([]string{"---", "name: x", "--- not a fence"}))
	assert.Equal(t, -1, splitFrontmatter(nil))
}

func TestCountLines(t *testing.T) {
	assert.Equal(t, 0, countLines(""))
	assert.Equal(t, 1, countLines("one"))
	assert.Equal(t, 1, countLines("one\n"))
	assert.Equal(t, 4, countLines("one\ntwo\n\nthree"))
}

func TestFilterByAllowlist(t *testing.T) {
	list := []*Skill{
		{Name: "skill-a", Directory: "/x/skill-a"},
		{Name: "skill-b", Directory: "/x/skill-b"},
		{Name: "skill-c", Directory: "/x/skill-c"},
	}

	t.Run("empty allowlist returns all", func(t *testing.T) {
		assert.Len(t, FilterByAllowlist(list, nil), 3)
	})

	t.Run("allowlist filters skills", func(t *testing.T) {
		result := FilterByAllowlist(list, []string{"skill-a", "skill-c"})
		require.Len(t, result, 2)
		assert.Equal(t, "skill-a", result[0].Name)
		assert.Equal(t, "skill-c", result[1].Name)
	})

	t.Run("allowlist with unknown skill", func(t *testing.T) {
		assert.Len(t, FilterByAllowlist(list, []string{"skill-a", "unknown"}), 1)
	})
}
