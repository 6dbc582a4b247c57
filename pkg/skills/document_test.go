package skills

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDocument(t *testing.T) {
	source := []byte(`# PostgreSQL Security

Read [role audit](references/roles.md#audit-queries) first.

## When to Use

![diagram](examples/diagram.png)

` + "```sql" + `
SELECT rolname FROM pg_roles;
` + "```" + `

` + "```" + `
no language
` + "```" + `

Visit <https://www.postgresql.org/docs/> for details.
`)

	doc := ParseDocument("skills/postgresql-security/SKILL.md", source)

	require.Len(t, doc.Headings, 2)
	assert.Equal(t, Heading{Level: 1, Text: "PostgreSQL Security", Slug: "postgresql-security", Line: 1}, doc.Headings[0])
	assert.Equal(t, "When to Use", doc.Headings[1].Text)
	assert.Equal(t, 5, doc.Headings[1].Line)

	require.Len(t, doc.Links, 2)
	assert.Equal(t, "references/roles.md#audit-queries", doc.Links[0].Destination)
	assert.Equal(t, "role audit", doc.Links[0].Text)
	assert.Equal(t, 3, doc.Links[0].Line)
	assert.False(t, doc.Links[0].Image)
	assert.True(t, doc.Links[1].Image)
	assert.Equal(t, 7, doc.Links[1].Line)

	require.Len(t, doc.CodeBlocks, 2)
	assert.Equal(t, "sql", doc.CodeBlocks[0].Language)
	assert.Equal(t, 9, doc.CodeBlocks[0].Line)
	assert.Equal(t, "", doc.CodeBlocks[1].Language)
	assert.Equal(t, 13, doc.CodeBlocks[1].Line)

	assert.True(t, doc.HasHeading("when to use"))
	assert.False(t, doc.HasHeading("Examples"))
}

func TestParseDocumentWithFrontmatterLines(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "sqlserver-health-check")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	content := `---
name: sqlserver-health-check
description: Run a SQL Server health check
---

# Health Check

See [waits](references/waits.md).
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "SKILL.md"), []byte(content), 0o644))

	skill, err := LoadSkill(dir, "skills", filepath.Dir(dir))
	require.NoError(t, err)

	require.Len(t, skill.Document.Headings, 1)
	assert.Equal(t, 6, skill.Document.Headings[0].Line)
	require.Len(t, skill.Document.Links, 1)
	assert.Equal(t, 8, skill.Document.Links[0].Line)
}

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"When to Use":                   "when-to-use",
		"RPO/RTO Targets":               "rporto-targets",
		"  Step 1: Check DMVs  ":        "step-1-check-dmvs",
		"pg_stat_statements Overview":   "pg_stat_statements-overview",
		"Backup & Recovery (Full)":      "backup--recovery-full",
		"Índices e Manutenção":          "índices-e-manutenção",
		"already-hyphenated-heading":    "already-hyphenated-heading",
		"Trailing punctuation!?":        "trailing-punctuation",
		"`sys.dm_os_wait_stats` output": "sysdm_os_wait_stats-output",
	}
	for input, expected := range tests {
		t.Run(input, func(t *testing.T) {
			assert.Equal(t, expected, Slugify(input))
		})
	}
}

func TestHasAnchor(t *testing.T) {
	doc := &Document{
		Headings: []Heading{
			{Text: "Examples", Slug: "examples"},
			{Text: "Examples", Slug: "examples"},
			{Text: "Wait Statistics", Slug: "wait-statistics"},
		},
	}

	assert.True(t, doc.HasAnchor("examples"))
	assert.True(t, doc.HasAnchor("examples-1"))
	assert.True(t, doc.HasAnchor("Wait-Statistics"))
	assert.False(t, doc.HasAnchor("examples-2"))
	assert.False(t, doc.HasAnchor("missing"))
}

func TestParseMarkdownFileSkipsFrontmatter(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "skills", "postgresql-vacuum", "references", "autovacuum.md")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	content := "---\ntitle: Autovacuum\n---\n\n# Autovacuum Tuning\n\n## Thresholds\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	doc, err := ParseMarkdownFile(path, root)
	require.NoError(t, err)
	assert.Equal(t, "skills/postgresql-vacuum/references/autovacuum.md", doc.Path)
	require.Len(t, doc.Headings, 2)
	assert.Equal(t, "Autovacuum Tuning", doc.Headings[0].Text)
	assert.Equal(t, 5, doc.Headings[0].Line)

	_, err = ParseMarkdownFile(filepath.Join(root, "missing.md"), root)
	assert.Error(t, err)
}

func TestKeyLines(t *testing.T) {
	lines := []string{
		"---",
		"name: sqlserver-index-maintenance",
		"description: >",
		"  Rebuild or reorganize fragmented indexes",
		"# comment",
		"\"version\": 2",
		"---",
	}
	got := keyLines(lines, 6)
	assert.Equal(t, map[string]int{"name": 2, "description": 3, "version": 6}, got)

	fm := &Frontmatter{KeyLines: got}
	assert.Equal(t, 6, fm.Line("version"))
	assert.Equal(t, 1, fm.Line("license"))
}
