package lint

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jingkaihe/skillctl/pkg/skills"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cleanSkill = `---
name: postgresql-security
description: Audit roles, privileges and pg_hba.conf rules
---

# PostgreSQL Security

## When to Use

Use when reviewing access. See [role audit](references/roles.md#audit-queries)
and the [locked out scenario](examples/locked-out.md).

` + "```sql" + `
SELECT rolname FROM pg_roles;
` + "```" + `
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func skillSource(name, description, body string) string {
	var b strings.Builder
	b.WriteString("---\n")
	if name != "" {
		b.WriteString("name: " + name + "\n")
	}
	if description != "" {
		b.WriteString("description: " + description + "\n")
	}
	b.WriteString("---\n\n")
	b.WriteString(body)
	return b.String()
}

// writeCleanSkill writes a skill that passes every rule
func writeCleanSkill(t *testing.T, root, tree string) {
	t.Helper()
	dir := filepath.Join(root, tree, "postgresql-security")
	writeFile(t, filepath.Join(dir, "SKILL.md"), cleanSkill)
	writeFile(t, filepath.Join(dir, "references", "roles.md"), "# Roles\n\n## Audit Queries\n\nList roles with login.\n")
	writeFile(t, filepath.Join(dir, "examples", "locked-out.md"), "# Locked Out\n\nBack to [the skill](../SKILL.md#when-to-use).\n")
}

func loadCorpus(t *testing.T, root string, trees ...string) *skills.Corpus {
	t.Helper()
	if len(trees) == 0 {
		trees = []string{"skills"}
	}
	loader, err := skills.NewLoader(skills.WithRoot(root), skills.WithTrees(trees...))
	require.NoError(t, err)
	corpus, err := loader.Load(context.Background())
	require.NoError(t, err)
	return corpus
}

func runLint(t *testing.T, corpus *skills.Corpus, opts Options) *Result {
	t.Helper()
	linter, err := New(opts)
	require.NoError(t, err)
	result, err := linter.Run(context.Background(), corpus)
	require.NoError(t, err)
	return result
}

func ruleIDs(findings []Finding) map[string]int {
	ids := make(map[string]int)
	for _, f := range findings {
		ids[f.Rule]++
	}
	return ids
}

func withSections() Options {
	opts := DefaultOptions()
	opts.RequiredSections = []string{"When to Use"}
	return opts
}

func TestCleanSkillHasNoFindings(t *testing.T) {
	root := t.TempDir()
	writeCleanSkill(t, root, "skills")

	result := runLint(t, loadCorpus(t, root), withSections())

	assert.Empty(t, result.Findings)
	assert.Equal(t, 1, result.SkillCount)
	assert.Len(t, result.Rules, len(Rules()))
}

func TestRulesFireOnViolations(t *testing.T) {
	tests := []struct {
		name    string
		files   map[string]string
		opts    func() Options
		want    string
		wantNot []string
		line    int
	}{
		{
			name:    "frontmatter-missing",
			files:   map[string]string{"skills/no-frontmatter/SKILL.md": "# No Frontmatter\n\nBody text.\n"},
			want:    "frontmatter-missing",
			wantNot: []string{"name-missing", "description-missing", "frontmatter-invalid"},
			line:    1,
		},
		{
			name:    "frontmatter-invalid",
			files:   map[string]string{"skills/broken-yaml/SKILL.md": "---\nname: [unclosed\n---\n\nBody text.\n"},
			want:    "frontmatter-invalid",
			wantNot: []string{"name-missing", "frontmatter-missing"},
		},
		{
			name:    "frontmatter-invalid non-string name",
			files:   map[string]string{"skills/numeric-name/SKILL.md": "---\nname:\n  nested: true\ndescription: Numeric\n---\n\nBody text.\n"},
			want:    "frontmatter-invalid",
			wantNot: []string{"directory-mismatch"},
		},
		{
			name: "frontmatter-keys",
			files: map[string]string{
				"skills/extra-keys/SKILL.md": "---\nname: extra-keys\ndescription: Has a license key\nlicense: MIT\n---\n\nBody text.\n",
			},
			want: "frontmatter-keys",
			line: 4,
		},
		{
			name:  "name-missing",
			files: map[string]string{"skills/nameless/SKILL.md": skillSource("", "No name here", "Body text.\n")},
			want:  "name-missing",
		},
		{
			name:    "name-format",
			files:   map[string]string{"skills/PostgreSQL_Security/SKILL.md": skillSource("PostgreSQL_Security", "Bad casing", "Body text.\n")},
			want:    "name-format",
			wantNot: []string{"directory-mismatch"},
			line:    2,
		},
		{
			name: "name-length",
			files: map[string]string{
				"skills/" + strings.Repeat("a", 65) + "/SKILL.md": skillSource(strings.Repeat("a", 65), "Long name", "Body text.\n"),
			},
			want:    "name-length",
			wantNot: []string{"name-format"},
		},
		{
			name:  "description-missing",
			files: map[string]string{"skills/no-description/SKILL.md": skillSource("no-description", "", "Body text.\n")},
			want:  "description-missing",
			line:  1,
		},
		{
			name:  "description-length",
			files: map[string]string{"skills/long-description/SKILL.md": skillSource("long-description", strings.Repeat("é", 1025), "Body text.\n")},
			want:  "description-length",
			line:  3,
		},
		{
			name:  "body-length",
			files: map[string]string{"skills/long-body/SKILL.md": skillSource("long-body", "Too long", strings.Repeat("line\n", 500))},
			want:  "body-length",
			line:  6,
		},
		{
			name:  "body-empty",
			files: map[string]string{"skills/empty-body/SKILL.md": skillSource("empty-body", "Nothing below", "")},
			want:  "body-empty",
		},
		{
			name:  "directory-mismatch",
			files: map[string]string{"skills/pg-sec/SKILL.md": skillSource("postgresql-security", "Mismatched dir", "Body text.\n")},
			want:  "directory-mismatch",
		},
		{
			name:  "required-section",
			files: map[string]string{"skills/no-sections/SKILL.md": skillSource("no-sections", "Missing sections", "# Title\n\nBody text.\n")},
			opts:  withSections,
			want:  "required-section",
		},
		{
			name:  "broken-link",
			files: map[string]string{"skills/dead-link/SKILL.md": skillSource("dead-link", "Dead link", "See [missing](references/missing.md).\n")},
			want:  "broken-link",
			line:  6,
		},
		{
			name: "broken-link in resource",
			files: map[string]string{
				"skills/dead-ref/SKILL.md":           skillSource("dead-ref", "Dead link in reference", "See [waits](references/waits.md).\n"),
				"skills/dead-ref/references/waits.md": "# Waits\n\n![plan](../images/plan.png)\n",
			},
			want: "broken-link",
			line: 3,
		},
		{
			name: "broken-anchor",
			files: map[string]string{
				"skills/dead-anchor/SKILL.md":           skillSource("dead-anchor", "Dead anchor", "See [roles](references/roles.md#nope).\n"),
				"skills/dead-anchor/references/roles.md": "# Roles\n",
			},
			want:    "broken-anchor",
			wantNot: []string{"broken-link"},
		},
		{
			name:  "broken-anchor same file",
			files: map[string]string{"skills/self-anchor/SKILL.md": skillSource("self-anchor", "Self anchor", "# Intro\n\nJump to [steps](#steps).\n")},
			want:  "broken-anchor",
		},
		{
			name: "orphan-resource",
			files: map[string]string{
				"skills/orphaned/SKILL.md":             skillSource("orphaned", "Orphan reference", "No links here.\n"),
				"skills/orphaned/references/unused.sql": "SELECT 1;\n",
			},
			want: "orphan-resource",
		},
		{
			name:  "code-fence-language",
			files: map[string]string{"skills/bare-fence/SKILL.md": skillSource("bare-fence", "Bare fence", "Run:\n\n```\nSELECT 1;\n```\n")},
			want:  "code-fence-language",
			line:  8,
		},
		{
			name:  "skill-file-missing",
			files: map[string]string{"skills/notes/README.md": "# Notes\n"},
			want:  "skill-file-missing",
		},
		{
			name: "duplicate-name",
			files: map[string]string{
				"skills/sqlserver-backup/SKILL.md": skillSource("sqlserver-backup", "First", "Body text.\n"),
				"skills/sqlserver-bkp/SKILL.md":    skillSource("sqlserver-backup", "Second", "Body text.\n"),
			},
			want: "duplicate-name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			for rel, content := range tt.files {
				writeFile(t, filepath.Join(root, filepath.FromSlash(rel)), content)
			}
			opts := DefaultOptions()
			if tt.opts != nil {
				opts = tt.opts()
			}

			result := runLint(t, loadCorpus(t, root), opts)
			ids := ruleIDs(result.Findings)

			assert.Contains(t, ids, tt.want, "findings: %+v", result.Findings)
			for _, id := range tt.wantNot {
				assert.NotContains(t, ids, id)
			}
			if tt.line > 0 {
				for _, f := range result.Findings {
					if f.Rule == tt.want {
						assert.Equal(t, tt.line, f.Line)
					}
				}
			}
		})
	}
}

func TestTreeCoverage(t *testing.T) {
	root := t.TempDir()
	writeCleanSkill(t, root, "skills")
	writeCleanSkill(t, root, "skills-codex")
	writeFile(t, filepath.Join(root, "skills", "sqlserver-health-check", "SKILL.md"),
		skillSource("sqlserver-health-check", "Health check", "```sql\nSELECT 1;\n```\n"))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "skills-gemini"), 0o755))

	corpus := loadCorpus(t, root, "skills", "skills-codex", "skills-gemini")
	result := runLint(t, corpus, DefaultOptions())

	var coverage []Finding
	for _, f := range result.Findings {
		if f.Rule == "tree-coverage" {
			coverage = append(coverage, f)
		}
	}
	require.Len(t, coverage, 2)
	assert.Equal(t, SeverityInfo, coverage[0].Severity)
	assert.Contains(t, coverage[0].Message, "postgresql-security is missing from skills-gemini")
	assert.Contains(t, coverage[1].Message, "sqlserver-health-check is missing from skills-codex, skills-gemini")
}

func TestBodyLengthBoundary(t *testing.T) {
	tests := []struct {
		name    string
		content int // lines after the blank separator
		fires   bool
	}{
		{name: "499 lines after delimiter", content: 498, fires: false},
		{name: "500 lines after delimiter", content: 499, fires: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			writeFile(t, filepath.Join(root, "skills", "long-body", "SKILL.md"),
				skillSource("long-body", "Boundary", strings.Repeat("line\n", tt.content)))

			result := runLint(t, loadCorpus(t, root), DefaultOptions())
			ids := ruleIDs(result.Findings)
			if tt.fires {
				require.Equal(t, 1, ids["body-length"])
				for _, f := range result.Findings {
					if f.Rule == "body-length" {
						assert.Equal(t, "body has 500 lines, must be under 500; move detail into references/", f.Message)
					}
				}
			} else {
				assert.NotContains(t, ids, "body-length")
			}
		})
	}
}

func TestFindingFields(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "skills", "pg-sec", "SKILL.md"), skillSource("postgresql-security", "Mismatch", "Body text.\n"))

	result := runLint(t, loadCorpus(t, root), DefaultOptions())
	require.Len(t, result.Findings, 1)

	f := result.Findings[0]
	assert.Equal(t, "directory-mismatch", f.Rule)
	assert.Equal(t, SeverityError, f.Severity)
	assert.Equal(t, "skills/pg-sec/SKILL.md", f.Path)
	assert.Equal(t, 2, f.Line)
	assert.Equal(t, "pg-sec", f.Skill)
	assert.Equal(t, "skills", f.Tree)
	assert.Equal(t, "skills/pg-sec/SKILL.md:2", f.Location())
}

func TestRuleSelectionAndSeverity(t *testing.T) {
	opts := DefaultOptions()
	opts.Disable = []string{"frontmatter-*", "tree-coverage"}
	opts.Severity = map[string]string{"code-fence-language": "error"}

	linter, err := New(opts)
	require.NoError(t, err)

	for _, r := range linter.Active() {
		assert.False(t, strings.HasPrefix(r.ID(), "frontmatter-"), r.ID())
		assert.NotEqual(t, "tree-coverage", r.ID())
	}
	fence, ok := RuleByID("code-fence-language")
	require.True(t, ok)
	assert.Equal(t, SeverityError, linter.SeverityOf(fence))

	opts = DefaultOptions()
	opts.Enable = []string{"name-*"}
	linter, err = New(opts)
	require.NoError(t, err)
	var ids []string
	for _, r := range linter.Active() {
		ids = append(ids, r.ID())
	}
	assert.Equal(t, []string{"name-missing", "name-format", "name-length"}, ids)
}

func TestNewRejectsInvalidOptions(t *testing.T) {
	opts := DefaultOptions()
	opts.Disable = []string{"[unterminated"}
	_, err := New(opts)
	assert.Error(t, err)

	opts = DefaultOptions()
	opts.Severity = map[string]string{"no-such-rule": "error"}
	_, err = New(opts)
	assert.ErrorContains(t, err, "unknown rule")

	opts = DefaultOptions()
	opts.Severity = map[string]string{"body-empty": "fatal"}
	_, err = New(opts)
	assert.ErrorContains(t, err, "unknown severity")

	opts = DefaultOptions()
	opts.Limits.BodyLines = 0
	_, err = New(opts)
	assert.Error(t, err)
}

func TestRunIsDeterministicAcrossConcurrency(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < 12; i++ {
		name := "skill-" + string(rune('a'+i))
		writeFile(t, filepath.Join(root, "skills", name, "SKILL.md"),
			skillSource(name, "Generated", "```\nSELECT 1;\n```\n\n[gone](references/gone.md)\n"))
	}
	corpus := loadCorpus(t, root)

	serial := DefaultOptions()
	serial.Concurrency = 1
	parallel := DefaultOptions()
	parallel.Concurrency = 6

	a := runLint(t, corpus, serial)
	b := runLint(t, corpus, parallel)
	assert.Equal(t, a.Findings, b.Findings)
	assert.Len(t, a.Findings, 24)
}

func TestRunCancelled(t *testing.T) {
	root := t.TempDir()
	writeCleanSkill(t, root, "skills")
	corpus := loadCorpus(t, root)

	linter, err := New(DefaultOptions())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = linter.Run(ctx, corpus)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResolveLink(t *testing.T) {
	root := filepath.FromSlash("/corpus")
	from := filepath.FromSlash("/corpus/skills/pg/SKILL.md")

	tests := []struct {
		dest     string
		ok       bool
		path     string
		fragment string
	}{
		{"https://www.postgresql.org/docs/", false, "", ""},
		{"mailto:dba@example.com", false, "", ""},
		{"//cdn.example.com/x.png", false, "", ""},
		{"", false, "", ""},
		{"references/roles.md", true, "/corpus/skills/pg/references/roles.md", ""},
		{"references/roles.md#audit-queries", true, "/corpus/skills/pg/references/roles.md", "audit-queries"},
		{"references/wait%20stats.md?plain=1", true, "/corpus/skills/pg/references/wait stats.md", ""},
		{"../other/SKILL.md", true, "/corpus/skills/other/SKILL.md", ""},
		{"/skills-codex/pg/SKILL.md", true, "/corpus/skills-codex/pg/SKILL.md", ""},
		{"#steps", true, "/corpus/skills/pg/SKILL.md", "steps"},
		{"#%C3%ADndices", true, "/corpus/skills/pg/SKILL.md", "índices"},
	}

	for _, tt := range tests {
		t.Run(tt.dest, func(t *testing.T) {
			target, ok := resolveLink(root, from, tt.dest)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, filepath.FromSlash(tt.path), target.path)
				assert.Equal(t, tt.fragment, target.fragment)
			}
		})
	}
}

func TestParseSeverity(t *testing.T) {
	sev, err := ParseSeverity("WARN")
	require.NoError(t, err)
	assert.Equal(t, SeverityWarning, sev)

	_, err = ParseSeverity("critical")
	assert.Error(t, err)

	threshold, err := ParseFailOn("never")
	require.NoError(t, err)
	assert.False(t, SeverityError.AtLeast(threshold))

	threshold, err = ParseFailOn("warning")
	require.NoError(t, err)
	assert.True(t, SeverityError.AtLeast(threshold))
	assert.True(t, SeverityWarning.AtLeast(threshold))
	assert.False(t, SeverityInfo.AtLeast(threshold))
}
