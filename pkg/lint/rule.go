package lint

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/jingkaihe/skillctl/pkg/skills"
)

// Rule is a named check with a default severity
type Rule interface {
	ID() string
	Description() string
	DefaultSeverity() Severity
}

// SkillRule checks one skill at a time. Skill rules run concurrently and
// must not mutate the skill.
type SkillRule interface {
	Rule
	CheckSkill(ctx context.Context, lc *Context, skill *skills.Skill) []Finding
}

// CorpusRule checks relationships between skills and runs once per lint run
type CorpusRule interface {
	Rule
	CheckCorpus(ctx context.Context, lc *Context, corpus *skills.Corpus) []Finding
}

// Context carries run-wide state shared by the rules of one lint run
type Context struct {
	Root    string
	Options Options

	mu   sync.Mutex
	docs map[string]*skills.Document
}

func newContext(corpus *skills.Corpus, opts Options) *Context {
	lc := &Context{
		Root:    corpus.Root,
		Options: opts,
		docs:    make(map[string]*skills.Document),
	}
	for _, s := range corpus.Skills {
		lc.docs[filepath.Clean(s.Path)] = s.Document
		for _, r := range s.Resources() {
			if r.Document != nil {
				lc.docs[filepath.Clean(r.Path)] = r.Document
			}
		}
	}
	return lc
}

// Document returns the parsed Markdown of the file at path. Files that were
// not part of the loaded corpus are parsed on first use and cached.
func (lc *Context) Document(path string) (*skills.Document, error) {
	path = filepath.Clean(path)

	lc.mu.Lock()
	defer lc.mu.Unlock()

	if doc, ok := lc.docs[path]; ok {
		return doc, nil
	}
	doc, err := skills.ParseMarkdownFile(path, lc.Root)
	if err != nil {
		return nil, err
	}
	lc.docs[path] = doc
	return doc, nil
}

// rel returns path relative to the corpus root in slash form
func (lc *Context) rel(path string) string {
	rel, err := filepath.Rel(lc.Root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

// skillFinding builds a finding located in one of the skill's files. The
// linter fills in the rule and severity.
func (lc *Context) skillFinding(skill *skills.Skill, path string, line int, format string, args ...any) Finding {
	return Finding{
		Path:    lc.rel(path),
		Line:    line,
		Message: fmt.Sprintf(format, args...),
		Skill:   skill.DirName(),
		Tree:    skill.Tree,
	}
}

// rule is the shared implementation of the Rule interface
type rule struct {
	id          string
	description string
	severity    Severity
}

func (r rule) ID() string                { return r.id }
func (r rule) Description() string       { return r.description }
func (r rule) DefaultSeverity() Severity { return r.severity }

// Rules returns every built-in rule in documentation order
func Rules() []Rule {
	return []Rule{
		frontmatterMissingRule{rule{"frontmatter-missing", "SKILL.md starts with a --- delimited YAML frontmatter block", SeverityError}},
		frontmatterInvalidRule{rule{"frontmatter-invalid", "frontmatter parses as YAML and name/description are strings", SeverityError}},
		frontmatterKeysRule{rule{"frontmatter-keys", "frontmatter contains only name and description", SeverityError}},
		nameMissingRule{rule{"name-missing", "frontmatter name is present and not empty", SeverityError}},
		nameFormatRule{rule{"name-format", "name is lowercase letters and digits separated by single hyphens", SeverityError}},
		nameLengthRule{rule{"name-length", "name is no longer than the configured maximum", SeverityError}},
		descriptionMissingRule{rule{"description-missing", "frontmatter description is present and not empty", SeverityError}},
		descriptionLengthRule{rule{"description-length", "description is no longer than the configured maximum", SeverityError}},
		bodyLengthRule{rule{"body-length", "SKILL.md body stays under the configured line count", SeverityError}},
		bodyEmptyRule{rule{"body-empty", "SKILL.md body has content after the frontmatter", SeverityWarning}},
		directoryMismatchRule{rule{"directory-mismatch", "skill directory name matches the frontmatter name", SeverityError}},
		requiredSectionRule{rule{"required-section", "SKILL.md contains every configured section heading", SeverityError}},
		brokenLinkRule{rule{"broken-link", "relative links and images point at existing files", SeverityError}},
		brokenAnchorRule{rule{"broken-anchor", "link fragments match a heading in the target document", SeverityWarning}},
		orphanResourceRule{rule{"orphan-resource", "every file in references/ and examples/ is linked from the skill", SeverityWarning}},
		codeFenceLanguageRule{rule{"code-fence-language", "fenced code blocks declare a language", SeverityWarning}},
		skillFileMissingRule{rule{"skill-file-missing", "every directory in a tree contains SKILL.md", SeverityError}},
		duplicateNameRule{rule{"duplicate-name", "skill names are unique within a tree", SeverityError}},
		treeCoverageRule{rule{"tree-coverage", "every skill exists in every tree", SeverityInfo}},
	}
}

// RuleByID looks up a built-in rule
func RuleByID(id string) (Rule, bool) {
	for _, r := range Rules() {
		if r.ID() == id {
			return r, true
		}
	}
	return nil, false
}
