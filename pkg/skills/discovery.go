package skills

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/hashicorp/go-multierror"
	"github.com/jingkaihe/skillctl/pkg/logger"
	"github.com/pkg/errors"
)

// DefaultTrees are the tree directories searched when none are configured
var DefaultTrees = []string{"skills", "skills-codex", "skills-gemini"}

// Loader discovers skills in the trees of a corpus
type Loader struct {
	root    string
	trees   []string
	exclude []string
}

// Option is a function that configures a Loader
type Option func(*Loader) error

// WithRoot sets the corpus root directory
func WithRoot(root string) Option {
	return func(l *Loader) error {
		abs, err := filepath.Abs(root)
		if err != nil {
			return errors.Wrapf(err, "failed to resolve corpus root %s", root)
		}
		l.root = abs
		return nil
	}
}

// WithTrees sets the tree directories, relative to the root
func WithTrees(trees ...string) Option {
	return func(l *Loader) error {
		l.trees = trees
		return nil
	}
}

// WithExclude sets doublestar patterns, matched against slash paths relative
// to the root, for skill directories and resource files to skip
func WithExclude(patterns ...string) Option {
	return func(l *Loader) error {
		for _, p := range patterns {
			if !doublestar.ValidatePattern(p) {
				return errors.Errorf("invalid exclude pattern %q", p)
			}
		}
		l.exclude = patterns
		return nil
	}
}

// NewLoader creates a new skill loader. Without options it loads the
// default trees below the current directory.
func NewLoader(opts ...Option) (*Loader, error) {
	l := &Loader{trees: DefaultTrees}

	if err := WithRoot(".")(l); err != nil {
		return nil, err
	}

	for _, opt := range opts {
		if err := opt(l); err != nil {
			return nil, err
		}
	}

	return l, nil
}

// Root returns the absolute corpus root
func (l *Loader) Root() string {
	return l.root
}

// Load reads every configured tree. Trees that do not exist are skipped.
// Skills that could not be read are reported in the returned error, which
// is a *multierror.Error; the corpus still holds everything that loaded.
func (l *Loader) Load(ctx context.Context) (*Corpus, error) {
	corpus := &Corpus{Root: l.root}
	var result *multierror.Error

	for _, tree := range l.trees {
		if err := ctx.Err(); err != nil {
			return corpus, err
		}

		treeDir := filepath.Join(l.root, filepath.FromSlash(tree))
		info, err := os.Stat(treeDir)
		if err != nil || !info.IsDir() {
			logger.G(ctx).WithField("tree", tree).Debug("skill tree not found, skipping")
			continue
		}

		treeName := relSlash(l.root, treeDir)
		corpus.Trees = append(corpus.Trees, treeName)
		if err := l.loadTree(ctx, treeDir, treeName, corpus); err != nil {
			result = multierror.Append(result, err)
		}
	}

	return corpus, result.ErrorOrNil()
}

// LoadPaths loads only the given paths. Each path is either a skill
// directory (it contains SKILL.md) or a tree directory.
func (l *Loader) LoadPaths(ctx context.Context, paths []string) (*Corpus, error) {
	corpus := &Corpus{Root: l.root}
	var result *multierror.Error
	seenTrees := make(map[string]bool)

	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "failed to resolve %s", p))
			continue
		}

		info, err := os.Stat(abs)
		if err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "failed to stat %s", p))
			continue
		}
		if !info.IsDir() {
			// SKILL.md passed directly
			if filepath.Base(abs) != SkillFileName {
				result = multierror.Append(result, errors.Errorf("%s is not a skill directory or SKILL.md", p))
				continue
			}
			abs = filepath.Dir(abs)
		}

		if fileExists(filepath.Join(abs, SkillFileName)) {
			treeName := relSlash(l.root, filepath.Dir(abs))
			if !seenTrees[treeName] {
				seenTrees[treeName] = true
				corpus.Trees = append(corpus.Trees, treeName)
			}
			skill, err := l.loadSkill(abs, treeName)
			if err != nil {
				result = multierror.Append(result, err)
				continue
			}
			corpus.Skills = append(corpus.Skills, skill)
			continue
		}

		treeName := relSlash(l.root, abs)
		if !seenTrees[treeName] {
			seenTrees[treeName] = true
			corpus.Trees = append(corpus.Trees, treeName)
		}
		if err := l.loadTree(ctx, abs, treeName, corpus); err != nil {
			result = multierror.Append(result, err)
		}
	}

	sortSkills(corpus.Skills)
	return corpus, result.ErrorOrNil()
}

func (l *Loader) loadTree(ctx context.Context, treeDir, treeName string, corpus *Corpus) error {
	entries, err := os.ReadDir(treeDir)
	if err != nil {
		return errors.Wrapf(err, "failed to read tree %s", treeName)
	}

	var result *multierror.Error
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		entryPath := filepath.Join(treeDir, entry.Name())

		// os.Stat follows symlinks so linked skill directories are included
		info, err := os.Stat(entryPath)
		if err != nil || !info.IsDir() {
			continue
		}

		if l.excluded(entryPath) {
			logger.G(ctx).WithField("directory", entryPath).Debug("skill directory excluded")
			continue
		}

		if !fileExists(filepath.Join(entryPath, SkillFileName)) {
			corpus.Orphans = append(corpus.Orphans, OrphanDir{Tree: treeName, Directory: entryPath})
			continue
		}

		skill, err := l.loadSkill(entryPath, treeName)
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}

		logger.G(ctx).WithFields(map[string]any{
			"tree":  treeName,
			"skill": skill.DirName(),
		}).Debug("loaded skill")
		corpus.Skills = append(corpus.Skills, skill)
	}

	sortSkills(corpus.Skills)
	return result.ErrorOrNil()
}

// loadSkill loads dir and drops resources matching the exclude patterns
func (l *Loader) loadSkill(dir, tree string) (*Skill, error) {
	skill, err := LoadSkill(dir, tree, l.root)
	if err != nil {
		return nil, err
	}
	skill.References = l.filterResources(skill.References)
	skill.Examples = l.filterResources(skill.Examples)
	return skill, nil
}

func (l *Loader) excluded(path string) bool {
	rel := relSlash(l.root, path)
	for _, pattern := range l.exclude {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

func (l *Loader) filterResources(resources []*Resource) []*Resource {
	if len(l.exclude) == 0 {
		return resources
	}
	kept := resources[:0]
	for _, r := range resources {
		if !l.excluded(r.Path) {
			kept = append(kept, r)
		}
	}
	return kept
}

// LoadSkill loads a single skill directory. Content problems such as broken
// frontmatter are recorded on the skill; only I/O failures return an error.
func LoadSkill(dir, tree, root string) (*Skill, error) {
	path := filepath.Join(dir, SkillFileName)
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read skill file %s", path)
	}

	source := normalizeNewlines(raw)
	sum := sha256.Sum256(raw)

	skill := &Skill{
		Tree:      tree,
		Directory: dir,
		Path:      path,
		Hash:      hex.EncodeToString(sum[:]),
	}

	lines := strings.Split(string(source), "\n")
	end := splitFrontmatter(lines)
	if end >= 0 {
		doc, pctx := parseWithFrontmatter(relSlash(root, path), source)
		fm, md := decodeFrontmatter(pctx, end+1)
		fm.KeyLines = keyLines(lines, end)
		skill.Document = doc
		skill.Frontmatter = fm
		skill.Name = strings.TrimSpace(md.Name)
		skill.Description = strings.TrimSpace(md.Description)
	} else {
		skill.Document = ParseDocument(relSlash(root, path), source)
		skill.Frontmatter = &Frontmatter{Values: map[string]any{}}
	}

	skill.Content, skill.BodyStartLine, skill.BodyLines = extractBody(lines, end)

	skill.References, err = loadResources(dir, ReferencesDir, KindReference, root)
	if err != nil {
		return nil, err
	}
	skill.Examples, err = loadResources(dir, ExamplesDir, KindExample, root)
	if err != nil {
		return nil, err
	}

	return skill, nil
}

func loadResources(skillDir, sub, kind, root string) ([]*Resource, error) {
	base := filepath.Join(skillDir, sub)
	if info, err := os.Stat(base); err != nil || !info.IsDir() {
		return nil, nil
	}

	var resources []*Resource
	err := filepath.WalkDir(base, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != base && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}

		res := &Resource{
			Kind:    kind,
			RelPath: relSlash(skillDir, path),
			Path:    path,
		}
		if IsMarkdown(path) {
			doc, err := ParseMarkdownFile(path, root)
			if err != nil {
				return err
			}
			res.Document = doc
		}
		resources = append(resources, res)
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load %s of %s", sub, skillDir)
	}

	sort.Slice(resources, func(i, j int) bool {
		return resources[i].RelPath < resources[j].RelPath
	})
	return resources, nil
}

// extractBody returns the text after the closing frontmatter delimiter with
// leading blank lines removed, the 1-based line where that text starts, and
// the number of lines following the delimiter, blank separator lines included.
func extractBody(lines []string, frontmatterEnd int) (string, int, int) {
	after := lines[frontmatterEnd+1:]
	total := countLines(strings.Join(after, "\n"))

	start := 0
	for start < len(after) && strings.TrimSpace(after[start]) == "" {
		start++
	}
	if start >= len(after) {
		return "", 0, total
	}
	return strings.Join(after[start:], "\n"), frontmatterEnd + start + 2, total
}

func countLines(body string) int {
	if body == "" {
		return 0
	}
	return len(strings.Split(strings.TrimSuffix(body, "\n"), "\n"))
}

func normalizeNewlines(b []byte) []byte {
	return []byte(strings.ReplaceAll(string(b), "\r\n", "\n"))
}

func sortSkills(list []*Skill) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Tree != list[j].Tree {
			return list[i].Tree < list[j].Tree
		}
		return list[i].DirName() < list[j].DirName()
	})
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// IsMarkdown reports whether path has a Markdown extension
func IsMarkdown(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return true
	}
	return false
}
