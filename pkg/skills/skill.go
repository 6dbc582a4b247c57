// Package skills loads agent skill directories from a corpus on disk.
// A skill is a directory containing a SKILL.md file with YAML frontmatter
// (name and description) and a Markdown body, plus optional references/
// and examples/ directories of supporting Markdown files. A corpus groups
// skills into one or more trees (skills/, skills-codex/, ...), each tree
// holding one directory per skill.
package skills

import (
	"path/filepath"
	"sort"
)

const (
	// SkillFileName is the file that marks a directory as a skill
	SkillFileName = "SKILL.md"
	// ReferencesDir holds deep-dive documents for a skill
	ReferencesDir = "references"
	// ExamplesDir holds scenario documents for a skill
	ExamplesDir = "examples"
)

// Resource kinds
const (
	KindReference = "reference"
	KindExample   = "example"
)

// Skill represents a parsed skill directory
type Skill struct {
	Name          string       // Name from frontmatter, may be empty when frontmatter is broken
	Description   string       // Description from frontmatter
	Tree          string       // Tree the skill belongs to, slash path relative to the corpus root
	Directory     string       // Full path to the skill directory
	Path          string       // Full path to SKILL.md
	Content       string       // Body of SKILL.md without frontmatter
	BodyLines     int          // Number of lines after the frontmatter block
	BodyStartLine int          // 1-based line in SKILL.md where the body starts
	Frontmatter   *Frontmatter // Parsed frontmatter details
	Document      *Document    // Markdown structure of SKILL.md
	References    []*Resource  // Files under references/
	Examples      []*Resource  // Files under examples/
	Hash          string       // SHA-256 of SKILL.md
}

// DirName returns the base name of the skill directory
func (s *Skill) DirName() string {
	return filepath.Base(s.Directory)
}

// Resources returns references followed by examples
func (s *Skill) Resources() []*Resource {
	all := make([]*Resource, 0, len(s.References)+len(s.Examples))
	all = append(all, s.References...)
	all = append(all, s.Examples...)
	return all
}

// Metadata represents the YAML frontmatter in SKILL.md files
type Metadata struct {
	Name        string `yaml:"name" mapstructure:"name"`
	Description string `yaml:"description" mapstructure:"description"`
}

// Resource is a supporting file of a skill
type Resource struct {
	Kind     string    // KindReference or KindExample
	RelPath  string    // Slash path relative to the skill directory, e.g. references/backup.md
	Path     string    // Full path on disk
	Document *Document // Parsed Markdown, nil for non-Markdown files
}

// OrphanDir is a directory inside a tree that has no SKILL.md
type OrphanDir struct {
	Tree      string
	Directory string
}

// Corpus is the result of loading one or more skill trees
type Corpus struct {
	Root    string
	Trees   []string
	Skills  []*Skill
	Orphans []OrphanDir
}

// Find returns the skill with the given directory name in a tree.
// An empty tree matches the first tree containing the skill.
func (c *Corpus) Find(tree, name string) (*Skill, bool) {
	for _, s := range c.Skills {
		if tree != "" && s.Tree != tree {
			continue
		}
		if s.DirName() == name || s.Name == name {
			return s, true
		}
	}
	return nil, false
}

// ByName returns every skill, across trees, whose directory is called name
func (c *Corpus) ByName(name string) []*Skill {
	var found []*Skill
	for _, s := range c.Skills {
		if s.DirName() == name {
			found = append(found, s)
		}
	}
	return found
}

// InTree returns the skills of one tree
func (c *Corpus) InTree(tree string) []*Skill {
	var found []*Skill
	for _, s := range c.Skills {
		if s.Tree == tree {
			found = append(found, s)
		}
	}
	return found
}

// SkillDirNames returns the sorted set of skill directory names across all trees
func (c *Corpus) SkillDirNames() []string {
	seen := make(map[string]struct{})
	for _, s := range c.Skills {
		seen[s.DirName()] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Rel returns path relative to the corpus root in slash form.
// Paths outside the root are returned unchanged.
func (c *Corpus) Rel(path string) string {
	return relSlash(c.Root, path)
}

func relSlash(root, path string) string {
	if root == "" {
		return filepath.ToSlash(path)
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

// FilterByAllowlist filters skills by an allowlist of directory names.
// If the allowlist is empty, all skills are returned.
func FilterByAllowlist(skills []*Skill, allowed []string) []*Skill {
	if len(allowed) == 0 {
		return skills
	}

	set := make(map[string]struct{}, len(allowed))
	for _, name := range allowed {
		set[name] = struct{}{}
	}

	var filtered []*Skill
	for _, s := range skills {
		if _, ok := set[s.DirName()]; ok {
			filtered = append(filtered, s)
		}
	}
	return filtered
}
