package skills

import (
	"os"
	"path"
	"strings"

	"github.com/pkg/errors"
)

// Summary is the frontmatter-level view of a skill, what an agent host reads
// to decide whether a skill applies
type Summary struct {
	Name        string `json:"name"`
	Directory   string `json:"directory"`
	Tree        string `json:"tree"`
	Description string `json:"description"`
	Path        string `json:"path"`
}

// Detail adds the structure of SKILL.md and the supporting files
type Detail struct {
	Summary
	BodyLines  int       `json:"bodyLines"`
	Headings   []Heading `json:"headings"`
	References []string  `json:"references"`
	Examples   []string  `json:"examples"`
	Hash       string    `json:"hash"`
}

// Summarize returns the summaries of skills in corpus order
func (c *Corpus) Summarize(list []*Skill) []Summary {
	out := make([]Summary, 0, len(list))
	for _, s := range list {
		out = append(out, Summary{
			Name:        s.Name,
			Directory:   s.DirName(),
			Tree:        s.Tree,
			Description: s.Description,
			Path:        c.Rel(s.Path),
		})
	}
	return out
}

// Detail returns the detailed view of a skill
func (c *Corpus) Detail(s *Skill) Detail {
	d := Detail{
		Summary:    c.Summarize([]*Skill{s})[0],
		BodyLines:  s.BodyLines,
		Headings:   []Heading{},
		References: []string{},
		Examples:   []string{},
		Hash:       s.Hash,
	}
	if s.Document != nil {
		d.Headings = append(d.Headings, s.Document.Headings...)
	}
	for _, r := range s.References {
		d.References = append(d.References, r.RelPath)
	}
	for _, r := range s.Examples {
		d.Examples = append(d.Examples, r.RelPath)
	}
	return d
}

// ReadFile returns the content of SKILL.md or of one of the skill's
// supporting files, addressed by its slash path relative to the skill
// directory. Only files discovered with the skill can be read.
func (s *Skill) ReadFile(rel string) ([]byte, error) {
	clean := path.Clean(strings.TrimPrefix(rel, "./"))
	if clean == "." || clean == "" {
		clean = SkillFileName
	}
	if path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
		return nil, errors.Errorf("path %q is outside the skill directory", rel)
	}

	target := ""
	if clean == SkillFileName {
		target = s.Path
	} else {
		for _, r := range s.Resources() {
			if r.RelPath == clean {
				target = r.Path
				break
			}
		}
	}
	if target == "" {
		return nil, errors.Wrapf(os.ErrNotExist, "file %q not found in skill %s", rel, s.DirName())
	}

	data, err := os.ReadFile(target)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", rel)
	}
	return data, nil
}
