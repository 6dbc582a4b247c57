package lint

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jingkaihe/skillctl/pkg/skills"
)

type skillFileMissingRule struct{ rule }

func (r skillFileMissingRule) CheckCorpus(_ context.Context, lc *Context, corpus *skills.Corpus) []Finding {
	var findings []Finding
	for _, orphan := range corpus.Orphans {
		findings = append(findings, Finding{
			Path:    lc.rel(orphan.Directory),
			Message: fmt.Sprintf("directory has no %s", skills.SkillFileName),
			Skill:   filepath.Base(orphan.Directory),
			Tree:    orphan.Tree,
		})
	}
	return findings
}

type duplicateNameRule struct{ rule }

func (r duplicateNameRule) CheckCorpus(_ context.Context, lc *Context, corpus *skills.Corpus) []Finding {
	type key struct{ tree, name string }
	first := make(map[key]*skills.Skill)

	var findings []Finding
	for _, s := range corpus.Skills {
		if s.Name == "" {
			continue
		}
		k := key{s.Tree, s.Name}
		prev, ok := first[k]
		if !ok {
			first[k] = s
			continue
		}
		findings = append(findings, lc.skillFinding(s, s.Path, s.Frontmatter.Line("name"),
			"name %q is already used by %s", s.Name, lc.rel(prev.Path)))
	}
	return findings
}

type treeCoverageRule struct{ rule }

func (r treeCoverageRule) CheckCorpus(_ context.Context, lc *Context, corpus *skills.Corpus) []Finding {
	if len(corpus.Trees) < 2 {
		return nil
	}

	var findings []Finding
	for _, name := range corpus.SkillDirNames() {
		present := corpus.ByName(name)
		have := make(map[string]bool, len(present))
		for _, s := range present {
			have[s.Tree] = true
		}

		var missing []string
		for _, tree := range corpus.Trees {
			if !have[tree] {
				missing = append(missing, tree)
			}
		}
		if len(missing) == 0 {
			continue
		}
		findings = append(findings, lc.skillFinding(present[0], present[0].Path, 0,
			"skill %s is missing from %s", name, strings.Join(missing, ", ")))
	}
	return findings
}
