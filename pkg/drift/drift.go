// Package drift compares the near-duplicate skill trees of a corpus against
// a base tree and classifies every skill file as identical, modified,
// missing or extra.
package drift

import (
	"bytes"
	"os"
	"path"
	"slices"
	"sort"

	"github.com/aymanbagabas/go-udiff"
	"github.com/jingkaihe/skillctl/pkg/skills"
	"github.com/pkg/errors"
)

// Status classifies a file or skill relative to the base tree
type Status string

const (
	StatusIdentical Status = "identical"
	StatusModified  Status = "modified"
	StatusMissing   Status = "missing" // present in base, absent in the other tree
	StatusExtra     Status = "extra"   // absent in base, present in the other tree
)

// Entry is the comparison of one file, or of a whole skill when File is empty
type Entry struct {
	Skill  string `json:"skill"`
	Tree   string `json:"tree"`
	File   string `json:"file,omitempty"`
	Status Status `json:"status"`
	Diff   string `json:"diff,omitempty"`
}

// Options configures Compare
type Options struct {
	Diff   bool     // attach unified diffs to modified entries
	Trees  []string // trees to compare against the base, empty means every other tree
	Skills []string // restrict to these skill directory names
}

// Result holds the entries of a comparison
type Result struct {
	Base    string   `json:"base"`
	Trees   []string `json:"trees"`
	Entries []Entry  `json:"entries"`
}

// Summary counts entries per status
type Summary struct {
	Identical int `json:"identical"`
	Modified  int `json:"modified"`
	Missing   int `json:"missing"`
	Extra     int `json:"extra"`
}

// Summary counts entries per status
func (r *Result) Summary() Summary {
	var s Summary
	for _, e := range r.Entries {
		switch e.Status {
		case StatusIdentical:
			s.Identical++
		case StatusModified:
			s.Modified++
		case StatusMissing:
			s.Missing++
		case StatusExtra:
			s.Extra++
		}
	}
	return s
}

// Changed returns every entry that is not identical
func (r *Result) Changed() []Entry {
	var changed []Entry
	for _, e := range r.Entries {
		if e.Status != StatusIdentical {
			changed = append(changed, e)
		}
	}
	return changed
}

// Compare classifies every skill file of the other trees against base
func Compare(corpus *skills.Corpus, base string, opts Options) (*Result, error) {
	if !slices.Contains(corpus.Trees, base) {
		return nil, errors.Errorf("base tree %q is not part of the corpus (trees: %v)", base, corpus.Trees)
	}

	others := opts.Trees
	if len(others) == 0 {
		for _, t := range corpus.Trees {
			if t != base {
				others = append(others, t)
			}
		}
	}
	for _, t := range others {
		if t == base {
			return nil, errors.Errorf("tree %q cannot be compared with itself", t)
		}
		if !slices.Contains(corpus.Trees, t) {
			return nil, errors.Errorf("tree %q is not part of the corpus", t)
		}
	}

	result := &Result{Base: base, Trees: others}
	names := corpus.SkillDirNames()
	if len(opts.Skills) > 0 {
		names = intersect(names, opts.Skills)
	}

	for _, name := range names {
		baseSkill := inTree(corpus, base, name)
		for _, tree := range others {
			other := inTree(corpus, tree, name)
			switch {
			case baseSkill == nil && other == nil:
				continue
			case other == nil:
				result.Entries = append(result.Entries, Entry{Skill: name, Tree: tree, Status: StatusMissing})
			case baseSkill == nil:
				result.Entries = append(result.Entries, Entry{Skill: name, Tree: tree, Status: StatusExtra})
			default:
				entries, err := compareSkill(corpus, baseSkill, other, opts)
				if err != nil {
					return nil, err
				}
				result.Entries = append(result.Entries, entries...)
			}
		}
	}

	sort.SliceStable(result.Entries, func(i, j int) bool {
		a, b := result.Entries[i], result.Entries[j]
		if a.Skill != b.Skill {
			return a.Skill < b.Skill
		}
		if a.Tree != b.Tree {
			return a.Tree < b.Tree
		}
		return a.File < b.File
	})
	return result, nil
}

func compareSkill(corpus *skills.Corpus, base, other *skills.Skill, opts Options) ([]Entry, error) {
	baseFiles := skillFiles(base)
	otherFiles := skillFiles(other)

	names := make([]string, 0, len(baseFiles)+len(otherFiles))
	for rel := range baseFiles {
		names = append(names, rel)
	}
	for rel := range otherFiles {
		if _, ok := baseFiles[rel]; !ok {
			names = append(names, rel)
		}
	}
	sort.Strings(names)

	entries := make([]Entry, 0, len(names))
	for _, rel := range names {
		entry := Entry{Skill: base.DirName(), Tree: other.Tree, File: rel}
		basePath, inBase := baseFiles[rel]
		otherPath, inOther := otherFiles[rel]

		switch {
		case !inOther:
			entry.Status = StatusMissing
		case !inBase:
			entry.Status = StatusExtra
		default:
			a, err := readNormalized(basePath)
			if err != nil {
				return nil, err
			}
			b, err := readNormalized(otherPath)
			if err != nil {
				return nil, err
			}
			if bytes.Equal(a, b) {
				entry.Status = StatusIdentical
				break
			}
			entry.Status = StatusModified
			if opts.Diff {
				entry.Diff = udiff.Unified(corpus.Rel(basePath), corpus.Rel(otherPath), string(a), string(b))
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// skillFiles maps slash paths relative to the skill directory to paths on disk
func skillFiles(s *skills.Skill) map[string]string {
	files := map[string]string{skills.SkillFileName: s.Path}
	for _, r := range s.Resources() {
		files[path.Clean(r.RelPath)] = r.Path
	}
	return files
}

func readNormalized(p string) ([]byte, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", p)
	}
	return bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n")), nil
}

func inTree(corpus *skills.Corpus, tree, name string) *skills.Skill {
	for _, s := range corpus.ByName(name) {
		if s.Tree == tree {
			return s
		}
	}
	return nil
}

func intersect(names, allowed []string) []string {
	var out []string
	for _, n := range names {
		if slices.Contains(allowed, n) {
			out = append(out, n)
		}
	}
	return out
}
