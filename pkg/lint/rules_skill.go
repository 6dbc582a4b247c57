package lint

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/jingkaihe/skillctl/pkg/skills"
)

var allowedFrontmatterKeys = map[string]bool{"name": true, "description": true}

// metadataReadable reports whether name and description can be trusted.
// Rules about their values stay quiet when the block itself is broken.
func metadataReadable(skill *skills.Skill) bool {
	return skill.Frontmatter != nil && skill.Frontmatter.Present && skill.Frontmatter.Err == nil
}

type frontmatterMissingRule struct{ rule }

func (r frontmatterMissingRule) CheckSkill(_ context.Context, lc *Context, skill *skills.Skill) []Finding {
	if skill.Frontmatter != nil && skill.Frontmatter.Present {
		return nil
	}
	return []Finding{lc.skillFinding(skill, skill.Path, 1, "SKILL.md has no YAML frontmatter block")}
}

type frontmatterInvalidRule struct{ rule }

func (r frontmatterInvalidRule) CheckSkill(_ context.Context, lc *Context, skill *skills.Skill) []Finding {
	fm := skill.Frontmatter
	if fm == nil || !fm.Present || fm.Err == nil {
		return nil
	}
	return []Finding{lc.skillFinding(skill, skill.Path, 1, "%v", fm.Err)}
}

type frontmatterKeysRule struct{ rule }

func (r frontmatterKeysRule) CheckSkill(_ context.Context, lc *Context, skill *skills.Skill) []Finding {
	fm := skill.Frontmatter
	if fm == nil || !fm.Present {
		return nil
	}
	var findings []Finding
	for _, key := range fm.Keys {
		if allowedFrontmatterKeys[key] {
			continue
		}
		findings = append(findings, lc.skillFinding(skill, skill.Path, fm.Line(key),
			"frontmatter key %q is not allowed, only name and description", key))
	}
	return findings
}

type nameMissingRule struct{ rule }

func (r nameMissingRule) CheckSkill(_ context.Context, lc *Context, skill *skills.Skill) []Finding {
	if !metadataReadable(skill) || skill.Name != "" {
		return nil
	}
	return []Finding{lc.skillFinding(skill, skill.Path, skill.Frontmatter.Line("name"), "frontmatter name is missing or empty")}
}

type nameFormatRule struct{ rule }

func (r nameFormatRule) CheckSkill(_ context.Context, lc *Context, skill *skills.Skill) []Finding {
	if !metadataReadable(skill) || skill.Name == "" || skills.ValidName(skill.Name) {
		return nil
	}
	return []Finding{lc.skillFinding(skill, skill.Path, skill.Frontmatter.Line("name"),
		"name %q must be lowercase letters and digits separated by single hyphens", skill.Name)}
}

type nameLengthRule struct{ rule }

func (r nameLengthRule) CheckSkill(_ context.Context, lc *Context, skill *skills.Skill) []Finding {
	if !metadataReadable(skill) {
		return nil
	}
	limit := lc.Options.Limits.NameMax
	if n := utf8.RuneCountInString(skill.Name); n > limit {
		return []Finding{lc.skillFinding(skill, skill.Path, skill.Frontmatter.Line("name"),
			"name is %d characters, maximum is %d", n, limit)}
	}
	return nil
}

type descriptionMissingRule struct{ rule }

func (r descriptionMissingRule) CheckSkill(_ context.Context, lc *Context, skill *skills.Skill) []Finding {
	if !metadataReadable(skill) || skill.Description != "" {
		return nil
	}
	return []Finding{lc.skillFinding(skill, skill.Path, skill.Frontmatter.Line("description"), "frontmatter description is missing or empty")}
}

type descriptionLengthRule struct{ rule }

func (r descriptionLengthRule) CheckSkill(_ context.Context, lc *Context, skill *skills.Skill) []Finding {
	if !metadataReadable(skill) {
		return nil
	}
	limit := lc.Options.Limits.DescriptionMax
	if n := utf8.RuneCountInString(skill.Description); n > limit {
		return []Finding{lc.skillFinding(skill, skill.Path, skill.Frontmatter.Line("description"),
			"description is %d characters, maximum is %d", n, limit)}
	}
	return nil
}

type directoryMismatchRule struct{ rule }

func (r directoryMismatchRule) CheckSkill(_ context.Context, lc *Context, skill *skills.Skill) []Finding {
	if !metadataReadable(skill) || skill.Name == "" || skill.Name == skill.DirName() {
		return nil
	}
	return []Finding{lc.skillFinding(skill, skill.Path, skill.Frontmatter.Line("name"),
		"directory %q does not match name %q", skill.DirName(), skill.Name)}
}

type bodyLengthRule struct{ rule }

func (r bodyLengthRule) CheckSkill(_ context.Context, lc *Context, skill *skills.Skill) []Finding {
	limit := lc.Options.Limits.BodyLines
	if skill.BodyLines < limit {
		return nil
	}
	return []Finding{lc.skillFinding(skill, skill.Path, skill.BodyStartLine,
		"body has %d lines, must be under %d; move detail into references/", skill.BodyLines, limit)}
}

type bodyEmptyRule struct{ rule }

func (r bodyEmptyRule) CheckSkill(_ context.Context, lc *Context, skill *skills.Skill) []Finding {
	if strings.TrimSpace(skill.Content) != "" {
		return nil
	}
	line := 1
	if skill.Frontmatter != nil && skill.Frontmatter.EndLine > 0 {
		line = skill.Frontmatter.EndLine
	}
	return []Finding{lc.skillFinding(skill, skill.Path, line, "SKILL.md has no body content")}
}

type requiredSectionRule struct{ rule }

func (r requiredSectionRule) CheckSkill(_ context.Context, lc *Context, skill *skills.Skill) []Finding {
	if skill.Document == nil {
		return nil
	}
	var findings []Finding
	for _, section := range lc.Options.RequiredSections {
		if !skill.Document.HasHeading(section) {
			findings = append(findings, lc.skillFinding(skill, skill.Path, 0, "missing required section %q", section))
		}
	}
	return findings
}

type codeFenceLanguageRule struct{ rule }

func (r codeFenceLanguageRule) CheckSkill(_ context.Context, lc *Context, skill *skills.Skill) []Finding {
	var findings []Finding
	for _, f := range skillFiles(skill) {
		for _, block := range f.doc.CodeBlocks {
			if block.Language == "" {
				findings = append(findings, lc.skillFinding(skill, f.path, block.Line, "fenced code block has no language"))
			}
		}
	}
	return findings
}

// skillFile pairs a parsed Markdown file of a skill with its path on disk
type skillFile struct {
	path string
	doc  *skills.Document
}

// skillFiles lists SKILL.md followed by every Markdown resource
func skillFiles(skill *skills.Skill) []skillFile {
	var files []skillFile
	if skill.Document != nil {
		files = append(files, skillFile{path: skill.Path, doc: skill.Document})
	}
	for _, r := range skill.Resources() {
		if r.Document != nil {
			files = append(files, skillFile{path: r.Path, doc: r.Document})
		}
	}
	return files
}
