package lint

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/jingkaihe/skillctl/pkg/logger"
	"github.com/jingkaihe/skillctl/pkg/skills"
)

var schemePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.\-]*:`)

// linkTarget is a link destination resolved against the file system
type linkTarget struct {
	path     string // absolute, cleaned
	fragment string // decoded anchor without '#', may be empty
}

// resolveLink resolves a link destination found in the file at from.
// External URLs, mailto: links and destinations without a path component
// other than a fragment return ok=false, except same-file fragments which
// resolve to from itself.
func resolveLink(root, from, dest string) (linkTarget, bool) {
	dest = strings.TrimSpace(dest)
	if dest == "" || strings.HasPrefix(dest, "//") || schemePattern.MatchString(dest) {
		return linkTarget{}, false
	}

	rawPath, fragment, _ := strings.Cut(dest, "#")
	rawPath, _, _ = strings.Cut(rawPath, "?")
	if decoded, err := url.PathUnescape(fragment); err == nil {
		fragment = decoded
	}

	if rawPath == "" {
		if fragment == "" || strings.Contains(dest, "?") {
			return linkTarget{}, false
		}
		return linkTarget{path: filepath.Clean(from), fragment: fragment}, true
	}

	if decoded, err := url.PathUnescape(rawPath); err == nil {
		rawPath = decoded
	}

	var target string
	if strings.HasPrefix(rawPath, "/") {
		target = filepath.Join(root, filepath.FromSlash(rawPath))
	} else {
		target = filepath.Join(filepath.Dir(from), filepath.FromSlash(rawPath))
	}
	return linkTarget{path: filepath.Clean(target), fragment: fragment}, true
}

type brokenLinkRule struct{ rule }

func (r brokenLinkRule) CheckSkill(_ context.Context, lc *Context, skill *skills.Skill) []Finding {
	var findings []Finding
	for _, f := range skillFiles(skill) {
		for _, link := range f.doc.Links {
			target, ok := resolveLink(lc.Root, f.path, link.Destination)
			if !ok || target.path == filepath.Clean(f.path) {
				continue
			}
			if _, err := os.Stat(target.path); err != nil {
				kind := "link"
				if link.Image {
					kind = "image"
				}
				findings = append(findings, lc.skillFinding(skill, f.path, link.Line,
					"%s target %q does not exist", kind, link.Destination))
			}
		}
	}
	return findings
}

type brokenAnchorRule struct{ rule }

func (r brokenAnchorRule) CheckSkill(ctx context.Context, lc *Context, skill *skills.Skill) []Finding {
	if !lc.Options.CheckAnchors {
		return nil
	}
	var findings []Finding
	for _, f := range skillFiles(skill) {
		for _, link := range f.doc.Links {
			target, ok := resolveLink(lc.Root, f.path, link.Destination)
			if !ok || target.fragment == "" {
				continue
			}

			doc := f.doc
			if target.path != filepath.Clean(f.path) {
				if !skills.IsMarkdown(target.path) {
					continue
				}
				if info, err := os.Stat(target.path); err != nil || info.IsDir() {
					// reported by broken-link
					continue
				}
				var err error
				doc, err = lc.Document(target.path)
				if err != nil {
					logger.G(ctx).WithError(err).WithField("target", target.path).Debug("failed to parse link target")
					continue
				}
			}

			if !doc.HasAnchor(target.fragment) {
				findings = append(findings, lc.skillFinding(skill, f.path, link.Line,
					"anchor #%s not found in %s", target.fragment, lc.rel(target.path)))
			}
		}
	}
	return findings
}

type orphanResourceRule struct{ rule }

func (r orphanResourceRule) CheckSkill(_ context.Context, lc *Context, skill *skills.Skill) []Finding {
	resources := skill.Resources()
	if len(resources) == 0 {
		return nil
	}

	linked := make(map[string]bool)
	var linkedDirs []string
	for _, f := range skillFiles(skill) {
		from := filepath.Clean(f.path)
		for _, link := range f.doc.Links {
			target, ok := resolveLink(lc.Root, f.path, link.Destination)
			if !ok || target.path == from {
				continue
			}
			linked[target.path] = true
			if info, err := os.Stat(target.path); err == nil && info.IsDir() {
				linkedDirs = append(linkedDirs, target.path+string(filepath.Separator))
			}
		}
	}

	var findings []Finding
	for _, res := range resources {
		path := filepath.Clean(res.Path)
		if linked[path] || underAny(path, linkedDirs) {
			continue
		}
		findings = append(findings, lc.skillFinding(skill, res.Path, 0,
			"%s is not linked from SKILL.md or another resource", res.RelPath))
	}
	return findings
}

func underAny(path string, dirs []string) bool {
	for _, dir := range dirs {
		if strings.HasPrefix(path, dir) {
			return true
		}
	}
	return false
}
