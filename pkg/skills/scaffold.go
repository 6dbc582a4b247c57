package skills

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Frontmatter limits applied when ScaffoldOptions leaves them at zero
const (
	DefaultNameMax        = 64
	DefaultDescriptionMax = 1024
)

var namePattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// ValidName reports whether name is lowercase letters and digits separated by single hyphens
func ValidName(name string) bool {
	return namePattern.MatchString(name)
}

// ScaffoldOptions describes a new skill directory
type ScaffoldOptions struct {
	Root        string
	Tree        string
	Name        string
	Description string
	Title       string
	Sections    []string
	References  bool
	Examples    bool

	NameMax        int // maximum name length in characters, DefaultNameMax when zero
	DescriptionMax int // maximum description length in characters, DefaultDescriptionMax when zero
}

// Scaffold creates <root>/<tree>/<name>/SKILL.md and returns the skill directory
func Scaffold(opts ScaffoldOptions) (string, error) {
	if !ValidName(opts.Name) {
		return "", errors.Errorf("invalid skill name %q: use lowercase letters, digits and hyphens", opts.Name)
	}
	nameMax := opts.NameMax
	if nameMax <= 0 {
		nameMax = DefaultNameMax
	}
	if n := utf8.RuneCountInString(opts.Name); n > nameMax {
		return "", errors.Errorf("skill name is %d characters, maximum is %d", n, nameMax)
	}

	description := strings.TrimSpace(opts.Description)
	if description == "" {
		return "", errors.New("skill description is required")
	}
	descriptionMax := opts.DescriptionMax
	if descriptionMax <= 0 {
		descriptionMax = DefaultDescriptionMax
	}
	if n := utf8.RuneCountInString(description); n > descriptionMax {
		return "", errors.Errorf("skill description is %d characters, maximum is %d", n, descriptionMax)
	}

	dir := filepath.Join(opts.Root, filepath.FromSlash(opts.Tree), opts.Name)
	if _, err := os.Stat(dir); err == nil {
		return "", errors.Errorf("skill directory %s already exists", dir)
	}

	content, err := renderSkillFile(opts)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, "failed to create skill directory")
	}
	if err := os.WriteFile(filepath.Join(dir, SkillFileName), content, 0o644); err != nil {
		return "", errors.Wrap(err, "failed to write SKILL.md")
	}

	if opts.References {
		if err := os.MkdirAll(filepath.Join(dir, ReferencesDir), 0o755); err != nil {
			return "", errors.Wrap(err, "failed to create references directory")
		}
	}
	if opts.Examples {
		if err := os.MkdirAll(filepath.Join(dir, ExamplesDir), 0o755); err != nil {
			return "", errors.Wrap(err, "failed to create examples directory")
		}
	}

	return dir, nil
}

func renderSkillFile(opts ScaffoldOptions) ([]byte, error) {
	var fm bytes.Buffer
	enc := yaml.NewEncoder(&fm)
	enc.SetIndent(2)
	if err := enc.Encode(Metadata{Name: opts.Name, Description: strings.TrimSpace(opts.Description)}); err != nil {
		return nil, errors.Wrap(err, "failed to encode frontmatter")
	}
	if err := enc.Close(); err != nil {
		return nil, errors.Wrap(err, "failed to encode frontmatter")
	}

	title := opts.Title
	if title == "" {
		title = titleFromName(opts.Name)
	}

	var b bytes.Buffer
	b.WriteString(frontmatterDelimiter + "\n")
	b.Write(fm.Bytes())
	b.WriteString(frontmatterDelimiter + "\n\n")
	fmt.Fprintf(&b, "# %s\n", title)
	for _, section := range opts.Sections {
		fmt.Fprintf(&b, "\n## %s\n", section)
	}
	return b.Bytes(), nil
}

func titleFromName(name string) string {
	parts := strings.Split(name, "-")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}
