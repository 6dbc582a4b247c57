package skills

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/parser"
)

const frontmatterDelimiter = "---"

// Frontmatter describes the YAML block at the top of SKILL.md
type Frontmatter struct {
	Present  bool           // A complete --- delimited block was found
	Keys     []string       // Keys in source order
	Values   map[string]any // Raw decoded values
	Unused   []string       // Keys that do not map onto Metadata, sorted
	Err      error          // YAML or type error, nil when the block decoded cleanly
	EndLine  int            // 1-based line of the closing delimiter
	KeyLines map[string]int // 1-based line of each top-level key
}

// Line returns the line of key in SKILL.md, or 1 when unknown
func (f *Frontmatter) Line(key string) int {
	if f == nil {
		return 1
	}
	if n, ok := f.KeyLines[key]; ok {
		return n
	}
	return 1
}

// HasKey reports whether key appears in the frontmatter
func (f *Frontmatter) HasKey(key string) bool {
	for _, k := range f.Keys {
		if k == key {
			return true
		}
	}
	return false
}

// splitFrontmatter locates the frontmatter block. It returns the index of the
// closing delimiter line, or -1 when the file does not start with a complete block.
func splitFrontmatter(lines []string) int {
	if len(lines) == 0 || !isDelimiter(lines[0]) {
		return -1
	}
	for i := 1; i < len(lines); i++ {
		if isDelimiter(lines[i]) {
			return i
		}
	}
	return -1
}

// isDelimiter matches the separator goldmark-meta accepts: a non-blank line
// made only of dashes once surrounding whitespace is trimmed.
func isDelimiter(line string) bool {
	line = strings.TrimSpace(line)
	return line != "" && strings.Trim(line, "-") == ""
}

// keyLines maps top-level YAML keys between the delimiters to their line numbers
func keyLines(lines []string, end int) map[string]int {
	found := make(map[string]int)
	for i := 1; i < end && i < len(lines); i++ {
		line := lines[i]
		if line == "" || line[0] == ' ' || line[0] == '\t' || line[0] == '#' || line[0] == '-' {
			continue
		}
		key, _, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.Trim(strings.TrimSpace(key), `"'`)
		if _, seen := found[key]; !seen {
			found[key] = i + 1
		}
	}
	return found
}

// decodeFrontmatter reads the metadata goldmark-meta stored in the parser
// context and decodes it into Metadata, recording unknown keys.
func decodeFrontmatter(pctx parser.Context, endLine int) (*Frontmatter, Metadata) {
	fm := &Frontmatter{
		Present: true,
		Values:  map[string]any{},
		EndLine: endLine,
	}
	var md Metadata

	items, err := meta.TryGetItems(pctx)
	if err != nil {
		fm.Err = errors.Wrap(err, "failed to parse frontmatter YAML")
		return fm, md
	}

	for _, item := range items {
		key := fmt.Sprint(item.Key)
		fm.Keys = append(fm.Keys, key)
		fm.Values[key] = item.Value
	}

	var decodeMeta mapstructure.Metadata
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:   &md,
		Metadata: &decodeMeta,
		TagName:  "mapstructure",
	})
	if err != nil {
		fm.Err = errors.Wrap(err, "failed to create frontmatter decoder")
		return fm, md
	}

	if err := decoder.Decode(fm.Values); err != nil {
		fm.Err = errors.Wrap(err, "invalid frontmatter value")
	}

	fm.Unused = append(fm.Unused, decodeMeta.Unused...)
	sort.Strings(fm.Unused)

	return fm, md
}
