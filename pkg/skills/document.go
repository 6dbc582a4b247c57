package skills

import (
	"bytes"
	"os"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
)

// Document is the Markdown structure of a file that matters for validation
type Document struct {
	Path       string
	Headings   []Heading
	Links      []Link
	CodeBlocks []CodeBlock
	Lines      int
}

// Heading is an ATX or setext heading
type Heading struct {
	Level int
	Text  string
	Slug  string
	Line  int
}

// Link is an inline link or image
type Link struct {
	Destination string
	Text        string
	Line        int
	Image       bool
}

// CodeBlock is a fenced code block
type CodeBlock struct {
	Language string
	Line     int
}

// HasHeading reports whether the document has a heading matching text, case-insensitively
func (d *Document) HasHeading(headingText string) bool {
	want := strings.ToLower(strings.TrimSpace(headingText))
	for _, h := range d.Headings {
		if strings.ToLower(h.Text) == want {
			return true
		}
	}
	return false
}

// HasAnchor reports whether a heading in the document produces the given anchor slug
func (d *Document) HasAnchor(anchor string) bool {
	anchor = strings.ToLower(anchor)
	counts := make(map[string]int)
	for _, h := range d.Headings {
		slug := h.Slug
		if n := counts[h.Slug]; n > 0 {
			slug = h.Slug + "-" + strconv.Itoa(n)
		}
		counts[h.Slug]++
		if slug == anchor {
			return true
		}
	}
	return false
}

var (
	plainMarkdown = goldmark.New()
	metaMarkdown  = goldmark.New(goldmark.WithExtensions(meta.Meta))
)

// ParseDocument parses Markdown source and collects headings, links and code blocks.
// Source with YAML frontmatter should go through parseWithFrontmatter instead.
func ParseDocument(path string, source []byte) *Document {
	root := plainMarkdown.Parser().Parse(text.NewReader(source))
	return buildDocument(path, source, root)
}

// parseWithFrontmatter parses source whose first block is YAML frontmatter
// and returns the document along with the parser context holding the metadata.
func parseWithFrontmatter(path string, source []byte) (*Document, parser.Context) {
	pctx := parser.NewContext()
	root := metaMarkdown.Parser().Parse(text.NewReader(source), parser.WithContext(pctx))
	return buildDocument(path, source, root), pctx
}

// ParseMarkdownFile reads and parses a Markdown file. YAML frontmatter, when
// present, is skipped so it does not turn into headings. The document path is
// recorded relative to root.
func ParseMarkdownFile(path, root string) (*Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	source := normalizeNewlines(raw)
	if splitFrontmatter(strings.Split(string(source), "\n")) >= 0 {
		doc, _ := parseWithFrontmatter(relSlash(root, path), source)
		return doc, nil
	}
	return ParseDocument(relSlash(root, path), source), nil
}

func buildDocument(path string, source []byte, root ast.Node) *Document {
	lines := newLineIndex(source)
	doc := &Document{
		Path:  path,
		Lines: lines.count(),
	}

	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.Heading:
			headingText := strings.TrimSpace(nodeText(node, source))
			doc.Headings = append(doc.Headings, Heading{
				Level: node.Level,
				Text:  headingText,
				Slug:  Slugify(headingText),
				Line:  lines.lineOf(blockOffset(node)),
			})
		case *ast.Link:
			doc.Links = append(doc.Links, Link{
				Destination: string(node.Destination),
				Text:        nodeText(node, source),
				Line:        lines.lineOf(inlineOffset(node)),
			})
		case *ast.Image:
			doc.Links = append(doc.Links, Link{
				Destination: string(node.Destination),
				Text:        nodeText(node, source),
				Line:        lines.lineOf(inlineOffset(node)),
				Image:       true,
			})
		case *ast.FencedCodeBlock:
			doc.CodeBlocks = append(doc.CodeBlocks, CodeBlock{
				Language: string(node.Language(source)),
				Line:     lines.lineOf(fenceOffset(node, source)),
			})
		}
		return ast.WalkContinue, nil
	})

	return doc
}

// nodeText concatenates the text segments below n
func nodeText(n ast.Node, source []byte) string {
	var buf bytes.Buffer
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			buf.Write(t.Segment.Value(source))
			if t.SoftLineBreak() {
				buf.WriteByte(' ')
			}
		case *ast.String:
			buf.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return buf.String()
}

func blockOffset(n ast.Node) int {
	if lines := n.Lines(); lines != nil && lines.Len() > 0 {
		return lines.At(0).Start
	}
	return -1
}

// inlineOffset finds the first text segment inside an inline node,
// falling back to the enclosing block.
func inlineOffset(n ast.Node) int {
	offset := -1
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if t, ok := c.(*ast.Text); entering && ok {
			offset = t.Segment.Start
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})
	if offset >= 0 {
		return offset
	}
	for p := n.Parent(); p != nil; p = p.Parent() {
		if p.Type() == ast.TypeBlock {
			if o := blockOffset(p); o >= 0 {
				return o
			}
		}
	}
	return -1
}

// fenceOffset points at the opening fence line of a fenced code block
func fenceOffset(n *ast.FencedCodeBlock, source []byte) int {
	if n.Info != nil {
		return n.Info.Segment.Start
	}
	if o := blockOffset(n); o > 0 {
		// first content line; the fence is the line before it
		prev := bytes.LastIndexByte(source[:o-1], '\n')
		return prev + 1
	}
	return -1
}

type lineIndex struct {
	starts []int
	size   int
}

func newLineIndex(source []byte) lineIndex {
	starts := []int{0}
	for i, b := range source {
		if b == '\n' && i+1 < len(source) {
			starts = append(starts, i+1)
		}
	}
	return lineIndex{starts: starts, size: len(source)}
}

func (l lineIndex) count() int {
	if l.size == 0 {
		return 0
	}
	return len(l.starts)
}

// lineOf converts a byte offset into a 1-based line number, 0 when unknown
func (l lineIndex) lineOf(offset int) int {
	if offset < 0 {
		return 0
	}
	return sort.Search(len(l.starts), func(i int) bool {
		return l.starts[i] > offset
	})
}

// Slugify converts heading text into the anchor GitHub generates for it:
// lowercase, punctuation removed, spaces turned into hyphens.
func Slugify(headingText string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(headingText)) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('-')
		}
	}
	return b.String()
}
