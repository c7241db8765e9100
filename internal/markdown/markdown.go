package markdown

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	goldmarkhtml "github.com/yuin/goldmark/renderer/html"
	"go.abhg.dev/goldmark/frontmatter"
)

// Document is a rendered markdown source with optional YAML frontmatter.
type Document struct {
	Meta map[string]any
	HTML string
	// Text is the markdown body without its frontmatter block, which reads
	// fine as a plain-text email.
	Text string
}

type Parser struct {
	md goldmark.Markdown
}

func NewParser() *Parser {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			&frontmatter.Extender{},
		),
		goldmark.WithRendererOptions(
			goldmarkhtml.WithHardWraps(),
			goldmarkhtml.WithXHTML(),
		),
	)

	return &Parser{md: md}
}

func (p *Parser) Render(source []byte) (*Document, error) {
	ctx := parser.NewContext()
	var buf bytes.Buffer

	err := p.md.Convert(source, &buf, parser.WithContext(ctx))
	if err != nil {
		return nil, err
	}

	meta := map[string]any{}
	if data := frontmatter.Get(ctx); data != nil {
		if err := data.Decode(&meta); err != nil {
			return nil, err
		}
	}

	return &Document{
		Meta: meta,
		HTML: buf.String(),
		Text: stripFrontmatter(string(source)),
	}, nil
}

// MetaString returns a string frontmatter field, or "" if absent.
func (d *Document) MetaString(key string) string {
	s, _ := d.Meta[key].(string)
	return s
}

func stripFrontmatter(source string) string {
	rest, ok := strings.CutPrefix(source, "---\n")
	if !ok {
		return strings.TrimSpace(source)
	}
	_, body, ok := strings.Cut(rest, "\n---\n")
	if !ok {
		return strings.TrimSpace(source)
	}
	return strings.TrimSpace(body)
}
