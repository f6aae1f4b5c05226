package convert

import (
	"bytes"
	"io"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownConverter normalizes markdown input: headings stay as # lines,
// list items become - lines, images and raw HTML are dropped, and block
// text is re-flowed with blank lines between blocks.
type MarkdownConverter struct{}

func (c *MarkdownConverter) Convert(r io.Reader, filename string) (string, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}

	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(src))

	var blocks []string
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			if title := string(node.Text(src)); title != "" {
				blocks = append(blocks, strings.Repeat("#", node.Level)+" "+title)
			}
		case *ast.HTMLBlock:
			// Dropped from output.
		case *ast.List:
			var items []string
			for li := node.FirstChild(); li != nil; li = li.NextSibling() {
				if s := inlineText(li, src); s != "" {
					items = append(items, "- "+s)
				}
			}
			if len(items) > 0 {
				blocks = append(blocks, strings.Join(items, "\n"))
			}
		default:
			if t := inlineText(n, src); t != "" {
				blocks = append(blocks, t)
			}
		}
	}

	return strings.Join(blocks, "\n\n"), nil
}

// inlineText flattens the text content of a node. Leaf blocks such as code
// fences contribute their raw lines; images and raw HTML contribute
// nothing.
func inlineText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	if n.Type() == ast.TypeBlock && n.FirstChild() == nil {
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			buf.Write(line.Value(src))
		}
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *ast.Image, *ast.RawHTML:
			continue
		case *ast.Text:
			buf.Write(t.Value(src))
			if t.HardLineBreak() || t.SoftLineBreak() {
				buf.WriteByte('\n')
			}
		default:
			buf.WriteString(inlineText(c, src))
		}
	}
	return strings.TrimSpace(buf.String())
}
