package importer

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/elabftw/rspace2elabftw/internal/rspace"
)

// BuildBody assembles the destination entity's HTML body from the document's
// fields, in field order. Plain fields become "Name: value" lines; the main
// field's HTML is rewritten so equations render with MathJax and inline
// images point at the uploaded files. uploads maps image names to their
// server-side long names.
func BuildBody(doc *rspace.Document, uploads map[string]string) (string, error) {
	var bodies []string
	for _, field := range doc.Fields() {
		if field.Name == rspace.MainFieldName {
			if field.Data == "" {
				continue
			}
			rewritten, err := RewriteBody(field.Data, uploads)
			if err != nil {
				return "", fmt.Errorf("rewrite main field: %w", err)
			}
			bodies = append(bodies, rewritten)
			continue
		}
		if field.Data == "" {
			continue
		}
		prefix := ""
		if field.Name != "" {
			prefix = field.Name + ": "
		}
		bodies = append(bodies, prefix+field.Data)
	}
	return strings.Join(bodies, "<br />"), nil
}

// RewriteBody transforms the main field's HTML fragment:
//   - RSpace equation divs have their embedded object replaced by the raw
//     equation wrapped in $...$ so MathJax picks it up
//   - img elements whose file was uploaded get their src rewritten to the
//     destination's download URL
func RewriteBody(fragment string, uploads map[string]string) (string, error) {
	nodes, err := html.ParseFragment(strings.NewReader(fragment), &html.Node{
		Type:     html.ElementNode,
		Data:     "body",
		DataAtom: atom.Body,
	})
	if err != nil {
		return "", fmt.Errorf("parse HTML: %w", err)
	}

	var out strings.Builder
	for _, node := range nodes {
		rewriteEquations(node)
		rewriteImages(node, uploads)
		if err := html.Render(&out, node); err != nil {
			return "", fmt.Errorf("render HTML: %w", err)
		}
	}
	return out.String(), nil
}

// rewriteEquations replaces the object element inside every RSpace equation
// div with the div's data-equation attribute wrapped in dollar signs.
func rewriteEquations(root *html.Node) {
	for _, div := range findAll(root, func(n *html.Node) bool {
		return n.DataAtom == atom.Div && hasClass(n, "rsEquation") && hasClass(n, "mceNonEditable")
	}) {
		obj := findFirst(div, func(n *html.Node) bool {
			return n.DataAtom == atom.Object
		})
		if obj == nil {
			continue
		}
		equation := &html.Node{
			Type: html.TextNode,
			Data: "$" + strings.TrimSpace(attr(div, "data-equation")) + "$",
		}
		obj.Parent.InsertBefore(equation, obj)
		obj.Parent.RemoveChild(obj)
	}
}

// rewriteImages points every uploaded inline image at the destination's
// download endpoint. Images without a matching upload are left alone.
func rewriteImages(root *html.Node, uploads map[string]string) {
	for _, img := range findAll(root, func(n *html.Node) bool {
		return n.DataAtom == atom.Img
	}) {
		src := attr(img, "src")
		if src == "" {
			continue
		}
		parts := strings.Split(src, "/")
		name := parts[len(parts)-1]
		longName, ok := uploads[name]
		if !ok {
			continue
		}
		setAttr(img, "src", fmt.Sprintf("app/download.php?f=%s&name=%s&storage=1", longName, name))
	}
}

// findAll collects the nodes in the subtree matching the predicate, in
// document order. The snapshot makes it safe to mutate matched nodes.
func findAll(root *html.Node, match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && match(n) {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}

func findFirst(root *html.Node, match func(*html.Node) bool) *html.Node {
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && match(c) {
			return c
		}
		if found := findFirst(c, match); found != nil {
			return found
		}
	}
	return nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}
