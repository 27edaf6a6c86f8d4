package cfdi

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Node is a read-only handle on an element of a Document.
type Node struct {
	n *html.Node
}

// Attribute is a name/value pair with the name lowercased.
type Attribute struct {
	Name  string
	Value string
}

// IsZero reports whether the handle points at nothing.
func (n Node) IsZero() bool { return n.n == nil }

// Name is the lowercased qualified element name.
func (n Node) Name() string {
	if n.n == nil || n.n.Type != html.ElementNode {
		return ""
	}
	return n.n.Data
}

// Attr returns the trimmed value of the first attribute matching name
// case-insensitively.
func (n Node) Attr(name string) (string, bool) {
	if n.n == nil {
		return "", false
	}
	key := strings.ToLower(name)
	for _, a := range n.n.Attr {
		if a.Key == key {
			return strings.TrimSpace(a.Val), true
		}
	}
	return "", false
}

// FirstAttr returns the first non-empty value among names, in order.
func (n Node) FirstAttr(names ...string) (name, value string) {
	for _, nm := range names {
		if v, ok := n.Attr(nm); ok && v != "" {
			return strings.ToLower(nm), v
		}
	}
	return "", ""
}

// Attrs lists the attributes in source order.
func (n Node) Attrs() []Attribute {
	if n.n == nil {
		return nil
	}
	out := make([]Attribute, 0, len(n.n.Attr))
	for _, a := range n.n.Attr {
		out = append(out, Attribute{Name: a.Key, Value: strings.TrimSpace(a.Val)})
	}
	return out
}

// Path is a stable location like "cfdi:comprobante[0]/cfdi:emisor[0]".
func (n Node) Path() string {
	var parts []string
	for cur := n.n; cur != nil && cur.Type == html.ElementNode; cur = cur.Parent {
		idx := 0
		for s := cur.PrevSibling; s != nil; s = s.PrevSibling {
			if s.Type == html.ElementNode && s.Data == cur.Data {
				idx++
			}
		}
		parts = append(parts, cur.Data+"["+strconv.Itoa(idx)+"]")
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, "/")
}

// AttrPath is Path plus "@name".
func (n Node) AttrPath(attr string) string {
	return n.Path() + "@" + attr
}

// Outer serializes the element and its subtree.
func (n Node) Outer() (string, error) {
	if n.n == nil {
		return "", nil
	}
	return goquery.OuterHtml(goquery.NewDocumentFromNode(n.n).Selection)
}
