// Package cfdi loads CFDI invoice XML into a navigable node tree and locates
// the nodes the extractor reads, tolerating namespace prefix and casing drift.
package cfdi

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"

	"github.com/joseph-ayodele/cfdi-tracker/internal/common"
)

var utf8BOM = []byte("\xef\xbb\xbf")

// Limits bounds the work a single document can cause.
type Limits struct {
	MaxElements   int
	MaxAttributes int
	MaxDepth      int
}

// DefaultLimits are generous for real invoices (a few hundred elements) and
// still cap pathological input.
func DefaultLimits() Limits {
	return Limits{
		MaxElements:   20000,
		MaxAttributes: 200000,
		MaxDepth:      256,
	}
}

func (l Limits) withDefaults() Limits {
	d := DefaultLimits()
	if l.MaxElements <= 0 {
		l.MaxElements = d.MaxElements
	}
	if l.MaxAttributes <= 0 {
		l.MaxAttributes = d.MaxAttributes
	}
	if l.MaxDepth <= 0 {
		l.MaxDepth = d.MaxDepth
	}
	return l
}

// Document is an immutable parsed invoice. Element and attribute names are
// stored as lowercased qualified names ("cfdi:emisor", "rfc").
type Document struct {
	top      *html.Node
	elements []*html.Node
	attrs    int
}

// Load parses data into a Document. Any syntax problem, unbalanced tag,
// missing or duplicated root, stray top-level text or limit overrun is
// reported as an error wrapping common.ErrMalformedDocument or
// common.ErrDocumentTooComplex.
func Load(data []byte, limits Limits) (*Document, error) {
	limits = limits.withDefaults()
	data = bytes.TrimPrefix(data, utf8BOM)

	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = true
	dec.Entity = xml.HTMLEntity
	dec.CharsetReader = charset.NewReaderLabel

	doc := &Document{top: &html.Node{Type: html.DocumentNode}}
	var (
		stack    []*html.Node
		open     []string
		rootSeen bool
	)

	for {
		tok, err := dec.RawToken()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, malformed("%v", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if len(stack) == 0 && rootSeen {
				return nil, malformed("multiple root elements")
			}
			if len(doc.elements) >= limits.MaxElements {
				return nil, tooComplex("more than %d elements", limits.MaxElements)
			}
			if len(stack) >= limits.MaxDepth {
				return nil, tooComplex("nesting deeper than %d", limits.MaxDepth)
			}
			doc.attrs += len(t.Attr)
			if doc.attrs > limits.MaxAttributes {
				return nil, tooComplex("more than %d attributes", limits.MaxAttributes)
			}

			qname := qualify(t.Name)
			n := &html.Node{Type: html.ElementNode, Data: strings.ToLower(qname)}
			for _, a := range t.Attr {
				n.Attr = append(n.Attr, html.Attribute{
					Key: strings.ToLower(qualify(a.Name)),
					Val: a.Value,
				})
			}

			parent := doc.top
			if len(stack) > 0 {
				parent = stack[len(stack)-1]
			}
			parent.AppendChild(n)

			stack = append(stack, n)
			open = append(open, qname)
			doc.elements = append(doc.elements, n)
			rootSeen = true

		case xml.EndElement:
			qname := qualify(t.Name)
			if len(open) == 0 {
				return nil, malformed("unexpected closing tag </%s>", qname)
			}
			if want := open[len(open)-1]; want != qname {
				return nil, malformed("closing tag </%s> does not match <%s>", qname, want)
			}
			stack = stack[:len(stack)-1]
			open = open[:len(open)-1]

		case xml.CharData:
			text := strings.TrimSpace(string(t))
			if text == "" {
				continue
			}
			if len(stack) == 0 {
				return nil, malformed("text outside the root element")
			}
			stack[len(stack)-1].AppendChild(&html.Node{Type: html.TextNode, Data: text})
		}
	}

	if len(open) > 0 {
		return nil, malformed("unexpected end of input: <%s> is not closed", open[len(open)-1])
	}
	if !rootSeen {
		return nil, malformed("no root element")
	}
	return doc, nil
}

// Top is the document node; locator searches start here so the root
// element itself can match.
func (d *Document) Top() Node {
	return Node{n: d.top}
}

// Root returns the root element.
func (d *Document) Root() Node {
	for c := d.top.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return Node{n: c}
		}
	}
	return Node{}
}

// Elements returns every element in document order.
func (d *Document) Elements() []Node {
	out := make([]Node, len(d.elements))
	for i, e := range d.elements {
		out[i] = Node{n: e}
	}
	return out
}

// AttributeCount is the total number of attributes in the document.
func (d *Document) AttributeCount() int {
	return d.attrs
}

func qualify(name xml.Name) string {
	if name.Space == "" {
		return name.Local
	}
	return name.Space + ":" + name.Local
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", common.ErrMalformedDocument, fmt.Sprintf(format, args...))
}

func tooComplex(format string, args ...any) error {
	return fmt.Errorf("%w: %s", common.ErrDocumentTooComplex, fmt.Sprintf(format, args...))
}
