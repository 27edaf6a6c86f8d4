package cfdi

import (
	"log/slog"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

type compiledSelector struct {
	expr    string
	matcher goquery.Matcher
}

// Locator resolves logical targets to nodes using ordered selector lists.
// The first selector producing any match wins.
type Locator struct {
	lists   map[Target][]compiledSelector
	invalid []string
	logger  *slog.Logger
}

// NewLocator compiles every selector once. Selectors that fail to compile
// are dropped and behave as "no match".
func NewLocator(set SelectorSet, logger *slog.Logger) *Locator {
	if logger == nil {
		logger = slog.Default()
	}
	if set == nil {
		set = DefaultSelectors()
	}
	l := &Locator{lists: make(map[Target][]compiledSelector, len(set)), logger: logger}
	for target, exprs := range set {
		for _, expr := range exprs {
			sel, err := cascadia.Compile(expr)
			if err != nil {
				logger.Warn("cfdi.selector.invalid", "target", string(target), "selector", expr, "err", err)
				l.invalid = append(l.invalid, expr)
				continue
			}
			l.lists[target] = append(l.lists[target], compiledSelector{expr: expr, matcher: sel})
		}
	}
	return l
}

// Invalid lists the selectors that were rejected at construction.
func (l *Locator) Invalid() []string {
	return append([]string(nil), l.invalid...)
}

// First returns the first node for target below scope.
func (l *Locator) First(scope Node, target Target) (Node, bool) {
	nodes := l.All(scope, target)
	if len(nodes) == 0 {
		return Node{}, false
	}
	return nodes[0], true
}

// All returns every match of the first selector that matches anything below
// scope, in document order.
func (l *Locator) All(scope Node, target Target) []Node {
	if scope.n == nil {
		return nil
	}
	sel := goquery.NewDocumentFromNode(scope.n).Selection
	for _, cs := range l.lists[target] {
		found := l.find(sel, cs)
		if len(found) == 0 {
			continue
		}
		out := make([]Node, len(found))
		for i, n := range found {
			out[i] = Node{n: n}
		}
		return out
	}
	return nil
}

// Exists reports whether any selector for target matches below scope.
func (l *Locator) Exists(scope Node, target Target) bool {
	_, ok := l.First(scope, target)
	return ok
}

func (l *Locator) find(sel *goquery.Selection, cs compiledSelector) (nodes []*html.Node) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Warn("cfdi.selector.failed", "selector", cs.expr, "panic", r)
			nodes = nil
		}
	}()
	return sel.FindMatcher(cs.matcher).Nodes
}
