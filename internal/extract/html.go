// Package extract turns portal markup into plain text and reads the few
// structured signals the reconcilers need from detail pages.
package extract

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrNoTitle is returned when a detail page has no <title> element.
var ErrNoTitle = errors.New("extract: page has no title")

// submittedMarker is the first character of the page title the portal serves
// for an assignment that already has an attempt ("复查提交历史记录").
const submittedMarker = '复'

// noticeChrome lists the classes of decorative spans inside a notice title.
var noticeChrome = []string{"inlineContextMenu", "announcementType", "announcementPosted"}

var semesterSuffix = regexp.MustCompile(`\([^()]*\)$`)

// HTML is the default Extractor, backed by golang.org/x/net/html.
type HTML struct{}

// Title extracts the text of a notice title, dropping the context menu,
// the announcement type label and the posted-by line.
func (HTML) Title(markup string) string {
	root, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return strings.TrimSpace(markup)
	}
	removeAll(root, func(n *html.Node) bool {
		for _, c := range noticeChrome {
			if hasClass(n, c) {
				return true
			}
		}
		return false
	})
	return strings.TrimSpace(collapseSpaces(textOf(root)))
}

// Body extracts readable text from notice detail markup.
func (HTML) Body(markup string) string {
	root, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return strings.TrimSpace(markup)
	}
	return tidyLines(textOf(root))
}

// Submitted reports whether an assignment page shows an existing attempt.
func (HTML) Submitted(page string) (bool, error) {
	root, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return false, err
	}
	title := find(root, func(n *html.Node) bool { return n.DataAtom == atom.Title })
	if title == nil {
		return false, ErrNoTitle
	}
	text := strings.TrimSpace(textOf(title))
	if text == "" {
		return false, ErrNoTitle
	}
	r, _ := utf8.DecodeRuneInString(text)
	return r == submittedMarker, nil
}

// Instruction extracts the assignment instructions from an upload page.
// It returns an empty string when the page carries none.
func (HTML) Instruction(page string) string {
	root, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return ""
	}
	node := find(root, func(n *html.Node) bool { return attr(n, "id") == "instructions" })
	if node == nil {
		node = find(root, func(n *html.Node) bool { return hasClass(n, "vtbegenerated") })
	}
	if node == nil {
		return ""
	}
	return tidyLines(textOf(node))
}

// StripSemester removes one trailing parenthesised suffix from a course
// name: "Operating Systems(24-25学年第1学期)" becomes "Operating Systems".
func StripSemester(name string) string {
	return semesterSuffix.ReplaceAllString(name, "")
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			return
		case html.ElementNode:
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Head:
				return
			case atom.Br:
				b.WriteByte('\n')
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && isBlock(n.DataAtom) {
			b.WriteByte('\n')
		}
	}
	walk(n)
	return b.String()
}

func isBlock(a atom.Atom) bool {
	switch a {
	case atom.P, atom.Div, atom.Li, atom.Tr, atom.H1, atom.H2, atom.H3, atom.H4,
		atom.H5, atom.H6, atom.Ul, atom.Ol, atom.Table, atom.Blockquote, atom.Pre:
		return true
	}
	return false
}

// tidyLines trims every line and drops blank ones.
func tidyLines(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, l := range lines {
		l = strings.TrimSpace(strings.ReplaceAll(l, "\u00a0", " "))
		if l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(strings.ReplaceAll(s, "\u00a0", " ")), " ")
}

func find(n *html.Node, match func(*html.Node) bool) *html.Node {
	if n.Type == html.ElementNode && match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := find(c, match); found != nil {
			return found
		}
	}
	return nil
}

func removeAll(n *html.Node, match func(*html.Node) bool) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.ElementNode && match(c) {
			n.RemoveChild(c)
		} else {
			removeAll(c, match)
		}
		c = next
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}
