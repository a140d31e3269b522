// Package document models the page the boot sequence decorates: an x/net/html tree
// guarded for concurrent use by the two boot tasks.
package document

import (
	"bytes"
	"io"
	"slices"
	"strings"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Shell is the markup served before the entry bundle takes over.
const Shell = `<!DOCTYPE html><html><head><meta charset="utf-8"><meta name="theme-color" content="#86b300"></head><body></body></html>`

// Document is the surface the boot components mutate.
type Document interface {
	// SetRootStyleProperty sets an inline style declaration on the root element.
	SetRootStyleProperty(name, value string)
	// AddRootClass adds a class to the root element; adding twice is a no-op.
	AddRootClass(class string)
	// SetMetaContent sets the content of the first head meta tag with the given name.
	SetMetaContent(name, content string) bool
	// SetHeadStyle creates or replaces the head style element identified by id.
	// The css is stored as a text node and is never parsed as markup.
	SetHeadStyle(id, css string)
	// Replace swaps the whole document for markup and marks it failed.
	Replace(markup string) error
	// Failed reports whether Replace has been called.
	Failed() bool
	Render(w io.Writer) error
}

const styleIDAttr = "data-boot-style"

// HTMLDocument is the x/net/html backed Document.
type HTMLDocument struct {
	mu     sync.RWMutex
	root   *html.Node
	failed bool
}

// New parses Shell.
func New() *HTMLDocument {
	doc, err := Parse(strings.NewReader(Shell))
	if err != nil {
		// Shell is a constant the html parser always accepts.
		panic(err)
	}
	return doc
}

// Parse reads a full HTML document.
func Parse(r io.Reader) (*HTMLDocument, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, err
	}
	return &HTMLDocument{root: root}, nil
}

func (d *HTMLDocument) SetRootStyleProperty(name, value string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.failed {
		return
	}

	el := d.element(atom.Html)
	if el == nil {
		return
	}

	decls := parseStyle(attr(el, "style"))
	decls = decls.set(name, value)
	setAttr(el, "style", decls.String())
}

func (d *HTMLDocument) AddRootClass(class string) {
	class = strings.TrimSpace(class)
	if class == "" || strings.ContainsAny(class, " \t\n\f\r") {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.failed {
		return
	}

	el := d.element(atom.Html)
	if el == nil {
		return
	}

	classes := strings.Fields(attr(el, "class"))
	if slices.Contains(classes, class) {
		return
	}
	setAttr(el, "class", strings.Join(append(classes, class), " "))
}

func (d *HTMLDocument) SetMetaContent(name, content string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.failed {
		return false
	}

	head := d.element(atom.Head)
	if head == nil {
		return false
	}

	for child := head.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == html.ElementNode && child.DataAtom == atom.Meta && attr(child, "name") == name {
			setAttr(child, "content", content)
			return true
		}
	}
	return false
}

func (d *HTMLDocument) SetHeadStyle(id, css string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.failed {
		return
	}

	head := d.element(atom.Head)
	if head == nil {
		return
	}

	style := headStyle(head, id)
	if style == nil {
		style = &html.Node{
			Type:     html.ElementNode,
			DataAtom: atom.Style,
			Data:     atom.Style.String(),
			Attr:     []html.Attribute{{Key: styleIDAttr, Val: id}},
		}
		head.AppendChild(style)
	}

	for style.FirstChild != nil {
		style.RemoveChild(style.FirstChild)
	}
	style.AppendChild(&html.Node{Type: html.TextNode, Data: neutralizeRawText(css)})
}

func (d *HTMLDocument) Replace(markup string) error {
	root, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.root = root
	d.failed = true
	return nil
}

func (d *HTMLDocument) Failed() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.failed
}

func (d *HTMLDocument) Render(w io.Writer) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return html.Render(w, d.root)
}

// String renders the document, returning "" if rendering fails.
func (d *HTMLDocument) String() string {
	var buf bytes.Buffer
	if err := d.Render(&buf); err != nil {
		return ""
	}
	return buf.String()
}

// RootStyleProperty reads an inline declaration from the root element.
func (d *HTMLDocument) RootStyleProperty(name string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	el := d.element(atom.Html)
	if el == nil {
		return "", false
	}
	return parseStyle(attr(el, "style")).get(name)
}

// RootClasses lists the root element's classes in insertion order.
func (d *HTMLDocument) RootClasses() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	el := d.element(atom.Html)
	if el == nil {
		return nil
	}
	return strings.Fields(attr(el, "class"))
}

// MetaContent reads the content of the first head meta tag with the given name.
func (d *HTMLDocument) MetaContent(name string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	head := d.element(atom.Head)
	if head == nil {
		return "", false
	}
	for child := head.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == html.ElementNode && child.DataAtom == atom.Meta && attr(child, "name") == name {
			return attr(child, "content"), true
		}
	}
	return "", false
}

// HeadStyle returns the text of the head style element identified by id.
func (d *HTMLDocument) HeadStyle(id string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	head := d.element(atom.Head)
	if head == nil {
		return "", false
	}
	style := headStyle(head, id)
	if style == nil {
		return "", false
	}
	return textContent(style), true
}

// HeadStyleCount counts head style elements. Replay must not grow it.
func (d *HTMLDocument) HeadStyleCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	head := d.element(atom.Head)
	if head == nil {
		return 0
	}
	count := 0
	for child := head.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == html.ElementNode && child.DataAtom == atom.Style {
			count++
		}
	}
	return count
}

// Text returns the concatenated text of the body.
func (d *HTMLDocument) Text() string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	body := d.element(atom.Body)
	if body == nil {
		return ""
	}
	return textContent(body)
}

// Links lists the href of every anchor in the document.
func (d *HTMLDocument) Links() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var hrefs []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.A {
			hrefs = append(hrefs, attr(n, "href"))
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(d.root)
	return hrefs
}

// element finds the first element with the given atom, depth first.
func (d *HTMLDocument) element(a atom.Atom) *html.Node {
	var found *html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if found != nil {
			return
		}
		if n.Type == html.ElementNode && n.DataAtom == a {
			found = n
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(d.root)
	return found
}

func headStyle(head *html.Node, id string) *html.Node {
	for child := head.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == html.ElementNode && child.DataAtom == atom.Style && attr(child, styleIDAttr) == id {
			return child
		}
	}
	return nil
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val
		}
	}
	return ""
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// neutralizeRawText keeps a style element's text from terminating the element when
// serialized. "<\/" is the same characters to a CSS parser.
func neutralizeRawText(css string) string {
	return strings.ReplaceAll(css, "</", `<\/`)
}
