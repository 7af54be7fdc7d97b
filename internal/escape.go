package internal

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ChecklistItem is one row of the candidate checklist.
type ChecklistItem struct {
	Index   int
	URL     string
	Label   string
	Checked bool
}

// EscapeHTML returns s as it would read back from the innerHTML of a
// detached element whose text content was set to s.
func EscapeHTML(s string) string {
	div := element(atom.Div)
	div.AppendChild(&html.Node{Type: html.TextNode, Data: s})
	var b strings.Builder
	for c := div.FirstChild; c != nil; c = c.NextSibling {
		_ = html.Render(&b, c) // strings.Builder never fails
	}
	return b.String()
}

// BuildChecklist labels each candidate with its sanitized file name.
func BuildChecklist(cfg *SecurityConfig, urls []string, checked func(int) bool) []ChecklistItem {
	items := make([]ChecklistItem, len(urls))
	for i, u := range urls {
		items[i] = ChecklistItem{
			Index:   i,
			URL:     u,
			Label:   SanitizeFilename(FilenameFromURL(u), cfg.MaxFilenameLength),
			Checked: checked != nil && checked(i),
		}
	}
	return items
}

// ChecklistNode builds the file list as a node tree. Text and attribute
// values are escaped at render time.
func ChecklistNode(items []ChecklistItem) *html.Node {
	list := element(atom.Div, html.Attribute{Key: "id", Val: "fileList"})
	for _, it := range items {
		id := fmt.Sprintf("file-%d", it.Index)
		row := element(atom.Div, html.Attribute{Key: "class", Val: "file-item"})

		attrs := []html.Attribute{
			{Key: "type", Val: "checkbox"},
			{Key: "class", Val: "file-checkbox"},
			{Key: "id", Val: id},
			{Key: "value", Val: it.URL},
		}
		if it.Checked {
			attrs = append(attrs, html.Attribute{Key: "checked"})
		}
		row.AppendChild(element(atom.Input, attrs...))

		label := element(atom.Label, html.Attribute{Key: "for", Val: id})
		label.AppendChild(&html.Node{Type: html.TextNode, Data: it.Label})
		row.AppendChild(label)

		list.AppendChild(row)
	}
	return list
}

// RenderChecklist renders the checklist markup.
func RenderChecklist(items []ChecklistItem) (string, error) {
	var b strings.Builder
	if err := html.Render(&b, ChecklistNode(items)); err != nil {
		return "", err
	}
	return b.String(), nil
}

func element(a atom.Atom, attrs ...html.Attribute) *html.Node {
	return &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String(), Attr: attrs}
}
