package internal

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const reportStyle = `body{font-family:-apple-system,BlinkMacSystemFont,"Segoe UI",Roboto,sans-serif;background:#f5f5f5;padding:20px;color:#333}
.container{max-width:900px;margin:0 auto;background:#fff;padding:24px;border-radius:8px;box-shadow:0 2px 4px rgba(0,0,0,.1)}
.meta{color:#666;font-size:13px;margin-bottom:16px}
#status.info{color:#007bff}#status.success{color:#28a745}#status.error{color:#dc3545}
.file-item{padding:6px 0;border-bottom:1px solid #eee}
.file-item label{margin-left:8px;font-family:monospace}`

// ReportInput is what the checklist report shows.
type ReportInput struct {
	PageURL  string
	FileType string
	Status   Status
	Stats    string
	Items    []ChecklistItem
}

// WriteReport writes a standalone HTML page with the checklist. The page is
// built as a node tree; nothing scraped is concatenated into markup.
func WriteReport(path string, in ReportInput) error {
	doc := &html.Node{Type: html.DocumentNode}
	doc.AppendChild(&html.Node{Type: html.DoctypeNode, Data: "html"})

	root := element(atom.Html, html.Attribute{Key: "lang", Val: "en"})
	head := element(atom.Head)
	head.AppendChild(element(atom.Meta, html.Attribute{Key: "charset", Val: "UTF-8"}))
	head.AppendChild(textElement(atom.Title, "LinkGrab - "+in.FileType+" files"))
	head.AppendChild(textElement(atom.Style, reportStyle))
	root.AppendChild(head)

	body := element(atom.Body)
	box := element(atom.Div, html.Attribute{Key: "class", Val: "container"})
	box.AppendChild(textElement(atom.H1, "LinkGrab scan report"))
	box.AppendChild(textElement(atom.Div,
		fmt.Sprintf("%s | type: %s | generated %s", in.PageURL, in.FileType, time.Now().Format("2006-01-02 15:04:05")),
		html.Attribute{Key: "class", Val: "meta"}))
	box.AppendChild(textElement(atom.Div, in.Status.Text,
		html.Attribute{Key: "id", Val: "status"}, html.Attribute{Key: "class", Val: string(in.Status.Kind)}))
	box.AppendChild(textElement(atom.Div, in.Stats, html.Attribute{Key: "id", Val: "stats"}))
	box.AppendChild(ChecklistNode(in.Items))
	body.AppendChild(box)
	root.AppendChild(body)
	doc.AppendChild(root)

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}

func textElement(a atom.Atom, text string, attrs ...html.Attribute) *html.Node {
	n := element(a, attrs...)
	n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	return n
}
