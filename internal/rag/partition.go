package rag

import (
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mohammad-safakhou/glpisum/internal/helpers"
)

// blockTags are the elements that start a new text element.
var blockTags = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true,
	"dd": true, "div": true, "dl": true, "dt": true, "figcaption": true,
	"figure": true, "footer": true, "h1": true, "h2": true, "h3": true,
	"h4": true, "h5": true, "h6": true, "header": true, "hr": true,
	"li": true, "ol": true, "p": true, "pre": true, "section": true,
	"table": true, "tbody": true, "td": true, "tfoot": true, "th": true,
	"thead": true, "tr": true, "ul": true,
}

const blockSelector = "address,article,aside,blockquote,dd,div,dl,dt,figcaption,figure,footer," +
	"h1,h2,h3,h4,h5,h6,header,hr,li,ol,p,pre,section,table,tbody,td,tfoot,th,thead,tr,ul"

// Partition splits HTML content into the text of its structural elements,
// in document order. Content stored entity-encoded is decoded first.
func Partition(content string) []string {
	if helpers.LooksEncoded(content) {
		content = html.UnescapeString(content)
	}
	content = helpers.SanitizeHTMLRichText(content)
	if content == "" {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil
	}
	var out []string
	visit(doc.Find("body"), &out)
	return out
}

// visit emits sel as one element when it holds no nested blocks or line
// breaks; otherwise it recurses into the blocks and emits the inline runs
// between them.
func visit(sel *goquery.Selection, out *[]string) {
	if sel.Find(blockSelector+",br").Length() == 0 {
		emit(sel.Text(), out)
		return
	}
	var run strings.Builder
	sel.Contents().Each(func(_ int, c *goquery.Selection) {
		name := goquery.NodeName(c)
		switch {
		case blockTags[name]:
			emit(run.String(), out)
			run.Reset()
			visit(c, out)
		case name == "br":
			emit(run.String(), out)
			run.Reset()
		default:
			run.WriteString(c.Text())
		}
	})
	emit(run.String(), out)
}

func emit(text string, out *[]string) {
	if text = helpers.CollapseSpace(text); text != "" {
		*out = append(*out, text)
	}
}
