package extractor

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// Element is one text-bearing DOM node as rendered by the browser.
type Element struct {
	// Text is the rendered text of the node and its descendants.
	Text string `json:"text"`

	// Href is the raw href attribute, empty when the node has none.
	Href string `json:"href"`
}

// Snapshot is a read-only view of a fetched page: its text-bearing nodes and
// the absolute targets of its anchors.
type Snapshot struct {
	URL      string    `json:"url"`
	Elements []Element `json:"elements"`
	Anchors  []string  `json:"anchors"`
}

// ElementSelector matches the nodes scanned for emails and phones.
const ElementSelector = "a, p, span, div, ul, li"

var (
	elementMatcher = cascadia.MustCompile(ElementSelector)
	anchorMatcher  = cascadia.MustCompile("a[href]")
)

// SnapshotJS builds a Snapshot inside the page. It must stay in sync with
// FromHTML so both engines feed Extract the same shape.
const SnapshotJS = `() => {
	const elements = Array.from(document.querySelectorAll("` + ElementSelector + `")).map((el) => ({
		text: el.innerText || "",
		href: el.getAttribute("href") || "",
	}));
	const anchors = Array.from(document.querySelectorAll("a[href]"))
		.map((a) => a.href)
		.filter((href) => !!href);
	return { url: window.location.href, elements, anchors };
}`

// FromHTML parses raw HTML into a Snapshot. Anchor targets are resolved
// against pageURL; anchors that cannot be resolved are skipped.
func FromHTML(rawHTML, pageURL string) (*Snapshot, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, err
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, err
	}

	// Scripts and styles are not rendered, so they never contribute text.
	doc.Find("script, style, noscript, template").Remove()

	snap := &Snapshot{URL: pageURL}
	doc.FindMatcher(elementMatcher).Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		snap.Elements = append(snap.Elements, Element{
			Text: renderedText(s.Nodes[0]),
			Href: href,
		})
	})
	doc.FindMatcher(anchorMatcher).Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" {
			return
		}
		resolved, err := base.Parse(href)
		if err != nil {
			return
		}
		snap.Anchors = append(snap.Anchors, resolved.String())
	})
	return snap, nil
}

// blockElements render on their own line, so their text never runs into a
// sibling's.
var blockElements = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true,
	"dd": true, "div": true, "dl": true, "dt": true, "fieldset": true,
	"figcaption": true, "figure": true, "footer": true, "form": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"header": true, "hr": true, "li": true, "main": true, "nav": true,
	"ol": true, "p": true, "pre": true, "section": true, "table": true,
	"tr": true, "ul": true,
}

// renderedText approximates innerText: text of n and its descendants with
// line breaks at block boundaries and <br>, and tabs between table cells.
func renderedText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			return
		case html.ElementNode:
			switch {
			case n.Data == "br":
				b.WriteByte('\n')
				return
			case n.Data == "td" || n.Data == "th":
				b.WriteByte('\t')
			case blockElements[n.Data]:
				b.WriteByte('\n')
				defer b.WriteByte('\n')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(b.String())
}
