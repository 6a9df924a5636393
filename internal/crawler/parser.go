package crawler

import (
	"io"
	"net/url"
	"sort"
	"strings"

	"github.com/nao1215/clientmap/internal/clientmap"
	"golang.org/x/net/html"
)

// urlAttributes maps element names to the attribute holding a URL the
// browser would request or navigate to.
var urlAttributes = map[string]string{
	"a":      "href",
	"area":   "href",
	"link":   "href",
	"form":   "action",
	"script": "src",
	"img":    "src",
	"iframe": "src",
	"frame":  "src",
	"source": "src",
	"video":  "src",
	"audio":  "src",
	"embed":  "src",
}

// componentElements are the elements recorded as page components.
var componentElements = map[string]bool{
	"a":        true,
	"form":     true,
	"button":   true,
	"input":    true,
	"select":   true,
	"textarea": true,
}

// Parser extracts URLs and components from HTML content.
type Parser struct {
	// baseURL resolves relative references. A <base href> in the document
	// replaces it while parsing.
	baseURL *url.URL
}

// ParseResult contains everything extracted from one page.
type ParseResult struct {
	// Title is the page title from the <title> tag.
	Title string

	// URLs are the absolute http(s) URLs referenced by the page, sorted and
	// deduplicated, fragments removed.
	URLs []string

	// Components are the interactive elements of the page in document order.
	Components []clientmap.Component
}

// NewParser creates a parser that resolves relative references against baseURL.
func NewParser(baseURL string) (*Parser, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	return &Parser{baseURL: u}, nil
}

// Parse walks the document once and collects its URLs and components.
func (p *Parser) Parse(content io.Reader) (*ParseResult, error) {
	doc, err := html.Parse(content)
	if err != nil {
		return nil, err
	}

	result := &ParseResult{
		URLs:       make([]string, 0),
		Components: make([]clientmap.Component, 0),
	}
	seen := make(map[string]bool)

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			p.processElement(n, result, seen)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	sort.Strings(result.URLs)
	return result, nil
}

// processElement handles one element node.
func (p *Parser) processElement(n *html.Node, result *ParseResult, seen map[string]bool) {
	switch n.Data {
	case "title":
		if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
			result.Title = strings.TrimSpace(n.FirstChild.Data)
		}
	case "base":
		if href := getAttr(n, "href"); href != "" {
			if u, err := p.baseURL.Parse(strings.TrimSpace(href)); err == nil {
				p.baseURL = u
			}
		}
	}

	if attr, ok := urlAttributes[n.Data]; ok {
		if resolved := p.resolveURL(getAttr(n, attr)); resolved != "" && !seen[resolved] {
			seen[resolved] = true
			result.URLs = append(result.URLs, resolved)
		}
	}

	if componentElements[n.Data] {
		result.Components = append(result.Components, p.component(n))
	}
}

// component describes an interactive element.
func (p *Parser) component(n *html.Node) clientmap.Component {
	c := clientmap.Component{
		TagName: strings.ToUpper(n.Data),
		ID:      getAttr(n, "id"),
		Type:    getAttr(n, "type"),
	}
	switch n.Data {
	case "a":
		c.Href = p.resolveURL(getAttr(n, "href"))
		c.Text = textContent(n)
	case "form":
		c.Href = p.resolveURL(getAttr(n, "action"))
		if c.Type == "" {
			c.Type = strings.ToUpper(getAttr(n, "method"))
			if c.Type == "" {
				c.Type = "GET"
			}
		}
	case "button":
		c.Text = textContent(n)
	case "input", "select", "textarea":
		if c.ID == "" {
			c.ID = getAttr(n, "name")
		}
		if c.Type == "" && n.Data != "input" {
			c.Type = n.Data
		}
	}
	return c
}

// resolveURL resolves href against the base URL. Non-navigable schemes and
// bare fragments resolve to "".
func (p *Parser) resolveURL(href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}

	resolved := p.baseURL.ResolveReference(u)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	resolved.Fragment = ""
	resolved.RawFragment = ""
	return resolved.String()
}

// textContent returns the collapsed text below n.
func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
