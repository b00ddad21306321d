package scrape

import (
	"bytes"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Meta keys checked for a lead image, in priority order.
var imageMetaKeys = []string{
	"og:image",
	"og:image:url",
	"og:image:secure_url",
	"twitter:image",
	"twitter:image:src",
}

var strippedTags = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Iframe:   true,
	atom.Form:     true,
	atom.Nav:      true,
}

// Article is the extracted main content. HTML is the inner markup of the
// chosen container.
type Article struct {
	Title string `json:"title"`
	HTML  string `json:"html"`
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func walk(n *html.Node, fn func(*html.Node) bool) {
	if !fn(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func find(root *html.Node, match func(*html.Node) bool) *html.Node {
	var found *html.Node
	walk(root, func(n *html.Node) bool {
		if found != nil {
			return false
		}
		if n.Type == html.ElementNode && match(n) {
			found = n
			return false
		}
		return true
	})
	return found
}

func isTag(a atom.Atom) func(*html.Node) bool {
	return func(n *html.Node) bool { return n.DataAtom == a }
}

// resolve makes ref absolute against base, keeping only http(s) results.
func resolve(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	u, err := base.Parse(ref)
	if err != nil {
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return u.String()
}

// ImageURL picks the article image: social meta tags first, then
// link rel=image_src, then the first image inside <article>.
func ImageURL(doc *html.Node, base *url.URL) string {
	meta := map[string]string{}
	var linkHref string
	walk(doc, func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return true
		}
		switch n.DataAtom {
		case atom.Meta:
			key := strings.ToLower(attr(n, "property"))
			if key == "" {
				key = strings.ToLower(attr(n, "name"))
			}
			if _, seen := meta[key]; key != "" && !seen {
				if v := strings.TrimSpace(attr(n, "content")); v != "" {
					meta[key] = v
				}
			}
		case atom.Link:
			if linkHref == "" && hasToken(attr(n, "rel"), "image_src") {
				linkHref = attr(n, "href")
			}
		}
		return true
	})

	for _, k := range imageMetaKeys {
		if u := resolve(base, meta[k]); u != "" {
			return u
		}
	}
	if u := resolve(base, linkHref); u != "" {
		return u
	}
	if art := find(doc, isTag(atom.Article)); art != nil {
		if img := find(art, isTag(atom.Img)); img != nil {
			src := attr(img, "src")
			if src == "" {
				src = attr(img, "data-src")
			}
			return resolve(base, src)
		}
	}
	return ""
}

func hasToken(list, token string) bool {
	for _, f := range strings.Fields(list) {
		if strings.EqualFold(f, token) {
			return true
		}
	}
	return false
}

// Title prefers og:title over <title>.
func Title(doc *html.Node) string {
	if m := find(doc, func(n *html.Node) bool {
		return n.DataAtom == atom.Meta && strings.EqualFold(attr(n, "property"), "og:title")
	}); m != nil {
		if t := strings.TrimSpace(attr(m, "content")); t != "" {
			return t
		}
	}
	if t := find(doc, isTag(atom.Title)); t != nil {
		return strings.TrimSpace(text(t))
	}
	return ""
}

func text(n *html.Node) string {
	var sb strings.Builder
	walk(n, func(c *html.Node) bool {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
		return true
	})
	return sb.String()
}

// mainNode chooses the content container.
func mainNode(doc *html.Node) *html.Node {
	if n := find(doc, isTag(atom.Article)); n != nil {
		return n
	}
	if n := find(doc, isTag(atom.Main)); n != nil {
		return n
	}
	if n := find(doc, func(n *html.Node) bool { return strings.EqualFold(attr(n, "role"), "main") }); n != nil {
		return n
	}

	var best *html.Node
	bestScore := 0
	walk(doc, func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.DataAtom == atom.Div {
			if s := paragraphScore(n); s > bestScore {
				best, bestScore = n, s
			}
		}
		return true
	})
	return best
}

// paragraphScore is the text length of the div's direct <p> children.
func paragraphScore(div *html.Node) int {
	score := 0
	for c := div.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.P {
			score += len(strings.TrimSpace(text(c)))
		}
	}
	return score
}

// clean removes stripped elements and event handler attributes and makes
// every href and src absolute. It mutates root.
func clean(root *html.Node, base *url.URL) {
	var drop []*html.Node
	walk(root, func(n *html.Node) bool {
		switch n.Type {
		case html.CommentNode:
			drop = append(drop, n)
			return false
		case html.ElementNode:
		default:
			return true
		}
		if strippedTags[n.DataAtom] {
			drop = append(drop, n)
			return false
		}

		kept := n.Attr[:0]
		for _, a := range n.Attr {
			key := strings.ToLower(a.Key)
			if strings.HasPrefix(key, "on") {
				continue
			}
			if key == "href" || key == "src" {
				if strings.HasPrefix(strings.TrimSpace(a.Val), "#") {
					kept = append(kept, a)
					continue
				}
				abs := resolve(base, a.Val)
				if abs == "" {
					continue
				}
				a.Val = abs
			}
			kept = append(kept, a)
		}
		n.Attr = kept
		return true
	})
	for _, n := range drop {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
	}
}

// Extract finds, cleans and renders the main content of doc.
func Extract(doc *html.Node, base *url.URL) (Article, bool) {
	root := mainNode(doc)
	if root == nil {
		return Article{}, false
	}
	clean(root, base)

	var buf bytes.Buffer
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return Article{}, false
		}
	}
	out := strings.TrimSpace(buf.String())
	if out == "" {
		return Article{}, false
	}
	return Article{Title: Title(doc), HTML: out}, true
}
