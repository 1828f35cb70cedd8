package embeds

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ParsePlaceholders reads placeholder records back from rendered markup,
// in document order. Elements with an unknown data-embed-type are skipped.
func ParsePlaceholders(fragment string) ([]Placeholder, error) {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse fragment: %w", err)
	}

	var out []Placeholder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if p, ok := placeholderFromNode(n); ok {
				out = append(out, p)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range nodes {
		walk(n)
	}
	return out, nil
}

func placeholderFromNode(n *html.Node) (Placeholder, bool) {
	attrs := make(map[string]string, len(n.Attr))
	for _, a := range n.Attr {
		attrs[a.Key] = a.Val
	}

	family := Family(attrs["data-embed-type"])
	if !family.Valid() {
		return Placeholder{}, false
	}

	p := Placeholder{
		ID:          attrs["id"],
		Family:      family,
		OriginalURL: attrs["data-original-url"],
		Loaded:      attrs["data-loaded"] == "true",
	}
	if family == FamilyTweet {
		p.ResourceID = attrs["data-tweet-id"]
	} else {
		p.ResourceID = attrs["data-video-id"]
	}
	if st, err := strconv.Atoi(attrs["data-start-time"]); err == nil && st > 0 {
		p.StartTime = st
	}
	return p, true
}
