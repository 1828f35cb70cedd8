// Package embeds turns raw message text into markup with inert embed
// placeholders.
//
// The transform is a fixed pipeline of stages over a token slice. Each
// stage only rewrites plain text tokens, which is what keeps one family's
// URL from being re-matched by a later family or wrapped by the generic
// link stage.
package embeds

import (
	"regexp"
	"strings"

	"github.com/oklog/ulid/v2"
	"golang.org/x/net/html"
)

type tokenKind int

const (
	textToken tokenKind = iota
	embedToken
	linkToken
	quoteToken
)

// token is one piece of a message. Text tokens hold decoded plain text;
// every other kind either holds final markup or, for embed markers, the
// placeholder record that is expanded in the last stage.
type token struct {
	embed  *Placeholder
	text   string
	markup string
	kind   tokenKind
}

// pipeline carries the per-call state the stages share.
type pipeline struct {
	counts       Counts
	placeholders []Placeholder
	newID        func() string
}

type stage func(p *pipeline, toks []token) []token

// Stage order is significant: tweets first, then the marker families,
// then generic links, then quotes, then marker expansion.
var stages = []stage{
	tweetStage,
	youtubeStage,
	rumbleStage,
	twitchClipStage,
	twitchVODStage,
	streamableStage,
	linkStage,
	quoteStage,
	expandStage,
}

func newPlaceholderID() string {
	return "embed-" + strings.ToLower(ulid.Make().String())
}

// Transform converts message text to markup. Entities are decoded first and
// all remaining plain text is escaped on output.
func Transform(text string) Result {
	return transform(text, newPlaceholderID)
}

func transform(text string, newID func() string) Result {
	p := &pipeline{
		counts: Counts{},
		newID:  newID,
	}

	toks := []token{{kind: textToken, text: html.UnescapeString(text)}}
	for _, st := range stages {
		toks = st(p, toks)
	}

	var b strings.Builder
	for _, t := range toks {
		if t.kind == textToken {
			b.WriteString(escapeText(t.text))
			continue
		}
		b.WriteString(t.markup)
	}

	return Result{
		HTML:         b.String(),
		Placeholders: p.placeholders,
		Counts:       p.counts,
	}
}

func escapeText(s string) string {
	return strings.ReplaceAll(html.EscapeString(s), "\n", "<br>")
}

// splitText replaces every match of re inside text tokens with the token
// built from the match's submatches.
func splitText(toks []token, re *regexp.Regexp, build func(m []string) token) []token {
	out := make([]token, 0, len(toks))
	for _, t := range toks {
		if t.kind != textToken {
			out = append(out, t)
			continue
		}

		locs := re.FindAllStringSubmatchIndex(t.text, -1)
		if len(locs) == 0 {
			out = append(out, t)
			continue
		}

		last := 0
		for _, loc := range locs {
			if loc[0] > last {
				out = append(out, token{kind: textToken, text: t.text[last:loc[0]]})
			}
			m := make([]string, len(loc)/2)
			for i := range m {
				if loc[2*i] >= 0 {
					m[i] = t.text[loc[2*i]:loc[2*i+1]]
				}
			}
			out = append(out, build(m))
			last = loc[1]
		}
		if last < len(t.text) {
			out = append(out, token{kind: textToken, text: t.text[last:]})
		}
	}
	return out
}

func (p *pipeline) marker(f Family, resourceID, originalURL string, start int) token {
	return token{
		kind: embedToken,
		embed: &Placeholder{
			ID:          p.newID(),
			Family:      f,
			ResourceID:  resourceID,
			OriginalURL: originalURL,
			StartTime:   start,
		},
	}
}

// tweetStage emits final placeholder markup directly.
func tweetStage(p *pipeline, toks []token) []token {
	return splitText(toks, tweetPattern, func(m []string) token {
		t := p.marker(FamilyTweet, m[2], m[1], 0)
		t.markup = RenderPlaceholder(*t.embed, InitialView(*t.embed))
		p.placeholders = append(p.placeholders, *t.embed)
		p.counts[FamilyTweet]++
		return t
	})
}

func youtubeStage(p *pipeline, toks []token) []token {
	return splitText(toks, youtubePattern, func(m []string) token {
		return p.marker(FamilyYouTube, m[1], m[0], TimeFromParams(m[2]))
	})
}

// rumbleStage renders a link card; rumble has no player placeholder.
func rumbleStage(p *pipeline, toks []token) []token {
	return splitText(toks, rumblePattern, func(m []string) token {
		return token{kind: linkToken, markup: rumbleCard(m[1], m[0])}
	})
}

func twitchClipStage(p *pipeline, toks []token) []token {
	return splitText(toks, twitchClipPattern, func(m []string) token {
		return p.marker(FamilyTwitchClip, m[1], m[0], 0)
	})
}

func twitchVODStage(p *pipeline, toks []token) []token {
	return splitText(toks, twitchVODPattern, func(m []string) token {
		return p.marker(FamilyTwitchVOD, m[1], m[0], TimeFromParams(m[2]))
	})
}

func streamableStage(p *pipeline, toks []token) []token {
	return splitText(toks, streamablePattern, func(m []string) token {
		return p.marker(FamilyStreamable, m[1], m[0], 0)
	})
}

func linkStage(p *pipeline, toks []token) []token {
	return splitText(toks, genericLinkPattern, func(m []string) token {
		return token{kind: linkToken, markup: anchor(m[0])}
	})
}

func quoteStage(p *pipeline, toks []token) []token {
	return splitText(toks, quotePattern, func(m []string) token {
		return token{kind: quoteToken, markup: QuoteLink(m[1])}
	})
}

// expandStage renders the remaining markers and counts them.
func expandStage(p *pipeline, toks []token) []token {
	for i := range toks {
		t := &toks[i]
		if t.kind != embedToken || t.markup != "" {
			continue
		}
		t.markup = RenderPlaceholder(*t.embed, InitialView(*t.embed))
		p.placeholders = append(p.placeholders, *t.embed)
		p.counts[t.embed.Family]++
	}
	return toks
}
