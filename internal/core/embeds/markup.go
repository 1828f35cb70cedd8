package embeds

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

const (
	// DefaultAspectRatio is applied to unloaded placeholders and to loaded
	// players that size themselves from their width.
	DefaultAspectRatio = "16 / 9"

	playOverlay = `<div class="play-button-overlay">▶</div>`
	labelStyle  = `position:absolute; bottom:5px; font-size:10px; color:rgba(255,255,255,0.7);`
)

// YouTubeThumbnail returns the preview image shown on an unloaded YouTube
// placeholder.
func YouTubeThumbnail(videoID string) string {
	return "https://i.ytimg.com/vi/" + videoID + "/mqdefault.jpg"
}

// Affordance returns the inner markup of an unloaded placeholder. It is
// never empty.
func Affordance(p Placeholder) string {
	switch p.Family {
	case FamilyYouTube:
		return playOverlay
	case FamilyTweet:
		return tweetSkeleton(p)
	}
	label := p.Family.Label()
	if label == "" {
		return playOverlay
	}
	return playOverlay + `<span style="` + labelStyle + `">` + label + `</span>`
}

// InitialView is the view a placeholder is created with.
func InitialView(p Placeholder) View {
	return View{Content: Affordance(p)}
}

// UnloadedView is the view restored when a loaded placeholder leaves the
// observed region.
func UnloadedView(p Placeholder) View {
	return View{
		Content:     Affordance(p),
		AspectRatio: DefaultAspectRatio,
	}
}

func placeholderClass(f Family) string {
	switch f {
	case FamilyYouTube:
		return "embed-placeholder youtube-placeholder"
	case FamilyTwitchClip, FamilyTwitchVOD:
		return "embed-placeholder twitch-placeholder"
	case FamilyStreamable:
		return "embed-placeholder streamable-placeholder"
	case FamilyTweet:
		return "custom-tweet-placeholder embed-placeholder"
	}
	return "embed-placeholder"
}

// RenderPlaceholder serializes a placeholder record and its current view
// into the element the client swaps into its document.
func RenderPlaceholder(p Placeholder, v View) string {
	var b strings.Builder

	b.WriteString(`<div`)
	if p.ID != "" {
		writeAttr(&b, "id", p.ID)
	}
	writeAttr(&b, "class", placeholderClass(p.Family))
	writeAttr(&b, "data-embed-type", string(p.Family))
	if p.Family == FamilyTweet {
		writeAttr(&b, "data-tweet-id", p.ResourceID)
	} else {
		writeAttr(&b, "data-video-id", p.ResourceID)
	}
	if p.OriginalURL != "" {
		writeAttr(&b, "data-original-url", p.OriginalURL)
	}
	writeAttr(&b, "data-loaded", strconv.FormatBool(p.Loaded))
	if p.StartTime > 0 {
		writeAttr(&b, "data-start-time", strconv.Itoa(p.StartTime))
	}
	if p.Family != FamilyTweet {
		writeAttr(&b, "tabindex", "0")
	}

	var style []string
	if p.Family == FamilyYouTube && !p.Loaded {
		style = append(style, "background-image: url('"+YouTubeThumbnail(p.ResourceID)+"')")
	}
	if v.Height != "" {
		style = append(style, "height: "+v.Height)
	}
	if v.AspectRatio != "" {
		style = append(style, "aspect-ratio: "+v.AspectRatio)
	}
	if len(style) > 0 {
		writeAttr(&b, "style", strings.Join(style, "; ")+";")
	}

	b.WriteString(`>`)
	b.WriteString(v.Content)
	b.WriteString(`</div>`)
	return b.String()
}

func writeAttr(b *strings.Builder, name, value string) {
	fmt.Fprintf(b, ` %s="%s"`, name, html.EscapeString(value))
}

func tweetSkeleton(p Placeholder) string {
	href := html.EscapeString(p.OriginalURL)
	return `<div class="custom-tweet-header">` +
		`<img class="custom-tweet-avatar" src="" alt="Avatar" style="display:none; background-color: #eee;">` +
		`<div class="custom-tweet-author"><span class="custom-tweet-displayname"></span><span class="custom-tweet-username"></span></div>` +
		`</div>` +
		`<div class="custom-tweet-content"><div class="custom-tweet-loading">Loading tweet...</div><div class="custom-tweet-media"></div></div>` +
		`<div class="custom-tweet-footer">` +
		`<a href="` + href + `" target="_blank" rel="noopener noreferrer">View on X/Twitter</a>` +
		`<span class="custom-tweet-date"></span>` +
		`</div>`
}

func anchor(rawURL string) string {
	u := html.EscapeString(rawURL)
	return `<a href="` + u + `" target="_blank" rel="noopener noreferrer">` + u + `</a>`
}

// QuoteLink renders a same-document back-reference to message postID.
func QuoteLink(postID string) string {
	id := html.EscapeString(postID)
	return `<a href="#" class="quote" data-postid="` + id + `">` + id + `</a>`
}

func rumbleCard(videoID, rawURL string) string {
	text := "View on Rumble (Clip ID: " + videoID + ")"
	if m := rumbleTitlePattern.FindStringSubmatch(rawURL); m != nil && strings.ToLower(m[1]) != "embed" {
		title := strings.NewReplacer("-", " ", "_", " ").Replace(m[1])
		text = "View on Rumble: " + strings.ToUpper(title[:1]) + title[1:]
	}
	return `<a href="` + html.EscapeString(rawURL) + `" target="_blank" rel="noopener noreferrer" class="rumble-link"` +
		` style="display: block; padding: 10px; border: 1px solid #ccc; border-radius: 10px; text-decoration: none; color: #85c742; background-color: #f0f0f0;">` +
		html.EscapeString(text) +
		` <img src="https://rumble.com/favicon.ico" style="width:16px; height:16px; vertical-align:middle; border:none;"></a>`
}
