package resolver

import (
	"net/url"
	"strconv"

	"Threadview/internal/core/embeds"

	"golang.org/x/net/html"
)

func wrapIframe(iframe string) string {
	return `<div style="display: block; margin-top: 5px; margin-bottom: 5px;">` + iframe + `</div>`
}

// YouTubeElement builds the YouTube player. start <= 0 plays from the
// beginning.
func YouTubeElement(videoID string, start int) Element {
	src := "https://www.youtube.com/embed/" + url.PathEscape(videoID)
	if start > 0 {
		src += "?start=" + strconv.Itoa(start)
	}
	return Element{
		Kind: KindIframe,
		HTML: wrapIframe(`<iframe width="560" height="315" src="` + html.EscapeString(src) +
			`" frameborder="0" allow="accelerometer; autoplay; clipboard-write; encrypted-media; gyroscope; picture-in-picture" allowfullscreen` +
			` style="aspect-ratio: 16 / 9; width: 100%; max-width: 560px;"></iframe>`),
		AspectRatio: embeds.DefaultAspectRatio,
	}
}

// TwitchClipElement builds the Twitch clip player.
func TwitchClipElement(clipID, parent string) Element {
	return twitchElement("https://clips.twitch.tv/embed?clip=" + url.QueryEscape(clipID) +
		"&parent=" + url.QueryEscape(parent) +
		"&autoplay=false")
}

// TwitchVODElement builds the Twitch VOD player, seeking to start when
// positive.
func TwitchVODElement(videoID, parent string, start int) Element {
	src := "https://player.twitch.tv/?video=" + url.QueryEscape(videoID) +
		"&parent=" + url.QueryEscape(parent) +
		"&autoplay=false"
	if t := embeds.FormatTwitchTime(start); t != "" {
		src += "&t=" + t
	}
	return twitchElement(src)
}

func twitchElement(src string) Element {
	return Element{
		Kind: KindIframe,
		HTML: wrapIframe(`<iframe src="` + html.EscapeString(src) +
			`" style="width: 100%; min-height: 360px; aspect-ratio: 16 / 9; max-width: 640px; border: none;" allowfullscreen scrolling="no"></iframe>`),
		Height: "360px",
	}
}
