package embeds

import (
	"regexp"
	"strconv"

	"golang.org/x/net/html"
)

// URL families recognized in message text. Patterns run against plain
// text tokens only, so none of them need to guard against matching inside
// markup produced by an earlier stage.
var (
	tweetPattern = regexp.MustCompile(
		"\\b(https?://(?:twitter\\.com|x\\.com)/[a-zA-Z0-9_]+/status/([0-9]+))(?:\\?[^\\s<'\"\x60]*)?")
	youtubePattern = regexp.MustCompile(
		`https?://(?:www\.youtube\.com/watch\?v=|youtu\.be/)([a-zA-Z0-9_-]+)((?:[?&][a-zA-Z0-9_=&%.:+-]*)*)`)
	rumblePattern = regexp.MustCompile(
		`https?://rumble\.com/(?:embed/)?(v[a-zA-Z0-9]+)(?:-[^\s"'>?&.]*)?(?:\.html)?(?:\?[^\s"'>]*)?`)
	twitchClipPattern = regexp.MustCompile(
		`https?://(?:clips\.twitch\.tv/|(?:www\.)?twitch\.tv/[a-zA-Z0-9_]+/clip/)([a-zA-Z0-9_-]+)(?:\?[^\s"'>]*)?`)
	twitchVODPattern = regexp.MustCompile(
		`https?://(?:www\.)?twitch\.tv/videos/([0-9]+)((?:[?&][a-zA-Z0-9_=&%.:+-]*)*)`)
	streamablePattern = regexp.MustCompile(
		`https?://streamable\.com/([a-zA-Z0-9]+)(?:\?[^\s"'>]*)?`)
	genericLinkPattern = regexp.MustCompile(
		`https?://[^\s<>"']+[^\s<>"'.?!,:;)]`)
	quotePattern = regexp.MustCompile(`>>(\d+)`)

	rumbleTitlePattern = regexp.MustCompile(
		`rumble\.com/(?:v[a-zA-Z0-9]+-)?([a-zA-Z0-9_-]+)(?:\.html|$|\?)`)
	tweetPathPattern = regexp.MustCompile(
		`^https?://(?:www\.)?(?:twitter\.com|x\.com)/([a-zA-Z0-9_]+)/status/([0-9]+)`)
)

// ParseTweetURL extracts the author and status id from a twitter.com or
// x.com status URL.
func ParseTweetURL(rawURL string) (user, id string, ok bool) {
	m := tweetPathPattern.FindStringSubmatch(rawURL)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// QuotedIDs returns the message ids back-referenced in text, in order of
// first appearance. Entities are decoded before matching.
func QuotedIDs(text string) []int64 {
	var ids []int64
	seen := make(map[int64]bool)
	for _, m := range quotePattern.FindAllStringSubmatch(html.UnescapeString(text), -1) {
		id, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}

// ContainsTweet reports whether text links to a twitter.com or x.com status.
func ContainsTweet(text string) bool {
	return tweetPattern.MatchString(html.UnescapeString(text))
}
