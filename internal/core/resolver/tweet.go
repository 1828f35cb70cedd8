package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"Threadview/internal/core/embeds"

	"golang.org/x/net/html"
)

// tweetData is the subset of the unfurl API response the card uses.
type tweetData struct {
	UserName       string       `json:"user_name"`
	ScreenName     string       `json:"screen_name"`
	UserScreenName string       `json:"user_screen_name"`
	Text           string       `json:"text"`
	AvatarURL      string       `json:"user_profile_image_url_https"`
	MediaExtended  []tweetMedia `json:"media_extended"`
	DateEpoch      int64        `json:"date_epoch"`
}

type tweetMedia struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

// resolveTweet renders a preview card for a status URL. Success and
// failure are both terminal; only successes are memoized.
func (s *Service) resolveTweet(ctx context.Context, originalURL string) Element {
	user, id, ok := embeds.ParseTweetURL(originalURL)
	if !ok {
		return tweetError(originalURL, fmt.Errorf("%w: invalid tweet URL for API construction", ErrMalformedURL))
	}

	key := user + "/" + id
	if v, found := s.tweets.Get(key); found {
		el := v.(Element)
		el.Cached = true
		return el
	}

	data, err := s.fetchTweet(ctx, user, id)
	if err != nil {
		slog.Info("[RESOLVER] tweet preview failed",
			"tweet_id", id,
			"user", user,
			"error", err,
		)
		return tweetError(originalURL, err)
	}

	el := Element{
		Kind: KindTweet,
		HTML: tweetCard(originalURL, data),
	}
	s.tweets.SetDefault(key, el)
	return el
}

func (s *Service) fetchTweet(ctx context.Context, user, id string) (*tweetData, error) {
	apiURL := strings.TrimRight(s.cfg.TweetAPIBase, "/") + "/" + url.PathEscape(user) + "/status/" + url.PathEscape(id)

	var resp *Response
	err := s.guarded(providerTweets, func() error {
		r, err := s.fetcher.Fetch(ctx, apiURL)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	var data tweetData
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %v", ErrIncompleteData, err)
	}
	if data.UserName == "" || data.Text == "" {
		return nil, ErrIncompleteData
	}
	return &data, nil
}

func tweetCard(originalURL string, d *tweetData) string {
	var b strings.Builder

	b.WriteString(`<div class="custom-tweet-header">`)
	if d.AvatarURL != "" {
		fmt.Fprintf(&b, `<img class="custom-tweet-avatar" src="%s" alt="%s" style="display:block;">`,
			html.EscapeString(d.AvatarURL), html.EscapeString(d.UserName+"'s avatar"))
	}
	screenName := d.ScreenName
	if screenName == "" {
		screenName = d.UserScreenName
	}
	fmt.Fprintf(&b, `<div class="custom-tweet-author"><span class="custom-tweet-displayname">%s</span><span class="custom-tweet-username">@%s</span></div>`,
		html.EscapeString(d.UserName), html.EscapeString(screenName))
	b.WriteString(`</div>`)

	b.WriteString(`<div class="custom-tweet-content">`)
	fmt.Fprintf(&b, `<div class="custom-tweet-text-content">%s</div>`, html.EscapeString(d.Text))
	b.WriteString(`<div class="custom-tweet-media">`)
	for _, m := range d.MediaExtended {
		if m.URL == "" {
			continue
		}
		switch m.Type {
		case "image":
			fmt.Fprintf(&b, `<img src="%s" alt="Tweet image">`, html.EscapeString(m.URL))
		case "video", "gif":
			fmt.Fprintf(&b, `<video src="%s" controls></video>`, html.EscapeString(m.URL))
		}
	}
	b.WriteString(`</div></div>`)

	writeTweetFooter(&b, originalURL, d.DateEpoch)
	return b.String()
}

func writeTweetFooter(b *strings.Builder, originalURL string, epoch int64) {
	b.WriteString(`<div class="custom-tweet-footer">`)
	fmt.Fprintf(b, `<a href="%s" target="_blank" rel="noopener noreferrer">View on X/Twitter</a>`, html.EscapeString(originalURL))
	date := ""
	if epoch > 0 {
		date = time.Unix(epoch, 0).UTC().Format("Jan 2, 2006, 3:04 PM")
	}
	fmt.Fprintf(b, `<span class="custom-tweet-date">%s</span>`, html.EscapeString(date))
	b.WriteString(`</div>`)
}

// tweetError renders the card with an inline error in place of the text.
func tweetError(originalURL string, err error) Element {
	var b strings.Builder
	b.WriteString(`<div class="custom-tweet-header"></div>`)
	b.WriteString(`<div class="custom-tweet-content">`)
	fmt.Fprintf(&b, `<div class="custom-tweet-error" style="display:flex;">%s</div>`,
		html.EscapeString("Failed to load tweet: "+err.Error()))
	b.WriteString(`<div class="custom-tweet-media"></div></div>`)
	writeTweetFooter(&b, originalURL, 0)

	return Element{
		Kind: KindError,
		HTML: b.String(),
	}
}

func errorElement(msg string) Element {
	return Element{
		Kind: KindError,
		HTML: `<div class="embed-error">` + html.EscapeString(msg) + `</div>`,
	}
}
