package embeds

// Family identifies an embeddable URL family.
type Family string

const (
	FamilyYouTube    Family = "youtube"
	FamilyTwitchClip Family = "twitch-clip"
	FamilyTwitchVOD  Family = "twitch-vod"
	FamilyStreamable Family = "streamable"
	FamilyTweet      Family = "custom-tweet"
)

// Valid reports whether f is a known family.
func (f Family) Valid() bool {
	switch f {
	case FamilyYouTube, FamilyTwitchClip, FamilyTwitchVOD, FamilyStreamable, FamilyTweet:
		return true
	}
	return false
}

// Sticky reports whether a loaded placeholder of this family stays loaded
// when it leaves the observed region.
func (f Family) Sticky() bool {
	return f == FamilyTweet
}

// Label is the text shown under the play overlay of an unloaded placeholder.
// YouTube uses its thumbnail instead and has no label.
func (f Family) Label() string {
	switch f {
	case FamilyTwitchClip:
		return "Twitch Clip"
	case FamilyTwitchVOD:
		return "Twitch VOD"
	case FamilyStreamable:
		return "Streamable Video"
	}
	return ""
}

// Placeholder is the record behind one embed placeholder element. The HTML
// attributes written by RenderPlaceholder are a serialization of it.
type Placeholder struct {
	ID          string `json:"id"`
	Family      Family `json:"embedType"`
	ResourceID  string `json:"resourceId"` // video id, or tweet id for FamilyTweet
	OriginalURL string `json:"originalUrl,omitempty"`
	StartTime   int    `json:"startTime,omitempty"` // seconds, 0 means no offset
	Loaded      bool   `json:"loaded"`
}

// View is the presentational state of a placeholder element.
type View struct {
	Content     string // inner HTML
	Height      string // CSS height, "" leaves it unset
	AspectRatio string // CSS aspect-ratio, "" leaves it unset
}

// Counts tallies detected embeds per family.
type Counts map[Family]int

// Result is the output of Transform.
type Result struct {
	Counts       Counts
	HTML         string
	Placeholders []Placeholder
}
