package resolver

// Kind classifies a resolved element.
type Kind string

const (
	KindVideo       Kind = "video"        // cached or fetched blob in a <video>
	KindIframe      Kind = "iframe"       // third-party player
	KindTweet       Kind = "tweet"        // rendered preview card
	KindError       Kind = "error"        // inline failure text, terminal
	KindImage       Kind = "image"        // attachment thumbnail
	KindNativeVideo Kind = "native-video" // attachment video driven by the video controller
	KindLink        Kind = "link"
)

// Element is a displayable replacement for a placeholder's content.
type Element struct {
	Kind        Kind
	HTML        string
	Height      string
	AspectRatio string

	// ObjectURL is the blob handle the element displays, if any. Its owner
	// revokes it once the client reports the element loaded or the element
	// is replaced.
	ObjectURL string

	// MediaID and Source identify native attachment videos so they can be
	// registered with the video controller.
	MediaID string
	Source  string

	Cached bool
}

// Attachment describes a message's file as stored by the producer.
type Attachment struct {
	Filename string `json:"filename"`
	Ext      string `json:"ext"`
	Tim      int64  `json:"tim"`
	W        int    `json:"w"`
	H        int    `json:"h"`
	TnW      int    `json:"tn_w"`
	TnH      int    `json:"tn_h"`
}
