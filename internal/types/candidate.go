package types

// Origin identifies where a fragment came from.
type Origin string

const (
	// OriginLive is the rendered host page.
	OriginLive Origin = "live"
	// OriginHistory is one message of the chat history.
	OriginHistory Origin = "history"
)

// Fragment is a block of HTML text scanned for domain markers.
// Index is the position in collection order (0 = highest priority).
type Fragment struct {
	Origin Origin `json:"origin"`
	Index  int    `json:"index"`
	HTML   string `json:"-"`
}

// RawCandidate is one (name, value) hit produced by the scanner, before merging.
type RawCandidate struct {
	Domain Domain `json:"domain"`
	Name   string `json:"name"`
	Value  string `json:"value"`

	// Element attributes kept for the avatar resolution chain
	Src        string `json:"src,omitempty"`
	DataAvatar string `json:"data_avatar,omitempty"`
	Text       string `json:"text,omitempty"`

	Origin   Origin `json:"origin"`
	Fragment int    `json:"fragment"`
	Selector string `json:"selector"`
}

// ChatMessage is one entry of the chat host's message history.
type ChatMessage struct {
	Name     string `json:"name"`
	IsUser   bool   `json:"is_user"`
	Text     string `json:"mes"`
	SendDate string `json:"send_date,omitempty"`
}
