package domain

import (
	"encoding/json"
	"time"
)

// PostView is a hydrated post as returned by the AppView
// (app.bsky.feed.defs#postView).
type PostView struct {
	// URI is the AT-URI of the post record.
	URI string `json:"uri"`

	// CID is the content identifier of the record version. It is the
	// identity used by the post cache.
	CID string `json:"cid"`

	Author    ProfileViewBasic `json:"author"`
	Record    PostRecord       `json:"record"`
	IndexedAt time.Time        `json:"indexedAt"`

	// Embed is the hydrated view of the record's embed, if any.
	Embed *Embed `json:"embed,omitempty"`

	ReplyCount  int `json:"replyCount,omitempty"`
	RepostCount int `json:"repostCount,omitempty"`
	LikeCount   int `json:"likeCount,omitempty"`
	QuoteCount  int `json:"quoteCount,omitempty"`

	// Viewer is the requesting account's relationship to the post. Only
	// present on authenticated requests.
	Viewer *ViewerState `json:"viewer,omitempty"`

	Labels     []json.RawMessage `json:"labels,omitempty"`
	Threadgate json.RawMessage   `json:"threadgate,omitempty"`
}

// ViewerState holds the app.bsky.feed.defs#viewerState of a post. Like and
// Repost are the AT-URIs of the viewer's own like/repost records.
type ViewerState struct {
	Repost            string `json:"repost,omitempty"`
	Like              string `json:"like,omitempty"`
	ThreadMuted       bool   `json:"threadMuted,omitempty"`
	ReplyDisabled     bool   `json:"replyDisabled,omitempty"`
	EmbeddingDisabled bool   `json:"embeddingDisabled,omitempty"`
	Pinned            bool   `json:"pinned,omitempty"`
}

// Liked reports whether the viewer has liked the post.
func (v *ViewerState) Liked() bool { return v != nil && v.Like != "" }

// Reposted reports whether the viewer has reposted the post.
func (v *ViewerState) Reposted() bool { return v != nil && v.Repost != "" }

// PostRecord is the body of an app.bsky.feed.post record. The same shape is
// used when a post is observed inside a PostView and when a new post is
// drafted for creation.
type PostRecord struct {
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`

	Facets []Facet         `json:"facets,omitempty"`
	Reply  *ReplyRef       `json:"reply,omitempty"`
	Embed  *RecordEmbed    `json:"embed,omitempty"`
	Langs  []string        `json:"langs,omitempty"`
	Labels json.RawMessage `json:"labels,omitempty"`
	Tags   []string        `json:"tags,omitempty"`
}

// StrongRef is a com.atproto.repo.strongRef: a reference to one specific
// version of a record.
type StrongRef struct {
	URI string `json:"uri"`
	CID string `json:"cid"`
}

// ReplyRef points at the root and parent of the thread a post replies to.
type ReplyRef struct {
	Root   StrongRef `json:"root"`
	Parent StrongRef `json:"parent"`
}
