package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Feed view union types (app.bsky.feed.defs).
const (
	TypePostView       = "app.bsky.feed.defs#postView"
	TypeThreadViewPost = "app.bsky.feed.defs#threadViewPost"
	TypeNotFoundPost   = "app.bsky.feed.defs#notFoundPost"
	TypeBlockedPost    = "app.bsky.feed.defs#blockedPost"
	TypeReasonRepost   = "app.bsky.feed.defs#reasonRepost"
	TypeReasonPin      = "app.bsky.feed.defs#reasonPin"
)

// FeedPage is the body shared by getTimeline, getFeed and getAuthorFeed.
type FeedPage struct {
	Cursor string         `json:"cursor,omitempty"`
	Feed   []FeedViewPost `json:"feed"`
}

// FeedViewPost is one item of a feed as served.
type FeedViewPost struct {
	Post        PostView      `json:"post"`
	Reply       *FeedReplyRef `json:"reply,omitempty"`
	Reason      *Reason       `json:"reason,omitempty"`
	FeedContext string        `json:"feedContext,omitempty"`
}

// FeedReplyRef is the reply context of a feed item.
type FeedReplyRef struct {
	Root              RelatedPost       `json:"root"`
	Parent            RelatedPost       `json:"parent"`
	GrandparentAuthor *ProfileViewBasic `json:"grandparentAuthor,omitempty"`
}

// RelatedPost is a postView, notFoundPost or blockedPost. Post is set only
// for the postView case.
type RelatedPost struct {
	Type     string
	URI      string
	Post     *PostView
	NotFound bool
	Blocked  bool
}

// UnmarshalJSON decodes the union by $type. Entries without a $type but
// carrying a cid are treated as post views.
func (r *RelatedPost) UnmarshalJSON(data []byte) error {
	var head struct {
		Type     string `json:"$type"`
		URI      string `json:"uri"`
		CID      string `json:"cid"`
		NotFound bool   `json:"notFound"`
		Blocked  bool   `json:"blocked"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}

	*r = RelatedPost{Type: head.Type, URI: head.URI, NotFound: head.NotFound, Blocked: head.Blocked}

	if head.Type == TypePostView || (head.Type == "" && head.CID != "") {
		var post PostView
		if err := json.Unmarshal(data, &post); err != nil {
			return fmt.Errorf("decode related post: %w", err)
		}
		r.Type = TypePostView
		r.Post = &post
	}
	return nil
}

// Reason explains why an item appears in a feed: a repost by another actor,
// or a pin on the author's profile.
type Reason struct {
	Type      string            `json:"$type"`
	By        *ProfileViewBasic `json:"by,omitempty"`
	IndexedAt *time.Time        `json:"indexedAt,omitempty"`
}

// IsRepost reports whether the reason is a reasonRepost.
func (r *Reason) IsRepost() bool { return r != nil && r.Type == TypeReasonRepost }

// IsPin reports whether the reason is a reasonPin.
func (r *Reason) IsPin() bool { return r != nil && r.Type == TypeReasonPin }

// ThreadResponse is the body of getPostThread.
type ThreadResponse struct {
	Thread     ThreadViewPost  `json:"thread"`
	Threadgate json.RawMessage `json:"threadgate,omitempty"`
}

// ThreadViewPost is a threadViewPost, notFoundPost or blockedPost node.
// Post, Parent and Replies are only set for threadViewPost nodes.
type ThreadViewPost struct {
	Type     string            `json:"$type"`
	URI      string            `json:"uri,omitempty"`
	Post     *PostView         `json:"post,omitempty"`
	Parent   *ThreadViewPost   `json:"parent,omitempty"`
	Replies  []*ThreadViewPost `json:"replies,omitempty"`
	NotFound bool              `json:"notFound,omitempty"`
	Blocked  bool              `json:"blocked,omitempty"`
}

// NodeURI returns the AT-URI of the node regardless of its variant.
func (t *ThreadViewPost) NodeURI() string {
	if t.Post != nil {
		return t.Post.URI
	}
	return t.URI
}

// GeneratorView describes a feed generator (app.bsky.feed.defs#generatorView).
type GeneratorView struct {
	URI                 string            `json:"uri"`
	CID                 string            `json:"cid"`
	DID                 string            `json:"did"`
	Creator             ProfileView       `json:"creator"`
	DisplayName         string            `json:"displayName"`
	Description         string            `json:"description,omitempty"`
	DescriptionFacets   []Facet           `json:"descriptionFacets,omitempty"`
	Avatar              string            `json:"avatar,omitempty"`
	LikeCount           int               `json:"likeCount,omitempty"`
	AcceptsInteractions bool              `json:"acceptsInteractions,omitempty"`
	Labels              []json.RawMessage `json:"labels,omitempty"`
	Viewer              *GeneratorViewer  `json:"viewer,omitempty"`
	IndexedAt           time.Time         `json:"indexedAt"`
}

// GeneratorViewer holds the viewer's like on a feed generator.
type GeneratorViewer struct {
	Like string `json:"like,omitempty"`
}

// ActorFeeds is one page of getActorFeeds.
type ActorFeeds struct {
	Cursor string          `json:"cursor,omitempty"`
	Feeds  []GeneratorView `json:"feeds"`
}
