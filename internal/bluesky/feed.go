package bluesky

import (
	"context"
	"net/url"
	"strconv"

	"github.com/blackmichael/metro/internal/domain"
	"github.com/blackmichael/metro/internal/postcache"
)

const (
	defaultFeedLimit = 50
	maxFeedLimit     = 100
)

// FeedPage is one page of a timeline, custom feed or author feed with every
// post canonicalized.
type FeedPage struct {
	Cursor string
	Items  []FeedItem
}

// FeedItem is one feed entry. Post is the shared cache handle.
type FeedItem struct {
	Post        *postcache.Post
	Reason      *domain.Reason
	Reply       *ReplyContext
	FeedContext string
}

// ReplyContext is the thread a feed item replies into.
type ReplyContext struct {
	Root              RelatedPost
	Parent            RelatedPost
	GrandparentAuthor *domain.ProfileViewBasic
}

// RelatedPost is a reply root or parent. Post is nil when the post was not
// found or is blocked.
type RelatedPost struct {
	URI      string
	Post     *postcache.Post
	NotFound bool
	Blocked  bool
}

// GetTimeline fetches the home timeline. A limit of zero requests the
// default page size; other values are clamped to [1, 100].
func (c *Client) GetTimeline(ctx context.Context, cursor string, limit int) (*FeedPage, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(clampLimit(limit)))
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	return c.getFeedPage(ctx, getCall("app.bsky.feed.getTimeline", readWriteEndpoint, q))
}

// GetFeed fetches a page of a custom feed by its generator AT-URI.
func (c *Client) GetFeed(ctx context.Context, feed, cursor string, limit int) (*FeedPage, error) {
	q := url.Values{}
	q.Set("feed", feed)
	q.Set("limit", strconv.Itoa(clampLimit(limit)))
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	return c.getFeedPage(ctx, getCall("app.bsky.feed.getFeed", readWriteEndpoint, q))
}

// GetAuthorFeed fetches a page of an actor's posts and reposts.
func (c *Client) GetAuthorFeed(ctx context.Context, actor, cursor string) (*FeedPage, error) {
	q := url.Values{}
	q.Set("actor", actor)
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	return c.getFeedPage(ctx, getCall("app.bsky.feed.getAuthorFeed", readWriteEndpoint, q))
}

func (c *Client) getFeedPage(ctx context.Context, cl call) (*FeedPage, error) {
	var raw domain.FeedPage
	if err := c.getJSON(ctx, cl, &raw); err != nil {
		return nil, err
	}
	return c.canonicalizeFeed(raw), nil
}

func (c *Client) canonicalizeFeed(raw domain.FeedPage) *FeedPage {
	page := &FeedPage{
		Cursor: raw.Cursor,
		Items:  make([]FeedItem, len(raw.Feed)),
	}
	for i, item := range raw.Feed {
		page.Items[i] = FeedItem{
			Post:        c.cache.Canonicalize(item.Post),
			Reason:      item.Reason,
			FeedContext: item.FeedContext,
		}
		if item.Reply != nil {
			page.Items[i].Reply = &ReplyContext{
				Root:              c.related(item.Reply.Root),
				Parent:            c.related(item.Reply.Parent),
				GrandparentAuthor: item.Reply.GrandparentAuthor,
			}
		}
	}
	return page
}

func (c *Client) related(r domain.RelatedPost) RelatedPost {
	out := RelatedPost{URI: r.URI, NotFound: r.NotFound, Blocked: r.Blocked}
	if r.Post != nil {
		out.Post = c.cache.Canonicalize(*r.Post)
		out.URI = r.Post.URI
	}
	return out
}

func clampLimit(limit int) int {
	switch {
	case limit == 0:
		return defaultFeedLimit
	case limit < 1:
		return 1
	case limit > maxFeedLimit:
		return maxFeedLimit
	default:
		return limit
	}
}
