package bluesky

import (
	"context"
	"net/url"

	"github.com/blackmichael/metro/internal/domain"
)

// GetActorFeeds lists the feed generators an actor has published.
func (c *Client) GetActorFeeds(ctx context.Context, actor, cursor string) (*domain.ActorFeeds, error) {
	q := url.Values{}
	q.Set("actor", actor)
	if cursor != "" {
		q.Set("cursor", cursor)
	}

	var feeds domain.ActorFeeds
	if err := c.getJSON(ctx, getCall("app.bsky.feed.getActorFeeds", readEndpoint, q), &feeds); err != nil {
		return nil, err
	}
	return &feeds, nil
}

// GetFeedGenerators hydrates a list of feed generator AT-URIs. An empty
// list returns without a request.
func (c *Client) GetFeedGenerators(ctx context.Context, feeds []string) ([]domain.GeneratorView, error) {
	if len(feeds) == 0 {
		return nil, nil
	}

	q := url.Values{}
	for _, f := range feeds {
		q.Add("feeds", f)
	}

	var resp struct {
		Feeds []domain.GeneratorView `json:"feeds"`
	}
	if err := c.getJSON(ctx, getCall("app.bsky.feed.getFeedGenerators", readEndpoint, q), &resp); err != nil {
		return nil, err
	}
	return resp.Feeds, nil
}

// GetPinnedFeeds resolves the pinned feed generators from the account's
// saved feeds preference.
func (c *Client) GetPinnedFeeds(ctx context.Context) ([]domain.GeneratorView, error) {
	prefs, err := c.GetPreferences(ctx)
	if err != nil {
		return nil, err
	}
	return c.GetFeedGenerators(ctx, prefs.PinnedFeedURIs())
}
