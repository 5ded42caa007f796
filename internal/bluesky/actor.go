package bluesky

import (
	"context"
	"net/url"

	"github.com/blackmichael/metro/internal/domain"
)

// FollowersPage is one page of app.bsky.graph.getFollowers.
type FollowersPage struct {
	Subject   domain.ProfileView   `json:"subject"`
	Followers []domain.ProfileView `json:"followers"`
	Cursor    string               `json:"cursor,omitempty"`
}

// GetProfile fetches the detailed profile of an actor (DID or handle).
func (c *Client) GetProfile(ctx context.Context, actor string) (*domain.ProfileViewDetailed, error) {
	q := url.Values{}
	q.Set("actor", actor)

	var profile domain.ProfileViewDetailed
	if err := c.getJSON(ctx, getCall("app.bsky.actor.getProfile", readEndpoint, q), &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// GetSelfProfile fetches the signed-in account's own profile.
func (c *Client) GetSelfProfile(ctx context.Context) (*domain.ProfileViewDetailed, error) {
	return c.GetProfile(ctx, c.DID())
}

// GetFollowers fetches a page of an actor's followers.
func (c *Client) GetFollowers(ctx context.Context, actor, cursor string) (*FollowersPage, error) {
	q := url.Values{}
	q.Set("actor", actor)
	if cursor != "" {
		q.Set("cursor", cursor)
	}

	var page FollowersPage
	if err := c.getJSON(ctx, getCall("app.bsky.graph.getFollowers", readEndpoint, q), &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetPreferences fetches the signed-in account's preferences.
func (c *Client) GetPreferences(ctx context.Context) (*domain.Preferences, error) {
	var prefs domain.Preferences
	if err := c.getJSON(ctx, getCall("app.bsky.actor.getPreferences", readWriteEndpoint, nil), &prefs); err != nil {
		return nil, err
	}
	return &prefs, nil
}
