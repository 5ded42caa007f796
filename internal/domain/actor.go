package domain

import (
	"encoding/json"
	"time"
)

// ProfileViewBasic is the compact actor view embedded in posts, reasons and
// feed generator listings.
type ProfileViewBasic struct {
	DID         string             `json:"did"`
	Handle      string             `json:"handle"`
	DisplayName string             `json:"displayName,omitempty"`
	Avatar      string             `json:"avatar,omitempty"`
	Associated  *ProfileAssociated `json:"associated,omitempty"`
	Viewer      *ActorViewerState  `json:"viewer,omitempty"`
	Labels      []json.RawMessage  `json:"labels,omitempty"`
	CreatedAt   *time.Time         `json:"createdAt,omitempty"`
}

// Name returns the display name, falling back to the handle when the
// display name is empty.
func (p ProfileViewBasic) Name() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.Handle
}

// ProfileView is the actor view used in follower listings.
type ProfileView struct {
	DID         string             `json:"did"`
	Handle      string             `json:"handle"`
	DisplayName string             `json:"displayName,omitempty"`
	Description string             `json:"description,omitempty"`
	Avatar      string             `json:"avatar,omitempty"`
	Associated  *ProfileAssociated `json:"associated,omitempty"`
	IndexedAt   *time.Time         `json:"indexedAt,omitempty"`
	CreatedAt   *time.Time         `json:"createdAt,omitempty"`
	Viewer      *ActorViewerState  `json:"viewer,omitempty"`
	Labels      []json.RawMessage  `json:"labels,omitempty"`
}

// ProfileViewDetailed is the full profile returned by getProfile.
type ProfileViewDetailed struct {
	DID            string             `json:"did"`
	Handle         string             `json:"handle"`
	DisplayName    string             `json:"displayName,omitempty"`
	Description    string             `json:"description,omitempty"`
	Avatar         string             `json:"avatar,omitempty"`
	Banner         string             `json:"banner,omitempty"`
	FollowersCount int                `json:"followersCount,omitempty"`
	FollowsCount   int                `json:"followsCount,omitempty"`
	PostsCount     int                `json:"postsCount,omitempty"`
	Associated     *ProfileAssociated `json:"associated,omitempty"`
	IndexedAt      *time.Time         `json:"indexedAt,omitempty"`
	CreatedAt      *time.Time         `json:"createdAt,omitempty"`
	Viewer         *ActorViewerState  `json:"viewer,omitempty"`
	Labels         []json.RawMessage  `json:"labels,omitempty"`
	PinnedPost     *StrongRef         `json:"pinnedPost,omitempty"`
}

// ProfileAssociated counts the lists, feeds and starter packs an actor owns.
type ProfileAssociated struct {
	Lists        int  `json:"lists,omitempty"`
	FeedGens     int  `json:"feedgens,omitempty"`
	StarterPacks int  `json:"starterPacks,omitempty"`
	Labeler      bool `json:"labeler,omitempty"`
}

// ActorViewerState is the requesting account's relationship with an actor.
// Following and FollowedBy are AT-URIs of follow records.
type ActorViewerState struct {
	Muted      bool   `json:"muted,omitempty"`
	BlockedBy  bool   `json:"blockedBy,omitempty"`
	Blocking   string `json:"blocking,omitempty"`
	Following  string `json:"following,omitempty"`
	FollowedBy string `json:"followedBy,omitempty"`
}
