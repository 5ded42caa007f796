package domain

import "encoding/json"

// Preference types this client reads.
const (
	PrefSavedFeedsV2 = "app.bsky.actor.defs#savedFeedsPrefV2"
)

// SavedFeed item types.
const (
	SavedFeedTypeFeed     = "feed"
	SavedFeedTypeList     = "list"
	SavedFeedTypeTimeline = "timeline"
)

// Preferences is the body of app.bsky.actor.getPreferences. Each entry is a
// $type-tagged union member; only savedFeedsPrefV2 is decoded and the rest
// are kept raw.
type Preferences struct {
	Preferences []Preference `json:"preferences"`
}

// Preference is one entry of the preferences array.
type Preference struct {
	Type       string
	SavedFeeds []SavedFeed
	Raw        json.RawMessage
}

// SavedFeed is one item of savedFeedsPrefV2.
type SavedFeed struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Value  string `json:"value"`
	Pinned bool   `json:"pinned"`
}

// UnmarshalJSON decodes the preference by $type.
func (p *Preference) UnmarshalJSON(data []byte) error {
	var head struct {
		Type  string      `json:"$type"`
		Items []SavedFeed `json:"items"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}

	*p = Preference{Type: head.Type, Raw: append(json.RawMessage(nil), data...)}
	if head.Type == PrefSavedFeedsV2 {
		p.SavedFeeds = head.Items
	}
	return nil
}

// MarshalJSON writes the preference back out as received.
func (p Preference) MarshalJSON() ([]byte, error) {
	if len(p.Raw) == 0 {
		return []byte("null"), nil
	}
	return p.Raw, nil
}

// SavedFeeds returns the items of every savedFeedsPrefV2 entry in order.
func (p Preferences) SavedFeeds() []SavedFeed {
	var out []SavedFeed
	for _, pref := range p.Preferences {
		if pref.Type == PrefSavedFeedsV2 {
			out = append(out, pref.SavedFeeds...)
		}
	}
	return out
}

// PinnedFeedURIs returns the AT-URIs of pinned feed-generator items, skipping
// lists and the home timeline.
func (p Preferences) PinnedFeedURIs() []string {
	var uris []string
	for _, f := range p.SavedFeeds() {
		if f.Pinned && f.Type == SavedFeedTypeFeed {
			uris = append(uris, f.Value)
		}
	}
	return uris
}
