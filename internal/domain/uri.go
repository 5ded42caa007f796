package domain

import (
	"fmt"

	"github.com/bluesky-social/indigo/atproto/syntax"
)

// ATURI is a parsed at://authority/collection/rkey reference.
type ATURI struct {
	Authority  string
	Collection string
	RKey       string
}

// ParseATURI validates an AT-URI and splits it into its authority,
// collection and record key. Collection and RKey are empty for URIs that
// stop short of them.
func ParseATURI(uri string) (ATURI, error) {
	parsed, err := syntax.ParseATURI(uri)
	if err != nil {
		return ATURI{}, fmt.Errorf("invalid AT-URI %q: %w", uri, err)
	}
	return ATURI{
		Authority:  parsed.Authority().String(),
		Collection: parsed.Collection().String(),
		RKey:       parsed.RecordKey().String(),
	}, nil
}

// String formats the URI back into at:// form.
func (u ATURI) String() string {
	s := "at://" + u.Authority
	if u.Collection != "" {
		s += "/" + u.Collection
		if u.RKey != "" {
			s += "/" + u.RKey
		}
	}
	return s
}

// RecordKey returns the rkey of a record AT-URI, as needed to delete the
// record again.
func RecordKey(uri string) (string, error) {
	u, err := ParseATURI(uri)
	if err != nil {
		return "", err
	}
	if u.RKey == "" {
		return "", fmt.Errorf("AT-URI %q has no record key", uri)
	}
	return u.RKey, nil
}

// RecordURI builds the AT-URI of a record from its parts.
func RecordURI(did, collection, rkey string) string {
	return ATURI{Authority: did, Collection: collection, RKey: rkey}.String()
}
