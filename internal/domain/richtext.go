package domain

import "sort"

// Rich-text facet feature types (app.bsky.richtext.facet).
const (
	FeatureMention = "app.bsky.richtext.facet#mention"
	FeatureLink    = "app.bsky.richtext.facet#link"
	FeatureTag     = "app.bsky.richtext.facet#tag"
)

// Facet annotates a byte range of post text with rich-text features.
type Facet struct {
	Index    ByteSlice `json:"index"`
	Features []Feature `json:"features"`
}

// ByteSlice is a half-open [ByteStart, ByteEnd) range over the UTF-8 bytes
// of the post text.
type ByteSlice struct {
	ByteStart int `json:"byteStart"`
	ByteEnd   int `json:"byteEnd"`
}

// Feature is one facet feature. Type selects which of the remaining fields
// is meaningful: DID for mentions, URI for links, Tag for hashtags.
type Feature struct {
	Type string `json:"$type"`
	DID  string `json:"did,omitempty"`
	URI  string `json:"uri,omitempty"`
	Tag  string `json:"tag,omitempty"`
}

// LinkFacet returns a facet marking text[start:end] as a link to uri.
func LinkFacet(start, end int, uri string) Facet {
	return Facet{
		Index:    ByteSlice{ByteStart: start, ByteEnd: end},
		Features: []Feature{{Type: FeatureLink, URI: uri}},
	}
}

// SortFacets orders facets by ascending byte start. The sort is stable so
// facets sharing a start keep their server order.
func SortFacets(facets []Facet) {
	sort.SliceStable(facets, func(i, j int) bool {
		return facets[i].Index.ByteStart < facets[j].Index.ByteStart
	})
}
