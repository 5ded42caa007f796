package bluesky

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bluesky-social/indigo/atproto/syntax"

	"github.com/blackmichael/metro/internal/domain"
)

// linkSchemes are the URL prefixes auto-linked in post text.
var linkSchemes = []string{"https://", "http://", "steam://"}

// linkTerminators end a detected link.
const linkTerminators = " )\x00\n"

// CreateRecord writes a record to the signed-in account's repo. Posts
// without facets get link facets detected from their text, and a zero
// CreatedAt is stamped with the current time.
func (c *Client) CreateRecord(ctx context.Context, record domain.Record) (*domain.CreatedRecord, error) {
	now := c.now().UTC()
	switch r := record.(type) {
	case domain.PostRecord:
		record = preparePost(r, now)
	case *domain.PostRecord:
		if r == nil {
			return nil, fmt.Errorf("create record: nil post")
		}
		record = preparePost(*r, now)
	case domain.LikeRecord:
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}
		record = r
	case domain.RepostRecord:
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}
		record = r
	case *domain.LikeRecord:
		if r == nil {
			return nil, fmt.Errorf("create record: nil like")
		}
		like := *r
		if like.CreatedAt.IsZero() {
			like.CreatedAt = now
		}
		record = like
	case *domain.RepostRecord:
		if r == nil {
			return nil, fmt.Errorf("create record: nil repost")
		}
		repost := *r
		if repost.CreatedAt.IsZero() {
			repost.CreatedAt = now
		}
		record = repost
	case nil:
		return nil, fmt.Errorf("create record: nil record")
	}

	body := createRecordRequest{
		Repo:       c.DID(),
		Collection: record.Collection(),
		Record:     domain.RecordWrapper{Record: record},
	}
	cl, err := postCall("com.atproto.repo.createRecord", body)
	if err != nil {
		return nil, err
	}

	var created domain.CreatedRecord
	if err := c.getJSON(ctx, cl, &created); err != nil {
		return nil, err
	}
	c.logger.Info("record created", "collection", body.Collection, "uri", created.URI)
	return &created, nil
}

func preparePost(p domain.PostRecord, now time.Time) domain.PostRecord {
	if len(p.Facets) == 0 {
		p.Facets = DetectLinks(p.Text)
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	return p
}

// DeleteRecord removes the record at collection/rkey from the signed-in
// account's repo. Malformed keys and collections are rejected without a
// request.
func (c *Client) DeleteRecord(ctx context.Context, rkey, collection string) (*domain.DeletedRecord, error) {
	if _, err := syntax.ParseRecordKey(rkey); err != nil {
		return nil, &APIError{Kind: KindBadRequest, Code: "InvalidRecordKey", Message: err.Error()}
	}
	if _, err := syntax.ParseNSID(collection); err != nil {
		return nil, &APIError{Kind: KindBadRequest, Code: "InvalidCollection", Message: err.Error()}
	}

	body := deleteRecordRequest{
		Repo:       c.DID(),
		Collection: collection,
		RKey:       rkey,
	}
	cl, err := postCall("com.atproto.repo.deleteRecord", body)
	if err != nil {
		return nil, err
	}

	var deleted domain.DeletedRecord
	if err := c.getJSON(ctx, cl, &deleted); err != nil {
		return nil, err
	}
	c.logger.Info("record deleted", "collection", collection, "rkey", rkey)
	return &deleted, nil
}

// DetectLinks returns one link facet per URL in text. A URL starts at the
// earliest https://, http:// or steam:// prefix and runs to the next space,
// ')', NUL or newline, or the end of the text. Each search resumes at the
// end of the previous match, so facets never overlap. Offsets are bytes.
func DetectLinks(text string) []domain.Facet {
	var facets []domain.Facet
	offset := 0
	for offset < len(text) {
		start := nextScheme(text[offset:])
		if start < 0 {
			break
		}
		start += offset

		end := len(text)
		if i := strings.IndexAny(text[start:], linkTerminators); i >= 0 {
			end = start + i
		}

		facets = append(facets, domain.LinkFacet(start, end, text[start:end]))
		offset = end
	}
	return facets
}

// nextScheme returns the index of the earliest link scheme in s, or -1.
func nextScheme(s string) int {
	best := -1
	for _, scheme := range linkSchemes {
		if i := strings.Index(s, scheme); i >= 0 && (best < 0 || i < best) {
			best = i
		}
	}
	return best
}

type createRecordRequest struct {
	Repo       string               `json:"repo"`
	Collection string               `json:"collection"`
	Record     domain.RecordWrapper `json:"record"`
}

type deleteRecordRequest struct {
	Repo       string `json:"repo"`
	Collection string `json:"collection"`
	RKey       string `json:"rkey"`
}
