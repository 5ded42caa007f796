package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Collections this client writes to.
const (
	CollectionPost   = "app.bsky.feed.post"
	CollectionLike   = "app.bsky.feed.like"
	CollectionRepost = "app.bsky.feed.repost"
)

// Record is a repo record this client can create. The set of
// implementations is closed: PostRecord, LikeRecord and RepostRecord.
type Record interface {
	// Collection returns the NSID of the collection the record lives in,
	// which is also its $type.
	Collection() string

	isRecord()
}

// LikeRecord is an app.bsky.feed.like record.
type LikeRecord struct {
	Subject   StrongRef `json:"subject"`
	CreatedAt time.Time `json:"createdAt"`
}

// RepostRecord is an app.bsky.feed.repost record.
type RepostRecord struct {
	Subject   StrongRef `json:"subject"`
	CreatedAt time.Time `json:"createdAt"`
}

func (PostRecord) Collection() string   { return CollectionPost }
func (LikeRecord) Collection() string   { return CollectionLike }
func (RepostRecord) Collection() string { return CollectionRepost }

func (PostRecord) isRecord()   {}
func (LikeRecord) isRecord()   {}
func (RepostRecord) isRecord() {}

// RecordWrapper marshals a Record with its $type injected as the first key.
type RecordWrapper struct {
	Record Record
}

// MarshalJSON implements json.Marshaler.
func (rw RecordWrapper) MarshalJSON() ([]byte, error) {
	if rw.Record == nil {
		return nil, fmt.Errorf("marshal record: nil record")
	}
	b, err := json.Marshal(rw.Record)
	if err != nil {
		return nil, err
	}
	if len(b) < 2 || b[0] != '{' {
		return nil, fmt.Errorf("marshal record: %s did not encode as an object", rw.Record.Collection())
	}

	inject := `"$type":"` + rw.Record.Collection() + `"`
	if len(b) > 2 {
		inject += ","
	}

	n := append([]byte("{"), inject...)
	n = append(n, b[1:]...)
	return n, nil
}

// DecodeRecord decodes a $type-tagged record body.
func DecodeRecord(data []byte) (Record, error) {
	var head struct {
		Type string `json:"$type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}

	var (
		rec Record
		err error
	)
	switch head.Type {
	case CollectionPost:
		var r PostRecord
		err = json.Unmarshal(data, &r)
		rec = r
	case CollectionLike:
		var r LikeRecord
		err = json.Unmarshal(data, &r)
		rec = r
	case CollectionRepost:
		var r RepostRecord
		err = json.Unmarshal(data, &r)
		rec = r
	default:
		return nil, fmt.Errorf("decode record: unsupported type %q", head.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", head.Type, err)
	}
	return rec, nil
}

// BlobRef is an AT Protocol blob reference for uploaded content.
type BlobRef struct {
	Type string `json:"$type"`
	Ref  struct {
		Link string `json:"$link"`
	} `json:"ref"`
	MimeType string `json:"mimeType"`
	Size     int    `json:"size"`
}

// CreatedRecord is the server's acknowledgement of createRecord.
type CreatedRecord struct {
	URI              string  `json:"uri"`
	CID              string  `json:"cid"`
	Commit           *Commit `json:"commit,omitempty"`
	ValidationStatus string  `json:"validationStatus,omitempty"`
}

// DeletedRecord is the server's acknowledgement of deleteRecord.
type DeletedRecord struct {
	Commit *Commit `json:"commit,omitempty"`
}

// Commit identifies the repo commit a write landed in.
type Commit struct {
	CID string `json:"cid"`
	Rev string `json:"rev"`
}
