package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Embed view and record types.
const (
	EmbedImages          = "app.bsky.embed.images"
	EmbedImagesView      = "app.bsky.embed.images#view"
	EmbedVideo           = "app.bsky.embed.video"
	EmbedVideoView       = "app.bsky.embed.video#view"
	EmbedExternal        = "app.bsky.embed.external"
	EmbedExternalView    = "app.bsky.embed.external#view"
	EmbedRecord          = "app.bsky.embed.record"
	EmbedRecordView      = "app.bsky.embed.record#view"
	EmbedRecordWithMedia = "app.bsky.embed.recordWithMedia"

	EmbedRecordWithMediaView = "app.bsky.embed.recordWithMedia#view"
)

// Types an embedded record view can carry.
const (
	EmbeddedViewRecord   = "app.bsky.embed.record#viewRecord"
	EmbeddedViewNotFound = "app.bsky.embed.record#viewNotFound"
	EmbeddedViewBlocked  = "app.bsky.embed.record#viewBlocked"
	EmbeddedViewDetached = "app.bsky.embed.record#viewDetached"
)

// Embed is the hydrated embed attached to a PostView. Type selects which
// field is populated; types this client does not render keep only Raw.
type Embed struct {
	Type     string
	Images   []ImageView
	Video    *VideoView
	External *ExternalView
	Record   *EmbeddedRecord

	// Media is the image/video/external half of a recordWithMedia view.
	Media *Embed

	// Raw is the embed exactly as received.
	Raw json.RawMessage
}

// ImageView is one image of an images#view embed.
type ImageView struct {
	Thumb       string       `json:"thumb"`
	Fullsize    string       `json:"fullsize"`
	Alt         string       `json:"alt"`
	AspectRatio *AspectRatio `json:"aspectRatio,omitempty"`
}

// AspectRatio is the width/height hint served alongside media.
type AspectRatio struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// VideoView is a video#view embed.
type VideoView struct {
	CID         string       `json:"cid"`
	Playlist    string       `json:"playlist"`
	Thumbnail   string       `json:"thumbnail,omitempty"`
	Alt         string       `json:"alt,omitempty"`
	AspectRatio *AspectRatio `json:"aspectRatio,omitempty"`
}

// ExternalView is a link card.
type ExternalView struct {
	URI         string `json:"uri"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Thumb       string `json:"thumb,omitempty"`
}

// EmbeddedRecord is the record half of a record#view. Only viewRecord
// entries have the post fields populated; feed generators, lists, labelers
// and starter packs are left in Raw.
type EmbeddedRecord struct {
	Type      string            `json:"$type"`
	URI       string            `json:"uri"`
	CID       string            `json:"cid,omitempty"`
	Author    *ProfileViewBasic `json:"author,omitempty"`
	Value     json.RawMessage   `json:"value,omitempty"`
	IndexedAt time.Time         `json:"indexedAt,omitempty"`

	ReplyCount  int `json:"replyCount,omitempty"`
	RepostCount int `json:"repostCount,omitempty"`
	LikeCount   int `json:"likeCount,omitempty"`
	QuoteCount  int `json:"quoteCount,omitempty"`

	NotFound bool `json:"notFound,omitempty"`
	Blocked  bool `json:"blocked,omitempty"`
	Detached bool `json:"detached,omitempty"`

	Raw json.RawMessage `json:"-"`
}

// UnmarshalJSON decodes an embed by its $type.
func (e *Embed) UnmarshalJSON(data []byte) error {
	var probe struct {
		Type string `json:"$type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}

	e.Type = probe.Type
	e.Raw = append(json.RawMessage(nil), data...)

	switch probe.Type {
	case EmbedImagesView:
		var v struct {
			Images []ImageView `json:"images"`
		}
		if err := json.Unmarshal(data, &v); err != nil {
			return fmt.Errorf("decode %s: %w", probe.Type, err)
		}
		e.Images = v.Images

	case EmbedVideoView:
		var v VideoView
		if err := json.Unmarshal(data, &v); err != nil {
			return fmt.Errorf("decode %s: %w", probe.Type, err)
		}
		e.Video = &v

	case EmbedExternalView:
		var v struct {
			External ExternalView `json:"external"`
		}
		if err := json.Unmarshal(data, &v); err != nil {
			return fmt.Errorf("decode %s: %w", probe.Type, err)
		}
		e.External = &v.External

	case EmbedRecordView:
		var v struct {
			Record json.RawMessage `json:"record"`
		}
		if err := json.Unmarshal(data, &v); err != nil {
			return fmt.Errorf("decode %s: %w", probe.Type, err)
		}
		rec, err := decodeEmbeddedRecord(v.Record)
		if err != nil {
			return err
		}
		e.Record = rec

	case EmbedRecordWithMediaView:
		var v struct {
			Record struct {
				Record json.RawMessage `json:"record"`
			} `json:"record"`
			Media *Embed `json:"media"`
		}
		if err := json.Unmarshal(data, &v); err != nil {
			return fmt.Errorf("decode %s: %w", probe.Type, err)
		}
		rec, err := decodeEmbeddedRecord(v.Record.Record)
		if err != nil {
			return err
		}
		e.Record = rec
		e.Media = v.Media
	}

	return nil
}

// MarshalJSON writes the embed back out as it was received.
func (e Embed) MarshalJSON() ([]byte, error) {
	if len(e.Raw) == 0 {
		return []byte("null"), nil
	}
	return e.Raw, nil
}

func decodeEmbeddedRecord(data json.RawMessage) (*EmbeddedRecord, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var rec EmbeddedRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode embedded record: %w", err)
	}
	rec.Raw = append(json.RawMessage(nil), data...)
	return &rec, nil
}

// RecordEmbed is the embed stored inside a post record. The client writes
// images embeds for media posts and quote embeds for record references;
// anything else read back from the network round-trips through Raw.
type RecordEmbed struct {
	Type     string
	Images   []ImageRef
	External *ExternalRef
	Record   *StrongRef
	Media    *RecordEmbed

	Raw json.RawMessage
}

// ImageRef is one uploaded image referenced from an images embed.
type ImageRef struct {
	Alt         string       `json:"alt"`
	Image       BlobRef      `json:"image"`
	AspectRatio *AspectRatio `json:"aspectRatio,omitempty"`
}

// ExternalRef is the stored form of a link card.
type ExternalRef struct {
	URI         string   `json:"uri"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Thumb       *BlobRef `json:"thumb,omitempty"`
}

// ImagesEmbed builds an app.bsky.embed.images embed from uploaded blobs.
func ImagesEmbed(blobs []BlobRef) *RecordEmbed {
	images := make([]ImageRef, len(blobs))
	for i, b := range blobs {
		images[i] = ImageRef{Image: b}
	}
	return &RecordEmbed{Type: EmbedImages, Images: images}
}

// UnmarshalJSON decodes the embed types this client writes and keeps the
// original bytes for everything.
func (e *RecordEmbed) UnmarshalJSON(data []byte) error {
	var v struct {
		Type     string          `json:"$type"`
		Images   []ImageRef      `json:"images"`
		External *ExternalRef    `json:"external"`
		Record   json.RawMessage `json:"record"`
		Media    *RecordEmbed    `json:"media"`
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}

	*e = RecordEmbed{Type: v.Type, Raw: append(json.RawMessage(nil), data...)}

	switch v.Type {
	case EmbedImages:
		e.Images = v.Images
	case EmbedExternal:
		e.External = v.External
	case EmbedRecord:
		var ref StrongRef
		if err := json.Unmarshal(v.Record, &ref); err != nil {
			return fmt.Errorf("decode %s: %w", v.Type, err)
		}
		e.Record = &ref
	case EmbedRecordWithMedia:
		var wrapped struct {
			Record StrongRef `json:"record"`
		}
		if err := json.Unmarshal(v.Record, &wrapped); err != nil {
			return fmt.Errorf("decode %s: %w", v.Type, err)
		}
		e.Record = &wrapped.Record
		e.Media = v.Media
	}
	return nil
}

// MarshalJSON writes Raw when the embed came off the wire, and otherwise
// encodes the typed fields.
func (e RecordEmbed) MarshalJSON() ([]byte, error) {
	if len(e.Raw) > 0 {
		return e.Raw, nil
	}

	switch e.Type {
	case EmbedImages:
		return json.Marshal(struct {
			Type   string     `json:"$type"`
			Images []ImageRef `json:"images"`
		}{e.Type, e.Images})
	case EmbedExternal:
		return json.Marshal(struct {
			Type     string       `json:"$type"`
			External *ExternalRef `json:"external"`
		}{e.Type, e.External})
	case EmbedRecord:
		return json.Marshal(struct {
			Type   string     `json:"$type"`
			Record *StrongRef `json:"record"`
		}{e.Type, e.Record})
	case EmbedRecordWithMedia:
		type recordRef struct {
			Record *StrongRef `json:"record"`
		}
		return json.Marshal(struct {
			Type   string       `json:"$type"`
			Record recordRef    `json:"record"`
			Media  *RecordEmbed `json:"media"`
		}{e.Type, recordRef{e.Record}, e.Media})
	default:
		return nil, fmt.Errorf("unsupported embed type %q", e.Type)
	}
}
