package firehose

import (
	"github.com/goccy/go-json"

	"github.com/blackmichael/metro/internal/domain"
)

// Jetstream event kinds and commit operations.
const (
	EventKindCommit   = "commit"
	EventKindAccount  = "account"
	EventKindIdentity = "identity"

	CommitOperationCreate = "create"
	CommitOperationUpdate = "update"
	CommitOperationDelete = "delete"
)

// jetstreamEvent is the raw JSON structure from Jetstream.
type jetstreamEvent struct {
	DID    string           `json:"did"`
	TimeUS int64            `json:"time_us"`
	Kind   string           `json:"kind,omitempty"`
	Commit *jetstreamCommit `json:"commit,omitempty"`
}

// jetstreamCommit is the raw commit data from Jetstream.
type jetstreamCommit struct {
	Rev        string          `json:"rev,omitempty"`
	Operation  string          `json:"operation,omitempty"`
	Collection string          `json:"collection,omitempty"`
	RKey       string          `json:"rkey,omitempty"`
	Record     json.RawMessage `json:"record,omitempty"`
	CID        string          `json:"cid,omitempty"`
}

// Commit is one repo write by the watched account.
type Commit struct {
	DID        string
	TimeUS     int64
	Rev        string
	Operation  string
	Collection string
	RKey       string
	CID        string

	// Record is the raw record for creates and updates.
	Record []byte
}

// URI returns the AT-URI of the written record.
func (c Commit) URI() string {
	return domain.RecordURI(c.DID, c.Collection, c.RKey)
}

// DecodeRecord decodes the record body of a create or update.
func (c Commit) DecodeRecord() (domain.Record, error) {
	return domain.DecodeRecord(c.Record)
}

func parseEvent(data []byte) (*jetstreamEvent, error) {
	var event jetstreamEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

func (e *jetstreamEvent) commit() Commit {
	return Commit{
		DID:        e.DID,
		TimeUS:     e.TimeUS,
		Rev:        e.Commit.Rev,
		Operation:  e.Commit.Operation,
		Collection: e.Commit.Collection,
		RKey:       e.Commit.RKey,
		CID:        e.Commit.CID,
		Record:     e.Commit.Record,
	}
}
