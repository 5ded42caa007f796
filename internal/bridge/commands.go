package bridge

import "github.com/blackmichael/metro/internal/domain"

// MaxImages is the most images a single post can carry.
const MaxImages = 4

// Command is a request from the UI to the worker.
type Command interface {
	commandName() string
}

// Shutdown stops the worker after the current command.
type Shutdown struct{}

// LoginStandard signs in with a handle (or email) and an app password.
type LoginStandard struct {
	Handle   string
	Password string
}

// GetTimeline fetches a page of the home timeline. Zero Limit uses the
// server default.
type GetTimeline struct {
	Cursor string
	Limit  int
}

// GetFeed fetches a page of a feed generator.
type GetFeed struct {
	Feed   string
	Cursor string
	Limit  int
}

// GetProfile fetches an actor's profile.
type GetProfile struct {
	DID string
}

// GetThread fetches the thread around a post.
type GetThread struct {
	URI string
}

// GetAuthorFeed appends a page of an actor's posts to Sink.
type GetAuthorFeed struct {
	DID    string
	Cursor string
	Sink   *FeedSink
}

// GetFollowers appends the next page of an actor's followers to Sink,
// continuing from the sink's cursor.
type GetFollowers struct {
	DID  string
	Sink *ProfileSink
}

// CreateRecord writes a standalone record.
type CreateRecord struct {
	Record domain.Record
}

// CreateRecordWithMedia uploads up to MaxImages files and posts them as an
// images embed.
type CreateRecordWithMedia struct {
	Record    domain.PostRecord
	FilePaths []string
}

// CreateRecordUnderPost writes a like or repost of the cached post with CID
// Post, then updates that post's viewer state and counts.
type CreateRecordUnderPost struct {
	Record domain.Record
	Post   string
}

// DeleteRecord deletes a standalone record. Not supported.
type DeleteRecord struct {
	RKey       string
	Collection string
}

// DeleteRecordUnderPost deletes a like or repost of the cached post with CID
// Post, then reverts that post's viewer state and counts.
type DeleteRecordUnderPost struct {
	RKey       string
	Collection string
	Post       string
}

func (Shutdown) commandName() string              { return "shutdown" }
func (LoginStandard) commandName() string         { return "login" }
func (GetTimeline) commandName() string           { return "get_timeline" }
func (GetFeed) commandName() string               { return "get_feed" }
func (GetProfile) commandName() string            { return "get_profile" }
func (GetThread) commandName() string             { return "get_thread" }
func (GetAuthorFeed) commandName() string         { return "get_author_feed" }
func (GetFollowers) commandName() string          { return "get_followers" }
func (CreateRecord) commandName() string          { return "create_record" }
func (CreateRecordWithMedia) commandName() string { return "create_record_with_media" }
func (CreateRecordUnderPost) commandName() string { return "create_record_under_post" }
func (DeleteRecord) commandName() string          { return "delete_record" }
func (DeleteRecordUnderPost) commandName() string { return "delete_record_under_post" }
