package bridge

import (
	"errors"

	"github.com/blackmichael/metro/internal/bluesky"
	"github.com/blackmichael/metro/internal/domain"
)

// ErrWasntLoggedIn is the LoginResult error at startup when no session was
// stored.
var ErrWasntLoggedIn = errors.New("wasn't logged in")

// Event is a result pushed from the worker to the UI.
type Event interface {
	isEvent()
}

// BackendError reports a non-fatal failure with no dedicated event.
type BackendError struct {
	Message string
}

// LoginResult reports a login or startup session restore. On success
// Profile and FeedGenerators are filled in best-effort.
type LoginResult struct {
	Session        bluesky.LoginResult
	Err            error
	Profile        *domain.ProfileViewDetailed
	FeedGenerators []domain.GeneratorView
}

// TimelineResult carries a timeline or feed page. Feed is empty for the
// home timeline.
type TimelineResult struct {
	Feed   string
	Result *bluesky.FeedPage
	Err    error
}

// KeyringFailure reports that the credential store could not be read or
// written.
type KeyringFailure struct {
	Message string
}

// RecordCreated reports the outcome of a record creation.
type RecordCreated struct {
	Result *domain.CreatedRecord
	Err    error
}

// RecordDeleted reports the outcome of a record deletion.
type RecordDeleted struct {
	Result *domain.DeletedRecord
	Err    error
}

// ProfileResult answers GetProfile.
type ProfileResult struct {
	DID    string
	Result *domain.ProfileViewDetailed
	Err    error
}

// ThreadResult answers GetThread.
type ThreadResult struct {
	URI    string
	Result *bluesky.Thread
	Err    error
}

func (BackendError) isEvent()   {}
func (LoginResult) isEvent()    {}
func (TimelineResult) isEvent() {}
func (KeyringFailure) isEvent() {}
func (RecordCreated) isEvent()  {}
func (RecordDeleted) isEvent()  {}
func (ProfileResult) isEvent()  {}
func (ThreadResult) isEvent()   {}
