package bridge

import (
	"sync"

	"github.com/blackmichael/metro/internal/bluesky"
	"github.com/blackmichael/metro/internal/domain"
)

// FeedSink accumulates pages of an author feed. The worker appends; the UI
// reads snapshots.
type FeedSink struct {
	mu     sync.Mutex
	items  []bluesky.FeedItem
	cursor string
	err    error
	pages  int
}

// NewFeedSink returns an empty sink.
func NewFeedSink() *FeedSink {
	return &FeedSink{}
}

func (s *FeedSink) append(page *bluesky.FeedPage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, page.Items...)
	s.cursor = page.Cursor
	s.err = nil
	s.pages++
}

func (s *FeedSink) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Items returns a copy of the accumulated items.
func (s *FeedSink) Items() []bluesky.FeedItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]bluesky.FeedItem(nil), s.items...)
}

// Cursor returns the cursor for the next page, empty at the end.
func (s *FeedSink) Cursor() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// Err returns the error of the last fetch, if it failed.
func (s *FeedSink) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Pages returns how many pages have been appended.
func (s *FeedSink) Pages() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pages
}

// ProfileSink accumulates pages of a follower list.
type ProfileSink struct {
	mu       sync.Mutex
	subject  *domain.ProfileView
	profiles []domain.ProfileView
	cursor   string
	err      error
	done     bool
}

// NewProfileSink returns an empty sink.
func NewProfileSink() *ProfileSink {
	return &ProfileSink{}
}

func (s *ProfileSink) append(page *bluesky.FollowersPage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	subject := page.Subject
	s.subject = &subject
	s.profiles = append(s.profiles, page.Followers...)
	s.cursor = page.Cursor
	s.done = page.Cursor == ""
	s.err = nil
}

func (s *ProfileSink) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Subject returns the profile whose followers are listed, once known.
func (s *ProfileSink) Subject() *domain.ProfileView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subject
}

// Profiles returns a copy of the accumulated profiles.
func (s *ProfileSink) Profiles() []domain.ProfileView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ProfileView(nil), s.profiles...)
}

// Cursor returns the cursor for the next page.
func (s *ProfileSink) Cursor() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// Done reports whether the last page has been fetched.
func (s *ProfileSink) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Err returns the error of the last fetch, if it failed.
func (s *ProfileSink) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
