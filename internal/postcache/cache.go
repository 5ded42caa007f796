// Package postcache deduplicates post views by content id so that every
// feed, thread and profile page shares one canonical object per post.
package postcache

import (
	"sync"

	"github.com/blackmichael/metro/internal/domain"
	"github.com/blackmichael/metro/internal/metrics"
)

// Post is the shared handle for one canonical post. The worker overwrites
// its contents when a newer copy is fetched or a local interaction lands;
// readers take a snapshot through View or Read.
type Post struct {
	mu   sync.RWMutex
	view domain.PostView
}

// CID returns the content id the post is cached under.
func (p *Post) CID() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.view.CID
}

// URI returns the AT-URI of the post.
func (p *Post) URI() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.view.URI
}

// View returns a copy of the current post view. The viewer state is copied
// so the snapshot does not change under a later mutation.
func (p *Post) View() domain.PostView {
	p.mu.RLock()
	defer p.mu.RUnlock()

	v := p.view
	if v.Viewer != nil {
		viewer := *v.Viewer
		v.Viewer = &viewer
	}
	return v
}

// Read calls fn with the live view under a read lock. fn must not retain
// the pointer or block.
func (p *Post) Read(fn func(v *domain.PostView)) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	fn(&p.view)
}

func (p *Post) mutate(fn func(v *domain.PostView)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(&p.view)
}

// Cache maps content ids to canonical posts. Entries live as long as the
// cache; there is no eviction.
//
// Lock order is Cache.mu then Post.mu. Neither is held across I/O.
type Cache struct {
	mu    sync.Mutex
	posts map[string]*Post
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{posts: make(map[string]*Post)}
}

// Canonicalize returns the shared handle for view.CID, inserting view as the
// canonical copy if the cid is new and overwriting the existing copy in
// place otherwise. Facets are sorted by byte start either way.
//
// A view without a cid cannot be deduplicated; it gets a fresh handle that
// is not retained.
func (c *Cache) Canonicalize(view domain.PostView) *Post {
	if len(view.Record.Facets) > 0 {
		facets := make([]domain.Facet, len(view.Record.Facets))
		copy(facets, view.Record.Facets)
		domain.SortFacets(facets)
		view.Record.Facets = facets
	}

	if view.CID == "" {
		return &Post{view: view}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.posts[view.CID]; ok {
		existing.mutate(func(v *domain.PostView) { *v = view })
		return existing
	}

	p := &Post{view: view}
	c.posts[view.CID] = p
	metrics.SetPostCacheEntries(len(c.posts))
	return p
}

// Get returns the canonical post for cid.
func (c *Cache) Get(cid string) (*Post, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.posts[cid]
	return p, ok
}

// Len returns the number of cached posts.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.posts)
}

// ApplyLocalMutation runs fn against the canonical post for cid under the
// post's write lock. It reports whether the cid was cached.
func (c *Cache) ApplyLocalMutation(cid string, fn func(v *domain.PostView)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.posts[cid]
	if !ok {
		return false
	}
	p.mutate(fn)
	return true
}

// MarkLiked records the viewer's like (likeURI) on the post and bumps the
// like count. Liking an already-liked post changes nothing.
func (c *Cache) MarkLiked(cid, likeURI string) bool {
	return c.ApplyLocalMutation(cid, func(v *domain.PostView) {
		viewer := ensureViewer(v)
		if viewer.Like != "" {
			return
		}
		viewer.Like = likeURI
		v.LikeCount++
	})
}

// ClearLiked removes the viewer's like and decrements the like count.
func (c *Cache) ClearLiked(cid string) bool {
	return c.ApplyLocalMutation(cid, func(v *domain.PostView) {
		if !v.Viewer.Liked() {
			return
		}
		v.Viewer.Like = ""
		v.LikeCount = decrement(v.LikeCount)
	})
}

// MarkReposted records the viewer's repost (repostURI) on the post and bumps
// the repost count. Reposting an already-reposted post changes nothing.
func (c *Cache) MarkReposted(cid, repostURI string) bool {
	return c.ApplyLocalMutation(cid, func(v *domain.PostView) {
		viewer := ensureViewer(v)
		if viewer.Repost != "" {
			return
		}
		viewer.Repost = repostURI
		v.RepostCount++
	})
}

// ClearReposted removes the viewer's repost and decrements the repost count.
func (c *Cache) ClearReposted(cid string) bool {
	return c.ApplyLocalMutation(cid, func(v *domain.PostView) {
		if !v.Viewer.Reposted() {
			return
		}
		v.Viewer.Repost = ""
		v.RepostCount = decrement(v.RepostCount)
	})
}

func ensureViewer(v *domain.PostView) *domain.ViewerState {
	if v.Viewer == nil {
		v.Viewer = &domain.ViewerState{}
	}
	return v.Viewer
}

func decrement(n int) int {
	if n <= 0 {
		return 0
	}
	return n - 1
}
