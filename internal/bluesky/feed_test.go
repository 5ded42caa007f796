package bluesky

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawPost(cid string, likes int) map[string]any {
	return map[string]any{
		"$type":     "app.bsky.feed.defs#postView",
		"uri":       "at://did:plc:alice/app.bsky.feed.post/" + cid,
		"cid":       cid,
		"author":    map[string]any{"did": "did:plc:alice", "handle": "alice.test"},
		"record":    map[string]any{"$type": "app.bsky.feed.post", "text": "post " + cid, "createdAt": "2025-03-01T10:00:00Z"},
		"indexedAt": "2025-03-01T10:00:01Z",
		"likeCount": likes,
	}
}

// queryRecorder captures the query string of every request.
type queryRecorder struct {
	mu      sync.Mutex
	queries []url.Values
}

func (q *queryRecorder) record(r *http.Request) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.queries = append(q.queries, r.URL.Query())
}

func (q *queryRecorder) last() url.Values {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.queries[len(q.queries)-1]
}

func TestGetTimeline_CanonicalizesAcrossFetches(t *testing.T) {
	fake := newFakeXRPC(t)

	var calls atomic.Int32
	fake.handle("app.bsky.feed.getTimeline", func(w http.ResponseWriter, r *http.Request) {
		likes := 1
		if calls.Add(1) > 1 {
			likes = 4
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"cursor": "next",
			"feed": []any{
				map[string]any{"post": rawPost("bafyA", likes)},
				map[string]any{
					"post": rawPost("bafyB", 0),
					"reply": map[string]any{
						"root":   rawPost("bafyA", likes),
						"parent": map[string]any{"$type": "app.bsky.feed.defs#notFoundPost", "uri": "at://did:plc:x/app.bsky.feed.post/gone", "notFound": true},
					},
					"reason": map[string]any{
						"$type":     "app.bsky.feed.defs#reasonRepost",
						"by":        map[string]any{"did": "did:plc:bob", "handle": "bob.test"},
						"indexedAt": "2025-03-01T11:00:00Z",
					},
				},
			},
		})
	})

	c := newTestClient(fake.URL(), fake.URL(), newTestClock())

	first, err := c.GetTimeline(context.Background(), "", 0)
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	assert.Equal(t, "next", first.Cursor)

	item := first.Items[1]
	require.NotNil(t, item.Reply)
	assert.Same(t, first.Items[0].Post, item.Reply.Root.Post, "reply root shares the handle")
	assert.Nil(t, item.Reply.Parent.Post)
	assert.True(t, item.Reply.Parent.NotFound)
	assert.True(t, item.Reason.IsRepost())
	assert.Equal(t, "bob.test", item.Reason.By.Handle)

	second, err := c.GetTimeline(context.Background(), "next", 0)
	require.NoError(t, err)
	assert.Same(t, first.Items[0].Post, second.Items[0].Post)
	assert.Equal(t, 4, first.Items[0].Post.View().LikeCount, "refetch updates the shared post")
	assert.Equal(t, 2, c.Cache().Len())
}

func TestGetTimeline_LimitClamp(t *testing.T) {
	tests := []struct {
		limit int
		want  string
	}{
		{0, "50"},
		{25, "25"},
		{500, "100"},
		{-3, "1"},
	}

	fake := newFakeXRPC(t)
	rec := &queryRecorder{}
	fake.handle("app.bsky.feed.getTimeline", func(w http.ResponseWriter, r *http.Request) {
		rec.record(r)
		writeJSON(w, http.StatusOK, map[string]any{"feed": []any{}})
	})
	c := newTestClient(fake.URL(), fake.URL(), newTestClock())

	for _, tt := range tests {
		_, err := c.GetTimeline(context.Background(), "", tt.limit)
		require.NoError(t, err)
		assert.Equal(t, tt.want, rec.last().Get("limit"), "limit %d", tt.limit)
	}
}

func TestGetFeed_SendsFeedAndCursor(t *testing.T) {
	fake := newFakeXRPC(t)
	rec := &queryRecorder{}
	fake.handle("app.bsky.feed.getFeed", func(w http.ResponseWriter, r *http.Request) {
		rec.record(r)
		writeJSON(w, http.StatusOK, map[string]any{"feed": []any{map[string]any{"post": rawPost("bafyF", 0)}}})
	})
	c := newTestClient(fake.URL(), fake.URL(), newTestClock())

	page, err := c.GetFeed(context.Background(), "at://did:plc:gen/app.bsky.feed.generator/cats", "c1", 10)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)

	q := rec.last()
	assert.Equal(t, "at://did:plc:gen/app.bsky.feed.generator/cats", q.Get("feed"))
	assert.Equal(t, "c1", q.Get("cursor"))
	assert.Equal(t, "10", q.Get("limit"))
}

func TestGetThread_ClampsDepthAndHeight(t *testing.T) {
	fake := newFakeXRPC(t)
	rec := &queryRecorder{}
	fake.handle("app.bsky.feed.getPostThread", func(w http.ResponseWriter, r *http.Request) {
		rec.record(r)
		post := rawPost("bafyT", 0)
		writeJSON(w, http.StatusOK, map[string]any{
			"thread": map[string]any{"$type": "app.bsky.feed.defs#threadViewPost", "post": post},
		})
	})
	c := newTestClient(fake.URL(), fake.URL(), newTestClock())

	tests := []struct {
		name       string
		opts       ThreadOptions
		wantDepth  string
		wantHeight string
	}{
		{"over limits", ThreadOptions{Depth: Int(5000), ParentHeight: Int(0)}, "1000", "0"},
		{"defaults", ThreadOptions{}, "6", "80"},
		{"negative", ThreadOptions{Depth: Int(-1), ParentHeight: Int(2000)}, "0", "1000"},
		{"in range", ThreadOptions{Depth: Int(3), ParentHeight: Int(10)}, "3", "10"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.GetThread(context.Background(), "at://did:plc:alice/app.bsky.feed.post/bafyT", tt.opts)
			require.NoError(t, err)
			q := rec.last()
			assert.Equal(t, tt.wantDepth, q.Get("depth"))
			assert.Equal(t, tt.wantHeight, q.Get("parentHeight"))
			assert.Equal(t, "at://did:plc:alice/app.bsky.feed.post/bafyT", q.Get("uri"))
		})
	}
}

func TestGetThread_BuildsArena(t *testing.T) {
	fake := newFakeXRPC(t)
	fake.handle("app.bsky.feed.getPostThread", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"thread": map[string]any{
				"$type": "app.bsky.feed.defs#threadViewPost",
				"post":  rawPost("anchor", 0),
				"parent": map[string]any{
					"$type": "app.bsky.feed.defs#threadViewPost",
					"post":  rawPost("parent", 0),
					"parent": map[string]any{
						"$type": "app.bsky.feed.defs#threadViewPost",
						"post":  rawPost("root", 0),
					},
				},
				"replies": []any{
					map[string]any{
						"$type": "app.bsky.feed.defs#threadViewPost",
						"post":  rawPost("reply1", 0),
						"replies": []any{
							map[string]any{
								"$type": "app.bsky.feed.defs#threadViewPost",
								"post":  rawPost("reply1a", 0),
							},
						},
					},
					map[string]any{
						"$type":   "app.bsky.feed.defs#blockedPost",
						"uri":     "at://did:plc:mallory/app.bsky.feed.post/blocked",
						"blocked": true,
						"author":  map[string]any{"did": "did:plc:mallory"},
					},
					map[string]any{
						"$type":    "app.bsky.feed.defs#notFoundPost",
						"uri":      "at://did:plc:gone/app.bsky.feed.post/deleted",
						"notFound": true,
					},
				},
			},
		})
	})
	fake.handle("app.bsky.feed.getTimeline", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"feed": []any{map[string]any{"post": rawPost("reply1", 9)}}})
	})

	c := newTestClient(fake.URL(), fake.URL(), newTestClock())
	uri := func(cid string) string { return "at://did:plc:alice/app.bsky.feed.post/" + cid }

	thread, err := c.GetThread(context.Background(), uri("anchor"), ThreadOptions{})
	require.NoError(t, err)

	assert.Equal(t, uri("anchor"), thread.Anchor)
	assert.Len(t, thread.Nodes, 7)

	ancestors := thread.Ancestors()
	require.Len(t, ancestors, 2)
	assert.Equal(t, uri("root"), ancestors[0].URI)
	assert.Equal(t, uri("parent"), ancestors[1].URI)
	assert.Empty(t, ancestors[0].Parent)

	anchor := thread.Node(uri("anchor"))
	require.NotNil(t, anchor)
	assert.Equal(t, uri("parent"), anchor.Parent)
	assert.Equal(t, []string{
		uri("reply1"),
		"at://did:plc:mallory/app.bsky.feed.post/blocked",
		"at://did:plc:gone/app.bsky.feed.post/deleted",
	}, anchor.Replies)

	reply1 := thread.Node(uri("reply1"))
	assert.Equal(t, []string{uri("reply1a")}, reply1.Replies)
	assert.Equal(t, uri("reply1"), thread.Node(uri("reply1a")).Parent)

	blocked := thread.Node("at://did:plc:mallory/app.bsky.feed.post/blocked")
	assert.Equal(t, NodeBlocked, blocked.Status)
	assert.Nil(t, blocked.Post)
	assert.Equal(t, NodeNotFound, thread.Node("at://did:plc:gone/app.bsky.feed.post/deleted").Status)

	// A later timeline fetch of a reply lands on the same handle.
	page, err := c.GetTimeline(context.Background(), "", 0)
	require.NoError(t, err)
	assert.Same(t, reply1.Post, page.Items[0].Post)
	assert.Equal(t, 9, reply1.Post.View().LikeCount)
}
