package firehose

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackmichael/metro/internal/domain"
)

const selfDID = "did:plc:alice"

// fakeJetstream sends a fixed batch of messages on each connection, then
// hangs up.
type fakeJetstream struct {
	mu      sync.Mutex
	queries []url.Values
	batches [][]string
}

func (f *fakeJetstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	f.mu.Lock()
	f.queries = append(f.queries, r.URL.Query())
	var batch []string
	if len(f.batches) > 0 {
		batch, f.batches = f.batches[0], f.batches[1:]
	}
	f.mu.Unlock()

	for _, msg := range batch {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
			return
		}
	}
	if batch == nil {
		// Hold idle connections open until the client goes away.
		conn.ReadMessage()
	}
}

func (f *fakeJetstream) query(i int) url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i >= len(f.queries) {
		return nil
	}
	return f.queries[i]
}

func TestWatcher_DeliversOwnCommitsAndResumes(t *testing.T) {
	fake := &fakeJetstream{batches: [][]string{
		{
			`{"did":"did:plc:bob","time_us":100,"kind":"commit","commit":{"operation":"create","collection":"app.bsky.feed.post","rkey":"x","cid":"bafyBob"}}`,
			`{"did":"did:plc:alice","time_us":101,"kind":"identity","identity":{"did":"did:plc:alice","handle":"alice.test"}}`,
			`not json`,
			`{"did":"did:plc:alice","time_us":102,"kind":"commit","commit":{"rev":"r1","operation":"create","collection":"app.bsky.feed.like","rkey":"3klike","cid":"bafyLike","record":{"$type":"app.bsky.feed.like","subject":{"uri":"at://did:plc:bob/app.bsky.feed.post/1","cid":"bafyBob"},"createdAt":"2025-03-01T12:00:00Z"}}}`,
		},
		{
			`{"did":"did:plc:alice","time_us":103,"kind":"commit","commit":{"rev":"r2","operation":"delete","collection":"app.bsky.feed.like","rkey":"3klike"}}`,
		},
	}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	commits := make(chan Commit, 10)
	w, err := NewWatcher("ws"+strings.TrimPrefix(srv.URL, "http")+"/subscribe", selfDID,
		func(_ context.Context, c Commit) { commits <- c },
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	require.NoError(t, err)
	w.reconnectDelay = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	first := receive(t, commits)
	assert.Equal(t, CommitOperationCreate, first.Operation)
	assert.Equal(t, "at://did:plc:alice/app.bsky.feed.like/3klike", first.URI())
	rec, err := first.DecodeRecord()
	require.NoError(t, err)
	like, ok := rec.(domain.LikeRecord)
	require.True(t, ok)
	assert.Equal(t, "bafyBob", like.Subject.CID)

	second := receive(t, commits)
	assert.Equal(t, CommitOperationDelete, second.Operation)
	assert.Empty(t, second.Record)

	q := fake.query(0)
	require.NotNil(t, q)
	assert.Equal(t, selfDID, q.Get("wantedDids"))
	assert.ElementsMatch(t, WantedCollections, q["wantedCollections"])
	assert.False(t, q.Has("cursor"))

	resumed := fake.query(1)
	require.NotNil(t, resumed)
	assert.Equal(t, "102", resumed.Get("cursor"))

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
	assert.Empty(t, commits, "other accounts' commits are dropped")
}

func receive(t *testing.T, ch <-chan Commit) Commit {
	t.Helper()
	select {
	case c := <-ch:
		return c
	case <-time.After(5 * time.Second):
		t.Fatal("no commit delivered")
		return Commit{}
	}
}

func TestNewWatcher_RejectsInvalidDID(t *testing.T) {
	for _, did := range []string{"", "alice.test", "did:plc", "did:plc:has space"} {
		_, err := NewWatcher("ws://localhost/subscribe", did, func(context.Context, Commit) {}, slog.New(slog.NewTextHandler(io.Discard, nil)))
		assert.Error(t, err, did)
	}
}
