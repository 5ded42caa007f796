package bluesky

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackmichael/metro/internal/domain"
)

func TestDetectLinks(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "two links, bang is not a terminator",
			text: "see https://a.example and http://b.example!",
			want: []string{"https://a.example", "http://b.example!"},
		},
		{
			name: "closing paren terminates",
			text: "(docs at https://go.dev/doc) ok",
			want: []string{"https://go.dev/doc"},
		},
		{
			name: "newline terminates",
			text: "steam://run/440\nhttps://x.example",
			want: []string{"steam://run/440", "https://x.example"},
		},
		{
			name: "earliest scheme wins",
			text: "http://first.example https://second.example",
			want: []string{"http://first.example", "https://second.example"},
		},
		{
			name: "nul terminates",
			text: "https://a.example\x00tail",
			want: []string{"https://a.example"},
		},
		{
			name: "no links",
			text: "just words here",
		},
		{
			name: "empty",
			text: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			facets := DetectLinks(tt.text)
			require.Len(t, facets, len(tt.want))

			prevEnd := 0
			for i, f := range facets {
				span := tt.text[f.Index.ByteStart:f.Index.ByteEnd]
				assert.Equal(t, tt.want[i], span)
				require.Len(t, f.Features, 1)
				assert.Equal(t, domain.FeatureLink, f.Features[0].Type)
				assert.Equal(t, tt.want[i], f.Features[0].URI)
				assert.GreaterOrEqual(t, f.Index.ByteStart, prevEnd, "facets never overlap")
				prevEnd = f.Index.ByteEnd
			}
		})
	}
}

func TestDetectLinks_ByteOffsets(t *testing.T) {
	text := "héllo → https://ünï.example end"
	facets := DetectLinks(text)
	require.Len(t, facets, 1)

	start := len("héllo → ")
	assert.Equal(t, start, facets[0].Index.ByteStart)
	assert.Equal(t, start+len("https://ünï.example"), facets[0].Index.ByteEnd)
}

// recordServer serves createRecord/deleteRecord and keeps the last body.
func recordServer(t *testing.T) (*fakeXRPC, *atomic.Value) {
	fake := newFakeXRPC(t)
	var last atomic.Value
	fake.handle("com.atproto.repo.createRecord", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		b, _ := io.ReadAll(r.Body)
		last.Store(b)
		writeJSON(w, http.StatusOK, map[string]any{
			"uri":    "at://" + testDID + "/app.bsky.feed.post/3kabc",
			"cid":    "bafyNew",
			"commit": map[string]string{"cid": "bafyCommit", "rev": "3kabd"},
		})
	})
	fake.handle("com.atproto.repo.deleteRecord", func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		last.Store(b)
		writeJSON(w, http.StatusOK, map[string]any{"commit": map[string]string{"cid": "bafyCommit", "rev": "3kabe"}})
	})
	return fake, &last
}

func loggedInClient(t *testing.T, fake *fakeXRPC, clock *testClock) *Client {
	t.Helper()
	var logins atomic.Int32
	fake.handle("com.atproto.server.createSession", sessionHandler(t, clock, "", &logins))
	c := newTestClient(fake.URL(), fake.URL(), clock)
	_, err := c.Login(context.Background(), "alice.test", "pw")
	require.NoError(t, err)
	return c
}

func TestCreateRecord_PostDetectsLinks(t *testing.T) {
	clock := newTestClock()
	fake, last := recordServer(t)
	c := loggedInClient(t, fake, clock)

	created, err := c.CreateRecord(context.Background(), domain.PostRecord{Text: "read https://go.dev now"})
	require.NoError(t, err)
	assert.Equal(t, "bafyNew", created.CID)
	require.NotNil(t, created.Commit)
	assert.Equal(t, "3kabd", created.Commit.Rev)

	var body struct {
		Repo       string `json:"repo"`
		Collection string `json:"collection"`
		Record     struct {
			Type      string         `json:"$type"`
			Text      string         `json:"text"`
			CreatedAt time.Time      `json:"createdAt"`
			Facets    []domain.Facet `json:"facets"`
		} `json:"record"`
	}
	require.NoError(t, json.Unmarshal(last.Load().([]byte), &body))

	assert.Equal(t, testDID, body.Repo)
	assert.Equal(t, domain.CollectionPost, body.Collection)
	assert.Equal(t, domain.CollectionPost, body.Record.Type)
	assert.True(t, body.Record.CreatedAt.Equal(clock.Now()))
	require.Len(t, body.Record.Facets, 1)
	assert.Equal(t, 5, body.Record.Facets[0].Index.ByteStart)
	assert.Equal(t, 19, body.Record.Facets[0].Index.ByteEnd)
}

func TestCreateRecord_KeepsCallerFacets(t *testing.T) {
	fake, last := recordServer(t)
	c := loggedInClient(t, fake, newTestClock())

	mention := domain.Facet{
		Index:    domain.ByteSlice{ByteStart: 0, ByteEnd: 6},
		Features: []domain.Feature{{Type: domain.FeatureMention, DID: "did:plc:bob"}},
	}
	_, err := c.CreateRecord(context.Background(), domain.PostRecord{
		Text:   "@bob.test https://not-linked.example",
		Facets: []domain.Facet{mention},
	})
	require.NoError(t, err)

	var body struct {
		Record struct {
			Facets []domain.Facet `json:"facets"`
		} `json:"record"`
	}
	require.NoError(t, json.Unmarshal(last.Load().([]byte), &body))
	require.Len(t, body.Record.Facets, 1)
	assert.Equal(t, domain.FeatureMention, body.Record.Facets[0].Features[0].Type)
}

func TestCreateRecord_Like(t *testing.T) {
	fake, last := recordServer(t)
	c := loggedInClient(t, fake, newTestClock())

	subject := domain.StrongRef{URI: "at://did:plc:bob/app.bsky.feed.post/1", CID: "bafyBob"}
	_, err := c.CreateRecord(context.Background(), domain.LikeRecord{Subject: subject})
	require.NoError(t, err)

	var body struct {
		Collection string `json:"collection"`
		Record     struct {
			Type    string           `json:"$type"`
			Subject domain.StrongRef `json:"subject"`
		} `json:"record"`
	}
	require.NoError(t, json.Unmarshal(last.Load().([]byte), &body))
	assert.Equal(t, domain.CollectionLike, body.Collection)
	assert.Equal(t, domain.CollectionLike, body.Record.Type)
	assert.Equal(t, subject, body.Record.Subject)
}

func TestDeleteRecord(t *testing.T) {
	fake, last := recordServer(t)
	c := loggedInClient(t, fake, newTestClock())

	res, err := c.DeleteRecord(context.Background(), "3klike", domain.CollectionLike)
	require.NoError(t, err)
	require.NotNil(t, res.Commit)

	var body deleteRecordRequest
	require.NoError(t, json.Unmarshal(last.Load().([]byte), &body))
	assert.Equal(t, deleteRecordRequest{Repo: testDID, Collection: domain.CollectionLike, RKey: "3klike"}, body)
}

func TestDeleteRecord_RejectsMalformedInput(t *testing.T) {
	fake, last := recordServer(t)
	c := loggedInClient(t, fake, newTestClock())

	tests := []struct {
		name       string
		rkey       string
		collection string
	}{
		{"nested rkey", "abc/def", domain.CollectionLike},
		{"empty rkey", "", domain.CollectionLike},
		{"bad collection", "3klike", "not a nsid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.DeleteRecord(context.Background(), tt.rkey, tt.collection)
			assert.ErrorIs(t, err, ErrBadRequest)
		})
	}
	assert.Nil(t, last.Load(), "no delete reached the server")
}

func TestUploadBlob(t *testing.T) {
	fake := newFakeXRPC(t)
	png := []byte("\x89PNG\r\n\x1a\n0000")
	fake.handle("com.atproto.repo.uploadBlob", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "image/png", r.Header.Get("Content-Type"))
		b, _ := io.ReadAll(r.Body)
		assert.Equal(t, png, b)
		writeJSON(w, http.StatusOK, map[string]any{
			"blob": map[string]any{
				"$type":    "blob",
				"ref":      map[string]string{"$link": "bafkreiblob"},
				"mimeType": "image/png",
				"size":     len(b),
			},
		})
	})
	c := newTestClient(fake.URL(), fake.URL(), newTestClock())

	path := filepath.Join(t.TempDir(), "cat.png")
	require.NoError(t, os.WriteFile(path, png, 0o600))

	blob, err := c.UploadImageFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "bafkreiblob", blob.Ref.Link)
	assert.Equal(t, len(png), blob.Size)

	_, err = c.UploadImageFile(context.Background(), filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
}

func TestGetPinnedFeeds(t *testing.T) {
	fake := newFakeXRPC(t)
	fake.handle("app.bsky.actor.getPreferences", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"preferences": []any{
				map[string]any{"$type": "app.bsky.actor.defs#adultContentPref", "enabled": false},
				map[string]any{
					"$type": "app.bsky.actor.defs#savedFeedsPrefV2",
					"items": []any{
						map[string]any{"id": "1", "type": "timeline", "value": "following", "pinned": true},
						map[string]any{"id": "2", "type": "feed", "value": "at://did:plc:gen/app.bsky.feed.generator/cats", "pinned": true},
						map[string]any{"id": "3", "type": "feed", "value": "at://did:plc:gen/app.bsky.feed.generator/dogs", "pinned": false},
						map[string]any{"id": "4", "type": "list", "value": "at://did:plc:gen/app.bsky.graph.list/l", "pinned": true},
					},
				},
			},
		})
	})
	rec := &queryRecorder{}
	fake.handle("app.bsky.feed.getFeedGenerators", func(w http.ResponseWriter, r *http.Request) {
		rec.record(r)
		writeJSON(w, http.StatusOK, map[string]any{
			"feeds": []any{map[string]any{
				"uri":         "at://did:plc:gen/app.bsky.feed.generator/cats",
				"cid":         "bafyGen",
				"did":         "did:web:feeds.example",
				"creator":     map[string]any{"did": "did:plc:gen", "handle": "gen.test"},
				"displayName": "Cats",
				"indexedAt":   "2025-01-01T00:00:00Z",
			}},
		})
	})
	c := newTestClient(fake.URL(), fake.URL(), newTestClock())

	feeds, err := c.GetPinnedFeeds(context.Background())
	require.NoError(t, err)
	require.Len(t, feeds, 1)
	assert.Equal(t, "Cats", feeds[0].DisplayName)
	assert.Equal(t, []string{"at://did:plc:gen/app.bsky.feed.generator/cats"}, rec.last()["feeds"])
}

func TestGetFeedGenerators_EmptySkipsRequest(t *testing.T) {
	fake := newFakeXRPC(t)
	fake.handle("app.bsky.feed.getFeedGenerators", func(w http.ResponseWriter, r *http.Request) {
		t.Error("unexpected request")
	})
	c := newTestClient(fake.URL(), fake.URL(), newTestClock())

	feeds, err := c.GetFeedGenerators(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, feeds)
}

func TestGetFollowers(t *testing.T) {
	fake := newFakeXRPC(t)
	rec := &queryRecorder{}
	fake.handle("app.bsky.graph.getFollowers", func(w http.ResponseWriter, r *http.Request) {
		rec.record(r)
		writeJSON(w, http.StatusOK, map[string]any{
			"subject":   map[string]any{"did": "did:plc:bob", "handle": "bob.test"},
			"followers": []any{map[string]any{"did": "did:plc:carol", "handle": "carol.test"}},
			"cursor":    "page2",
		})
	})
	c := newTestClient(fake.URL(), fake.URL(), newTestClock())

	page, err := c.GetFollowers(context.Background(), "did:plc:bob", "")
	require.NoError(t, err)
	assert.Equal(t, "page2", page.Cursor)
	require.Len(t, page.Followers, 1)
	assert.Equal(t, "carol.test", page.Followers[0].Handle)
	assert.Equal(t, "did:plc:bob", rec.last().Get("actor"))
	assert.False(t, rec.last().Has("cursor"))
}

func TestGetActorFeeds(t *testing.T) {
	fake := newFakeXRPC(t)
	rec := &queryRecorder{}
	fake.handle("app.bsky.feed.getActorFeeds", func(w http.ResponseWriter, r *http.Request) {
		rec.record(r)
		writeJSON(w, http.StatusOK, map[string]any{
			"cursor": "more",
			"feeds": []any{map[string]any{
				"uri":         "at://did:plc:gen/app.bsky.feed.generator/cats",
				"cid":         "bafyGen",
				"did":         "did:web:feeds.test",
				"creator":     map[string]any{"did": "did:plc:gen", "handle": "gen.test"},
				"displayName": "Cats",
				"indexedAt":   "2025-03-01T10:00:00Z",
			}},
		})
	})
	c := newTestClient(fake.URL(), fake.URL(), newTestClock())

	feeds, err := c.GetActorFeeds(context.Background(), "gen.test", "c0")
	require.NoError(t, err)
	assert.Equal(t, "more", feeds.Cursor)
	require.Len(t, feeds.Feeds, 1)
	assert.Equal(t, "Cats", feeds.Feeds[0].DisplayName)
	assert.Equal(t, "gen.test", rec.last().Get("actor"))
	assert.Equal(t, "c0", rec.last().Get("cursor"))
}
