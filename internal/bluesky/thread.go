package bluesky

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"

	"github.com/blackmichael/metro/internal/domain"
	"github.com/blackmichael/metro/internal/postcache"
)

const (
	defaultThreadDepth  = 6
	defaultParentHeight = 80
	maxThreadRange      = 1000
)

// ThreadOptions bounds a getPostThread request. Nil fields use the server
// defaults this client has always sent (depth 6, parent height 80).
type ThreadOptions struct {
	Depth        *int
	ParentHeight *int
}

// Int returns a pointer to n, for ThreadOptions.
func Int(n int) *int { return &n }

// NodeStatus says what a thread node resolved to.
type NodeStatus int

const (
	NodePost NodeStatus = iota
	NodeNotFound
	NodeBlocked
)

// Thread is a post thread flattened into an arena keyed by AT-URI. Nodes
// refer to each other by URI; posts are cache handles.
type Thread struct {
	// Anchor is the URI of the requested post.
	Anchor     string
	Nodes      map[string]*ThreadNode
	Threadgate json.RawMessage
}

// ThreadNode is one post in a thread. Post is nil for not-found and blocked
// nodes. Parent is empty at the top of the loaded ancestor chain.
type ThreadNode struct {
	URI     string
	Post    *postcache.Post
	Status  NodeStatus
	Parent  string
	Replies []string
}

// Node returns the node for uri.
func (t *Thread) Node(uri string) *ThreadNode {
	return t.Nodes[uri]
}

// Ancestors returns the loaded parent chain of the anchor, topmost first.
func (t *Thread) Ancestors() []*ThreadNode {
	var chain []*ThreadNode
	anchor := t.Nodes[t.Anchor]
	if anchor == nil {
		return nil
	}
	for uri := anchor.Parent; uri != ""; {
		n := t.Nodes[uri]
		if n == nil {
			break
		}
		chain = append(chain, n)
		uri = n.Parent
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// GetThread fetches a post thread and canonicalizes the anchor, its
// ancestors and every reply subtree.
func (c *Client) GetThread(ctx context.Context, uri string, opts ThreadOptions) (*Thread, error) {
	depth := clampRange(opts.Depth, defaultThreadDepth)
	height := clampRange(opts.ParentHeight, defaultParentHeight)

	q := url.Values{}
	q.Set("uri", uri)
	q.Set("depth", strconv.Itoa(depth))
	q.Set("parentHeight", strconv.Itoa(height))

	var raw domain.ThreadResponse
	if err := c.getJSON(ctx, getCall("app.bsky.feed.getPostThread", readWriteEndpoint, q), &raw); err != nil {
		return nil, err
	}
	return c.buildThread(&raw), nil
}

func (c *Client) buildThread(raw *domain.ThreadResponse) *Thread {
	t := &Thread{
		Anchor:     raw.Thread.NodeURI(),
		Nodes:      make(map[string]*ThreadNode),
		Threadgate: raw.Threadgate,
	}

	anchor := c.addNode(t, &raw.Thread, "")
	if anchor == nil {
		return t
	}

	child := anchor
	for p := raw.Thread.Parent; p != nil; p = p.Parent {
		n := c.addNode(t, p, "")
		if n == nil {
			break
		}
		child.Parent = n.URI
		child = n
	}

	c.addReplies(t, anchor, raw.Thread.Replies)
	return t
}

func (c *Client) addReplies(t *Thread, parent *ThreadNode, replies []*domain.ThreadViewPost) {
	for _, r := range replies {
		if r == nil {
			continue
		}
		n := c.addNode(t, r, parent.URI)
		if n == nil {
			continue
		}
		parent.Replies = append(parent.Replies, n.URI)
		c.addReplies(t, n, r.Replies)
	}
}

// addNode canonicalizes v into the arena. It returns nil for a URI already
// present so cycles and repeats are visited once.
func (c *Client) addNode(t *Thread, v *domain.ThreadViewPost, parent string) *ThreadNode {
	uri := v.NodeURI()
	if _, seen := t.Nodes[uri]; seen {
		return nil
	}

	n := &ThreadNode{URI: uri, Parent: parent}
	switch {
	case v.Post != nil:
		n.Post = c.cache.Canonicalize(*v.Post)
	case v.Blocked || v.Type == domain.TypeBlockedPost:
		n.Status = NodeBlocked
	default:
		n.Status = NodeNotFound
	}
	t.Nodes[uri] = n
	return n
}

func clampRange(v *int, def int) int {
	if v == nil {
		return def
	}
	switch {
	case *v < 0:
		return 0
	case *v > maxThreadRange:
		return maxThreadRange
	default:
		return *v
	}
}
