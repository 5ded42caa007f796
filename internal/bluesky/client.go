package bluesky

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/blackmichael/metro/internal/metrics"
	"github.com/blackmichael/metro/internal/postcache"
)

const (
	// DefaultReadEndpoint is the public AppView used for lookups.
	DefaultReadEndpoint = "https://public.api.bsky.app"

	// DefaultReadWriteEndpoint is the entryway used for sessions until login
	// resolves the account's own PDS.
	DefaultReadWriteEndpoint = "https://bsky.social"

	defaultTimeout = 30 * time.Second
)

// Config configures a Client. Zero values fall back to defaults.
type Config struct {
	// ReadEndpoint serves read-only lookups (profiles, followers, feed
	// generators).
	ReadEndpoint string

	// ReadWriteEndpoint serves sessions, writes and viewer-scoped reads. It
	// is replaced by the PDS from the DID document at login.
	ReadWriteEndpoint string

	// HTTPClient overrides the transport. When nil a client with Timeout is
	// created.
	HTTPClient *http.Client
	Timeout    time.Duration

	// Cache receives every post the client decodes. When nil the client
	// creates its own.
	Cache *postcache.Cache

	// OnSession is called after every successful login or refresh, including
	// the transparent refresh before an expired request.
	OnSession func(LoginResult)

	// Now is the clock used for token expiry.
	Now func() time.Time

	Logger *slog.Logger
}

// Client is the session-holding XRPC client. It is built for a single
// caller goroutine; session accessors are safe to call from others.
type Client struct {
	httpClient *http.Client
	cache      *postcache.Cache
	onSession  func(LoginResult)
	now        func() time.Time
	logger     *slog.Logger

	mu      sync.RWMutex
	session Session
}

// NewClient creates a new client with no session.
func NewClient(cfg Config) *Client {
	if cfg.ReadEndpoint == "" {
		cfg.ReadEndpoint = DefaultReadEndpoint
	}
	if cfg.ReadWriteEndpoint == "" {
		cfg.ReadWriteEndpoint = DefaultReadWriteEndpoint
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Cache == nil {
		cfg.Cache = postcache.New()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{
		httpClient: cfg.HTTPClient,
		cache:      cfg.Cache,
		onSession:  cfg.OnSession,
		now:        cfg.Now,
		logger:     cfg.Logger,
		session: Session{
			ReadEndpoint:      cfg.ReadEndpoint,
			ReadWriteEndpoint: cfg.ReadWriteEndpoint,
		},
	}
}

// Cache returns the post cache the client canonicalizes into.
func (c *Client) Cache() *postcache.Cache {
	return c.cache
}

// Session returns a copy of the current session.
func (c *Client) Session() Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// DID returns the authenticated account's DID, empty before login.
func (c *Client) DID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session.DID
}

// Authenticated reports whether a login or refresh has succeeded.
func (c *Client) Authenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session.AccessToken != ""
}

// endpoint selects which of the two session endpoints a call goes to.
type endpoint int

const (
	readEndpoint endpoint = iota
	readWriteEndpoint
)

// call describes one XRPC request.
type call struct {
	nsid        string
	method      string
	endpoint    endpoint
	query       url.Values
	body        []byte
	contentType string
}

func getCall(nsid string, ep endpoint, query url.Values) call {
	return call{nsid: nsid, method: http.MethodGet, endpoint: ep, query: query}
}

func postCall(nsid string, body any) (call, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return call{}, fmt.Errorf("marshal request: %w", err)
	}
	return call{
		nsid:        nsid,
		method:      http.MethodPost,
		endpoint:    readWriteEndpoint,
		body:        payload,
		contentType: "application/json",
	}, nil
}

// request refreshes an expired session, sends the call with the current
// bearer token and classifies the response. A failed refresh does not abort
// the call.
func (c *Client) request(ctx context.Context, cl call) ([]byte, error) {
	c.ensureFresh(ctx)

	s := c.Session()
	base := s.ReadWriteEndpoint
	if cl.endpoint == readEndpoint {
		base = s.ReadEndpoint
	}

	u := base + "/xrpc/" + cl.nsid
	if len(cl.query) > 0 {
		u += "?" + cl.query.Encode()
	}

	var body io.Reader
	if cl.body != nil {
		body = bytes.NewReader(cl.body)
	}
	req, err := http.NewRequestWithContext(ctx, cl.method, u, body)
	if err != nil {
		return nil, networkError("create request", err)
	}
	if cl.contentType != "" {
		req.Header.Set("Content-Type", cl.contentType)
	}
	if s.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+s.AccessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordAPIRequest(cl.nsid, 0)
		return nil, networkError("send request", err)
	}
	defer resp.Body.Close()
	metrics.RecordAPIRequest(cl.nsid, resp.StatusCode)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, networkError("read response", err)
	}

	if err := classify(resp.StatusCode, respBody); err != nil {
		c.logger.Debug("xrpc request failed", "nsid", cl.nsid, "status", resp.StatusCode, "error", err)
		return nil, err
	}
	return respBody, nil
}

// classify maps a non-2xx response to an APIError.
func classify(status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}

	var server xrpcError
	decodeErr := json.Unmarshal(body, &server)

	switch status {
	case http.StatusUnauthorized, http.StatusBadRequest:
		if decodeErr != nil {
			return parseError(decodeErr, body)
		}
		kind := KindBadRequest
		if status == http.StatusUnauthorized {
			kind = KindUnauthorized
		}
		return &APIError{Kind: kind, Status: status, Code: server.Error, Message: server.Message}
	default:
		return &APIError{Kind: KindStatus, Status: status, Code: server.Error, Message: server.Message, RawBody: string(body)}
	}
}

// getJSON performs a call and decodes the success body into result.
func (c *Client) getJSON(ctx context.Context, cl call, result any) error {
	body, err := c.request(ctx, cl)
	if err != nil {
		return err
	}
	return decode(body, result)
}

func decode(body []byte, result any) error {
	if err := json.Unmarshal(body, result); err != nil {
		return parseError(err, body)
	}
	return nil
}
