package bluesky

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/blackmichael/metro/internal/metrics"
)

// fallbackTokenLifetime is assumed when the access token's exp claim cannot
// be read. PDS access tokens are issued for two hours.
const fallbackTokenLifetime = 2 * time.Hour

// Session is the authenticated identity plus the endpoints it talks to.
type Session struct {
	DID    string
	Handle string

	AccessToken  string
	RefreshToken string
	AccessExpiry time.Time

	ReadEndpoint      string
	ReadWriteEndpoint string
}

// LoginResult is returned by a successful login or refresh.
type LoginResult struct {
	DID          string
	Handle       string
	RefreshToken string
}

// Login creates a session with an identifier (handle or email) and an app
// password.
func (c *Client) Login(ctx context.Context, identifier, password string) (LoginResult, error) {
	body := map[string]string{
		"identifier": identifier,
		"password":   password,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return LoginResult{}, &LoginError{Kind: LoginGeneric, Detail: "marshal request", Err: err}
	}

	res, err := c.authenticate(ctx, "com.atproto.server.createSession", payload, "")
	if err != nil {
		c.logger.Warn("login failed", "identifier", identifier, "error", err)
		return LoginResult{}, err
	}
	c.logger.Info("logged in", "did", res.DID, "handle", res.Handle)
	return res, nil
}

// Refresh exchanges a refresh token for a new session.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (LoginResult, error) {
	res, err := c.authenticate(ctx, "com.atproto.server.refreshSession", nil, refreshToken)
	metrics.RecordTokenRefresh(err == nil)
	if err != nil {
		return LoginResult{}, err
	}
	c.logger.Debug("session refreshed", "did", res.DID)
	return res, nil
}

// ensureFresh refreshes the session once if the access token has expired.
// Failures are logged and otherwise ignored.
func (c *Client) ensureFresh(ctx context.Context) {
	s := c.Session()
	if s.RefreshToken == "" || c.now().Before(s.AccessExpiry) {
		return
	}

	c.logger.Info("access token expired, refreshing", "did", s.DID)
	if _, err := c.Refresh(ctx, s.RefreshToken); err != nil {
		c.logger.Warn("token refresh failed, sending request with current token", "error", err)
	}
}

func (c *Client) authenticate(ctx context.Context, nsid string, payload []byte, bearer string) (LoginResult, error) {
	s := c.Session()

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.ReadWriteEndpoint+"/xrpc/"+nsid, body)
	if err != nil {
		return LoginResult{}, &LoginError{Kind: LoginNetwork, Detail: "create request", Err: err}
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordAPIRequest(nsid, 0)
		return LoginResult{}, &LoginError{Kind: LoginNetwork, Detail: "send request", Err: err}
	}
	defer resp.Body.Close()
	metrics.RecordAPIRequest(nsid, resp.StatusCode)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return LoginResult{}, &LoginError{Kind: LoginNetwork, Detail: "read response", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		var server xrpcError
		_ = json.Unmarshal(respBody, &server)
		return LoginResult{}, classifyLoginStatus(resp.StatusCode, server)
	}

	var session sessionResponse
	if err := json.Unmarshal(respBody, &session); err != nil {
		return LoginResult{}, &LoginError{Kind: LoginGeneric, Status: resp.StatusCode, Detail: "decode session", Err: err}
	}

	if err := accountStatusError(session.Active, session.Status); err != nil {
		return LoginResult{}, err
	}

	expiry, ok := tokenExpiry(session.AccessJwt)
	if !ok {
		c.logger.Warn("could not read access token expiry, assuming default lifetime", "lifetime", fallbackTokenLifetime)
		expiry = c.now().Add(fallbackTokenLifetime)
	}

	c.mu.Lock()
	c.session.DID = session.DID
	c.session.Handle = session.Handle
	c.session.AccessToken = session.AccessJwt
	c.session.RefreshToken = session.RefreshJwt
	c.session.AccessExpiry = expiry
	if pds := session.DIDDoc.pds(); pds != "" {
		c.session.ReadWriteEndpoint = pds
	}
	c.mu.Unlock()

	res := LoginResult{DID: session.DID, Handle: session.Handle, RefreshToken: session.RefreshJwt}
	if c.onSession != nil {
		c.onSession(res)
	}
	return res, nil
}

// tokenExpiry reads the exp claim of a JWT without verifying its signature.
func tokenExpiry(token string) (time.Time, bool) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

type sessionResponse struct {
	AccessJwt  string  `json:"accessJwt"`
	RefreshJwt string  `json:"refreshJwt"`
	Handle     string  `json:"handle"`
	DID        string  `json:"did"`
	DIDDoc     *didDoc `json:"didDoc,omitempty"`
	Email      string  `json:"email,omitempty"`
	Active     *bool   `json:"active,omitempty"`
	Status     string  `json:"status,omitempty"`
}

type didDoc struct {
	ID      string       `json:"id"`
	Service []didService `json:"service"`
}

type didService struct {
	ID              string `json:"id"`
	Type            string `json:"type"`
	ServiceEndpoint string `json:"serviceEndpoint"`
}

// pds returns the first service endpoint of the document.
func (d *didDoc) pds() string {
	if d == nil || len(d.Service) == 0 {
		return ""
	}
	return d.Service[0].ServiceEndpoint
}
