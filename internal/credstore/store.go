// Package credstore persists the refresh token behind a get/set-password
// interface.
package credstore

import "errors"

// Service and Account identify the one secret the client persists.
const (
	Service = "com.headassbtw.metro.bluesky"
	Account = "refreshJwt"
)

// ErrNotFound is returned by Get when no secret is stored.
var ErrNotFound = errors.New("credential not found")

// Store is a get/set-password credential store.
type Store interface {
	Get(service, account string) (string, error)
	Set(service, account, secret string) error
}
