// Package firehose follows the signed-in account's own repo commits on
// Jetstream.
package firehose

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/bluesky-social/indigo/atproto/syntax"
	"github.com/gorilla/websocket"

	"github.com/blackmichael/metro/internal/domain"
)

const (
	defaultReconnectDelay = 5 * time.Second
	statsInterval         = 30 * time.Second
)

// WantedCollections are the collections the watcher asks Jetstream for.
var WantedCollections = []string{
	domain.CollectionPost,
	domain.CollectionLike,
	domain.CollectionRepost,
}

// Handler receives each commit in order on the watcher goroutine.
type Handler func(ctx context.Context, commit Commit)

// Watcher streams one account's commits from Jetstream. It only reports
// commits to its handler and holds no client or cache state.
type Watcher struct {
	url            string
	did            string
	handler        Handler
	logger         *slog.Logger
	dialer         *websocket.Dialer
	reconnectDelay time.Duration

	// cursor is the time_us of the last event seen, used to resume after a
	// reconnect.
	cursor int64
}

// NewWatcher creates a watcher for did's commits. did must be a valid DID.
func NewWatcher(jetstreamURL, did string, handler Handler, logger *slog.Logger) (*Watcher, error) {
	parsed, err := syntax.ParseDID(did)
	if err != nil {
		return nil, fmt.Errorf("invalid DID %q: %w", did, err)
	}
	return &Watcher{
		url:            jetstreamURL,
		did:            parsed.String(),
		handler:        handler,
		logger:         logger.With("did", did),
		dialer:         websocket.DefaultDialer,
		reconnectDelay: defaultReconnectDelay,
	}, nil
}

// Start connects to Jetstream and delivers commits until the context is
// cancelled. It reconnects after transient errors, resuming from the last
// event seen.
func (w *Watcher) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			if err := w.subscribe(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				w.logger.Error("jetstream connection error, reconnecting", "error", err)
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(w.reconnectDelay):
				}
			}
		}
	}
}

func (w *Watcher) buildURL() (string, error) {
	u, err := url.Parse(w.url)
	if err != nil {
		return "", fmt.Errorf("parse jetstream url: %w", err)
	}
	q := u.Query()
	for _, c := range WantedCollections {
		q.Add("wantedCollections", c)
	}
	q.Set("wantedDids", w.did)
	if w.cursor > 0 {
		q.Set("cursor", strconv.FormatInt(w.cursor, 10))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (w *Watcher) subscribe(ctx context.Context) error {
	wsURL, err := w.buildURL()
	if err != nil {
		return err
	}
	w.logger.Info("connecting to jetstream", "url", wsURL)

	conn, _, err := w.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial jetstream: %w", err)
	}
	defer conn.Close()

	// Unblock ReadMessage when the context ends.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	w.logger.Info("connected to jetstream")

	var eventsReceived, commitsDelivered int64
	lastStatsLog := time.Now()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read message: %w", err)
		}

		event, err := parseEvent(message)
		if err != nil {
			w.logger.Error("failed to parse event", "error", err)
			continue
		}

		eventsReceived++
		w.cursor = event.TimeUS

		if event.Kind == EventKindCommit && event.Commit != nil && event.DID == w.did {
			commitsDelivered++
			w.handler(ctx, event.commit())
		}

		if time.Since(lastStatsLog) >= statsInterval {
			w.logger.Info("jetstream stats",
				"events_received", eventsReceived,
				"commits_delivered", commitsDelivered,
			)
			lastStatsLog = time.Now()
		}
	}
}
