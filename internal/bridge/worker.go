// Package bridge runs every network operation on one background worker and
// reports results back to the UI over a pair of FIFO queues.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/blackmichael/metro/internal/bluesky"
	"github.com/blackmichael/metro/internal/credstore"
	"github.com/blackmichael/metro/internal/domain"
	"github.com/blackmichael/metro/internal/metrics"
)

// Config configures a Worker.
type Config struct {
	// Client configures the API client the worker owns. Its OnSession hook,
	// if set, runs after the worker has persisted the refresh token.
	Client bluesky.Config

	// Store persists the refresh token between runs. When nil nothing is
	// restored or saved.
	Store credstore.Store

	Logger *slog.Logger
}

// Worker is the single consumer of the command queue. It owns the API
// client and session; commands run one at a time in submission order and
// every event for a command is queued before the next command starts.
type Worker struct {
	client   *bluesky.Client
	store    credstore.Store
	commands *Queue[Command]
	events   *Queue[Event]
	logger   *slog.Logger
	busy     atomic.Bool

	// pipeErr is the first failure to queue an event. Only the worker
	// goroutine touches it.
	pipeErr error
}

// NewWorker creates a worker and its API client.
func NewWorker(cfg Config) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	w := &Worker{
		store:    cfg.Store,
		commands: NewQueue[Command](),
		events:   NewQueue[Event](),
		logger:   logger,
	}

	clientCfg := cfg.Client
	next := clientCfg.OnSession
	clientCfg.OnSession = func(res bluesky.LoginResult) {
		w.persistSession(res)
		if next != nil {
			next(res)
		}
	}
	if clientCfg.Logger == nil {
		clientCfg.Logger = logger
	}
	w.client = bluesky.NewClient(clientCfg)
	return w
}

// Send queues a command. It never blocks.
func (w *Worker) Send(cmd Command) error {
	return w.commands.Send(cmd)
}

// Commands is the UI-to-worker queue.
func (w *Worker) Commands() *Queue[Command] { return w.commands }

// Events is the worker-to-UI queue.
func (w *Worker) Events() *Queue[Event] { return w.events }

// Client returns the worker's API client. Callers outside the worker must
// stick to its read-only accessors.
func (w *Worker) Client() *bluesky.Client { return w.client }

// Busy reports whether a command is being processed.
func (w *Worker) Busy() bool { return w.busy.Load() }

// Run restores a stored session, then processes commands until Shutdown
// (nil), ctx is done (ctx.Err()), or either queue is closed.
func (w *Worker) Run(ctx context.Context) error {
	w.restoreSession(ctx)
	if w.pipeErr != nil {
		return fmt.Errorf("send event: %w", w.pipeErr)
	}

	for {
		cmd, err := w.commands.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("receive command: %w", err)
		}

		if _, ok := cmd.(Shutdown); ok {
			w.logger.Info("worker shutting down")
			metrics.RecordCommand(cmd.commandName(), true, 0)
			return nil
		}

		w.setBusy(true)
		start := time.Now()
		opErr := w.dispatch(ctx, cmd)
		metrics.RecordCommand(cmd.commandName(), opErr == nil, time.Since(start))
		w.setBusy(false)

		if opErr != nil {
			w.logger.Warn("command failed", "command", cmd.commandName(), "error", opErr)
		}
		if w.pipeErr != nil {
			return fmt.Errorf("send event: %w", w.pipeErr)
		}
	}
}

func (w *Worker) setBusy(busy bool) {
	w.busy.Store(busy)
	metrics.SetWorkerBusy(busy)
}

// emit queues an event, remembering the first queue failure.
func (w *Worker) emit(ev Event) {
	if w.pipeErr != nil {
		return
	}
	if err := w.events.Send(ev); err != nil {
		w.pipeErr = err
	}
}

// dispatch runs one command and queues its events. The returned error is
// the operation's outcome, already forwarded to the UI.
func (w *Worker) dispatch(ctx context.Context, cmd Command) error {
	switch c := cmd.(type) {
	case LoginStandard:
		return w.login(ctx, c)
	case GetTimeline:
		page, err := w.client.GetTimeline(ctx, c.Cursor, c.Limit)
		w.emit(TimelineResult{Result: page, Err: err})
		return err
	case GetFeed:
		page, err := w.client.GetFeed(ctx, c.Feed, c.Cursor, c.Limit)
		w.emit(TimelineResult{Feed: c.Feed, Result: page, Err: err})
		return err
	case GetProfile:
		profile, err := w.client.GetProfile(ctx, c.DID)
		w.emit(ProfileResult{DID: c.DID, Result: profile, Err: err})
		return err
	case GetThread:
		thread, err := w.client.GetThread(ctx, c.URI, bluesky.ThreadOptions{})
		w.emit(ThreadResult{URI: c.URI, Result: thread, Err: err})
		return err
	case GetAuthorFeed:
		return w.authorFeed(ctx, c)
	case GetFollowers:
		return w.followers(ctx, c)
	case CreateRecord:
		created, err := w.client.CreateRecord(ctx, c.Record)
		w.emit(RecordCreated{Result: created, Err: err})
		return err
	case CreateRecordWithMedia:
		return w.createWithMedia(ctx, c)
	case CreateRecordUnderPost:
		return w.createUnderPost(ctx, c)
	case DeleteRecord:
		err := bluesky.NotImplemented("standalone record deletion")
		w.emit(RecordDeleted{Err: err})
		return err
	case DeleteRecordUnderPost:
		return w.deleteUnderPost(ctx, c)
	default:
		err := fmt.Errorf("unknown command %T", cmd)
		w.emit(BackendError{Message: err.Error()})
		return err
	}
}

// restoreSession signs in with the stored refresh token, if there is one.
// Without a store the worker starts signed out.
func (w *Worker) restoreSession(ctx context.Context) {
	if w.store == nil {
		w.emit(LoginResult{Err: ErrWasntLoggedIn})
		return
	}

	token, err := w.store.Get(credstore.Service, credstore.Account)
	if err != nil {
		if !errors.Is(err, credstore.ErrNotFound) {
			w.logger.Error("failed to read stored session", "error", err)
			w.emit(KeyringFailure{Message: fmt.Sprintf("Failed to read stored login: %v", err)})
		}
		w.emit(LoginResult{Err: ErrWasntLoggedIn})
		return
	}

	res, err := w.client.Refresh(ctx, token)
	if err != nil {
		w.logger.Warn("stored session rejected", "error", err)
		w.emit(LoginResult{Err: err})
		return
	}
	w.logger.Info("session restored", "did", res.DID, "handle", res.Handle)
	w.finishLogin(ctx, res)
}

func (w *Worker) login(ctx context.Context, c LoginStandard) error {
	res, err := w.client.Login(ctx, c.Handle, c.Password)
	if err != nil {
		w.emit(LoginResult{Err: err})
		return err
	}
	w.finishLogin(ctx, res)
	return nil
}

// finishLogin fetches the caller's profile and pinned feeds. Failures are
// reported as BackendError and do not fail the login.
func (w *Worker) finishLogin(ctx context.Context, res bluesky.LoginResult) {
	ev := LoginResult{Session: res}

	profile, err := w.client.GetSelfProfile(ctx)
	if err != nil {
		w.emit(BackendError{Message: fmt.Sprintf("Failed to load your profile: %v", err)})
	} else {
		ev.Profile = profile
	}

	feeds, err := w.client.GetPinnedFeeds(ctx)
	if err != nil {
		w.emit(BackendError{Message: fmt.Sprintf("Failed to load pinned feeds: %v", err)})
	} else {
		ev.FeedGenerators = feeds
	}

	w.emit(ev)
}

// persistSession stores the rotated refresh token. It runs on the worker
// goroutine from inside client calls.
func (w *Worker) persistSession(res bluesky.LoginResult) {
	if w.store == nil || res.RefreshToken == "" {
		return
	}
	if err := w.store.Set(credstore.Service, credstore.Account, res.RefreshToken); err != nil {
		w.logger.Error("failed to persist session", "error", err)
		w.emit(KeyringFailure{Message: fmt.Sprintf("Error when caching login: %v", err)})
	}
}

func (w *Worker) authorFeed(ctx context.Context, c GetAuthorFeed) error {
	page, err := w.client.GetAuthorFeed(ctx, c.DID, c.Cursor)
	if err != nil {
		if c.Sink != nil {
			c.Sink.fail(err)
		}
		w.emit(BackendError{Message: fmt.Sprintf("Failed to load posts for %s: %v", c.DID, err)})
		return err
	}
	if c.Sink != nil {
		c.Sink.append(page)
	}
	return nil
}

func (w *Worker) followers(ctx context.Context, c GetFollowers) error {
	var cursor string
	if c.Sink != nil {
		if c.Sink.Done() {
			w.logger.Debug("follower list complete, skipping fetch", "did", c.DID)
			return nil
		}
		cursor = c.Sink.Cursor()
	}
	page, err := w.client.GetFollowers(ctx, c.DID, cursor)
	if err != nil {
		if c.Sink != nil {
			c.Sink.fail(err)
		}
		w.emit(BackendError{Message: fmt.Sprintf("Failed to load followers for %s: %v", c.DID, err)})
		return err
	}
	if c.Sink != nil {
		c.Sink.append(page)
	}
	return nil
}

func (w *Worker) createWithMedia(ctx context.Context, c CreateRecordWithMedia) error {
	if len(c.FilePaths) > MaxImages {
		err := &bluesky.APIError{
			Kind:    bluesky.KindBadRequest,
			Code:    "TooManyImages",
			Message: fmt.Sprintf("a post can carry at most %d images, got %d", MaxImages, len(c.FilePaths)),
		}
		w.emit(RecordCreated{Err: err})
		return err
	}

	post := c.Record
	if len(c.FilePaths) > 0 {
		blobs := make([]domain.BlobRef, 0, len(c.FilePaths))
		for _, path := range c.FilePaths {
			blob, err := w.client.UploadImageFile(ctx, path)
			if err != nil {
				w.emit(RecordCreated{Err: err})
				return err
			}
			blobs = append(blobs, *blob)
		}
		post.Embed = domain.ImagesEmbed(blobs)
	}

	created, err := w.client.CreateRecord(ctx, post)
	w.emit(RecordCreated{Result: created, Err: err})
	return err
}

func (w *Worker) createUnderPost(ctx context.Context, c CreateRecordUnderPost) error {
	record := derefRecord(c.Record)

	var mark func(cid, uri string) bool
	switch record.(type) {
	case domain.LikeRecord:
		mark = w.client.Cache().MarkLiked
	case domain.RepostRecord:
		mark = w.client.Cache().MarkReposted
	default:
		err := bluesky.NotImplemented("only likes and reposts can be created under a post")
		w.emit(RecordCreated{Err: err})
		return err
	}

	created, err := w.client.CreateRecord(ctx, record)
	if err != nil {
		w.emit(RecordCreated{Err: err})
		return err
	}
	if !mark(c.Post, created.URI) {
		w.logger.Debug("post not cached, skipping local mutation", "cid", c.Post)
	}
	w.emit(RecordCreated{Result: created})
	return nil
}

func (w *Worker) deleteUnderPost(ctx context.Context, c DeleteRecordUnderPost) error {
	deleted, err := w.client.DeleteRecord(ctx, c.RKey, c.Collection)
	if err != nil {
		w.emit(RecordDeleted{Err: err})
		return err
	}

	cache := w.client.Cache()
	switch c.Collection {
	case domain.CollectionLike:
		cache.ClearLiked(c.Post)
	case domain.CollectionRepost:
		cache.ClearReposted(c.Post)
	}
	w.emit(RecordDeleted{Result: deleted})
	return nil
}

// derefRecord turns pointer like and repost records into their value form.
func derefRecord(r domain.Record) domain.Record {
	switch v := r.(type) {
	case *domain.LikeRecord:
		if v != nil {
			return *v
		}
	case *domain.RepostRecord:
		if v != nil {
			return *v
		}
	}
	return r
}
