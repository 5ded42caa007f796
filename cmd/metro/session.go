package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/blackmichael/metro/internal/bluesky"
	"github.com/blackmichael/metro/internal/bridge"
	"github.com/blackmichael/metro/internal/domain"
	"github.com/blackmichael/metro/internal/firehose"
)

// session drives the worker from the command line, one command at a time.
type session struct {
	worker    *bridge.Worker
	logger    *slog.Logger
	jetstream string
	restored  bool
	feeds     []domain.GeneratorView
}

// await drains events until one of type T arrives. Backend and keyring
// failures along the way are reported on stderr.
func await[T bridge.Event](ctx context.Context, s *session) (T, error) {
	var zero T
	for {
		ev, err := s.worker.Events().Next(ctx)
		if err != nil {
			return zero, fmt.Errorf("wait for %T: %w", zero, err)
		}
		switch e := ev.(type) {
		case T:
			return e, nil
		case bridge.BackendError:
			s.logger.Warn("backend error", "message", e.Message)
		case bridge.KeyringFailure:
			s.logger.Error("keyring failure", "message", e.Message)
		default:
			s.logger.Debug("skipping event", "type", fmt.Sprintf("%T", ev))
		}
	}
}

func (s *session) send(cmd bridge.Command) error {
	if err := s.worker.Send(cmd); err != nil {
		return fmt.Errorf("send command: %w", err)
	}
	return nil
}

func (s *session) login(ctx context.Context, opts options) error {
	if opts.handle == "" {
		return fmt.Errorf("--handle is required (or set METRO_HANDLE)")
	}
	password := opts.password
	if password == "" {
		var err error
		if password, err = readPassword(); err != nil {
			return err
		}
	}

	if err := s.send(bridge.LoginStandard{Handle: opts.handle, Password: password}); err != nil {
		return err
	}
	res, err := await[bridge.LoginResult](ctx, s)
	if err != nil {
		return err
	}
	if res.Err != nil {
		return describeLoginError(res.Err)
	}

	fmt.Printf("Authenticated as %s (%s)\n", res.Session.Handle, res.Session.DID)
	if res.Profile != nil {
		printProfile(res.Profile)
	}
	return nil
}

func describeLoginError(err error) error {
	var loginErr *bluesky.LoginError
	if !errors.As(err, &loginErr) {
		return err
	}
	switch loginErr.Kind {
	case bluesky.LoginTwoFactorRequired:
		return fmt.Errorf("this account requires a sign-in code, which metro does not support; use an app password")
	case bluesky.LoginAccountTakenDown:
		return fmt.Errorf("this account has been taken down")
	case bluesky.LoginAccountSuspended:
		return fmt.Errorf("this account is suspended")
	case bluesky.LoginAccountDeactivated:
		return fmt.Errorf("this account is deactivated")
	case bluesky.LoginAccountInactive:
		return fmt.Errorf("this account is inactive")
	case bluesky.LoginUnauthorized:
		return fmt.Errorf("wrong handle or password")
	default:
		return err
	}
}

func (s *session) timeline(ctx context.Context, feed string, opts options) error {
	var cmd bridge.Command = bridge.GetTimeline{Cursor: opts.cursor, Limit: opts.limit}
	if feed != "" {
		cmd = bridge.GetFeed{Feed: feed, Cursor: opts.cursor, Limit: opts.limit}
	}
	if err := s.send(cmd); err != nil {
		return err
	}

	res, err := await[bridge.TimelineResult](ctx, s)
	if err != nil {
		return err
	}
	if res.Err != nil {
		return res.Err
	}
	printFeed(res.Result.Items, res.Result.Cursor)
	return nil
}

func (s *session) pinnedFeeds(context.Context) error {
	if len(s.feeds) == 0 {
		fmt.Println("No pinned feeds.")
		return nil
	}
	for _, f := range s.feeds {
		fmt.Printf("%-24s %s\n  %s\n", f.DisplayName, f.URI, oneLine(f.Description))
	}
	return nil
}

func (s *session) author(ctx context.Context, actor string, opts options) error {
	sink := bridge.NewFeedSink()
	if err := s.send(bridge.GetAuthorFeed{DID: actor, Cursor: opts.cursor, Sink: sink}); err != nil {
		return err
	}
	if err := s.barrier(ctx); err != nil {
		return err
	}
	if err := sink.Err(); err != nil {
		return err
	}
	printFeed(sink.Items(), sink.Cursor())
	return nil
}

func (s *session) followers(ctx context.Context, actor string) error {
	sink := bridge.NewProfileSink()
	if err := s.send(bridge.GetFollowers{DID: actor, Sink: sink}); err != nil {
		return err
	}
	if err := s.barrier(ctx); err != nil {
		return err
	}
	if err := sink.Err(); err != nil {
		return err
	}
	for _, p := range sink.Profiles() {
		fmt.Printf("@%s  %s\n", p.Handle, p.DisplayName)
	}
	if !sink.Done() {
		fmt.Printf("-- more: %s\n", sink.Cursor())
	}
	return nil
}

// barrier waits until every command sent so far has been processed. Sink
// commands emit no event on success, so a profile lookup of the signed-in
// account is queued behind them.
func (s *session) barrier(ctx context.Context) error {
	if err := s.send(bridge.GetProfile{DID: s.worker.Client().DID()}); err != nil {
		return err
	}
	_, err := await[bridge.ProfileResult](ctx, s)
	return err
}

func (s *session) thread(ctx context.Context, uri string) error {
	t, err := s.fetchThread(ctx, uri)
	if err != nil {
		return err
	}
	printThread(t)
	return nil
}

func (s *session) fetchThread(ctx context.Context, uri string) (*bluesky.Thread, error) {
	if err := s.send(bridge.GetThread{URI: uri}); err != nil {
		return nil, err
	}
	res, err := await[bridge.ThreadResult](ctx, s)
	if err != nil {
		return nil, err
	}
	if res.Err != nil {
		return nil, res.Err
	}
	return res.Result, nil
}

func (s *session) profile(ctx context.Context, actor string) error {
	if err := s.send(bridge.GetProfile{DID: actor}); err != nil {
		return err
	}
	res, err := await[bridge.ProfileResult](ctx, s)
	if err != nil {
		return err
	}
	if res.Err != nil {
		return res.Err
	}
	printProfile(res.Result)
	return nil
}

func (s *session) post(ctx context.Context, text string, images []string) error {
	record := domain.PostRecord{Text: text, Langs: []string{"en"}}

	var cmd bridge.Command = bridge.CreateRecord{Record: record}
	if len(images) > 0 {
		cmd = bridge.CreateRecordWithMedia{Record: record, FilePaths: images}
	}
	if err := s.send(cmd); err != nil {
		return err
	}

	res, err := await[bridge.RecordCreated](ctx, s)
	if err != nil {
		return err
	}
	if res.Err != nil {
		return res.Err
	}
	fmt.Printf("Posted %s\n", res.Result.URI)
	return nil
}

// interact likes, reposts or undoes either on the anchor of uri's thread.
func (s *session) interact(ctx context.Context, action, uri string) error {
	t, err := s.fetchThread(ctx, uri)
	if err != nil {
		return err
	}
	node := t.Node(t.Anchor)
	if node == nil || node.Post == nil {
		return fmt.Errorf("post %s is unavailable", uri)
	}
	view := node.Post.View()
	subject := domain.StrongRef{URI: view.URI, CID: view.CID}

	switch action {
	case "like", "repost":
		var record domain.Record = domain.LikeRecord{Subject: subject}
		if action == "repost" {
			record = domain.RepostRecord{Subject: subject}
		}
		if err := s.send(bridge.CreateRecordUnderPost{Record: record, Post: view.CID}); err != nil {
			return err
		}
		res, err := await[bridge.RecordCreated](ctx, s)
		if err != nil {
			return err
		}
		if res.Err != nil {
			return res.Err
		}

	case "unlike", "unrepost":
		collection, existing := domain.CollectionLike, ""
		if view.Viewer != nil {
			existing = view.Viewer.Like
		}
		if action == "unrepost" {
			collection, existing = domain.CollectionRepost, ""
			if view.Viewer != nil {
				existing = view.Viewer.Repost
			}
		}
		if existing == "" {
			return fmt.Errorf("nothing to undo on %s", uri)
		}
		rkey, err := domain.RecordKey(existing)
		if err != nil {
			return err
		}
		if err := s.send(bridge.DeleteRecordUnderPost{RKey: rkey, Collection: collection, Post: view.CID}); err != nil {
			return err
		}
		res, err := await[bridge.RecordDeleted](ctx, s)
		if err != nil {
			return err
		}
		if res.Err != nil {
			return res.Err
		}
	}

	printPost(node.Post.View(), "")
	return nil
}

// watch streams the account's own commits until interrupted.
func (s *session) watch(ctx context.Context) error {
	did := s.worker.Client().DID()
	w, err := firehose.NewWatcher(s.jetstream, did, func(_ context.Context, c firehose.Commit) {
		line := fmt.Sprintf("%-6s %s", c.Operation, c.URI())
		if rec, err := c.DecodeRecord(); err == nil {
			switch r := rec.(type) {
			case domain.PostRecord:
				line += "  " + oneLine(r.Text)
			case domain.LikeRecord:
				line += "  -> " + r.Subject.URI
			case domain.RepostRecord:
				line += "  -> " + r.Subject.URI
			}
		}
		fmt.Println(line)
	}, s.logger)
	if err != nil {
		return err
	}

	fmt.Printf("Watching commits by %s (Ctrl-C to stop)\n", did)
	if err := w.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
