package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/blackmichael/metro/internal/bluesky"
	"github.com/blackmichael/metro/internal/bridge"
	"github.com/blackmichael/metro/internal/config"
	"github.com/blackmichael/metro/internal/credstore"
	"github.com/blackmichael/metro/internal/httpserver"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	handle   string
	password string
	cursor   string
	limit    int
	images   []string
}

func run() error {
	var opts options

	flagSet := pflag.NewFlagSet("metro", pflag.ContinueOnError)
	flagSet.StringVar(&opts.handle, "handle", envOrDefault("METRO_HANDLE", ""), "Bluesky handle or email (login)")
	flagSet.StringVar(&opts.password, "password", envOrDefault("METRO_APP_PASSWORD", ""), "Bluesky app password (login); prompted for when empty")
	flagSet.StringVar(&opts.cursor, "cursor", "", "pagination cursor (timeline, feed, author)")
	flagSet.IntVarP(&opts.limit, "limit", "n", 0, "page size (timeline, feed)")
	flagSet.StringSliceVarP(&opts.images, "image", "i", nil, "image to attach, up to 4 (post)")
	flagSet.Usage = func() { printHelp(flagSet) }

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	args := flagSet.Args()
	if len(args) == 0 {
		printHelp(flagSet)
		return fmt.Errorf("no command given")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg.LogLevel)

	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	// Set up graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	worker := bridge.NewWorker(bridge.Config{
		Client: bluesky.Config{
			ReadEndpoint:      cfg.AppViewURL,
			ReadWriteEndpoint: cfg.PDSURL,
			Timeout:           cfg.HTTPTimeout,
		},
		Store:  store,
		Logger: logger,
	})

	workerDone := make(chan error, 1)
	go func() { workerDone <- worker.Run(ctx) }()
	defer func() {
		worker.Send(bridge.Shutdown{})
		select {
		case err := <-workerDone:
			if err != nil && ctx.Err() == nil {
				logger.Error("worker exited with error", "error", err)
			}
		case <-time.After(5 * time.Second):
			logger.Warn("worker did not stop in time")
		}
	}()

	if cfg.DebugAddr != "" {
		server := startDebugServer(cfg.DebugAddr, worker, logger)
		defer server.Shutdown(context.Background())
	}

	s := &session{worker: worker, logger: logger, jetstream: cfg.JetstreamURL}
	startup, err := await[bridge.LoginResult](ctx, s)
	if err != nil {
		return err
	}
	s.restored = startup.Err == nil
	s.feeds = startup.FeedGenerators
	if s.restored {
		fmt.Printf("Signed in as %s\n", startup.Session.Handle)
	}

	return dispatch(ctx, s, opts, args)
}

func dispatch(ctx context.Context, s *session, opts options, args []string) error {
	cmd, rest := args[0], args[1:]

	if cmd == "login" {
		return s.login(ctx, opts)
	}
	if !s.restored {
		return fmt.Errorf("not signed in; run `metro login` first")
	}

	switch cmd {
	case "timeline":
		return s.timeline(ctx, "", opts)
	case "feed":
		if len(rest) != 1 {
			return fmt.Errorf("usage: metro feed <feed-generator-uri>")
		}
		return s.timeline(ctx, rest[0], opts)
	case "feeds":
		return s.pinnedFeeds(ctx)
	case "author":
		if len(rest) != 1 {
			return fmt.Errorf("usage: metro author <did-or-handle>")
		}
		return s.author(ctx, rest[0], opts)
	case "followers":
		if len(rest) != 1 {
			return fmt.Errorf("usage: metro followers <did-or-handle>")
		}
		return s.followers(ctx, rest[0])
	case "thread":
		if len(rest) != 1 {
			return fmt.Errorf("usage: metro thread <post-uri>")
		}
		return s.thread(ctx, rest[0])
	case "profile":
		actor := s.worker.Client().DID()
		if len(rest) == 1 {
			actor = rest[0]
		}
		return s.profile(ctx, actor)
	case "post":
		if len(rest) == 0 {
			return fmt.Errorf("usage: metro post <text> [--image path]...")
		}
		return s.post(ctx, strings.Join(rest, " "), opts.images)
	case "like", "unlike", "repost", "unrepost":
		if len(rest) != 1 {
			return fmt.Errorf("usage: metro %s <post-uri>", cmd)
		}
		return s.interact(ctx, cmd, rest[0])
	case "watch":
		return s.watch(ctx)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func newLogger(level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()) {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

func openStore(cfg *config.Config) (credstore.Store, func(), error) {
	if cfg.CredentialStore == config.CredentialStoreSQLite {
		vault, err := credstore.OpenSQLite(cfg.CredentialDB)
		if err != nil {
			return nil, nil, fmt.Errorf("open credential vault: %w", err)
		}
		return vault, func() { vault.Close() }, nil
	}
	return credstore.NewOSStore(), func() {}, nil
}

func startDebugServer(addr string, worker *bridge.Worker, logger *slog.Logger) *httpserver.Server {
	client := worker.Client()
	server := httpserver.NewServer(addr, httpserver.Sources{
		Status: func() httpserver.Status {
			return httpserver.Status{
				Authenticated:  client.Authenticated(),
				DID:            client.DID(),
				Busy:           worker.Busy(),
				QueuedCommands: worker.Commands().Len(),
				CachedPosts:    client.Cache().Len(),
			}
		},
		Cache: client.Cache(),
	}, logger)

	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Error("debug server exited with error", "error", err)
		}
	}()
	return server
}

// readPassword prompts on the terminal without echo, or reads a line from
// piped stdin.
func readPassword() (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, "App password: ")
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read password from stdin: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `metro: headless Bluesky client.

Usage:
  metro [flags] <command> [args]

Commands:
  login                 sign in and store the session (--handle, --password)
  timeline              print the home timeline
  feed <uri>            print a feed generator's posts
  feeds                 list pinned feeds
  author <actor>        print an actor's posts
  followers <actor>     list an actor's followers
  thread <uri>          print a post thread
  profile [actor]       print a profile (default: yourself)
  post <text>           create a post (--image up to 4)
  like|unlike <uri>     like or unlike a post
  repost|unrepost <uri> repost or undo a repost
  watch                 stream your own posts, likes and reposts

Flags:
`)
	flagSet.PrintDefaults()
}
