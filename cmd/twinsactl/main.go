package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"

	"twinsa/internal/auth"
	"twinsa/internal/config"
	"twinsa/internal/logger"
	"twinsa/internal/metrics"
	"twinsa/internal/persist"
	"twinsa/internal/store"
)

const twinsaCtlDoc = `Twinsa Store Admin Tool

Usage:
  twinsactl [-config <path>] dump
  twinsactl [-config <path>] migrate
  twinsactl [-config <path>] feed <user_id>
  twinsactl [-config <path>] notifications <user_id> [-seen]
  twinsactl [-config <path>] adduser <username> <email> <password>
  twinsactl [-config <path>] serve [-addr <addr>]
  twinsactl -h
Options:
  -h            Show this screen.
  -config       YAML config file (default twinsa.yaml, optional).
  -seen         Mark the listed notifications as seen.
  -addr         Listen address for /metrics and /healthz (default $METRICS_ADDR).`

func main() {
	global := flag.NewFlagSet("twinsactl", flag.ExitOnError)
	global.Usage = func() { fmt.Println(twinsaCtlDoc) }
	configPath := global.String("config", "twinsa.yaml", "config file")
	_ = global.Parse(os.Args[1:])

	args := global.Args()
	if len(args) < 1 || args[0] == "-h" {
		fmt.Println(twinsaCtlDoc)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Can't load config: %s\n", err)
		os.Exit(1)
	}
	if err := logger.Init(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Can't init logger: %s\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, args[0], args[1:]); err != nil {
		logger.Get().Error("Command failed", zap.String("command", args[0]), zap.Error(err))
		fmt.Fprintf(os.Stderr, "%s: %s\n", args[0], err)
		logger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, cmd string, args []string) error {
	backend, err := persist.Open(ctx, cfg.Storage, logger.Get())
	if err != nil {
		return err
	}
	s, err := store.Open(ctx, store.Options{
		Backend: backend,
		Logger:  logger.Get(),
		Hasher:  auth.NewBcryptHasher(cfg.Auth.BcryptCost),
	})
	if err != nil {
		backend.Close()
		return err
	}
	defer s.Close()

	switch cmd {
	case "dump":
		return dump(ctx, s)
	case "migrate":
		return migrateAll(ctx, s)
	case "feed":
		return feed(ctx, s, args)
	case "notifications":
		return notifications(ctx, s, args)
	case "adduser":
		return addUser(ctx, s, cfg, args)
	case "serve":
		return serve(ctx, backend, cfg, args)
	default:
		fmt.Println(twinsaCtlDoc)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// --- Commands ---

func dump(ctx context.Context, s *store.Store) error {
	for _, t := range s.ListTweets(ctx) {
		fmt.Printf("%d,%d,%s,%d,%q\n", t.ID, t.AuthorID, t.AuthorUsername, len(t.Likes), t.Content)
	}
	return nil
}

func migrateAll(ctx context.Context, s *store.Store) error {
	if err := s.Rewrite(ctx); err != nil {
		return err
	}
	r := s.MigrationReport()
	st := s.Stats(ctx)
	fmt.Printf("Migrated users=%d tweets=%d notifications=%d\n", r.Users, r.Tweets, r.Notifications)
	fmt.Printf("Rewrote users=%d tweets=%d notifications=%d\n", st.Users, st.Tweets, st.Notifications)
	return nil
}

func feed(ctx context.Context, s *store.Store, args []string) error {
	userID, err := parseID(args)
	if err != nil {
		return err
	}
	hf, err := s.BuildHomeFeed(ctx, userID)
	if err != nil {
		return err
	}
	return printJSON(hf)
}

func notifications(ctx context.Context, s *store.Store, args []string) error {
	fs := flag.NewFlagSet("notifications", flag.ContinueOnError)
	seen := fs.Bool("seen", false, "mark as seen")
	if err := fs.Parse(reorder(args)); err != nil {
		return err
	}
	userID, err := parseID(fs.Args())
	if err != nil {
		return err
	}
	list, err := s.ListNotificationsFor(ctx, userID)
	if err != nil {
		return err
	}
	for _, n := range list {
		mark := " "
		if !n.Seen {
			mark = "*"
		}
		tweet := "-"
		if n.TweetID != nil {
			tweet = strconv.FormatInt(*n.TweetID, 10)
		}
		fmt.Printf("%s %s %-14s from=%s tweet=%s %s\n",
			mark, n.CreatedAt.Format(time.RFC3339), n.Type, n.FromUsername, tweet, n.Content)
	}
	if *seen {
		changed, err := s.MarkNotificationsSeen(ctx, userID)
		if err != nil {
			return err
		}
		fmt.Printf("Marked %d as seen\n", changed)
	}
	return nil
}

func addUser(ctx context.Context, s *store.Store, cfg config.Config, args []string) error {
	if len(args) != 3 {
		return errors.New("usage: adduser <username> <email> <password>")
	}
	hash, err := auth.NewBcryptHasher(cfg.Auth.BcryptCost).Hash(args[2])
	if err != nil {
		return err
	}
	u, err := s.CreateUser(ctx, args[0], args[1], hash)
	if err != nil {
		return err
	}
	fmt.Printf("Created user: %d %s\n", u.ID, u.Username)
	return nil
}

func serve(ctx context.Context, backend persist.Backend, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	addr := fs.String("addr", cfg.Metrics.Addr, "listen address")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *addr == "" {
		*addr = ":9090"
	}

	health := func() error {
		hctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		_, err := backend.Load(hctx, persist.CollectionUsers)
		return err
	}
	srv := &http.Server{
		Addr:              *addr,
		Handler:           metrics.NewRouter(health),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	logger.Get().Info("Ops server listening", zap.String("addr", *addr))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// --- Helpers ---

func parseID(args []string) (int64, error) {
	if len(args) != 1 {
		return 0, errors.New("expected exactly one user id")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid user id: %s", args[0])
	}
	return id, nil
}

// reorder moves flags ahead of positional arguments so "notifications 3 -seen" parses.
func reorder(args []string) []string {
	var flags, rest []string
	for _, a := range args {
		if len(a) > 1 && a[0] == '-' {
			flags = append(flags, a)
		} else {
			rest = append(rest, a)
		}
	}
	return append(flags, rest...)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
