package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/erazemk/najdeno/internal/api"
	"github.com/erazemk/najdeno/internal/auth"
	"github.com/erazemk/najdeno/internal/chat"
	"github.com/erazemk/najdeno/internal/config"
	"github.com/erazemk/najdeno/internal/db"
	"github.com/erazemk/najdeno/internal/embedding"
	"github.com/erazemk/najdeno/internal/events"
	"github.com/erazemk/najdeno/internal/identity"
	"github.com/erazemk/najdeno/internal/lifecycle"
	"github.com/erazemk/najdeno/internal/search"
	"github.com/erazemk/najdeno/internal/store"
)

// levelRouter is a slog.Handler that routes INFO/WARN to stdout and ERROR+ to stderr.
type levelRouter struct {
	stdout slog.Handler
	stderr slog.Handler
}

func (lr *levelRouter) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slog.LevelInfo
}

func (lr *levelRouter) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelError {
		return lr.stderr.Handle(ctx, r)
	}
	return lr.stdout.Handle(ctx, r)
}

func (lr *levelRouter) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelRouter{
		stdout: lr.stdout.WithAttrs(attrs),
		stderr: lr.stderr.WithAttrs(attrs),
	}
}

func (lr *levelRouter) WithGroup(name string) slog.Handler {
	return &levelRouter{
		stdout: lr.stdout.WithGroup(name),
		stderr: lr.stderr.WithGroup(name),
	}
}

// setupLogger installs the level-routing handler as the default logger. If
// logPath is non-empty, all levels are also written to that file.
func setupLogger(logPath string) (func(), error) {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}

	cleanup := func() {}
	stdoutW := io.Writer(os.Stdout)
	stderrW := io.Writer(os.Stderr)

	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		cleanup = func() { f.Close() }
		stdoutW = io.MultiWriter(os.Stdout, f)
		stderrW = io.MultiWriter(os.Stderr, f)
	}

	slog.SetDefault(slog.New(&levelRouter{
		stdout: slog.NewTextHandler(stdoutW, opts),
		stderr: slog.NewTextHandler(stderrW, opts),
	}))
	return cleanup, nil
}

const usage = `Usage: najdeno [serve|token] [flags]

Commands:
  serve    run the HTTP and websocket server (default)
  token    mint a transfer confirmation token

Common flags:
  -c, --config <path>   YAML config file (default: $NAJDENO_CONFIG)
  -d, --db <path>       SQLite database path (default: najdeno.sqlite3)
  -l, --log <path>      log file path (default: stdout/stderr only)

Serve flags:
  -a, --listen <addr>   listen address (default: :8080)

Token flags:
      --item <id>       item the token confirms
      --owner <addr>    identity receiving the item
      --tx <hash>       on-chain transfer hash (optional)
      --ttl <duration>  token lifetime (default: 24h)
`

func main() {
	args := os.Args[1:]
	cmd := "serve"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	var err error
	switch cmd {
	case "serve":
		err = cmdServe(args)
	case "token":
		err = cmdToken(args)
	case "help":
		fmt.Fprint(os.Stdout, usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n%s", cmd, usage)
		os.Exit(1)
	}

	if err == pflag.ErrHelp {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.Usage = func() { fmt.Fprint(os.Stdout, usage) }
	return fs
}

// openDatabase opens the database, brings the schema up to date and
// resolves the confirmation secret.
func openDatabase(cfg *config.Config) (*sql.DB, string, error) {
	database, err := db.Open(cfg.Database)
	if err != nil {
		return nil, "", err
	}
	if err := db.Migrate(database); err != nil {
		database.Close()
		return nil, "", err
	}

	secret := cfg.ConfirmationSecret
	if secret == "" {
		secret, err = store.GetConfirmationSecret(context.Background(), database)
		if err != nil {
			database.Close()
			return nil, "", err
		}
	}
	return database, secret, nil
}

func cmdServe(args []string) error {
	cfg, err := config.Load(newFlagSet("serve"), args)
	if err != nil {
		return err
	}

	closeLog, err := setupLogger(cfg.LogFile)
	if err != nil {
		return err
	}
	defer closeLog()

	database, secret, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()
	slog.Info("database ready", "path", cfg.Database)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var publisher events.Publisher = events.Noop{}
	if cfg.NATS.URL != "" {
		nc, err := events.DialNATS(cfg.NATS.URL, cfg.NATS.SubjectPrefix, slog.Default().With("component", "events"))
		if err != nil {
			return err
		}
		defer nc.Close()
		publisher = nc
		slog.Info("publishing lifecycle events", "url", cfg.NATS.URL, "prefix", cfg.NATS.SubjectPrefix)
	}

	embedder := embedding.New(embedding.Config{
		BaseURL: cfg.Embedding.BaseURL,
		APIKey:  cfg.Embedding.APIKey,
		Model:   cfg.Embedding.Model,
		Timeout: cfg.Embedding.Timeout,
	})
	if _, disabled := embedder.(embedding.Disabled); disabled {
		slog.Warn("no embedding API key configured, search is disabled")
	}

	indexer := search.NewIndexer(database, embedder, search.IndexerConfig{
		Workers: cfg.Indexer.Workers,
		Queue:   cfg.Indexer.Queue,
		Timeout: cfg.Embedding.Timeout,
	})
	defer indexer.Close()

	hub := chat.NewHub(database)
	if cfg.Redis.Addr != "" {
		relay, err := chat.NewRedisRelay(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
		defer relay.Close()
		hub.Relay = relay
		go func() {
			if err := relay.Run(ctx, hub); err != nil && ctx.Err() == nil {
				slog.Error("chat relay stopped", "error", err)
			}
		}()
		slog.Info("chat relay enabled", "addr", cfg.Redis.Addr)
	}

	router := api.NewRouter(api.Deps{
		DB:      database,
		Service: lifecycle.NewService(database, publisher),
		Hub:     hub,
		Searcher: &search.Searcher{
			DB:         database,
			Embedder:   embedder,
			Thresholds: cfg.Search.Thresholds,
		},
		Indexer:            indexer,
		Events:             publisher,
		ConfirmationSecret: secret,
	})

	server := &http.Server{
		Addr:              cfg.Listen,
		Handler:           api.LoggingMiddleware(router),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
	}()

	slog.Info("server started", "addr", cfg.Listen)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("serving: %w", err)
	}

	slog.Info("server stopped, draining indexer and closing database")
	return nil
}

func cmdToken(args []string) error {
	fs := newFlagSet("token")
	itemID := fs.String("item", "", "item id")
	owner := fs.String("owner", "", "owner address")
	txHash := fs.String("tx", "", "transfer transaction hash")
	ttl := fs.Duration("ttl", auth.TokenExpiry, "token lifetime")

	cfg, err := config.Load(fs, args)
	if err != nil {
		return err
	}
	if *itemID == "" || *owner == "" {
		return fmt.Errorf("--item and --owner are required")
	}
	ownerID, err := identity.Parse(*owner)
	if err != nil {
		return err
	}

	database, secret, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	token, err := auth.GenerateToken(secret, *itemID, ownerID, *txHash, *ttl)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
