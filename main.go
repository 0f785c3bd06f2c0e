package main

import (
	"context"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"hubgateway/internal/api"
	"hubgateway/internal/auth"
	"hubgateway/internal/config"
	"hubgateway/internal/db"
	"hubgateway/internal/hub"
	"hubgateway/internal/queue"
	"hubgateway/internal/repository"
	"hubgateway/internal/scheduler"
	"hubgateway/internal/subscriber"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatalf("usage: %s <run|sync <fid>>", os.Args[0])
	}

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	switch os.Args[1] {
	case "run":
		runServer(cfg)
	case "sync":
		if len(os.Args) < 3 {
			log.Fatalf("usage: %s sync <fid>", os.Args[0])
		}
		fid, err := strconv.ParseUint(os.Args[2], 10, 64)
		if err != nil {
			log.Fatalf("sync: bad fid %q: %v", os.Args[2], err)
		}
		runSync(cfg, fid)
	default:
		log.Fatalf("unknown subcommand %q (want run|sync)", os.Args[1])
	}
}

func runServer(cfg *config.Config) {
	log.Println("Initializing hub gateway...")
	log.Printf("DB: %s", redactDatabaseURL(cfg.DatabaseURL))
	log.Printf("Hub: %s", cfg.ServerURL)
	log.Printf("Bind: %s", cfg.BindAddr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()
	if err := pool.Migrate(ctx, db.SchemaSQL); err != nil {
		log.Fatalf("db: migrate: %v", err)
	}

	hubClient, err := hub.Connect(ctx, cfg.ServerURL)
	if err != nil {
		log.Fatalf("hub: %v", err)
	}
	defer hubClient.Close()

	repo := repository.New(pool, hubClient)
	repo.FailClosedReads = !cfg.CacheFailOpen
	gate := auth.NewGate(repo, repo, cfg.AuthTimestampWindow())
	taskQueue := queue.New()
	defer taskQueue.Close()

	worker := scheduler.NewWorker(taskQueue, repo, repo, repo)
	go worker.Run(ctx)

	sub := subscriber.New(hubClient, taskQueue)
	go sub.Supervise(ctx)

	srv := api.NewServer(repo, hubClient, gate, taskQueue, cfg.BindAddr)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("api: %v", err)
		}
	}()

	<-sigChan
	log.Println("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("api: shutdown: %v", err)
	}
	// Shutdown order: stop accepting HTTP, then cancel the Subscriber and
	// Worker. The queue is not drained; dropped tasks repeat on the next
	// event or warm-up.
	cancel()
}

// runSync implements the `sync <fid>` subcommand: materialize a
// fid's on-chain signers once, without starting the server.
func runSync(cfg *config.Config, fid uint64) {
	ctx := context.Background()

	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	hubClient, err := hub.Connect(ctx, cfg.ServerURL)
	if err != nil {
		log.Fatalf("hub: %v", err)
	}
	defer hubClient.Close()

	repo := repository.New(pool, hubClient)

	resp, err := hubClient.GetOnChainSignersByFid(ctx, fid)
	if err != nil {
		log.Fatalf("sync: fetch signers for fid=%d: %v", fid, err)
	}

	materialized := 0
	for _, evt := range resp.Events {
		if evt.Type != hub.OnChainEventTypeSigner || evt.SignerEventBody == nil {
			continue
		}
		active := evt.SignerEventBody.EventType == hub.SignerEventAdd
		if err := repo.InsertSigner(ctx, evt.SignerEventBody.Key, fid, active); err != nil {
			log.Fatalf("sync: insert signer for fid=%d: %v", fid, err)
		}
		materialized++
	}

	log.Printf("sync: materialized %d signer event(s) for fid=%d", materialized, fid)
	os.Exit(0)
}

func redactDatabaseURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return "(unparseable)"
	}
	if u.User != nil {
		user := u.User.Username()
		if user == "" {
			user = "user"
		}
		u.User = url.UserPassword(user, "****")
	}
	u.RawQuery = ""
	return u.String()
}
