package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"gatekey.org/internal/httpapi"
	"gatekey.org/internal/iam"
	"gatekey.org/internal/obs"
	"gatekey.org/internal/store/pg"
)

var version = "0.3.1"

func main() {
	obs.Init()
	obs.InitBuildInfo(version, os.Getenv("GATEKEY_COMMIT"))

	var store iam.Store
	var probe httpapi.ReadyProbe

	if dsn := os.Getenv("GATEKEY_PG_DSN"); dsn != "" {
		pgStore, err := pg.Open(dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		defer pgStore.Close()
		store = pgStore
		probe = httpapi.ReadyProbe{DB: pgStore.DB()}
	} else {
		// No DSN: in-memory backend for local development.
		log.Println("GATEKEY_PG_DSN not set, using in-memory store")
		store = iam.NewInMemory()
	}

	tokens := iam.NewTokenService(store, os.Getenv("GATEKEY_JWT_ISSUER"),
		envDuration("GATEKEY_ACCESS_TTL"), envDuration("GATEKEY_REFRESH_TTL"))
	ctx := context.Background()
	set, err := tokens.JWKS(ctx)
	if err != nil {
		log.Fatalf("load signing keys: %v", err)
	}
	if len(set.Keys) == 0 {
		// Empty key ring: bootstrap the first signing key.
		if _, err := tokens.GenerateSigningKey(ctx); err != nil {
			log.Fatalf("bootstrap signing key: %v", err)
		}
		log.Println("generated initial signing key")
	}

	directory, err := iam.NewDirectory(store, nil)
	if err != nil {
		log.Fatalf("directory: %v", err)
	}
	auth, err := iam.NewAuth(store, tokens)
	if err != nil {
		log.Fatalf("auth: %v", err)
	}

	api := httpapi.New(httpapi.Options{
		Directory:     directory,
		Auth:          auth,
		Tokens:        tokens,
		Resolver:      iam.NewResolver(tokens, store),
		ReadyProbe:    probe,
		Version:       version,
		RateBurst:     envInt("GATEKEY_RATE_BURST", 50),
		RatePerSecond: envInt("GATEKEY_RATE_PER_SECOND", 25),
	})

	addr := os.Getenv("GATEKEY_HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting gatekey-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()
	obs.SetReady(true)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")
	obs.SetReady(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(shutdownCtx)
	log.Println("Stopped")
}

func envDuration(key string) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Fatalf("parse %s: %v", key, err)
	}
	return d
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("parse %s: %v", key, err)
	}
	return n
}
