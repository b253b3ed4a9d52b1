/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the loyalty engine server: pick a document
  store, assemble the engine, configure the router, run with graceful
  shutdown.

COMMAND-LINE FLAGS:
  -port         HTTP server port (default: 8080)
  -store        Backing store: memory | sqlite | postgres
  -db           SQLite database path (":memory:" works)
  -pg           PostgreSQL DSN (required for -store=postgres)
  -admin-email  The single privileged administrator
  -rate         Discount rate multiplier for the linear policy
  -policy       Derivation policy: linear | tier
  -jwt-secret   HS256 signing key shared with the identity provider

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM: stop accepting connections, drain active requests
  (30s timeout), close the store, exit.

EXAMPLES:
  ./server -store=sqlite -db=./data/loyalty.db -admin-email=admin@admin.fr
  ./server -store=postgres -pg="postgres://localhost/loyalty?sslmode=disable"
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nadsa/loyalty-engine/api"
	"github.com/nadsa/loyalty-engine/directory"
	"github.com/nadsa/loyalty-engine/docstore"
	"github.com/nadsa/loyalty-engine/docstore/memory"
	"github.com/nadsa/loyalty-engine/docstore/postgres"
	"github.com/nadsa/loyalty-engine/docstore/sqlite"
	"github.com/nadsa/loyalty-engine/ledger"
	"github.com/nadsa/loyalty-engine/metrics"
)

func main() {
	port := flag.Int("port", 8080, "HTTP server port")
	storeKind := flag.String("store", "sqlite", "backing store: memory | sqlite | postgres")
	dbPath := flag.String("db", "loyalty.db", "SQLite database path")
	pgDSN := flag.String("pg", "", "PostgreSQL DSN (for -store=postgres)")
	adminEmail := flag.String("admin-email", "admin@admin.fr", "administrator email")
	rate := flag.String("rate", "1.3", "discount rate multiplier (linear policy)")
	policyKind := flag.String("policy", "linear", "derivation policy: linear | tier")
	jwtSecret := flag.String("jwt-secret", "", "HS256 signing key shared with the identity provider")
	flag.Parse()

	if *jwtSecret == "" {
		log.Fatal("-jwt-secret is required")
	}

	store, closeStore, err := openStore(*storeKind, *dbPath, *pgDSN)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer closeStore()

	policy, err := buildPolicy(*policyKind, *rate)
	if err != nil {
		log.Fatalf("Invalid policy configuration: %v", err)
	}

	// Assemble the engine.
	entries := ledger.New(store)
	dir := directory.New(store)
	recorder := ledger.NewRecorder(entries, policy).WithClients(dir)
	aggregator := ledger.NewAggregator(entries)
	redeemer := ledger.NewRedeemer(entries, aggregator, dir)

	handler := api.NewHandler(entries, recorder, aggregator, redeemer, dir, metrics.New())
	tokens := api.NewTokenService(*jwtSecret)
	router := api.NewRouter(handler, tokens, *adminEmail)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Loyalty engine listening on http://localhost:%d (store: %s, policy: %s)", *port, *storeKind, *policyKind)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	log.Println("Server stopped")
}

func openStore(kind, dbPath, pgDSN string) (docstore.Store, func(), error) {
	switch kind {
	case "memory":
		return memory.New(), func() {}, nil
	case "sqlite":
		s, err := sqlite.New(dbPath)
		if err != nil {
			return nil, nil, err
		}
		return s, closeQuietly(s), nil
	case "postgres":
		if pgDSN == "" {
			return nil, nil, fmt.Errorf("-pg DSN is required for -store=postgres")
		}
		s, err := postgres.New(pgDSN)
		if err != nil {
			return nil, nil, err
		}
		return s, closeQuietly(s), nil
	default:
		return nil, nil, fmt.Errorf("unknown store kind %q", kind)
	}
}

func closeQuietly(c io.Closer) func() {
	return func() {
		if err := c.Close(); err != nil {
			log.Printf("store close: %v", err)
		}
	}
}

func buildPolicy(kind, rate string) (ledger.DiscountPolicy, error) {
	switch kind {
	case "linear":
		r, err := decimal.NewFromString(rate)
		if err != nil {
			return nil, fmt.Errorf("invalid rate %q: %w", rate, err)
		}
		return ledger.NewLinearPolicy(r), nil
	case "tier":
		return ledger.TierPolicy{}, nil
	default:
		return nil, fmt.Errorf("unknown policy kind %q", kind)
	}
}
