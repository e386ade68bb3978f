/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the fee compliance engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (if present) and parse command-line flags
  2. Configure logging
  3. Initialize SQLite store
  4. Create API handler and cache janitor
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (default: 8080)
  -db      SQLite database path (default: fees.db)
           Use ":memory:" for an in-memory database

ENVIRONMENT:
  PORT     Overrides the default port when the flag is not set
  DB_PATH  Overrides the default database path
  ENV      "production" switches to JSON log output
  DEBUG    Any non-empty value enables debug logging

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the cache janitor and close the database
  4. Exit

EXAMPLES:
  ./server -db="./data/fees.db"
  ./server -db=":memory:" -port=3000

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/warp/fee-engine/api"
	"github.com/warp/fee-engine/cache"
	"github.com/warp/fee-engine/store/sqlite"
)

func init() {
	// .env is optional. Real deployments set the environment directly.
	_ = godotenv.Load()

	if os.Getenv("ENV") != "production" {
		zlog.Logger = zlog.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") != "" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

func main() {
	port := flag.Int("port", envInt("PORT", 8080), "HTTP server port")
	dbPath := flag.String("db", envStr("DB_PATH", "fees.db"), "SQLite database path")
	flag.Parse()

	st, err := sqlite.New(*dbPath)
	if err != nil {
		zlog.Fatal().Err(err).Str("db", *dbPath).Msg("failed to initialize database")
	}
	defer st.Close()

	handler := api.NewHandler(st)

	janitor := cache.NewJanitor(handler.Cache)
	janitor.Start()
	defer janitor.Stop()

	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		zlog.Info().Int("port", *port).Str("db", *dbPath).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zlog.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		zlog.Fatal().Err(err).Msg("server forced to shutdown")
	}

	zlog.Info().Msg("server stopped")
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			return n
		}
	}
	return fallback
}
