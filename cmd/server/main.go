package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/himanishpuri/seldkit/pkg/seld"
	"github.com/himanishpuri/seldkit/pkg/seld/storage"
)

var (
	port           int
	dbPath         string
	allowedOrigins string
	truncate       bool
	accessLog      bool
)

func init() {
	flag.IntVar(&port, "port", 8080, "HTTP server port")
	flag.StringVar(&dbPath, "db", getEnvOrDefault("SELD_DB_PATH", storage.DefaultDBFile), "Path to SQLite database")
	flag.StringVar(&allowedOrigins, "origins", "*", "Comma-separated list of allowed CORS origins (use * for all)")
	flag.BoolVar(&truncate, "truncate", false, "Clamp sample windows that overrun the arrays instead of failing")
	flag.BoolVar(&accessLog, "access-log", false, "Log every request")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	flag.Parse()

	var origins []string
	if allowedOrigins == "*" {
		origins = []string{"*"}
	} else {
		origins = strings.Split(allowedOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
	}

	db, err := storage.NewDBClientWithPath(dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	policy := seld.FailFast
	if truncate {
		policy = seld.Truncate
	}

	config := &ServerConfig{
		Port:           port,
		DBPath:         dbPath,
		BoundsPolicy:   policy,
		AllowedOrigins: origins,
		AccessLog:      accessLog,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := NewServer(db, config)
	if err := server.Start(ctx); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
