package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/openrepo/curata/internal/collections"
	"github.com/openrepo/curata/internal/query"
	"github.com/openrepo/curata/internal/repo"
	"github.com/openrepo/curata/internal/server/api"
)

func main() {
	// Load configuration from environment
	backendKind := getEnv("CURATA_BACKEND", "sqlite")
	dbPath := getEnv("CURATA_DB", "curata.db")
	neo4jURI := getEnv("NEO4J_URI", "bolt://localhost:7687")
	neo4jUser := getEnv("NEO4J_USER", "neo4j")
	neo4jPassword := getEnv("NEO4J_PASSWORD", "password")
	namespaces := getEnv("CURATA_NAMESPACES", "")
	mintNamespace := getEnv("CURATA_MINT_NAMESPACE", "obj")
	port := getEnv("PORT", "8080")

	ctx := context.Background()
	backend, err := openBackend(ctx, backendKind, dbPath, neo4jURI, neo4jUser, neo4jPassword)
	if err != nil {
		log.Fatalf("Failed to open %s backend: %v", backendKind, err)
	}
	defer backend.Close(ctx)

	log.Printf("Connected to %s backend", backendKind)

	cfg := collections.Config{}
	if namespaces != "" {
		cfg.RestrictNamespaces = true
		cfg.AllowedNamespaces = strings.Split(namespaces, ",")
	}

	manager := repo.NewManager(backend)
	lister := collections.NewLister(backend, cfg, nil)
	apiServer := api.New(backend, manager, lister, mintNamespace)

	// Setup HTTP router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)

	r.Mount("/", apiServer.Router())

	// HTTP server
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Starting curata server on http://localhost:%s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server shutdown failed: %v", err)
	}

	log.Println("Server stopped")
}

func openBackend(ctx context.Context, kind, dbPath, neo4jURI, neo4jUser, neo4jPassword string) (query.Backend, error) {
	switch kind {
	case "sqlite":
		return query.NewSQLite(ctx, dbPath)
	case "neo4j":
		return query.NewNeo4j(ctx, query.Neo4jConfig{
			URI:      neo4jURI,
			Username: neo4jUser,
			Password: neo4jPassword,
			Database: "neo4j",
		})
	case "memory":
		return query.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", kind)
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
