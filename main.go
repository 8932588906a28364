package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/halcyon-data/altitude.report/internal/api"
	"github.com/halcyon-data/altitude.report/internal/config"
	"github.com/halcyon-data/altitude.report/internal/db"
	"github.com/halcyon-data/altitude.report/internal/version"
)

var (
	listen      = flag.String("listen", ":8080", "Listen address")
	dbFile      = flag.String("db", "altitude.db", "Path to the sqlite database")
	configPath  = flag.String("config", "", "Path to a grouping defaults JSON file")
	showVersion = flag.Bool("version", false, "Print version information and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("altitude-report %s (%s, built %s)\n",
			version.Version, version.GitSHA, version.BuildTime)
		return
	}

	// Subcommands run outside the server lifecycle.
	if flag.Arg(0) == "migrate" {
		db.RunMigrateCommand(flag.Args()[1:], *dbFile)
		return
	}

	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	cfg := config.EmptyGroupingConfig()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadGroupingConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}

	database, err := db.NewDB(*dbFile)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mux := http.NewServeMux()

	// mount the admin debugging routes (accessible only in dev mode or over Tailscale)
	database.AttachAdminRoutes(mux)

	// mount the grouping API and its chart debugging routes
	apiMux := api.NewServer(database, cfg.Options()).ServeMux()
	mux.Handle("/api/", apiMux)
	mux.Handle("/debug/charts/", apiMux)

	server := &http.Server{
		Addr:    *listen,
		Handler: api.LoggingMiddleware(mux),
	}

	// Start server in a goroutine so it doesn't block
	go func() {
		log.Printf("altitude-report %s listening on %s", version.Version, *listen)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	// Wait for a signal to shut down
	<-ctx.Done()
	log.Println("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	log.Printf("Graceful shutdown complete")
}
