// Command greenhouse-sim runs the development backend: auth, recent readings,
// custom publish and the STOMP realtime feed, fed by a reading simulator.
package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "greenhouse_monitor/docs"
	"greenhouse_monitor/internal/config"
	"greenhouse_monitor/internal/handlers"
	"greenhouse_monitor/internal/logger"
	"greenhouse_monitor/internal/repository"
	"greenhouse_monitor/internal/repository/db"
	"greenhouse_monitor/internal/server"
	"greenhouse_monitor/internal/service"

	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func main() {
	var configPath string
	cmd := &cobra.Command{
		Use:          "greenhouse-sim",
		Short:        "Run the greenhouse development backend",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			serve(cfg)
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to config.yml (default configs/config.yml)")
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serve(cfg *config.Config) {
	// init logger
	log := logger.Get(cfg.Log.Level)

	// open DB
	conn, err := openDB(cfg.Backend.DBPath, log)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	// wire dependencies
	repos := repository.NewRepository(conn)
	services := service.NewService(repos, service.Options{
		SigningKey: cfg.Backend.SigningKey,
		TokenTTL:   cfg.Backend.TokenTTL,
		Log:        log,
	})
	apiHandler := handlers.NewHandler(services, log.Named("http"))

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go services.Simulator.Run(ctx, cfg.Backend.SimTick)

	srv := server.New()
	runHTTPServer(srv, cfg.Backend.Port, apiHandler, log)

	waitForShutdown(cancel, srv, log)
}

// openDB initializes the SQLite database, falling back to a local file.
func openDB(path string, log *logger.Logger) (*sql.DB, error) {
	if path == "" {
		log.Infow("backend.db_path not set in config; using default file", "default", "greenhouse-sim.db")
		path = "greenhouse-sim.db"
	}
	return db.InitDB(path)
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		if err := srv.Run(port, handler.InitRoutes()); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()
	go func() {
		<-srv.Ready()
		log.Infow("server_listening", "addr", srv.Addr().String())
	}()
}

// waitForShutdown blocks until SIGINT/SIGTERM, then stops the simulator and drains the server.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")
	cancel()

	ctx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("server forced to shutdown", "err", err)
	}
}
