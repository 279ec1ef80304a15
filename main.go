package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm/logger"

	"github.com/rpupo63/portfolio-backend/api"
	"github.com/rpupo63/portfolio-backend/config"
	"github.com/rpupo63/portfolio-backend/database"
	"github.com/rpupo63/portfolio-backend/deploy"
	"github.com/rpupo63/portfolio-backend/models"
	"github.com/rpupo63/portfolio-backend/services"
	"github.com/rpupo63/portfolio-backend/storage"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var cfg *config.Config

	root := &cobra.Command{
		Use:           "portfolio",
		Short:         "Portfolio content backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load environment variables from .env file
			if err := godotenv.Load(); err != nil {
				fmt.Printf("Warning: Error loading .env file: %v\n", err)
			}
			loaded, err := config.Load()
			if err != nil {
				return err
			}
			cfg = loaded
			setupLogging(cfg)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), cfg)
		},
	}

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), cfg)
		},
	}

	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			currentDB, err := openDatabase(cfg)
			if err != nil {
				return err
			}
			defer currentDB.Close()
			if err := currentDB.Migrate(cmd.Context()); err != nil {
				return err
			}
			log.Info().Msg("Database migration completed successfully")
			return nil
		},
	}

	var outPath string
	var reportOnly bool
	generate := &cobra.Command{
		Use:   "generate",
		Short: "Generate gorm/gen query helpers and print the column mismatch report",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := database.Open(databaseOptions(cfg, logger.Info))
			if err != nil {
				return err
			}
			defer database.New(db).Close()

			if reportOnly {
				_, err := models.GenerateColumnMismatchReport(db, cmd.OutOrStdout())
				return err
			}
			return models.GenerateModels(db, outPath, cmd.OutOrStdout())
		},
	}
	generate.Flags().StringVar(&outPath, "out", "./generated", "output directory for the query helpers")
	generate.Flags().BoolVar(&reportOnly, "report-only", false, "only print the column mismatch report")

	root.AddCommand(serve, migrate, generate)
	return root
}

func setupLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.IsDevelopment() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

func databaseOptions(cfg *config.Config, level logger.LogLevel) database.Options {
	return database.Options{
		Type:       cfg.Database.Type,
		DSN:        cfg.Database.URL,
		ReplicaDSN: cfg.Database.ReplicaURL,
		SQLitePath: cfg.Database.SQLitePath,
		LogLevel:   level,
	}
}

func openDatabase(cfg *config.Config) (database.Database, error) {
	log.Info().Str("dbType", cfg.Database.Type).Msg("Connecting to database...")
	db, err := database.Open(databaseOptions(cfg, logger.Warn))
	if err != nil {
		return database.Database{}, err
	}
	return database.New(db), nil
}

func newForwarder(cfg config.DeployConfig) deploy.Forwarder {
	if cfg.HookURL == "" {
		log.Warn().Msg("DEPLOY_HOOK_URL not set; /api/deploy will fail")
		return deploy.Noop{}
	}
	opts := []deploy.Option{}
	if cfg.Timeout > 0 {
		opts = append(opts, deploy.WithClient(&http.Client{Timeout: cfg.Timeout}))
	}
	if cfg.Token != "" {
		opts = append(opts, deploy.WithHeader("Authorization", "Bearer "+cfg.Token))
	}
	return deploy.NewHTTPForwarder(cfg.HookURL, opts...)
}

func runServe(ctx context.Context, cfg *config.Config) error {
	currentDB, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer currentDB.Close()

	if cfg.Database.AutoMigrate {
		if err := currentDB.Migrate(ctx); err != nil {
			return err
		}
	}

	// The uploads directory must exist before the first request; failing here is fatal.
	root, err := storage.ResolveRoot(storage.ModeFromFlag(cfg.Storage.Ephemeral), "")
	if err != nil {
		return err
	}
	log.Info().Str("mode", root.Mode.String()).Str("dir", root.Dir).Msg("storage root ready")
	assets := storage.NewAssetStore(root)

	server, err := api.NewServer(cfg, api.Dependencies{
		Database:  currentDB,
		Projects:  services.NewProjectService(currentDB.ProjectRepo(), assets),
		Assets:    assets,
		Forwarder: newForwarder(cfg.Deploy),
	})
	if err != nil {
		return fmt.Errorf("initialize server: %w", err)
	}

	// Buffered so Start can still report after shutdown has begun
	errChannel := make(chan error, 2)

	go server.Start(errChannel)

	// Listen for interrupt signals to gracefully shutdown the server
	go listenToInterrupt(errChannel)

	fatalErr := <-errChannel
	log.Info().Msgf("Closing server: %v", fatalErr)

	server.ShutdownGracefully(shutdownTimeout)
	return nil
}

// listenToInterrupt waits for SIGINT or SIGTERM and then sends an error to the error channel.
func listenToInterrupt(errChannel chan<- error) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	errChannel <- fmt.Errorf("%s", <-c)
}
