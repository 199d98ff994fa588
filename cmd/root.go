package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/learnchain/txwatcher/config"
	"github.com/learnchain/txwatcher/internal/watcher"
	"github.com/learnchain/txwatcher/pkg/db"
	"github.com/learnchain/txwatcher/pkg/events"
	"github.com/learnchain/txwatcher/pkg/telemetry"
)

var (
	environment string
	rootCmd     = &cobra.Command{
		Use:   "txwatcher",
		Short: "Pending transaction watcher",
		Run:   run,
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func run(cmd *cobra.Command, args []string) {
	if err := config.LoadEnv(); err != nil {
		panic("Failed to load environment variables: " + err.Error())
	}
	config.InitLogger()
	if err := config.Load(environment); err != nil {
		panic("Failed to load config: " + err.Error())
	}

	ctx := context.Background()
	shutdownTelemetry, err := telemetry.Init(ctx, &config.GlobalConfig.Telemetry)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize telemetry")
	}

	var store db.Store
	if config.GlobalConfig.Database.URL != "" {
		store, err = db.NewPostgresStore(config.GlobalConfig.Database.URL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create postgres store")
		}
	} else {
		log.Warn().Msg("No database url configured, watch set will not survive restarts")
		store = db.NewMemoryStore()
	}

	eventBus := events.GetEventBus(&config.GlobalConfig.EventBus)
	service, err := watcher.NewService(config.GlobalConfig, store, eventBus)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create watcher service")
	}
	if err := service.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start watcher service")
	}

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down watcher...")
	service.Stop()
	if err := shutdownTelemetry(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to flush telemetry")
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&environment,
		"env",
		"local",
		"Environment name of the configuration file",
	)
	viper.BindPFlag("env", rootCmd.PersistentFlags().Lookup("env"))
}
