package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuemby/twicorder/pkg/appdata"
	"github.com/cuemby/twicorder/pkg/auth"
	"github.com/cuemby/twicorder/pkg/config"
	"github.com/cuemby/twicorder/pkg/exchange"
	"github.com/cuemby/twicorder/pkg/log"
	"github.com/cuemby/twicorder/pkg/metrics"
	"github.com/cuemby/twicorder/pkg/mongo"
	"github.com/cuemby/twicorder/pkg/query"
	"github.com/cuemby/twicorder/pkg/ratelimit"
	"github.com/cuemby/twicorder/pkg/scheduler"
	"github.com/cuemby/twicorder/pkg/tasks"
	"github.com/cuemby/twicorder/pkg/usercache"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the crawler scheduler",
	Long: `Start the crawler: load the task list, then schedule, rate-limit and
persist queries until interrupted. Exits 0 on clean shutdown and non-zero on
an unrecoverable configuration error.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		credentialsPath, _ := cmd.Flags().GetString("credentials")
		tasksPath, _ := cmd.Flags().GetString("tasks")

		provider, err := config.NewProvider(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg := provider.Get()

		log.Init(log.Config{
			Level:      log.Level(cfg.LogLevel),
			JSONOutput: cfg.LogJSON,
		})
		logger := log.WithComponent("main")

		creds, err := config.LoadCredentials(credentialsPath)
		if err != nil {
			return fmt.Errorf("failed to load credentials: %w", err)
		}

		manager, err := tasks.Load(tasksPath)
		if err != nil {
			return fmt.Errorf("failed to load task list: %w", err)
		}

		store, err := appdata.Open(cfg.AppDataDir())
		if err != nil {
			return fmt.Errorf("failed to open app-data store: %w", err)
		}
		defer store.Close()

		var sink *mongo.Sink
		if cfg.UseMongo {
			sink = mongo.NewSink(cfg.MongoURI)
			defer sink.Close(context.Background())
		}

		deps := query.Deps{
			UserClient: auth.NewUserClient(creds),
			AppClient:  auth.NewAppClient(creds),
			Limits:     ratelimit.NewCentral(),
			Store:      store,
			Users:      usercache.New(time.Duration(cfg.UserLookupInterval) * time.Minute),
			Mongo:      sink,
			Config:     provider,
		}

		if cfg.MetricsAddr != "" {
			go func() {
				if err := metrics.Serve(cfg.MetricsAddr); err != nil {
					logger.Error().Err(err).Msg("metrics listener failed")
				}
			}()
		}

		sched := scheduler.New(manager, exchange.New(), query.NewRegistry(), deps)
		sched.Start()
		logger.Info().
			Int("tasks", len(manager.Tasks())).
			Str("output_dir", cfg.OutputDir).
			Msg("crawler started")

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh

		logger.Info().Msg("shutting down")
		sched.Stop()
		logger.Info().Msg("shutdown complete")
		return nil
	},
}

func init() {
	startCmd.Flags().String("config", "config.yaml", "Path to the runtime config file")
	startCmd.Flags().String("credentials", "credentials.yaml", "Path to the credentials file")
	startCmd.Flags().String("tasks", "tasks.yaml", "Path to the task list")
}
