package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/resource-matcher/internal/catalog"
	"github.com/spigell/resource-matcher/internal/logger"
	"github.com/spigell/resource-matcher/internal/metrics"
	"github.com/spigell/resource-matcher/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Run: func(_ *cobra.Command, _ []string) {
		serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("address", "a", "", "listen address (default is :8080)")
	viper.BindPFlag("server.address", serveCmd.Flags().Lookup("address"))
}

func newLogger() *zap.Logger {
	l, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	return l
}

func serve() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := newLogger()
	defer logger.Sync()

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}
	logger.Info("starting the resource-matcher", zap.String("version", version))

	var cl closers
	defer cl.Close(logger)

	resources, repo, err := newCatalog(config, logger, &cl)
	if err != nil {
		logger.Fatal("preparing the catalog", zap.Error(err))
	}

	store, err := newStore(ctx, config, logger, &cl)
	if err != nil {
		logger.Fatal("connecting to redis", zap.Error(err))
	}

	mt := metrics.New()
	matcher, err := newMatcher(ctx, config, logger, mt)
	if err != nil {
		logger.Fatal("preparing the matcher", zap.Error(err))
	}

	deps := server.Deps{
		Catalog: resources,
		Matcher: matcher,
		Metrics: mt,
		Logger:  logger.Named("http"),
	}
	// Typed nils must not leak into the interfaces.
	if store != nil {
		deps.Store = store
	}
	if repo != nil {
		seed, err := catalog.LoadSeed()
		if err != nil {
			logger.Fatal("loading the seed catalog", zap.Error(err))
		}
		deps.Seeder = repo
		deps.SeedCatalog = seed
	}

	srv, err := server.New(server.Config{
		Address:     config.Server.Address,
		CORSOrigins: config.Server.CORSOrigins,
	}, deps)
	if err != nil {
		logger.Fatal("creating the http server", zap.Error(err))
	}

	if err := srv.Run(ctx); err != nil {
		logger.Fatal("serving http", zap.Error(err))
	}
	logger.Info("exiting", zap.String("reason", "shutdown requested"))
}
