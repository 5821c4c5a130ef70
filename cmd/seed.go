package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/resource-matcher/internal/catalog"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert the built-in Bronx resources (or --file) into postgres",
	Run: func(cmd *cobra.Command, _ []string) {
		seed(cmd)
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)

	seedCmd.Flags().StringP("file", "f", "", "YAML catalog to insert instead of the built-in one")
}

func seed(cmd *cobra.Command) {
	ctx := context.Background()
	logger := newLogger()
	defer logger.Sync()

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}
	if config.Postgres.DSN == "" {
		logger.Fatal("postgres.dsn is required for seeding",
			zap.String("hint", "set postgres.dsn in the config or RESOURCE_MATCHER_POSTGRES_DSN"),
		)
	}

	var resources *catalog.Resources
	if file, _ := cmd.Flags().GetString("file"); file != "" {
		resources, err = catalog.LoadFile(file)
	} else {
		resources, err = catalog.LoadSeed()
	}
	if err != nil {
		logger.Fatal("loading resources", zap.Error(err))
	}

	var cl closers
	defer cl.Close(logger)

	_, repo, err := newCatalog(config, logger, &cl)
	if err != nil {
		logger.Fatal("connecting to postgres", zap.Error(err))
	}
	if err := repo.Ping(ctx); err != nil {
		logger.Fatal("connecting to postgres", zap.Error(err))
	}

	n, err := repo.Insert(ctx, resources)
	if err != nil {
		logger.Fatal("seeding resources", zap.Error(err))
	}
	logger.Info("seeded resources",
		zap.Int("inserted", n),
		zap.Int("skipped", resources.Len()-n),
	)
}
