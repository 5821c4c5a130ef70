package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/resource-matcher/internal/catalog"
	"github.com/spigell/resource-matcher/internal/server"
)

var excludeCmd = &cobra.Command{
	Use:   "exclude ID...",
	Short: "Hide resources from recommendations by adding them to scoring.exclude-file",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		exclude(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(excludeCmd)

	excludeCmd.Flags().StringP("reason", "r", "", "why the resources are excluded, e.g. closed or moved")
}

func exclude(cmd *cobra.Command, ids []string) {
	ctx := context.Background()
	logger := newLogger()
	defer logger.Sync()

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}
	path := strings.TrimSpace(config.Scoring.ExcludeFile)
	if path == "" {
		logger.Fatal("scoring.exclude-file is required",
			zap.String("hint", "set scoring.exclude-file in the config or RESOURCE_MATCHER_SCORING_EXCLUDE_FILE"),
		)
	}

	var cl closers
	defer cl.Close(logger)

	cat, _, err := newCatalog(config, logger, &cl)
	if err != nil {
		logger.Fatal("loading catalog", zap.Error(err))
	}

	reason, _ := cmd.Flags().GetString("reason")
	excluded, err := excludeResources(ctx, cat, path, reason, ids)
	if err != nil {
		logger.Fatal("excluding resources", zap.Error(err))
	}
	logger.Info("updated exclude file",
		zap.String("path", path),
		zap.Strings("excluded_resources", excluded.ResourceIDs()),
	)
}

// excludeResources appends the given catalog resources to the exclude file and
// returns its full content. Ids already in the file keep their original entry.
func excludeResources(ctx context.Context, cat server.Catalog, path, reason string, ids []string) (*catalog.ExcludedResources, error) {
	resources, err := cat.ListVerified(ctx)
	if err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}

	found := catalog.NewResources()
	for _, raw := range ids {
		id, ok := catalog.ParseResourceID(raw)
		if !ok {
			return nil, fmt.Errorf("invalid resource id %q", raw)
		}
		res := resources.FindByID(id)
		if res == nil {
			return nil, fmt.Errorf("resource %s is not in the catalog", id)
		}
		found.Items = append(found.Items, res)
	}

	excluded, err := catalog.GetExcludedResourcesFromFile(path)
	if err != nil {
		return nil, err
	}
	excluded.Append(found.ToExcluded(reason))

	if err := excluded.ToFile(path); err != nil {
		return nil, fmt.Errorf("write exclude file: %w", err)
	}
	return excluded, nil
}
