package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/resource-matcher/internal/identity"
	"github.com/spigell/resource-matcher/internal/matching"
	"github.com/spigell/resource-matcher/internal/profile"
)

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Print recommendations for a stored user (--user) or a profile file (--profile)",
	Run: func(cmd *cobra.Command, _ []string) {
		recommend(cmd)
	},
}

func init() {
	rootCmd.AddCommand(recommendCmd)

	recommendCmd.Flags().StringP("user", "u", "", "id of a user stored in redis")
	recommendCmd.Flags().StringP("profile", "p", "", "JSON file with a profile: {\"name\", \"email\", \"answers\": {\"1\": ...}}")
	recommendCmd.Flags().Bool("save", false, "store the result for --user")
}

func recommend(cmd *cobra.Command) {
	ctx := context.Background()
	logger := newLogger()
	defer logger.Sync()

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	userID, _ := cmd.Flags().GetString("user")
	profileFile, _ := cmd.Flags().GetString("profile")
	save, _ := cmd.Flags().GetBool("save")
	if (userID == "") == (profileFile == "") {
		logger.Fatal("exactly one of --user or --profile is required")
	}

	var cl closers
	defer cl.Close(logger)

	var store *identity.Store
	var p *profile.UserProfile
	if userID != "" {
		store, err = newStore(ctx, config, logger, &cl)
		if err != nil {
			logger.Fatal("connecting to redis", zap.Error(err))
		}
		if store == nil {
			logger.Fatal("redis.address is required for --user")
		}
		p, err = store.Profile(ctx, userID)
	} else {
		p, err = readProfile(profileFile)
	}
	if err != nil {
		logger.Fatal("loading the profile", zap.Error(err))
	}

	result, err := runMatch(ctx, config, logger, p, &cl)
	if err != nil {
		logger.Fatal("matching", zap.Error(err))
	}

	if save {
		if store == nil {
			logger.Fatal("--save requires --user")
		}
		if err := persistResult(ctx, store, userID, result); err != nil {
			logger.Fatal("saving the result", zap.Error(err))
		}
		logger.Info("saved recommendations", zap.String("user_id", userID))
	}

	if err := printJSON(os.Stdout, result); err != nil {
		logger.Fatal("printing the result", zap.Error(err))
	}
}

func runMatch(ctx context.Context, config *Config, logger *zap.Logger, p *profile.UserProfile, cl *closers) (*matching.Result, error) {
	resources, _, err := newCatalog(config, logger, cl)
	if err != nil {
		return nil, fmt.Errorf("preparing the catalog: %w", err)
	}
	matcher, err := newMatcher(ctx, config, logger, nil)
	if err != nil {
		return nil, err
	}

	list, err := resources.ListVerified(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing resources: %w", err)
	}
	return matcher.Match(ctx, p, list)
}

func persistResult(ctx context.Context, store *identity.Store, userID string, result *matching.Result) error {
	err := store.SaveRecommendations(ctx, &identity.StoredRecommendations{
		UserID:          userID,
		Recommendations: result.Bundle,
		Opportunities:   result.Opportunities,
		Source:          result.Source,
	})
	if err != nil {
		return err
	}
	_, err = store.LogActivity(ctx, userID, identity.ActionRecommendationsGenerated, map[string]any{
		"recommendation_count": len(result.Bundle.Recommendations),
		"opportunities_count":  len(result.Opportunities.HiddenOpportunities),
		"source":               string(result.Source),
	})
	return err
}

func readProfile(path string) (*profile.UserProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile %q: %w", path, err)
	}
	return decodeProfile(data)
}

func decodeProfile(data []byte) (*profile.UserProfile, error) {
	var p profile.UserProfile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	if strings.TrimSpace(p.Name) == "" && len(p.Answers) == 0 {
		return nil, errors.New("profile has neither a name nor answers")
	}
	answers, err := profile.Normalize(p.Answers)
	if err != nil {
		return nil, err
	}
	p.Answers = answers
	return &p, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
