package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/resource-matcher/internal/profile"
)

const (
	PromptDone = "Done"
	PromptSkip = "Skip"
)

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Answer the onboarding questionnaire interactively and get recommendations",
	Run: func(cmd *cobra.Command, _ []string) {
		onboard(cmd)
	},
}

func init() {
	rootCmd.AddCommand(onboardCmd)

	onboardCmd.Flags().StringP("user", "u", "", "store answers and results for this user id (requires redis)")
}

func onboard(cmd *cobra.Command) {
	ctx := context.Background()
	logger := newLogger()
	defer logger.Sync()

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	name, err := (&promptui.Prompt{Label: "Your name"}).Run()
	if err != nil {
		logger.Fatal("exiting", zap.Error(err))
	}

	answers := make(profile.Answers, len(profile.Questionnaire))
	for _, q := range profile.Questionnaire {
		answer, err := ask(q)
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}
		if answer != nil {
			answers[q.ID] = answer
		}
	}

	answers, err = profile.Normalize(answers)
	if err != nil {
		logger.Fatal("validating answers", zap.Error(err))
	}
	p := &profile.UserProfile{Name: strings.TrimSpace(name), Answers: answers}

	var cl closers
	defer cl.Close(logger)

	userID, _ := cmd.Flags().GetString("user")
	store, err := newStore(ctx, config, logger, &cl)
	if err != nil {
		logger.Fatal("connecting to redis", zap.Error(err))
	}
	if userID != "" {
		if store == nil {
			logger.Fatal("redis.address is required for --user")
		}
		if _, err := store.CreateAccount(ctx, userID, "", p.Name); err != nil {
			logger.Fatal("creating the account", zap.Error(err))
		}
		if err := store.SaveAnswers(ctx, userID, answers); err != nil {
			logger.Fatal("saving answers", zap.Error(err))
		}
		if err := store.CompleteOnboarding(ctx, userID); err != nil {
			logger.Fatal("completing onboarding", zap.Error(err))
		}
		p.ID = userID
	}

	result, err := runMatch(ctx, config, logger, p, &cl)
	if err != nil {
		logger.Fatal("matching", zap.Error(err))
	}
	if userID != "" {
		if err := persistResult(ctx, store, userID, result); err != nil {
			logger.Fatal("saving the result", zap.Error(err))
		}
	}
	if err := printJSON(os.Stdout, result); err != nil {
		logger.Fatal("printing the result", zap.Error(err))
	}
}

// ask returns nil when the question was skipped.
func ask(q profile.Question) (any, error) {
	label := q.Title
	if q.Subtitle != "" {
		label = fmt.Sprintf("%s (%s)", q.Title, q.Subtitle)
	}

	switch q.Kind {
	case profile.KindSingle:
		items := append(optionLabels(q.Options), PromptSkip)
		idx, choice, err := (&promptui.Select{Label: label, Items: items}).Run()
		if err != nil {
			return nil, err
		}
		if choice == PromptSkip {
			return nil, nil
		}
		return q.Options[idx].Value, nil
	case profile.KindMulti:
		return askMulti(label, q.Options)
	case profile.KindText:
		text, err := (&promptui.Prompt{Label: label}).Run()
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(text) == "" {
			return nil, nil
		}
		return text, nil
	default:
		return nil, fmt.Errorf("question %d: unknown kind %q", q.ID, q.Kind)
	}
}

// askMulti repeats a select until the user picks Done.
func askMulti(label string, options []profile.Option) (any, error) {
	var selected []string
	remaining := append([]profile.Option(nil), options...)

	for len(remaining) > 0 {
		items := append(optionLabels(remaining), PromptDone)
		idx, choice, err := (&promptui.Select{Label: label, Items: items}).Run()
		if err != nil {
			return nil, err
		}
		if choice == PromptDone {
			break
		}
		selected = append(selected, remaining[idx].Value)
		remaining = append(remaining[:idx], remaining[idx+1:]...)
	}

	if len(selected) == 0 {
		return nil, nil
	}
	return selected, nil
}

func optionLabels(options []profile.Option) []string {
	labels := make([]string, 0, len(options)+1)
	for _, o := range options {
		labels = append(labels, o.Label)
	}
	return labels
}
