// Package identity persists user accounts, onboarding answers, generated
// recommendations and the activity log in redis.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/spigell/resource-matcher/internal/ai"
	"github.com/spigell/resource-matcher/internal/profile"
)

const (
	keyPrefix          = "resource-matcher:user:"
	maxActivityEntries = 100
	defaultLanguage    = "en"
)

// Activity actions written by the service.
const (
	ActionProfileCreated           = "profile_created"
	ActionOnboardingCompleted      = "onboarding_completed"
	ActionRecommendationsGenerated = "ai_recommendations_generated"
)

var ErrNotFound = errors.New("not found")

type Account struct {
	ID                  string    `json:"id"`
	Email               string    `json:"email"`
	Name                string    `json:"name"`
	OnboardingCompleted bool      `json:"onboardingCompleted"`
	PreferredLanguage   string    `json:"preferredLanguage"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

type Activity struct {
	ID        string         `json:"id"`
	UserID    string         `json:"userId"`
	Action    string         `json:"action"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// StoredRecommendations is the last matching result saved for a user.
type StoredRecommendations struct {
	UserID          string                  `json:"userId"`
	Recommendations *ai.Bundle              `json:"recommendations"`
	Insights        []string                `json:"insights"`
	Opportunities   *ai.OpportunityAnalysis `json:"opportunities"`
	Source          ai.Source               `json:"source"`
	GeneratedAt     time.Time               `json:"generatedAt"`
}

type Config struct {
	// RecommendationTTL expires saved recommendations; zero keeps them.
	RecommendationTTL time.Duration
}

type Store struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

func NewStore(client *redis.Client, cfg Config) *Store {
	return &Store{
		client: client,
		ttl:    cfg.RecommendationTTL,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func accountKey(id string) string         { return keyPrefix + id + ":profile" }
func answersKey(id string) string         { return keyPrefix + id + ":answers" }
func recommendationsKey(id string) string { return keyPrefix + id + ":recommendations" }
func activityKey(id string) string        { return keyPrefix + id + ":activity" }

// CreateAccount stores a new account and logs profile_created. An existing
// account is returned unchanged.
func (s *Store) CreateAccount(ctx context.Context, id, email, name string) (*Account, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("account id is required")
	}

	now := s.now()
	acc := &Account{
		ID:                id,
		Email:             strings.TrimSpace(email),
		Name:              strings.TrimSpace(name),
		PreferredLanguage: defaultLanguage,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	data, err := json.Marshal(acc)
	if err != nil {
		return nil, fmt.Errorf("encode account: %w", err)
	}

	created, err := s.client.SetNX(ctx, accountKey(id), data, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("create account %s: %w", id, err)
	}
	if !created {
		return s.Account(ctx, id)
	}

	if _, err := s.LogActivity(ctx, id, ActionProfileCreated, map[string]any{"source": "api"}); err != nil {
		return nil, err
	}
	return acc, nil
}

func (s *Store) Account(ctx context.Context, id string) (*Account, error) {
	raw, err := s.client.Get(ctx, accountKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("account %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get account %s: %w", id, err)
	}

	var acc Account
	if err := json.Unmarshal(raw, &acc); err != nil {
		return nil, fmt.Errorf("decode account %s: %w", id, err)
	}
	return &acc, nil
}

func (s *Store) saveAccount(ctx context.Context, acc *Account) error {
	acc.UpdatedAt = s.now()
	data, err := json.Marshal(acc)
	if err != nil {
		return fmt.Errorf("encode account: %w", err)
	}
	if err := s.client.Set(ctx, accountKey(acc.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("save account %s: %w", acc.ID, err)
	}
	return nil
}

// SaveAnswers upserts answers per question. Questions not present in answers
// keep their stored value.
func (s *Store) SaveAnswers(ctx context.Context, id string, answers profile.Answers) error {
	if _, err := s.Account(ctx, id); err != nil {
		return err
	}
	if len(answers) == 0 {
		return nil
	}

	fields := make(map[string]any, len(answers))
	var cleared []string
	for qid, answer := range answers {
		field := strconv.Itoa(int(qid))
		if emptyAnswer(answer) {
			cleared = append(cleared, field)
			continue
		}
		data, err := json.Marshal(answer)
		if err != nil {
			return fmt.Errorf("encode answer %d: %w", qid, err)
		}
		fields[field] = string(data)
	}

	key := answersKey(id)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(fields) > 0 {
			pipe.HSet(ctx, key, fields)
		}
		if len(cleared) > 0 {
			pipe.HDel(ctx, key, cleared...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save answers for %s: %w", id, err)
	}
	return nil
}

// emptyAnswer reports whether an answer clears the stored value.
func emptyAnswer(answer any) bool {
	switch v := answer.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []string:
		return len(v) == 0
	case []any:
		return len(v) == 0
	}
	return false
}

func (s *Store) Answers(ctx context.Context, id string) (profile.Answers, error) {
	raw, err := s.client.HGetAll(ctx, answersKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("get answers for %s: %w", id, err)
	}

	answers := make(profile.Answers, len(raw))
	for field, value := range raw {
		qid, err := strconv.Atoi(field)
		if err != nil {
			return nil, fmt.Errorf("answers for %s: bad question id %q", id, field)
		}
		var answer any
		if err := json.Unmarshal([]byte(value), &answer); err != nil {
			return nil, fmt.Errorf("decode answer %d for %s: %w", qid, id, err)
		}
		answers[profile.QuestionID(qid)] = answer
	}
	return answers, nil
}

// Profile assembles the matching input for a user: account data plus answers.
func (s *Store) Profile(ctx context.Context, id string) (*profile.UserProfile, error) {
	acc, err := s.Account(ctx, id)
	if err != nil {
		return nil, err
	}
	answers, err := s.Answers(ctx, id)
	if err != nil {
		return nil, err
	}
	return &profile.UserProfile{
		ID:      acc.ID,
		Name:    acc.Name,
		Email:   acc.Email,
		Answers: answers,
	}, nil
}

// CompleteOnboarding marks the account as onboarded once and logs the event.
func (s *Store) CompleteOnboarding(ctx context.Context, id string) error {
	acc, err := s.Account(ctx, id)
	if err != nil {
		return err
	}
	if acc.OnboardingCompleted {
		return nil
	}

	acc.OnboardingCompleted = true
	if err := s.saveAccount(ctx, acc); err != nil {
		return err
	}
	_, err = s.LogActivity(ctx, id, ActionOnboardingCompleted, map[string]any{
		"total_questions": len(profile.Questionnaire),
	})
	return err
}

// SaveRecommendations replaces the stored result for the user.
func (s *Store) SaveRecommendations(ctx context.Context, rec *StoredRecommendations) error {
	if rec == nil || rec.UserID == "" {
		return errors.New("recommendations must name a user")
	}
	if rec.GeneratedAt.IsZero() {
		rec.GeneratedAt = s.now()
	}
	if rec.Insights == nil && rec.Recommendations != nil {
		rec.Insights = rec.Recommendations.Insights
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode recommendations: %w", err)
	}
	if err := s.client.Set(ctx, recommendationsKey(rec.UserID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save recommendations for %s: %w", rec.UserID, err)
	}
	return nil
}

func (s *Store) Recommendations(ctx context.Context, id string) (*StoredRecommendations, error) {
	raw, err := s.client.Get(ctx, recommendationsKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("recommendations for %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get recommendations for %s: %w", id, err)
	}

	var rec StoredRecommendations
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode recommendations for %s: %w", id, err)
	}
	return &rec, nil
}

// LogActivity prepends an entry to the user's activity log, keeping the newest entries only.
func (s *Store) LogActivity(ctx context.Context, userID, action string, details map[string]any) (*Activity, error) {
	entry := &Activity{
		ID:        uuid.NewString(),
		UserID:    userID,
		Action:    action,
		Details:   details,
		CreatedAt: s.now(),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("encode activity: %w", err)
	}

	key := activityKey(userID)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, data)
		pipe.LTrim(ctx, key, 0, maxActivityEntries-1)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("log activity %s for %s: %w", action, userID, err)
	}
	return entry, nil
}

// Activity returns up to limit entries, newest first. A non-positive limit returns all.
func (s *Store) Activity(ctx context.Context, userID string, limit int) ([]*Activity, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	raw, err := s.client.LRange(ctx, activityKey(userID), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("get activity for %s: %w", userID, err)
	}

	entries := make([]*Activity, 0, len(raw))
	for _, item := range raw {
		var entry Activity
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			return nil, fmt.Errorf("decode activity for %s: %w", userID, err)
		}
		entries = append(entries, &entry)
	}
	return entries, nil
}
