package cmd

import (
	"errors"
	"io/fs"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/resource-matcher/internal/ai/chatcompletions"
	"github.com/spigell/resource-matcher/internal/ai/gemini"
	"github.com/spigell/resource-matcher/internal/matching"
	"github.com/spigell/resource-matcher/internal/server"
)

const (
	app       = "resource-matcher"
	envPrefix = "RESOURCE_MATCHER"
)

type Config struct {
	AI       *AIConfig       `mapstructure:"ai"`
	Scoring  *ScoringConfig  `mapstructure:"scoring"`
	Redis    *RedisConfig    `mapstructure:"redis"`
	Postgres *PostgresConfig `mapstructure:"postgres"`
	Catalog  *CatalogConfig  `mapstructure:"catalog"`
	Server   *ServerConfig   `mapstructure:"server"`
}

type AIConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Provider     string        `mapstructure:"provider"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxLogLength int           `mapstructure:"max-log-length"`
	Chat         *ChatConfig   `mapstructure:"chat"`
	Gemini       *GeminiConfig `mapstructure:"gemini"`
}

type ChatConfig struct {
	URL        string `mapstructure:"url"`
	Model      string `mapstructure:"model"`
	APIKey     string `mapstructure:"api-key" json:"-"`
	APIKeyFile string `mapstructure:"api-key-file"`
}

type GeminiConfig struct {
	Model      string `mapstructure:"model"`
	APIKey     string `mapstructure:"api-key" json:"-"`
	APIKeyFile string `mapstructure:"api-key-file"`
}

type ScoringConfig struct {
	Seed               uint64   `mapstructure:"seed"`
	MaxResults         int      `mapstructure:"max-results"`
	ExcludedCategories []string `mapstructure:"excluded-categories"`
	ExcludeFile        string   `mapstructure:"exclude-file"`
	DisabledFilters    []string `mapstructure:"disabled-filters"`
}

type RedisConfig struct {
	Address           string        `mapstructure:"address"`
	Password          string        `mapstructure:"password" json:"-"`
	DB                int           `mapstructure:"db"`
	RecommendationTTL time.Duration `mapstructure:"recommendation-ttl"`
}

type PostgresConfig struct {
	DSN            string `mapstructure:"dsn" json:"-"`
	MaxConnections int    `mapstructure:"max-connections"`
}

type CatalogConfig struct {
	File string `mapstructure:"file"`
}

type ServerConfig struct {
	Address     string   `mapstructure:"address"`
	CORSOrigins []string `mapstructure:"cors-origins"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "resource-matcher recommends Bronx social-service resources for a person's situation",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is resource-matcher.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))

	setDefaults(viper.GetViper())
}

// setDefaults registers every key so env overrides work for keys missing in the file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("ai.enabled", false)
	v.SetDefault("ai.provider", providerChatCompletions)
	v.SetDefault("ai.timeout", matching.DefaultTimeout)
	v.SetDefault("ai.max-log-length", 200)
	v.SetDefault("ai.chat.url", chatcompletions.DefaultURL)
	v.SetDefault("ai.chat.model", "")
	v.SetDefault("ai.chat.api-key", "")
	v.SetDefault("ai.chat.api-key-file", "")
	v.SetDefault("ai.gemini.model", gemini.DefaultModel)
	v.SetDefault("ai.gemini.api-key", "")
	v.SetDefault("ai.gemini.api-key-file", "")

	v.SetDefault("scoring.seed", 0)
	v.SetDefault("scoring.max-results", 8)
	v.SetDefault("scoring.excluded-categories", []string{})
	v.SetDefault("scoring.exclude-file", "")
	v.SetDefault("scoring.disabled-filters", []string{})

	v.SetDefault("redis.address", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.recommendation-ttl", 0)

	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.max-connections", 10)

	v.SetDefault("catalog.file", "")

	v.SetDefault("server.address", server.DefaultAddress)
	v.SetDefault("server.cors-origins", []string{})
}

func initConfig() {
	// .env is optional and never overrides variables that are already set.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("loading .env: %v", err)
	}

	if err := readConfig(viper.GetViper(), cfgFile); err != nil {
		log.Fatal(err)
	}
}

// readConfig wires env overrides and reads the config file. A missing default
// config file is fine, an explicitly requested one is not.
func readConfig(v *viper.Viper, file string) error {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		return v.ReadInConfig()
	}

	v.AddConfigPath(".")
	v.SetConfigName(app)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return err
	}
	return nil
}

func getConfig() (*Config, error) {
	return decodeConfig(viper.GetViper())
}

func decodeConfig(v *viper.Viper) (*Config, error) {
	var config *Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	if config == nil {
		config = &Config{}
	}
	if config.AI == nil {
		config.AI = &AIConfig{}
	}
	if config.AI.Chat == nil {
		config.AI.Chat = &ChatConfig{}
	}
	if config.AI.Gemini == nil {
		config.AI.Gemini = &GeminiConfig{}
	}
	if config.Scoring == nil {
		config.Scoring = &ScoringConfig{}
	}
	if config.Redis == nil {
		config.Redis = &RedisConfig{}
	}
	if config.Postgres == nil {
		config.Postgres = &PostgresConfig{}
	}
	if config.Catalog == nil {
		config.Catalog = &CatalogConfig{}
	}
	if config.Server == nil {
		config.Server = &ServerConfig{}
	}
	return config, nil
}
