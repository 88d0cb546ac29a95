package cmd

import (
	"errors"
	"log"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/offer-matcher/internal/matching"
	"github.com/spigell/offer-matcher/internal/moderation"
)

const (
	app = "offer-matcher"
)

type Config struct {
	Catalog     string           `mapstructure:"catalog"`
	ExcludeFile string           `mapstructure:"exclude-file"`
	Matching    MatchingConfig   `mapstructure:"matching"`
	Ranking     RankingConfig    `mapstructure:"ranking"`
	Moderation  ModerationConfig `mapstructure:"moderation"`
}

type MatchingConfig struct {
	Weights  matching.Weights       `mapstructure:"weights"`
	Location matching.LocationCurve `mapstructure:"location"`
}

type RankingConfig struct {
	Workers  int     `mapstructure:"workers"`
	MinScore float64 `mapstructure:"min-score"`
	MinTier  string  `mapstructure:"min-tier"`
	Limit    int     `mapstructure:"limit"`
}

type ModerationConfig struct {
	Provider   string                `mapstructure:"provider"`
	Thresholds moderation.Thresholds `mapstructure:"thresholds"`
	Schedule   string                `mapstructure:"schedule"`
	Gemini     GeminiConfig          `mapstructure:"gemini"`
	HTTP       HTTPConfig            `mapstructure:"http"`
	Cache      CacheConfig           `mapstructure:"cache"`
}

type GeminiConfig struct {
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxRetries   int    `mapstructure:"max-retries"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

type CacheConfig struct {
	RedisURL string        `mapstructure:"redis-url"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type HTTPConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "offer-matcher scores candidates against job offers and screens offers for harmful content",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("catalog", "OFFER_MATCHER_CATALOG"); err != nil {
		log.Fatalf("binding OFFER_MATCHER_CATALOG environment variable: %v", err)
	}
	if err := viper.BindEnv("moderation.gemini.api-key-file", "GEMINI_API_KEY_FILE"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY_FILE environment variable: %v", err)
	}
	if err := viper.BindEnv("moderation.cache.redis-url", "OFFER_MATCHER_REDIS_URL"); err != nil {
		log.Fatalf("binding OFFER_MATCHER_REDIS_URL environment variable: %v", err)
	}

	setDefaults()

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is offer-matcher.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")
	rootCmd.PersistentFlags().StringP("output", "o", "table", "result format: table or json")
	rootCmd.PersistentFlags().String("catalog", "", "file with candidates and offers, or a postgres:// connection string")
	rootCmd.PersistentFlags().StringP("exclude-file", "e", "", "ledger of flagged offers. Default is unset.")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))
	viper.BindPFlag("catalog", rootCmd.PersistentFlags().Lookup("catalog"))
	viper.BindPFlag("exclude-file", rootCmd.PersistentFlags().Lookup("exclude-file"))
}

func setDefaults() {
	weights := matching.DefaultWeights()
	viper.SetDefault("matching.weights.skills", weights.Skills)
	viper.SetDefault("matching.weights.location", weights.Location)
	viper.SetDefault("matching.weights.contract", weights.Contract)
	viper.SetDefault("matching.weights.experience", weights.Experience)

	curve := matching.DefaultLocationCurve()
	viper.SetDefault("matching.location.max-distance-km", curve.MaxDistanceKm)
	viper.SetDefault("matching.location.mismatch-credit", curve.MismatchCredit)

	thresholds := moderation.DefaultThresholds()
	viper.SetDefault("moderation.provider", "gemini")
	viper.SetDefault("moderation.thresholds.toxicity", thresholds.Toxicity)
	viper.SetDefault("moderation.thresholds.insult", thresholds.Insult)
	viper.SetDefault("moderation.thresholds.threat", thresholds.Threat)
	viper.SetDefault("moderation.thresholds.identity-attack", thresholds.IdentityAttack)
	viper.SetDefault("moderation.http.timeout", 30*time.Second)
	viper.SetDefault("moderation.cache.ttl", 7*24*time.Hour)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// Without an explicit --config the file is optional: defaults and flags are enough.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return
		}
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}
