package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/offer-matcher/internal/ai"
	"github.com/spigell/offer-matcher/internal/ai/cache"
	"github.com/spigell/offer-matcher/internal/ai/gemini"
	"github.com/spigell/offer-matcher/internal/ai/httpclassifier"
	"github.com/spigell/offer-matcher/internal/catalog"
	"github.com/spigell/offer-matcher/internal/logger"
	"github.com/spigell/offer-matcher/internal/matching"
	"github.com/spigell/offer-matcher/internal/moderation"
	"github.com/spigell/offer-matcher/internal/output"
	"github.com/spigell/offer-matcher/internal/secrets"
)

// setup builds the logger and reads the config. Failures end the process.
func setup(command string) (*Config, *zap.Logger) {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}
	if config == nil {
		logger.Fatal("config is required")
	}

	if err := output.ValidateFormat(viper.GetString("output")); err != nil {
		logger.Fatal("checking output format", zap.Error(err))
	}

	logger.Debug("starting the "+command, zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(redacted(*config), "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	return config, logger
}

// redacted hides passwords in connection strings before the config is logged.
func redacted(config Config) Config {
	config.Catalog = redactURL(config.Catalog)
	config.Moderation.Cache.RedisURL = redactURL(config.Moderation.Cache.RedisURL)
	return config
}

func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	return u.Redacted()
}

// catalogSource is a loaded catalog plus, for a database catalog, the store that takes moderation flags.
type catalogSource struct {
	*catalog.Catalog
	db    *catalog.Postgres
	close func()
}

func loadCatalog(ctx context.Context, config *Config, logger *zap.Logger) (*catalogSource, error) {
	location := strings.TrimSpace(config.Catalog)
	if location == "" {
		return nil, errors.New("catalog is not configured (set catalog, --catalog or OFFER_MATCHER_CATALOG)")
	}

	if !catalog.IsPostgresDSN(location) {
		c, err := catalog.Load(location)
		if err != nil {
			return nil, err
		}

		logCatalog(logger, c, zap.String("path", location))
		return &catalogSource{Catalog: c, close: func() {}}, nil
	}

	pool, err := catalog.OpenPostgres(ctx, location)
	if err != nil {
		return nil, err
	}

	db := catalog.NewPostgres(pool)
	if err := db.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	c, err := db.Load(ctx)
	if err != nil {
		pool.Close()
		return nil, err
	}

	logCatalog(logger, c, zap.String("source", "postgres"))
	return &catalogSource{Catalog: c, db: db, close: pool.Close}, nil
}

func logCatalog(logger *zap.Logger, c *catalog.Catalog, source zap.Field) {
	logger.Info("catalog loaded",
		source,
		zap.Int("candidates", len(c.Candidates())),
		zap.Int("offers", len(c.Offers())),
	)
}

func newScorer(config *Config) (*matching.Scorer, error) {
	return matching.NewScorer(matching.Config{
		Weights:  config.Matching.Weights,
		Location: config.Matching.Location,
	})
}

func newModerationClassifier(ctx context.Context, config *ModerationConfig, logger *zap.Logger) (*moderation.Classifier, func(), error) {
	collaborator, err := newTextClassifier(ctx, config, logger)
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {}
	if redisURL := strings.TrimSpace(config.Cache.RedisURL); redisURL != "" {
		client, err := cache.NewRedisClient(ctx, redisURL)
		if err != nil {
			return nil, nil, err
		}
		collaborator = cache.New(collaborator, client, config.Cache.TTL, logger)
		cleanup = func() {
			if err := client.Close(); err != nil {
				logger.Warn("closing redis client", zap.Error(err))
			}
		}
	}

	classifier, err := moderation.NewClassifier(collaborator, config.Thresholds, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return classifier, cleanup, nil
}

func newTextClassifier(ctx context.Context, config *ModerationConfig, log *zap.Logger) (ai.TextClassifier, error) {
	switch provider := strings.TrimSpace(strings.ToLower(config.Provider)); provider {
	case "", "gemini":
		apiKey, err := secrets.Load(secrets.Source{
			Name: "gemini api key",
			File: config.Gemini.APIKeyFile,
			Env:  "GEMINI_API_KEY",
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set moderation.gemini.api-key-file, GEMINI_API_KEY_FILE or GEMINI_API_KEY)", err)
		}

		genLogger := log.With(zap.Int("ai_retry_attempts", config.Gemini.MaxRetries))

		generator, err := gemini.NewGenerator(ctx, apiKey, config.Gemini.Model, config.Gemini.MaxRetries, genLogger)
		if err != nil {
			return nil, err
		}

		classifierLogger := logger.WithCommonFields(log, "gemini", generator.Model())
		return gemini.NewClassifier(generator, config.Gemini.MaxLogLength, classifierLogger), nil
	case "http":
		if strings.TrimSpace(config.HTTP.URL) == "" {
			return nil, errors.New("moderation.http.url is required for the http provider")
		}

		client := httpclassifier.New(config.HTTP.URL, config.HTTP.Timeout, log)
		if err := client.EnsureRunning(ctx); err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unsupported moderation provider: %s", config.Provider)
	}
}
