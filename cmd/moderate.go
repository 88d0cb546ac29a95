package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/offer-matcher/internal/catalog"
	"github.com/spigell/offer-matcher/internal/matching"
	"github.com/spigell/offer-matcher/internal/moderation"
	"github.com/spigell/offer-matcher/internal/output"
	"github.com/spigell/offer-matcher/internal/scheduler"
)

const (
	PromptYes = "Yes"
	PromptNo  = "No"

	stopTimeout = 30 * time.Second
)

var moderateCmd = &cobra.Command{
	Use:   "moderate",
	Short: "Screen offers for toxic, insulting, threatening or discriminatory content",
	Run: func(cmd *cobra.Command, _ []string) {
		moderate(cmd)
	},
}

func init() {
	rootCmd.AddCommand(moderateCmd)

	moderateCmd.Flags().StringSlice("offer", nil, "offer ids to classify. Default is every open offer.")
	moderateCmd.Flags().BoolP("auto-approve", "y", false, "record flagged offers without asking")
	moderateCmd.Flags().String("schedule", "", "repeat the sweep on a cron schedule, e.g. \"@every 6h\". Requires --auto-approve.")

	viper.BindPFlag("moderation.schedule", moderateCmd.Flags().Lookup("schedule"))
}

// moderationSweep classifies offers and records the newly flagged ones.
type moderationSweep struct {
	config      *Config
	classifier  *moderation.Classifier
	logger      *zap.Logger
	ids         []string
	autoApprove bool
}

func moderate(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	config, logger := setup("moderate")

	classifier, closeClassifier, err := newModerationClassifier(ctx, &config.Moderation, logger)
	if err != nil {
		logger.Fatal("creating a moderation classifier", zap.Error(err))
	}
	defer closeClassifier()

	sweep := &moderationSweep{config: config, classifier: classifier, logger: logger}
	sweep.ids, _ = cmd.Flags().GetStringSlice("offer")
	sweep.autoApprove, _ = cmd.Flags().GetBool("auto-approve")

	schedule := strings.TrimSpace(config.Moderation.Schedule)
	if schedule == "" {
		if err := sweep.run(ctx); err != nil {
			logger.Fatal("moderation failed", zap.Error(err))
		}
		return
	}

	if !sweep.autoApprove {
		logger.Fatal("scheduled moderation cannot prompt", zap.String("hint", "add --auto-approve"))
	}

	s, err := scheduler.New(schedule, func(ctx context.Context) {
		if err := sweep.run(ctx); err != nil {
			logger.Error("moderation sweep failed", zap.Error(err))
		}
	}, logger)
	if err != nil {
		logger.Fatal("creating a scheduler", zap.Error(err))
	}
	if err := s.Start(ctx); err != nil {
		logger.Fatal("starting the scheduler", zap.Error(err))
	}

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	s.Stop(stopCtx)
}

func (m *moderationSweep) run(ctx context.Context) error {
	c, err := loadCatalog(ctx, m.config, m.logger)
	if err != nil {
		return fmt.Errorf("loading catalog: %w", err)
	}
	defer c.close()

	offers, err := offersToModerate(c.Catalog, m.ids, time.Now())
	if err != nil {
		return fmt.Errorf("selecting offers: %w", err)
	}

	entries, flagged := classifyOffers(ctx, m.classifier, offers, m.logger)

	if err := output.Moderation(os.Stdout, viper.GetString("output"), entries); err != nil {
		return fmt.Errorf("printing results: %w", err)
	}

	m.logger.Info("moderation completed", zap.Int("offers", len(offers)), zap.Int("flagged", len(flagged)))

	if len(flagged) == 0 {
		return nil
	}

	excludeFile := strings.TrimSpace(m.config.ExcludeFile)
	if excludeFile == "" && c.db == nil {
		m.logger.Info("not recording flagged offers", zap.String("reason", "exclude-file is not set"))
		return nil
	}

	if !m.autoApprove {
		confirm := promptui.Select{
			Label: fmt.Sprintf("Record %d flagged offers?", len(flagged)),
			Items: []string{PromptYes, PromptNo},
		}
		_, answer, err := confirm.Run()
		if err != nil {
			return err
		}
		if answer != PromptYes {
			m.logger.Info("exiting", zap.String("reason", "got no from prompt"))
			return nil
		}
	}

	var store flagStore
	if c.db != nil {
		store = c.db
	}
	return recordFlagged(ctx, excludeFile, store, flagged, m.logger)
}

// flagStore persists moderation flags next to the catalog records.
type flagStore interface {
	MarkFlagged(ctx context.Context, offerID string, at time.Time) error
}

// recordFlagged appends flagged offers to the ledger, then writes the flags to store.
// A store failure for one offer does not stop the rest.
func recordFlagged(ctx context.Context, excludeFile string, store flagStore, flagged []*moderation.FlaggedOffer, logger *zap.Logger) error {
	if excludeFile != "" {
		ledger, err := moderation.LoadLedger(excludeFile)
		if err != nil {
			return fmt.Errorf("reading exclude file: %w", err)
		}

		added := ledger.Append(flagged...)
		if err := ledger.ToFile(excludeFile); err != nil {
			return fmt.Errorf("writing exclude file: %w", err)
		}

		logger.Info("appended to exclude file", zap.String("filename", excludeFile), zap.Int("added", added))
	}

	if store == nil {
		return nil
	}

	var errs []error
	for _, item := range flagged {
		if err := store.MarkFlagged(ctx, item.OfferID, item.FlaggedAt); err != nil {
			errs = append(errs, err)
		}
	}
	logger.Info("flags saved to the catalog database", zap.Int("saved", len(flagged)-len(errs)), zap.Int("failed", len(errs)))

	return errors.Join(errs...)
}

// offersToModerate returns the requested offers, or every open unflagged offer when ids is empty.
func offersToModerate(c *catalog.Catalog, ids []string, now time.Time) ([]*matching.JobOffer, error) {
	if len(ids) > 0 {
		offers := make([]*matching.JobOffer, 0, len(ids))
		for _, id := range ids {
			offer, err := c.Offer(id)
			if err != nil {
				return nil, err
			}
			offers = append(offers, offer)
		}
		return offers, nil
	}

	var offers []*matching.JobOffer
	for _, offer := range c.Offers() {
		if offer.IsOpen(now) && !offer.Flagged {
			offers = append(offers, offer)
		}
	}
	return offers, nil
}

// classifyOffers classifies the offers. A failed offer is reported and does not stop the others.
func classifyOffers(ctx context.Context, classifier *moderation.Classifier, offers []*matching.JobOffer, logger *zap.Logger) ([]output.ModerationEntry, []*moderation.FlaggedOffer) {
	entries := make([]output.ModerationEntry, 0, len(offers))
	var flagged []*moderation.FlaggedOffer

	now := time.Now()
	for i, verdict := range classifier.ClassifyOffers(ctx, offers) {
		offer := offers[i]
		if verdict.Err != nil {
			logger.Warn("classification failed", zap.String("offer_id", offer.ID), zap.Error(verdict.Err))
			entries = append(entries, output.ModerationEntry{Offer: offer, Err: verdict.Err})
			continue
		}

		marked := moderation.MarkFlagged(offer, verdict.Result, now)
		entries = append(entries, output.ModerationEntry{Offer: marked, Result: verdict.Result})
		if marked.Flagged && !offer.Flagged {
			flagged = append(flagged, moderation.NewFlaggedOffer(marked, verdict.Result, now))
		}
	}

	return entries, flagged
}
