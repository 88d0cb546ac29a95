package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/offer-matcher/internal/catalog"
	"github.com/spigell/offer-matcher/internal/filtering"
	"github.com/spigell/offer-matcher/internal/matching"
	"github.com/spigell/offer-matcher/internal/output"
	"github.com/spigell/offer-matcher/internal/ranking"
)

const includeFlagMsg = "include flag is set"

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Rank candidates for an offer, or offers for a candidate",
	Run: func(cmd *cobra.Command, _ []string) {
		rank(cmd)
	},
}

func init() {
	rootCmd.AddCommand(rankCmd)

	rankCmd.Flags().String("offer", "", "rank candidates for this offer")
	rankCmd.Flags().String("candidate", "", "rank offers for this candidate")
	rankCmd.Flags().Float64("min-score", 0, "drop matches below this overall score")
	rankCmd.Flags().String("min-tier", "", "drop matches below this tier (FAIR, GOOD, EXCELLENT)")
	rankCmd.Flags().Int("limit", 0, "keep only the first N matches. Default is unlimited.")
	rankCmd.Flags().Int("workers", 0, "number of scoring goroutines. Default is the number of CPUs.")
	rankCmd.Flags().Bool("include-closed", false, "keep offers that are closed or past their deadline")
	rankCmd.Flags().Bool("include-flagged", false, "keep offers flagged by moderation")
	rankCmd.MarkFlagsMutuallyExclusive("offer", "candidate")

	viper.BindPFlag("ranking.min-score", rankCmd.Flags().Lookup("min-score"))
	viper.BindPFlag("ranking.min-tier", rankCmd.Flags().Lookup("min-tier"))
	viper.BindPFlag("ranking.limit", rankCmd.Flags().Lookup("limit"))
	viper.BindPFlag("ranking.workers", rankCmd.Flags().Lookup("workers"))
}

func rank(cmd *cobra.Command) {
	ctx := context.Background()
	config, logger := setup("rank")

	c, err := loadCatalog(ctx, config, logger)
	if err != nil {
		logger.Fatal("loading catalog", zap.Error(err))
	}
	defer c.close()

	scorer, err := newScorer(config)
	if err != nil {
		logger.Fatal("creating a scorer", zap.Error(err))
	}
	ranker := ranking.New(scorer, config.Ranking.Workers, logger)

	offerID, _ := cmd.Flags().GetString("offer")
	candidateID, _ := cmd.Flags().GetString("candidate")

	if offerID == "" && candidateID == "" {
		offerID, err = selectOffer(c.Offers())
		if err != nil {
			logger.Fatal("selecting an offer", zap.Error(err))
		}
	}

	var r *ranking.Ranking
	if candidateID != "" {
		r, err = rankOffers(ranker, c.Catalog, candidateID)
	} else {
		r, err = rankCandidates(ranker, c.Catalog, offerID)
	}
	if err != nil {
		logger.Fatal("ranking", zap.Error(err))
	}

	results, err := r.Collect()
	if err != nil {
		logger.Fatal("ranking", zap.Error(err))
	}

	steps := filtering.Default()
	if include, _ := cmd.Flags().GetBool("include-closed"); include {
		filtering.DisableByName(steps, "open_offers", includeFlagMsg)
	}
	if include, _ := cmd.Flags().GetBool("include-flagged"); include {
		filtering.DisableByName(steps, "flagged_offers", includeFlagMsg)
		filtering.DisableByName(steps, "exclude_file", includeFlagMsg)
	}

	filterConfig := &filtering.Config{
		MinScore:    config.Ranking.MinScore,
		MinTier:     config.Ranking.MinTier,
		Limit:       config.Ranking.Limit,
		ExcludeFile: config.ExcludeFile,
	}
	matches, err := filtering.Run(ctx, filterConfig, filtering.Deps{Logger: logger}, steps, filtering.NewMatches(results))
	if err != nil {
		logger.Fatal("filtering failed", zap.Error(err))
	}

	if viper.GetBool("debug") {
		if err := output.Filters(os.Stderr, filtering.Describe(steps)); err != nil {
			logger.Warn("printing filter statuses", zap.Error(err))
		}
	}

	logger.Info("ranking completed", zap.Int("ranked", len(results)), zap.Int("shown", matches.Len()))

	if err := output.Matches(os.Stdout, viper.GetString("output"), matches.Items); err != nil {
		logger.Fatal("printing results", zap.Error(err))
	}
}

func rankCandidates(ranker *ranking.Ranker, c *catalog.Catalog, offerID string) (*ranking.Ranking, error) {
	offer, err := c.Offer(offerID)
	if err != nil {
		return nil, err
	}
	return ranker.RankCandidates(offer, c.Candidates())
}

func rankOffers(ranker *ranking.Ranker, c *catalog.Catalog, candidateID string) (*ranking.Ranking, error) {
	candidate, err := c.Candidate(candidateID)
	if err != nil {
		return nil, err
	}
	return ranker.RankOffers(candidate, c.Offers())
}

// selectOffer asks the user to pick an offer and returns its id.
func selectOffer(offers []*matching.JobOffer) (string, error) {
	if len(offers) == 0 {
		return "", errors.New("catalog has no offers")
	}

	items := make([]string, 0, len(offers))
	for _, offer := range offers {
		items = append(items, fmt.Sprintf("%s %s / %s / %s", offer.ID, offer.Title, offer.Location.Text, offer.Contract))
	}

	offerPrompt := promptui.Select{
		Label: "Choose an offer and press ENTER",
		Items: items,
		Size:  10,
	}

	idx, _, err := offerPrompt.Run()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(offers[idx].ID), nil
}
