package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/offer-matcher/internal/logger"
	"github.com/spigell/offer-matcher/internal/output"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score one candidate against one offer",
	Run: func(cmd *cobra.Command, _ []string) {
		score(cmd)
	},
}

func init() {
	rootCmd.AddCommand(scoreCmd)

	scoreCmd.Flags().String("candidate", "", "candidate id")
	scoreCmd.Flags().String("offer", "", "offer id")
	scoreCmd.MarkFlagRequired("candidate")
	scoreCmd.MarkFlagRequired("offer")
}

func score(cmd *cobra.Command) {
	config, log := setup("score")

	c, err := loadCatalog(context.Background(), config, log)
	if err != nil {
		log.Fatal("loading catalog", zap.Error(err))
	}
	defer c.close()

	candidateID, _ := cmd.Flags().GetString("candidate")
	offerID, _ := cmd.Flags().GetString("offer")

	candidate, err := c.Candidate(candidateID)
	if err != nil {
		log.Fatal("looking up candidate", zap.Error(err))
	}
	offer, err := c.Offer(offerID)
	if err != nil {
		log.Fatal("looking up offer", zap.Error(err))
	}

	scorer, err := newScorer(config)
	if err != nil {
		log.Fatal("creating a scorer", zap.Error(err))
	}

	result, err := scorer.Score(candidate, offer)
	if err != nil {
		log.Fatal("scoring", zap.Error(err))
	}

	log.Debug("scored", append(logger.SubjectFields(offer.ID, candidate.ID), zap.Float64("overall", result.Overall()))...)

	if err := output.Match(os.Stdout, viper.GetString("output"), result); err != nil {
		log.Fatal("printing result", zap.Error(err))
	}
}
