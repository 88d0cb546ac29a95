package ai

import "context"

// RiskScores are raw per-signal probabilities in [0,1] returned by a text classifier.
type RiskScores struct {
	Toxicity       float64 `json:"toxicity"`
	Insult         float64 `json:"insult"`
	Threat         float64 `json:"threat"`
	IdentityAttack float64 `json:"identity_attack"`
}

// TextClassifier scores free text for moderation risk.
type TextClassifier interface {
	Classify(ctx context.Context, text string) (*RiskScores, error)
}

// BatchResult is the outcome for the text at Index of a batch.
type BatchResult struct {
	Index  int
	Scores *RiskScores
	Error  error
}

// BatchClassifier scores many texts at once. Results keep the input order.
type BatchClassifier interface {
	TextClassifier
	ClassifyBatch(ctx context.Context, texts []string) []BatchResult
}
