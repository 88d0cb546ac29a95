package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/spigell/offer-matcher/internal/ai"
	"github.com/spigell/offer-matcher/internal/utils"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, system, message string) (string, error)
}

//go:embed prompt.md
var systemPrompt string

const (
	defaultMaxLogLength = 200
	// offers longer than this are cut before being sent
	maxTextRunes = 8000
)

// Classifier asks Gemini to score offer text on the four moderation signals.
type Classifier struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
}

func NewClassifier(generator contentGenerator, maxLogLength int, logger *zap.Logger) *Classifier {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Classifier{
		generator: generator,
		logger:    logger,
		maxLogLen: maxLogLength,
	}
}

func (c *Classifier) Classify(ctx context.Context, text string) (*ai.RiskScores, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("text to classify is empty")
	}

	message := buildMessage(text)

	c.logger.Debug("gemini classify request",
		zap.Int("message_length", utf8.RuneCountInString(message)),
		zap.String("message_preview", utils.TruncateForLog(message, c.maxLogLen)),
	)

	raw, err := c.generator.GenerateContent(ctx, systemPrompt, message)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("gemini classify response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, c.maxLogLen)),
	)

	return parseResponse(raw)
}

func buildMessage(text string) string {
	runes := []rune(text)
	if len(runes) > maxTextRunes {
		text = string(runes[:maxTextRunes])
	}
	// keep the offer from closing the fence early
	text = strings.ReplaceAll(text, "```", "'''")
	return "Job offer:\n```\n" + text + "\n```\n\nJSON Response:"
}

func parseResponse(raw string) (*ai.RiskScores, error) {
	cleaned := extractJSON(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("parse gemini response: %w", err)
	}

	scores := &ai.RiskScores{}
	fields := []struct {
		keys []string
		dst  *float64
	}{
		{keys: []string{"toxicity"}, dst: &scores.Toxicity},
		{keys: []string{"insult"}, dst: &scores.Insult},
		{keys: []string{"threat"}, dst: &scores.Threat},
		{keys: []string{"identity_attack", "identityAttack", "identity-attack"}, dst: &scores.IdentityAttack},
	}

	for _, field := range fields {
		value := math.NaN()
		for _, key := range field.keys {
			if v, ok := data[key]; ok {
				value = coerceFloat(v)
				break
			}
		}
		if math.IsNaN(value) {
			return nil, fmt.Errorf("gemini response is missing a numeric %q score", field.keys[0])
		}
		*field.dst = clampUnit(value)
	}

	return scores, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func clampUnit(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}
