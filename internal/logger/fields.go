package logger

import (
	"strings"

	"go.uber.org/zap"
)

const (
	FieldProvider    = "ai_provider"
	FieldModel       = "ai_model"
	FieldOfferID     = "offer_id"
	FieldCandidateID = "candidate_id"
)

// StringField is a string-valued structured logging field.
type StringField struct {
	Key   string
	Value string
}

// StringFields converts key/value pairs into zap fields, dropping entries whose key or value is blank.
func StringFields(fields ...StringField) []zap.Field {
	result := make([]zap.Field, 0, len(fields))
	for _, field := range fields {
		key := strings.TrimSpace(field.Key)
		value := strings.TrimSpace(field.Value)
		if key == "" || value == "" {
			continue
		}
		result = append(result, zap.String(key, value))
	}

	return result
}

// WithFields attaches fields to logger. A nil logger becomes a no-op logger.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(fields) == 0 {
		return logger
	}

	return logger.With(fields...)
}

// CommonFields describes the classification backend.
func CommonFields(provider, model string) []zap.Field {
	return StringFields(
		StringField{Key: FieldProvider, Value: provider},
		StringField{Key: FieldModel, Value: model},
	)
}

func WithCommonFields(logger *zap.Logger, provider, model string) *zap.Logger {
	return WithFields(logger, CommonFields(provider, model)...)
}

// SubjectFields identifies the offer and candidate a log entry is about.
func SubjectFields(offerID, candidateID string) []zap.Field {
	return StringFields(
		StringField{Key: FieldOfferID, Value: offerID},
		StringField{Key: FieldCandidateID, Value: candidateID},
	)
}
