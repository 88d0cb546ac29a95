package moderation

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/spigell/offer-matcher/internal/ai"
	"github.com/spigell/offer-matcher/internal/matching"
)

// Ledger is the persisted list of flagged offers. Its ids feed the exclude_file filter.
type Ledger struct {
	Items []*FlaggedOffer `json:"items"`
}

type FlaggedOffer struct {
	ID        string        `json:"id"`
	OfferID   string        `json:"offer_id"`
	Title     string        `json:"title"`
	Scores    ai.RiskScores `json:"scores"`
	Reasons   []string      `json:"reasons,omitempty"`
	FlaggedAt time.Time     `json:"flagged_at"`
}

func NewFlaggedOffer(offer *matching.JobOffer, result ModerationResult, now time.Time) *FlaggedOffer {
	return &FlaggedOffer{
		ID:        uuid.NewString(),
		OfferID:   offer.ID,
		Title:     offer.Title,
		Scores:    result.Scores(),
		Reasons:   result.Reasons(),
		FlaggedAt: now.UTC(),
	}
}

// LoadLedger reads a ledger file. A missing or empty file is an empty ledger.
func LoadLedger(path string) (*Ledger, error) {
	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &Ledger{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, err
	}
	if stat.Size() == 0 {
		return &Ledger{}, nil
	}

	var ledger Ledger
	if err := json.NewDecoder(file).Decode(&ledger); err != nil {
		return nil, fmt.Errorf("decode ledger %q: %w", path, err)
	}
	return &ledger, nil
}

// Append adds entries whose offer is not already listed and returns how many were added.
func (l *Ledger) Append(items ...*FlaggedOffer) int {
	known := l.OfferIDs()
	added := 0
	for _, item := range items {
		if item == nil || slices.Contains(known, item.OfferID) {
			continue
		}
		l.Items = append(l.Items, item)
		known = append(known, item.OfferID)
		added++
	}
	return added
}

func (l *Ledger) OfferIDs() []string {
	ids := make([]string, 0, len(l.Items))
	for _, item := range l.Items {
		ids = append(ids, item.OfferID)
	}
	return ids
}

func (l *Ledger) ToFile(path string) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	return enc.Encode(l)
}
