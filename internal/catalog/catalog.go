// Package catalog loads candidates and job offers from a data file.
package catalog

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/spigell/offer-matcher/internal/matching"
)

// ErrNotFound is returned when an id is not in the catalog.
var ErrNotFound = errors.New("not found")

type CandidateRepository interface {
	Candidate(id string) (*matching.CandidateProfile, error)
	Candidates() []*matching.CandidateProfile
}

type OfferRepository interface {
	Offer(id string) (*matching.JobOffer, error)
	Offers() []*matching.JobOffer
}

// Catalog is an in-memory repository of candidates and offers, kept in file order.
type Catalog struct {
	candidates  []*matching.CandidateProfile
	offers      []*matching.JobOffer
	candidateBy map[string]*matching.CandidateProfile
	offerBy     map[string]*matching.JobOffer
}

var (
	_ CandidateRepository = (*Catalog)(nil)
	_ OfferRepository     = (*Catalog)(nil)
)

// New validates the records and indexes them by id.
func New(candidates []*matching.CandidateProfile, offers []*matching.JobOffer) (*Catalog, error) {
	c := &Catalog{
		candidateBy: make(map[string]*matching.CandidateProfile, len(candidates)),
		offerBy:     make(map[string]*matching.JobOffer, len(offers)),
	}

	var errs []error
	for _, candidate := range candidates {
		if err := candidate.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if _, ok := c.candidateBy[candidate.ID]; ok {
			errs = append(errs, fmt.Errorf("duplicate candidate id %q", candidate.ID))
			continue
		}
		c.candidateBy[candidate.ID] = candidate
		c.candidates = append(c.candidates, candidate)
	}
	for _, offer := range offers {
		if err := offer.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if _, ok := c.offerBy[offer.ID]; ok {
			errs = append(errs, fmt.Errorf("duplicate offer id %q", offer.ID))
			continue
		}
		c.offerBy[offer.ID] = offer
		c.offers = append(c.offers, offer)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return c, nil
}

// Load reads a YAML, JSON or TOML file with top-level candidates and offers lists.
func Load(path string) (*Catalog, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read catalog %q: %w", path, err)
	}

	var raw struct {
		Candidates []candidateRecord `mapstructure:"candidates"`
		Offers     []offerRecord     `mapstructure:"offers"`
	}
	if err := decode(map[string]any{
		"candidates": v.Get("candidates"),
		"offers":     v.Get("offers"),
	}, &raw); err != nil {
		return nil, fmt.Errorf("decode catalog %q: %w", path, err)
	}

	return assemble(path, raw.Candidates, raw.Offers)
}

// assemble converts raw records and indexes them. source names the origin in errors.
func assemble(source string, candidateRecords []candidateRecord, offerRecords []offerRecord) (*Catalog, error) {
	var errs []error
	candidates := make([]*matching.CandidateProfile, 0, len(candidateRecords))
	for idx, record := range candidateRecords {
		candidate, err := record.profile()
		if err != nil {
			errs = append(errs, fmt.Errorf("candidates[%d]: %w", idx, err))
			continue
		}
		candidates = append(candidates, candidate)
	}
	offers := make([]*matching.JobOffer, 0, len(offerRecords))
	for idx, record := range offerRecords {
		offer, err := record.offer()
		if err != nil {
			errs = append(errs, fmt.Errorf("offers[%d]: %w", idx, err))
			continue
		}
		offers = append(offers, offer)
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("catalog %q: %w", source, errors.Join(errs...))
	}

	catalog, err := New(candidates, offers)
	if err != nil {
		return nil, fmt.Errorf("catalog %q: %w", source, err)
	}
	return catalog, nil
}

func decode(input any, output any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeHookFunc(time.RFC3339),
			mapstructure.TextUnmarshallerHookFunc(),
		),
		ErrorUnused: true,
		Result:      output,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}

func (c *Catalog) Candidate(id string) (*matching.CandidateProfile, error) {
	candidate, ok := c.candidateBy[strings.TrimSpace(id)]
	if !ok {
		return nil, fmt.Errorf("candidate %q: %w", id, ErrNotFound)
	}
	return candidate, nil
}

func (c *Catalog) Candidates() []*matching.CandidateProfile {
	return c.candidates
}

func (c *Catalog) Offer(id string) (*matching.JobOffer, error) {
	offer, ok := c.offerBy[strings.TrimSpace(id)]
	if !ok {
		return nil, fmt.Errorf("offer %q: %w", id, ErrNotFound)
	}
	return offer, nil
}

func (c *Catalog) Offers() []*matching.JobOffer {
	return c.offers
}
