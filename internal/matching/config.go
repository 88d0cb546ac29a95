package matching

import (
	"errors"
	"fmt"
	"math"
)

var ErrInvalidWeights = errors.New("invalid matching weights")

// Weights are percentages applied to the sub-scores. They must sum to 100.
type Weights struct {
	Skills     float64 `mapstructure:"skills" json:"skills"`
	Location   float64 `mapstructure:"location" json:"location"`
	Contract   float64 `mapstructure:"contract" json:"contract"`
	Experience float64 `mapstructure:"experience" json:"experience"`
}

func DefaultWeights() Weights {
	return Weights{
		Skills:     40,
		Location:   20,
		Contract:   15,
		Experience: 25,
	}
}

const weightsTolerance = 1e-6

func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"skills":     w.Skills,
		"location":   w.Location,
		"contract":   w.Contract,
		"experience": w.Experience,
	} {
		if v < 0 || math.IsNaN(v) {
			return fmt.Errorf("%w: %s weight must be non-negative, got %v", ErrInvalidWeights, name, v)
		}
	}

	if sum := w.sum(); math.Abs(sum-100) > weightsTolerance {
		return fmt.Errorf("%w: weights must sum to 100, got %v", ErrInvalidWeights, sum)
	}
	return nil
}

func (w Weights) sum() float64 {
	return w.Skills + w.Location + w.Contract + w.Experience
}

// LocationCurve maps distance and text matches to a location score.
type LocationCurve struct {
	// MaxDistanceKm is where the linear decay reaches zero.
	MaxDistanceKm float64 `mapstructure:"max-distance-km" json:"max_distance_km"`
	// MismatchCredit is granted when texts are known but differ.
	MismatchCredit float64 `mapstructure:"mismatch-credit" json:"mismatch_credit"`
}

func DefaultLocationCurve() LocationCurve {
	return LocationCurve{
		MaxDistanceKm:  100,
		MismatchCredit: 50,
	}
}

func (c LocationCurve) Validate() error {
	var errs []error
	if c.MaxDistanceKm <= 0 || math.IsNaN(c.MaxDistanceKm) {
		errs = append(errs, fmt.Errorf("max distance must be positive, got %v", c.MaxDistanceKm))
	}
	if c.MismatchCredit < 0 || c.MismatchCredit > 100 || math.IsNaN(c.MismatchCredit) {
		errs = append(errs, fmt.Errorf("mismatch credit must be within [0,100], got %v", c.MismatchCredit))
	}
	return errors.Join(errs...)
}

// Config bundles all tunables of the scorer.
type Config struct {
	Weights  Weights       `mapstructure:"weights" json:"weights"`
	Location LocationCurve `mapstructure:"location" json:"location"`
}

func DefaultConfig() Config {
	return Config{
		Weights:  DefaultWeights(),
		Location: DefaultLocationCurve(),
	}
}

func (c Config) Validate() error {
	return errors.Join(c.Weights.Validate(), c.Location.Validate())
}
