// Package ranking orders candidates for an offer, or offers for a candidate, by match score.
package ranking

import (
	"errors"
	"fmt"
	"iter"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/offer-matcher/internal/logger"
	"github.com/spigell/offer-matcher/internal/matching"
)

// Ranker drives a matching.Scorer over a collection.
type Ranker struct {
	scorer  *matching.Scorer
	workers int
	logger  *zap.Logger
}

// New creates a Ranker. Workers <= 0 uses GOMAXPROCS.
func New(scorer *matching.Scorer, workers int, log *zap.Logger) *Ranker {
	if scorer == nil {
		scorer = matching.NewDefaultScorer()
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Ranker{scorer: scorer, workers: workers, logger: logger.WithFields(log)}
}

type pair struct {
	candidate *matching.CandidateProfile
	offer     *matching.JobOffer
}

// RankCandidates ranks candidates against a single offer.
func (r *Ranker) RankCandidates(offer *matching.JobOffer, candidates []*matching.CandidateProfile) (*Ranking, error) {
	if offer == nil {
		return nil, matching.ErrMissingOffer
	}

	pairs := make([]pair, 0, len(candidates))
	for idx, candidate := range candidates {
		if candidate == nil {
			return nil, fmt.Errorf("candidate at index %d: %w", idx, matching.ErrMissingCandidate)
		}
		pairs = append(pairs, pair{candidate: candidate, offer: offer})
	}

	return r.newRanking(pairs, logger.SubjectFields(offer.ID, "")), nil
}

// RankOffers ranks offers for a single candidate.
func (r *Ranker) RankOffers(candidate *matching.CandidateProfile, offers []*matching.JobOffer) (*Ranking, error) {
	if candidate == nil {
		return nil, matching.ErrMissingCandidate
	}

	pairs := make([]pair, 0, len(offers))
	for idx, offer := range offers {
		if offer == nil {
			return nil, fmt.Errorf("offer at index %d: %w", idx, matching.ErrMissingOffer)
		}
		pairs = append(pairs, pair{candidate: candidate, offer: offer})
	}

	return r.newRanking(pairs, logger.SubjectFields("", candidate.ID)), nil
}

func (r *Ranker) newRanking(pairs []pair, subject []zap.Field) *Ranking {
	runID := uuid.NewString()
	return &Ranking{
		compute: func() ([]matching.MatchResult, error) {
			started := time.Now()
			results, err := r.scoreAll(pairs)
			if err != nil {
				return nil, err
			}
			Sort(results)

			r.logger.With(subject...).Debug("ranking computed",
				zap.String("run_id", runID),
				zap.Int("pairs", len(pairs)),
				zap.Int("workers", r.workers),
				zap.Duration("took", time.Since(started)),
			)
			return results, nil
		},
	}
}

type scored struct {
	index  int
	result matching.MatchResult
	err    error
}

// scoreAll scores pairs concurrently and returns results in input order.
func (r *Ranker) scoreAll(pairs []pair) ([]matching.MatchResult, error) {
	results := make([]matching.MatchResult, len(pairs))
	if len(pairs) == 0 {
		return results, nil
	}

	workers := min(r.workers, len(pairs))
	jobs := make(chan int)
	out := make(chan scored, len(pairs))

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				res, err := r.scorer.Score(pairs[idx].candidate, pairs[idx].offer)
				out <- scored{index: idx, result: res, err: err}
			}
		}()
	}

	for idx := range pairs {
		jobs <- idx
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(out)
	}()

	var errs []error
	for s := range out {
		if s.err != nil {
			errs = append(errs, fmt.Errorf("pair %d: %w", s.index, s.err))
			continue
		}
		results[s.index] = s.result
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return results, nil
}

// Sort orders results by overall score, then skills score, then location score,
// all descending. Equal entries keep their relative order.
func Sort(results []matching.MatchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return less(results[i], results[j])
	})
}

func less(a, b matching.MatchResult) bool {
	if a.Overall() != b.Overall() {
		return a.Overall() > b.Overall()
	}
	if a.SkillsScore != b.SkillsScore {
		return a.SkillsScore > b.SkillsScore
	}
	return a.LocationScore > b.LocationScore
}

// Ranking is a single-use, lazily computed sequence of results.
type Ranking struct {
	mu      sync.Mutex
	compute func() ([]matching.MatchResult, error)
	results []matching.MatchResult
	pos     int
	started bool
	err     error
}

func (r *Ranking) ensure() {
	if r.started {
		return
	}
	r.started = true
	r.results, r.err = r.compute()
	r.compute = nil
}

// Next returns the next result. It reports false once the ranking is exhausted or failed.
func (r *Ranking) Next() (matching.MatchResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.ensure()
	if r.err != nil || r.pos >= len(r.results) {
		return matching.MatchResult{}, false
	}

	res := r.results[r.pos]
	r.results[r.pos] = matching.MatchResult{}
	r.pos++
	return res, true
}

// All yields the remaining results. Breaking out of the loop does not rewind the ranking.
func (r *Ranking) All() iter.Seq[matching.MatchResult] {
	return func(yield func(matching.MatchResult) bool) {
		for {
			res, ok := r.Next()
			if !ok || !yield(res) {
				return
			}
		}
	}
}

// Collect drains the remaining results into a slice.
func (r *Ranking) Collect() ([]matching.MatchResult, error) {
	var out []matching.MatchResult
	for res := range r.All() {
		out = append(out, res)
	}
	return out, r.Err()
}

// Err returns the scoring error, if any. It forces computation.
func (r *Ranking) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.ensure()
	return r.err
}
