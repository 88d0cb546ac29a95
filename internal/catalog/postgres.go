package catalog

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spigell/offer-matcher/internal/matching"
)

//go:embed schema.sql
var schema string

const (
	selectCandidates = `
		SELECT id, name, email, location_text, latitude, longitude, skills,
		       preferred_contracts, experience_years, desired_position, salary_min, salary_max
		FROM candidates
		ORDER BY id`

	selectOffers = `
		SELECT id, recruiter_id, title, description, location_text, latitude, longitude,
		       contract, created_at, deadline, status, required_skills,
		       min_experience_years, flagged, flagged_at
		FROM offers
		ORDER BY created_at, id`

	updateFlagged = `
		UPDATE offers
		SET flagged = TRUE, flagged_at = COALESCE(flagged_at, $2)
		WHERE id = $1`
)

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Postgres reads the catalog from the candidates and offers tables.
type Postgres struct {
	db querier
}

// IsPostgresDSN reports whether catalog points at a database rather than a file.
func IsPostgresDSN(catalog string) bool {
	catalog = strings.ToLower(strings.TrimSpace(catalog))
	return strings.HasPrefix(catalog, "postgres://") || strings.HasPrefix(catalog, "postgresql://")
}

// OpenPostgres creates and verifies a pgxpool connection pool.
func OpenPostgres(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}

	return pool, nil
}

func NewPostgres(db querier) *Postgres {
	return &Postgres{db: db}
}

// EnsureSchema creates the tables when they do not exist yet.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create catalog schema: %w", err)
	}
	return nil
}

// Load reads every candidate and offer.
func (p *Postgres) Load(ctx context.Context) (*Catalog, error) {
	candidates, err := p.candidates(ctx)
	if err != nil {
		return nil, err
	}

	offers, err := p.offers(ctx)
	if err != nil {
		return nil, err
	}

	return assemble("postgres", candidates, offers)
}

// MarkFlagged persists a moderation verdict. An earlier flag time is kept.
func (p *Postgres) MarkFlagged(ctx context.Context, offerID string, at time.Time) error {
	tag, err := p.db.Exec(ctx, updateFlagged, offerID, at.UTC())
	if err != nil {
		return fmt.Errorf("flag offer %q: %w", offerID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("offer %q: %w", offerID, ErrNotFound)
	}
	return nil
}

func (p *Postgres) candidates(ctx context.Context) ([]candidateRecord, error) {
	rows, err := p.db.Query(ctx, selectCandidates)
	if err != nil {
		return nil, fmt.Errorf("candidates query: %w", err)
	}
	defer rows.Close()

	records := make([]candidateRecord, 0)
	for rows.Next() {
		var (
			r         candidateRecord
			skills    []byte
			contracts []string
		)
		if err := rows.Scan(
			&r.ID, &r.Name, &r.Email, &r.Location.Text, &r.Location.Latitude, &r.Location.Longitude, &skills,
			&contracts, &r.ExperienceYears, &r.DesiredPosition, &r.ExpectedSalary.Min, &r.ExpectedSalary.Max,
		); err != nil {
			return nil, fmt.Errorf("candidates scan: %w", err)
		}

		if err := decodeJSON(skills, &r.Skills); err != nil {
			return nil, fmt.Errorf("candidate %q skills: %w", r.ID, err)
		}
		for _, raw := range contracts {
			contract, err := matching.ParseContractType(raw)
			if err != nil {
				return nil, fmt.Errorf("candidate %q: %w", r.ID, err)
			}
			r.PreferredContracts = append(r.PreferredContracts, contract)
		}

		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("candidates rows: %w", err)
	}
	return records, nil
}

func (p *Postgres) offers(ctx context.Context) ([]offerRecord, error) {
	rows, err := p.db.Query(ctx, selectOffers)
	if err != nil {
		return nil, fmt.Errorf("offers query: %w", err)
	}
	defer rows.Close()

	records := make([]offerRecord, 0)
	for rows.Next() {
		var (
			r        offerRecord
			contract string
			status   string
			skills   []byte
		)
		if err := rows.Scan(
			&r.ID, &r.RecruiterID, &r.Title, &r.Description, &r.Location.Text, &r.Location.Latitude, &r.Location.Longitude,
			&contract, &r.CreatedAt, &r.Deadline, &status, &skills,
			&r.MinExperienceYears, &r.Flagged, &r.FlaggedAt,
		); err != nil {
			return nil, fmt.Errorf("offers scan: %w", err)
		}

		if err := r.Contract.UnmarshalText([]byte(contract)); err != nil {
			return nil, fmt.Errorf("offer %q: %w", r.ID, err)
		}
		if err := r.Status.UnmarshalText([]byte(status)); err != nil {
			return nil, fmt.Errorf("offer %q: %w", r.ID, err)
		}
		if err := decodeJSON(skills, &r.RequiredSkills); err != nil {
			return nil, fmt.Errorf("offer %q required skills: %w", r.ID, err)
		}

		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("offers rows: %w", err)
	}
	return records, nil
}

// decodeJSON runs a JSONB column through the same decoder as catalog files.
func decodeJSON(data []byte, out any) error {
	if len(data) == 0 {
		return nil
	}

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	return decode(raw, out)
}
