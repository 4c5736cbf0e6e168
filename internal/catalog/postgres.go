package catalog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/victornm/blindquiz/internal/domain"
)

// Postgres reads candidates from the catalog database:
//
//	CREATE TABLE candidates (
//		id         TEXT PRIMARY KEY,
//		name       TEXT NOT NULL,
//		franchise  TEXT NOT NULL DEFAULT '',
//		alt_names  TEXT[] NOT NULL DEFAULT '{}',
//		tags       TEXT[] NOT NULL DEFAULT '{}',
//		difficulty TEXT NOT NULL DEFAULT 'medium',
//		media_url  TEXT NOT NULL DEFAULT ''
//	);
type Postgres struct {
	db *pgxpool.Pool
}

func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) Candidates(ctx context.Context, q Query) ([]domain.Candidate, error) {
	const stmt = `
SELECT id, name, franchise, alt_names, tags, difficulty, media_url
FROM candidates
WHERE (cardinality($1::text[]) = 0 OR tags && $1::text[])
	AND ($2 = '' OR difficulty = $2)
	AND NOT (id = ANY($3::text[]))
ORDER BY random()
LIMIT $4;`

	limit := q.Limit
	if limit <= 0 {
		limit = 1
	}

	rows, err := p.db.Query(ctx, stmt, nonNil(q.Tags), string(q.Difficulty), nonNil(q.Exclude), limit)
	if err != nil {
		return nil, fmt.Errorf("catalog: query candidates: %w", err)
	}

	return collect(rows)
}

func (p *Postgres) All(ctx context.Context) ([]domain.Candidate, error) {
	const stmt = `
SELECT id, name, franchise, alt_names, tags, difficulty, media_url
FROM candidates
ORDER BY name;`

	rows, err := p.db.Query(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("catalog: query all: %w", err)
	}

	return collect(rows)
}

func collect(rows pgx.Rows) ([]domain.Candidate, error) {
	cs, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.Candidate, error) {
		var (
			c          domain.Candidate
			difficulty string
		)
		if err := r.Scan(&c.ID, &c.Name, &c.Franchise, &c.AltNames, &c.Tags, &difficulty, &c.MediaURL); err != nil {
			return domain.Candidate{}, err
		}
		c.Difficulty = domain.Difficulty(difficulty)
		return c, nil
	})
	if err != nil {
		return nil, fmt.Errorf("catalog: scan candidates: %w", err)
	}

	return cs, nil
}

// nonNil avoids NULL arrays, which turn the filters above into NULL.
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}

	return s
}
