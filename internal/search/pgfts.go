package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true. If Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search executes a UNION ALL query across properties and the review
// comments embedded in their review_state blobs, using plainto_tsquery
// and ts_rank with ts_headline for snippets.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	tsQuery := "plainto_tsquery('spanish', $1)"
	args := []any{q.Text}
	argN := 2

	var subQueries []string

	// Properties sub-query
	if q.FilterType == "" || q.FilterType == ResultProperty {
		propWhere := "p.fts @@ " + tsQuery
		if q.FilterStage != "" {
			propWhere += fmt.Sprintf(" AND p.stage = $%d", argN)
			args = append(args, q.FilterStage)
			argN++
		}
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'property'::text AS type, p.id, p.address AS title,
				ts_headline('spanish', coalesce(p.city, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				p.id AS property_id, ''::text AS section_id, p.stage,
				ts_rank(p.fts, %s) AS rank
			FROM properties p
			WHERE %s`, tsQuery, tsQuery, propWhere))
	}

	// Review comments sub-query. Comments live inside the review_state
	// blob, one object per section key, with "_meta" reserved.
	if q.FilterType == "" || q.FilterType == ResultComment {
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'comment'::text AS type, p.id || ':' || sec.key AS id, sec.key AS title,
				ts_headline('spanish', coalesce(sec.value->>'comments', ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				p.id AS property_id, sec.key AS section_id, p.stage,
				ts_rank(to_tsvector('spanish', coalesce(sec.value->>'comments', '')), %s) AS rank
			FROM properties p,
				jsonb_each(p.review_state) AS sec
			WHERE p.review_state IS NOT NULL
				AND sec.key <> '_meta'
				AND to_tsvector('spanish', coalesce(sec.value->>'comments', '')) @@ %s`, tsQuery, tsQuery, tsQuery))
	}

	if len(subQueries) == 0 {
		return nil, 0, nil
	}

	countSQL := fmt.Sprintf("SELECT count(*) FROM (%s) sub",
		strings.Join(subQueries, " UNION ALL "))

	dataSQL := fmt.Sprintf(`SELECT type, id, title, snippet, property_id, section_id, stage
		FROM (%s) sub
		ORDER BY rank DESC
		LIMIT %d OFFSET %d`,
		strings.Join(subQueries, " UNION ALL "),
		limit, offset)

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var typ string
		if err := rows.Scan(&typ, &r.ID, &r.Title, &r.Snippet, &r.PropertyID, &r.SectionID, &r.Stage); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Type = ResultType(typ)
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns all indexable properties for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]PropertyRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, address, postal_code, city, stage
		FROM properties
	`)
	if err != nil {
		return nil, fmt.Errorf("load properties: %w", err)
	}
	defer rows.Close()

	properties := make([]PropertyRecord, 0)
	for rows.Next() {
		var r PropertyRecord
		if err := rows.Scan(&r.ID, &r.Address, &r.PostalCode, &r.City, &r.Stage); err != nil {
			return nil, fmt.Errorf("scan property: %w", err)
		}
		properties = append(properties, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate properties: %w", err)
	}
	return properties, nil
}
