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

// Healthy always returns true — if Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search executes a UNION ALL query across ocgs and ocg_sections using
// plainto_tsquery and ts_rank, with ts_headline for snippets.
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

	tsQuery := "plainto_tsquery('english', $1)"
	args := []any{q.Text}
	argN := 2

	var subQueries []string

	// OCGs sub-query
	if q.FilterType == "" || q.FilterType == ResultOCG {
		ocgVector := "to_tsvector('english', coalesce(o.name, ''))"
		ocgWhere := ocgVector + " @@ " + tsQuery
		if q.FilterClientID != "" {
			ocgWhere += fmt.Sprintf(" AND o.client_id = $%d", argN)
			args = append(args, q.FilterClientID)
			argN++
		}
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'ocg'::text AS type, o.id, o.name AS title,
				''::text AS snippet,
				o.id AS ocg_id, o.client_id,
				o.status,
				ts_rank(%s, %s) AS rank
			FROM ocgs o
			WHERE %s`, ocgVector, tsQuery, ocgWhere))
	}

	// Sections sub-query
	if q.FilterType == "" || q.FilterType == ResultSection {
		sectionVector := "to_tsvector('english', coalesce(s.title, '') || ' ' || coalesce(s.content, ''))"
		sectionWhere := sectionVector + " @@ " + tsQuery
		if q.FilterClientID != "" {
			sectionWhere += fmt.Sprintf(" AND o.client_id = $%d", argN)
			args = append(args, q.FilterClientID)
			argN++
		}
		if q.FilterOCGID != "" {
			sectionWhere += fmt.Sprintf(" AND s.ocg_id = $%d", argN)
			args = append(args, q.FilterOCGID)
			argN++
		}
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'section'::text AS type, s.id, s.title,
				ts_headline('english', coalesce(s.content, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				s.ocg_id, o.client_id,
				o.status,
				ts_rank(%s, %s) AS rank
			FROM ocg_sections s
			JOIN ocgs o ON o.id = s.ocg_id
			WHERE %s`, tsQuery, sectionVector, tsQuery, sectionWhere))
	}

	if len(subQueries) == 0 {
		return nil, 0, nil
	}

	// Count query
	countSQL := fmt.Sprintf("SELECT count(*) FROM (%s) sub",
		strings.Join(subQueries, " UNION ALL "))

	// Data query
	dataSQL := fmt.Sprintf(`SELECT type, id, title, snippet, ocg_id, client_id, status
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
		if err := rows.Scan(&typ, &r.ID, &r.Title, &r.Snippet, &r.OCGID, &r.ClientID, &r.Status); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Type = ResultType(typ)
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns all searchable records for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]OCGRecord, []SectionRecord, error) {
	ocgRows, err := p.db.QueryContext(ctx, `
		SELECT id, name, client_id, status, version
		FROM ocgs
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load ocgs: %w", err)
	}
	defer ocgRows.Close()

	ocgs := make([]OCGRecord, 0)
	for ocgRows.Next() {
		var o OCGRecord
		if err := ocgRows.Scan(&o.ID, &o.Title, &o.ClientID, &o.Status, &o.Version); err != nil {
			return nil, nil, fmt.Errorf("scan ocg: %w", err)
		}
		ocgs = append(ocgs, o)
	}
	if err := ocgRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate ocgs: %w", err)
	}

	sectionRows, err := p.db.QueryContext(ctx, `
		SELECT s.id, s.title, coalesce(s.content, ''), s.ocg_id, o.client_id, s.is_negotiable
		FROM ocg_sections s
		JOIN ocgs o ON o.id = s.ocg_id
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load sections: %w", err)
	}
	defer sectionRows.Close()

	sections := make([]SectionRecord, 0)
	for sectionRows.Next() {
		var s SectionRecord
		if err := sectionRows.Scan(&s.ID, &s.Title, &s.Content, &s.OCGID, &s.ClientID, &s.IsNegotiable); err != nil {
			return nil, nil, fmt.Errorf("scan section: %w", err)
		}
		sections = append(sections, s)
	}
	if err := sectionRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate sections: %w", err)
	}

	return ocgs, sections, nil
}
