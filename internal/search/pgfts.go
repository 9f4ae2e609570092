package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher over saved contracts using PostgreSQL
// full-text search as a fallback. Templates live in the in-process
// catalog, so the fallback only covers the contract index.
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

const contractTSVector = "to_tsvector('english', coalesce(cp.title, '') || ' ' || coalesce(cp.plain_text, ''))"

// Search queries contract_progress using plainto_tsquery and ts_rank,
// with ts_headline for snippets.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}
	if q.FilterType == ResultTemplate {
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

	where := contractTSVector + " @@ " + tsQuery
	if q.FilterUserID != "" {
		where += " AND cp.user_id = $2"
		args = append(args, q.FilterUserID)
	}

	countSQL := fmt.Sprintf(`SELECT count(*) FROM contract_progress cp WHERE %s`, where)

	dataSQL := fmt.Sprintf(`
		SELECT cp.contract_id, cp.title,
			ts_headline('english', coalesce(cp.plain_text, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
			cp.template_id, cp.user_id
		FROM contract_progress cp
		WHERE %s
		ORDER BY ts_rank(%s, %s) DESC
		LIMIT %d OFFSET %d`,
		tsQuery, where, contractTSVector, tsQuery, limit, offset)

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
		r := Result{Type: ResultContract}
		if err := rows.Scan(&r.ID, &r.Title, &r.Snippet, &r.TemplateID, &r.UserID); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllContracts returns all saved contracts for full reindexing.
func (p *PgFTS) LoadAllContracts(ctx context.Context) ([]ContractRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT contract_id, user_id, title, template_id, variant, plain_text
		FROM contract_progress
	`)
	if err != nil {
		return nil, fmt.Errorf("load contracts: %w", err)
	}
	defer rows.Close()

	contracts := make([]ContractRecord, 0)
	for rows.Next() {
		var c ContractRecord
		if err := rows.Scan(&c.ID, &c.UserID, &c.Title, &c.TemplateID, &c.Variant, &c.Body); err != nil {
			return nil, fmt.Errorf("scan contract: %w", err)
		}
		contracts = append(contracts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contracts: %w", err)
	}
	return contracts, nil
}
