package search

import (
	"context"
	"log"
	"strings"
)

// Service is the facade that tries Meilisearch first and falls back to
// PG FTS for contracts plus an in-process scan of the template catalog.
type Service struct {
	meili     *Meili
	pgfts     *PgFTS
	templates []TemplateRecord
}

// NewService creates a search service. meili may be nil if Meilisearch
// is not configured. templates is the built-in catalog used for the
// fallback path and for seeding the template index.
func NewService(meili *Meili, pgfts *PgFTS, templates []TemplateRecord) *Service {
	return &Service{meili: meili, pgfts: pgfts, templates: templates}
}

// Search tries Meilisearch if healthy, otherwise falls back to PG FTS.
func (s *Service) Search(q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.Printf("search: meilisearch error, falling back to pgfts: %v", err)
	}

	results, total, err := s.pgfts.Search(q)
	if err != nil {
		log.Printf("search: pgfts error: %v", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}

	if q.FilterType == "" || q.FilterType == ResultTemplate {
		matches := s.matchTemplates(q.Text)
		results = append(results, matches...)
		total += len(matches)
	}

	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// matchTemplates scans the in-process catalog. The catalog is a handful
// of entries, so a substring match is enough for the fallback path.
func (s *Service) matchTemplates(text string) []Result {
	needle := strings.ToLower(strings.TrimSpace(text))
	if needle == "" {
		return nil
	}
	var matches []Result
	for _, t := range s.templates {
		if strings.Contains(strings.ToLower(t.Name), needle) ||
			strings.Contains(strings.ToLower(t.Variants), needle) {
			matches = append(matches, Result{
				Type:       ResultTemplate,
				ID:         t.ID,
				Title:      t.Name,
				Snippet:    t.Variants,
				TemplateID: t.ID,
			})
		}
	}
	return matches
}

// IndexContract indexes a saved contract (fire-and-forget to Meilisearch).
func (s *Service) IndexContract(c ContractRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexContract(c); err != nil {
			log.Printf("search: index contract %s: %v", c.ID, err)
		}
	}()
}

// DeleteContract removes a contract from the search index (fire-and-forget).
func (s *Service) DeleteContract(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteContract(id); err != nil {
			log.Printf("search: delete contract %s: %v", id, err)
		}
	}()
}

// ReindexAll pushes the template catalog and every saved contract from
// PostgreSQL into Meilisearch. Called at startup when Meilisearch is
// healthy.
func (s *Service) ReindexAll(ctx context.Context) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}

	if err := s.meili.IndexTemplates(s.templates); err != nil {
		log.Printf("search: reindex templates: %v", err)
	}

	if s.pgfts == nil {
		return
	}
	contracts, err := s.pgfts.LoadAllContracts(ctx)
	if err != nil {
		log.Printf("search: reindex load failed: %v", err)
		return
	}
	if err := s.meili.IndexContracts(contracts); err != nil {
		log.Printf("search: reindex contracts: %v", err)
	}
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
