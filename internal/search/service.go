package search

import (
	"context"
	"log"
)

// Service is the facade that tries Meilisearch first and falls back to PG FTS.
type Service struct {
	meili *Meili
	pgfts *PgFTS
}

// NewService creates a search service. meili may be nil if Meilisearch is not configured.
func NewService(meili *Meili, pgfts *PgFTS) *Service {
	return &Service{meili: meili, pgfts: pgfts}
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
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexOCG indexes a guideline document (fire-and-forget to Meilisearch).
func (s *Service) IndexOCG(rec OCGRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexOCG(rec); err != nil {
			log.Printf("search: index ocg %s: %v", rec.ID, err)
		}
	}()
}

// IndexSection indexes a section (fire-and-forget to Meilisearch).
func (s *Service) IndexSection(rec SectionRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexSection(rec); err != nil {
			log.Printf("search: index section %s: %v", rec.ID, err)
		}
	}()
}

// DeleteOCG removes a guideline document from the search index (fire-and-forget).
func (s *Service) DeleteOCG(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteOCG(id); err != nil {
			log.Printf("search: delete ocg %s: %v", id, err)
		}
	}()
}

// DeleteSection removes a section from the search index (fire-and-forget).
func (s *Service) DeleteSection(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteSection(id); err != nil {
			log.Printf("search: delete section %s: %v", id, err)
		}
	}()
}

// ReindexAll pushes the given records to Meilisearch in bulk.
func (s *Service) ReindexAll(ocgs []OCGRecord, sections []SectionRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}

	for _, o := range ocgs {
		if err := s.meili.IndexOCG(o); err != nil {
			log.Printf("search: reindex ocg %s: %v", o.ID, err)
		}
	}
	if len(sections) > 0 {
		if err := s.meili.IndexSections(sections); err != nil {
			log.Printf("search: reindex sections: %v", err)
		}
	}
}

// ReindexAllFromPG reindexes all searchable entities from PostgreSQL into Meilisearch.
func (s *Service) ReindexAllFromPG(ctx context.Context) {
	if s.meili == nil || !s.meili.Healthy() || s.pgfts == nil {
		return
	}
	ocgs, sections, err := s.pgfts.LoadAllRecords(ctx)
	if err != nil {
		log.Printf("search: reindex load failed: %v", err)
		return
	}
	s.ReindexAll(ocgs, sections)
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
