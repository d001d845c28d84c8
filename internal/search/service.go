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

// IndexProperty indexes a property (fire-and-forget to Meilisearch).
func (s *Service) IndexProperty(p PropertyRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexProperty(p); err != nil {
			log.Printf("search: index property %s: %v", p.ID, err)
		}
	}()
}

// IndexComments indexes the current rejection comments of a property
// and removes entries for sections that no longer carry a comment
// (fire-and-forget to Meilisearch).
func (s *Service) IndexComments(comments []CommentRecord, removedIDs []string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexComments(comments); err != nil {
			log.Printf("search: index comments: %v", err)
		}
		for _, id := range removedIDs {
			if err := s.meili.DeleteComment(id); err != nil {
				log.Printf("search: delete comment %s: %v", id, err)
			}
		}
	}()
}

// DeleteProperty removes a property from the search index (fire-and-forget).
func (s *Service) DeleteProperty(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteProperty(id); err != nil {
			log.Printf("search: delete property %s: %v", id, err)
		}
	}()
}

// ReindexAllFromPG reindexes all properties from PostgreSQL into
// Meilisearch. Called at startup when Meilisearch is healthy.
func (s *Service) ReindexAllFromPG(ctx context.Context) {
	if s.meili == nil || !s.meili.Healthy() || s.pgfts == nil {
		return
	}
	properties, err := s.pgfts.LoadAllRecords(ctx)
	if err != nil {
		log.Printf("search: reindex load failed: %v", err)
		return
	}
	if len(properties) == 0 {
		return
	}
	if err := s.meili.IndexProperties(properties); err != nil {
		log.Printf("search: reindex properties: %v", err)
	}
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
