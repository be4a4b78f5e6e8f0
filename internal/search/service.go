package search

import (
	"context"
	"log"
	"strings"
)

// Fallback is the store-backed search used when Meilisearch is unavailable.
type Fallback interface {
	SearchServices(ctx context.Context, query string, limit int) ([]Result, error)
}

// Service is the facade that tries Meilisearch first and falls back to the
// SQLite substring search.
type Service struct {
	meili    *Meili
	fallback Fallback
}

// NewService creates a search service. meili may be nil if Meilisearch is not configured.
func NewService(meili *Meili, fallback Fallback) *Service {
	return &Service{meili: meili, fallback: fallback}
}

// Search tries Meilisearch if healthy, otherwise falls back to the store.
func (s *Service) Search(ctx context.Context, q Query) Response {
	if strings.TrimSpace(q.Text) == "" {
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}

	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.Printf("search: meilisearch error, falling back to sqlite: %v", err)
	}

	results, err := s.fallback.SearchServices(ctx, q.Text, q.Limit)
	if err != nil {
		log.Printf("search: sqlite fallback error: %v", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: len(results), Query: q.Text}
}

// IndexService indexes a service (fire-and-forget to Meilisearch).
func (s *Service) IndexService(record ServiceRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexService(record); err != nil {
			log.Printf("search: index service %d: %v", record.ID, err)
		}
	}()
}

// DeleteService removes a service from the search index (fire-and-forget).
func (s *Service) DeleteService(id int64) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteService(id); err != nil {
			log.Printf("search: delete service %d: %v", id, err)
		}
	}()
}

// ReindexAll pushes the full service list to Meilisearch. Called during
// bootstrap so the index matches the database after restarts.
func (s *Service) ReindexAll(records []ServiceRecord) {
	if s.meili == nil || !s.meili.Healthy() || len(records) == 0 {
		return
	}
	if err := s.meili.IndexServices(records); err != nil {
		log.Printf("search: reindex services: %v", err)
	}
}

func nonNil(results []Result) []Result {
	if results == nil {
		return []Result{}
	}
	return results
}
