package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/noah-isme/backend-labquote/internal/pricing"
)

// Service orchestrates catalog lookups and result caching.
type Service struct {
	catalog    *Catalog
	cache      *Cache
	maxResults int
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Catalog    *Catalog
	Cache      *Cache
	MaxResults int
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Catalog == nil {
		return nil, errors.New("catalog: catalog is required")
	}
	maxResults := cfg.MaxResults
	if maxResults < 1 {
		maxResults = defaultMaxResults
	}
	return &Service{
		catalog:    cfg.Catalog,
		cache:      cfg.Cache,
		maxResults: maxResults,
	}, nil
}

// Search runs a capped substring search under the given variant, consulting
// the cache for repeated queries once the catalog is ready.
func (s *Service) Search(ctx context.Context, query string, v pricing.Variant) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []Result{}, nil
	}
	state, _ := s.catalog.State()
	key := ""
	if state == StateReady && s.cache != nil {
		key = searchCacheKey(query, v)
		var cached []Result
		if ok, err := s.cache.GetJSON(ctx, key, &cached); err == nil && ok {
			return cached, nil
		}
	}
	results, err := s.catalog.Search(query, v, s.maxResults)
	if err != nil {
		return nil, err
	}
	if key != "" {
		_ = s.cache.SetJSON(ctx, key, results)
	}
	return results, nil
}

// Item returns the catalog entry for a code.
func (s *Service) Item(code string) (Item, bool) {
	return s.catalog.Get(code)
}

// PriceOf returns the variant price for a code, zero on any miss.
func (s *Service) PriceOf(code string, v pricing.Variant) pricing.Money {
	return s.catalog.PriceOf(code, v)
}

// DetailsOf returns handling details for a code, reporting a miss.
func (s *Service) DetailsOf(code string) (Details, bool) {
	return s.catalog.DetailsOf(code)
}

// State reports the load state and the user-visible notice, if any.
func (s *Service) State() (State, string) {
	return s.catalog.State()
}

func searchCacheKey(query string, v pricing.Variant) string {
	return "catalog:search:" + string(v) + ":" + strings.ToLower(query)
}
