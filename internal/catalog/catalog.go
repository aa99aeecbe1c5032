package catalog

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-labquote/internal/pricing"
)

// ErrLoading is returned while the initial catalog load is still in flight.
// Callers must surface it as a distinct "still loading" state, not as an
// empty result.
var ErrLoading = errors.New("catalog: still loading")

// State describes the catalog load lifecycle.
type State int

const (
	// StateLoading means the one-time load has not completed yet.
	StateLoading State = iota
	// StateReady means both datasets loaded.
	StateReady
	// StateDegraded means at least one dataset failed to load. The catalog
	// keeps serving whatever it has; Notice carries the user-visible text.
	StateDegraded
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateDegraded:
		return "degraded"
	default:
		return "unknown"
	}
}

// Catalog holds the read-only reference data for the session. It is loaded
// once and treated as immutable afterwards; the mutex only guards the load
// transition.
type Catalog struct {
	mu      sync.RWMutex
	items   []Item
	byCode  map[string]int
	details map[string]Details
	state   State
	notice  string
}

// New returns an empty catalog in the loading state.
func New() *Catalog {
	return &Catalog{
		byCode:  map[string]int{},
		details: map[string]Details{},
		state:   StateLoading,
	}
}

// Load pulls both datasets from the source. Failures never propagate: a
// failed price load leaves the catalog empty and degraded, a failed details
// load keeps prices but degrades, and a user-visible notice is recorded
// either way. Duplicate codes keep their first occurrence.
func (c *Catalog) Load(ctx context.Context, src Source, logger zerolog.Logger) {
	items, pricesErr := src.Prices(ctx)
	details, detailsErr := src.Details(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = c.items[:0]
	c.byCode = make(map[string]int, len(items))
	for _, item := range items {
		code := NormalizeCode(string(item.Code))
		if code == "" {
			continue
		}
		if _, exists := c.byCode[code]; exists {
			logger.Warn().Str("code", code).Msg("duplicate test code in price data")
			continue
		}
		item.Code = Code(code)
		c.byCode[code] = len(c.items)
		c.items = append(c.items, item)
	}

	c.details = make(map[string]Details, len(details))
	for code, d := range details {
		c.details[NormalizeCode(code)] = d
	}

	switch {
	case pricesErr != nil:
		c.state = StateDegraded
		c.notice = "test price data could not be loaded; quotes are unavailable"
		logger.Error().Err(pricesErr).Msg("load price data")
	case detailsErr != nil:
		c.state = StateDegraded
		c.notice = "test detail data could not be loaded; handling instructions are unavailable"
		logger.Error().Err(detailsErr).Msg("load detail data")
	case len(c.items) == 0:
		c.state = StateDegraded
		c.notice = "price data loaded but contains no tests"
		logger.Warn().Msg("price data is empty")
	default:
		c.state = StateReady
		c.notice = ""
		logger.Info().Int("tests", len(c.items)).Int("details", len(c.details)).Msg("catalog loaded")
	}
}

// State reports the load state and the user-visible notice, if any.
func (c *Catalog) State() (State, string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state, c.notice
}

// Len reports the number of loaded tests.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Get returns the item for a normalised code.
func (c *Catalog) Get(code string) (Item, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state == StateLoading {
		return Item{}, false
	}
	idx, ok := c.byCode[NormalizeCode(code)]
	if !ok {
		return Item{}, false
	}
	return c.items[idx], true
}

// PriceOf returns the variant price for a code, zero on any miss.
func (c *Catalog) PriceOf(code string, v pricing.Variant) pricing.Money {
	item, ok := c.Get(code)
	if !ok {
		return 0
	}
	return item.Price.Amount(v)
}

// DetailsOf returns handling details for a code. A miss is a valid outcome
// the caller renders as a placeholder.
func (c *Catalog) DetailsOf(code string) (Details, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.details[NormalizeCode(code)]
	return d, ok
}

// Search filters the catalog by case-insensitive substring match on name or
// code. An empty query yields no results, storage order is preserved, and
// the result set is capped at max. ErrLoading is returned until the initial
// load completes.
func (c *Catalog) Search(query string, v pricing.Variant, max int) ([]Result, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state == StateLoading {
		return nil, ErrLoading
	}
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return []Result{}, nil
	}
	if max <= 0 {
		max = defaultMaxResults
	}
	results := make([]Result, 0, max)
	for _, item := range c.items {
		if !strings.Contains(strings.ToLower(item.Name), query) &&
			!strings.Contains(strings.ToLower(string(item.Code)), query) {
			continue
		}
		results = append(results, Result{
			Code:  string(item.Code),
			Name:  item.Name,
			Price: item.Price.Amount(v),
		})
		if len(results) == max {
			break
		}
	}
	return results, nil
}

const defaultMaxResults = 15
