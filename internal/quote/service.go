package quote

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-labquote/internal/catalog"
	"github.com/noah-isme/backend-labquote/internal/events"
	"github.com/noah-isme/backend-labquote/internal/lock"
	"github.com/noah-isme/backend-labquote/internal/obs"
	"github.com/noah-isme/backend-labquote/internal/pricing"
)

// ErrInvalidInput is returned when the provided payload is invalid.
var ErrInvalidInput = errors.New("invalid input")

// ErrUnknownTest indicates the code does not exist in the loaded catalog.
var ErrUnknownTest = errors.New("unknown test code")

// Service owns quote sessions: selection mutations, discount knobs, and
// variant switches. Every mutation runs to completion before the next one
// for the same quote, reproducing single-event-loop semantics; with a Redis
// store that is a per-quote lock, otherwise a process-wide mutex.
type Service struct {
	Store       Store
	Catalog     *catalog.Service
	Locker      *lock.Locker
	PrivateBase pricing.Money
	TouristBase pricing.Money
	Events      *events.Bus
	Now         func() time.Time

	mu sync.Mutex
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) baseFee(v pricing.Variant) pricing.Money {
	if v == pricing.VariantTourist {
		return s.TouristBase
	}
	return s.PrivateBase
}

// Create opens a new quote session. An empty variant defaults to private.
func (s *Service) Create(ctx context.Context, variant string) (View, error) {
	if s == nil || s.Store == nil || s.Catalog == nil {
		return View{}, errors.New("quote service not configured")
	}
	v := pricing.VariantPrivate
	if variant != "" {
		parsed, ok := pricing.ParseVariant(variant)
		if !ok {
			return View{}, ErrInvalidInput
		}
		v = parsed
	}
	now := s.now()
	q := Quote{
		ID:        uuid.NewString(),
		Variant:   v,
		Items:     []Line{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Store.Put(ctx, q); err != nil {
		return View{}, err
	}
	if obs.QuoteCreatedTotal != nil {
		obs.QuoteCreatedTotal.Inc()
	}
	if s.Events != nil {
		_ = s.Events.Emit(ctx, events.TopicQuoteCreated, q.ID, map[string]any{"variant": string(v)})
	}
	return s.view(q), nil
}

// Get loads a quote and recomputes its totals.
func (s *Service) Get(ctx context.Context, id string) (View, error) {
	if s == nil || s.Store == nil {
		return View{}, errors.New("quote service not configured")
	}
	q, err := s.Store.Get(ctx, id)
	if err != nil {
		return View{}, err
	}
	return s.view(q), nil
}

// AddItem appends a catalog test to the selection. Adding an already
// selected code is a no-op; a successful add moves the details focus to the
// new item.
func (s *Service) AddItem(ctx context.Context, id, code string) (View, error) {
	code = catalog.NormalizeCode(code)
	if code == "" {
		return View{}, ErrInvalidInput
	}
	if state, _ := s.Catalog.State(); state == catalog.StateLoading {
		return View{}, catalog.ErrLoading
	}
	item, ok := s.Catalog.Item(code)
	if !ok {
		return View{}, ErrUnknownTest
	}
	return s.mutate(ctx, id, func(q *Quote) bool {
		if q.indexOf(code) >= 0 {
			countItemEvent("add", "duplicate")
			return false
		}
		q.Items = append(q.Items, Line{Code: string(item.Code), Name: item.Name})
		q.FocusCode = string(item.Code)
		countItemEvent("add", "added")
		if s.Events != nil {
			_ = s.Events.Emit(ctx, events.TopicQuoteItemAdded, q.ID, map[string]any{
				"code": string(item.Code),
				"name": item.Name,
			})
		}
		return true
	})
}

// RemoveItem drops a code from the selection. Removing an absent code is a
// no-op. When the selection empties the focus clears; otherwise it moves to
// the last remaining item.
func (s *Service) RemoveItem(ctx context.Context, id, code string) (View, error) {
	code = catalog.NormalizeCode(code)
	if code == "" {
		return View{}, ErrInvalidInput
	}
	return s.mutate(ctx, id, func(q *Quote) bool {
		idx := q.indexOf(code)
		if idx < 0 {
			countItemEvent("remove", "absent")
			return false
		}
		q.Items = append(q.Items[:idx], q.Items[idx+1:]...)
		if len(q.Items) == 0 {
			q.FocusCode = ""
		} else {
			q.FocusCode = q.Items[len(q.Items)-1].Code
		}
		countItemEvent("remove", "removed")
		if s.Events != nil {
			_ = s.Events.Emit(ctx, events.TopicQuoteItemRemoved, q.ID, map[string]any{"code": code})
		}
		return true
	})
}

// SetDiscount updates one discount knob. Nil fields preserve the stored
// value, so the gate can be toggled without losing the percentage.
func (s *Service) SetDiscount(ctx context.Context, id string, kind DiscountKind, percent *float64, enabled *bool) (View, error) {
	if percent == nil && enabled == nil {
		return s.Get(ctx, id)
	}
	return s.mutate(ctx, id, func(q *Quote) bool {
		var d *pricing.Discount
		switch kind {
		case DiscountBase:
			d = &q.Base
		case DiscountTests:
			d = &q.Tests
		case DiscountOverall:
			d = &q.Overall
		default:
			return false
		}
		if percent != nil {
			d.Percent = *percent
		}
		if enabled != nil {
			d.Enabled = *enabled
		}
		return true
	})
}

// SetVariant switches the active price list and re-derives every total.
func (s *Service) SetVariant(ctx context.Context, id, variant string) (View, error) {
	v, ok := pricing.ParseVariant(variant)
	if !ok {
		return View{}, ErrInvalidInput
	}
	return s.mutate(ctx, id, func(q *Quote) bool {
		if q.Variant == v {
			return false
		}
		q.Variant = v
		return true
	})
}

// mutate loads, transforms, and persists a quote under the mutation lock.
// fn reports whether the quote changed; unchanged quotes are not rewritten.
func (s *Service) mutate(ctx context.Context, id string, fn func(*Quote) bool) (View, error) {
	if s == nil || s.Store == nil {
		return View{}, errors.New("quote service not configured")
	}
	var result Quote
	run := func(ctx context.Context) error {
		q, err := s.Store.Get(ctx, id)
		if err != nil {
			return err
		}
		if fn(&q) {
			q.UpdatedAt = s.now()
			if err := s.Store.Put(ctx, q); err != nil {
				return err
			}
		}
		result = q
		return nil
	}
	var err error
	if s.Locker != nil {
		err = s.Locker.WithLock(ctx, "quote:lock:"+id, 10*time.Second, run)
	} else {
		s.mu.Lock()
		err = run(ctx)
		s.mu.Unlock()
	}
	if err != nil {
		return View{}, err
	}
	return s.view(result), nil
}

// view recomputes the complete derived state from scratch. This is the
// recompute-the-world step that keeps every displayed figure consistent.
func (s *Service) view(q Quote) View {
	items := make([]ItemView, 0, len(q.Items))
	prices := make([]pricing.Money, 0, len(q.Items))
	for _, line := range q.Items {
		price := s.Catalog.PriceOf(line.Code, q.Variant)
		items = append(items, ItemView{Code: line.Code, Name: line.Name, Price: price})
		prices = append(prices, price)
	}
	summary := pricing.Compute(pricing.Input{
		BaseFee:    s.baseFee(q.Variant),
		ItemPrices: prices,
		Base:       q.Base,
		Tests:      q.Tests,
		Overall:    q.Overall,
	})
	_, notice := s.Catalog.State()
	return View{
		ID:        q.ID,
		Variant:   q.Variant,
		Items:     items,
		Base:      q.Base,
		Tests:     q.Tests,
		Overall:   q.Overall,
		Summary:   summary,
		Focus:     s.focusView(q),
		Notice:    notice,
		CreatedAt: q.CreatedAt,
		UpdatedAt: q.UpdatedAt,
	}
}

func (s *Service) focusView(q Quote) *FocusView {
	if q.FocusCode == "" {
		return nil
	}
	name := q.FocusCode
	if idx := q.indexOf(q.FocusCode); idx >= 0 {
		name = q.Items[idx].Name
	}
	focus := &FocusView{Code: q.FocusCode, Name: name}
	if details, ok := s.Catalog.DetailsOf(q.FocusCode); ok {
		focus.Details = &details
	} else {
		focus.Placeholder = "no handling details available for this test"
	}
	return focus
}

func countItemEvent(op, outcome string) {
	if obs.QuoteItemEventsTotal != nil {
		obs.QuoteItemEventsTotal.WithLabelValues(op, outcome).Inc()
	}
}
