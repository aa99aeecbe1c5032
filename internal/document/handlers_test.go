package document

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-labquote/internal/events"
	"github.com/noah-isme/backend-labquote/internal/quote"
)

func TestDocumentEndpoints(t *testing.T) {
	catSvc := testCatalog(t)
	quotes := &quote.Service{
		Store:       quote.NewMemoryStore(0),
		Catalog:     catSvc,
		PrivateBase: 710,
		TouristBase: 890,
	}
	var exported []events.Event
	bus := &events.Bus{Notifiers: []events.Notifier{
		events.FuncNotifier(func(_ context.Context, ev events.Event) error {
			exported = append(exported, ev)
			return nil
		}),
	}}
	h := &Handler{Quotes: quotes, Builder: &Builder{Catalog: catSvc, TaxRateBps: 1800}, Events: bus}

	r := chi.NewRouter()
	r.Get("/quotes/{id}/document", h.CustomerQuote)
	r.Get("/quotes/{id}/staff-sheet", h.StaffSheet)

	view, err := quotes.Create(context.Background(), "private")
	require.NoError(t, err)
	_, err = quotes.AddItem(context.Background(), view.ID, "5022")
	require.NoError(t, err)
	exported = exported[:0]

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/quotes/"+view.ID+"/document", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data CustomerQuote `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, view.ID, body.Data.QuoteID)
	require.Equal(t, body.Data.Tax.Total, body.Data.Tax.BeforeTax+body.Data.Tax.Tax)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/quotes/"+view.ID+"/staff-sheet", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var sheet struct {
		Data StaffSheet `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sheet))
	require.Len(t, sheet.Data.Rows, 1)

	require.Len(t, exported, 2)
	require.Equal(t, events.TopicQuoteExported, exported[0].Topic)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/quotes/missing/document", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}
