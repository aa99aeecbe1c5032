package document

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/backend-labquote/internal/common"
	"github.com/noah-isme/backend-labquote/internal/events"
	"github.com/noah-isme/backend-labquote/internal/obs"
	"github.com/noah-isme/backend-labquote/internal/quote"
)

// Handler serves quote exports.
type Handler struct {
	Quotes  *quote.Service
	Builder *Builder
	Events  *events.Bus
}

// CustomerQuote renders the priced customer document.
func (h *Handler) CustomerQuote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	view, err := h.Quotes.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	doc := h.Builder.CustomerQuote(view)
	h.countBuild(r, id, "customer")
	common.JSON(w, http.StatusOK, map[string]any{"data": doc})
}

// StaffSheet renders the internal sample-handling worksheet.
func (h *Handler) StaffSheet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	view, err := h.Quotes.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	sheet := h.Builder.StaffSheet(view)
	h.countBuild(r, id, "staff")
	common.JSON(w, http.StatusOK, map[string]any{"data": sheet})
}

func (h *Handler) countBuild(r *http.Request, id, kind string) {
	if obs.DocumentBuildTotal != nil {
		obs.DocumentBuildTotal.WithLabelValues(kind).Inc()
	}
	if h.Events != nil {
		_ = h.Events.Emit(r.Context(), events.TopicQuoteExported, id, map[string]any{"kind": kind})
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, quote.ErrNotFound) {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "quote not found", nil)
		return
	}
	common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to build document", nil)
}
