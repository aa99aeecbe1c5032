package catalog

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/backend-labquote/internal/common"
	"github.com/noah-isme/backend-labquote/internal/obs"
	"github.com/noah-isme/backend-labquote/internal/pricing"
)

// Handler exposes public catalog endpoints.
type Handler struct {
	service *Service
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Service *Service
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{service: cfg.Service}
}

// Search handles GET /api/v1/tests with a free-text query and price variant.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	query := r.URL.Query().Get("q")
	variant, ok := pricing.ParseVariant(r.URL.Query().Get("variant"))
	if !ok {
		variant = pricing.VariantPrivate
	}
	results, err := h.service.Search(r.Context(), query, variant)
	if err != nil {
		if errors.Is(err, ErrLoading) {
			if obs.SearchTotal != nil {
				obs.SearchTotal.WithLabelValues("loading").Inc()
			}
			common.JSONError(w, http.StatusServiceUnavailable, "CATALOG_LOADING", "test data is still loading", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "search failed", nil)
		return
	}
	outcome := "ok"
	if len(results) == 0 {
		outcome = "empty"
	}
	if obs.SearchTotal != nil {
		obs.SearchTotal.WithLabelValues(outcome).Inc()
	}

	state, notice := h.service.State()
	body := map[string]any{
		"data":  results,
		"state": state.String(),
	}
	if notice != "" {
		body["notice"] = notice
	}
	common.JSON(w, http.StatusOK, body)
}

// Details handles GET /api/v1/tests/{code}/details.
func (h *Handler) Details(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	code := chi.URLParam(r, "code")
	if state, _ := h.service.State(); state == StateLoading {
		common.JSONError(w, http.StatusServiceUnavailable, "CATALOG_LOADING", "test data is still loading", nil)
		return
	}
	item, ok := h.service.Item(code)
	if !ok {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "unknown test code", nil)
		return
	}
	body := map[string]any{
		"code": string(item.Code),
		"name": item.Name,
	}
	if details, ok := h.service.DetailsOf(code); ok {
		body["details"] = details
	} else {
		body["details"] = nil
		body["placeholder"] = "no handling details available for this test"
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": body})
}
