package quote

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/backend-labquote/internal/catalog"
	"github.com/noah-isme/backend-labquote/internal/common"
)

// Handler wires the quote service to HTTP.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

type createPayload struct {
	Variant string `json:"variant" validate:"omitempty,oneof=private tourist"`
}

// Create opens a new quote session.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "quote service not configured", nil)
		return
	}
	var payload createPayload
	_ = json.NewDecoder(r.Body).Decode(&payload)
	payload.Variant = strings.ToLower(strings.TrimSpace(payload.Variant))
	if h.Validate != nil {
		if err := h.Validate.Struct(payload); err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "variant must be private or tourist", nil)
			return
		}
	}
	view, err := h.Svc.Create(r.Context(), payload.Variant)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": view})
}

// Get returns the quote with freshly derived totals.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	view, err := h.Svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}

type addItemPayload struct {
	Code json.RawMessage `json:"code"`
}

// AddItem adds a catalog test to the selection.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var payload addItemPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	code := coerceCode(payload.Code)
	if code == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "test code is required", nil)
		return
	}
	view, err := h.Svc.AddItem(r.Context(), chi.URLParam(r, "id"), code)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}

// RemoveItem drops a test from the selection.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	view, err := h.Svc.RemoveItem(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "code"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}

type discountPayload struct {
	Percent json.RawMessage `json:"percent"`
	Enabled *bool           `json:"enabled"`
}

// SetDiscount updates one of the three discount knobs. Absent fields keep
// their stored values; a malformed percent coerces to zero rather than
// rejecting the request.
func (h *Handler) SetDiscount(w http.ResponseWriter, r *http.Request) {
	kind, ok := ParseDiscountKind(chi.URLParam(r, "kind"))
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "discount kind must be base, tests, or overall", nil)
		return
	}
	var payload discountPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	var percent *float64
	if len(payload.Percent) > 0 && string(payload.Percent) != "null" {
		v := coercePercent(payload.Percent)
		percent = &v
	}
	view, err := h.Svc.SetDiscount(r.Context(), chi.URLParam(r, "id"), kind, percent, payload.Enabled)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}

type variantPayload struct {
	Variant string `json:"variant" validate:"required,oneof=private tourist"`
}

// SetVariant switches between the private and tourist price lists.
func (h *Handler) SetVariant(w http.ResponseWriter, r *http.Request) {
	var payload variantPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	payload.Variant = strings.ToLower(strings.TrimSpace(payload.Variant))
	if h.Validate != nil {
		if err := h.Validate.Struct(payload); err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "variant must be private or tourist", nil)
			return
		}
	}
	view, err := h.Svc.SetVariant(r.Context(), chi.URLParam(r, "id"), payload.Variant)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "quote not found", nil)
	case errors.Is(err, ErrUnknownTest):
		common.JSONError(w, http.StatusNotFound, "UNKNOWN_TEST", "test code not found in catalog", nil)
	case errors.Is(err, catalog.ErrLoading):
		common.JSONError(w, http.StatusServiceUnavailable, "CATALOG_LOADING", "test data is still loading", nil)
	case errors.Is(err, ErrInvalidInput):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid input", nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to process quote", nil)
	}
}

// coerceCode accepts a JSON string or number and returns the trimmed code.
func coerceCode(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// coercePercent accepts a JSON number or numeric string. Anything that is
// not a finite number becomes zero.
func coercePercent(raw json.RawMessage) float64 {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if parsed, perr := strconv.ParseFloat(strings.TrimSpace(s), 64); perr == nil {
			return parsed
		}
	}
	return 0
}
