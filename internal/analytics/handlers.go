package analytics

import (
	"net/http"

	"github.com/noah-isme/backend-labquote/internal/common"
)

// Handler exposes analytics read endpoints.
type Handler struct {
	Svc *Service
}

// TopTests returns the most frequently selected lab tests.
func (h *Handler) TopTests(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "ANALYTICS_NOT_CONFIGURED", "analytics service not configured", nil)
		return
	}
	limit := common.AtoiDefault(r.URL.Query().Get("limit"), 10)
	if limit <= 0 {
		limit = 10
	}
	rows, err := h.Svc.TopTests(r.Context(), limit)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "ANALYTICS_ERROR", "unable to load top tests", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rows})
}
