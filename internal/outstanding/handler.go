package outstanding

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/packledger/packledger/internal/platform/httpx"
)

// Handler manages outstanding balance endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers outstanding routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/customers", h.customerOutstanding)
	r.Get("/suppliers", h.supplierOutstanding)
	r.Get("/customers/{id}/statement", h.customerStatement)
	r.Get("/suppliers/{id}/statement", h.supplierStatement)
}

func (h *Handler) customerOutstanding(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))

	result, err := h.service.CustomerOutstanding(r.Context(), page)
	if err != nil {
		h.logger.Error("customer outstanding", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) supplierOutstanding(w http.ResponseWriter, r *http.Request) {
	groups, err := h.service.SupplierOutstanding(r.Context())
	if err != nil {
		h.logger.Error("supplier outstanding", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"groups": groups})
}

func (h *Handler) customerStatement(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "invalid customer ID")
		return
	}

	stmt, err := h.service.CustomerStatement(r.Context(), id)
	if err != nil {
		h.respondStatementError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stmt)
}

func (h *Handler) supplierStatement(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "invalid supplier ID")
		return
	}

	stmt, err := h.service.SupplierStatement(r.Context(), id)
	if err != nil {
		h.respondStatementError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stmt)
}

func (h *Handler) respondStatementError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNoCustomerOutstanding), errors.Is(err, ErrNoSupplierOutstanding):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	default:
		h.logger.Error("build statement", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
