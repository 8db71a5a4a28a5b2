package party

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/packledger/packledger/internal/platform/httpx"
)

// Handler manages party endpoints. Routes are mounted twice, once per
// kind, so /parties/customers and /parties/suppliers share one handler.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers party routes for one kind.
func (h *Handler) MountRoutes(r chi.Router, kind Kind) {
	r.Post("/", h.create(kind))
	r.Get("/", h.list(kind))
	r.Get("/{id}", h.get(kind))
	r.Post("/{id}/deactivate", h.setActive(kind, false))
	r.Post("/{id}/activate", h.setActive(kind, true))
}

type createRequest struct {
	Name    string `json:"name" validate:"required"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

func (h *Handler) create(kind Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createRequest
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
			return
		}
		if err := h.validate.Struct(req); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}

		p, err := h.service.Create(r.Context(), kind, CreateInput{
			Name:    req.Name,
			Phone:   req.Phone,
			Address: req.Address,
		})
		if err != nil {
			h.logger.Error("create party", slog.Any("error", err))
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}
		httpx.JSON(w, http.StatusCreated, p)
	}
}

func (h *Handler) list(kind Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		activeOnly := r.URL.Query().Get("active") != "false"
		parties, err := h.service.List(r.Context(), kind, activeOnly)
		if err != nil {
			h.logger.Error("list parties", slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]any{"parties": parties})
	}
}

func (h *Handler) get(kind Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "invalid party ID")
			return
		}

		p, err := h.service.Get(r.Context(), kind, id)
		if errors.Is(err, ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
			return
		}
		if err != nil {
			h.logger.Error("get party", slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, p)
	}
}

func (h *Handler) setActive(kind Kind, active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "invalid party ID")
			return
		}

		var svcErr error
		if active {
			svcErr = h.service.Activate(r.Context(), kind, id)
		} else {
			svcErr = h.service.Deactivate(r.Context(), kind, id)
		}
		if errors.Is(svcErr, ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", svcErr.Error())
			return
		}
		if svcErr != nil {
			h.logger.Error("toggle party", slog.Any("error", svcErr))
			httpx.RespondError(w, svcErr)
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]any{"id": id, "active": active})
	}
}
