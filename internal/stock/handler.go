package stock

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/packledger/packledger/internal/platform/httpx"
	"github.com/packledger/packledger/internal/shared"
)

// Handler manages stock endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers stock routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/bundles", h.createBundle)
	r.Get("/bundles", h.listBundles)
	r.Get("/on-hand", h.onHand)
	r.Post("/movements", h.postAdjustment)
	r.Get("/movements/{bundleID}", h.listMovements)
}

type createBundleRequest struct {
	Name           string `json:"name" validate:"required"`
	PacksPerBundle int64  `json:"packs_per_bundle" validate:"gte=0"`
}

type adjustmentRequest struct {
	BundleID   int64  `json:"bundle_id" validate:"required,gt=0"`
	PacksDelta int64  `json:"packs_delta" validate:"required"`
	Note       string `json:"note"`
	Key        string `json:"idempotency_key"`
}

func (h *Handler) createBundle(w http.ResponseWriter, r *http.Request) {
	var req createBundleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	bundle, err := h.service.CreateBundle(r.Context(), CreateBundleInput{
		Name:           req.Name,
		PacksPerBundle: req.PacksPerBundle,
	})
	if err != nil {
		h.logger.Error("create bundle", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, bundle)
}

func (h *Handler) listBundles(w http.ResponseWriter, r *http.Request) {
	bundles, err := h.service.ListBundles(r.Context())
	if err != nil {
		h.logger.Error("list bundles", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"bundles": bundles})
}

func (h *Handler) onHand(w http.ResponseWriter, r *http.Request) {
	positions, err := h.service.OnHand(r.Context())
	if err != nil {
		h.logger.Error("stock on hand", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"positions": positions})
}

func (h *Handler) postAdjustment(w http.ResponseWriter, r *http.Request) {
	var req adjustmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	movement, err := h.service.PostMovement(r.Context(), MovementInput{
		BundleID:         req.BundleID,
		Type:             MovementAdjustment,
		PacksDelta:       req.PacksDelta,
		MovementDatetime: time.Now().UTC(),
		Note:             req.Note,
		IdempotencyKey:   req.Key,
	})
	if err != nil {
		h.respondMovementError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, movement)
}

func (h *Handler) listMovements(w http.ResponseWriter, r *http.Request) {
	bundleID, err := strconv.ParseInt(chi.URLParam(r, "bundleID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "invalid bundle ID")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	movements, err := h.service.ListMovements(r.Context(), bundleID, limit)
	if err != nil {
		h.logger.Error("list movements", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"movements": movements})
}

func (h *Handler) respondMovementError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrBundleNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidDelta):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrNegativeStock):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	default:
		h.logger.Error("post movement", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
