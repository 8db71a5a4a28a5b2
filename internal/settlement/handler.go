package settlement

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/packledger/packledger/internal/observability"
	"github.com/packledger/packledger/internal/platform/httpx"
)

// Handler manages settlement endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	metrics  *observability.Metrics
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, metrics *observability.Metrics) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(),
		metrics:  metrics,
	}
}

// MountRoutes registers settlement routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/mark-paid", h.markPaid)
	r.Post("/payments", h.recordPartialPayment)
	r.Get("/payments", h.listPayments)
	r.Get("/credits/{partyType}", h.creditBalances)
	r.Get("/credits/{partyType}/{partyID}", h.listCreditEntries)
}

type markPaidRequest struct {
	InvoiceType string `json:"invoice_type" validate:"required,oneof=sale purchase"`
	InvoiceID   int64  `json:"invoice_id" validate:"required,gt=0"`
	Method      string `json:"method"`
}

type partialPaymentRequest struct {
	InvoiceType string          `json:"invoice_type" validate:"required,oneof=sale purchase"`
	InvoiceID   int64           `json:"invoice_id" validate:"required,gt=0"`
	Amount      decimal.Decimal `json:"amount" validate:"required"`
	Method      string          `json:"method"`
	Reference   string          `json:"reference"`
	Note        string          `json:"note"`
}

type settlementResponse struct {
	PaymentID int64  `json:"payment_id"`
	InvoiceNo string `json:"invoice_no"`
	Amount    string `json:"amount"`
	Applied   string `json:"applied"`
	Remainder string `json:"remainder"`
	Settled   bool   `json:"settled"`
}

func (h *Handler) markPaid(w http.ResponseWriter, r *http.Request) {
	var req markPaidRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	result, err := h.service.MarkInvoicePaid(r.Context(), MarkPaidInput{
		InvoiceType: InvoiceType(req.InvoiceType),
		InvoiceID:   req.InvoiceID,
		Method:      req.Method,
	})
	if err != nil {
		h.respondSettlementError(w, err)
		return
	}

	h.metrics.ObserveSettlement(string(result.Payment.PartyType), result.Payment.Source)
	httpx.JSON(w, http.StatusCreated, toSettlementResponse(result))
}

func (h *Handler) recordPartialPayment(w http.ResponseWriter, r *http.Request) {
	var req partialPaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	result, err := h.service.RecordPartialPayment(r.Context(), PartialPaymentInput{
		InvoiceType: InvoiceType(req.InvoiceType),
		InvoiceID:   req.InvoiceID,
		Amount:      req.Amount,
		Method:      req.Method,
		Reference:   req.Reference,
		Note:        req.Note,
	})
	if err != nil {
		h.respondSettlementError(w, err)
		return
	}

	h.metrics.ObserveSettlement(string(result.Payment.PartyType), result.Payment.Source)
	httpx.JSON(w, http.StatusCreated, toSettlementResponse(result))
}

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	payments, err := h.service.ListPayments(r.Context(), ListPaymentsRequest{
		PartyType: PartyType(r.URL.Query().Get("party_type")),
		Source:    r.URL.Query().Get("source"),
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		h.logger.Error("list payments", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"payments": payments})
}

func (h *Handler) creditBalances(w http.ResponseWriter, r *http.Request) {
	partyType := PartyType(chi.URLParam(r, "partyType"))
	balances, err := h.service.CreditBalances(r.Context(), partyType)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", err.Error())
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"balances": balances})
}

func (h *Handler) listCreditEntries(w http.ResponseWriter, r *http.Request) {
	partyType := PartyType(chi.URLParam(r, "partyType"))
	partyID, err := strconv.ParseInt(chi.URLParam(r, "partyID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "invalid party ID")
		return
	}

	entries, err := h.service.ListCreditEntries(r.Context(), partyType, partyID)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", err.Error())
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (h *Handler) respondSettlementError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvoiceNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrNonPositiveAmount):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrNothingOutstanding):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		h.logger.Error("settlement write", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func toSettlementResponse(result Result) settlementResponse {
	return settlementResponse{
		PaymentID: result.Payment.ID,
		InvoiceNo: result.InvoiceNo,
		Amount:    result.Payment.Amount.String(),
		Applied:   result.Applied.String(),
		Remainder: result.Remainder.String(),
		Settled:   result.Settled,
	}
}
