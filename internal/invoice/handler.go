package invoice

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/packledger/packledger/internal/party"
	"github.com/packledger/packledger/internal/platform/httpx"
	"github.com/packledger/packledger/internal/settlement"
	"github.com/packledger/packledger/internal/shared"
	"github.com/packledger/packledger/internal/stock"
)

// Handler manages invoice endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers invoice routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/sales", h.recordSale)
	r.Get("/sales", h.listSales)
	r.Get("/sales/{id}", h.getSale)
	r.Post("/purchases", h.recordPurchase)
	r.Get("/purchases", h.listPurchases)
	r.Get("/purchases/{id}", h.getPurchase)
}

type saleLineRequest struct {
	BundleID  int64           `json:"bundle_id" validate:"required,gt=0"`
	PacksQty  int64           `json:"packs_qty" validate:"required,gt=0"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type recordSaleRequest struct {
	CustomerID   int64             `json:"customer_id" validate:"required,gt=0"`
	InvoiceNo    string            `json:"invoice_no" validate:"required"`
	InvoiceDate  string            `json:"invoice_date"`
	Lines        []saleLineRequest `json:"lines" validate:"required,min=1,dive"`
	Discount     decimal.Decimal   `json:"discount"`
	OtherCharges decimal.Decimal   `json:"other_charges"`
	Note         string            `json:"note"`
	PayNow       bool              `json:"pay_now"`
	PayAmount    decimal.Decimal   `json:"pay_amount"`
}

type purchaseLineRequest struct {
	BundleID          int64           `json:"bundle_id" validate:"required,gt=0"`
	BundlesQty        int64           `json:"bundles_qty" validate:"required,gt=0"`
	UnitCostPerBundle decimal.Decimal `json:"unit_cost_per_bundle"`
}

type recordPurchaseRequest struct {
	SupplierID   int64                 `json:"supplier_id" validate:"required,gt=0"`
	InvoiceNo    string                `json:"invoice_no" validate:"required"`
	InvoiceDate  string                `json:"invoice_date"`
	Lines        []purchaseLineRequest `json:"lines" validate:"required,min=1,dive"`
	Discount     decimal.Decimal       `json:"discount"`
	OtherCharges decimal.Decimal       `json:"other_charges"`
	Note         string                `json:"note"`
}

func (h *Handler) recordSale(w http.ResponseWriter, r *http.Request) {
	var req recordSaleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	invoiceDate, err := parseDate(req.InvoiceDate)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invoice_date must be YYYY-MM-DD")
		return
	}

	input := RecordSaleInput{
		CustomerID:   req.CustomerID,
		InvoiceNo:    req.InvoiceNo,
		InvoiceDate:  invoiceDate,
		Discount:     req.Discount,
		OtherCharges: req.OtherCharges,
		Note:         req.Note,
		PayNow:       req.PayNow,
		PayAmount:    req.PayAmount,
	}
	for _, line := range req.Lines {
		input.Lines = append(input.Lines, SaleLineInput{
			BundleID:  line.BundleID,
			PacksQty:  line.PacksQty,
			UnitPrice: line.UnitPrice,
		})
	}

	result, err := h.service.RecordSale(r.Context(), input)
	if err != nil {
		h.respondInvoiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) recordPurchase(w http.ResponseWriter, r *http.Request) {
	var req recordPurchaseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	invoiceDate, err := parseDate(req.InvoiceDate)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invoice_date must be YYYY-MM-DD")
		return
	}

	input := RecordPurchaseInput{
		SupplierID:   req.SupplierID,
		InvoiceNo:    req.InvoiceNo,
		InvoiceDate:  invoiceDate,
		Discount:     req.Discount,
		OtherCharges: req.OtherCharges,
		Note:         req.Note,
	}
	for _, line := range req.Lines {
		input.Lines = append(input.Lines, PurchaseLineInput{
			BundleID:          line.BundleID,
			BundlesQty:        line.BundlesQty,
			UnitCostPerBundle: line.UnitCostPerBundle,
		})
	}

	created, err := h.service.RecordPurchase(r.Context(), input)
	if err != nil {
		h.respondInvoiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) getSale(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "invalid invoice ID")
		return
	}
	inv, err := h.service.GetSalesInvoice(r.Context(), id)
	if err != nil {
		h.respondInvoiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) getPurchase(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "invalid invoice ID")
		return
	}
	inv, err := h.service.GetPurchaseInvoice(r.Context(), id)
	if err != nil {
		h.respondInvoiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) listSales(w http.ResponseWriter, r *http.Request) {
	invoices, err := h.service.ListSalesInvoices(r.Context(), listRequestFromQuery(r))
	if err != nil {
		h.logger.Error("list sales invoices", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"invoices": invoices})
}

func (h *Handler) listPurchases(w http.ResponseWriter, r *http.Request) {
	invoices, err := h.service.ListPurchaseInvoices(r.Context(), listRequestFromQuery(r))
	if err != nil {
		h.logger.Error("list purchase invoices", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"invoices": invoices})
}

func (h *Handler) respondInvoiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicateNo):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, ErrNoLines), errors.Is(err, ErrInvalidLine),
		errors.Is(err, shared.ErrInactiveParty),
		errors.Is(err, settlement.ErrNonPositiveAmount):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, stock.ErrNegativeStock):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, stock.ErrBundleNotFound), errors.Is(err, party.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	default:
		h.logger.Error("record invoice", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func listRequestFromQuery(r *http.Request) ListRequest {
	partyID, _ := strconv.ParseInt(r.URL.Query().Get("party_id"), 10, 64)
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	return ListRequest{PartyID: partyID, Limit: limit, Offset: offset}
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", s)
}
