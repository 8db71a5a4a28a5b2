package invoice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/packledger/packledger/internal/costing"
	"github.com/packledger/packledger/internal/party"
	"github.com/packledger/packledger/internal/settlement"
	"github.com/packledger/packledger/internal/shared"
	"github.com/packledger/packledger/internal/stock"
)

// RepositoryPort defines data access methods for invoices.
type RepositoryPort interface {
	CreateSalesInvoice(ctx context.Context, inv SalesInvoice) (SalesInvoice, error)
	CreatePurchaseInvoice(ctx context.Context, inv PurchaseInvoice) (PurchaseInvoice, error)
	GetSalesInvoice(ctx context.Context, id int64) (SalesInvoice, error)
	GetPurchaseInvoice(ctx context.Context, id int64) (PurchaseInvoice, error)
	ListSalesInvoices(ctx context.Context, req ListRequest) ([]SalesInvoice, error)
	ListPurchaseInvoices(ctx context.Context, req ListRequest) ([]PurchaseInvoice, error)
}

// PartyPort resolves counterparties.
type PartyPort interface {
	Get(ctx context.Context, kind party.Kind, id int64) (party.Party, error)
}

// CostingPort resolves unit costs at sale time.
type CostingPort interface {
	UnitCostPerPack(ctx context.Context, bundleIDs []int64) (costing.Lookback, error)
}

// StockPort posts ledger movements for invoice lines.
type StockPort interface {
	GetBundle(ctx context.Context, id int64) (stock.Bundle, error)
	PostMovement(ctx context.Context, input stock.MovementInput) (stock.Movement, error)
}

// SettlementPort settles a freshly recorded sale when the caller pays on
// the spot.
type SettlementPort interface {
	RecordPartialPayment(ctx context.Context, input settlement.PartialPaymentInput) (settlement.Result, error)
}

// CacheInvalidator drops cached outstanding groupings after a write.
type CacheInvalidator interface {
	InvalidateOutstanding(ctx context.Context)
}

// Service records invoices and their side effects. The invoice and its
// lines commit in one transaction; stock movements and the optional
// pay-now settlement are posted afterwards, each with its own guarantees.
type Service struct {
	logger      *slog.Logger
	repo        RepositoryPort
	parties     PartyPort
	costing     CostingPort
	stock       StockPort
	settlements SettlementPort
	cache       CacheInvalidator
}

// NewService builds Service instance.
func NewService(logger *slog.Logger, repo RepositoryPort, parties PartyPort, costingSvc CostingPort, stockSvc StockPort, settlements SettlementPort, cache CacheInvalidator) *Service {
	return &Service{
		logger:      logger,
		repo:        repo,
		parties:     parties,
		costing:     costingSvc,
		stock:       stockSvc,
		settlements: settlements,
		cache:       cache,
	}
}

// RecordSale creates a sales invoice. Unit costs come from the purchase
// lookback; bundles without history sell at zero cost and are reported
// back, never blocking the sale. With PayNow set the invoice is settled
// immediately through the settlement engine.
func (s *Service) RecordSale(ctx context.Context, input RecordSaleInput) (SaleResult, error) {
	if len(input.Lines) == 0 {
		return SaleResult{}, ErrNoLines
	}
	if input.Discount.Sign() < 0 || input.OtherCharges.Sign() < 0 {
		return SaleResult{}, errors.New("invoice: discount and other charges cannot be negative")
	}
	bundleIDs := make([]int64, 0, len(input.Lines))
	for _, line := range input.Lines {
		if line.PacksQty <= 0 || line.UnitPrice.Sign() < 0 {
			return SaleResult{}, ErrInvalidLine
		}
		bundleIDs = append(bundleIDs, line.BundleID)
	}

	cust, err := s.parties.Get(ctx, party.KindCustomer, input.CustomerID)
	if err != nil {
		return SaleResult{}, err
	}
	if !cust.Active {
		return SaleResult{}, shared.ErrInactiveParty
	}

	lookback, err := s.costing.UnitCostPerPack(ctx, bundleIDs)
	if err != nil {
		return SaleResult{}, err
	}

	when := input.InvoiceDate
	if when.IsZero() {
		when = time.Now().UTC()
	}

	inv := SalesInvoice{
		InvoiceNo:    input.InvoiceNo,
		CustomerID:   input.CustomerID,
		InvoiceDate:  when,
		Discount:     input.Discount,
		OtherCharges: input.OtherCharges,
		Note:         input.Note,
	}
	for _, line := range input.Lines {
		lineTotal := decimal.NewFromInt(line.PacksQty).Mul(line.UnitPrice)
		inv.Lines = append(inv.Lines, SalesLine{
			BundleID:  line.BundleID,
			PacksQty:  line.PacksQty,
			UnitPrice: line.UnitPrice,
			UnitCost:  lookback.CostPerPack[line.BundleID],
			LineTotal: lineTotal,
		})
		inv.Subtotal = inv.Subtotal.Add(lineTotal)
	}
	inv.Total = invoiceTotal(inv.Subtotal, input.Discount, input.OtherCharges)

	created, err := s.repo.CreateSalesInvoice(ctx, inv)
	if err != nil {
		return SaleResult{}, err
	}

	for _, line := range created.Lines {
		_, err := s.stock.PostMovement(ctx, stock.MovementInput{
			BundleID:         line.BundleID,
			Type:             stock.MovementSaleOut,
			PacksDelta:       -line.PacksQty,
			MovementDatetime: created.InvoiceDate,
			SalesInvoiceID:   created.ID,
			Note:             fmt.Sprintf("Sale %s", created.InvoiceNo),
			IdempotencyKey:   movementKey("SALE", created.ID, line.BundleID),
			ActorID:          input.ActorID,
		})
		if err != nil {
			return SaleResult{}, fmt.Errorf("invoice: post stock for %s: %w", created.InvoiceNo, err)
		}
	}

	result := SaleResult{Invoice: created, MissingCostBundles: lookback.Missing}

	if input.PayNow {
		amount := input.PayAmount
		if amount.Sign() <= 0 {
			amount = created.Total
		}
		settled, err := s.settlements.RecordPartialPayment(ctx, settlement.PartialPaymentInput{
			InvoiceType: settlement.InvoiceSale,
			InvoiceID:   created.ID,
			Amount:      amount,
			Source:      settlement.SourceInvoiceEntry,
			Note:        fmt.Sprintf("Payment with invoice %s", created.InvoiceNo),
			ActorID:     input.ActorID,
		})
		if err != nil {
			return SaleResult{}, fmt.Errorf("invoice: settle %s: %w", created.InvoiceNo, err)
		}
		result.PaymentID = settled.Payment.ID
	}

	if s.cache != nil {
		s.cache.InvalidateOutstanding(ctx)
	}
	if len(lookback.Missing) > 0 {
		s.logger.Warn("sale recorded with missing cost history",
			slog.String("invoice_no", created.InvoiceNo),
			slog.Any("bundle_ids", lookback.Missing))
	}
	return result, nil
}

// RecordPurchase creates a purchase invoice and posts the inbound packs,
// linking each movement to the invoice so the next sale's cost lookback
// can find it.
func (s *Service) RecordPurchase(ctx context.Context, input RecordPurchaseInput) (PurchaseInvoice, error) {
	if len(input.Lines) == 0 {
		return PurchaseInvoice{}, ErrNoLines
	}
	if input.Discount.Sign() < 0 || input.OtherCharges.Sign() < 0 {
		return PurchaseInvoice{}, errors.New("invoice: discount and other charges cannot be negative")
	}
	for _, line := range input.Lines {
		if line.BundlesQty <= 0 || line.UnitCostPerBundle.Sign() < 0 {
			return PurchaseInvoice{}, ErrInvalidLine
		}
	}

	sup, err := s.parties.Get(ctx, party.KindSupplier, input.SupplierID)
	if err != nil {
		return PurchaseInvoice{}, err
	}
	if !sup.Active {
		return PurchaseInvoice{}, shared.ErrInactiveParty
	}

	packsPerBundle := make(map[int64]int64, len(input.Lines))
	for _, line := range input.Lines {
		bundle, err := s.stock.GetBundle(ctx, line.BundleID)
		if err != nil {
			return PurchaseInvoice{}, err
		}
		packsPerBundle[line.BundleID] = bundle.PacksPerBundle
	}

	when := input.InvoiceDate
	if when.IsZero() {
		when = time.Now().UTC()
	}

	inv := PurchaseInvoice{
		InvoiceNo:    input.InvoiceNo,
		SupplierID:   input.SupplierID,
		InvoiceDate:  when,
		Discount:     input.Discount,
		OtherCharges: input.OtherCharges,
		Note:         input.Note,
	}
	for _, line := range input.Lines {
		lineTotal := decimal.NewFromInt(line.BundlesQty).Mul(line.UnitCostPerBundle)
		inv.Lines = append(inv.Lines, PurchaseLine{
			BundleID:          line.BundleID,
			BundlesQty:        line.BundlesQty,
			UnitCostPerBundle: line.UnitCostPerBundle,
			LineTotal:         lineTotal,
		})
		inv.Subtotal = inv.Subtotal.Add(lineTotal)
	}
	inv.Total = invoiceTotal(inv.Subtotal, input.Discount, input.OtherCharges)

	created, err := s.repo.CreatePurchaseInvoice(ctx, inv)
	if err != nil {
		return PurchaseInvoice{}, err
	}

	for _, line := range created.Lines {
		packs := line.BundlesQty * packsPerBundle[line.BundleID]
		if packs == 0 {
			// packs_per_bundle not set yet; nothing to move, the costing
			// lookback will flag the bundle on the next sale.
			continue
		}
		_, err := s.stock.PostMovement(ctx, stock.MovementInput{
			BundleID:          line.BundleID,
			Type:              stock.MovementPurchaseIn,
			PacksDelta:        packs,
			MovementDatetime:  created.InvoiceDate,
			PurchaseInvoiceID: created.ID,
			Note:              fmt.Sprintf("Purchase %s", created.InvoiceNo),
			IdempotencyKey:    movementKey("PURCHASE", created.ID, line.BundleID),
			ActorID:           input.ActorID,
		})
		if err != nil {
			return PurchaseInvoice{}, fmt.Errorf("invoice: post stock for %s: %w", created.InvoiceNo, err)
		}
	}

	if s.cache != nil {
		s.cache.InvalidateOutstanding(ctx)
	}
	return created, nil
}

// GetSalesInvoice returns one sales invoice with lines.
func (s *Service) GetSalesInvoice(ctx context.Context, id int64) (SalesInvoice, error) {
	return s.repo.GetSalesInvoice(ctx, id)
}

// GetPurchaseInvoice returns one purchase invoice with lines.
func (s *Service) GetPurchaseInvoice(ctx context.Context, id int64) (PurchaseInvoice, error) {
	return s.repo.GetPurchaseInvoice(ctx, id)
}

// ListSalesInvoices returns sales invoices, newest first.
func (s *Service) ListSalesInvoices(ctx context.Context, req ListRequest) ([]SalesInvoice, error) {
	if req.Limit <= 0 || req.Limit > 500 {
		req.Limit = 100
	}
	return s.repo.ListSalesInvoices(ctx, req)
}

// ListPurchaseInvoices returns purchase invoices, newest first.
func (s *Service) ListPurchaseInvoices(ctx context.Context, req ListRequest) ([]PurchaseInvoice, error) {
	if req.Limit <= 0 || req.Limit > 500 {
		req.Limit = 100
	}
	return s.repo.ListPurchaseInvoices(ctx, req)
}

// movementKey derives a stable idempotency key for the stock movement of
// one invoice line, so a retried invoice write never double-posts stock.
func movementKey(prefix string, invoiceID, bundleID int64) string {
	return uuid.NewSHA1(uuid.Nil, []byte(fmt.Sprintf("%s:%d:%d", prefix, invoiceID, bundleID))).String()
}

// invoiceTotal applies the header adjustments and clamps at zero, so an
// oversized discount can never produce a negative invoice.
func invoiceTotal(subtotal, discount, otherCharges decimal.Decimal) decimal.Decimal {
	total := subtotal.Sub(discount).Add(otherCharges)
	if total.Sign() < 0 {
		return decimal.Zero
	}
	return total
}
