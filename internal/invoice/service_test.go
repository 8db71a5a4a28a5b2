package invoice

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/packledger/packledger/internal/costing"
	"github.com/packledger/packledger/internal/party"
	"github.com/packledger/packledger/internal/settlement"
	"github.com/packledger/packledger/internal/shared"
	"github.com/packledger/packledger/internal/stock"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type fakeRepo struct {
	sales     []SalesInvoice
	purchases []PurchaseInvoice
	nextID    int64
}

func (f *fakeRepo) CreateSalesInvoice(_ context.Context, inv SalesInvoice) (SalesInvoice, error) {
	for _, existing := range f.sales {
		if existing.InvoiceNo == inv.InvoiceNo {
			return SalesInvoice{}, ErrDuplicateNo
		}
	}
	f.nextID++
	inv.ID = f.nextID
	for i := range inv.Lines {
		inv.Lines[i].InvoiceID = inv.ID
	}
	f.sales = append(f.sales, inv)
	return inv, nil
}

func (f *fakeRepo) CreatePurchaseInvoice(_ context.Context, inv PurchaseInvoice) (PurchaseInvoice, error) {
	f.nextID++
	inv.ID = f.nextID
	for i := range inv.Lines {
		inv.Lines[i].InvoiceID = inv.ID
	}
	f.purchases = append(f.purchases, inv)
	return inv, nil
}

func (f *fakeRepo) GetSalesInvoice(_ context.Context, id int64) (SalesInvoice, error) {
	for _, inv := range f.sales {
		if inv.ID == id {
			return inv, nil
		}
	}
	return SalesInvoice{}, ErrNotFound
}

func (f *fakeRepo) GetPurchaseInvoice(_ context.Context, id int64) (PurchaseInvoice, error) {
	for _, inv := range f.purchases {
		if inv.ID == id {
			return inv, nil
		}
	}
	return PurchaseInvoice{}, ErrNotFound
}

func (f *fakeRepo) ListSalesInvoices(context.Context, ListRequest) ([]SalesInvoice, error) {
	return f.sales, nil
}

func (f *fakeRepo) ListPurchaseInvoices(context.Context, ListRequest) ([]PurchaseInvoice, error) {
	return f.purchases, nil
}

type fakeParties struct {
	parties map[party.Kind]map[int64]party.Party
}

func (f *fakeParties) Get(_ context.Context, kind party.Kind, id int64) (party.Party, error) {
	p, ok := f.parties[kind][id]
	if !ok {
		return party.Party{}, party.ErrNotFound
	}
	return p, nil
}

type fakeCosting struct {
	costs   map[int64]decimal.Decimal
	missing []int64
}

func (f *fakeCosting) UnitCostPerPack(_ context.Context, bundleIDs []int64) (costing.Lookback, error) {
	result := costing.Lookback{CostPerPack: make(map[int64]decimal.Decimal), Missing: f.missing}
	for _, id := range bundleIDs {
		result.CostPerPack[id] = f.costs[id]
	}
	return result, nil
}

type fakeStock struct {
	bundles   map[int64]stock.Bundle
	movements []stock.MovementInput
	failOn    int64
}

func (f *fakeStock) GetBundle(_ context.Context, id int64) (stock.Bundle, error) {
	b, ok := f.bundles[id]
	if !ok {
		return stock.Bundle{}, stock.ErrBundleNotFound
	}
	return b, nil
}

func (f *fakeStock) PostMovement(_ context.Context, input stock.MovementInput) (stock.Movement, error) {
	if f.failOn != 0 && input.BundleID == f.failOn {
		return stock.Movement{}, stock.ErrNegativeStock
	}
	f.movements = append(f.movements, input)
	return stock.Movement{ID: int64(len(f.movements)), BundleID: input.BundleID}, nil
}

type fakeSettlements struct {
	inputs []settlement.PartialPaymentInput
}

func (f *fakeSettlements) RecordPartialPayment(_ context.Context, input settlement.PartialPaymentInput) (settlement.Result, error) {
	f.inputs = append(f.inputs, input)
	return settlement.Result{Payment: settlement.Payment{ID: 501, Amount: input.Amount}}, nil
}

type fakeCache struct {
	invalidations int
}

func (f *fakeCache) InvalidateOutstanding(context.Context) {
	f.invalidations++
}

type fixture struct {
	repo        *fakeRepo
	parties     *fakeParties
	costing     *fakeCosting
	stock       *fakeStock
	settlements *fakeSettlements
	cache       *fakeCache
	svc         *Service
}

func newFixture() *fixture {
	f := &fixture{
		repo: &fakeRepo{},
		parties: &fakeParties{parties: map[party.Kind]map[int64]party.Party{
			party.KindCustomer: {7: {ID: 7, Name: "Alpha", Active: true}, 8: {ID: 8, Name: "Idle", Active: false}},
			party.KindSupplier: {11: {ID: 11, Name: "Mills Co", Active: true}},
		}},
		costing: &fakeCosting{costs: map[int64]decimal.Decimal{
			1: d("25"),
			2: d("12.5"),
		}},
		stock: &fakeStock{bundles: map[int64]stock.Bundle{
			1: {ID: 1, Name: "Rice 25kg", PacksPerBundle: 20},
			2: {ID: 2, Name: "Flour 10kg", PacksPerBundle: 10},
		}},
		settlements: &fakeSettlements{},
		cache:       &fakeCache{},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.svc = NewService(logger, f.repo, f.parties, f.costing, f.stock, f.settlements, f.cache)
	return f
}

func TestRecordSaleComputesTotalsAndCosts(t *testing.T) {
	f := newFixture()

	result, err := f.svc.RecordSale(context.Background(), RecordSaleInput{
		CustomerID: 7,
		InvoiceNo:  "SI-0001",
		Lines: []SaleLineInput{
			{BundleID: 1, PacksQty: 10, UnitPrice: d("40")},
			{BundleID: 2, PacksQty: 4, UnitPrice: d("25")},
		},
		Discount:     d("50"),
		OtherCharges: d("20"),
	})
	require.NoError(t, err)

	inv := result.Invoice
	require.True(t, inv.Subtotal.Equal(d("500")))
	// 500 - 50 + 20
	require.True(t, inv.Total.Equal(d("470")))
	require.True(t, inv.Lines[0].LineTotal.Equal(d("400")))
	require.True(t, inv.Lines[0].UnitCost.Equal(d("25")))
	require.True(t, inv.Lines[1].UnitCost.Equal(d("12.5")))
	require.Empty(t, result.MissingCostBundles)

	// One outbound movement per line, linked to the invoice.
	require.Len(t, f.stock.movements, 2)
	require.Equal(t, int64(-10), f.stock.movements[0].PacksDelta)
	require.Equal(t, stock.MovementSaleOut, f.stock.movements[0].Type)
	require.Equal(t, inv.ID, f.stock.movements[0].SalesInvoiceID)
	require.Equal(t, 1, f.cache.invalidations)
	require.Empty(t, f.settlements.inputs)
}

func TestRecordSaleTotalClampedAtZero(t *testing.T) {
	f := newFixture()

	result, err := f.svc.RecordSale(context.Background(), RecordSaleInput{
		CustomerID: 7,
		InvoiceNo:  "SI-0002",
		Lines:      []SaleLineInput{{BundleID: 1, PacksQty: 1, UnitPrice: d("40")}},
		Discount:   d("100"),
	})
	require.NoError(t, err)
	require.True(t, result.Invoice.Total.IsZero())
}

func TestRecordSaleMissingCostHistoryIsNonFatal(t *testing.T) {
	f := newFixture()
	f.costing.costs = map[int64]decimal.Decimal{}
	f.costing.missing = []int64{1}

	result, err := f.svc.RecordSale(context.Background(), RecordSaleInput{
		CustomerID: 7,
		InvoiceNo:  "SI-0003",
		Lines:      []SaleLineInput{{BundleID: 1, PacksQty: 2, UnitPrice: d("40")}},
	})
	require.NoError(t, err)
	require.Equal(t, []int64{1}, result.MissingCostBundles)
	require.True(t, result.Invoice.Lines[0].UnitCost.IsZero())
	require.True(t, result.Invoice.Total.Equal(d("80")))
}

func TestRecordSalePayNowSettlesThroughEngine(t *testing.T) {
	f := newFixture()

	result, err := f.svc.RecordSale(context.Background(), RecordSaleInput{
		CustomerID: 7,
		InvoiceNo:  "SI-0004",
		Lines:      []SaleLineInput{{BundleID: 1, PacksQty: 10, UnitPrice: d("40")}},
		PayNow:     true,
	})
	require.NoError(t, err)
	require.Equal(t, int64(501), result.PaymentID)

	require.Len(t, f.settlements.inputs, 1)
	in := f.settlements.inputs[0]
	require.Equal(t, settlement.InvoiceSale, in.InvoiceType)
	require.Equal(t, result.Invoice.ID, in.InvoiceID)
	require.True(t, in.Amount.Equal(d("400")))
	require.Equal(t, settlement.SourceInvoiceEntry, in.Source)
}

func TestRecordSalePayNowPartialAmount(t *testing.T) {
	f := newFixture()

	_, err := f.svc.RecordSale(context.Background(), RecordSaleInput{
		CustomerID: 7,
		InvoiceNo:  "SI-0005",
		Lines:      []SaleLineInput{{BundleID: 1, PacksQty: 10, UnitPrice: d("40")}},
		PayNow:     true,
		PayAmount:  d("150"),
	})
	require.NoError(t, err)
	require.True(t, f.settlements.inputs[0].Amount.Equal(d("150")))
}

func TestRecordSaleInactiveCustomer(t *testing.T) {
	f := newFixture()

	_, err := f.svc.RecordSale(context.Background(), RecordSaleInput{
		CustomerID: 8,
		InvoiceNo:  "SI-0006",
		Lines:      []SaleLineInput{{BundleID: 1, PacksQty: 1, UnitPrice: d("40")}},
	})
	require.ErrorIs(t, err, shared.ErrInactiveParty)
	require.Empty(t, f.repo.sales)
}

func TestRecordSaleValidation(t *testing.T) {
	f := newFixture()

	_, err := f.svc.RecordSale(context.Background(), RecordSaleInput{CustomerID: 7, InvoiceNo: "SI-0007"})
	require.ErrorIs(t, err, ErrNoLines)

	_, err = f.svc.RecordSale(context.Background(), RecordSaleInput{
		CustomerID: 7,
		InvoiceNo:  "SI-0008",
		Lines:      []SaleLineInput{{BundleID: 1, PacksQty: 0, UnitPrice: d("40")}},
	})
	require.ErrorIs(t, err, ErrInvalidLine)

	_, err = f.svc.RecordSale(context.Background(), RecordSaleInput{
		CustomerID: 7,
		InvoiceNo:  "SI-0009",
		Lines:      []SaleLineInput{{BundleID: 1, PacksQty: 1, UnitPrice: d("-1")}},
	})
	require.ErrorIs(t, err, ErrInvalidLine)
}

func TestRecordSaleDuplicateInvoiceNo(t *testing.T) {
	f := newFixture()

	input := RecordSaleInput{
		CustomerID: 7,
		InvoiceNo:  "SI-0010",
		Lines:      []SaleLineInput{{BundleID: 1, PacksQty: 1, UnitPrice: d("40")}},
	}
	_, err := f.svc.RecordSale(context.Background(), input)
	require.NoError(t, err)

	_, err = f.svc.RecordSale(context.Background(), input)
	require.ErrorIs(t, err, ErrDuplicateNo)
}

func TestRecordPurchasePostsInboundPacks(t *testing.T) {
	f := newFixture()

	created, err := f.svc.RecordPurchase(context.Background(), RecordPurchaseInput{
		SupplierID: 11,
		InvoiceNo:  "PI-0001",
		Lines: []PurchaseLineInput{
			{BundleID: 1, BundlesQty: 3, UnitCostPerBundle: d("500")},
		},
	})
	require.NoError(t, err)
	require.True(t, created.Subtotal.Equal(d("1500")))
	require.True(t, created.Total.Equal(d("1500")))

	// 3 bundles * 20 packs per bundle, linked back to the invoice.
	require.Len(t, f.stock.movements, 1)
	require.Equal(t, int64(60), f.stock.movements[0].PacksDelta)
	require.Equal(t, stock.MovementPurchaseIn, f.stock.movements[0].Type)
	require.Equal(t, created.ID, f.stock.movements[0].PurchaseInvoiceID)
}

func TestRecordPurchaseSkipsMovementWithoutPackCount(t *testing.T) {
	f := newFixture()
	f.stock.bundles[3] = stock.Bundle{ID: 3, Name: "Legacy", PacksPerBundle: 0}

	_, err := f.svc.RecordPurchase(context.Background(), RecordPurchaseInput{
		SupplierID: 11,
		InvoiceNo:  "PI-0002",
		Lines:      []PurchaseLineInput{{BundleID: 3, BundlesQty: 2, UnitCostPerBundle: d("100")}},
	})
	require.NoError(t, err)
	require.Empty(t, f.stock.movements)
}

func TestRecordPurchaseUnknownBundle(t *testing.T) {
	f := newFixture()

	_, err := f.svc.RecordPurchase(context.Background(), RecordPurchaseInput{
		SupplierID: 11,
		InvoiceNo:  "PI-0003",
		Lines:      []PurchaseLineInput{{BundleID: 99, BundlesQty: 1, UnitCostPerBundle: d("100")}},
	})
	require.ErrorIs(t, err, stock.ErrBundleNotFound)
	require.Empty(t, f.repo.purchases)
}

func TestRecordSaleStockFailureSurfaces(t *testing.T) {
	f := newFixture()
	f.stock.failOn = 1

	_, err := f.svc.RecordSale(context.Background(), RecordSaleInput{
		CustomerID: 7,
		InvoiceNo:  "SI-0011",
		Lines:      []SaleLineInput{{BundleID: 1, PacksQty: 1000, UnitPrice: d("40")}},
	})
	require.ErrorIs(t, err, stock.ErrNegativeStock)
}
