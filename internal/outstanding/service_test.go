package outstanding

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	customerInvoices []Invoice
	supplierInvoices []Invoice
	salesLines       map[int64][]StatementLine
	purchaseLines    map[int64][]StatementLine
	customerCalls    int
}

func (f *fakeRepo) CustomerOutstanding(context.Context) ([]Invoice, error) {
	f.customerCalls++
	return f.customerInvoices, nil
}

func (f *fakeRepo) SupplierOutstanding(context.Context) ([]Invoice, error) {
	return f.supplierInvoices, nil
}

func (f *fakeRepo) CustomerOutstandingByID(_ context.Context, customerID int64) ([]Invoice, error) {
	var out []Invoice
	for _, inv := range f.customerInvoices {
		if inv.PartyID == customerID {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (f *fakeRepo) SupplierOutstandingByID(_ context.Context, supplierID int64) ([]Invoice, error) {
	var out []Invoice
	for _, inv := range f.supplierInvoices {
		if inv.PartyID == supplierID {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (f *fakeRepo) SalesInvoiceLines(_ context.Context, ids []int64) (map[int64][]StatementLine, error) {
	return f.salesLines, nil
}

func (f *fakeRepo) PurchaseInvoiceLines(_ context.Context, ids []int64) (map[int64][]StatementLine, error) {
	return f.purchaseLines, nil
}

func inv(id int64, no string, day int, partyID int64, partyName, due string) Invoice {
	return Invoice{
		InvoiceID:   id,
		InvoiceNo:   no,
		InvoiceDate: time.Date(2026, 8, day, 0, 0, 0, 0, time.UTC),
		PartyID:     partyID,
		PartyName:   partyName,
		Total:       decimal.RequireFromString(due),
		BalanceDue:  decimal.RequireFromString(due),
	}
}

func TestCustomerOutstandingPaginatesBeforeGrouping(t *testing.T) {
	// Seven open invoices, newest first. Alpha owns five of them spread
	// across both pages.
	repo := &fakeRepo{customerInvoices: []Invoice{
		inv(7, "SI-0007", 28, 1, "Alpha", "100"),
		inv(6, "SI-0006", 27, 1, "Alpha", "100"),
		inv(5, "SI-0005", 26, 2, "Beta", "50"),
		inv(4, "SI-0004", 25, 1, "Alpha", "100"),
		inv(3, "SI-0003", 24, 1, "Alpha", "100"),
		inv(2, "SI-0002", 23, 2, "Beta", "50"),
		inv(1, "SI-0001", 22, 1, "Alpha", "100"),
	}}
	svc := NewService(repo, nil)

	page1, err := svc.CustomerOutstanding(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 1, page1.Page)
	require.Equal(t, 2, page1.TotalPages)
	require.Equal(t, 7, page1.TotalCount)
	require.Len(t, page1.Groups, 2)

	// Page one holds Alpha's first four invoices only, so the group sum
	// is page-scoped, not Alpha's true outstanding total.
	require.Equal(t, "Alpha", page1.Groups[0].PartyName)
	require.Equal(t, 4, page1.Groups[0].Count)
	require.True(t, page1.Groups[0].Balance.Equal(decimal.RequireFromString("400")))
	require.Equal(t, "Beta", page1.Groups[1].PartyName)
	require.Equal(t, 1, page1.Groups[1].Count)

	// Alpha reappears on page two with the remainder.
	page2, err := svc.CustomerOutstanding(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, page2.Groups, 2)
	require.Equal(t, "Beta", page2.Groups[0].PartyName)
	require.Equal(t, "Alpha", page2.Groups[1].PartyName)
	require.Equal(t, 1, page2.Groups[1].Count)
	require.True(t, page2.Groups[1].Balance.Equal(decimal.RequireFromString("100")))
}

func TestCustomerOutstandingClampsPagePastEnd(t *testing.T) {
	repo := &fakeRepo{customerInvoices: []Invoice{
		inv(1, "SI-0001", 22, 1, "Alpha", "100"),
	}}
	svc := NewService(repo, nil)

	page, err := svc.CustomerOutstanding(context.Background(), 9)
	require.NoError(t, err)
	require.Equal(t, 1, page.Page)
	require.Len(t, page.Groups, 1)

	page, err = svc.CustomerOutstanding(context.Background(), 0)
	require.NoError(t, err)
	require.Equal(t, 1, page.Page)
}

func TestCustomerOutstandingEmpty(t *testing.T) {
	svc := NewService(&fakeRepo{}, nil)

	page, err := svc.CustomerOutstanding(context.Background(), 1)
	require.NoError(t, err)
	require.Empty(t, page.Groups)
	require.Equal(t, 0, page.TotalCount)
	require.Equal(t, 1, page.TotalPages)
}

func TestSupplierOutstandingGroupsWholeList(t *testing.T) {
	// Twelve invoices across two suppliers; no page slicing on this side.
	var invoices []Invoice
	for i := 12; i >= 1; i-- {
		partyID := int64(1)
		name := "Mills Co"
		if i%3 == 0 {
			partyID = 2
			name = "Grain Ltd"
		}
		invoices = append(invoices, inv(int64(i), "PI", i, partyID, name, "10"))
	}
	repo := &fakeRepo{supplierInvoices: invoices}
	svc := NewService(repo, nil)

	groups, err := svc.SupplierOutstanding(context.Background())
	require.NoError(t, err)
	require.Len(t, groups, 2)
	require.Equal(t, "Grain Ltd", groups[0].PartyName)
	require.Equal(t, 4, groups[0].Count)
	require.True(t, groups[0].Balance.Equal(decimal.RequireFromString("40")))
	require.Equal(t, "Mills Co", groups[1].PartyName)
	require.Equal(t, 8, groups[1].Count)
	require.True(t, groups[1].Balance.Equal(decimal.RequireFromString("80")))
}

func TestCustomerStatementTotalsAndLines(t *testing.T) {
	repo := &fakeRepo{
		customerInvoices: []Invoice{
			{
				InvoiceID:   2,
				InvoiceNo:   "SI-0002",
				InvoiceDate: time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC),
				PartyID:     1,
				PartyName:   "Alpha",
				Total:       decimal.RequireFromString("900"),
				BalanceDue:  decimal.RequireFromString("400"),
			},
			{
				InvoiceID:   1,
				InvoiceNo:   "SI-0001",
				InvoiceDate: time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC),
				PartyID:     1,
				PartyName:   "Alpha",
				Total:       decimal.RequireFromString("100"),
				BalanceDue:  decimal.RequireFromString("100"),
			},
		},
		salesLines: map[int64][]StatementLine{
			2: {{BundleID: 5, BundleName: "Rice 25kg", Qty: decimal.RequireFromString("10"), UnitPrice: decimal.RequireFromString("90"), LineTotal: decimal.RequireFromString("900")}},
		},
	}
	svc := NewService(repo, nil)

	stmt, err := svc.CustomerStatement(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, "Alpha", stmt.PartyName)
	require.Equal(t, 2, stmt.InvoiceCount)
	require.True(t, stmt.TotalAmount.Equal(decimal.RequireFromString("1000")))
	require.True(t, stmt.TotalDue.Equal(decimal.RequireFromString("500")))
	require.Equal(t, "SI-0002", stmt.Invoices[0].InvoiceNo)
	require.Len(t, stmt.Invoices[0].Lines, 1)
	require.Empty(t, stmt.Invoices[1].Lines)
}

func TestCustomerStatementNothingOutstanding(t *testing.T) {
	svc := NewService(&fakeRepo{}, nil)

	_, err := svc.CustomerStatement(context.Background(), 42)
	require.ErrorIs(t, err, ErrNoCustomerOutstanding)
}

func TestSupplierStatementNothingOutstanding(t *testing.T) {
	svc := NewService(&fakeRepo{}, nil)

	_, err := svc.SupplierStatement(context.Background(), 42)
	require.ErrorIs(t, err, ErrNoSupplierOutstanding)
}
