package settlement

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/packledger/packledger/internal/shared"
)

type fakeRepo struct {
	balances    map[string]InvoiceBalance
	payments    []Payment
	allocations []Allocation
	credits     []CreditEntry
	nextID      int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{balances: make(map[string]InvoiceBalance)}
}

func balKey(t InvoiceType, id int64) string {
	return string(t) + ":" + decimal.NewFromInt(id).String()
}

func (f *fakeRepo) setInvoice(t InvoiceType, id int64, no string, partyID int64, total, paid string) {
	totalD := decimal.RequireFromString(total)
	paidD := decimal.RequireFromString(paid)
	f.balances[balKey(t, id)] = InvoiceBalance{
		InvoiceID:   id,
		InvoiceType: t,
		InvoiceNo:   no,
		PartyID:     partyID,
		Total:       totalD,
		Paid:        paidD,
		BalanceDue:  totalD.Sub(paidD),
	}
}

func (f *fakeRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	snapshot := struct {
		payments    []Payment
		allocations []Allocation
		credits     []CreditEntry
		nextID      int64
	}{
		payments:    append([]Payment(nil), f.payments...),
		allocations: append([]Allocation(nil), f.allocations...),
		credits:     append([]CreditEntry(nil), f.credits...),
		nextID:      f.nextID,
	}
	if err := fn(ctx, (*fakeTx)(f)); err != nil {
		f.payments = snapshot.payments
		f.allocations = snapshot.allocations
		f.credits = snapshot.credits
		f.nextID = snapshot.nextID
		return err
	}
	return nil
}

func (f *fakeRepo) ListPayments(_ context.Context, req ListPaymentsRequest) ([]Payment, error) {
	var out []Payment
	for _, p := range f.payments {
		if req.PartyType != "" && p.PartyType != req.PartyType {
			continue
		}
		if req.Source != "" && p.Source != req.Source {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeRepo) ListCreditEntries(_ context.Context, partyType PartyType, partyID int64) ([]CreditEntry, error) {
	var out []CreditEntry
	for _, e := range f.credits {
		if e.PartyType != partyType {
			continue
		}
		if partyType == PartyCustomer && e.CustomerID != partyID {
			continue
		}
		if partyType == PartySupplier && e.SupplierID != partyID {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (f *fakeRepo) CreditBalances(_ context.Context, partyType PartyType) ([]CreditBalance, error) {
	sums := map[int64]decimal.Decimal{}
	for _, e := range f.credits {
		if e.PartyType != partyType {
			continue
		}
		id := e.CustomerID
		if partyType == PartySupplier {
			id = e.SupplierID
		}
		sums[id] = sums[id].Add(e.Amount)
	}
	var out []CreditBalance
	for id, sum := range sums {
		out = append(out, CreditBalance{PartyID: id, Balance: sum})
	}
	return out, nil
}

type fakeTx fakeRepo

func (f *fakeTx) LockInvoiceBalance(_ context.Context, invoiceType InvoiceType, invoiceID int64) (InvoiceBalance, error) {
	bal, ok := f.balances[balKey(invoiceType, invoiceID)]
	if !ok {
		return InvoiceBalance{}, ErrInvoiceNotFound
	}
	// Recompute from allocations written in this fake, the way the SQL
	// repository recomputes inside the transaction.
	paid := bal.Paid
	for _, a := range f.allocations {
		if a.InvoiceType != invoiceType {
			continue
		}
		if invoiceType == InvoiceSale && a.SalesInvoiceID == invoiceID {
			paid = paid.Add(a.AmountApplied)
		}
		if invoiceType == InvoicePurchase && a.PurchaseInvoiceID == invoiceID {
			paid = paid.Add(a.AmountApplied)
		}
	}
	bal.Paid = paid
	bal.BalanceDue = bal.Total.Sub(paid)
	return bal, nil
}

func (f *fakeTx) InsertPayment(_ context.Context, p Payment) (int64, error) {
	f.nextID++
	p.ID = f.nextID
	f.payments = append(f.payments, p)
	return p.ID, nil
}

func (f *fakeTx) InsertAllocation(_ context.Context, a Allocation) (int64, error) {
	f.nextID++
	a.ID = f.nextID
	f.allocations = append(f.allocations, a)
	return a.ID, nil
}

func (f *fakeTx) InsertCreditEntry(_ context.Context, e CreditEntry) (int64, error) {
	f.nextID++
	e.ID = f.nextID
	f.credits = append(f.credits, e)
	return e.ID, nil
}

type fakeAudit struct {
	logs []shared.AuditLog
}

func (f *fakeAudit) Record(_ context.Context, log shared.AuditLog) error {
	f.logs = append(f.logs, log)
	return nil
}

type fakeCache struct {
	invalidations int
}

func (f *fakeCache) InvalidateOutstanding(context.Context) {
	f.invalidations++
}

func newTestService(repo *fakeRepo) (*Service, *fakeAudit, *fakeCache) {
	audit := &fakeAudit{}
	cache := &fakeCache{}
	return NewService(repo, audit, cache), audit, cache
}

func TestMarkInvoicePaidSettlesFullBalance(t *testing.T) {
	repo := newFakeRepo()
	repo.setInvoice(InvoiceSale, 1, "SI-0001", 7, "1500", "500")
	svc, audit, cache := newTestService(repo)

	result, err := svc.MarkInvoicePaid(context.Background(), MarkPaidInput{
		InvoiceType: InvoiceSale,
		InvoiceID:   1,
	})
	require.NoError(t, err)
	require.True(t, result.Settled)
	require.Equal(t, "SI-0001", result.InvoiceNo)
	require.True(t, result.Applied.Equal(decimal.RequireFromString("1000")))
	require.True(t, result.Payment.Amount.Equal(decimal.RequireFromString("1000")))
	require.Equal(t, PartyCustomer, result.Payment.PartyType)
	require.Equal(t, DirectionIn, result.Payment.Direction)
	require.Equal(t, SourceMarkPaid, result.Payment.Source)
	require.Equal(t, "cash", result.Payment.Method)
	require.Equal(t, int64(7), result.Payment.CustomerID)

	require.Len(t, repo.payments, 1)
	require.Len(t, repo.allocations, 1)
	require.Empty(t, repo.credits)
	require.Equal(t, int64(1), repo.allocations[0].SalesInvoiceID)
	require.Len(t, audit.logs, 1)
	require.Equal(t, "settlement:mark_paid", audit.logs[0].Action)
	require.Equal(t, 1, cache.invalidations)
}

func TestMarkInvoicePaidPurchaseUsesSupplierAndOutDirection(t *testing.T) {
	repo := newFakeRepo()
	repo.setInvoice(InvoicePurchase, 3, "PI-0009", 11, "800", "0")
	svc, _, _ := newTestService(repo)

	result, err := svc.MarkInvoicePaid(context.Background(), MarkPaidInput{
		InvoiceType: InvoicePurchase,
		InvoiceID:   3,
	})
	require.NoError(t, err)
	require.Equal(t, PartySupplier, result.Payment.PartyType)
	require.Equal(t, DirectionOut, result.Payment.Direction)
	require.Equal(t, int64(11), result.Payment.SupplierID)
	require.Zero(t, result.Payment.CustomerID)
	require.Equal(t, int64(3), repo.allocations[0].PurchaseInvoiceID)
}

func TestMarkInvoicePaidAlreadySettledWritesNothing(t *testing.T) {
	repo := newFakeRepo()
	repo.setInvoice(InvoiceSale, 1, "SI-0001", 7, "1000", "1000")
	svc, audit, cache := newTestService(repo)

	_, err := svc.MarkInvoicePaid(context.Background(), MarkPaidInput{
		InvoiceType: InvoiceSale,
		InvoiceID:   1,
	})
	require.ErrorIs(t, err, ErrNothingOutstanding)
	require.Empty(t, repo.payments)
	require.Empty(t, repo.allocations)
	require.Empty(t, audit.logs)
	require.Zero(t, cache.invalidations)
}

func TestMarkInvoicePaidUnknownInvoice(t *testing.T) {
	repo := newFakeRepo()
	svc, _, _ := newTestService(repo)

	_, err := svc.MarkInvoicePaid(context.Background(), MarkPaidInput{
		InvoiceType: InvoiceSale,
		InvoiceID:   99,
	})
	require.ErrorIs(t, err, ErrInvoiceNotFound)
}

func TestRecordPartialPaymentBelowBalance(t *testing.T) {
	repo := newFakeRepo()
	repo.setInvoice(InvoiceSale, 1, "SI-0001", 7, "1000", "0")
	svc, _, _ := newTestService(repo)

	result, err := svc.RecordPartialPayment(context.Background(), PartialPaymentInput{
		InvoiceType: InvoiceSale,
		InvoiceID:   1,
		Amount:      decimal.RequireFromString("400"),
	})
	require.NoError(t, err)
	require.False(t, result.Settled)
	require.True(t, result.Applied.Equal(decimal.RequireFromString("400")))
	require.True(t, result.Remainder.IsZero())
	require.Len(t, repo.allocations, 1)
	require.Empty(t, repo.credits)
}

func TestRecordPartialPaymentOverpaymentBecomesCredit(t *testing.T) {
	repo := newFakeRepo()
	repo.setInvoice(InvoiceSale, 1, "SI-0001", 7, "1000", "700")
	svc, _, _ := newTestService(repo)

	result, err := svc.RecordPartialPayment(context.Background(), PartialPaymentInput{
		InvoiceType: InvoiceSale,
		InvoiceID:   1,
		Amount:      decimal.RequireFromString("500"),
	})
	require.NoError(t, err)
	require.True(t, result.Settled)
	require.True(t, result.Applied.Equal(decimal.RequireFromString("300")))
	require.True(t, result.Remainder.Equal(decimal.RequireFromString("200")))

	require.Len(t, repo.credits, 1)
	require.Equal(t, PartyCustomer, repo.credits[0].PartyType)
	require.Equal(t, int64(7), repo.credits[0].CustomerID)
	require.True(t, repo.credits[0].Amount.Equal(decimal.RequireFromString("200")))
	require.Equal(t, repo.payments[0].ID, repo.credits[0].PaymentID)
}

func TestRecordPartialPaymentOnSettledInvoiceIsPureCredit(t *testing.T) {
	repo := newFakeRepo()
	repo.setInvoice(InvoiceSale, 1, "SI-0001", 7, "1000", "1000")
	svc, _, _ := newTestService(repo)

	result, err := svc.RecordPartialPayment(context.Background(), PartialPaymentInput{
		InvoiceType: InvoiceSale,
		InvoiceID:   1,
		Amount:      decimal.RequireFromString("150"),
	})
	require.NoError(t, err)
	require.False(t, result.Settled)
	require.True(t, result.Applied.IsZero())
	require.True(t, result.Remainder.Equal(decimal.RequireFromString("150")))

	// No zero-amount allocation row is ever written.
	require.Empty(t, repo.allocations)
	require.Len(t, repo.credits, 1)
}

func TestRecordPartialPaymentRejectsNonPositiveAmount(t *testing.T) {
	repo := newFakeRepo()
	repo.setInvoice(InvoiceSale, 1, "SI-0001", 7, "1000", "0")
	svc, _, _ := newTestService(repo)

	_, err := svc.RecordPartialPayment(context.Background(), PartialPaymentInput{
		InvoiceType: InvoiceSale,
		InvoiceID:   1,
		Amount:      decimal.Zero,
	})
	require.ErrorIs(t, err, ErrNonPositiveAmount)
	require.Empty(t, repo.payments)
}

func TestRecordPartialPaymentSupplierAdvance(t *testing.T) {
	repo := newFakeRepo()
	repo.setInvoice(InvoicePurchase, 5, "PI-0002", 21, "600", "600")
	svc, _, _ := newTestService(repo)

	_, err := svc.RecordPartialPayment(context.Background(), PartialPaymentInput{
		InvoiceType: InvoicePurchase,
		InvoiceID:   5,
		Amount:      decimal.RequireFromString("90"),
	})
	require.NoError(t, err)
	require.Len(t, repo.credits, 1)
	require.Equal(t, PartySupplier, repo.credits[0].PartyType)
	require.Equal(t, int64(21), repo.credits[0].SupplierID)
	require.Zero(t, repo.credits[0].CustomerID)
}

func TestSequentialPaymentsNeverOverApply(t *testing.T) {
	repo := newFakeRepo()
	repo.setInvoice(InvoiceSale, 1, "SI-0001", 7, "1000", "0")
	svc, _, _ := newTestService(repo)

	for i := 0; i < 3; i++ {
		_, err := svc.RecordPartialPayment(context.Background(), PartialPaymentInput{
			InvoiceType: InvoiceSale,
			InvoiceID:   1,
			Amount:      decimal.RequireFromString("400"),
		})
		require.NoError(t, err)
	}

	applied := decimal.Zero
	for _, a := range repo.allocations {
		applied = applied.Add(a.AmountApplied)
	}
	credited := decimal.Zero
	for _, c := range repo.credits {
		credited = credited.Add(c.Amount)
	}
	require.True(t, applied.Equal(decimal.RequireFromString("1000")), "applied=%s", applied)
	require.True(t, credited.Equal(decimal.RequireFromString("200")), "credited=%s", credited)
}

func TestEveryPaymentAmountEqualsAllocationsPlusCredits(t *testing.T) {
	repo := newFakeRepo()
	repo.setInvoice(InvoiceSale, 1, "SI-0001", 7, "1000", "0")
	repo.setInvoice(InvoicePurchase, 2, "PI-0001", 9, "500", "100")
	svc, _, _ := newTestService(repo)

	_, err := svc.RecordPartialPayment(context.Background(), PartialPaymentInput{
		InvoiceType: InvoiceSale, InvoiceID: 1, Amount: decimal.RequireFromString("1300"),
	})
	require.NoError(t, err)
	_, err = svc.RecordPartialPayment(context.Background(), PartialPaymentInput{
		InvoiceType: InvoicePurchase, InvoiceID: 2, Amount: decimal.RequireFromString("250"),
	})
	require.NoError(t, err)
	_, err = svc.MarkInvoicePaid(context.Background(), MarkPaidInput{
		InvoiceType: InvoicePurchase, InvoiceID: 2,
	})
	require.NoError(t, err)

	for _, p := range repo.payments {
		sum := decimal.Zero
		for _, a := range repo.allocations {
			if a.PaymentID == p.ID {
				sum = sum.Add(a.AmountApplied)
			}
		}
		for _, c := range repo.credits {
			if c.PaymentID == p.ID {
				sum = sum.Add(c.Amount)
			}
		}
		require.True(t, p.Amount.Equal(sum), "payment %d: amount=%s accounted=%s", p.ID, p.Amount, sum)
	}
}

func TestListPaymentsDefaultsLimit(t *testing.T) {
	repo := newFakeRepo()
	repo.setInvoice(InvoiceSale, 1, "SI-0001", 7, "100", "0")
	svc, _, _ := newTestService(repo)

	_, err := svc.MarkInvoicePaid(context.Background(), MarkPaidInput{InvoiceType: InvoiceSale, InvoiceID: 1})
	require.NoError(t, err)

	payments, err := svc.ListPayments(context.Background(), ListPaymentsRequest{PartyType: PartyCustomer})
	require.NoError(t, err)
	require.Len(t, payments, 1)

	payments, err = svc.ListPayments(context.Background(), ListPaymentsRequest{PartyType: PartySupplier})
	require.NoError(t, err)
	require.Empty(t, payments)
}

func TestCreditBalancesAccumulatePerParty(t *testing.T) {
	repo := newFakeRepo()
	repo.setInvoice(InvoiceSale, 1, "SI-0001", 7, "100", "100")
	svc, _, _ := newTestService(repo)

	for i := 0; i < 2; i++ {
		_, err := svc.RecordPartialPayment(context.Background(), PartialPaymentInput{
			InvoiceType: InvoiceSale, InvoiceID: 1, Amount: decimal.RequireFromString("50"),
		})
		require.NoError(t, err)
	}

	balances, err := svc.CreditBalances(context.Background(), PartyCustomer)
	require.NoError(t, err)
	require.Len(t, balances, 1)
	require.True(t, balances[0].Balance.Equal(decimal.RequireFromString("100")))

	_, err = svc.CreditBalances(context.Background(), PartyType("vendor"))
	require.Error(t, err)
}
