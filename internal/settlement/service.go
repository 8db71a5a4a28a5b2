package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/packledger/packledger/internal/shared"
)

// RepositoryPort defines data access methods for settlement.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListPayments(ctx context.Context, req ListPaymentsRequest) ([]Payment, error)
	ListCreditEntries(ctx context.Context, partyType PartyType, partyID int64) ([]CreditEntry, error)
	CreditBalances(ctx context.Context, partyType PartyType) ([]CreditBalance, error)
}

// TxRepository exposes the writes that must share one transaction. The
// payment, its allocation and any credit entry commit or roll back
// together; a payment row can never exist without its allocation.
type TxRepository interface {
	LockInvoiceBalance(ctx context.Context, invoiceType InvoiceType, invoiceID int64) (InvoiceBalance, error)
	InsertPayment(ctx context.Context, p Payment) (int64, error)
	InsertAllocation(ctx context.Context, a Allocation) (int64, error)
	InsertCreditEntry(ctx context.Context, e CreditEntry) (int64, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// CacheInvalidator drops cached outstanding groupings after a write.
type CacheInvalidator interface {
	InvalidateOutstanding(ctx context.Context)
}

// Service coordinates settlement actions.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
	cache CacheInvalidator
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, audit AuditPort, cache CacheInvalidator) *Service {
	return &Service{repo: repo, audit: audit, cache: cache}
}

// MarkInvoicePaid settles the full outstanding balance of an invoice. The
// invoice row is locked and its balance recomputed inside the transaction,
// so a concurrent settlement cannot over-apply.
func (s *Service) MarkInvoicePaid(ctx context.Context, input MarkPaidInput) (Result, error) {
	if input.InvoiceID == 0 {
		return Result{}, errors.New("settlement: invoice ID required")
	}
	if err := validInvoiceType(input.InvoiceType); err != nil {
		return Result{}, err
	}
	method := input.Method
	if method == "" {
		method = "cash"
	}

	var result Result
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		bal, err := tx.LockInvoiceBalance(ctx, input.InvoiceType, input.InvoiceID)
		if err != nil {
			return err
		}
		if bal.BalanceDue.Sign() <= 0 {
			return ErrNothingOutstanding
		}

		payment := newPayment(bal, input.InvoiceType, method, "", fmt.Sprintf("Mark paid: %s", bal.InvoiceNo), SourceMarkPaid)
		payment.Amount = bal.BalanceDue

		paymentID, err := tx.InsertPayment(ctx, payment)
		if err != nil {
			return err
		}
		payment.ID = paymentID

		alloc := newAllocation(paymentID, input.InvoiceType, input.InvoiceID, bal.BalanceDue)
		if _, err := tx.InsertAllocation(ctx, alloc); err != nil {
			return err
		}

		result = Result{
			Payment:   payment,
			Applied:   bal.BalanceDue,
			InvoiceNo: bal.InvoiceNo,
			Settled:   true,
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	s.afterSettlement(ctx, input.ActorID, "settlement:mark_paid", result)
	return result, nil
}

// RecordPartialPayment applies a caller-chosen amount against an invoice.
// Anything above the outstanding balance is written as an explicit credit
// (customer) or advance (supplier) entry in the same transaction.
func (s *Service) RecordPartialPayment(ctx context.Context, input PartialPaymentInput) (Result, error) {
	if input.InvoiceID == 0 {
		return Result{}, errors.New("settlement: invoice ID required")
	}
	if err := validInvoiceType(input.InvoiceType); err != nil {
		return Result{}, err
	}
	if input.Amount.Sign() <= 0 {
		return Result{}, ErrNonPositiveAmount
	}
	method := input.Method
	if method == "" {
		method = "cash"
	}
	source := input.Source
	if source == "" {
		source = SourcePartialPayment
	}

	var result Result
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		bal, err := tx.LockInvoiceBalance(ctx, input.InvoiceType, input.InvoiceID)
		if err != nil {
			return err
		}

		split, err := Allocate(bal.BalanceDue, input.Amount)
		if err != nil {
			return err
		}

		note := input.Note
		if note == "" {
			note = fmt.Sprintf("Partial payment for %s", bal.InvoiceNo)
		}
		payment := newPayment(bal, input.InvoiceType, method, input.Reference, note, source)
		payment.Amount = input.Amount

		paymentID, err := tx.InsertPayment(ctx, payment)
		if err != nil {
			return err
		}
		payment.ID = paymentID

		if split.Apply.Sign() > 0 {
			alloc := newAllocation(paymentID, input.InvoiceType, input.InvoiceID, split.Apply)
			if _, err := tx.InsertAllocation(ctx, alloc); err != nil {
				return err
			}
		}
		if split.Remainder.Sign() > 0 {
			entry := CreditEntry{
				PartyType: partyOf(input.InvoiceType),
				PaymentID: paymentID,
				Amount:    split.Remainder,
			}
			if input.InvoiceType == InvoiceSale {
				entry.CustomerID = bal.PartyID
			} else {
				entry.SupplierID = bal.PartyID
			}
			if _, err := tx.InsertCreditEntry(ctx, entry); err != nil {
				return err
			}
		}

		result = Result{
			Payment:   payment,
			Applied:   split.Apply,
			Remainder: split.Remainder,
			InvoiceNo: bal.InvoiceNo,
			Settled:   bal.BalanceDue.Sign() > 0 && split.Apply.Equal(bal.BalanceDue),
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	s.afterSettlement(ctx, input.ActorID, "settlement:partial_payment", result)
	return result, nil
}

// ListPayments returns recorded payments.
func (s *Service) ListPayments(ctx context.Context, req ListPaymentsRequest) ([]Payment, error) {
	if req.Limit <= 0 || req.Limit > 500 {
		req.Limit = 100
	}
	return s.repo.ListPayments(ctx, req)
}

// ListCreditEntries returns the credit/advance ledger for one party.
func (s *Service) ListCreditEntries(ctx context.Context, partyType PartyType, partyID int64) ([]CreditEntry, error) {
	if partyType != PartyCustomer && partyType != PartySupplier {
		return nil, errors.New("settlement: party type must be customer or supplier")
	}
	return s.repo.ListCreditEntries(ctx, partyType, partyID)
}

// CreditBalances returns the aggregate unapplied surplus per party.
func (s *Service) CreditBalances(ctx context.Context, partyType PartyType) ([]CreditBalance, error) {
	if partyType != PartyCustomer && partyType != PartySupplier {
		return nil, errors.New("settlement: party type must be customer or supplier")
	}
	return s.repo.CreditBalances(ctx, partyType)
}

func (s *Service) afterSettlement(ctx context.Context, actorID int64, action string, result Result) {
	if s.cache != nil {
		s.cache.InvalidateOutstanding(ctx)
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   action,
			Entity:   "payment",
			EntityID: fmt.Sprintf("%d", result.Payment.ID),
			Meta: map[string]any{
				"invoice_no": result.InvoiceNo,
				"amount":     result.Payment.Amount.String(),
				"applied":    result.Applied.String(),
				"remainder":  result.Remainder.String(),
				"source":     result.Payment.Source,
			},
			At: time.Now().UTC(),
		})
	}
}

func newPayment(bal InvoiceBalance, invoiceType InvoiceType, method, reference, note, source string) Payment {
	p := Payment{
		PartyType:   partyOf(invoiceType),
		Direction:   directionOf(invoiceType),
		PaymentDate: time.Now().UTC(),
		Method:      method,
		Reference:   reference,
		Note:        note,
		Source:      source,
	}
	if invoiceType == InvoiceSale {
		p.CustomerID = bal.PartyID
	} else {
		p.SupplierID = bal.PartyID
	}
	return p
}

func newAllocation(paymentID int64, invoiceType InvoiceType, invoiceID int64, amount decimal.Decimal) Allocation {
	a := Allocation{
		PaymentID:     paymentID,
		InvoiceType:   invoiceType,
		AmountApplied: amount,
	}
	if invoiceType == InvoiceSale {
		a.SalesInvoiceID = invoiceID
	} else {
		a.PurchaseInvoiceID = invoiceID
	}
	return a
}

func partyOf(t InvoiceType) PartyType {
	if t == InvoiceSale {
		return PartyCustomer
	}
	return PartySupplier
}

func directionOf(t InvoiceType) Direction {
	if t == InvoiceSale {
		return DirectionIn
	}
	return DirectionOut
}

func validInvoiceType(t InvoiceType) error {
	if t != InvoiceSale && t != InvoicePurchase {
		return errors.New("settlement: invoice type must be sale or purchase")
	}
	return nil
}
