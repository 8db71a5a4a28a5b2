package outstanding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/packledger/packledger/internal/shared"
)

// CustomerPageSize fixes the customer dashboard page: five open invoices
// per page, paginated before grouping.
const CustomerPageSize = 5

var (
	// ErrNoCustomerOutstanding indicates the customer has nothing open.
	ErrNoCustomerOutstanding = errors.New("outstanding: no outstanding invoices for this customer")
	// ErrNoSupplierOutstanding indicates the supplier has nothing open.
	ErrNoSupplierOutstanding = errors.New("outstanding: no outstanding invoices for this supplier")
)

// RepositoryPort defines the reads the aggregator needs.
type RepositoryPort interface {
	CustomerOutstanding(ctx context.Context) ([]Invoice, error)
	SupplierOutstanding(ctx context.Context) ([]Invoice, error)
	CustomerOutstandingByID(ctx context.Context, customerID int64) ([]Invoice, error)
	SupplierOutstandingByID(ctx context.Context, supplierID int64) ([]Invoice, error)
	SalesInvoiceLines(ctx context.Context, invoiceIDs []int64) (map[int64][]StatementLine, error)
	PurchaseInvoiceLines(ctx context.Context, invoiceIDs []int64) (map[int64][]StatementLine, error)
}

// CachePort keeps the flat invoice lists between dashboard loads.
type CachePort interface {
	get(ctx context.Context, key string) ([]Invoice, bool)
	set(ctx context.Context, key string, invoices []Invoice)
}

// Service aggregates open invoices into counterparty groups and compiles
// printable statements.
type Service struct {
	repo       RepositoryPort
	cache      CachePort
	statements singleflight.Group
}

// NewService builds Service instance. cache may be nil.
func NewService(repo RepositoryPort, cache *Cache) *Service {
	var port CachePort
	if cache != nil {
		port = cache
	}
	return &Service{repo: repo, cache: port}
}

// CustomerOutstanding returns one page of customer groups. The flat sorted
// invoice list is paginated first and the page grouped afterwards, so
// group sums are page-scoped and a customer spanning a page boundary
// shows up on both pages.
func (s *Service) CustomerOutstanding(ctx context.Context, page int) (CustomerPage, error) {
	invoices, err := s.loadInvoices(ctx, cacheKeyCustomers, s.repo.CustomerOutstanding)
	if err != nil {
		return CustomerPage{}, err
	}

	pg := shared.NewPagination(page, CustomerPageSize, len(invoices))
	start := pg.Offset()
	end := start + pg.PerPage
	if start > len(invoices) {
		start = len(invoices)
	}
	if end > len(invoices) {
		end = len(invoices)
	}

	return CustomerPage{
		Groups:     groupByParty(invoices[start:end]),
		Page:       pg.Page,
		PageSize:   pg.PerPage,
		TotalPages: pg.TotalPages,
		TotalCount: pg.Total,
	}, nil
}

// SupplierOutstanding groups every open purchase invoice by supplier, so
// supplier balances are true totals rather than page slices.
func (s *Service) SupplierOutstanding(ctx context.Context) ([]Group, error) {
	invoices, err := s.loadInvoices(ctx, cacheKeySuppliers, s.repo.SupplierOutstanding)
	if err != nil {
		return nil, err
	}
	return groupByParty(invoices), nil
}

// CustomerStatement compiles the outstanding statement for one customer.
// Concurrent builds for the same customer share one execution.
func (s *Service) CustomerStatement(ctx context.Context, customerID int64) (Statement, error) {
	return s.buildStatement(ctx, fmt.Sprintf("customer:%d", customerID), func(ctx context.Context) (Statement, error) {
		invoices, err := s.repo.CustomerOutstandingByID(ctx, customerID)
		if err != nil {
			return Statement{}, err
		}
		if len(invoices) == 0 {
			return Statement{}, ErrNoCustomerOutstanding
		}
		return s.assembleStatement(ctx, invoices, s.repo.SalesInvoiceLines)
	})
}

// SupplierStatement compiles the outstanding statement for one supplier.
func (s *Service) SupplierStatement(ctx context.Context, supplierID int64) (Statement, error) {
	return s.buildStatement(ctx, fmt.Sprintf("supplier:%d", supplierID), func(ctx context.Context) (Statement, error) {
		invoices, err := s.repo.SupplierOutstandingByID(ctx, supplierID)
		if err != nil {
			return Statement{}, err
		}
		if len(invoices) == 0 {
			return Statement{}, ErrNoSupplierOutstanding
		}
		return s.assembleStatement(ctx, invoices, s.repo.PurchaseInvoiceLines)
	})
}

func (s *Service) loadInvoices(ctx context.Context, key string, fetch func(context.Context) ([]Invoice, error)) ([]Invoice, error) {
	if s.cache != nil {
		if invoices, ok := s.cache.get(ctx, key); ok {
			return invoices, nil
		}
	}
	invoices, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.set(ctx, key, invoices)
	}
	return invoices, nil
}

func (s *Service) buildStatement(ctx context.Context, key string, fn func(context.Context) (Statement, error)) (Statement, error) {
	resultChan := s.statements.DoChan(key, func() (interface{}, error) {
		return fn(ctx)
	})
	select {
	case <-ctx.Done():
		return Statement{}, ctx.Err()
	case res := <-resultChan:
		if res.Err != nil {
			return Statement{}, res.Err
		}
		return res.Val.(Statement), nil
	}
}

func (s *Service) assembleStatement(ctx context.Context, invoices []Invoice, fetchLines func(context.Context, []int64) (map[int64][]StatementLine, error)) (Statement, error) {
	ids := make([]int64, 0, len(invoices))
	for _, inv := range invoices {
		ids = append(ids, inv.InvoiceID)
	}
	lines, err := fetchLines(ctx, ids)
	if err != nil {
		return Statement{}, err
	}

	stmt := Statement{
		PartyID:      invoices[0].PartyID,
		PartyName:    invoices[0].PartyName,
		InvoiceCount: len(invoices),
		GeneratedAt:  time.Now().UTC(),
	}
	for _, inv := range invoices {
		stmt.Invoices = append(stmt.Invoices, StatementInvoice{
			InvoiceID:   inv.InvoiceID,
			InvoiceNo:   inv.InvoiceNo,
			InvoiceDate: inv.InvoiceDate,
			Total:       inv.Total,
			BalanceDue:  inv.BalanceDue,
			Lines:       lines[inv.InvoiceID],
		})
		stmt.TotalAmount = stmt.TotalAmount.Add(inv.Total)
		stmt.TotalDue = stmt.TotalDue.Add(inv.BalanceDue)
	}
	return stmt, nil
}

// groupByParty folds a sorted invoice slice into per-party groups,
// preserving the order in which each party first appears.
func groupByParty(invoices []Invoice) []Group {
	var (
		groups []Group
		index  = make(map[int64]int)
	)
	for _, inv := range invoices {
		i, ok := index[inv.PartyID]
		if !ok {
			i = len(groups)
			index[inv.PartyID] = i
			groups = append(groups, Group{
				PartyID:   inv.PartyID,
				PartyName: inv.PartyName,
				Balance:   decimal.Zero,
			})
		}
		groups[i].Invoices = append(groups[i].Invoices, inv)
		groups[i].Balance = groups[i].Balance.Add(inv.BalanceDue)
		groups[i].Count++
	}
	return groups
}
