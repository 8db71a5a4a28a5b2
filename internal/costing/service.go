// Package costing derives the unit cost per pack for sold bundles from
// purchase history. The cost of a bundle is taken from the purchase
// invoice behind its latest positive stock movement.
package costing

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
)

// Lookback is the costing result for one sale: cost per pack keyed by
// bundle id, plus the bundles that have no usable purchase history.
// Missing bundles cost zero; the caller surfaces them as a warning and
// proceeds.
type Lookback struct {
	CostPerPack map[int64]decimal.Decimal
	Missing     []int64
}

// RepositoryPort defines the reads the lookback needs.
type RepositoryPort interface {
	PacksPerBundle(ctx context.Context, bundleIDs []int64) (map[int64]int64, error)
	LatestPurchaseInvoiceByBundle(ctx context.Context, bundleIDs []int64) (map[int64]int64, error)
	UnitCostPerBundle(ctx context.Context, invoiceByBundle map[int64]int64) (map[int64]decimal.Decimal, error)
}

// Service computes unit costs. Stateless; every sale recomputes from the
// ledger so a fresh purchase is picked up immediately.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// UnitCostPerPack resolves the cost per pack for each bundle id. For each
// bundle the latest stock movement with a positive packs_delta and a
// purchase invoice link names the invoice; that invoice's line for the
// bundle gives the cost per bundle, divided by the bundle's pack count.
func (s *Service) UnitCostPerPack(ctx context.Context, bundleIDs []int64) (Lookback, error) {
	result := Lookback{CostPerPack: make(map[int64]decimal.Decimal, len(bundleIDs))}
	if len(bundleIDs) == 0 {
		return result, nil
	}

	ids := dedupe(bundleIDs)

	packs, err := s.repo.PacksPerBundle(ctx, ids)
	if err != nil {
		return Lookback{}, err
	}
	invoiceByBundle, err := s.repo.LatestPurchaseInvoiceByBundle(ctx, ids)
	if err != nil {
		return Lookback{}, err
	}
	costByBundle, err := s.repo.UnitCostPerBundle(ctx, invoiceByBundle)
	if err != nil {
		return Lookback{}, err
	}

	for _, id := range ids {
		ppb := packs[id]
		costPerBundle, hasCost := costByBundle[id]
		if !hasCost || ppb <= 0 {
			result.CostPerPack[id] = decimal.Zero
			result.Missing = append(result.Missing, id)
			continue
		}
		result.CostPerPack[id] = costPerBundle.Div(decimal.NewFromInt(ppb))
	}
	sort.Slice(result.Missing, func(i, j int) bool { return result.Missing[i] < result.Missing[j] })
	return result, nil
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
