package stock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/packledger/packledger/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetBundle(ctx context.Context, id int64) (Bundle, error)
	CreateBundle(ctx context.Context, input CreateBundleInput) (Bundle, error)
	ListBundles(ctx context.Context) ([]Bundle, error)
	OnHand(ctx context.Context) ([]OnHand, error)
	ListMovements(ctx context.Context, bundleID int64, limit int) ([]Movement, error)
}

// TxRepository exposes the writes of one movement posting.
type TxRepository interface {
	GetBalanceForUpdate(ctx context.Context, bundleID int64) (Balance, error)
	InsertMovement(ctx context.Context, m Movement) (int64, error)
	UpsertBalance(ctx context.Context, b Balance) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	AllowNegativeStock bool
}

// Service coordinates the pack ledger.
type Service struct {
	repo        RepositoryPort
	audit       AuditPort
	idempotency *shared.IdempotencyStore
	allowNeg    bool
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, idem *shared.IdempotencyStore, cfg ServiceConfig) *Service {
	return &Service{repo: repo, audit: audit, idempotency: idem, allowNeg: cfg.AllowNegativeStock}
}

// CreateBundle registers a bundle. PacksPerBundle may be zero for legacy
// items; the costing lookback reports those as missing instead of
// dividing by zero.
func (s *Service) CreateBundle(ctx context.Context, input CreateBundleInput) (Bundle, error) {
	if input.Name == "" {
		return Bundle{}, errors.New("stock: bundle name required")
	}
	if input.PacksPerBundle < 0 {
		return Bundle{}, errors.New("stock: packs per bundle cannot be negative")
	}
	return s.repo.CreateBundle(ctx, input)
}

// GetBundle returns one bundle.
func (s *Service) GetBundle(ctx context.Context, id int64) (Bundle, error) {
	return s.repo.GetBundle(ctx, id)
}

// ListBundles returns all bundles, name order.
func (s *Service) ListBundles(ctx context.Context) ([]Bundle, error) {
	return s.repo.ListBundles(ctx)
}

// OnHand returns the current stock position per bundle.
func (s *Service) OnHand(ctx context.Context) ([]OnHand, error) {
	return s.repo.OnHand(ctx)
}

// ListMovements returns recent ledger entries for one bundle.
func (s *Service) ListMovements(ctx context.Context, bundleID int64, limit int) ([]Movement, error) {
	if bundleID == 0 {
		return nil, errors.New("stock: bundle ID required")
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.repo.ListMovements(ctx, bundleID, limit)
}

// PostMovement appends one ledger entry and moves the running balance
// under a row lock. The balance can never go negative unless the service
// was configured to allow it.
func (s *Service) PostMovement(ctx context.Context, input MovementInput) (Movement, error) {
	if input.BundleID == 0 {
		return Movement{}, errors.New("stock: bundle ID required")
	}
	if input.PacksDelta == 0 {
		return Movement{}, ErrInvalidDelta
	}
	if _, err := s.repo.GetBundle(ctx, input.BundleID); err != nil {
		return Movement{}, err
	}

	now := time.Now().UTC()
	when := input.MovementDatetime
	if when.IsZero() {
		when = now
	}

	insertedKey := false
	if s.idempotency != nil && input.IdempotencyKey != "" {
		if err := s.idempotency.CheckAndInsert(ctx, input.IdempotencyKey, "stock"); err != nil {
			return Movement{}, err
		}
		insertedKey = true
	}

	movement := Movement{
		BundleID:          input.BundleID,
		Type:              input.Type,
		PacksDelta:        input.PacksDelta,
		MovementDatetime:  when,
		PurchaseInvoiceID: input.PurchaseInvoiceID,
		SalesInvoiceID:    input.SalesInvoiceID,
		Note:              input.Note,
		CreatedAt:         now,
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		balance, err := tx.GetBalanceForUpdate(ctx, input.BundleID)
		if err != nil && !errors.Is(err, ErrBalanceNotFound) {
			return err
		}
		if errors.Is(err, ErrBalanceNotFound) {
			balance = Balance{BundleID: input.BundleID}
		}

		newQty := balance.PacksOnHand + input.PacksDelta
		if !s.allowNeg && newQty < 0 {
			return ErrNegativeStock
		}

		id, err := tx.InsertMovement(ctx, movement)
		if err != nil {
			return err
		}
		movement.ID = id

		balance.PacksOnHand = newQty
		balance.UpdatedAt = now
		return tx.UpsertBalance(ctx, balance)
	})
	if err != nil {
		if insertedKey {
			_ = s.idempotency.Delete(ctx, input.IdempotencyKey)
		}
		return Movement{}, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			Action:   fmt.Sprintf("stock:%s", input.Type),
			Entity:   "stock_movement",
			EntityID: fmt.Sprintf("%d", movement.ID),
			Meta: map[string]any{
				"bundle_id":   input.BundleID,
				"packs_delta": input.PacksDelta,
				"note":        input.Note,
			},
			At: now,
		})
	}
	return movement, nil
}
