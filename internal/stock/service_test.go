package stock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	bundles   map[int64]Bundle
	balances  map[int64]Balance
	movements []Movement
	nextID    int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		bundles:  make(map[int64]Bundle),
		balances: make(map[int64]Balance),
	}
}

func (f *fakeRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	balances := make(map[int64]Balance, len(f.balances))
	for k, v := range f.balances {
		balances[k] = v
	}
	movements := append([]Movement(nil), f.movements...)
	nextID := f.nextID
	if err := fn(ctx, (*fakeTx)(f)); err != nil {
		f.balances = balances
		f.movements = movements
		f.nextID = nextID
		return err
	}
	return nil
}

func (f *fakeRepo) GetBundle(_ context.Context, id int64) (Bundle, error) {
	b, ok := f.bundles[id]
	if !ok {
		return Bundle{}, ErrBundleNotFound
	}
	return b, nil
}

func (f *fakeRepo) CreateBundle(_ context.Context, input CreateBundleInput) (Bundle, error) {
	f.nextID++
	b := Bundle{ID: f.nextID, Name: input.Name, PacksPerBundle: input.PacksPerBundle, CreatedAt: time.Now()}
	f.bundles[b.ID] = b
	return b, nil
}

func (f *fakeRepo) ListBundles(context.Context) ([]Bundle, error) {
	var out []Bundle
	for _, b := range f.bundles {
		out = append(out, b)
	}
	return out, nil
}

func (f *fakeRepo) OnHand(context.Context) ([]OnHand, error) {
	var out []OnHand
	for id, b := range f.bundles {
		out = append(out, OnHand{
			BundleID:       id,
			BundleName:     b.Name,
			PacksPerBundle: b.PacksPerBundle,
			PacksOnHand:    f.balances[id].PacksOnHand,
		})
	}
	return out, nil
}

func (f *fakeRepo) ListMovements(_ context.Context, bundleID int64, limit int) ([]Movement, error) {
	var out []Movement
	for i := len(f.movements) - 1; i >= 0 && len(out) < limit; i-- {
		if f.movements[i].BundleID == bundleID {
			out = append(out, f.movements[i])
		}
	}
	return out, nil
}

type fakeTx fakeRepo

func (f *fakeTx) GetBalanceForUpdate(_ context.Context, bundleID int64) (Balance, error) {
	b, ok := f.balances[bundleID]
	if !ok {
		return Balance{}, ErrBalanceNotFound
	}
	return b, nil
}

func (f *fakeTx) InsertMovement(_ context.Context, m Movement) (int64, error) {
	f.nextID++
	m.ID = f.nextID
	f.movements = append(f.movements, m)
	return m.ID, nil
}

func (f *fakeTx) UpsertBalance(_ context.Context, b Balance) error {
	f.balances[b.BundleID] = b
	return nil
}

func seedBundle(repo *fakeRepo, ppb int64) Bundle {
	b, _ := repo.CreateBundle(context.Background(), CreateBundleInput{Name: "Rice 25kg", PacksPerBundle: ppb})
	return b
}

func TestPostMovementInboundCreatesBalance(t *testing.T) {
	repo := newFakeRepo()
	bundle := seedBundle(repo, 20)
	svc := NewService(repo, nil, nil, ServiceConfig{})

	movement, err := svc.PostMovement(context.Background(), MovementInput{
		BundleID:          bundle.ID,
		Type:              MovementPurchaseIn,
		PacksDelta:        40,
		PurchaseInvoiceID: 9,
	})
	require.NoError(t, err)
	require.NotZero(t, movement.ID)
	require.Equal(t, int64(40), repo.balances[bundle.ID].PacksOnHand)
	require.Equal(t, int64(9), repo.movements[0].PurchaseInvoiceID)
}

func TestPostMovementOutboundReducesBalance(t *testing.T) {
	repo := newFakeRepo()
	bundle := seedBundle(repo, 20)
	svc := NewService(repo, nil, nil, ServiceConfig{})

	_, err := svc.PostMovement(context.Background(), MovementInput{
		BundleID: bundle.ID, Type: MovementPurchaseIn, PacksDelta: 40,
	})
	require.NoError(t, err)

	_, err = svc.PostMovement(context.Background(), MovementInput{
		BundleID: bundle.ID, Type: MovementSaleOut, PacksDelta: -15, SalesInvoiceID: 3,
	})
	require.NoError(t, err)
	require.Equal(t, int64(25), repo.balances[bundle.ID].PacksOnHand)
}

func TestPostMovementBlocksNegativeStock(t *testing.T) {
	repo := newFakeRepo()
	bundle := seedBundle(repo, 20)
	svc := NewService(repo, nil, nil, ServiceConfig{})

	_, err := svc.PostMovement(context.Background(), MovementInput{
		BundleID: bundle.ID, Type: MovementSaleOut, PacksDelta: -5,
	})
	require.ErrorIs(t, err, ErrNegativeStock)
	require.Empty(t, repo.movements)
}

func TestPostMovementAllowNegativeStock(t *testing.T) {
	repo := newFakeRepo()
	bundle := seedBundle(repo, 20)
	svc := NewService(repo, nil, nil, ServiceConfig{AllowNegativeStock: true})

	_, err := svc.PostMovement(context.Background(), MovementInput{
		BundleID: bundle.ID, Type: MovementSaleOut, PacksDelta: -5,
	})
	require.NoError(t, err)
	require.Equal(t, int64(-5), repo.balances[bundle.ID].PacksOnHand)
}

func TestPostMovementRejectsZeroDelta(t *testing.T) {
	repo := newFakeRepo()
	bundle := seedBundle(repo, 20)
	svc := NewService(repo, nil, nil, ServiceConfig{})

	_, err := svc.PostMovement(context.Background(), MovementInput{
		BundleID: bundle.ID, Type: MovementAdjustment, PacksDelta: 0,
	})
	require.ErrorIs(t, err, ErrInvalidDelta)
}

func TestPostMovementUnknownBundle(t *testing.T) {
	svc := NewService(newFakeRepo(), nil, nil, ServiceConfig{})

	_, err := svc.PostMovement(context.Background(), MovementInput{
		BundleID: 77, Type: MovementAdjustment, PacksDelta: 1,
	})
	require.ErrorIs(t, err, ErrBundleNotFound)
}

func TestCreateBundleValidation(t *testing.T) {
	svc := NewService(newFakeRepo(), nil, nil, ServiceConfig{})

	_, err := svc.CreateBundle(context.Background(), CreateBundleInput{Name: ""})
	require.Error(t, err)

	_, err = svc.CreateBundle(context.Background(), CreateBundleInput{Name: "x", PacksPerBundle: -1})
	require.Error(t, err)

	b, err := svc.CreateBundle(context.Background(), CreateBundleInput{Name: "Flour 10kg", PacksPerBundle: 0})
	require.NoError(t, err)
	require.NotZero(t, b.ID)
}
