package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

var balanceViews = []string{
	"v_sales_invoice_balance",
	"v_purchase_invoice_balance",
	"v_customer_credit",
	"v_supplier_advance",
}

// RefreshBalanceViews refreshes the materialized views behind the
// outstanding dashboard and credit balances. Views refresh concurrently
// so dashboard reads are never blocked.
func RefreshBalanceViews(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) error {
	if pool == nil {
		return nil
	}
	for _, view := range balanceViews {
		if _, err := pool.Exec(ctx, fmt.Sprintf(`REFRESH MATERIALIZED VIEW CONCURRENTLY %s`, view)); err != nil {
			if logger != nil {
				logger.Error("refresh balance view", slog.String("view", view), slog.Any("error", err))
			}
			return err
		}
	}
	if logger != nil {
		logger.Info("refreshed balance views", slog.String("job", "balance_views_refresh"), slog.Int("views", len(balanceViews)))
	}
	return nil
}
