package postgres

import (
	"context"
	"fmt"

	"github.com/cwrk-planet/realtime-service/internal/domain"
	"github.com/cwrk-planet/realtime-service/internal/repository"
	"github.com/cwrk-planet/realtime-service/internal/repository/queries"

	"github.com/jackc/pgx/v5"
)

type ViewRepo struct {
	q querier
}

func NewViewRepoFromPool(q querier) *ViewRepo {
	return &ViewRepo{q: q}
}

func NewViewRepoFromTx(tx pgx.Tx) *ViewRepo {
	return &ViewRepo{q: tx}
}

func (r *ViewRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.q.Exec(ctx, queries.QueryCreateViewsTable); err != nil {
		return fmt.Errorf("create product_views: %w", err)
	}
	return nil
}

// Increment — upsert счётчика; vendor_id берётся из последнего просмотра.
func (r *ViewRepo) Increment(ctx context.Context, v domain.ProductView) error {
	if v.ProductID.Empty() || v.VendorID.Empty() {
		return repository.ErrInvalidInput
	}
	_, err := r.q.Exec(ctx, queries.QueryIncrementView, v.ProductID.String(), v.VendorID.String(), v.ViewedAt.UTC())
	return err
}
