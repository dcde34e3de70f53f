package service

import (
	"context"
	"fmt"
	"time"

	"github.com/naijastore/naijastore-api/internal/domain"
	"github.com/naijastore/naijastore-api/internal/infra/observability"
	"github.com/naijastore/naijastore-api/internal/port"

	"golang.org/x/sync/errgroup"
)

// AdminService builds the admin dashboard.
type AdminService struct {
	catalog       port.CatalogStore
	orders        port.OrderStore
	metrics       *observability.Metrics
	currency      string
	lowStockBelow int
}

func NewAdminService(catalog port.CatalogStore, orders port.OrderStore, metrics *observability.Metrics, currency string, lowStockBelow int) *AdminService {
	return &AdminService{catalog: catalog, orders: orders, metrics: metrics, currency: currency, lowStockBelow: lowStockBelow}
}

// Stats gathers catalog and order figures concurrently.
func (s *AdminService) Stats(ctx context.Context) (*domain.DashboardStats, error) {
	ctx, span := tracer.Start(ctx, "AdminService.Stats")
	defer span.End()

	start := time.Now()
	defer func() { s.metrics.RecordDuration("admin_stats", time.Since(start)) }()

	var (
		products, lowStock int
		categories         []domain.Category
		orderStats         *domain.DashboardStats
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		products, lowStock, err = s.catalog.CountProducts(gCtx, s.lowStockBelow)
		if err != nil {
			return fmt.Errorf("count products: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		categories, err = s.catalog.ListCategories(gCtx)
		if err != nil {
			return fmt.Errorf("list categories: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		orderStats, err = s.orders.OrderStats(gCtx)
		if err != nil {
			return fmt.Errorf("order stats: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats := orderStats
	stats.TotalProducts = products
	stats.LowStock = lowStock
	stats.TotalCategories = len(categories)
	stats.Currency = s.currency
	stats.GeneratedAt = time.Now().UTC()
	if stats.RecentOrders == nil {
		stats.RecentOrders = []domain.Order{}
	}
	return stats, nil
}

// Metrics returns the process counters.
func (s *AdminService) Metrics() *domain.RuntimeMetrics {
	return s.metrics.Snapshot()
}
