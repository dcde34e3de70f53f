package domain

import "time"

// DashboardStats backs GET /api/admin/stats.
type DashboardStats struct {
	TotalProducts   int       `json:"total_products"`
	TotalCategories int       `json:"total_categories"`
	TotalOrders     int       `json:"total_orders"`
	PendingOrders   int       `json:"pending_orders"`
	PaidOrders      int       `json:"paid_orders"`
	LowStock        int       `json:"low_stock_products"`
	Revenue         float64   `json:"revenue"`
	Currency        string    `json:"currency"`
	RecentOrders    []Order   `json:"recent_orders"`
	GeneratedAt     time.Time `json:"generated_at"`
}

// RuntimeMetrics is a snapshot of the process counters for the admin panel.
type RuntimeMetrics struct {
	OrdersCreated   int64   `json:"orders_created"`
	PaymentsOK      int64   `json:"payments_successful"`
	PaymentsFailed  int64   `json:"payments_failed"`
	ExternalErrors  int64   `json:"external_errors"`
	CacheHitRate    float64 `json:"cache_hit_rate"`
	PaymentFailRate float64 `json:"payment_failure_rate"`
}
