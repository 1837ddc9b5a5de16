package database

import (
	"time"

	"go-fashion-store/internal/models"
)

// SalesReportResult holds the numbers the dashboard (and the AI assistant) need
type SalesReportResult struct {
	TotalRevenue float64
	TotalOrders  int64
}

// GetSalesReport calculates paid revenue within a specific date range.
// Cancelled and expired orders never count towards revenue.
func GetSalesReport(start, end time.Time) (*SalesReportResult, error) {
	var result SalesReportResult

	// COALESCE ensures we get 0 instead of NULL if no orders exist
	err := DB.Model(&models.Order{}).
		Where("created_at BETWEEN ? AND ?", start, end).
		Where("payment_status = ?", models.PaymentStatusPaid).
		Select("COALESCE(SUM(total_amount), 0)").
		Scan(&result.TotalRevenue).Error

	if err != nil {
		return nil, err
	}

	err = DB.Model(&models.Order{}).
		Where("created_at BETWEEN ? AND ?", start, end).
		Where("order_status NOT IN ?", []models.OrderStatus{
			models.OrderStatusCancelled, models.OrderStatusExpired,
		}).
		Count(&result.TotalOrders).Error

	if err != nil {
		return nil, err
	}

	return &result, nil
}
