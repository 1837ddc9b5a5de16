package handlers

import (
	"net/http"

	"go-fashion-store/internal/database"
	"go-fashion-store/internal/models"

	"github.com/gin-gonic/gin"
)

// ReportData defines the shape of our analytics response
type ReportData struct {
	TotalRevenue float64 `json:"total_revenue"`
	TotalOrders  int64   `json:"total_orders"`
	TopSelling   []struct {
		ProductName string  `json:"product_name"`
		Sold        int     `json:"sold"`
		Revenue     float64 `json:"revenue"`
	} `json:"top_selling"`
	RecentOrders []models.Order `json:"recent_orders"`
}

// --- GET: /api/reports (admin) ---
func GetSalesReport(c *gin.Context) {
	var data ReportData

	// 1. Total paid revenue (all time)
	err := database.DB.Model(&models.Order{}).
		Where("payment_status = ?", models.PaymentStatusPaid).
		Select("COALESCE(SUM(total_amount), 0)").
		Scan(&data.TotalRevenue).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to calculate revenue"})
		return
	}

	// 2. Count live orders (cancelled/expired excluded)
	err = database.DB.Model(&models.Order{}).
		Where("order_status NOT IN ?", []models.OrderStatus{
			models.OrderStatusCancelled, models.OrderStatusExpired,
		}).
		Count(&data.TotalOrders).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count orders"})
		return
	}

	// 3. Top 5 best sellers by units, charged price
	err = database.DB.Table("order_items").
		Select("order_items.product_name as product_name, SUM(order_items.quantity) as sold, SUM(order_items.quantity * order_items.price) as revenue").
		Joins("JOIN orders ON order_items.order_id = orders.id").
		Where("orders.order_status NOT IN ?", []models.OrderStatus{
			models.OrderStatusCancelled, models.OrderStatusExpired,
		}).
		Group("order_items.product_name").
		Order("sold desc").
		Limit(5).
		Scan(&data.TopSelling).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch top selling items"})
		return
	}

	// 4. Last 10 orders, newest first
	err = database.DB.Preload("Items").Order("created_at desc").Limit(10).Find(&data.RecentOrders).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch recent orders"})
		return
	}

	c.JSON(http.StatusOK, data)
}
