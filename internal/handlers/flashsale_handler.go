package handlers

import (
	"net/http"
	"strconv"
	"time"

	"go-fashion-store/internal/database"
	"go-fashion-store/internal/models"
	"go-fashion-store/internal/promo"

	"github.com/gin-gonic/gin"
)

// --- GET: Currently running sales (public storefront) ---
func GetActiveFlashSales(c *gin.Context) {
	sales, err := Promo.ActiveSales(time.Now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch flash sales"})
		return
	}

	// Decorate every entry with its recomputed discount price and the
	// remaining quantity - the UI never does this math itself
	type entryView struct {
		models.FlashSaleProduct
		DiscountPrice float64 `json:"discount_price"`
		Remaining     int     `json:"remaining"`
	}
	type saleView struct {
		models.FlashSale
		Entries []entryView `json:"entries"`
	}

	views := make([]saleView, 0, len(sales))
	for _, sale := range sales {
		view := saleView{FlashSale: sale}
		for _, p := range sale.Products {
			view.Entries = append(view.Entries, entryView{
				FlashSaleProduct: p,
				DiscountPrice:    p.DiscountPrice(),
				Remaining:        p.Remaining(),
			})
		}
		views = append(views, view)
	}

	c.JSON(http.StatusOK, views)
}

// --- GET: All sales, running or not (admin) ---
func ListFlashSales(c *gin.Context) {
	var sales []models.FlashSale
	if err := database.DB.Preload("Products").Order("created_at DESC").Find(&sales).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch flash sales"})
		return
	}
	c.JSON(http.StatusOK, sales)
}

type FlashSaleRequest struct {
	Name      string                    `json:"name" binding:"required"`
	StartDate time.Time                 `json:"start_date" binding:"required"`
	EndDate   time.Time                 `json:"end_date" binding:"required"`
	Priority  int                       `json:"priority"`
	Products  []promo.ProductEntryInput `json:"products" binding:"required,min=1"`
}

// --- POST: Create a sale (admin) ---
func CreateFlashSale(c *gin.Context) {
	var req FlashSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	sale, err := Promo.CreateSale(req.Name, req.StartDate, req.EndDate, req.Priority, req.Products)
	if err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, sale)
}

// --- PUT: Update a sale (admin) ---
func UpdateFlashSale(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid Sale ID"})
		return
	}

	var req FlashSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	sale, err := Promo.UpdateSale(uint(id), req.Name, req.StartDate, req.EndDate, req.Priority, req.Products)
	if err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, sale)
}

// --- POST: Toggle the active flag (admin) ---
func ToggleFlashSale(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid Sale ID"})
		return
	}

	sale, err := Promo.ToggleActive(uint(id))
	if err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, sale)
}

// --- DELETE: Remove a sale (admin) ---
func DeleteFlashSale(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid Sale ID"})
		return
	}

	if err := Promo.DeleteSale(uint(id)); err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Flash sale deleted successfully"})
}

// --- GET: Per-sale statistics (admin) ---
func GetFlashSaleStats(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid Sale ID"})
		return
	}

	stats, err := Promo.Stats(uint(id))
	if err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, stats)
}
