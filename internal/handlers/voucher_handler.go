package handlers

import (
	"net/http"
	"strconv"
	"time"

	"go-fashion-store/internal/database"
	"go-fashion-store/internal/models"
	"go-fashion-store/internal/voucher"

	"github.com/gin-gonic/gin"
)

// --- POST: Preview a voucher against the current cart (customer) ---
// Validation only - nothing is consumed until the order is created.
func ValidateVoucher(c *gin.Context) {
	userID := c.MustGet("userID").(uint)

	var req struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Voucher code is required"})
		return
	}

	userCart, err := Carts.GetOrCreate(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load cart"})
		return
	}

	result, err := Vouchers.ValidateAndApply(req.Code, userID, userCart.TotalPrice, userCart.Items, time.Now())
	if err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":            result.Voucher.Code,
		"discount_amount": result.DiscountAmount,
		"final_amount":    result.FinalAmount,
	})
}

// --- GET: All vouchers (admin) ---
func ListVouchers(c *gin.Context) {
	var vouchers []models.Voucher
	if err := database.DB.Order("created_at DESC").Find(&vouchers).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch vouchers"})
		return
	}
	c.JSON(http.StatusOK, vouchers)
}

// --- POST: Create a voucher (admin) ---
func CreateVoucher(c *gin.Context) {
	var req voucher.Input
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	v, err := Vouchers.Create(req)
	if err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, v)
}

// --- PUT: Update a voucher (admin) ---
func UpdateVoucher(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid Voucher ID"})
		return
	}

	var req voucher.Input
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	v, err := Vouchers.Update(uint(id), req)
	if err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, v)
}

// --- POST: Toggle the active flag (admin) ---
func ToggleVoucher(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid Voucher ID"})
		return
	}

	v, err := Vouchers.ToggleActive(uint(id))
	if err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, v)
}

// --- DELETE: Remove a voucher (admin) ---
func DeleteVoucher(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid Voucher ID"})
		return
	}

	if err := Vouchers.Delete(uint(id)); err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Voucher deleted successfully"})
}

// --- GET: Usage statistics (admin) ---
func GetVoucherStats(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid Voucher ID"})
		return
	}

	stats, err := Vouchers.Stats(uint(id))
	if err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, stats)
}
