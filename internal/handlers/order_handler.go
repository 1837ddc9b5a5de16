package handlers

import (
	"net/http"
	"strconv"

	"go-fashion-store/internal/database"
	"go-fashion-store/internal/models"
	"go-fashion-store/internal/order"

	"github.com/gin-gonic/gin"
)

// --- POST: Checkout ---
// The create flow is reconcile -> validate voucher -> create order; the
// service does all three, and the first failing validation reason comes
// back verbatim in the error field.
func Checkout(c *gin.Context) {
	userID := c.MustGet("userID").(uint)

	var req order.CreateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	newOrder, err := Orders.Create(userID, req)
	if err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, newOrder)
}

// --- GET: The user's own orders ---
func MyOrders(c *gin.Context) {
	userID := c.MustGet("userID").(uint)

	orders, err := Orders.ListForUser(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch orders"})
		return
	}

	c.JSON(http.StatusOK, orders)
}

// --- GET: One order (owner or admin) ---
func GetOrder(c *gin.Context) {
	userID := c.MustGet("userID").(uint)
	role := c.MustGet("role").(string)

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid Order ID"})
		return
	}

	ord, err := Orders.Get(uint(id))
	if err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}

	if role != "admin" && ord.UserID != userID {
		c.JSON(http.StatusNotFound, gin.H{"error": order.ErrOrderNotFound.Error()})
		return
	}

	c.JSON(http.StatusOK, ord)
}

type CancelRequest struct {
	Reason string `json:"reason"`
}

// --- POST: Cancel an order (owner or admin) ---
func CancelOrder(c *gin.Context) {
	userID := c.MustGet("userID").(uint)
	role := c.MustGet("role").(string)

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid Order ID"})
		return
	}

	var req CancelRequest
	_ = c.ShouldBindJSON(&req) // reason is optional
	if req.Reason == "" {
		req.Reason = "cancelled by customer"
		if role == "admin" {
			req.Reason = "cancelled by admin"
		}
	}

	ord, err := Orders.Cancel(uint(id), userID, role == "admin", req.Reason)
	if err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, ord)
}

// --- POST: Confirm a pending payment (admin - e.g. after checking the
// bank statement for a transfer) ---
func ConfirmPayment(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid Order ID"})
		return
	}

	ord, err := Orders.ConfirmPayment(uint(id))
	if err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, ord)
}

type StatusRequest struct {
	Status models.OrderStatus `json:"status" binding:"required,oneof=processing shipped delivered"`
}

// --- PUT: Advance the fulfilment status (admin) ---
func UpdateOrderStatus(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid Order ID"})
		return
	}

	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	ord, err := Orders.AdvanceStatus(uint(id), req.Status)
	if err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, ord)
}

// --- GET: All orders, filterable by status (admin) ---
func ListOrders(c *gin.Context) {
	query := database.DB.Preload("Items").Order("created_at DESC")

	if status := c.Query("status"); status != "" {
		query = query.Where("order_status = ?", status)
	}

	var orders []models.Order
	if err := query.Find(&orders).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch orders"})
		return
	}

	c.JSON(http.StatusOK, orders)
}
