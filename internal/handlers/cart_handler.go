package handlers

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// --- GET: The user's cart, reconciled best-effort ---
// A stale price shown for a moment is acceptable here; checkout does the
// mandatory reconciliation before anything is charged.
func GetCart(c *gin.Context) {
	userID := c.MustGet("userID").(uint)

	userCart, err := Carts.GetOrCreate(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load cart"})
		return
	}

	changed, err := Carts.Reconcile(userCart, time.Now())
	if err != nil {
		// Advisory only - log and serve what we have
		log.Printf("cart reconcile failed for user %d: %v", userID, err)
	}

	c.JSON(http.StatusOK, gin.H{"cart": userCart, "prices_updated": changed})
}

type AddToCartRequest struct {
	ProductID uint   `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
	Size      string `json:"size" binding:"required"`
	Color     string `json:"color" binding:"required"`
}

// --- POST: Add an item ---
func AddToCart(c *gin.Context) {
	userID := c.MustGet("userID").(uint)

	var req AddToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	userCart, err := Carts.AddItem(userID, req.ProductID, req.Quantity, req.Size, req.Color)
	if err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, userCart)
}

type UpdateCartItemRequest struct {
	Quantity int `json:"quantity" binding:"required"`
}

// --- PUT: Change a line's quantity (zero removes it) ---
func UpdateCartItem(c *gin.Context) {
	userID := c.MustGet("userID").(uint)

	itemID, err := strconv.Atoi(c.Param("itemId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid item ID"})
		return
	}

	var req UpdateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	userCart, err := Carts.UpdateItemQuantity(userID, uint(itemID), req.Quantity)
	if err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, userCart)
}

// --- DELETE: Remove a line ---
func RemoveCartItem(c *gin.Context) {
	userID := c.MustGet("userID").(uint)

	itemID, err := strconv.Atoi(c.Param("itemId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid item ID"})
		return
	}

	userCart, err := Carts.RemoveItem(userID, uint(itemID))
	if err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, userCart)
}
