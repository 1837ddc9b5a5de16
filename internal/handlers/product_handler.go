package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"go-fashion-store/internal/database"
	"go-fashion-store/internal/models"
	"go-fashion-store/internal/stock"

	"github.com/gin-gonic/gin"
)

// ProductView decorates a catalog product with its live flash-sale offer,
// if one is running right now
type ProductView struct {
	models.Product
	FlashSale *struct {
		SaleID             uint    `json:"sale_id"`
		SaleName           string  `json:"sale_name"`
		DiscountPercentage float64 `json:"discount_percentage"`
		DiscountPrice      float64 `json:"discount_price"`
		Remaining          int     `json:"remaining"`
	} `json:"flash_sale,omitempty"`
}

// --- GET: List all products (public storefront) ---
func GetProducts(c *gin.Context) {
	var products []models.Product

	result := database.DB.Preload("Variants").Find(&products)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch products"})
		return
	}

	now := time.Now()
	views := make([]ProductView, 0, len(products))
	for _, p := range products {
		views = append(views, decorateProduct(p, now))
	}

	c.JSON(http.StatusOK, views)
}

// --- GET: One product with variants and live sale price ---
func GetProduct(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid Product ID"})
		return
	}

	var product models.Product
	if err := database.DB.Preload("Variants").First(&product, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return
	}

	c.JSON(http.StatusOK, decorateProduct(product, time.Now()))
}

func decorateProduct(p models.Product, now time.Time) ProductView {
	view := ProductView{Product: p}

	offer, sale, err := Promo.FindEligibleOffer(p.ID, now)
	if err != nil || offer == nil {
		return view
	}

	view.FlashSale = &struct {
		SaleID             uint    `json:"sale_id"`
		SaleName           string  `json:"sale_name"`
		DiscountPercentage float64 `json:"discount_percentage"`
		DiscountPrice      float64 `json:"discount_price"`
		Remaining          int     `json:"remaining"`
	}{
		SaleID:             sale.ID,
		SaleName:           sale.Name,
		DiscountPercentage: offer.DiscountPercentage,
		DiscountPrice:      offer.DiscountPrice(),
		Remaining:          offer.Remaining(),
	}
	return view
}

// VariantInput is one size/color row in a product create/update request
type VariantInput struct {
	Size     string `json:"size" binding:"required"`
	Color    string `json:"color" binding:"required"`
	Quantity int    `json:"quantity" binding:"min=0"`
}

type ProductRequest struct {
	Name     string         `json:"name" binding:"required"`
	Brand    string         `json:"brand"`
	Category string         `json:"category"`
	Price    float64        `json:"price" binding:"required,gt=0"`
	ImageURL string         `json:"image_url"`
	Variants []VariantInput `json:"variants"`
}

// --- POST: Add a new product (admin) ---
func AddProduct(c *gin.Context) {
	var req ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	product := models.Product{
		Name:     req.Name,
		Brand:    req.Brand,
		Category: req.Category,
		Price:    req.Price,
		ImageURL: req.ImageURL,
	}
	for _, v := range req.Variants {
		product.Variants = append(product.Variants, models.StockVariant{
			Size:     v.Size,
			Color:    v.Color,
			Quantity: v.Quantity,
		})
	}

	if err := database.DB.Create(&product).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create product"})
		return
	}

	c.JSON(http.StatusCreated, product)
}

// --- PUT: Update product fields (admin, partial update) ---
func UpdateProduct(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid Product ID"})
		return
	}

	var product models.Product
	if err := database.DB.First(&product, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return
	}

	// We use a map so we only update what was sent (partial update)
	var updateData map[string]interface{}
	if err := c.ShouldBindJSON(&updateData); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}
	// Variants have their own endpoint; never mass-assign them here
	delete(updateData, "variants")

	if err := database.DB.Model(&product).Updates(updateData).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update product"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Product updated successfully", "product": product})
}

// --- DELETE: Remove a product (admin) ---
func DeleteProduct(c *gin.Context) {
	id := c.Param("id")

	if err := database.DB.Delete(&models.Product{}, id).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Could not delete product. It might be linked to past orders."})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Product deleted successfully"})
}

type StockUpdateRequest struct {
	Size     string `json:"size" binding:"required"`
	Color    string `json:"color" binding:"required"`
	Quantity int    `json:"quantity" binding:"min=0"`
}

// --- PUT: Admin stock edit for one variant ---
// Creates the variant if it doesn't exist yet.
func UpdateVariantStock(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid Product ID"})
		return
	}

	var req StockUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	var product models.Product
	if err := database.DB.First(&product, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return
	}

	err = Stock.SetQuantity(uint(id), req.Size, req.Color, req.Quantity)
	if errors.Is(err, stock.ErrVariantNotFound) {
		// New size/color combination - create it
		variant := models.StockVariant{
			ProductID: uint(id),
			Size:      req.Size,
			Color:     req.Color,
			Quantity:  req.Quantity,
		}
		err = database.DB.Create(&variant).Error
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update stock"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Stock updated successfully"})
}

// --- GET: Aggregate stock available for the flash-sale picker (admin) ---
// Reports raw variant stock; caps of other running sales are not
// subtracted (caps are budgets, the ledger is the real guard).
func GetAvailableForFlashSale(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid Product ID"})
		return
	}

	total, err := Stock.AggregateAvailable(uint(id))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute available stock"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"product_id": id, "available_for_flash_sale": total})
}
