package promo

import (
	"errors"
	"fmt"
	"time"

	"go-fashion-store/internal/models"
	"go-fashion-store/internal/stock"

	"gorm.io/gorm"
)

var (
	// ErrFlashSaleSoldOut - the reservation would push sold past the cap
	ErrFlashSaleSoldOut = errors.New("flash sale product is sold out")
	// ErrOfferNotFound - no such product entry in that sale
	ErrOfferNotFound = errors.New("flash sale offer not found")
	// ErrSaleNotFound - no such flash sale
	ErrSaleNotFound = errors.New("flash sale not found")
)

// Manager owns flash sale campaigns and their capped sold counters.
// Reservations follow the same conditional-update discipline as the
// stock ledger: the cap check and the increment are one statement.
type Manager struct {
	DB    *gorm.DB
	Stock *stock.Ledger
}

func NewManager(db *gorm.DB, ledger *stock.Ledger) *Manager {
	return &Manager{DB: db, Stock: ledger}
}

// ActiveSales returns every sale running at `now`, ordered by priority
// (highest first) then by recency. This ordering is the tie-break when a
// product appears in several concurrent sales: first match wins.
func (m *Manager) ActiveSales(now time.Time) ([]models.FlashSale, error) {
	var sales []models.FlashSale
	err := m.DB.Preload("Products").
		Where("is_active = ? AND start_date <= ? AND end_date >= ?", true, now, now).
		Order("priority DESC, created_at DESC").
		Find(&sales).Error
	return sales, err
}

// FindEligibleOffer locates the best live offer for a product, or nil if
// there is none. Eligible means: sale running, product entry active, and
// sold count still under the cap.
func (m *Manager) FindEligibleOffer(productID uint, now time.Time) (*models.FlashSaleProduct, *models.FlashSale, error) {
	sales, err := m.ActiveSales(now)
	if err != nil {
		return nil, nil, err
	}

	for i := range sales {
		for j := range sales[i].Products {
			p := &sales[i].Products[j]
			if p.ProductID == productID && p.IsActive && p.SoldQuantity < p.MaxQuantity {
				return p, &sales[i], nil
			}
		}
	}
	return nil, nil, nil
}

// Reserve atomically claims qty units of a flash sale product's cap.
// Fails with ErrFlashSaleSoldOut when sold + qty would exceed max.
func (m *Manager) Reserve(saleID, productID uint, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("reserve quantity must be positive, got %d", qty)
	}

	result := m.DB.Model(&models.FlashSaleProduct{}).
		Where("flash_sale_id = ? AND product_id = ? AND is_active = ? AND sold_quantity + ? <= max_quantity",
			saleID, productID, true, qty).
		UpdateColumn("sold_quantity", gorm.Expr("sold_quantity + ?", qty))

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		var count int64
		if err := m.DB.Model(&models.FlashSaleProduct{}).
			Where("flash_sale_id = ? AND product_id = ?", saleID, productID).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrOfferNotFound
		}
		return ErrFlashSaleSoldOut
	}

	return nil
}

// Release gives reserved units back (order cancelled or expired).
// Floored at zero so a stray double-release can never go negative.
func (m *Manager) Release(saleID, productID uint, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("release quantity must be positive, got %d", qty)
	}

	return m.DB.Model(&models.FlashSaleProduct{}).
		Where("flash_sale_id = ? AND product_id = ?", saleID, productID).
		UpdateColumn("sold_quantity",
			gorm.Expr("CASE WHEN sold_quantity >= ? THEN sold_quantity - ? ELSE 0 END", qty, qty)).
		Error
}

// --- Admin surface ---

// ProductEntryInput is one product row in a create/update sale request
type ProductEntryInput struct {
	ProductID          uint    `json:"product_id" binding:"required"`
	OriginalPrice      float64 `json:"original_price" binding:"required"`
	DiscountPercentage float64 `json:"discount_percentage" binding:"required"`
	MaxQuantity        int     `json:"max_quantity" binding:"required"`
	IsActive           bool    `json:"is_active"`
}

// CreateSale validates every product entry against aggregate stock and
// persists the sale. The cap-vs-stock rule is admin-time only; at order
// time the stock ledger itself is the guard.
func (m *Manager) CreateSale(name string, startDate, endDate time.Time, priority int, entries []ProductEntryInput) (*models.FlashSale, error) {
	if !endDate.After(startDate) {
		return nil, errors.New("end date must be after start date")
	}

	sale := models.FlashSale{
		Name:      name,
		StartDate: startDate,
		EndDate:   endDate,
		IsActive:  true,
		Priority:  priority,
	}

	for _, e := range entries {
		if err := m.validateEntry(e); err != nil {
			return nil, err
		}
		sale.Products = append(sale.Products, models.FlashSaleProduct{
			ProductID:          e.ProductID,
			OriginalPrice:      e.OriginalPrice,
			DiscountPercentage: e.DiscountPercentage,
			MaxQuantity:        e.MaxQuantity,
			IsActive:           e.IsActive,
		})
	}

	if err := m.DB.Create(&sale).Error; err != nil {
		return nil, err
	}
	return &sale, nil
}

func (m *Manager) validateEntry(e ProductEntryInput) error {
	if e.DiscountPercentage <= 0 || e.DiscountPercentage >= 100 {
		return fmt.Errorf("discount percentage for product %d must be between 0 and 100", e.ProductID)
	}
	if e.MaxQuantity <= 0 {
		return fmt.Errorf("max quantity for product %d must be positive", e.ProductID)
	}
	available, err := m.Stock.AggregateAvailable(e.ProductID)
	if err != nil {
		return err
	}
	if e.MaxQuantity > available {
		return fmt.Errorf("max quantity %d for product %d exceeds available stock %d",
			e.MaxQuantity, e.ProductID, available)
	}
	return nil
}

// UpdateSale replaces the sale's header fields and product list. Sold
// counters of entries that survive the update are preserved.
func (m *Manager) UpdateSale(saleID uint, name string, startDate, endDate time.Time, priority int, entries []ProductEntryInput) (*models.FlashSale, error) {
	var sale models.FlashSale
	if err := m.DB.Preload("Products").First(&sale, saleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSaleNotFound
		}
		return nil, err
	}
	if !endDate.After(startDate) {
		return nil, errors.New("end date must be after start date")
	}

	soldByProduct := make(map[uint]int)
	for _, p := range sale.Products {
		soldByProduct[p.ProductID] = p.SoldQuantity
	}

	var newEntries []models.FlashSaleProduct
	for _, e := range entries {
		if err := m.validateEntry(e); err != nil {
			return nil, err
		}
		sold := soldByProduct[e.ProductID]
		if e.MaxQuantity < sold {
			return nil, fmt.Errorf("max quantity %d for product %d is below already sold %d",
				e.MaxQuantity, e.ProductID, sold)
		}
		newEntries = append(newEntries, models.FlashSaleProduct{
			FlashSaleID:        sale.ID,
			ProductID:          e.ProductID,
			OriginalPrice:      e.OriginalPrice,
			DiscountPercentage: e.DiscountPercentage,
			MaxQuantity:        e.MaxQuantity,
			SoldQuantity:       sold,
			IsActive:           e.IsActive,
		})
	}

	err := m.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("flash_sale_id = ?", sale.ID).
			Delete(&models.FlashSaleProduct{}).Error; err != nil {
			return err
		}
		sale.Name = name
		sale.StartDate = startDate
		sale.EndDate = endDate
		sale.Priority = priority
		sale.Products = newEntries
		return tx.Save(&sale).Error
	})
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

// ToggleActive flips the sale on or off
func (m *Manager) ToggleActive(saleID uint) (*models.FlashSale, error) {
	var sale models.FlashSale
	if err := m.DB.First(&sale, saleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSaleNotFound
		}
		return nil, err
	}
	sale.IsActive = !sale.IsActive
	if err := m.DB.Save(&sale).Error; err != nil {
		return nil, err
	}
	return &sale, nil
}

// DeleteSale removes the sale and its product entries
func (m *Manager) DeleteSale(saleID uint) error {
	result := m.DB.Select("Products").Delete(&models.FlashSale{ID: saleID})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSaleNotFound
	}
	return nil
}

// SaleStats - read-only aggregates for the admin dashboard, derived from
// the product entries every time, never stored
type SaleStats struct {
	SaleID             uint    `json:"sale_id"`
	TotalSold          int     `json:"total_sold"`
	TotalRevenue       float64 `json:"total_revenue"`
	AverageDiscount    float64 `json:"average_discount"`
	ProductsOutOfStock int     `json:"products_out_of_stock"`
}

// Stats computes totals over a sale's product entries
func (m *Manager) Stats(saleID uint) (*SaleStats, error) {
	var sale models.FlashSale
	if err := m.DB.Preload("Products").First(&sale, saleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSaleNotFound
		}
		return nil, err
	}

	stats := SaleStats{SaleID: sale.ID}
	var discountSum float64
	for _, p := range sale.Products {
		stats.TotalSold += p.SoldQuantity
		stats.TotalRevenue += float64(p.SoldQuantity) * p.DiscountPrice()
		discountSum += p.DiscountPercentage
		if p.SoldQuantity >= p.MaxQuantity {
			stats.ProductsOutOfStock++
		}
	}
	if len(sale.Products) > 0 {
		stats.AverageDiscount = discountSum / float64(len(sale.Products))
	}
	return &stats, nil
}
