package stock

import (
	"errors"
	"fmt"

	"go-fashion-store/internal/models"

	"gorm.io/gorm"
)

var (
	// ErrInsufficientStock - the variant cannot cover the requested quantity
	ErrInsufficientStock = errors.New("insufficient stock for this variant")
	// ErrVariantNotFound - no such (product, size, color) combination
	ErrVariantNotFound = errors.New("stock variant not found")
)

// Ledger is the authoritative source for per-variant stock quantities.
// Every mutation is a single conditional UPDATE so that concurrent
// checkouts against the same variant can never oversell.
type Ledger struct {
	DB *gorm.DB
}

func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{DB: db}
}

// Available returns the current quantity for one variant
func (l *Ledger) Available(productID uint, size, color string) (int, error) {
	var variant models.StockVariant
	err := l.DB.Where("product_id = ? AND size = ? AND color = ?", productID, size, color).
		First(&variant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, ErrVariantNotFound
	}
	if err != nil {
		return 0, err
	}
	return variant.Quantity, nil
}

// AggregateAvailable sums all variants of a product. The admin flash-sale
// picker uses this to bound a sale entry's max quantity.
func (l *Ledger) AggregateAvailable(productID uint) (int, error) {
	var total int
	err := l.DB.Model(&models.StockVariant{}).
		Where("product_id = ?", productID).
		Select("COALESCE(SUM(quantity), 0)").
		Scan(&total).Error
	return total, err
}

// Debit decrements a variant's quantity, but ONLY if enough stock remains.
// The check and the decrement are one UPDATE statement, not a read-then-write
// pair, so two concurrent debits can never both win the last units.
func (l *Ledger) Debit(productID uint, size, color string, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("debit quantity must be positive, got %d", qty)
	}

	result := l.DB.Model(&models.StockVariant{}).
		Where("product_id = ? AND size = ? AND color = ? AND quantity >= ?",
			productID, size, color, qty).
		UpdateColumn("quantity", gorm.Expr("quantity - ?", qty))

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		// Either the variant doesn't exist or it can't cover the quantity
		var count int64
		if err := l.DB.Model(&models.StockVariant{}).
			Where("product_id = ? AND size = ? AND color = ?", productID, size, color).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrVariantNotFound
		}
		return ErrInsufficientStock
	}

	return nil
}

// Credit increments a variant's quantity. This is the only legal way to
// reverse a debit (order cancellation, expiry, saga compensation), and it
// cannot fail on a business rule - incrementing always succeeds.
func (l *Ledger) Credit(productID uint, size, color string, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("credit quantity must be positive, got %d", qty)
	}

	result := l.DB.Model(&models.StockVariant{}).
		Where("product_id = ? AND size = ? AND color = ?", productID, size, color).
		UpdateColumn("quantity", gorm.Expr("quantity + ?", qty))

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrVariantNotFound
	}
	return nil
}

// SetQuantity is the admin stock-edit path. It overwrites the counter
// outright, so it must never be used by the order flow.
func (l *Ledger) SetQuantity(productID uint, size, color string, qty int) error {
	if qty < 0 {
		return fmt.Errorf("quantity cannot be negative, got %d", qty)
	}

	result := l.DB.Model(&models.StockVariant{}).
		Where("product_id = ? AND size = ? AND color = ?", productID, size, color).
		UpdateColumn("quantity", qty)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrVariantNotFound
	}
	return nil
}
