package cart

import (
	"errors"
	"time"

	"go-fashion-store/internal/models"
	"go-fashion-store/internal/promo"
	"go-fashion-store/internal/stock"

	"gorm.io/gorm"
)

var (
	// ErrProductNotFound - the product being added doesn't exist
	ErrProductNotFound = errors.New("product not found")
	// ErrItemNotFound - no such line in this user's cart
	ErrItemNotFound = errors.New("cart item not found")
)

// Service owns the one-cart-per-user model. Item prices are snapshots;
// Reconcile re-derives them from live flash-sale state so a stale price
// is never charged at checkout.
type Service struct {
	DB    *gorm.DB
	Promo *promo.Manager
	Stock *stock.Ledger
}

func NewService(db *gorm.DB, promoMgr *promo.Manager, ledger *stock.Ledger) *Service {
	return &Service{DB: db, Promo: promoMgr, Stock: ledger}
}

// GetOrCreate loads the user's cart, creating an empty one on first use
func (s *Service) GetOrCreate(userID uint) (*models.Cart, error) {
	var cart models.Cart
	err := s.DB.Preload("Items.Product").Where("user_id = ?", userID).First(&cart).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		cart = models.Cart{UserID: userID}
		if err := s.DB.Create(&cart).Error; err != nil {
			return nil, err
		}
		return &cart, nil
	}
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// AddItem puts a (product, size, color) line into the cart. If a live
// flash-sale offer covers the product, the line is tagged and priced
// from the offer; otherwise it takes the regular price.
func (s *Service) AddItem(userID, productID uint, quantity int, size, color string) (*models.Cart, error) {
	if quantity < 1 {
		return nil, errors.New("quantity must be at least 1")
	}

	var product models.Product
	if err := s.DB.First(&product, productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}

	// Advisory stock check - the authoritative one happens at order time
	available, err := s.Stock.Available(productID, size, color)
	if err != nil {
		return nil, err
	}
	if available < quantity {
		return nil, stock.ErrInsufficientStock
	}

	cart, err := s.GetOrCreate(userID)
	if err != nil {
		return nil, err
	}

	now := time.Now()

	// Same product+size+color already in cart -> just bump the quantity
	for i := range cart.Items {
		item := &cart.Items[i]
		if item.ProductID == productID && item.Size == size && item.Color == color {
			item.Quantity += quantity
			if err := s.DB.Save(item).Error; err != nil {
				return nil, err
			}
			return s.finishMutation(cart)
		}
	}

	item := models.CartItem{
		CartID:    cart.ID,
		ProductID: productID,
		Quantity:  quantity,
		Size:      size,
		Color:     color,
		Price:     product.Price,
		AddedAt:   now,
	}

	offer, sale, err := s.Promo.FindEligibleOffer(productID, now)
	if err != nil {
		return nil, err
	}
	if offer != nil {
		applyOffer(&item, offer, sale)
	}

	if err := s.DB.Create(&item).Error; err != nil {
		return nil, err
	}
	cart.Items = append(cart.Items, item)
	return s.finishMutation(cart)
}

// applyOffer tags a cart line with a flash-sale snapshot
func applyOffer(item *models.CartItem, offer *models.FlashSaleProduct, sale *models.FlashSale) {
	endDate := sale.EndDate
	item.IsFlashSaleItem = true
	item.FlashSaleID = sale.ID
	item.OriginalPrice = offer.OriginalPrice
	item.DiscountPercentage = offer.DiscountPercentage
	item.Price = offer.DiscountPrice()
	item.SaleName = sale.Name
	item.SaleEndDate = &endDate
}

// clearOffer demotes a line back to regular price
func clearOffer(item *models.CartItem, regularPrice float64) {
	item.IsFlashSaleItem = false
	item.FlashSaleID = 0
	item.OriginalPrice = 0
	item.DiscountPercentage = 0
	item.Price = regularPrice
	item.SaleName = ""
	item.SaleEndDate = nil
}

// UpdateItemQuantity changes a line's quantity; zero or less removes it
func (s *Service) UpdateItemQuantity(userID, itemID uint, quantity int) (*models.Cart, error) {
	cart, err := s.GetOrCreate(userID)
	if err != nil {
		return nil, err
	}

	for i := range cart.Items {
		item := &cart.Items[i]
		if item.ID != itemID {
			continue
		}
		if quantity <= 0 {
			return s.RemoveItem(userID, itemID)
		}
		item.Quantity = quantity
		if err := s.DB.Save(item).Error; err != nil {
			return nil, err
		}
		return s.finishMutation(cart)
	}
	return nil, ErrItemNotFound
}

// RemoveItem deletes one line from the cart
func (s *Service) RemoveItem(userID, itemID uint) (*models.Cart, error) {
	cart, err := s.GetOrCreate(userID)
	if err != nil {
		return nil, err
	}

	result := s.DB.Where("id = ? AND cart_id = ?", itemID, cart.ID).Delete(&models.CartItem{})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrItemNotFound
	}

	return s.reload(cart.UserID)
}

// Clear empties the cart (called after an order is created)
func (s *Service) Clear(userID uint) error {
	cart, err := s.GetOrCreate(userID)
	if err != nil {
		return err
	}
	if err := s.DB.Where("cart_id = ?", cart.ID).Delete(&models.CartItem{}).Error; err != nil {
		return err
	}
	cart.Items = nil
	cart.TotalPrice = 0
	cart.TotalDiscount = 0
	return s.DB.Save(cart).Error
}

// Reconcile brings every flash-sale-tagged line back in sync with live
// sale state. A line whose sale expired, was deactivated or sold out is
// demoted to regular price; a line whose discount price drifted is
// repriced. Returns whether anything changed. Mandatory before checkout,
// best-effort on cart views.
func (s *Service) Reconcile(cart *models.Cart, now time.Time) (bool, error) {
	changed := false

	for i := range cart.Items {
		item := &cart.Items[i]
		if !item.IsFlashSaleItem {
			continue
		}

		offer, sale, err := s.Promo.FindEligibleOffer(item.ProductID, now)
		if err != nil {
			return changed, err
		}

		if offer == nil {
			// Sale gone: demote, don't reject
			regular := item.Product.Price
			if regular == 0 {
				var product models.Product
				if err := s.DB.First(&product, item.ProductID).Error; err == nil {
					regular = product.Price
				}
			}
			clearOffer(item, regular)
			if err := s.DB.Save(item).Error; err != nil {
				return changed, err
			}
			changed = true
			continue
		}

		// Still on sale, but the offer may have moved (different sale won
		// the tie-break, discount changed, price edited)
		if sale.ID != item.FlashSaleID || offer.DiscountPrice() != item.Price ||
			offer.DiscountPercentage != item.DiscountPercentage {
			applyOffer(item, offer, sale)
			if err := s.DB.Save(item).Error; err != nil {
				return changed, err
			}
			changed = true
		}
	}

	if err := s.recomputeTotals(cart); err != nil {
		return changed, err
	}
	return changed, nil
}

// finishMutation reloads line items and recomputes totals after a write
func (s *Service) finishMutation(cart *models.Cart) (*models.Cart, error) {
	fresh, err := s.reload(cart.UserID)
	if err != nil {
		return nil, err
	}
	return fresh, nil
}

func (s *Service) reload(userID uint) (*models.Cart, error) {
	var cart models.Cart
	if err := s.DB.Preload("Items.Product").Where("user_id = ?", userID).First(&cart).Error; err != nil {
		return nil, err
	}
	if err := s.recomputeTotals(&cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

// recomputeTotals derives both totals from the current lines in full.
// Never patched incrementally - that's how totals drift.
func (s *Service) recomputeTotals(cart *models.Cart) error {
	var total, discount float64
	for _, item := range cart.Items {
		total += item.Price * float64(item.Quantity)
		if item.IsFlashSaleItem && item.OriginalPrice > item.Price {
			discount += (item.OriginalPrice - item.Price) * float64(item.Quantity)
		}
	}
	cart.TotalPrice = total
	cart.TotalDiscount = discount
	return s.DB.Model(&models.Cart{}).Where("id = ?", cart.ID).
		Updates(map[string]interface{}{
			"total_price":    total,
			"total_discount": discount,
		}).Error
}
