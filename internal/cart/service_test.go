package cart

import (
	"testing"
	"time"

	"go-fashion-store/internal/models"
	"go-fashion-store/internal/promo"
	"go-fashion-store/internal/stock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.Product{}, &models.StockVariant{},
		&models.FlashSale{}, &models.FlashSaleProduct{},
		&models.Cart{}, &models.CartItem{},
	))

	ledger := stock.NewLedger(db)
	return NewService(db, promo.NewManager(db, ledger), ledger), db
}

func seedProduct(t *testing.T, db *gorm.DB, name string, price float64, qty int) *models.Product {
	t.Helper()
	p := models.Product{
		Name: name, Category: "dresses", Brand: "Zara", Price: price,
		Variants: []models.StockVariant{{Size: "M", Color: "black", Quantity: qty}},
	}
	require.NoError(t, db.Create(&p).Error)
	return &p
}

func seedRunningSale(t *testing.T, db *gorm.DB, productID uint, original, pct float64, maxQty int) *models.FlashSale {
	t.Helper()
	now := time.Now()
	sale := models.FlashSale{
		Name: "Midnight Drop", StartDate: now.Add(-time.Hour), EndDate: now.Add(time.Hour),
		IsActive: true, Priority: 5,
		Products: []models.FlashSaleProduct{{
			ProductID: productID, OriginalPrice: original, DiscountPercentage: pct,
			MaxQuantity: maxQty, IsActive: true,
		}},
	}
	require.NoError(t, db.Create(&sale).Error)
	return &sale
}

func TestAddItemRegularPrice(t *testing.T) {
	s, db := newTestService(t)
	p := seedProduct(t, db, "Linen Shirt", 250000, 10)

	cart, err := s.AddItem(1, p.ID, 2, "M", "black")
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)

	item := cart.Items[0]
	assert.Equal(t, float64(250000), item.Price)
	assert.False(t, item.IsFlashSaleItem)
	assert.Equal(t, float64(500000), cart.TotalPrice)
	assert.Equal(t, float64(0), cart.TotalDiscount)
}

func TestAddItemPicksUpFlashSale(t *testing.T) {
	s, db := newTestService(t)
	p := seedProduct(t, db, "Denim Jacket", 100000, 10)
	sale := seedRunningSale(t, db, p.ID, 100000, 20, 5)

	cart, err := s.AddItem(1, p.ID, 1, "M", "black")
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)

	item := cart.Items[0]
	assert.True(t, item.IsFlashSaleItem)
	assert.Equal(t, sale.ID, item.FlashSaleID)
	assert.Equal(t, float64(80000), item.Price)
	assert.Equal(t, float64(100000), item.OriginalPrice)
	assert.Equal(t, "Midnight Drop", item.SaleName)
	assert.Equal(t, float64(80000), cart.TotalPrice)
	assert.Equal(t, float64(20000), cart.TotalDiscount)
}

func TestAddItemInsufficientStock(t *testing.T) {
	s, db := newTestService(t)
	p := seedProduct(t, db, "Silk Scarf", 90000, 1)

	_, err := s.AddItem(1, p.ID, 2, "M", "black")
	assert.ErrorIs(t, err, stock.ErrInsufficientStock)
}

func TestAddSameVariantBumpsQuantity(t *testing.T) {
	s, db := newTestService(t)
	p := seedProduct(t, db, "Wool Coat", 400000, 10)

	_, err := s.AddItem(1, p.ID, 1, "M", "black")
	require.NoError(t, err)
	cart, err := s.AddItem(1, p.ID, 2, "M", "black")
	require.NoError(t, err)

	require.Len(t, cart.Items, 1)
	assert.Equal(t, 3, cart.Items[0].Quantity)
	assert.Equal(t, float64(1200000), cart.TotalPrice)
}

// The cart kept an 80,000 flash price; the sale then ended. Reconcile
// must demote the line to the regular price, clear the sale fields and
// recompute the totals.
func TestReconcileDemotesExpiredSaleItem(t *testing.T) {
	s, db := newTestService(t)
	p := seedProduct(t, db, "Graphic Tee", 100000, 10)
	sale := seedRunningSale(t, db, p.ID, 100000, 20, 5)

	cart, err := s.AddItem(1, p.ID, 1, "M", "black")
	require.NoError(t, err)
	require.True(t, cart.Items[0].IsFlashSaleItem)

	// The sale window closes
	require.NoError(t, db.Model(&models.FlashSale{}).Where("id = ?", sale.ID).
		Update("end_date", time.Now().Add(-time.Minute)).Error)

	changed, err := s.Reconcile(cart, time.Now())
	require.NoError(t, err)
	assert.True(t, changed)

	item := cart.Items[0]
	assert.False(t, item.IsFlashSaleItem)
	assert.Equal(t, uint(0), item.FlashSaleID)
	assert.Equal(t, float64(100000), item.Price)
	assert.Empty(t, item.SaleName)
	assert.Nil(t, item.SaleEndDate)
	assert.Equal(t, float64(100000), cart.TotalPrice)
	assert.Equal(t, float64(0), cart.TotalDiscount)
}

func TestReconcileDemotesSoldOutItem(t *testing.T) {
	s, db := newTestService(t)
	p := seedProduct(t, db, "Canvas Tote", 60000, 10)
	sale := seedRunningSale(t, db, p.ID, 60000, 50, 3)

	cart, err := s.AddItem(1, p.ID, 1, "M", "black")
	require.NoError(t, err)

	// Someone else takes the whole cap
	require.NoError(t, db.Model(&models.FlashSaleProduct{}).
		Where("flash_sale_id = ?", sale.ID).
		Update("sold_quantity", 3).Error)

	changed, err := s.Reconcile(cart, time.Now())
	require.NoError(t, err)
	assert.True(t, changed)
	assert.False(t, cart.Items[0].IsFlashSaleItem)
	assert.Equal(t, float64(60000), cart.Items[0].Price)
}

func TestReconcileRepricesDriftedDiscount(t *testing.T) {
	s, db := newTestService(t)
	p := seedProduct(t, db, "Chino Pants", 200000, 10)
	sale := seedRunningSale(t, db, p.ID, 200000, 10, 5)

	cart, err := s.AddItem(1, p.ID, 1, "M", "black")
	require.NoError(t, err)
	assert.Equal(t, float64(180000), cart.Items[0].Price)

	// Admin deepens the discount mid-sale
	require.NoError(t, db.Model(&models.FlashSaleProduct{}).
		Where("flash_sale_id = ?", sale.ID).
		Update("discount_percentage", 30).Error)

	changed, err := s.Reconcile(cart, time.Now())
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, float64(140000), cart.Items[0].Price)
	assert.Equal(t, float64(140000), cart.TotalPrice)
	assert.Equal(t, float64(60000), cart.TotalDiscount)
}

func TestReconcileNoChangeIsQuiet(t *testing.T) {
	s, db := newTestService(t)
	p := seedProduct(t, db, "Rain Parka", 300000, 10)
	seedRunningSale(t, db, p.ID, 300000, 25, 5)

	cart, err := s.AddItem(1, p.ID, 1, "M", "black")
	require.NoError(t, err)

	changed, err := s.Reconcile(cart, time.Now())
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestUpdateQuantityAndRemove(t *testing.T) {
	s, db := newTestService(t)
	p := seedProduct(t, db, "Ankle Boots", 500000, 10)

	cart, err := s.AddItem(1, p.ID, 1, "M", "black")
	require.NoError(t, err)
	itemID := cart.Items[0].ID

	cart, err = s.UpdateItemQuantity(1, itemID, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, cart.Items[0].Quantity)
	assert.Equal(t, float64(2000000), cart.TotalPrice)

	// Zero quantity removes the line
	cart, err = s.UpdateItemQuantity(1, itemID, 0)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	assert.Equal(t, float64(0), cart.TotalPrice)

	_, err = s.RemoveItem(1, itemID)
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestClear(t *testing.T) {
	s, db := newTestService(t)
	p := seedProduct(t, db, "Baseball Cap", 80000, 10)

	_, err := s.AddItem(1, p.ID, 2, "M", "black")
	require.NoError(t, err)

	require.NoError(t, s.Clear(1))

	cart, err := s.GetOrCreate(1)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	assert.Equal(t, float64(0), cart.TotalPrice)
}

func TestOneCartPerUser(t *testing.T) {
	s, db := newTestService(t)
	p := seedProduct(t, db, "Leather Belt", 120000, 10)

	_, err := s.AddItem(1, p.ID, 1, "M", "black")
	require.NoError(t, err)
	_, err = s.AddItem(2, p.ID, 1, "M", "black")
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Model(&models.Cart{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)

	cart1, err := s.GetOrCreate(1)
	require.NoError(t, err)
	cart2, err := s.GetOrCreate(2)
	require.NoError(t, err)
	assert.NotEqual(t, cart1.ID, cart2.ID)
}
