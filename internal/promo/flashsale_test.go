package promo

import (
	"testing"
	"time"

	"go-fashion-store/internal/models"
	"go-fashion-store/internal/stock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestManager(t *testing.T) (*Manager, *gorm.DB) {
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
	))

	return NewManager(db, stock.NewLedger(db)), db
}

func seedStock(t *testing.T, db *gorm.DB, productID uint, qty int) {
	t.Helper()
	require.NoError(t, db.Create(&models.StockVariant{
		ProductID: productID, Size: "M", Color: "black", Quantity: qty,
	}).Error)
}

func seedSale(t *testing.T, db *gorm.DB, name string, priority int, start, end time.Time, products ...models.FlashSaleProduct) *models.FlashSale {
	t.Helper()
	sale := models.FlashSale{
		Name:      name,
		StartDate: start,
		EndDate:   end,
		IsActive:  true,
		Priority:  priority,
		Products:  products,
	}
	require.NoError(t, db.Create(&sale).Error)
	return &sale
}

func TestDiscountPriceRounding(t *testing.T) {
	p := models.FlashSaleProduct{OriginalPrice: 100000, DiscountPercentage: 20}
	assert.Equal(t, float64(80000), p.DiscountPrice())

	p = models.FlashSaleProduct{OriginalPrice: 99999, DiscountPercentage: 33}
	assert.Equal(t, float64(66999), p.DiscountPrice()) // 66999.33 rounds down
}

func TestReserveRespectsCap(t *testing.T) {
	m, db := newTestManager(t)
	now := time.Now()
	sale := seedSale(t, db, "Weekend Drop", 0, now.Add(-time.Hour), now.Add(time.Hour),
		models.FlashSaleProduct{ProductID: 1, OriginalPrice: 100000, DiscountPercentage: 20,
			MaxQuantity: 10, SoldQuantity: 8, IsActive: true})

	// 8 sold of 10: asking for 3 must fail, asking for 2 must land on 10
	assert.ErrorIs(t, m.Reserve(sale.ID, 1, 3), ErrFlashSaleSoldOut)
	require.NoError(t, m.Reserve(sale.ID, 1, 2))

	var entry models.FlashSaleProduct
	require.NoError(t, db.Where("flash_sale_id = ? AND product_id = ?", sale.ID, 1).First(&entry).Error)
	assert.Equal(t, 10, entry.SoldQuantity)

	// Cap reached: nothing more fits
	assert.ErrorIs(t, m.Reserve(sale.ID, 1, 1), ErrFlashSaleSoldOut)
}

func TestReserveUnknownOffer(t *testing.T) {
	m, _ := newTestManager(t)
	assert.ErrorIs(t, m.Reserve(7, 7, 1), ErrOfferNotFound)
}

func TestReleaseFloorsAtZero(t *testing.T) {
	m, db := newTestManager(t)
	now := time.Now()
	sale := seedSale(t, db, "Clearance", 0, now.Add(-time.Hour), now.Add(time.Hour),
		models.FlashSaleProduct{ProductID: 1, OriginalPrice: 50000, DiscountPercentage: 10,
			MaxQuantity: 5, SoldQuantity: 2, IsActive: true})

	require.NoError(t, m.Release(sale.ID, 1, 10))

	var entry models.FlashSaleProduct
	require.NoError(t, db.Where("flash_sale_id = ?", sale.ID).First(&entry).Error)
	assert.Equal(t, 0, entry.SoldQuantity)
}

func TestFindEligibleOfferPriorityWins(t *testing.T) {
	m, db := newTestManager(t)
	now := time.Now()

	seedSale(t, db, "Low Priority", 1, now.Add(-time.Hour), now.Add(time.Hour),
		models.FlashSaleProduct{ProductID: 1, OriginalPrice: 100000, DiscountPercentage: 10,
			MaxQuantity: 5, IsActive: true})
	high := seedSale(t, db, "High Priority", 9, now.Add(-time.Hour), now.Add(time.Hour),
		models.FlashSaleProduct{ProductID: 1, OriginalPrice: 100000, DiscountPercentage: 30,
			MaxQuantity: 5, IsActive: true})

	offer, sale, err := m.FindEligibleOffer(1, now)
	require.NoError(t, err)
	require.NotNil(t, offer)
	assert.Equal(t, high.ID, sale.ID)
	assert.Equal(t, float64(70000), offer.DiscountPrice())
}

func TestFindEligibleOfferSkipsIneligible(t *testing.T) {
	m, db := newTestManager(t)
	now := time.Now()

	// Window passed
	seedSale(t, db, "Over", 5, now.Add(-3*time.Hour), now.Add(-time.Hour),
		models.FlashSaleProduct{ProductID: 1, OriginalPrice: 80000, DiscountPercentage: 50,
			MaxQuantity: 5, IsActive: true})
	// Entry switched off
	seedSale(t, db, "Hidden Entry", 5, now.Add(-time.Hour), now.Add(time.Hour),
		models.FlashSaleProduct{ProductID: 1, OriginalPrice: 80000, DiscountPercentage: 40,
			MaxQuantity: 5, IsActive: false})
	// Sold out
	seedSale(t, db, "Gone", 5, now.Add(-time.Hour), now.Add(time.Hour),
		models.FlashSaleProduct{ProductID: 1, OriginalPrice: 80000, DiscountPercentage: 30,
			MaxQuantity: 5, SoldQuantity: 5, IsActive: true})

	offer, _, err := m.FindEligibleOffer(1, now)
	require.NoError(t, err)
	assert.Nil(t, offer)

	// Sale deactivated entirely
	sale := seedSale(t, db, "Switched Off", 5, now.Add(-time.Hour), now.Add(time.Hour),
		models.FlashSaleProduct{ProductID: 1, OriginalPrice: 80000, DiscountPercentage: 20,
			MaxQuantity: 5, IsActive: true})
	require.NoError(t, db.Model(&models.FlashSale{}).Where("id = ?", sale.ID).
		Update("is_active", false).Error)

	offer, _, err = m.FindEligibleOffer(1, now)
	require.NoError(t, err)
	assert.Nil(t, offer)
}

func TestCreateSaleValidatesCapAgainstStock(t *testing.T) {
	m, db := newTestManager(t)
	seedStock(t, db, 1, 8)
	now := time.Now()

	_, err := m.CreateSale("Too Big", now, now.Add(time.Hour), 0, []ProductEntryInput{
		{ProductID: 1, OriginalPrice: 100000, DiscountPercentage: 20, MaxQuantity: 9, IsActive: true},
	})
	assert.Error(t, err)

	sale, err := m.CreateSale("Fits", now, now.Add(time.Hour), 0, []ProductEntryInput{
		{ProductID: 1, OriginalPrice: 100000, DiscountPercentage: 20, MaxQuantity: 8, IsActive: true},
	})
	require.NoError(t, err)
	assert.Len(t, sale.Products, 1)
}

// Caps are additive across simultaneous sales on the same variant: each
// sale's cap is checked against raw stock on its own, and the ledger is
// the real oversell guard at order time.
func TestCapsAdditiveAcrossSales(t *testing.T) {
	m, db := newTestManager(t)
	seedStock(t, db, 1, 10)
	now := time.Now()

	_, err := m.CreateSale("First", now, now.Add(time.Hour), 1, []ProductEntryInput{
		{ProductID: 1, OriginalPrice: 100000, DiscountPercentage: 10, MaxQuantity: 7, IsActive: true},
	})
	require.NoError(t, err)

	_, err = m.CreateSale("Second", now, now.Add(time.Hour), 2, []ProductEntryInput{
		{ProductID: 1, OriginalPrice: 100000, DiscountPercentage: 15, MaxQuantity: 7, IsActive: true},
	})
	require.NoError(t, err, "a second sale may budget the same stock")
}

func TestUpdateSalePreservesSoldCount(t *testing.T) {
	m, db := newTestManager(t)
	seedStock(t, db, 1, 50)
	now := time.Now()
	sale := seedSale(t, db, "Original", 0, now.Add(-time.Hour), now.Add(time.Hour),
		models.FlashSaleProduct{ProductID: 1, OriginalPrice: 100000, DiscountPercentage: 20,
			MaxQuantity: 20, SoldQuantity: 6, IsActive: true})

	updated, err := m.UpdateSale(sale.ID, "Renamed", now.Add(-time.Hour), now.Add(2*time.Hour), 3,
		[]ProductEntryInput{
			{ProductID: 1, OriginalPrice: 100000, DiscountPercentage: 25, MaxQuantity: 30, IsActive: true},
		})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	require.Len(t, updated.Products, 1)
	assert.Equal(t, 6, updated.Products[0].SoldQuantity)

	// Shrinking the cap below what's already sold is rejected
	_, err = m.UpdateSale(sale.ID, "Renamed", now.Add(-time.Hour), now.Add(2*time.Hour), 3,
		[]ProductEntryInput{
			{ProductID: 1, OriginalPrice: 100000, DiscountPercentage: 25, MaxQuantity: 5, IsActive: true},
		})
	assert.Error(t, err)
}

func TestActiveSalesOrdering(t *testing.T) {
	m, db := newTestManager(t)
	now := time.Now()

	seedSale(t, db, "Old Low", 1, now.Add(-time.Hour), now.Add(time.Hour))
	seedSale(t, db, "Top", 9, now.Add(-time.Hour), now.Add(time.Hour))
	seedSale(t, db, "Inactive", 10, now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, db.Model(&models.FlashSale{}).Where("name = ?", "Inactive").
		Update("is_active", false).Error)

	sales, err := m.ActiveSales(now)
	require.NoError(t, err)
	require.Len(t, sales, 2)
	assert.Equal(t, "Top", sales[0].Name)
	assert.Equal(t, "Old Low", sales[1].Name)
}

func TestStats(t *testing.T) {
	m, db := newTestManager(t)
	now := time.Now()
	sale := seedSale(t, db, "Numbers", 0, now.Add(-time.Hour), now.Add(time.Hour),
		models.FlashSaleProduct{ProductID: 1, OriginalPrice: 100000, DiscountPercentage: 20,
			MaxQuantity: 10, SoldQuantity: 10, IsActive: true}, // sold out, revenue 10*80000
		models.FlashSaleProduct{ProductID: 2, OriginalPrice: 200000, DiscountPercentage: 50,
			MaxQuantity: 10, SoldQuantity: 4, IsActive: true}, // revenue 4*100000
	)

	stats, err := m.Stats(sale.ID)
	require.NoError(t, err)
	assert.Equal(t, 14, stats.TotalSold)
	assert.Equal(t, float64(1200000), stats.TotalRevenue)
	assert.Equal(t, float64(35), stats.AverageDiscount)
	assert.Equal(t, 1, stats.ProductsOutOfStock)
}

func TestToggleAndDelete(t *testing.T) {
	m, db := newTestManager(t)
	now := time.Now()
	sale := seedSale(t, db, "Toggle Me", 0, now.Add(-time.Hour), now.Add(time.Hour))

	toggled, err := m.ToggleActive(sale.ID)
	require.NoError(t, err)
	assert.False(t, toggled.IsActive)

	require.NoError(t, m.DeleteSale(sale.ID))
	assert.ErrorIs(t, m.DeleteSale(sale.ID), ErrSaleNotFound)
	_, err = m.Stats(sale.ID)
	assert.ErrorIs(t, err, ErrSaleNotFound)
}
