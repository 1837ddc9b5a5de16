package voucher

import (
	"testing"
	"time"

	"go-fashion-store/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestEngine(t *testing.T) (*Engine, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.Product{}, &models.Voucher{}, &models.VoucherUsage{}, &models.Order{},
	))
	return NewEngine(db), db
}

func baseVoucher(now time.Time) models.Voucher {
	return models.Voucher{
		Code:            "SALE20",
		DiscountType:    "percentage",
		DiscountValue:   20,
		Quantity:        100,
		MaxUsagePerUser: 1,
		StartDate:       now.Add(-time.Hour),
		EndDate:         now.Add(time.Hour),
		IsActive:        true,
	}
}

func TestValidationChainOrder(t *testing.T) {
	e, db := newTestEngine(t)
	now := time.Now()

	_, err := e.ValidateAndApply("NOPE", 1, 100000, nil, now)
	assert.ErrorIs(t, err, ErrNotFound)

	v := baseVoucher(now)
	v.IsActive = false
	require.NoError(t, db.Create(&v).Error)
	_, err = e.ValidateAndApply("SALE20", 1, 100000, nil, now)
	assert.ErrorIs(t, err, ErrInactive)

	// Inactive outranks exhausted: flip flags one at a time
	require.NoError(t, db.Model(&v).Updates(map[string]interface{}{
		"is_active": true, "used_count": 100,
	}).Error)
	_, err = e.ValidateAndApply("SALE20", 1, 100000, nil, now)
	assert.ErrorIs(t, err, ErrExhausted)

	require.NoError(t, db.Model(&v).Updates(map[string]interface{}{
		"used_count": 0, "start_date": now.Add(time.Hour), "end_date": now.Add(2 * time.Hour),
	}).Error)
	_, err = e.ValidateAndApply("SALE20", 1, 100000, nil, now)
	assert.ErrorIs(t, err, ErrNotStarted)

	require.NoError(t, db.Model(&v).Updates(map[string]interface{}{
		"start_date": now.Add(-2 * time.Hour), "end_date": now.Add(-time.Hour),
	}).Error)
	_, err = e.ValidateAndApply("SALE20", 1, 100000, nil, now)
	assert.ErrorIs(t, err, ErrExpired)

	require.NoError(t, db.Model(&v).Updates(map[string]interface{}{
		"end_date": now.Add(time.Hour), "min_order_amount": 500000,
	}).Error)
	_, err = e.ValidateAndApply("SALE20", 1, 100000, nil, now)
	assert.ErrorIs(t, err, ErrMinOrderNotMet)
}

func TestPerUserLimit(t *testing.T) {
	e, db := newTestEngine(t)
	now := time.Now()
	v := baseVoucher(now)
	require.NoError(t, db.Create(&v).Error)

	require.NoError(t, db.Create(&models.VoucherUsage{
		VoucherID: v.ID, UserID: 1, OrderID: 10, UsedAt: now,
	}).Error)

	_, err := e.ValidateAndApply("SALE20", 1, 100000, nil, now)
	assert.ErrorIs(t, err, ErrUserLimitReached)

	// A different user is unaffected
	res, err := e.ValidateAndApply("SALE20", 2, 100000, nil, now)
	require.NoError(t, err)
	assert.Equal(t, float64(20000), res.DiscountAmount)
}

func TestPercentageCappedDiscount(t *testing.T) {
	e, db := newTestEngine(t)
	now := time.Now()
	v := baseVoucher(now)
	v.MaxDiscountAmount = 50000
	require.NoError(t, db.Create(&v).Error)

	// 20% of 500,000 is 100,000, capped at 50,000
	res, err := e.ValidateAndApply("SALE20", 1, 500000, nil, now)
	require.NoError(t, err)
	assert.Equal(t, float64(50000), res.DiscountAmount)
	assert.Equal(t, float64(450000), res.FinalAmount)
}

func TestFixedDiscountNeverExceedsBase(t *testing.T) {
	e, db := newTestEngine(t)
	now := time.Now()
	v := baseVoucher(now)
	v.Code = "MINUS70K"
	v.DiscountType = "fixed"
	v.DiscountValue = 70000
	require.NoError(t, db.Create(&v).Error)

	res, err := e.ValidateAndApply("MINUS70K", 1, 50000, nil, now)
	require.NoError(t, err)
	assert.Equal(t, float64(50000), res.DiscountAmount)
	assert.Equal(t, float64(0), res.FinalAmount)
}

func TestDiscountFlooredToWholeUnit(t *testing.T) {
	e, db := newTestEngine(t)
	now := time.Now()
	v := baseVoucher(now)
	v.DiscountValue = 15 // 15% of 99,999 = 14,999.85
	require.NoError(t, db.Create(&v).Error)

	res, err := e.ValidateAndApply("SALE20", 1, 99999, nil, now)
	require.NoError(t, err)
	assert.Equal(t, float64(14999), res.DiscountAmount)
}

func cartItem(productID uint, category, brand string, price float64, qty int) models.CartItem {
	return models.CartItem{
		ProductID: productID,
		Quantity:  qty,
		Price:     price,
		Product:   models.Product{ID: productID, Category: category, Brand: brand},
	}
}

func TestApplicabilityNarrowing(t *testing.T) {
	e, db := newTestEngine(t)
	now := time.Now()
	v := baseVoucher(now)
	v.Categories = "shoes"
	v.ExcludedProducts = "3"
	require.NoError(t, db.Create(&v).Error)

	items := []models.CartItem{
		cartItem(1, "shoes", "Nike", 100000, 1),  // counts
		cartItem(2, "shirts", "Nike", 200000, 1), // wrong category
		cartItem(3, "shoes", "Asics", 150000, 2), // excluded
	}

	// Base narrows to 100,000 even though the order totals 650,000
	res, err := e.ValidateAndApply("SALE20", 1, 650000, items, now)
	require.NoError(t, err)
	assert.Equal(t, float64(20000), res.DiscountAmount)
	assert.Equal(t, float64(630000), res.FinalAmount)
}

func TestNoApplicableItems(t *testing.T) {
	e, db := newTestEngine(t)
	now := time.Now()
	v := baseVoucher(now)
	v.Brands = "Uniqlo"
	require.NoError(t, db.Create(&v).Error)

	items := []models.CartItem{cartItem(1, "shoes", "Nike", 100000, 1)}

	_, err := e.ValidateAndApply("SALE20", 1, 100000, items, now)
	assert.ErrorIs(t, err, ErrNoApplicableItems)
}

// A voucher with one use left can be consumed exactly once; the second
// taker hits the conditional increment's guard.
func TestConsumeLastUse(t *testing.T) {
	e, db := newTestEngine(t)
	now := time.Now()
	v := baseVoucher(now)
	v.Quantity = 1
	require.NoError(t, db.Create(&v).Error)

	require.NoError(t, e.Consume(db, v.ID, 1, 100, now))

	err := e.Consume(db, v.ID, 2, 101, now)
	assert.ErrorIs(t, err, ErrExhausted)

	var fresh models.Voucher
	require.NoError(t, db.First(&fresh, v.ID).Error)
	assert.Equal(t, 1, fresh.UsedCount)

	var usages int64
	require.NoError(t, db.Model(&models.VoucherUsage{}).Count(&usages).Error)
	assert.Equal(t, int64(1), usages)
}

func TestConsumeRecordsUsage(t *testing.T) {
	e, db := newTestEngine(t)
	now := time.Now()
	v := baseVoucher(now)
	require.NoError(t, db.Create(&v).Error)

	require.NoError(t, e.Consume(db, v.ID, 7, 42, now))

	var usage models.VoucherUsage
	require.NoError(t, db.Where("voucher_id = ?", v.ID).First(&usage).Error)
	assert.Equal(t, uint(7), usage.UserID)
	assert.Equal(t, uint(42), usage.OrderID)
}

func TestAdminLifecycle(t *testing.T) {
	e, _ := newTestEngine(t)
	now := time.Now()

	v, err := e.Create(Input{
		Code: "WELCOME", DiscountType: "fixed", DiscountValue: 30000,
		Quantity: 10, MaxUsagePerUser: 1,
		StartDate: now.Add(-time.Hour), EndDate: now.Add(time.Hour),
	})
	require.NoError(t, err)
	assert.True(t, v.IsActive)

	toggled, err := e.ToggleActive(v.ID)
	require.NoError(t, err)
	assert.False(t, toggled.IsActive)

	stats, err := e.Stats(v.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, stats.Remaining)

	require.NoError(t, e.Delete(v.ID))
	assert.ErrorIs(t, e.Delete(v.ID), ErrNotFound)
}
