package voucher

import (
	"errors"
	"math"
	"time"

	"go-fashion-store/internal/models"

	"gorm.io/gorm"
)

// Every validation failure is a distinct, user-facing reason. The checkout
// UI surfaces these verbatim, so the messages matter.
var (
	ErrNotFound          = errors.New("voucher code not found")
	ErrInactive          = errors.New("voucher is no longer active")
	ErrExhausted         = errors.New("voucher has been fully redeemed")
	ErrNotStarted        = errors.New("voucher is not valid yet")
	ErrExpired           = errors.New("voucher has expired")
	ErrUserLimitReached  = errors.New("you have already used this voucher the maximum number of times")
	ErrMinOrderNotMet    = errors.New("order amount is below the voucher minimum")
	ErrNoApplicableItems = errors.New("no items in this order qualify for the voucher")
)

// Engine validates and applies discount vouchers. Consumption (the
// used-count increment plus the usage record) happens inside the order
// creation transaction so two concurrent orders can never both take the
// last use.
type Engine struct {
	DB *gorm.DB
}

func NewEngine(db *gorm.DB) *Engine {
	return &Engine{DB: db}
}

// Result of a successful validation
type Result struct {
	Voucher        *models.Voucher `json:"voucher"`
	DiscountAmount float64         `json:"discount_amount"`
	FinalAmount    float64         `json:"final_amount"`
}

// ValidateAndApply runs the full validation chain against a voucher code
// and computes the discount. First failing check wins; the order of checks
// is fixed: exists, active, global cap, time window, per-user cap,
// minimum order, applicability.
func (e *Engine) ValidateAndApply(code string, userID uint, orderAmount float64, items []models.CartItem, now time.Time) (*Result, error) {
	var v models.Voucher
	if err := e.DB.Where("code = ?", code).First(&v).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if !v.IsActive {
		return nil, ErrInactive
	}
	if v.UsedCount >= v.Quantity {
		return nil, ErrExhausted
	}
	if now.Before(v.StartDate) {
		return nil, ErrNotStarted
	}
	if now.After(v.EndDate) {
		return nil, ErrExpired
	}

	var userUses int64
	if err := e.DB.Model(&models.VoucherUsage{}).
		Where("voucher_id = ? AND user_id = ?", v.ID, userID).
		Count(&userUses).Error; err != nil {
		return nil, err
	}
	if int(userUses) >= v.MaxUsagePerUser {
		return nil, ErrUserLimitReached
	}

	if orderAmount < v.MinOrderAmount {
		return nil, ErrMinOrderNotMet
	}

	// Applicability narrowing: with category/brand filters the discount
	// base shrinks to the matching, non-excluded lines only.
	base := orderAmount
	if len(v.CategoryList()) > 0 || len(v.BrandList()) > 0 || len(v.ExcludedProductIDs()) > 0 {
		base = applicableBase(&v, items)
		if base <= 0 {
			return nil, ErrNoApplicableItems
		}
	}

	discount := computeDiscount(&v, base)
	return &Result{
		Voucher:        &v,
		DiscountAmount: discount,
		FinalAmount:    orderAmount - discount,
	}, nil
}

// applicableBase sums only the line items the voucher covers
func applicableBase(v *models.Voucher, items []models.CartItem) float64 {
	categories := toSet(v.CategoryList())
	brands := toSet(v.BrandList())
	excluded := make(map[uint]bool)
	for _, id := range v.ExcludedProductIDs() {
		excluded[id] = true
	}

	var base float64
	for _, item := range items {
		if excluded[item.ProductID] {
			continue
		}
		if len(categories) > 0 && !categories[item.Product.Category] {
			continue
		}
		if len(brands) > 0 && !brands[item.Product.Brand] {
			continue
		}
		base += item.Price * float64(item.Quantity)
	}
	return base
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, val := range values {
		set[val] = true
	}
	return set
}

// computeDiscount applies the voucher's discount rule to the base amount.
// The result is floored to a whole currency unit.
func computeDiscount(v *models.Voucher, base float64) float64 {
	var discount float64
	switch v.DiscountType {
	case "percentage":
		discount = base * v.DiscountValue / 100
		if v.MaxDiscountAmount > 0 && discount > v.MaxDiscountAmount {
			discount = v.MaxDiscountAmount
		}
	default: // fixed
		discount = math.Min(v.DiscountValue, base)
	}
	return math.Floor(discount)
}

// Consume redeems one use of the voucher for an order. The global cap is
// enforced by a conditional increment (used_count < quantity in the WHERE
// clause), and the usage record is appended in the same transaction, so
// validation and consumption cannot be split by a concurrent order.
func (e *Engine) Consume(tx *gorm.DB, voucherID, userID, orderID uint, now time.Time) error {
	result := tx.Model(&models.Voucher{}).
		Where("id = ? AND used_count < quantity", voucherID).
		UpdateColumn("used_count", gorm.Expr("used_count + 1"))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrExhausted
	}

	// Per-user cap re-checked under the same transaction
	var v models.Voucher
	if err := tx.First(&v, voucherID).Error; err != nil {
		return err
	}
	var userUses int64
	if err := tx.Model(&models.VoucherUsage{}).
		Where("voucher_id = ? AND user_id = ?", voucherID, userID).
		Count(&userUses).Error; err != nil {
		return err
	}
	if int(userUses) >= v.MaxUsagePerUser {
		return ErrUserLimitReached
	}

	return tx.Create(&models.VoucherUsage{
		VoucherID: voucherID,
		UserID:    userID,
		OrderID:   orderID,
		UsedAt:    now,
	}).Error
}

// --- Admin surface ---

// Input for creating or updating a voucher
type Input struct {
	Code              string    `json:"code" binding:"required"`
	DiscountType      string    `json:"discount_type" binding:"required,oneof=percentage fixed"`
	DiscountValue     float64   `json:"discount_value" binding:"required,gt=0"`
	MinOrderAmount    float64   `json:"min_order_amount"`
	MaxDiscountAmount float64   `json:"max_discount_amount"`
	Quantity          int       `json:"quantity" binding:"required,gt=0"`
	MaxUsagePerUser   int       `json:"max_usage_per_user" binding:"required,gt=0"`
	StartDate         time.Time `json:"start_date" binding:"required"`
	EndDate           time.Time `json:"end_date" binding:"required"`
	Categories        string    `json:"categories"`
	Brands            string    `json:"brands"`
	ExcludedProducts  string    `json:"excluded_products"`
}

// Create persists a new voucher
func (e *Engine) Create(in Input) (*models.Voucher, error) {
	if !in.EndDate.After(in.StartDate) {
		return nil, errors.New("end date must be after start date")
	}
	v := models.Voucher{
		Code:              in.Code,
		DiscountType:      in.DiscountType,
		DiscountValue:     in.DiscountValue,
		MinOrderAmount:    in.MinOrderAmount,
		MaxDiscountAmount: in.MaxDiscountAmount,
		Quantity:          in.Quantity,
		MaxUsagePerUser:   in.MaxUsagePerUser,
		StartDate:         in.StartDate,
		EndDate:           in.EndDate,
		IsActive:          true,
		Categories:        in.Categories,
		Brands:            in.Brands,
		ExcludedProducts:  in.ExcludedProducts,
	}
	if err := e.DB.Create(&v).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

// Update rewrites a voucher's rules. The used counter and usage records
// are left untouched.
func (e *Engine) Update(id uint, in Input) (*models.Voucher, error) {
	var v models.Voucher
	if err := e.DB.First(&v, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !in.EndDate.After(in.StartDate) {
		return nil, errors.New("end date must be after start date")
	}
	if in.Quantity < v.UsedCount {
		return nil, errors.New("quantity cannot be below the already used count")
	}

	v.Code = in.Code
	v.DiscountType = in.DiscountType
	v.DiscountValue = in.DiscountValue
	v.MinOrderAmount = in.MinOrderAmount
	v.MaxDiscountAmount = in.MaxDiscountAmount
	v.Quantity = in.Quantity
	v.MaxUsagePerUser = in.MaxUsagePerUser
	v.StartDate = in.StartDate
	v.EndDate = in.EndDate
	v.Categories = in.Categories
	v.Brands = in.Brands
	v.ExcludedProducts = in.ExcludedProducts

	if err := e.DB.Save(&v).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

// ToggleActive flips the voucher on or off
func (e *Engine) ToggleActive(id uint) (*models.Voucher, error) {
	var v models.Voucher
	if err := e.DB.First(&v, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	v.IsActive = !v.IsActive
	if err := e.DB.Save(&v).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

// Delete removes a voucher
func (e *Engine) Delete(id uint) error {
	result := e.DB.Delete(&models.Voucher{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UsageStats - read-only aggregates for the admin dashboard
type UsageStats struct {
	VoucherID     uint    `json:"voucher_id"`
	Code          string  `json:"code"`
	UsedCount     int     `json:"used_count"`
	Remaining     int     `json:"remaining"`
	UniqueUsers   int64   `json:"unique_users"`
	TotalDiscount float64 `json:"total_discount"`
}

// Stats computes usage aggregates for one voucher
func (e *Engine) Stats(id uint) (*UsageStats, error) {
	var v models.Voucher
	if err := e.DB.First(&v, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	stats := UsageStats{
		VoucherID: v.ID,
		Code:      v.Code,
		UsedCount: v.UsedCount,
		Remaining: v.Quantity - v.UsedCount,
	}

	if err := e.DB.Model(&models.VoucherUsage{}).
		Where("voucher_id = ?", v.ID).
		Distinct("user_id").
		Count(&stats.UniqueUsers).Error; err != nil {
		return nil, err
	}

	// Sum of voucher discounts on orders that redeemed this code
	err := e.DB.Model(&models.Order{}).
		Joins("JOIN voucher_usages ON voucher_usages.order_id = orders.id").
		Where("voucher_usages.voucher_id = ?", v.ID).
		Select("COALESCE(SUM(orders.voucher_discount), 0)").
		Scan(&stats.TotalDiscount).Error
	if err != nil {
		return nil, err
	}

	return &stats, nil
}
