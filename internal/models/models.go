package models

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// User - The person shopping (or managing) the store
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"uniqueIndex;size:50" json:"username"`
	PasswordHash string    `json:"-"`    // Never return this in JSON
	Role         string    `json:"role"` // 'admin', 'customer'
	CreatedAt    time.Time `json:"created_at"`
}

// Product - The Catalog entry (sizes/colors live in StockVariant)
type Product struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Name      string         `json:"name"`
	Brand     string         `json:"brand"`
	Category  string         `json:"category"`
	Price     float64        `json:"price"`
	ImageURL  string         `json:"image_url"`
	Variants  []StockVariant `gorm:"foreignKey:ProductID" json:"variants"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// StockVariant - one (product, size, color) with its own quantity.
// Quantity is only ever changed through conditional updates so it can
// never go below zero, even with concurrent checkouts.
type StockVariant struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	ProductID uint   `gorm:"uniqueIndex:idx_variant,priority:1" json:"product_id"`
	Size      string `gorm:"uniqueIndex:idx_variant,priority:2;size:20" json:"size"`
	Color     string `gorm:"uniqueIndex:idx_variant,priority:3;size:30" json:"color"`
	Quantity  int    `json:"quantity"`
}

// FlashSale - a time-boxed promotional campaign
type FlashSale struct {
	ID        uint               `gorm:"primaryKey" json:"id"`
	Name      string             `json:"name"`
	StartDate time.Time          `gorm:"index" json:"start_date"`
	EndDate   time.Time          `gorm:"index" json:"end_date"`
	IsActive  bool               `json:"is_active"`
	Priority  int                `json:"priority"` // higher wins when a product is in two sales
	Products  []FlashSaleProduct `gorm:"foreignKey:FlashSaleID;constraint:OnDelete:CASCADE" json:"products"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// IsRunning - active flag AND inside the time window (derived, not stored)
func (fs *FlashSale) IsRunning(now time.Time) bool {
	return fs.IsActive && !now.Before(fs.StartDate) && !now.After(fs.EndDate)
}

// FlashSaleProduct - one discounted product inside a sale, with its own
// capped sold counter independent of the product's base stock
type FlashSaleProduct struct {
	ID                 uint    `gorm:"primaryKey" json:"id"`
	FlashSaleID        uint    `gorm:"index" json:"flash_sale_id"`
	ProductID          uint    `gorm:"index" json:"product_id"`
	OriginalPrice      float64 `json:"original_price"`
	DiscountPercentage float64 `json:"discount_percentage"`
	MaxQuantity        int     `json:"max_quantity"`
	SoldQuantity       int     `json:"sold_quantity"`
	IsActive           bool    `json:"is_active"`
}

// DiscountPrice is always recomputed; a cached price is never trusted
// across a reservation.
func (p *FlashSaleProduct) DiscountPrice() float64 {
	return math.Round(p.OriginalPrice * (1 - p.DiscountPercentage/100))
}

// Remaining - how many units can still be reserved
func (p *FlashSaleProduct) Remaining() int {
	r := p.MaxQuantity - p.SoldQuantity
	if r < 0 {
		return 0
	}
	return r
}

// Voucher - a code-based discount with global and per-user usage caps
type Voucher struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	Code              string    `gorm:"uniqueIndex;size:50" json:"code"`
	DiscountType      string    `json:"discount_type"` // 'percentage' or 'fixed'
	DiscountValue     float64   `json:"discount_value"`
	MinOrderAmount    float64   `json:"min_order_amount"`
	MaxDiscountAmount float64   `json:"max_discount_amount"` // 0 = no cap (percentage type)
	Quantity          int       `json:"quantity"`            // global usage cap
	UsedCount         int       `json:"used_count"`
	MaxUsagePerUser   int       `json:"max_usage_per_user"`
	StartDate         time.Time `json:"start_date"`
	EndDate           time.Time `json:"end_date"`
	IsActive          bool      `json:"is_active"`
	// Applicability filters, comma-separated. Empty = applies to everything.
	Categories       string         `json:"categories"`
	Brands           string         `json:"brands"`
	ExcludedProducts string         `json:"excluded_products"` // comma-separated product IDs
	Usages           []VoucherUsage `gorm:"foreignKey:VoucherID" json:"usages,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// CategoryList splits the comma-separated category filter
func (v *Voucher) CategoryList() []string { return splitCSV(v.Categories) }

// BrandList splits the comma-separated brand filter
func (v *Voucher) BrandList() []string { return splitCSV(v.Brands) }

// ExcludedProductIDs parses the excluded product list
func (v *Voucher) ExcludedProductIDs() []uint {
	var ids []uint
	for _, s := range splitCSV(v.ExcludedProducts) {
		if n, err := strconv.ParseUint(s, 10, 32); err == nil {
			ids = append(ids, uint(n))
		}
	}
	return ids
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// VoucherUsage - one redemption record, appended atomically with the
// used_count increment
type VoucherUsage struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	VoucherID uint      `gorm:"index" json:"voucher_id"`
	UserID    uint      `gorm:"index" json:"user_id"`
	OrderID   uint      `json:"order_id"`
	UsedAt    time.Time `json:"used_at"`
}

// Cart - one per user
type Cart struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	UserID        uint       `gorm:"uniqueIndex" json:"user_id"`
	Items         []CartItem `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE" json:"items"`
	TotalPrice    float64    `json:"total_price"`    // always recomputed, never patched
	TotalDiscount float64    `json:"total_discount"` // ditto
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// CartItem - a line in the cart. The flash-sale fields are a snapshot of
// the offer at add time; reconciliation re-derives them before checkout.
type CartItem struct {
	ID        uint    `gorm:"primaryKey" json:"id"`
	CartID    uint    `gorm:"index" json:"cart_id"`
	ProductID uint    `json:"product_id"`
	Product   Product `json:"product"`
	Quantity  int     `json:"quantity"`
	Size      string  `json:"size"`
	Color     string  `json:"color"`
	Price     float64 `json:"price"` // unit price snapshot

	IsFlashSaleItem    bool       `json:"is_flash_sale_item"`
	FlashSaleID        uint       `json:"flash_sale_id,omitempty"`
	OriginalPrice      float64    `json:"original_price,omitempty"`
	DiscountPercentage float64    `json:"discount_percentage,omitempty"`
	SaleName           string     `json:"sale_name,omitempty"`
	SaleEndDate        *time.Time `json:"sale_end_date,omitempty"`
	AddedAt            time.Time  `json:"added_at"`
}

// Order / Payment status enums
type OrderStatus string
type PaymentStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusExpired    OrderStatus = "expired" // system-triggered only

	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// Payment methods
const (
	PaymentMethodBankTransfer = "bank_transfer"
	PaymentMethodCOD          = "cod"
	PaymentMethodCard         = "card"
)

// Order - created once from a reconciled cart; every item is a
// price-frozen copy independent of later cart or flash-sale changes
type Order struct {
	ID                uint          `gorm:"primaryKey" json:"id"`
	OrderNumber       string        `gorm:"uniqueIndex;size:64" json:"order_number"`
	UserID            uint          `gorm:"index" json:"user_id"`
	Items             []OrderItem   `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
	Subtotal          float64       `json:"subtotal"`
	FlashSaleDiscount float64       `json:"flash_sale_discount"`
	VoucherDiscount   float64       `json:"voucher_discount"`
	ShippingFee       float64       `json:"shipping_fee"`
	TotalAmount       float64       `json:"total_amount"`
	PaymentMethod     string        `json:"payment_method"`
	PaymentStatus     PaymentStatus `gorm:"type:VARCHAR(20);default:'pending'" json:"payment_status"`
	OrderStatus       OrderStatus   `gorm:"type:VARCHAR(20);index;default:'pending'" json:"order_status"`
	VoucherCode       string        `json:"voucher_code,omitempty"`

	// Bank transfer deadline. Only set for deferred payments; the expiry
	// sweep acts on it.
	BankAccount  string     `json:"bank_account,omitempty"`
	ExpiredAt    *time.Time `gorm:"index" json:"expired_at,omitempty"`
	ReminderSent bool       `json:"reminder_sent"`

	CancelReason string     `json:"cancel_reason,omitempty"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
	RefundAmount float64    `json:"refund_amount,omitempty"`

	// Comma-separated flash sale IDs involved in this order
	FlashSaleIDs string    `json:"flash_sale_ids,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// OrderItem - frozen snapshot of one cart line at order time
type OrderItem struct {
	ID                 uint    `gorm:"primaryKey" json:"id"`
	OrderID            uint    `gorm:"index" json:"order_id"`
	ProductID          uint    `json:"product_id"`
	ProductName        string  `json:"product_name"`
	Size               string  `json:"size"`
	Color              string  `json:"color"`
	Quantity           int     `json:"quantity"`
	Price              float64 `json:"price"` // unit price actually charged
	OriginalPrice      float64 `json:"original_price"`
	IsFlashSaleItem    bool    `json:"is_flash_sale_item"`
	FlashSaleID        uint    `json:"flash_sale_id,omitempty"`
	DiscountPercentage float64 `json:"discount_percentage,omitempty"`
}
