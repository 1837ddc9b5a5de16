package order

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"go-fashion-store/internal/cart"
	"go-fashion-store/internal/models"
	"go-fashion-store/internal/notify"
	"go-fashion-store/internal/promo"
	"go-fashion-store/internal/stock"
	"go-fashion-store/internal/voucher"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	// ErrEmptyCart - checkout attempted with nothing in the cart
	ErrEmptyCart = errors.New("cart is empty")
	// ErrOrderNotFound - no such order (or not yours)
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderNotCancellable - order already left the pending/processing states
	ErrOrderNotCancellable = errors.New("order can no longer be cancelled")
	// ErrInvalidTransition - requested status doesn't follow from the current one
	ErrInvalidTransition = errors.New("invalid order status transition")
	// ErrPaymentNotPending - payment was already confirmed or failed
	ErrPaymentNotPending = errors.New("payment is not pending")
)

// Service drives the order state machine:
//
//	pending -> processing -> shipped -> delivered
//	pending|processing -> cancelled (user/admin) | expired (sweep only)
//
// Creation is a saga over the stock ledger and the flash sale counters:
// each debit is an independent atomic step, and a failure part-way
// credits back every step already taken. No partial order is persisted.
type Service struct {
	DB       *gorm.DB
	Stock    *stock.Ledger
	Promo    *promo.Manager
	Vouchers *voucher.Engine
	Carts    *cart.Service
	Notifier notify.Dispatcher

	ShippingFee   float64
	PaymentWindow time.Duration // how long a bank transfer may stay unpaid
	BankAccount   string
}

func NewService(db *gorm.DB, ledger *stock.Ledger, promoMgr *promo.Manager,
	vouchers *voucher.Engine, carts *cart.Service, notifier notify.Dispatcher) *Service {

	s := &Service{
		DB:            db,
		Stock:         ledger,
		Promo:         promoMgr,
		Vouchers:      vouchers,
		Carts:         carts,
		Notifier:      notifier,
		ShippingFee:   30000,
		PaymentWindow: 24 * time.Hour,
		BankAccount:   os.Getenv("BANK_ACCOUNT"),
	}

	if v := os.Getenv("SHIPPING_FEE"); v != "" {
		if fee, err := strconv.ParseFloat(v, 64); err == nil {
			s.ShippingFee = fee
		}
	}
	if v := os.Getenv("PAYMENT_WINDOW_HOURS"); v != "" {
		if hours, err := strconv.Atoi(v); err == nil && hours > 0 {
			s.PaymentWindow = time.Duration(hours) * time.Hour
		}
	}
	return s
}

// CreateInput is what the checkout screen sends
type CreateInput struct {
	PaymentMethod string `json:"payment_method" binding:"required,oneof=bank_transfer cod card"`
	VoucherCode   string `json:"voucher_code"`
}

// Create converts the user's reconciled cart into an order.
//
// Steps: reconcile the cart, debit stock and reserve flash-sale units item
// by item (compensating every prior step if one fails), validate the
// voucher, then persist the order and consume the voucher in one DB
// transaction. Item prices are frozen into the order; later catalog or
// sale changes never touch it.
func (s *Service) Create(userID uint, in CreateInput) (*models.Order, error) {
	userCart, err := s.Carts.GetOrCreate(userID)
	if err != nil {
		return nil, err
	}
	if len(userCart.Items) == 0 {
		return nil, ErrEmptyCart
	}

	now := time.Now()

	// Mandatory reconciliation - never checkout on a stale snapshot
	if _, err := s.Carts.Reconcile(userCart, now); err != nil {
		return nil, err
	}

	// Saga: debit every line. `done` tracks the steps to compensate.
	var done []models.CartItem
	for _, item := range userCart.Items {
		if err := s.Stock.Debit(item.ProductID, item.Size, item.Color, item.Quantity); err != nil {
			s.compensate(done)
			return nil, fmt.Errorf("order creation failed: %w", err)
		}
		if item.IsFlashSaleItem {
			if err := s.Promo.Reserve(item.FlashSaleID, item.ProductID, item.Quantity); err != nil {
				// The stock debit for this very item also needs undoing
				if cerr := s.Stock.Credit(item.ProductID, item.Size, item.Color, item.Quantity); cerr != nil {
					log.Printf("compensation credit failed for product %d: %v", item.ProductID, cerr)
				}
				s.compensate(done)
				return nil, fmt.Errorf("order creation failed: %w", err)
			}
		}
		done = append(done, item)
	}

	order := s.buildOrder(userID, userCart, in, now)

	// Voucher validation happens before the transaction; consumption (the
	// conditional used_count increment) happens inside it, together with
	// the order insert.
	var voucherID uint
	if in.VoucherCode != "" {
		res, err := s.Vouchers.ValidateAndApply(in.VoucherCode, userID, userCart.TotalPrice, userCart.Items, now)
		if err != nil {
			s.compensate(done)
			return nil, err
		}
		order.VoucherCode = res.Voucher.Code
		order.VoucherDiscount = res.DiscountAmount
		order.TotalAmount = res.FinalAmount + s.ShippingFee
		voucherID = res.Voucher.ID
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(order).Error; err != nil {
			return err
		}
		if voucherID != 0 {
			return s.Vouchers.Consume(tx, voucherID, userID, order.ID, now)
		}
		return nil
	})
	if err != nil {
		s.compensate(done)
		return nil, err
	}

	if err := s.Carts.Clear(userID); err != nil {
		// The order exists; a lingering cart is annoying but not fatal
		log.Printf("failed to clear cart for user %d: %v", userID, err)
	}

	s.Notifier.Notify(userID, "order_created", map[string]interface{}{
		"order_number": order.OrderNumber,
		"total":        order.TotalAmount,
	})

	return order, nil
}

// buildOrder freezes the reconciled cart into an order record
func (s *Service) buildOrder(userID uint, userCart *models.Cart, in CreateInput, now time.Time) *models.Order {
	order := &models.Order{
		OrderNumber:   "ORD-" + strings.ToUpper(uuid.NewString()[:8]),
		UserID:        userID,
		ShippingFee:   s.ShippingFee,
		PaymentMethod: in.PaymentMethod,
		PaymentStatus: models.PaymentStatusPending,
		OrderStatus:   models.OrderStatusPending,
	}

	saleIDs := make(map[uint]bool)
	for _, item := range userCart.Items {
		unitOriginal := item.Price
		if item.IsFlashSaleItem {
			unitOriginal = item.OriginalPrice
			saleIDs[item.FlashSaleID] = true
		}
		order.Subtotal += unitOriginal * float64(item.Quantity)
		order.Items = append(order.Items, models.OrderItem{
			ProductID:          item.ProductID,
			ProductName:        item.Product.Name,
			Size:               item.Size,
			Color:              item.Color,
			Quantity:           item.Quantity,
			Price:              item.Price,
			OriginalPrice:      unitOriginal,
			IsFlashSaleItem:    item.IsFlashSaleItem,
			FlashSaleID:        item.FlashSaleID,
			DiscountPercentage: item.DiscountPercentage,
		})
	}
	order.FlashSaleDiscount = userCart.TotalDiscount
	order.TotalAmount = userCart.TotalPrice + s.ShippingFee

	var ids []string
	for id := range saleIDs {
		ids = append(ids, strconv.FormatUint(uint64(id), 10))
	}
	order.FlashSaleIDs = strings.Join(ids, ",")

	if in.PaymentMethod == models.PaymentMethodBankTransfer {
		deadline := now.Add(s.PaymentWindow)
		order.ExpiredAt = &deadline
		order.BankAccount = s.BankAccount
	}

	return order
}

// compensate credits back every debit/reserve of a failed creation
// attempt, in reverse order. Credits only increment counters, so they
// cannot fail on a business rule; anything else is logged and skipped.
func (s *Service) compensate(done []models.CartItem) {
	for i := len(done) - 1; i >= 0; i-- {
		item := done[i]
		if item.IsFlashSaleItem {
			if err := s.Promo.Release(item.FlashSaleID, item.ProductID, item.Quantity); err != nil {
				log.Printf("compensation release failed for sale %d product %d: %v",
					item.FlashSaleID, item.ProductID, err)
			}
		}
		if err := s.Stock.Credit(item.ProductID, item.Size, item.Color, item.Quantity); err != nil {
			log.Printf("compensation credit failed for product %d: %v", item.ProductID, err)
		}
	}
}

// Get loads one order with its items
func (s *Service) Get(orderID uint) (*models.Order, error) {
	var order models.Order
	if err := s.DB.Preload("Items").First(&order, orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

// ListForUser returns the user's orders, newest first
func (s *Service) ListForUser(userID uint) ([]models.Order, error) {
	var orders []models.Order
	err := s.DB.Preload("Items").Where("user_id = ?", userID).
		Order("created_at DESC").Find(&orders).Error
	return orders, err
}

// ConfirmPayment flips payment to paid and moves a pending order into
// processing. Only a pending payment can be confirmed.
func (s *Service) ConfirmPayment(orderID uint) (*models.Order, error) {
	result := s.DB.Model(&models.Order{}).
		Where("id = ? AND payment_status = ?", orderID, models.PaymentStatusPending).
		Update("payment_status", models.PaymentStatusPaid)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		if _, err := s.Get(orderID); err != nil {
			return nil, err
		}
		return nil, ErrPaymentNotPending
	}

	// Paid orders start moving. This transition is guarded too, so a
	// cancellation racing the confirmation can't be overwritten.
	s.DB.Model(&models.Order{}).
		Where("id = ? AND order_status = ?", orderID, models.OrderStatusPending).
		Update("order_status", models.OrderStatusProcessing)

	order, err := s.Get(orderID)
	if err != nil {
		return nil, err
	}
	s.Notifier.Notify(order.UserID, "payment_confirmed", map[string]interface{}{
		"order_number": order.OrderNumber,
	})
	return order, nil
}

// MarkPaymentFailed records a failed payment attempt
func (s *Service) MarkPaymentFailed(orderID uint) (*models.Order, error) {
	result := s.DB.Model(&models.Order{}).
		Where("id = ? AND payment_status = ?", orderID, models.PaymentStatusPending).
		Update("payment_status", models.PaymentStatusFailed)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		if _, err := s.Get(orderID); err != nil {
			return nil, err
		}
		return nil, ErrPaymentNotPending
	}
	return s.Get(orderID)
}

// statusPredecessor - which current status each forward transition requires
var statusPredecessor = map[models.OrderStatus]models.OrderStatus{
	models.OrderStatusProcessing: models.OrderStatusPending,
	models.OrderStatusShipped:    models.OrderStatusProcessing,
	models.OrderStatusDelivered:  models.OrderStatusShipped,
}

// AdvanceStatus moves an order one step forward along
// pending -> processing -> shipped -> delivered. Cancellation and expiry
// have their own entry points; they are not reachable from here.
func (s *Service) AdvanceStatus(orderID uint, next models.OrderStatus) (*models.Order, error) {
	prev, ok := statusPredecessor[next]
	if !ok {
		return nil, ErrInvalidTransition
	}

	result := s.DB.Model(&models.Order{}).
		Where("id = ? AND order_status = ?", orderID, prev).
		Update("order_status", next)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		if _, err := s.Get(orderID); err != nil {
			return nil, err
		}
		return nil, ErrInvalidTransition
	}

	order, err := s.Get(orderID)
	if err != nil {
		return nil, err
	}
	s.Notifier.Notify(order.UserID, "order_status_changed", map[string]interface{}{
		"order_number": order.OrderNumber,
		"status":       string(next),
	})
	return order, nil
}

// refundFor computes the refund tier from the status the order held when
// the cancellation was decided
func (s *Service) refundFor(order *models.Order, statusAtCancel models.OrderStatus) float64 {
	if order.PaymentStatus != models.PaymentStatusPaid {
		return 0
	}
	switch statusAtCancel {
	case models.OrderStatusDelivered:
		return 0
	case models.OrderStatusShipped:
		return order.TotalAmount - order.ShippingFee
	default:
		return order.TotalAmount
	}
}

// Cancel terminates an order that hasn't shipped yet and credits back
// stock and flash-sale counters. The conditional status update is the
// idempotency lock: whoever flips the status does the credit, exactly
// once, even when a user cancellation races the expiry sweep.
func (s *Service) Cancel(orderID, userID uint, isAdmin bool, reason string) (*models.Order, error) {
	order, err := s.Get(orderID)
	if err != nil {
		return nil, err
	}
	if !isAdmin && order.UserID != userID {
		return nil, ErrOrderNotFound
	}

	now := time.Now()
	refund := s.refundFor(order, order.OrderStatus)

	result := s.DB.Model(&models.Order{}).
		Where("id = ? AND order_status IN ?", orderID,
			[]models.OrderStatus{models.OrderStatusPending, models.OrderStatusProcessing}).
		Updates(map[string]interface{}{
			"order_status":  models.OrderStatusCancelled,
			"cancel_reason": reason,
			"cancelled_at":  now,
			"refund_amount": refund,
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrOrderNotCancellable
	}

	if order.PaymentStatus == models.PaymentStatusPaid {
		s.DB.Model(&models.Order{}).Where("id = ?", orderID).
			Update("payment_status", models.PaymentStatusRefunded)
	}

	s.creditBack(order)

	s.Notifier.Notify(order.UserID, "order_cancelled", map[string]interface{}{
		"order_number": order.OrderNumber,
		"refund":       refund,
	})

	return s.Get(orderID)
}

// creditBack returns every line item's units to the stock ledger and, for
// flash-sale lines, to the sale's counter. Called exactly once per
// terminal transition - the status guard upstream ensures that.
func (s *Service) creditBack(order *models.Order) {
	for _, item := range order.Items {
		if err := s.Stock.Credit(item.ProductID, item.Size, item.Color, item.Quantity); err != nil {
			log.Printf("credit back failed for order %s product %d: %v",
				order.OrderNumber, item.ProductID, err)
		}
		if item.IsFlashSaleItem {
			if err := s.Promo.Release(item.FlashSaleID, item.ProductID, item.Quantity); err != nil {
				log.Printf("release back failed for order %s sale %d: %v",
					order.OrderNumber, item.FlashSaleID, err)
			}
		}
	}
}

// ExpireOverdue finds unpaid bank-transfer orders past their deadline and
// expires them, crediting stock and flash-sale counters back. One bad
// order never blocks the rest of the batch. Returns how many orders were
// expired.
func (s *Service) ExpireOverdue(now time.Time) (int, error) {
	var candidates []models.Order
	err := s.DB.Preload("Items").
		Where("payment_method = ? AND payment_status = ? AND order_status IN ? AND expired_at < ?",
			models.PaymentMethodBankTransfer, models.PaymentStatusPending,
			[]models.OrderStatus{models.OrderStatusPending, models.OrderStatusProcessing}, now).
		Find(&candidates).Error
	if err != nil {
		return 0, err
	}

	expired := 0
	for i := range candidates {
		order := &candidates[i]

		// The status transition is the idempotency guard: an order that
		// already left the expirable states (concurrent cancel, another
		// sweep run) is skipped and never double-credited.
		result := s.DB.Model(&models.Order{}).
			Where("id = ? AND order_status IN ? AND payment_status = ?",
				order.ID,
				[]models.OrderStatus{models.OrderStatusPending, models.OrderStatusProcessing},
				models.PaymentStatusPending).
			Updates(map[string]interface{}{
				"order_status":  models.OrderStatusExpired,
				"cancel_reason": "payment deadline passed",
				"cancelled_at":  now,
			})
		if result.Error != nil {
			log.Printf("expiry sweep: failed to expire order %s: %v", order.OrderNumber, result.Error)
			continue
		}
		if result.RowsAffected == 0 {
			continue
		}

		s.creditBack(order)
		expired++

		s.Notifier.Notify(order.UserID, "order_expired", map[string]interface{}{
			"order_number": order.OrderNumber,
		})
	}

	return expired, nil
}

// RemindUpcoming flags unpaid bank-transfer orders within 6 hours of
// their deadline and notifies each exactly once. Independent of the
// expiry sweep; the persisted ReminderSent flag survives restarts.
func (s *Service) RemindUpcoming(now time.Time) (int, error) {
	cutoff := now.Add(6 * time.Hour)

	var candidates []models.Order
	err := s.DB.
		Where("payment_method = ? AND payment_status = ? AND order_status IN ? AND reminder_sent = ? AND expired_at > ? AND expired_at <= ?",
			models.PaymentMethodBankTransfer, models.PaymentStatusPending,
			[]models.OrderStatus{models.OrderStatusPending, models.OrderStatusProcessing},
			false, now, cutoff).
		Find(&candidates).Error
	if err != nil {
		return 0, err
	}

	reminded := 0
	for i := range candidates {
		order := &candidates[i]

		result := s.DB.Model(&models.Order{}).
			Where("id = ? AND reminder_sent = ?", order.ID, false).
			Update("reminder_sent", true)
		if result.Error != nil {
			log.Printf("reminder sweep: failed to flag order %s: %v", order.OrderNumber, result.Error)
			continue
		}
		if result.RowsAffected == 0 {
			continue
		}

		s.Notifier.Notify(order.UserID, "payment_reminder", map[string]interface{}{
			"order_number": order.OrderNumber,
			"expires_at":   order.ExpiredAt,
		})
		reminded++
	}

	return reminded, nil
}
