package handlers

import (
	"errors"
	"net/http"

	"go-fashion-store/internal/cart"
	"go-fashion-store/internal/database"
	"go-fashion-store/internal/notify"
	"go-fashion-store/internal/order"
	"go-fashion-store/internal/promo"
	"go-fashion-store/internal/stock"
	"go-fashion-store/internal/voucher"
)

// Shared service instances, wired once at startup after the DB connects
var (
	Stock    *stock.Ledger
	Promo    *promo.Manager
	Vouchers *voucher.Engine
	Carts    *cart.Service
	Orders   *order.Service
	Sweeper  *order.Sweeper
)

// Init builds the service graph on top of the connected database
func Init() {
	Stock = stock.NewLedger(database.DB)
	Promo = promo.NewManager(database.DB, Stock)
	Vouchers = voucher.NewEngine(database.DB)
	Carts = cart.NewService(database.DB, Promo, Stock)
	Orders = order.NewService(database.DB, Stock, Promo, Vouchers, Carts, notify.LogDispatcher{})
	Sweeper = order.NewSweeper(Orders)
}

// errStatus maps the core's validation failures to HTTP status codes.
// The error text itself is surfaced verbatim - the checkout UI renders
// the first failing reason to the customer.
func errStatus(err error) int {
	switch {
	case errors.Is(err, stock.ErrInsufficientStock),
		errors.Is(err, promo.ErrFlashSaleSoldOut),
		errors.Is(err, voucher.ErrInactive),
		errors.Is(err, voucher.ErrExhausted),
		errors.Is(err, voucher.ErrNotStarted),
		errors.Is(err, voucher.ErrExpired),
		errors.Is(err, voucher.ErrUserLimitReached),
		errors.Is(err, voucher.ErrMinOrderNotMet),
		errors.Is(err, voucher.ErrNoApplicableItems),
		errors.Is(err, order.ErrEmptyCart),
		errors.Is(err, order.ErrOrderNotCancellable),
		errors.Is(err, order.ErrInvalidTransition),
		errors.Is(err, order.ErrPaymentNotPending):
		return http.StatusBadRequest
	case errors.Is(err, stock.ErrVariantNotFound),
		errors.Is(err, promo.ErrOfferNotFound),
		errors.Is(err, promo.ErrSaleNotFound),
		errors.Is(err, voucher.ErrNotFound),
		errors.Is(err, cart.ErrProductNotFound),
		errors.Is(err, cart.ErrItemNotFound),
		errors.Is(err, order.ErrOrderNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
