package trade

import (
	"fmt"
	"strings"
	"time"

	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/erp/fulfillment/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AggregateTypeOrder is the aggregate type name for orders
const AggregateTypeOrder = "Order"

// Order is the order aggregate root. It owns the status machine; stock
// movements at commit points are performed by the ledger on its behalf.
type Order struct {
	shared.BaseAggregateRoot
	OrderNumber        string
	Kind               OrderKind
	Status             OrderStatus
	PaymentStatus      PaymentStatus
	PaymentMethod      PaymentMethod
	CustomerName       string
	Note               string
	Lines              []OrderLine
	TotalAmount        decimal.Decimal
	DiscountAmount     decimal.Decimal
	TaxRate            decimal.Decimal
	TaxAmount          decimal.Decimal
	FinalAmount        decimal.Decimal
	DepositAmount      decimal.Decimal
	ExpirationDate     *time.Time
	InventoryCommitted bool
	CompletedAt        *time.Time
	CancelledAt        *time.Time
	CancelReason       string
}

// GenerateOrderNumber builds an ORD-YYYYMMDD-XXXXXXXX order number
func GenerateOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("ORD-%s-%s", now.Format("20060102"), suffix)
}

func newOrder(number string, kind OrderKind, method PaymentMethod, pricing Pricing, now time.Time) (*Order, error) {
	if strings.TrimSpace(number) == "" {
		return nil, shared.NewValidationError("Order number cannot be empty")
	}
	if !method.IsValid() {
		return nil, shared.NewValidationError("Invalid payment method %q", method)
	}
	if len(pricing.Lines) == 0 {
		return nil, shared.NewValidationError("Order must have at least one line")
	}
	o := &Order{
		BaseAggregateRoot: shared.NewBaseAggregateRootAt(now),
		OrderNumber:       number,
		Kind:              kind,
		PaymentMethod:     method,
		PaymentStatus:     PaymentStatusUnpaid,
		DepositAmount:     decimal.Zero,
	}
	o.applyPricing(pricing)
	return o, nil
}

// NewInstoreOrder creates an instant sale in the transient pending status.
// It must be completed once its allocation has been committed.
func NewInstoreOrder(number string, method PaymentMethod, pricing Pricing, now time.Time) (*Order, error) {
	o, err := newOrder(number, OrderKindInstore, method, pricing, now)
	if err != nil {
		return nil, err
	}
	o.Status = OrderStatusPending
	return o, nil
}

// NewPreorder creates a priced pre-order that reserves no stock
func NewPreorder(number string, method PaymentMethod, pricing Pricing, expirationDays int, now time.Time) (*Order, error) {
	if expirationDays <= 0 {
		return nil, shared.NewValidationError("Expiration days must be positive")
	}
	o, err := newOrder(number, OrderKindPreorder, method, pricing, now)
	if err != nil {
		return nil, err
	}
	expires := now.AddDate(0, 0, expirationDays)
	o.Status = OrderStatusPreorderPending
	o.ExpirationDate = &expires

	o.AddDomainEvent(NewPreorderPlacedEvent(o, now))
	return o, nil
}

// Complete finishes an instore sale after its stock was committed
func (o *Order) Complete(now time.Time) error {
	if o.Status != OrderStatusPending {
		return shared.NewStateError("Cannot complete order in %s status", o.Status)
	}
	o.Status = OrderStatusCompleted
	o.InventoryCommitted = true
	if o.PaymentMethod.SettlesImmediately() {
		o.PaymentStatus = PaymentStatusPaid
	} else {
		o.PaymentStatus = PaymentStatusPending
	}
	o.CompletedAt = &now
	o.Touch(now)

	o.AddDomainEvent(NewOrderCompletedEvent(o, now))
	return nil
}

// Fulfill completes a pre-order with a fresh pricing whose allocation was just committed
func (o *Order) Fulfill(pricing Pricing, now time.Time) error {
	if o.Status != OrderStatusPreorderPending {
		return shared.NewStateError("Cannot fulfill order in %s status", o.Status)
	}
	o.applyPricing(pricing)
	o.Status = OrderStatusCompleted
	o.PaymentStatus = PaymentStatusPaid
	o.InventoryCommitted = true
	o.CompletedAt = &now
	o.Touch(now)

	o.AddDomainEvent(NewOrderCompletedEvent(o, now))
	return nil
}

// Hold parks a pre-order
func (o *Order) Hold(now time.Time) error {
	if o.Status != OrderStatusPreorderPending {
		return shared.NewStateError("Cannot hold order in %s status", o.Status)
	}
	o.Status = OrderStatusPendingHold
	o.Touch(now)
	return nil
}

// Resume returns a held pre-order to pending
func (o *Order) Resume(now time.Time) error {
	if o.Status != OrderStatusPendingHold {
		return shared.NewStateError("Cannot resume order in %s status", o.Status)
	}
	o.Status = OrderStatusPreorderPending
	o.Touch(now)
	return nil
}

// RecordDeposit adds a partial payment to the deposits already taken. The
// running total cannot exceed the final amount.
func (o *Order) RecordDeposit(amount decimal.Decimal, now time.Time) error {
	if !o.Status.CanTransitionTo(OrderStatusDeposit) {
		return shared.NewStateError("Cannot record deposit for order in %s status", o.Status)
	}
	if !amount.IsPositive() {
		return shared.NewValidationError("Deposit amount must be positive")
	}
	total := o.DepositAmount.Add(valueobject.RoundMoney(amount))
	if total.GreaterThan(o.FinalAmount) {
		return shared.NewValidationError("Deposits %s would exceed final amount %s",
			total.StringFixed(2), o.FinalAmount.StringFixed(2))
	}
	o.Status = OrderStatusDeposit
	o.PaymentStatus = PaymentStatusPartial
	o.DepositAmount = total
	o.Touch(now)
	return nil
}

// Cancel moves a non-terminal order to cancelled.
// Restoring committed stock is the caller's job, see InventoryCommitted.
func (o *Order) Cancel(reason string, now time.Time) error {
	if !o.Status.CanTransitionTo(OrderStatusCancelled) {
		return shared.NewStateError("Cannot cancel order in %s status", o.Status)
	}
	o.cancel(reason, now)
	return nil
}

// ReverseUnpaid cancels a completed sale whose payment failed.
// The committed stock must be restored by the caller.
func (o *Order) ReverseUnpaid(now time.Time) error {
	if o.Status != OrderStatusCompleted || o.PaymentStatus != PaymentStatusPending {
		return shared.NewStateError("Cannot reverse order in %s status with %s payment", o.Status, o.PaymentStatus)
	}
	o.PaymentStatus = PaymentStatusFailed
	o.cancel("payment failed", now)
	return nil
}

// ConfirmPayment settles a completed sale awaiting payment
func (o *Order) ConfirmPayment(now time.Time) error {
	if o.Status != OrderStatusCompleted || o.PaymentStatus != PaymentStatusPending {
		return shared.NewStateError("Cannot confirm payment for order in %s status with %s payment", o.Status, o.PaymentStatus)
	}
	o.PaymentStatus = PaymentStatusPaid
	o.Touch(now)

	o.AddDomainEvent(NewPaymentConfirmedEvent(o, now))
	return nil
}

// OrderUpdate holds the optional editable fields of an order
type OrderUpdate struct {
	CustomerName   *string
	Note           *string
	ExpirationDate *time.Time
}

// Update edits descriptive fields. Terminal orders cannot be modified.
func (o *Order) Update(u OrderUpdate, now time.Time) error {
	if o.Status.IsTerminal() {
		return shared.NewStateError("Cannot modify order in %s status", o.Status)
	}
	if u.ExpirationDate != nil {
		if o.Kind != OrderKindPreorder {
			return shared.NewValidationError("Expiration date only applies to pre-orders")
		}
		if !u.ExpirationDate.After(now) {
			return shared.NewValidationError("Expiration date must be in the future")
		}
		exp := *u.ExpirationDate
		o.ExpirationDate = &exp
	}
	if u.CustomerName != nil {
		o.CustomerName = strings.TrimSpace(*u.CustomerName)
	}
	if u.Note != nil {
		o.Note = *u.Note
	}
	o.Touch(now)
	return nil
}

// IsPreorderExpiredAt returns true for a pending pre-order past its pickup deadline
func (o *Order) IsPreorderExpiredAt(now time.Time) bool {
	return o.Status == OrderStatusPreorderPending && o.ExpirationDate != nil && !o.ExpirationDate.After(now)
}

// Totals returns the order-level amounts
func (o *Order) Totals() Totals {
	return Totals{
		TotalAmount:    o.TotalAmount,
		DiscountAmount: o.DiscountAmount,
		TaxRate:        o.TaxRate,
		TaxAmount:      o.TaxAmount,
		FinalAmount:    o.FinalAmount,
	}
}

func (o *Order) applyPricing(p Pricing) {
	o.Lines = p.Lines
	o.TotalAmount = p.TotalAmount
	o.DiscountAmount = p.DiscountAmount
	o.TaxRate = p.TaxRate
	o.TaxAmount = p.TaxAmount
	o.FinalAmount = p.FinalAmount
}

func (o *Order) cancel(reason string, now time.Time) {
	o.Status = OrderStatusCancelled
	o.CancelledAt = &now
	o.CancelReason = reason
	o.Touch(now)

	o.AddDomainEvent(NewOrderCancelledEvent(o, now))
}
