package order

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/domain/shared/valueobject"
)

// Status represents the fulfillment status of an order
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusShipped    Status = "SHIPPED"
	StatusDelivered  Status = "DELIVERED"
	StatusCancelled  Status = "CANCELLED"
)

// IsValid checks if the status is a valid Status
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// CanTransitionTo checks if the status can transition to the target status.
// The happy path is forward-only; cancellation is reachable only before
// shipment.
func (s Status) CanTransitionTo(target Status) bool {
	switch s {
	case StatusPending:
		return target == StatusProcessing || target == StatusCancelled
	case StatusProcessing:
		return target == StatusShipped || target == StatusCancelled
	case StatusShipped:
		return target == StatusDelivered
	case StatusDelivered, StatusCancelled:
		return false // Terminal states
	}
	return false
}

// PaymentStatus represents the settlement state of an order
type PaymentStatus string

const (
	PaymentStatusUnpaid   PaymentStatus = "UNPAID"
	PaymentStatusPaid     PaymentStatus = "PAID"
	PaymentStatusFailed   PaymentStatus = "FAILED"
	PaymentStatusRefunded PaymentStatus = "REFUNDED"
)

// IsValid checks if the status is a valid PaymentStatus
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusUnpaid, PaymentStatusPaid, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	}
	return false
}

// String returns the string representation of PaymentStatus
func (s PaymentStatus) String() string {
	return string(s)
}

// ReturnStatus represents the return workflow state of an order
type ReturnStatus string

const (
	ReturnStatusNone      ReturnStatus = "NONE"
	ReturnStatusRequested ReturnStatus = "REQUESTED"
	ReturnStatusApproved  ReturnStatus = "APPROVED"
	ReturnStatusRejected  ReturnStatus = "REJECTED"
	ReturnStatusReturned  ReturnStatus = "RETURNED"
)

// IsValid checks if the status is a valid ReturnStatus
func (s ReturnStatus) IsValid() bool {
	switch s {
	case ReturnStatusNone, ReturnStatusRequested, ReturnStatusApproved, ReturnStatusRejected, ReturnStatusReturned:
		return true
	}
	return false
}

// String returns the string representation of ReturnStatus
func (s ReturnStatus) String() string {
	return string(s)
}

// Item represents a line item in an order. Unit price and subtotal are
// snapshotted at creation time and never re-read from the catalog.
type Item struct {
	ID          uuid.UUID       `gorm:"type:uuid;primary_key"`
	OrderID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProductID   uuid.UUID       `gorm:"type:uuid;not null"`
	ProductName string          `gorm:"type:varchar(200);not null"`
	Quantity    int64           `gorm:"not null"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Subtotal    decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	CreatedAt   time.Time       `gorm:"not null"`
	UpdatedAt   time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (Item) TableName() string {
	return "order_items"
}

// NewItem creates a new order line item
func NewItem(orderID, productID uuid.UUID, productName string, quantity int64, unitPrice valueobject.Money) (*Item, error) {
	if productID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "Product ID cannot be empty")
	}
	if productName == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Product name cannot be empty")
	}
	if quantity <= 0 {
		return nil, shared.NewDomainError("INVALID_INPUT", "Quantity must be positive")
	}
	if unitPrice.IsNegative() {
		return nil, shared.NewDomainError("INVALID_INPUT", "Unit price cannot be negative")
	}

	now := time.Now()
	return &Item{
		ID:          uuid.New(),
		OrderID:     orderID,
		ProductID:   productID,
		ProductName: productName,
		Quantity:    quantity,
		UnitPrice:   unitPrice.Amount(),
		Subtotal:    unitPrice.MultiplyByInt(quantity).Amount(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// UnitPriceMoney returns the unit price as Money
func (i *Item) UnitPriceMoney() valueobject.Money {
	return valueobject.NewMoneyUSD(i.UnitPrice)
}

// SubtotalMoney returns the subtotal as Money
func (i *Item) SubtotalMoney() valueobject.Money {
	return valueobject.NewMoneyUSD(i.Subtotal)
}

// Order represents a purchase intent aggregate root. It owns the fulfillment
// state machine, the orthogonal return workflow, and the settlement state
// driven by the payment reconciler.
type Order struct {
	shared.BaseAggregateRoot
	OrderNumber        string               `gorm:"type:varchar(50);not null;uniqueIndex"`
	UserID             uuid.UUID            `gorm:"type:uuid;not null;index"`
	Items              []Item               `gorm:"foreignKey:OrderID;references:ID"`
	TotalAmount        decimal.Decimal      `gorm:"type:decimal(18,2);not null;default:0"`
	Currency           valueobject.Currency `gorm:"type:varchar(3);not null;default:'USD'"`
	Status             Status               `gorm:"type:varchar(20);not null;default:'PENDING';index"`
	PaymentStatus      PaymentStatus        `gorm:"type:varchar(20);not null;default:'UNPAID';index"`
	ReturnStatus       ReturnStatus         `gorm:"type:varchar(20);not null;default:'NONE'"`
	ReturnReason       string               `gorm:"type:varchar(500)"`
	ShippingAddressRef string               `gorm:"type:varchar(100);not null"`
	PaidAt             *time.Time
	ShippedAt          *time.Time
	DeliveredAt        *time.Time
	CancelledAt        *time.Time
	ReturnedAt         *time.Time
}

// TableName returns the table name for GORM
func (Order) TableName() string {
	return "orders"
}

// NewOrder creates a new order in PENDING state with no items.
// Items are added with AddItem before the order is persisted.
func NewOrder(userID uuid.UUID, orderNumber, shippingAddressRef string) (*Order, error) {
	if userID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "User ID cannot be empty")
	}
	if orderNumber == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Order number cannot be empty")
	}
	if len(orderNumber) > 50 {
		return nil, shared.NewDomainError("INVALID_INPUT", "Order number cannot exceed 50 characters")
	}
	if shippingAddressRef == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Shipping address reference cannot be empty")
	}

	o := &Order{
		BaseAggregateRoot:  shared.NewBaseAggregateRoot(),
		OrderNumber:        orderNumber,
		UserID:             userID,
		Items:              make([]Item, 0),
		TotalAmount:        decimal.Zero,
		Currency:           valueobject.DefaultCurrency,
		Status:             StatusPending,
		PaymentStatus:      PaymentStatusUnpaid,
		ReturnStatus:       ReturnStatusNone,
		ShippingAddressRef: shippingAddressRef,
	}

	o.AddDomainEvent(NewCreatedEvent(o))

	return o, nil
}

// AddItem adds a line item and recomputes the total.
// Items are immutable once the order leaves PENDING.
func (o *Order) AddItem(productID uuid.UUID, productName string, quantity int64, unitPrice valueobject.Money) (*Item, error) {
	if o.Status != StatusPending {
		return nil, shared.NewDomainError("INVALID_TRANSITION", "Cannot modify items once the order has left pending")
	}

	for _, item := range o.Items {
		if item.ProductID == productID {
			return nil, shared.NewDomainError("INVALID_INPUT", "Product already present in order")
		}
	}

	item, err := NewItem(o.ID, productID, productName, quantity, unitPrice)
	if err != nil {
		return nil, err
	}

	o.Items = append(o.Items, *item)
	o.recalculateTotal()
	o.Touch()

	return item, nil
}

// UpdateStatus advances the fulfillment status along the forward chain.
// Cancellation goes through Cancel, not here.
func (o *Order) UpdateStatus(target Status) error {
	if !target.IsValid() {
		return shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("Unknown order status %q", target))
	}
	if target == StatusCancelled {
		return shared.NewDomainError("INVALID_TRANSITION", "Use cancellation to cancel an order")
	}
	if !o.Status.CanTransitionTo(target) {
		return shared.NewDomainError("INVALID_TRANSITION", fmt.Sprintf("Cannot transition order from %s to %s", o.Status, target))
	}
	if len(o.Items) == 0 {
		return shared.NewDomainError("INVALID_TRANSITION", "Cannot advance an order without items")
	}

	from := o.Status
	now := time.Now()
	o.Status = target
	switch target {
	case StatusShipped:
		o.ShippedAt = &now
	case StatusDelivered:
		o.DeliveredAt = &now
	}
	o.UpdatedAt = now

	o.AddDomainEvent(NewStatusChangedEvent(o, from))

	return nil
}

// Cancel cancels the order. Cancelling an already-cancelled order is a
// no-op success so callers can retry safely. Stock restoration is the
// caller's responsibility and must happen only when this call reports a
// state change.
func (o *Order) Cancel() (changed bool, err error) {
	if o.Status == StatusCancelled {
		return false, nil
	}
	if !o.Status.CanTransitionTo(StatusCancelled) {
		return false, shared.NewDomainError("INVALID_TRANSITION", fmt.Sprintf("Cannot cancel order in %s status", o.Status))
	}

	now := time.Now()
	o.Status = StatusCancelled
	o.CancelledAt = &now
	o.UpdatedAt = now

	o.AddDomainEvent(NewCancelledEvent(o))

	return true, nil
}

// MarkPaid records successful settlement. An order can be settled at most
// once.
func (o *Order) MarkPaid() error {
	if o.PaymentStatus == PaymentStatusPaid {
		return shared.ErrAlreadyPaid
	}
	if o.Status == StatusCancelled {
		return shared.NewDomainError("INVALID_TRANSITION", "Cannot settle a cancelled order")
	}

	now := time.Now()
	o.PaymentStatus = PaymentStatusPaid
	o.PaidAt = &now
	o.UpdatedAt = now

	o.AddDomainEvent(NewPaidEvent(o))

	return nil
}

// MarkPaymentFailed records a failed settlement attempt
func (o *Order) MarkPaymentFailed() error {
	if o.PaymentStatus == PaymentStatusPaid {
		return shared.ErrAlreadyPaid
	}

	o.PaymentStatus = PaymentStatusFailed
	o.Touch()

	return nil
}

// MarkRefunded records a refund of a settled order
func (o *Order) MarkRefunded() error {
	if o.PaymentStatus != PaymentStatusPaid {
		return shared.NewDomainError("INVALID_TRANSITION", "Only a paid order can be refunded")
	}

	o.PaymentStatus = PaymentStatusRefunded
	o.Touch()

	o.AddDomainEvent(NewRefundedEvent(o))

	return nil
}

// RequestReturn starts the return workflow. Allowed only after delivery.
func (o *Order) RequestReturn(reason string) error {
	if reason == "" {
		return shared.NewDomainError("INVALID_INPUT", "Return reason is required")
	}
	if o.Status != StatusDelivered {
		return shared.NewDomainError("INVALID_TRANSITION", fmt.Sprintf("Cannot request a return for an order in %s status", o.Status))
	}
	if o.ReturnStatus != ReturnStatusNone {
		return shared.NewDomainError("INVALID_TRANSITION", fmt.Sprintf("Return already %s", o.ReturnStatus))
	}

	o.ReturnStatus = ReturnStatusRequested
	o.ReturnReason = reason
	o.Touch()

	o.AddDomainEvent(NewReturnRequestedEvent(o))

	return nil
}

// ReviewReturn approves or rejects a requested return
func (o *Order) ReviewReturn(approve bool) error {
	if o.ReturnStatus != ReturnStatusRequested {
		return shared.NewDomainError("INVALID_TRANSITION", fmt.Sprintf("Cannot review a return in %s status", o.ReturnStatus))
	}

	if approve {
		o.ReturnStatus = ReturnStatusApproved
	} else {
		o.ReturnStatus = ReturnStatusRejected
	}
	o.Touch()

	return nil
}

// MarkReturned completes an approved return
func (o *Order) MarkReturned() error {
	if o.ReturnStatus != ReturnStatusApproved {
		return shared.NewDomainError("INVALID_TRANSITION", fmt.Sprintf("Cannot complete a return in %s status", o.ReturnStatus))
	}
	if o.Status != StatusDelivered {
		return shared.NewDomainError("INVALID_TRANSITION", "Only a delivered order can be returned")
	}

	now := time.Now()
	o.ReturnStatus = ReturnStatusReturned
	o.ReturnedAt = &now
	o.UpdatedAt = now

	return nil
}

// CanDelete reports whether the given principal may delete this order.
// Deletion is reserved for the owner while the order is still unpaid and
// before shipment. Deletion never restocks; cancellation is the path that
// restores inventory.
func (o *Order) CanDelete(userID uuid.UUID) error {
	if o.UserID != userID {
		return shared.ErrForbidden
	}
	if o.PaymentStatus == PaymentStatusPaid {
		return shared.NewDomainError("INVALID_TRANSITION", "Cannot delete a paid order")
	}
	if o.Status != StatusPending && o.Status != StatusProcessing {
		return shared.NewDomainError("INVALID_TRANSITION", fmt.Sprintf("Cannot delete an order in %s status", o.Status))
	}
	return nil
}

// recalculateTotal recomputes the order total from its items
func (o *Order) recalculateTotal() {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.Subtotal)
	}
	o.TotalAmount = total.Round(2)
}

// TotalAmountMoney returns the total as Money
func (o *Order) TotalAmountMoney() valueobject.Money {
	return valueobject.NewMoneyUSD(o.TotalAmount)
}

// ItemCount returns the number of line items
func (o *Order) ItemCount() int {
	return len(o.Items)
}

// IsPending returns true if the order is pending
func (o *Order) IsPending() bool {
	return o.Status == StatusPending
}

// IsCancelled returns true if the order is cancelled
func (o *Order) IsCancelled() bool {
	return o.Status == StatusCancelled
}

// IsDelivered returns true if the order is delivered
func (o *Order) IsDelivered() bool {
	return o.Status == StatusDelivered
}

// IsPaid returns true if the order has been settled
func (o *Order) IsPaid() bool {
	return o.PaymentStatus == PaymentStatusPaid
}

// IsTerminal returns true if the order is in a terminal fulfillment state
func (o *Order) IsTerminal() bool {
	return o.Status == StatusDelivered || o.Status == StatusCancelled
}

// GetItemByProduct returns a line item by product ID
func (o *Order) GetItemByProduct(productID uuid.UUID) *Item {
	for idx := range o.Items {
		if o.Items[idx].ProductID == productID {
			return &o.Items[idx]
		}
	}
	return nil
}
