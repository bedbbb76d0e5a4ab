package payment

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/domain/shared/valueobject"
)

// Method represents how a payment was collected
type Method string

const (
	MethodCash   Method = "CASH"
	MethodOnline Method = "ONLINE"
)

// IsValid checks if the method is a valid Method
func (m Method) IsValid() bool {
	switch m {
	case MethodCash, MethodOnline:
		return true
	}
	return false
}

// String returns the string representation of Method
func (m Method) String() string {
	return string(m)
}

// Status represents the outcome recorded for a payment attempt
type Status string

const (
	StatusPaid     Status = "PAID"
	StatusFailed   Status = "FAILED"
	StatusRefunded Status = "REFUNDED"
)

// IsValid checks if the status is a valid Status
func (s Status) IsValid() bool {
	switch s {
	case StatusPaid, StatusFailed, StatusRefunded:
		return true
	}
	return false
}

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// Record is one settled, failed or refunded payment attempt. Records are
// append-only; a refund is a new record referencing the same order, never a
// mutation of the original. GatewayPaymentID is unique across all records
// and is the idempotency key that collapses duplicate webhook deliveries.
type Record struct {
	shared.BaseEntity
	OrderID          uuid.UUID            `gorm:"type:uuid;not null;index"`
	GatewayPaymentID string               `gorm:"type:varchar(128);not null;uniqueIndex"`
	Amount           decimal.Decimal      `gorm:"type:decimal(18,2);not null"`
	Currency         valueobject.Currency `gorm:"type:varchar(3);not null;default:'USD'"`
	Method           Method               `gorm:"type:varchar(10);not null"`
	Status           Status               `gorm:"type:varchar(10);not null"`
	// ProcessedBy is the acting principal for operator-entered records,
	// nil for gateway-originated ones.
	ProcessedBy *uuid.UUID `gorm:"type:uuid"`
}

// TableName returns the table name for GORM
func (Record) TableName() string {
	return "payment_records"
}

func newRecord(orderID uuid.UUID, gatewayPaymentID string, amount valueobject.Money, method Method, status Status, processedBy *uuid.UUID) (*Record, error) {
	if orderID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "Order ID cannot be empty")
	}
	if gatewayPaymentID == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Gateway payment ID cannot be empty")
	}
	if len(gatewayPaymentID) > 128 {
		return nil, shared.NewDomainError("INVALID_INPUT", "Gateway payment ID cannot exceed 128 characters")
	}
	if amount.IsNegative() {
		return nil, shared.NewDomainError("INVALID_INPUT", "Payment amount cannot be negative")
	}
	if !method.IsValid() {
		return nil, shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("Unknown payment method %q", method))
	}
	if !status.IsValid() {
		return nil, shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("Unknown payment status %q", status))
	}

	return &Record{
		BaseEntity:       shared.NewBaseEntity(),
		OrderID:          orderID,
		GatewayPaymentID: gatewayPaymentID,
		Amount:           amount.Amount().Round(2),
		Currency:         amount.Currency(),
		Method:           method,
		Status:           status,
		ProcessedBy:      processedBy,
	}, nil
}

// NewGatewayRecord creates the record for a gateway-settled payment.
// The gateway-assigned payment ID is the dedupe key.
func NewGatewayRecord(orderID uuid.UUID, gatewayPaymentID string, amount valueobject.Money) (*Record, error) {
	return newRecord(orderID, gatewayPaymentID, amount, MethodOnline, StatusPaid, nil)
}

// NewGatewayFailureRecord creates the record for a gateway-reported failure
func NewGatewayFailureRecord(orderID uuid.UUID, gatewayPaymentID string, amount valueobject.Money) (*Record, error) {
	return newRecord(orderID, gatewayPaymentID, amount, MethodOnline, StatusFailed, nil)
}

// NewCashRecord creates the record for an operator-entered cash payment.
// The key is generated locally since no gateway is involved.
func NewCashRecord(orderID uuid.UUID, amount valueobject.Money, operatorID uuid.UUID) (*Record, error) {
	if operatorID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "Operator ID cannot be empty")
	}
	key := "cash-" + uuid.NewString()
	return newRecord(orderID, key, amount, MethodCash, StatusPaid, &operatorID)
}

// NewRefundRecord creates the record for a refund of a settled order.
// Refunds reference the order through a fresh record.
func NewRefundRecord(orderID uuid.UUID, amount valueobject.Money, operatorID uuid.UUID) (*Record, error) {
	if operatorID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "Operator ID cannot be empty")
	}
	key := "refund-" + uuid.NewString()
	return newRecord(orderID, key, amount, MethodOnline, StatusRefunded, &operatorID)
}

// AmountMoney returns the amount as Money
func (r *Record) AmountMoney() valueobject.Money {
	m, _ := valueobject.NewMoney(r.Amount, r.Currency)
	return m
}

// IsSettlement reports whether this record marks the order as paid
func (r *Record) IsSettlement() bool {
	return r.Status == StatusPaid
}
