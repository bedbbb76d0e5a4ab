package order

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/storefront/backend/internal/domain/order"
)

// ==================== Order DTOs ====================

// CreateOrderItemRequest is a single line of a new order.
type CreateOrderItemRequest struct {
	ProductID uuid.UUID `json:"product_id" binding:"required"`
	Quantity  int64     `json:"quantity" binding:"required,min=1"`
}

// CreateOrderRequest creates a new order for the calling user.
type CreateOrderRequest struct {
	Items              []CreateOrderItemRequest `json:"items" binding:"required,min=1,dive"`
	ShippingAddressRef string                   `json:"shipping_address_ref" binding:"required,max=100"`
}

// UpdateOrderStatusRequest moves an order along its fulfilment lifecycle.
type UpdateOrderStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=PROCESSING SHIPPED DELIVERED"`
}

// RequestReturnRequest opens a return for a delivered order.
type RequestReturnRequest struct {
	Reason string `json:"reason" binding:"required,min=1,max=500"`
}

// ReviewReturnRequest approves or rejects a requested return.
type ReviewReturnRequest struct {
	Approve bool `json:"approve"`
}

// OrderListFilter filters and paginates order listings.
type OrderListFilter struct {
	Page          int    `form:"page"`
	PageSize      int    `form:"page_size"`
	Status        string `form:"status"`
	PaymentStatus string `form:"payment_status"`
	ReturnStatus  string `form:"return_status"`
	UserID        string `form:"user_id"`
	StartDate     string `form:"start_date"`
	EndDate       string `form:"end_date"`
	Search        string `form:"search"`
	OrderBy       string `form:"order_by"`
	OrderDir      string `form:"order_dir"`
}

// OrderItemResponse is one line of an order as returned to clients.
type OrderItemResponse struct {
	ID          uuid.UUID       `json:"id"`
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int64           `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

// OrderResponse is the full order representation.
type OrderResponse struct {
	ID                 uuid.UUID           `json:"id"`
	OrderNumber        string              `json:"order_number"`
	UserID             uuid.UUID           `json:"user_id"`
	Items              []OrderItemResponse `json:"items"`
	TotalAmount        decimal.Decimal     `json:"total_amount"`
	Currency           string              `json:"currency"`
	Status             string              `json:"status"`
	PaymentStatus      string              `json:"payment_status"`
	ReturnStatus       string              `json:"return_status"`
	ReturnReason       string              `json:"return_reason,omitempty"`
	ShippingAddressRef string              `json:"shipping_address_ref"`
	PaidAt             *time.Time          `json:"paid_at,omitempty"`
	ShippedAt          *time.Time          `json:"shipped_at,omitempty"`
	DeliveredAt        *time.Time          `json:"delivered_at,omitempty"`
	CancelledAt        *time.Time          `json:"cancelled_at,omitempty"`
	ReturnedAt         *time.Time          `json:"returned_at,omitempty"`
	Version            int                 `json:"version"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
}

// OrderListItemResponse is the compact representation used in listings.
type OrderListItemResponse struct {
	ID            uuid.UUID       `json:"id"`
	OrderNumber   string          `json:"order_number"`
	UserID        uuid.UUID       `json:"user_id"`
	ItemCount     int             `json:"item_count"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Currency      string          `json:"currency"`
	Status        string          `json:"status"`
	PaymentStatus string          `json:"payment_status"`
	ReturnStatus  string          `json:"return_status"`
	CreatedAt     time.Time       `json:"created_at"`
}

// OrderStatusSummary aggregates order counts per lifecycle status.
type OrderStatusSummary struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Shipped    int64 `json:"shipped"`
	Delivered  int64 `json:"delivered"`
	Cancelled  int64 `json:"cancelled"`
	Total      int64 `json:"total"`
}

// ToOrderResponse converts an order aggregate to its full response form.
func ToOrderResponse(o *order.Order) *OrderResponse {
	items := make([]OrderItemResponse, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, OrderItemResponse{
			ID:          item.ID,
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Subtotal:    item.Subtotal,
		})
	}

	return &OrderResponse{
		ID:                 o.ID,
		OrderNumber:        o.OrderNumber,
		UserID:             o.UserID,
		Items:              items,
		TotalAmount:        o.TotalAmount,
		Currency:           string(o.Currency),
		Status:             string(o.Status),
		PaymentStatus:      string(o.PaymentStatus),
		ReturnStatus:       string(o.ReturnStatus),
		ReturnReason:       o.ReturnReason,
		ShippingAddressRef: o.ShippingAddressRef,
		PaidAt:             o.PaidAt,
		ShippedAt:          o.ShippedAt,
		DeliveredAt:        o.DeliveredAt,
		CancelledAt:        o.CancelledAt,
		ReturnedAt:         o.ReturnedAt,
		Version:            o.GetVersion(),
		CreatedAt:          o.CreatedAt,
		UpdatedAt:          o.UpdatedAt,
	}
}

// ToOrderListItemResponse converts an order aggregate to its listing form.
func ToOrderListItemResponse(o *order.Order) *OrderListItemResponse {
	return &OrderListItemResponse{
		ID:            o.ID,
		OrderNumber:   o.OrderNumber,
		UserID:        o.UserID,
		ItemCount:     o.ItemCount(),
		TotalAmount:   o.TotalAmount,
		Currency:      string(o.Currency),
		Status:        string(o.Status),
		PaymentStatus: string(o.PaymentStatus),
		ReturnStatus:  string(o.ReturnStatus),
		CreatedAt:     o.CreatedAt,
	}
}
