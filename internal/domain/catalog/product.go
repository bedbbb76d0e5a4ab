package catalog

import (
	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/domain/shared/valueobject"
)

// Product is the pricing and availability read model the order path consumes.
// StockQuantity is owned by the inventory ledger: it is mutated only through
// the ledger's atomic conditional update, never through a product save.
type Product struct {
	shared.BaseEntity
	Name          string               `gorm:"type:varchar(200);not null"`
	Code          string               `gorm:"type:varchar(50);not null;uniqueIndex"`
	UnitPrice     decimal.Decimal      `gorm:"type:decimal(18,2);not null;default:0"`
	Currency      valueobject.Currency `gorm:"type:varchar(3);not null;default:'USD'"`
	StockQuantity int64                `gorm:"not null;default:0"`
	Active        bool                 `gorm:"not null;default:true"`
}

// TableName returns the table name for GORM
func (Product) TableName() string {
	return "products"
}

// NewProduct creates a new product
func NewProduct(name, code string, unitPrice valueobject.Money, stockQuantity int64) (*Product, error) {
	if name == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Product name cannot be empty")
	}
	if code == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Product code cannot be empty")
	}
	if unitPrice.IsNegative() {
		return nil, shared.NewDomainError("INVALID_INPUT", "Unit price cannot be negative")
	}
	if stockQuantity < 0 {
		return nil, shared.NewDomainError("INVALID_INPUT", "Stock quantity cannot be negative")
	}

	return &Product{
		BaseEntity:    shared.NewBaseEntity(),
		Name:          name,
		Code:          code,
		UnitPrice:     unitPrice.Amount().Round(2),
		Currency:      unitPrice.Currency(),
		StockQuantity: stockQuantity,
		Active:        true,
	}, nil
}

// UnitPriceMoney returns the unit price as Money
func (p *Product) UnitPriceMoney() valueobject.Money {
	m, _ := valueobject.NewMoney(p.UnitPrice, p.Currency)
	return m
}

// InStock reports whether at least quantity units are available. This is a
// display hint only; the authoritative check is the ledger's conditional
// decrement.
func (p *Product) InStock(quantity int64) bool {
	return p.StockQuantity >= quantity
}

// Deactivate takes the product off sale
func (p *Product) Deactivate() {
	p.Active = false
	p.Touch()
}
