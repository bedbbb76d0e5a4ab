package persistence

import "strings"

// Sort parameters come straight from query strings and end up concatenated
// into ORDER BY clauses, so they pass through a whitelist here. Anything
// unrecognized silently falls back to the default instead of erroring.

// OrderSortFields lists the order columns clients may sort by.
var OrderSortFields = map[string]bool{
	"id":             true,
	"created_at":     true,
	"updated_at":     true,
	"order_number":   true,
	"status":         true,
	"payment_status": true,
	"return_status":  true,
	"total_amount":   true,
	"paid_at":        true,
	"shipped_at":     true,
	"delivered_at":   true,
}

// ProductSortFields lists the product columns clients may sort by.
var ProductSortFields = map[string]bool{
	"id":             true,
	"created_at":     true,
	"updated_at":     true,
	"name":           true,
	"code":           true,
	"unit_price":     true,
	"stock_quantity": true,
}

// SortClause builds a safe ORDER BY expression from client-supplied sort
// parameters. The field must appear in the whitelist; the direction must be
// ASC, anything else sorts descending.
func SortClause(orderBy, orderDir string, allowed map[string]bool, defaultField string) string {
	return ValidateSortField(orderBy, allowed, defaultField) + " " + ValidateSortOrder(orderDir)
}

// ValidateSortOrder normalizes the sort direction to ASC or DESC, defaulting
// to DESC so listings show the newest rows first.
func ValidateSortOrder(orderDir string) string {
	if strings.EqualFold(strings.TrimSpace(orderDir), "ASC") {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField returns the field when whitelisted, the default otherwise.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if trimmed != "" && allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}
