package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_Error(t *testing.T) {
	err := NewDomainError("INVALID_INPUT", "Quantity must be positive")
	assert.Equal(t, "Quantity must be positive", err.Error())
	assert.Equal(t, "INVALID_INPUT", err.Code)
}

func TestDomainError_IsMatchesByCode(t *testing.T) {
	err := NewDomainError("INVALID_TRANSITION", "Cannot ship a pending order")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestDomainError_IsThroughWrapping(t *testing.T) {
	err := fmt.Errorf("saving order: %w", NewDomainError("ALREADY_PAID", "Order has already been paid"))

	assert.ErrorIs(t, err, ErrAlreadyPaid)

	var domainErr *DomainError
	assert.True(t, errors.As(err, &domainErr))
	assert.Equal(t, "ALREADY_PAID", domainErr.Code)
}

func TestDomainError_IsRejectsForeignErrors(t *testing.T) {
	assert.NotErrorIs(t, ErrNotFound, errors.New("resource not found"))
}
