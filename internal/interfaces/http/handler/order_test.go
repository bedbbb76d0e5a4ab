package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	orderapp "github.com/storefront/backend/internal/application/order"
	"github.com/storefront/backend/internal/domain/catalog"
	"github.com/storefront/backend/internal/domain/inventory"
	"github.com/storefront/backend/internal/domain/order"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/domain/shared/valueobject"
	"github.com/storefront/backend/internal/interfaces/http/middleware"
)

// MockOrderRepository implements order.Repository for testing
type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderRepository) FindByIDForUser(ctx context.Context, userID, id uuid.UUID) (*order.Order, error) {
	args := m.Called(ctx, userID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderRepository) FindByOrderNumber(ctx context.Context, orderNumber string) (*order.Order, error) {
	args := m.Called(ctx, orderNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderRepository) FindAll(ctx context.Context, filter shared.Filter) ([]order.Order, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]order.Order), args.Error(1)
}

func (m *MockOrderRepository) FindAllForUser(ctx context.Context, userID uuid.UUID, filter shared.Filter) ([]order.Order, error) {
	args := m.Called(ctx, userID, filter)
	return args.Get(0).([]order.Order), args.Error(1)
}

func (m *MockOrderRepository) Save(ctx context.Context, o *order.Order) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

func (m *MockOrderRepository) SaveWithLock(ctx context.Context, o *order.Order) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

func (m *MockOrderRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockOrderRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockOrderRepository) CountForUser(ctx context.Context, userID uuid.UUID, filter shared.Filter) (int64, error) {
	args := m.Called(ctx, userID, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockOrderRepository) CountByStatus(ctx context.Context, status order.Status) (int64, error) {
	args := m.Called(ctx, status)
	return args.Get(0).(int64), args.Error(1)
}

// Ensure mock implements the interface
var _ order.Repository = (*MockOrderRepository)(nil)

// MockCatalog implements catalog.Catalog for testing
type MockCatalog struct {
	mock.Mock
}

func (m *MockCatalog) GetProduct(ctx context.Context, productID uuid.UUID) (*catalog.Product, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Product), args.Error(1)
}

func (m *MockCatalog) GetUnitPrice(ctx context.Context, productID uuid.UUID) (valueobject.Money, error) {
	args := m.Called(ctx, productID)
	return args.Get(0).(valueobject.Money), args.Error(1)
}

// MockLedger implements inventory.Ledger for testing
type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) Reserve(ctx context.Context, productID uuid.UUID, quantity int64) error {
	args := m.Called(ctx, productID, quantity)
	return args.Error(0)
}

func (m *MockLedger) Release(ctx context.Context, productID uuid.UUID, quantity int64) error {
	args := m.Called(ctx, productID, quantity)
	return args.Error(0)
}

func (m *MockLedger) ReserveMany(ctx context.Context, lines []inventory.ReservationLine) error {
	args := m.Called(ctx, lines)
	return args.Error(0)
}

func (m *MockLedger) ReleaseMany(ctx context.Context, lines []inventory.ReservationLine) error {
	args := m.Called(ctx, lines)
	return args.Error(0)
}

// MockAddressBook implements shared.AddressBook for testing
type MockAddressBook struct {
	mock.Mock
}

func (m *MockAddressBook) Resolve(ctx context.Context, addressRef string) (valueobject.Address, error) {
	args := m.Called(ctx, addressRef)
	return args.Get(0).(valueobject.Address), args.Error(1)
}

// Test helpers

var testUserID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

type orderTestMocks struct {
	repo        *MockOrderRepository
	catalog     *MockCatalog
	ledger      *MockLedger
	addressBook *MockAddressBook
}

func setupOrderTestRouter() (*gin.Engine, *orderTestMocks, *OrderHandler) {
	gin.SetMode(gin.TestMode)

	mocks := &orderTestMocks{
		repo:        new(MockOrderRepository),
		catalog:     new(MockCatalog),
		ledger:      new(MockLedger),
		addressBook: new(MockAddressBook),
	}
	service := orderapp.NewOrderService(mocks.repo, mocks.catalog, mocks.ledger, mocks.addressBook, nil, nil)
	handler := NewOrderHandler(service)

	router := gin.New()
	// Test authentication middleware that sets a principal on the context
	router.Use(func(c *gin.Context) {
		c.Set(middleware.ContextUserIDKey, testUserID)
		c.Next()
	})

	return router, mocks, handler
}

func createHandlerTestOrder(userID uuid.UUID) *order.Order {
	o, _ := order.NewOrder(userID, "ORD-20260831-ABCD1234", "addr-home")
	_, _ = o.AddItem(uuid.New(), "Ceramic Mug", 2, valueobject.NewMoneyUSD(decimal.NewFromFloat(12.50)))
	o.ClearDomainEvents()
	return o
}

func createHandlerTestProduct(id uuid.UUID, stock int64) *catalog.Product {
	product, _ := catalog.NewProduct("Ceramic Mug", "MUG-001", valueobject.NewMoneyUSD(decimal.NewFromFloat(12.50)), stock)
	product.ID = id
	return product
}

func createHandlerTestAddress() valueobject.Address {
	addr, _ := valueobject.NewAddress("1 Market St", "San Francisco", "CA", "94105")
	return addr
}

// Tests

func TestOrderHandler_Create(t *testing.T) {
	t.Run("should create order successfully", func(t *testing.T) {
		router, mocks, handler := setupOrderTestRouter()

		productID := uuid.New()

		router.POST("/orders", handler.Create)

		mocks.addressBook.On("Resolve", mock.Anything, "addr-home").
			Return(createHandlerTestAddress(), nil)
		mocks.catalog.On("GetProduct", mock.Anything, productID).
			Return(createHandlerTestProduct(productID, 10), nil)
		mocks.ledger.On("ReserveMany", mock.Anything, mock.Anything).Return(nil)
		mocks.repo.On("Save", mock.Anything, mock.AnythingOfType("*order.Order")).
			Return(nil)

		reqBody := orderapp.CreateOrderRequest{
			Items: []orderapp.CreateOrderItemRequest{
				{ProductID: productID, Quantity: 2},
			},
			ShippingAddressRef: "addr-home",
		}
		body, _ := json.Marshal(reqBody)

		req, _ := http.NewRequest(http.MethodPost, "/orders", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)

		var response map[string]interface{}
		err := json.Unmarshal(w.Body.Bytes(), &response)
		assert.NoError(t, err)
		assert.True(t, response["success"].(bool))

		mocks.repo.AssertExpectations(t)
		mocks.ledger.AssertExpectations(t)
	})

	t.Run("should return error for missing items", func(t *testing.T) {
		router, _, handler := setupOrderTestRouter()

		router.POST("/orders", handler.Create)

		reqBody := map[string]interface{}{
			"shipping_address_ref": "addr-home",
		}
		body, _ := json.Marshal(reqBody)

		req, _ := http.NewRequest(http.MethodPost, "/orders", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("should return error for zero quantity", func(t *testing.T) {
		router, _, handler := setupOrderTestRouter()

		router.POST("/orders", handler.Create)

		reqBody := map[string]interface{}{
			"items": []map[string]interface{}{
				{"product_id": uuid.New().String(), "quantity": 0},
			},
			"shipping_address_ref": "addr-home",
		}
		body, _ := json.Marshal(reqBody)

		req, _ := http.NewRequest(http.MethodPost, "/orders", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("should return 422 when stock is insufficient", func(t *testing.T) {
		router, mocks, handler := setupOrderTestRouter()

		productID := uuid.New()

		router.POST("/orders", handler.Create)

		mocks.addressBook.On("Resolve", mock.Anything, "addr-home").
			Return(createHandlerTestAddress(), nil)
		mocks.catalog.On("GetProduct", mock.Anything, productID).
			Return(createHandlerTestProduct(productID, 10), nil)
		mocks.ledger.On("ReserveMany", mock.Anything, mock.Anything).
			Return(shared.ErrInsufficientStock)

		reqBody := orderapp.CreateOrderRequest{
			Items: []orderapp.CreateOrderItemRequest{
				{ProductID: productID, Quantity: 5},
			},
			ShippingAddressRef: "addr-home",
		}
		body, _ := json.Marshal(reqBody)

		req, _ := http.NewRequest(http.MethodPost, "/orders", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
}

func TestOrderHandler_Get(t *testing.T) {
	t.Run("should get order by ID", func(t *testing.T) {
		router, mocks, handler := setupOrderTestRouter()

		testOrder := createHandlerTestOrder(testUserID)

		router.GET("/orders/:id", handler.Get)

		mocks.repo.On("FindByIDForUser", mock.Anything, testUserID, testOrder.ID).
			Return(testOrder, nil)

		req, _ := http.NewRequest(http.MethodGet, "/orders/"+testOrder.ID.String(), nil)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var response map[string]interface{}
		err := json.Unmarshal(w.Body.Bytes(), &response)
		assert.NoError(t, err)
		assert.True(t, response["success"].(bool))

		data := response["data"].(map[string]interface{})
		assert.Equal(t, "ORD-20260831-ABCD1234", data["order_number"])
		assert.Equal(t, "PENDING", data["status"])

		mocks.repo.AssertExpectations(t)
	})

	t.Run("should return 404 for non-existent order", func(t *testing.T) {
		router, mocks, handler := setupOrderTestRouter()

		orderID := uuid.New()

		router.GET("/orders/:id", handler.Get)

		mocks.repo.On("FindByIDForUser", mock.Anything, testUserID, orderID).
			Return(nil, shared.ErrNotFound)

		req, _ := http.NewRequest(http.MethodGet, "/orders/"+orderID.String(), nil)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)

		mocks.repo.AssertExpectations(t)
	})

	t.Run("should return error for invalid order ID", func(t *testing.T) {
		router, _, handler := setupOrderTestRouter()

		router.GET("/orders/:id", handler.Get)

		req, _ := http.NewRequest(http.MethodGet, "/orders/not-a-uuid", nil)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestOrderHandler_List(t *testing.T) {
	t.Run("should list orders for the authenticated user", func(t *testing.T) {
		router, mocks, handler := setupOrderTestRouter()

		testOrder := createHandlerTestOrder(testUserID)

		router.GET("/orders", handler.List)

		mocks.repo.On("FindAllForUser", mock.Anything, testUserID, mock.Anything).
			Return([]order.Order{*testOrder}, nil)
		mocks.repo.On("CountForUser", mock.Anything, testUserID, mock.Anything).
			Return(int64(1), nil)

		req, _ := http.NewRequest(http.MethodGet, "/orders?page=1&page_size=20", nil)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var response map[string]interface{}
		err := json.Unmarshal(w.Body.Bytes(), &response)
		assert.NoError(t, err)
		assert.True(t, response["success"].(bool))

		meta := response["meta"].(map[string]interface{})
		assert.Equal(t, float64(1), meta["total"])

		mocks.repo.AssertExpectations(t)
	})
}

func TestOrderHandler_UpdateStatus(t *testing.T) {
	t.Run("should advance order status", func(t *testing.T) {
		router, mocks, handler := setupOrderTestRouter()

		testOrder := createHandlerTestOrder(testUserID)

		router.PUT("/admin/orders/:id/status", handler.UpdateStatus)

		mocks.repo.On("FindByID", mock.Anything, testOrder.ID).Return(testOrder, nil)
		mocks.repo.On("SaveWithLock", mock.Anything, testOrder).Return(nil)

		body, _ := json.Marshal(orderapp.UpdateOrderStatusRequest{Status: "PROCESSING"})

		req, _ := http.NewRequest(http.MethodPut, "/admin/orders/"+testOrder.ID.String()+"/status", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var response map[string]interface{}
		err := json.Unmarshal(w.Body.Bytes(), &response)
		assert.NoError(t, err)
		data := response["data"].(map[string]interface{})
		assert.Equal(t, "PROCESSING", data["status"])

		mocks.repo.AssertExpectations(t)
	})

	t.Run("should return 409 for an invalid transition", func(t *testing.T) {
		router, mocks, handler := setupOrderTestRouter()

		testOrder := createHandlerTestOrder(testUserID)

		router.PUT("/admin/orders/:id/status", handler.UpdateStatus)

		mocks.repo.On("FindByID", mock.Anything, testOrder.ID).Return(testOrder, nil)

		// Pending orders cannot jump straight to delivered
		body, _ := json.Marshal(orderapp.UpdateOrderStatusRequest{Status: "DELIVERED"})

		req, _ := http.NewRequest(http.MethodPut, "/admin/orders/"+testOrder.ID.String()+"/status", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)

		mocks.repo.AssertExpectations(t)
	})

	t.Run("should reject an unknown status value", func(t *testing.T) {
		router, _, handler := setupOrderTestRouter()

		router.PUT("/admin/orders/:id/status", handler.UpdateStatus)

		body, _ := json.Marshal(map[string]string{"status": "TELEPORTED"})

		req, _ := http.NewRequest(http.MethodPut, "/admin/orders/"+uuid.New().String()+"/status", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestOrderHandler_Cancel(t *testing.T) {
	t.Run("should cancel order and restock", func(t *testing.T) {
		router, mocks, handler := setupOrderTestRouter()

		testOrder := createHandlerTestOrder(testUserID)

		router.POST("/orders/:id/cancel", handler.Cancel)

		mocks.repo.On("FindByIDForUser", mock.Anything, testUserID, testOrder.ID).
			Return(testOrder, nil)
		mocks.repo.On("SaveWithLock", mock.Anything, testOrder).Return(nil)
		mocks.ledger.On("ReleaseMany", mock.Anything, mock.Anything).Return(nil)

		req, _ := http.NewRequest(http.MethodPost, "/orders/"+testOrder.ID.String()+"/cancel", nil)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var response map[string]interface{}
		err := json.Unmarshal(w.Body.Bytes(), &response)
		assert.NoError(t, err)
		data := response["data"].(map[string]interface{})
		assert.Equal(t, "CANCELLED", data["status"])

		mocks.repo.AssertExpectations(t)
		mocks.ledger.AssertExpectations(t)
	})

	t.Run("should return 409 when cancelling a delivered order", func(t *testing.T) {
		router, mocks, handler := setupOrderTestRouter()

		testOrder := createHandlerTestOrder(testUserID)
		_ = testOrder.UpdateStatus(order.StatusProcessing)
		_ = testOrder.UpdateStatus(order.StatusShipped)
		_ = testOrder.UpdateStatus(order.StatusDelivered)
		testOrder.ClearDomainEvents()

		router.POST("/orders/:id/cancel", handler.Cancel)

		mocks.repo.On("FindByIDForUser", mock.Anything, testUserID, testOrder.ID).
			Return(testOrder, nil)

		req, _ := http.NewRequest(http.MethodPost, "/orders/"+testOrder.ID.String()+"/cancel", nil)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)

		mocks.ledger.AssertNotCalled(t, "ReleaseMany", mock.Anything, mock.Anything)
	})
}

func TestOrderHandler_Delete(t *testing.T) {
	t.Run("should delete unpaid pending order", func(t *testing.T) {
		router, mocks, handler := setupOrderTestRouter()

		testOrder := createHandlerTestOrder(testUserID)

		router.DELETE("/orders/:id", handler.Delete)

		mocks.repo.On("FindByID", mock.Anything, testOrder.ID).Return(testOrder, nil)
		mocks.repo.On("Delete", mock.Anything, testOrder.ID).Return(nil)

		req, _ := http.NewRequest(http.MethodDelete, "/orders/"+testOrder.ID.String(), nil)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)

		mocks.repo.AssertExpectations(t)
		mocks.ledger.AssertNotCalled(t, "ReleaseMany", mock.Anything, mock.Anything)
	})

	t.Run("should return 403 when deleting another user's order", func(t *testing.T) {
		router, mocks, handler := setupOrderTestRouter()

		otherUser := uuid.MustParse("99999999-9999-9999-9999-999999999999")
		testOrder := createHandlerTestOrder(otherUser)

		router.DELETE("/orders/:id", handler.Delete)

		mocks.repo.On("FindByID", mock.Anything, testOrder.ID).Return(testOrder, nil)

		req, _ := http.NewRequest(http.MethodDelete, "/orders/"+testOrder.ID.String(), nil)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)

		mocks.repo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})
}

func TestOrderHandler_GetStatusSummary(t *testing.T) {
	t.Run("should return counts per status", func(t *testing.T) {
		router, mocks, handler := setupOrderTestRouter()

		router.GET("/admin/orders/summary", handler.GetStatusSummary)

		mocks.repo.On("CountByStatus", mock.Anything, order.StatusPending).Return(int64(3), nil)
		mocks.repo.On("CountByStatus", mock.Anything, order.StatusProcessing).Return(int64(2), nil)
		mocks.repo.On("CountByStatus", mock.Anything, order.StatusShipped).Return(int64(1), nil)
		mocks.repo.On("CountByStatus", mock.Anything, order.StatusDelivered).Return(int64(5), nil)
		mocks.repo.On("CountByStatus", mock.Anything, order.StatusCancelled).Return(int64(4), nil)

		req, _ := http.NewRequest(http.MethodGet, "/admin/orders/summary", nil)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var response map[string]interface{}
		err := json.Unmarshal(w.Body.Bytes(), &response)
		assert.NoError(t, err)
		data := response["data"].(map[string]interface{})
		assert.Equal(t, float64(15), data["total"])

		mocks.repo.AssertExpectations(t)
	})
}

func TestOrderHandler_RequestReturn(t *testing.T) {
	t.Run("should open return request for delivered order", func(t *testing.T) {
		router, mocks, handler := setupOrderTestRouter()

		testOrder := createHandlerTestOrder(testUserID)
		_ = testOrder.UpdateStatus(order.StatusProcessing)
		_ = testOrder.UpdateStatus(order.StatusShipped)
		_ = testOrder.UpdateStatus(order.StatusDelivered)
		testOrder.ClearDomainEvents()

		router.POST("/orders/:id/return", handler.RequestReturn)

		mocks.repo.On("FindByIDForUser", mock.Anything, testUserID, testOrder.ID).
			Return(testOrder, nil)
		mocks.repo.On("SaveWithLock", mock.Anything, testOrder).Return(nil)

		body, _ := json.Marshal(orderapp.RequestReturnRequest{Reason: "Arrived chipped"})

		req, _ := http.NewRequest(http.MethodPost, "/orders/"+testOrder.ID.String()+"/return", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var response map[string]interface{}
		err := json.Unmarshal(w.Body.Bytes(), &response)
		assert.NoError(t, err)
		data := response["data"].(map[string]interface{})
		assert.Equal(t, "REQUESTED", data["return_status"])

		mocks.repo.AssertExpectations(t)
	})

	t.Run("should reject return without a reason", func(t *testing.T) {
		router, _, handler := setupOrderTestRouter()

		router.POST("/orders/:id/return", handler.RequestReturn)

		body, _ := json.Marshal(map[string]string{})

		req, _ := http.NewRequest(http.MethodPost, "/orders/"+uuid.New().String()+"/return", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
