package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	paymentapp "github.com/storefront/backend/internal/application/payment"
	"github.com/storefront/backend/internal/domain/order"
	"github.com/storefront/backend/internal/domain/payment"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/domain/shared/valueobject"
	"github.com/storefront/backend/internal/interfaces/http/middleware"
)

// MockPaymentRepository implements payment.Repository for testing
type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) Create(ctx context.Context, rec *payment.Record) (bool, error) {
	args := m.Called(ctx, rec)
	return args.Bool(0), args.Error(1)
}

func (m *MockPaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*payment.Record, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Record), args.Error(1)
}

func (m *MockPaymentRepository) FindByGatewayPaymentID(ctx context.Context, gatewayPaymentID string) (*payment.Record, error) {
	args := m.Called(ctx, gatewayPaymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Record), args.Error(1)
}

func (m *MockPaymentRepository) FindByOrder(ctx context.Context, orderID uuid.UUID) ([]payment.Record, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).([]payment.Record), args.Error(1)
}

func (m *MockPaymentRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

// MockGatewayAdapter implements payment.GatewayAdapter for testing
type MockGatewayAdapter struct {
	mock.Mock
}

func (m *MockGatewayAdapter) VerifyWebhook(payload []byte, signature string) (*payment.WebhookEvent, error) {
	args := m.Called(payload, signature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.WebhookEvent), args.Error(1)
}

func (m *MockGatewayAdapter) VerifyCheckoutSignature(gatewayOrderID, gatewayPaymentID, signature string) error {
	args := m.Called(gatewayOrderID, gatewayPaymentID, signature)
	return args.Error(0)
}

func (m *MockGatewayAdapter) CreateIntent(ctx context.Context, req *payment.IntentRequest) (*payment.Intent, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Intent), args.Error(1)
}

// MockIdempotencyStore implements shared.IdempotencyStore for testing
type MockIdempotencyStore struct {
	mock.Mock
}

func (m *MockIdempotencyStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) IsProcessed(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

// Test helpers

type paymentTestMocks struct {
	orderRepo   *MockOrderRepository
	paymentRepo *MockPaymentRepository
	adapter     *MockGatewayAdapter
	idempotency *MockIdempotencyStore
}

func setupPaymentTestRouter() (*gin.Engine, *paymentTestMocks, *PaymentHandler, *WebhookHandler) {
	gin.SetMode(gin.TestMode)

	mocks := &paymentTestMocks{
		orderRepo:   new(MockOrderRepository),
		paymentRepo: new(MockPaymentRepository),
		adapter:     new(MockGatewayAdapter),
		idempotency: new(MockIdempotencyStore),
	}
	service := paymentapp.NewSettlementService(paymentapp.SettlementServiceConfig{
		OrderRepo:   mocks.orderRepo,
		PaymentRepo: mocks.paymentRepo,
		Adapter:     mocks.adapter,
		Idempotency: mocks.idempotency,
	})

	paymentHandler := NewPaymentHandler(service)
	webhookHandler := NewWebhookHandler(service)

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(middleware.ContextUserIDKey, testUserID)
		c.Next()
	})

	return router, mocks, paymentHandler, webhookHandler
}

func createPayableOrder() *order.Order {
	o, _ := order.NewOrder(testUserID, "ORD-20260831-ABCD1234", "addr-home")
	_, _ = o.AddItem(uuid.New(), "Ceramic Mug", 2, valueobject.NewMoneyUSD(decimal.NewFromFloat(12.50)))
	o.ClearDomainEvents()
	return o
}

func capturedWebhookEvent(o *order.Order) *payment.WebhookEvent {
	return &payment.WebhookEvent{
		Type:             payment.WebhookEventPaymentCaptured,
		GatewayPaymentID: "pay_abc123",
		OrderID:          o.ID,
		Amount:           valueobject.NewMoneyUSD(decimal.NewFromFloat(25.00)),
	}
}

// Tests

func TestWebhookHandler_HandlePaymentWebhook(t *testing.T) {
	t.Run("should settle order for a signed capture event", func(t *testing.T) {
		router, mocks, _, webhookHandler := setupPaymentTestRouter()

		o := createPayableOrder()
		payload := []byte(`{"type":"payment.captured"}`)

		router.POST("/webhooks/payment", webhookHandler.HandlePaymentWebhook)

		mocks.adapter.On("VerifyWebhook", payload, "sig").Return(capturedWebhookEvent(o), nil)
		mocks.idempotency.On("IsProcessed", mock.Anything, "webhook:pay_abc123").Return(false, nil)
		mocks.orderRepo.On("FindByID", mock.Anything, o.ID).Return(o, nil)
		mocks.paymentRepo.On("Create", mock.Anything, mock.AnythingOfType("*payment.Record")).Return(true, nil)
		mocks.orderRepo.On("SaveWithLock", mock.Anything, o).Return(nil)
		mocks.idempotency.On("MarkProcessed", mock.Anything, "webhook:pay_abc123", mock.Anything).Return(true, nil)

		req, _ := http.NewRequest(http.MethodPost, "/webhooks/payment", bytes.NewBuffer(payload))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(GatewaySignatureHeader, "sig")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var response map[string]interface{}
		err := json.Unmarshal(w.Body.Bytes(), &response)
		assert.NoError(t, err)
		assert.True(t, response["success"].(bool))

		data := response["data"].(map[string]interface{})
		assert.True(t, data["settled"].(bool))
		assert.False(t, data["duplicate"].(bool))

		assert.True(t, o.IsPaid())

		mocks.orderRepo.AssertExpectations(t)
		mocks.paymentRepo.AssertExpectations(t)
	})

	t.Run("should return 401 when the signature header is missing", func(t *testing.T) {
		router, mocks, _, webhookHandler := setupPaymentTestRouter()

		router.POST("/webhooks/payment", webhookHandler.HandlePaymentWebhook)

		req, _ := http.NewRequest(http.MethodPost, "/webhooks/payment", bytes.NewBufferString(`{}`))
		req.Header.Set("Content-Type", "application/json")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)

		mocks.adapter.AssertNotCalled(t, "VerifyWebhook", mock.Anything, mock.Anything)
	})

	t.Run("should return 401 for a bad signature", func(t *testing.T) {
		router, mocks, _, webhookHandler := setupPaymentTestRouter()

		payload := []byte(`{"type":"payment.captured"}`)

		router.POST("/webhooks/payment", webhookHandler.HandlePaymentWebhook)

		mocks.adapter.On("VerifyWebhook", payload, "forged").
			Return(nil, shared.ErrInvalidSignature)

		req, _ := http.NewRequest(http.MethodPost, "/webhooks/payment", bytes.NewBuffer(payload))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(GatewaySignatureHeader, "forged")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)

		mocks.orderRepo.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
	})

	t.Run("should acknowledge a duplicate delivery with 200", func(t *testing.T) {
		router, mocks, _, webhookHandler := setupPaymentTestRouter()

		o := createPayableOrder()
		payload := []byte(`{"type":"payment.captured"}`)

		router.POST("/webhooks/payment", webhookHandler.HandlePaymentWebhook)

		mocks.adapter.On("VerifyWebhook", payload, "sig").Return(capturedWebhookEvent(o), nil)
		mocks.idempotency.On("IsProcessed", mock.Anything, "webhook:pay_abc123").Return(true, nil)

		req, _ := http.NewRequest(http.MethodPost, "/webhooks/payment", bytes.NewBuffer(payload))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(GatewaySignatureHeader, "sig")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var response map[string]interface{}
		err := json.Unmarshal(w.Body.Bytes(), &response)
		assert.NoError(t, err)
		data := response["data"].(map[string]interface{})
		assert.True(t, data["duplicate"].(bool))

		mocks.orderRepo.AssertNotCalled(t, "SaveWithLock", mock.Anything, mock.Anything)
	})

	t.Run("should return 400 for an empty body", func(t *testing.T) {
		router, _, _, webhookHandler := setupPaymentTestRouter()

		router.POST("/webhooks/payment", webhookHandler.HandlePaymentWebhook)

		req, _ := http.NewRequest(http.MethodPost, "/webhooks/payment", bytes.NewBuffer(nil))
		req.Header.Set(GatewaySignatureHeader, "sig")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestPaymentHandler_ProcessCashPayment(t *testing.T) {
	t.Run("should settle order with cash payment", func(t *testing.T) {
		router, mocks, paymentHandler, _ := setupPaymentTestRouter()

		o := createPayableOrder()

		router.POST("/admin/orders/:id/payment/cash", paymentHandler.ProcessCashPayment)

		mocks.orderRepo.On("FindByID", mock.Anything, o.ID).Return(o, nil)
		mocks.paymentRepo.On("Create", mock.Anything, mock.AnythingOfType("*payment.Record")).Return(true, nil)
		mocks.orderRepo.On("SaveWithLock", mock.Anything, o).Return(nil)

		req, _ := http.NewRequest(http.MethodPost, "/admin/orders/"+o.ID.String()+"/payment/cash", nil)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)

		var response map[string]interface{}
		err := json.Unmarshal(w.Body.Bytes(), &response)
		assert.NoError(t, err)
		data := response["data"].(map[string]interface{})
		assert.Equal(t, "CASH", data["method"])
		assert.Equal(t, testUserID.String(), data["processed_by"])

		assert.True(t, o.IsPaid())

		mocks.orderRepo.AssertExpectations(t)
		mocks.paymentRepo.AssertExpectations(t)
	})

	t.Run("should return 409 when the order is already paid", func(t *testing.T) {
		router, mocks, paymentHandler, _ := setupPaymentTestRouter()

		o := createPayableOrder()
		_ = o.MarkPaid()
		o.ClearDomainEvents()

		router.POST("/admin/orders/:id/payment/cash", paymentHandler.ProcessCashPayment)

		mocks.orderRepo.On("FindByID", mock.Anything, o.ID).Return(o, nil)

		req, _ := http.NewRequest(http.MethodPost, "/admin/orders/"+o.ID.String()+"/payment/cash", nil)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)

		mocks.paymentRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}

func TestPaymentHandler_VerifyCheckout(t *testing.T) {
	t.Run("should confirm a valid checkout signature", func(t *testing.T) {
		router, mocks, paymentHandler, _ := setupPaymentTestRouter()

		router.POST("/payments/checkout/verify", paymentHandler.VerifyCheckout)

		mocks.adapter.On("VerifyCheckoutSignature", "gw_order_1", "pay_abc123", "sig").Return(nil)

		body, _ := json.Marshal(paymentapp.VerifyCheckoutRequest{
			GatewayOrderID:   "gw_order_1",
			GatewayPaymentID: "pay_abc123",
			Signature:        "sig",
		})

		req, _ := http.NewRequest(http.MethodPost, "/payments/checkout/verify", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var response map[string]interface{}
		err := json.Unmarshal(w.Body.Bytes(), &response)
		assert.NoError(t, err)
		data := response["data"].(map[string]interface{})
		assert.True(t, data["verified"].(bool))

		// Verification never touches order state
		mocks.orderRepo.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
		mocks.orderRepo.AssertNotCalled(t, "SaveWithLock", mock.Anything, mock.Anything)
	})

	t.Run("should return 401 for a forged checkout signature", func(t *testing.T) {
		router, mocks, paymentHandler, _ := setupPaymentTestRouter()

		router.POST("/payments/checkout/verify", paymentHandler.VerifyCheckout)

		mocks.adapter.On("VerifyCheckoutSignature", "gw_order_1", "pay_abc123", "forged").
			Return(shared.ErrInvalidSignature)

		body, _ := json.Marshal(paymentapp.VerifyCheckoutRequest{
			GatewayOrderID:   "gw_order_1",
			GatewayPaymentID: "pay_abc123",
			Signature:        "forged",
		})

		req, _ := http.NewRequest(http.MethodPost, "/payments/checkout/verify", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestPaymentHandler_CreateIntent(t *testing.T) {
	t.Run("should create a payment intent", func(t *testing.T) {
		router, mocks, paymentHandler, _ := setupPaymentTestRouter()

		o := createPayableOrder()

		router.POST("/orders/:id/payment/intent", paymentHandler.CreateIntent)

		mocks.orderRepo.On("FindByIDForUser", mock.Anything, testUserID, o.ID).Return(o, nil)
		mocks.adapter.On("CreateIntent", mock.Anything, mock.AnythingOfType("*payment.IntentRequest")).
			Return(&payment.Intent{
				GatewayOrderID: "gw_order_1",
				CheckoutURL:    "https://gateway.example.com/checkout/gw_order_1",
				ExpiresAt:      time.Now().Add(30 * time.Minute),
			}, nil)

		req, _ := http.NewRequest(http.MethodPost, "/orders/"+o.ID.String()+"/payment/intent", nil)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)

		var response map[string]interface{}
		err := json.Unmarshal(w.Body.Bytes(), &response)
		assert.NoError(t, err)
		data := response["data"].(map[string]interface{})
		assert.Equal(t, "gw_order_1", data["gateway_order_id"])

		mocks.adapter.AssertExpectations(t)
	})

	t.Run("should return 409 when paying for a paid order", func(t *testing.T) {
		router, mocks, paymentHandler, _ := setupPaymentTestRouter()

		o := createPayableOrder()
		_ = o.MarkPaid()
		o.ClearDomainEvents()

		router.POST("/orders/:id/payment/intent", paymentHandler.CreateIntent)

		mocks.orderRepo.On("FindByIDForUser", mock.Anything, testUserID, o.ID).Return(o, nil)

		req, _ := http.NewRequest(http.MethodPost, "/orders/"+o.ID.String()+"/payment/intent", nil)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)

		mocks.adapter.AssertNotCalled(t, "CreateIntent", mock.Anything, mock.Anything)
	})
}
