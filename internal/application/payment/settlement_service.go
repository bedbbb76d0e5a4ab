package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/storefront/backend/internal/domain/order"
	"github.com/storefront/backend/internal/domain/payment"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/infrastructure/telemetry"
)

// SettlementService reconciles payment outcomes onto orders. Gateway
// webhooks are the only path that settles an online payment; the
// checkout-confirmation handshake verifies integrity and nothing else.
// Duplicate webhook deliveries collapse on the payment record's unique
// gateway payment id, with an idempotency cache as the fast path.
type SettlementService struct {
	orderRepo   order.Repository
	paymentRepo payment.Repository
	adapter     payment.GatewayAdapter
	idempotency shared.IdempotencyStore
	notifier    shared.NotificationDispatcher
	metrics     *telemetry.BusinessMetrics
	logger      *zap.Logger
}

// SettlementServiceConfig holds the settlement service dependencies.
type SettlementServiceConfig struct {
	OrderRepo   order.Repository
	PaymentRepo payment.Repository
	Adapter     payment.GatewayAdapter
	Idempotency shared.IdempotencyStore
	Notifier    shared.NotificationDispatcher
	Logger      *zap.Logger
}

// NewSettlementService creates a settlement service.
func NewSettlementService(config SettlementServiceConfig) *SettlementService {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettlementService{
		orderRepo:   config.OrderRepo,
		paymentRepo: config.PaymentRepo,
		adapter:     config.Adapter,
		idempotency: config.Idempotency,
		notifier:    config.Notifier,
		logger:      logger,
	}
}

// SetBusinessMetrics sets the business metrics recorder.
func (s *SettlementService) SetBusinessMetrics(metrics *telemetry.BusinessMetrics) {
	s.metrics = metrics
}

// IngestWebhook verifies and applies one gateway webhook delivery.
// Redelivered events settle the order exactly once: replays are answered
// with a duplicate result, not an error, so the gateway stops retrying.
func (s *SettlementService) IngestWebhook(ctx context.Context, payload []byte, signature string) (*WebhookResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "ingest_webhook")
	defer span.End()

	event, err := s.adapter.VerifyWebhook(payload, signature)
	if err != nil {
		telemetry.RecordError(span, err)
		s.logger.Warn("Webhook rejected", zap.Error(err))
		return nil, err
	}

	telemetry.SetAttributes(span,
		telemetry.SpanAttrOrderID, event.OrderID.String(),
		telemetry.SpanAttrGatewayPaymentID, event.GatewayPaymentID,
	)

	if !event.IsSettlement() && event.Type != payment.WebhookEventPaymentFailed {
		// Unknown event types are acknowledged and dropped so the
		// gateway does not keep redelivering them.
		s.logger.Info("Ignoring unhandled webhook event type",
			zap.String("event_type", event.Type),
			zap.String("gateway_payment_id", event.GatewayPaymentID))
		return &WebhookResult{OrderID: event.OrderID}, nil
	}

	idempotencyKey := "webhook:" + event.GatewayPaymentID
	if s.idempotency != nil {
		processed, err := s.idempotency.IsProcessed(ctx, idempotencyKey)
		if err != nil {
			s.logger.Warn("Idempotency fast path unavailable",
				zap.String("gateway_payment_id", event.GatewayPaymentID),
				zap.Error(err))
		} else if processed {
			s.recordPaymentMetric(ctx, payment.MethodOnline, telemetry.PaymentOutcomeDuplicate)
			return &WebhookResult{OrderID: event.OrderID, Duplicate: true}, nil
		}
	}

	o, err := s.orderRepo.FindByID(ctx, event.OrderID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	var rec *payment.Record
	if event.IsSettlement() {
		rec, err = payment.NewGatewayRecord(o.ID, event.GatewayPaymentID, event.Amount)
	} else {
		rec, err = payment.NewGatewayFailureRecord(o.ID, event.GatewayPaymentID, event.Amount)
	}
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	created, err := s.paymentRepo.Create(ctx, rec)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if !created {
		// The unique gateway payment id already has a record: a
		// concurrent or earlier delivery won the insert race. The
		// earlier delivery may have crashed between inserting the
		// record and saving the order, so when the order is still
		// unpaid the settlement is re-applied here instead of being
		// silently acknowledged.
		result := &WebhookResult{OrderID: o.ID, Duplicate: true}
		if event.IsSettlement() && !o.IsPaid() {
			settled, err := s.settle(ctx, o, event)
			if err != nil {
				telemetry.RecordError(span, err)
				return nil, err
			}
			result.Settled = settled
			s.logger.Info("Repaired settlement on redelivered webhook",
				zap.String("gateway_payment_id", event.GatewayPaymentID),
				zap.String("order_id", o.ID.String()))
		} else {
			s.logger.Info("Duplicate webhook delivery collapsed",
				zap.String("gateway_payment_id", event.GatewayPaymentID),
				zap.String("order_id", o.ID.String()))
		}
		s.markProcessed(ctx, idempotencyKey)
		s.recordPaymentMetric(ctx, payment.MethodOnline, telemetry.PaymentOutcomeDuplicate)
		return result, nil
	}

	result := &WebhookResult{OrderID: o.ID}
	if event.IsSettlement() {
		settled, err := s.settle(ctx, o, event)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
		result.Settled = settled
		if settled {
			telemetry.AddEvent(span, "order_settled",
				telemetry.SpanAttrGatewayPaymentID, event.GatewayPaymentID)
			s.recordPaymentMetric(ctx, payment.MethodOnline, telemetry.PaymentOutcomeSuccess)
		} else {
			s.recordPaymentMetric(ctx, payment.MethodOnline, telemetry.PaymentOutcomeDuplicate)
		}
	} else {
		if err := s.markFailed(ctx, o, event); err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
		s.recordPaymentMetric(ctx, payment.MethodOnline, telemetry.PaymentOutcomeFailed)
	}

	s.markProcessed(ctx, idempotencyKey)
	return result, nil
}

// ProcessCashPayment settles an order with an operator-entered cash
// payment. An order that is already paid is rejected.
func (s *SettlementService) ProcessCashPayment(ctx context.Context, orderID, operatorID uuid.UUID) (*PaymentRecordResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "process_cash_payment")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrOrderID, orderID.String(),
		telemetry.SpanAttrPaymentMethod, string(payment.MethodCash),
	)

	o, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if err := o.MarkPaid(); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	rec, err := payment.NewCashRecord(o.ID, o.TotalAmountMoney(), operatorID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	created, err := s.paymentRepo.Create(ctx, rec)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if !created {
		return nil, shared.ErrAlreadyExists
	}

	if err := s.orderRepo.SaveWithLock(ctx, o); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.recordPaymentMetric(ctx, payment.MethodCash, telemetry.PaymentOutcomeSuccess)
	s.notify(ctx, o, "payment.received",
		fmt.Sprintf("Cash payment received for order %s", o.OrderNumber))

	s.logger.Info("Cash payment recorded",
		zap.String("order_id", o.ID.String()),
		zap.String("order_number", o.OrderNumber),
		zap.String("operator_id", operatorID.String()))

	return ToPaymentRecordResponse(rec), nil
}

// VerifyCheckout authenticates the client-side checkout confirmation.
// It never settles the order; settlement arrives over the webhook.
func (s *SettlementService) VerifyCheckout(ctx context.Context, req *VerifyCheckoutRequest) error {
	if err := s.adapter.VerifyCheckoutSignature(req.GatewayOrderID, req.GatewayPaymentID, req.Signature); err != nil {
		s.logger.Warn("Checkout signature rejected",
			zap.String("gateway_order_id", req.GatewayOrderID),
			zap.Error(err))
		return err
	}
	return nil
}

// CreateIntent registers a payment intent with the gateway for an order
// owned by the calling user.
func (s *SettlementService) CreateIntent(ctx context.Context, userID, orderID uuid.UUID) (*IntentResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "create_intent")
	defer span.End()

	o, err := s.orderRepo.FindByIDForUser(ctx, userID, orderID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if o.IsPaid() {
		return nil, shared.ErrAlreadyPaid
	}
	if o.IsCancelled() {
		return nil, shared.NewDomainError("INVALID_TRANSITION", "Cannot pay for a cancelled order")
	}

	req := &payment.IntentRequest{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		Amount:      o.TotalAmountMoney(),
		Description: fmt.Sprintf("Order %s", o.OrderNumber),
	}
	if err := req.Validate(); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	intent, err := s.adapter.CreateIntent(ctx, req)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	return &IntentResponse{
		GatewayOrderID: intent.GatewayOrderID,
		CheckoutURL:    intent.CheckoutURL,
		ExpiresAt:      intent.ExpiresAt,
	}, nil
}

// RecordRefund refunds a paid order in full. The refund is a new
// append-only record; the original settlement record stays untouched.
func (s *SettlementService) RecordRefund(ctx context.Context, orderID, operatorID uuid.UUID) (*PaymentRecordResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "record_refund")
	defer span.End()

	o, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if err := o.MarkRefunded(); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	rec, err := payment.NewRefundRecord(o.ID, o.TotalAmountMoney(), operatorID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if _, err := s.paymentRepo.Create(ctx, rec); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if err := s.orderRepo.SaveWithLock(ctx, o); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.notify(ctx, o, "payment.refunded",
		fmt.Sprintf("Order %s refunded", o.OrderNumber))

	return ToPaymentRecordResponse(rec), nil
}

// ListForOrder lists payment records for an order, newest first.
func (s *SettlementService) ListForOrder(ctx context.Context, orderID uuid.UUID) ([]*PaymentRecordResponse, error) {
	records, err := s.paymentRepo.FindByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	responses := make([]*PaymentRecordResponse, 0, len(records))
	for i := range records {
		responses = append(responses, ToPaymentRecordResponse(&records[i]))
	}
	return responses, nil
}

// settle transitions the order to paid. It reports whether this event
// actually settled the order; a webhook for an order another payment
// already settled is tolerated but reported as not settled.
func (s *SettlementService) settle(ctx context.Context, o *order.Order, event *payment.WebhookEvent) (bool, error) {
	if err := o.MarkPaid(); err != nil {
		if errors.Is(err, shared.ErrAlreadyPaid) {
			// A different gateway payment already settled the order.
			// The record stands as an audit entry; nothing changes.
			s.logger.Warn("Settlement webhook for an already paid order",
				zap.String("order_id", o.ID.String()),
				zap.String("gateway_payment_id", event.GatewayPaymentID))
			return false, nil
		}
		return false, err
	}

	if err := s.orderRepo.SaveWithLock(ctx, o); err != nil {
		return false, err
	}

	s.notify(ctx, o, "payment.received",
		fmt.Sprintf("Payment received for order %s", o.OrderNumber))

	s.logger.Info("Order settled via webhook",
		zap.String("order_id", o.ID.String()),
		zap.String("order_number", o.OrderNumber),
		zap.String("gateway_payment_id", event.GatewayPaymentID))
	return true, nil
}

func (s *SettlementService) markFailed(ctx context.Context, o *order.Order, event *payment.WebhookEvent) error {
	if err := o.MarkPaymentFailed(); err != nil {
		if errors.Is(err, shared.ErrAlreadyPaid) {
			// A late failure event cannot unsettle a paid order.
			s.logger.Info("Ignoring failure webhook for a paid order",
				zap.String("order_id", o.ID.String()),
				zap.String("gateway_payment_id", event.GatewayPaymentID))
			return nil
		}
		return err
	}

	if err := s.orderRepo.SaveWithLock(ctx, o); err != nil {
		return err
	}

	s.notify(ctx, o, "payment.failed",
		fmt.Sprintf("Payment failed for order %s", o.OrderNumber))
	return nil
}

func (s *SettlementService) markProcessed(ctx context.Context, key string) {
	if s.idempotency == nil {
		return
	}
	cfg := shared.DefaultIdempotencyConfig()
	if _, err := s.idempotency.MarkProcessed(ctx, key, cfg.TTL); err != nil {
		s.logger.Warn("Failed to mark webhook as processed",
			zap.String("idempotency_key", key),
			zap.Error(err))
	}
}

func (s *SettlementService) recordPaymentMetric(ctx context.Context, method payment.Method, outcome telemetry.PaymentOutcome) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordPayment(ctx, string(method), outcome)
}

func (s *SettlementService) notify(ctx context.Context, o *order.Order, event, detail string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Send(ctx, shared.Notification{
		UserID:  o.UserID,
		OrderID: o.ID,
		Event:   event,
		Detail:  detail,
	})
}
