package payment

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/nazeru/storefront-go/internal/domain"
	"github.com/nazeru/storefront-go/internal/identity"
	"github.com/nazeru/storefront-go/internal/order"
)

// Orders is the slice of the order repository the reconciliation path
// needs; *order.PgxRepository implements it.
type Orders interface {
	Get(ctx context.Context, id uuid.UUID) (*order.Order, error)
	StampPayment(ctx context.Context, id uuid.UUID, paymentID string, evt order.Event) (bool, error)
	AppendEvent(ctx context.Context, evt order.Event) error
	EventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID string) (bool, error)
}

type Service struct {
	gateway       Gateway
	orders        Orders
	webhookSecret string
	tolerance     time.Duration
	log           *logrus.Entry
}

func NewService(gateway Gateway, orders Orders, webhookSecret string, log *logrus.Entry) *Service {
	return &Service{
		gateway:       gateway,
		orders:        orders,
		webhookSecret: webhookSecret,
		tolerance:     DefaultTolerance,
		log:           log,
	}
}

// CreateIntent asks the gateway for a payment intent covering amount.
// The optional orderID travels in intent metadata so webhook events can
// find their order without the synchronous confirm call.
func (s *Service) CreateIntent(ctx context.Context, caller identity.Capability, amount decimal.Decimal, currency, orderID string) (string, error) {
	if currency == "" {
		currency = "usd"
	}
	minor := ToMinorUnits(amount)
	if minor < MinimumChargeMinor {
		return "", domain.Invalidf("amount must be at least 0.50")
	}

	metadata := map[string]string{"userId": caller.UserID.String()}
	if orderID != "" {
		metadata["orderId"] = orderID
	}
	intent, err := s.gateway.CreateIntent(ctx, minor, currency, metadata)
	if err != nil {
		s.log.WithError(err).Error("payment intent creation failed")
		return "", errors.Wrap(err, "create payment intent")
	}
	return intent.ClientSecret, nil
}

// Confirm is the synchronous reconciliation path: order exists, order
// belongs to the caller, intent status fetched fresh from the gateway
// is succeeded — in that order. Re-confirming an already-processing
// order with the same intent id is a no-op success.
func (s *Service) Confirm(ctx context.Context, caller identity.Capability, intentID string, orderID uuid.UUID) (*order.Order, error) {
	ord, err := s.orders.Get(ctx, orderID)
	if err != nil {
		if errors.Is(err, order.ErrNoOrder) {
			return nil, domain.NotFoundf("order not found")
		}
		return nil, err
	}
	if ord.UserID != caller.UserID {
		return nil, domain.Forbidden("access denied")
	}

	intent, err := s.gateway.RetrieveIntent(ctx, intentID)
	if err != nil {
		// A timeout here leaves the order pending; retrying is safe.
		s.log.WithError(err).WithField("order_id", orderID).Error("intent retrieval failed")
		return nil, errors.Wrap(err, "retrieve payment intent")
	}
	if intent.Status != IntentSucceeded {
		return nil, domain.ErrPaymentNotComplete
	}

	return s.applyCapture(ctx, ord, intentID)
}

// HandleWebhook verifies and applies one pushed gateway event. The
// transport acknowledges any verified and applied event, including
// duplicates and events this process cannot act on; verification
// failures and malformed payloads error.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, sigHeader string) error {
	if err := VerifySignature(payload, sigHeader, s.webhookSecret, time.Now(), s.tolerance); err != nil {
		return err
	}

	var evt WebhookEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		return domain.Invalidf("invalid webhook payload")
	}
	if evt.ID == "" {
		return domain.Invalidf("invalid webhook payload")
	}

	processed, err := s.orders.EventProcessed(ctx, evt.ID)
	if err != nil {
		return err
	}
	if processed {
		s.log.WithField("event_id", evt.ID).Debug("duplicate webhook delivery ignored")
		return nil
	}

	intent := evt.Data.Object
	switch evt.Type {
	case EventTypeIntentSucceeded:
		err = s.applySucceeded(ctx, evt.ID, intent)
	case EventTypeIntentFailed:
		err = s.recordFailure(ctx, evt.ID, intent)
	default:
		s.log.WithFields(logrus.Fields{"event_id": evt.ID, "type": evt.Type}).Debug("unhandled webhook event type")
	}
	if err != nil {
		return err
	}

	// Marked only after the event applied. A transient failure above
	// leaves the event unmarked, so the provider's retry is processed
	// instead of swallowed; the conditional stamp keeps a concurrent
	// duplicate from capturing twice.
	_, err = s.orders.MarkEventProcessed(ctx, evt.ID)
	return err
}

func (s *Service) applySucceeded(ctx context.Context, eventID string, intent Intent) error {
	orderIDStr := intent.Metadata["orderId"]
	if orderIDStr == "" {
		s.log.WithField("event_id", eventID).Warn("succeeded intent without order metadata")
		return nil
	}
	orderID, err := uuid.Parse(orderIDStr)
	if err != nil {
		s.log.WithField("event_id", eventID).Warn("succeeded intent with malformed order metadata")
		return nil
	}

	ord, err := s.orders.Get(ctx, orderID)
	if err != nil {
		if errors.Is(err, order.ErrNoOrder) {
			s.log.WithFields(logrus.Fields{"event_id": eventID, "order_id": orderID}).Warn("webhook for unknown order")
			return nil
		}
		return err
	}
	_, err = s.applyCapture(ctx, ord, intent.ID)
	if err != nil && domain.ErrorCode(err) == domain.ECONFLICT {
		// The order moved past pending through another path; the event
		// is still acknowledged.
		s.log.WithFields(logrus.Fields{"event_id": eventID, "order_id": orderID}).Warn("webhook capture superseded")
		return nil
	}
	return err
}

// applyCapture is the single idempotent stamp-and-transition both the
// confirm call and the webhook converge on.
func (s *Service) applyCapture(ctx context.Context, ord *order.Order, intentID string) (*order.Order, error) {
	if ord.Status != order.StatusPending {
		if ord.Status == order.StatusProcessing && ord.PaymentID == intentID {
			return ord, nil
		}
		return nil, domain.Conflictf("order is not awaiting payment")
	}

	evt := order.NewEvent(ord.ID, order.EventPaymentCaptured, map[string]any{"payment_id": intentID})
	transitioned, err := s.orders.StampPayment(ctx, ord.ID, intentID, evt)
	if err != nil {
		return nil, err
	}
	if !transitioned {
		// Lost the race to the other path; re-read and verify it
		// converged on the same intent.
		fresh, err := s.orders.Get(ctx, ord.ID)
		if err != nil {
			return nil, err
		}
		if fresh.Status == order.StatusProcessing && fresh.PaymentID == intentID {
			return fresh, nil
		}
		return nil, domain.Conflictf("order is not awaiting payment")
	}

	s.log.WithFields(logrus.Fields{"order_id": ord.ID, "payment_id": intentID}).Info("payment captured")
	ord.Status = order.StatusProcessing
	ord.PaymentID = intentID
	return ord, nil
}

func (s *Service) recordFailure(ctx context.Context, eventID string, intent Intent) error {
	fields := logrus.Fields{"event_id": eventID, "payment_id": intent.ID}
	orderIDStr := intent.Metadata["orderId"]
	if orderID, err := uuid.Parse(orderIDStr); err == nil {
		fields["order_id"] = orderID
		// The order stays pending; failed payments never auto-cancel.
		if err := s.orders.AppendEvent(ctx, order.NewEvent(orderID, order.EventPaymentFailed, map[string]any{"payment_id": intent.ID})); err != nil {
			return err
		}
	}
	s.log.WithFields(fields).Warn("payment failed")
	return nil
}
