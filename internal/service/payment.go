package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"github.com/Skotchmaster/game_store/internal/dedupe"
	"github.com/Skotchmaster/game_store/internal/models"
	"github.com/Skotchmaster/game_store/internal/paypalgw"
	"github.com/Skotchmaster/game_store/internal/repo"
	pkgdb "github.com/Skotchmaster/game_store/pkg/db"
	"github.com/Skotchmaster/game_store/pkg/events"
	"github.com/Skotchmaster/game_store/pkg/logging"
)

const (
	EventCaptureCompleted = "PAYMENT.CAPTURE.COMPLETED"
	EventOrderApproved    = "CHECKOUT.ORDER.APPROVED"
)

// Webhook outcomes, reported back for logging.
const (
	WebhookProcessed   = "processed"
	WebhookAlreadyPaid = "already_paid"
	WebhookDuplicate   = "duplicate"
	WebhookIgnored     = "ignored"
	WebhookUnmatched   = "unmatched"
	WebhookFailed      = "failed"
)

type PaymentService struct {
	Repo    *repo.GormRepo
	Events  events.Publisher
	Gateway paypalgw.Gateway
	Dedupe  dedupe.Store

	Currency      string
	PublicBaseURL string
	// SkipWebhookVerification is only set in development.
	SkipWebhookVerification bool
}

type CaptureResult struct {
	Order       *models.Order
	CaptureID   string
	AlreadyPaid bool
}

func (s *PaymentService) returnURL() string {
	return s.PublicBaseURL + "/pagos/paypal/capturar-orden"
}

func (s *PaymentService) cancelURL() string {
	return s.PublicBaseURL + "/pagos/paypal/cancelar-orden"
}

// CreateGatewayOrder opens a PayPal order for the caller's pending order and
// remembers its id for the capture redirect and webhooks.
func (s *PaymentService) CreateGatewayOrder(ctx context.Context, userID, orderID uint) (*paypalgw.CreatedOrder, error) {
	l := logging.FromContext(ctx).With("svc", "payment.create_order", "user_id", userID, "order_id", orderID)

	if orderID == 0 {
		return nil, fmt.Errorf("%w: pedidoId required", ErrValidation)
	}
	o, err := s.Repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, notFound(err, "order")
	}
	if o.UserID != userID {
		return nil, fmt.Errorf("%w: order belongs to another user", ErrForbidden)
	}
	if o.Status != models.OrderStatusPendingPayment {
		return nil, fmt.Errorf("%w: order is %s", ErrConflict, o.Status)
	}

	ref := strconv.FormatUint(uint64(o.ID), 10)
	created, err := s.Gateway.CreateOrder(ctx, paypalgw.OrderRequest{
		ReferenceID: ref,
		CustomID:    ref,
		Amount:      o.Total,
		Currency:    s.Currency,
		ReturnURL:   s.returnURL(),
		CancelURL:   s.cancelURL(),
	})
	if err != nil {
		l.Error("paypal_create_order_failed", "error", err)
		return nil, &PaymentError{Op: "create order", Detail: paypalgw.Detail(err), Err: err}
	}

	ok, err := s.Repo.SetGatewayOrderID(ctx, o.ID, created.ID)
	if err != nil {
		return nil, fmt.Errorf("store gateway order id: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: order is no longer pending payment", ErrConflict)
	}

	l.Info("paypal_order_created", "gateway_order_id", created.ID)
	return created, nil
}

// CaptureOrder completes the payment the buyer approved. Capturing an order
// that is already paid returns it unchanged.
func (s *PaymentService) CaptureOrder(ctx context.Context, gatewayOrderID string) (*CaptureResult, error) {
	l := logging.FromContext(ctx).With("svc", "payment.capture", "gateway_order_id", gatewayOrderID)

	gatewayOrderID = strings.TrimSpace(gatewayOrderID)
	if gatewayOrderID == "" {
		return nil, fmt.Errorf("%w: token required", ErrValidation)
	}
	o, err := s.Repo.FindOrderByGatewayOrderID(ctx, gatewayOrderID)
	if err != nil {
		return nil, notFound(err, "order for gateway order")
	}

	switch o.Status {
	case models.OrderStatusPaid:
		res := &CaptureResult{Order: o, AlreadyPaid: true}
		if o.GatewayTransactionID != nil {
			res.CaptureID = *o.GatewayTransactionID
		}
		return res, nil
	case models.OrderStatusPendingPayment:
	default:
		return nil, fmt.Errorf("%w: order is %s", ErrConflict, o.Status)
	}

	capture, err := s.Gateway.CaptureOrder(ctx, gatewayOrderID)
	if err != nil {
		l.Error("paypal_capture_failed", "order_id", o.ID, "error", err)
		return nil, &PaymentError{Op: "capture order", Detail: paypalgw.Detail(err), Err: err}
	}
	if capture.Status != paypalgw.StatusCompleted || capture.CaptureID == "" {
		l.Warn("paypal_capture_incomplete", "order_id", o.ID, "capture_status", capture.Status)
		return nil, &PaymentError{Op: "capture order", Detail: "capture status " + capture.Status}
	}

	updated, err := s.markPaid(ctx, o.ID, capture.CaptureID, "capture")
	if err != nil {
		return nil, err
	}

	reloaded, err := s.Repo.GetOrder(ctx, o.ID)
	if err != nil {
		return nil, fmt.Errorf("reload order: %w", err)
	}
	res := &CaptureResult{Order: reloaded, CaptureID: capture.CaptureID, AlreadyPaid: !updated}
	if reloaded.GatewayTransactionID != nil {
		res.CaptureID = *reloaded.GatewayTransactionID
	}
	return res, nil
}

// CancelRedirect handles the buyer leaving the PayPal page. The order stays
// pending; the returned id is zero when the token matches no order.
func (s *PaymentService) CancelRedirect(ctx context.Context, gatewayOrderID string) uint {
	l := logging.FromContext(ctx).With("svc", "payment.cancel_redirect", "gateway_order_id", gatewayOrderID)

	if gatewayOrderID == "" {
		return 0
	}
	o, err := s.Repo.FindOrderByGatewayOrderID(ctx, gatewayOrderID)
	if err != nil {
		l.Warn("paypal_cancel_unmatched", "error", err)
		return 0
	}
	l.Info("paypal_payment_cancelled_by_buyer", "order_id", o.ID, "status", o.Status)
	return o.ID
}

type webhookEvent struct {
	ID           string          `json:"id"`
	EventType    string          `json:"event_type"`
	ResourceType string          `json:"resource_type"`
	Resource     json.RawMessage `json:"resource"`
}

type captureResource struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	CustomID      string `json:"custom_id"`
	PurchaseUnits []struct {
		CustomID string `json:"custom_id"`
	} `json:"purchase_units"`
	SupplementaryData struct {
		RelatedIDs struct {
			OrderID string `json:"order_id"`
		} `json:"related_ids"`
	} `json:"supplementary_data"`
}

// HandleWebhook verifies and applies one PayPal webhook delivery. A nil error
// means the delivery must be acknowledged with 200, whatever the outcome.
func (s *PaymentService) HandleWebhook(ctx context.Context, r *http.Request, body []byte) (string, error) {
	l := logging.FromContext(ctx).With("svc", "payment.webhook")

	if s.SkipWebhookVerification {
		l.Warn("webhook_verification_skipped", "reason", "development mode")
	} else {
		ok, err := s.Gateway.VerifyWebhook(ctx, r, body)
		if err != nil {
			return WebhookFailed, &PaymentError{Op: "verify webhook", Detail: paypalgw.Detail(err), Err: err}
		}
		if !ok {
			return WebhookFailed, fmt.Errorf("%w: signature verification failed", ErrWebhookRejected)
		}
	}

	var ev webhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return WebhookFailed, fmt.Errorf("%w: malformed webhook body", ErrValidation)
	}
	if ev.EventType == "" {
		return WebhookFailed, fmt.Errorf("%w: event_type missing", ErrValidation)
	}
	l = l.With("event_id", ev.ID, "event_type", ev.EventType)

	switch ev.EventType {
	case EventCaptureCompleted:
	case EventOrderApproved:
		l.Info("webhook_order_approved")
		return WebhookIgnored, nil
	default:
		l.Info("webhook_ignored")
		return WebhookIgnored, nil
	}

	if s.Dedupe != nil && ev.ID != "" {
		first, err := s.Dedupe.FirstSeen(ctx, ev.ID)
		if err != nil {
			l.Warn("webhook_dedupe_failed", "error", err)
		} else if !first {
			l.Info("webhook_duplicate")
			return WebhookDuplicate, nil
		}
	}

	outcome, err := s.applyCapture(logging.IntoContext(ctx, l), ev.Resource)
	if outcome == WebhookFailed && s.Dedupe != nil && ev.ID != "" {
		// the guarded update did not run to completion, so a redelivery
		// must reach it again
		if ferr := s.Dedupe.Forget(context.WithoutCancel(ctx), ev.ID); ferr != nil {
			l.Warn("webhook_dedupe_forget_failed", "error", ferr)
		}
	}
	if err != nil {
		return WebhookFailed, err
	}
	return outcome, nil
}

// applyCapture returns an error only when the gateway should retry.
func (s *PaymentService) applyCapture(ctx context.Context, raw json.RawMessage) (string, error) {
	l := logging.FromContext(ctx)

	var res captureResource
	if len(raw) == 0 || json.Unmarshal(raw, &res) != nil {
		l.Warn("webhook_unmatched", "reason", "unreadable resource")
		return WebhookUnmatched, nil
	}
	if res.ID == "" {
		l.Warn("webhook_unmatched", "reason", "capture id missing")
		return WebhookUnmatched, nil
	}

	orderID, err := s.resolveOrderID(ctx, res)
	if err != nil {
		if pkgdb.IsRetryable(err) {
			return WebhookFailed, err
		}
		l.Error("webhook_lookup_failed", "capture_id", res.ID, "error", err)
		return WebhookUnmatched, nil
	}
	if orderID == 0 {
		l.Warn("webhook_unmatched", "capture_id", res.ID, "reason", "no order reference")
		return WebhookUnmatched, nil
	}

	updated, err := s.markPaid(ctx, orderID, res.ID, "webhook")
	if err != nil {
		if pkgdb.IsRetryable(err) {
			return WebhookFailed, err
		}
		l.Error("webhook_mark_paid_failed", "order_id", orderID, "error", err)
		return WebhookFailed, nil
	}
	if !updated {
		return WebhookAlreadyPaid, nil
	}
	return WebhookProcessed, nil
}

func (s *PaymentService) resolveOrderID(ctx context.Context, res captureResource) (uint, error) {
	custom := res.CustomID
	if custom == "" && len(res.PurchaseUnits) > 0 {
		custom = res.PurchaseUnits[0].CustomID
	}
	if custom != "" {
		id, err := strconv.ParseUint(custom, 10, 64)
		if err == nil && id > 0 {
			return uint(id), nil
		}
	}

	related := res.SupplementaryData.RelatedIDs.OrderID
	if related == "" {
		return 0, nil
	}
	o, err := s.Repo.FindOrderByGatewayOrderID(ctx, related)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return o.ID, nil
}

// markPaid applies the guarded pending -> paid update and reports whether
// this call changed the row.
func (s *PaymentService) markPaid(ctx context.Context, orderID uint, captureID, source string) (bool, error) {
	l := logging.FromContext(ctx).With("order_id", orderID, "capture_id", captureID, "source", source)

	updated, err := s.Repo.MarkOrderPaid(ctx, orderID, captureID)
	if err != nil {
		return false, fmt.Errorf("mark order %d paid: %w", orderID, err)
	}
	if !updated {
		l.Info("order_already_paid_or_not_pending")
		return false, nil
	}

	l.Info("order_paid")
	publish(ctx, s.Events, events.TopicOrders, orderKey(orderID), events.New("order_paid", map[string]any{
		"order_id":   orderID,
		"capture_id": captureID,
		"source":     source,
	}))
	return true, nil
}
