package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/game_store/internal/dedupe"
	"github.com/Skotchmaster/game_store/internal/models"
	"github.com/Skotchmaster/game_store/internal/testdb"
	"github.com/Skotchmaster/game_store/pkg/events"
)

func (e *env) payments(gw *fakeGateway) *PaymentService {
	return &PaymentService{
		Repo:          e.repo,
		Events:        e.events,
		Gateway:       gw,
		Dedupe:        dedupe.NewMemory(),
		Currency:      "EUR",
		PublicBaseURL: "http://localhost:8080",
	}
}

type paymentFixture struct {
	*env
	gw   *fakeGateway
	svc  *PaymentService
	user *models.User
	prod *models.Product
	ord  *models.Order
}

// newPaymentFixture places an order of 100.00 with a PayPal order attached.
func newPaymentFixture(t *testing.T) *paymentFixture {
	t.Helper()
	e := newEnv(t)
	gw := newFakeGateway()
	f := &paymentFixture{env: e, gw: gw, svc: e.payments(gw)}
	f.user = testdb.CreateUser(t, e.db, testdb.Email(1), models.RoleCustomer)
	f.prod = testdb.CreateProduct(t, e.db, "Halo", "50.00", 5)
	f.ord = e.placeOrder(t, f.user.ID, item(f.prod.ID, 2))

	_, err := f.svc.CreateGatewayOrder(context.Background(), f.user.ID, f.ord.ID)
	require.NoError(t, err)
	return f
}

func webhookRequest(body string) (*http.Request, []byte) {
	r := httptest.NewRequest(http.MethodPost, "/pagos/paypal/webhook", strings.NewReader(body))
	return r, []byte(body)
}

const captureCompleted = `{
  "id": "WH-EVT-1",
  "event_type": "PAYMENT.CAPTURE.COMPLETED",
  "resource": {"id": "CAP1", "status": "COMPLETED", "custom_id": "ORDER_ID"}
}`

func captureEvent(eventID string, orderID uint) string {
	body := strings.Replace(captureCompleted, "ORDER_ID", orderKey(orderID), 1)
	return strings.Replace(body, "WH-EVT-1", eventID, 1)
}

func TestPaymentService_CreateGatewayOrder(t *testing.T) {
	f := newPaymentFixture(t)

	require.Len(t, f.gw.created, 1)
	req := f.gw.created[0]
	assert.Equal(t, orderKey(f.ord.ID), req.CustomID)
	assert.Equal(t, "100.00", req.Amount.StringFixed(2))
	assert.Equal(t, "EUR", req.Currency)
	assert.Equal(t, "http://localhost:8080/pagos/paypal/capturar-orden", req.ReturnURL)
	assert.Equal(t, "http://localhost:8080/pagos/paypal/cancelar-orden", req.CancelURL)

	stored := f.order(t, f.ord.ID)
	require.NotNil(t, stored.GatewayOrderID)
	assert.Equal(t, "PP-ORDER-1", *stored.GatewayOrderID)
}

func TestPaymentService_CreateGatewayOrder_Rejections(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()
	stranger := testdb.CreateUser(t, f.db, testdb.Email(2), models.RoleCustomer)

	_, err := f.svc.CreateGatewayOrder(ctx, stranger.ID, f.ord.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.CreateGatewayOrder(ctx, f.user.ID, 9999)
	assert.ErrorIs(t, err, ErrNotFound)

	f.gw.createErr = errors.New("INSTRUMENT_DECLINED")
	_, err = f.svc.CreateGatewayOrder(ctx, f.user.ID, f.ord.ID)
	assert.ErrorIs(t, err, ErrPayment)
	var perr *PaymentError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "INSTRUMENT_DECLINED", perr.Detail)

	_, err = f.orders().CancelOrder(ctx, f.user.ID, f.ord.ID)
	require.NoError(t, err)
	f.gw.createErr = nil
	_, err = f.svc.CreateGatewayOrder(ctx, f.user.ID, f.ord.ID)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestPaymentService_CaptureThenCancel(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()
	assert.Equal(t, 3, testdb.Stock(t, f.db, f.prod.ID))

	res, err := f.svc.CaptureOrder(ctx, "PP-ORDER-1")
	require.NoError(t, err)
	assert.False(t, res.AlreadyPaid)
	assert.Equal(t, "CAP1", res.CaptureID)
	assert.Equal(t, models.OrderStatusPaid, res.Order.Status)
	require.NotNil(t, res.Order.GatewayTransactionID)
	assert.Equal(t, "CAP1", *res.Order.GatewayTransactionID)

	again, err := f.svc.CaptureOrder(ctx, "PP-ORDER-1")
	require.NoError(t, err)
	assert.True(t, again.AlreadyPaid)
	assert.Len(t, f.gw.captures, 1)

	cancelled, err := f.orders().CancelOrder(ctx, f.user.ID, f.ord.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelledByUser, cancelled.Status)
	assert.Equal(t, 5, testdb.Stock(t, f.db, f.prod.ID))

	assert.Equal(t, []string{"order_created", "order_paid", "order_cancelled"}, f.events.Types(events.TopicOrders))
	last := f.events.Events()[len(f.events.Events())-1]
	assert.Equal(t, true, last.Event.Data["refund_required"])
}

func TestPaymentService_CaptureOrder_Failures(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()

	_, err := f.svc.CaptureOrder(ctx, "")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.CaptureOrder(ctx, "UNKNOWN")
	assert.ErrorIs(t, err, ErrNotFound)

	f.gw.captureErr = errors.New("ORDER_NOT_APPROVED")
	_, err = f.svc.CaptureOrder(ctx, "PP-ORDER-1")
	assert.ErrorIs(t, err, ErrPayment)

	f.gw.captureErr = nil
	f.gw.captureStatus = "PENDING"
	_, err = f.svc.CaptureOrder(ctx, "PP-ORDER-1")
	assert.ErrorIs(t, err, ErrPayment)

	assert.Equal(t, models.OrderStatusPendingPayment, f.order(t, f.ord.ID).Status)
}

func TestPaymentService_CaptureOrder_CancelledOrderConflicts(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()

	_, err := f.orders().CancelOrder(ctx, f.user.ID, f.ord.ID)
	require.NoError(t, err)

	_, err = f.svc.CaptureOrder(ctx, "PP-ORDER-1")
	assert.ErrorIs(t, err, ErrConflict)
	assert.Empty(t, f.gw.captures)
}

func TestPaymentService_CancelRedirect(t *testing.T) {
	f := newPaymentFixture(t)

	assert.Equal(t, f.ord.ID, f.svc.CancelRedirect(context.Background(), "PP-ORDER-1"))
	assert.Zero(t, f.svc.CancelRedirect(context.Background(), "UNKNOWN"))
	assert.Equal(t, models.OrderStatusPendingPayment, f.order(t, f.ord.ID).Status)
}

func TestPaymentService_Webhook_DeliveredTwice(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()
	body := captureEvent("WH-EVT-1", f.ord.ID)

	r, raw := webhookRequest(body)
	outcome, err := f.svc.HandleWebhook(ctx, r, raw)
	require.NoError(t, err)
	assert.Equal(t, WebhookProcessed, outcome)

	r, raw = webhookRequest(body)
	outcome, err = f.svc.HandleWebhook(ctx, r, raw)
	require.NoError(t, err)
	assert.Equal(t, WebhookDuplicate, outcome)

	stored := f.order(t, f.ord.ID)
	assert.Equal(t, models.OrderStatusPaid, stored.Status)
	assert.Equal(t, "CAP1", *stored.GatewayTransactionID)
	assert.Equal(t, []string{"order_created", "order_paid"}, f.events.Types(events.TopicOrders))
}

// forgetCounter records which ids were released.
type forgetCounter struct {
	*dedupe.Memory
	forgotten []string
}

func (c *forgetCounter) Forget(ctx context.Context, id string) error {
	c.forgotten = append(c.forgotten, id)
	return c.Memory.Forget(ctx, id)
}

func TestPaymentService_Webhook_RetryableFailureReleasesEvent(t *testing.T) {
	f := newPaymentFixture(t)
	store := &forgetCounter{Memory: dedupe.NewMemory()}
	f.svc.Dedupe = store
	body := captureEvent("WH-EVT-1", f.ord.ID)

	gone, cancel := context.WithCancel(context.Background())
	cancel()
	r, raw := webhookRequest(body)
	outcome, err := f.svc.HandleWebhook(gone, r, raw)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, WebhookFailed, outcome)
	assert.Equal(t, []string{"WH-EVT-1"}, store.forgotten)
	assert.Equal(t, models.OrderStatusPendingPayment, f.order(t, f.ord.ID).Status)

	r, raw = webhookRequest(body)
	outcome, err = f.svc.HandleWebhook(context.Background(), r, raw)
	require.NoError(t, err)
	assert.Equal(t, WebhookProcessed, outcome)
	assert.Equal(t, models.OrderStatusPaid, f.order(t, f.ord.ID).Status)
}

func TestPaymentService_Webhook_RedeliveryAfterFailedUpdate(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()
	body := captureEvent("WH-EVT-1", f.ord.ID)

	require.NoError(t, f.db.Exec(`CREATE TRIGGER block_paid BEFORE UPDATE ON orders
		WHEN NEW.status = 'paid' BEGIN SELECT RAISE(ABORT, 'payments frozen'); END`).Error)

	r, raw := webhookRequest(body)
	outcome, err := f.svc.HandleWebhook(ctx, r, raw)
	require.NoError(t, err, "non-retryable failures are acknowledged")
	assert.Equal(t, WebhookFailed, outcome)
	assert.Equal(t, models.OrderStatusPendingPayment, f.order(t, f.ord.ID).Status)

	require.NoError(t, f.db.Exec(`DROP TRIGGER block_paid`).Error)

	r, raw = webhookRequest(body)
	outcome, err = f.svc.HandleWebhook(ctx, r, raw)
	require.NoError(t, err)
	assert.Equal(t, WebhookProcessed, outcome)

	stored := f.order(t, f.ord.ID)
	assert.Equal(t, models.OrderStatusPaid, stored.Status)
	assert.Equal(t, "CAP1", *stored.GatewayTransactionID)
}

func TestPaymentService_Webhook_GuardWithoutDedupe(t *testing.T) {
	f := newPaymentFixture(t)
	f.svc.Dedupe = nil
	ctx := context.Background()

	for i, want := range []string{WebhookProcessed, WebhookAlreadyPaid} {
		r, raw := webhookRequest(captureEvent("WH-EVT-"+orderKey(uint(i)), f.ord.ID))
		outcome, err := f.svc.HandleWebhook(ctx, r, raw)
		require.NoError(t, err)
		assert.Equal(t, want, outcome)
	}
	assert.Equal(t, []string{"order_created", "order_paid"}, f.events.Types(events.TopicOrders))
}

func TestPaymentService_Webhook_AfterSyncCapture(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()

	_, err := f.svc.CaptureOrder(ctx, "PP-ORDER-1")
	require.NoError(t, err)

	r, raw := webhookRequest(captureEvent("WH-EVT-9", f.ord.ID))
	outcome, err := f.svc.HandleWebhook(ctx, r, raw)
	require.NoError(t, err)
	assert.Equal(t, WebhookAlreadyPaid, outcome)
}

func TestPaymentService_Webhook_RelatedOrderID(t *testing.T) {
	f := newPaymentFixture(t)
	body := `{"id":"WH-EVT-2","event_type":"PAYMENT.CAPTURE.COMPLETED",
	  "resource":{"id":"CAP7","status":"COMPLETED","supplementary_data":{"related_ids":{"order_id":"PP-ORDER-1"}}}}`

	r, raw := webhookRequest(body)
	outcome, err := f.svc.HandleWebhook(context.Background(), r, raw)
	require.NoError(t, err)
	assert.Equal(t, WebhookProcessed, outcome)
	assert.Equal(t, "CAP7", *f.order(t, f.ord.ID).GatewayTransactionID)
}

func TestPaymentService_Webhook_Rejections(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()

	f.gw.verified = false
	r, raw := webhookRequest(captureEvent("WH-EVT-1", f.ord.ID))
	_, err := f.svc.HandleWebhook(ctx, r, raw)
	assert.ErrorIs(t, err, ErrWebhookRejected)
	assert.Equal(t, models.OrderStatusPendingPayment, f.order(t, f.ord.ID).Status)

	f.gw.verified = true
	r, raw = webhookRequest(`{"id":`)
	_, err = f.svc.HandleWebhook(ctx, r, raw)
	assert.ErrorIs(t, err, ErrValidation)

	f.gw.verifyErr = errors.New("timeout")
	r, raw = webhookRequest(captureEvent("WH-EVT-1", f.ord.ID))
	_, err = f.svc.HandleWebhook(ctx, r, raw)
	assert.ErrorIs(t, err, ErrPayment)
}

func TestPaymentService_Webhook_DevelopmentSkipsVerification(t *testing.T) {
	f := newPaymentFixture(t)
	f.svc.SkipWebhookVerification = true
	f.gw.verified = false

	r, raw := webhookRequest(captureEvent("WH-EVT-1", f.ord.ID))
	outcome, err := f.svc.HandleWebhook(context.Background(), r, raw)
	require.NoError(t, err)
	assert.Equal(t, WebhookProcessed, outcome)
	assert.Zero(t, f.gw.verifies)
}

func TestPaymentService_Webhook_IgnoredAndUnmatched(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "order approved", body: `{"id":"WH-A","event_type":"CHECKOUT.ORDER.APPROVED","resource":{"id":"PP-ORDER-1"}}`, want: WebhookIgnored},
		{name: "other event", body: `{"id":"WH-B","event_type":"PAYMENT.CAPTURE.REFUNDED","resource":{}}`, want: WebhookIgnored},
		{name: "no order reference", body: `{"id":"WH-C","event_type":"PAYMENT.CAPTURE.COMPLETED","resource":{"id":"CAP9"}}`, want: WebhookUnmatched},
		{name: "unknown related order", body: `{"id":"WH-D","event_type":"PAYMENT.CAPTURE.COMPLETED","resource":{"id":"CAP9","supplementary_data":{"related_ids":{"order_id":"NOPE"}}}}`, want: WebhookUnmatched},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, raw := webhookRequest(tt.body)
			outcome, err := f.svc.HandleWebhook(ctx, r, raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, outcome)
		})
	}
	assert.Equal(t, models.OrderStatusPendingPayment, f.order(t, f.ord.ID).Status)
}
