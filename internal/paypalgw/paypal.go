// Package paypalgw wraps the PayPal REST SDK behind the small surface the
// payment service needs.
package paypalgw

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/plutov/paypal/v4"
	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/game_store/pkg/config"
)

const (
	StatusCompleted    = "COMPLETED"
	verificationPassed = "SUCCESS"
)

type OrderRequest struct {
	ReferenceID string
	CustomID    string
	Amount      decimal.Decimal
	Currency    string
	ReturnURL   string
	CancelURL   string
}

type CreatedOrder struct {
	ID         string
	Status     string
	ApproveURL string
}

type Capture struct {
	OrderID   string
	Status    string
	CaptureID string
}

type Gateway interface {
	CreateOrder(ctx context.Context, in OrderRequest) (*CreatedOrder, error)
	CaptureOrder(ctx context.Context, gatewayOrderID string) (*Capture, error)
	VerifyWebhook(ctx context.Context, r *http.Request, body []byte) (bool, error)
}

type Client struct {
	pp        *paypal.Client
	webhookID string
	brandName string
}

func New(cfg config.PayPalConfig) (*Client, error) {
	return NewWithBaseURL(cfg, baseURL(cfg.Mode))
}

func NewWithBaseURL(cfg config.PayPalConfig, apiBase string) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("paypal: PAYPAL_CLIENT_ID and PAYPAL_CLIENT_SECRET are required")
	}
	pp, err := paypal.NewClient(cfg.ClientID, cfg.ClientSecret, apiBase)
	if err != nil {
		return nil, fmt.Errorf("paypal: new client: %w", err)
	}
	return &Client{pp: pp, webhookID: cfg.WebhookID, brandName: cfg.BrandName}, nil
}

func baseURL(mode string) string {
	if strings.EqualFold(mode, "live") {
		return paypal.APIBaseLive
	}
	return paypal.APIBaseSandBox
}

func (c *Client) CreateOrder(ctx context.Context, in OrderRequest) (*CreatedOrder, error) {
	units := []paypal.PurchaseUnitRequest{{
		ReferenceID: in.ReferenceID,
		CustomID:    in.CustomID,
		Amount: &paypal.PurchaseUnitAmount{
			Currency: in.Currency,
			Value:    in.Amount.StringFixed(2),
		},
	}}
	appCtx := &paypal.ApplicationContext{
		BrandName: c.brandName,
		ReturnURL: in.ReturnURL,
		CancelURL: in.CancelURL,
	}

	order, err := c.pp.CreateOrder(ctx, paypal.OrderIntentCapture, units, nil, appCtx)
	if err != nil {
		return nil, fmt.Errorf("paypal: create order: %w", err)
	}

	out := &CreatedOrder{ID: order.ID, Status: order.Status}
	for _, l := range order.Links {
		if l.Rel == "approve" || l.Rel == "payer-action" {
			out.ApproveURL = l.Href
			break
		}
	}
	return out, nil
}

func (c *Client) CaptureOrder(ctx context.Context, gatewayOrderID string) (*Capture, error) {
	res, err := c.pp.CaptureOrder(ctx, gatewayOrderID, paypal.CaptureOrderRequest{})
	if err != nil {
		return nil, fmt.Errorf("paypal: capture order %s: %w", gatewayOrderID, err)
	}

	out := &Capture{OrderID: res.ID, Status: res.Status}
	for _, pu := range res.PurchaseUnits {
		if pu.Payments != nil && len(pu.Payments.Captures) > 0 {
			out.CaptureID = pu.Payments.Captures[0].ID
			break
		}
	}
	return out, nil
}

// VerifyWebhook asks PayPal to check the transmission signature headers of a
// webhook delivery against the raw body.
func (c *Client) VerifyWebhook(ctx context.Context, r *http.Request, body []byte) (bool, error) {
	if c.webhookID == "" {
		return false, errors.New("paypal: PAYPAL_WEBHOOK_ID is not configured")
	}
	req := r.Clone(ctx)
	req.Body = io.NopCloser(bytes.NewReader(body))

	res, err := c.pp.VerifyWebhookSignature(ctx, req, c.webhookID)
	if err != nil {
		return false, fmt.Errorf("paypal: verify webhook: %w", err)
	}
	return res.VerificationStatus == verificationPassed, nil
}

// Detail extracts the upstream message of a PayPal API error.
func Detail(err error) string {
	var perr *paypal.ErrorResponse
	if errors.As(err, &perr) {
		if perr.Name != "" && perr.Message != "" {
			return perr.Name + ": " + perr.Message
		}
		if perr.Message != "" {
			return perr.Message
		}
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
