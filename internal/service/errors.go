package service

import "errors"

var (
	ErrValidation         = errors.New("validation")          // 400
	ErrUnauthorized       = errors.New("unauthorized")        // 401
	ErrForbidden          = errors.New("forbidden")           // 403
	ErrNotFound           = errors.New("not found")           // 404
	ErrProductUnavailable = errors.New("product unavailable") // 404
	ErrInsufficientStock  = errors.New("insufficient stock")  // 400
	ErrConflict           = errors.New("conflict")            // 409
	ErrPayment            = errors.New("payment gateway")     // 500 with detail
	ErrWebhookRejected    = errors.New("webhook rejected")    // 401
)

// PaymentError carries the upstream gateway message for the response body.
type PaymentError struct {
	Op     string
	Detail string
	Err    error
}

func (e *PaymentError) Error() string {
	if e.Detail == "" {
		return e.Op + ": " + ErrPayment.Error()
	}
	return e.Op + ": " + ErrPayment.Error() + ": " + e.Detail
}

func (e *PaymentError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrPayment}
	}
	return []error{ErrPayment, e.Err}
}
