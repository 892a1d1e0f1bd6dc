package paymentgateway

import "errors"

type PaymentState string

const (
	PaymentStateCreated  PaymentState = "created"
	PaymentStateApproved PaymentState = "approved"
	PaymentStateFailed   PaymentState = "failed"
)

// CreatePaymentRequest describes a charge to be created at the gateway.
// Amounts are in cents; the gateway wire format wants decimal strings.
type CreatePaymentRequest struct {
	AmountCents int64
	Currency    string
	Description string
	InvoiceID   string
}

func (r *CreatePaymentRequest) Validate() error {
	if r.AmountCents <= 0 {
		return errors.New("amount must be greater than 0")
	}
	if r.Currency == "" {
		return errors.New("currency is required")
	}
	if r.InvoiceID == "" {
		return errors.New("invoice_id is required")
	}
	return nil
}

// CreatePaymentResponse carries the gateway payment id and the URL the
// patient must visit to approve the charge.
type CreatePaymentResponse struct {
	PaymentID   string
	ApprovalURL string
	State       PaymentState
}

// ExecutePaymentResponse is returned once the payer has approved and the
// gateway has captured the funds. TransactionID identifies the sale and
// is what refunds reference.
type ExecutePaymentResponse struct {
	PaymentID     string
	TransactionID string
	State         PaymentState
}

type RefundResponse struct {
	RefundID string
	State    string
}
