package payment

import (
	"context"
	"time"

	paymentDatamodel "github.com/smiledesk/clinic-booking/internal/core/datamodel/payment"
)

// PaymentStore is the persistence surface the payment service and the
// reconciler need. Implementations must return the number of rows a
// conditional update touched so callers can tell a no-op from a hit.
type PaymentStore interface {
	Create(ctx context.Context, p *paymentDatamodel.Payment) error
	GetByID(ctx context.Context, id int64) (*paymentDatamodel.Payment, error)
	GetByGatewayPaymentID(ctx context.Context, gatewayPaymentID string) (*paymentDatamodel.Payment, error)
	GetLatestCompletedByAppointmentID(ctx context.Context, appointmentID int64) (*paymentDatamodel.Payment, error)
	GetByAppointmentID(ctx context.Context, appointmentID int64) ([]*paymentDatamodel.Payment, error)
	SetGatewayPaymentID(ctx context.Context, id int64, gatewayPaymentID string) error
	MarkCompleted(ctx context.Context, id int64, transactionID string, completedAt time.Time) error
	MarkFailed(ctx context.Context, id int64, reason string) error
	MarkRefunded(ctx context.Context, id int64) error
	FindDriftedAppointmentIDs(ctx context.Context) ([]int64, error)
}

// AppointmentPaymentStore is the slice of the appointments table the
// reconciler touches: flipping payment_status and reading it back.
type AppointmentPaymentStore interface {
	MarkPaid(ctx context.Context, appointmentID int64) (rowsAffected int64, err error)
	MarkRefunded(ctx context.Context, appointmentID int64) (rowsAffected int64, err error)
	GetPaymentStatus(ctx context.Context, appointmentID int64) (string, error)
}

// SyncResult reports one reconciliation attempt. Success is decided by
// the verification read alone: Success=false with PaymentUpdated=true
// means the gateway has the money and a later sweep will finish the job.
// PaymentUpdated and AppointmentUpdated record actual writes, so a
// manual sync of an already-consistent pair reports Success=true with
// both false.
type SyncResult struct {
	Success            bool   `json:"success"`
	PaymentUpdated     bool   `json:"payment_updated"`
	AppointmentUpdated bool   `json:"appointment_updated"`
	Verified           bool   `json:"verified"`
	Message            string `json:"message"`
}

// View is the API shape of a payment record.
type View struct {
	ID                   int64      `json:"id"`
	AppointmentID        int64      `json:"appointment_id"`
	AmountCents          int64      `json:"amount_cents"`
	Currency             string     `json:"currency"`
	Status               string     `json:"status"`
	GatewayPaymentID     string     `json:"gateway_payment_id,omitempty"`
	GatewayTransactionID string     `json:"gateway_transaction_id,omitempty"`
	CompletedAt          *time.Time `json:"completed_at,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
}

func ToView(p *paymentDatamodel.Payment) *View {
	return &View{
		ID:                   p.ID,
		AppointmentID:        p.AppointmentID,
		AmountCents:          p.AmountCents,
		Currency:             p.Currency,
		Status:               p.Status,
		GatewayPaymentID:     p.GatewayPaymentID,
		GatewayTransactionID: p.GatewayTransactionID,
		CompletedAt:          p.CompletedAt,
		CreatedAt:            p.CreatedAt,
	}
}
