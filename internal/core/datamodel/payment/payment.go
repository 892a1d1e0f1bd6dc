package payment

import "time"

const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusRefunded  = "refunded"
)

type Payment struct {
	ID                   int64      `gorm:"primaryKey"`
	AppointmentID        int64      `gorm:"column:appointment_id;not null;index"`
	AmountCents          int64      `gorm:"column:amount_cents;not null"`
	Currency             string     `gorm:"column:currency;default:USD"`
	Status               string     `gorm:"column:status;default:pending"`
	GatewayPaymentID     string     `gorm:"column:gateway_payment_id"`
	GatewayTransactionID string     `gorm:"column:gateway_transaction_id"`
	FailureReason        *string    `gorm:"column:failure_reason"`
	CompletedAt          *time.Time `gorm:"column:completed_at"`
	CreatedAt            time.Time  `gorm:"column:created_at;default:now()"`
	UpdatedAt            time.Time  `gorm:"column:updated_at;default:now()"`
}

func (Payment) TableName() string {
	return "payments"
}

func (p *Payment) IsCompleted() bool {
	return p.Status == StatusCompleted
}
