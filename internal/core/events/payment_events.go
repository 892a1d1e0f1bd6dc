package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypePaymentCompleted = "payment.completed"
	EventTypePaymentRefunded  = "payment.refunded"
)

// PaymentCompletedEvent is published once the gateway has executed a
// payment and the reconciler has verified the appointment is marked paid.
// The status monitor also subscribes to it as its change feed.
type PaymentCompletedEvent struct {
	BaseEvent
	PaymentID     int64  `json:"payment_id"`
	AppointmentID int64  `json:"appointment_id"`
	AmountCents   int64  `json:"amount_cents"`
	TransactionID string `json:"transaction_id"`
}

func NewPaymentCompletedEvent(paymentID, appointmentID, amountCents int64, transactionID string) *PaymentCompletedEvent {
	return &PaymentCompletedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePaymentCompleted,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"payment_id":     paymentID,
				"appointment_id": appointmentID,
				"amount_cents":   amountCents,
				"transaction_id": transactionID,
			},
		},
		PaymentID:     paymentID,
		AppointmentID: appointmentID,
		AmountCents:   amountCents,
		TransactionID: transactionID,
	}
}

type PaymentRefundedEvent struct {
	BaseEvent
	PaymentID     int64 `json:"payment_id"`
	AppointmentID int64 `json:"appointment_id"`
	AmountCents   int64 `json:"amount_cents"`
}

func NewPaymentRefundedEvent(paymentID, appointmentID, amountCents int64) *PaymentRefundedEvent {
	return &PaymentRefundedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePaymentRefunded,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"payment_id":     paymentID,
				"appointment_id": appointmentID,
				"amount_cents":   amountCents,
			},
		},
		PaymentID:     paymentID,
		AppointmentID: appointmentID,
		AmountCents:   amountCents,
	}
}
