package appointment

import "time"

// Appointment status values.
const (
	StatusPending   = "pending"
	StatusApproved  = "approved"
	StatusRejected  = "rejected"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
)

// Payment status values tracked on the appointment row. The reconciler
// keeps this in agreement with the payments table.
const (
	PaymentStatusUnpaid   = "unpaid"
	PaymentStatusPaid     = "paid"
	PaymentStatusRefunded = "refunded"
)

type Appointment struct {
	ID                 int64      `gorm:"primaryKey"`
	PatientID          int64      `gorm:"column:patient_id;not null;index"`
	DentistID          int64      `gorm:"column:dentist_id;not null;index"`
	StartsAt           time.Time  `gorm:"column:starts_at;not null"`
	EndsAt             time.Time  `gorm:"column:ends_at;not null"`
	Reason             string     `gorm:"column:reason"`
	Notes              string     `gorm:"column:notes;type:text"`
	Status             string     `gorm:"column:status;default:pending"`
	PaymentStatus      string     `gorm:"column:payment_status;default:unpaid"`
	PriceCents         int64      `gorm:"column:price_cents;not null"`
	CalendarEventID    *string    `gorm:"column:calendar_event_id"`
	CancellationReason *string    `gorm:"column:cancellation_reason"`
	ProcessedAt        *time.Time `gorm:"column:processed_at"`
	ReminderSentAt     *time.Time `gorm:"column:reminder_sent_at"`
	CreatedAt          time.Time  `gorm:"column:created_at;default:now()"`
	UpdatedAt          time.Time  `gorm:"column:updated_at;default:now()"`
}

func (Appointment) TableName() string {
	return "appointments"
}
