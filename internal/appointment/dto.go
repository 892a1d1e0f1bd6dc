package appointment

import (
	"time"

	"github.com/smiledesk/clinic-booking/internal"
	"github.com/smiledesk/clinic-booking/internal/core/common/validation"
)

// BookAppointmentDTO is the request payload for booking an appointment.
type BookAppointmentDTO struct {
	DentistID  int64     `json:"dentist_id"`
	StartsAt   time.Time `json:"starts_at"`
	EndsAt     time.Time `json:"ends_at"`
	Reason     string    `json:"reason"`
	Notes      string    `json:"notes,omitempty"`
	PriceCents int64     `json:"price_cents"`
}

func (dto BookAppointmentDTO) Validate() error {
	v := validation.NewValidator()
	v.Field("dentist_id", dto.DentistID).Required()
	v.Field("reason", dto.Reason).Required().MaxLength(500)
	if err := v.Validate(); err != nil {
		return err
	}
	if err := validation.ValidateAppointmentWindow(dto.StartsAt, dto.EndsAt); err != nil {
		return err
	}
	if err := validation.ValidatePaymentAmount(dto.PriceCents); err != nil {
		return err
	}
	return nil
}

// RejectAppointmentDTO carries the dentist's reason for turning a
// booking down.
type RejectAppointmentDTO struct {
	Reason string `json:"reason"`
}

func (dto RejectAppointmentDTO) Validate() error {
	if dto.Reason == "" {
		return internal.NewValidationFieldError("reason", "reason is required when rejecting an appointment", internal.ErrCodeValidationFailed)
	}
	return nil
}

// CancelAppointmentDTO carries an optional cancellation reason.
type CancelAppointmentDTO struct {
	Reason string `json:"reason,omitempty"`
}
