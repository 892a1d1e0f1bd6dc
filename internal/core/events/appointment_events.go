package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeAppointmentApproved  = "appointment.approved"
	EventTypeAppointmentRejected  = "appointment.rejected"
	EventTypeAppointmentCancelled = "appointment.cancelled"
)

type AppointmentApprovedEvent struct {
	BaseEvent
	AppointmentID int64     `json:"appointment_id"`
	PatientID     int64     `json:"patient_id"`
	DentistID     int64     `json:"dentist_id"`
	StartsAt      time.Time `json:"starts_at"`
	EndsAt        time.Time `json:"ends_at"`
}

func NewAppointmentApprovedEvent(appointmentID, patientID, dentistID int64, startsAt, endsAt time.Time) *AppointmentApprovedEvent {
	return &AppointmentApprovedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeAppointmentApproved,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"appointment_id": appointmentID,
				"patient_id":     patientID,
				"dentist_id":     dentistID,
				"starts_at":      startsAt,
				"ends_at":        endsAt,
			},
		},
		AppointmentID: appointmentID,
		PatientID:     patientID,
		DentistID:     dentistID,
		StartsAt:      startsAt,
		EndsAt:        endsAt,
	}
}

type AppointmentRejectedEvent struct {
	BaseEvent
	AppointmentID int64  `json:"appointment_id"`
	PatientID     int64  `json:"patient_id"`
	Reason        string `json:"reason"`
	Refunded      bool   `json:"refunded"`
}

func NewAppointmentRejectedEvent(appointmentID, patientID int64, reason string, refunded bool) *AppointmentRejectedEvent {
	return &AppointmentRejectedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeAppointmentRejected,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"appointment_id": appointmentID,
				"patient_id":     patientID,
				"reason":         reason,
				"refunded":       refunded,
			},
		},
		AppointmentID: appointmentID,
		PatientID:     patientID,
		Reason:        reason,
		Refunded:      refunded,
	}
}

type AppointmentCancelledEvent struct {
	BaseEvent
	AppointmentID int64  `json:"appointment_id"`
	PatientID     int64  `json:"patient_id"`
	CancelledBy   int64  `json:"cancelled_by"`
	Reason        string `json:"reason"`
}

func NewAppointmentCancelledEvent(appointmentID, patientID, cancelledBy int64, reason string) *AppointmentCancelledEvent {
	return &AppointmentCancelledEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeAppointmentCancelled,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"appointment_id": appointmentID,
				"patient_id":     patientID,
				"cancelled_by":   cancelledBy,
				"reason":         reason,
			},
		},
		AppointmentID: appointmentID,
		PatientID:     patientID,
		CancelledBy:   cancelledBy,
		Reason:        reason,
	}
}
