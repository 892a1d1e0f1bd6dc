package appointment

import (
	"context"
	"time"

	appointmentDatamodel "github.com/smiledesk/clinic-booking/internal/core/datamodel/appointment"
)

// Store is the persistence surface the appointment service needs.
// Conditional transitions report rows affected so callers can tell a
// lost race from a hit.
type Store interface {
	Create(ctx context.Context, a *appointmentDatamodel.Appointment) error
	GetByID(ctx context.Context, id int64) (*appointmentDatamodel.Appointment, error)
	GetByPatientID(ctx context.Context, patientID int64, limit, offset int) ([]*appointmentDatamodel.Appointment, error)
	GetByDentistID(ctx context.Context, dentistID int64, limit, offset int) ([]*appointmentDatamodel.Appointment, error)
	GetAll(ctx context.Context, limit, offset int) ([]*appointmentDatamodel.Appointment, error)
	HasOverlap(ctx context.Context, dentistID int64, startsAt, endsAt time.Time) (bool, error)
	TransitionStatus(ctx context.Context, id int64, from, to string, processedAt time.Time) (rowsAffected int64, err error)
	SetCancellation(ctx context.Context, id int64, reason string, processedAt time.Time) (rowsAffected int64, err error)
	SetRejection(ctx context.Context, id int64, reason string, processedAt time.Time) (rowsAffected int64, err error)
	SetCalendarEventID(ctx context.Context, id int64, eventID string) error
}

// View is the API shape of an appointment.
type View struct {
	ID                 int64      `json:"id"`
	PatientID          int64      `json:"patient_id"`
	DentistID          int64      `json:"dentist_id"`
	StartsAt           time.Time  `json:"starts_at"`
	EndsAt             time.Time  `json:"ends_at"`
	Reason             string     `json:"reason,omitempty"`
	Notes              string     `json:"notes,omitempty"`
	Status             string     `json:"status"`
	PaymentStatus      string     `json:"payment_status"`
	PriceCents         int64      `json:"price_cents"`
	CancellationReason *string    `json:"cancellation_reason,omitempty"`
	ProcessedAt        *time.Time `json:"processed_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func ToView(a *appointmentDatamodel.Appointment) *View {
	return &View{
		ID:                 a.ID,
		PatientID:          a.PatientID,
		DentistID:          a.DentistID,
		StartsAt:           a.StartsAt,
		EndsAt:             a.EndsAt,
		Reason:             a.Reason,
		Notes:              a.Notes,
		Status:             a.Status,
		PaymentStatus:      a.PaymentStatus,
		PriceCents:         a.PriceCents,
		CancellationReason: a.CancellationReason,
		ProcessedAt:        a.ProcessedAt,
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
	}
}

func ToViewSlice(appointments []*appointmentDatamodel.Appointment) []*View {
	views := make([]*View, len(appointments))
	for i, a := range appointments {
		views[i] = ToView(a)
	}
	return views
}
