package appointment

import (
	"context"
	"log/slog"
	"time"

	"github.com/smiledesk/clinic-booking/internal"
	"github.com/smiledesk/clinic-booking/internal/calendar"
	appointmentDatamodel "github.com/smiledesk/clinic-booking/internal/core/datamodel/appointment"
	"github.com/smiledesk/clinic-booking/internal/core/events"
)

// Refunder returns money for a cancelled or rejected appointment. A
// missing completed payment is a no-op, not an error.
type Refunder interface {
	RefundForAppointment(ctx context.Context, appointmentID int64) error
}

type Service struct {
	store    Store
	calendar *calendar.Client
	refunder Refunder
	eventBus *events.EventBus
	logger   *slog.Logger
}

func NewService(store Store, calendarClient *calendar.Client, refunder Refunder, eventBus *events.EventBus, logger *slog.Logger) *Service {
	return &Service{
		store:    store,
		calendar: calendarClient,
		refunder: refunder,
		eventBus: eventBus,
		logger:   logger,
	}
}

// Book creates a pending, unpaid appointment for the calling patient.
func (s *Service) Book(ctx context.Context, patientID int64, dto BookAppointmentDTO) (*View, error) {
	if err := dto.Validate(); err != nil {
		s.logger.Warn("booking validation failed", "error", err, "patient_id", patientID)
		return nil, err
	}

	overlap, err := s.store.HasOverlap(ctx, dto.DentistID, dto.StartsAt, dto.EndsAt)
	if err != nil {
		s.logger.Error("overlap check failed", "error", err, "dentist_id", dto.DentistID)
		return nil, internal.NewInternalError("failed to check availability", err)
	}
	if overlap {
		return nil, internal.ErrSlotAlreadyBooked
	}

	appt := &appointmentDatamodel.Appointment{
		PatientID:     patientID,
		DentistID:     dto.DentistID,
		StartsAt:      dto.StartsAt,
		EndsAt:        dto.EndsAt,
		Reason:        dto.Reason,
		Notes:         dto.Notes,
		Status:        appointmentDatamodel.StatusPending,
		PaymentStatus: appointmentDatamodel.PaymentStatusUnpaid,
		PriceCents:    dto.PriceCents,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	if err := s.store.Create(ctx, appt); err != nil {
		s.logger.Error("failed to create appointment", "error", err, "patient_id", patientID)
		return nil, internal.NewInternalError("failed to create appointment", err)
	}

	s.logger.Info("appointment booked",
		"appointment_id", appt.ID,
		"patient_id", patientID,
		"dentist_id", dto.DentistID,
		"starts_at", dto.StartsAt)

	return ToView(appt), nil
}

// Approve moves a pending appointment to approved. The calendar insert
// and notification ride the event bus; neither blocks nor fails the
// approval.
func (s *Service) Approve(ctx context.Context, dentistID, appointmentID int64) (*View, error) {
	appt, err := s.store.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if appt.DentistID != dentistID {
		return nil, internal.ErrUnauthorizedAccess
	}

	rows, err := s.store.TransitionStatus(ctx, appointmentID, appointmentDatamodel.StatusPending, appointmentDatamodel.StatusApproved, time.Now())
	if err != nil {
		s.logger.Error("failed to approve appointment", "error", err, "appointment_id", appointmentID)
		return nil, internal.NewInternalError("failed to approve appointment", err)
	}
	if rows == 0 {
		s.logger.Warn("approve lost the race or wrong status",
			"appointment_id", appointmentID,
			"current_status", appt.Status)
		return nil, internal.ErrInvalidAppointmentStatus
	}

	s.logger.Info("appointment approved", "appointment_id", appointmentID, "dentist_id", dentistID)

	s.scheduleCalendarEvent(appt)
	s.eventBus.Publish(ctx, events.NewAppointmentApprovedEvent(appointmentID, appt.PatientID, appt.DentistID, appt.StartsAt, appt.EndsAt))

	return s.viewByID(ctx, appointmentID)
}

// Reject moves a pending or approved appointment to rejected and
// refunds any completed payment.
func (s *Service) Reject(ctx context.Context, dentistID, appointmentID int64, dto RejectAppointmentDTO) (*View, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	appt, err := s.store.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if appt.DentistID != dentistID {
		return nil, internal.ErrUnauthorizedAccess
	}

	rows, err := s.store.SetRejection(ctx, appointmentID, dto.Reason, time.Now())
	if err != nil {
		s.logger.Error("failed to reject appointment", "error", err, "appointment_id", appointmentID)
		return nil, internal.NewInternalError("failed to reject appointment", err)
	}
	if rows == 0 {
		return nil, internal.ErrInvalidAppointmentStatus
	}

	s.logger.Info("appointment rejected",
		"appointment_id", appointmentID,
		"dentist_id", dentistID,
		"reason", dto.Reason)

	refunded := appt.PaymentStatus == appointmentDatamodel.PaymentStatusPaid
	if err := s.refunder.RefundForAppointment(ctx, appointmentID); err != nil {
		// rejection stands; the refund can be replayed by an admin
		s.logger.Error("refund after rejection failed", "error", err, "appointment_id", appointmentID)
		refunded = false
	}

	s.eventBus.Publish(ctx, events.NewAppointmentRejectedEvent(appointmentID, appt.PatientID, dto.Reason, refunded))

	return s.viewByID(ctx, appointmentID)
}

// Cancel is available to the patient who booked and the dentist who
// owns the slot, while the appointment is still pending or approved.
func (s *Service) Cancel(ctx context.Context, userID, appointmentID int64, dto CancelAppointmentDTO) (*View, error) {
	appt, err := s.store.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if appt.PatientID != userID && appt.DentistID != userID {
		return nil, internal.ErrUnauthorizedAccess
	}

	rows, err := s.store.SetCancellation(ctx, appointmentID, dto.Reason, time.Now())
	if err != nil {
		s.logger.Error("failed to cancel appointment", "error", err, "appointment_id", appointmentID)
		return nil, internal.NewInternalError("failed to cancel appointment", err)
	}
	if rows == 0 {
		return nil, internal.ErrInvalidAppointmentStatus
	}

	s.logger.Info("appointment cancelled", "appointment_id", appointmentID, "user_id", userID)

	if appt.CalendarEventID != nil && *appt.CalendarEventID != "" {
		if err := s.calendar.DeleteEvent(ctx, *appt.CalendarEventID); err != nil {
			s.logger.Warn("calendar delete failed", "error", err, "appointment_id", appointmentID)
		}
	}

	if appt.PaymentStatus == appointmentDatamodel.PaymentStatusPaid {
		if err := s.refunder.RefundForAppointment(ctx, appointmentID); err != nil {
			s.logger.Error("refund after cancellation failed", "error", err, "appointment_id", appointmentID)
		}
	}

	s.eventBus.Publish(ctx, events.NewAppointmentCancelledEvent(appointmentID, appt.PatientID, userID, dto.Reason))

	return s.viewByID(ctx, appointmentID)
}

// Complete marks a paid, approved appointment as done.
func (s *Service) Complete(ctx context.Context, dentistID, appointmentID int64) (*View, error) {
	appt, err := s.store.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if appt.DentistID != dentistID {
		return nil, internal.ErrUnauthorizedAccess
	}
	if appt.PaymentStatus != appointmentDatamodel.PaymentStatusPaid {
		s.logger.Warn("cannot complete unpaid appointment",
			"appointment_id", appointmentID,
			"payment_status", appt.PaymentStatus)
		return nil, internal.ErrInvalidAppointmentStatus
	}

	rows, err := s.store.TransitionStatus(ctx, appointmentID, appointmentDatamodel.StatusApproved, appointmentDatamodel.StatusCompleted, time.Now())
	if err != nil {
		s.logger.Error("failed to complete appointment", "error", err, "appointment_id", appointmentID)
		return nil, internal.NewInternalError("failed to complete appointment", err)
	}
	if rows == 0 {
		return nil, internal.ErrInvalidAppointmentStatus
	}

	s.logger.Info("appointment completed", "appointment_id", appointmentID, "dentist_id", dentistID)

	return s.viewByID(ctx, appointmentID)
}

// GetByID enforces the access rule: patients see their own bookings,
// dentists their own schedule, admins everything.
func (s *Service) GetByID(ctx context.Context, userID, appointmentID int64, isAdmin bool) (*View, error) {
	appt, err := s.store.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if !isAdmin && appt.PatientID != userID && appt.DentistID != userID {
		s.logger.Warn("unauthorized appointment access",
			"appointment_id", appointmentID,
			"user_id", userID)
		return nil, internal.ErrUnauthorizedAccess
	}
	return ToView(appt), nil
}

func (s *Service) ListForPatient(ctx context.Context, patientID int64, limit, offset int) ([]*View, error) {
	appointments, err := s.store.GetByPatientID(ctx, patientID, limit, offset)
	if err != nil {
		return nil, err
	}
	return ToViewSlice(appointments), nil
}

func (s *Service) ListForDentist(ctx context.Context, dentistID int64, limit, offset int) ([]*View, error) {
	appointments, err := s.store.GetByDentistID(ctx, dentistID, limit, offset)
	if err != nil {
		return nil, err
	}
	return ToViewSlice(appointments), nil
}

func (s *Service) ListAll(ctx context.Context, limit, offset int) ([]*View, error) {
	appointments, err := s.store.GetAll(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	return ToViewSlice(appointments), nil
}

// scheduleCalendarEvent inserts the slot into the clinic calendar and
// stores the event id for later deletion. Runs in the background.
func (s *Service) scheduleCalendarEvent(appt *appointmentDatamodel.Appointment) {
	if !s.calendar.Enabled() {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		eventID, err := s.calendar.InsertEvent(ctx, &calendar.Event{
			Summary:     "Dental appointment",
			Description: appt.Reason,
			StartsAt:    appt.StartsAt,
			EndsAt:      appt.EndsAt,
		})
		if err != nil {
			s.logger.Warn("calendar insert failed", "error", err, "appointment_id", appt.ID)
			return
		}
		if eventID == "" {
			return
		}
		if err := s.store.SetCalendarEventID(ctx, appt.ID, eventID); err != nil {
			s.logger.Warn("failed to store calendar event id", "error", err, "appointment_id", appt.ID)
		}
	}()
}

func (s *Service) viewByID(ctx context.Context, appointmentID int64) (*View, error) {
	appt, err := s.store.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	return ToView(appt), nil
}
