package notification

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Contact is everything needed to address mail about one appointment.
type Contact struct {
	AppointmentID int64
	PatientEmail  string
	PatientName   string
	DentistName   string
	StartsAt      time.Time
	EndsAt        time.Time
}

type ContactStore interface {
	GetAppointmentContact(ctx context.Context, appointmentID int64) (*Contact, error)
}

// Service renders and dispatches clinic email. Errors are returned so the
// caller can log them, but callers never treat a failed send as a failed
// operation.
type Service struct {
	mailer   Mailer
	contacts ContactStore
	logger   *slog.Logger
}

func NewService(mailer Mailer, contacts ContactStore, logger *slog.Logger) *Service {
	return &Service{
		mailer:   mailer,
		contacts: contacts,
		logger:   logger,
	}
}

func (s *Service) NotifyPaymentConfirmed(ctx context.Context, appointmentID, amountCents int64) error {
	contact, err := s.contacts.GetAppointmentContact(ctx, appointmentID)
	if err != nil {
		return fmt.Errorf("failed to look up contact for appointment %d: %w", appointmentID, err)
	}

	subject := "Payment received - your appointment is confirmed"
	amount := fmt.Sprintf("$%d.%02d", amountCents/100, amountCents%100)
	text := fmt.Sprintf("Hi %s,\n\nWe received your payment of %s for your appointment with %s on %s.\n\nSee you soon!",
		contact.PatientName, amount, contact.DentistName, contact.StartsAt.Format("Monday, Jan 2 at 3:04 PM"))
	html := fmt.Sprintf(`<html><body style="font-family: sans-serif;">
<h2>Payment received</h2>
<p>Hi %s,</p>
<p>We received your payment of <strong>%s</strong> for your appointment with %s on <strong>%s</strong>.</p>
<p>See you soon!</p>
</body></html>`,
		contact.PatientName, amount, contact.DentistName, contact.StartsAt.Format("Monday, Jan 2 at 3:04 PM"))

	return s.mailer.Send(ctx, contact.PatientEmail, contact.PatientName, subject, html, text)
}

func (s *Service) NotifyAppointmentApproved(ctx context.Context, appointmentID int64) error {
	contact, err := s.contacts.GetAppointmentContact(ctx, appointmentID)
	if err != nil {
		return fmt.Errorf("failed to look up contact for appointment %d: %w", appointmentID, err)
	}

	subject := "Your appointment has been approved"
	when := contact.StartsAt.Format("Monday, Jan 2 at 3:04 PM")
	text := fmt.Sprintf("Hi %s,\n\n%s approved your appointment on %s. Please complete payment to confirm your slot.",
		contact.PatientName, contact.DentistName, when)
	html := fmt.Sprintf(`<html><body style="font-family: sans-serif;">
<h2>Appointment approved</h2>
<p>Hi %s,</p>
<p>%s approved your appointment on <strong>%s</strong>.</p>
<p>Please complete payment to confirm your slot.</p>
</body></html>`,
		contact.PatientName, contact.DentistName, when)

	return s.mailer.Send(ctx, contact.PatientEmail, contact.PatientName, subject, html, text)
}

func (s *Service) NotifyAppointmentRejected(ctx context.Context, appointmentID int64, reason string, refunded bool) error {
	contact, err := s.contacts.GetAppointmentContact(ctx, appointmentID)
	if err != nil {
		return fmt.Errorf("failed to look up contact for appointment %d: %w", appointmentID, err)
	}

	subject := "Your appointment could not be confirmed"
	refundNote := ""
	if refunded {
		refundNote = " Your payment has been refunded."
	}
	text := fmt.Sprintf("Hi %s,\n\nUnfortunately your appointment on %s was declined. Reason: %s.%s",
		contact.PatientName, contact.StartsAt.Format("Monday, Jan 2 at 3:04 PM"), reason, refundNote)
	html := fmt.Sprintf(`<html><body style="font-family: sans-serif;">
<h2>Appointment declined</h2>
<p>Hi %s,</p>
<p>Unfortunately your appointment on <strong>%s</strong> was declined.</p>
<p>Reason: %s.%s</p>
</body></html>`,
		contact.PatientName, contact.StartsAt.Format("Monday, Jan 2 at 3:04 PM"), reason, refundNote)

	return s.mailer.Send(ctx, contact.PatientEmail, contact.PatientName, subject, html, text)
}

func (s *Service) NotifyAppointmentReminder(ctx context.Context, appointmentID int64) error {
	contact, err := s.contacts.GetAppointmentContact(ctx, appointmentID)
	if err != nil {
		return fmt.Errorf("failed to look up contact for appointment %d: %w", appointmentID, err)
	}

	subject := "Reminder: your dental appointment is tomorrow"
	when := contact.StartsAt.Format("Monday, Jan 2 at 3:04 PM")
	text := fmt.Sprintf("Hi %s,\n\nThis is a reminder of your appointment with %s on %s.",
		contact.PatientName, contact.DentistName, when)
	html := fmt.Sprintf(`<html><body style="font-family: sans-serif;">
<h2>Appointment reminder</h2>
<p>Hi %s,</p>
<p>This is a reminder of your appointment with %s on <strong>%s</strong>.</p>
</body></html>`,
		contact.PatientName, contact.DentistName, when)

	return s.mailer.Send(ctx, contact.PatientEmail, contact.PatientName, subject, html, text)
}
