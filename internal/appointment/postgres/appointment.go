package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/smiledesk/clinic-booking/internal"
	appointmentDatamodel "github.com/smiledesk/clinic-booking/internal/core/datamodel/appointment"
)

// AppointmentRepository backs both the appointment service and the
// reconciler's slice of the appointments table.
type AppointmentRepository struct {
	db *gorm.DB
}

func NewAppointmentRepository(db *gorm.DB) *AppointmentRepository {
	return &AppointmentRepository{db: db}
}

func (r *AppointmentRepository) Create(ctx context.Context, a *appointmentDatamodel.Appointment) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *AppointmentRepository) GetByID(ctx context.Context, id int64) (*appointmentDatamodel.Appointment, error) {
	var a appointmentDatamodel.Appointment
	err := r.db.WithContext(ctx).First(&a, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, internal.ErrAppointmentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AppointmentRepository) GetByPatientID(ctx context.Context, patientID int64, limit, offset int) ([]*appointmentDatamodel.Appointment, error) {
	var appointments []*appointmentDatamodel.Appointment
	err := r.db.WithContext(ctx).
		Where("patient_id = ?", patientID).
		Order("starts_at DESC").
		Limit(limit).Offset(offset).
		Find(&appointments).Error
	return appointments, err
}

func (r *AppointmentRepository) GetByDentistID(ctx context.Context, dentistID int64, limit, offset int) ([]*appointmentDatamodel.Appointment, error) {
	var appointments []*appointmentDatamodel.Appointment
	err := r.db.WithContext(ctx).
		Where("dentist_id = ?", dentistID).
		Order("starts_at DESC").
		Limit(limit).Offset(offset).
		Find(&appointments).Error
	return appointments, err
}

func (r *AppointmentRepository) GetAll(ctx context.Context, limit, offset int) ([]*appointmentDatamodel.Appointment, error) {
	var appointments []*appointmentDatamodel.Appointment
	err := r.db.WithContext(ctx).
		Order("starts_at DESC").
		Limit(limit).Offset(offset).
		Find(&appointments).Error
	return appointments, err
}

// HasOverlap reports whether the dentist already has a live booking
// crossing the requested window. Rejected and cancelled slots are free.
func (r *AppointmentRepository) HasOverlap(ctx context.Context, dentistID int64, startsAt, endsAt time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&appointmentDatamodel.Appointment{}).
		Where("dentist_id = ?", dentistID).
		Where("status IN ?", []string{appointmentDatamodel.StatusPending, appointmentDatamodel.StatusApproved}).
		Where("starts_at < ? AND ends_at > ?", endsAt, startsAt).
		Count(&count).Error
	return count > 0, err
}

func (r *AppointmentRepository) TransitionStatus(ctx context.Context, id int64, from, to string, processedAt time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&appointmentDatamodel.Appointment{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{
			"status":       to,
			"processed_at": processedAt,
			"updated_at":   time.Now(),
		})
	return result.RowsAffected, result.Error
}

// SetRejection matches both pending and approved rows: a dentist can
// still reject after approval, including after the patient has paid,
// in which case the service refunds the payment.
func (r *AppointmentRepository) SetRejection(ctx context.Context, id int64, reason string, processedAt time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&appointmentDatamodel.Appointment{}).
		Where("id = ? AND status IN ?", id, []string{appointmentDatamodel.StatusPending, appointmentDatamodel.StatusApproved}).
		Updates(map[string]interface{}{
			"status":              appointmentDatamodel.StatusRejected,
			"cancellation_reason": reason,
			"processed_at":        processedAt,
			"updated_at":          time.Now(),
		})
	return result.RowsAffected, result.Error
}

func (r *AppointmentRepository) SetCancellation(ctx context.Context, id int64, reason string, processedAt time.Time) (int64, error) {
	updates := map[string]interface{}{
		"status":       appointmentDatamodel.StatusCancelled,
		"processed_at": processedAt,
		"updated_at":   time.Now(),
	}
	if reason != "" {
		updates["cancellation_reason"] = reason
	}
	result := r.db.WithContext(ctx).
		Model(&appointmentDatamodel.Appointment{}).
		Where("id = ? AND status IN ?", id, []string{appointmentDatamodel.StatusPending, appointmentDatamodel.StatusApproved}).
		Updates(updates)
	return result.RowsAffected, result.Error
}

func (r *AppointmentRepository) SetCalendarEventID(ctx context.Context, id int64, eventID string) error {
	return r.db.WithContext(ctx).
		Model(&appointmentDatamodel.Appointment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"calendar_event_id": eventID,
			"updated_at":        time.Now(),
		}).Error
}

// MarkPaid is the reconciler's write: flip unpaid to paid and report
// rows affected so the caller can tell a repeat from a repair.
func (r *AppointmentRepository) MarkPaid(ctx context.Context, appointmentID int64) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&appointmentDatamodel.Appointment{}).
		Where("id = ? AND payment_status = ?", appointmentID, appointmentDatamodel.PaymentStatusUnpaid).
		Updates(map[string]interface{}{
			"payment_status": appointmentDatamodel.PaymentStatusPaid,
			"updated_at":     time.Now(),
		})
	return result.RowsAffected, result.Error
}

func (r *AppointmentRepository) MarkRefunded(ctx context.Context, appointmentID int64) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&appointmentDatamodel.Appointment{}).
		Where("id = ? AND payment_status = ?", appointmentID, appointmentDatamodel.PaymentStatusPaid).
		Updates(map[string]interface{}{
			"payment_status": appointmentDatamodel.PaymentStatusRefunded,
			"updated_at":     time.Now(),
		})
	return result.RowsAffected, result.Error
}

// ListDueReminders returns approved appointments starting inside the
// window that have not been reminded yet.
func (r *AppointmentRepository) ListDueReminders(ctx context.Context, from, until time.Time) ([]*appointmentDatamodel.Appointment, error) {
	var appointments []*appointmentDatamodel.Appointment
	err := r.db.WithContext(ctx).
		Where("status = ?", appointmentDatamodel.StatusApproved).
		Where("starts_at >= ? AND starts_at < ?", from, until).
		Where("reminder_sent_at IS NULL").
		Order("starts_at ASC").
		Find(&appointments).Error
	return appointments, err
}

// MarkReminderSent claims the reminder for one appointment. Zero rows
// means another worker already claimed it.
func (r *AppointmentRepository) MarkReminderSent(ctx context.Context, appointmentID int64, at time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&appointmentDatamodel.Appointment{}).
		Where("id = ? AND reminder_sent_at IS NULL", appointmentID).
		Updates(map[string]interface{}{
			"reminder_sent_at": at,
			"updated_at":       time.Now(),
		})
	return result.RowsAffected, result.Error
}

func (r *AppointmentRepository) GetPaymentStatus(ctx context.Context, appointmentID int64) (string, error) {
	var a appointmentDatamodel.Appointment
	err := r.db.WithContext(ctx).Select("payment_status").First(&a, appointmentID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", internal.ErrAppointmentNotFound
	}
	if err != nil {
		return "", err
	}
	return a.PaymentStatus, nil
}
