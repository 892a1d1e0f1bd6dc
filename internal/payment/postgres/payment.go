package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/smiledesk/clinic-booking/internal"
	appointmentDatamodel "github.com/smiledesk/clinic-booking/internal/core/datamodel/appointment"
	paymentDatamodel "github.com/smiledesk/clinic-booking/internal/core/datamodel/payment"
)

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(ctx context.Context, p *paymentDatamodel.Payment) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *PaymentRepository) GetByID(ctx context.Context, id int64) (*paymentDatamodel.Payment, error) {
	var p paymentDatamodel.Payment
	err := r.db.WithContext(ctx).First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, internal.ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) GetByGatewayPaymentID(ctx context.Context, gatewayPaymentID string) (*paymentDatamodel.Payment, error) {
	var p paymentDatamodel.Payment
	err := r.db.WithContext(ctx).Where("gateway_payment_id = ?", gatewayPaymentID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, internal.ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetLatestCompletedByAppointmentID returns nil without error when the
// appointment has no completed payment. Latest wins when several exist.
func (r *PaymentRepository) GetLatestCompletedByAppointmentID(ctx context.Context, appointmentID int64) (*paymentDatamodel.Payment, error) {
	var p paymentDatamodel.Payment
	err := r.db.WithContext(ctx).
		Where("appointment_id = ? AND status = ?", appointmentID, paymentDatamodel.StatusCompleted).
		Order("completed_at DESC, id DESC").
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) GetByAppointmentID(ctx context.Context, appointmentID int64) ([]*paymentDatamodel.Payment, error) {
	var payments []*paymentDatamodel.Payment
	err := r.db.WithContext(ctx).
		Where("appointment_id = ?", appointmentID).
		Order("created_at DESC").
		Find(&payments).Error
	return payments, err
}

func (r *PaymentRepository) SetGatewayPaymentID(ctx context.Context, id int64, gatewayPaymentID string) error {
	return r.db.WithContext(ctx).Model(&paymentDatamodel.Payment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"gateway_payment_id": gatewayPaymentID,
			"updated_at":         time.Now(),
		}).Error
}

func (r *PaymentRepository) MarkCompleted(ctx context.Context, id int64, transactionID string, completedAt time.Time) error {
	return r.db.WithContext(ctx).Model(&paymentDatamodel.Payment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":                 paymentDatamodel.StatusCompleted,
			"gateway_transaction_id": transactionID,
			"completed_at":           completedAt,
			"updated_at":             time.Now(),
		}).Error
}

func (r *PaymentRepository) MarkFailed(ctx context.Context, id int64, reason string) error {
	return r.db.WithContext(ctx).Model(&paymentDatamodel.Payment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":         paymentDatamodel.StatusFailed,
			"failure_reason": reason,
			"updated_at":     time.Now(),
		}).Error
}

func (r *PaymentRepository) MarkRefunded(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Model(&paymentDatamodel.Payment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     paymentDatamodel.StatusRefunded,
			"updated_at": time.Now(),
		}).Error
}

// ExpireStalePending fails pending payments the patient abandoned at
// the gateway. Returns the number of rows expired.
func (r *PaymentRepository) ExpireStalePending(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&paymentDatamodel.Payment{}).
		Where("status = ? AND created_at < ?", paymentDatamodel.StatusPending, cutoff).
		Updates(map[string]interface{}{
			"status":         paymentDatamodel.StatusFailed,
			"failure_reason": "expired before approval",
			"updated_at":     time.Now(),
		})
	return result.RowsAffected, result.Error
}

// FindDriftedAppointmentIDs lists appointments still unpaid despite a
// completed payment. This is the monitor's sweep query.
func (r *PaymentRepository) FindDriftedAppointmentIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).
		Model(&appointmentDatamodel.Appointment{}).
		Distinct("appointments.id").
		Joins("JOIN payments ON payments.appointment_id = appointments.id").
		Where("appointments.payment_status = ? AND payments.status = ?",
			appointmentDatamodel.PaymentStatusUnpaid, paymentDatamodel.StatusCompleted).
		Order("appointments.id").
		Pluck("appointments.id", &ids).Error
	return ids, err
}
