package payment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/smiledesk/clinic-booking/internal/core/datamodel/appointment"
	"github.com/smiledesk/clinic-booking/internal/core/events"
)

// ReconcilerConfig bounds the appointment-update retry loop.
type ReconcilerConfig struct {
	MaxAttempts int
	BackoffBase time.Duration
}

// Reconciler drives the payments and appointments tables toward
// agreement after a gateway execution: payments.status=completed and
// appointments.payment_status=paid. The two writes are not transactional,
// so drift between them is expected; every repair is an idempotent
// "set to paid" and re-read, which is why concurrent repairs of the same
// appointment converge without locking.
type Reconciler struct {
	payments     PaymentStore
	appointments AppointmentPaymentStore
	eventBus     *events.EventBus
	maxAttempts  int
	backoffBase  time.Duration
	logger       *slog.Logger
}

func NewReconciler(payments PaymentStore, appointments AppointmentPaymentStore, eventBus *events.EventBus, config ReconcilerConfig, logger *slog.Logger) *Reconciler {
	maxAttempts := config.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	backoffBase := config.BackoffBase
	if backoffBase <= 0 {
		backoffBase = time.Second
	}

	return &Reconciler{
		payments:     payments,
		appointments: appointments,
		eventBus:     eventBus,
		maxAttempts:  maxAttempts,
		backoffBase:  backoffBase,
		logger:       logger,
	}
}

// SyncPaymentStatus is called right after the gateway confirms execution.
// The payment row is marked completed first; failing that is fatal for
// this call since verification could never succeed. The appointment
// update and verification follow; their failure yields Success=false but
// no error, because the money has already moved and a later sweep or
// manual sync can finish the repair.
func (r *Reconciler) SyncPaymentStatus(ctx context.Context, paymentID, appointmentID int64, transactionID string) (*SyncResult, error) {
	if paymentID == 0 || appointmentID == 0 {
		return nil, fmt.Errorf("sync requires payment id and appointment id, got payment=%d appointment=%d", paymentID, appointmentID)
	}

	r.logger.Info("syncing payment status",
		"payment_id", paymentID,
		"appointment_id", appointmentID,
		"transaction_id", transactionID)

	if err := r.payments.MarkCompleted(ctx, paymentID, transactionID, time.Now().UTC()); err != nil {
		r.logger.Error("failed to mark payment completed",
			"error", err,
			"payment_id", paymentID,
			"appointment_id", appointmentID)
		return nil, fmt.Errorf("failed to mark payment %d completed: %w", paymentID, err)
	}

	result := &SyncResult{PaymentUpdated: true}

	if _, err := r.markPaidWithRetry(ctx, appointmentID); err != nil {
		r.logger.Error("appointment update exhausted retries",
			"error", err,
			"appointment_id", appointmentID)
		result.Message = fmt.Sprintf("payment completed but appointment update failed: %v", err)
	} else {
		result.AppointmentUpdated = true
	}

	r.verify(ctx, appointmentID, result)

	if result.Success {
		payment, err := r.payments.GetByID(ctx, paymentID)
		if err != nil {
			r.logger.Warn("synced but could not reload payment for event", "error", err, "payment_id", paymentID)
		} else {
			r.eventBus.Publish(ctx, events.NewPaymentCompletedEvent(payment.ID, payment.AppointmentID, payment.AmountCents, transactionID))
		}
	}

	return result, nil
}

// ManualSync repairs one appointment from its latest completed payment.
// It never touches the payment row; with no completed payment it is an
// explicit no-op, not an error. When the repair actually flips the
// appointment to paid, the completed event is published so that
// notification dispatch happens for sweep-repaired drift too; an
// idempotent re-sync of an already-paid row publishes nothing.
func (r *Reconciler) ManualSync(ctx context.Context, appointmentID int64) (*SyncResult, error) {
	if appointmentID == 0 {
		return nil, fmt.Errorf("sync requires an appointment id")
	}

	completed, err := r.payments.GetLatestCompletedByAppointmentID(ctx, appointmentID)
	if err != nil {
		r.logger.Error("failed to look up completed payment", "error", err, "appointment_id", appointmentID)
		return nil, fmt.Errorf("failed to look up completed payment for appointment %d: %w", appointmentID, err)
	}
	if completed == nil {
		r.logger.Info("manual sync: nothing to do", "appointment_id", appointmentID)
		return &SyncResult{
			Success: false,
			Message: "No completed payment found for this appointment",
		}, nil
	}

	r.logger.Info("manual sync",
		"appointment_id", appointmentID,
		"payment_id", completed.ID,
		"completed_at", completed.CompletedAt)

	result := &SyncResult{}

	repaired, err := r.markPaidWithRetry(ctx, appointmentID)
	if err != nil {
		r.logger.Error("manual sync: appointment update exhausted retries",
			"error", err,
			"appointment_id", appointmentID)
		result.Message = fmt.Sprintf("appointment update failed: %v", err)
	} else {
		result.AppointmentUpdated = repaired
	}

	r.verify(ctx, appointmentID, result)

	if result.Success && repaired {
		r.eventBus.Publish(ctx, events.NewPaymentCompletedEvent(completed.ID, completed.AppointmentID, completed.AmountCents, completed.GatewayTransactionID))
	}

	return result, nil
}

// markPaidWithRetry attempts the conditional payment_status update up to
// maxAttempts times with linearly increasing backoff. Zero rows affected
// counts as success when the row already reads paid; otherwise it is
// treated like a transient failure and retried. The returned bool is
// true only when this call actually changed the row, so callers can
// tell a repair from an idempotent repeat.
func (r *Reconciler) markPaidWithRetry(ctx context.Context, appointmentID int64) (bool, error) {
	var lastErr error

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		rows, err := r.appointments.MarkPaid(ctx, appointmentID)
		if err == nil && rows > 0 {
			return true, nil
		}

		if err == nil {
			// no row changed; already paid is fine, missing row is not
			status, statusErr := r.appointments.GetPaymentStatus(ctx, appointmentID)
			if statusErr == nil && status == appointment.PaymentStatusPaid {
				return false, nil
			}
			err = fmt.Errorf("update affected no rows (current status %q)", status)
		}

		lastErr = err
		r.logger.Warn("appointment update attempt failed",
			"error", err,
			"appointment_id", appointmentID,
			"attempt", attempt,
			"max_attempts", r.maxAttempts)

		if attempt < r.maxAttempts {
			select {
			case <-time.After(time.Duration(attempt) * r.backoffBase):
			case <-ctx.Done():
				return false, ctx.Err()
			}
		}
	}

	return false, fmt.Errorf("failed to mark appointment %d paid after %d attempts: %w", appointmentID, r.maxAttempts, lastErr)
}

// verify re-reads the appointment; this read is the authoritative success
// signal for a sync, regardless of what the update path reported.
func (r *Reconciler) verify(ctx context.Context, appointmentID int64, result *SyncResult) {
	status, err := r.appointments.GetPaymentStatus(ctx, appointmentID)
	if err != nil {
		r.logger.Error("verification read failed", "error", err, "appointment_id", appointmentID)
		if result.Message == "" {
			result.Message = fmt.Sprintf("verification failed: %v", err)
		}
		return
	}

	result.Verified = true
	result.Success = status == appointment.PaymentStatusPaid

	if result.Success {
		if result.Message == "" {
			result.Message = "payment and appointment are in sync"
		}
		r.logger.Info("sync verified", "appointment_id", appointmentID)
	} else {
		if result.Message == "" {
			result.Message = fmt.Sprintf("appointment still reads %q after update", status)
		}
		r.logger.Warn("sync not verified",
			"appointment_id", appointmentID,
			"payment_status", status)
	}
}
