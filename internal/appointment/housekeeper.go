package appointment

import (
	"context"
	"log/slog"
	"sync"
	"time"

	appointmentDatamodel "github.com/smiledesk/clinic-booking/internal/core/datamodel/appointment"
)

// ReminderStore is the slice of the appointments table the housekeeper
// reads and claims reminders from.
type ReminderStore interface {
	ListDueReminders(ctx context.Context, from, until time.Time) ([]*appointmentDatamodel.Appointment, error)
	MarkReminderSent(ctx context.Context, appointmentID int64, at time.Time) (int64, error)
}

// PaymentExpirer fails pending payments abandoned at the gateway.
type PaymentExpirer interface {
	ExpireStalePending(ctx context.Context, cutoff time.Time) (int64, error)
}

// ReminderNotifier sends the reminder email for one appointment.
type ReminderNotifier interface {
	NotifyAppointmentReminder(ctx context.Context, appointmentID int64) error
}

// HousekeeperConfig tunes the periodic housekeeping pass.
type HousekeeperConfig struct {
	Interval          time.Duration
	ReminderLead      time.Duration
	PendingPaymentTTL time.Duration
}

// HousekeepingReport summarizes one pass.
type HousekeepingReport struct {
	ExpiredPayments int64 `json:"expired_payments"`
	RemindersSent   int   `json:"reminders_sent"`
}

// Housekeeper runs the periodic chores around the booking flow: expiring
// pending payments the patient never approved, and mailing reminders for
// upcoming approved appointments. Reminders are claimed in the store
// before sending, so concurrent workers never mail a patient twice.
type Housekeeper struct {
	store    ReminderStore
	payments PaymentExpirer
	notifier ReminderNotifier

	interval     time.Duration
	reminderLead time.Duration
	pendingTTL   time.Duration

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}

	logger *slog.Logger
}

func NewHousekeeper(store ReminderStore, payments PaymentExpirer, notifier ReminderNotifier, config HousekeeperConfig, logger *slog.Logger) *Housekeeper {
	interval := config.Interval
	if interval <= 0 {
		interval = time.Hour
	}
	reminderLead := config.ReminderLead
	if reminderLead <= 0 {
		reminderLead = 24 * time.Hour
	}
	pendingTTL := config.PendingPaymentTTL
	if pendingTTL <= 0 {
		pendingTTL = 24 * time.Hour
	}

	return &Housekeeper{
		store:        store,
		payments:     payments,
		notifier:     notifier,
		interval:     interval,
		reminderLead: reminderLead,
		pendingTTL:   pendingTTL,
		logger:       logger,
	}
}

// Start launches the housekeeping goroutine. No-op when already running.
func (h *Housekeeper) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.running {
		h.logger.Info("housekeeper already running")
		return
	}

	h.stop = make(chan struct{})
	h.done = make(chan struct{})
	h.running = true

	go h.run(h.stop, h.done)

	h.logger.Info("housekeeper started", "interval", h.interval)
}

// Stop halts the housekeeping goroutine. A pass in flight finishes on
// its own.
func (h *Housekeeper) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	stop, done := h.stop, h.done
	h.mu.Unlock()

	close(stop)
	<-done

	h.logger.Info("housekeeper stopped")
}

func (h *Housekeeper) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			report, err := h.RunOnce(context.Background())
			if err != nil {
				h.logger.Error("housekeeping pass failed", "error", err)
			} else if report.ExpiredPayments > 0 || report.RemindersSent > 0 {
				h.logger.Info("housekeeping pass finished",
					"expired_payments", report.ExpiredPayments,
					"reminders_sent", report.RemindersSent)
			}
		case <-stop:
			return
		}
	}
}

// RunOnce performs a single housekeeping pass. A failed reminder send is
// logged and skipped; the claim is already recorded, so the patient is
// not retried on the next pass.
func (h *Housekeeper) RunOnce(ctx context.Context) (*HousekeepingReport, error) {
	report := &HousekeepingReport{}
	now := time.Now().UTC()

	expired, err := h.payments.ExpireStalePending(ctx, now.Add(-h.pendingTTL))
	if err != nil {
		return report, err
	}
	report.ExpiredPayments = expired

	due, err := h.store.ListDueReminders(ctx, now, now.Add(h.reminderLead))
	if err != nil {
		return report, err
	}

	for _, appt := range due {
		rows, err := h.store.MarkReminderSent(ctx, appt.ID, now)
		if err != nil {
			h.logger.Error("failed to claim reminder", "error", err, "appointment_id", appt.ID)
			continue
		}
		if rows == 0 {
			continue
		}
		if err := h.notifier.NotifyAppointmentReminder(ctx, appt.ID); err != nil {
			h.logger.Error("failed to send reminder", "error", err, "appointment_id", appt.ID)
			continue
		}
		report.RemindersSent++
	}

	return report, nil
}
