package payment

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/smiledesk/clinic-booking/internal/core/datamodel/appointment"
	"github.com/smiledesk/clinic-booking/internal/core/events"
)

// MonitorConfig tunes the background sweep and the change-feed handler.
type MonitorConfig struct {
	CheckInterval time.Duration
	RepairPause   time.Duration
	SettleDelay   time.Duration
}

// MonitorStatus is a point-in-time snapshot for the admin surface.
type MonitorStatus struct {
	IsRunning          bool          `json:"is_running"`
	CheckInterval      time.Duration `json:"check_interval"`
	CurrentSyncIssues  int           `json:"current_sync_issues"`
	LastCheck          *time.Time    `json:"last_check,omitempty"`
	SubscriptionActive bool          `json:"subscription_active"`
}

// StatusMonitor watches for payments that completed without the owning
// appointment flipping to paid, and repairs them. It has two inputs: a
// periodic sweep over the whole table, and the payment.completed feed
// for near-real-time repair of individual appointments.
type StatusMonitor struct {
	reconciler *Reconciler
	payments   PaymentStore
	eventBus   *events.EventBus

	checkInterval time.Duration
	repairPause   time.Duration
	settleDelay   time.Duration

	mu         sync.Mutex
	running    bool
	registered bool // handler added to the bus, survives Stop
	subscribed bool // handler currently acting on events
	lastCheck  *time.Time
	stop       chan struct{}
	done       chan struct{}

	logger *slog.Logger
}

func NewStatusMonitor(reconciler *Reconciler, payments PaymentStore, eventBus *events.EventBus, config MonitorConfig, logger *slog.Logger) *StatusMonitor {
	checkInterval := config.CheckInterval
	if checkInterval <= 0 {
		checkInterval = 30 * time.Second
	}
	repairPause := config.RepairPause
	if repairPause <= 0 {
		repairPause = time.Second
	}
	settleDelay := config.SettleDelay
	if settleDelay <= 0 {
		settleDelay = 2 * time.Second
	}

	return &StatusMonitor{
		reconciler:    reconciler,
		payments:      payments,
		eventBus:      eventBus,
		checkInterval: checkInterval,
		repairPause:   repairPause,
		settleDelay:   settleDelay,
		logger:        logger,
	}
}

// Start launches the sweep goroutine and subscribes the change-feed
// handler. Calling it on a running monitor is a no-op.
func (m *StatusMonitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		m.logger.Info("status monitor already running")
		return
	}

	if !m.registered {
		m.eventBus.Subscribe(events.EventTypePaymentCompleted, m.handlePaymentCompleted)
		m.registered = true
	}
	m.subscribed = true

	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	m.running = true

	go m.run(m.stop, m.done)

	m.logger.Info("status monitor started", "check_interval", m.checkInterval)
}

// Stop halts the sweep goroutine and flags the subscription inactive.
// A repair already in flight finishes on its own.
func (m *StatusMonitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.subscribed = false
	stop, done := m.stop, m.done
	m.mu.Unlock()

	close(stop)
	<-done

	m.logger.Info("status monitor stopped")
}

func (m *StatusMonitor) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			repaired, err := m.CheckForSyncIssues(context.Background())
			if err != nil {
				m.logger.Error("sync sweep failed", "error", err)
			} else if repaired > 0 {
				m.logger.Info("sync sweep repaired appointments", "count", repaired)
			}
		case <-stop:
			return
		}
	}
}

// CheckForSyncIssues finds every appointment left unpaid despite a
// completed payment and repairs each one. A failed repair is logged and
// skipped, never aborting the rest of the sweep.
func (m *StatusMonitor) CheckForSyncIssues(ctx context.Context) (int, error) {
	drifted, err := m.payments.FindDriftedAppointmentIDs(ctx)
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	m.mu.Lock()
	m.lastCheck = &now
	m.mu.Unlock()

	if len(drifted) == 0 {
		return 0, nil
	}

	m.logger.Warn("sync sweep found drifted appointments", "count", len(drifted))

	repaired := 0
	for i, appointmentID := range drifted {
		result, err := m.reconciler.ManualSync(ctx, appointmentID)
		if err != nil {
			m.logger.Error("sweep repair failed", "error", err, "appointment_id", appointmentID)
		} else if result.Success {
			repaired++
		} else {
			m.logger.Warn("sweep repair did not converge",
				"appointment_id", appointmentID,
				"message", result.Message)
		}

		if i < len(drifted)-1 {
			select {
			case <-time.After(m.repairPause):
			case <-ctx.Done():
				return repaired, ctx.Err()
			}
		}
	}

	return repaired, nil
}

// handlePaymentCompleted gives the direct reconciliation a settle window,
// then repairs the appointment only if it still reads unpaid.
func (m *StatusMonitor) handlePaymentCompleted(ctx context.Context, event events.Event) error {
	completed, ok := event.(*events.PaymentCompletedEvent)
	if !ok {
		return nil
	}

	m.mu.Lock()
	active := m.subscribed
	m.mu.Unlock()
	if !active {
		return nil
	}

	select {
	case <-time.After(m.settleDelay):
	case <-ctx.Done():
		return ctx.Err()
	}

	status, err := m.reconciler.appointments.GetPaymentStatus(ctx, completed.AppointmentID)
	if err != nil {
		m.logger.Error("change-feed recheck failed", "error", err, "appointment_id", completed.AppointmentID)
		return err
	}
	if status == appointment.PaymentStatusPaid {
		return nil
	}

	m.logger.Warn("appointment still unpaid after completed payment, repairing",
		"appointment_id", completed.AppointmentID,
		"payment_id", completed.PaymentID)

	result, err := m.reconciler.ManualSync(ctx, completed.AppointmentID)
	if err != nil {
		return err
	}
	if !result.Success {
		m.logger.Warn("change-feed repair did not converge",
			"appointment_id", completed.AppointmentID,
			"message", result.Message)
	}
	return nil
}

// Status reports a snapshot including a live drift count. The count
// query is best-effort; on error it reports zero issues.
func (m *StatusMonitor) Status(ctx context.Context) MonitorStatus {
	m.mu.Lock()
	status := MonitorStatus{
		IsRunning:          m.running,
		CheckInterval:      m.checkInterval,
		LastCheck:          m.lastCheck,
		SubscriptionActive: m.subscribed,
	}
	m.mu.Unlock()

	drifted, err := m.payments.FindDriftedAppointmentIDs(ctx)
	if err != nil {
		m.logger.Error("failed to count sync issues", "error", err)
	} else {
		status.CurrentSyncIssues = len(drifted)
	}

	return status
}
