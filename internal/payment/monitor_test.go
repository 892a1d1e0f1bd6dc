package payment_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	appointmentData "github.com/smiledesk/clinic-booking/internal/core/datamodel/appointment"
	paymentData "github.com/smiledesk/clinic-booking/internal/core/datamodel/payment"
	"github.com/smiledesk/clinic-booking/internal/core/events"
	paymentPkg "github.com/smiledesk/clinic-booking/internal/payment"
)

var _ = Describe("StatusMonitor", func() {
	var (
		payments     *mockPaymentStore
		appointments *mockAppointmentPaymentStore
		eventBus     *events.EventBus
		reconciler   *paymentPkg.Reconciler
		monitor      *paymentPkg.StatusMonitor
		ctx          context.Context
	)

	// driftedAppointment seeds one appointment whose completed payment
	// never flipped the appointment to paid.
	driftedAppointment := func(appointmentID, paymentID int64) {
		now := time.Now()
		payments.put(&paymentData.Payment{
			ID:            paymentID,
			AppointmentID: appointmentID,
			AmountCents:   10000,
			Status:        paymentData.StatusCompleted,
			CompletedAt:   &now,
		})
		appointments.status[appointmentID] = appointmentData.PaymentStatusUnpaid
		payments.driftedIDs = append(payments.driftedIDs, appointmentID)
	}

	BeforeEach(func() {
		payments = newMockPaymentStore()
		appointments = newMockAppointmentPaymentStore()
		eventBus = events.NewEventBus(testLogger())
		reconciler = paymentPkg.NewReconciler(payments, appointments, eventBus, paymentPkg.ReconcilerConfig{
			MaxAttempts: 3,
			BackoffBase: time.Millisecond,
		}, testLogger())
		monitor = paymentPkg.NewStatusMonitor(reconciler, payments, eventBus, paymentPkg.MonitorConfig{
			CheckInterval: time.Hour, // sweeps are driven manually in tests
			RepairPause:   time.Millisecond,
			SettleDelay:   5 * time.Millisecond,
		}, testLogger())
		ctx = context.Background()
	})

	Describe("CheckForSyncIssues", func() {
		Context("when several appointments drifted", func() {
			It("should repair each of them exactly once", func() {
				driftedAppointment(10, 1)
				driftedAppointment(11, 2)
				driftedAppointment(12, 3)

				repaired, err := monitor.CheckForSyncIssues(ctx)

				Expect(err).ToNot(HaveOccurred())
				Expect(repaired).To(Equal(3))
				Expect(appointments.calls()).To(Equal(3))
				for _, id := range []int64{10, 11, 12} {
					Expect(appointments.status[id]).To(Equal(appointmentData.PaymentStatusPaid))
				}
			})
		})

		Context("when nothing drifted", func() {
			It("should do nothing and record the check time", func() {
				repaired, err := monitor.CheckForSyncIssues(ctx)

				Expect(err).ToNot(HaveOccurred())
				Expect(repaired).To(Equal(0))
				Expect(appointments.calls()).To(Equal(0))

				status := monitor.Status(ctx)
				Expect(status.LastCheck).ToNot(BeNil())
			})
		})

		Context("when one repair cannot converge", func() {
			It("should continue with the rest of the sweep", func() {
				// appointment 10 has a drift entry but no completed payment,
				// so its repair is a no-op; 11 repairs normally
				appointments.status[10] = appointmentData.PaymentStatusUnpaid
				payments.driftedIDs = append(payments.driftedIDs, 10)
				driftedAppointment(11, 2)

				repaired, err := monitor.CheckForSyncIssues(ctx)

				Expect(err).ToNot(HaveOccurred())
				Expect(repaired).To(Equal(1))
				Expect(appointments.status[10]).To(Equal(appointmentData.PaymentStatusUnpaid))
				Expect(appointments.status[11]).To(Equal(appointmentData.PaymentStatusPaid))
			})
		})

		Context("when the drift query fails", func() {
			It("should return the error", func() {
				payments.driftedErr = errors.New("connection refused")

				_, err := monitor.CheckForSyncIssues(ctx)

				Expect(err).To(HaveOccurred())
			})
		})
	})

	Describe("Start and Stop", func() {
		It("should be safe to start twice and stop twice", func() {
			monitor.Start()
			monitor.Start()

			status := monitor.Status(ctx)
			Expect(status.IsRunning).To(BeTrue())
			Expect(status.SubscriptionActive).To(BeTrue())

			monitor.Stop()
			monitor.Stop()

			status = monitor.Status(ctx)
			Expect(status.IsRunning).To(BeFalse())
			Expect(status.SubscriptionActive).To(BeFalse())
		})
	})

	Describe("Status", func() {
		It("should report the live drift count", func() {
			driftedAppointment(10, 1)
			driftedAppointment(11, 2)

			status := monitor.Status(ctx)

			Expect(status.CurrentSyncIssues).To(Equal(2))
			Expect(status.IsRunning).To(BeFalse())
		})
	})

	Describe("payment completed feed", func() {
		Context("when the direct sync already repaired the appointment", func() {
			It("should leave the appointment alone", func() {
				now := time.Now()
				payments.put(&paymentData.Payment{ID: 1, AppointmentID: 10, Status: paymentData.StatusCompleted, CompletedAt: &now})
				appointments.status[10] = appointmentData.PaymentStatusPaid

				monitor.Start()
				defer monitor.Stop()

				err := eventBus.PublishSync(ctx, events.NewPaymentCompletedEvent(1, 10, 10000, "TX-1"))

				Expect(err).ToNot(HaveOccurred())
				Expect(appointments.calls()).To(Equal(0))
			})
		})

		Context("when the appointment still reads unpaid after the settle window", func() {
			It("should repair it", func() {
				now := time.Now()
				payments.put(&paymentData.Payment{ID: 1, AppointmentID: 10, Status: paymentData.StatusCompleted, CompletedAt: &now})
				appointments.status[10] = appointmentData.PaymentStatusUnpaid

				monitor.Start()
				defer monitor.Stop()

				err := eventBus.PublishSync(ctx, events.NewPaymentCompletedEvent(1, 10, 10000, "TX-1"))

				Expect(err).ToNot(HaveOccurred())
				Expect(appointments.status[10]).To(Equal(appointmentData.PaymentStatusPaid))
			})
		})

		Context("when the monitor is stopped", func() {
			It("should ignore the event", func() {
				now := time.Now()
				payments.put(&paymentData.Payment{ID: 1, AppointmentID: 10, Status: paymentData.StatusCompleted, CompletedAt: &now})
				appointments.status[10] = appointmentData.PaymentStatusUnpaid

				monitor.Start()
				monitor.Stop()

				err := eventBus.PublishSync(ctx, events.NewPaymentCompletedEvent(1, 10, 10000, "TX-1"))

				Expect(err).ToNot(HaveOccurred())
				Expect(appointments.status[10]).To(Equal(appointmentData.PaymentStatusUnpaid))
			})
		})
	})
})
