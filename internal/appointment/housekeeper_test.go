package appointment_test

import (
	"context"
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/smiledesk/clinic-booking/internal/appointment"
	appointmentData "github.com/smiledesk/clinic-booking/internal/core/datamodel/appointment"
)

// Mock reminder store for testing
type mockReminderStore struct {
	mu      sync.Mutex
	due     []*appointmentData.Appointment
	claimed map[int64]bool
	listErr error
}

func newMockReminderStore() *mockReminderStore {
	return &mockReminderStore{claimed: make(map[int64]bool)}
}

func (m *mockReminderStore) ListDueReminders(ctx context.Context, from, until time.Time) ([]*appointmentData.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []*appointmentData.Appointment
	for _, a := range m.due {
		if !m.claimed[a.ID] {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockReminderStore) MarkReminderSent(ctx context.Context, appointmentID int64, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.claimed[appointmentID] {
		return 0, nil
	}
	m.claimed[appointmentID] = true
	return 1, nil
}

// Mock payment expirer for testing
type mockPaymentExpirer struct {
	expired   int64
	expireErr error
	cutoffs   []time.Time
}

func (m *mockPaymentExpirer) ExpireStalePending(ctx context.Context, cutoff time.Time) (int64, error) {
	m.cutoffs = append(m.cutoffs, cutoff)
	if m.expireErr != nil {
		return 0, m.expireErr
	}
	return m.expired, nil
}

// Mock reminder notifier for testing
type mockReminderNotifier struct {
	mu       sync.Mutex
	notified []int64
	sendErr  error
}

func (m *mockReminderNotifier) NotifyAppointmentReminder(ctx context.Context, appointmentID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.notified = append(m.notified, appointmentID)
	return nil
}

var _ = Describe("Housekeeper", func() {
	var (
		store    *mockReminderStore
		payments *mockPaymentExpirer
		notifier *mockReminderNotifier
		keeper   *appointment.Housekeeper
		ctx      context.Context
	)

	BeforeEach(func() {
		store = newMockReminderStore()
		payments = &mockPaymentExpirer{}
		notifier = &mockReminderNotifier{}
		keeper = appointment.NewHousekeeper(store, payments, notifier, appointment.HousekeeperConfig{
			Interval:          time.Hour,
			ReminderLead:      24 * time.Hour,
			PendingPaymentTTL: 24 * time.Hour,
		}, testLogger())
		ctx = context.Background()
	})

	dueAppointment := func(id int64) {
		store.due = append(store.due, &appointmentData.Appointment{
			ID:     id,
			Status: appointmentData.StatusApproved,
		})
	}

	Describe("RunOnce", func() {
		It("should expire stale payments and mail each due reminder once", func() {
			payments.expired = 2
			dueAppointment(10)
			dueAppointment(11)

			report, err := keeper.RunOnce(ctx)

			Expect(err).ToNot(HaveOccurred())
			Expect(report.ExpiredPayments).To(Equal(int64(2)))
			Expect(report.RemindersSent).To(Equal(2))
			Expect(notifier.notified).To(ConsistOf(int64(10), int64(11)))
		})

		It("should not remind a claimed appointment again", func() {
			dueAppointment(10)

			_, err := keeper.RunOnce(ctx)
			Expect(err).ToNot(HaveOccurred())

			report, err := keeper.RunOnce(ctx)
			Expect(err).ToNot(HaveOccurred())
			Expect(report.RemindersSent).To(Equal(0))
			Expect(notifier.notified).To(HaveLen(1))
		})

		It("should count nothing when a send fails but keep the claim", func() {
			dueAppointment(10)
			notifier.sendErr = errors.New("mail API down")

			report, err := keeper.RunOnce(ctx)

			Expect(err).ToNot(HaveOccurred())
			Expect(report.RemindersSent).To(Equal(0))
			Expect(store.claimed[10]).To(BeTrue())
		})

		It("should surface an expiry failure before looking at reminders", func() {
			payments.expireErr = errors.New("connection reset")
			dueAppointment(10)

			_, err := keeper.RunOnce(ctx)

			Expect(err).To(HaveOccurred())
			Expect(notifier.notified).To(BeEmpty())
		})

		It("should pass a cutoff one TTL in the past", func() {
			before := time.Now().UTC()

			_, err := keeper.RunOnce(ctx)

			Expect(err).ToNot(HaveOccurred())
			Expect(payments.cutoffs).To(HaveLen(1))
			Expect(payments.cutoffs[0]).To(BeTemporally("~", before.Add(-24*time.Hour), time.Minute))
		})
	})

	Describe("Start and Stop", func() {
		It("should be safe to call repeatedly", func() {
			keeper.Start()
			keeper.Start()
			keeper.Stop()
			keeper.Stop()
		})
	})
})
