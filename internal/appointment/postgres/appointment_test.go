package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/smiledesk/clinic-booking/internal"
	appointmentDatamodel "github.com/smiledesk/clinic-booking/internal/core/datamodel/appointment"
)

func TestAppointmentRepository(t *testing.T) {
	gomega.RegisterFailHandler(ginkgo.Fail)
	ginkgo.RunSpecs(t, "Appointment Repository Suite")
}

// SQLite-compatible table shape; postgres-only defaults are dropped.
type appointmentSQLite struct {
	ID                 int64      `gorm:"primaryKey"`
	PatientID          int64      `gorm:"column:patient_id;not null"`
	DentistID          int64      `gorm:"column:dentist_id;not null"`
	StartsAt           time.Time  `gorm:"column:starts_at;not null"`
	EndsAt             time.Time  `gorm:"column:ends_at;not null"`
	Reason             string     `gorm:"column:reason"`
	Notes              string     `gorm:"column:notes"`
	Status             string     `gorm:"column:status"`
	PaymentStatus      string     `gorm:"column:payment_status"`
	PriceCents         int64      `gorm:"column:price_cents;not null"`
	CalendarEventID    *string    `gorm:"column:calendar_event_id"`
	CancellationReason *string    `gorm:"column:cancellation_reason"`
	ProcessedAt        *time.Time `gorm:"column:processed_at"`
	ReminderSentAt     *time.Time `gorm:"column:reminder_sent_at"`
	CreatedAt          time.Time  `gorm:"column:created_at"`
	UpdatedAt          time.Time  `gorm:"column:updated_at"`
}

func (appointmentSQLite) TableName() string {
	return "appointments"
}

var _ = ginkgo.Describe("AppointmentRepository", func() {
	var (
		db   *gorm.DB
		repo *AppointmentRepository
		ctx  context.Context
	)

	baseTime := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)

	create := func(mutate func(a *appointmentDatamodel.Appointment)) *appointmentDatamodel.Appointment {
		a := &appointmentDatamodel.Appointment{
			PatientID:     1,
			DentistID:     2,
			StartsAt:      baseTime,
			EndsAt:        baseTime.Add(time.Hour),
			Status:        appointmentDatamodel.StatusPending,
			PaymentStatus: appointmentDatamodel.PaymentStatusUnpaid,
			PriceCents:    15000,
			CreatedAt:     time.Now().UTC(),
			UpdatedAt:     time.Now().UTC(),
		}
		if mutate != nil {
			mutate(a)
		}
		gomega.Expect(repo.Create(ctx, a)).To(gomega.Succeed())
		return a
	}

	ginkgo.BeforeEach(func() {
		var err error
		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			NowFunc: func() time.Time {
				return time.Now().UTC()
			},
		})
		gomega.Expect(err).ToNot(gomega.HaveOccurred())

		err = db.AutoMigrate(&appointmentSQLite{})
		gomega.Expect(err).ToNot(gomega.HaveOccurred())

		repo = NewAppointmentRepository(db)
		ctx = context.Background()
	})

	ginkgo.Describe("GetByID", func() {
		ginkgo.It("should return the typed not found error for missing rows", func() {
			_, err := repo.GetByID(ctx, 9999)
			gomega.Expect(err).To(gomega.MatchError(internal.ErrAppointmentNotFound))
		})
	})

	ginkgo.Describe("HasOverlap", func() {
		ginkgo.It("should detect a crossing window for the same dentist", func() {
			create(nil)

			overlap, err := repo.HasOverlap(ctx, 2, baseTime.Add(30*time.Minute), baseTime.Add(90*time.Minute))

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(overlap).To(gomega.BeTrue())
		})

		ginkgo.It("should allow back-to-back bookings", func() {
			create(nil)

			overlap, err := repo.HasOverlap(ctx, 2, baseTime.Add(time.Hour), baseTime.Add(2*time.Hour))

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(overlap).To(gomega.BeFalse())
		})

		ginkgo.It("should ignore other dentists and settled slots", func() {
			create(func(a *appointmentDatamodel.Appointment) {
				a.Status = appointmentDatamodel.StatusCancelled
			})
			create(func(a *appointmentDatamodel.Appointment) {
				a.DentistID = 3
			})

			overlap, err := repo.HasOverlap(ctx, 2, baseTime, baseTime.Add(time.Hour))

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(overlap).To(gomega.BeFalse())
		})
	})

	ginkgo.Describe("TransitionStatus", func() {
		ginkgo.It("should move pending to approved exactly once", func() {
			a := create(nil)

			rows, err := repo.TransitionStatus(ctx, a.ID, appointmentDatamodel.StatusPending, appointmentDatamodel.StatusApproved, time.Now().UTC())
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(rows).To(gomega.Equal(int64(1)))

			rows, err = repo.TransitionStatus(ctx, a.ID, appointmentDatamodel.StatusPending, appointmentDatamodel.StatusApproved, time.Now().UTC())
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(rows).To(gomega.Equal(int64(0)))
		})
	})

	ginkgo.Describe("SetRejection", func() {
		ginkgo.It("should reject pending appointments and store the reason", func() {
			a := create(nil)

			rows, err := repo.SetRejection(ctx, a.ID, "fully booked that day", time.Now().UTC())
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(rows).To(gomega.Equal(int64(1)))

			found, err := repo.GetByID(ctx, a.ID)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(found.Status).To(gomega.Equal(appointmentDatamodel.StatusRejected))
			gomega.Expect(found.CancellationReason).ToNot(gomega.BeNil())
			gomega.Expect(*found.CancellationReason).To(gomega.Equal("fully booked that day"))

			rows, err = repo.SetRejection(ctx, a.ID, "again", time.Now().UTC())
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(rows).To(gomega.Equal(int64(0)))
		})

		ginkgo.It("should reject an approved appointment that is already paid", func() {
			a := create(func(a *appointmentDatamodel.Appointment) {
				a.Status = appointmentDatamodel.StatusApproved
				a.PaymentStatus = appointmentDatamodel.PaymentStatusPaid
			})

			rows, err := repo.SetRejection(ctx, a.ID, "dentist off sick", time.Now().UTC())
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(rows).To(gomega.Equal(int64(1)))

			found, err := repo.GetByID(ctx, a.ID)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(found.Status).To(gomega.Equal(appointmentDatamodel.StatusRejected))
		})

		ginkgo.It("should not reject completed appointments", func() {
			a := create(func(a *appointmentDatamodel.Appointment) {
				a.Status = appointmentDatamodel.StatusCompleted
			})

			rows, err := repo.SetRejection(ctx, a.ID, "too late", time.Now().UTC())
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(rows).To(gomega.Equal(int64(0)))
		})
	})

	ginkgo.Describe("SetCancellation", func() {
		ginkgo.It("should cancel approved appointments without requiring a reason", func() {
			a := create(func(a *appointmentDatamodel.Appointment) {
				a.Status = appointmentDatamodel.StatusApproved
			})

			rows, err := repo.SetCancellation(ctx, a.ID, "", time.Now().UTC())
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(rows).To(gomega.Equal(int64(1)))

			found, err := repo.GetByID(ctx, a.ID)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(found.Status).To(gomega.Equal(appointmentDatamodel.StatusCancelled))
			gomega.Expect(found.CancellationReason).To(gomega.BeNil())
		})

		ginkgo.It("should not cancel completed appointments", func() {
			a := create(func(a *appointmentDatamodel.Appointment) {
				a.Status = appointmentDatamodel.StatusCompleted
			})

			rows, err := repo.SetCancellation(ctx, a.ID, "too late", time.Now().UTC())
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(rows).To(gomega.Equal(int64(0)))
		})
	})

	ginkgo.Describe("MarkPaid", func() {
		ginkgo.It("should flip unpaid to paid once and then affect no rows", func() {
			a := create(nil)

			rows, err := repo.MarkPaid(ctx, a.ID)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(rows).To(gomega.Equal(int64(1)))

			rows, err = repo.MarkPaid(ctx, a.ID)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(rows).To(gomega.Equal(int64(0)))

			status, err := repo.GetPaymentStatus(ctx, a.ID)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(status).To(gomega.Equal(appointmentDatamodel.PaymentStatusPaid))
		})
	})

	ginkgo.Describe("MarkRefunded", func() {
		ginkgo.It("should only refund paid appointments", func() {
			a := create(nil)

			rows, err := repo.MarkRefunded(ctx, a.ID)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(rows).To(gomega.Equal(int64(0)))

			_, err = repo.MarkPaid(ctx, a.ID)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			rows, err = repo.MarkRefunded(ctx, a.ID)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(rows).To(gomega.Equal(int64(1)))
		})
	})

	ginkgo.Describe("GetPaymentStatus", func() {
		ginkgo.It("should return the typed not found error for missing rows", func() {
			_, err := repo.GetPaymentStatus(ctx, 9999)
			gomega.Expect(err).To(gomega.MatchError(internal.ErrAppointmentNotFound))
		})
	})

	ginkgo.Describe("reminders", func() {
		ginkgo.It("should list only approved, unreminded appointments inside the window", func() {
			due := create(func(a *appointmentDatamodel.Appointment) {
				a.Status = appointmentDatamodel.StatusApproved
			})
			create(nil) // still pending
			create(func(a *appointmentDatamodel.Appointment) {
				a.Status = appointmentDatamodel.StatusApproved
				a.StartsAt = baseTime.Add(72 * time.Hour)
				a.EndsAt = baseTime.Add(73 * time.Hour)
			})
			already := baseTime.Add(-time.Hour)
			create(func(a *appointmentDatamodel.Appointment) {
				a.Status = appointmentDatamodel.StatusApproved
				a.ReminderSentAt = &already
			})

			found, err := repo.ListDueReminders(ctx, baseTime.Add(-time.Hour), baseTime.Add(24*time.Hour))

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(found).To(gomega.HaveLen(1))
			gomega.Expect(found[0].ID).To(gomega.Equal(due.ID))
		})

		ginkgo.It("should claim a reminder exactly once", func() {
			a := create(func(a *appointmentDatamodel.Appointment) {
				a.Status = appointmentDatamodel.StatusApproved
			})

			rows, err := repo.MarkReminderSent(ctx, a.ID, time.Now().UTC())
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(rows).To(gomega.Equal(int64(1)))

			rows, err = repo.MarkReminderSent(ctx, a.ID, time.Now().UTC())
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(rows).To(gomega.Equal(int64(0)))
		})
	})

	ginkgo.Describe("listing", func() {
		ginkgo.It("should page patient and dentist views separately", func() {
			create(nil)
			create(func(a *appointmentDatamodel.Appointment) {
				a.StartsAt = baseTime.Add(2 * time.Hour)
				a.EndsAt = baseTime.Add(3 * time.Hour)
			})
			create(func(a *appointmentDatamodel.Appointment) {
				a.PatientID = 7
				a.DentistID = 8
				a.StartsAt = baseTime.Add(4 * time.Hour)
				a.EndsAt = baseTime.Add(5 * time.Hour)
			})

			byPatient, err := repo.GetByPatientID(ctx, 1, 10, 0)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(byPatient).To(gomega.HaveLen(2))

			byDentist, err := repo.GetByDentistID(ctx, 8, 10, 0)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(byDentist).To(gomega.HaveLen(1))

			all, err := repo.GetAll(ctx, 2, 0)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(all).To(gomega.HaveLen(2))
		})
	})
})
