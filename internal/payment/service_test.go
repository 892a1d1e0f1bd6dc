package payment_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/smiledesk/clinic-booking/internal"
	appointmentData "github.com/smiledesk/clinic-booking/internal/core/datamodel/appointment"
	paymentData "github.com/smiledesk/clinic-booking/internal/core/datamodel/payment"
	"github.com/smiledesk/clinic-booking/internal/core/events"
	paymentPkg "github.com/smiledesk/clinic-booking/internal/payment"
	"github.com/smiledesk/clinic-booking/internal/paymentgateway"
)

// Mock gateway for testing
type mockGateway struct {
	createResp  *paymentgateway.CreatePaymentResponse
	createErr   error
	executeResp *paymentgateway.ExecutePaymentResponse
	executeErr  error
	refundResp  *paymentgateway.RefundResponse
	refundErr   error
	refunds     []string
	executes    int
}

func (m *mockGateway) CreatePayment(ctx context.Context, req *paymentgateway.CreatePaymentRequest) (*paymentgateway.CreatePaymentResponse, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	return m.createResp, nil
}

func (m *mockGateway) ExecutePayment(ctx context.Context, paymentID, payerID string) (*paymentgateway.ExecutePaymentResponse, error) {
	m.executes++
	if m.executeErr != nil {
		return nil, m.executeErr
	}
	return m.executeResp, nil
}

func (m *mockGateway) RefundSale(ctx context.Context, transactionID string, amountCents int64, currency string) (*paymentgateway.RefundResponse, error) {
	if m.refundErr != nil {
		return nil, m.refundErr
	}
	m.refunds = append(m.refunds, transactionID)
	return m.refundResp, nil
}

// Mock appointment reader for testing
type mockAppointmentReader struct {
	appointments map[int64]*appointmentData.Appointment
}

func (m *mockAppointmentReader) GetByID(ctx context.Context, id int64) (*appointmentData.Appointment, error) {
	a, ok := m.appointments[id]
	if !ok {
		return nil, internal.ErrAppointmentNotFound
	}
	return a, nil
}

var _ = Describe("PaymentService", func() {
	var (
		payments     *mockPaymentStore
		appointments *mockAppointmentPaymentStore
		reader       *mockAppointmentReader
		gateway      *mockGateway
		eventBus     *events.EventBus
		service      *paymentPkg.Service
		ctx          context.Context
	)

	BeforeEach(func() {
		payments = newMockPaymentStore()
		appointments = newMockAppointmentPaymentStore()
		reader = &mockAppointmentReader{appointments: make(map[int64]*appointmentData.Appointment)}
		gateway = &mockGateway{
			createResp:  &paymentgateway.CreatePaymentResponse{PaymentID: "PAYID-1", ApprovalURL: "https://paypal.example/approve", State: paymentgateway.PaymentStateCreated},
			executeResp: &paymentgateway.ExecutePaymentResponse{PaymentID: "PAYID-1", TransactionID: "SALE-9", State: paymentgateway.PaymentStateApproved},
			refundResp:  &paymentgateway.RefundResponse{RefundID: "REFUND-1", State: "completed"},
		}
		eventBus = events.NewEventBus(testLogger())
		reconciler := paymentPkg.NewReconciler(payments, appointments, eventBus, paymentPkg.ReconcilerConfig{
			MaxAttempts: 3,
			BackoffBase: time.Millisecond,
		}, testLogger())
		service = paymentPkg.NewService(payments, appointments, reader, gateway, reconciler, eventBus, "USD", testLogger())
		ctx = context.Background()
	})

	approvedAppointment := func(id int64) {
		reader.appointments[id] = &appointmentData.Appointment{
			ID:            id,
			PatientID:     1,
			DentistID:     2,
			Status:        appointmentData.StatusApproved,
			PaymentStatus: appointmentData.PaymentStatusUnpaid,
			PriceCents:    15000,
		}
		appointments.status[id] = appointmentData.PaymentStatusUnpaid
	}

	Describe("CreatePayment", func() {
		Context("for an approved unpaid appointment", func() {
			It("should create a pending record and return the approval link", func() {
				approvedAppointment(10)

				resp, err := service.CreatePayment(ctx, 1, 10)

				Expect(err).ToNot(HaveOccurred())
				Expect(resp.GatewayPaymentID).To(Equal("PAYID-1"))
				Expect(resp.ApprovalURL).To(Equal("https://paypal.example/approve"))
				Expect(resp.Status).To(Equal(paymentData.StatusPending))

				stored, err := payments.GetByID(ctx, resp.PaymentID)
				Expect(err).ToNot(HaveOccurred())
				Expect(stored.GatewayPaymentID).To(Equal("PAYID-1"))
				Expect(stored.AmountCents).To(Equal(int64(15000)))
			})
		})

		Context("when someone else's appointment is charged", func() {
			It("should refuse", func() {
				approvedAppointment(10)

				_, err := service.CreatePayment(ctx, 42, 10)

				Expect(err).To(MatchError(internal.ErrUnauthorizedAccess))
			})
		})

		Context("when the appointment is not approved or already paid", func() {
			It("should report it as not payable", func() {
				reader.appointments[10] = &appointmentData.Appointment{
					ID: 10, PatientID: 1, Status: appointmentData.StatusPending,
					PaymentStatus: appointmentData.PaymentStatusUnpaid,
				}

				_, err := service.CreatePayment(ctx, 1, 10)

				Expect(err).To(MatchError(internal.ErrAppointmentNotPayable))
			})
		})

		Context("when the gateway rejects the charge", func() {
			It("should mark the record failed", func() {
				approvedAppointment(10)
				gateway.createErr = errors.New("INSTRUMENT_DECLINED")

				_, err := service.CreatePayment(ctx, 1, 10)

				Expect(err).To(HaveOccurred())
				records, listErr := payments.GetByAppointmentID(ctx, 10)
				Expect(listErr).ToNot(HaveOccurred())
				Expect(records).To(HaveLen(1))
				Expect(records[0].Status).To(Equal(paymentData.StatusFailed))
			})
		})
	})

	Describe("ExecutePayment", func() {
		Context("on the first gateway callback", func() {
			It("should capture, reconcile and report synced", func() {
				approvedAppointment(10)
				created, err := service.CreatePayment(ctx, 1, 10)
				Expect(err).ToNot(HaveOccurred())

				resp, err := service.ExecutePayment(ctx, created.GatewayPaymentID, "PAYER-7")

				Expect(err).ToNot(HaveOccurred())
				Expect(resp.Synced).To(BeTrue())
				Expect(resp.Payment.Status).To(Equal(paymentData.StatusCompleted))
				Expect(resp.Payment.GatewayTransactionID).To(Equal("SALE-9"))
				Expect(appointments.status[10]).To(Equal(appointmentData.PaymentStatusPaid))
			})
		})

		Context("on a duplicate callback", func() {
			It("should not execute at the gateway again", func() {
				approvedAppointment(10)
				created, err := service.CreatePayment(ctx, 1, 10)
				Expect(err).ToNot(HaveOccurred())
				_, err = service.ExecutePayment(ctx, created.GatewayPaymentID, "PAYER-7")
				Expect(err).ToNot(HaveOccurred())

				resp, err := service.ExecutePayment(ctx, created.GatewayPaymentID, "PAYER-7")

				Expect(err).ToNot(HaveOccurred())
				Expect(resp.Synced).To(BeTrue())
				Expect(gateway.executes).To(Equal(1))
			})
		})

		Context("when the gateway capture fails", func() {
			It("should mark the payment failed and surface a gateway error", func() {
				approvedAppointment(10)
				created, err := service.CreatePayment(ctx, 1, 10)
				Expect(err).ToNot(HaveOccurred())
				gateway.executeErr = errors.New("payer has not approved")

				_, err = service.ExecutePayment(ctx, created.GatewayPaymentID, "PAYER-7")

				Expect(err).To(HaveOccurred())
				stored, getErr := payments.GetByID(ctx, created.PaymentID)
				Expect(getErr).ToNot(HaveOccurred())
				Expect(stored.Status).To(Equal(paymentData.StatusFailed))
				Expect(appointments.status[10]).To(Equal(appointmentData.PaymentStatusUnpaid))
			})
		})
	})

	Describe("RefundForAppointment", func() {
		Context("with a completed payment", func() {
			It("should refund at the gateway and flip both rows", func() {
				now := time.Now()
				payments.put(&paymentData.Payment{
					ID:                   1,
					AppointmentID:        10,
					AmountCents:          15000,
					Currency:             "USD",
					Status:               paymentData.StatusCompleted,
					GatewayTransactionID: "SALE-9",
					CompletedAt:          &now,
				})
				appointments.status[10] = appointmentData.PaymentStatusPaid

				err := service.RefundForAppointment(ctx, 10)

				Expect(err).ToNot(HaveOccurred())
				Expect(gateway.refunds).To(Equal([]string{"SALE-9"}))
				Expect(payments.payments[1].Status).To(Equal(paymentData.StatusRefunded))
				Expect(appointments.status[10]).To(Equal(appointmentData.PaymentStatusRefunded))
			})
		})

		Context("with no completed payment", func() {
			It("should be a no-op", func() {
				appointments.status[10] = appointmentData.PaymentStatusUnpaid

				err := service.RefundForAppointment(ctx, 10)

				Expect(err).ToNot(HaveOccurred())
				Expect(gateway.refunds).To(BeEmpty())
			})
		})

		Context("when the gateway refund fails", func() {
			It("should leave both rows untouched", func() {
				now := time.Now()
				payments.put(&paymentData.Payment{
					ID:                   1,
					AppointmentID:        10,
					AmountCents:          15000,
					Currency:             "USD",
					Status:               paymentData.StatusCompleted,
					GatewayTransactionID: "SALE-9",
					CompletedAt:          &now,
				})
				appointments.status[10] = appointmentData.PaymentStatusPaid
				gateway.refundErr = errors.New("refund window expired")

				err := service.RefundForAppointment(ctx, 10)

				Expect(err).To(HaveOccurred())
				Expect(payments.payments[1].Status).To(Equal(paymentData.StatusCompleted))
				Expect(appointments.status[10]).To(Equal(appointmentData.PaymentStatusPaid))
			})
		})
	})
})
