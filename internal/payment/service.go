package payment

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/smiledesk/clinic-booking/internal"
	appointmentDatamodel "github.com/smiledesk/clinic-booking/internal/core/datamodel/appointment"
	paymentDatamodel "github.com/smiledesk/clinic-booking/internal/core/datamodel/payment"
	"github.com/smiledesk/clinic-booking/internal/core/events"
	"github.com/smiledesk/clinic-booking/internal/paymentgateway"
)

// Gateway is the slice of the payment gateway client the service uses.
type Gateway interface {
	CreatePayment(ctx context.Context, req *paymentgateway.CreatePaymentRequest) (*paymentgateway.CreatePaymentResponse, error)
	ExecutePayment(ctx context.Context, paymentID, payerID string) (*paymentgateway.ExecutePaymentResponse, error)
	RefundSale(ctx context.Context, transactionID string, amountCents int64, currency string) (*paymentgateway.RefundResponse, error)
}

// AppointmentReader resolves the appointment a payment charges for.
type AppointmentReader interface {
	GetByID(ctx context.Context, id int64) (*appointmentDatamodel.Appointment, error)
}

type Service struct {
	payments     PaymentStore
	appointments AppointmentPaymentStore
	reader       AppointmentReader
	gateway      Gateway
	reconciler   *Reconciler
	eventBus     *events.EventBus
	currency     string
	logger       *slog.Logger
}

func NewService(payments PaymentStore, appointments AppointmentPaymentStore, reader AppointmentReader, gateway Gateway, reconciler *Reconciler, eventBus *events.EventBus, currency string, logger *slog.Logger) *Service {
	if currency == "" {
		currency = "USD"
	}
	return &Service{
		payments:     payments,
		appointments: appointments,
		reader:       reader,
		gateway:      gateway,
		reconciler:   reconciler,
		eventBus:     eventBus,
		currency:     currency,
		logger:       logger,
	}
}

// CreatePayment starts a charge for an approved, unpaid appointment owned
// by the calling patient. The pending payment row is created before the
// gateway call so an execute callback always has a row to land on.
func (s *Service) CreatePayment(ctx context.Context, patientID, appointmentID int64) (*CreatePaymentResponse, error) {
	appt, err := s.reader.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if appt.PatientID != patientID {
		return nil, internal.ErrUnauthorizedAccess
	}
	if appt.Status != appointmentDatamodel.StatusApproved || appt.PaymentStatus != appointmentDatamodel.PaymentStatusUnpaid {
		s.logger.Warn("appointment not payable",
			"appointment_id", appointmentID,
			"status", appt.Status,
			"payment_status", appt.PaymentStatus)
		return nil, internal.ErrAppointmentNotPayable
	}

	record := &paymentDatamodel.Payment{
		AppointmentID: appointmentID,
		AmountCents:   appt.PriceCents,
		Currency:      s.currency,
		Status:        paymentDatamodel.StatusPending,
	}
	if err := s.payments.Create(ctx, record); err != nil {
		s.logger.Error("failed to create payment record", "error", err, "appointment_id", appointmentID)
		return nil, internal.NewInternalError("failed to create payment record", err)
	}

	created, err := s.gateway.CreatePayment(ctx, &paymentgateway.CreatePaymentRequest{
		AmountCents: appt.PriceCents,
		Currency:    s.currency,
		Description: fmt.Sprintf("Dental appointment #%d", appointmentID),
		InvoiceID:   fmt.Sprintf("appt-%d-pay-%d", appointmentID, record.ID),
	})
	if err != nil {
		s.logger.Error("gateway create failed", "error", err, "payment_id", record.ID)
		reason := err.Error()
		if markErr := s.payments.MarkFailed(ctx, record.ID, reason); markErr != nil {
			s.logger.Error("failed to mark payment failed", "error", markErr, "payment_id", record.ID)
		}
		return nil, internal.NewExternalError("payment gateway rejected the charge", internal.ErrCodePaymentFailed, err)
	}

	record.GatewayPaymentID = created.PaymentID
	if err := s.payments.SetGatewayPaymentID(ctx, record.ID, created.PaymentID); err != nil {
		s.logger.Error("failed to store gateway payment id", "error", err, "payment_id", record.ID)
		return nil, internal.NewInternalError("failed to store gateway payment id", err)
	}

	s.logger.Info("payment created",
		"payment_id", record.ID,
		"appointment_id", appointmentID,
		"gateway_payment_id", created.PaymentID,
		"amount_cents", appt.PriceCents)

	return &CreatePaymentResponse{
		PaymentID:        record.ID,
		GatewayPaymentID: created.PaymentID,
		ApprovalURL:      created.ApprovalURL,
		Status:           paymentDatamodel.StatusPending,
	}, nil
}

// ExecutePayment handles the gateway return URL: capture the funds, then
// reconcile both tables. A sync that does not verify is still a captured
// payment, so it is reported as synced=false rather than an error.
func (s *Service) ExecutePayment(ctx context.Context, gatewayPaymentID, payerID string) (*ExecutePaymentResponse, error) {
	record, err := s.payments.GetByGatewayPaymentID(ctx, gatewayPaymentID)
	if err != nil {
		return nil, err
	}
	if record.IsCompleted() {
		// duplicate callback; the first execution already settled it
		s.logger.Info("payment already completed, skipping execute",
			"payment_id", record.ID,
			"gateway_payment_id", gatewayPaymentID)
		result, err := s.reconciler.ManualSync(ctx, record.AppointmentID)
		if err != nil {
			return nil, err
		}
		return &ExecutePaymentResponse{Synced: result.Success, Payment: ToView(record), Sync: result}, nil
	}

	executed, err := s.gateway.ExecutePayment(ctx, gatewayPaymentID, payerID)
	if err != nil {
		s.logger.Error("gateway execute failed",
			"error", err,
			"payment_id", record.ID,
			"gateway_payment_id", gatewayPaymentID)
		reason := err.Error()
		if markErr := s.payments.MarkFailed(ctx, record.ID, reason); markErr != nil {
			s.logger.Error("failed to mark payment failed", "error", markErr, "payment_id", record.ID)
		}
		return nil, internal.NewExternalError("payment execution failed", internal.ErrCodePaymentFailed, err)
	}

	result, err := s.reconciler.SyncPaymentStatus(ctx, record.ID, record.AppointmentID, executed.TransactionID)
	if err != nil {
		return nil, internal.NewSyncError("payment captured but could not be recorded", err)
	}

	record, err = s.payments.GetByID(ctx, record.ID)
	if err != nil {
		return nil, err
	}

	return &ExecutePaymentResponse{
		Synced:  result.Success,
		Payment: ToView(record),
		Sync:    result,
	}, nil
}

// RefundForAppointment refunds the latest completed payment of an
// appointment, if any, and flips both rows to refunded. Called by the
// appointment lifecycle on reject and cancel.
func (s *Service) RefundForAppointment(ctx context.Context, appointmentID int64) error {
	record, err := s.payments.GetLatestCompletedByAppointmentID(ctx, appointmentID)
	if err != nil {
		return err
	}
	if record == nil {
		s.logger.Info("no completed payment to refund", "appointment_id", appointmentID)
		return nil
	}
	if record.GatewayTransactionID == "" {
		return internal.NewInternalError("completed payment has no transaction id", nil)
	}

	refund, err := s.gateway.RefundSale(ctx, record.GatewayTransactionID, record.AmountCents, record.Currency)
	if err != nil {
		s.logger.Error("gateway refund failed",
			"error", err,
			"payment_id", record.ID,
			"transaction_id", record.GatewayTransactionID)
		return internal.NewExternalError("refund failed at the gateway", internal.ErrCodeRefundFailed, err)
	}

	if err := s.payments.MarkRefunded(ctx, record.ID); err != nil {
		s.logger.Error("failed to mark payment refunded", "error", err, "payment_id", record.ID)
		return internal.NewInternalError("failed to record refund", err)
	}
	if _, err := s.appointments.MarkRefunded(ctx, appointmentID); err != nil {
		s.logger.Error("failed to mark appointment refunded", "error", err, "appointment_id", appointmentID)
		return internal.NewInternalError("failed to record refund", err)
	}

	s.logger.Info("payment refunded",
		"payment_id", record.ID,
		"appointment_id", appointmentID,
		"refund_id", refund.RefundID)

	s.eventBus.Publish(ctx, events.NewPaymentRefundedEvent(record.ID, appointmentID, record.AmountCents))
	return nil
}

// ManualSync exposes the reconciler's repair path to the admin surface.
func (s *Service) ManualSync(ctx context.Context, appointmentID int64) (*SyncResult, error) {
	return s.reconciler.ManualSync(ctx, appointmentID)
}

// ListForAppointment returns the payment history of an appointment.
func (s *Service) ListForAppointment(ctx context.Context, appointmentID int64) ([]*View, error) {
	records, err := s.payments.GetByAppointmentID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	views := make([]*View, 0, len(records))
	for _, record := range records {
		views = append(views, ToView(record))
	}
	return views, nil
}
