package notification

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/smiledesk/clinic-booking/internal/core/events"
)

// EventHandler bridges the event bus to the notification service. Send
// failures are logged and swallowed here: an email must never fail a
// payment or an approval.
type EventHandler struct {
	service *Service
	logger  *slog.Logger
}

func NewEventHandler(service *Service, logger *slog.Logger) *EventHandler {
	return &EventHandler{
		service: service,
		logger:  logger,
	}
}

func (h *EventHandler) HandlePaymentCompleted(ctx context.Context, event events.Event) error {
	paymentEvent, ok := event.(*events.PaymentCompletedEvent)
	if !ok {
		h.logger.Error("invalid event type for payment completed handler", "event_type", event.EventType())
		return fmt.Errorf("expected PaymentCompletedEvent, got %T", event)
	}

	if err := h.service.NotifyPaymentConfirmed(ctx, paymentEvent.AppointmentID, paymentEvent.AmountCents); err != nil {
		h.logger.Error("failed to send payment confirmation email",
			"error", err,
			"appointment_id", paymentEvent.AppointmentID,
			"event_id", paymentEvent.EventID())
	}

	return nil
}

func (h *EventHandler) HandleAppointmentApproved(ctx context.Context, event events.Event) error {
	approvedEvent, ok := event.(*events.AppointmentApprovedEvent)
	if !ok {
		h.logger.Error("invalid event type for appointment approved handler", "event_type", event.EventType())
		return fmt.Errorf("expected AppointmentApprovedEvent, got %T", event)
	}

	if err := h.service.NotifyAppointmentApproved(ctx, approvedEvent.AppointmentID); err != nil {
		h.logger.Error("failed to send approval email",
			"error", err,
			"appointment_id", approvedEvent.AppointmentID,
			"event_id", approvedEvent.EventID())
	}

	return nil
}

func (h *EventHandler) HandleAppointmentRejected(ctx context.Context, event events.Event) error {
	rejectedEvent, ok := event.(*events.AppointmentRejectedEvent)
	if !ok {
		h.logger.Error("invalid event type for appointment rejected handler", "event_type", event.EventType())
		return fmt.Errorf("expected AppointmentRejectedEvent, got %T", event)
	}

	if err := h.service.NotifyAppointmentRejected(ctx, rejectedEvent.AppointmentID, rejectedEvent.Reason, rejectedEvent.Refunded); err != nil {
		h.logger.Error("failed to send rejection email",
			"error", err,
			"appointment_id", rejectedEvent.AppointmentID,
			"event_id", rejectedEvent.EventID())
	}

	return nil
}

func (h *EventHandler) RegisterEventHandlers(eventBus *events.EventBus) {
	eventBus.Subscribe(events.EventTypePaymentCompleted, h.HandlePaymentCompleted)
	eventBus.Subscribe(events.EventTypeAppointmentApproved, h.HandleAppointmentApproved)
	eventBus.Subscribe(events.EventTypeAppointmentRejected, h.HandleAppointmentRejected)

	h.logger.Info("notification event handlers registered",
		"handlers", []string{
			events.EventTypePaymentCompleted,
			events.EventTypeAppointmentApproved,
			events.EventTypeAppointmentRejected,
		})
}
