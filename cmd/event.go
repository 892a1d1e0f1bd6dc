package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/smiledesk/clinic-booking/internal/core/events"
	"github.com/smiledesk/clinic-booking/pkg/logger"
	"github.com/spf13/cobra"
)

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Event management commands",
	Long:  `Manage events: publish test events, monitor event bus, inspect handlers`,
}

var publishEventCmd = &cobra.Command{
	Use:   "publish [event-type]",
	Short: "Publish a test event",
	Long:  `Publish a test event to the event bus for testing and debugging`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		publishTestEvent(args[0])
	},
}

var (
	eventData          string
	eventPaymentID     int64
	eventAppointmentID int64
	eventAmountCents   int64
	eventTransactionID string
)

func publishTestEvent(eventType string) {
	log := logger.LoggerWrapper()

	eventBus := events.NewEventBus(log)

	eventBus.Subscribe(eventType, func(ctx context.Context, event events.Event) error {
		log.Info("test handler received event",
			"event_id", event.EventID(),
			"event_type", event.EventType(),
			"payload", event.Payload())
		return nil
	})

	var event events.Event
	switch eventType {
	case events.EventTypePaymentCompleted:
		event = events.NewPaymentCompletedEvent(eventPaymentID, eventAppointmentID, eventAmountCents, eventTransactionID)
	case events.EventTypePaymentRefunded:
		event = events.NewPaymentRefundedEvent(eventPaymentID, eventAppointmentID, eventAmountCents)
	default:
		event = events.BaseEvent{
			ID:        fmt.Sprintf("test-%d", time.Now().Unix()),
			Type:      eventType,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"message": eventData,
				"source":  "cli-command",
			},
		}
	}

	log.Info("publishing test event", "event_type", eventType, "event_id", event.EventID())

	ctx := context.Background()
	if err := eventBus.Publish(ctx, event); err != nil {
		log.Error("failed to publish event", "error", err)
		return
	}

	time.Sleep(100 * time.Millisecond)
	log.Info("test event published successfully")
}

func init() {
	publishEventCmd.Flags().StringVar(&eventData, "data", "test message", "Event data message")
	publishEventCmd.Flags().Int64Var(&eventPaymentID, "payment-id", 0, "Payment ID for payment events")
	publishEventCmd.Flags().Int64Var(&eventAppointmentID, "appointment-id", 0, "Appointment ID for payment events")
	publishEventCmd.Flags().Int64Var(&eventAmountCents, "amount-cents", 0, "Amount in cents for payment events")
	publishEventCmd.Flags().StringVar(&eventTransactionID, "transaction-id", "", "Gateway transaction ID for payment events")

	eventCmd.AddCommand(publishEventCmd)

	rootCmd.AddCommand(eventCmd)
}
