package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/smiledesk/clinic-booking/internal/appointment"
	appointmentPostgres "github.com/smiledesk/clinic-booking/internal/appointment/postgres"
	"github.com/smiledesk/clinic-booking/internal/core/events"
	"github.com/smiledesk/clinic-booking/internal/notification"
	notificationPostgres "github.com/smiledesk/clinic-booking/internal/notification/postgres"
	"github.com/smiledesk/clinic-booking/internal/payment"
	paymentPostgres "github.com/smiledesk/clinic-booking/internal/payment/postgres"
	"github.com/smiledesk/clinic-booking/pkg/logger"

	"github.com/spf13/cobra"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var monitorOnce bool

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Run the payment status monitor",
	Long:  `Run the background monitor that detects and repairs appointments whose payment status drifted from their completed payments.`,
	Run: func(cmd *cobra.Command, args []string) {
		startMonitor()
	},
}

func startMonitor() {
	config, err := loadConfig(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.InitWithLevel(os.Getenv("APP_ENV"), config.Observability.Logging.Level)
	log := logger.LoggerWrapper()

	db, err := initDB(config.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	gormDB, err := gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: db.DB}), &gorm.Config{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize orm: %v\n", err)
		os.Exit(1)
	}

	eventBus := events.NewEventBus(log)
	paymentRepo := paymentPostgres.NewPaymentRepository(gormDB)
	appointmentRepo := appointmentPostgres.NewAppointmentRepository(gormDB)

	reconciler := payment.NewReconciler(paymentRepo, appointmentRepo, eventBus, payment.ReconcilerConfig{
		MaxAttempts: config.Sync.MaxAttempts,
		BackoffBase: config.Sync.BackoffBase,
	}, log)
	monitor := payment.NewStatusMonitor(reconciler, paymentRepo, eventBus, payment.MonitorConfig{
		CheckInterval: config.Sync.CheckInterval,
		RepairPause:   config.Sync.RepairPause,
		SettleDelay:   config.Sync.SettleDelay,
	}, log)

	contactRepo := notificationPostgres.NewContactRepository(gormDB)
	mailer := notification.NewHTTPMailer(notification.Config{
		APIURL:    config.Mail.APIURL,
		APIToken:  config.Mail.APIToken,
		FromEmail: config.Mail.FromEmail,
		FromName:  config.Mail.FromName,
	}, log)
	notificationService := notification.NewService(mailer, contactRepo, log)
	notification.NewEventHandler(notificationService, log).RegisterEventHandlers(eventBus)
	housekeeper := appointment.NewHousekeeper(appointmentRepo, paymentRepo, notificationService, appointment.HousekeeperConfig{
		Interval:          config.Housekeeping.Interval,
		ReminderLead:      config.Housekeeping.ReminderLead,
		PendingPaymentTTL: config.Housekeeping.PendingPaymentTTL,
	}, log)

	if monitorOnce {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		repaired, err := monitor.CheckForSyncIssues(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Sweep failed: %v\n", err)
			os.Exit(1)
		}
		report, err := housekeeper.RunOnce(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Housekeeping failed: %v\n", err)
			os.Exit(1)
		}
		log.Info("sweep finished",
			"repaired", repaired,
			"expired_payments", report.ExpiredPayments,
			"reminders_sent", report.RemindersSent)
		return
	}

	monitor.Start()
	housekeeper.Start()
	log.Info("payment status monitor running. Press Ctrl+C to stop.")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	log.Info("received signal, shutting down monitor", "signal", sig)
	housekeeper.Stop()
	monitor.Stop()
}

func init() {
	monitorCmd.Flags().BoolVar(&monitorOnce, "once", false, "Run a single drift sweep and exit")

	rootCmd.AddCommand(monitorCmd)
}
