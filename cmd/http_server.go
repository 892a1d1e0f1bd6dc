package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/smiledesk/clinic-booking/internal"
	"github.com/smiledesk/clinic-booking/internal/appointment"
	appointmentPostgres "github.com/smiledesk/clinic-booking/internal/appointment/postgres"
	"github.com/smiledesk/clinic-booking/internal/auth"
	authPostgres "github.com/smiledesk/clinic-booking/internal/auth/postgres"
	"github.com/smiledesk/clinic-booking/internal/calendar"
	"github.com/smiledesk/clinic-booking/internal/core/events"
	"github.com/smiledesk/clinic-booking/internal/notification"
	notificationPostgres "github.com/smiledesk/clinic-booking/internal/notification/postgres"
	"github.com/smiledesk/clinic-booking/internal/payment"
	paymentPostgres "github.com/smiledesk/clinic-booking/internal/payment/postgres"
	"github.com/smiledesk/clinic-booking/internal/paymentgateway"
	"github.com/smiledesk/clinic-booking/internal/transport/rest"
	"github.com/smiledesk/clinic-booking/internal/user"
	userPostgres "github.com/smiledesk/clinic-booking/internal/user/postgres"
	"github.com/smiledesk/clinic-booking/pkg/logger"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config  *internal.Config
	DB      *sqlx.DB
	Router  *chi.Mux
	Monitor *payment.StatusMonitor
	Logger  *slog.Logger
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	deps.Monitor.Start()

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	slog.Info("Starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           deps.Router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	// Signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		slog.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}
		deps.Monitor.Stop()
		if err := deps.DB.Close(); err != nil {
			slog.Error("Database close error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}

	slog.Info("Server stopped")
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	env := os.Getenv("APP_ENV")
	logger.InitWithLevel(env, config.Observability.Logging.Level)
	log := logger.LoggerWrapper()

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gormDB, err := gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: db.DB}), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize orm: %w", err)
	}

	eventBus := events.NewEventBus(log)

	// repositories
	paymentRepo := paymentPostgres.NewPaymentRepository(gormDB)
	appointmentRepo := appointmentPostgres.NewAppointmentRepository(gormDB)
	userRepo := userPostgres.NewRepository(db)
	authRepo := authPostgres.NewRepository(gormDB)
	contactRepo := notificationPostgres.NewContactRepository(gormDB)

	// outbound clients
	gateway := paymentgateway.NewClient(paymentgateway.Config{
		BaseURL:        config.PayPal.BaseURL,
		ClientID:       config.PayPal.ClientID,
		ClientSecret:   config.PayPal.ClientSecret,
		ReturnURL:      config.PayPal.ReturnURL,
		CancelURL:      config.PayPal.CancelURL,
		RequestTimeout: config.PayPal.RequestTimeout,
	}, log)
	calendarClient := calendar.NewClient(calendar.Config{
		Enabled:        config.Calendar.Enabled,
		BaseURL:        config.Calendar.BaseURL,
		CalendarID:     config.Calendar.CalendarID,
		AccessToken:    config.Calendar.AccessToken,
		RequestTimeout: config.Calendar.RequestTimeout,
	}, log)

	// notifications ride the event bus
	mailer := notification.NewHTTPMailer(notification.Config{
		APIURL:    config.Mail.APIURL,
		APIToken:  config.Mail.APIToken,
		FromEmail: config.Mail.FromEmail,
		FromName:  config.Mail.FromName,
	}, log)
	notificationService := notification.NewService(mailer, contactRepo, log)
	notification.NewEventHandler(notificationService, log).RegisterEventHandlers(eventBus)

	// payment reconciliation
	reconciler := payment.NewReconciler(paymentRepo, appointmentRepo, eventBus, payment.ReconcilerConfig{
		MaxAttempts: config.Sync.MaxAttempts,
		BackoffBase: config.Sync.BackoffBase,
	}, log)
	monitor := payment.NewStatusMonitor(reconciler, paymentRepo, eventBus, payment.MonitorConfig{
		CheckInterval: config.Sync.CheckInterval,
		RepairPause:   config.Sync.RepairPause,
		SettleDelay:   config.Sync.SettleDelay,
	}, log)

	// services
	paymentService := payment.NewService(paymentRepo, appointmentRepo, appointmentRepo, gateway, reconciler, eventBus, "USD", log)
	appointmentService := appointment.NewService(appointmentRepo, calendarClient, paymentService, eventBus, log)

	tokenGen := auth.NewJWTTokenGenerator(config.Security.AccessTokenSecret, config.Security.RefreshTokenSecret)
	tokenGen.AccessTokenTTL = config.Security.AccessTokenDuration
	tokenGen.RefreshTokenTTL = config.Security.RefreshTokenDuration
	authService := auth.NewService(authRepo, tokenGen)
	userService := user.NewService(userRepo)

	// handlers
	authHandler := auth.NewHandler(authService)
	userHandler := user.NewHandler(userService)
	appointmentHandler := appointment.NewHandler(appointmentService, log)
	paymentHandler := payment.NewHandler(paymentService, monitor, log)

	rbac := auth.NewRBACAuthorization(auth.NewPermissionChecker(), log)

	router := chi.NewRouter()
	rest.RegisterAllRoutes(router, db.DB, authHandler, rbac, userHandler, appointmentHandler, paymentHandler, log)

	return &Dependencies{
		Config:  config,
		Logger:  log,
		DB:      db,
		Router:  router,
		Monitor: monitor,
	}, nil
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}
