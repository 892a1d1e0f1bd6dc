package rest

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"

	"github.com/smiledesk/clinic-booking/internal/appointment"
	"github.com/smiledesk/clinic-booking/internal/auth"
	"github.com/smiledesk/clinic-booking/internal/payment"
	"github.com/smiledesk/clinic-booking/internal/transport/middleware"
	"github.com/smiledesk/clinic-booking/internal/transport/swagger"
	"github.com/smiledesk/clinic-booking/internal/user"
)

func RegisterAllRoutes(router *chi.Mux, db *sql.DB, authHandler *auth.Handler, rbac *auth.RBACAuthorization, userHandler *user.Handler, appointmentHandler *appointment.Handler, paymentHandler *payment.Handler, logger *slog.Logger) {
	healthHandler := NewHealthHandler(db)

	router.Use(middleware.CORS)
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RequestID)
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.RecoveryMiddleware(logger))

	// OpenAPI spec and swagger UI live outside the API prefix
	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./api/openapi.yml")
	})
	router.Handle("/swagger/*", swagger.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		r.Route("/auth", func(sr chi.Router) {
			sr.Post("/login", authHandler.Login)
			sr.Post("/refresh", authHandler.RefreshToken)
			sr.Post("/logout", authHandler.Logout)
		})

		// PayPal redirects the patient's browser here, so no bearer token
		r.Get("/payments/execute", paymentHandler.ExecutePayment)

		r.Group(func(pr chi.Router) {
			pr.Use(authHandler.AuthMiddleware)

			pr.Get("/users/me", userHandler.GetCurrentUser)
			pr.Get("/dentists", userHandler.ListDentists)

			pr.Route("/appointments", func(ar chi.Router) {
				ar.Get("/", appointmentHandler.List)
				ar.Get("/{id}", appointmentHandler.Get)
				ar.Post("/{id}/cancel", appointmentHandler.Cancel)

				ar.Group(func(br chi.Router) {
					br.Use(rbac.RequireBookAppointment())
					br.Post("/", appointmentHandler.Book)
					br.Post("/{id}/payments", paymentHandler.CreatePayment)
				})
				ar.Get("/{id}/payments", paymentHandler.ListPayments)

				ar.Group(func(dr chi.Router) {
					dr.Use(rbac.RequireApproveAppointment())
					dr.Post("/{id}/approve", appointmentHandler.Approve)
				})
				ar.Group(func(dr chi.Router) {
					dr.Use(rbac.RequireRejectAppointment())
					dr.Post("/{id}/reject", appointmentHandler.Reject)
				})
				ar.Group(func(dr chi.Router) {
					dr.Use(rbac.RequireCompleteAppointment())
					dr.Post("/{id}/complete", appointmentHandler.Complete)
				})
			})

			pr.Route("/admin", func(admin chi.Router) {
				admin.Use(rbac.RequireManageSync())
				admin.Post("/appointments/{id}/sync", paymentHandler.SyncAppointment)
				admin.Route("/payment-sync", func(ms chi.Router) {
					ms.Post("/start", paymentHandler.StartMonitor)
					ms.Post("/stop", paymentHandler.StopMonitor)
					ms.Post("/check", paymentHandler.CheckSync)
					ms.Get("/status", paymentHandler.MonitorStatus)
				})
			})
		})
	})
}
