package payment

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"

	errors "github.com/smiledesk/clinic-booking/internal"
	"github.com/smiledesk/clinic-booking/internal/auth"
	"github.com/smiledesk/clinic-booking/internal/transport"
)

// ServiceAPI is the payment surface the HTTP layer depends on.
type ServiceAPI interface {
	CreatePayment(ctx context.Context, patientID, appointmentID int64) (*CreatePaymentResponse, error)
	ExecutePayment(ctx context.Context, gatewayPaymentID, payerID string) (*ExecutePaymentResponse, error)
	ManualSync(ctx context.Context, appointmentID int64) (*SyncResult, error)
	ListForAppointment(ctx context.Context, appointmentID int64) ([]*View, error)
}

type Handler struct {
	transport.BaseHandler
	Service ServiceAPI
	Monitor *StatusMonitor
	Logger  *slog.Logger
}

func NewHandler(service ServiceAPI, monitor *StatusMonitor, logger *slog.Logger) *Handler {
	return &Handler{
		Service: service,
		Monitor: monitor,
		Logger:  logger,
	}
}

// CreatePayment handles POST /api/v1/appointments/{id}/payments
func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.HandleError(w, errors.NewUnauthorizedError("authentication required", errors.ErrCodeInvalidToken))
		return
	}

	appointmentID, err := h.appointmentIDParam(r)
	if err != nil {
		h.HandleError(w, err)
		return
	}

	resp, err := h.Service.CreatePayment(r.Context(), user.ID, appointmentID)
	if err != nil {
		h.Logger.Error("CreatePayment: service error", "error", err, "appointment_id", appointmentID, "user_id", user.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, resp)
}

// ExecutePayment handles GET /api/v1/payments/execute, the gateway
// return URL. It answers 200 even when the appointment row could not be
// verified: the charge is already captured and the monitor repairs the
// rest.
func (h *Handler) ExecutePayment(w http.ResponseWriter, r *http.Request) {
	gatewayPaymentID := r.URL.Query().Get("paymentId")
	payerID := r.URL.Query().Get("PayerID")
	if gatewayPaymentID == "" || payerID == "" {
		h.HandleError(w, errors.NewValidationError("paymentId and PayerID are required", errors.ErrCodeValidationFailed))
		return
	}

	resp, err := h.Service.ExecutePayment(r.Context(), gatewayPaymentID, payerID)
	if err != nil {
		h.Logger.Error("ExecutePayment: service error", "error", err, "gateway_payment_id", gatewayPaymentID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, resp)
}

// ListPayments handles GET /api/v1/appointments/{id}/payments
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	appointmentID, err := h.appointmentIDParam(r)
	if err != nil {
		h.HandleError(w, err)
		return
	}

	views, err := h.Service.ListForAppointment(r.Context(), appointmentID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"payments": views})
}

// SyncAppointment handles POST /api/v1/admin/appointments/{id}/sync
func (h *Handler) SyncAppointment(w http.ResponseWriter, r *http.Request) {
	appointmentID, err := h.appointmentIDParam(r)
	if err != nil {
		h.HandleError(w, err)
		return
	}

	result, err := h.Service.ManualSync(r.Context(), appointmentID)
	if err != nil {
		h.Logger.Error("SyncAppointment: service error", "error", err, "appointment_id", appointmentID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, result)
}

// StartMonitor handles POST /api/v1/admin/payment-sync/start
func (h *Handler) StartMonitor(w http.ResponseWriter, r *http.Request) {
	h.Monitor.Start()
	h.WriteJSON(w, http.StatusOK, map[string]string{"status": "started"})
}

// StopMonitor handles POST /api/v1/admin/payment-sync/stop
func (h *Handler) StopMonitor(w http.ResponseWriter, r *http.Request) {
	h.Monitor.Stop()
	h.WriteJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

// CheckSync handles POST /api/v1/admin/payment-sync/check
func (h *Handler) CheckSync(w http.ResponseWriter, r *http.Request) {
	repaired, err := h.Monitor.CheckForSyncIssues(r.Context())
	if err != nil {
		h.Logger.Error("CheckSync: sweep failed", "error", err)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, CheckSyncResponse{Repaired: repaired})
}

// MonitorStatus handles GET /api/v1/admin/payment-sync/status
func (h *Handler) MonitorStatus(w http.ResponseWriter, r *http.Request) {
	h.WriteJSON(w, http.StatusOK, SyncStatusResponse{Monitor: h.Monitor.Status(r.Context())})
}

func (h *Handler) appointmentIDParam(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.NewValidationError("invalid appointment ID", errors.ErrCodeValidationFailed)
	}
	return id, nil
}
