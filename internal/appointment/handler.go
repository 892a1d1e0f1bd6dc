package appointment

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"

	errors "github.com/smiledesk/clinic-booking/internal"
	"github.com/smiledesk/clinic-booking/internal/auth"
	"github.com/smiledesk/clinic-booking/internal/transport"
)

// ServiceAPI is the appointment surface the HTTP layer depends on.
type ServiceAPI interface {
	Book(ctx context.Context, patientID int64, dto BookAppointmentDTO) (*View, error)
	Approve(ctx context.Context, dentistID, appointmentID int64) (*View, error)
	Reject(ctx context.Context, dentistID, appointmentID int64, dto RejectAppointmentDTO) (*View, error)
	Cancel(ctx context.Context, userID, appointmentID int64, dto CancelAppointmentDTO) (*View, error)
	Complete(ctx context.Context, dentistID, appointmentID int64) (*View, error)
	GetByID(ctx context.Context, userID, appointmentID int64, isAdmin bool) (*View, error)
	ListForPatient(ctx context.Context, patientID int64, limit, offset int) ([]*View, error)
	ListForDentist(ctx context.Context, dentistID int64, limit, offset int) ([]*View, error)
	ListAll(ctx context.Context, limit, offset int) ([]*View, error)
}

type Handler struct {
	transport.BaseHandler
	Service ServiceAPI
	Logger  *slog.Logger
}

func NewHandler(service ServiceAPI, logger *slog.Logger) *Handler {
	return &Handler{
		Service: service,
		Logger:  logger,
	}
}

// Book handles POST /api/v1/appointments
func (h *Handler) Book(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.HandleError(w, errors.NewUnauthorizedError("authentication required", errors.ErrCodeInvalidToken))
		return
	}

	var dto BookAppointmentDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.Logger.Error("Book: failed to parse request body", "error", err)
		h.HandleError(w, errors.NewValidationError("invalid request body", errors.ErrCodeValidationFailed))
		return
	}

	view, err := h.Service.Book(r.Context(), user.ID, dto)
	if err != nil {
		h.Logger.Error("Book: service error", "error", err, "user_id", user.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, view)
}

// Get handles GET /api/v1/appointments/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.HandleError(w, errors.NewUnauthorizedError("authentication required", errors.ErrCodeInvalidToken))
		return
	}

	appointmentID, err := h.idParam(r)
	if err != nil {
		h.HandleError(w, err)
		return
	}

	view, err := h.Service.GetByID(r.Context(), user.ID, appointmentID, user.HasPermission(auth.PermManageSync))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, view)
}

// List handles GET /api/v1/appointments. Admins see everything,
// dentists their schedule, patients their own bookings.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.HandleError(w, errors.NewUnauthorizedError("authentication required", errors.ErrCodeInvalidToken))
		return
	}

	limit, offset := paginationParams(r)

	var (
		views []*View
		err   error
	)
	switch {
	case user.HasPermission(auth.PermManageSync):
		views, err = h.Service.ListAll(r.Context(), limit, offset)
	case user.HasPermission(auth.PermApproveAppointments):
		views, err = h.Service.ListForDentist(r.Context(), user.ID, limit, offset)
	default:
		views, err = h.Service.ListForPatient(r.Context(), user.ID, limit, offset)
	}
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"appointments": views,
		"limit":        limit,
		"offset":       offset,
	})
}

// Approve handles POST /api/v1/appointments/{id}/approve
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context, userID, appointmentID int64) (*View, error) {
		return h.Service.Approve(ctx, userID, appointmentID)
	})
}

// Reject handles POST /api/v1/appointments/{id}/reject
func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.HandleError(w, errors.NewUnauthorizedError("authentication required", errors.ErrCodeInvalidToken))
		return
	}

	appointmentID, err := h.idParam(r)
	if err != nil {
		h.HandleError(w, err)
		return
	}

	var dto RejectAppointmentDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.HandleError(w, errors.NewValidationError("invalid request body", errors.ErrCodeValidationFailed))
		return
	}

	view, err := h.Service.Reject(r.Context(), user.ID, appointmentID, dto)
	if err != nil {
		h.Logger.Error("Reject: service error", "error", err, "appointment_id", appointmentID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, view)
}

// Cancel handles POST /api/v1/appointments/{id}/cancel
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.HandleError(w, errors.NewUnauthorizedError("authentication required", errors.ErrCodeInvalidToken))
		return
	}

	appointmentID, err := h.idParam(r)
	if err != nil {
		h.HandleError(w, err)
		return
	}

	var dto CancelAppointmentDTO
	if r.Body != nil {
		// body is optional for cancellations
		_ = json.NewDecoder(r.Body).Decode(&dto)
	}

	view, err := h.Service.Cancel(r.Context(), user.ID, appointmentID, dto)
	if err != nil {
		h.Logger.Error("Cancel: service error", "error", err, "appointment_id", appointmentID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, view)
}

// Complete handles POST /api/v1/appointments/{id}/complete
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context, userID, appointmentID int64) (*View, error) {
		return h.Service.Complete(ctx, userID, appointmentID)
	})
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, userID, appointmentID int64) (*View, error)) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.HandleError(w, errors.NewUnauthorizedError("authentication required", errors.ErrCodeInvalidToken))
		return
	}

	appointmentID, err := h.idParam(r)
	if err != nil {
		h.HandleError(w, err)
		return
	}

	view, err := op(r.Context(), user.ID, appointmentID)
	if err != nil {
		h.Logger.Error("appointment transition failed", "error", err, "appointment_id", appointmentID, "user_id", user.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) idParam(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.NewValidationError("invalid appointment ID", errors.ErrCodeValidationFailed)
	}
	return id, nil
}

func paginationParams(r *http.Request) (limit, offset int) {
	limit = 20
	offset = 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 && v <= 100 {
			limit = v
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 0 {
			offset = v
		}
	}
	return limit, offset
}
