package user

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/smiledesk/clinic-booking/internal/auth"
	"github.com/smiledesk/clinic-booking/internal/transport"
	"github.com/smiledesk/clinic-booking/pkg/logger"
)

type ServiceAPI interface {
	GetByID(ctx context.Context, userID int64) (*User, error)
	ListDentists(ctx context.Context) ([]*User, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(svc ServiceAPI) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     svc,
	}
}

// GetCurrentUser handles GET /users/me
func (h *Handler) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	u, err := h.Service.GetByID(r.Context(), user.ID)
	if err != nil {
		h.Logger.Error("GetCurrentUser: lookup failed", "user_id", user.ID, "error", err)
		h.WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.WriteJSON(w, http.StatusOK, u)
}

// ListDentists handles GET /dentists
func (h *Handler) ListDentists(w http.ResponseWriter, r *http.Request) {
	dentists, err := h.Service.ListDentists(r.Context())
	if err != nil {
		h.Logger.Error("ListDentists: lookup failed", "error", err)
		h.WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"dentists": dentists})
}
