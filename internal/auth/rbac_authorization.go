package auth

import (
	"context"
	"log/slog"
	"net/http"
)

type PermissionAuthorizer interface {
	HasPermission(ctx context.Context, userPermissions []string, permission string) (bool, error)
	CanApproveAppointmentsCtx(ctx context.Context, userPermissions []string) (bool, error)
	CanRejectAppointmentsCtx(ctx context.Context, userPermissions []string) (bool, error)
	CanCompleteAppointmentsCtx(ctx context.Context, userPermissions []string) (bool, error)
	CanManageSyncCtx(ctx context.Context, userPermissions []string) (bool, error)
	IsAdminCtx(ctx context.Context, userPermissions []string) (bool, error)
}

type RBACAuthorization struct {
	authorizer PermissionAuthorizer
	logger     *slog.Logger
}

func NewRBACAuthorization(authorizer PermissionAuthorizer, logger *slog.Logger) *RBACAuthorization {
	return &RBACAuthorization{
		authorizer: authorizer,
		logger:     logger,
	}
}

func (ra *RBACAuthorization) Check(next http.HandlerFunc, permission string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok || user == nil {
			ra.logger.Warn("authorization check failed: user not found in context")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		hasAccess, err := ra.authorizer.HasPermission(r.Context(), user.Permissions, permission)
		if err != nil {
			ra.logger.ErrorContext(r.Context(), "authorization check failed", "error", err, "user_id", user.ID, "permission", permission)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		if !hasAccess {
			ra.logger.WarnContext(r.Context(), "access denied: insufficient permissions",
				"user_id", user.ID,
				"required_permission", permission,
				"user_permissions", user.Permissions)
			http.Error(w, "Forbidden: insufficient permissions", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	}
}

func (ra *RBACAuthorization) Middleware(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return ra.Check(next.ServeHTTP, permission)
	}
}

func (ra *RBACAuthorization) RequireBookAppointment() func(http.Handler) http.Handler {
	return ra.Middleware(PermBookAppointments)
}

func (ra *RBACAuthorization) RequireApproveAppointment() func(http.Handler) http.Handler {
	return ra.requireCheck("approve appointments", ra.authorizer.CanApproveAppointmentsCtx)
}

func (ra *RBACAuthorization) RequireRejectAppointment() func(http.Handler) http.Handler {
	return ra.requireCheck("reject appointments", ra.authorizer.CanRejectAppointmentsCtx)
}

func (ra *RBACAuthorization) RequireCompleteAppointment() func(http.Handler) http.Handler {
	return ra.requireCheck("complete appointments", ra.authorizer.CanCompleteAppointmentsCtx)
}

func (ra *RBACAuthorization) RequireManageSync() func(http.Handler) http.Handler {
	return ra.requireCheck("manage payment sync", ra.authorizer.CanManageSyncCtx)
}

func (ra *RBACAuthorization) RequireAdmin() func(http.Handler) http.Handler {
	return ra.requireCheck("admin access", ra.authorizer.IsAdminCtx)
}

func (ra *RBACAuthorization) requireCheck(what string, check func(ctx context.Context, userPermissions []string) (bool, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok || user == nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			allowed, err := check(r.Context(), user.Permissions)
			if err != nil {
				ra.logger.ErrorContext(r.Context(), "authorization check failed", "error", err, "user_id", user.ID, "check", what)
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}

			if !allowed {
				ra.logger.WarnContext(r.Context(), "access denied", "user_id", user.ID, "check", what)
				http.Error(w, "Forbidden: insufficient permissions", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
