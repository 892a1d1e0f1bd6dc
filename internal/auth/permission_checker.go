package auth

import "context"

type PermissionChecker interface {
	CanApproveAppointments(userPermissions []string) bool
	CanRejectAppointments(userPermissions []string) bool
	CanCompleteAppointments(userPermissions []string) bool
	CanManageSync(userPermissions []string) bool
	CanRefundPayments(userPermissions []string) bool
	HasAnyPermission(userPermissions []string, requiredPermissions []string) bool
	IsDentist(userPermissions []string) bool
	IsAdmin(userPermissions []string) bool
}

type DefaultPermissionChecker struct{}

func NewPermissionChecker() *DefaultPermissionChecker {
	return &DefaultPermissionChecker{}
}

func (c *DefaultPermissionChecker) HasPermission(ctx context.Context, userPermissions []string, permission string) (bool, error) {
	return c.HasAnyPermission(userPermissions, []string{permission}), nil
}

func (c *DefaultPermissionChecker) CanApproveAppointmentsCtx(ctx context.Context, userPermissions []string) (bool, error) {
	return c.CanApproveAppointments(userPermissions), nil
}

func (c *DefaultPermissionChecker) CanRejectAppointmentsCtx(ctx context.Context, userPermissions []string) (bool, error) {
	return c.CanRejectAppointments(userPermissions), nil
}

func (c *DefaultPermissionChecker) CanCompleteAppointmentsCtx(ctx context.Context, userPermissions []string) (bool, error) {
	return c.CanCompleteAppointments(userPermissions), nil
}

func (c *DefaultPermissionChecker) CanManageSyncCtx(ctx context.Context, userPermissions []string) (bool, error) {
	return c.CanManageSync(userPermissions), nil
}

func (c *DefaultPermissionChecker) IsAdminCtx(ctx context.Context, userPermissions []string) (bool, error) {
	return c.IsAdmin(userPermissions), nil
}

func (c *DefaultPermissionChecker) CanApproveAppointments(userPermissions []string) bool {
	return c.HasAnyPermission(userPermissions, []string{PermApproveAppointments, PermAdmin})
}

func (c *DefaultPermissionChecker) CanRejectAppointments(userPermissions []string) bool {
	return c.HasAnyPermission(userPermissions, []string{PermRejectAppointments, PermAdmin})
}

func (c *DefaultPermissionChecker) CanCompleteAppointments(userPermissions []string) bool {
	return c.HasAnyPermission(userPermissions, []string{PermCompleteAppointments, PermAdmin})
}

func (c *DefaultPermissionChecker) CanManageSync(userPermissions []string) bool {
	return c.HasAnyPermission(userPermissions, []string{PermManageSync, PermAdmin})
}

func (c *DefaultPermissionChecker) CanRefundPayments(userPermissions []string) bool {
	return c.HasAnyPermission(userPermissions, []string{PermRefundPayments, PermAdmin})
}

func (c *DefaultPermissionChecker) HasAnyPermission(userPermissions []string, requiredPermissions []string) bool {
	for _, userPerm := range userPermissions {
		for _, requiredPerm := range requiredPermissions {
			if userPerm == requiredPerm {
				return true
			}
		}
	}
	return false
}

func (c *DefaultPermissionChecker) IsDentist(userPermissions []string) bool {
	dentistPerms := []string{PermApproveAppointments, PermRejectAppointments, PermCompleteAppointments}
	return c.HasAnyPermission(userPermissions, dentistPerms)
}

func (c *DefaultPermissionChecker) IsAdmin(userPermissions []string) bool {
	return c.HasAnyPermission(userPermissions, []string{PermAdmin})
}
