package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"bizops-backend/internal/domain"
	"bizops-backend/internal/events"
	"bizops-backend/internal/logger"
	"bizops-backend/internal/repository"
)

type approvalService struct {
	store      *repository.Store
	authorizer MemberAuthority
	publisher  events.Publisher
	now        func() time.Time
}

func NewApprovalPolicyService(store *repository.Store, authorizer MemberAuthority, publisher events.Publisher) ApprovalPolicyService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &approvalService{
		store:      store,
		authorizer: authorizer,
		publisher:  publisher,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *approvalService) requireAdmin(ctx context.Context, businessID, userID string) error {
	ok, err := s.authorizer.IsBusinessAdmin(ctx, businessID, userID)
	if err != nil {
		return fmt.Errorf("failed to check admin authority: %w", err)
	}
	if !ok {
		return domain.ErrNotBusinessAdmin
	}
	return nil
}

func (s *approvalService) CreateRole(ctx context.Context, r *domain.ApprovalRole, actorUserID string) error {
	logger.EnterMethod("approvalService.CreateRole", "businessID", r.BusinessID, "name", r.Name, "actor", actorUserID)

	if err := s.requireAdmin(ctx, r.BusinessID, actorUserID); err != nil {
		logger.ExitMethodWithError("approvalService.CreateRole", err, "actor", actorUserID)
		return err
	}
	if err := r.Validate(); err != nil {
		logger.ExitMethodWithError("approvalService.CreateRole", err)
		return err
	}
	now := s.now()
	r.ID = uuid.NewString()
	r.IsActive = true
	r.CreatedAt = now
	r.UpdatedAt = now

	if err := s.store.Roles.Create(ctx, r); err != nil {
		logger.ExitMethodWithError("approvalService.CreateRole", err)
		return fmt.Errorf("failed to create approval role: %w", err)
	}
	logger.ExitMethod("approvalService.CreateRole", "roleID", r.ID)
	return nil
}

func (s *approvalService) GetRole(ctx context.Context, businessID, roleID string) (*domain.ApprovalRole, error) {
	r, err := s.store.Roles.GetByID(ctx, businessID, roleID)
	if err != nil {
		return nil, fmt.Errorf("failed to get approval role %s: %w", roleID, err)
	}
	return r, nil
}

func (s *approvalService) ListRoles(ctx context.Context, businessID string) ([]domain.ApprovalRole, error) {
	roles, err := s.store.Roles.List(ctx, businessID)
	if err != nil {
		return nil, fmt.Errorf("failed to list approval roles: %w", err)
	}
	return roles, nil
}

// UpdateRole replaces the role's editable fields. The active flag and
// creation time are kept from the stored record.
func (s *approvalService) UpdateRole(ctx context.Context, r *domain.ApprovalRole, actorUserID string) error {
	logger.EnterMethod("approvalService.UpdateRole", "roleID", r.ID, "actor", actorUserID)

	if err := s.requireAdmin(ctx, r.BusinessID, actorUserID); err != nil {
		logger.ExitMethodWithError("approvalService.UpdateRole", err, "actor", actorUserID)
		return err
	}
	if err := r.Validate(); err != nil {
		logger.ExitMethodWithError("approvalService.UpdateRole", err)
		return err
	}
	stored, err := s.store.Roles.GetByID(ctx, r.BusinessID, r.ID)
	if err != nil {
		logger.ExitMethodWithError("approvalService.UpdateRole", err, "roleID", r.ID)
		return fmt.Errorf("failed to get approval role %s: %w", r.ID, err)
	}
	r.IsActive = stored.IsActive
	r.CreatedAt = stored.CreatedAt
	r.UpdatedAt = s.now()

	if err := s.store.Roles.Update(ctx, r); err != nil {
		logger.ExitMethodWithError("approvalService.UpdateRole", err, "roleID", r.ID)
		return fmt.Errorf("failed to update approval role: %w", err)
	}
	logger.ExitMethod("approvalService.UpdateRole", "roleID", r.ID)
	return nil
}

func (s *approvalService) DeleteRole(ctx context.Context, businessID, roleID, actorUserID string) error {
	logger.EnterMethod("approvalService.DeleteRole", "roleID", roleID, "actor", actorUserID)
	if err := s.requireAdmin(ctx, businessID, actorUserID); err != nil {
		logger.ExitMethodWithError("approvalService.DeleteRole", err, "actor", actorUserID)
		return err
	}
	if err := s.store.Roles.Delete(ctx, businessID, roleID); err != nil {
		logger.ExitMethodWithError("approvalService.DeleteRole", err, "roleID", roleID)
		return fmt.Errorf("failed to delete approval role: %w", err)
	}
	logger.WithBusiness(ctx, businessID).Info("Approval role deleted", "roleID", roleID)
	logger.ExitMethod("approvalService.DeleteRole", "roleID", roleID)
	return nil
}

// ToggleActive sets the role's active flag to a fixed value, so repeating
// the call is harmless. Bound users lose or regain authority on their next
// check because decisions always re-read the role.
func (s *approvalService) ToggleActive(ctx context.Context, businessID, roleID string, active bool, actorUserID string) (*domain.ApprovalRole, error) {
	logger.EnterMethod("approvalService.ToggleActive", "roleID", roleID, "active", active, "actor", actorUserID)

	if err := s.requireAdmin(ctx, businessID, actorUserID); err != nil {
		logger.ExitMethodWithError("approvalService.ToggleActive", err, "actor", actorUserID)
		return nil, err
	}

	r, err := s.store.Roles.GetByID(ctx, businessID, roleID)
	if err != nil {
		logger.ExitMethodWithError("approvalService.ToggleActive", err, "roleID", roleID)
		return nil, fmt.Errorf("failed to get approval role %s: %w", roleID, err)
	}
	if r.IsActive == active {
		logger.ExitMethod("approvalService.ToggleActive", "roleID", roleID, "changed", false)
		return r, nil
	}

	r.IsActive = active
	r.UpdatedAt = s.now()
	if err := s.store.Roles.Update(ctx, r); err != nil {
		logger.ExitMethodWithError("approvalService.ToggleActive", err, "roleID", roleID)
		return nil, fmt.Errorf("failed to toggle approval role: %w", err)
	}

	logger.WithBusiness(ctx, businessID).Info("Approval role toggled", "roleID", roleID, "active", active)
	publish(ctx, s.publisher, events.New(events.RoleToggled, businessID, map[string]any{
		"role_id":   roleID,
		"is_active": active,
	}))
	logger.ExitMethod("approvalService.ToggleActive", "roleID", roleID, "changed", true)
	return r, nil
}

// AssignUserToRole binds userID to an active role. Only active members of
// the business may hold a role, and at most one active binding each.
func (s *approvalService) AssignUserToRole(ctx context.Context, req AssignRequest) (*domain.ApprovalUser, error) {
	logger.EnterMethod("approvalService.AssignUserToRole", "roleID", req.RoleID, "userID", req.UserID, "actor", req.AssignedBy)

	if err := s.requireAdmin(ctx, req.BusinessID, req.AssignedBy); err != nil {
		logger.ExitMethodWithError("approvalService.AssignUserToRole", err, "actor", req.AssignedBy)
		return nil, err
	}
	if req.UserID == "" {
		err := domain.NewValidationError("user_id", "must not be empty")
		logger.ExitMethodWithError("approvalService.AssignUserToRole", err)
		return nil, err
	}
	member, err := s.authorizer.IsMember(ctx, req.BusinessID, req.UserID)
	if err != nil {
		logger.ExitMethodWithError("approvalService.AssignUserToRole", err, "userID", req.UserID)
		return nil, fmt.Errorf("failed to check membership: %w", err)
	}
	if !member {
		err := fmt.Errorf("user %s is not an active member: %w", req.UserID, domain.ErrMemberNotFound)
		logger.ExitMethodWithError("approvalService.AssignUserToRole", err)
		return nil, err
	}

	var binding *domain.ApprovalUser
	err = s.store.RunInTx(ctx, func(ctx context.Context) error {
		r, err := s.store.Roles.GetByID(ctx, req.BusinessID, req.RoleID)
		if err != nil {
			return err
		}
		if !r.IsActive {
			return fmt.Errorf("role %s is inactive: %w", req.RoleID, domain.ErrRoleNotFound)
		}

		existing, err := s.store.ApprovalUsers.GetActiveByUser(ctx, req.BusinessID, req.UserID)
		switch {
		case err == nil:
			return fmt.Errorf("user %s already bound to role %s: %w", req.UserID, existing.RoleID, domain.ErrAlreadyExists)
		case !errors.Is(err, domain.ErrBindingNotFound):
			return err
		}

		binding = &domain.ApprovalUser{
			ID:         uuid.NewString(),
			BusinessID: req.BusinessID,
			UserID:     req.UserID,
			UserName:   req.UserName,
			UserEmail:  req.UserEmail,
			RoleID:     req.RoleID,
			AssignedAt: s.now(),
			AssignedBy: req.AssignedBy,
			IsActive:   true,
		}
		return s.store.ApprovalUsers.Create(ctx, binding)
	})
	if err != nil {
		logger.ExitMethodWithError("approvalService.AssignUserToRole", err, "roleID", req.RoleID, "userID", req.UserID)
		return nil, fmt.Errorf("failed to assign user to role: %w", err)
	}

	logger.WithBusiness(ctx, req.BusinessID).Info("User assigned to approval role",
		"userID", req.UserID, "roleID", req.RoleID, "assignedBy", req.AssignedBy)
	logger.ExitMethod("approvalService.AssignUserToRole", "bindingID", binding.ID)
	return binding, nil
}

func (s *approvalService) UnassignUser(ctx context.Context, businessID, bindingID, actorUserID string) error {
	logger.EnterMethod("approvalService.UnassignUser", "bindingID", bindingID, "actor", actorUserID)
	if err := s.requireAdmin(ctx, businessID, actorUserID); err != nil {
		logger.ExitMethodWithError("approvalService.UnassignUser", err, "actor", actorUserID)
		return err
	}
	if err := s.store.ApprovalUsers.Deactivate(ctx, businessID, bindingID); err != nil {
		logger.ExitMethodWithError("approvalService.UnassignUser", err, "bindingID", bindingID)
		return fmt.Errorf("failed to unassign user: %w", err)
	}
	logger.ExitMethod("approvalService.UnassignUser", "bindingID", bindingID)
	return nil
}

func (s *approvalService) ListRoleUsers(ctx context.Context, businessID, roleID string) ([]domain.ApprovalUser, error) {
	users, err := s.store.ApprovalUsers.ListByRole(ctx, businessID, roleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list role users: %w", err)
	}
	return users, nil
}

// CanApprove resolves userID's active binding and evaluates it against the
// role as stored right now. Absence of a binding or role is a Denied
// decision, not an error.
func (s *approvalService) CanApprove(ctx context.Context, businessID, userID string, action domain.ActionType, amount int64) (domain.Decision, error) {
	logger.EnterMethod("approvalService.CanApprove", "userID", userID, "action", action, "amount", amount)

	if !action.Valid() {
		err := domain.NewValidationError("action_type", fmt.Sprintf("unknown action %q", action))
		logger.ExitMethodWithError("approvalService.CanApprove", err)
		return domain.Decision{}, err
	}
	if amount < 0 {
		err := domain.NewValidationError("amount", "must not be negative")
		logger.ExitMethodWithError("approvalService.CanApprove", err)
		return domain.Decision{}, err
	}

	binding, err := s.store.ApprovalUsers.GetActiveByUser(ctx, businessID, userID)
	if err != nil {
		if !errors.Is(err, domain.ErrBindingNotFound) {
			logger.ExitMethodWithError("approvalService.CanApprove", err, "userID", userID)
			return domain.Decision{}, fmt.Errorf("failed to resolve approval binding: %w", err)
		}
		binding = nil
	}

	var role *domain.ApprovalRole
	if binding != nil {
		role, err = s.store.Roles.GetByID(ctx, businessID, binding.RoleID)
		if err != nil {
			if !errors.Is(err, domain.ErrRoleNotFound) {
				logger.ExitMethodWithError("approvalService.CanApprove", err, "roleID", binding.RoleID)
				return domain.Decision{}, fmt.Errorf("failed to get approval role: %w", err)
			}
			role = nil
		}
	}

	d := domain.Evaluate(binding, role, action, amount)
	logger.ExitMethod("approvalService.CanApprove", "userID", userID, "outcome", d.Outcome, "reason", d.Reason)
	return d, nil
}
