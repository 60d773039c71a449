package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"bizops-backend/internal/config"
	"bizops-backend/internal/domain"
	"bizops-backend/internal/events"
	"bizops-backend/internal/logger"
	"bizops-backend/internal/repository"
)

type membershipService struct {
	store       *repository.Store
	codes       CodeGenerator
	authorizer  AdminAuthorizer
	notifier    MemberNotifier
	publisher   events.Publisher
	maxAttempts int
	now         func() time.Time
}

func NewMembershipService(
	store *repository.Store,
	codes CodeGenerator,
	authorizer AdminAuthorizer,
	notifier MemberNotifier,
	publisher events.Publisher,
	cfg config.MembershipConfig,
) MembershipService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if notifier == nil {
		notifier = logNotifier{}
	}
	maxAttempts := cfg.MaxCodeAttempts
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	return &membershipService{
		store:       store,
		codes:       codes,
		authorizer:  authorizer,
		notifier:    notifier,
		publisher:   publisher,
		maxAttempts: maxAttempts,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// nextCodes draws a business code and a system code that differ from each
// other and from every code already issued.
func (s *membershipService) nextCodes(ctx context.Context) (string, string, error) {
	var picked []string
	for len(picked) < 2 {
		code, err := s.codes.Generate()
		if err != nil {
			return "", "", err
		}
		if len(picked) == 1 && picked[0] == code {
			continue
		}
		inUse, err := s.store.Businesses.CodeInUse(ctx, code)
		if err != nil {
			return "", "", fmt.Errorf("failed to check code: %w", err)
		}
		if inUse {
			logger.Debug("Generated code collided, regenerating")
			return "", "", domain.ErrAlreadyExists
		}
		picked = append(picked, code)
	}
	return picked[0], picked[1], nil
}

// withFreshCodes calls write with newly drawn codes until it succeeds. A
// collision, whether seen by the pre-check or by the store's uniqueness
// constraint, costs one attempt.
func (s *membershipService) withFreshCodes(ctx context.Context, write func(businessCode, systemCode string) error) error {
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		bc, sc, err := s.nextCodes(ctx)
		if err == nil {
			err = write(bc, sc)
		}
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrAlreadyExists) {
			return err
		}
		logger.Warn("Business code collision", "attempt", attempt)
	}
	return domain.ErrCodeExhausted
}

func (s *membershipService) CreateBusiness(ctx context.Context, b *domain.Business, creator Profile) error {
	logger.EnterMethod("membershipService.CreateBusiness", "name", b.Name, "creator", creator.UserID)

	if strings.TrimSpace(b.Name) == "" {
		err := domain.NewValidationError("name", "must not be empty")
		logger.ExitMethodWithError("membershipService.CreateBusiness", err)
		return err
	}
	if creator.UserID == "" {
		err := domain.NewValidationError("user_id", "must not be empty")
		logger.ExitMethodWithError("membershipService.CreateBusiness", err)
		return err
	}

	now := s.now()
	b.ID = uuid.NewString()
	b.OwnerUserID = creator.UserID
	b.CreatedAt = now

	admin := &domain.Member{
		BusinessID: b.ID,
		UserID:     creator.UserID,
		FirstName:  creator.FirstName,
		LastName:   creator.LastName,
		Email:      creator.Email,
		Phone:      creator.Phone,
		Role:       domain.MemberRoleAdmin,
		Status:     domain.MemberStatusActive,
		JoinedAt:   now,
	}

	err := s.withFreshCodes(ctx, func(bc, sc string) error {
		b.BusinessCode = bc
		b.SystemCode = sc
		return s.store.RunInTx(ctx, func(ctx context.Context) error {
			if err := s.store.Businesses.Create(ctx, b); err != nil {
				return err
			}
			return s.store.Members.Create(ctx, admin)
		})
	})
	if err != nil {
		logger.ExitMethodWithError("membershipService.CreateBusiness", err, "name", b.Name)
		return fmt.Errorf("failed to create business: %w", err)
	}

	logger.WithBusiness(ctx, b.ID).Info("Business created", "owner", creator.UserID)
	publish(ctx, s.publisher, events.New(events.MemberJoined, b.ID, admin))
	logger.ExitMethod("membershipService.CreateBusiness", "businessID", b.ID)
	return nil
}

func (s *membershipService) RotateCodes(ctx context.Context, businessID, actorUserID string) (*domain.Business, error) {
	logger.EnterMethod("membershipService.RotateCodes", "businessID", businessID, "actor", actorUserID)

	if err := s.requireAdmin(ctx, businessID, actorUserID); err != nil {
		logger.ExitMethodWithError("membershipService.RotateCodes", err)
		return nil, err
	}
	b, err := s.store.Businesses.GetByID(ctx, businessID)
	if err != nil {
		logger.ExitMethodWithError("membershipService.RotateCodes", err)
		return nil, fmt.Errorf("failed to get business: %w", err)
	}

	err = s.withFreshCodes(ctx, func(bc, sc string) error {
		if err := s.store.Businesses.UpdateCodes(ctx, businessID, bc, sc); err != nil {
			return err
		}
		b.BusinessCode = bc
		b.SystemCode = sc
		return nil
	})
	if err != nil {
		logger.ExitMethodWithError("membershipService.RotateCodes", err)
		return nil, fmt.Errorf("failed to rotate codes: %w", err)
	}

	logger.WithBusiness(ctx, businessID).Info("Business codes rotated", "actor", actorUserID)
	logger.ExitMethod("membershipService.RotateCodes", "businessID", businessID)
	return b, nil
}

// JoinBusiness admits the caller through a business code. An admin request
// with the matching system code activates immediately; every other request
// lands in the pending queue. A wrong system code creates nothing.
func (s *membershipService) JoinBusiness(ctx context.Context, req JoinRequest) (*domain.JoinResult, error) {
	code := strings.ToUpper(strings.TrimSpace(req.Code))
	logger.EnterMethod("membershipService.JoinBusiness", "userID", req.UserID, "requestedRole", req.RequestedRole)

	if code == "" {
		err := domain.NewValidationError("code", "must not be empty")
		logger.ExitMethodWithError("membershipService.JoinBusiness", err)
		return nil, err
	}
	if !req.RequestedRole.Valid() {
		err := domain.NewValidationError("requested_role", fmt.Sprintf("unknown role %q", req.RequestedRole))
		logger.ExitMethodWithError("membershipService.JoinBusiness", err)
		return nil, err
	}
	if req.UserID == "" {
		err := domain.NewValidationError("user_id", "must not be empty")
		logger.ExitMethodWithError("membershipService.JoinBusiness", err)
		return nil, err
	}

	b, err := s.store.Businesses.GetByBusinessCode(ctx, code)
	if err != nil {
		logger.ExitMethodWithError("membershipService.JoinBusiness", err)
		return nil, fmt.Errorf("failed to resolve business code: %w", err)
	}

	var result *domain.JoinResult
	if req.RequestedRole == domain.MemberRoleAdmin {
		result, err = s.joinAsAdmin(ctx, b, req)
	} else {
		result, err = s.joinPending(ctx, b, req)
	}
	if err != nil {
		logger.ExitMethodWithError("membershipService.JoinBusiness", err, "businessID", b.ID, "userID", req.UserID)
		return nil, err
	}

	logger.ExitMethod("membershipService.JoinBusiness", "businessID", b.ID, "outcome", result.Outcome)
	return result, nil
}

func (s *membershipService) joinAsAdmin(ctx context.Context, b *domain.Business, req JoinRequest) (*domain.JoinResult, error) {
	supplied := strings.ToUpper(strings.TrimSpace(req.SystemCode))
	if supplied == "" || subtle.ConstantTimeCompare([]byte(supplied), []byte(b.SystemCode)) != 1 {
		logger.WithBusiness(ctx, b.ID).Warn("Admin join rejected: system code mismatch", "userID", req.UserID)
		return nil, domain.ErrInvalidSystemCode
	}

	m := &domain.Member{
		BusinessID: b.ID,
		UserID:     req.UserID,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Email:      req.Email,
		Phone:      req.Phone,
		Role:       domain.MemberRoleAdmin,
		Status:     domain.MemberStatusActive,
		JoinedAt:   s.now(),
	}
	elevated := false
	err := s.store.RunInTx(ctx, func(ctx context.Context) error {
		pending, err := s.store.Pending.GetByUser(ctx, b.ID, req.UserID)
		if err != nil && !errors.Is(err, domain.ErrMemberNotFound) {
			return err
		}

		// An existing member keeps their record and is promoted in place.
		existing, err := s.store.Members.Get(ctx, b.ID, req.UserID)
		switch {
		case err == nil:
			if existing.Role != domain.MemberRoleAdmin {
				if err := s.store.Members.UpdateRole(ctx, b.ID, req.UserID, domain.MemberRoleAdmin); err != nil {
					return err
				}
				existing.Role = domain.MemberRoleAdmin
				elevated = true
			}
			m = existing
		case errors.Is(err, domain.ErrMemberNotFound):
			if err := s.store.Members.Create(ctx, m); err != nil {
				return err
			}
		default:
			return err
		}

		if pending != nil {
			return s.store.Pending.Delete(ctx, b.ID, pending.ID)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create admin member: %w", err)
	}

	logger.WithBusiness(ctx, b.ID).Info("Admin joined via system code", "userID", req.UserID, "elevated", elevated)
	publish(ctx, s.publisher, events.New(events.MemberJoined, b.ID, m))
	return &domain.JoinResult{Outcome: domain.JoinOutcomeActive, Member: m}, nil
}

func (s *membershipService) joinPending(ctx context.Context, b *domain.Business, req JoinRequest) (*domain.JoinResult, error) {
	if _, err := s.store.Members.Get(ctx, b.ID, req.UserID); err == nil {
		return nil, fmt.Errorf("user %s is already a member: %w", req.UserID, domain.ErrAlreadyExists)
	} else if !errors.Is(err, domain.ErrMemberNotFound) {
		return nil, fmt.Errorf("failed to check membership: %w", err)
	}

	existing, err := s.store.Pending.GetByUser(ctx, b.ID, req.UserID)
	if err == nil {
		return &domain.JoinResult{Outcome: domain.JoinOutcomePending, Pending: existing}, nil
	}
	if !errors.Is(err, domain.ErrMemberNotFound) {
		return nil, fmt.Errorf("failed to check pending requests: %w", err)
	}

	p := &domain.PendingMember{
		ID:            uuid.NewString(),
		BusinessID:    b.ID,
		UserID:        req.UserID,
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		Email:         req.Email,
		Phone:         req.Phone,
		RequestedRole: req.RequestedRole,
		JoinedAt:      s.now(),
	}
	if err := s.store.Pending.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create pending member: %w", err)
	}

	logger.WithBusiness(ctx, b.ID).Info("Join request queued", "userID", req.UserID, "requestedRole", req.RequestedRole)
	publish(ctx, s.publisher, events.New(events.MemberJoined, b.ID, p))
	return &domain.JoinResult{Outcome: domain.JoinOutcomePending, Pending: p}, nil
}

func (s *membershipService) ApproveMember(ctx context.Context, businessID, pendingID, actorUserID string) (*domain.Member, error) {
	logger.EnterMethod("membershipService.ApproveMember", "businessID", businessID, "pendingID", pendingID, "actor", actorUserID)

	if err := s.requireAdmin(ctx, businessID, actorUserID); err != nil {
		logger.ExitMethodWithError("membershipService.ApproveMember", err)
		return nil, err
	}
	b, err := s.store.Businesses.GetByID(ctx, businessID)
	if err != nil {
		logger.ExitMethodWithError("membershipService.ApproveMember", err)
		return nil, fmt.Errorf("failed to get business: %w", err)
	}

	var m *domain.Member
	err = s.store.RunInTx(ctx, func(ctx context.Context) error {
		p, err := s.store.Pending.GetByID(ctx, businessID, pendingID)
		if err != nil {
			return err
		}
		m = &domain.Member{
			BusinessID: businessID,
			UserID:     p.UserID,
			FirstName:  p.FirstName,
			LastName:   p.LastName,
			Email:      p.Email,
			Phone:      p.Phone,
			Role:       p.RequestedRole,
			Status:     domain.MemberStatusActive,
			ApprovedBy: actorUserID,
			JoinedAt:   s.now(),
		}
		if err := s.store.Members.Create(ctx, m); err != nil {
			return err
		}
		return s.store.Pending.Delete(ctx, businessID, pendingID)
	})
	if err != nil {
		logger.ExitMethodWithError("membershipService.ApproveMember", err, "pendingID", pendingID)
		return nil, fmt.Errorf("failed to approve member: %w", err)
	}

	logger.WithBusiness(ctx, businessID).Info("Member approved", "userID", m.UserID, "role", m.Role, "approvedBy", actorUserID)
	if err := s.notifier.NotifyApproved(ctx, b, m); err != nil {
		logger.Warn("Failed to notify approved member", "userID", m.UserID, "error", err)
	}
	publish(ctx, s.publisher, events.New(events.MemberApproved, businessID, m))

	logger.ExitMethod("membershipService.ApproveMember", "userID", m.UserID)
	return m, nil
}

// RejectMember discards a pending request. Rejecting a request that is
// already gone succeeds without side effects.
func (s *membershipService) RejectMember(ctx context.Context, businessID, pendingID, actorUserID string) error {
	logger.EnterMethod("membershipService.RejectMember", "businessID", businessID, "pendingID", pendingID, "actor", actorUserID)

	if err := s.requireAdmin(ctx, businessID, actorUserID); err != nil {
		logger.ExitMethodWithError("membershipService.RejectMember", err)
		return err
	}
	b, err := s.store.Businesses.GetByID(ctx, businessID)
	if err != nil {
		logger.ExitMethodWithError("membershipService.RejectMember", err)
		return fmt.Errorf("failed to get business: %w", err)
	}

	p, err := s.store.Pending.GetByID(ctx, businessID, pendingID)
	if errors.Is(err, domain.ErrMemberNotFound) {
		logger.ExitMethod("membershipService.RejectMember", "pendingID", pendingID, "changed", false)
		return nil
	}
	if err != nil {
		logger.ExitMethodWithError("membershipService.RejectMember", err)
		return fmt.Errorf("failed to get pending member: %w", err)
	}
	if err := s.store.Pending.Delete(ctx, businessID, pendingID); err != nil {
		logger.ExitMethodWithError("membershipService.RejectMember", err)
		return fmt.Errorf("failed to reject member: %w", err)
	}

	logger.WithBusiness(ctx, businessID).Info("Member rejected", "userID", p.UserID, "rejectedBy", actorUserID)
	if err := s.notifier.NotifyRejected(ctx, b, p); err != nil {
		logger.Warn("Failed to notify rejected member", "userID", p.UserID, "error", err)
	}
	publish(ctx, s.publisher, events.New(events.MemberRejected, businessID, map[string]string{
		"user_id":     p.UserID,
		"rejected_by": actorUserID,
	}))

	logger.ExitMethod("membershipService.RejectMember", "pendingID", pendingID, "changed", true)
	return nil
}

func (s *membershipService) ListPendingMembers(ctx context.Context, businessID, actorUserID string) ([]domain.PendingMember, error) {
	if err := s.requireAdmin(ctx, businessID, actorUserID); err != nil {
		return nil, err
	}
	pending, err := s.store.Pending.ListByBusiness(ctx, businessID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending members: %w", err)
	}
	return pending, nil
}

func (s *membershipService) ListMembers(ctx context.Context, businessID string) ([]domain.Member, error) {
	members, err := s.store.Members.ListByBusiness(ctx, businessID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	return members, nil
}

func (s *membershipService) requireAdmin(ctx context.Context, businessID, userID string) error {
	ok, err := s.authorizer.IsBusinessAdmin(ctx, businessID, userID)
	if err != nil {
		return fmt.Errorf("failed to check admin authority: %w", err)
	}
	if !ok {
		return domain.ErrNotBusinessAdmin
	}
	return nil
}
