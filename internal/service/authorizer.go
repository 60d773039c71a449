package service

import (
	"context"
	"errors"

	"bizops-backend/internal/domain"
	"bizops-backend/internal/repository"
)

// MemberAuthorizer answers authority questions from the member records of
// a business.
type MemberAuthorizer struct {
	members repository.MemberRepository
}

func NewMemberAuthorizer(members repository.MemberRepository) *MemberAuthorizer {
	return &MemberAuthorizer{members: members}
}

func (a *MemberAuthorizer) lookup(ctx context.Context, businessID, userID string) (*domain.Member, error) {
	if userID == "" {
		return nil, nil
	}
	m, err := a.members.Get(ctx, businessID, userID)
	if errors.Is(err, domain.ErrMemberNotFound) {
		return nil, nil
	}
	return m, err
}

// IsMember reports whether userID is an active member of the business.
func (a *MemberAuthorizer) IsMember(ctx context.Context, businessID, userID string) (bool, error) {
	m, err := a.lookup(ctx, businessID, userID)
	if err != nil || m == nil {
		return false, err
	}
	return m.Status == domain.MemberStatusActive, nil
}

// IsBusinessAdmin reports whether userID is an active admin of the business.
func (a *MemberAuthorizer) IsBusinessAdmin(ctx context.Context, businessID, userID string) (bool, error) {
	m, err := a.lookup(ctx, businessID, userID)
	if err != nil || m == nil {
		return false, err
	}
	return m.Role == domain.MemberRoleAdmin && m.Status == domain.MemberStatusActive, nil
}
