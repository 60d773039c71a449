package memory

import (
	"cmp"
	"context"
	"slices"

	"bizops-backend/internal/domain"
)

type roleRepo struct{ s *Store }

func (r *roleRepo) Create(ctx context.Context, role *domain.ApprovalRole) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	k := key(role.BusinessID, role.ID)
	if _, exists := r.s.roles[k]; exists {
		return domain.ErrAlreadyExists
	}
	r.s.roles[k] = *role
	record(ctx, func() { delete(r.s.roles, k) })
	return nil
}

func (r *roleRepo) GetByID(_ context.Context, businessID, id string) (*domain.ApprovalRole, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	role, ok := r.s.roles[key(businessID, id)]
	if !ok {
		return nil, domain.ErrRoleNotFound
	}
	return &role, nil
}

func (r *roleRepo) List(_ context.Context, businessID string) ([]domain.ApprovalRole, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []domain.ApprovalRole
	for _, role := range r.s.roles {
		if role.BusinessID == businessID {
			out = append(out, role)
		}
	}
	slices.SortFunc(out, func(a, b domain.ApprovalRole) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

func (r *roleRepo) Update(ctx context.Context, role *domain.ApprovalRole) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	k := key(role.BusinessID, role.ID)
	prev, ok := r.s.roles[k]
	if !ok {
		return domain.ErrRoleNotFound
	}
	updated := *role
	updated.CreatedAt = prev.CreatedAt
	r.s.roles[k] = updated
	record(ctx, func() { r.s.roles[k] = prev })
	return nil
}

func (r *roleRepo) Delete(ctx context.Context, businessID, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	k := key(businessID, id)
	prev, ok := r.s.roles[k]
	if !ok {
		return domain.ErrRoleNotFound
	}
	delete(r.s.roles, k)
	record(ctx, func() { r.s.roles[k] = prev })
	return nil
}

type approvalUserRepo struct{ s *Store }

func (r *approvalUserRepo) Create(ctx context.Context, u *domain.ApprovalUser) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	k := key(u.BusinessID, u.ID)
	if _, exists := r.s.approvalUsers[k]; exists {
		return domain.ErrAlreadyExists
	}
	if u.IsActive {
		for _, e := range r.s.approvalUsers {
			if e.IsActive && e.BusinessID == u.BusinessID && e.UserID == u.UserID {
				return domain.ErrAlreadyExists
			}
		}
	}
	r.s.approvalUsers[k] = *u
	record(ctx, func() { delete(r.s.approvalUsers, k) })
	return nil
}

func (r *approvalUserRepo) GetByID(_ context.Context, businessID, id string) (*domain.ApprovalUser, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, ok := r.s.approvalUsers[key(businessID, id)]
	if !ok {
		return nil, domain.ErrBindingNotFound
	}
	return &u, nil
}

func (r *approvalUserRepo) GetActiveByUser(_ context.Context, businessID, userID string) (*domain.ApprovalUser, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, u := range r.s.approvalUsers {
		if u.IsActive && u.BusinessID == businessID && u.UserID == userID {
			return &u, nil
		}
	}
	return nil, domain.ErrBindingNotFound
}

func (r *approvalUserRepo) ListByRole(_ context.Context, businessID, roleID string) ([]domain.ApprovalUser, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []domain.ApprovalUser
	for _, u := range r.s.approvalUsers {
		if u.IsActive && u.BusinessID == businessID && u.RoleID == roleID {
			out = append(out, u)
		}
	}
	slices.SortFunc(out, func(a, b domain.ApprovalUser) int {
		return cmp.Or(a.AssignedAt.Compare(b.AssignedAt), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

func (r *approvalUserRepo) Deactivate(ctx context.Context, businessID, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	k := key(businessID, id)
	u, ok := r.s.approvalUsers[k]
	if !ok || !u.IsActive {
		return domain.ErrBindingNotFound
	}
	prev := u
	u.IsActive = false
	r.s.approvalUsers[k] = u
	record(ctx, func() { r.s.approvalUsers[k] = prev })
	return nil
}
