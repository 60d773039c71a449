package memory

import (
	"cmp"
	"context"
	"slices"

	"bizops-backend/internal/domain"
)

type businessRepo struct{ s *Store }

func (r *businessRepo) Create(ctx context.Context, b *domain.Business) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.businesses[b.ID]; exists {
		return domain.ErrAlreadyExists
	}
	for _, e := range r.s.businesses {
		if e.BusinessCode == b.BusinessCode || e.SystemCode == b.SystemCode {
			return domain.ErrAlreadyExists
		}
	}
	r.s.businesses[b.ID] = *b
	record(ctx, func() { delete(r.s.businesses, b.ID) })
	return nil
}

func (r *businessRepo) GetByID(_ context.Context, id string) (*domain.Business, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	b, ok := r.s.businesses[id]
	if !ok {
		return nil, domain.ErrBusinessNotFound
	}
	return &b, nil
}

func (r *businessRepo) GetByBusinessCode(_ context.Context, code string) (*domain.Business, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, b := range r.s.businesses {
		if b.BusinessCode == code {
			return &b, nil
		}
	}
	return nil, domain.ErrBusinessNotFound
}

func (r *businessRepo) CodeInUse(_ context.Context, code string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, b := range r.s.businesses {
		if b.BusinessCode == code || b.SystemCode == code {
			return true, nil
		}
	}
	return false, nil
}

func (r *businessRepo) UpdateCodes(ctx context.Context, id, businessCode, systemCode string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	b, ok := r.s.businesses[id]
	if !ok {
		return domain.ErrBusinessNotFound
	}
	for _, e := range r.s.businesses {
		if e.ID != id && (e.BusinessCode == businessCode || e.SystemCode == systemCode) {
			return domain.ErrAlreadyExists
		}
	}
	prev := b
	b.BusinessCode, b.SystemCode = businessCode, systemCode
	r.s.businesses[id] = b
	record(ctx, func() { r.s.businesses[id] = prev })
	return nil
}

func (r *businessRepo) List(_ context.Context) ([]domain.Business, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]domain.Business, 0, len(r.s.businesses))
	for _, b := range r.s.businesses {
		out = append(out, b)
	}
	slices.SortFunc(out, func(a, b domain.Business) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

type pendingRepo struct{ s *Store }

func (r *pendingRepo) Create(ctx context.Context, p *domain.PendingMember) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	k := key(p.BusinessID, p.ID)
	if _, exists := r.s.pending[k]; exists {
		return domain.ErrAlreadyExists
	}
	for _, e := range r.s.pending {
		if e.BusinessID == p.BusinessID && e.UserID == p.UserID {
			return domain.ErrAlreadyExists
		}
	}
	r.s.pending[k] = *p
	record(ctx, func() { delete(r.s.pending, k) })
	return nil
}

func (r *pendingRepo) GetByID(_ context.Context, businessID, id string) (*domain.PendingMember, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	p, ok := r.s.pending[key(businessID, id)]
	if !ok {
		return nil, domain.ErrMemberNotFound
	}
	return &p, nil
}

func (r *pendingRepo) GetByUser(_ context.Context, businessID, userID string) (*domain.PendingMember, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, p := range r.s.pending {
		if p.BusinessID == businessID && p.UserID == userID {
			return &p, nil
		}
	}
	return nil, domain.ErrMemberNotFound
}

func (r *pendingRepo) ListByBusiness(_ context.Context, businessID string) ([]domain.PendingMember, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []domain.PendingMember
	for _, p := range r.s.pending {
		if p.BusinessID == businessID {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b domain.PendingMember) int {
		return cmp.Or(a.JoinedAt.Compare(b.JoinedAt), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

func (r *pendingRepo) Delete(ctx context.Context, businessID, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	k := key(businessID, id)
	prev, ok := r.s.pending[k]
	if !ok {
		return nil
	}
	delete(r.s.pending, k)
	record(ctx, func() { r.s.pending[k] = prev })
	return nil
}

type memberRepo struct{ s *Store }

func (r *memberRepo) Create(ctx context.Context, m *domain.Member) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	k := key(m.BusinessID, m.UserID)
	if _, exists := r.s.members[k]; exists {
		return domain.ErrAlreadyExists
	}
	r.s.members[k] = *m
	record(ctx, func() { delete(r.s.members, k) })
	return nil
}

func (r *memberRepo) Get(_ context.Context, businessID, userID string) (*domain.Member, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	m, ok := r.s.members[key(businessID, userID)]
	if !ok {
		return nil, domain.ErrMemberNotFound
	}
	return &m, nil
}

func (r *memberRepo) UpdateRole(ctx context.Context, businessID, userID string, role domain.MemberRole) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	k := key(businessID, userID)
	m, ok := r.s.members[k]
	if !ok {
		return domain.ErrMemberNotFound
	}
	prev := m
	m.Role = role
	r.s.members[k] = m
	record(ctx, func() { r.s.members[k] = prev })
	return nil
}

func (r *memberRepo) ListByBusiness(_ context.Context, businessID string) ([]domain.Member, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []domain.Member
	for _, m := range r.s.members {
		if m.BusinessID == businessID {
			out = append(out, m)
		}
	}
	slices.SortFunc(out, func(a, b domain.Member) int {
		return cmp.Or(a.JoinedAt.Compare(b.JoinedAt), cmp.Compare(a.UserID, b.UserID))
	})
	return out, nil
}
