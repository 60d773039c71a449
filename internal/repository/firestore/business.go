package firestore

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"bizops-backend/internal/domain"
)

// businessRepo reserves every join code as joinCodes/{code} so that
// uniqueness holds across both code kinds and all businesses.
type businessRepo struct{ s *Store }

func (r *businessRepo) code(code string) *firestore.DocumentRef {
	return r.s.client.Collection("joinCodes").Doc(code)
}

func (r *businessRepo) Create(ctx context.Context, b *domain.Business) error {
	ref := r.s.business(b.ID)
	return r.s.write(ctx, func(tx *firestore.Transaction) error {
		if err := tx.Create(r.code(b.BusinessCode), codeDoc{BusinessID: b.ID, Kind: codeKindBusiness}); err != nil {
			return err
		}
		if err := tx.Create(r.code(b.SystemCode), codeDoc{BusinessID: b.ID, Kind: codeKindSystem}); err != nil {
			return err
		}
		return tx.Create(ref, businessDoc{
			Name: b.Name, Email: b.Email, Phone: b.Phone, Address: b.Address, OwnerUserID: b.OwnerUserID,
			BusinessCode: b.BusinessCode, SystemCode: b.SystemCode, CreatedAt: b.CreatedAt,
		})
	})
}

func (r *businessRepo) GetByID(ctx context.Context, id string) (*domain.Business, error) {
	snap, err := r.s.get(ctx, r.s.business(id))
	if err != nil {
		return nil, classify(err, domain.ErrBusinessNotFound)
	}
	var d businessDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, fmt.Errorf("failed to decode business %s: %w", id, err)
	}
	return d.toDomain(id), nil
}

func (r *businessRepo) GetByBusinessCode(ctx context.Context, code string) (*domain.Business, error) {
	snap, err := r.s.get(ctx, r.code(code))
	if err != nil {
		return nil, classify(err, domain.ErrBusinessNotFound)
	}
	var c codeDoc
	if err := snap.DataTo(&c); err != nil {
		return nil, err
	}
	if c.Kind != codeKindBusiness {
		return nil, domain.ErrBusinessNotFound
	}
	return r.GetByID(ctx, c.BusinessID)
}

func (r *businessRepo) CodeInUse(ctx context.Context, code string) (bool, error) {
	_, err := r.s.get(ctx, r.code(code))
	if err == nil {
		return true, nil
	}
	if err = classify(err, domain.ErrNotFound); errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	return false, err
}

func (r *businessRepo) UpdateCodes(ctx context.Context, id, businessCode, systemCode string) error {
	ref := r.s.business(id)
	return r.s.write(ctx, func(tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return classify(err, domain.ErrBusinessNotFound)
		}
		var d businessDoc
		if err := snap.DataTo(&d); err != nil {
			return err
		}
		if err := tx.Create(r.code(businessCode), codeDoc{BusinessID: id, Kind: codeKindBusiness}); err != nil {
			return err
		}
		if err := tx.Create(r.code(systemCode), codeDoc{BusinessID: id, Kind: codeKindSystem}); err != nil {
			return err
		}
		if err := tx.Delete(r.code(d.BusinessCode)); err != nil {
			return err
		}
		if err := tx.Delete(r.code(d.SystemCode)); err != nil {
			return err
		}
		return tx.Update(ref, []firestore.Update{
			{Path: "businessCode", Value: businessCode},
			{Path: "systemCode", Value: systemCode},
		})
	})
}

func (r *businessRepo) List(ctx context.Context) ([]domain.Business, error) {
	it := r.s.documents(ctx, r.s.client.Collection("businesses").OrderBy("createdAt", firestore.Asc))
	defer it.Stop()

	var out []domain.Business
	for {
		snap, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return out, nil
		}
		if err != nil {
			return nil, classify(err, nil)
		}
		var d businessDoc
		if err := snap.DataTo(&d); err != nil {
			return nil, err
		}
		out = append(out, *d.toDomain(snap.Ref.ID))
	}
}

type pendingRepo struct{ s *Store }

func (r *pendingRepo) col(businessID string) *firestore.CollectionRef {
	return r.s.sub(businessID, "pendingMembers")
}

func (r *pendingRepo) Create(ctx context.Context, p *domain.PendingMember) error {
	if _, err := r.GetByUser(ctx, p.BusinessID, p.UserID); err == nil {
		return domain.ErrAlreadyExists
	} else if !errors.Is(err, domain.ErrMemberNotFound) {
		return err
	}
	ref := r.col(p.BusinessID).Doc(p.ID)
	return r.s.write(ctx, func(tx *firestore.Transaction) error {
		return tx.Create(ref, pendingDoc{
			UserID: p.UserID, FirstName: p.FirstName, LastName: p.LastName, Email: p.Email,
			Phone: p.Phone, RequestedRole: string(p.RequestedRole), JoinedAt: p.JoinedAt,
		})
	})
}

func (r *pendingRepo) GetByID(ctx context.Context, businessID, id string) (*domain.PendingMember, error) {
	snap, err := r.s.get(ctx, r.col(businessID).Doc(id))
	if err != nil {
		return nil, classify(err, domain.ErrMemberNotFound)
	}
	var d pendingDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, err
	}
	return d.toDomain(businessID, id), nil
}

func (r *pendingRepo) GetByUser(ctx context.Context, businessID, userID string) (*domain.PendingMember, error) {
	it := r.s.documents(ctx, r.col(businessID).Where("userId", "==", userID).Limit(1))
	defer it.Stop()

	snap, err := it.Next()
	if errors.Is(err, iterator.Done) {
		return nil, domain.ErrMemberNotFound
	}
	if err != nil {
		return nil, classify(err, nil)
	}
	var d pendingDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, err
	}
	return d.toDomain(businessID, snap.Ref.ID), nil
}

func (r *pendingRepo) ListByBusiness(ctx context.Context, businessID string) ([]domain.PendingMember, error) {
	it := r.s.documents(ctx, r.col(businessID).OrderBy("joinedAt", firestore.Asc))
	defer it.Stop()

	var out []domain.PendingMember
	for {
		snap, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return out, nil
		}
		if err != nil {
			return nil, classify(err, nil)
		}
		var d pendingDoc
		if err := snap.DataTo(&d); err != nil {
			return nil, err
		}
		out = append(out, *d.toDomain(businessID, snap.Ref.ID))
	}
}

// Delete ignores missing documents, matching Firestore's own semantics.
func (r *pendingRepo) Delete(ctx context.Context, businessID, id string) error {
	ref := r.col(businessID).Doc(id)
	return r.s.write(ctx, func(tx *firestore.Transaction) error {
		return tx.Delete(ref)
	})
}

type memberRepo struct{ s *Store }

func (r *memberRepo) Create(ctx context.Context, m *domain.Member) error {
	ref := r.s.sub(m.BusinessID, "members").Doc(m.UserID)
	return r.s.write(ctx, func(tx *firestore.Transaction) error {
		return tx.Create(ref, memberDoc{
			FirstName: m.FirstName, LastName: m.LastName, Email: m.Email, Phone: m.Phone,
			Role: string(m.Role), Status: string(m.Status), ApprovedBy: m.ApprovedBy, JoinedAt: m.JoinedAt,
		})
	})
}

func (r *memberRepo) Get(ctx context.Context, businessID, userID string) (*domain.Member, error) {
	snap, err := r.s.get(ctx, r.s.sub(businessID, "members").Doc(userID))
	if err != nil {
		return nil, classify(err, domain.ErrMemberNotFound)
	}
	var d memberDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, err
	}
	return d.toDomain(businessID, userID), nil
}

func (r *memberRepo) UpdateRole(ctx context.Context, businessID, userID string, role domain.MemberRole) error {
	ref := r.s.sub(businessID, "members").Doc(userID)
	return r.s.write(ctx, func(tx *firestore.Transaction) error {
		if _, err := tx.Get(ref); err != nil {
			return classify(err, domain.ErrMemberNotFound)
		}
		return tx.Update(ref, []firestore.Update{{Path: "role", Value: string(role)}})
	})
}

func (r *memberRepo) ListByBusiness(ctx context.Context, businessID string) ([]domain.Member, error) {
	it := r.s.documents(ctx, r.s.sub(businessID, "members").OrderBy("joinedAt", firestore.Asc))
	defer it.Stop()

	var out []domain.Member
	for {
		snap, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return out, nil
		}
		if err != nil {
			return nil, classify(err, nil)
		}
		var d memberDoc
		if err := snap.DataTo(&d); err != nil {
			return nil, err
		}
		out = append(out, *d.toDomain(businessID, snap.Ref.ID))
	}
}
