package firestore

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"bizops-backend/internal/domain"
)

type roleRepo struct{ s *Store }

func (r *roleRepo) ref(businessID, id string) *firestore.DocumentRef {
	return r.s.sub(businessID, "approvalRoles").Doc(id)
}

func (r *roleRepo) Create(ctx context.Context, role *domain.ApprovalRole) error {
	ref := r.ref(role.BusinessID, role.ID)
	return r.s.write(ctx, func(tx *firestore.Transaction) error {
		return tx.Create(ref, toRoleDoc(role))
	})
}

func (r *roleRepo) GetByID(ctx context.Context, businessID, id string) (*domain.ApprovalRole, error) {
	snap, err := r.s.get(ctx, r.ref(businessID, id))
	if err != nil {
		return nil, classify(err, domain.ErrRoleNotFound)
	}
	var d roleDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, fmt.Errorf("failed to decode role %s: %w", id, err)
	}
	return d.toDomain(businessID, id), nil
}

func (r *roleRepo) List(ctx context.Context, businessID string) ([]domain.ApprovalRole, error) {
	it := r.s.documents(ctx, r.s.sub(businessID, "approvalRoles").OrderBy("name", firestore.Asc))
	defer it.Stop()

	var out []domain.ApprovalRole
	for {
		snap, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return out, nil
		}
		if err != nil {
			return nil, classify(err, nil)
		}
		var d roleDoc
		if err := snap.DataTo(&d); err != nil {
			return nil, err
		}
		out = append(out, *d.toDomain(businessID, snap.Ref.ID))
	}
}

func (r *roleRepo) Update(ctx context.Context, role *domain.ApprovalRole) error {
	ref := r.ref(role.BusinessID, role.ID)
	return r.s.write(ctx, func(tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return classify(err, domain.ErrRoleNotFound)
		}
		var prev roleDoc
		if err := snap.DataTo(&prev); err != nil {
			return err
		}
		d := toRoleDoc(role)
		d.CreatedAt = prev.CreatedAt
		return tx.Set(ref, d)
	})
}

func (r *roleRepo) Delete(ctx context.Context, businessID, id string) error {
	ref := r.ref(businessID, id)
	return r.s.write(ctx, func(tx *firestore.Transaction) error {
		if _, err := tx.Get(ref); err != nil {
			return classify(err, domain.ErrRoleNotFound)
		}
		return tx.Delete(ref)
	})
}

// approvalUserRepo keeps activeApprovers/{userId} pointing at the single
// active binding of each user.
type approvalUserRepo struct{ s *Store }

func (r *approvalUserRepo) ref(businessID, id string) *firestore.DocumentRef {
	return r.s.sub(businessID, "approvalUsers").Doc(id)
}

func (r *approvalUserRepo) activeRef(businessID, userID string) *firestore.DocumentRef {
	return r.s.sub(businessID, "activeApprovers").Doc(userID)
}

func (r *approvalUserRepo) Create(ctx context.Context, u *domain.ApprovalUser) error {
	ref := r.ref(u.BusinessID, u.ID)
	return r.s.write(ctx, func(tx *firestore.Transaction) error {
		if u.IsActive {
			if err := tx.Create(r.activeRef(u.BusinessID, u.UserID), map[string]any{"bindingId": u.ID}); err != nil {
				return err
			}
		}
		return tx.Create(ref, approvalUserDoc{
			UserID: u.UserID, UserName: u.UserName, UserEmail: u.UserEmail, RoleID: u.RoleID,
			AssignedAt: u.AssignedAt, AssignedBy: u.AssignedBy, IsActive: u.IsActive,
		})
	})
}

func (r *approvalUserRepo) GetByID(ctx context.Context, businessID, id string) (*domain.ApprovalUser, error) {
	snap, err := r.s.get(ctx, r.ref(businessID, id))
	if err != nil {
		return nil, classify(err, domain.ErrBindingNotFound)
	}
	var d approvalUserDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, err
	}
	return d.toDomain(businessID, id), nil
}

func (r *approvalUserRepo) GetActiveByUser(ctx context.Context, businessID, userID string) (*domain.ApprovalUser, error) {
	snap, err := r.s.get(ctx, r.activeRef(businessID, userID))
	if err != nil {
		return nil, classify(err, domain.ErrBindingNotFound)
	}
	id, err := snap.DataAt("bindingId")
	if err != nil {
		return nil, err
	}
	bindingID, _ := id.(string)
	return r.GetByID(ctx, businessID, bindingID)
}

func (r *approvalUserRepo) ListByRole(ctx context.Context, businessID, roleID string) ([]domain.ApprovalUser, error) {
	q := r.s.sub(businessID, "approvalUsers").
		Where("roleId", "==", roleID).
		Where("isActive", "==", true).
		OrderBy("assignedAt", firestore.Asc)
	it := r.s.documents(ctx, q)
	defer it.Stop()

	var out []domain.ApprovalUser
	for {
		snap, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return out, nil
		}
		if err != nil {
			return nil, classify(err, nil)
		}
		var d approvalUserDoc
		if err := snap.DataTo(&d); err != nil {
			return nil, err
		}
		out = append(out, *d.toDomain(businessID, snap.Ref.ID))
	}
}

func (r *approvalUserRepo) Deactivate(ctx context.Context, businessID, id string) error {
	ref := r.ref(businessID, id)
	return r.s.write(ctx, func(tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return classify(err, domain.ErrBindingNotFound)
		}
		var d approvalUserDoc
		if err := snap.DataTo(&d); err != nil {
			return err
		}
		if !d.IsActive {
			return domain.ErrBindingNotFound
		}
		if err := tx.Update(ref, []firestore.Update{{Path: "isActive", Value: false}}); err != nil {
			return err
		}
		return tx.Delete(r.activeRef(businessID, d.UserID))
	})
}
