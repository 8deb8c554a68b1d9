// Package enrollment moves students between not enrolled, pending and
// enrolled for a class. Every mutation runs while the class is locked so the
// capacity checks at join and at approval time cannot race.
package enrollment

import (
	"context"
	"time"

	"semaphore/classroom/internal/auth"
	"semaphore/classroom/internal/metrics"
	"semaphore/classroom/internal/model"
	"semaphore/classroom/internal/operations"
)

type Store interface {
	GetClass(ctx context.Context, classID string) (model.Class, error)
	GetMembership(ctx context.Context, classID, profileID string) (model.Membership, bool, error)
	ListMembers(ctx context.Context, classID string, status model.MembershipStatus) ([]model.Member, error)
	WithClassLock(ctx context.Context, classID string, fn func(model.Class, Tx) error) error
}

// Tx is the set of membership writes available while a class is locked.
type Tx interface {
	ListMemberships(ctx context.Context, classID string) ([]model.Membership, error)
	InsertMembership(ctx context.Context, membership model.Membership) (model.Membership, error)
	ApproveMembership(ctx context.Context, classID, profileID string, at time.Time) (model.Membership, error)
	DeleteMembership(ctx context.Context, classID, profileID string) error
}

type Service struct {
	store Store
	now   func() time.Time
}

func NewService(store Store, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{store: store, now: now}
}

type JoinResult struct {
	Membership model.Membership
	Position   int
}

func (s *Service) RequestJoin(ctx context.Context, actor auth.Actor, classID string) (result JoinResult, err error) {
	defer func() { metrics.Observe("enrollment", "request_join", err) }()
	if !actor.Can(auth.CapClassJoin) {
		return JoinResult{}, operations.Forbidden(operations.ErrForbidden)
	}
	err = s.store.WithClassLock(ctx, classID, func(class model.Class, tx Tx) error {
		if class.TeacherID == actor.ProfileID {
			return operations.Conflict(operations.ErrOwnerCannotJoin)
		}
		memberships, err := tx.ListMemberships(ctx, classID)
		if err != nil {
			return err
		}
		pending := 0
		for _, m := range memberships {
			if m.ProfileID == actor.ProfileID {
				if m.Status == model.MembershipApproved {
					return operations.Conflict(operations.ErrAlreadyMember)
				}
				return operations.Conflict(operations.ErrAlreadyPending)
			}
			if m.Status == model.MembershipPending {
				pending++
			}
		}
		if !class.HasCapacityFor(len(memberships)) {
			return operations.CapacityExceeded()
		}
		created, err := tx.InsertMembership(ctx, model.Membership{
			ClassID:     classID,
			ProfileID:   actor.ProfileID,
			Status:      model.MembershipPending,
			RequestedAt: s.now().UTC(),
		})
		if err != nil {
			return err
		}
		result = JoinResult{Membership: created, Position: pending + 1}
		return nil
	})
	return result, err
}

func (s *Service) ListPending(ctx context.Context, actor auth.Actor, classID string) (members []model.Member, err error) {
	defer func() { metrics.Observe("enrollment", "list_pending", err) }()
	class, err := s.store.GetClass(ctx, classID)
	if err != nil {
		return nil, err
	}
	if !canManage(actor, class) {
		return nil, operations.Forbidden(operations.ErrForbidden)
	}
	return s.store.ListMembers(ctx, classID, model.MembershipPending)
}

func (s *Service) Approve(ctx context.Context, actor auth.Actor, classID, studentID string) (approved model.Membership, err error) {
	defer func() { metrics.Observe("enrollment", "approve", err) }()
	err = s.store.WithClassLock(ctx, classID, func(class model.Class, tx Tx) error {
		if !canManage(actor, class) {
			return operations.Forbidden(operations.ErrForbidden)
		}
		memberships, err := tx.ListMemberships(ctx, classID)
		if err != nil {
			return err
		}
		enrolled := 0
		queued := false
		for _, m := range memberships {
			if m.Status == model.MembershipApproved {
				enrolled++
				continue
			}
			if m.ProfileID == studentID {
				queued = true
			}
		}
		if !queued {
			return operations.NotFound(operations.ErrNotInQueue)
		}
		if !class.HasCapacityFor(enrolled) {
			return operations.CapacityExceeded()
		}
		approved, err = tx.ApproveMembership(ctx, classID, studentID, s.now().UTC())
		return err
	})
	return approved, err
}

// Leave withdraws the actor from the class whether the request is still
// pending or already approved.
func (s *Service) Leave(ctx context.Context, actor auth.Actor, classID string) (err error) {
	defer func() { metrics.Observe("enrollment", "leave", err) }()
	if !actor.Can(auth.CapClassJoin) {
		return operations.Forbidden(operations.ErrForbidden)
	}
	return s.store.WithClassLock(ctx, classID, func(_ model.Class, tx Tx) error {
		memberships, err := tx.ListMemberships(ctx, classID)
		if err != nil {
			return err
		}
		for _, m := range memberships {
			if m.ProfileID == actor.ProfileID {
				return tx.DeleteMembership(ctx, classID, actor.ProfileID)
			}
		}
		return operations.NotFound(operations.ErrNotAMember)
	})
}

// ListStudents returns the approved roster. The owning teacher, admins and
// enrolled students may read it.
func (s *Service) ListStudents(ctx context.Context, actor auth.Actor, classID string) (members []model.Member, err error) {
	defer func() { metrics.Observe("enrollment", "list_students", err) }()
	class, err := s.store.GetClass(ctx, classID)
	if err != nil {
		return nil, err
	}
	if !actor.Owns(class.TeacherID) {
		membership, ok, err := s.store.GetMembership(ctx, classID, actor.ProfileID)
		if err != nil {
			return nil, err
		}
		if !ok || membership.Status != model.MembershipApproved {
			return nil, operations.Forbidden(operations.ErrForbidden)
		}
	}
	return s.store.ListMembers(ctx, classID, model.MembershipApproved)
}

func canManage(actor auth.Actor, class model.Class) bool {
	return actor.Can(auth.CapClassManage) && actor.Owns(class.TeacherID)
}
