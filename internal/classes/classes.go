package classes

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"semaphore/classroom/internal/auth"
	"semaphore/classroom/internal/metrics"
	"semaphore/classroom/internal/model"
	"semaphore/classroom/internal/operations"
)

type Store interface {
	CreateClass(ctx context.Context, class model.Class) (model.Class, error)
	GetClass(ctx context.Context, classID string) (model.Class, error)
	ListClasses(ctx context.Context, teacherID string) ([]model.Class, error)
	CountSeats(ctx context.Context, classIDs []string) (map[string]model.SeatCount, error)
	WithClassLock(ctx context.Context, classID string, fn func(model.Class, Tx) error) error
}

type Tx interface {
	ListMemberships(ctx context.Context, classID string) ([]model.Membership, error)
	UpdateClass(ctx context.Context, class model.Class) error
	SoftDeleteClass(ctx context.Context, classID string, at time.Time) error
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

// Input carries class fields. Nil fields are left untouched on update and
// take their zero value on create.
type Input struct {
	Name            *string
	Subject         *string
	Description     *string
	Schedule        []model.ScheduleSlot
	Location        *string
	MaxStudents     *int
	GradeLevel      *string
	PricePerSession *float64
}

type View struct {
	model.Class
	Seats model.SeatCount
}

func (s *Service) Create(ctx context.Context, actor auth.Actor, in Input) (view View, err error) {
	defer func() { metrics.Observe("classes", "create", err) }()
	if !actor.Can(auth.CapClassCreate) {
		return View{}, operations.Forbidden(operations.ErrForbidden)
	}
	var problems []string
	if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
		problems = append(problems, "name is required")
	}
	if in.Subject == nil || strings.TrimSpace(*in.Subject) == "" {
		problems = append(problems, "subject is required")
	}
	problems = append(problems, validateInput(in)...)
	if len(problems) > 0 {
		return View{}, operations.InvalidFields(problems)
	}

	now := s.now().UTC()
	class := model.Class{
		ID:        uuid.NewString(),
		TeacherID: actor.ProfileID,
		CreatedBy: actor.IdentityID,
		Schedule:  []model.ScheduleSlot{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	apply(&class, in)
	created, err := s.store.CreateClass(ctx, class)
	if err != nil {
		return View{}, err
	}
	return View{Class: created}, nil
}

// List scopes classes by role: teachers see the classes they own, everyone
// else sees every live class.
func (s *Service) List(ctx context.Context, actor auth.Actor) (views []View, err error) {
	defer func() { metrics.Observe("classes", "list", err) }()
	if !actor.Can(auth.CapClassRead) {
		return nil, operations.Forbidden(operations.ErrForbidden)
	}
	teacherID := ""
	if actor.Role == auth.RoleTeacher {
		teacherID = actor.ProfileID
	}
	list, err := s.store.ListClasses(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(list))
	for _, class := range list {
		ids = append(ids, class.ID)
	}
	seats, err := s.store.CountSeats(ctx, ids)
	if err != nil {
		return nil, err
	}
	views = make([]View, 0, len(list))
	for _, class := range list {
		views = append(views, View{Class: class, Seats: seats[class.ID]})
	}
	return views, nil
}

func (s *Service) Get(ctx context.Context, actor auth.Actor, classID string) (view View, err error) {
	defer func() { metrics.Observe("classes", "get", err) }()
	if !actor.Can(auth.CapClassRead) {
		return View{}, operations.Forbidden(operations.ErrForbidden)
	}
	class, err := s.store.GetClass(ctx, classID)
	if err != nil {
		return View{}, err
	}
	seats, err := s.store.CountSeats(ctx, []string{classID})
	if err != nil {
		return View{}, err
	}
	return View{Class: class, Seats: seats[classID]}, nil
}

func (s *Service) Update(ctx context.Context, actor auth.Actor, classID string, in Input) (view View, err error) {
	defer func() { metrics.Observe("classes", "update", err) }()
	if problems := validateInput(in); len(problems) > 0 {
		return View{}, operations.InvalidFields(problems)
	}
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return View{}, operations.InvalidFields([]string{"name must not be empty"})
	}
	if in.Subject != nil && strings.TrimSpace(*in.Subject) == "" {
		return View{}, operations.InvalidFields([]string{"subject must not be empty"})
	}
	err = s.store.WithClassLock(ctx, classID, func(class model.Class, tx Tx) error {
		if !actor.Can(auth.CapClassManage) || !actor.Owns(class.TeacherID) {
			return operations.Forbidden(operations.ErrForbidden)
		}
		memberships, err := tx.ListMemberships(ctx, classID)
		if err != nil {
			return err
		}
		seats := countSeats(memberships)
		if in.MaxStudents != nil && *in.MaxStudents < seats.Approved {
			return operations.Conflict(operations.ErrCapacityBelowRoster)
		}
		apply(&class, in)
		class.UpdatedAt = s.now().UTC()
		if err := tx.UpdateClass(ctx, class); err != nil {
			return err
		}
		view = View{Class: class, Seats: seats}
		return nil
	})
	return view, err
}

func (s *Service) Delete(ctx context.Context, actor auth.Actor, classID string) (err error) {
	defer func() { metrics.Observe("classes", "delete", err) }()
	return s.store.WithClassLock(ctx, classID, func(class model.Class, tx Tx) error {
		if !actor.Can(auth.CapClassManage) || !actor.Owns(class.TeacherID) {
			return operations.Forbidden(operations.ErrForbidden)
		}
		return tx.SoftDeleteClass(ctx, classID, s.now().UTC())
	})
}

func validateInput(in Input) []string {
	var problems []string
	if in.MaxStudents != nil && *in.MaxStudents < 1 {
		problems = append(problems, "maxStudents must be at least 1")
	}
	if in.PricePerSession != nil && *in.PricePerSession < 0 {
		problems = append(problems, "pricePerSession must not be negative")
	}
	for _, slot := range in.Schedule {
		if strings.TrimSpace(slot.DayOfWeek) == "" {
			problems = append(problems, "schedule dayOfWeek is required")
			break
		}
	}
	return problems
}

func apply(class *model.Class, in Input) {
	if in.Name != nil {
		class.Name = strings.TrimSpace(*in.Name)
	}
	if in.Subject != nil {
		class.Subject = strings.TrimSpace(*in.Subject)
	}
	if in.Description != nil {
		class.Description = *in.Description
	}
	if in.Schedule != nil {
		class.Schedule = in.Schedule
	}
	if in.Location != nil {
		class.Location = *in.Location
	}
	if in.MaxStudents != nil {
		value := *in.MaxStudents
		class.MaxStudents = &value
	}
	if in.GradeLevel != nil {
		class.GradeLevel = *in.GradeLevel
	}
	if in.PricePerSession != nil {
		value := *in.PricePerSession
		class.PricePerSession = &value
	}
}

func countSeats(memberships []model.Membership) model.SeatCount {
	var seats model.SeatCount
	for _, m := range memberships {
		if m.Status == model.MembershipApproved {
			seats.Approved++
		} else {
			seats.Pending++
		}
	}
	return seats
}
