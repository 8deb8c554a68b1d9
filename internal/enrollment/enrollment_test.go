package enrollment_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"semaphore/classroom/internal/auth"
	"semaphore/classroom/internal/enrollment"
	"semaphore/classroom/internal/model"
	"semaphore/classroom/internal/operations"
	"semaphore/classroom/internal/testkit"
)

type fixture struct {
	mem     *testkit.Memory
	service *enrollment.Service
	teacher auth.Actor
	class   model.Class
}

func newFixture(t *testing.T, maxStudents *int) fixture {
	t.Helper()
	mem := testkit.NewMemory()
	clock := testkit.NewClock(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	teacher := addActor(t, mem, auth.RoleTeacher, "teacher")
	class, err := mem.CreateClass(context.Background(), model.Class{
		ID:          uuid.NewString(),
		Name:        "Physics",
		Subject:     "physics",
		MaxStudents: maxStudents,
		TeacherID:   teacher.ProfileID,
		CreatedAt:   clock.Now(),
		UpdatedAt:   clock.Now(),
	})
	if err != nil {
		t.Fatalf("create class: %v", err)
	}
	return fixture{
		mem:     mem,
		service: enrollment.NewService(mem.Enrollment(), clock.Now),
		teacher: teacher,
		class:   class,
	}
}

func addActor(t *testing.T, mem *testkit.Memory, role auth.Role, name string) auth.Actor {
	t.Helper()
	profile, err := mem.UpsertProfile(context.Background(), model.Profile{
		ID:         uuid.NewString(),
		IdentityID: uuid.NewString(),
		Role:       string(role),
		Username:   name,
		Email:      name + "@example.com",
	})
	if err != nil {
		t.Fatalf("upsert profile: %v", err)
	}
	return auth.Actor{IdentityID: profile.IdentityID, ProfileID: profile.ID, Role: role, Email: profile.Email}
}

func intPtr(v int) *int { return &v }

func TestCapacityScenario(t *testing.T) {
	f := newFixture(t, intPtr(1))
	ctx := context.Background()
	a := addActor(t, f.mem, auth.RoleStudent, "a")
	b := addActor(t, f.mem, auth.RoleStudent, "b")

	joined, err := f.service.RequestJoin(ctx, a, f.class.ID)
	if err != nil {
		t.Fatalf("join a: %v", err)
	}
	if joined.Position != 1 || joined.Membership.Status != model.MembershipPending {
		t.Fatalf("unexpected join result: %+v", joined)
	}
	if _, err := f.service.Approve(ctx, f.teacher, f.class.ID, a.ProfileID); err != nil {
		t.Fatalf("approve a: %v", err)
	}
	students, err := f.service.ListStudents(ctx, f.teacher, f.class.ID)
	if err != nil {
		t.Fatalf("list students: %v", err)
	}
	pending, err := f.service.ListPending(ctx, f.teacher, f.class.ID)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(students) != 1 || students[0].ProfileID != a.ProfileID || len(pending) != 0 {
		t.Fatalf("expected roster [a] and empty queue, got %d/%d", len(students), len(pending))
	}
	if _, err := f.service.RequestJoin(ctx, b, f.class.ID); !operations.IsCode(err, operations.ErrCapacityExceeded) {
		t.Fatalf("expected capacity_exceeded, got %v", err)
	}
}

func TestJoinThenApproveMarksRegistrationApproved(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	student := addActor(t, f.mem, auth.RoleStudent, "s")

	if _, err := f.service.RequestJoin(ctx, student, f.class.ID); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := f.service.Approve(ctx, f.teacher, f.class.ID, student.ProfileID); err != nil {
		t.Fatalf("approve: %v", err)
	}
	registrations, err := f.mem.ListRegistrations(ctx, student.ProfileID)
	if err != nil {
		t.Fatalf("registrations: %v", err)
	}
	if len(registrations) != 1 {
		t.Fatalf("expected one registration, got %d", len(registrations))
	}
	if registrations[0].Status != model.MembershipApproved || registrations[0].ApprovedAt == nil {
		t.Fatalf("expected approved registration, got %+v", registrations[0])
	}
}

func TestLeaveRemovesPendingRequest(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	student := addActor(t, f.mem, auth.RoleStudent, "s")

	if _, err := f.service.RequestJoin(ctx, student, f.class.ID); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := f.service.Leave(ctx, student, f.class.ID); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if _, found, _ := f.mem.GetMembership(ctx, f.class.ID, student.ProfileID); found {
		t.Fatalf("expected membership to be removed")
	}
	registrations, _ := f.mem.ListRegistrations(ctx, student.ProfileID)
	if len(registrations) != 0 {
		t.Fatalf("expected no registrations, got %d", len(registrations))
	}
	if err := f.service.Leave(ctx, student, f.class.ID); !operations.IsCode(err, operations.ErrNotAMember) {
		t.Fatalf("expected not_a_member, got %v", err)
	}
}

func TestJoinConflicts(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	student := addActor(t, f.mem, auth.RoleStudent, "s")

	if _, err := f.service.RequestJoin(ctx, student, f.class.ID); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := f.service.RequestJoin(ctx, student, f.class.ID); !operations.IsCode(err, operations.ErrAlreadyPending) {
		t.Fatalf("expected already_pending, got %v", err)
	}
	if _, err := f.service.Approve(ctx, f.teacher, f.class.ID, student.ProfileID); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := f.service.RequestJoin(ctx, student, f.class.ID); !operations.IsCode(err, operations.ErrAlreadyMember) {
		t.Fatalf("expected already_member, got %v", err)
	}
	if _, err := f.service.Approve(ctx, f.teacher, f.class.ID, student.ProfileID); !operations.IsCode(err, operations.ErrNotInQueue) {
		t.Fatalf("expected not_in_queue, got %v", err)
	}

	owner := f.teacher
	owner.Role = auth.RoleStudent
	if _, err := f.service.RequestJoin(ctx, owner, f.class.ID); !operations.IsCode(err, operations.ErrOwnerCannotJoin) {
		t.Fatalf("expected owner_cannot_join, got %v", err)
	}
	if _, err := f.service.RequestJoin(ctx, f.teacher, f.class.ID); !operations.IsCode(err, operations.ErrForbidden) {
		t.Fatalf("expected teachers to be refused, got %v", err)
	}
	if _, err := f.service.RequestJoin(ctx, student, uuid.NewString()); !operations.IsCode(err, operations.ErrClassNotFound) {
		t.Fatalf("expected class_not_found, got %v", err)
	}
}

func TestQueuePositionsFollowInsertionOrder(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	for i, name := range []string{"a", "b", "c"} {
		student := addActor(t, f.mem, auth.RoleStudent, name)
		joined, err := f.service.RequestJoin(ctx, student, f.class.ID)
		if err != nil {
			t.Fatalf("join %s: %v", name, err)
		}
		if joined.Position != i+1 {
			t.Fatalf("expected position %d, got %d", i+1, joined.Position)
		}
	}
	pending, err := f.service.ListPending(ctx, f.teacher, f.class.ID)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 3 || pending[0].Username != "a" || pending[2].Username != "c" {
		t.Fatalf("unexpected queue: %+v", pending)
	}
}

func TestApproveRequiresOwnership(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	student := addActor(t, f.mem, auth.RoleStudent, "s")
	other := addActor(t, f.mem, auth.RoleTeacher, "other")
	admin := addActor(t, f.mem, auth.RoleAdmin, "admin")

	if _, err := f.service.RequestJoin(ctx, student, f.class.ID); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := f.service.Approve(ctx, other, f.class.ID, student.ProfileID); !operations.IsCode(err, operations.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := f.service.ListPending(ctx, student, f.class.ID); !operations.IsCode(err, operations.ErrForbidden) {
		t.Fatalf("expected forbidden for student, got %v", err)
	}
	if _, err := f.service.ListStudents(ctx, student, f.class.ID); !operations.IsCode(err, operations.ErrForbidden) {
		t.Fatalf("pending students may not read the roster, got %v", err)
	}
	if _, err := f.service.Approve(ctx, admin, f.class.ID, student.ProfileID); err != nil {
		t.Fatalf("admin approve: %v", err)
	}
	if _, err := f.service.ListStudents(ctx, student, f.class.ID); err != nil {
		t.Fatalf("enrolled student should read roster: %v", err)
	}
}

func TestConcurrentApprovalsNeverExceedCapacity(t *testing.T) {
	f := newFixture(t, intPtr(2))
	ctx := context.Background()
	var students []auth.Actor
	for _, name := range []string{"a", "b"} {
		student := addActor(t, f.mem, auth.RoleStudent, name)
		if _, err := f.service.RequestJoin(ctx, student, f.class.ID); err != nil {
			t.Fatalf("join %s: %v", name, err)
		}
		students = append(students, student)
	}
	// Shrink the class after the queue filled up.
	class, _ := f.mem.GetClass(ctx, f.class.ID)
	class.MaxStudents = intPtr(1)
	if err := f.mem.UpdateClass(ctx, class); err != nil {
		t.Fatalf("update class: %v", err)
	}

	var wg sync.WaitGroup
	errs := make([]error, len(students))
	for i, student := range students {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = f.service.Approve(ctx, f.teacher, f.class.ID, id)
		}(i, student.ProfileID)
	}
	wg.Wait()

	approved := 0
	for _, err := range errs {
		if err == nil {
			approved++
		} else if !operations.IsCode(err, operations.ErrCapacityExceeded) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if approved != 1 {
		t.Fatalf("expected one approval, got %d", approved)
	}
	roster, _ := f.mem.ListMembers(ctx, f.class.ID, model.MembershipApproved)
	queue, _ := f.mem.ListMembers(ctx, f.class.ID, model.MembershipPending)
	seen := map[string]bool{}
	for _, m := range roster {
		seen[m.ProfileID] = true
	}
	for _, m := range queue {
		if seen[m.ProfileID] {
			t.Fatalf("profile %s is both enrolled and pending", m.ProfileID)
		}
	}
}
