// Package testkit holds in-memory stand-ins for the Postgres repository and
// the file store, used by workflow and handler tests.
package testkit

import (
	"context"
	"sort"
	"sync"
	"time"

	"semaphore/classroom/internal/classes"
	"semaphore/classroom/internal/enrollment"
	"semaphore/classroom/internal/exercise"
	"semaphore/classroom/internal/model"
	"semaphore/classroom/internal/operations"
)

type state struct {
	profiles    map[string]model.Profile
	classes     map[string]model.Class
	memberships []model.Membership
	exercises   map[string]model.Exercise
	submissions []model.Submission
	seq         int64
}

func (s state) clone() state {
	out := state{
		profiles:    make(map[string]model.Profile, len(s.profiles)),
		classes:     make(map[string]model.Class, len(s.classes)),
		memberships: append([]model.Membership(nil), s.memberships...),
		exercises:   make(map[string]model.Exercise, len(s.exercises)),
		submissions: append([]model.Submission(nil), s.submissions...),
		seq:         s.seq,
	}
	for k, v := range s.profiles {
		out.profiles[k] = v
	}
	for k, v := range s.classes {
		out.classes[k] = v
	}
	for k, v := range s.exercises {
		out.exercises[k] = v
	}
	return out
}

// Memory implements every store the workflows need. Locked sections are
// serialized and rolled back when their callback fails.
type Memory struct {
	txMu sync.Mutex
	mu   sync.Mutex
	st   state
}

func NewMemory() *Memory {
	return &Memory{st: state{
		profiles:  map[string]model.Profile{},
		classes:   map[string]model.Class{},
		exercises: map[string]model.Exercise{},
	}}
}

func (m *Memory) locked(fn func() error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	m.mu.Lock()
	snapshot := m.st.clone()
	m.mu.Unlock()
	if err := fn(); err != nil {
		m.mu.Lock()
		m.st = snapshot
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *Memory) Enrollment() enrollment.Store { return enrollmentView{m} }
func (m *Memory) Classes() classes.Store       { return classesView{m} }
func (m *Memory) Exercises() exercise.Store    { return exercisesView{m} }

type enrollmentView struct{ *Memory }

func (v enrollmentView) WithClassLock(ctx context.Context, classID string, fn func(model.Class, enrollment.Tx) error) error {
	return v.locked(func() error {
		class, err := v.GetClass(ctx, classID)
		if err != nil {
			return err
		}
		return fn(class, v.Memory)
	})
}

type classesView struct{ *Memory }

func (v classesView) WithClassLock(ctx context.Context, classID string, fn func(model.Class, classes.Tx) error) error {
	return v.locked(func() error {
		class, err := v.GetClass(ctx, classID)
		if err != nil {
			return err
		}
		return fn(class, v.Memory)
	})
}

type exercisesView struct{ *Memory }

func (v exercisesView) WithExerciseLock(ctx context.Context, exerciseID string, fn func(model.Exercise, exercise.Tx) error) error {
	return v.locked(func() error {
		locked, err := v.GetExercise(ctx, exerciseID)
		if err != nil {
			return err
		}
		return fn(locked, v.Memory)
	})
}

// Profiles

func (m *Memory) GetProfileByIdentity(_ context.Context, identityID string) (model.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.st.profiles {
		if p.IdentityID == identityID {
			return p, nil
		}
	}
	return model.Profile{}, operations.NotFound(operations.ErrProfileNotFound)
}

func (m *Memory) GetProfiles(_ context.Context, profileIDs []string) (map[string]model.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]model.Profile, len(profileIDs))
	for _, id := range profileIDs {
		if p, ok := m.st.profiles[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (m *Memory) UpsertProfile(_ context.Context, p model.Profile) (model.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, existing := range m.st.profiles {
		if existing.IdentityID != p.IdentityID {
			continue
		}
		p.ID = id
		p.CreatedAt = existing.CreatedAt
		p.Avatar = existing.Avatar
		break
	}
	p.RegisteredClasses = nil
	m.st.profiles[p.ID] = p
	return p, nil
}

func (m *Memory) UpdateAvatar(_ context.Context, profileID, avatarURL string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.st.profiles[profileID]
	if !ok {
		return operations.NotFound(operations.ErrProfileNotFound)
	}
	p.Avatar = avatarURL
	p.UpdatedAt = at
	m.st.profiles[profileID] = p
	return nil
}

func (m *Memory) ListRegistrations(_ context.Context, profileID string) ([]model.Membership, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Membership{}
	for _, ms := range m.st.memberships {
		class, ok := m.st.classes[ms.ClassID]
		if ms.ProfileID == profileID && ok && class.DeletedAt == nil {
			out = append(out, ms)
		}
	}
	return out, nil
}

// Classes

func (m *Memory) CreateClass(_ context.Context, c model.Class) (model.Class, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.classes[c.ID] = c
	return c, nil
}

func (m *Memory) GetClass(_ context.Context, classID string) (model.Class, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.st.classes[classID]
	if !ok || c.DeletedAt != nil {
		return model.Class{}, operations.NotFound(operations.ErrClassNotFound)
	}
	return c, nil
}

func (m *Memory) GetClasses(_ context.Context, classIDs []string) (map[string]model.Class, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]model.Class, len(classIDs))
	for _, id := range classIDs {
		if c, ok := m.st.classes[id]; ok && c.DeletedAt == nil {
			out[id] = c
		}
	}
	return out, nil
}

func (m *Memory) ListClasses(_ context.Context, teacherID string) ([]model.Class, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Class{}
	for _, c := range m.st.classes {
		if c.DeletedAt != nil || (teacherID != "" && c.TeacherID != teacherID) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) UpdateClass(_ context.Context, c model.Class) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.classes[c.ID] = c
	return nil
}

func (m *Memory) SoftDeleteClass(_ context.Context, classID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.st.classes[classID]
	c.DeletedAt = &at
	c.UpdatedAt = at
	m.st.classes[classID] = c
	return nil
}

func (m *Memory) CountSeats(_ context.Context, classIDs []string) (map[string]model.SeatCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]model.SeatCount, len(classIDs))
	wanted := make(map[string]bool, len(classIDs))
	for _, id := range classIDs {
		wanted[id] = true
	}
	for _, ms := range m.st.memberships {
		if !wanted[ms.ClassID] {
			continue
		}
		seats := out[ms.ClassID]
		if ms.Status == model.MembershipApproved {
			seats.Approved++
		} else {
			seats.Pending++
		}
		out[ms.ClassID] = seats
	}
	return out, nil
}

// Memberships

func (m *Memory) GetMembership(_ context.Context, classID, profileID string) (model.Membership, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ms := range m.st.memberships {
		if ms.ClassID == classID && ms.ProfileID == profileID {
			return ms, true, nil
		}
	}
	return model.Membership{}, false, nil
}

func (m *Memory) ListMemberships(_ context.Context, classID string) ([]model.Membership, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Membership{}
	for _, ms := range m.st.memberships {
		if ms.ClassID == classID {
			out = append(out, ms)
		}
	}
	return out, nil
}

func (m *Memory) ListMembers(_ context.Context, classID string, status model.MembershipStatus) ([]model.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Member{}
	for _, ms := range m.st.memberships {
		if ms.ClassID != classID || ms.Status != status {
			continue
		}
		p := m.st.profiles[ms.ProfileID]
		out = append(out, model.Member{Membership: ms, Username: p.Username, Email: p.Email, Avatar: p.Avatar})
	}
	return out, nil
}

func (m *Memory) InsertMembership(_ context.Context, ms model.Membership) (model.Membership, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.st.memberships {
		if existing.ClassID == ms.ClassID && existing.ProfileID == ms.ProfileID {
			return model.Membership{}, operations.Conflict(operations.ErrAlreadyPending)
		}
	}
	m.st.seq++
	ms.Seq = m.st.seq
	m.st.memberships = append(m.st.memberships, ms)
	return ms, nil
}

func (m *Memory) ApproveMembership(_ context.Context, classID, profileID string, at time.Time) (model.Membership, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, ms := range m.st.memberships {
		if ms.ClassID == classID && ms.ProfileID == profileID && ms.Status == model.MembershipPending {
			ms.Status = model.MembershipApproved
			ms.ApprovedAt = &at
			m.st.memberships[i] = ms
			return ms, nil
		}
	}
	return model.Membership{}, operations.NotFound(operations.ErrNotInQueue)
}

func (m *Memory) DeleteMembership(_ context.Context, classID, profileID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, ms := range m.st.memberships {
		if ms.ClassID == classID && ms.ProfileID == profileID {
			m.st.memberships = append(m.st.memberships[:i:i], m.st.memberships[i+1:]...)
			return nil
		}
	}
	return operations.NotFound(operations.ErrNotAMember)
}

// Exercises

func (m *Memory) CreateExercise(_ context.Context, e model.Exercise) (model.Exercise, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.exercises[e.ID] = e
	return e, nil
}

func (m *Memory) GetExercise(_ context.Context, exerciseID string) (model.Exercise, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.st.exercises[exerciseID]
	if !ok || e.DeletedAt != nil {
		return model.Exercise{}, operations.NotFound(operations.ErrExerciseNotFound)
	}
	return e, nil
}

func (m *Memory) GetExercises(_ context.Context, exerciseIDs []string) (map[string]model.Exercise, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]model.Exercise, len(exerciseIDs))
	for _, id := range exerciseIDs {
		if e, ok := m.st.exercises[id]; ok && e.DeletedAt == nil {
			out[id] = e
		}
	}
	return out, nil
}

func (m *Memory) ExerciseDeleted(_ context.Context, exerciseID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.st.exercises[exerciseID]
	return ok && e.DeletedAt != nil, nil
}

func (m *Memory) listExercises(keep func(model.Exercise) bool) []model.Exercise {
	out := []model.Exercise{}
	for _, e := range m.st.exercises {
		if e.DeletedAt == nil && keep(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *Memory) ListExercisesByClass(_ context.Context, classID string) ([]model.Exercise, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listExercises(func(e model.Exercise) bool { return e.ClassID == classID }), nil
}

func (m *Memory) ListExercisesByAuthor(_ context.Context, profileID string) ([]model.Exercise, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listExercises(func(e model.Exercise) bool {
		class, ok := m.st.classes[e.ClassID]
		return e.CreatedBy == profileID && ok && class.DeletedAt == nil
	}), nil
}

func (m *Memory) UpdateExercise(_ context.Context, e model.Exercise) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.exercises[e.ID] = e
	return nil
}

func (m *Memory) SoftDeleteExercise(_ context.Context, exerciseID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.st.exercises[exerciseID]
	e.DeletedAt = &at
	e.UpdatedAt = at
	e.Status = model.StatusClosed
	m.st.exercises[exerciseID] = e
	return nil
}

// Submissions

func (m *Memory) ListSubmissions(_ context.Context, exerciseID string) ([]model.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Submission{}
	for _, s := range m.st.submissions {
		if s.ExerciseID == exerciseID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *Memory) ListSubmissionsFor(_ context.Context, exerciseIDs []string) (map[string][]model.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wanted := make(map[string]bool, len(exerciseIDs))
	for _, id := range exerciseIDs {
		wanted[id] = true
	}
	out := make(map[string][]model.Submission, len(exerciseIDs))
	for _, s := range m.st.submissions {
		if wanted[s.ExerciseID] {
			out[s.ExerciseID] = append(out[s.ExerciseID], s)
		}
	}
	return out, nil
}

func (m *Memory) ListSubmissionsByStudent(_ context.Context, studentID string) ([]model.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Submission{}
	for _, s := range m.st.submissions {
		e, ok := m.st.exercises[s.ExerciseID]
		if s.StudentID == studentID && ok && e.DeletedAt == nil {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SubmittedAt.After(out[j].SubmittedAt) })
	return out, nil
}

func (m *Memory) FindStudentSubmission(_ context.Context, exerciseID, studentID string) (model.Submission, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.st.submissions {
		if s.ExerciseID == exerciseID && s.StudentID == studentID {
			return s, true, nil
		}
	}
	return model.Submission{}, false, nil
}

func (m *Memory) FindSubmission(_ context.Context, exerciseID, submissionID string) (model.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.st.submissions {
		if s.ID == submissionID && s.ExerciseID == exerciseID {
			return s, nil
		}
	}
	return model.Submission{}, operations.NotFound(operations.ErrSubmissionNotFound)
}

func (m *Memory) InsertSubmission(_ context.Context, s model.Submission) (model.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.st.submissions {
		if existing.ExerciseID == s.ExerciseID && existing.StudentID == s.StudentID {
			return model.Submission{}, operations.Conflict(operations.ErrAlreadySubmitted)
		}
	}
	m.st.submissions = append(m.st.submissions, s)
	return s, nil
}

func (m *Memory) UpdateSubmission(_ context.Context, s model.Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.st.submissions {
		if existing.ID == s.ID {
			existing.Grade = s.Grade
			existing.Feedback = s.Feedback
			existing.GradedAt = s.GradedAt
			m.st.submissions[i] = existing
			return nil
		}
	}
	return operations.NotFound(operations.ErrSubmissionNotFound)
}
