package exercise_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"semaphore/classroom/internal/auth"
	"semaphore/classroom/internal/exercise"
	"semaphore/classroom/internal/model"
	"semaphore/classroom/internal/operations"
	"semaphore/classroom/internal/storage"
	"semaphore/classroom/internal/testkit"
)

type fixture struct {
	mem     *testkit.Memory
	files   *testkit.Files
	orphans *testkit.Orphans
	clock   *testkit.Clock
	service *exercise.Service
	teacher auth.Actor
	class   model.Class
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := testkit.NewMemory()
	files := testkit.NewFiles()
	orphans := &testkit.Orphans{}
	clock := testkit.NewClock(time.Date(2026, 4, 6, 9, 0, 0, 0, time.UTC))
	f := &fixture{
		mem:     mem,
		files:   files,
		orphans: orphans,
		clock:   clock,
		service: exercise.NewService(mem.Exercises(), storage.NewUploader(files, orphans, 1<<20, clock.Now), clock.Now),
	}
	f.teacher = f.profile(t, auth.RoleTeacher, "teacher")
	class, err := mem.CreateClass(context.Background(), model.Class{
		ID:        uuid.NewString(),
		Name:      "Geometry",
		Subject:   "math",
		TeacherID: f.teacher.ProfileID,
		CreatedAt: clock.Now(),
		UpdatedAt: clock.Now(),
	})
	if err != nil {
		t.Fatalf("create class: %v", err)
	}
	f.class = class
	return f
}

func (f *fixture) profile(t *testing.T, role auth.Role, name string) auth.Actor {
	t.Helper()
	p, err := f.mem.UpsertProfile(context.Background(), model.Profile{
		ID:         uuid.NewString(),
		IdentityID: uuid.NewString(),
		Role:       string(role),
		Username:   name,
		Email:      name + "@example.com",
	})
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	return auth.Actor{IdentityID: p.IdentityID, ProfileID: p.ID, Role: role, Email: p.Email}
}

func (f *fixture) student(t *testing.T, name string) auth.Actor {
	t.Helper()
	s := f.profile(t, auth.RoleStudent, name)
	now := f.clock.Now()
	if _, err := f.mem.InsertMembership(context.Background(), model.Membership{
		ClassID: f.class.ID, ProfileID: s.ProfileID, Status: model.MembershipApproved, RequestedAt: now, ApprovedAt: &now,
	}); err != nil {
		t.Fatalf("enroll: %v", err)
	}
	return s
}

func (f *fixture) due(d time.Duration) *time.Time {
	at := f.clock.Now().Add(d)
	return &at
}

func floatPtr(v float64) *float64 { return &v }
func strPtr(v string) *string     { return &v }

func twoQuestionQuiz() []model.Question {
	return []model.Question{
		{Text: "2+2", Options: []string{"3", "4"}, CorrectAnswerIndices: []int{1}, Points: 5},
		{Text: "3+3", Options: []string{"6", "7"}, CorrectAnswerIndices: []int{0}, Points: 5},
	}
}

func (f *fixture) create(t *testing.T, draft exercise.Draft) model.Exercise {
	t.Helper()
	created, err := f.service.Create(context.Background(), f.teacher, f.class.ID, draft, nil)
	if err != nil {
		t.Fatalf("create exercise: %v", err)
	}
	return created
}

func TestMultipleChoicePartialScore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	quiz := f.create(t, exercise.Draft{
		Title: "Sums", Type: "multiple_choice", MaxScore: floatPtr(10), DueDate: f.due(48 * time.Hour), Questions: twoQuestionQuiz(),
	})
	student := f.student(t, "ana")

	sub, err := f.service.Submit(ctx, student, f.class.ID, quiz.ID, exercise.Answer{Answers: []int{1, 1}}, nil)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if sub.Grade == nil || *sub.Grade != 5 {
		t.Fatalf("expected grade 5, got %v", sub.Grade)
	}
}

func TestMultipleChoiceFullMarksEqualMaxScore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	questions := []model.Question{
		{Text: "a", Options: []string{"x", "y"}, CorrectAnswerIndices: []int{0}},
		{Text: "b", Options: []string{"x", "y"}, CorrectAnswerIndices: []int{1}},
		{Text: "c", Options: []string{"x", "y", "z"}, CorrectAnswerIndices: []int{1, 2}},
	}
	quiz := f.create(t, exercise.Draft{
		Title: "Thirds", Type: "multiple_choice", MaxScore: floatPtr(7), DueDate: f.due(time.Hour), Questions: questions,
	})
	student := f.student(t, "ben")

	sub, err := f.service.Submit(ctx, student, f.class.ID, quiz.ID, exercise.Answer{Answers: []int{0, 1, 2}}, nil)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if sub.Grade == nil || *sub.Grade != 7 {
		t.Fatalf("expected exactly 7, got %v", sub.Grade)
	}
	stored, _ := f.mem.GetExercise(ctx, quiz.ID)
	if stored.Status != model.StatusGraded {
		t.Fatalf("auto-graded sole submission should mark exercise graded, got %s", stored.Status)
	}
}

func TestSubmitRejectsBadAnswerSheets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	quiz := f.create(t, exercise.Draft{
		Title: "Sums", Type: "multiple_choice", DueDate: f.due(time.Hour), Questions: twoQuestionQuiz(),
	})
	student := f.student(t, "cal")

	_, err := f.service.Submit(ctx, student, f.class.ID, quiz.ID, exercise.Answer{Answers: []int{1}}, nil)
	if opErr, ok := operations.As(err); !ok || opErr.Kind != operations.KindInvalidInput || opErr.Code != operations.ErrAnswerCountMismatch {
		t.Fatalf("expected answer_count_mismatch, got %v", err)
	}
	if _, err := f.service.Submit(ctx, student, f.class.ID, quiz.ID, exercise.Answer{Answers: []int{1, 5}}, nil); !operations.IsCode(err, operations.ErrInvalidAnswer) {
		t.Fatalf("expected invalid_answer, got %v", err)
	}
}

func TestSubmitTwiceFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	essay := f.create(t, exercise.Draft{Title: "Essay", Type: "essay", DueDate: f.due(time.Hour)})
	student := f.student(t, "dee")

	if _, err := f.service.Submit(ctx, student, f.class.ID, essay.ID, exercise.Answer{Content: "first"}, nil); err != nil {
		t.Fatalf("submit: %v", err)
	}
	for _, answer := range []exercise.Answer{{Content: "second"}, {}} {
		if _, err := f.service.Submit(ctx, student, f.class.ID, essay.ID, answer, nil); !operations.IsCode(err, operations.ErrAlreadySubmitted) {
			t.Fatalf("expected already_submitted, got %v", err)
		}
	}
}

func TestSubmitPreconditions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	essay := f.create(t, exercise.Draft{Title: "Essay", Type: "essay", DueDate: f.due(time.Hour)})
	upload := f.create(t, exercise.Draft{Title: "Upload", Type: "file_upload", DueDate: f.due(time.Hour)})
	student := f.student(t, "eve")
	outsider := f.profile(t, auth.RoleStudent, "out")

	if _, err := f.service.Submit(ctx, outsider, f.class.ID, essay.ID, exercise.Answer{Content: "x"}, nil); !operations.IsCode(err, operations.ErrNotAMember) {
		t.Fatalf("expected not_a_member, got %v", err)
	}
	if _, err := f.service.Submit(ctx, student, f.class.ID, essay.ID, exercise.Answer{Content: "  "}, nil); !operations.IsCode(err, operations.ErrMissingContent) {
		t.Fatalf("expected missing_content, got %v", err)
	}
	if _, err := f.service.Submit(ctx, student, f.class.ID, upload.ID, exercise.Answer{}, nil); !operations.IsCode(err, operations.ErrMissingFile) {
		t.Fatalf("expected missing_file, got %v", err)
	}
	if _, err := f.service.Update(ctx, f.teacher, upload.ID, exercise.Patch{Status: strPtr("closed")}, nil); err != nil {
		t.Fatalf("close: %v", err)
	}
	file := storage.File{Name: "work.pdf", MimeType: "application/pdf", Size: 3, Content: strings.NewReader("pdf")}
	if _, err := f.service.Submit(ctx, student, f.class.ID, upload.ID, exercise.Answer{}, []storage.File{file}); !operations.IsCode(err, operations.ErrExerciseClosed) {
		t.Fatalf("expected exercise_closed, got %v", err)
	}
	f.clock.Advance(2 * time.Hour)
	if _, err := f.service.Submit(ctx, student, f.class.ID, essay.ID, exercise.Answer{Content: "late"}, nil); !operations.IsCode(err, operations.ErrPastDue) {
		t.Fatalf("expected past_due, got %v", err)
	}
}

func TestDueDateUpdateRule(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	essay := f.create(t, exercise.Draft{Title: "Essay", Type: "essay", DueDate: f.due(time.Hour)})
	f.clock.Advance(24 * time.Hour)

	yesterday := f.clock.Now().Add(-24 * time.Hour)
	if _, err := f.service.Update(ctx, f.teacher, essay.ID, exercise.Patch{DueDate: &yesterday}, nil); !operations.IsCode(err, operations.ErrInvalidDueDate) {
		t.Fatalf("expected invalid_due_date, got %v", err)
	}
	tomorrow := f.clock.Now().Add(24 * time.Hour)
	updated, err := f.service.Update(ctx, f.teacher, essay.ID, exercise.Patch{DueDate: &tomorrow}, nil)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !updated.DueDate.Equal(tomorrow) {
		t.Fatalf("due date not applied: %v", updated.DueDate)
	}
}

func TestUpdateFreezesQuestionsOnceSubmitted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	quiz := f.create(t, exercise.Draft{Title: "Sums", Type: "multiple_choice", DueDate: f.due(time.Hour), Questions: twoQuestionQuiz()})
	if quiz.MaxScore != 10 {
		t.Fatalf("expected derived max score 10, got %v", quiz.MaxScore)
	}
	student := f.student(t, "fay")
	if _, err := f.service.Submit(ctx, student, f.class.ID, quiz.ID, exercise.Answer{Answers: []int{1, 0}}, nil); err != nil {
		t.Fatalf("submit: %v", err)
	}
	questions := twoQuestionQuiz()[:1]
	if _, err := f.service.Update(ctx, f.teacher, quiz.ID, exercise.Patch{Questions: &questions}, nil); !operations.IsCode(err, operations.ErrHasSubmissions) {
		t.Fatalf("expected has_submissions, got %v", err)
	}
	if _, err := f.service.Update(ctx, f.teacher, quiz.ID, exercise.Patch{Title: strPtr("Renamed")}, nil); err != nil {
		t.Fatalf("title change should be allowed: %v", err)
	}
}

func TestDeleteLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	used := f.create(t, exercise.Draft{Title: "Used", Type: "essay", DueDate: f.due(time.Hour)})
	unused := f.create(t, exercise.Draft{Title: "Unused", Type: "essay", DueDate: f.due(time.Hour)})
	student := f.student(t, "gus")
	if _, err := f.service.Submit(ctx, student, f.class.ID, used.ID, exercise.Answer{Content: "done"}, nil); err != nil {
		t.Fatalf("submit: %v", err)
	}

	if err := f.service.Delete(ctx, f.teacher, used.ID); !operations.IsCode(err, operations.ErrHasSubmissions) {
		t.Fatalf("expected has_submissions, got %v", err)
	}
	if err := f.service.Delete(ctx, f.teacher, unused.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := f.service.Get(ctx, f.teacher, f.class.ID, unused.ID); !operations.IsCode(err, operations.ErrExerciseNotFound) {
		t.Fatalf("expected exercise_not_found, got %v", err)
	}
	if err := f.service.Delete(ctx, f.teacher, unused.ID); !operations.IsCode(err, operations.ErrAlreadyDeleted) {
		t.Fatalf("expected already_deleted, got %v", err)
	}
}

func TestGradingMovesExerciseToGraded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	essay := f.create(t, exercise.Draft{Title: "Essay", Type: "essay", DueDate: f.due(time.Hour)})
	var subs []model.Submission
	for _, name := range []string{"hal", "ida"} {
		student := f.student(t, name)
		sub, err := f.service.Submit(ctx, student, f.class.ID, essay.ID, exercise.Answer{Content: name}, nil)
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
		subs = append(subs, sub)
	}

	if _, _, err := f.service.Grade(ctx, f.teacher, f.class.ID, essay.ID, subs[0].ID, exercise.GradeInput{Grade: floatPtr(11)}); !operations.IsCode(err, operations.ErrInvalidGrade) {
		t.Fatalf("expected invalid_grade, got %v", err)
	}
	_, status, err := f.service.Grade(ctx, f.teacher, f.class.ID, essay.ID, subs[0].ID, exercise.GradeInput{Grade: floatPtr(8), Feedback: strPtr("good")})
	if err != nil {
		t.Fatalf("grade: %v", err)
	}
	if status != model.StatusOpen {
		t.Fatalf("expected open with one ungraded submission, got %s", status)
	}
	graded, status, err := f.service.Grade(ctx, f.teacher, f.class.ID, essay.ID, subs[1].ID, exercise.GradeInput{Grade: floatPtr(6)})
	if err != nil {
		t.Fatalf("grade: %v", err)
	}
	if status != model.StatusGraded || graded.GradedAt == nil {
		t.Fatalf("expected graded status, got %s", status)
	}
	list, err := f.service.ListSubmissions(ctx, f.teacher, f.class.ID, essay.ID, exercise.SubmissionQuery{SortBy: "grade"})
	if err != nil {
		t.Fatalf("list submissions: %v", err)
	}
	stats := list.Statistics
	if stats.Graded != 2 || *stats.AverageGrade != 7 || *stats.MaxGrade != 8 || *stats.MinGrade != 6 {
		t.Fatalf("unexpected statistics: %+v", stats)
	}
	if list.Submissions[0].StudentName != "hal" {
		t.Fatalf("expected highest grade first, got %s", list.Submissions[0].StudentName)
	}
}

func TestStudentSeesAnswerKeyOnlyAfterSubmitting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	quiz := f.create(t, exercise.Draft{Title: "Sums", Type: "multiple_choice", DueDate: f.due(time.Hour), Questions: twoQuestionQuiz()})
	student := f.student(t, "jo")

	before, err := f.service.Get(ctx, student, f.class.ID, quiz.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if before.Questions[0].CorrectAnswerIndices != nil || before.MySubmission.Submitted {
		t.Fatalf("answer key leaked before submission")
	}
	if _, err := f.service.Submit(ctx, student, f.class.ID, quiz.ID, exercise.Answer{Answers: []int{1, 0}}, nil); err != nil {
		t.Fatalf("submit: %v", err)
	}
	after, err := f.service.Get(ctx, student, f.class.ID, quiz.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(after.Questions[0].CorrectAnswerIndices) != 1 || after.Submission == nil || after.Submissions != nil {
		t.Fatalf("expected own submission with answer key, got %+v", after)
	}
	outsider := f.profile(t, auth.RoleStudent, "out")
	if _, err := f.service.Get(ctx, outsider, f.class.ID, quiz.ID); !operations.IsCode(err, operations.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestCreateUploadFailureLeavesNoExercise(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.files.FailOn = "broken"
	files := []storage.File{
		{Name: "ok.pdf", MimeType: "application/pdf", Size: 2, Content: strings.NewReader("ok")},
		{Name: "broken.pdf", MimeType: "application/pdf", Size: 2, Content: strings.NewReader("no")},
	}
	_, err := f.service.Create(ctx, f.teacher, f.class.ID, exercise.Draft{Title: "Docs", Type: "essay", DueDate: f.due(time.Hour)}, files)
	if opErr, ok := operations.As(err); !ok || opErr.Kind != operations.KindUploadFailure {
		t.Fatalf("expected upload failure, got %v", err)
	}
	list, _ := f.mem.ListExercisesByClass(ctx, f.class.ID)
	if len(list) != 0 {
		t.Fatalf("no exercise should be stored, got %d", len(list))
	}
	if orphans := f.orphans.URLs(); len(orphans) != 1 || !strings.Contains(orphans[0], "ok.pdf") {
		t.Fatalf("expected first upload recorded as orphan, got %v", orphans)
	}
}

func TestOverviewAndMySubmissions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	quiz := f.create(t, exercise.Draft{Title: "Quiz", Type: "multiple_choice", DueDate: f.due(time.Hour), Questions: twoQuestionQuiz()})
	f.clock.Advance(time.Minute)
	essay := f.create(t, exercise.Draft{Title: "Essay", Type: "essay", DueDate: f.due(time.Hour)})
	f.clock.Advance(time.Minute)
	f.create(t, exercise.Draft{Title: "Empty", Type: "essay", DueDate: f.due(time.Hour)})
	student := f.student(t, "kai")

	if _, err := f.service.Submit(ctx, student, f.class.ID, quiz.ID, exercise.Answer{Answers: []int{1, 0}}, nil); err != nil {
		t.Fatalf("submit quiz: %v", err)
	}
	if _, err := f.service.Submit(ctx, student, f.class.ID, essay.ID, exercise.Answer{Content: "words"}, nil); err != nil {
		t.Fatalf("submit essay: %v", err)
	}

	overview, err := f.service.Overview(ctx, f.teacher, exercise.OverviewQuery{})
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	stats := overview.Statistics
	if stats.TotalExercises != 3 || stats.FullyGraded != 1 || stats.Ungraded != 2 || stats.TotalSubmissions != 2 || stats.GradedSubmissions != 1 {
		t.Fatalf("unexpected overview stats: %+v", stats)
	}
	if stats.AverageGradingProgress != 33.33 {
		t.Fatalf("expected 33.33 average progress, got %v", stats.AverageGradingProgress)
	}
	if overview.Items[0].Title != "Empty" {
		t.Fatalf("expected newest exercise first, got %s", overview.Items[0].Title)
	}
	graded, err := f.service.Overview(ctx, f.teacher, exercise.OverviewQuery{GradingStatus: "graded"})
	if err != nil || len(graded.Items) != 1 || graded.Items[0].ID != quiz.ID {
		t.Fatalf("graded filter: %+v %v", graded.Items, err)
	}

	mine, err := f.service.MySubmissions(ctx, student, exercise.MyQuery{Status: "ungraded"})
	if err != nil {
		t.Fatalf("my submissions: %v", err)
	}
	if mine.Statistics.Total != 1 || mine.Items[0].ExerciseID != essay.ID || mine.Items[0].ClassName != "Geometry" {
		t.Fatalf("unexpected my submissions: %+v", mine)
	}
	if _, err := f.service.Overview(ctx, student, exercise.OverviewQuery{}); !operations.IsCode(err, operations.ErrForbidden) {
		t.Fatalf("students cannot read the overview, got %v", err)
	}
}

func TestListByClassPaginates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, title := range []string{"a", "b", "c"} {
		f.create(t, exercise.Draft{Title: title, Type: "essay", DueDate: f.due(time.Hour)})
		f.clock.Advance(time.Second)
	}
	page, err := f.service.ListByClass(ctx, f.teacher, f.class.ID, exercise.ListQuery{
		SortBy: "title", Order: "asc", PageQuery: exercise.PageQuery{Page: 2, Limit: 2},
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].Title != "c" {
		t.Fatalf("unexpected page: %+v", page.Items)
	}
	p := page.Pagination
	if p.Total != 3 || p.TotalPages != 2 || p.HasNext || !p.HasPrev {
		t.Fatalf("unexpected pagination: %+v", p)
	}
	if *page.Items[0].SubmissionCount != 0 {
		t.Fatalf("staff listing should carry submission counts")
	}
}

// interleavedStore runs beforeLock once, right before the exercise row is
// locked, to simulate a write landing between a workflow's read and its lock.
type interleavedStore struct {
	exercise.Store
	beforeLock func()
}

func (s *interleavedStore) WithExerciseLock(ctx context.Context, exerciseID string, fn func(model.Exercise, exercise.Tx) error) error {
	if s.beforeLock != nil {
		hook := s.beforeLock
		s.beforeLock = nil
		hook()
	}
	return s.Store.WithExerciseLock(ctx, exerciseID, fn)
}

func (f *fixture) interleaved(beforeLock func()) *exercise.Service {
	store := &interleavedStore{Store: f.mem.Exercises(), beforeLock: beforeLock}
	return exercise.NewService(store, storage.NewUploader(f.files, f.orphans, 1<<20, f.clock.Now), f.clock.Now)
}

func TestSubmitChecksAnswersAgainstLockedQuestions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	quiz := f.create(t, exercise.Draft{Title: "Sums", Type: "multiple_choice", DueDate: f.due(time.Hour), Questions: twoQuestionQuiz()})
	student := f.student(t, "hal")

	threeQuestions := append(twoQuestionQuiz(), model.Question{Text: "1+1", Options: []string{"2", "3"}, CorrectAnswerIndices: []int{0}, Points: 5})
	racing := f.interleaved(func() {
		if _, err := f.service.Update(ctx, f.teacher, quiz.ID, exercise.Patch{Questions: &threeQuestions}, nil); err != nil {
			t.Fatalf("concurrent update: %v", err)
		}
	})

	_, err := racing.Submit(ctx, student, f.class.ID, quiz.ID, exercise.Answer{Answers: []int{1, 0}}, nil)
	if !operations.IsCode(err, operations.ErrAnswerCountMismatch) {
		t.Fatalf("expected answer_count_mismatch, got %v", err)
	}
	if _, found, err := f.mem.FindStudentSubmission(ctx, quiz.ID, student.ProfileID); err != nil || found {
		t.Fatalf("no submission should be stored, found=%v err=%v", found, err)
	}

	sub, err := f.service.Submit(ctx, student, f.class.ID, quiz.ID, exercise.Answer{Answers: []int{1, 0, 0}}, nil)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if sub.Grade == nil || *sub.Grade != 15 {
		t.Fatalf("expected grade 15 against the new questions, got %v", sub.Grade)
	}
}

func TestUpdateChecksDueDateAgainstLockedExercise(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	essay := f.create(t, exercise.Draft{Title: "Essay", Type: "essay", DueDate: f.due(time.Hour)})

	racing := f.interleaved(func() {
		if _, err := f.service.Update(ctx, f.teacher, essay.ID, exercise.Patch{DueDate: f.due(-time.Hour)}, nil); err != nil {
			t.Fatalf("concurrent update: %v", err)
		}
	})
	_, err := racing.Update(ctx, f.teacher, essay.ID, exercise.Patch{DueDate: f.due(-2 * time.Hour)}, nil)
	if !operations.IsCode(err, operations.ErrInvalidDueDate) {
		t.Fatalf("expected invalid_due_date, got %v", err)
	}
}

func TestMaxScoreCannotDropBelowExistingGrade(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	quiz := f.create(t, exercise.Draft{Title: "Sums", Type: "multiple_choice", DueDate: f.due(time.Hour), Questions: twoQuestionQuiz()})
	student := f.student(t, "ivy")
	if _, err := f.service.Submit(ctx, student, f.class.ID, quiz.ID, exercise.Answer{Answers: []int{1, 0}}, nil); err != nil {
		t.Fatalf("submit: %v", err)
	}

	if _, err := f.service.Update(ctx, f.teacher, quiz.ID, exercise.Patch{MaxScore: floatPtr(4)}, nil); !operations.IsCode(err, operations.ErrInvalidGrade) {
		t.Fatalf("expected invalid_grade, got %v", err)
	}
	updated, err := f.service.Update(ctx, f.teacher, quiz.ID, exercise.Patch{MaxScore: floatPtr(12)}, nil)
	if err != nil {
		t.Fatalf("raising maxScore should be allowed: %v", err)
	}
	if updated.MaxScore != 12 {
		t.Fatalf("expected maxScore 12, got %v", updated.MaxScore)
	}
}
