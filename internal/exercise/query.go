package exercise

import (
	"context"
	"sort"
	"strings"
	"time"

	"semaphore/classroom/internal/auth"
	"semaphore/classroom/internal/metrics"
	"semaphore/classroom/internal/model"
	"semaphore/classroom/internal/operations"
)

type ListQuery struct {
	Status string
	Type   string
	SortBy string
	Order  string
	PageQuery
}

type SubmissionQuery struct {
	Graded *bool
	SortBy string
	Order  string
}

type MyQuery struct {
	Status  string
	ClassID string
	SortBy  string
	Order   string
	PageQuery
}

type OverviewQuery struct {
	ClassID       string
	Status        string
	GradingStatus string
	SortBy        string
	Order         string
	PageQuery
}

type access int

const (
	accessNone access = iota
	accessStaff
	accessStudent
)

// classAccess decides how the actor may look at a class: as staff (owner or
// admin), as an enrolled student, or not at all.
func (s *Service) classAccess(ctx context.Context, actor auth.Actor, class model.Class) (access, error) {
	if actor.Owns(class.TeacherID) {
		return accessStaff, nil
	}
	if !actor.Can(auth.CapExerciseSubmit) {
		return accessNone, nil
	}
	membership, ok, err := s.store.GetMembership(ctx, class.ID, actor.ProfileID)
	if err != nil {
		return accessNone, err
	}
	if ok && membership.Status == model.MembershipApproved {
		return accessStudent, nil
	}
	return accessNone, nil
}

func (s *Service) ListByClass(ctx context.Context, actor auth.Actor, classID string, q ListQuery) (page SummaryPage, err error) {
	defer func() { metrics.Observe("exercise", "list_by_class", err) }()
	class, err := s.store.GetClass(ctx, classID)
	if err != nil {
		return SummaryPage{}, err
	}
	level, err := s.classAccess(ctx, actor, class)
	if err != nil {
		return SummaryPage{}, err
	}
	if level == accessNone {
		return SummaryPage{}, operations.Forbidden(operations.ErrForbidden)
	}
	exercises, err := s.store.ListExercisesByClass(ctx, classID)
	if err != nil {
		return SummaryPage{}, err
	}

	filtered := exercises[:0:0]
	for _, e := range exercises {
		if q.Status != "" && string(e.Status) != q.Status {
			continue
		}
		if q.Type != "" && string(e.Type) != q.Type {
			continue
		}
		filtered = append(filtered, e)
	}
	desc := !strings.EqualFold(q.Order, "asc")
	switch q.SortBy {
	case "dueDate":
		sortItems(filtered, desc, func(a, b model.Exercise) bool { return a.DueDate.Before(b.DueDate) })
	case "title":
		sortItems(filtered, desc, func(a, b model.Exercise) bool { return strings.ToLower(a.Title) < strings.ToLower(b.Title) })
	case "maxScore":
		sortItems(filtered, desc, func(a, b model.Exercise) bool { return a.MaxScore < b.MaxScore })
	default:
		sortItems(filtered, desc, func(a, b model.Exercise) bool { return a.CreatedAt.Before(b.CreatedAt) })
	}
	pageItems, pagination := paginate(filtered, q.PageQuery)

	ids := make([]string, 0, len(pageItems))
	for _, e := range pageItems {
		ids = append(ids, e.ID)
	}
	submissions, err := s.store.ListSubmissionsFor(ctx, ids)
	if err != nil {
		return SummaryPage{}, err
	}
	now := s.now().UTC()
	items := make([]Summary, 0, len(pageItems))
	for _, e := range pageItems {
		summary := summarize(e, now)
		subs := submissions[e.ID]
		if level == accessStaff {
			count := len(subs)
			graded := model.CountGraded(subs)
			summary.SubmissionCount = &count
			summary.GradedCount = &graded
		} else {
			summary.MySubmission = myStatus(subs, actor.ProfileID, e.DueDate)
		}
		items = append(items, summary)
	}
	return SummaryPage{Items: items, Pagination: pagination}, nil
}

// Get returns one exercise. Staff see every submission; a student sees only
// their own and receives the answer key only after submitting.
func (s *Service) Get(ctx context.Context, actor auth.Actor, classID, exerciseID string) (detail Detail, err error) {
	defer func() { metrics.Observe("exercise", "get", err) }()
	class, err := s.store.GetClass(ctx, classID)
	if err != nil {
		return Detail{}, err
	}
	level, err := s.classAccess(ctx, actor, class)
	if err != nil {
		return Detail{}, err
	}
	if level == accessNone {
		return Detail{}, operations.Forbidden(operations.ErrForbidden)
	}
	exercise, err := s.store.GetExercise(ctx, exerciseID)
	if err != nil {
		return Detail{}, err
	}
	if exercise.ClassID != classID {
		return Detail{}, operations.NotFound(operations.ErrExerciseNotFound)
	}
	now := s.now().UTC()

	if level == accessStaff {
		submissions, err := s.store.ListSubmissions(ctx, exerciseID)
		if err != nil {
			return Detail{}, err
		}
		views, err := s.submissionViews(ctx, exercise, submissions)
		if err != nil {
			return Detail{}, err
		}
		detail = detailOf(exercise, now, true)
		count := len(submissions)
		graded := model.CountGraded(submissions)
		detail.SubmissionCount = &count
		detail.GradedCount = &graded
		detail.Submissions = views
		return detail, nil
	}

	own, found, err := s.store.FindStudentSubmission(ctx, exerciseID, actor.ProfileID)
	if err != nil {
		return Detail{}, err
	}
	detail = detailOf(exercise, now, found)
	if found {
		view := submissionView(exercise, own, model.Profile{})
		detail.Submission = &view
		detail.MySubmission = myStatus([]model.Submission{own}, actor.ProfileID, exercise.DueDate)
	} else {
		detail.MySubmission = &MySubmissionStatus{}
	}
	return detail, nil
}

func (s *Service) ListSubmissions(ctx context.Context, actor auth.Actor, classID, exerciseID string, q SubmissionQuery) (list SubmissionList, err error) {
	defer func() { metrics.Observe("exercise", "list_submissions", err) }()
	if !actor.Can(auth.CapExerciseAuthor) {
		return SubmissionList{}, operations.Forbidden(operations.ErrForbidden)
	}
	exercise, err := s.store.GetExercise(ctx, exerciseID)
	if err != nil {
		return SubmissionList{}, err
	}
	if exercise.ClassID != classID {
		return SubmissionList{}, operations.NotFound(operations.ErrExerciseNotFound)
	}
	if !actor.Owns(exercise.CreatedBy) {
		return SubmissionList{}, operations.Forbidden(operations.ErrForbidden)
	}
	submissions, err := s.store.ListSubmissions(ctx, exerciseID)
	if err != nil {
		return SubmissionList{}, err
	}
	views, err := s.submissionViews(ctx, exercise, submissions)
	if err != nil {
		return SubmissionList{}, err
	}
	filtered := views[:0:0]
	for _, v := range views {
		if q.Graded != nil && v.HasGrade != *q.Graded {
			continue
		}
		filtered = append(filtered, v)
	}
	desc := !strings.EqualFold(q.Order, "asc")
	switch q.SortBy {
	case "grade":
		sortItems(filtered, desc, func(a, b SubmissionView) bool { return gradeValue(a.Grade) < gradeValue(b.Grade) })
	case "studentName":
		sortItems(filtered, desc, func(a, b SubmissionView) bool {
			return strings.ToLower(a.StudentName) < strings.ToLower(b.StudentName)
		})
	default:
		sortItems(filtered, desc, func(a, b SubmissionView) bool { return a.SubmittedAt.Before(b.SubmittedAt) })
	}

	summary := summarize(exercise, s.now().UTC())
	count := len(submissions)
	graded := model.CountGraded(submissions)
	summary.SubmissionCount = &count
	summary.GradedCount = &graded
	return SubmissionList{Exercise: summary, Submissions: filtered, Statistics: submissionStats(filtered)}, nil
}

func (s *Service) MySubmission(ctx context.Context, actor auth.Actor, exerciseID string) (out MySubmissionDetail, err error) {
	defer func() { metrics.Observe("exercise", "my_submission", err) }()
	if !actor.Can(auth.CapExerciseSubmit) {
		return MySubmissionDetail{}, operations.Forbidden(operations.ErrForbidden)
	}
	exercise, err := s.store.GetExercise(ctx, exerciseID)
	if err != nil {
		return MySubmissionDetail{}, err
	}
	if err := s.requireEnrolled(ctx, exercise.ClassID, actor.ProfileID); err != nil {
		return MySubmissionDetail{}, err
	}
	own, found, err := s.store.FindStudentSubmission(ctx, exerciseID, actor.ProfileID)
	if err != nil {
		return MySubmissionDetail{}, err
	}
	if !found {
		return MySubmissionDetail{}, operations.NotFound(operations.ErrSubmissionNotFound)
	}
	detail := detailOf(exercise, s.now().UTC(), true)
	detail.MySubmission = myStatus([]model.Submission{own}, actor.ProfileID, exercise.DueDate)
	return MySubmissionDetail{Exercise: detail, Submission: submissionView(exercise, own, model.Profile{})}, nil
}

func (s *Service) MySubmissions(ctx context.Context, actor auth.Actor, q MyQuery) (page MySubmissionPage, err error) {
	defer func() { metrics.Observe("exercise", "my_submissions", err) }()
	if !actor.Can(auth.CapExerciseSubmit) {
		return MySubmissionPage{}, operations.Forbidden(operations.ErrForbidden)
	}
	submissions, err := s.store.ListSubmissionsByStudent(ctx, actor.ProfileID)
	if err != nil {
		return MySubmissionPage{}, err
	}
	exerciseIDs := make([]string, 0, len(submissions))
	for _, sub := range submissions {
		exerciseIDs = append(exerciseIDs, sub.ExerciseID)
	}
	exercises, err := s.store.GetExercises(ctx, exerciseIDs)
	if err != nil {
		return MySubmissionPage{}, err
	}
	classIDs := make([]string, 0, len(exercises))
	for _, e := range exercises {
		classIDs = append(classIDs, e.ClassID)
	}
	classes, err := s.store.GetClasses(ctx, classIDs)
	if err != nil {
		return MySubmissionPage{}, err
	}

	rows := make([]MySubmissionRow, 0, len(submissions))
	for _, sub := range submissions {
		exercise, ok := exercises[sub.ExerciseID]
		if !ok {
			continue
		}
		if q.ClassID != "" && exercise.ClassID != q.ClassID {
			continue
		}
		row := MySubmissionRow{
			SubmissionID:  sub.ID,
			ExerciseID:    exercise.ID,
			ExerciseTitle: exercise.Title,
			ExerciseType:  exercise.Type,
			ClassID:       exercise.ClassID,
			ClassName:     classes[exercise.ClassID].Name,
			MaxScore:      exercise.MaxScore,
			DueDate:       exercise.DueDate,
			SubmittedAt:   sub.SubmittedAt,
			Grade:         sub.Grade,
			Feedback:      sub.Feedback,
			IsLate:        sub.IsLate(exercise.DueDate),
			HasGrade:      sub.IsGraded(),
		}
		switch q.Status {
		case "graded":
			if !row.HasGrade {
				continue
			}
		case "ungraded":
			if row.HasGrade {
				continue
			}
		case "late":
			if !row.IsLate {
				continue
			}
		case "ontime":
			if row.IsLate {
				continue
			}
		}
		rows = append(rows, row)
	}

	desc := !strings.EqualFold(q.Order, "asc")
	switch q.SortBy {
	case "grade":
		sortItems(rows, desc, func(a, b MySubmissionRow) bool { return gradeValue(a.Grade) < gradeValue(b.Grade) })
	case "exerciseTitle":
		sortItems(rows, desc, func(a, b MySubmissionRow) bool {
			return strings.ToLower(a.ExerciseTitle) < strings.ToLower(b.ExerciseTitle)
		})
	case "className":
		sortItems(rows, desc, func(a, b MySubmissionRow) bool {
			return strings.ToLower(a.ClassName) < strings.ToLower(b.ClassName)
		})
	case "dueDate":
		sortItems(rows, desc, func(a, b MySubmissionRow) bool { return a.DueDate.Before(b.DueDate) })
	default:
		sortItems(rows, desc, func(a, b MySubmissionRow) bool { return a.SubmittedAt.Before(b.SubmittedAt) })
	}

	stats := MySubmissionStats{Total: len(rows)}
	var sum float64
	for _, row := range rows {
		if row.HasGrade {
			stats.Graded++
			sum += *row.Grade
		}
		if row.IsLate {
			stats.Late++
		}
	}
	stats.Ungraded = stats.Total - stats.Graded
	if stats.Graded > 0 {
		avg := model.Round2(sum / float64(stats.Graded))
		stats.AverageGrade = &avg
	}
	pageRows, pagination := paginate(rows, q.PageQuery)
	return MySubmissionPage{Items: pageRows, Pagination: pagination, Statistics: stats}, nil
}

// Overview summarizes grading progress across every exercise the actor
// authored.
func (s *Service) Overview(ctx context.Context, actor auth.Actor, q OverviewQuery) (out Overview, err error) {
	defer func() { metrics.Observe("exercise", "overview", err) }()
	if !actor.Can(auth.CapExerciseAuthor) {
		return Overview{}, operations.Forbidden(operations.ErrForbidden)
	}
	exercises, err := s.store.ListExercisesByAuthor(ctx, actor.ProfileID)
	if err != nil {
		return Overview{}, err
	}
	ids := make([]string, 0, len(exercises))
	classIDs := make([]string, 0, len(exercises))
	for _, e := range exercises {
		ids = append(ids, e.ID)
		classIDs = append(classIDs, e.ClassID)
	}
	submissions, err := s.store.ListSubmissionsFor(ctx, ids)
	if err != nil {
		return Overview{}, err
	}
	classes, err := s.store.GetClasses(ctx, classIDs)
	if err != nil {
		return Overview{}, err
	}

	now := s.now().UTC()
	rows := make([]OverviewRow, 0, len(exercises))
	for _, e := range exercises {
		if q.ClassID != "" && e.ClassID != q.ClassID {
			continue
		}
		if q.Status != "" && string(e.Status) != q.Status {
			continue
		}
		row := overviewRow(e, classes[e.ClassID].Name, submissions[e.ID], now)
		switch q.GradingStatus {
		case "graded":
			if row.GradingStatus != model.FullyGraded {
				continue
			}
		case "ungraded":
			if row.GradingStatus != model.Ungraded {
				continue
			}
		case "partial":
			if row.GradingStatus != model.PartiallyGraded {
				continue
			}
		}
		rows = append(rows, row)
	}

	desc := !strings.EqualFold(q.Order, "asc")
	switch q.SortBy {
	case "title":
		sortItems(rows, desc, func(a, b OverviewRow) bool { return strings.ToLower(a.Title) < strings.ToLower(b.Title) })
	case "className":
		sortItems(rows, desc, func(a, b OverviewRow) bool { return strings.ToLower(a.ClassName) < strings.ToLower(b.ClassName) })
	case "submissionCount":
		sortItems(rows, desc, func(a, b OverviewRow) bool { return a.SubmissionCount < b.SubmissionCount })
	case "gradingProgress":
		sortItems(rows, desc, func(a, b OverviewRow) bool { return a.GradingProgress < b.GradingProgress })
	case "dueDate":
		sortItems(rows, desc, func(a, b OverviewRow) bool { return a.DueDate.Before(b.DueDate) })
	case "averageGrade":
		sortItems(rows, desc, func(a, b OverviewRow) bool { return gradeValue(a.AverageGrade) < gradeValue(b.AverageGrade) })
	default:
		sortItems(rows, desc, func(a, b OverviewRow) bool { return a.CreatedAt.Before(b.CreatedAt) })
	}

	stats := OverviewStats{TotalExercises: len(rows)}
	progress := 0.0
	for _, row := range rows {
		switch row.GradingStatus {
		case model.FullyGraded:
			stats.FullyGraded++
		case model.PartiallyGraded:
			stats.PartiallyGraded++
		default:
			stats.Ungraded++
		}
		stats.TotalSubmissions += row.SubmissionCount
		stats.GradedSubmissions += row.GradedCount
		progress += row.GradingProgress
	}
	if len(rows) > 0 {
		stats.AverageGradingProgress = model.Round2(progress / float64(len(rows)))
	}
	pageRows, pagination := paginate(rows, q.PageQuery)
	return Overview{Items: pageRows, Pagination: pagination, Statistics: stats}, nil
}

func (s *Service) submissionViews(ctx context.Context, exercise model.Exercise, submissions []model.Submission) ([]SubmissionView, error) {
	ids := make([]string, 0, len(submissions))
	for _, sub := range submissions {
		ids = append(ids, sub.StudentID)
	}
	profiles, err := s.store.GetProfiles(ctx, ids)
	if err != nil {
		return nil, err
	}
	views := make([]SubmissionView, 0, len(submissions))
	for _, sub := range submissions {
		views = append(views, submissionView(exercise, sub, profiles[sub.StudentID]))
	}
	return views, nil
}

func summarize(e model.Exercise, now time.Time) Summary {
	return Summary{
		ID:              e.ID,
		ClassID:         e.ClassID,
		Title:           e.Title,
		Description:     e.Description,
		Type:            e.Type,
		Subject:         e.Subject,
		MaxScore:        e.MaxScore,
		StartDate:       e.StartDate,
		DueDate:         e.DueDate,
		Status:          e.Status,
		CreatedAt:       e.CreatedAt,
		HasAttachments:  len(e.Attachments) > 0,
		AttachmentCount: len(e.Attachments),
		QuestionCount:   len(e.Questions),
		IsOverdue:       e.IsOverdue(now),
		DaysToDueDate:   model.DaysUntil(e.DueDate, now),
	}
}

func detailOf(e model.Exercise, now time.Time, revealAnswers bool) Detail {
	questions := make([]QuestionView, 0, len(e.Questions))
	for _, q := range e.Questions {
		view := QuestionView{Text: q.Text, Options: q.Options, Points: model.QuestionPoints(q)}
		if revealAnswers {
			view.CorrectAnswerIndices = q.CorrectAnswerIndices
			view.Explanation = q.Explanation
		}
		questions = append(questions, view)
	}
	attachments := e.Attachments
	if attachments == nil {
		attachments = []model.Attachment{}
	}
	return Detail{
		Summary:     summarize(e, now),
		Questions:   questions,
		Attachments: attachments,
		CreatedBy:   e.CreatedBy,
		UpdatedAt:   e.UpdatedAt,
	}
}

func submissionView(e model.Exercise, sub model.Submission, student model.Profile) SubmissionView {
	name := student.Username
	if name == "" {
		name = student.Email
	}
	return SubmissionView{
		ID:           sub.ID,
		ExerciseID:   sub.ExerciseID,
		StudentID:    sub.StudentID,
		StudentName:  name,
		StudentEmail: student.Email,
		SubmittedAt:  sub.SubmittedAt,
		Content:      sub.Content,
		FileURL:      sub.FileURL,
		Files:        sub.Files,
		Answers:      sub.Answers,
		Grade:        sub.Grade,
		Feedback:     sub.Feedback,
		GradedAt:     sub.GradedAt,
		IsLate:       sub.IsLate(e.DueDate),
		HasGrade:     sub.IsGraded(),
	}
}

func myStatus(submissions []model.Submission, studentID string, due time.Time) *MySubmissionStatus {
	for _, sub := range submissions {
		if sub.StudentID != studentID {
			continue
		}
		submittedAt := sub.SubmittedAt
		return &MySubmissionStatus{
			Submitted:   true,
			SubmittedAt: &submittedAt,
			Grade:       sub.Grade,
			IsLate:      sub.IsLate(due),
		}
	}
	return &MySubmissionStatus{}
}

func overviewRow(e model.Exercise, className string, submissions []model.Submission, now time.Time) OverviewRow {
	graded := model.CountGraded(submissions)
	row := OverviewRow{
		ID:              e.ID,
		Title:           e.Title,
		Type:            e.Type,
		ClassID:         e.ClassID,
		ClassName:       className,
		Status:          e.Status,
		MaxScore:        e.MaxScore,
		DueDate:         e.DueDate,
		CreatedAt:       e.CreatedAt,
		IsOverdue:       e.IsOverdue(now),
		SubmissionCount: len(submissions),
		GradedCount:     graded,
		UngradedCount:   len(submissions) - graded,
		GradingProgress: model.GradingProgress(len(submissions), graded),
		GradingStatus:   model.GradingStatusOf(len(submissions), graded),
	}
	if graded > 0 {
		sum := 0.0
		for _, sub := range submissions {
			if sub.IsGraded() {
				sum += *sub.Grade
			}
		}
		avg := model.Round2(sum / float64(graded))
		row.AverageGrade = &avg
	}
	return row
}

func submissionStats(views []SubmissionView) SubmissionStats {
	stats := SubmissionStats{Total: len(views)}
	var sum float64
	for _, v := range views {
		if !v.HasGrade {
			continue
		}
		grade := *v.Grade
		if stats.Graded == 0 || grade > *stats.MaxGrade {
			value := grade
			stats.MaxGrade = &value
		}
		if stats.Graded == 0 || grade < *stats.MinGrade {
			value := grade
			stats.MinGrade = &value
		}
		stats.Graded++
		sum += grade
	}
	stats.Ungraded = stats.Total - stats.Graded
	if stats.Graded > 0 {
		avg := model.Round2(sum / float64(stats.Graded))
		stats.AverageGrade = &avg
	}
	return stats
}

func gradeValue(grade *float64) float64 {
	if grade == nil {
		return -1
	}
	return *grade
}

func sortItems[T any](items []T, desc bool, less func(a, b T) bool) {
	sort.SliceStable(items, func(i, j int) bool {
		if desc {
			return less(items[j], items[i])
		}
		return less(items[i], items[j])
	})
}
