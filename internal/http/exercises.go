package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"semaphore/classroom/internal/exercise"
	"semaphore/classroom/internal/model"
	"semaphore/classroom/internal/operations"
)

type exerciseRequest struct {
	Title                *string           `json:"title"`
	Description          *string           `json:"description"`
	Type                 *string           `json:"type"`
	Subject              *string           `json:"subject"`
	MaxScore             *float64          `json:"maxScore"`
	StartDate            *time.Time        `json:"startDate"`
	DueDate              *time.Time        `json:"dueDate"`
	Status               *string           `json:"status"`
	Questions            *[]model.Question `json:"questions"`
	RemoveAttachmentURLs []string          `json:"removeAttachmentUrls"`
}

func (req exerciseRequest) draft() exercise.Draft {
	draft := exercise.Draft{
		Title:       deref(req.Title),
		Description: deref(req.Description),
		Type:        deref(req.Type),
		Subject:     deref(req.Subject),
		MaxScore:    req.MaxScore,
		StartDate:   req.StartDate,
		DueDate:     req.DueDate,
	}
	if req.Questions != nil {
		draft.Questions = *req.Questions
	}
	return draft
}

func (req exerciseRequest) patch() exercise.Patch {
	return exercise.Patch{
		Title:                req.Title,
		Description:          req.Description,
		Type:                 req.Type,
		Subject:              req.Subject,
		MaxScore:             req.MaxScore,
		StartDate:            req.StartDate,
		DueDate:              req.DueDate,
		Status:               req.Status,
		Questions:            req.Questions,
		RemoveAttachmentURLs: req.RemoveAttachmentURLs,
	}
}

type submitRequest struct {
	Content string `json:"content"`
	Answers []int  `json:"answers"`
}

type gradeRequest struct {
	Grade    *float64 `json:"grade"`
	Feedback *string  `json:"feedback"`
}

type exerciseResponse struct {
	ID          string               `json:"id"`
	ClassID     string               `json:"classId"`
	CreatedBy   string               `json:"createdBy"`
	Title       string               `json:"title"`
	Description string               `json:"description"`
	Type        model.ExerciseType   `json:"type"`
	Subject     string               `json:"subject"`
	MaxScore    float64              `json:"maxScore"`
	StartDate   *time.Time           `json:"startDate,omitempty"`
	DueDate     time.Time            `json:"dueDate"`
	Status      model.ExerciseStatus `json:"status"`
	Questions   []model.Question     `json:"questions"`
	Attachments []model.Attachment   `json:"attachments"`
	CreatedAt   time.Time            `json:"createdAt"`
	UpdatedAt   time.Time            `json:"updatedAt"`
}

type submissionResponse struct {
	ID          string             `json:"id"`
	ExerciseID  string             `json:"exerciseId"`
	StudentID   string             `json:"studentId"`
	SubmittedAt time.Time          `json:"submittedAt"`
	Content     string             `json:"content,omitempty"`
	FileURL     string             `json:"fileUrl,omitempty"`
	Files       []model.Attachment `json:"files"`
	Answers     []int              `json:"answers,omitempty"`
	Grade       *float64           `json:"grade"`
	Feedback    string             `json:"feedback,omitempty"`
	GradedAt    *time.Time         `json:"gradedAt,omitempty"`
}

type gradeResponse struct {
	Submission     submissionResponse   `json:"submission"`
	ExerciseStatus model.ExerciseStatus `json:"exerciseStatus"`
}

func (s *Server) handleCreateExercise(w http.ResponseWriter, r *http.Request) {
	var req exerciseRequest
	files, cleanup, err := s.readPayload(w, r, "files", exercise.MaxAttachmentFiles, &req)
	defer cleanup()
	if err != nil {
		writeOpError(w, "create exercise", err)
		return
	}
	created, err := s.exercises.Create(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "id"), req.draft(), files)
	if err != nil {
		writeOpError(w, "create exercise", err)
		return
	}
	writeOK(w, http.StatusCreated, "exercise created", mapExercise(created))
}

func (s *Server) handleUpdateExercise(w http.ResponseWriter, r *http.Request) {
	var req exerciseRequest
	files, cleanup, err := s.readPayload(w, r, "files", exercise.MaxAttachmentFiles, &req)
	defer cleanup()
	if err != nil {
		writeOpError(w, "update exercise", err)
		return
	}
	updated, err := s.exercises.Update(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "id"), req.patch(), files)
	if err != nil {
		writeOpError(w, "update exercise", err)
		return
	}
	writeOK(w, http.StatusOK, "exercise updated", mapExercise(updated))
}

func (s *Server) handleDeleteExercise(w http.ResponseWriter, r *http.Request) {
	if err := s.exercises.Delete(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeOpError(w, "delete exercise", err)
		return
	}
	writeOK(w, http.StatusOK, "exercise deleted", nil)
}

func (s *Server) handleListExercises(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := s.exercises.ListByClass(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "classId"), exercise.ListQuery{
		Status:    q.Get("status"),
		Type:      q.Get("type"),
		SortBy:    q.Get("sortBy"),
		Order:     q.Get("sortOrder"),
		PageQuery: pageQuery(r),
	})
	if err != nil {
		writeOpError(w, "list exercises", err)
		return
	}
	writeOK(w, http.StatusOK, "", page)
}

func (s *Server) handleGetExercise(w http.ResponseWriter, r *http.Request) {
	detail, err := s.exercises.Get(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "id"), chi.URLParam(r, "exerciseId"))
	if err != nil {
		writeOpError(w, "get exercise", err)
		return
	}
	writeOK(w, http.StatusOK, "", detail)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	files, cleanup, err := s.readPayload(w, r, "files", exercise.MaxSubmissionFiles, &req)
	defer cleanup()
	if err != nil {
		writeOpError(w, "submit exercise", err)
		return
	}
	submission, err := s.exercises.Submit(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "id"), chi.URLParam(r, "exerciseId"), exercise.Answer{
		Content: req.Content,
		Answers: req.Answers,
	}, files)
	if err != nil {
		writeOpError(w, "submit exercise", err)
		return
	}
	writeOK(w, http.StatusCreated, "submission received", mapSubmission(submission))
}

func (s *Server) handleListSubmissions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := s.exercises.ListSubmissions(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "id"), chi.URLParam(r, "exerciseId"), exercise.SubmissionQuery{
		Graded: queryBool(r, "graded"),
		SortBy: q.Get("sortBy"),
		Order:  q.Get("sortOrder"),
	})
	if err != nil {
		writeOpError(w, "list submissions", err)
		return
	}
	writeOK(w, http.StatusOK, "", list)
}

func (s *Server) handleGrade(w http.ResponseWriter, r *http.Request) {
	var req gradeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeOpError(w, "grade submission", operations.Invalid(operations.ErrInvalidRequest, err.Error()))
		return
	}
	submission, status, err := s.exercises.Grade(r.Context(), actorFromContext(r.Context()),
		chi.URLParam(r, "id"), chi.URLParam(r, "exerciseId"), chi.URLParam(r, "submissionId"),
		exercise.GradeInput{Grade: req.Grade, Feedback: req.Feedback})
	if err != nil {
		writeOpError(w, "grade submission", err)
		return
	}
	writeOK(w, http.StatusOK, "submission graded", gradeResponse{Submission: mapSubmission(submission), ExerciseStatus: status})
}

func (s *Server) handleMySubmission(w http.ResponseWriter, r *http.Request) {
	detail, err := s.exercises.MySubmission(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeOpError(w, "my submission", err)
		return
	}
	writeOK(w, http.StatusOK, "", detail)
}

func (s *Server) handleMySubmissions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := s.exercises.MySubmissions(r.Context(), actorFromContext(r.Context()), exercise.MyQuery{
		Status:    q.Get("status"),
		ClassID:   q.Get("classId"),
		SortBy:    q.Get("sortBy"),
		Order:     q.Get("sortOrder"),
		PageQuery: pageQuery(r),
	})
	if err != nil {
		writeOpError(w, "my submissions", err)
		return
	}
	writeOK(w, http.StatusOK, "", page)
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	overview, err := s.exercises.Overview(r.Context(), actorFromContext(r.Context()), exercise.OverviewQuery{
		ClassID:       q.Get("classId"),
		Status:        q.Get("status"),
		GradingStatus: q.Get("gradingStatus"),
		SortBy:        q.Get("sortBy"),
		Order:         q.Get("sortOrder"),
		PageQuery:     pageQuery(r),
	})
	if err != nil {
		writeOpError(w, "exercise overview", err)
		return
	}
	writeOK(w, http.StatusOK, "", overview)
}

func mapExercise(e model.Exercise) exerciseResponse {
	questions := e.Questions
	if questions == nil {
		questions = []model.Question{}
	}
	attachments := e.Attachments
	if attachments == nil {
		attachments = []model.Attachment{}
	}
	return exerciseResponse{
		ID:          e.ID,
		ClassID:     e.ClassID,
		CreatedBy:   e.CreatedBy,
		Title:       e.Title,
		Description: e.Description,
		Type:        e.Type,
		Subject:     e.Subject,
		MaxScore:    e.MaxScore,
		StartDate:   e.StartDate,
		DueDate:     e.DueDate,
		Status:      e.Status,
		Questions:   questions,
		Attachments: attachments,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}

func mapSubmission(sub model.Submission) submissionResponse {
	files := sub.Files
	if files == nil {
		files = []model.Attachment{}
	}
	return submissionResponse{
		ID:          sub.ID,
		ExerciseID:  sub.ExerciseID,
		StudentID:   sub.StudentID,
		SubmittedAt: sub.SubmittedAt,
		Content:     sub.Content,
		FileURL:     sub.FileURL,
		Files:       files,
		Answers:     sub.Answers,
		Grade:       sub.Grade,
		Feedback:    sub.Feedback,
		GradedAt:    sub.GradedAt,
	}
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
