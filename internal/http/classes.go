package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"semaphore/classroom/internal/classes"
	"semaphore/classroom/internal/model"
)

type classRequest struct {
	Name            *string              `json:"name"`
	Subject         *string              `json:"subject"`
	Description     *string              `json:"description"`
	Schedule        []model.ScheduleSlot `json:"schedule"`
	Location        *string              `json:"location"`
	MaxStudents     *int                 `json:"maxStudents"`
	GradeLevel      *string              `json:"gradeLevel"`
	PricePerSession *float64             `json:"pricePerSession"`
}

func (req classRequest) input() classes.Input {
	return classes.Input{
		Name:            req.Name,
		Subject:         req.Subject,
		Description:     req.Description,
		Schedule:        req.Schedule,
		Location:        req.Location,
		MaxStudents:     req.MaxStudents,
		GradeLevel:      req.GradeLevel,
		PricePerSession: req.PricePerSession,
	}
}

type classResponse struct {
	ID              string               `json:"id"`
	Name            string               `json:"name"`
	Subject         string               `json:"subject"`
	Description     string               `json:"description"`
	Schedule        []model.ScheduleSlot `json:"schedule"`
	Location        string               `json:"location"`
	MaxStudents     *int                 `json:"maxStudents"`
	GradeLevel      string               `json:"gradeLevel"`
	PricePerSession *float64             `json:"pricePerSession"`
	TeacherID       string               `json:"teacherId"`
	StudentCount    int                  `json:"studentCount"`
	PendingCount    int                  `json:"pendingCount"`
	CreatedAt       time.Time            `json:"createdAt"`
	UpdatedAt       time.Time            `json:"updatedAt"`
}

type memberResponse struct {
	ProfileID   string     `json:"profileId"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	Avatar      string     `json:"avatar,omitempty"`
	Status      string     `json:"status"`
	RequestedAt time.Time  `json:"requestedAt"`
	ApprovedAt  *time.Time `json:"approvedAt,omitempty"`
}

type joinResponse struct {
	ClassID  string `json:"classId"`
	Status   string `json:"status"`
	Position int    `json:"position"`
}

func (s *Server) handleCreateClass(w http.ResponseWriter, r *http.Request) {
	var req classRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	view, err := s.classes.Create(r.Context(), actorFromContext(r.Context()), req.input())
	if err != nil {
		writeOpError(w, "create class", err)
		return
	}
	writeOK(w, http.StatusCreated, "class created", mapClass(view))
}

func (s *Server) handleListClasses(w http.ResponseWriter, r *http.Request) {
	views, err := s.classes.List(r.Context(), actorFromContext(r.Context()))
	if err != nil {
		writeOpError(w, "list classes", err)
		return
	}
	items := make([]classResponse, 0, len(views))
	for _, view := range views {
		items = append(items, mapClass(view))
	}
	writeOK(w, http.StatusOK, "", items)
}

func (s *Server) handleGetClass(w http.ResponseWriter, r *http.Request) {
	view, err := s.classes.Get(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeOpError(w, "get class", err)
		return
	}
	writeOK(w, http.StatusOK, "", mapClass(view))
}

func (s *Server) handleUpdateClass(w http.ResponseWriter, r *http.Request) {
	var req classRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	view, err := s.classes.Update(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "id"), req.input())
	if err != nil {
		writeOpError(w, "update class", err)
		return
	}
	writeOK(w, http.StatusOK, "class updated", mapClass(view))
}

func (s *Server) handleDeleteClass(w http.ResponseWriter, r *http.Request) {
	if err := s.classes.Delete(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeOpError(w, "delete class", err)
		return
	}
	writeOK(w, http.StatusOK, "class deleted", nil)
}

func (s *Server) handleJoinClass(w http.ResponseWriter, r *http.Request) {
	result, err := s.enrollment.RequestJoin(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeOpError(w, "join class", err)
		return
	}
	writeOK(w, http.StatusCreated, "join request submitted", joinResponse{
		ClassID:  result.Membership.ClassID,
		Status:   string(result.Membership.Status),
		Position: result.Position,
	})
}

func (s *Server) handleListPending(w http.ResponseWriter, r *http.Request) {
	members, err := s.enrollment.ListPending(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeOpError(w, "list pending", err)
		return
	}
	writeOK(w, http.StatusOK, "", mapMembers(members))
}

func (s *Server) handleApproveStudent(w http.ResponseWriter, r *http.Request) {
	membership, err := s.enrollment.Approve(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "id"), chi.URLParam(r, "studentId"))
	if err != nil {
		writeOpError(w, "approve student", err)
		return
	}
	writeOK(w, http.StatusOK, "student approved", memberResponse{
		ProfileID:   membership.ProfileID,
		Status:      string(membership.Status),
		RequestedAt: membership.RequestedAt,
		ApprovedAt:  membership.ApprovedAt,
	})
}

func (s *Server) handleLeaveClass(w http.ResponseWriter, r *http.Request) {
	if err := s.enrollment.Leave(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeOpError(w, "leave class", err)
		return
	}
	writeOK(w, http.StatusOK, "left class", nil)
}

func (s *Server) handleListStudents(w http.ResponseWriter, r *http.Request) {
	members, err := s.enrollment.ListStudents(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeOpError(w, "list students", err)
		return
	}
	writeOK(w, http.StatusOK, "", mapMembers(members))
}

func mapClass(view classes.View) classResponse {
	schedule := view.Schedule
	if schedule == nil {
		schedule = []model.ScheduleSlot{}
	}
	return classResponse{
		ID:              view.ID,
		Name:            view.Name,
		Subject:         view.Subject,
		Description:     view.Description,
		Schedule:        schedule,
		Location:        view.Location,
		MaxStudents:     view.MaxStudents,
		GradeLevel:      view.GradeLevel,
		PricePerSession: view.PricePerSession,
		TeacherID:       view.TeacherID,
		StudentCount:    view.Seats.Approved,
		PendingCount:    view.Seats.Pending,
		CreatedAt:       view.CreatedAt,
		UpdatedAt:       view.UpdatedAt,
	}
}

func mapMembers(members []model.Member) []memberResponse {
	out := make([]memberResponse, 0, len(members))
	for _, m := range members {
		out = append(out, memberResponse{
			ProfileID:   m.ProfileID,
			Username:    m.Username,
			Email:       m.Email,
			Avatar:      m.Avatar,
			Status:      string(m.Status),
			RequestedAt: m.RequestedAt,
			ApprovedAt:  m.ApprovedAt,
		})
	}
	return out
}
