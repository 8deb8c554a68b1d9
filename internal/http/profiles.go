package http

import (
	"net/http"
	"time"

	"semaphore/classroom/internal/model"
	"semaphore/classroom/internal/operations"
	"semaphore/classroom/internal/profiles"
)

type profileRequest struct {
	Username    *string    `json:"username"`
	Phone       *string    `json:"phone"`
	UserClass   *string    `json:"userClass"`
	UserSchool  *string    `json:"userSchool"`
	Address     *string    `json:"address"`
	DateOfBirth *time.Time `json:"dateOfBirth"`
	Gender      *string    `json:"gender"`
}

type registrationResponse struct {
	ClassID      string     `json:"classId"`
	Status       string     `json:"status"`
	RegisteredAt time.Time  `json:"registeredAt"`
	ApprovedAt   *time.Time `json:"approvedAt,omitempty"`
}

type profileResponse struct {
	ID                string                 `json:"id"`
	IdentityID        string                 `json:"userId"`
	Role              string                 `json:"role"`
	Email             string                 `json:"email"`
	Username          string                 `json:"username"`
	Phone             string                 `json:"phone"`
	UserClass         string                 `json:"userClass"`
	UserSchool        string                 `json:"userSchool"`
	Address           string                 `json:"address"`
	Avatar            string                 `json:"avatar"`
	DateOfBirth       *time.Time             `json:"dateOfBirth,omitempty"`
	Gender            string                 `json:"gender"`
	RegisteredClasses []registrationResponse `json:"registeredClasses"`
	CreatedAt         time.Time              `json:"createdAt"`
	UpdatedAt         time.Time              `json:"updatedAt"`
}

func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	profile, err := s.profiles.Me(r.Context(), actorFromContext(r.Context()))
	if err != nil {
		writeOpError(w, "get profile", err)
		return
	}
	writeOK(w, http.StatusOK, "", mapProfile(profile))
}

func (s *Server) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	profile, err := s.profiles.UpdateMe(r.Context(), actorFromContext(r.Context()), profiles.Input{
		Username:    req.Username,
		Phone:       req.Phone,
		UserClass:   req.UserClass,
		UserSchool:  req.UserSchool,
		Address:     req.Address,
		DateOfBirth: req.DateOfBirth,
		Gender:      req.Gender,
	})
	if err != nil {
		writeOpError(w, "update profile", err)
		return
	}
	writeOK(w, http.StatusOK, "profile updated", mapProfile(profile))
}

func (s *Server) handleUploadAvatar(w http.ResponseWriter, r *http.Request) {
	if !isMultipart(r) {
		writeOpError(w, "upload avatar", operations.Invalid(operations.ErrMissingFile, "avatar file is required"))
		return
	}
	var ignored struct{}
	files, cleanup, err := s.readPayload(w, r, "avatar", 1, &ignored)
	defer cleanup()
	if err != nil {
		writeOpError(w, "upload avatar", err)
		return
	}
	if len(files) == 0 {
		writeOpError(w, "upload avatar", operations.Invalid(operations.ErrMissingFile, "avatar file is required"))
		return
	}
	profile, err := s.profiles.UploadAvatar(r.Context(), actorFromContext(r.Context()), files[0])
	if err != nil {
		writeOpError(w, "upload avatar", err)
		return
	}
	writeOK(w, http.StatusOK, "avatar updated", map[string]string{"avatar": profile.Avatar})
}

func mapProfile(p model.Profile) profileResponse {
	registrations := make([]registrationResponse, 0, len(p.RegisteredClasses))
	for _, m := range p.RegisteredClasses {
		registrations = append(registrations, registrationResponse{
			ClassID:      m.ClassID,
			Status:       string(m.Status),
			RegisteredAt: m.RequestedAt,
			ApprovedAt:   m.ApprovedAt,
		})
	}
	return profileResponse{
		ID:                p.ID,
		IdentityID:        p.IdentityID,
		Role:              p.Role,
		Email:             p.Email,
		Username:          p.Username,
		Phone:             p.Phone,
		UserClass:         p.UserClass,
		UserSchool:        p.UserSchool,
		Address:           p.Address,
		Avatar:            p.Avatar,
		DateOfBirth:       p.DateOfBirth,
		Gender:            string(p.Gender),
		RegisteredClasses: registrations,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
}
